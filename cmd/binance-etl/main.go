// Command binance-etl records Binance depth-diff and trade streams to a
// configured storage backend (spec.md §1).
package main

import (
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/anselumana/binance-etl/internal/etlconfig"
	"github.com/anselumana/binance-etl/internal/pipeline"
	depthsync "github.com/anselumana/binance-etl/internal/sync"

	"github.com/anselumana/binance-etl/internal/snapshotclient"
	"github.com/anselumana/binance-etl/internal/storage"
	"github.com/anselumana/binance-etl/internal/supervisor"
	"github.com/anselumana/binance-etl/internal/transport"
)

func main() {
	cfg, err := etlconfig.LoadFromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "binance-etl:", err)
		os.Exit(1)
	}

	log, err := etlconfig.NewLogger(cfg.Logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "binance-etl:", err)
		os.Exit(1)
	}

	sup := supervisor.New(log)

	sink, err := buildSink(cfg, log, sup)
	if err != nil {
		log.Error().Err(err).Msg("failed to build storage sink")
		os.Exit(1)
	}

	snapshotAPI := snapshotclient.New("https://api.binance.com")

	for _, sub := range cfg.Subscriptions {
		streamBase := streamBaseURL(sub.Exchange, sub.Market)
		if streamBase == "" {
			log.Error().Str("exchange", sub.Exchange).Msg("unsupported exchange in subscription")
			os.Exit(1)
		}

		if sub.HasEvent("depth") {
			t := transport.New(streamBase+"/ws/"+strings.ToLower(sub.Symbol)+"@depth", log)
			snc := depthsync.NewSynchronizer(sub.Symbol, snapshotAPI, log, 0)
			sup.Register(pipeline.NewDepthPipeline(sub.Symbol, sub.Market, t, snc, sink, log))
		}
		if sub.HasEvent("trade") {
			t := transport.New(streamBase+"/ws/"+strings.ToLower(sub.Symbol)+"@trade", log)
			sup.Register(pipeline.NewTradePipeline(sub.Symbol, sub.Market, t, sink, log))
		}
	}

	sup.HookShutdown("storage", sink.Close, 10*time.Second)

	log.Info().Int("subscriptions", len(cfg.Subscriptions)).Msg("binance-etl starting")
	sup.Start()
	sup.WaitForShutdown(syscall.SIGINT, syscall.SIGTERM)

	if code := sup.ExitCode(); code != 0 {
		os.Exit(code)
	}
}

// streamBaseURL resolves the combined-stream websocket host for a
// (exchange, market) pair. Only binance spot and USD-M futures are wired;
// other exchanges resolve to "", which main reports as a configuration
// error at startup.
func streamBaseURL(exchange, market string) string {
	if !strings.EqualFold(exchange, "binance") {
		return ""
	}
	switch strings.ToLower(market) {
	case "usdm-futures":
		return "wss://fstream.binance.com"
	default:
		return "wss://stream.binance.com:9443"
	}
}

func buildSink(cfg *etlconfig.Config, log zerolog.Logger, sup *supervisor.Supervisor) (storage.StorageSink, error) {
	var sink storage.StorageSink
	var err error

	switch cfg.Storage.Backend {
	case "postgres":
		sink, err = storage.NewPostgresSink(storage.PostgresConfig{
			DSN:       cfg.Storage.Postgres.DSN,
			BatchSize: cfg.Storage.BatchSize,
		}, log)
	default:
		basePath := cfg.Storage.BasePath
		if basePath == "" {
			basePath = "./data"
		}
		sink, err = storage.NewCSVSink(basePath, cfg.Storage.BatchSize, log)
	}
	if err != nil {
		return nil, err
	}

	if !cfg.Storage.Notify.Enabled {
		return sink, nil
	}

	nc, err := nats.Connect(cfg.Storage.Notify.NATSURL)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	sup.HookShutdown("nats-connection", func() error { nc.Close(); return nil }, 5*time.Second)

	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("init jetstream context: %w", err)
	}

	return storage.NewNotifyingSink(sink, js, cfg.Storage.Notify.Subject, log), nil
}
