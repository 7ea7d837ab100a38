package pipeline

import (
	"context"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/anselumana/binance-etl/internal/model"
	"github.com/anselumana/binance-etl/internal/storage"
	depthsync "github.com/anselumana/binance-etl/internal/sync"
	"github.com/anselumana/binance-etl/internal/transport"
)

// DepthPipeline runs the depth-diff ETL loop for one symbol (spec.md §4.5):
// stamp arrival time, decode, check the live stream for sequence gaps via a
// ConsistencyMonitor, reconcile against a REST snapshot via a Synchronizer
// while unsynced, and persist every accepted update.
type DepthPipeline struct {
	symbol    string
	market    string
	transport transport.Transport
	sync      *depthsync.Synchronizer
	monitor   *depthsync.ConsistencyMonitor
	sink      storage.StorageSink
	log       zerolog.Logger

	cancel   context.CancelFunc
	done     chan struct{}
	failedCh chan struct{}
	failOnce stdsync.Once

	varzMu    stdsync.Mutex
	received  int64
	persisted int64
	failed    bool
}

// NewDepthPipeline constructs a DepthPipeline for symbol. t is the
// transport to consume, snc the pre-built synchronizer bound to the same
// symbol, and sink the storage backend to persist into.
func NewDepthPipeline(symbol, market string, t transport.Transport, snc *depthsync.Synchronizer, sink storage.StorageSink, log zerolog.Logger) *DepthPipeline {
	return &DepthPipeline{
		symbol:    symbol,
		market:    market,
		transport: t,
		sync:      snc,
		monitor:   depthsync.NewConsistencyMonitor(),
		sink:      sink,
		log:       log.With().Str("symbol", symbol).Str("market", market).Str("pipeline", "depth").Logger(),
		failedCh:  make(chan struct{}),
	}
}

// Name implements Pipeline.
func (p *DepthPipeline) Name() string { return "depth:" + p.symbol }

// Start implements Pipeline: launches the transport and the consume loop.
func (p *DepthPipeline) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.transport.Run(ctx)
	go p.consume(ctx)
	return nil
}

// Stop implements Pipeline: cancels the consume loop and the transport,
// and waits for both to exit.
func (p *DepthPipeline) Stop() error {
	if p.cancel != nil {
		p.cancel()
	}
	p.transport.Close()
	if p.done != nil {
		<-p.done
	}
	return nil
}

// Varz implements Pipeline.
func (p *DepthPipeline) Varz() map[string]interface{} {
	p.varzMu.Lock()
	defer p.varzMu.Unlock()
	return map[string]interface{}{
		"symbol":    p.symbol,
		"received":  p.received,
		"persisted": p.persisted,
		"synced":    p.sync.IsSynced(),
		"failed":    p.failed,
	}
}

// Failed implements Pipeline.
func (p *DepthPipeline) Failed() <-chan struct{} { return p.failedCh }

// fail marks the pipeline as fatally failed, tears down its goroutines,
// and reports once regardless of how many callers observe the failure
// concurrently (spec.md §7: sequence gap after sync and storage I/O
// failure are both fatal, no retry policy).
func (p *DepthPipeline) fail(msg string, err error) {
	p.failOnce.Do(func() {
		ev := p.log.Error()
		if err != nil {
			ev = ev.Err(err)
		}
		ev.Msg(msg)

		p.varzMu.Lock()
		p.failed = true
		p.varzMu.Unlock()

		close(p.failedCh)
		p.cancel()
		p.transport.Close()
	})
}

// consume implements the frame loop in spec.md §4.5: stamp, decode, run
// the consistency monitor unconditionally, fail fatally on a gap once
// synced, otherwise offer the update to the synchronizer while unsynced or
// persist it directly once synced. It also watches the transport's
// reconnect signal, which independently clears is_synced (spec.md §4.1):
// a fresh connection carries no guarantee its first diff picks up where
// the old one left off, so any reconnection forces a resync regardless
// of whether the live stream itself ever showed a gap.
func (p *DepthPipeline) consume(ctx context.Context) {
	defer close(p.done)

	msgs := p.transport.Messages()
	reconnects := p.transport.Reconnects()

	for {
		select {
		case <-reconnects:
			p.log.Info().Msg("transport reconnected, forcing resync")
			p.sync.Reset()
			p.monitor.Reset()

		case raw, ok := <-msgs:
			if !ok {
				return
			}

			localTs := time.Now().UnixMilli()

			frame, err := model.DecodeFrame(raw, localTs)
			if err != nil {
				p.log.Warn().Err(err).Msg("failed to decode depth frame")
				continue
			}
			if frame.Kind != model.FrameDepthUpdate {
				continue
			}
			update := frame.Depth

			p.varzMu.Lock()
			p.received++
			p.varzMu.Unlock()

			wasSynced := p.sync.IsSynced()
			consistent := p.monitor.Check(update)
			if !consistent && wasSynced {
				p.fail("depth sequence gap detected after sync, failing pipeline", nil)
				return
			}

			if !wasSynced {
				if err := p.tryCatchUp(ctx, update); err != nil {
					p.fail("storage I/O failure, failing pipeline", err)
					return
				}
				continue
			}

			if err := p.persist(update, false); err != nil {
				p.fail("storage I/O failure, failing pipeline", err)
				return
			}
		}
	}
}

// tryCatchUp offers update to the synchronizer. On a successful
// transition it persists the initial snapshot timestamped strictly
// before the first buffered update (spec.md §4.5 step 4a), then every
// buffered update in order, including the one that triggered the sync.
// A non-nil error here is always a storage failure; a synchronizer fetch
// error is not fatal and is handled internally (the caller just retries
// on the next update).
func (p *DepthPipeline) tryCatchUp(ctx context.Context, update model.DepthUpdate) error {
	result, synced, err := p.sync.TryToSync(ctx, update)
	if err != nil {
		p.log.Error().Err(err).Msg("synchronizer error")
		return nil
	}
	if !synced {
		return nil
	}

	snapshotTimestamp := result.BufferedUpdates[0].LocalTimestamp - 1
	snapshotRecords := model.FlattenSnapshot(result.Snapshot, snapshotTimestamp)
	if err := p.sink.AddDepthUpdates(p.symbol, p.market, snapshotRecords); err != nil {
		return fmt.Errorf("persist depth snapshot: %w", err)
	}

	for _, u := range result.BufferedUpdates {
		if err := p.persist(u, false); err != nil {
			return err
		}
	}
	return nil
}

func (p *DepthPipeline) persist(update model.DepthUpdate, isSnapshot bool) error {
	records := model.FlattenUpdate(update, isSnapshot)
	if err := p.sink.AddDepthUpdates(p.symbol, p.market, records); err != nil {
		return fmt.Errorf("persist depth update: %w", err)
	}
	p.varzMu.Lock()
	p.persisted += int64(len(records))
	p.varzMu.Unlock()
	return nil
}
