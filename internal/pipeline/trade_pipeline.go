package pipeline

import (
	"context"
	stdsync "sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/anselumana/binance-etl/internal/model"
	"github.com/anselumana/binance-etl/internal/storage"
	"github.com/anselumana/binance-etl/internal/transport"
)

// TradePipeline runs the trade ETL loop for one symbol (spec.md §4.6):
// stamp arrival time, decode, and persist every trade event. Trades carry
// no sequence number to reconcile, so there is no synchronizer or
// consistency monitor here.
type TradePipeline struct {
	symbol    string
	market    string
	transport transport.Transport
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

// NewTradePipeline constructs a TradePipeline for symbol.
func NewTradePipeline(symbol, market string, t transport.Transport, sink storage.StorageSink, log zerolog.Logger) *TradePipeline {
	return &TradePipeline{
		symbol:    symbol,
		market:    market,
		transport: t,
		sink:      sink,
		log:       log.With().Str("symbol", symbol).Str("market", market).Str("pipeline", "trade").Logger(),
		failedCh:  make(chan struct{}),
	}
}

// Name implements Pipeline.
func (p *TradePipeline) Name() string { return "trade:" + p.symbol }

// Start implements Pipeline.
func (p *TradePipeline) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.transport.Run(ctx)
	go p.consume()
	return nil
}

// Stop implements Pipeline.
func (p *TradePipeline) Stop() error {
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
func (p *TradePipeline) Varz() map[string]interface{} {
	p.varzMu.Lock()
	defer p.varzMu.Unlock()
	return map[string]interface{}{
		"symbol":    p.symbol,
		"received":  p.received,
		"persisted": p.persisted,
		"failed":    p.failed,
	}
}

// Failed implements Pipeline.
func (p *TradePipeline) Failed() <-chan struct{} { return p.failedCh }

// fail marks the pipeline as fatally failed and tears down its goroutines.
// Storage I/O failure is fatal with no retry policy (spec.md §7).
func (p *TradePipeline) fail(msg string, err error) {
	p.failOnce.Do(func() {
		p.log.Error().Err(err).Msg(msg)

		p.varzMu.Lock()
		p.failed = true
		p.varzMu.Unlock()

		close(p.failedCh)
		p.cancel()
		p.transport.Close()
	})
}

func (p *TradePipeline) consume() {
	defer close(p.done)

	for raw := range p.transport.Messages() {
		localTs := time.Now().UnixMilli()

		frame, err := model.DecodeFrame(raw, localTs)
		if err != nil {
			p.log.Warn().Err(err).Msg("failed to decode trade frame")
			continue
		}
		if frame.Kind != model.FrameTrade {
			continue
		}

		record := frame.Trade.ToRecord()
		if err := p.sink.AddTrades(p.symbol, p.market, []model.TradeRecord{record}); err != nil {
			p.fail("storage I/O failure, failing pipeline", err)
			return
		}

		p.varzMu.Lock()
		p.received++
		p.persisted++
		p.varzMu.Unlock()
	}
}
