package pipeline

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anselumana/binance-etl/internal/model"
)

type recordedTradeSink struct {
	mu     sync.Mutex
	trades []model.TradeRecord
	failAt int // AddTrades fails starting from this call index; 0 disables
	calls  int
}

func (s *recordedTradeSink) AddDepthUpdates(_, _ string, _ []model.DepthRecord) error { return nil }

func (s *recordedTradeSink) AddTrades(_, _ string, records []model.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failAt != 0 && s.calls >= s.failAt {
		return errors.New("disk full")
	}
	s.trades = append(s.trades, records...)
	return nil
}

func (s *recordedTradeSink) Flush() error { return nil }
func (s *recordedTradeSink) Close() error { return nil }

func (s *recordedTradeSink) recorded() []model.TradeRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.TradeRecord(nil), s.trades...)
}

func tradeFrame(id int64, localTs int64) []byte {
	return []byte(fmt.Sprintf(`{"e":"trade","E":%d,"s":"BTCUSDT","t":%d,"p":"1.0","q":"2.0"}`, localTs, id))
}

func TestTradePipeline_DecodesAndPersistsTrades(t *testing.T) {
	tr := newFakeTransport()
	sink := &recordedTradeSink{}

	p := NewTradePipeline("BTCUSDT", "spot", tr, sink, zerolog.Nop())
	require.NoError(t, p.Start())
	defer p.Stop()

	tr.msgs <- tradeFrame(1, 1000)
	tr.msgs <- tradeFrame(2, 1001)

	waitForCondition(t, func() bool { return len(sink.recorded()) == 2 })

	varz := p.Varz()
	assert.Equal(t, int64(2), varz["received"])
	assert.Equal(t, int64(2), varz["persisted"])
	assert.Equal(t, false, varz["failed"])
}

func TestTradePipeline_IgnoresNonTradeFrames(t *testing.T) {
	tr := newFakeTransport()
	sink := &recordedTradeSink{}

	p := NewTradePipeline("BTCUSDT", "spot", tr, sink, zerolog.Nop())
	require.NoError(t, p.Start())
	defer p.Stop()

	tr.msgs <- depthFrame(1, 10, 1000)
	tr.msgs <- tradeFrame(1, 1001)

	waitForCondition(t, func() bool { return len(sink.recorded()) == 1 })

	varz := p.Varz()
	assert.Equal(t, int64(1), varz["received"])
}

func TestTradePipeline_StorageFailureIsFatal(t *testing.T) {
	tr := newFakeTransport()
	sink := &recordedTradeSink{failAt: 1}

	p := NewTradePipeline("BTCUSDT", "spot", tr, sink, zerolog.Nop())
	require.NoError(t, p.Start())
	defer p.Stop()

	tr.msgs <- tradeFrame(1, 1000)

	select {
	case <-p.Failed():
	case <-time.After(time.Second):
		t.Fatal("pipeline did not report failure before deadline")
	}

	varz := p.Varz()
	assert.Equal(t, true, varz["failed"])
}
