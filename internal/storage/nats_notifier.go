package storage

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/anselumana/binance-etl/internal/model"
)

// flushNotification is published after every explicit Flush so that a
// downstream consumer (spec.md §9, "optional presence hint") knows new
// rows are durable without re-reading storage itself.
type flushNotification struct {
	TimestampMs int64 `json:"timestamp_ms"`
}

// NotifyingSink decorates another StorageSink with a NATS JetStream
// publish after each Flush, grounded on the teacher's internal/jetstream
// and internal/pubsub Publisher (nats.Conn + JetStreamContext, Publish
// on a fixed subject). AddDepthUpdates/AddTrades pass straight through:
// the inner sink may flush internally on its own batch boundary, but this
// decorator only has visibility into (and only promises to announce)
// explicit Flush calls.
type NotifyingSink struct {
	inner   StorageSink
	js      nats.JetStreamContext
	subject string
	log     zerolog.Logger
}

// NewNotifyingSink wraps inner, publishing to subject on the given
// JetStream context after every successful Flush.
func NewNotifyingSink(inner StorageSink, js nats.JetStreamContext, subject string, log zerolog.Logger) *NotifyingSink {
	return &NotifyingSink{inner: inner, js: js, subject: subject, log: log}
}

// AddDepthUpdates forwards to the inner sink.
func (s *NotifyingSink) AddDepthUpdates(symbol, market string, records []model.DepthRecord) error {
	return s.inner.AddDepthUpdates(symbol, market, records)
}

// AddTrades forwards to the inner sink.
func (s *NotifyingSink) AddTrades(symbol, market string, records []model.TradeRecord) error {
	return s.inner.AddTrades(symbol, market, records)
}

// Flush forwards to the inner sink and publishes a notification on
// success.
func (s *NotifyingSink) Flush() error {
	if err := s.inner.Flush(); err != nil {
		return err
	}

	data, err := json.Marshal(flushNotification{TimestampMs: time.Now().UnixMilli()})
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to marshal flush notification")
		return nil
	}
	if _, err := s.js.Publish(s.subject, data); err != nil {
		s.log.Warn().Err(err).Str("subject", s.subject).Msg("failed to publish flush notification")
	}
	return nil
}

// Close forwards to the inner sink.
func (s *NotifyingSink) Close() error {
	return s.inner.Close()
}
