// Package storage persists depth and trade records to a backing store in
// batches (spec.md §4.7). StorageSink is a small capability interface so the
// pipelines stay agnostic to the concrete backend (spec.md §9, "duck-typed
// storage provider -> capability interface").
package storage

import "github.com/anselumana/binance-etl/internal/model"

// StorageSink accumulates depth and trade records per symbol and flushes
// them in batches. Implementations must be safe for concurrent use: the
// depth and trade pipelines for every subscribed symbol share one sink.
type StorageSink interface {
	// AddDepthUpdates appends records for (symbol, market), flushing
	// internally once a batch boundary is reached.
	AddDepthUpdates(symbol, market string, records []model.DepthRecord) error

	// AddTrades appends trade records for (symbol, market), flushing
	// internally once a batch boundary is reached.
	AddTrades(symbol, market string, records []model.TradeRecord) error

	// Flush forces any buffered records for every symbol to be written out.
	Flush() error

	// Close flushes and releases any underlying resources (file handles,
	// DB connections). The sink must not be used afterward.
	Close() error
}
