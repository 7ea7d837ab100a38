// Package pipeline runs the per-symbol depth and trade ETL loops (spec.md
// §4.5, §4.6): consume a transport, decode, synchronize/check consistency,
// and persist.
package pipeline

// Pipeline is the common lifecycle every ETL pipeline satisfies, grounded
// on the teacher's internal/node.Node interface.
type Pipeline interface {
	// Name identifies the pipeline for logging and Varz, e.g.
	// "depth:BTCUSDT" or "trade:ETHUSDT" (the symbol as configured).
	Name() string

	// Start launches the pipeline's goroutines and returns immediately;
	// it does not block.
	Start() error

	// Stop signals shutdown and waits for the pipeline's goroutines to
	// exit.
	Stop() error

	// Varz reports lightweight runtime counters for diagnostics.
	Varz() map[string]interface{}

	// Failed is closed when the pipeline terminates itself on a fatal
	// condition (sequence gap after sync, storage I/O failure). It stays
	// open for the pipeline's entire normal lifetime, including a clean
	// Stop. The supervisor watches it to propagate a non-zero process
	// exit code (spec.md §4.8, §6).
	Failed() <-chan struct{}
}
