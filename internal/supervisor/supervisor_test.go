package supervisor

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePipeline struct {
	name     string
	failedCh chan struct{}

	mu      sync.Mutex
	started bool
	stopped bool
}

func newFakePipeline(name string) *fakePipeline {
	return &fakePipeline{name: name, failedCh: make(chan struct{})}
}

func (p *fakePipeline) Name() string { return p.name }

func (p *fakePipeline) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started = true
	return nil
}

func (p *fakePipeline) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	return nil
}

func (p *fakePipeline) Varz() map[string]interface{} { return nil }

func (p *fakePipeline) Failed() <-chan struct{} { return p.failedCh }

func (p *fakePipeline) isStopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

func TestSupervisor_OnePipelineFailureDoesNotAffectOthers(t *testing.T) {
	a := newFakePipeline("a")
	b := newFakePipeline("b")

	sup := New(zerolog.Nop())
	sup.Register(a)
	sup.Register(b)
	sup.Start()

	close(a.failedCh)

	require.Eventually(t, func() bool { return sup.ExitCode() == 1 }, time.Second, time.Millisecond)

	// b was never signaled and must not have been torn down as a side
	// effect of a's failure (spec.md §4.8, per-pipeline independence).
	time.Sleep(20 * time.Millisecond)
	assert.False(t, b.isStopped())

	sup.Stop()
	assert.True(t, a.isStopped())
	assert.True(t, b.isStopped())
}

func TestSupervisor_ExitCodeZeroOnCleanShutdown(t *testing.T) {
	a := newFakePipeline("a")

	sup := New(zerolog.Nop())
	sup.Register(a)
	sup.Start()
	sup.Stop()

	assert.Equal(t, 0, sup.ExitCode())
}

func TestSupervisor_ExitCodeOneWhenAnyPipelineFails(t *testing.T) {
	a := newFakePipeline("a")
	b := newFakePipeline("b")

	sup := New(zerolog.Nop())
	sup.Register(a)
	sup.Register(b)
	sup.Start()

	close(b.failedCh)
	require.Eventually(t, func() bool { return sup.ExitCode() == 1 }, time.Second, time.Millisecond)

	sup.Stop()
	assert.Equal(t, 1, sup.ExitCode())
}
