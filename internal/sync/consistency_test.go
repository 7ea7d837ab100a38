package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/anselumana/binance-etl/internal/model"
)

func TestConsistencyMonitor_FirstUpdateIsAlwaysConsistent(t *testing.T) {
	m := NewConsistencyMonitor()
	assert.True(t, m.Check(update(101, 110)))
}

func TestConsistencyMonitor_DetectsChainedUpdates(t *testing.T) {
	m := NewConsistencyMonitor()
	require := assert.New(t)

	require.True(m.Check(update(101, 110)))
	require.True(m.Check(update(111, 120)))
	require.True(m.Check(update(121, 130)))
}

func TestConsistencyMonitor_DetectsGap(t *testing.T) {
	m := NewConsistencyMonitor()
	assert.True(t, m.Check(update(101, 110)))
	assert.False(t, m.Check(update(115, 120)))
}

func TestConsistencyMonitor_AdvancesStateRegardlessOfVerdict(t *testing.T) {
	m := NewConsistencyMonitor()
	m.Check(update(101, 110))
	m.Check(update(115, 120)) // gap, but last_update still advances
	assert.True(t, m.Check(update(121, 130)))
}

func TestConsistencyMonitor_Reset(t *testing.T) {
	m := NewConsistencyMonitor()
	m.Check(update(101, 110))
	m.Reset()
	assert.True(t, m.Check(model.DepthUpdate{FirstUpdateID: 999, LastUpdateID: 1000}))
}
