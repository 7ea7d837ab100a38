package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anselumana/binance-etl/internal/model"
)

type stubFetcher struct {
	snapshot model.BookSnapshot
	err      error
	calls    int
}

func (f *stubFetcher) FetchDepth(_ context.Context, _ string) (model.BookSnapshot, error) {
	f.calls++
	return f.snapshot, f.err
}

func update(first, last int64) model.DepthUpdate {
	return model.DepthUpdate{Symbol: "BTCUSDT", FirstUpdateID: first, LastUpdateID: last}
}

func TestSynchronizer_SyncsWhenUpdateStraddlesSnapshot(t *testing.T) {
	fetcher := &stubFetcher{snapshot: model.BookSnapshot{LastUpdateID: 150}}
	s := NewSynchronizer("BTCUSDT", fetcher, zerolog.Nop(), 0)

	result, synced, err := s.TryToSync(context.Background(), update(151, 160))
	require.NoError(t, err)
	assert.True(t, synced)
	assert.True(t, s.IsSynced())
	assert.Equal(t, int64(150), result.Snapshot.LastUpdateID)
	require.Len(t, result.BufferedUpdates, 1)
	assert.Equal(t, int64(151), result.BufferedUpdates[0].FirstUpdateID)
}

func TestSynchronizer_BuffersUntilStraddlingUpdateArrives(t *testing.T) {
	fetcher := &stubFetcher{snapshot: model.BookSnapshot{LastUpdateID: 150}}
	s := NewSynchronizer("BTCUSDT", fetcher, zerolog.Nop(), 0)

	_, synced, err := s.TryToSync(context.Background(), update(100, 120))
	require.NoError(t, err)
	assert.False(t, synced)

	_, synced, err = s.TryToSync(context.Background(), update(121, 140))
	require.NoError(t, err)
	assert.False(t, synced)

	result, synced, err := s.TryToSync(context.Background(), update(141, 155))
	require.NoError(t, err)
	require.True(t, synced)
	assert.Equal(t, int64(141), result.BufferedUpdates[0].FirstUpdateID)
	assert.Len(t, result.BufferedUpdates, 1)
}

func TestSynchronizer_DiscardsStaleSnapshotAndRetries(t *testing.T) {
	fetcher := &stubFetcher{snapshot: model.BookSnapshot{LastUpdateID: 50}}
	s := NewSynchronizer("BTCUSDT", fetcher, zerolog.Nop(), 0)

	// First update is already far ahead of the snapshot: no buffered
	// update straddles last_update_id+1, so the snapshot is discarded.
	_, synced, err := s.TryToSync(context.Background(), update(200, 210))
	require.NoError(t, err)
	assert.False(t, synced)
	assert.Equal(t, 1, fetcher.calls)

	// Next call re-fetches since the snapshot was cleared.
	fetcher.snapshot = model.BookSnapshot{LastUpdateID: 205}
	result, synced, err := s.TryToSync(context.Background(), update(206, 215))
	require.NoError(t, err)
	require.True(t, synced)
	assert.Equal(t, 2, fetcher.calls)
	assert.Equal(t, int64(205), result.Snapshot.LastUpdateID)
}

func TestSynchronizer_RetriesOnFetchError(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("network down")}
	s := NewSynchronizer("BTCUSDT", fetcher, zerolog.Nop(), 0)

	_, synced, err := s.TryToSync(context.Background(), update(1, 10))
	require.NoError(t, err)
	assert.False(t, synced)

	fetcher.err = nil
	fetcher.snapshot = model.BookSnapshot{LastUpdateID: 5}
	result, synced, err := s.TryToSync(context.Background(), update(11, 20))
	require.NoError(t, err)
	require.True(t, synced)
	assert.Len(t, result.BufferedUpdates, 2)
}

func TestSynchronizer_DiscardsOldestOnBufferOverflow(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("never resolves before overflow")}
	s := NewSynchronizer("BTCUSDT", fetcher, zerolog.Nop(), 2)

	for i := int64(0); i < 5; i++ {
		_, synced, err := s.TryToSync(context.Background(), update(i*10, i*10+9))
		require.NoError(t, err)
		assert.False(t, synced)
	}
	assert.Len(t, s.buffered, 2)
	assert.Equal(t, int64(30), s.buffered[0].FirstUpdateID)
}

func TestSynchronizer_ResetClearsState(t *testing.T) {
	fetcher := &stubFetcher{snapshot: model.BookSnapshot{LastUpdateID: 10}}
	s := NewSynchronizer("BTCUSDT", fetcher, zerolog.Nop(), 0)

	_, synced, err := s.TryToSync(context.Background(), update(11, 20))
	require.NoError(t, err)
	require.True(t, synced)

	s.Reset()
	assert.False(t, s.IsSynced())
	assert.Nil(t, s.snapshot)
	assert.Nil(t, s.buffered)
}
