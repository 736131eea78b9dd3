package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecdb/vecdb/metric"
)

func openTestService(t *testing.T, opts ...Option) (*Service, string, string) {
	t.Helper()
	dir := t.TempDir()
	snapPath := filepath.Join(dir, "snapshot.bin")
	walPath := filepath.Join(dir, "wal.log")
	svc, err := Open(context.Background(), snapPath, walPath, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc, snapPath, walPath
}

// Scenario 1: identity search.
func TestIdentitySearch(t *testing.T) {
	svc, _, _ := openTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.CreateCollection(ctx, "c", 3))
	require.NoError(t, svc.Upsert(ctx, "c", "a", []float32{1, 0, 0}, nil))

	results, err := svc.Search(ctx, "c", []float32{1, 0, 0}, 1, metric.Cosine, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
	assert.InDelta(t, 0.0, results[0].Score, 1e-6)
}

// Scenario 2: ranking under cosine.
func TestRankingUnderCosine(t *testing.T) {
	svc, _, _ := openTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.CreateCollection(ctx, "c", 2))
	require.NoError(t, svc.Upsert(ctx, "c", "a", []float32{1, 0}, nil))
	require.NoError(t, svc.Upsert(ctx, "c", "b", []float32{0, 1}, nil))
	require.NoError(t, svc.Upsert(ctx, "c", "c", []float32{1, 1}, nil))

	results, err := svc.Search(ctx, "c", []float32{1, 0}, 3, metric.Cosine, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)

	ids := []string{results[0].ID, results[1].ID, results[2].ID}
	assert.Equal(t, []string{"a", "c", "b"}, ids)
	assert.InDelta(t, 0.0, results[0].Score, 1e-6)
	assert.InDelta(t, 1-1/1.4142135, results[1].Score, 1e-5)
	assert.InDelta(t, 1.0, results[2].Score, 1e-6)
}

// Scenario 3: dimension mismatch leaves state untouched.
func TestDimensionMismatchLeavesStateUntouched(t *testing.T) {
	svc, _, _ := openTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.CreateCollection(ctx, "c", 3))
	err := svc.Upsert(ctx, "c", "a", []float32{1, 2, 3, 4}, nil)
	require.Error(t, err)
	var svcErr *Error
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, KindDimensionMismatch, svcErr.Kind)

	stats, err := svc.Stats(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.NumVectors)
}

// Scenario 4: metadata filtering.
func TestSearchWithMetadataFilter(t *testing.T) {
	svc, _, _ := openTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.CreateCollection(ctx, "c", 2))
	require.NoError(t, svc.Upsert(ctx, "c", "1", []float32{1, 0}, map[string]any{"tag": "x"}))
	require.NoError(t, svc.Upsert(ctx, "c", "2", []float32{0, 1}, map[string]any{"tag": "y"}))
	require.NoError(t, svc.Upsert(ctx, "c", "3", []float32{1, 1}, map[string]any{"tag": "x"}))

	results, err := svc.Search(ctx, "c", []float32{1, 0}, 10, metric.Cosine, map[string]any{"tag": "x"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "1", results[0].ID)
	assert.Equal(t, "3", results[1].ID)
}

// Scenario 5: crash recovery replays the WAL with no snapshot present.
func TestCrashRecoveryReplaysWAL(t *testing.T) {
	dir := t.TempDir()
	snapPath := filepath.Join(dir, "snapshot.bin")
	walPath := filepath.Join(dir, "wal.log")

	svc, err := Open(context.Background(), snapPath, walPath)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, svc.CreateCollection(ctx, "c", 2))
	const n = 5
	for i := 0; i < n; i++ {
		require.NoError(t, svc.Upsert(ctx, "c", string(rune('a'+i)), []float32{float32(i), 0}, nil))
	}
	// Simulate a restart without a snapshot: close only the WAL (no
	// SaveSnapshot ever ran) — Append already fsyncs per operation, so
	// every record must come back from WAL replay alone.
	require.NoError(t, svc.wal.Close())

	restarted, err := Open(context.Background(), snapPath, walPath)
	require.NoError(t, err)
	defer restarted.Close()

	stats, err := restarted.Stats(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, n, stats.NumVectors)
	assert.Equal(t, uint64(n+1), restarted.walSeq())
}

// Scenario 6: atomic snapshot survives a crash mid-write of the temp
// file, since the previous committed snapshot.bin is left untouched
// until the rename succeeds.
func TestAtomicSnapshotSurvivesTornWrite(t *testing.T) {
	svc, snapPath, walPath := openTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.CreateCollection(ctx, "c", 1))
	require.NoError(t, svc.Upsert(ctx, "c", "a", []float32{1}, nil))
	_, err := svc.SaveSnapshot(ctx)
	require.NoError(t, err)

	require.NoError(t, svc.Upsert(ctx, "c", "b", []float32{2}, nil))

	// Simulate a crash mid-write of the next snapshot's temp file: a
	// stray .tmp-* file exists alongside the last good snapshot.bin, and
	// must never be mistaken for the real thing.
	tornPath := snapPath + ".tmp-crash"
	require.NoError(t, os.WriteFile(tornPath, []byte("not a real snapshot"), 0o644))

	restarted, err := Open(context.Background(), snapPath, walPath)
	require.NoError(t, err)
	defer restarted.Close()

	stats, err := restarted.Stats(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.NumVectors) // snapshot(a) + WAL replay(b)
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	svc, _, _ := openTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.CreateCollection(ctx, "c", 2))
	require.NoError(t, svc.Upsert(ctx, "c", "a", []float32{1, 2}, map[string]any{"k": "v"}))

	seq, err := svc.SaveSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), seq) // create + upsert

	restoredSeq, err := svc.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, seq, restoredSeq)

	rec, err := svc.Get(ctx, "c", "a")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, rec.Vector)
	assert.Equal(t, "v", rec.Metadata["k"])
}

func TestUpsertReplacesInPlace(t *testing.T) {
	svc, _, _ := openTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.CreateCollection(ctx, "c", 1))
	require.NoError(t, svc.Upsert(ctx, "c", "a", []float32{1}, nil))
	require.NoError(t, svc.Upsert(ctx, "c", "a", []float32{2}, nil))

	stats, err := svc.Stats(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.NumVectors)

	rec, err := svc.Get(ctx, "c", "a")
	require.NoError(t, err)
	assert.Equal(t, []float32{2}, rec.Vector)
}

func TestDeleteMissingRecordIsRecordNotFound(t *testing.T) {
	svc, _, _ := openTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.CreateCollection(ctx, "c", 1))
	err := svc.Delete(ctx, "c", "nope")
	require.Error(t, err)
	var svcErr *Error
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, KindRecordNotFound, svcErr.Kind)
}

func TestSearchRejectsNonPositiveK(t *testing.T) {
	svc, _, _ := openTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.CreateCollection(ctx, "c", 1))
	_, err := svc.Search(ctx, "c", []float32{1}, 0, metric.Cosine, nil)
	require.Error(t, err)
	var svcErr *Error
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, KindInvalidK, svcErr.Kind)
}

func TestEnsureDefaultCollectionIsIdempotent(t *testing.T) {
	svc, _, _ := openTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.EnsureDefaultCollection(ctx, 4))
	require.NoError(t, svc.EnsureDefaultCollection(ctx, 4))

	stats, err := svc.Stats(ctx, DefaultCollectionName)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Dimension)
}

func TestClearDropsEveryCollection(t *testing.T) {
	svc, _, _ := openTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.CreateCollection(ctx, "a", 1))
	require.NoError(t, svc.CreateCollection(ctx, "b", 1))

	require.NoError(t, svc.Clear(ctx))

	all, err := svc.ListCollections(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

// TestConcurrentUpsertsDuringSnapshotSurviveRestart guards the race the
// snapshot/WAL split is built to close: an Upsert racing SaveSnapshot
// must end up captured by exactly one of the snapshot or the retained
// WAL tail, never by neither.
func TestConcurrentUpsertsDuringSnapshotSurviveRestart(t *testing.T) {
	svc, snapPath, walPath := openTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.CreateCollection(ctx, "c", 1))

	const n = 200
	var wg sync.WaitGroup
	wg.Add(n + 1)

	go func() {
		defer wg.Done()
		_, err := svc.SaveSnapshot(ctx)
		assert.NoError(t, err)
	}()
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, svc.Upsert(ctx, "c", fmt.Sprintf("id-%03d", i), []float32{float32(i)}, nil))
		}(i)
	}
	wg.Wait()

	// A second snapshot after all writers finished captures everything
	// still outstanding in the WAL tail from the first one.
	_, err := svc.SaveSnapshot(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.Close())

	restarted, err := Open(context.Background(), snapPath, walPath)
	require.NoError(t, err)
	defer restarted.Close()

	stats, err := restarted.Stats(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, n, stats.NumVectors)
}

// TestConcurrentUpsertsToSameIDMatchWALReplayOrder guards against
// WAL-append order diverging from apply order for concurrent writers to
// the same id: whichever write's WAL record ends up with the highest
// sequence number must be the one the live state (and, after a restart
// that replays the WAL from scratch, the recovered state) reflects. If
// append and apply could interleave in different orders across
// goroutines, the live value could differ from what a WAL replay
// produces on the very next crash.
func TestConcurrentUpsertsToSameIDMatchWALReplayOrder(t *testing.T) {
	svc, snapPath, walPath := openTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.CreateCollection(ctx, "c", 1))

	const n = 100
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, svc.Upsert(ctx, "c", "a", []float32{float32(i)}, nil))
		}(i)
	}
	wg.Wait()

	live, err := svc.Get(ctx, "c", "a")
	require.NoError(t, err)
	require.NoError(t, svc.Close())

	restarted, err := Open(context.Background(), snapPath, walPath)
	require.NoError(t, err)
	defer restarted.Close()

	replayed, err := restarted.Get(ctx, "c", "a")
	require.NoError(t, err)
	assert.Equal(t, live.Vector, replayed.Vector)
}
