// Package knn implements the exact k-nearest-neighbor search used by
// every collection: brute-force distance computation over a sharded,
// parallel scan, each shard keeping a bounded top-k, merged into one
// final ranked list. There is no approximate index (HNSW/IVF) here by
// design — vecdb only ever does exact search.
package knn

import (
	"context"
	"reflect"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/vecdb/vecdb/core"
	"github.com/vecdb/vecdb/metric"
)

// Result is one ranked search hit.
type Result struct {
	ID       string
	Score    float32
	Metadata map[string]any
}

// minChunkSize keeps tiny collections from being split across more
// goroutines than there is work to justify.
const minChunkSize = 256

// Search scores query against every record in records under the given
// metric, applying filter (if non-nil) before scoring each candidate,
// and returns the k closest by ascending score with id as a tie-break.
// Work is partitioned into chunks scored concurrently; do not spawn one
// goroutine per record — chunk count is bounded by GOMAXPROCS.
func Search(
	ctx context.Context,
	records []*core.VectorRecord,
	query []float32,
	qNorm float32,
	k int,
	m metric.Name,
	filter map[string]any,
) ([]Result, error) {
	if k <= 0 {
		return nil, nil
	}
	if len(records) == 0 {
		return nil, nil
	}

	workers := runtime.GOMAXPROCS(0)
	chunkSize := (len(records) + workers - 1) / workers
	if chunkSize < minChunkSize {
		chunkSize = minChunkSize
	}

	type chunkResult struct {
		items []scoredItem
	}

	var chunks [][]*core.VectorRecord
	for start := 0; start < len(records); start += chunkSize {
		end := min(start+chunkSize, len(records))
		chunks = append(chunks, records[start:end])
	}

	results := make([]chunkResult, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			top := newBoundedTopK(k)
			for _, rec := range chunk {
				if filter != nil && !matchesFilter(filter, rec.Metadata) {
					continue
				}
				score := metric.Distance(m, query, rec.Vector, qNorm, rec.Norm)
				top.offer(rec.ID, score)
			}
			results[i] = chunkResult{items: top.items()}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := newBoundedTopK(k)
	for _, r := range results {
		for _, it := range r.items {
			merged.offer(it.id, it.score)
		}
	}

	final := merged.items()
	sort.Slice(final, func(i, j int) bool {
		if final[i].score != final[j].score {
			return final[i].score < final[j].score
		}
		return final[i].id < final[j].id
	})

	byID := make(map[string]*core.VectorRecord, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}

	out := make([]Result, len(final))
	for i, it := range final {
		out[i] = Result{ID: it.id, Score: it.score, Metadata: byID[it.id].Metadata}
	}
	return out, nil
}

// matchesFilter evaluates exact-equality AND semantics across every key
// in filter: a record matches only if it carries every key with an equal
// value. This is intentionally the entire predicate language — no
// ranges, no substrings, no secondary index. Richer predicates are a
// future layer and must not leak in here.
func matchesFilter(filter, metadata map[string]any) bool {
	if len(filter) == 0 {
		return true
	}
	if metadata == nil {
		return false
	}
	for k, want := range filter {
		got, ok := metadata[k]
		if !ok || !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b any) bool {
	switch av := a.(type) {
	case float64:
		bv, ok := toFloat64(b)
		return ok && av == bv
	default:
		return reflect.DeepEqual(a, b)
	}
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
