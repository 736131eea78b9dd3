package knn

import "container/heap"

// scoredItem is one scored candidate: a record ID and its distance under
// the active metric. Value-based (no pointer indirection) to keep the
// hot search loop allocation-free, matching the teacher pack's bounded
// top-k queues.
type scoredItem struct {
	id    string
	score float32
}

// maxHeap is a bounded max-heap on (score, id): the worst of the current
// top-k sits at the root, so a new candidate only needs one comparison
// against the root to know whether it belongs. Ordering is the full
// (score ascending, id ascending) key, not score alone, so the root is
// always the true composite-worst element even when several candidates
// tie on score — matching the teacher's `cmpCandidateByScoreAsc` idiom of
// baking the tie-break into the comparator instead of leaving it to
// insertion order.
type maxHeap []scoredItem

func (h maxHeap) Len() int { return len(h) }
func (h maxHeap) Less(i, j int) bool {
	if h[i].score != h[j].score {
		return h[i].score > h[j].score
	}
	return h[i].id > h[j].id
}
func (h maxHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x any)   { *h = append(*h, x.(scoredItem)) }
func (h *maxHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// boundedTopK maintains at most k candidates ordered by ascending score.
type boundedTopK struct {
	k int
	h maxHeap
}

func newBoundedTopK(k int) *boundedTopK {
	return &boundedTopK{k: k, h: make(maxHeap, 0, k)}
}

// offer considers a candidate for inclusion in the top-k. A candidate
// replaces the root whenever it is composite-smaller — strictly lower
// score, or a tied score with a lexicographically smaller id — so the
// selected set never depends on the order candidates arrive in.
func (b *boundedTopK) offer(id string, score float32) {
	if b.h.Len() < b.k {
		heap.Push(&b.h, scoredItem{id: id, score: score})
		return
	}
	if b.h.Len() == 0 {
		return
	}
	root := b.h[0]
	if score < root.score || (score == root.score && id < root.id) {
		b.h[0] = scoredItem{id: id, score: score}
		heap.Fix(&b.h, 0)
	}
}

// items returns the heap's backing slice, in heap order rather than
// sorted order; callers sort the merged result themselves.
func (b *boundedTopK) items() []scoredItem {
	return []scoredItem(b.h)
}
