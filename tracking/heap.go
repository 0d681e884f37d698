package tracking

// match is a detection's best candidate track; track is -1 when there is none
type match struct {
	score float64
	det   int
	track int
}

// matchHeap is a max-heap by score, ties broken by detection order
type matchHeap []*match

func (h matchHeap) Len() int { return len(h) }

func (h matchHeap) Less(i, j int) bool {
	if h[i].score != h[j].score {
		return h[i].score > h[j].score
	}
	return h[i].det < h[j].det
}

func (h matchHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *matchHeap) Push(x any) { *h = append(*h, x.(*match)) }

func (h *matchHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
