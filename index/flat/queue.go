package flat

// candidate is an entry in the bounded candidate heap.
type candidate struct {
	ID       uint64
	Distance float32
}

// worse reports whether a ranks after b in the result ordering
// (greater distance, ties broken by greater ID).
func worse(a, b candidate) bool {
	if a.Distance != b.Distance {
		return a.Distance > b.Distance
	}
	return a.ID > b.ID
}

// maxHeap is a bounded max-heap of candidates. The root is the current worst
// candidate, so it can be evicted in O(log k) when a better one arrives.
// Value-based storage, no heap.Interface boxing on the hot path.
type maxHeap struct {
	items []candidate
}

func newMaxHeap(capacity int) *maxHeap {
	return &maxHeap{items: make([]candidate, 0, capacity)}
}

func (h *maxHeap) Len() int { return len(h.items) }

// Top returns the worst candidate currently held.
func (h *maxHeap) Top() (candidate, bool) {
	if len(h.items) == 0 {
		return candidate{}, false
	}
	return h.items[0], true
}

// Push inserts a candidate while maintaining the heap invariant.
func (h *maxHeap) Push(c candidate) {
	h.items = append(h.items, c)
	h.siftUp(len(h.items) - 1)
}

// Pop removes and returns the worst candidate.
func (h *maxHeap) Pop() (candidate, bool) {
	n := len(h.items)
	if n == 0 {
		return candidate{}, false
	}
	root := h.items[0]
	last := h.items[n-1]
	h.items = h.items[:n-1]
	if n-1 > 0 {
		h.items[0] = last
		h.siftDown(0)
	}
	return root, true
}

func (h *maxHeap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !worse(h.items[i], h.items[parent]) {
			return
		}
		h.items[i], h.items[parent] = h.items[parent], h.items[i]
		i = parent
	}
}

func (h *maxHeap) siftDown(i int) {
	n := len(h.items)
	for {
		largest := i
		left := 2*i + 1
		right := 2*i + 2
		if left < n && worse(h.items[left], h.items[largest]) {
			largest = left
		}
		if right < n && worse(h.items[right], h.items[largest]) {
			largest = right
		}
		if largest == i {
			return
		}
		h.items[i], h.items[largest] = h.items[largest], h.items[i]
		i = largest
	}
}
