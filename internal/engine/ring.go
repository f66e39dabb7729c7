package engine

// RecentWindow is a fixed-capacity ring of recently played voice-line IDs.
// Pushing at capacity evicts the oldest entry. Not goroutine-safe; owners
// guard it with their own lock.
type RecentWindow struct {
	buf  []string
	head int // index of the oldest entry
	n    int
}

// NewRecentWindow creates a window holding up to capacity IDs.
func NewRecentWindow(capacity int) *RecentWindow {
	if capacity < 1 {
		capacity = 1
	}
	return &RecentWindow{buf: make([]string, capacity)}
}

// Push appends id, evicting the oldest entry when full.
func (w *RecentWindow) Push(id string) {
	if w.n < len(w.buf) {
		w.buf[(w.head+w.n)%len(w.buf)] = id
		w.n++
		return
	}
	w.buf[w.head] = id
	w.head = (w.head + 1) % len(w.buf)
}

// Items returns the window contents, oldest first.
func (w *RecentWindow) Items() []string {
	out := make([]string, 0, w.n)
	for i := 0; i < w.n; i++ {
		out = append(out, w.buf[(w.head+i)%len(w.buf)])
	}
	return out
}

// Resize changes capacity, keeping the newest entries.
func (w *RecentWindow) Resize(capacity int) {
	if capacity < 1 {
		capacity = 1
	}
	if capacity == len(w.buf) {
		return
	}
	items := w.Items()
	if len(items) > capacity {
		items = items[len(items)-capacity:]
	}
	w.buf = make([]string, capacity)
	w.head = 0
	w.n = 0
	for _, id := range items {
		w.Push(id)
	}
}
