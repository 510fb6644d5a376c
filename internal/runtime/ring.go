package runtime

import "sync"

// LogPage is the result of a cursor read against the ring.
type LogPage struct {
	Lines       []string `json:"logs"`
	StartCursor int      `json:"start_cursor"`
	EndCursor   int      `json:"end_cursor"`
	Truncated   bool     `json:"truncated"`
	HasMore     bool     `json:"has_more"`
}

// LogRing is a bounded line buffer with a monotonically increasing global
// produced-count. Cursors index into that count, so a reader can detect when
// its position has fallen off the retained window.
type LogRing struct {
	mu       sync.Mutex
	lines    []string
	capacity int
	total    int
}

// NewLogRing creates a ring retaining at most capacity lines.
func NewLogRing(capacity int) *LogRing {
	if capacity <= 0 {
		capacity = 1000
	}
	return &LogRing{capacity: capacity}
}

// Append adds one line, evicting the oldest when full. Every append
// increments the produced-count by one.
func (r *LogRing) Append(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
	if len(r.lines) > r.capacity {
		r.lines = r.lines[len(r.lines)-r.capacity:]
	}
	r.total++
}

// Reset clears the retained lines and the produced-count.
func (r *LogRing) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = nil
	r.total = 0
}

// Total returns the produced-count.
func (r *LogRing) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

// Read returns a window of lines with cursor metadata. A nil cursor means
// "the last limit lines". A cursor older than the retained window sets
// Truncated and starts at the oldest retained line.
func (r *LogRing) Read(cursor *int, limit int) LogPage {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}
	oldest := r.total - len(r.lines)

	if cursor == nil {
		start := r.total - limit
		if start < oldest {
			start = oldest
		}
		return LogPage{
			Lines:       r.copyRange(start, r.total, oldest),
			StartCursor: start,
			EndCursor:   r.total,
			HasMore:     false,
		}
	}

	start := *cursor
	truncated := false
	if start < oldest {
		start = oldest
		truncated = true
	}
	end := start + limit
	if end > r.total {
		end = r.total
	}
	if start > r.total {
		start = r.total
		end = r.total
	}
	return LogPage{
		Lines:       r.copyRange(start, end, oldest),
		StartCursor: start,
		EndCursor:   end,
		Truncated:   truncated,
		HasMore:     end < r.total,
	}
}

func (r *LogRing) copyRange(start, end, oldest int) []string {
	out := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, r.lines[i-oldest])
	}
	return out
}
