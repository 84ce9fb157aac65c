package spindle

import (
	"context"
	"sync"
)

// RequestQueue stores pending requests per spider. Pop must be safe under
// concurrent pops from multiple workers sharing a spider name; a popped
// request is delivered at most once.
type RequestQueue interface {
	// Pop removes and returns one pending request, or (nil, nil) when the
	// queue is empty.
	Pop(ctx context.Context, spider string) (*Request, error)
	Store(ctx context.Context, spider string, req Request) error
}

// ItemSink durably records extracted items per spider.
type ItemSink interface {
	Store(ctx context.Context, spider string, item Map) error
}

// MemoryQueue is a FIFO RequestQueue held in process memory, for local runs
// and tests. Production crawls use MongoStore.
type MemoryQueue struct {
	mu      sync.Mutex
	pending map[string][]Request
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{pending: make(map[string][]Request)}
}

func (q *MemoryQueue) Pop(ctx context.Context, spider string) (*Request, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	queue := q.pending[spider]
	if len(queue) == 0 {
		return nil, nil
	}
	req := queue[0]
	q.pending[spider] = queue[1:]
	return &req, nil
}

func (q *MemoryQueue) Store(ctx context.Context, spider string, req Request) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending[spider] = append(q.pending[spider], req)
	return nil
}

// Len reports the number of pending requests for a spider.
func (q *MemoryQueue) Len(spider string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending[spider])
}

// MemorySink collects items in process memory.
type MemorySink struct {
	mu    sync.Mutex
	items map[string][]Map
}

func NewMemorySink() *MemorySink {
	return &MemorySink{items: make(map[string][]Map)}
}

func (s *MemorySink) Store(ctx context.Context, spider string, item Map) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[spider] = append(s.items[spider], item)
	return nil
}

// Items returns a copy of the items collected for a spider.
func (s *MemorySink) Items(spider string) []Map {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]Map, len(s.items[spider]))
	copy(items, s.items[spider])
	return items
}

// MultiSink fans every item out to all sinks in order, stopping on the
// first error.
type MultiSink []ItemSink

func (m MultiSink) Store(ctx context.Context, spider string, item Map) error {
	for _, sink := range m {
		if err := sink.Store(ctx, spider, item); err != nil {
			return err
		}
	}
	return nil
}
