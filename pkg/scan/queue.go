package scan

import "sync"

// Queue is an unbounded FIFO of messages. Producers push from any
// goroutine; the tree owner pops bounded batches.
type Queue struct {
	mu    sync.Mutex
	items []Message
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Push appends messages to the queue.
func (q *Queue) Push(msgs ...Message) {
	q.mu.Lock()
	q.items = append(q.items, msgs...)
	q.mu.Unlock()
}

// Len returns the number of queued messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Pop removes and returns up to n messages in arrival order.
func (q *Queue) Pop(n int) []Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n <= 0 || len(q.items) == 0 {
		return nil
	}
	n = min(n, len(q.items))
	out := make([]Message, n)
	copy(out, q.items)
	rest := copy(q.items, q.items[n:])
	clear(q.items[rest:])
	q.items = q.items[:rest]
	return out
}
