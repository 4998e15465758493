package queue

import (
	"context"
	"strconv"
	"sync"
)

// InMemoryQueue implements the transport for unit tests, with the same lease
// semantics: a dequeued message is invisible until deleted or released.
type InMemoryQueue struct {
	mu     sync.Mutex
	nextID int64
	order  []string
	byID   map[string]*memoryEntry
}

type memoryEntry struct {
	msg    Message
	leased bool
}

func NewMemory() *InMemoryQueue {
	return &InMemoryQueue{byID: make(map[string]*memoryEntry)}
}

func (q *InMemoryQueue) Enqueue(_ context.Context, msg Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextID++
	id := strconv.FormatInt(q.nextID, 10)
	msg.ID = id
	msg.Deliveries = 0
	q.order = append(q.order, id)
	q.byID[id] = &memoryEntry{msg: msg}
	return nil
}

func (q *InMemoryQueue) Dequeue(_ context.Context, max int64) ([]Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []Message
	for _, id := range q.order {
		if int64(len(out)) >= max {
			break
		}
		entry, ok := q.byID[id]
		if !ok || entry.leased {
			continue
		}
		entry.leased = true
		entry.msg.Deliveries++
		out = append(out, entry.msg)
	}
	return out, nil
}

func (q *InMemoryQueue) Delete(_ context.Context, msgID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.byID, msgID)
	return nil
}

func (q *InMemoryQueue) ResetVisibility(_ context.Context, msgID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if entry, ok := q.byID[msgID]; ok {
		entry.leased = false
	}
	return nil
}

// Len reports how many messages remain, leased or not.
func (q *InMemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.byID)
}
