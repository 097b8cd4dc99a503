package engine

import (
	"sync"

	"github.com/seantiz/dispatch/internal/model"
)

// queue is an unbounded FIFO of accepted requests. push never blocks; pop
// blocks until an item is available or the queue is closed and empty.
type queue struct {
	mu     sync.Mutex
	items  []model.TaskRequest
	closed bool
	ready  chan struct{}
}

func newQueue() *queue {
	return &queue{ready: make(chan struct{}, 1)}
}

// push appends req and reports false if the queue is closed.
func (q *queue) push(req model.TaskRequest) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, req)
	queueDepth.Set(float64(len(q.items)))

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return true
}

func (q *queue) pop() (model.TaskRequest, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			req := q.items[0]
			q.items[0] = model.TaskRequest{}
			q.items = q.items[1:]
			queueDepth.Set(float64(len(q.items)))
			q.mu.Unlock()
			return req, true
		}
		if q.closed {
			q.mu.Unlock()
			return model.TaskRequest{}, false
		}
		q.mu.Unlock()

		<-q.ready
	}
}

// close stops intake. Items already queued are still handed out by pop.
func (q *queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.ready)
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
