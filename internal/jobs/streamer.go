package jobs

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Subscriber is one websocket watching a job. Writes are serialized so the
// gateway and the worker can both push to it.
type Subscriber struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *Subscriber) WriteJSON(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

func (s *Subscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}

// EventStreamer fans job status changes out to websocket subscribers
type EventStreamer struct {
	mu          sync.RWMutex
	subscribers map[string][]*Subscriber
}

// NewEventStreamer creates a new EventStreamer
func NewEventStreamer() *EventStreamer {
	return &EventStreamer{
		subscribers: make(map[string][]*Subscriber),
	}
}

// Subscribe adds a new subscriber to a job's event stream
func (es *EventStreamer) Subscribe(jobID string, conn *websocket.Conn) *Subscriber {
	sub := &Subscriber{conn: conn}
	es.mu.Lock()
	defer es.mu.Unlock()
	es.subscribers[jobID] = append(es.subscribers[jobID], sub)
	return sub
}

// Unsubscribe removes a subscriber from a job's event stream
func (es *EventStreamer) Unsubscribe(jobID string, sub *Subscriber) {
	es.mu.Lock()
	defer es.mu.Unlock()
	subscribers := es.subscribers[jobID]
	for i, s := range subscribers {
		if s == sub {
			es.subscribers[jobID] = append(subscribers[:i], subscribers[i+1:]...)
			break
		}
	}
	if len(es.subscribers[jobID]) == 0 {
		delete(es.subscribers, jobID)
	}
}

// Broadcast sends a job snapshot to all subscribers of the job. Subscribers
// that fail to receive it are dropped.
func (es *EventStreamer) Broadcast(job Job) {
	es.mu.RLock()
	subscribers := append([]*Subscriber(nil), es.subscribers[job.ID]...)
	es.mu.RUnlock()
	for _, sub := range subscribers {
		if err := sub.WriteJSON(job); err != nil {
			sub.Close()
			es.Unsubscribe(job.ID, sub)
		}
	}
}

// Close closes all connections for a job
func (es *EventStreamer) Close(jobID string) {
	es.mu.Lock()
	subscribers := es.subscribers[jobID]
	delete(es.subscribers, jobID)
	es.mu.Unlock()
	for _, sub := range subscribers {
		sub.Close()
	}
}

// Subscribers reports how many connections watch a job.
func (es *EventStreamer) Subscribers(jobID string) int {
	es.mu.RLock()
	defer es.mu.RUnlock()
	return len(es.subscribers[jobID])
}
