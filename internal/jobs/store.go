package jobs

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Store interface {
	Create(req WallpaperRequest) (string, error)
	Get(id string) (Job, error)
	Transition(id string, to JobStatus, out Outcome) (Job, error)
	Len() int
}

// InMemoryStore keeps jobs for the lifetime of the process. All access goes
// through one lock and callers only ever receive copies.
type InMemoryStore struct {
	mu    sync.RWMutex
	data  map[string]*Job
	newID func() string
	now   func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		data:  make(map[string]*Job),
		newID: uuid.NewString,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *InMemoryStore) Create(req WallpaperRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	const maxAttempts = 8
	for range maxAttempts {
		id := s.newID()
		if _, taken := s.data[id]; taken || id == "" {
			continue
		}
		s.data[id] = &Job{
			ID:        id,
			Status:    JobStatusPending,
			Request:   req,
			CreatedAt: s.now(),
		}
		return id, nil
	}
	return "", fmt.Errorf("create job: no unused id after %d attempts", maxAttempts)
}

func (s *InMemoryStore) Get(id string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.data[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return *j, nil
}

// Transition moves a job to status to. Completed jobs need a result, failed
// jobs need a message.
func (s *InMemoryStore) Transition(id string, to JobStatus, out Outcome) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.data[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	if !canTransition(j.Status, to) {
		return *j, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, to)
	}
	switch to {
	case JobStatusCompleted:
		if out.Result == "" {
			return *j, fmt.Errorf("%w: completed without result", ErrInvalidTransition)
		}
	case JobStatusFailed:
		if out.Message == "" {
			return *j, fmt.Errorf("%w: failed without message", ErrInvalidTransition)
		}
	}

	next := *j
	now := s.now()
	next.Status = to
	switch to {
	case JobStatusProcessing:
		next.StartedAt = &now
	case JobStatusCompleted:
		next.Result = out.Result
		next.Fallback = out.Fallback
		next.CompletedAt = &now
	case JobStatusFailed:
		next.Message = out.Message
		next.CompletedAt = &now
	}
	s.data[id] = &next
	return next, nil
}

func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
