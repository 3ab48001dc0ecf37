package stream

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType identifies what happened to a run
type EventType string

const (
	EventRunStarted  EventType = "run_started"
	EventRunFinished EventType = "run_finished"
)

const (
	defaultBufferLimit = 50
	subscriberBuffer   = 64
)

// Event is a run lifecycle notification for one task
type Event struct {
	Type       EventType `json:"type"`
	TaskID     int64     `json:"task_id"`
	RunID      int64     `json:"run_id"`
	WorkflowID uuid.UUID `json:"workflow_id"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Subscriber receives events for a single task
type Subscriber struct {
	ID     string
	TaskID int64
	Events chan Event
	Done   chan struct{}
}

type taskStream struct {
	subscribers map[string]*Subscriber
	buffer      []Event
	lastEvent   time.Time
}

// Manager fans run events out to subscribers, keyed by task
type Manager struct {
	mu          sync.Mutex
	streams     map[int64]*taskStream
	bufferLimit int
	now         func() time.Time
}

// NewManager creates a new stream manager
func NewManager() *Manager {
	return &Manager{
		streams:     make(map[int64]*taskStream),
		bufferLimit: defaultBufferLimit,
		now:         time.Now,
	}
}

func (m *Manager) stream(taskID int64) *taskStream {
	s, ok := m.streams[taskID]
	if !ok {
		s = &taskStream{subscribers: make(map[string]*Subscriber)}
		m.streams[taskID] = s
	}
	return s
}

// Subscribe registers a subscriber for taskID. Buffered events are replayed first.
func (m *Manager) Subscribe(taskID int64) *Subscriber {
	sub := &Subscriber{
		ID:     uuid.NewString(),
		TaskID: taskID,
		Events: make(chan Event, subscriberBuffer),
		Done:   make(chan struct{}),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.stream(taskID)
	for _, ev := range s.buffer {
		select {
		case sub.Events <- ev:
		default:
		}
	}
	s.subscribers[sub.ID] = sub
	return sub
}

// Unsubscribe removes sub and closes its Done channel
func (m *Manager) Unsubscribe(sub *Subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.streams[sub.TaskID]
	if !ok {
		return
	}
	if _, ok := s.subscribers[sub.ID]; ok {
		close(sub.Done)
		delete(s.subscribers, sub.ID)
	}
	if len(s.subscribers) == 0 && len(s.buffer) == 0 {
		delete(m.streams, sub.TaskID)
	}
}

// Publish buffers ev and delivers it to every subscriber of its task.
// Slow subscribers miss events rather than block the publisher.
func (m *Manager) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = m.now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.stream(ev.TaskID)
	if len(s.buffer) >= m.bufferLimit {
		s.buffer = s.buffer[1:]
	}
	s.buffer = append(s.buffer, ev)
	s.lastEvent = ev.Timestamp

	for _, sub := range s.subscribers {
		select {
		case sub.Events <- ev:
		default:
		}
	}
}

// Recent returns a copy of the buffered events for taskID, oldest first
func (m *Manager) Recent(taskID int64) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.streams[taskID]
	if !ok {
		return nil
	}
	out := make([]Event, len(s.buffer))
	copy(out, s.buffer)
	return out
}

// Forget drops a task's buffer and disconnects its subscribers
func (m *Manager) Forget(taskID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.streams[taskID]
	if !ok {
		return
	}
	for id, sub := range s.subscribers {
		close(sub.Done)
		delete(s.subscribers, id)
	}
	delete(m.streams, taskID)
}

// CleanupOldStreams removes streams with no subscribers and no events newer than maxAge
func (m *Manager) CleanupOldStreams(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-maxAge)
	for taskID, s := range m.streams {
		if len(s.subscribers) == 0 && s.lastEvent.Before(cutoff) {
			delete(m.streams, taskID)
		}
	}
}

// Close disconnects every subscriber. Publishing after Close still buffers.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.streams {
		for id, sub := range s.subscribers {
			close(sub.Done)
			delete(s.subscribers, id)
		}
	}
}
