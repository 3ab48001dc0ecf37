package stream

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToTaskSubscribers(t *testing.T) {
	m := NewManager()
	sub := m.Subscribe(1)
	other := m.Subscribe(2)

	wf := uuid.New()
	m.Publish(Event{Type: EventRunStarted, TaskID: 1, RunID: 10, WorkflowID: wf, Status: "running"})

	select {
	case ev := <-sub.Events:
		assert.Equal(t, EventRunStarted, ev.Type)
		assert.Equal(t, wf, ev.WorkflowID)
		assert.False(t, ev.Timestamp.IsZero())
	default:
		t.Fatal("expected an event")
	}
	assert.Empty(t, other.Events)
}

func TestSubscribeReplaysBuffer(t *testing.T) {
	m := NewManager()
	m.Publish(Event{Type: EventRunStarted, TaskID: 1, RunID: 1})
	m.Publish(Event{Type: EventRunFinished, TaskID: 1, RunID: 1, Status: "completed"})

	sub := m.Subscribe(1)
	require.Len(t, sub.Events, 2)
	assert.Equal(t, EventRunStarted, (<-sub.Events).Type)
	assert.Equal(t, EventRunFinished, (<-sub.Events).Type)
}

func TestBufferIsBounded(t *testing.T) {
	m := NewManager()
	m.bufferLimit = 3
	for i := int64(1); i <= 5; i++ {
		m.Publish(Event{TaskID: 7, RunID: i})
	}

	recent := m.Recent(7)
	require.Len(t, recent, 3)
	assert.Equal(t, int64(3), recent[0].RunID)
	assert.Equal(t, int64(5), recent[2].RunID)
}

func TestUnsubscribeClosesDone(t *testing.T) {
	m := NewManager()
	sub := m.Subscribe(1)
	m.Unsubscribe(sub)

	select {
	case <-sub.Done:
	default:
		t.Fatal("done not closed")
	}
	// second call is a no-op
	m.Unsubscribe(sub)
	assert.Nil(t, m.Recent(1))
}

func TestForget(t *testing.T) {
	m := NewManager()
	sub := m.Subscribe(4)
	m.Publish(Event{TaskID: 4, RunID: 1})

	m.Forget(4)
	_, open := <-sub.Done
	assert.False(t, open)
	assert.Nil(t, m.Recent(4))
}

func TestCleanupOldStreams(t *testing.T) {
	m := NewManager()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	m.Publish(Event{TaskID: 1, Timestamp: now.Add(-2 * time.Hour)})
	m.Publish(Event{TaskID: 2, Timestamp: now})
	held := m.Subscribe(3)
	defer m.Unsubscribe(held)

	m.CleanupOldStreams(time.Hour)
	assert.Nil(t, m.Recent(1))
	assert.Len(t, m.Recent(2), 1)

	m.Publish(Event{TaskID: 3})
	assert.Len(t, m.Recent(3), 1)
}

func TestCloseDisconnectsAll(t *testing.T) {
	m := NewManager()
	a := m.Subscribe(1)
	b := m.Subscribe(2)

	m.Close()
	for _, sub := range []*Subscriber{a, b} {
		select {
		case <-sub.Done:
		default:
			t.Fatalf("subscriber %s still connected", sub.ID)
		}
	}
	// unsubscribing after close must not double-close
	m.Unsubscribe(a)
}
