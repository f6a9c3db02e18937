package server

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSubscriber struct {
	id      string
	mu      sync.Mutex
	events  []Event
	sendErr error
}

func newMockSubscriber(id string) *mockSubscriber {
	return &mockSubscriber{id: id}
}

func (m *mockSubscriber) ID() string { return m.id }

func (m *mockSubscriber) Send(ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.events = append(m.events, ev)
	return nil
}

func (m *mockSubscriber) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

func TestBroker_Subscribe(t *testing.T) {
	broker := NewBroker()
	sub := newMockSubscriber("sub-1")

	broker.Subscribe(SceneTopic, sub)
	broker.Subscribe(SceneTopic, sub)

	subs := broker.Subs(SceneTopic)
	require.Len(t, subs, 1, "duplicate subscription is collapsed")
	assert.Contains(t, subs, Subscriber(sub))
}

func TestBroker_Publish(t *testing.T) {
	broker := NewBroker()
	a, b, other := newMockSubscriber("a"), newMockSubscriber("b"), newMockSubscriber("other")
	broker.Subscribe(SceneTopic, a)
	broker.Subscribe(SceneTopic, b)
	broker.Subscribe("other", other)

	sent := broker.Publish(Event{Topic: SceneTopic, Type: "object_created", Data: map[string]any{"name": "pCube1"}})
	assert.Equal(t, 2, sent)

	require.Len(t, a.Events(), 1)
	ev := a.Events()[0]
	assert.Equal(t, "object_created", ev.Type)
	assert.Equal(t, "pCube1", ev.Data["name"])
	assert.NotZero(t, ev.Timestamp)
	assert.Len(t, b.Events(), 1)
	assert.Empty(t, other.Events())
}

func TestBroker_PublishNoSubscribers(t *testing.T) {
	assert.Equal(t, 0, NewBroker().Publish(Event{Topic: SceneTopic, Type: "object_deleted"}))

	var nilBroker *Broker
	assert.Equal(t, 0, nilBroker.Publish(Event{Topic: SceneTopic}))
}

func TestBroker_PublishSendError(t *testing.T) {
	broker := NewBroker()
	failing, ok := newMockSubscriber("failing"), newMockSubscriber("ok")
	failing.sendErr = errors.New("buffer full")
	broker.Subscribe(SceneTopic, failing)
	broker.Subscribe(SceneTopic, ok)

	assert.Equal(t, 1, broker.Publish(Event{Topic: SceneTopic, Type: "object_modified"}))
	assert.Len(t, ok.Events(), 1)
}

func TestBroker_Unsubscribe(t *testing.T) {
	broker := NewBroker()
	a, b := newMockSubscriber("a"), newMockSubscriber("b")
	broker.Subscribe(SceneTopic, a)
	broker.Subscribe(SceneTopic, b)

	broker.Unsubscribe(SceneTopic, a)
	assert.Len(t, broker.Subs(SceneTopic), 1)

	broker.Unsubscribe(SceneTopic, b)
	assert.Empty(t, broker.Subs(SceneTopic))
	broker.mu.RLock()
	_, exists := broker.subs[SceneTopic]
	broker.mu.RUnlock()
	assert.False(t, exists, "empty topic is removed")

	// Unknown topic and unknown subscriber are ignored.
	broker.Unsubscribe("missing", a)
	broker.Subscribe(SceneTopic, b)
	broker.Unsubscribe(SceneTopic, a)
	assert.Len(t, broker.Subs(SceneTopic), 1)
}

func TestBroker_Concurrent(t *testing.T) {
	broker := NewBroker()
	var wg sync.WaitGroup
	subs := make([]*mockSubscriber, 10)
	for i := range subs {
		subs[i] = newMockSubscriber(fmt.Sprintf("sub-%d", i))
	}

	for i := range subs {
		wg.Add(2)
		go func(s *mockSubscriber) {
			defer wg.Done()
			broker.Subscribe(SceneTopic, s)
		}(subs[i])
		go func() {
			defer wg.Done()
			broker.Publish(Event{Topic: SceneTopic, Type: "object_created"})
		}()
	}
	wg.Wait()

	assert.Len(t, broker.Subs(SceneTopic), len(subs))
	assert.Equal(t, len(subs), broker.Publish(Event{Topic: SceneTopic, Type: "object_deleted"}))
}
