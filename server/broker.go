package server

import (
	"log/slog"
	"sync"
	"time"
)

// SceneTopic carries object_created, object_modified and object_deleted
// events.
const SceneTopic = "scene"

type Event struct {
	Topic     string         `json:"topic"`
	Type      string         `json:"type"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

// Subscriber receives published events. Send is called with the broker's read
// lock held and must not block.
type Subscriber interface {
	ID() string
	Send(Event) error
}

// Broker fans events out to topic subscribers. A nil *Broker drops everything.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[Subscriber]struct{} // Map topic to hashset of subscribers
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[Subscriber]struct{}),
	}
}

func (b *Broker) Subscribe(topic string, s Subscriber) {
	slog.Debug("Subscribing", "topic", topic, "subscriber", s.ID())
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[topic] == nil {
		b.subs[topic] = make(map[Subscriber]struct{})
	}
	b.subs[topic][s] = struct{}{}
}

// Publish delivers ev to every subscriber of its topic and returns how many
// accepted it. A zero Timestamp is filled in.
func (b *Broker) Publish(ev Event) int {
	if b == nil {
		return 0
	}
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().Unix()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	sent := 0
	for s := range b.subs[ev.Topic] {
		if err := s.Send(ev); err != nil {
			slog.Warn("There was an error publishing an event to a subscriber", "type", ev.Type, "topic", ev.Topic, "subscriber", s.ID(), "error", err.Error())
			continue
		}
		sent++
	}
	slog.Debug("Event published", "type", ev.Type, "topic", ev.Topic, "subscribers", sent)
	return sent
}

func (b *Broker) Unsubscribe(topic string, s Subscriber) {
	slog.Debug("Unsubscribing", "topic", topic, "subscriber", s.ID())
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subs[topic]
	if !ok {
		return
	}
	if _, exists := subs[s]; !exists {
		slog.Warn("Did not find subscriber in topic to unsubscribe", "topic", topic, "subscriber", s.ID())
	}
	delete(subs, s)
	if len(subs) == 0 {
		delete(b.subs, topic)
	}
}

// Subs returns a copy of the subscribers of topic.
func (b *Broker) Subs(topic string) map[Subscriber]struct{} {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(map[Subscriber]struct{}, len(b.subs[topic]))
	for s := range b.subs[topic] {
		out[s] = struct{}{}
	}
	return out
}
