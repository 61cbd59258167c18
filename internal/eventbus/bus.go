// Package eventbus is a small in-process fanout bus.
//
// Publishers never block: a subscriber whose buffer is full misses the event.
// That trade keeps the engine's scan loop independent of slow consumers.
package eventbus

import (
	"sync"
	"time"
)

// Topics published by the engine.
const (
	TopicReminderScheduled = "reminder.scheduled"
	TopicReminderCancelled = "reminder.cancelled"
	TopicReminderFired     = "reminder.fired"
	TopicReminderMissed    = "reminder.missed"
	TopicReminderSnoozed   = "reminder.snoozed"
	TopicHabitCompleted    = "habit.completed"
)

type Event struct {
	Topic string
	At    time.Time
	Data  any
}

type subscriber struct {
	topics map[string]bool // nil means all topics
	ch     chan Event
}

type Bus struct {
	mu     sync.Mutex
	closed bool
	subs   map[int]*subscriber
	nextID int
}

func New() *Bus {
	return &Bus{subs: make(map[int]*subscriber)}
}

// Subscribe registers a buffered channel for the given topics (none means
// all). The returned cancel func unregisters and closes the channel; it is
// safe to call more than once.
func (b *Bus) Subscribe(buffer int, topics ...string) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	sub := &subscriber{ch: make(chan Event, buffer)}
	if len(topics) > 0 {
		sub.topics = make(map[string]bool, len(topics))
		for _, t := range topics {
			sub.topics[t] = true
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.ch)
		return sub.ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = sub

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if s, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(s.ch)
		}
	}
	return sub.ch, cancel
}

// Publish delivers to every matching subscriber without blocking. Sends and
// channel closes both happen under the bus lock, so a publish can never race
// a cancel into a send on a closed channel.
func (b *Bus) Publish(topic string, data any) {
	ev := Event{Topic: topic, At: time.Now(), Data: data}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs {
		if sub.topics != nil && !sub.topics[topic] {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

// Close unregisters and closes every subscriber channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
}
