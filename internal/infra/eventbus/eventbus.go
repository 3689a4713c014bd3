// Package eventbus is an in-process publish/subscribe bus for chat turn
// outcomes. Publishing never blocks: a full subscriber buffer drops the event
// and bumps the Dropped counter. Nothing is persisted.
package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Topics published by the chat orchestrator.
const (
	TopicTurnCompleted = "chat.turn.completed"
	TopicTurnFailed    = "chat.turn.failed"
)

// Event is a single published message.
type Event struct {
	Topic   string
	Payload any
}

// TurnCompleted is the payload of TopicTurnCompleted.
type TurnCompleted struct {
	BusinessID   string
	AgentID      string
	ClientID     string
	PromptTokens int
	// Messages appended by the turn (user + assistant).
	Messages   int
	Fallback   bool
	OccurredAt time.Time
}

// TurnFailed is the payload of TopicTurnFailed.
type TurnFailed struct {
	BusinessID string
	AgentID    string
	ClientID   string
	Step       string
	Err        string
	// Messages appended before the failure (1 or 2).
	Messages   int
	OccurredAt time.Time
}

// Publisher is the producer side, used by services.
type Publisher interface {
	Publish(topic string, payload any)
}

// EventBus is the interface for publishing and subscribing to topics.
type EventBus interface {
	Publisher
	Subscribe(topic string) <-chan Event
}

const defaultBufferSize = 256

// Bus is the in-memory implementation of EventBus.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]chan Event
	closed      bool
	dropped     atomic.Int64
}

var _ EventBus = (*Bus)(nil)

// New returns a new in-memory Bus.
func New() *Bus {
	return &Bus{subscribers: make(map[string][]chan Event)}
}

// Subscribe registers a subscriber for topic. The caller must drain the
// channel; it is closed by Close.
func (b *Bus) Subscribe(topic string) <-chan Event {
	ch := make(chan Event, defaultBufferSize)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subscribers[topic] = append(b.subscribers[topic], ch)
	return ch
}

// Publish sends an Event to all subscribers of topic without blocking.
func (b *Bus) Publish(topic string, payload any) {
	evt := Event{Topic: topic, Payload: payload}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subscribers[topic] {
		select {
		case ch <- evt:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped reports how many deliveries were skipped because a buffer was full.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// Close closes every subscriber channel. Later publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, subs := range b.subscribers {
		for _, ch := range subs {
			close(ch)
		}
	}
	b.subscribers = nil
}
