// Package events provides a small pub/sub bus for review-run lifecycle
// events. Subscribers get buffered channels; a slow subscriber drops
// events rather than stalling the orchestration loop.
package events

import (
	"sync"
	"time"
)

// Event is the base interface for all run events.
type Event interface {
	EventType() string
	Timestamp() time.Time
	RunID() string
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	Type string    `json:"type"`
	Time time.Time `json:"timestamp"`
	Run  string    `json:"run_id"`
}

func (e BaseEvent) EventType() string    { return e.Type }
func (e BaseEvent) Timestamp() time.Time { return e.Time }
func (e BaseEvent) RunID() string        { return e.Run }

// Event type constants.
const (
	TypeTurnStarted   = "turn_started"
	TypeTurnCompleted = "turn_completed"
	TypeRunCompleted  = "run_completed"
)

// TurnStartedEvent fires before an agent turn executes.
type TurnStartedEvent struct {
	BaseEvent
	Agent     string `json:"agent"`
	Iteration int    `json:"iteration"`
}

// TurnCompletedEvent fires after an agent turn is merged into run state.
type TurnCompletedEvent struct {
	BaseEvent
	Agent        string  `json:"agent"`
	Iteration    int     `json:"iteration"`
	Success      bool    `json:"success"`
	FindingCount int     `json:"finding_count"`
	Cost         float64 `json:"cost"`
	Tokens       int     `json:"tokens"`
	NextAgent    string  `json:"next_agent,omitempty"`
}

// RunCompletedEvent fires once when a run reaches a terminal state.
type RunCompletedEvent struct {
	BaseEvent
	Reason     string  `json:"reason"`
	Status     string  `json:"status"`
	Iterations int     `json:"iterations"`
	TotalCost  float64 `json:"total_cost"`
}

// NewTurnStarted creates a turn-started event.
func NewTurnStarted(runID, agent string, iteration int) TurnStartedEvent {
	return TurnStartedEvent{
		BaseEvent: BaseEvent{Type: TypeTurnStarted, Time: time.Now(), Run: runID},
		Agent:     agent,
		Iteration: iteration,
	}
}

// NewTurnCompleted creates a turn-completed event.
func NewTurnCompleted(runID, agent string, iteration int, success bool, findings int, cost float64, tokens int, next string) TurnCompletedEvent {
	return TurnCompletedEvent{
		BaseEvent:    BaseEvent{Type: TypeTurnCompleted, Time: time.Now(), Run: runID},
		Agent:        agent,
		Iteration:    iteration,
		Success:      success,
		FindingCount: findings,
		Cost:         cost,
		Tokens:       tokens,
		NextAgent:    next,
	}
}

// NewRunCompleted creates a run-completed event.
func NewRunCompleted(runID, reason, status string, iterations int, totalCost float64) RunCompletedEvent {
	return RunCompletedEvent{
		BaseEvent:  BaseEvent{Type: TypeRunCompleted, Time: time.Now(), Run: runID},
		Reason:     reason,
		Status:     status,
		Iterations: iterations,
		TotalCost:  totalCost,
	}
}

// Bus provides pub/sub with per-subscriber buffering.
type Bus struct {
	mu          sync.RWMutex
	subscribers []chan Event
	bufferSize  int
	closed      bool
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{bufferSize: 64}
}

// Subscribe registers a new subscriber and returns its channel.
func (b *Bus) Subscribe() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, b.bufferSize)
	if b.closed {
		close(ch)
		return ch
	}
	b.subscribers = append(b.subscribers, ch)
	return ch
}

// Publish delivers the event to all subscribers. Full subscriber buffers
// drop the event; publishing never blocks the caller.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subscribers {
		select {
		case ch <- e:
		default:
		}
	}
}

// Close shuts the bus down and closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subscribers {
		close(ch)
	}
	b.subscribers = nil
}
