// Package events provides an event system for worker pool and request notifications.
package events

import "time"

// EventType represents the type of event
type EventType string

const (
	// EventServerStarted is emitted when the listener is bound
	EventServerStarted EventType = "server_started"
	// EventServerStopping is emitted when shutdown begins
	EventServerStopping EventType = "server_stopping"
	// EventRequestServed is emitted after a response has been written
	EventRequestServed EventType = "request_served"
	// EventConnectionFailed is emitted when a connection ends on a socket error
	EventConnectionFailed EventType = "connection_failed"
	// EventJobPanic is emitted when a worker recovers from a panicking job
	EventJobPanic EventType = "job_panic"
	// EventWorkerExit is emitted when a worker consumes its terminate message
	EventWorkerExit EventType = "worker_exit"
	// EventChaosAttack is emitted when a fault is injected into a connection job or worker
	EventChaosAttack EventType = "chaos_attack"
)

// Event represents a server event
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source,omitempty"`
	Data      EventData `json:"data,omitempty"`
}

// EventData contains event-specific data
type EventData struct {
	Addr      string  `json:"addr,omitempty"`
	Method    string  `json:"method,omitempty"`
	Path      string  `json:"path,omitempty"`
	Status    int     `json:"status,omitempty"`
	LatencyMs float64 `json:"latency_ms,omitempty"`
	WorkerID  int     `json:"worker_id,omitempty"`
	Error     string  `json:"error,omitempty"`
	Attack    string  `json:"attack,omitempty"`
	DelayMs   float64 `json:"delay_ms,omitempty"`
}

// NewServerStartedEvent creates a server started event
func NewServerStartedEvent(addr string) Event {
	return Event{
		Type:      EventServerStarted,
		Timestamp: time.Now(),
		Data: EventData{
			Addr: addr,
		},
	}
}

// NewServerStoppingEvent creates a server stopping event
func NewServerStoppingEvent() Event {
	return Event{
		Type:      EventServerStopping,
		Timestamp: time.Now(),
	}
}

// NewRequestServedEvent creates a request served event
func NewRequestServedEvent(connID, method, path string, status int, latency time.Duration) Event {
	return Event{
		Type:      EventRequestServed,
		Timestamp: time.Now(),
		Source:    connID,
		Data: EventData{
			Method:    method,
			Path:      path,
			Status:    status,
			LatencyMs: float64(latency.Microseconds()) / 1000,
		},
	}
}

// NewConnectionFailedEvent creates a connection failed event
func NewConnectionFailedEvent(connID string, err error) Event {
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	return Event{
		Type:      EventConnectionFailed,
		Timestamp: time.Now(),
		Source:    connID,
		Data: EventData{
			Error: errMsg,
		},
	}
}

// NewJobPanicEvent creates a job panic event
func NewJobPanicEvent(workerID int, recovered any) Event {
	return Event{
		Type:      EventJobPanic,
		Timestamp: time.Now(),
		Source:    workerSource(workerID),
		Data: EventData{
			WorkerID: workerID,
			Error:    fmtAny(recovered),
		},
	}
}

// NewWorkerExitEvent creates a worker exit event
func NewWorkerExitEvent(workerID int) Event {
	return Event{
		Type:      EventWorkerExit,
		Timestamp: time.Now(),
		Source:    workerSource(workerID),
		Data: EventData{
			WorkerID: workerID,
		},
	}
}

// NewChaosAttackEvent creates a chaos attack event
func NewChaosAttackEvent(attack string) Event {
	return Event{
		Type:      EventChaosAttack,
		Timestamp: time.Now(),
		Source:    "chaos",
		Data: EventData{
			Attack: attack,
		},
	}
}

// NewChaosAttackEventWithDelay creates a chaos attack event for an injected delay
func NewChaosAttackEventWithDelay(attack string, delay time.Duration) Event {
	event := NewChaosAttackEvent(attack)
	event.Data.DelayMs = float64(delay.Microseconds()) / 1000
	return event
}
