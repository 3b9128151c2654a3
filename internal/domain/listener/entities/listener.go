package entities

import "time"

// ListenerState is the lifecycle state of a listener task
type ListenerState string

const (
	StateStarting       ListenerState = "starting"
	StateAuthenticating ListenerState = "authenticating"
	StateResolving      ListenerState = "resolving"
	StateListening      ListenerState = "listening"
	StateStopping       ListenerState = "stopping"
	StateEnded          ListenerState = "ended"
	StateFailed         ListenerState = "failed"
)

// IsTerminal returns true if no further transition is possible
func (s ListenerState) IsTerminal() bool {
	return s == StateEnded || s == StateFailed
}

// Results of control operations
const (
	StatusStarted        = "started"
	StatusAlreadyRunning = "already_running"
	StatusStopped        = "stopped"
	StatusNotRunning     = "not_running"
)

// ListenerStatus is a snapshot of an account's listener
type ListenerStatus struct {
	AccountID string
	Running   bool
	TaskID    string
	State     ListenerState
	Groups    []GroupRef
	Resolved  int
	StartedAt time.Time
	LastError string
}
