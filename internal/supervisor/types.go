package supervisor

import "llamad/internal/catalog"

// Status is the lifecycle state of the session.
type Status string

const (
	StatusTerminated Status = "Terminated"
	StatusLoading    Status = "Loading"
	StatusIdle       Status = "Idle"
	StatusProcessing Status = "Processing"
)

// Ready reports whether the session can serve requests without a load.
func (s Status) Ready() bool { return s == StatusIdle || s == StatusProcessing }

// Meta describes the loaded session. It is set on Loading and cleared on Terminated.
type Meta struct {
	Model       string             `json:"model"`
	Personality string             `json:"personality"`
	Definition  catalog.Definition `json:"meta"`
}

// StatusEvent is delivered to subscribers on every status change.
type StatusEvent struct {
	Status Status
	Meta   *Meta
}

// Snapshot is a read-only projection of the session.
type Snapshot struct {
	Status     Status
	Meta       *Meta
	QueueDepth int
	Pid        int
}
