package domain

import "time"

type EventKind string

const (
	EventFileStarted   EventKind = "file-started"
	EventFileCompleted EventKind = "file-completed"
	EventFileFailed    EventKind = "file-failed"
	EventBatchDone     EventKind = "batch-done"
	EventBatchAborted  EventKind = "batch-aborted"
)

// FileEvent is one streaming pipeline update. Consumers must not infer
// group order from event arrival order; OrderIndex is authoritative.
type FileEvent struct {
	Kind      EventKind `json:"kind"`
	SessionID string    `json:"session_id"`
	FileID    string    `json:"file_id,omitempty"`

	OrderIndex int          `json:"order_index,omitempty"`
	Status     FileStatus   `json:"status,omitempty"`
	Error      string       `json:"error,omitempty"`
	GroupKey   string       `json:"group_key,omitempty"`
	Action     AssignAction `json:"action,omitempty"`

	Progress Progress  `json:"progress"`
	At       time.Time `json:"at"`
}
