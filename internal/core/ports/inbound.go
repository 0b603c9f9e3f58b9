package ports

import (
	"context"

	"github.com/radonlabs/clindoc/internal/core/domain"
)

// Upload is one raw file handed to the ingestor.
type Upload struct {
	Filename string
	Payload  []byte
}

// BatchIngestor is the inbound contract for session creation and file
// intake.
type BatchIngestor interface {
	CreateSession(ctx context.Context, name string) (*domain.BatchSession, error)
	AddFiles(ctx context.Context, sessionID string, uploads []Upload) (added int, skipped int, err error)
}

// BatchSequencer re-orders a session's files.
type BatchSequencer interface {
	Reorder(ctx context.Context, sessionID string, method domain.SortMethod) (*domain.BatchSession, error)
	ManualOrder(ctx context.Context, sessionID string, fileIDs []string) (*domain.BatchSession, error)
}

// BatchProcessor runs the analysis pipeline for a session.
type BatchProcessor interface {
	Process(ctx context.Context, sessionID string) (<-chan domain.FileEvent, error)
	Abort(sessionID string)
}

// SessionReader is the inbound read model.
type SessionReader interface {
	Get(ctx context.Context, id string) (*domain.BatchSession, error)
	Groups(ctx context.Context, id string) ([]domain.ReportGroup, error)
}

// GroupResolver applies explicit user decisions: block resolution,
// classification/hint overrides, session teardown.
type GroupResolver interface {
	Resolve(ctx context.Context, sessionID, groupKey string, resolution domain.Resolution) (*domain.BatchSession, error)
	PinClassification(ctx context.Context, sessionID, fileID string, class domain.DocumentClass) error
	PinGroupHint(ctx context.Context, sessionID, fileID, hint string) error
	DeleteSession(ctx context.Context, sessionID string) error
}
