package ports

import (
	"context"
	"io"

	"github.com/radonlabs/clindoc/internal/core/domain"
)

// SessionRepository persists batch session metadata. Raw file bytes live
// in ObjectStorage; only metadata must survive a reload.
type SessionRepository interface {
	Create(ctx context.Context, session *domain.BatchSession) error
	Get(ctx context.Context, id string) (*domain.BatchSession, error)
	Save(ctx context.Context, session *domain.BatchSession) error
	UpdateStatus(ctx context.Context, id string, status domain.SessionStatus, progress domain.Progress) error
	Delete(ctx context.Context, id string) error
}

// ObjectStorage stores raw upload payloads.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// MessageQueue moves batch work, abort requests, and per-file completion
// events between the API and the worker.
type MessageQueue interface {
	PublishBatchQueued(ctx context.Context, sessionID string) error
	SubscribeBatchQueued(ctx context.Context, handler func(context.Context, string) error) error
	PublishAbortRequested(ctx context.Context, sessionID string) error
	SubscribeAbortRequested(ctx context.Context, handler func(sessionID string)) (func(), error)
	PublishFileEvent(ctx context.Context, event domain.FileEvent) error
	SubscribeFileEvents(ctx context.Context, sessionID string, handler func(domain.FileEvent)) (func(), error)
}

// FileInspector determines a raw upload's kind and lightweight technical
// metadata from its payload.
type FileInspector interface {
	Inspect(ctx context.Context, filename string, payload []byte) (domain.FileProbe, error)
}

// DocumentAnalyzer is the opaque extraction boundary. PinnedClass, when
// non-empty, suppresses re-guessing the classification.
type DocumentAnalyzer interface {
	Analyze(ctx context.Context, file domain.BatchFile, payload io.Reader, pinnedClass domain.DocumentClass) (domain.AnalysisResult, error)
}
