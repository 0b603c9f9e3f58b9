package usecase

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/radonlabs/clindoc/internal/core/domain"
	"github.com/radonlabs/clindoc/internal/core/ports"
)

// IngestUseCase owns session lifecycle and file intake: uploads are
// sniffed, timestamped, stored, and kept sequenced. Unsupported files are
// counted and dropped, never stored.
type IngestUseCase struct {
	repo      ports.SessionRepository
	storage   ports.ObjectStorage
	inspector ports.FileInspector
	logger    *slog.Logger
}

func NewIngestUseCase(repo ports.SessionRepository, storage ports.ObjectStorage, inspector ports.FileInspector, logger *slog.Logger) *IngestUseCase {
	return &IngestUseCase{repo: repo, storage: storage, inspector: inspector, logger: logger}
}

func (uc *IngestUseCase) CreateSession(ctx context.Context, name string) (*domain.BatchSession, error) {
	now := time.Now()
	session := &domain.BatchSession{
		ID:         uuid.NewString(),
		Name:       name,
		SortMethod: domain.SortByFilename,
		Status:     domain.SessionIdle,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := uc.repo.Create(ctx, session); err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "create session", err)
	}
	uc.logger.Info("session created", "session_id", session.ID, "name", name)
	return session, nil
}

// AddFiles ingests uploads into the session and re-sequences the whole
// batch with the session's current sort method. A processing session
// rejects intake.
func (uc *IngestUseCase) AddFiles(ctx context.Context, sessionID string, uploads []ports.Upload) (int, int, error) {
	session, err := uc.repo.Get(ctx, sessionID)
	if err != nil {
		return 0, 0, domain.WrapError(domain.ErrSessionNotFound, "add files", err)
	}
	if session.Status == domain.SessionProcessing {
		return 0, 0, domain.WrapError(domain.ErrAlreadyRunning, "add files", fmt.Errorf("session %s", sessionID))
	}

	added, skipped := 0, 0
	now := time.Now()
	for _, upload := range uploads {
		probe, err := uc.inspector.Inspect(ctx, upload.Filename, upload.Payload)
		if err != nil || probe.Kind == domain.KindOther {
			skipped++
			uc.logger.Info("upload skipped", "session_id", sessionID, "filename", upload.Filename, "error", err)
			continue
		}

		file := domain.BatchFile{
			ID:          uuid.NewString(),
			Filename:    upload.Filename,
			Kind:        probe.Kind,
			SizeBytes:   int64(len(upload.Payload)),
			Previewable: probe.Previewable,
			Modified:    now,
			DICOM:       probe.DICOM,
			PDFPages:    probe.PDFPages,
			Selected:    true,
			Status:      domain.FileIdle,
		}
		file.StorageKey = fmt.Sprintf("%s/%s", session.ID, file.ID)
		file.Timestamp, file.TimestampSource = resolveTimestamp(probe, upload.Filename, file.Modified)

		if err := uc.storage.Save(ctx, file.StorageKey, bytes.NewReader(upload.Payload)); err != nil {
			return added, skipped, domain.WrapError(domain.ErrTemporary, "store payload", err)
		}
		session.Files = append(session.Files, file)
		added++
	}

	session.SkippedFiles += skipped
	uc.resequence(session)
	if err := uc.repo.Save(ctx, session); err != nil {
		return added, skipped, domain.WrapError(domain.ErrTemporary, "add files", err)
	}
	uc.logger.Info("files ingested", "session_id", sessionID, "added", added, "skipped", skipped)
	return added, skipped, nil
}

// Reorder re-sorts the whole batch with the given method and re-derives
// the enumeration. Re-sorting after analysis is allowed; group membership
// is preserved and only member order follows.
func (uc *IngestUseCase) Reorder(ctx context.Context, sessionID string, method domain.SortMethod) (*domain.BatchSession, error) {
	session, err := uc.repo.Get(ctx, sessionID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrSessionNotFound, "reorder", err)
	}
	if session.Status == domain.SessionProcessing {
		return nil, domain.WrapError(domain.ErrAlreadyRunning, "reorder", fmt.Errorf("session %s", sessionID))
	}

	session.SortMethod = method
	uc.resequence(session)
	if err := uc.repo.Save(ctx, session); err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "reorder", err)
	}
	return session, nil
}

// ManualOrder applies an explicit full ordering of the session's files and
// switches the session to manual sorting. The ID list must be a
// permutation of the current files.
func (uc *IngestUseCase) ManualOrder(ctx context.Context, sessionID string, fileIDs []string) (*domain.BatchSession, error) {
	session, err := uc.repo.Get(ctx, sessionID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrSessionNotFound, "manual order", err)
	}
	if session.Status == domain.SessionProcessing {
		return nil, domain.WrapError(domain.ErrAlreadyRunning, "manual order", fmt.Errorf("session %s", sessionID))
	}
	if len(fileIDs) != len(session.Files) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "manual order",
			fmt.Errorf("got %d ids, session has %d files", len(fileIDs), len(session.Files)))
	}

	reordered := make([]domain.BatchFile, 0, len(fileIDs))
	seen := make(map[string]bool, len(fileIDs))
	for _, id := range fileIDs {
		file := session.File(id)
		if file == nil || seen[id] {
			return nil, domain.WrapError(domain.ErrInvalidInput, "manual order", fmt.Errorf("unknown or duplicate file id %q", id))
		}
		seen[id] = true
		reordered = append(reordered, *file)
	}

	session.Files = reordered
	session.SortMethod = domain.SortManual
	uc.resequence(session)
	if err := uc.repo.Save(ctx, session); err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "manual order", err)
	}
	return session, nil
}

func (uc *IngestUseCase) Get(ctx context.Context, id string) (*domain.BatchSession, error) {
	session, err := uc.repo.Get(ctx, id)
	if err != nil {
		return nil, domain.WrapError(domain.ErrSessionNotFound, "get session", err)
	}
	return session, nil
}

func (uc *IngestUseCase) Groups(ctx context.Context, id string) ([]domain.ReportGroup, error) {
	session, err := uc.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return session.Groups, nil
}

// resequence rebuilds order indices and enumerated names, then propagates
// the new order into analyzed documents and group member order.
func (uc *IngestUseCase) resequence(session *domain.BatchSession) {
	session.Files = Enumerate(Sequence(session.Files, session.SortMethod))
	for i := range session.Documents {
		if file := session.File(session.Documents[i].FileID); file != nil {
			session.Documents[i].OrderIndex = file.OrderIndex
		}
	}
	SortGroupMembers(session)
	session.UpdatedAt = time.Now()
}
