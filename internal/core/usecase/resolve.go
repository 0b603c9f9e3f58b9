package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/radonlabs/clindoc/internal/core/domain"
	"github.com/radonlabs/clindoc/internal/core/ports"
)

// ResolveUseCase applies explicit user decisions: resolving blocked or
// pending groups, pinning classifications and hints, and tearing a session
// down together with its stored payloads.
type ResolveUseCase struct {
	repo     ports.SessionRepository
	storage  ports.ObjectStorage
	grouping *GroupingEngine
	logger   *slog.Logger
}

func NewResolveUseCase(repo ports.SessionRepository, storage ports.ObjectStorage, grouping *GroupingEngine, logger *slog.Logger) *ResolveUseCase {
	return &ResolveUseCase{repo: repo, storage: storage, grouping: grouping, logger: logger}
}

func (uc *ResolveUseCase) Resolve(ctx context.Context, sessionID, groupKey string, resolution domain.Resolution) (*domain.BatchSession, error) {
	session, err := uc.repo.Get(ctx, sessionID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrSessionNotFound, "resolve group", err)
	}
	// The worker owns the session row while a batch runs; accepting the
	// mutation here would let its next full save silently revert it.
	if session.Status == domain.SessionProcessing {
		return nil, domain.WrapError(domain.ErrAlreadyRunning, "resolve group", fmt.Errorf("session %s", sessionID))
	}
	if err := uc.grouping.Resolve(session, groupKey, resolution); err != nil {
		return nil, err
	}
	session.UpdatedAt = time.Now()
	if err := uc.repo.Save(ctx, session); err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "resolve group", err)
	}
	uc.logger.Info("group resolved",
		"session_id", sessionID, "group_key", groupKey, "resolution", string(resolution))
	return session, nil
}

// PinClassification fixes a document's class. The document is re-grouped
// under the new class; pinning blank-page discards it from grouping.
func (uc *ResolveUseCase) PinClassification(ctx context.Context, sessionID, fileID string, class domain.DocumentClass) error {
	session, doc, err := uc.analyzedDocument(ctx, sessionID, fileID)
	if err != nil {
		return err
	}
	doc.Class = class
	doc.ClassSource = domain.FieldManual
	_, action := uc.grouping.Reassign(session, doc)
	session.UpdatedAt = time.Now()
	if err := uc.repo.Save(ctx, session); err != nil {
		return domain.WrapError(domain.ErrTemporary, "pin classification", err)
	}
	uc.logger.Info("classification pinned",
		"session_id", sessionID, "file_id", fileID, "class", string(class), "action", string(action))
	return nil
}

// PinGroupHint fixes a document's report-group hint and re-groups it.
func (uc *ResolveUseCase) PinGroupHint(ctx context.Context, sessionID, fileID, hint string) error {
	session, doc, err := uc.analyzedDocument(ctx, sessionID, fileID)
	if err != nil {
		return err
	}
	doc.GroupHint = hint
	doc.HintSource = domain.FieldManual
	_, action := uc.grouping.Reassign(session, doc)
	session.UpdatedAt = time.Now()
	if err := uc.repo.Save(ctx, session); err != nil {
		return domain.WrapError(domain.ErrTemporary, "pin group hint", err)
	}
	uc.logger.Info("group hint pinned",
		"session_id", sessionID, "file_id", fileID, "action", string(action))
	return nil
}

// DeleteSession removes the session and every stored payload it owns.
// Storage deletions are best effort; the metadata row always goes.
func (uc *ResolveUseCase) DeleteSession(ctx context.Context, sessionID string) error {
	session, err := uc.repo.Get(ctx, sessionID)
	if err != nil {
		return domain.WrapError(domain.ErrSessionNotFound, "delete session", err)
	}
	if session.Status == domain.SessionProcessing {
		return domain.WrapError(domain.ErrAlreadyRunning, "delete session", fmt.Errorf("session %s", sessionID))
	}
	for _, file := range session.Files {
		if err := uc.storage.Delete(ctx, file.StorageKey); err != nil {
			uc.logger.Warn("delete payload", "session_id", sessionID, "storage_key", file.StorageKey, "error", err)
		}
	}
	if err := uc.repo.Delete(ctx, sessionID); err != nil {
		return domain.WrapError(domain.ErrTemporary, "delete session", err)
	}
	uc.logger.Info("session deleted", "session_id", sessionID, "files", len(session.Files))
	return nil
}

func (uc *ResolveUseCase) analyzedDocument(ctx context.Context, sessionID, fileID string) (*domain.BatchSession, *domain.AnalyzedDocument, error) {
	session, err := uc.repo.Get(ctx, sessionID)
	if err != nil {
		return nil, nil, domain.WrapError(domain.ErrSessionNotFound, "load session", err)
	}
	if session.Status == domain.SessionProcessing {
		return nil, nil, domain.WrapError(domain.ErrAlreadyRunning, "load session", fmt.Errorf("session %s", sessionID))
	}
	doc := session.Document(fileID)
	if doc == nil {
		return nil, nil, domain.WrapError(domain.ErrFileNotFound, "load document", fmt.Errorf("file %s has no analysis", fileID))
	}
	return session, doc, nil
}
