package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/radonlabs/clindoc/internal/core/domain"
	"github.com/radonlabs/clindoc/internal/core/ports"
)

// ProcessUseCase drives the analysis pipeline for one session: a bounded
// pool of workers analyzes the selected files, and completions are folded
// into the session's documents and groups as they arrive. Group member
// order always follows the sequenced order, never completion order.
type ProcessUseCase struct {
	repo     ports.SessionRepository
	storage  ports.ObjectStorage
	analyzer ports.DocumentAnalyzer
	grouping *GroupingEngine
	rules    domain.GroupingRules

	concurrency int
	logger      *slog.Logger

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

func NewProcessUseCase(
	repo ports.SessionRepository,
	storage ports.ObjectStorage,
	analyzer ports.DocumentAnalyzer,
	grouping *GroupingEngine,
	rules domain.GroupingRules,
	concurrency int,
	logger *slog.Logger,
) *ProcessUseCase {
	if concurrency < 1 {
		concurrency = 1
	}
	return &ProcessUseCase{
		repo:        repo,
		storage:     storage,
		analyzer:    analyzer,
		grouping:    grouping,
		rules:       rules,
		concurrency: concurrency,
		logger:      logger,
		running:     make(map[string]context.CancelFunc),
	}
}

// Process starts the pipeline and returns a stream of file events. The
// channel is closed after the terminal batch-done or batch-aborted event.
func (uc *ProcessUseCase) Process(ctx context.Context, sessionID string) (<-chan domain.FileEvent, error) {
	session, err := uc.repo.Get(ctx, sessionID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrSessionNotFound, "process batch", err)
	}
	if session.Status == domain.SessionProcessing {
		return nil, domain.WrapError(domain.ErrAlreadyRunning, "process batch", fmt.Errorf("session %s", sessionID))
	}

	pending := selectedFiles(session)
	if len(pending) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "process batch", fmt.Errorf("session %s has no selected files", sessionID))
	}

	// The dispatch gate is cancelled by Abort; the work context is not.
	// Analyses already handed to the analyzer run to completion and their
	// results count even when the batch is aborted.
	dispatchCtx, cancelDispatch := context.WithCancel(ctx)
	uc.mu.Lock()
	if _, ok := uc.running[sessionID]; ok {
		uc.mu.Unlock()
		cancelDispatch()
		return nil, domain.WrapError(domain.ErrAlreadyRunning, "process batch", fmt.Errorf("session %s", sessionID))
	}
	uc.running[sessionID] = cancelDispatch
	uc.mu.Unlock()

	session.Status = domain.SessionProcessing
	session.Progress = domain.Progress{Current: 0, Total: len(pending)}
	for _, id := range pending {
		session.File(id).Status = domain.FileReady
	}
	if err := uc.repo.Save(ctx, session); err != nil {
		uc.finish(sessionID)
		return nil, domain.WrapError(domain.ErrTemporary, "process batch", err)
	}

	// Two events per file plus the terminal event; the channel never
	// blocks a worker even when nobody drains it promptly.
	events := make(chan domain.FileEvent, 2*len(pending)+1)
	go uc.run(ctx, dispatchCtx, session, pending, events)
	return events, nil
}

// Abort stops dispatch of further files. The gate is checked before each
// new file is handed out; in-flight analyses finish and their results
// count toward the batch.
func (uc *ProcessUseCase) Abort(sessionID string) {
	uc.mu.Lock()
	cancel := uc.running[sessionID]
	uc.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (uc *ProcessUseCase) run(ctx, dispatchCtx context.Context, session *domain.BatchSession, fileIDs []string, events chan<- domain.FileEvent) {
	defer close(events)
	defer uc.finish(session.ID)

	var (
		stateMu sync.Mutex
		wg      sync.WaitGroup
		sem     = make(chan struct{}, uc.concurrency)
	)

	for _, fileID := range fileIDs {
		if dispatchCtx.Err() != nil {
			break
		}
		select {
		case sem <- struct{}{}:
		case <-dispatchCtx.Done():
		}
		if dispatchCtx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(fileID string) {
			defer wg.Done()
			defer func() { <-sem }()
			uc.processFile(ctx, session, fileID, &stateMu, events)
		}(fileID)
	}
	wg.Wait()

	stateMu.Lock()
	defer stateMu.Unlock()

	aborted := dispatchCtx.Err() != nil
	if aborted {
		session.Status = domain.SessionIdle
		for _, id := range fileIDs {
			if f := session.File(id); f != nil && (f.Status == domain.FileReady || f.Status == domain.FileProcessing) {
				f.Status = domain.FileIdle
			}
		}
	} else {
		session.Status = domain.SessionCompleted
	}
	session.UpdatedAt = time.Now()

	// Terminal persistence runs on a fresh context: the run context is
	// already cancelled on abort.
	saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := uc.repo.Save(saveCtx, session); err != nil {
		uc.logger.Error("persist session after batch", "session_id", session.ID, "error", err)
	}

	kind := domain.EventBatchDone
	if aborted {
		kind = domain.EventBatchAborted
	}
	events <- domain.FileEvent{
		Kind:      kind,
		SessionID: session.ID,
		Progress:  session.Progress,
		At:        time.Now(),
	}
	uc.logger.Info("batch finished",
		"session_id", session.ID,
		"aborted", aborted,
		"processed", session.Progress.Current,
		"total", session.Progress.Total)
}

func (uc *ProcessUseCase) processFile(ctx context.Context, session *domain.BatchSession, fileID string, stateMu *sync.Mutex, events chan<- domain.FileEvent) {
	stateMu.Lock()
	file := session.File(fileID)
	if file == nil {
		stateMu.Unlock()
		return
	}
	file.Status = domain.FileProcessing
	file.Error = ""
	snapshot := *file
	var pinnedClass domain.DocumentClass
	var pinnedHint string
	var hintPinned bool
	if prev := session.Document(fileID); prev != nil {
		if prev.ClassSource == domain.FieldManual {
			pinnedClass = prev.Class
		}
		if prev.HintSource == domain.FieldManual {
			pinnedHint = prev.GroupHint
			hintPinned = true
		}
	}
	progress := session.Progress
	stateMu.Unlock()

	events <- domain.FileEvent{
		Kind:       domain.EventFileStarted,
		SessionID:  session.ID,
		FileID:     fileID,
		OrderIndex: snapshot.OrderIndex,
		Status:     domain.FileProcessing,
		Progress:   progress,
		At:         time.Now(),
	}

	result, err := uc.analyzeFile(ctx, snapshot, pinnedClass)

	stateMu.Lock()
	defer stateMu.Unlock()

	file = session.File(fileID)
	if file == nil {
		return
	}

	if err != nil {
		if ctx.Err() != nil {
			file.Status = domain.FileIdle
			return
		}
		file.Status = domain.FileError
		file.Error = err.Error()
		session.Progress.Current++
		uc.persist(session)
		events <- domain.FileEvent{
			Kind:       domain.EventFileFailed,
			SessionID:  session.ID,
			FileID:     fileID,
			OrderIndex: file.OrderIndex,
			Status:     domain.FileError,
			Error:      err.Error(),
			Progress:   session.Progress,
			At:         time.Now(),
		}
		uc.logger.Warn("file analysis failed", "session_id", session.ID, "file_id", fileID, "error", err)
		return
	}

	doc := uc.buildDocument(file, result)
	if pinnedClass != "" {
		doc.Class = pinnedClass
		doc.ClassSource = domain.FieldManual
	}
	if hintPinned {
		doc.GroupHint = pinnedHint
		doc.HintSource = domain.FieldManual
	}
	upsertDocument(session, doc)

	groupKey, action := uc.grouping.Assign(session, session.Document(fileID))

	file.Status = domain.FileCompleted
	session.Progress.Current++
	uc.persist(session)

	events <- domain.FileEvent{
		Kind:       domain.EventFileCompleted,
		SessionID:  session.ID,
		FileID:     fileID,
		OrderIndex: file.OrderIndex,
		Status:     domain.FileCompleted,
		GroupKey:   groupKey,
		Action:     action,
		Progress:   session.Progress,
		At:         time.Now(),
	}
}

func (uc *ProcessUseCase) analyzeFile(ctx context.Context, file domain.BatchFile, pinnedClass domain.DocumentClass) (domain.AnalysisResult, error) {
	payload, err := uc.storage.Open(ctx, file.StorageKey)
	if err != nil {
		return domain.AnalysisResult{}, domain.WrapError(domain.ErrTemporary, "open payload", err)
	}
	defer payload.Close()
	return uc.analyzer.Analyze(ctx, file, payload, pinnedClass)
}

func (uc *ProcessUseCase) buildDocument(file *domain.BatchFile, result domain.AnalysisResult) domain.AnalyzedDocument {
	class := result.Class
	if _, ok := domain.ParseDocumentClass(string(class)); !ok || class == "" {
		class = domain.ClassUndetermined
	}
	doc := domain.AnalyzedDocument{
		FileID:            file.ID,
		OrderIndex:        file.OrderIndex,
		VerbatimText:      result.VerbatimText,
		Class:             class,
		ClassSource:       domain.FieldAuto,
		GroupHint:         result.GroupHint,
		HintSource:        domain.FieldAuto,
		RecoveredBySystem: result.RecoveredBySystem,
		Summary:           result.Summary,
		Metadata:          result.Metadata,
	}
	doc.Metadata.ExamDate = normalizeExamDate(doc.Metadata.ExamDate)
	doc.IsAddendum = isAddendum(doc.VerbatimText, uc.rules)
	doc.Warnings = documentWarnings(doc.VerbatimText, uc.rules)
	return doc
}

// persist writes intermediate progress; failures are logged and tolerated
// since the terminal save retries the full state.
func (uc *ProcessUseCase) persist(session *domain.BatchSession) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	session.UpdatedAt = time.Now()
	if err := uc.repo.Save(ctx, session); err != nil {
		uc.logger.Warn("persist session progress", "session_id", session.ID, "error", err)
	}
}

func (uc *ProcessUseCase) finish(sessionID string) {
	uc.mu.Lock()
	if cancel, ok := uc.running[sessionID]; ok {
		delete(uc.running, sessionID)
		cancel()
	}
	uc.mu.Unlock()
}

func selectedFiles(session *domain.BatchSession) []string {
	files := make([]domain.BatchFile, 0, len(session.Files))
	for _, f := range session.Files {
		if f.Selected {
			files = append(files, f)
		}
	}
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].OrderIndex < files[j].OrderIndex
	})
	ids := make([]string, len(files))
	for i, f := range files {
		ids[i] = f.ID
	}
	return ids
}

func upsertDocument(session *domain.BatchSession, doc domain.AnalyzedDocument) {
	for i := range session.Documents {
		if session.Documents[i].FileID == doc.FileID {
			session.Documents[i] = doc
			return
		}
	}
	session.Documents = append(session.Documents, doc)
}
