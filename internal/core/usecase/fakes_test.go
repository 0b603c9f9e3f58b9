package usecase

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/radonlabs/clindoc/internal/core/domain"
	"github.com/radonlabs/clindoc/internal/core/ports"
)

type memorySessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*domain.BatchSession
	saveErr  error
}

func newMemorySessionRepo() *memorySessionRepo {
	return &memorySessionRepo{sessions: make(map[string]*domain.BatchSession)}
}

func (r *memorySessionRepo) Create(_ context.Context, session *domain.BatchSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = session
	return nil
}

func (r *memorySessionRepo) Get(_ context.Context, id string) (*domain.BatchSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

func (r *memorySessionRepo) Save(_ context.Context, session *domain.BatchSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.sessions[session.ID] = session
	return nil
}

func (r *memorySessionRepo) UpdateStatus(_ context.Context, id string, status domain.SessionStatus, progress domain.Progress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if session, ok := r.sessions[id]; ok {
		session.Status = status
		session.Progress = progress
	}
	return nil
}

func (r *memorySessionRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

type memoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: make(map[string][]byte)}
}

func (s *memoryStorage) Save(_ context.Context, key string, data io.Reader) error {
	payload, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = payload
	return nil
}

func (s *memoryStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, ok := s.objects[key]
	if !ok {
		return nil, domain.ErrFileNotFound
	}
	return io.NopCloser(bytes.NewReader(payload)), nil
}

func (s *memoryStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

type fakeInspector struct {
	inspect func(filename string, payload []byte) (domain.FileProbe, error)
}

func (f *fakeInspector) Inspect(_ context.Context, filename string, payload []byte) (domain.FileProbe, error) {
	return f.inspect(filename, payload)
}

type fakeAnalyzer struct {
	mu      sync.Mutex
	calls   int
	inBody  int
	maxBody int
	analyze func(file domain.BatchFile, pinned domain.DocumentClass) (domain.AnalysisResult, error)
	block   chan struct{}
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, file domain.BatchFile, _ io.Reader, pinned domain.DocumentClass) (domain.AnalysisResult, error) {
	f.mu.Lock()
	f.calls++
	f.inBody++
	if f.inBody > f.maxBody {
		f.maxBody = f.inBody
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inBody--
		f.mu.Unlock()
	}()

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return domain.AnalysisResult{}, ctx.Err()
		}
	}
	if f.analyze != nil {
		return f.analyze(file, pinned)
	}
	return domain.AnalysisResult{
		VerbatimText: "Laudo de exame do paciente. Conteudo suficiente para agrupamento.",
		Class:        domain.ClassPriorReport,
	}, nil
}

func (f *fakeAnalyzer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeAnalyzer) maxConcurrent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxBody
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var _ ports.SessionRepository = (*memorySessionRepo)(nil)
var _ ports.ObjectStorage = (*memoryStorage)(nil)
var _ ports.FileInspector = (*fakeInspector)(nil)
var _ ports.DocumentAnalyzer = (*fakeAnalyzer)(nil)
