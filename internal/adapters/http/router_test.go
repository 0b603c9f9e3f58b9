package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/radonlabs/clindoc/internal/core/domain"
	"github.com/radonlabs/clindoc/internal/core/ports"
)

type fakeIngestor struct {
	sessions map[string]*domain.BatchSession
	added    int
	skipped  int
	addErr   error
}

func (f *fakeIngestor) CreateSession(_ context.Context, name string) (*domain.BatchSession, error) {
	session := &domain.BatchSession{
		ID:         "sess-1",
		Name:       name,
		SortMethod: domain.SortByFilename,
		Status:     domain.SessionIdle,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	f.sessions[session.ID] = session
	return session, nil
}

func (f *fakeIngestor) AddFiles(_ context.Context, sessionID string, uploads []ports.Upload) (int, int, error) {
	if f.addErr != nil {
		return 0, 0, f.addErr
	}
	if _, ok := f.sessions[sessionID]; !ok {
		return 0, 0, domain.WrapError(domain.ErrSessionNotFound, "add files", fmt.Errorf("session %s", sessionID))
	}
	f.added = len(uploads)
	return f.added, f.skipped, nil
}

type fakeSequencer struct {
	sessions   map[string]*domain.BatchSession
	lastMethod domain.SortMethod
	lastOrder  []string
}

func (f *fakeSequencer) Reorder(_ context.Context, sessionID string, method domain.SortMethod) (*domain.BatchSession, error) {
	session, ok := f.sessions[sessionID]
	if !ok {
		return nil, domain.WrapError(domain.ErrSessionNotFound, "reorder", fmt.Errorf("session %s", sessionID))
	}
	f.lastMethod = method
	session.SortMethod = method
	return session, nil
}

func (f *fakeSequencer) ManualOrder(_ context.Context, sessionID string, fileIDs []string) (*domain.BatchSession, error) {
	session, ok := f.sessions[sessionID]
	if !ok {
		return nil, domain.WrapError(domain.ErrSessionNotFound, "manual order", fmt.Errorf("session %s", sessionID))
	}
	if len(fileIDs) != len(session.Files) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "manual order", fmt.Errorf("expected %d ids", len(session.Files)))
	}
	f.lastOrder = fileIDs
	return session, nil
}

type fakeReader struct {
	sessions map[string]*domain.BatchSession
}

func (f *fakeReader) Get(_ context.Context, id string) (*domain.BatchSession, error) {
	session, ok := f.sessions[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrSessionNotFound, "get session", fmt.Errorf("session %s", id))
	}
	return session, nil
}

func (f *fakeReader) Groups(ctx context.Context, id string) ([]domain.ReportGroup, error) {
	session, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return session.Groups, nil
}

type fakeResolver struct {
	sessions      map[string]*domain.BatchSession
	resolved      []string
	pinnedClass   domain.DocumentClass
	pinnedHint    string
	deleted       []string
	resolveErr    error
	pinClassErr   error
	pinHintErr    error
	deleteSessErr error
}

func (f *fakeResolver) Resolve(_ context.Context, sessionID, groupKey string, resolution domain.Resolution) (*domain.BatchSession, error) {
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	session, ok := f.sessions[sessionID]
	if !ok {
		return nil, domain.WrapError(domain.ErrSessionNotFound, "resolve", fmt.Errorf("session %s", sessionID))
	}
	f.resolved = append(f.resolved, groupKey+"/"+string(resolution))
	return session, nil
}

func (f *fakeResolver) PinClassification(_ context.Context, _, _ string, class domain.DocumentClass) error {
	if f.pinClassErr != nil {
		return f.pinClassErr
	}
	f.pinnedClass = class
	return nil
}

func (f *fakeResolver) PinGroupHint(_ context.Context, _, _, hint string) error {
	if f.pinHintErr != nil {
		return f.pinHintErr
	}
	f.pinnedHint = hint
	return nil
}

func (f *fakeResolver) DeleteSession(_ context.Context, sessionID string) error {
	if f.deleteSessErr != nil {
		return f.deleteSessErr
	}
	f.deleted = append(f.deleted, sessionID)
	return nil
}

type fakeQueue struct {
	queued    []string
	aborted   []string
	events    chan domain.FileEvent
	queueErr  error
	subscribe func(handler func(domain.FileEvent)) (func(), error)
}

func (f *fakeQueue) PublishBatchQueued(_ context.Context, sessionID string) error {
	if f.queueErr != nil {
		return f.queueErr
	}
	f.queued = append(f.queued, sessionID)
	return nil
}

func (f *fakeQueue) SubscribeBatchQueued(context.Context, func(context.Context, string) error) error {
	return nil
}

func (f *fakeQueue) PublishAbortRequested(_ context.Context, sessionID string) error {
	f.aborted = append(f.aborted, sessionID)
	return nil
}

func (f *fakeQueue) SubscribeAbortRequested(context.Context, func(string)) (func(), error) {
	return func() {}, nil
}

func (f *fakeQueue) PublishFileEvent(_ context.Context, event domain.FileEvent) error {
	if f.events != nil {
		f.events <- event
	}
	return nil
}

func (f *fakeQueue) SubscribeFileEvents(_ context.Context, _ string, handler func(domain.FileEvent)) (func(), error) {
	if f.subscribe != nil {
		return f.subscribe(handler)
	}
	return func() {}, nil
}

type routerFixture struct {
	handler  http.Handler
	ingestor *fakeIngestor
	resolver *fakeResolver
	queue    *fakeQueue
	sessions map[string]*domain.BatchSession
}

func newRouterFixture(options Options) *routerFixture {
	sessions := map[string]*domain.BatchSession{}
	ingestor := &fakeIngestor{sessions: sessions}
	resolver := &fakeResolver{sessions: sessions}
	queue := &fakeQueue{}
	router := NewRouter(
		ingestor,
		&fakeSequencer{sessions: sessions},
		&fakeReader{sessions: sessions},
		resolver,
		queue,
		nil,
		options,
	)
	return &routerFixture{
		handler:  router.Handler(),
		ingestor: ingestor,
		resolver: resolver,
		queue:    queue,
		sessions: sessions,
	}
}

func (fx *routerFixture) seedSession(id string, status domain.SessionStatus) *domain.BatchSession {
	session := &domain.BatchSession{ID: id, Name: "seeded", Status: status, SortMethod: domain.SortByFilename}
	fx.sessions[id] = session
	return session
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestCreateSessionReturnsCreated(t *testing.T) {
	fx := newRouterFixture(Options{})

	res := doJSON(t, fx.handler, http.MethodPost, "/v1/sessions", map[string]string{"name": "morning intake"})
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}

	var session domain.BatchSession
	if err := json.Unmarshal(res.Body.Bytes(), &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if session.Name != "morning intake" {
		t.Fatalf("expected session name preserved, got %q", session.Name)
	}
	if session.ID == "" {
		t.Fatalf("expected session id assigned")
	}
}

func TestGetSessionNotFoundMapsTo404(t *testing.T) {
	fx := newRouterFixture(Options{})

	res := doJSON(t, fx.handler, http.MethodGet, "/v1/sessions/missing", nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(res.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if resp["error"] == "" {
		t.Fatalf("expected error message in response body")
	}
}

func TestAddFilesAcceptsMultipartUpload(t *testing.T) {
	fx := newRouterFixture(Options{})
	fx.seedSession("sess-1", domain.SessionIdle)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for _, name := range []string{"scan1.jpg", "scan2.jpg"} {
		part, err := writer.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write([]byte("payload of " + name)); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/sess-1/files", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	res := httptest.NewRecorder()
	fx.handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if fx.ingestor.added != 2 {
		t.Fatalf("expected 2 uploads passed to ingestor, got %d", fx.ingestor.added)
	}

	var resp map[string]int
	if err := json.Unmarshal(res.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["added"] != 2 {
		t.Fatalf("expected added=2, got %d", resp["added"])
	}
}

func TestAddFilesWithoutFilesFieldReturns400(t *testing.T) {
	fx := newRouterFixture(Options{})
	fx.seedSession("sess-1", domain.SessionIdle)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	_ = writer.WriteField("note", "no files here")
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/sess-1/files", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	res := httptest.NewRecorder()
	fx.handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing files field, got %d", res.Code)
	}
}

func TestSortSessionRejectsUnknownMethod(t *testing.T) {
	fx := newRouterFixture(Options{})
	fx.seedSession("sess-1", domain.SessionIdle)

	res := doJSON(t, fx.handler, http.MethodPost, "/v1/sessions/sess-1/sort", map[string]string{"method": "shuffle"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown sort method, got %d", res.Code)
	}

	res = doJSON(t, fx.handler, http.MethodPost, "/v1/sessions/sess-1/sort", map[string]string{"method": "timestamp"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 for valid sort method, got %d: %s", res.Code, res.Body.String())
	}
}

func TestProcessSessionQueuesBatch(t *testing.T) {
	fx := newRouterFixture(Options{})
	fx.seedSession("sess-1", domain.SessionIdle)

	res := doJSON(t, fx.handler, http.MethodPost, "/v1/sessions/sess-1/process", nil)
	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	if len(fx.queue.queued) != 1 || fx.queue.queued[0] != "sess-1" {
		t.Fatalf("expected batch queued for sess-1, got %v", fx.queue.queued)
	}
}

func TestProcessSessionAlreadyRunningMapsTo409(t *testing.T) {
	fx := newRouterFixture(Options{})
	fx.seedSession("sess-1", domain.SessionProcessing)

	res := doJSON(t, fx.handler, http.MethodPost, "/v1/sessions/sess-1/process", nil)
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409 for running session, got %d", res.Code)
	}
	if len(fx.queue.queued) != 0 {
		t.Fatalf("expected no batch queued, got %v", fx.queue.queued)
	}
}

func TestAbortSessionPublishesAbortRequest(t *testing.T) {
	fx := newRouterFixture(Options{})
	fx.seedSession("sess-1", domain.SessionProcessing)

	res := doJSON(t, fx.handler, http.MethodPost, "/v1/sessions/sess-1/abort", nil)
	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", res.Code)
	}
	if len(fx.queue.aborted) != 1 || fx.queue.aborted[0] != "sess-1" {
		t.Fatalf("expected abort published for sess-1, got %v", fx.queue.aborted)
	}
}

func TestGetGroupsReturnsGroupList(t *testing.T) {
	fx := newRouterFixture(Options{})
	session := fx.seedSession("sess-1", domain.SessionIdle)
	session.Groups = []domain.ReportGroup{
		{Key: "hint::LAUDO-A", MemberIDs: []string{"f1", "f2"}, Status: domain.GroupConsistent},
		{Key: "file::f3", MemberIDs: []string{"f3"}, Status: domain.GroupBlocked, BlockReasons: []string{"patient identity mismatch"}},
	}

	res := doJSON(t, fx.handler, http.MethodGet, "/v1/sessions/sess-1/groups", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var resp struct {
		Groups []domain.ReportGroup `json:"groups"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode groups: %v", err)
	}
	if len(resp.Groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(resp.Groups))
	}
	if resp.Groups[1].Status != domain.GroupBlocked {
		t.Fatalf("expected blocked group preserved, got %q", resp.Groups[1].Status)
	}
}

func TestResolveGroupPassesDecision(t *testing.T) {
	fx := newRouterFixture(Options{})
	fx.seedSession("sess-1", domain.SessionIdle)

	res := doJSON(t, fx.handler, http.MethodPost, "/v1/sessions/sess-1/groups/resolve", map[string]string{
		"group_key":  "hint::LAUDO-A",
		"resolution": "confirm-same",
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if len(fx.resolver.resolved) != 1 || fx.resolver.resolved[0] != "hint::LAUDO-A/confirm-same" {
		t.Fatalf("unexpected resolution calls: %v", fx.resolver.resolved)
	}

	res = doJSON(t, fx.handler, http.MethodPost, "/v1/sessions/sess-1/groups/resolve", map[string]string{
		"group_key":  "hint::LAUDO-A",
		"resolution": "maybe",
	})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown resolution, got %d", res.Code)
	}
}

func TestPinClassificationValidatesClass(t *testing.T) {
	fx := newRouterFixture(Options{})
	fx.seedSession("sess-1", domain.SessionIdle)

	res := doJSON(t, fx.handler, http.MethodPut, "/v1/sessions/sess-1/files/f1/classification", map[string]string{
		"classification": "prior-report",
	})
	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", res.Code, res.Body.String())
	}
	if fx.resolver.pinnedClass != domain.ClassPriorReport {
		t.Fatalf("expected pinned class %q, got %q", domain.ClassPriorReport, fx.resolver.pinnedClass)
	}

	res = doJSON(t, fx.handler, http.MethodPut, "/v1/sessions/sess-1/files/f1/classification", map[string]string{
		"classification": "mystery",
	})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown classification, got %d", res.Code)
	}
}

func TestPinGroupHintForMissingFileMapsTo404(t *testing.T) {
	fx := newRouterFixture(Options{})
	fx.seedSession("sess-1", domain.SessionIdle)
	fx.resolver.pinHintErr = domain.WrapError(domain.ErrFileNotFound, "pin hint", fmt.Errorf("file ghost"))

	res := doJSON(t, fx.handler, http.MethodPut, "/v1/sessions/sess-1/files/ghost/hint", map[string]string{"hint": "LAUDO-B"})
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestDeleteSessionReturnsNoContent(t *testing.T) {
	fx := newRouterFixture(Options{})
	fx.seedSession("sess-1", domain.SessionIdle)

	res := doJSON(t, fx.handler, http.MethodDelete, "/v1/sessions/sess-1", nil)
	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.Code)
	}
	if len(fx.resolver.deleted) != 1 || fx.resolver.deleted[0] != "sess-1" {
		t.Fatalf("expected delete for sess-1, got %v", fx.resolver.deleted)
	}
}

func TestStreamEventsClosesOnTerminalEvent(t *testing.T) {
	fx := newRouterFixture(Options{SSEHeartbeat: time.Minute})
	fx.seedSession("sess-1", domain.SessionProcessing)

	fx.queue.subscribe = func(handler func(domain.FileEvent)) (func(), error) {
		go func() {
			handler(domain.FileEvent{Kind: domain.EventFileCompleted, SessionID: "sess-1", FileID: "f1"})
			handler(domain.FileEvent{Kind: domain.EventBatchDone, SessionID: "sess-1"})
		}()
		return func() {}, nil
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/sess-1/events", nil)
	res := httptest.NewRecorder()

	finished := make(chan struct{})
	go func() {
		fx.handler.ServeHTTP(res, req)
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatalf("stream did not terminate after batch-done event")
	}

	if ct := res.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected text/event-stream content type, got %q", ct)
	}
	body := res.Body.String()
	if !strings.Contains(body, `"kind":"file-completed"`) {
		t.Fatalf("expected file-completed frame in stream, got %q", body)
	}
	if !strings.Contains(body, `"kind":"batch-done"`) {
		t.Fatalf("expected batch-done frame in stream, got %q", body)
	}
	if !strings.Contains(body, "data: ") {
		t.Fatalf("expected SSE data framing, got %q", body)
	}
}
