package httpadapter

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/radonlabs/clindoc/internal/core/domain"
	"github.com/radonlabs/clindoc/internal/core/ports"
	"github.com/radonlabs/clindoc/internal/observability/metrics"
)

// Router exposes the batch intake API. Processing itself runs in the
// worker; the API enqueues batches and streams pipeline events back to
// the caller.
type Router struct {
	ingestor  ports.BatchIngestor
	sequencer ports.BatchSequencer
	reader    ports.SessionReader
	resolver  ports.GroupResolver
	queue     ports.MessageQueue
	metrics   *metrics.HTTPServerMetrics
	options   Options
}

type Options struct {
	MaxUploadBytes   int64
	RateLimitRPS     int
	RateLimitBurst   int
	MaxConcurrent    int
	BackpressureWait time.Duration
	SSEHeartbeat     time.Duration
}

func NewRouter(
	ingestor ports.BatchIngestor,
	sequencer ports.BatchSequencer,
	reader ports.SessionReader,
	resolver ports.GroupResolver,
	queue ports.MessageQueue,
	httpMetrics *metrics.HTTPServerMetrics,
	options Options,
) *Router {
	if options.MaxUploadBytes <= 0 {
		options.MaxUploadBytes = 64 << 20
	}
	if options.SSEHeartbeat <= 0 {
		options.SSEHeartbeat = 15 * time.Second
	}
	return &Router{
		ingestor:  ingestor,
		sequencer: sequencer,
		reader:    reader,
		resolver:  resolver,
		queue:     queue,
		metrics:   httpMetrics,
		options:   options,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)

	mux.HandleFunc("POST /v1/sessions", rt.createSession)
	mux.HandleFunc("GET /v1/sessions/{id}", rt.getSession)
	mux.HandleFunc("GET /v1/sessions/{id}/groups", rt.getGroups)
	mux.HandleFunc("DELETE /v1/sessions/{id}", rt.deleteSession)

	mux.HandleFunc("POST /v1/sessions/{id}/files", rt.addFiles)
	mux.HandleFunc("POST /v1/sessions/{id}/sort", rt.sortSession)
	mux.HandleFunc("PUT /v1/sessions/{id}/order", rt.manualOrder)

	mux.HandleFunc("POST /v1/sessions/{id}/process", rt.processSession)
	mux.HandleFunc("POST /v1/sessions/{id}/abort", rt.abortSession)
	mux.HandleFunc("GET /v1/sessions/{id}/events", rt.streamEvents)

	mux.HandleFunc("POST /v1/sessions/{id}/groups/resolve", rt.resolveGroup)
	mux.HandleFunc("PUT /v1/sessions/{id}/files/{fileID}/classification", rt.pinClassification)
	mux.HandleFunc("PUT /v1/sessions/{id}/files/{fileID}/hint", rt.pinGroupHint)

	var handler http.Handler = mux
	if rt.options.MaxConcurrent > 0 {
		handler = backpressureMiddleware(handler, rt.options.MaxConcurrent, rt.options.BackpressureWait)
	}
	if rt.options.RateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.options.RateLimitRPS, rt.options.RateLimitBurst)
	}
	if rt.metrics != nil {
		handler = metricsMiddleware(handler, rt.metrics)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) createSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "create session", fmt.Errorf("invalid json: %w", err)))
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		req.Name = "intake " + time.Now().Format("2006-01-02 15:04")
	}

	session, err := rt.ingestor.CreateSession(r.Context(), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (rt *Router) getSession(w http.ResponseWriter, r *http.Request) {
	session, err := rt.reader.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (rt *Router) getGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := rt.reader.Groups(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

func (rt *Router) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := rt.resolver.DeleteSession(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) addFiles(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.options.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "parse upload", err))
		return
	}

	parts := r.MultipartForm.File["files"]
	if len(parts) == 0 {
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "parse upload", fmt.Errorf("multipart field 'files' is required")))
		return
	}

	uploads := make([]ports.Upload, 0, len(parts))
	for _, header := range parts {
		part, err := header.Open()
		if err != nil {
			writeError(w, domain.WrapError(domain.ErrInvalidInput, "open upload", err))
			return
		}
		payload, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			writeError(w, domain.WrapError(domain.ErrInvalidInput, "read upload", err))
			return
		}
		uploads = append(uploads, ports.Upload{Filename: header.Filename, Payload: payload})
	}

	added, skipped, err := rt.ingestor.AddFiles(r.Context(), r.PathValue("id"), uploads)
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.ObserveUploads("api", added, skipped)
	}
	writeJSON(w, http.StatusOK, map[string]int{"added": added, "skipped": skipped})
}

func (rt *Router) sortSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Method string `json:"method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "sort session", fmt.Errorf("invalid json: %w", err)))
		return
	}
	method, ok := domain.ParseSortMethod(req.Method)
	if !ok {
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "sort session", fmt.Errorf("unknown sort method %q", req.Method)))
		return
	}

	session, err := rt.sequencer.Reorder(r.Context(), r.PathValue("id"), method)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (rt *Router) manualOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FileIDs []string `json:"file_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "manual order", fmt.Errorf("invalid json: %w", err)))
		return
	}

	session, err := rt.sequencer.ManualOrder(r.Context(), r.PathValue("id"), req.FileIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (rt *Router) processSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	session, err := rt.reader.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if session.Status == domain.SessionProcessing {
		writeError(w, domain.WrapError(domain.ErrAlreadyRunning, "queue batch", fmt.Errorf("session %s", id)))
		return
	}

	if err := rt.queue.PublishBatchQueued(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "session_id": id})
}

func (rt *Router) abortSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := rt.reader.Get(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	if err := rt.queue.PublishAbortRequested(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "abort-requested", "session_id": id})
}

func (rt *Router) resolveGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GroupKey   string `json:"group_key"`
		Resolution string `json:"resolution"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "resolve group", fmt.Errorf("invalid json: %w", err)))
		return
	}
	resolution, ok := domain.ParseResolution(req.Resolution)
	if !ok {
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "resolve group", fmt.Errorf("unknown resolution %q", req.Resolution)))
		return
	}

	session, err := rt.resolver.Resolve(r.Context(), r.PathValue("id"), req.GroupKey, resolution)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (rt *Router) pinClassification(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Class string `json:"classification"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "pin classification", fmt.Errorf("invalid json: %w", err)))
		return
	}
	class, ok := domain.ParseDocumentClass(req.Class)
	if !ok {
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "pin classification", fmt.Errorf("unknown classification %q", req.Class)))
		return
	}

	if err := rt.resolver.PinClassification(r.Context(), r.PathValue("id"), r.PathValue("fileID"), class); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) pinGroupHint(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Hint string `json:"hint"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "pin hint", fmt.Errorf("invalid json: %w", err)))
		return
	}

	if err := rt.resolver.PinGroupHint(r.Context(), r.PathValue("id"), r.PathValue("fileID"), req.Hint); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}
