package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/radonlabs/clindoc/internal/core/domain"
	"github.com/radonlabs/clindoc/internal/infrastructure/resilience"
)

// Client is the document analyzer adapter. It sends each page to the
// Gemini generateContent endpoint and parses the structured verdict.
// Retries with backoff, the circuit breaker, and request-rate limiting
// all live here; callers see only the final outcome.
type Client struct {
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor
}

type Options struct {
	RequestsPerSecond  float64
	RequestTimeout     time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(baseURL, model, apiKey string) *Client {
	return NewWithOptions(baseURL, model, apiKey, Options{})
}

func NewWithOptions(baseURL, model, apiKey string, options Options) *Client {
	timeout := options.RequestTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	rps := options.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		executor:   options.ResilienceExecutor,
	}
}

// analysisPayload mirrors the JSON contract the prompt demands from the
// model.
type analysisPayload struct {
	VerbatimText      string `json:"verbatim_text"`
	Classification    string `json:"classification"`
	ReportGroupHint   string `json:"report_group_hint"`
	RecoveredBySystem bool   `json:"is_recovered_by_system"`
	Summary           string `json:"summary"`
	Metadata          struct {
		PatientName   string `json:"patient_name"`
		PatientID     string `json:"patient_id"`
		OrderID       string `json:"order_id"`
		ExamType      string `json:"exam_type"`
		ExamDate      string `json:"exam_date"`
		OriginService string `json:"origin_service"`
	} `json:"metadata"`
}

func (c *Client) Analyze(ctx context.Context, file domain.BatchFile, payload io.Reader, pinnedClass domain.DocumentClass) (domain.AnalysisResult, error) {
	data, err := io.ReadAll(payload)
	if err != nil {
		return domain.AnalysisResult{}, fmt.Errorf("read payload: %w", err)
	}

	request := generateContentRequest{
		Contents: []content{{
			Parts: []part{
				{Text: buildAnalysisPrompt(file, pinnedClass)},
				{InlineData: &inlineData{
					MimeType: mimeTypeFor(file),
					Data:     base64.StdEncoding.EncodeToString(data),
				}},
			},
		}},
		GenerationConfig: generationConfig{ResponseMimeType: "application/json"},
	}

	var raw string
	call := func(callCtx context.Context) error {
		text, callErr := c.generateContent(callCtx, request)
		if callErr != nil {
			return callErr
		}
		raw = text
		return nil
	}

	if c.executor != nil {
		err = c.executor.Execute(ctx, "gemini.analyze", call, classifyGeminiError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return domain.AnalysisResult{}, wrapTemporaryIfNeeded("analyze document", err)
	}

	return parseAnalysis(raw)
}

func parseAnalysis(raw string) (domain.AnalysisResult, error) {
	var decoded analysisPayload
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &decoded); err != nil {
		return domain.AnalysisResult{}, fmt.Errorf("parse analysis json: %w", err)
	}

	class, ok := domain.ParseDocumentClass(decoded.Classification)
	if !ok {
		class = domain.ClassUndetermined
	}
	result := domain.AnalysisResult{
		VerbatimText:      decoded.VerbatimText,
		Class:             class,
		GroupHint:         strings.TrimSpace(decoded.ReportGroupHint),
		RecoveredBySystem: decoded.RecoveredBySystem,
		Summary:           decoded.Summary,
	}
	result.Metadata = domain.ExtractedMetadata{
		PatientName:   decoded.Metadata.PatientName,
		PatientID:     decoded.Metadata.PatientID,
		OrderID:       decoded.Metadata.OrderID,
		ExamType:      decoded.Metadata.ExamType,
		ExamDate:      decoded.Metadata.ExamDate,
		OriginService: decoded.Metadata.OriginService,
	}
	return result, nil
}

func mimeTypeFor(file domain.BatchFile) string {
	switch file.Kind {
	case domain.KindPDF:
		return "application/pdf"
	case domain.KindDICOM:
		// DICOM pages are rasterized to PNG before analysis.
		return "image/png"
	}
	name := strings.ToLower(file.Filename)
	switch {
	case strings.HasSuffix(name, ".png"):
		return "image/png"
	case strings.HasSuffix(name, ".webp"):
		return "image/webp"
	case strings.HasSuffix(name, ".gif"):
		return "image/gif"
	case strings.HasSuffix(name, ".bmp"):
		return "image/bmp"
	default:
		return "image/jpeg"
	}
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
