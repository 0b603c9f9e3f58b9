package gemini

import (
	"fmt"

	"github.com/radonlabs/clindoc/internal/core/domain"
)

func buildAnalysisPrompt(file domain.BatchFile, pinnedClass domain.DocumentClass) string {
	classInstruction := `classification: one of "clinical-note", "prior-report", "medical-order", "consent-form", "questionnaire", "authorization-guide", "administrative", "blank-page", "other".`
	if pinnedClass != "" {
		classInstruction = fmt.Sprintf(`classification: always return exactly %q. The operator fixed this document's class; do not re-guess it.`, string(pinnedClass))
	}

	return fmt.Sprintf(`You are a clinical document intake assistant. Transcribe and classify the attached scanned page.
Return a strict JSON object with exactly these keys:
verbatim_text (string): the complete page text, transcribed literally, preserving line breaks. Empty string if the page is blank.
%s
report_group_hint (string): a short stable label identifying which clinical report this page belongs to, e.g. exam name plus date. Pages of the same report must get the same hint. Empty string if you cannot tell.
is_recovered_by_system (boolean): true only if the text was reconstructed from a barely legible page.
summary (string): one sentence describing the page.
metadata (object) with keys patient_name, patient_id, order_id, exam_type, exam_date, origin_service, all strings, empty when absent. exam_date as YYYY-MM-DD or DD/MM/YYYY exactly as printed.
No markdown, no extra keys.

Page %d, original filename %q.`, classInstruction, file.OrderIndex, file.Filename)
}
