package domain

type DocumentClass string

const (
	ClassClinicalNote  DocumentClass = "clinical-note"
	ClassPriorReport   DocumentClass = "prior-report"
	ClassMedicalOrder  DocumentClass = "medical-order"
	ClassConsentForm   DocumentClass = "consent-form"
	ClassQuestionnaire DocumentClass = "questionnaire"
	ClassAuthGuide     DocumentClass = "authorization-guide"
	ClassAdmin         DocumentClass = "administrative"
	ClassBlankPage     DocumentClass = "blank-page"
	ClassOther         DocumentClass = "other"
	ClassUndetermined  DocumentClass = "undetermined"
)

func ParseDocumentClass(raw string) (DocumentClass, bool) {
	switch DocumentClass(raw) {
	case ClassClinicalNote, ClassPriorReport, ClassMedicalOrder, ClassConsentForm,
		ClassQuestionnaire, ClassAuthGuide, ClassAdmin, ClassBlankPage,
		ClassOther, ClassUndetermined:
		return DocumentClass(raw), true
	}
	return "", false
}

// FieldSource records whether a classification or hint came from the
// analyzer or from an explicit user override. User-set fields are pinned:
// re-analysis never rewrites them.
type FieldSource string

const (
	FieldAuto   FieldSource = "auto"
	FieldManual FieldSource = "manual"
)

// ExtractedMetadata is the identity payload the analyzer pulls out of a
// page. All fields are best effort and may be empty.
type ExtractedMetadata struct {
	PatientName   string `json:"patient_name,omitempty"`
	PatientID     string `json:"patient_id,omitempty"`
	OrderID       string `json:"order_id,omitempty"`
	ExamType      string `json:"exam_type,omitempty"`
	ExamDate      string `json:"exam_date,omitempty"`
	OriginService string `json:"origin_service,omitempty"`
}

// AnalysisResult is the analyzer boundary contract. The pipeline tolerates
// an empty GroupHint (the document falls back to a singleton group).
type AnalysisResult struct {
	VerbatimText      string            `json:"verbatim_text"`
	Class             DocumentClass     `json:"classification"`
	GroupHint         string            `json:"report_group_hint"`
	RecoveredBySystem bool              `json:"is_recovered_by_system"`
	Summary           string            `json:"summary"`
	Metadata          ExtractedMetadata `json:"metadata"`
}

// AnalyzedDocument is a sequenced file after analysis has completed.
type AnalyzedDocument struct {
	FileID     string `json:"file_id"`
	OrderIndex int    `json:"order_index"`

	VerbatimText string        `json:"verbatim_text"`
	Class        DocumentClass `json:"classification"`
	ClassSource  FieldSource   `json:"classification_source"`

	GroupHint  string      `json:"report_group_hint,omitempty"`
	HintSource FieldSource `json:"hint_source,omitempty"`

	RecoveredBySystem bool              `json:"is_recovered_by_system,omitempty"`
	Summary           string            `json:"summary,omitempty"`
	Metadata          ExtractedMetadata `json:"metadata"`

	IsAddendum bool     `json:"is_addendum,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
}

// Pinned reports whether the user has fixed either the classification or
// the hint, which exempts the document from automatic re-grouping.
func (d *AnalyzedDocument) Pinned() bool {
	return d.ClassSource == FieldManual || d.HintSource == FieldManual
}
