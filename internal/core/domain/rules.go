package domain

// SimilarityWeights are the tunable contributions of each metadata match
// to the cross-hint similarity score. Negative values push documents
// apart.
type SimilarityWeights struct {
	SamePatient      float64 `yaml:"same_patient"`
	SameOrderID      float64 `yaml:"same_order_id"`
	OrderIDMismatch  float64 `yaml:"order_id_mismatch"`
	SameExamDate     float64 `yaml:"same_exam_date"`
	FollowUpPenalty  float64 `yaml:"follow_up_penalty"`
	SameOrigin       float64 `yaml:"same_origin"`
	SameExamType     float64 `yaml:"same_exam_type"`
	ExamTypeMismatch float64 `yaml:"exam_type_mismatch"`
}

// GroupingRules governs validator thresholds and the pluggable similarity
// strategy. Values ship with defaults and may be overridden from a YAML
// rules file.
type GroupingRules struct {
	// MinTextRunes is the blank-page cutoff: documents with less
	// extractable text never participate in grouping.
	MinTextRunes int `yaml:"min_text_runes"`

	// Identity fields shorter than these are treated as OCR noise and
	// skipped by the validator rather than compared.
	MinOrderIDRunes     int `yaml:"min_order_id_runes"`
	MinPatientNameRunes int `yaml:"min_patient_name_runes"`

	AutoGroupThreshold float64 `yaml:"auto_group_threshold"`
	AskThreshold       float64 `yaml:"ask_threshold"`

	Weights SimilarityWeights `yaml:"weights"`

	AddendumKeywords []string          `yaml:"addendum_keywords"`
	ExamTypeAliases  map[string]string `yaml:"exam_type_aliases"`
}

func DefaultGroupingRules() GroupingRules {
	return GroupingRules{
		MinTextRunes:        20,
		MinOrderIDRunes:     4,
		MinPatientNameRunes: 6,
		AutoGroupThreshold:  0.85,
		AskThreshold:        0.5,
		Weights: SimilarityWeights{
			SamePatient:      0.35,
			SameOrderID:      0.30,
			OrderIDMismatch:  -0.30,
			SameExamDate:     0.15,
			FollowUpPenalty:  -0.40,
			SameOrigin:       0.10,
			SameExamType:     0.10,
			ExamTypeMismatch: -0.30,
		},
		AddendumKeywords: []string{
			"ERRATA", "ADENDO", "COMPLEMENTO", "RETIFICAÇÃO", "CORREÇÃO", "ADITIVO",
		},
		ExamTypeAliases: map[string]string{},
	}
}
