package usecase

import "github.com/radonlabs/clindoc/internal/core/domain"

// SimilarityResult is the outcome of comparing two analyzed documents for
// cross-hint grouping. The score is clamped to [0,1]; thresholds decide
// whether to ask the user. Cross-hint merges always require confirmation,
// so ShouldAutoGroup only marks high confidence for the prompt.
type SimilarityResult struct {
	Score           float64
	Reasons         []string
	ShouldAsk       bool
	ShouldAutoGroup bool
}

// scoreSimilarity implements the pluggable scoring strategy over the
// extracted identity metadata of two documents. Weights and thresholds
// come from the grouping rules. Two documents naming different patients
// score zero unconditionally.
func scoreSimilarity(a, b *domain.AnalyzedDocument, rules domain.GroupingRules) SimilarityResult {
	metaA, metaB := a.Metadata, b.Metadata
	w := rules.Weights

	var score float64
	var reasons []string

	nameA := normalizeIdentity(metaA.PatientName)
	nameB := normalizeIdentity(metaB.PatientName)
	if nameA != "" && nameB != "" {
		if nameA != nameB {
			return SimilarityResult{Reasons: []string{"different patients"}}
		}
		score += w.SamePatient
		reasons = append(reasons, "same patient")
	}

	orderA := normalizeIdentity(metaA.OrderID)
	orderB := normalizeIdentity(metaB.OrderID)
	if orderA != "" && orderB != "" {
		if orderA == orderB {
			score += w.SameOrderID
			reasons = append(reasons, "same order identifier")
		} else {
			score += w.OrderIDMismatch
			reasons = append(reasons, "different order identifiers")
		}
	}

	examA := normalizeExamType(metaA.ExamType, rules)
	examB := normalizeExamType(metaB.ExamType, rules)
	dateA := normalizeExamDate(metaA.ExamDate)
	dateB := normalizeExamDate(metaB.ExamDate)

	if dateA != "" && dateB != "" {
		if dateA == dateB {
			score += w.SameExamDate
			reasons = append(reasons, "same exam date")
		} else if examA != "" && examA == examB {
			// Same exam type on different dates is a follow-up, not the
			// same report.
			score += w.FollowUpPenalty
			reasons = append(reasons, "likely follow-up: same exam type, different dates")
		}
	}

	originA := normalizeIdentity(metaA.OriginService)
	originB := normalizeIdentity(metaB.OriginService)
	if originA != "" && originA == originB {
		score += w.SameOrigin
		reasons = append(reasons, "same origin service")
	}

	if examA != "" && examB != "" {
		if examA == examB {
			if dateA == dateB || dateA == "" || dateB == "" {
				score += w.SameExamType
				reasons = append(reasons, "same exam type")
			}
		} else {
			score += w.ExamTypeMismatch
			reasons = append(reasons, "different exam types")
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	return SimilarityResult{
		Score:           score,
		Reasons:         reasons,
		ShouldAsk:       score >= rules.AskThreshold,
		ShouldAutoGroup: score >= rules.AutoGroupThreshold,
	}
}
