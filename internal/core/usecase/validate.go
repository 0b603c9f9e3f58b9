package usecase

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/radonlabs/clindoc/internal/core/domain"
)

// ValidateGroup checks that every member of a candidate group can belong
// to the same clinical report. Divergent patient identity or divergent
// order identifiers are hard blocks: a group carrying two patients must
// never reach extraction. Divergent exam types are a split signal only,
// consumed by the grouping engine to prefer separate groups.
//
// Blank pages are ignored entirely; they carry no identity signal.
func ValidateGroup(docs []*domain.AnalyzedDocument, rules domain.GroupingRules) domain.ConsistencyReport {
	var report domain.ConsistencyReport
	if len(docs) <= 1 {
		return report
	}

	names := newValueSet()
	orders := newValueSet()
	examTypes := newValueSet()

	for _, doc := range docs {
		if doc == nil || isBlankText(doc.VerbatimText, rules) {
			continue
		}
		if name := normalizeIdentity(doc.Metadata.PatientName); utf8.RuneCountInString(name) >= rules.MinPatientNameRunes {
			names.add(name)
		}
		if order := normalizeIdentity(doc.Metadata.OrderID); utf8.RuneCountInString(order) >= rules.MinOrderIDRunes {
			orders.add(order)
		}
		if exam := normalizeExamType(doc.Metadata.ExamType, rules); exam != "" {
			examTypes.add(exam)
		}
	}

	if len(names.values) > 1 {
		report.Blocked = true
		report.Reasons = append(report.Reasons,
			fmt.Sprintf("patient identity mismatch: %s", strings.Join(names.values, " vs ")))
	}
	if len(orders.values) > 1 {
		report.Blocked = true
		report.Reasons = append(report.Reasons,
			fmt.Sprintf("order identifier mismatch: %s", strings.Join(orders.values, " vs ")))
	}
	if len(examTypes.values) > 1 {
		report.SplitSignals = append(report.SplitSignals,
			fmt.Sprintf("mixed exam types: %s", strings.Join(examTypes.values, " vs ")))
	}

	return report
}

// documentWarnings collects non-blocking warnings attached to a single
// document after analysis.
func documentWarnings(text string, rules domain.GroupingRules) []string {
	var warnings []string
	if !isBlankText(text, rules) && looksTruncated(text) {
		warnings = append(warnings, "document appears truncated: text ends mid-sentence")
	}
	return warnings
}

// valueSet keeps distinct normalized values in first-seen order so block
// reasons cite them deterministically.
type valueSet struct {
	seen   map[string]struct{}
	values []string
}

func newValueSet() *valueSet {
	return &valueSet{seen: make(map[string]struct{})}
}

func (s *valueSet) add(v string) {
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.values = append(s.values, v)
}
