package usecase

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/radonlabs/clindoc/internal/core/domain"
)

var (
	isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	brDatePattern  = regexp.MustCompile(`^(\d{2})/(\d{2})/(\d{4})$`)
)

// normalizeIdentity prepares extracted identity fields for comparison:
// accents stripped, uppercased, internal whitespace collapsed. OCR output
// of the same name from two scanners should normalize identically.
func normalizeIdentity(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// normalizeExamType additionally folds configured aliases so "TC TORAX"
// and "TOMOGRAFIA DE TORAX" can compare equal.
func normalizeExamType(s string, rules domain.GroupingRules) string {
	n := normalizeIdentity(s)
	if n == "" {
		return ""
	}
	if alias, ok := rules.ExamTypeAliases[strings.ToLower(n)]; ok {
		return normalizeIdentity(alias)
	}
	return n
}

// normalizeExamDate reduces dates to YYYY-MM-DD where possible, accepting
// the analyzer's DD/MM/YYYY output as well.
func normalizeExamDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if isoDatePattern.MatchString(s) {
		return s
	}
	if m := brDatePattern.FindStringSubmatch(s); m != nil {
		return m[3] + "-" + m[2] + "-" + m[1]
	}
	return s
}

// isBlankText reports whether extracted text is too short to carry any
// grouping signal. Blank pages never participate in group formation.
func isBlankText(text string, rules domain.GroupingRules) bool {
	return utf8.RuneCountInString(strings.TrimSpace(text)) < rules.MinTextRunes
}

// looksTruncated flags text that stops mid-sentence: non-empty but not
// terminated by sentence punctuation or a closing section marker.
func looksTruncated(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(trimmed)
	switch last {
	case '.', '!', '?', ':', ';', ')', ']', '"', '\'':
		return false
	}
	return true
}

// isAddendum detects errata/addendum pages by keyword.
func isAddendum(text string, rules domain.GroupingRules) bool {
	if text == "" {
		return false
	}
	upper := strings.ToUpper(text)
	for _, kw := range rules.AddendumKeywords {
		if strings.Contains(upper, strings.ToUpper(kw)) {
			return true
		}
	}
	return false
}
