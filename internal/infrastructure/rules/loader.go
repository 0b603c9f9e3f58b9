package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/radonlabs/clindoc/internal/core/domain"
)

// Load reads a grouping rules file and overlays it on the defaults. An
// empty path returns the defaults untouched.
func Load(path string) (domain.GroupingRules, error) {
	out := domain.DefaultGroupingRules()
	if path == "" {
		return out, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return out, fmt.Errorf("read rules file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("parse rules yaml: %w", err)
	}

	return normalize(out), nil
}

func normalize(r domain.GroupingRules) domain.GroupingRules {
	def := domain.DefaultGroupingRules()

	if r.MinTextRunes <= 0 {
		r.MinTextRunes = def.MinTextRunes
	}
	if r.MinOrderIDRunes <= 0 {
		r.MinOrderIDRunes = def.MinOrderIDRunes
	}
	if r.MinPatientNameRunes <= 0 {
		r.MinPatientNameRunes = def.MinPatientNameRunes
	}
	if r.AutoGroupThreshold <= 0 || r.AutoGroupThreshold > 1 {
		r.AutoGroupThreshold = def.AutoGroupThreshold
	}
	if r.AskThreshold <= 0 || r.AskThreshold >= r.AutoGroupThreshold {
		r.AskThreshold = def.AskThreshold
	}
	if len(r.AddendumKeywords) == 0 {
		r.AddendumKeywords = def.AddendumKeywords
	}
	if r.ExamTypeAliases == nil {
		r.ExamTypeAliases = map[string]string{}
	}
	return r
}
