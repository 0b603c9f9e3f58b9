package rules

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	r, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if r.MinTextRunes != 20 {
		t.Fatalf("expected default min text runes 20, got %d", r.MinTextRunes)
	}
	if r.AutoGroupThreshold != 0.85 {
		t.Fatalf("expected default auto threshold 0.85, got %v", r.AutoGroupThreshold)
	}
	if len(r.AddendumKeywords) == 0 {
		t.Fatalf("expected default addendum keywords")
	}
}

func TestLoadOverlaysFileOnDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := []byte("min_text_runes: 40\nask_threshold: 0.6\nexam_type_aliases:\n  \"tc torax\": \"tomografia de torax\"\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write rules file: %v", err)
	}

	r, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if r.MinTextRunes != 40 {
		t.Fatalf("expected overridden min text runes 40, got %d", r.MinTextRunes)
	}
	if r.AskThreshold != 0.6 {
		t.Fatalf("expected overridden ask threshold 0.6, got %v", r.AskThreshold)
	}
	if r.ExamTypeAliases["tc torax"] != "tomografia de torax" {
		t.Fatalf("expected exam type alias to load, got %v", r.ExamTypeAliases)
	}
	if r.AutoGroupThreshold != 0.85 {
		t.Fatalf("expected untouched auto threshold 0.85, got %v", r.AutoGroupThreshold)
	}
}

func TestLoadRejectsInvalidThresholds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := []byte("auto_group_threshold: 3.0\nask_threshold: 2.5\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write rules file: %v", err)
	}

	r, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if r.AutoGroupThreshold != 0.85 || r.AskThreshold != 0.5 {
		t.Fatalf("expected threshold fallback to defaults, got %v/%v", r.AutoGroupThreshold, r.AskThreshold)
	}
}
