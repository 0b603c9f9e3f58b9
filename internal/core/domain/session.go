package domain

import "time"

type SessionStatus string

const (
	SessionIdle       SessionStatus = "idle"
	SessionProcessing SessionStatus = "processing"
	SessionCompleted  SessionStatus = "completed"
)

type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// BatchSession owns every file, analyzed document, and report group of one
// intake batch. Deleting the session releases all of them.
type BatchSession struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	SortMethod SortMethod    `json:"sort_method"`
	Status     SessionStatus `json:"status"`
	Progress   Progress      `json:"progress"`

	// SkippedFiles counts uploads rejected as unsupported. They are
	// reported, not stored.
	SkippedFiles int `json:"skipped_files"`

	Files     []BatchFile        `json:"files"`
	Documents []AnalyzedDocument `json:"documents"`
	Groups    []ReportGroup      `json:"groups"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *BatchSession) File(fileID string) *BatchFile {
	for i := range s.Files {
		if s.Files[i].ID == fileID {
			return &s.Files[i]
		}
	}
	return nil
}

func (s *BatchSession) Document(fileID string) *AnalyzedDocument {
	for i := range s.Documents {
		if s.Documents[i].FileID == fileID {
			return &s.Documents[i]
		}
	}
	return nil
}

func (s *BatchSession) Group(key string) *ReportGroup {
	for i := range s.Groups {
		if s.Groups[i].Key == key {
			return &s.Groups[i]
		}
	}
	return nil
}
