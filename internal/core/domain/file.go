package domain

import "time"

type FileKind string

const (
	KindImage FileKind = "image"
	KindDICOM FileKind = "dicom"
	KindPDF   FileKind = "pdf"
	KindOther FileKind = "other"
)

type TimestampSource string

const (
	SourceEXIF     TimestampSource = "exif"
	SourceFilename TimestampSource = "filename"
	SourceDICOM    TimestampSource = "dicom"
	SourceModified TimestampSource = "modified"
	SourceNone     TimestampSource = "none"
)

// timestampPriority orders sources strongest-first. A weaker source never
// overrides a resolved stronger one.
var timestampPriority = map[TimestampSource]int{
	SourceEXIF:     4,
	SourceFilename: 3,
	SourceDICOM:    2,
	SourceModified: 1,
	SourceNone:     0,
}

func (s TimestampSource) StrongerThan(other TimestampSource) bool {
	return timestampPriority[s] > timestampPriority[other]
}

type SortMethod string

const (
	SortByFilename  SortMethod = "filename"
	SortByTimestamp SortMethod = "timestamp"
	SortManual      SortMethod = "manual"
)

func ParseSortMethod(raw string) (SortMethod, bool) {
	switch SortMethod(raw) {
	case SortByFilename, SortByTimestamp, SortManual:
		return SortMethod(raw), true
	}
	return "", false
}

type FileStatus string

const (
	FileIdle       FileStatus = "idle"
	FileReady      FileStatus = "ready"
	FileProcessing FileStatus = "processing"
	FileCompleted  FileStatus = "completed"
	FileError      FileStatus = "error"
)

// DICOMAttributes carries the subset of DICOM tags the intake pipeline
// consults: series/instance for ordering, study date for timestamps, and
// patient identity for consistency validation.
type DICOMAttributes struct {
	SeriesNumber    int       `json:"series_number"`
	InstanceNumber  int       `json:"instance_number"`
	StudyDate       time.Time `json:"study_date,omitzero"`
	PatientName     string    `json:"patient_name,omitempty"`
	PatientID       string    `json:"patient_id,omitempty"`
	AccessionNumber string    `json:"accession_number,omitempty"`
	Modality        string    `json:"modality,omitempty"`
}

// FileProbe is the inspector's verdict on a raw upload: detected kind plus
// whatever lightweight metadata the container exposes.
type FileProbe struct {
	Kind        FileKind
	SizeBytes   int64
	Previewable bool
	CaptureTime time.Time // embedded image metadata, zero when absent
	DICOM       *DICOMAttributes
	PDFPages    int
}

// BatchFile is a raw upload plus everything the sequencer derived for it.
// The payload itself lives in object storage under StorageKey.
type BatchFile struct {
	ID        string   `json:"id"`
	Filename  string   `json:"filename"`
	Kind      FileKind `json:"kind"`
	SizeBytes int64    `json:"size_bytes"`

	StorageKey  string `json:"storage_key"`
	Previewable bool   `json:"previewable"`

	Modified        time.Time       `json:"modified"`
	Timestamp       time.Time       `json:"timestamp,omitzero"`
	TimestampSource TimestampSource `json:"timestamp_source"`

	DICOM    *DICOMAttributes `json:"dicom,omitempty"`
	PDFPages int              `json:"pdf_pages,omitempty"`

	OrderIndex     int    `json:"order_index"`
	NormalizedName string `json:"normalized_name"`

	Selected bool       `json:"selected"`
	Status   FileStatus `json:"status"`
	Error    string     `json:"error,omitempty"`
}

func (f BatchFile) HasTimestamp() bool {
	return !f.Timestamp.IsZero() && f.TimestampSource != SourceNone
}
