package usecase

import (
	"regexp"
	"strconv"
	"time"

	"github.com/radonlabs/clindoc/internal/core/domain"
)

// filenameDatePattern matches YYYYMMDD, YYYY-MM-DD, YYYY_MM_DD and
// YYYY.MM.DD with the year constrained to this century. Calendar validity
// is checked separately so that e.g. month 13 is a non-match, not a
// shifted date.
var filenameDatePattern = regexp.MustCompile(`(20\d{2})[-_.]?([0-1]\d)[-_.]?([0-3]\d)`)

// resolveTimestamp picks the best-effort capture time for a file, in
// strict priority order: embedded image metadata, filename date pattern,
// DICOM study date, filesystem modification time. Once a stronger source
// succeeds, weaker ones are not consulted.
func resolveTimestamp(probe domain.FileProbe, filename string, modified time.Time) (time.Time, domain.TimestampSource) {
	if probe.Kind == domain.KindImage && !probe.CaptureTime.IsZero() {
		return probe.CaptureTime, domain.SourceEXIF
	}

	if ts, ok := parseFilenameDate(filename); ok {
		return ts, domain.SourceFilename
	}

	if probe.Kind == domain.KindDICOM && probe.DICOM != nil && !probe.DICOM.StudyDate.IsZero() {
		return probe.DICOM.StudyDate, domain.SourceDICOM
	}

	if !modified.IsZero() {
		return modified, domain.SourceModified
	}
	return time.Time{}, domain.SourceNone
}

// parseFilenameDate extracts a calendar-valid date from the filename and
// anchors it at midday local time so timezone conversion cannot roll the
// date over.
func parseFilenameDate(name string) (time.Time, bool) {
	m := filenameDatePattern.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, false
	}

	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])

	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}

	return time.Date(year, time.Month(month), day, 12, 0, 0, 0, time.Local), true
}
