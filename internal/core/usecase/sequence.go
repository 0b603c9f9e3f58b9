package usecase

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/radonlabs/clindoc/internal/core/domain"
)

// Sequence returns a new slice ordered by the requested method. Manual
// preserves the incoming order (drag-and-drop result). Whenever both
// compared files are DICOM, series/instance ordering takes precedence
// over the generic heuristics: the internal PACS structure is
// authoritative.
func Sequence(files []domain.BatchFile, method domain.SortMethod) []domain.BatchFile {
	out := make([]domain.BatchFile, len(files))
	copy(out, files)

	if method == domain.SortManual {
		return out
	}

	sort.SliceStable(out, func(i, j int) bool {
		return compareFiles(out[i], out[j], method) < 0
	})
	return out
}

// Enumerate assigns contiguous 1-based order indices and normalized names
// of the form 001.ext. DICOM files are named .png because they are
// rasterized before analysis.
func Enumerate(files []domain.BatchFile) []domain.BatchFile {
	out := make([]domain.BatchFile, len(files))
	copy(out, files)

	for i := range out {
		out[i].OrderIndex = i + 1
		out[i].NormalizedName = fmt.Sprintf("%03d.%s", i+1, targetExtension(out[i]))
	}
	return out
}

func compareFiles(a, b domain.BatchFile, method domain.SortMethod) int {
	if a.Kind == domain.KindDICOM && b.Kind == domain.KindDICOM {
		if c := compareDICOM(a, b); c != 0 {
			return c
		}
		return naturalCompare(a.Filename, b.Filename)
	}

	if method == domain.SortByTimestamp {
		if c := compareTimestamps(a, b); c != 0 {
			return c
		}
	}
	return naturalCompare(a.Filename, b.Filename)
}

func compareDICOM(a, b domain.BatchFile) int {
	var sa, ia, sb, ib int
	if a.DICOM != nil {
		sa, ia = a.DICOM.SeriesNumber, a.DICOM.InstanceNumber
	}
	if b.DICOM != nil {
		sb, ib = b.DICOM.SeriesNumber, b.DICOM.InstanceNumber
	}
	if sa != sb {
		return sa - sb
	}
	if ia != ib {
		return ia - ib
	}
	return compareTimestamps(a, b)
}

func compareTimestamps(a, b domain.BatchFile) int {
	// Files without a resolved timestamp sort last.
	switch {
	case a.HasTimestamp() && !b.HasTimestamp():
		return -1
	case !a.HasTimestamp() && b.HasTimestamp():
		return 1
	case !a.HasTimestamp() && !b.HasTimestamp():
		return 0
	}
	if a.Timestamp.Before(b.Timestamp) {
		return -1
	}
	if a.Timestamp.After(b.Timestamp) {
		return 1
	}
	return 0
}

// naturalCompare orders strings the way a human reads them: digit runs
// compare numerically ("image2" before "image10") and letters compare
// case-insensitively. Equal case-insensitive inputs fall back to a
// case-sensitive compare for determinism.
func naturalCompare(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	i, j := 0, 0

	for i < len(ra) && j < len(rb) {
		ca, cb := ra[i], rb[j]

		if unicode.IsDigit(ca) && unicode.IsDigit(cb) {
			si, sj := i, j
			for i < len(ra) && unicode.IsDigit(ra[i]) {
				i++
			}
			for j < len(rb) && unicode.IsDigit(rb[j]) {
				j++
			}
			na := strings.TrimLeft(string(ra[si:i]), "0")
			nb := strings.TrimLeft(string(rb[sj:j]), "0")
			if len(na) != len(nb) {
				return len(na) - len(nb)
			}
			if c := strings.Compare(na, nb); c != 0 {
				return c
			}
			continue
		}

		fa, fb := unicode.ToLower(ca), unicode.ToLower(cb)
		if fa != fb {
			if fa < fb {
				return -1
			}
			return 1
		}
		i++
		j++
	}

	if c := (len(ra) - i) - (len(rb) - j); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

func targetExtension(f domain.BatchFile) string {
	if f.Kind == domain.KindDICOM {
		return "png"
	}
	ext := strings.TrimPrefix(filepath.Ext(f.Filename), ".")
	if ext == "" {
		return "bin"
	}
	return strings.ToLower(ext)
}
