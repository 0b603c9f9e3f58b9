package filemeta

import (
	"bytes"
	"encoding/binary"

	"github.com/radonlabs/clindoc/internal/core/domain"
)

// detectKind sniffs the payload's magic bytes. The filename extension is
// never consulted: scanners and PACS exports routinely mislabel files.
func detectKind(payload []byte) domain.FileKind {
	switch {
	case isJPEG(payload), isPNG(payload), isWEBP(payload), isGIF(payload), isBMP(payload):
		return domain.KindImage
	case isDICOM(payload):
		return domain.KindDICOM
	case isPDF(payload):
		return domain.KindPDF
	default:
		return domain.KindOther
	}
}

func isJPEG(p []byte) bool {
	return len(p) >= 3 && p[0] == 0xFF && p[1] == 0xD8 && p[2] == 0xFF
}

func isPNG(p []byte) bool {
	return bytes.HasPrefix(p, []byte{0x89, 'P', 'N', 'G'})
}

func isWEBP(p []byte) bool {
	return len(p) >= 12 && bytes.Equal(p[0:4], []byte("RIFF")) && bytes.Equal(p[8:12], []byte("WEBP"))
}

func isGIF(p []byte) bool {
	return bytes.HasPrefix(p, []byte("GIF8"))
}

func isBMP(p []byte) bool {
	return bytes.HasPrefix(p, []byte("BM"))
}

func isPDF(p []byte) bool {
	return bytes.HasPrefix(p, []byte("%PDF"))
}

// isDICOM accepts the standard DICM marker at offset 128 and, for exports
// that strip the preamble, falls back to recognizing a leading file
// meta-information tag (group 0002) or data-set tag (group 0008) in
// little-endian encoding.
func isDICOM(p []byte) bool {
	if len(p) >= 132 && bytes.Equal(p[128:132], []byte("DICM")) {
		return true
	}
	if len(p) < 8 {
		return false
	}
	group := binary.LittleEndian.Uint16(p[0:2])
	return group == 0x0002 || group == 0x0008
}

// previewable reports whether a browser can render the payload directly.
func previewable(kind domain.FileKind, payload []byte) bool {
	switch kind {
	case domain.KindImage:
		return !isBMP(payload)
	case domain.KindPDF:
		return true
	default:
		return false
	}
}
