package filemeta

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/radonlabs/clindoc/internal/core/domain"
)

// Inspector determines a raw upload's kind and the lightweight metadata
// each container exposes. Metadata extraction is best effort: a probe
// never fails because EXIF or DICOM tags are unreadable, only when the
// payload itself is unsupported.
type Inspector struct {
	logger *slog.Logger
}

func NewInspector(logger *slog.Logger) *Inspector {
	return &Inspector{logger: logger}
}

func (i *Inspector) Inspect(_ context.Context, filename string, payload []byte) (domain.FileProbe, error) {
	kind := detectKind(payload)
	if kind == domain.KindOther {
		return domain.FileProbe{}, domain.WrapError(domain.ErrUnsupportedFile, "inspect file",
			fmt.Errorf("unrecognized payload for %q", filename))
	}

	probe := domain.FileProbe{
		Kind:        kind,
		SizeBytes:   int64(len(payload)),
		Previewable: previewable(kind, payload),
	}

	switch kind {
	case domain.KindImage:
		probe.CaptureTime = i.captureTime(filename, payload)
	case domain.KindDICOM:
		probe.DICOM = i.dicomAttributes(filename, payload)
	case domain.KindPDF:
		probe.PDFPages = i.pdfPageCount(filename, payload)
	}
	return probe, nil
}

// captureTime reads the EXIF original date-time from a JPEG payload.
// PNG/WEBP/BMP carry no EXIF and return zero immediately.
func (i *Inspector) captureTime(filename string, payload []byte) time.Time {
	if !isJPEG(payload) {
		return time.Time{}
	}
	meta, err := exif.Decode(bytes.NewReader(payload))
	if err != nil {
		i.logger.Debug("no exif metadata", "filename", filename, "error", err)
		return time.Time{}
	}
	ts, err := meta.DateTime()
	if err != nil {
		i.logger.Debug("no exif datetime", "filename", filename, "error", err)
		return time.Time{}
	}
	return ts
}

func (i *Inspector) dicomAttributes(filename string, payload []byte) *domain.DICOMAttributes {
	dataset, err := dicom.Parse(bytes.NewReader(payload), int64(len(payload)), nil)
	if err != nil {
		i.logger.Debug("dicom parse failed", "filename", filename, "error", err)
		return nil
	}

	attrs := &domain.DICOMAttributes{
		SeriesNumber:    firstInt(&dataset, tag.SeriesNumber),
		InstanceNumber:  firstInt(&dataset, tag.InstanceNumber),
		PatientName:     firstString(&dataset, tag.PatientName),
		PatientID:       firstString(&dataset, tag.PatientID),
		AccessionNumber: firstString(&dataset, tag.AccessionNumber),
		Modality:        firstString(&dataset, tag.Modality),
	}
	if raw := firstString(&dataset, tag.StudyDate); raw != "" {
		if ts, err := time.ParseInLocation("20060102", raw, time.Local); err == nil {
			attrs.StudyDate = ts
		}
	}
	return attrs
}

func (i *Inspector) pdfPageCount(filename string, payload []byte) int {
	reader, err := pdf.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		i.logger.Debug("pdf parse failed", "filename", filename, "error", err)
		return 0
	}
	return reader.NumPage()
}

func firstString(dataset *dicom.Dataset, t tag.Tag) string {
	element, err := dataset.FindElementByTag(t)
	if err != nil {
		return ""
	}
	values, ok := element.Value.GetValue().([]string)
	if !ok || len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

func firstInt(dataset *dicom.Dataset, t tag.Tag) int {
	raw := firstString(dataset, t)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}
