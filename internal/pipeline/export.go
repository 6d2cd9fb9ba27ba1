package pipeline

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/video-stream/transcut/internal/progress"
	"github.com/video-stream/transcut/internal/segment"
)

// Overall progress split for export: derivation takes the first 10%.
const (
	encodeOffset = 10.0
	encodeWeight = 0.9
)

// ExportRequest is the input for an export run.
type ExportRequest struct {
	Source        string              `json:"source"`
	Deleted       []segment.TimeRange `json:"deleted"`
	TotalDuration float64             `json:"total_duration"`
	Settings      ExportSettings      `json:"settings"`
}

// Exporter derives the kept ranges and hands them to the encoder.
type Exporter struct {
	Encoder Encoder
}

// NewExporter wires the encoder.
func NewExporter(encoder Encoder) *Exporter {
	return &Exporter{Encoder: encoder}
}

// Keep returns the ranges an export of req would contain. With nothing deleted
// the whole source is kept.
func Keep(req ExportRequest) []segment.TimeRange {
	deleted := segment.Merge(req.Deleted)
	if len(deleted) == 0 {
		return []segment.TimeRange{{Start: 0, End: req.TotalDuration}}
	}
	return segment.DeriveKept(req.TotalDuration, deleted)
}

// Export encodes the kept parts of req.Source. When everything is deleted it
// fails with ErrEmptyExport without calling the encoder.
func (e *Exporter) Export(ctx context.Context, req ExportRequest, obs Observer) (*EncodeResult, error) {
	started := time.Now()
	log := logger.WithFields(logrus.Fields{"source": req.Source, "deleted": len(req.Deleted)})

	m := NewMachine(obs.State)
	th := progress.NewThrottle(obs.Progress)
	th.Update(0)

	fail := func(k Kind, err error) (*EncodeResult, error) {
		m.Fail()
		pe := NewError(k, err)
		log.WithError(err).WithField("kind", pe.Kind).Warn("export failed")
		return nil, pe
	}

	settings := req.Settings.WithDefaults()
	if err := settings.Validate(); err != nil {
		return fail(KindEncodingFailed, err)
	}

	if err := m.Transition(StateDeriving); err != nil {
		return nil, err
	}
	keep := Keep(req)
	if len(keep) == 0 || segment.TotalDuration(keep) <= 0 {
		return fail(KindEmptyExportResult, &Error{Kind: KindEmptyExportResult})
	}
	th.Update(encodeOffset)

	if err := m.Transition(StateEncoding); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return fail(KindCancelled, err)
	}
	res, err := e.Encoder.Encode(ctx, EncodeRequest{Source: req.Source, Keep: keep, Settings: settings},
		progress.Fraction(progress.Scale(encodeOffset, encodeWeight, th.Func())))
	if err != nil {
		return fail(KindEncodingFailed, err)
	}
	if res == nil || res.Path == "" {
		return fail(KindEncodingFailed, errors.New("encoder produced no output"))
	}
	if fi, err := os.Stat(res.Path); err != nil || fi.Size() == 0 {
		return fail(KindEncodingFailed, errors.New("encoder produced an empty file"))
	}

	th.Update(100)
	if err := m.Transition(StateComplete); err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"segments": len(keep),
		"output":   res.Path,
		"elapsed":  time.Since(started).Round(time.Millisecond),
	}).Info("export complete")
	return res, nil
}
