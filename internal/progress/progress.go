package progress

import (
	"time"

	"github.com/video-stream/transcut/internal/transcript"
)

// Event is a progress update or partial result for one request.
type Event struct {
	RequestID string            `json:"request_id"`
	Stage     string            `json:"stage"`
	Percent   float64           `json:"percent"`
	Message   string            `json:"message,omitempty"`
	Words     []transcript.Word `json:"words,omitempty"`
	Kind      string            `json:"kind,omitempty"` // error kind on failure
	Final     bool              `json:"final,omitempty"`
	Time      time.Time         `json:"time"`
}

// Func receives overall progress as a percentage in [0, 100].
type Func func(percent float64)

// Scale maps a sub-stage percentage onto the overall bar as offset + sub*weight.
// A nil report yields a no-op.
func Scale(offset, weight float64, report Func) Func {
	return func(sub float64) {
		if report == nil {
			return
		}
		report(clamp(offset + clamp(sub)*weight))
	}
}

// Fraction adapts a 0..1 callback into a percentage one.
func Fraction(report Func) func(float64) {
	return func(f float64) {
		if report != nil {
			report(f * 100)
		}
	}
}

func clamp(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
