package playback

import "github.com/video-stream/transcut/internal/segment"

// DefaultEpsilon is how close to a range end a position may be before the
// controller stops skipping, so a seek to the end does not bounce.
const DefaultEpsilon = 0.1

// RangeSource supplies the current merged deleted ranges.
type RangeSource interface {
	Ranges() []segment.TimeRange
}

// RangesFunc adapts a function to RangeSource.
type RangesFunc func() []segment.TimeRange

func (f RangesFunc) Ranges() []segment.TimeRange { return f() }

// SkipController moves the playhead past deleted ranges. It only reads the
// source and never mutates it.
type SkipController struct {
	Source  RangeSource
	Epsilon float64
}

// NewSkipController uses DefaultEpsilon.
func NewSkipController(src RangeSource) *SkipController {
	return &SkipController{Source: src, Epsilon: DefaultEpsilon}
}

// Tick evaluates one playback position. If it lies in [start, end-Epsilon) of
// a deleted range the playhead jumps to that range's end.
func (c *SkipController) Tick(position float64) (float64, bool) {
	for _, r := range c.ranges() {
		if position >= r.Start && position < r.End-c.Epsilon {
			return r.End, true
		}
	}
	return position, false
}

// NextPlayable follows chained skips until position is playable. A source that
// is not merged may hold touching ranges.
func (c *SkipController) NextPlayable(position float64) float64 {
	ranges := c.ranges()
	for i := 0; i <= len(ranges); i++ {
		next, skipped := c.Tick(position)
		if !skipped {
			return position
		}
		position = next
	}
	return position
}

func (c *SkipController) ranges() []segment.TimeRange {
	if c.Source == nil {
		return nil
	}
	return c.Source.Ranges()
}
