package tracker

import "fmt"

// BoundTolerance is the admissible slack around bound anchors, as a fraction
// of one stop interval.
const BoundTolerance = 0.50

// Bounds is the admissible-position window for a train, anchored by trusted
// reports. Lower never decreases within its validity window; Upper tracks
// the timetable and may move either way.
type Bounds struct {
	Lower       *float64 `json:"lower"`
	Upper       *float64 `json:"upper"`
	BotPosition *float64 `json:"bot_position"`
	Timestamp   int64    `json:"timestamp"`
}

// ApplyTrusted refreshes the bounds from a trusted report at position p, with
// the scheduled position at the report's timestamp when known.
func (b *Bounds) ApplyTrusted(p float64, scheduled float64, scheduleKnown bool, timestamp int64) {
	lower := p - BoundTolerance
	if lower < 0 {
		lower = 0
	}
	if b.Lower == nil || lower > *b.Lower {
		b.Lower = &lower
	}
	if scheduleKnown {
		upper := scheduled + BoundTolerance
		b.Upper = &upper
	}
	pos := p
	b.BotPosition = &pos
	b.Timestamp = timestamp
}

// Validate checks a non-trusted position report against the envelope. The
// upper check uses the scheduled position directly (train can't run ahead of
// the timetable); the lower check applies only when a trusted report set one.
// A nil receiver means no bounds exist yet, leaving only the upper check.
func (b *Bounds) Validate(p float64, scheduled float64, scheduleKnown bool) (bool, string) {
	if scheduleKnown {
		upper := scheduled + BoundTolerance
		if p > upper {
			return false, fmt.Sprintf("Position %.2f exceeds scheduled position %.2f (upper bound %.2f)", p, scheduled, upper)
		}
	}
	if b != nil && b.Lower != nil && p < *b.Lower {
		return false, fmt.Sprintf("Position %.2f is below lower bound %.2f", p, *b.Lower)
	}
	return true, "Position within bounds"
}
