// Package schedule derives expected train positions from the static timetable.
package schedule

import (
	"time"

	"github.com/Jisangain/find-my-br-train/internal/timetable"
)

// DefaultTimezone is the zone all train schedules are expressed in.
const DefaultTimezone = "Asia/Dhaka"

// Estimator computes the timetable-implied fractional stop index for a train
// at a given instant. Positions are in stop-index space: 0 is the first stop,
// N-1 the last, non-integer values lie between consecutive stops.
type Estimator struct {
	data *timetable.Dataset
	loc  *time.Location
}

// NewEstimator creates an estimator over one dataset revision.
func NewEstimator(data *timetable.Dataset, loc *time.Location) *Estimator {
	return &Estimator{data: data, loc: loc}
}

type stopTime struct {
	index   int
	minutes int
}

// Position returns the expected position of a train at the given epoch second,
// or false when the train is unknown or has no usable schedule times.
//
// Schedules never span more than 24 hours, so at most one midnight crossing
// has to be handled: when the last scheduled time is earlier than the first,
// times before the first stop belong to the next day and get 24h added.
func (e *Estimator) Position(trainID string, timestamp int64) (float64, bool) {
	train := e.data.Train(trainID)
	if train == nil {
		return 0, false
	}

	var times []stopTime
	for i, stop := range train.Stops {
		if m, ok := timetable.ParseClock(stop.Time); ok {
			times = append(times, stopTime{index: i, minutes: m})
		}
	}
	if len(times) == 0 {
		return 0, false
	}

	now := time.Unix(timestamp, 0).In(e.loc)
	current := now.Hour()*60 + now.Minute()

	first := times[0].minutes
	last := times[len(times)-1].minutes
	crossesMidnight := last < first

	if crossesMidnight {
		for i := range times {
			if times[i].minutes < first {
				times[i].minutes += 1440
			}
		}
		// The query lands in the after-midnight segment only when it is both
		// before the first stop's raw time and at or before the raw last time;
		// otherwise the train simply is not running yet.
		if current < first && current <= last {
			current += 1440
		}
	}

	var prev, next *stopTime
	for i := range times {
		st := times[i]
		if st.minutes <= current {
			prev = &times[i]
		} else {
			next = &times[i]
			break
		}
	}

	switch {
	case prev != nil && next != nil:
		span := next.minutes - prev.minutes
		if span <= 0 {
			return float64(prev.index), true
		}
		progress := float64(current-prev.minutes) / float64(span)
		return float64(prev.index) + progress*float64(next.index-prev.index), true
	case prev != nil:
		// Past the last scheduled stop.
		return float64(prev.index), true
	case next != nil:
		// Not yet departed.
		return 0, true
	default:
		return 0, false
	}
}
