// Package tracker reconciles crowd-submitted train position reports into a
// best-estimate consensus position per train.
//
// Two interchangeable backends implement Store: an in-process windowed
// aggregator and a Redis-backed store shared across service instances.
package tracker

import (
	"context"
	"strings"
	"time"
)

// Store is the capability surface the HTTP layer programs against.
type Store interface {
	// Push ingests one report. The boolean result and reason are expected
	// business outcomes (bound rejections); the error is an infrastructure
	// fault.
	Push(ctx context.Context, r Report) (bool, string, error)

	// Position returns the consensus position for one train, or nil when no
	// valid data exists.
	Position(ctx context.Context, trainID string) (*Position, error)

	// Positions batches Position for many trains; absent trains are omitted.
	Positions(ctx context.Context, trainIDs []string) (map[string]*Position, error)

	// Bounds returns the trusted-report bounds for a train, or nil.
	Bounds(ctx context.Context, trainID string) (*Bounds, error)

	// ActiveTrains lists trains with reports inside the short window.
	ActiveTrains(ctx context.Context) ([]string, error)

	// TrainsWithHistory lists trains with any report inside the long window.
	TrainsWithHistory(ctx context.Context) ([]string, error)

	// Healthy reports whether the backing store is reachable.
	Healthy(ctx context.Context) bool
}

// Report is one validated position report from the API layer.
type Report struct {
	TrainID   string
	UserID    string
	Position  float64
	Timestamp int64
}

// TrustedReporter reports whether a reporter id marks an authoritative
// source. The "bot" prefix naming convention is the sole trust mechanism.
func TrustedReporter(userID string) bool {
	return strings.HasPrefix(strings.ToLower(userID), "bot")
}

// Sample is a (position, timestamp) value pair.
type Sample struct {
	Position  float64 `json:"position"`
	Timestamp int64   `json:"timestamp"`
}

// Position is the consensus estimate served to clients. Unconfirmed
// duplicates the position and timestamp; older clients read only that field.
type Position struct {
	Position    float64 `json:"position"`
	Timestamp   int64   `json:"timestamp"`
	ActiveUsers int     `json:"active_user"`
	Live        bool    `json:"is_live"`
	Unconfirmed *Sample `json:"unconfirmed"`
}

// Store windows shared by both backends.
const (
	// LiveWindow is how long an ordinary reporter's data stays current.
	LiveWindow = 10 * time.Minute
	// HistoryWindow covers trusted reports, bounds, and last-known fallbacks.
	HistoryWindow = 10 * time.Hour
	// MaxValidAge invalidates any position data older than this.
	MaxValidAge = 10 * time.Hour
)

// ScheduleSource supplies the timetable-implied position used for bound
// checks. Unknown schedules are a valid state, not an error.
type ScheduleSource interface {
	Position(trainID string, timestamp int64) (float64, bool)
}
