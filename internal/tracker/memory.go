package tracker

import (
	"context"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Jisangain/find-my-br-train/internal/timetable"
)

// DefaultSweepInterval is how often the in-process aggregator folds queued
// reports into consensus positions.
const DefaultSweepInterval = 30 * time.Second

// userReport is one reporter's latest accepted report.
type userReport struct {
	sample  Sample
	trusted bool
}

// memorySnapshot is the immutable read view published after each sweep.
// Confirmed and unconfirmed are independent: a train keeps its last
// unconfirmed value even after it graduates to a confirmed one.
type memorySnapshot struct {
	confirmed   map[string]Sample
	unconfirmed map[string]Sample
	counts      map[string]int
	history     map[string]int64
}

// MemoryStore is the in-process Store backend. Pushes append to an inbox
// under a short critical section; a single aggregator goroutine owns all
// report state, sweeps it on an interval, and publishes immutable snapshots
// that readers load without any locking.
type MemoryStore struct {
	schedule      ScheduleSource
	sweepInterval time.Duration
	now           func() time.Time

	mu     sync.Mutex
	inbox  []Report
	bounds map[string]*Bounds

	// perUser is owned by the sweep; never touched from other goroutines.
	perUser map[string]map[string]userReport

	snapshot atomic.Pointer[memorySnapshot]
}

// NewMemoryStore creates the in-process backend. Call Run to start the
// aggregation loop.
func NewMemoryStore(schedule ScheduleSource, sweepInterval time.Duration) *MemoryStore {
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	s := &MemoryStore{
		schedule:      schedule,
		sweepInterval: sweepInterval,
		now:           time.Now,
		bounds:        make(map[string]*Bounds),
		perUser:       make(map[string]map[string]userReport),
	}
	s.snapshot.Store(&memorySnapshot{
		confirmed:   map[string]Sample{},
		unconfirmed: map[string]Sample{},
		counts:      map[string]int{},
		history:     map[string]int64{},
	})
	return s
}

// Run drives periodic sweeps until the context is cancelled.
func (s *MemoryStore) Run(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Printf("tracker: aggregator stopped")
			return
		case <-ticker.C:
			s.sweep(s.now())
		}
	}
}

// Sweep forces one aggregation cycle immediately.
func (s *MemoryStore) Sweep() {
	s.sweep(s.now())
}

// Push validates and queues one report. Consensus recomputation happens on
// the next sweep, not per report.
func (s *MemoryStore) Push(_ context.Context, r Report) (bool, string, error) {
	r.Timestamp = timetable.NormalizeTimestamp(r.Timestamp)
	scheduled, scheduleKnown := s.schedule.Position(r.TrainID, r.Timestamp)

	s.mu.Lock()
	defer s.mu.Unlock()

	if TrustedReporter(r.UserID) {
		b := s.bounds[r.TrainID]
		if b == nil || s.boundsExpired(b) {
			b = &Bounds{}
			s.bounds[r.TrainID] = b
		}
		b.ApplyTrusted(r.Position, scheduled, scheduleKnown, r.Timestamp)
	} else {
		b := s.bounds[r.TrainID]
		if b != nil && s.boundsExpired(b) {
			b = nil
		}
		if ok, reason := b.Validate(r.Position, scheduled, scheduleKnown); !ok {
			return false, reason, nil
		}
	}

	s.inbox = append(s.inbox, r)
	return true, "Position updated", nil
}

func (s *MemoryStore) boundsExpired(b *Bounds) bool {
	return s.now().Unix()-b.Timestamp > int64(HistoryWindow/time.Second)
}

// sweep drains the inbox, prunes expired reports, recomputes per-train
// consensus, and publishes a fresh snapshot. Runs only on the aggregator
// goroutine (and directly from tests).
func (s *MemoryStore) sweep(now time.Time) {
	s.mu.Lock()
	queued := s.inbox
	s.inbox = nil
	for trainID, b := range s.bounds {
		if s.boundsExpired(b) {
			delete(s.bounds, trainID)
		}
	}
	s.mu.Unlock()

	for _, r := range queued {
		users := s.perUser[r.TrainID]
		if users == nil {
			users = make(map[string]userReport)
			s.perUser[r.TrainID] = users
		}
		users[r.UserID] = userReport{
			sample:  Sample{Position: r.Position, Timestamp: r.Timestamp},
			trusted: TrustedReporter(r.UserID),
		}
	}

	nowSec := now.Unix()
	prev := s.snapshot.Load()
	next := &memorySnapshot{
		confirmed:   make(map[string]Sample, len(prev.confirmed)),
		unconfirmed: make(map[string]Sample, len(prev.unconfirmed)),
		counts:      make(map[string]int),
		history:     make(map[string]int64, len(prev.history)),
	}
	for k, v := range prev.confirmed {
		next.confirmed[k] = v
	}
	for k, v := range prev.unconfirmed {
		next.unconfirmed[k] = v
	}
	for trainID, ts := range prev.history {
		if nowSec-ts <= int64(HistoryWindow/time.Second) {
			next.history[trainID] = ts
		}
	}

	for trainID, users := range s.perUser {
		var samples []Sample
		for userID, r := range users {
			window := LiveWindow
			if r.trusted {
				window = HistoryWindow
			}
			if nowSec-r.sample.Timestamp > int64(window/time.Second) {
				delete(users, userID)
				continue
			}
			if nowSec-r.sample.Timestamp <= int64(LiveWindow/time.Second) {
				samples = append(samples, r.sample)
			}
		}
		if len(users) == 0 {
			delete(s.perUser, trainID)
		}
		if len(samples) == 0 {
			continue
		}

		sort.Slice(samples, func(i, j int) bool { return samples[i].Position < samples[j].Position })
		result := aggregateWindow(samples)
		if result.confirmed != nil {
			next.confirmed[trainID] = *result.confirmed
		}
		if result.unconfirmed != nil {
			next.unconfirmed[trainID] = *result.unconfirmed
		}
		next.counts[trainID] = len(samples)

		latest := samples[0].Timestamp
		for _, sm := range samples[1:] {
			if sm.Timestamp > latest {
				latest = sm.Timestamp
			}
		}
		if latest > next.history[trainID] {
			next.history[trainID] = latest
		}
	}

	s.snapshot.Store(next)
}

// Position serves from the latest snapshot: the confirmed value when one
// exists, else the unconfirmed one, both subject to the max validity age.
func (s *MemoryStore) Position(_ context.Context, trainID string) (*Position, error) {
	snap := s.snapshot.Load()
	nowSec := s.now().Unix()

	sample, confirmed := s.freshSample(snap, trainID, nowSec)
	if sample == nil {
		return nil, nil
	}

	unconfirmed := *sample
	if u, ok := snap.unconfirmed[trainID]; ok && nowSec-u.Timestamp <= int64(MaxValidAge/time.Second) {
		unconfirmed = u
	}

	return &Position{
		Position:    sample.Position,
		Timestamp:   sample.Timestamp,
		ActiveUsers: snap.counts[trainID],
		Live:        confirmed || nowSec-sample.Timestamp <= int64(LiveWindow/time.Second),
		Unconfirmed: &unconfirmed,
	}, nil
}

func (s *MemoryStore) freshSample(snap *memorySnapshot, trainID string, nowSec int64) (*Sample, bool) {
	if c, ok := snap.confirmed[trainID]; ok && nowSec-c.Timestamp <= int64(MaxValidAge/time.Second) {
		return &c, true
	}
	if u, ok := snap.unconfirmed[trainID]; ok && nowSec-u.Timestamp <= int64(MaxValidAge/time.Second) {
		return &u, false
	}
	return nil, false
}

// Positions batches Position over one snapshot load.
func (s *MemoryStore) Positions(ctx context.Context, trainIDs []string) (map[string]*Position, error) {
	out := make(map[string]*Position, len(trainIDs))
	for _, id := range trainIDs {
		pos, err := s.Position(ctx, id)
		if err != nil {
			return nil, err
		}
		if pos != nil {
			out[id] = pos
		}
	}
	return out, nil
}

// Bounds returns a copy of the current bounds for a train, or nil.
func (s *MemoryStore) Bounds(_ context.Context, trainID string) (*Bounds, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.bounds[trainID]
	if b == nil || s.boundsExpired(b) {
		return nil, nil
	}
	copied := *b
	return &copied, nil
}

// ActiveTrains lists trains with at least one report in the live window as
// of the last sweep.
func (s *MemoryStore) ActiveTrains(_ context.Context) ([]string, error) {
	snap := s.snapshot.Load()
	trains := make([]string, 0, len(snap.counts))
	for id := range snap.counts {
		trains = append(trains, id)
	}
	sort.Strings(trains)
	return trains, nil
}

// TrainsWithHistory lists trains seen within the history window.
func (s *MemoryStore) TrainsWithHistory(_ context.Context) ([]string, error) {
	snap := s.snapshot.Load()
	nowSec := s.now().Unix()
	trains := make([]string, 0, len(snap.history))
	for id, ts := range snap.history {
		if nowSec-ts <= int64(HistoryWindow/time.Second) {
			trains = append(trains, id)
		}
	}
	sort.Strings(trains)
	return trains, nil
}

// Healthy always holds for the in-process backend.
func (s *MemoryStore) Healthy(context.Context) bool { return true }
