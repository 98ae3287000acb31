package tracker

import (
	"context"
	"testing"
	"time"
)

// stubSchedule returns a fixed scheduled position per train; missing trains
// are "schedule unknown".
type stubSchedule map[string]float64

func (s stubSchedule) Position(trainID string, _ int64) (float64, bool) {
	pos, ok := s[trainID]
	return pos, ok
}

func newTestStore(sched ScheduleSource, now time.Time) *MemoryStore {
	s := NewMemoryStore(sched, time.Second)
	s.now = func() time.Time { return now }
	return s
}

func TestMemoryPushAndSweep(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(10_000, 0)
	s := newTestStore(stubSchedule{}, now)

	for i, pos := range []float64{1.0, 2.0, 3.0} {
		r := Report{TrainID: "701", UserID: string(rune('a' + i)), Position: pos, Timestamp: now.Unix() - 5}
		ok, _, err := s.Push(ctx, r)
		if err != nil || !ok {
			t.Fatalf("push %d failed: %v", i, err)
		}
	}

	// Nothing visible until the sweep folds the inbox.
	if pos, _ := s.Position(ctx, "701"); pos != nil {
		t.Fatal("position visible before sweep")
	}

	s.sweep(now)

	pos, err := s.Position(ctx, "701")
	if err != nil {
		t.Fatalf("Position: %v", err)
	}
	if pos == nil {
		t.Fatal("no position after sweep")
	}
	if pos.Position != 1.5 {
		t.Errorf("three-sample consensus = %v, want 1.5", pos.Position)
	}
	if pos.ActiveUsers != 3 {
		t.Errorf("active users = %d, want 3", pos.ActiveUsers)
	}
	if pos.Unconfirmed == nil || pos.Unconfirmed.Position != 1.5 {
		t.Errorf("legacy unconfirmed field = %+v", pos.Unconfirmed)
	}
}

func TestMemoryLatestReportPerUserWins(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(10_000, 0)
	s := newTestStore(stubSchedule{}, now)

	s.Push(ctx, Report{TrainID: "701", UserID: "u1", Position: 1.0, Timestamp: now.Unix() - 60})
	s.Push(ctx, Report{TrainID: "701", UserID: "u1", Position: 4.0, Timestamp: now.Unix() - 5})
	s.sweep(now)

	pos, _ := s.Position(ctx, "701")
	if pos == nil {
		t.Fatal("no position")
	}
	if pos.Position != 4.0 || pos.ActiveUsers != 1 {
		t.Errorf("got %v from %d users, want 4.0 from 1", pos.Position, pos.ActiveUsers)
	}
}

func TestMemoryConfirmedTier(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(10_000, 0)
	s := newTestStore(stubSchedule{}, now)

	positions := []float64{1, 1, 1, 9, 10}
	users := []string{"u1", "u2", "u3", "u4", "u5"}
	for i, p := range positions {
		s.Push(ctx, Report{TrainID: "701", UserID: users[i], Position: p, Timestamp: now.Unix() - 5})
	}
	s.sweep(now)

	pos, _ := s.Position(ctx, "701")
	if pos == nil {
		t.Fatal("no position")
	}
	if pos.Position != 1 {
		t.Errorf("confirmed consensus = %v, want 1 (tightest cluster)", pos.Position)
	}

	snap := s.snapshot.Load()
	if _, ok := snap.confirmed["701"]; !ok {
		t.Error("train missing from confirmed map")
	}
}

func TestMemoryPruneExpiredReports(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(100_000, 0)
	s := newTestStore(stubSchedule{}, now)

	s.Push(ctx, Report{TrainID: "701", UserID: "u1", Position: 2.0, Timestamp: now.Unix() - 30})
	s.sweep(now)

	// Eleven minutes later the report has aged out of the live window.
	later := now.Add(11 * time.Minute)
	s.now = func() time.Time { return later }
	s.sweep(later)

	active, _ := s.ActiveTrains(ctx)
	if len(active) != 0 {
		t.Errorf("active trains after expiry = %v", active)
	}
	// History retention is much longer.
	history, _ := s.TrainsWithHistory(ctx)
	if len(history) != 1 || history[0] != "701" {
		t.Errorf("history = %v, want [701]", history)
	}
}

func TestMemoryBoundRejection(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(10_000, 0)
	s := newTestStore(stubSchedule{"701": 5.0}, now)

	// Bot anchors the floor at 3.5.
	ok, _, err := s.Push(ctx, Report{TrainID: "701", UserID: "bot1", Position: 4.0, Timestamp: now.Unix()})
	if err != nil || !ok {
		t.Fatalf("bot push failed: %v", err)
	}

	ok, reason, _ := s.Push(ctx, Report{TrainID: "701", UserID: "u1", Position: 2.0, Timestamp: now.Unix()})
	if ok {
		t.Error("report below the trusted floor should be rejected")
	} else if reason == "" {
		t.Error("rejection without a reason")
	}

	ok, reason, _ = s.Push(ctx, Report{TrainID: "701", UserID: "u2", Position: 9.0, Timestamp: now.Unix()})
	if ok {
		t.Errorf("report ahead of schedule should be rejected")
	} else if reason == "" {
		t.Error("rejection without a reason")
	}

	if ok, _, _ = s.Push(ctx, Report{TrainID: "701", UserID: "u3", Position: 4.2, Timestamp: now.Unix()}); !ok {
		t.Error("report inside the envelope should be accepted")
	}

	b, err := s.Bounds(ctx, "701")
	if err != nil {
		t.Fatalf("Bounds: %v", err)
	}
	if b == nil || b.Lower == nil || *b.Lower != 3.5 {
		t.Errorf("bounds = %+v", b)
	}
	if b.Upper == nil || *b.Upper != 5.5 {
		t.Errorf("upper = %v, want 5.5", b.Upper)
	}
}

func TestMemoryMillisecondTimestamps(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_100, 0)
	s := newTestStore(stubSchedule{}, now)

	// Milliseconds from a legacy client; must normalize to seconds.
	s.Push(ctx, Report{TrainID: "701", UserID: "u1", Position: 2.0, Timestamp: 1_700_000_000_000})
	s.sweep(now)

	pos, _ := s.Position(ctx, "701")
	if pos == nil {
		t.Fatal("no position")
	}
	if pos.Timestamp != 1_700_000_000 {
		t.Errorf("timestamp = %d, want normalized seconds", pos.Timestamp)
	}
}

func TestMemoryUnconfirmedSurvivesConfirmation(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(10_000, 0)
	s := newTestStore(stubSchedule{}, now)

	s.Push(ctx, Report{TrainID: "701", UserID: "u1", Position: 2.0, Timestamp: now.Unix() - 5})
	s.sweep(now)

	for i, p := range []float64{1, 1, 1, 9, 10} {
		s.Push(ctx, Report{TrainID: "701", UserID: string(rune('a' + i)), Position: p, Timestamp: now.Unix() - 2})
	}
	s.sweep(now)

	snap := s.snapshot.Load()
	if _, ok := snap.confirmed["701"]; !ok {
		t.Error("expected confirmed entry")
	}
	// The earlier unconfirmed value stays in its own map.
	if _, ok := snap.unconfirmed["701"]; !ok {
		t.Error("unconfirmed entry dropped on confirmation")
	}
}
