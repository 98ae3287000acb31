package tracker

import (
	"strings"
	"testing"
)

func TestTrustedReporter(t *testing.T) {
	tests := []struct {
		userID  string
		trusted bool
	}{
		{"bot1", true},
		{"BOT-tracker", true},
		{"Bot_7", true},
		{"robot", false},
		{"user42", false},
		{"", false},
	}
	for _, tc := range tests {
		t.Run(tc.userID, func(t *testing.T) {
			if got := TrustedReporter(tc.userID); got != tc.trusted {
				t.Errorf("TrustedReporter(%q) = %v, want %v", tc.userID, got, tc.trusted)
			}
		})
	}
}

func TestApplyTrustedLowerBoundMonotonic(t *testing.T) {
	b := &Bounds{}
	b.ApplyTrusted(2.0, 0, false, 100)

	if b.Lower == nil || *b.Lower != 2.0-BoundTolerance {
		t.Fatalf("lower = %v, want %v", b.Lower, 2.0-BoundTolerance)
	}

	// A later trusted report behind the first must not move the floor back.
	b.ApplyTrusted(1.5, 0, false, 200)
	if *b.Lower != 2.0-BoundTolerance {
		t.Errorf("lower regressed to %v", *b.Lower)
	}
	if b.BotPosition == nil || *b.BotPosition != 1.5 {
		t.Errorf("bot position = %v, want 1.5", b.BotPosition)
	}
	if b.Timestamp != 200 {
		t.Errorf("timestamp = %d, want 200", b.Timestamp)
	}
}

func TestApplyTrustedClampsLowerAtZero(t *testing.T) {
	b := &Bounds{}
	b.ApplyTrusted(0.2, 0, false, 100)
	if b.Lower == nil || *b.Lower != 0 {
		t.Errorf("lower = %v, want 0", b.Lower)
	}
}

func TestApplyTrustedUpperTracksSchedule(t *testing.T) {
	b := &Bounds{}
	b.ApplyTrusted(3.0, 5.0, true, 100)
	if b.Upper == nil || *b.Upper != 5.0+BoundTolerance {
		t.Fatalf("upper = %v", b.Upper)
	}

	// Unlike the lower bound, the ceiling follows the timetable both ways.
	b.ApplyTrusted(3.5, 4.0, true, 200)
	if *b.Upper != 4.0+BoundTolerance {
		t.Errorf("upper = %v, want %v", *b.Upper, 4.0+BoundTolerance)
	}

	// An unknown schedule leaves the previous ceiling in place.
	b.ApplyTrusted(3.6, 0, false, 300)
	if b.Upper == nil || *b.Upper != 4.0+BoundTolerance {
		t.Errorf("upper changed on unknown schedule: %v", b.Upper)
	}
}

func TestValidateAgainstSchedule(t *testing.T) {
	var b *Bounds

	ok, reason := b.Validate(6.0, 5.0, true)
	if ok {
		t.Fatal("position ahead of schedule must be rejected")
	}
	if !strings.Contains(reason, "exceeds scheduled position 5.00") ||
		!strings.Contains(reason, "upper bound 5.50") {
		t.Errorf("reason = %q", reason)
	}

	if ok, _ := b.Validate(5.4, 5.0, true); !ok {
		t.Error("position within tolerance of schedule should pass")
	}
	// No schedule: no upper-bound check at all.
	if ok, _ := b.Validate(120.0, 0, false); !ok {
		t.Error("unknown schedule should skip the upper check")
	}
}

func TestValidateAgainstLowerBound(t *testing.T) {
	b := &Bounds{}
	b.ApplyTrusted(2.0, 0, false, 100)

	ok, reason := b.Validate(1.0, 0, false)
	if ok {
		t.Fatal("position behind the trusted floor must be rejected")
	}
	if !strings.Contains(reason, "below lower bound 1.50") {
		t.Errorf("reason = %q", reason)
	}

	if ok, _ := b.Validate(1.6, 0, false); !ok {
		t.Error("position above the floor should pass")
	}
}
