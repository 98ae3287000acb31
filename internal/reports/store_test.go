package reports

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "reports.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertAndList(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	pos := 3.2
	lat, lng := 23.7104, 90.4074
	id, err := s.Insert(ctx, IssueReport{
		IssueType:         "wrong_position",
		TrainID:           "701",
		TrainName:         "Subarna Express",
		UserID:            "u1",
		Timestamp:         "2026-08-30T10:00:00Z",
		Description:       "train shown two stations behind",
		BlueTrainPosition: &pos,
		IsUsingGPS:        true,
		Latitude:          &lat,
		Longitude:         &lng,
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if id == "" {
		t.Fatal("empty report id")
	}

	got, err := s.List(ctx, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d reports, want 1", len(got))
	}
	r := got[0]
	if r.ID != id || r.TrainID != "701" || !r.IsUsingGPS {
		t.Errorf("round-trip mismatch: %+v", r)
	}
	if r.BlueTrainPosition == nil || *r.BlueTrainPosition != 3.2 {
		t.Errorf("blue position = %v", r.BlueTrainPosition)
	}
	if r.GrayTrainPosition != nil {
		t.Errorf("gray position should stay null, got %v", *r.GrayTrainPosition)
	}
	if r.ReceivedAt == "" {
		t.Error("received_at not set")
	}
}

func TestInsertDefaultsAnonymous(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if _, err := s.Insert(ctx, IssueReport{Description: "no user"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	got, err := s.List(ctx, 1)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got[0].UserID != "anonymous" {
		t.Errorf("user = %q, want anonymous", got[0].UserID)
	}
}

func TestSummarize(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	s.Insert(ctx, IssueReport{IssueType: "wrong_position", TrainID: "701", UserID: "u1"})
	s.Insert(ctx, IssueReport{IssueType: "", TrainID: "701", UserID: "u2"})
	s.Insert(ctx, IssueReport{IssueType: "app_crash", TrainID: "702", UserID: "u1"})

	sum, err := s.Summarize(ctx)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if sum.TotalReports != 3 {
		t.Errorf("total = %d, want 3", sum.TotalReports)
	}
	if sum.CategorizedIssues != 2 {
		t.Errorf("categorized = %d, want 2", sum.CategorizedIssues)
	}
	if sum.AffectedTrains != 2 {
		t.Errorf("affected trains = %d, want 2", sum.AffectedTrains)
	}
	if sum.UniqueUsers != 2 {
		t.Errorf("unique users = %d, want 2", sum.UniqueUsers)
	}
}
