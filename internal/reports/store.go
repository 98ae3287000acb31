// Package reports persists user-submitted issue reports.
package reports

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS issue_reports (
	report_id           TEXT PRIMARY KEY,
	issue_type          TEXT,
	train_id            TEXT,
	train_name          TEXT,
	user_id             TEXT NOT NULL DEFAULT 'anonymous',
	reported_at         TEXT,
	description         TEXT,
	blue_train_position REAL,
	gray_train_position REAL,
	is_using_gps        INTEGER NOT NULL DEFAULT 0,
	latitude            REAL,
	longitude           REAL,
	received_at_utc     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_issue_reports_received ON issue_reports(received_at_utc DESC);
`

// IssueReport is one user-submitted problem report. Most fields are optional;
// the app fills in whatever context it has.
type IssueReport struct {
	ID                string   `json:"id,omitempty"`
	IssueType         string   `json:"issue_type,omitempty"`
	TrainID           string   `json:"train_id,omitempty"`
	TrainName         string   `json:"train_name,omitempty"`
	UserID            string   `json:"user_id,omitempty"`
	Timestamp         string   `json:"timestamp,omitempty"`
	Description       string   `json:"description,omitempty"`
	BlueTrainPosition *float64 `json:"blue_train_position,omitempty"`
	GrayTrainPosition *float64 `json:"gray_train_position,omitempty"`
	IsUsingGPS        bool     `json:"is_using_gps,omitempty"`
	Latitude          *float64 `json:"latitude,omitempty"`
	Longitude         *float64 `json:"longitude,omitempty"`
	ReceivedAt        string   `json:"received_at,omitempty"`
}

// Summary aggregates the stored reports for the listing endpoint.
type Summary struct {
	TotalReports      int `json:"total_reports"`
	CategorizedIssues int `json:"categorized_issues"`
	AffectedTrains    int `json:"affected_trains"`
	UniqueUsers       int `json:"unique_users"`
}

// Store is the SQLite-backed issue-report log.
type Store struct {
	db *sql.DB
}

// Open creates (if needed) and opens the report database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_journal=WAL")
	if err != nil {
		return nil, fmt.Errorf("open report database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create report schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert stores one report and returns its generated id.
func (s *Store) Insert(ctx context.Context, r IssueReport) (string, error) {
	id := uuid.New().String()
	userID := r.UserID
	if userID == "" {
		userID = "anonymous"
	}
	receivedAt := time.Now().UTC().Format(time.RFC3339)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO issue_reports (
			report_id, issue_type, train_id, train_name, user_id, reported_at,
			description, blue_train_position, gray_train_position, is_using_gps,
			latitude, longitude, received_at_utc
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, r.IssueType, r.TrainID, r.TrainName, userID, r.Timestamp,
		r.Description, r.BlueTrainPosition, r.GrayTrainPosition, boolToInt(r.IsUsingGPS),
		r.Latitude, r.Longitude, receivedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert issue report: %w", err)
	}
	return id, nil
}

// List returns up to limit reports, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]IssueReport, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT report_id, issue_type, train_id, train_name, user_id, reported_at,
		       description, blue_train_position, gray_train_position, is_using_gps,
		       latitude, longitude, received_at_utc
		FROM issue_reports
		ORDER BY received_at_utc DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query issue reports: %w", err)
	}
	defer rows.Close()

	var out []IssueReport
	for rows.Next() {
		var r IssueReport
		var gps int
		if err := rows.Scan(
			&r.ID, &r.IssueType, &r.TrainID, &r.TrainName, &r.UserID, &r.Timestamp,
			&r.Description, &r.BlueTrainPosition, &r.GrayTrainPosition, &gps,
			&r.Latitude, &r.Longitude, &r.ReceivedAt,
		); err != nil {
			return nil, fmt.Errorf("scan issue report: %w", err)
		}
		r.IsUsingGPS = gps != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// Summarize computes the report statistics.
func (s *Store) Summarize(ctx context.Context) (Summary, error) {
	var sum Summary
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(CASE WHEN issue_type != '' THEN 1 END),
		       COUNT(DISTINCT train_id),
		       COUNT(DISTINCT user_id)
		FROM issue_reports`).Scan(
		&sum.TotalReports, &sum.CategorizedIssues, &sum.AffectedTrains, &sum.UniqueUsers,
	)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize issue reports: %w", err)
	}
	return sum, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
