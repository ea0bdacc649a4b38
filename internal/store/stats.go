package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Periods accepted by PeriodStart.
const (
	PeriodAll   = "all"
	PeriodToday = "today"
	PeriodWeek  = "week"
	PeriodMonth = "month"
)

// PeriodStart returns the earliest saved time covered by period, relative to
// now. PeriodAll and "" return the zero time.
func PeriodStart(period string, now time.Time) (time.Time, error) {
	switch strings.ToLower(strings.TrimSpace(period)) {
	case "", PeriodAll:
		return time.Time{}, nil
	case PeriodToday:
		return startOfDay(now), nil
	case PeriodWeek:
		return now.AddDate(0, 0, -7), nil
	case PeriodMonth:
		return now.AddDate(0, -1, 0), nil
	default:
		return time.Time{}, fmt.Errorf("unknown period %q (want today, week, month or all)", period)
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SourceCount is the number of saved entries for one source.
type SourceCount struct {
	Source string
	Count  int
}

// Stats summarizes the saved history.
type Stats struct {
	Total     int
	Today     int
	Sources   int
	Runs      int
	BySource  []SourceCount
	LastSaved time.Time
}

// Stats counts entries overall, saved since the start of now's day, and
// per source.
func (s *Store) Stats(ctx context.Context, now time.Time) (Stats, error) {
	if s == nil || s.db == nil {
		return Stats{}, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		st        Stats
		lastSaved sql.NullString
	)
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN saved_at >= ? THEN 1 ELSE 0 END), 0),
			COUNT(DISTINCT source),
			MAX(saved_at)
		FROM articles`, formatTime(startOfDay(now)),
	).Scan(&st.Total, &st.Today, &st.Sources, &lastSaved); err != nil {
		return Stats{}, fmt.Errorf("count articles: %w", err)
	}
	if lastSaved.Valid {
		t, err := parseTime(lastSaved.String)
		if err != nil {
			return Stats{}, fmt.Errorf("parse last saved: %w", err)
		}
		st.LastSaved = t
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs").Scan(&st.Runs); err != nil {
		return Stats{}, fmt.Errorf("count runs: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT source, COUNT(*) AS n
		FROM articles
		GROUP BY source
		ORDER BY n DESC, source`)
	if err != nil {
		return Stats{}, fmt.Errorf("count by source: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var sc SourceCount
		if err := rows.Scan(&sc.Source, &sc.Count); err != nil {
			return Stats{}, fmt.Errorf("scan source count: %w", err)
		}
		st.BySource = append(st.BySource, sc)
	}
	if err := rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("iterate source counts: %w", err)
	}
	return st, nil
}
