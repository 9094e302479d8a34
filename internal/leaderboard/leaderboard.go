// Package leaderboard ranks users by the points they earned in a window.
// It reads the ledger only and never takes write-side locks.
package leaderboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/ecopoints/internal/apperr"
	"github.com/Shivanand-hulikatti/ecopoints/internal/model"
	"github.com/Shivanand-hulikatti/ecopoints/internal/repository"
)

// Window selects which ledger entries count toward a ranking.
type Window string

const (
	WindowAll   Window = "all"
	WindowMonth Window = "month"
	WindowWeek  Window = "week"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// ParseWindow accepts all, month or week; empty means all.
func ParseWindow(s string) (Window, error) {
	switch w := Window(strings.ToLower(strings.TrimSpace(s))); w {
	case "":
		return WindowAll, nil
	case WindowAll, WindowMonth, WindowWeek:
		return w, nil
	default:
		return "", apperr.Validation(fmt.Sprintf("unknown period %q", s))
	}
}

// Request is a typed ranking query.
type Request struct {
	Window Window
	Limit  int
}

// Aggregator answers ranking queries.
type Aggregator struct {
	q   repository.Queries
	loc *time.Location
	now func() time.Time
}

// New returns an aggregator computing windows in loc.
func New(q repository.Queries, loc *time.Location, now func() time.Time) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Aggregator{q: q, loc: loc, now: now}
}

// Rank returns the top entries for req with 1-based ranks.
func (a *Aggregator) Rank(ctx context.Context, req Request) ([]model.RankEntry, error) {
	limit := req.Limit
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit < 0 || limit > MaxLimit {
		return nil, apperr.Validation(fmt.Sprintf("limit must be between 1 and %d", MaxLimit))
	}
	since, err := WindowStart(req.Window, a.now(), a.loc)
	if err != nil {
		return nil, err
	}
	entries, err := a.q.Rank(ctx, repository.RankQuery{Since: since, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("rank: %w", err)
	}
	if entries == nil {
		entries = []model.RankEntry{}
	}
	return entries, nil
}

// WindowStart returns the inclusive lower bound of w at now, in loc. Months
// start on the 1st and weeks on Monday, both at local midnight. WindowAll
// has no bound and yields nil.
func WindowStart(w Window, now time.Time, loc *time.Location) (*time.Time, error) {
	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	var start time.Time
	switch w {
	case WindowAll, "":
		return nil, nil
	case WindowMonth:
		start = time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	case WindowWeek:
		offset := (int(local.Weekday()) + 6) % 7
		start = midnight.AddDate(0, 0, -offset)
	default:
		return nil, apperr.Validation(fmt.Sprintf("unknown period %q", w))
	}
	start = start.UTC()
	return &start, nil
}
