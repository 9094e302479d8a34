package leaderboard

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/ecopoints/internal/apperr"
	"github.com/Shivanand-hulikatti/ecopoints/internal/model"
	"github.com/Shivanand-hulikatti/ecopoints/internal/repository/sqlite"
)

func TestWindowStart(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	// Wednesday 2026-03-18 10:30 UTC.
	now := time.Date(2026, 3, 18, 10, 30, 0, 0, time.UTC)
	cases := []struct {
		name   string
		window Window
		loc    *time.Location
		want   *time.Time
	}{
		{"all", WindowAll, time.UTC, nil},
		{"month utc", WindowMonth, time.UTC, ptr(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))},
		{"week utc", WindowWeek, time.UTC, ptr(time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC))},
		{"month berlin", WindowMonth, berlin, ptr(time.Date(2026, 3, 1, 0, 0, 0, 0, berlin).UTC())},
		{"week berlin", WindowWeek, berlin, ptr(time.Date(2026, 3, 16, 0, 0, 0, 0, berlin).UTC())},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := WindowStart(tc.window, now, tc.loc)
			require.NoError(t, err)
			if tc.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, tc.want.Equal(*got), "want %s got %s", tc.want, got)
		})
	}
}

func TestWindowStartOnMondayAndSunday(t *testing.T) {
	monday := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	got, err := WindowStart(WindowWeek, monday, time.UTC)
	require.NoError(t, err)
	assert.True(t, monday.Equal(*got))

	sunday := time.Date(2026, 3, 22, 23, 59, 0, 0, time.UTC)
	got, err = WindowStart(WindowWeek, sunday, time.UTC)
	require.NoError(t, err)
	assert.True(t, monday.Equal(*got))
}

func TestWindowStartUsesReferenceZone(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	// Sunday 20:00 UTC is already Monday in Tokyo.
	now := time.Date(2026, 3, 22, 20, 0, 0, 0, time.UTC)
	got, err := WindowStart(WindowWeek, now, tokyo)
	require.NoError(t, err)
	assert.True(t, time.Date(2026, 3, 23, 0, 0, 0, 0, tokyo).Equal(*got))
}

func TestParseWindow(t *testing.T) {
	for in, want := range map[string]Window{"": WindowAll, "all": WindowAll, "Week": WindowWeek, " month ": WindowMonth} {
		got, err := ParseWindow(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseWindow("year")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestWeekRankingExcludesOlderEntries(t *testing.T) {
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "board.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	now := time.Date(2026, 3, 18, 12, 0, 0, 0, time.UTC)
	registered := now.AddDate(0, -6, 0)
	require.NoError(t, store.UpsertUser(ctx, model.User{ID: "veteran", Role: model.RoleUser, DisplayName: "Vet", CreatedAt: registered}))
	require.NoError(t, store.UpsertUser(ctx, model.User{ID: "rookie", Role: model.RoleUser, DisplayName: "Rook", CreatedAt: registered.Add(time.Hour)}))

	add := func(id, user string, points int64, at time.Time) {
		require.NoError(t, store.InsertLedgerEntry(ctx, &model.LedgerEntry{
			ID: id, UserID: user, Kind: model.KindRecycling, Points: points, CreatedAt: at,
		}))
	}
	add("v-old", "veteran", 1000, now.AddDate(0, 0, -20))
	add("v-new", "veteran", 20, now.Add(-2*time.Hour))
	add("r-new", "rookie", 60, now.Add(-time.Hour))
	add("r-last-sunday", "rookie", 500, time.Date(2026, 3, 15, 23, 0, 0, 0, time.UTC))

	board := New(store, time.UTC, func() time.Time { return now })

	week, err := board.Rank(ctx, Request{Window: WindowWeek})
	require.NoError(t, err)
	require.Len(t, week, 2)
	assert.Equal(t, "rookie", week[0].UserID)
	assert.Equal(t, int64(60), week[0].Points)
	assert.Equal(t, 1, week[0].Rank)
	assert.Equal(t, "veteran", week[1].UserID)
	assert.Equal(t, int64(20), week[1].Points)
	assert.Equal(t, 2, week[1].Rank)

	all, err := board.Rank(ctx, Request{Window: WindowAll})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "veteran", all[0].UserID)
	assert.Equal(t, int64(1020), all[0].Points)

	month, err := board.Rank(ctx, Request{Window: WindowMonth, Limit: 1})
	require.NoError(t, err)
	require.Len(t, month, 1)
	assert.Equal(t, "rookie", month[0].UserID)
	assert.Equal(t, int64(560), month[0].Points)
}

func TestRankTiesFavourEarlierRegistration(t *testing.T) {
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "ties.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"zed", "amy", "bob"} {
		require.NoError(t, store.UpsertUser(ctx, model.User{ID: id, Role: model.RoleUser, CreatedAt: base.Add(time.Duration(i) * time.Minute)}))
		require.NoError(t, store.InsertLedgerEntry(ctx, &model.LedgerEntry{
			ID: "e-" + id, UserID: id, Kind: model.KindOther, Points: 5, CreatedAt: base.AddDate(0, 1, 0),
		}))
	}

	board := New(store, time.UTC, nil)
	entries, err := board.Rank(ctx, Request{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"zed", "amy", "bob"}, []string{entries[0].UserID, entries[1].UserID, entries[2].UserID})
}

func TestRankValidatesLimit(t *testing.T) {
	board := New(nil, nil, nil)
	_, err := board.Rank(context.Background(), Request{Limit: MaxLimit + 1})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = board.Rank(context.Background(), Request{Limit: -1})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func ptr(t time.Time) *time.Time { return &t }
