package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/ecopoints/internal/leveling"
	"github.com/Shivanand-hulikatti/ecopoints/internal/model"
	"github.com/Shivanand-hulikatti/ecopoints/internal/repository"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "eco.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedUser(t *testing.T, store *Store, id string, createdAt time.Time) {
	t.Helper()
	require.NoError(t, store.UpsertUser(context.Background(), model.User{
		ID: id, Role: model.RoleUser, DisplayName: id, CreatedAt: createdAt,
	}))
}

func seedEvent(t *testing.T, store *Store, id, organizer string, capacity *int) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, store.InsertEvent(context.Background(), &model.Event{
		ID: id, OrganizerID: organizer, Title: "Beach cleanup", ScheduledAt: now.Add(24 * time.Hour),
		Capacity: capacity, RewardPoints: 50, Status: model.StatusScheduled, CreatedAt: now, UpdatedAt: now,
	}))
}

func entry(id, user string, kind model.SourceKind, points int64, at time.Time) *model.LedgerEntry {
	return &model.LedgerEntry{ID: id, UserID: user, Kind: kind, Points: points, CreatedAt: at}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eco.db")
	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}

func TestUsersAndBalance(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "u1", time.Now())

	u, err := store.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), u.Balance)
	assert.Equal(t, 1, u.Level)

	pts, err := store.AddBalance(ctx, "u1", 200, leveling.Level)
	require.NoError(t, err)
	assert.Equal(t, model.UserPoints{UserID: "u1", Balance: 200, Level: 2}, pts)

	pts, err = store.AddBalance(ctx, "u1", -50, leveling.Level)
	require.NoError(t, err)
	assert.Equal(t, 1, pts.Level)

	_, err = store.AddBalance(ctx, "ghost", 10, leveling.Level)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = store.GetUser(ctx, "ghost")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, store.SetBalance(ctx, "ghost", 0, 1), repository.ErrNotFound)
}

func TestUpsertUserKeepsPointsState(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "u1", time.Now())
	_, err := store.AddBalance(ctx, "u1", 40, leveling.Level)
	require.NoError(t, err)

	require.NoError(t, store.UpsertUser(ctx, model.User{ID: "u1", Role: model.RoleAdmin, DisplayName: "Ada"}))
	u, err := store.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, u.Role)
	assert.Equal(t, "Ada", u.DisplayName)
	assert.Equal(t, int64(40), u.Balance)
}

func TestEventsRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "org", time.Now())
	capacity := 2
	seedEvent(t, store, "e1", "org", &capacity)
	seedEvent(t, store, "e2", "org", nil)

	e, err := store.GetEvent(ctx, "e1")
	require.NoError(t, err)
	require.NotNil(t, e.Capacity)
	assert.Equal(t, 2, *e.Capacity)
	assert.Nil(t, e.DurationMinutes)
	assert.Equal(t, model.StatusScheduled, e.Status)

	require.NoError(t, store.UpdateEventStatus(ctx, "e2", model.StatusOngoing, time.Now()))
	ongoing := model.StatusOngoing
	events, err := store.ListEvents(ctx, repository.EventFilter{Status: &ongoing})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "e2", events[0].ID)

	all, err := store.ListEvents(ctx, repository.EventFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	assert.ErrorIs(t, store.UpdateEventStatus(ctx, "nope", model.StatusOngoing, time.Now()), repository.ErrNotFound)
	_, err = store.GetEvent(ctx, "nope")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestEnrollments(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "org", time.Now())
	seedUser(t, store, "u1", time.Now())
	seedEvent(t, store, "e1", "org", nil)

	rec := model.EnrollmentRecord{EventID: "e1", UserID: "u1", CreatedAt: time.Now()}
	require.NoError(t, store.InsertEnrollment(ctx, rec))
	assert.ErrorIs(t, store.InsertEnrollment(ctx, rec), repository.ErrAlreadyEnrolled)

	n, err := store.CountEnrollments(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	e, err := store.GetEvent(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, 1, e.EnrolledCount)

	removed, err := store.DeleteEnrollment(ctx, "e1", "u1")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = store.DeleteEnrollment(ctx, "e1", "u1")
	require.NoError(t, err)
	assert.False(t, removed)

	require.NoError(t, store.InsertEnrollment(ctx, rec), "rejoin after leave")
}

func TestLedgerCreditKeyIsUnique(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "org", time.Now())
	seedUser(t, store, "u1", time.Now())
	seedEvent(t, store, "e1", "org", nil)
	eventID := "e1"

	first := entry("c1", "u1", model.KindCleaning, 50, time.Now())
	first.EventID = &eventID
	require.NoError(t, store.InsertLedgerEntry(ctx, first))

	dup := entry("c2", "u1", model.KindCleaning, 50, time.Now())
	dup.EventID = &eventID
	assert.ErrorIs(t, store.InsertLedgerEntry(ctx, dup), repository.ErrDuplicateCredit)

	// Other kinds may reference the same event freely.
	other := entry("r1", "u1", model.KindReport, 10, time.Now())
	other.EventID = &eventID
	require.NoError(t, store.InsertLedgerEntry(ctx, other))

	credits, err := store.ListEventCredits(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, credits, 1)
	assert.Equal(t, "c1", credits[0].ID)
}

func TestLedgerDuplicateInsideTransactionKeepsTxUsable(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "org", time.Now())
	seedUser(t, store, "u1", time.Now())
	seedUser(t, store, "u2", time.Now())
	seedEvent(t, store, "e1", "org", nil)
	eventID := "e1"

	pre := entry("c0", "u1", model.KindCleaning, 50, time.Now())
	pre.EventID = &eventID
	require.NoError(t, store.InsertLedgerEntry(ctx, pre))

	err := store.WithTx(ctx, func(tx repository.Tx) error {
		a := entry("c1", "u1", model.KindCleaning, 50, time.Now())
		a.EventID = &eventID
		if err := tx.InsertLedgerEntry(ctx, a); !errors.Is(err, repository.ErrDuplicateCredit) {
			t.Errorf("expected duplicate credit, got %v", err)
		}
		b := entry("c2", "u2", model.KindCleaning, 50, time.Now())
		b.EventID = &eventID
		return tx.InsertLedgerEntry(ctx, b)
	})
	require.NoError(t, err)

	credits, err := store.ListEventCredits(ctx, "e1")
	require.NoError(t, err)
	assert.Len(t, credits, 2)
}

func TestCorrectionTargetIsUnique(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "u1", time.Now())
	require.NoError(t, store.InsertLedgerEntry(ctx, entry("a1", "u1", model.KindRecycling, 20, time.Now())))

	target := "a1"
	c1 := entry("x1", "u1", model.KindCorrection, -20, time.Now())
	c1.CorrectionOf = &target
	require.NoError(t, store.InsertLedgerEntry(ctx, c1))

	c2 := entry("x2", "u1", model.KindCorrection, -20, time.Now())
	c2.CorrectionOf = &target
	assert.ErrorIs(t, store.InsertLedgerEntry(ctx, c2), repository.ErrDuplicateCredit)

	got, err := store.GetLedgerEntry(ctx, "x1")
	require.NoError(t, err)
	require.NotNil(t, got.CorrectionOf)
	assert.Equal(t, "a1", *got.CorrectionOf)
}

func TestWithTxRollsBack(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "u1", time.Now())

	boom := assert.AnError
	err := store.WithTx(ctx, func(tx repository.Tx) error {
		if err := tx.InsertLedgerEntry(ctx, entry("a1", "u1", model.KindOther, 5, time.Now())); err != nil {
			return err
		}
		if _, err := tx.AddBalance(ctx, "u1", 5, leveling.Level); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	sum, err := store.LedgerSum(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, sum)
	u, err := store.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, u.Balance)
}

func TestRankOrdersAndWindows(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	seedUser(t, store, "early", base)
	seedUser(t, store, "late", base.Add(time.Hour))
	seedUser(t, store, "old", base.Add(2*time.Hour))

	now := base.Add(10 * 24 * time.Hour)
	require.NoError(t, store.InsertLedgerEntry(ctx, entry("1", "late", model.KindRecycling, 30, now)))
	require.NoError(t, store.InsertLedgerEntry(ctx, entry("2", "early", model.KindRecycling, 30, now)))
	require.NoError(t, store.InsertLedgerEntry(ctx, entry("3", "old", model.KindRecycling, 500, base)))

	all, err := store.Rank(ctx, repository.RankQuery{Limit: 10})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "old", all[0].UserID)
	assert.Equal(t, 1, all[0].Rank)
	assert.Equal(t, "early", all[1].UserID, "ties go to the earlier registration")
	assert.Equal(t, "late", all[2].UserID)
	assert.Equal(t, 3, all[2].Rank)

	since := now.Add(-time.Hour)
	windowed, err := store.Rank(ctx, repository.RankQuery{Since: &since, Limit: 1})
	require.NoError(t, err)
	require.Len(t, windowed, 1)
	assert.Equal(t, "early", windowed[0].UserID)
	assert.Equal(t, int64(30), windowed[0].Points)
}

func TestAuditAndTotals(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "u1", time.Now())
	seedUser(t, store, "u2", time.Now())
	require.NoError(t, store.InsertLedgerEntry(ctx, entry("a", "u1", model.KindRecycling, 20, time.Now())))
	require.NoError(t, store.InsertLedgerEntry(ctx, entry("b", "u1", model.KindRecycling, 20, time.Now())))
	require.NoError(t, store.InsertLedgerEntry(ctx, entry("c", "u1", model.KindReport, 10, time.Now())))

	totals, err := store.KindTotals(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, model.KindTotal{Count: 2, Points: 40}, totals[model.KindRecycling])
	assert.Equal(t, model.KindTotal{Count: 1, Points: 10}, totals[model.KindReport])

	audits, err := store.AuditBalances(ctx)
	require.NoError(t, err)
	require.Len(t, audits, 2)
	assert.Equal(t, model.BalanceAudit{UserID: "u1", Cached: 0, CachedLevel: 1, LedgerSum: 50}, audits[0])
	assert.Equal(t, model.BalanceAudit{UserID: "u2", Cached: 0, CachedLevel: 1, LedgerSum: 0}, audits[1])

	history, err := store.ListLedgerEntries(ctx, "u1", 2)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}
