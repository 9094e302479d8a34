package enrollment

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Shivanand-hulikatti/ecopoints/internal/apperr"
	"github.com/Shivanand-hulikatti/ecopoints/internal/model"
	"github.com/Shivanand-hulikatti/ecopoints/internal/repository/sqlite"
)

func newTestManager(t *testing.T) (*Manager, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "enroll.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.UpsertUser(context.Background(), model.User{ID: "org", Role: model.RoleUser}))
	return NewManager(store, nil, zaptest.NewLogger(t)), store
}

func addUsers(t *testing.T, store *sqlite.Store, n int) []string {
	t.Helper()
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("user-%02d", i)
		require.NoError(t, store.UpsertUser(context.Background(), model.User{ID: ids[i], Role: model.RoleUser}))
	}
	return ids
}

func addEvent(t *testing.T, store *sqlite.Store, id string, capacity *int) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, store.InsertEvent(context.Background(), &model.Event{
		ID: id, OrganizerID: "org", Title: "Cleanup", ScheduledAt: now.Add(time.Hour), Capacity: capacity,
		RewardPoints: model.DefaultRewardPoints, Status: model.StatusScheduled, CreatedAt: now, UpdatedAt: now,
	}))
}

func intPtr(v int) *int { return &v }

func joinConcurrently(m *Manager, eventID string, users []string) []model.JoinResult {
	results := make([]model.JoinResult, len(users))
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i, id := range users {
		wg.Add(1)
		go func(i int, userID string) {
			defer wg.Done()
			<-start
			_, err := m.Join(context.Background(), eventID, userID)
			results[i] = model.JoinResult{UserID: userID, Success: err == nil, Error: err}
		}(i, id)
	}
	close(start)
	wg.Wait()
	return results
}

func TestConcurrentJoinsRespectCapacity(t *testing.T) {
	m, store := newTestManager(t)
	users := addUsers(t, store, 3)
	addEvent(t, store, "e1", intPtr(2))

	results := joinConcurrently(m, "e1", users)

	var ok, full int
	for _, r := range results {
		if r.Success {
			ok++
			continue
		}
		assert.ErrorIs(t, r.Error, apperr.ErrCapacityExceeded)
		full++
	}
	assert.Equal(t, 2, ok)
	assert.Equal(t, 1, full)

	count, err := m.Count(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestConcurrentJoinsAdmitMinOfNAndC(t *testing.T) {
	cases := []struct{ n, capacity int }{{10, 4}, {3, 5}, {6, 6}, {5, 0}}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("n=%d,c=%d", tc.n, tc.capacity), func(t *testing.T) {
			m, store := newTestManager(t)
			users := addUsers(t, store, tc.n)
			addEvent(t, store, "e1", intPtr(tc.capacity))

			admitted := 0
			for _, r := range joinConcurrently(m, "e1", users) {
				if r.Success {
					admitted++
				} else {
					assert.ErrorIs(t, r.Error, apperr.ErrCapacityExceeded)
				}
			}
			assert.Equal(t, min(tc.n, tc.capacity), admitted)

			roster, err := m.Roster(context.Background(), "e1")
			require.NoError(t, err)
			assert.Len(t, roster, admitted)
		})
	}
}

func TestJoinUnboundedCapacity(t *testing.T) {
	m, store := newTestManager(t)
	users := addUsers(t, store, 8)
	addEvent(t, store, "e1", nil)

	for _, r := range joinConcurrently(m, "e1", users) {
		assert.True(t, r.Success, r.Error)
	}
}

func TestJoinErrors(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()
	users := addUsers(t, store, 1)
	addEvent(t, store, "e1", nil)
	addEvent(t, store, "e2", nil)
	require.NoError(t, store.UpdateEventStatus(ctx, "e2", model.StatusOngoing, time.Now()))

	_, err := m.Join(ctx, "missing", users[0])
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = m.Join(ctx, "e2", users[0])
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	_, err = m.Join(ctx, "e1", "ghost")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	rec, err := m.Join(ctx, "e1", users[0])
	require.NoError(t, err)
	assert.Equal(t, "e1", rec.EventID)

	_, err = m.Join(ctx, "e1", users[0])
	assert.ErrorIs(t, err, apperr.ErrAlreadyEnrolled)
}

func TestLeaveThenRejoin(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()
	users := addUsers(t, store, 2)
	addEvent(t, store, "e1", intPtr(1))

	_, err := m.Join(ctx, "e1", users[0])
	require.NoError(t, err)
	_, err = m.Join(ctx, "e1", users[1])
	assert.ErrorIs(t, err, apperr.ErrCapacityExceeded)

	require.NoError(t, m.Leave(ctx, "e1", users[0]))
	assert.ErrorIs(t, m.Leave(ctx, "e1", users[0]), apperr.ErrNotEnrolled)

	_, err = m.Join(ctx, "e1", users[0])
	require.NoError(t, err, "leave must not leave a residual uniqueness conflict")
}

func TestLeaveAllowedAfterStart(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()
	users := addUsers(t, store, 1)
	addEvent(t, store, "e1", nil)

	_, err := m.Join(ctx, "e1", users[0])
	require.NoError(t, err)
	require.NoError(t, store.UpdateEventStatus(ctx, "e1", model.StatusCancelled, time.Now()))

	require.NoError(t, m.Leave(ctx, "e1", users[0]))
	assert.ErrorIs(t, m.Leave(ctx, "missing", users[0]), apperr.ErrNotFound)
}

func TestReadAccessorsOnMissingEvent(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.Count(context.Background(), "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = m.Roster(context.Background(), "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
