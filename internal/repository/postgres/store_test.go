package postgres

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Shivanand-hulikatti/ecopoints/internal/database"
	"github.com/Shivanand-hulikatti/ecopoints/internal/leveling"
	"github.com/Shivanand-hulikatti/ecopoints/internal/model"
	"github.com/Shivanand-hulikatti/ecopoints/internal/repository"
)

// openTestStore connects to the database named by ECO_TEST_POSTGRES_DSN and
// skips the test when it is unset.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("ECO_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("ECO_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	pool, err := database.Connect(ctx, dsn, 8, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store, err := Open(ctx, pool)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `TRUNCATE ledger_entries, enrollments, events, users`)
	require.NoError(t, err)
	return store
}

func TestPostgresLockEventSerialisesJoins(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.UpsertUser(ctx, model.User{ID: "org", Role: model.RoleUser}))
	capacity := 2
	event := &model.Event{
		ID: uuid.NewString(), OrganizerID: "org", Title: "River cleanup", ScheduledAt: now.Add(time.Hour),
		Capacity: &capacity, RewardPoints: 50, Status: model.StatusScheduled, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, store.InsertEvent(ctx, event))

	users := []string{"a", "b", "c", "d"}
	for _, id := range users {
		require.NoError(t, store.UpsertUser(ctx, model.User{ID: id, Role: model.RoleUser}))
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for _, id := range users {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			err := store.WithTx(ctx, func(tx repository.Tx) error {
				e, err := tx.LockEvent(ctx, event.ID)
				if err != nil {
					return err
				}
				if e.IsFull() {
					return nil
				}
				if err := tx.InsertEnrollment(ctx, model.EnrollmentRecord{EventID: e.ID, UserID: userID, CreatedAt: time.Now()}); err != nil {
					return err
				}
				mu.Lock()
				admitted++
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 2, admitted)
	n, err := store.CountEnrollments(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestPostgresCreditKeyIsUnique(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, store.UpsertUser(ctx, model.User{ID: "org", Role: model.RoleUser}))
	require.NoError(t, store.UpsertUser(ctx, model.User{ID: "u1", Role: model.RoleUser}))
	eventID := uuid.NewString()
	require.NoError(t, store.InsertEvent(ctx, &model.Event{
		ID: eventID, OrganizerID: "org", Title: "Park", ScheduledAt: now, RewardPoints: 50,
		Status: model.StatusScheduled, CreatedAt: now, UpdatedAt: now,
	}))

	err := store.WithTx(ctx, func(tx repository.Tx) error {
		for i := 0; i < 2; i++ {
			err := tx.InsertLedgerEntry(ctx, &model.LedgerEntry{
				ID: uuid.NewString(), UserID: "u1", Kind: model.KindCleaning, Points: 50,
				EventID: &eventID, CreatedAt: now,
			})
			if i == 1 {
				assert.ErrorIs(t, err, repository.ErrDuplicateCredit)
				continue
			}
			if err != nil {
				return err
			}
			if _, err := tx.AddBalance(ctx, "u1", 50, leveling.Level); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	sum, err := store.LedgerSum(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(50), sum)
}
