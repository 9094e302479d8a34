package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/ecopoints/internal/model"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, DriverPostgres, cfg.Driver)
	assert.Equal(t, model.DefaultRewardPoints, cfg.DefaultRewardPoints)
	assert.Equal(t, "@every 15m", cfg.ReconcileSchedule)
	assert.Equal(t, 30*time.Second, cfg.DirectoryCacheTTL)
	assert.Equal(t, int64(20), cfg.ActionPoints.Recycling)
	assert.Equal(t, "localhost", cfg.Postgres.Host)
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("ECO_STORE_DRIVER", "sqlite")
	t.Setenv("ECO_SQLITE_PATH", "/tmp/eco.db")
	t.Setenv("ECO_LEADERBOARD_TZ", "Europe/Berlin")
	t.Setenv("ECO_POINTS_REPORT", "12")
	t.Setenv("DB_MAX_CONNS", "4")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.Driver)
	assert.Equal(t, "/tmp/eco.db", cfg.SQLitePath)
	assert.Equal(t, int64(12), cfg.ActionPoints.Report)
	assert.Equal(t, int32(4), cfg.Postgres.MaxConns)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())
}

func TestParseRejectsInvalid(t *testing.T) {
	t.Run("driver", func(t *testing.T) {
		t.Setenv("ECO_STORE_DRIVER", "mysql")
		_, err := Parse()
		assert.ErrorContains(t, err, "unsupported store driver")
	})
	t.Run("timezone", func(t *testing.T) {
		t.Setenv("ECO_LEADERBOARD_TZ", "Mars/Olympus")
		_, err := Parse()
		assert.Error(t, err)
	})
	t.Run("reward", func(t *testing.T) {
		t.Setenv("ECO_DEFAULT_REWARD_POINTS", "-1")
		_, err := Parse()
		assert.Error(t, err)
	})
}

func TestActionPointsFor(t *testing.T) {
	p := ActionPoints{Report: 1, Recycling: 2, Education: 3, Other: 4}
	for kind, want := range map[model.SourceKind]int64{
		model.KindReport:    1,
		model.KindRecycling: 2,
		model.KindEducation: 3,
		model.KindOther:     4,
	} {
		got, ok := p.For(kind)
		assert.True(t, ok, kind)
		assert.Equal(t, want, got, kind)
	}
	for _, kind := range []model.SourceKind{model.KindCleaning, model.KindCorrection, "bogus"} {
		_, ok := p.For(kind)
		assert.False(t, ok, kind)
	}
}
