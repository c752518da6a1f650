package metrics_test

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/dockd/internal/errors"
	"codeberg.org/mutker/dockd/internal/logger"
	"codeberg.org/mutker/dockd/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledCollectorIsNoop(t *testing.T) {
	c, err := metrics.NewService(metrics.DefaultConfig(), logger.Nop())
	require.NoError(t, err)

	require.NoError(t, c.Record(context.Background(), &metrics.TransitionSnapshot{}))
	require.NoError(t, c.Close())
}

func TestValidate(t *testing.T) {
	cfg := metrics.Config{Enabled: true}
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, metrics.ErrInvalidDBPath))

	cfg = metrics.Config{Enabled: true, DBPath: "x.db", BatchSize: -1}
	assert.Error(t, cfg.Validate())
}

func TestRepositoryRecordAndRecent(t *testing.T) {
	cfg := metrics.Config{
		Enabled: true,
		DBPath:  filepath.Join(t.TempDir(), "history", "transitions.db"),
	}
	repo, err := metrics.NewRepository(cfg, logger.Nop())
	require.NoError(t, err)

	now := time.Unix(1700000000, 0)
	require.NoError(t, repo.Record(&metrics.TransitionSnapshot{
		Timestamp: now, RunID: "run", Operation: "set", From: 0, To: 2, Docked: true,
	}))
	require.NoError(t, repo.Record(&metrics.TransitionSnapshot{
		Timestamp: now.Add(time.Second), RunID: "run", Operation: "force", From: 2, To: 1,
		Forced: true, Docked: true, Error: "write failed",
	}))

	got, err := repo.Recent(10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "force", got[0].Operation)
	assert.True(t, got[0].Forced)
	assert.Equal(t, "write failed", got[0].Error)
	assert.Equal(t, 2, got[0].From)
	assert.Equal(t, 1, got[0].To)
	assert.Equal(t, now.Add(time.Second).Unix(), got[0].Timestamp.Unix())

	assert.Equal(t, "set", got[1].Operation)
	assert.False(t, got[1].Forced)
	assert.True(t, got[1].Docked)

	require.NoError(t, repo.Close())
	require.NoError(t, repo.Close())
}

func TestRepositoryBatchFlushedOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transitions.db")
	cfg := metrics.Config{Enabled: true, DBPath: path, BatchSize: 10}

	repo, err := metrics.NewRepository(cfg, logger.Nop())
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Record(&metrics.TransitionSnapshot{
			Timestamp: time.Now(), RunID: "r", Operation: "set", To: i,
		}))
	}
	require.NoError(t, repo.Close())

	repo, err = metrics.NewRepository(cfg, logger.Nop())
	require.NoError(t, err)
	defer repo.Close()

	got, err := repo.Recent(2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[0].To)
	assert.Equal(t, 1, got[1].To)
}

func TestServiceTagsRunID(t *testing.T) {
	cfg := metrics.Config{
		Enabled: true,
		DBPath:  filepath.Join(t.TempDir(), "transitions.db"),
	}
	c, err := metrics.NewService(cfg, logger.Nop())
	require.NoError(t, err)

	a := &metrics.TransitionSnapshot{Timestamp: time.Now(), Operation: "set"}
	b := &metrics.TransitionSnapshot{Timestamp: time.Now(), Operation: "clear"}
	require.NoError(t, c.Record(context.Background(), a))
	require.NoError(t, c.Record(context.Background(), b))
	require.NoError(t, c.Close())

	assert.NotEmpty(t, a.RunID)
	assert.Equal(t, a.RunID, b.RunID)
}

func TestServiceRecordCanceled(t *testing.T) {
	cfg := metrics.Config{
		Enabled: true,
		DBPath:  filepath.Join(t.TempDir(), "transitions.db"),
	}
	c, err := metrics.NewService(cfg, logger.Nop())
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = c.Record(ctx, &metrics.TransitionSnapshot{})
	assert.True(t, errors.HasCode(err, metrics.ErrOperationTimeout))

	assert.True(t, errors.HasCode(c.Record(context.Background(), nil), metrics.ErrInvalidMetrics))
}

func TestSchemaMismatchBacksUp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "transitions.db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE schema_versions (version INTEGER PRIMARY KEY, applied_at TEXT NOT NULL);
		INSERT INTO schema_versions VALUES (99, datetime('now'));`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	repo, err := metrics.NewRepository(metrics.Config{Enabled: true, DBPath: path}, logger.Nop())
	require.NoError(t, err)
	defer repo.Close()

	backups, err := os.ReadDir(filepath.Join(dir, "backups"))
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.Contains(t, backups[0].Name(), "transitions_v99_")

	got, err := repo.Recent(1)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestServiceRecent(t *testing.T) {
	cfg := metrics.Config{
		Enabled: true,
		DBPath:  filepath.Join(t.TempDir(), "transitions.db"),
	}
	c, err := metrics.NewService(cfg, logger.Nop())
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Record(context.Background(), &metrics.TransitionSnapshot{
		Timestamp: time.Now(), Operation: "set", To: 2,
	}))

	got, err := c.Recent(5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].To)
	assert.NotEmpty(t, got[0].RunID)
}
