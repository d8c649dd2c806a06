package badger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/o1export/internal/common"
	"github.com/ternarybob/o1export/internal/models"
)

func newTestStorage(t *testing.T) *RunStorage {
	t.Helper()
	logger := arbor.NewLogger()

	db, err := NewBadgerDB(logger, &common.HistoryConfig{Enabled: true, Path: t.TempDir()})
	require.NoError(t, err)

	storage := NewRunStorage(db, logger)
	t.Cleanup(func() { storage.Close() })
	return storage
}

func TestRunStorage_SaveGet(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	started := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	run := &models.RunRecord{
		ID:        "run-1",
		StartedAt: started,
		Status:    models.RunStatusRunning,
	}
	require.NoError(t, storage.SaveRun(ctx, run))

	run.Status = models.RunStatusCompleted
	run.FinishedAt = started.Add(time.Hour)
	run.Summary = models.RunSummary{Projects: 3, ProjectsExported: 2}
	run.ExportLogFile = "export_logs/01-05-2024_09-00-00_export_log.json"
	require.NoError(t, storage.SaveRun(ctx, run))

	loaded, err := storage.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, loaded.Status)
	assert.Equal(t, 2, loaded.Summary.ProjectsExported)
	assert.Equal(t, time.Hour, loaded.Duration())
	assert.Equal(t, run.ExportLogFile, loaded.ExportLogFile)
}

func TestRunStorage_GetMissing(t *testing.T) {
	storage := newTestStorage(t)

	_, err := storage.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestRunStorage_SaveRequiresID(t *testing.T) {
	storage := newTestStorage(t)
	assert.Error(t, storage.SaveRun(context.Background(), &models.RunRecord{}))
}

func TestRunStorage_ListMostRecentFirst(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, storage.SaveRun(ctx, &models.RunRecord{
			ID:        fmt.Sprintf("run-%d", i),
			StartedAt: base.Add(time.Duration(i) * time.Hour),
			Status:    models.RunStatusCompleted,
		}))
	}

	runs, err := storage.ListRuns(ctx, 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "run-4", runs[0].ID)
	assert.Equal(t, "run-3", runs[1].ID)
	assert.Equal(t, "run-2", runs[2].ID)

	all, err := storage.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}
