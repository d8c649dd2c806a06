package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/o1export/internal/common"
	"github.com/ternarybob/o1export/internal/models"
	"github.com/ternarybob/o1export/internal/services/exporter"
	"github.com/ternarybob/o1export/internal/storage/badger"
)

// stubDriver accepts every UI call; title is returned for every page
type stubDriver struct {
	title       string
	navigations []string
	closed      int
}

func (d *stubDriver) Navigate(ctx context.Context, url string) error {
	d.navigations = append(d.navigations, url)
	return nil
}
func (d *stubDriver) Title(ctx context.Context) (string, error) { return d.title, nil }
func (d *stubDriver) Reload(ctx context.Context) error          { return nil }
func (d *stubDriver) WaitPresent(ctx context.Context, selector string, timeout time.Duration) error {
	return nil
}
func (d *stubDriver) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	return nil
}
func (d *stubDriver) Probe(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	return false, nil
}
func (d *stubDriver) Click(ctx context.Context, selector string, timeout time.Duration) error {
	return nil
}
func (d *stubDriver) ClickNth(ctx context.Context, selector string, index int, timeout time.Duration) error {
	return nil
}
func (d *stubDriver) SendKeys(ctx context.Context, selector, text string, timeout time.Duration) error {
	return nil
}
func (d *stubDriver) Text(ctx context.Context, selector string, timeout time.Duration) (string, error) {
	return "", nil
}
func (d *stubDriver) Attribute(ctx context.Context, selector, name string, timeout time.Duration) (string, error) {
	return "Tower A", nil
}
func (d *stubDriver) Texts(ctx context.Context, selector string, timeout time.Duration) ([]string, error) {
	return nil, nil
}
func (d *stubDriver) Count(ctx context.Context, selector string) (int, error) { return 0, nil }
func (d *stubDriver) Cookies(ctx context.Context) ([]*models.Cookie, error) {
	return []*models.Cookie{{Name: "auth", Value: "token", Domain: ".example.com"}}, nil
}
func (d *stubDriver) SetCookies(ctx context.Context, cookies []*models.Cookie) error { return nil }
func (d *stubDriver) ClearCookies(ctx context.Context) error                         { return nil }
func (d *stubDriver) Close() error {
	d.closed++
	return nil
}

func newTestConfig(t *testing.T) *common.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := common.NewDefaultConfig()
	cfg.Login.URL = "https://login.example.com/"
	cfg.Login.HomeURL = "https://app.example.com/"
	cfg.Session.File = filepath.Join(dir, "cookies.json")
	cfg.Export.ProjectsFile = filepath.Join(dir, "projects.txt")
	cfg.Export.OutputDir = filepath.Join(dir, "output")
	cfg.Export.MaxRetry = 1
	cfg.Export.ShutdownCountdown = common.Dur(0)
	cfg.ExportLog.Dir = filepath.Join(dir, "export_logs")
	cfg.History.Path = filepath.Join(dir, "history")
	return cfg
}

func newTestApp(t *testing.T, cfg *common.Config, ui *stubDriver) *App {
	t.Helper()
	stagingDir, err := prepareDirs(cfg)
	require.NoError(t, err)

	app, err := newApp(cfg, arbor.NewLogger(), ui, stagingDir)
	require.NoError(t, err)
	return app
}

func listRuns(t *testing.T, cfg *common.Config) []*models.RunRecord {
	t.Helper()
	db, err := badger.NewBadgerDB(arbor.NewLogger(), &cfg.History)
	require.NoError(t, err)
	store := badger.NewRunStorage(db, arbor.NewLogger())
	defer store.Close()

	runs, err := store.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	return runs
}

func TestPrepareDirs_ClearsStaging(t *testing.T) {
	cfg := newTestConfig(t)
	staging := filepath.Join(cfg.Export.OutputDir, cfg.Export.TempDir)
	require.NoError(t, os.MkdirAll(staging, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(staging, "stale.crdownload"), []byte("x"), 0644))

	stagingDir, err := prepareDirs(cfg)
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(stagingDir))
	assert.NoFileExists(t, filepath.Join(staging, "stale.crdownload"))
	assert.DirExists(t, cfg.ExportLog.Dir)
}

func TestRun_MissingProjectList(t *testing.T) {
	cfg := newTestConfig(t)
	ui := &stubDriver{}
	app := newTestApp(t, cfg, ui)

	err := app.Run(context.Background())
	assert.True(t, errors.Is(err, exporter.ErrProjectListMissing))
	assert.Empty(t, ui.navigations, "no browser work without a project list")

	require.NoError(t, app.Close())
	assert.Equal(t, 1, ui.closed)
	assert.NoFileExists(t, cfg.Session.File, "no session was established")

	runs := listRuns(t, cfg)
	require.Len(t, runs, 1)
	assert.Equal(t, app.RunID, runs[0].ID)
	assert.Equal(t, models.RunStatusFailed, runs[0].Status)
	assert.Contains(t, runs[0].Error, "project list")
	assert.Empty(t, runs[0].ExportLogFile)
}

func TestRun_SessionConflictBounded(t *testing.T) {
	cfg := newTestConfig(t)
	require.NoError(t, os.WriteFile(cfg.Export.ProjectsFile, []byte("https://app.example.com/p1\n"), 0644))
	ui := &stubDriver{title: cfg.Export.ConflictTitle}
	app := newTestApp(t, cfg, ui)

	err := app.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, exporter.ErrSessionConflict))

	logins := 0
	for _, url := range ui.navigations {
		if url == cfg.Login.URL {
			logins++
		}
	}
	assert.Equal(t, 2, logins, "initial login plus one re-authentication")
	assert.FileExists(t, cfg.Session.File)

	require.NoError(t, app.Close())
	require.NoError(t, app.Close(), "close is idempotent")
	assert.Equal(t, 1, ui.closed)
}

func TestRun_CompletesAndWritesArtifacts(t *testing.T) {
	cfg := newTestConfig(t)
	require.NoError(t, os.WriteFile(cfg.Export.ProjectsFile, []byte("https://app.example.com/p1\n"), 0644))
	ui := &stubDriver{title: "Project"}
	app := newTestApp(t, cfg, ui)

	require.NoError(t, app.Run(context.Background()))
	require.NoError(t, app.Close())

	logPath := app.ExportLog.Path()
	assert.FileExists(t, logPath)
	assert.FileExists(t, logPath[:len(logPath)-len(filepath.Ext(logPath))]+".pdf")
	assert.FileExists(t, cfg.Session.File)

	runs := listRuns(t, cfg)
	require.Len(t, runs, 1)
	assert.Equal(t, models.RunStatusCompleted, runs[0].Status)
	assert.Equal(t, 1, runs[0].Summary.Projects)
	assert.Equal(t, 1, runs[0].Summary.ProjectsExported)
	assert.Equal(t, logPath, runs[0].ExportLogFile)
}

func TestRunStatus(t *testing.T) {
	assert.Equal(t, models.RunStatusCompleted, runStatus(nil))
	assert.Equal(t, models.RunStatusInterrupted, runStatus(context.Canceled))
	assert.Equal(t, models.RunStatusFailed, runStatus(errors.New("boom")))
}

func TestListRuns(t *testing.T) {
	cfg := newTestConfig(t)
	for i := 0; i < 3; i++ {
		app := newTestApp(t, cfg, &stubDriver{})
		_ = app.Run(context.Background())
		require.NoError(t, app.Close())
	}

	runs, err := ListRuns(cfg, arbor.NewLogger(), 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.False(t, runs[0].StartedAt.Before(runs[1].StartedAt), "newest first")

	cfg.History.Enabled = false
	_, err = ListRuns(cfg, arbor.NewLogger(), 2)
	assert.Error(t, err)
}
