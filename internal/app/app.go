package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/o1export/internal/common"
	"github.com/ternarybob/o1export/internal/driver"
	"github.com/ternarybob/o1export/internal/interfaces"
	"github.com/ternarybob/o1export/internal/models"
	"github.com/ternarybob/o1export/internal/services/downloads"
	"github.com/ternarybob/o1export/internal/services/exporter"
	"github.com/ternarybob/o1export/internal/services/exportlog"
	"github.com/ternarybob/o1export/internal/services/pdf"
	"github.com/ternarybob/o1export/internal/services/sessions"
	"github.com/ternarybob/o1export/internal/storage/badger"
)

// App holds all application components and dependencies of one export run
type App struct {
	Config *common.Config
	Logger arbor.ILogger
	RunID  string

	Driver         interfaces.UIDriver
	Watcher        *downloads.Watcher
	SessionManager *sessions.Manager
	ExportLog      *exportlog.Aggregator
	Inventory      *pdf.Inventory
	ReportService  interfaces.ReportRenderer
	Exporter       *exporter.Exporter

	// History is nil when run history is disabled
	History interfaces.RunStorage

	run       *models.RunRecord
	runErr    error
	closeOnce sync.Once
	closeErr  error
}

// New initializes the application and starts the browser
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	stagingDir, err := prepareDirs(cfg)
	if err != nil {
		return nil, err
	}

	chrome, err := driver.NewChromeDriver(driver.Config{
		Headless:           cfg.Browser.Headless,
		DisableGPU:         cfg.Browser.DisableGPU,
		NoSandbox:          cfg.Browser.NoSandbox,
		WindowWidth:        cfg.Browser.WindowWidth,
		WindowHeight:       cfg.Browser.WindowHeight,
		UserAgent:          cfg.Browser.UserAgent,
		DownloadDir:        stagingDir,
		StartupTimeout:     cfg.Browser.StartupTimeout.Duration,
		NavigationInterval: cfg.Browser.NavigationInterval.Duration,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	app, err := newApp(cfg, logger, chrome, stagingDir)
	if err != nil {
		chrome.Close()
		return nil, err
	}
	return app, nil
}

// newApp wires the services around an already started UI driver
func newApp(cfg *common.Config, logger arbor.ILogger, ui interfaces.UIDriver, stagingDir string) (*App, error) {
	startedAt := time.Now()
	runID := uuid.New().String()
	logger = logger.WithCorrelationId(runID)

	app := &App{
		Config: cfg,
		Logger: logger,
		RunID:  runID,
		Driver: ui,
		run: &models.RunRecord{
			ID:        runID,
			StartedAt: startedAt,
			Status:    models.RunStatusRunning,
		},
	}

	if cfg.History.Enabled {
		if err := app.initHistory(); err != nil {
			return nil, err
		}
	}

	app.Watcher = downloads.NewWatcher(
		stagingDir,
		cfg.Downloads.PartialSuffixes,
		cfg.Downloads.PollInterval.Duration,
		logger,
	)
	app.SessionManager = sessions.NewManager(ui, sessions.NewFileStore(cfg.Session.File), cfg, logger)
	app.ExportLog = exportlog.NewAggregator(cfg.ExportLog, startedAt, logger)
	app.Inventory = pdf.NewInventory(logger)
	if cfg.ExportLog.Report {
		app.ReportService = pdf.NewReportService(logger)
	}
	app.Exporter = exporter.NewExporter(ui, app.Watcher, app.ExportLog, app.Inventory, cfg, logger)

	logger.Info().
		Str("run_id", runID).
		Str("output_dir", cfg.Export.OutputDir).
		Str("staging_dir", stagingDir).
		Str("export_log", app.ExportLog.Path()).
		Bool("history", cfg.History.Enabled).
		Msg("Application initialized")

	return app, nil
}

func (a *App) initHistory() error {
	db, err := badger.NewBadgerDB(a.Logger, &a.Config.History)
	if err != nil {
		return fmt.Errorf("failed to open run history: %w", err)
	}
	a.History = badger.NewRunStorage(db, a.Logger)
	return nil
}

// prepareDirs creates the output, staging and export log directories and clears
// leftover files from the staging directory. It returns the absolute staging path.
func prepareDirs(cfg *common.Config) (string, error) {
	stagingDir, err := filepath.Abs(filepath.Join(cfg.Export.OutputDir, cfg.Export.TempDir))
	if err != nil {
		return "", fmt.Errorf("failed to resolve staging directory: %w", err)
	}

	for _, dir := range []string{cfg.Export.OutputDir, stagingDir, cfg.ExportLog.Dir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	if _, err := exporter.ClearFiles(stagingDir); err != nil {
		return "", fmt.Errorf("failed to clear staging directory: %w", err)
	}
	return stagingDir, nil
}

// Run establishes the session and exports every project in the project list.
// A session conflict re-authenticates and resumes the same list, at most
// export.max_retry times.
func (a *App) Run(ctx context.Context) error {
	err := a.export(ctx)
	a.runErr = err
	return err
}

func (a *App) export(ctx context.Context) error {
	endpoints, err := exporter.LoadProjectList(a.Config.Export.ProjectsFile)
	if err != nil {
		return err
	}
	a.Logger.Info().
		Str("path", a.Config.Export.ProjectsFile).
		Int("projects", len(endpoints)).
		Msg("Project list loaded")

	if err := a.SessionManager.Establish(ctx); err != nil {
		return fmt.Errorf("failed to establish session: %w", err)
	}

	for conflicts := 0; ; conflicts++ {
		err := a.Exporter.Run(ctx, endpoints)
		if err == nil {
			break
		}
		if !errors.Is(err, exporter.ErrSessionConflict) {
			return err
		}
		if conflicts >= a.Config.Export.MaxRetry {
			return fmt.Errorf("%d session conflicts: %w", conflicts+1, err)
		}

		a.Logger.Warn().
			Err(err).
			Int("conflict", conflicts+1).
			Int("max_retry", a.Config.Export.MaxRetry).
			Msg("Session conflict, re-authenticating")
		if err := a.SessionManager.Reauthenticate(ctx); err != nil {
			return fmt.Errorf("failed to re-authenticate after session conflict: %w", err)
		}
	}

	a.Logger.Info().
		Int("processed", a.Exporter.Processed()).
		Msg("Export run completed")
	return nil
}

// Close runs the shutdown sequence once: countdown, flush the export log, render
// the report, persist the session, save the run record, close driver and history
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		a.closeErr = a.shutdown()
	})
	return a.closeErr
}

func (a *App) shutdown() error {
	a.countdown(a.Config.Export.ShutdownCountdown.Duration)

	var errs []error

	logPath, err := a.ExportLog.Flush()
	if err != nil {
		a.Logger.Error().Err(err).Msg("Failed to write export log")
		errs = append(errs, err)
	} else if logPath != "" {
		a.Logger.Info().Str("path", logPath).Msg("Export log written")
	}

	a.run.FinishedAt = time.Now()
	a.run.Status = runStatus(a.runErr)
	a.run.Summary = a.ExportLog.Summary()
	a.run.ExportLogFile = logPath
	if a.runErr != nil {
		a.run.Error = a.runErr.Error()
	}

	if logPath != "" && a.ReportService != nil {
		a.writeReport(logPath)
	}

	if a.SessionManager.Established() {
		if err := a.SessionManager.Persist(context.Background()); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to persist session")
		}
	}

	if a.History != nil {
		if err := a.History.SaveRun(context.Background(), a.run); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to save run record")
		}
	}

	if err := a.Driver.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to close browser")
	}

	if a.History != nil {
		if err := a.History.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close run history")
		}
	}

	a.Logger.Info().
		Str("status", string(a.run.Status)).
		Int("projects", a.run.Summary.Projects).
		Int("projects_exported", a.run.Summary.ProjectsExported).
		Int("forms_failed", a.run.Summary.FormsFailed).
		Int("page_errors", a.run.Summary.PageErrors).
		Dur("duration", a.run.Duration()).
		Msg("Application shutdown complete")

	return errors.Join(errs...)
}

func (a *App) writeReport(logPath string) {
	data, err := a.ReportService.RenderRunReport(a.run, a.ExportLog.Log())
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to render run report")
		return
	}

	reportPath := strings.TrimSuffix(logPath, filepath.Ext(logPath)) + ".pdf"
	if err := os.WriteFile(reportPath, data, 0644); err != nil {
		a.Logger.Warn().Err(err).Str("path", reportPath).Msg("Failed to write run report")
		return
	}
	a.Logger.Info().Str("path", reportPath).Msg("Run report written")
}

func (a *App) countdown(d time.Duration) {
	for remaining := d; remaining > 0; remaining -= time.Second {
		a.Logger.Info().Dur("remaining", remaining).Msg("Shutting down")
		time.Sleep(min(time.Second, remaining))
	}
}

// RunRecord returns the run record; it is final after Close
func (a *App) RunRecord() *models.RunRecord {
	return a.run
}

func runStatus(err error) models.RunStatus {
	switch {
	case err == nil:
		return models.RunStatusCompleted
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return models.RunStatusInterrupted
	default:
		return models.RunStatusFailed
	}
}

// ListRuns opens the run history for the duration of the call and
// returns the newest limit records
func ListRuns(cfg *common.Config, logger arbor.ILogger, limit int) ([]*models.RunRecord, error) {
	if !cfg.History.Enabled {
		return nil, fmt.Errorf("run history is disabled")
	}
	db, err := badger.NewBadgerDB(logger, &cfg.History)
	if err != nil {
		return nil, fmt.Errorf("failed to open run history: %w", err)
	}
	store := badger.NewRunStorage(db, logger)
	defer store.Close()

	return store.ListRuns(context.Background(), limit)
}
