package exporter

import (
	"context"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/o1export/internal/common"
	"github.com/ternarybob/o1export/internal/interfaces"
	"github.com/ternarybob/o1export/internal/services/exportlog"
)

// Exporter walks projects, form types and pages of the remote UI and exports
// every form type as a tabular file and a document archive.
// A single goroutine drives it; the UI session is single-seat.
type Exporter struct {
	driver    interfaces.UIDriver
	watcher   interfaces.DownloadWatcher
	log       *exportlog.Aggregator
	inventory interfaces.DocumentInventory
	logger    arbor.ILogger

	export    common.ExportConfig
	downloads common.DownloadsConfig
	timeouts  common.TimeoutsConfig
	sel       common.SelectorsConfig
	skip      map[string]bool

	processed map[string]bool
	names     map[string]string // project display name to the endpoint that first recorded it
	now       func() time.Time
}

// NewExporter creates an exporter. inventory may be nil.
func NewExporter(
	driver interfaces.UIDriver,
	watcher interfaces.DownloadWatcher,
	log *exportlog.Aggregator,
	inventory interfaces.DocumentInventory,
	config *common.Config,
	logger arbor.ILogger,
) *Exporter {
	skip := make(map[string]bool, len(config.Export.SkipFormTypes))
	for _, name := range config.Export.SkipFormTypes {
		skip[strings.TrimSpace(name)] = true
	}

	return &Exporter{
		driver:    driver,
		watcher:   watcher,
		log:       log,
		inventory: inventory,
		logger:    logger,
		export:    config.Export,
		downloads: config.Downloads,
		timeouts:  config.Timeouts,
		sel:       config.Selectors,
		skip:      skip,
		processed: make(map[string]bool),
		names:     make(map[string]string),
		now:       time.Now,
	}
}

// Run exports every endpoint in order. Blank and repeated endpoints are skipped, as
// are endpoints already processed by an earlier Run of this exporter, so a run
// interrupted by a session conflict resumes where it stopped.
// Only fatal errors are returned: session conflicts and cancellation.
func (e *Exporter) Run(ctx context.Context, endpoints []string) error {
	total := 0
	seen := make(map[string]bool, len(endpoints))
	for _, endpoint := range endpoints {
		endpoint = strings.TrimSpace(endpoint)
		if endpoint == "" {
			continue
		}
		if seen[endpoint] {
			e.logger.Warn().Str("url", endpoint).Msg("Duplicate project endpoint, skipping")
			continue
		}
		seen[endpoint] = true
		total++

		if e.processed[endpoint] {
			e.logger.Debug().Str("url", endpoint).Msg("Project already processed, skipping")
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := e.exportProject(ctx, endpoint); err != nil {
			return err
		}
		e.processed[endpoint] = true
	}

	e.logger.Info().Int("projects", total).Msg("All projects exported")
	return nil
}

// Processed returns how many endpoints reached a terminal state
func (e *Exporter) Processed() int {
	return len(e.processed)
}

// attemptOutcome converts an attempt error to an outcome, logging retryable causes
func (e *Exporter) attemptOutcome(ctx context.Context, err error) Outcome {
	outcome := Classify(ctx, err)
	if outcome.Kind == OutcomeRetryable {
		e.logger.Debug().Err(err).Msg("Attempt error")
	}
	return outcome
}

// sleep waits d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
