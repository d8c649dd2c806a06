package downloads

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/o1export/internal/common"
	"github.com/ternarybob/o1export/internal/interfaces"
	"github.com/ternarybob/o1export/internal/models"
)

// Watcher observes one staging directory for artifacts produced by the browser
type Watcher struct {
	stagingDir      string
	partialSuffixes []string
	pollInterval    time.Duration
	logger          arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.DownloadWatcher = (*Watcher)(nil)

// NewWatcher creates a watcher for stagingDir.
// Files ending in one of partialSuffixes are treated as downloads still in flight.
func NewWatcher(stagingDir string, partialSuffixes []string, pollInterval time.Duration, logger arbor.ILogger) *Watcher {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Watcher{
		stagingDir:      stagingDir,
		partialSuffixes: partialSuffixes,
		pollInterval:    pollInterval,
		logger:          logger,
	}
}

// StagingDir returns the observed directory
func (w *Watcher) StagingDir() string {
	return w.stagingDir
}

// Begin starts a non-recursive observation of the staging directory.
// It must be called before the UI action that produces the file.
func (w *Watcher) Begin(expectedFileName string) (interfaces.PendingDownload, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create download watcher: %w", err)
	}
	if err := fsw.Add(w.stagingDir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch staging directory %s: %w", w.stagingDir, err)
	}

	p := &pendingDownload{
		watcher:  w,
		expected: expectedFileName,
		fsw:      fsw,
		result:   make(chan models.DownloadOutcome, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	common.SafeGo(w.logger, "downloadWatcher", p.observe)

	w.logger.Debug().
		Str("expected", expectedFileName).
		Str("dir", w.stagingDir).
		Msg("Download observation started")

	return p, nil
}

// classify decides whether a file event completes the download.
// Order: exact name, same extension, then any name that is not a partial marker.
func (w *Watcher) classify(expected, observed string) (models.DownloadOutcome, bool) {
	if observed == "" || observed == "." {
		return models.DownloadOutcome{}, false
	}
	if observed == expected {
		return models.DownloadOutcome{Completed: true}, true
	}
	if w.isPartial(observed) {
		return models.DownloadOutcome{}, false
	}
	return models.DownloadOutcome{Completed: true, ActualFileName: observed}, true
}

func (w *Watcher) isPartial(name string) bool {
	lower := strings.ToLower(name)
	for _, suffix := range w.partialSuffixes {
		if suffix != "" && strings.HasSuffix(lower, strings.ToLower(suffix)) {
			return true
		}
	}
	return false
}

// sameExtension reports whether two file names share a non-empty extension
func sameExtension(a, b string) bool {
	ext := filepath.Ext(a)
	return ext != "" && strings.EqualFold(ext, filepath.Ext(b))
}

type pendingDownload struct {
	watcher  *Watcher
	expected string
	fsw      *fsnotify.Watcher
	result   chan models.DownloadOutcome
	stop     chan struct{}
	done     chan struct{}
	once     sync.Once
}

// observe resolves at most one outcome, then exits
func (p *pendingDownload) observe() {
	defer close(p.done)

	for {
		select {
		case <-p.stop:
			return
		case event, ok := <-p.fsw.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			name := filepath.Base(event.Name)
			outcome, matched := p.watcher.classify(p.expected, name)
			if !matched {
				p.watcher.logger.Trace().Str("file", name).Msg("Ignoring partial download")
				continue
			}
			p.result <- outcome
			return
		case err, ok := <-p.fsw.Errors:
			if !ok {
				return
			}
			p.watcher.logger.Warn().Err(err).Msg("Download watcher error")
		}
	}
}

// Wait blocks until the artifact arrives, timeout elapses or ctx is done
func (p *pendingDownload) Wait(ctx context.Context, timeout time.Duration) models.DownloadOutcome {
	defer p.Close()

	logger := p.watcher.logger
	startTime := time.Now()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	ticker := time.NewTicker(p.watcher.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case outcome := <-p.result:
			if outcome.Mismatch() {
				event := logger.Warn().
					Str("expected", p.expected).
					Str("actual", outcome.ActualFileName)
				if sameExtension(p.expected, outcome.ActualFileName) {
					event.Msg("Download arrived under a different name")
				} else {
					event.Msg("Download arrived under an unexpected name")
				}
			} else {
				logger.Debug().
					Str("file", p.expected).
					Dur("elapsed", time.Since(startTime)).
					Msg("Download completed")
			}
			return outcome
		case <-ticker.C:
			logger.Trace().
				Str("expected", p.expected).
				Dur("elapsed", time.Since(startTime)).
				Msg("Waiting for download")
		case <-timer.C:
			logger.Warn().
				Str("expected", p.expected).
				Dur("timeout", timeout).
				Msg("Download did not complete before timeout")
			return models.DownloadOutcome{}
		case <-ctx.Done():
			return models.DownloadOutcome{}
		}
	}
}

// Close stops the observation and drains the background goroutine
func (p *pendingDownload) Close() {
	p.once.Do(func() {
		close(p.stop)
		if err := p.fsw.Close(); err != nil {
			p.watcher.logger.Debug().Err(err).Msg("Failed to close download watcher")
		}
		<-p.done
	})
}
