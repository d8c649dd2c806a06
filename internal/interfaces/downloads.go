package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/o1export/internal/models"
)

// DownloadWatcher observes the staging directory for produced artifacts
type DownloadWatcher interface {
	// Begin starts observing for expectedFileName. Call it before triggering the download.
	Begin(expectedFileName string) (PendingDownload, error)
	StagingDir() string
}

// PendingDownload is one in-flight observation started by Begin
type PendingDownload interface {
	// Wait blocks until the artifact arrives, timeout elapses or ctx is done.
	// The observation is torn down before Wait returns.
	Wait(ctx context.Context, timeout time.Duration) models.DownloadOutcome
	// Close tears the observation down; safe to call more than once
	Close()
}
