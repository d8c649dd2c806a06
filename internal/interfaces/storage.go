package interfaces

import (
	"context"

	"github.com/ternarybob/o1export/internal/models"
)

// RunStorage persists the history of export runs
type RunStorage interface {
	SaveRun(ctx context.Context, run *models.RunRecord) error
	GetRun(ctx context.Context, id string) (*models.RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]*models.RunRecord, error)
	Close() error
}
