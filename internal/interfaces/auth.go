package interfaces

import (
	"context"

	"github.com/ternarybob/o1export/internal/models"
)

// SessionStore persists the authenticated browser session between runs
type SessionStore interface {
	// Load returns the persisted session, or an error wrapping os.ErrNotExist when none is stored
	Load(ctx context.Context) (*models.Session, error)
	Save(ctx context.Context, session *models.Session) error
	Path() string
}

// SessionManager establishes and maintains the authenticated UI session
type SessionManager interface {
	Establish(ctx context.Context) error
	Reauthenticate(ctx context.Context) error
	Persist(ctx context.Context) error
}
