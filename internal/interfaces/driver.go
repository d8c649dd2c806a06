// -----------------------------------------------------------------------
// UI Driver Interface - remote UI primitives consumed by the exporter
// -----------------------------------------------------------------------

package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/o1export/internal/models"
)

// UIDriver drives the single remote UI session.
// Selectors are search queries (XPath or CSS) taken from configuration.
// Every wait returns an error when the condition is not met within timeout;
// transient lookup failures (missing, stale or hidden nodes) are polled through
// until then.
type UIDriver interface {
	Navigate(ctx context.Context, url string) error
	Title(ctx context.Context) (string, error)
	Reload(ctx context.Context) error

	WaitPresent(ctx context.Context, selector string, timeout time.Duration) error
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	// Probe reports whether selector becomes present within timeout; absence is not an error
	Probe(ctx context.Context, selector string, timeout time.Duration) (bool, error)

	Click(ctx context.Context, selector string, timeout time.Duration) error
	// ClickNth clicks the index-th node matching selector
	ClickNth(ctx context.Context, selector string, index int, timeout time.Duration) error
	SendKeys(ctx context.Context, selector, text string, timeout time.Duration) error

	Text(ctx context.Context, selector string, timeout time.Duration) (string, error)
	Attribute(ctx context.Context, selector, name string, timeout time.Duration) (string, error)
	// Texts waits for at least one match and returns the text of every match
	Texts(ctx context.Context, selector string, timeout time.Duration) ([]string, error)
	// Count returns the number of nodes currently matching selector without waiting
	Count(ctx context.Context, selector string) (int, error)

	Cookies(ctx context.Context) ([]*models.Cookie, error)
	SetCookies(ctx context.Context, cookies []*models.Cookie) error
	ClearCookies(ctx context.Context) error

	Close() error
}
