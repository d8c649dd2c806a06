package driver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/o1export/internal/interfaces"
	"github.com/ternarybob/o1export/internal/models"
)

// Config holds the allocator and session options of the Chrome driver
type Config struct {
	Headless           bool
	DisableGPU         bool
	NoSandbox          bool
	WindowWidth        int
	WindowHeight       int
	UserAgent          string
	DownloadDir        string        // Absolute staging directory for downloads
	StartupTimeout     time.Duration // Startup test ceiling
	NavigationInterval time.Duration // Minimum gap between navigations, 0 = unlimited
}

// ChromeDriver drives one Chrome tab through chromedp.
// It is not safe for concurrent use: the remote UI session is single-seat.
type ChromeDriver struct {
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	allocatorCancel context.CancelFunc
	limiter         *rate.Limiter
	logger          arbor.ILogger
	closeOnce       sync.Once
}

// Compile-time interface assertion
var _ interfaces.UIDriver = (*ChromeDriver)(nil)

// NewChromeDriver starts Chrome, runs a startup test and routes downloads to config.DownloadDir
func NewChromeDriver(config Config, logger arbor.ILogger) (*ChromeDriver, error) {
	startTime := time.Now()

	if config.WindowWidth <= 0 || config.WindowHeight <= 0 {
		config.WindowWidth, config.WindowHeight = 1920, 1200
	}

	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", config.Headless),
		chromedp.Flag("disable-gpu", config.DisableGPU),
		chromedp.Flag("no-sandbox", config.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("use-fake-ui-for-media-stream", true),
		chromedp.Flag("disable-notifications", true),
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-crash-reporter", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.WindowSize(config.WindowWidth, config.WindowHeight),
	)
	if config.UserAgent != "" {
		allocatorOpts = append(allocatorOpts, chromedp.UserAgent(config.UserAgent))
	}

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), allocatorOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	d := &ChromeDriver{
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		allocatorCancel: allocatorCancel,
		limiter:         newLimiter(config.NavigationInterval),
		logger:          logger,
	}

	testTimeout := config.StartupTimeout
	if testTimeout <= 0 {
		testTimeout = 30 * time.Second
	}
	testCtx, testCancel := context.WithTimeout(browserCtx, testTimeout)
	defer testCancel()

	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		d.Close()
		return nil, fmt.Errorf("browser failed startup test: %w", err)
	}

	if config.DownloadDir != "" {
		err := chromedp.Run(testCtx, cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(config.DownloadDir))
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("failed to set download directory: %w", err)
		}
	}

	if err := chromedp.Run(testCtx, network.Enable()); err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to enable network domain: %w", err)
	}

	logger.Info().
		Bool("headless", config.Headless).
		Str("download_dir", config.DownloadDir).
		Dur("startup_time", time.Since(startTime)).
		Msg("Chrome driver started")

	return d, nil
}

func newLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// run executes actions on the tab, bounded by timeout and cancelled with ctx
func (d *ChromeDriver) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	var runCtx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(d.browserCtx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(d.browserCtx)
	}
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		// Caller cancellation wins over the derived timeout
		return ctx.Err()
	}
	return err
}

// Navigate loads url and waits for the document to be ready
func (d *ChromeDriver) Navigate(ctx context.Context, url string) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	d.logger.Debug().Str("url", url).Msg("GET")
	if err := d.run(ctx, 0, chromedp.Navigate(url)); err != nil {
		return uiError("navigate", url, err)
	}
	return nil
}

// Title returns the document title
func (d *ChromeDriver) Title(ctx context.Context) (string, error) {
	var title string
	if err := d.run(ctx, 0, chromedp.Title(&title)); err != nil {
		return "", uiError("title", "", err)
	}
	return title, nil
}

// Reload reloads the current page
func (d *ChromeDriver) Reload(ctx context.Context) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := d.run(ctx, 0, chromedp.Reload()); err != nil {
		return uiError("reload", "", err)
	}
	return nil
}

// WaitPresent waits for selector to be present in the DOM
func (d *ChromeDriver) WaitPresent(ctx context.Context, selector string, timeout time.Duration) error {
	if err := d.run(ctx, timeout, chromedp.WaitReady(selector, chromedp.BySearch)); err != nil {
		return uiError("wait_present", selector, err)
	}
	return nil
}

// WaitVisible waits for selector to be visible
func (d *ChromeDriver) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	if err := d.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.BySearch)); err != nil {
		return uiError("wait_visible", selector, err)
	}
	return nil
}

// Probe reports whether selector appears within timeout
func (d *ChromeDriver) Probe(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	err := d.WaitPresent(ctx, selector, timeout)
	if err == nil {
		return true, nil
	}
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return false, nil
	}
	return false, err
}

// Click waits for selector to be visible and clicks it
func (d *ChromeDriver) Click(ctx context.Context, selector string, timeout time.Duration) error {
	if err := d.run(ctx, timeout, chromedp.Click(selector, chromedp.BySearch, chromedp.NodeVisible)); err != nil {
		return uiError("click", selector, err)
	}
	return nil
}

// ClickNth clicks the index-th node matching selector
func (d *ChromeDriver) ClickNth(ctx context.Context, selector string, index int, timeout time.Duration) error {
	err := d.run(ctx, timeout, chromedp.ActionFunc(func(ctx context.Context) error {
		var nodes []*cdp.Node
		if err := chromedp.Nodes(selector, &nodes, chromedp.BySearch).Do(ctx); err != nil {
			return err
		}
		if index < 0 || index >= len(nodes) {
			return fmt.Errorf("%w: index %d of %d", ErrNodeNotFound, index, len(nodes))
		}
		return chromedp.MouseClickNode(nodes[index]).Do(ctx)
	}))
	if err != nil {
		return uiError("click_nth", selector, err)
	}
	return nil
}

// SendKeys types text into selector
func (d *ChromeDriver) SendKeys(ctx context.Context, selector, text string, timeout time.Duration) error {
	if err := d.run(ctx, timeout, chromedp.SendKeys(selector, text, chromedp.BySearch, chromedp.NodeVisible)); err != nil {
		return uiError("send_keys", selector, err)
	}
	return nil
}

// Text returns the visible text of selector
func (d *ChromeDriver) Text(ctx context.Context, selector string, timeout time.Duration) (string, error) {
	var text string
	if err := d.run(ctx, timeout, chromedp.Text(selector, &text, chromedp.BySearch)); err != nil {
		return "", uiError("text", selector, err)
	}
	return text, nil
}

// Attribute returns the value of attribute name on selector
func (d *ChromeDriver) Attribute(ctx context.Context, selector, name string, timeout time.Duration) (string, error) {
	var value string
	var ok bool
	if err := d.run(ctx, timeout, chromedp.AttributeValue(selector, name, &value, &ok, chromedp.BySearch)); err != nil {
		return "", uiError("attribute", selector, err)
	}
	if !ok {
		return "", uiError("attribute", selector, fmt.Errorf("%w: %s", ErrAttributeMissing, name))
	}
	return value, nil
}

// Texts returns the text of every node matching selector
func (d *ChromeDriver) Texts(ctx context.Context, selector string, timeout time.Duration) ([]string, error) {
	var texts []string
	err := d.run(ctx, timeout, chromedp.ActionFunc(func(ctx context.Context) error {
		var nodes []*cdp.Node
		if err := chromedp.Nodes(selector, &nodes, chromedp.BySearch).Do(ctx); err != nil {
			return err
		}
		texts = make([]string, 0, len(nodes))
		for _, node := range nodes {
			var text string
			if err := chromedp.Text([]cdp.NodeID{node.NodeID}, &text, chromedp.ByNodeID).Do(ctx); err != nil {
				return err
			}
			texts = append(texts, text)
		}
		return nil
	}))
	if err != nil {
		return nil, uiError("texts", selector, err)
	}
	return texts, nil
}

// Count returns how many nodes currently match selector
func (d *ChromeDriver) Count(ctx context.Context, selector string) (int, error) {
	var nodes []*cdp.Node
	if err := d.run(ctx, 0, chromedp.Nodes(selector, &nodes, chromedp.BySearch, chromedp.AtLeast(0))); err != nil {
		return 0, uiError("count", selector, err)
	}
	return len(nodes), nil
}

// Cookies returns every cookie of the browser session
func (d *ChromeDriver) Cookies(ctx context.Context) ([]*models.Cookie, error) {
	var cookies []*network.Cookie
	err := d.run(ctx, 0, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, uiError("get_cookies", "", err)
	}
	return FromNetworkCookies(cookies), nil
}

// SetCookies injects cookies into the browser session
func (d *ChromeDriver) SetCookies(ctx context.Context, cookies []*models.Cookie) error {
	params := ToCookieParams(cookies, time.Now())
	failCount := 0
	err := d.run(ctx, 0, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, cookie := range params {
			if err := network.SetCookie(cookie.Name, cookie.Value).
				WithDomain(cookie.Domain).
				WithPath(cookie.Path).
				WithSecure(cookie.Secure).
				WithHTTPOnly(cookie.HTTPOnly).
				WithSameSite(cookie.SameSite).
				WithExpires(cookie.Expires).
				Do(ctx); err != nil {
				failCount++
				d.logger.Warn().
					Err(err).
					Str("cookie_name", cookie.Name).
					Str("domain", cookie.Domain).
					Msg("Failed to inject cookie into browser")
			}
		}
		return nil
	}))
	if err != nil {
		return uiError("set_cookies", "", err)
	}

	d.logger.Debug().
		Int("cookies_injected", len(params)-failCount).
		Int("cookies_failed", failCount).
		Msg("Session cookies injected into browser")
	return nil
}

// ClearCookies deletes every cookie of the browser session
func (d *ChromeDriver) ClearCookies(ctx context.Context) error {
	if err := d.run(ctx, 0, network.ClearBrowserCookies()); err != nil {
		return uiError("clear_cookies", "", err)
	}
	return nil
}

// Close shuts the browser down; safe to call more than once
func (d *ChromeDriver) Close() error {
	d.closeOnce.Do(func() {
		done := make(chan struct{})
		go func() {
			if err := chromedp.Cancel(d.browserCtx); err != nil {
				d.logger.Debug().Err(err).Msg("Browser cancel returned an error")
			}
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(30 * time.Second):
			d.logger.Warn().Msg("Browser shutdown timed out, forcing cleanup")
		}

		d.browserCancel()
		d.allocatorCancel()
		d.logger.Info().Msg("Chrome driver closed")
	})
	return nil
}
