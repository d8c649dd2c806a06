package sessions

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/o1export/internal/common"
	"github.com/ternarybob/o1export/internal/interfaces"
	"github.com/ternarybob/o1export/internal/models"
)

// Manager establishes the authenticated UI session and keeps it persisted
type Manager struct {
	driver      interfaces.UIDriver
	store       interfaces.SessionStore
	login       common.LoginConfig
	selectors   common.SelectorsConfig
	timeouts    common.TimeoutsConfig
	exempt      string
	maxRetry    int
	logger      arbor.ILogger
	now         func() time.Time
	established bool
}

// Compile-time interface assertion
var _ interfaces.SessionManager = (*Manager)(nil)

// NewManager creates a session manager driving the login flow through driver
func NewManager(driver interfaces.UIDriver, store interfaces.SessionStore, config *common.Config, logger arbor.ILogger) *Manager {
	return &Manager{
		driver:    driver,
		store:     store,
		login:     config.Login,
		selectors: config.Selectors,
		timeouts:  config.Timeouts,
		exempt:    config.Session.ExemptCookie,
		maxRetry:  config.Export.MaxRetry,
		logger:    logger,
		now:       time.Now,
	}
}

// Established reports whether a session was adopted or created in this process
func (m *Manager) Established() bool {
	return m.established
}

// Load reads the persisted session
func (m *Manager) Load(ctx context.Context) (*models.Session, error) {
	m.logger.Debug().Str("path", m.store.Path()).Msg("Reading session")

	session, err := m.store.Load(ctx)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSessionMissing, m.store.Path())
		}
		return nil, err
	}
	return session, nil
}

// Validate fails when any cookie with an expiry has expired, except the exempt cookie
func (m *Manager) Validate(session *models.Session) error {
	now := m.now()
	for _, cookie := range session.Cookies {
		if cookie == nil || cookie.Name == m.exempt {
			continue
		}
		if cookie.ExpiredAt(now) {
			return fmt.Errorf("%w: expired cookie %s (expiry %d, now %d)",
				ErrSessionInvalid, cookie.Name, *cookie.Expiry, now.Unix())
		}
	}
	m.logger.Info().Int("cookies", len(session.Cookies)).Msg("Session is valid")
	return nil
}

// Apply adopts session in the browser: navigate to the origin, clear cookies, set cookies, reload
func (m *Manager) Apply(ctx context.Context, session *models.Session) error {
	m.logger.Debug().Msg("Loading session into browser")

	if err := m.driver.Navigate(ctx, m.login.HomeURL); err != nil {
		return fmt.Errorf("failed to open session origin: %w", err)
	}
	if err := m.driver.ClearCookies(ctx); err != nil {
		return fmt.Errorf("failed to clear browser cookies: %w", err)
	}
	if err := m.driver.SetCookies(ctx, session.Cookies); err != nil {
		return fmt.Errorf("failed to set browser cookies: %w", err)
	}
	if err := m.driver.Reload(ctx); err != nil {
		return fmt.Errorf("failed to reload session origin: %w", err)
	}

	m.logger.Info().Msg("Session loaded")
	return nil
}

// InteractiveLogin drives the identity, credential and second-factor steps once.
// Any step timing out is reported as ErrLoginFailed; the caller owns retries.
func (m *Manager) InteractiveLogin(ctx context.Context) (*models.Session, error) {
	m.logger.Info().Msg("Logging in")

	defaultWait := m.timeouts.Default.Duration
	elementWait := m.timeouts.Element.Duration

	steps := []struct {
		name string
		run  func() error
	}{
		{"open login page", func() error { return m.driver.Navigate(ctx, m.login.URL) }},
		{"identity field", func() error { return m.driver.WaitPresent(ctx, m.selectors.EmailField, defaultWait) }},
		{"type identity", func() error {
			return m.driver.SendKeys(ctx, m.selectors.EmailField, m.login.Username, elementWait)
		}},
		{"next button", func() error { return m.driver.Click(ctx, m.selectors.SignInButton, elementWait) }},
		{"credential field", func() error { return m.driver.WaitPresent(ctx, m.selectors.PasswordField, elementWait) }},
		{"type credential", func() error {
			return m.driver.SendKeys(ctx, m.selectors.PasswordField, m.login.Password, elementWait)
		}},
		{"sign in button", func() error { return m.driver.Click(ctx, m.selectors.SignInButton, elementWait) }},
		{"second factor prompt", func() error {
			if err := m.driver.WaitPresent(ctx, m.selectors.SecondFactor, defaultWait); err != nil {
				return err
			}
			m.logger.Error().
				Dur("timeout", m.timeouts.SecondFactor.Duration).
				Msg("Second factor authentication required, approve the sign-in request")
			return nil
		}},
		{"second factor approval", func() error {
			return m.driver.WaitPresent(ctx, m.selectors.LoggedInMarker, m.timeouts.SecondFactor.Duration)
		}},
		{"open home page", func() error { return m.driver.Navigate(ctx, m.login.HomeURL) }},
		{"home page", func() error { return m.driver.WaitPresent(ctx, m.selectors.HomeMarker, defaultWait) }},
	}

	for _, step := range steps {
		if err := step.run(); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %s: %v", ErrLoginFailed, step.name, err)
		}
	}

	session, err := m.capture(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}

	m.logger.Info().Int("cookies", len(session.Cookies)).Msg("Login successful")
	return session, nil
}

// Establish adopts the persisted session or logs in when it is missing or invalid
func (m *Manager) Establish(ctx context.Context) error {
	session, err := m.Load(ctx)
	if err == nil {
		err = m.Validate(session)
	}

	if err != nil {
		m.logger.Warn().Err(err).Msg("Persisted session unusable, logging in")
		return m.Reauthenticate(ctx)
	}

	if err := m.Apply(ctx, session); err != nil {
		return err
	}
	m.established = true
	return nil
}

// Reauthenticate runs the login loop with a clean browser session and persists the result
func (m *Manager) Reauthenticate(ctx context.Context) error {
	var lastErr error
	for attempt := 0; attempt <= m.maxRetry; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if attempt > 0 {
			m.logger.Warn().
				Int("attempt", attempt).
				Int("max_retry", m.maxRetry).
				Msg("Retrying login")
		}

		if err := m.driver.ClearCookies(ctx); err != nil {
			m.logger.Warn().Err(err).Msg("Failed to clear browser cookies before login")
		}

		session, err := m.InteractiveLogin(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			m.logger.Warn().Err(err).Msg("Login attempt failed")
			continue
		}

		m.established = true
		if err := m.save(ctx, session); err != nil {
			return err
		}
		return nil
	}
	return fmt.Errorf("%d login attempts exhausted: %w", m.maxRetry+1, lastErr)
}

// Persist captures the browser cookies and saves them
func (m *Manager) Persist(ctx context.Context) error {
	session, err := m.capture(ctx)
	if err != nil {
		return err
	}
	return m.save(ctx, session)
}

func (m *Manager) capture(ctx context.Context) (*models.Session, error) {
	cookies, err := m.driver.Cookies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to capture browser cookies: %w", err)
	}
	return &models.Session{Cookies: cookies, SavedAt: m.now().Unix()}, nil
}

func (m *Manager) save(ctx context.Context, session *models.Session) error {
	if err := m.store.Save(ctx, session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	m.logger.Info().
		Str("path", m.store.Path()).
		Int("cookies", len(session.Cookies)).
		Msg("Session saved")
	return nil
}
