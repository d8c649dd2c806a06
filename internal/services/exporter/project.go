package exporter

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// exportProject runs the whole-project retry loop for endpoint
func (e *Exporter) exportProject(ctx context.Context, endpoint string) error {
	name := ""

	result, err := Retry(ctx, e.export.MaxRetry, e.logger, "project "+endpoint, func(ctx context.Context) Outcome {
		projectName, err := e.openProject(ctx, endpoint)
		if err != nil {
			return e.attemptOutcome(ctx, err)
		}
		name = e.recordKey(projectName, endpoint)
		e.logger.Info().Str("project", name).Msg("Project opened")

		e.log.InitProject(name)
		projectDir := filepath.Join(e.export.OutputDir, projectName)
		if err := ensureDir(projectDir); err != nil {
			return e.attemptOutcome(ctx, err)
		}

		formTypes, err := e.readFormTypes(ctx)
		if err != nil {
			return e.attemptOutcome(ctx, err)
		}

		if err := e.exportFormTypes(ctx, name, projectDir, formTypes); err != nil {
			return e.attemptOutcome(ctx, err)
		}
		return Ok()
	}, nil)
	if err != nil {
		return err
	}

	key := name
	if key == "" {
		key = endpoint
	}
	record := e.log.Project(key)

	if !result.OK {
		record.ProjectError = result.Reason
		e.logger.Warn().
			Str("project", key).
			Int("attempts", result.Attempts).
			Msg("Project export failed, skipping to next project")
		return nil
	}

	record.ExportDone = true
	e.logger.Info().Str("project", key).Msg("All data exported")
	return nil
}

// recordKey returns the export log key of project name opened from endpoint.
// A name already recorded for another endpoint is qualified with the endpoint.
func (e *Exporter) recordKey(name, endpoint string) string {
	owner, ok := e.names[name]
	if !ok {
		e.names[name] = endpoint
		return name
	}
	if owner == endpoint {
		return name
	}
	key := fmt.Sprintf("%s (%s)", name, endpoint)
	e.logger.Warn().
		Str("project", name).
		Str("url", endpoint).
		Str("recorded_for", owner).
		Str("key", key).
		Msg("Duplicate project name")
	return key
}

// openProject navigates to endpoint and returns the project display name
func (e *Exporter) openProject(ctx context.Context, endpoint string) (string, error) {
	if err := e.driver.Navigate(ctx, endpoint); err != nil {
		return "", err
	}

	if err := e.checkSession(ctx); err != nil {
		return "", err
	}

	if err := e.driver.WaitPresent(ctx, e.sel.ProjectLanding, e.timeouts.Default.Duration); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %s did not show %s: %v", ErrNavigation, endpoint, e.sel.ProjectLanding, err)
	}
	e.logger.Debug().Str("url", endpoint).Msg("Navigation OK")

	name, err := e.driver.Attribute(ctx, e.sel.ProjectName, e.sel.ProjectNameAttr, e.timeouts.Element.Duration)
	if err != nil {
		return "", stepErr(Step{"Project Name", "div"}, err)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", stepErr(Step{"Project Name", "div"}, fmt.Errorf("empty project name"))
	}
	return name, nil
}

// checkSession fails with ErrSessionConflict when the page shows the account
// chooser. An unreadable title is not a conflict.
func (e *Exporter) checkSession(ctx context.Context) error {
	if e.export.ConflictTitle == "" {
		return nil
	}
	title, err := e.driver.Title(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.logger.Debug().Err(err).Msg("Page title unavailable")
		return nil
	}
	if title == e.export.ConflictTitle {
		e.logger.Warn().Str("title", title).Msg("Session conflict, re-authentication required")
		return fmt.Errorf("%w: page title %q", ErrSessionConflict, title)
	}
	return nil
}

// clickWorkTab opens the work tab and waits for its container
func (e *Exporter) clickWorkTab(ctx context.Context) error {
	if err := e.driver.Click(ctx, e.sel.WorkTab, e.timeouts.Default.Duration); err != nil {
		return stepErr(Step{"Work", "tab"}, err)
	}
	if err := e.driver.WaitPresent(ctx, e.sel.WorkContainer, e.timeouts.Default.Duration); err != nil {
		return stepErr(Step{"Work", "container"}, err)
	}
	return nil
}

// readFormTypes opens the work tab and returns the trimmed form type names
func (e *Exporter) readFormTypes(ctx context.Context) ([]string, error) {
	if err := e.clickWorkTab(ctx); err != nil {
		return nil, err
	}
	names, err := e.formTypeNames(ctx)
	if err != nil {
		return nil, err
	}
	e.logger.Debug().Strs("form_types", names).Msg("Form types found")
	return names, nil
}

// formTypeNames re-reads the form type navigation list
func (e *Exporter) formTypeNames(ctx context.Context) ([]string, error) {
	if err := e.driver.WaitPresent(ctx, e.sel.FormNavBar, e.timeouts.Default.Duration); err != nil {
		return nil, stepErr(Step{"Form types", "nav"}, err)
	}
	texts, err := e.driver.Texts(ctx, e.sel.FormTypes, e.timeouts.Default.Duration)
	if err != nil {
		return nil, stepErr(Step{"Form types", "li"}, err)
	}
	names := make([]string, len(texts))
	for i, text := range texts {
		names[i] = strings.TrimSpace(text)
	}
	return names, nil
}
