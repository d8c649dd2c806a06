package exporter

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

const formNotFound = "Form Not Found!"

// exportFormTypes exports every form type of project in list order.
// Returned errors fail the project attempt; per-form failures are recorded instead.
func (e *Exporter) exportFormTypes(ctx context.Context, project, projectDir string, formTypes []string) error {
	for _, formType := range formTypes {
		if formType == "" || e.skip[formType] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		e.logger.Info().Str("project", project).Str("form", formType).Msg("Form type")
		record := e.log.InitForm(project, formType)

		result, err := Retry(ctx, e.export.MaxRetry, e.logger, "form "+formType, func(ctx context.Context) Outcome {
			return e.attemptOutcome(ctx, e.locateFormType(ctx, formType))
		}, e.refreshFormTypes)
		if err != nil {
			return err
		}
		if !result.OK {
			e.logger.Warn().
				Str("form", formType).
				Int("attempts", result.Attempts).
				Msg("Form type not found, skipping")
			record.FormsExportError = formNotFound
			continue
		}

		archived, err := e.probe(ctx, e.sel.ArchivedContainer)
		if err != nil {
			return err
		}
		if archived {
			e.logger.Info().Str("form", formType).Msg("Form type is archived")
		}
		empty, err := e.probe(ctx, e.sel.EmptyContainer)
		if err != nil {
			return err
		}
		if empty {
			e.logger.Info().Str("form", formType).Msg("No forms in form type")
			continue
		}

		formDir := filepath.Join(projectDir, formType)
		if err := ensureDir(formDir); err != nil {
			return err
		}

		unit := exportUnit{
			project:  project,
			formType: formType,
			dir:      formDir,
			archived: archived,
		}
		if err := e.exportTabular(ctx, unit); err != nil {
			return err
		}
		if err := e.exportDocuments(ctx, unit); err != nil {
			return err
		}
	}
	return nil
}

// exportUnit identifies the form type being exported
type exportUnit struct {
	project  string
	formType string
	dir      string
	archived bool
}

// locateFormType re-reads the form type list, clicks formType and waits for its heading
func (e *Exporter) locateFormType(ctx context.Context, formType string) error {
	names, err := e.formTypeNames(ctx)
	if err != nil {
		return err
	}

	index := -1
	for i, name := range names {
		if name == formType {
			index = i
			break
		}
	}
	if index < 0 {
		return stepErr(Step{formType, "form type"}, fmt.Errorf("not in list of %d form types", len(names)))
	}

	if err := e.driver.ClickNth(ctx, e.sel.FormTypes, index, e.timeouts.Default.Duration); err != nil {
		return stepErr(Step{formType, "form type"}, err)
	}

	heading := fmt.Sprintf(e.sel.FormHeading, xpathLiteral(formType))
	if err := e.driver.WaitPresent(ctx, heading, e.timeouts.Default.Duration); err != nil {
		return stepErr(Step{formType, "heading"}, err)
	}
	return nil
}

// xpathLiteral quotes s as an XPath string literal. XPath has no escapes, so a
// value holding both quote kinds is built with concat().
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, 2*len(parts)-1)
	for i, part := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		if part != "" {
			quoted = append(quoted, "'"+part+"'")
		}
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}

// refreshFormTypes reloads the page and reopens the work tab. A lost session or
// cancellation is returned; other failures are only logged.
func (e *Exporter) refreshFormTypes(ctx context.Context) error {
	if err := e.reload(ctx); err != nil {
		return err
	}
	if err := e.clickWorkTab(ctx); err != nil {
		return e.refreshFailed(ctx, err)
	}
	if err := e.driver.WaitPresent(ctx, e.sel.FormNavBar, e.timeouts.Default.Duration); err != nil {
		return e.refreshFailed(ctx, err)
	}
	e.logger.Debug().Msg("Page refreshed")
	return nil
}

// refreshExport reloads the page and waits for selector. A lost session or
// cancellation is returned; other failures are only logged.
func (e *Exporter) refreshExport(selector string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if err := e.reload(ctx); err != nil {
			return err
		}
		if err := e.driver.WaitPresent(ctx, selector, e.timeouts.Default.Duration); err != nil {
			return e.refreshFailed(ctx, err)
		}
		e.logger.Debug().Msg("Page refreshed")
		return nil
	}
}

// reload refreshes the page and checks the session is still ours
func (e *Exporter) reload(ctx context.Context) error {
	e.logger.Debug().Msg("Refreshing page")
	if err := e.driver.Reload(ctx); err != nil {
		e.logger.Warn().Err(err).Msg("Page refresh failed")
		return ctx.Err()
	}
	if err := sleep(ctx, e.timeouts.Refresh.Duration); err != nil {
		return err
	}
	return e.checkSession(ctx)
}

func (e *Exporter) refreshFailed(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	e.logger.Warn().Err(err).Msg("Page refresh failed")
	return nil
}

// probe reports whether selector appears within the element wait; absence is false.
// Only cancellation is returned as an error.
func (e *Exporter) probe(ctx context.Context, selector string) (bool, error) {
	found, err := e.driver.Probe(ctx, selector, e.timeouts.Element.Duration)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		e.logger.Debug().Err(err).Str("selector", selector).Msg("Probe failed, treating as absent")
		return false, nil
	}
	return found, nil
}
