package exporter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ternarybob/o1export/internal/models"
)

// exportDocuments exports the form type's PDFs page by page
func (e *Exporter) exportDocuments(ctx context.Context, unit exportUnit) error {
	record := e.log.Form(unit.project, unit.formType)

	total, pages, err := e.countItems(ctx)
	if err != nil {
		return err
	}
	record.TotalForms = total
	e.logger.Debug().
		Str("project", unit.project).
		Str("form", unit.formType).
		Int("total_forms", total).
		Int("total_pages", pages).
		Msg("Export PDF")

	if pages > 1 {
		for page := 1; page <= pages; page++ {
			if err := e.exportDocumentPage(ctx, unit, record, page, pages); err != nil {
				return err
			}
		}
	} else {
		result, err := Retry(ctx, e.export.MaxRetry, e.logger, "pdf "+unit.formType, func(ctx context.Context) Outcome {
			return e.exportDocumentArchive(ctx, unit, record, 1, 1)
		}, e.refreshExport(e.sel.TableRows))
		if err != nil {
			return err
		}
		if result.OK {
			record.TotalExportedForms += total
		} else {
			record.PdfsExportError = append(record.PdfsExportError, models.PageError{Page: 1, Error: result.Reason})
		}
	}

	record.PdfsExported = len(record.PdfsExportError) == 0
	return nil
}

// countItems reads the total item count and page count.
// An unreadable total falls back to the visible rows on a single page.
func (e *Exporter) countItems(ctx context.Context) (int, int, error) {
	label, err := e.driver.Text(ctx, e.sel.TotalFormsItem, e.timeouts.Short.Duration)
	if err == nil {
		total, parseErr := ParseTotalItems(label)
		if parseErr == nil {
			return total, PageCount(total, e.export.PageSize), nil
		}
		err = parseErr
	}
	if ctx.Err() != nil {
		return 0, 0, ctx.Err()
	}
	e.logger.Debug().Err(err).Msg("Total forms unavailable, counting visible rows")

	rows, err := e.driver.Count(ctx, e.sel.TableRows)
	if err != nil {
		if ctx.Err() != nil {
			return 0, 0, ctx.Err()
		}
		e.logger.Warn().Err(err).Msg("Failed to count table rows")
		return 0, 1, nil
	}
	return rows, 1, nil
}

// exportDocumentPage retries one page of a multi-page export and records its outcome
func (e *Exporter) exportDocumentPage(ctx context.Context, unit exportUnit, record *models.FormRecord, page, pages int) error {
	e.logger.Debug().
		Str("project", unit.project).
		Str("form", unit.formType).
		Int("page", page).
		Int("total_pages", pages).
		Msg("Export PDF page")

	rows := 0
	unitName := fmt.Sprintf("pdf %s page %d/%d", unit.formType, page, pages)
	result, err := Retry(ctx, e.export.MaxRetry, e.logger, unitName, func(ctx context.Context) Outcome {
		if err := e.goToPage(ctx, page, pages); err != nil {
			return e.attemptOutcome(ctx, err)
		}

		count, err := e.driver.Count(ctx, e.sel.TableRows)
		if err != nil {
			return e.attemptOutcome(ctx, stepErr(Step{"Table Rows", "tr"}, err))
		}
		rows = count

		return e.exportDocumentArchive(ctx, unit, record, page, pages)
	}, e.refreshExport(e.sel.TableRows))
	if err != nil {
		return err
	}

	if result.OK {
		record.TotalExportedForms += rows
		return nil
	}

	e.logger.Warn().
		Str("form", unit.formType).
		Int("page", page).
		Msg("Export PDF failed, skipping to next page")
	record.PdfsExportError = append(record.PdfsExportError, models.PageError{Page: page, Error: result.Reason})
	return nil
}

// goToPage advances with "next" until the active page is page.
// Advancing is bounded by the page count; landing past page fails the attempt.
func (e *Exporter) goToPage(ctx context.Context, page, pages int) error {
	activeStep := Step{"Active Page", "span"}

	for advances := 0; ; advances++ {
		label, err := e.driver.Text(ctx, e.sel.ActivePageItem, e.timeouts.Element.Duration)
		if err != nil {
			return stepErr(activeStep, err)
		}
		active, err := parsePageNumber(label)
		if err != nil {
			return stepErr(activeStep, err)
		}
		e.logger.Debug().Int("current_page", active).Int("goto_page", page).Msg("Pagination")

		if active == page {
			return nil
		}
		if active > page {
			return stepErr(activeStep, fmt.Errorf("active page %d is past page %d", active, page))
		}
		if advances >= pages {
			return stepErr(activeStep, fmt.Errorf("page %d not reached after %d advances", page, advances))
		}

		if err := e.nextPage(ctx); err != nil {
			return err
		}
	}
}

func (e *Exporter) nextPage(ctx context.Context) error {
	nextStep := Step{"Next Page", "btn"}
	if err := e.driver.WaitPresent(ctx, e.sel.NextPageItem, e.timeouts.Element.Duration); err != nil {
		return stepErr(nextStep, err)
	}
	if err := sleep(ctx, e.timeouts.ShortDelay.Duration); err != nil {
		return err
	}
	if err := e.driver.Click(ctx, e.sel.NextPageItem, e.timeouts.Element.Duration); err != nil {
		return stepErr(nextStep, err)
	}
	e.logger.Debug().Msg(nextStep.found())
	return nil
}

// exportDocumentArchive selects every row of the current page, exports them to PDF and
// unpacks the resulting archive into the form directory
func (e *Exporter) exportDocumentArchive(ctx context.Context, unit exportUnit, record *models.FormRecord, page, pages int) Outcome {
	if err := e.driver.WaitPresent(ctx, e.sel.TableRow, e.timeouts.Default.Duration); err != nil {
		return e.attemptOutcome(ctx, stepErr(Step{"Table Row", "tr"}, err))
	}
	e.logger.Info().
		Str("project", unit.project).
		Str("form", unit.formType).
		Int("page", page).
		Int("total_pages", pages).
		Msg("Export PDF")

	fileName := e.now().Format(e.export.DocumentFileLayout)
	pending, err := e.watcher.Begin(fileName)
	if err != nil {
		return e.attemptOutcome(ctx, err)
	}
	defer pending.Close()

	if err := e.triggerDocuments(ctx, unit.archived); err != nil {
		return e.attemptOutcome(ctx, err)
	}

	outcome := pending.Wait(ctx, e.downloads.Timeout.Duration)
	if err := ctx.Err(); err != nil {
		return Fatal(err)
	}
	if !outcome.Completed {
		return Retryable(fmt.Sprintf("%v: %s", ErrDownloadFailed, fileName))
	}

	stats, err := e.relocateDocuments(ctx, unit.dir, outcome.FileName(fileName))
	if err != nil {
		return e.attemptOutcome(ctx, err)
	}
	record.ExtractedDocuments += stats.documents
	record.ExtractedPages += stats.pages
	record.UnreadableDocuments += stats.unreadable
	return Ok()
}

// triggerDocuments clicks select-all, the export-to-PDF path, the modal options and Export
func (e *Exporter) triggerDocuments(ctx context.Context, archived bool) error {
	wait := e.timeouts.Element.Duration

	selectAll := Step{"Select all", "checkbox"}
	if err := e.driver.Click(ctx, e.sel.SelectAll, wait); err != nil {
		return stepErr(selectAll, err)
	}
	e.logger.Debug().Msg(selectAll.found())
	if err := sleep(ctx, e.timeouts.ShortDelay.Duration); err != nil {
		return err
	}

	exportStep := Step{"Export to PDF", "btn"}
	if archived {
		if err := e.driver.Click(ctx, e.sel.ArchiveExportPDF, wait); err != nil {
			return stepErr(exportStep, err)
		}
		e.logger.Debug().Msg(exportStep.found())
	} else if err := e.openExportMenu(ctx); err != nil {
		return err
	}

	modal := Step{"Export modal", "div"}
	if err := e.driver.WaitPresent(ctx, e.sel.ExportModal, e.timeouts.Menu.Duration); err != nil {
		return stepErr(modal, err)
	}

	for _, option := range e.sel.ExportOptions {
		optionStep := Step{option.Name, "checkbox"}
		if err := e.driver.Click(ctx, option.Selector, wait); err != nil {
			return stepErr(optionStep, err)
		}
		e.logger.Debug().Msg(optionStep.found())
	}

	exportButton := Step{"Export", "btn"}
	if err := e.driver.Click(ctx, e.sel.ExportButton, wait); err != nil {
		return stepErr(exportButton, err)
	}
	e.logger.Debug().Msg(exportButton.found())
	return nil
}

// openExportMenu opens the row menu and clicks export-to-PDF, retrying while the
// popover does not show up
func (e *Exporter) openExportMenu(ctx context.Context) error {
	wait := e.timeouts.Element.Duration
	attempts := e.export.MenuAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = e.clickExportMenu(ctx, wait)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.logger.Warn().Err(lastErr).Int("attempt", attempt).Msg("Export menu not ready")
	}
	return lastErr
}

func (e *Exporter) clickExportMenu(ctx context.Context, wait time.Duration) error {
	menu := Step{"Menu", "btn"}
	if err := e.driver.Click(ctx, e.sel.MenuButton, wait); err != nil {
		return stepErr(menu, err)
	}
	e.logger.Debug().Msg(menu.found())
	if err := sleep(ctx, e.timeouts.ShortDelay.Duration); err != nil {
		return err
	}

	popover := Step{"Menu popover", "div"}
	if err := e.driver.WaitVisible(ctx, e.sel.MenuPopover, wait); err != nil {
		return stepErr(popover, err)
	}

	exportStep := Step{"Export to PDF", "btn"}
	if err := e.driver.Click(ctx, e.sel.ExportPDF, wait); err != nil {
		return stepErr(exportStep, err)
	}
	e.logger.Debug().Msg(exportStep.found())
	return nil
}

// documentStats counts the documents of one relocated artifact
type documentStats struct {
	documents  int
	pages      int
	unreadable int
}

// relocateDocuments moves the artifact into dir. A zip archive is extracted there and
// removed. The relocated PDF documents are inventoried.
func (e *Exporter) relocateDocuments(ctx context.Context, dir, fileName string) (documentStats, error) {
	moved, err := moveFile(e.watcher.StagingDir(), dir, fileName)
	if err != nil {
		return documentStats{}, err
	}
	e.logger.Debug().Str("file", fileName).Str("dir", dir).Msg("Moved")

	var paths []string
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".zip":
		paths, err = extractZip(moved, dir)
		if err != nil {
			return documentStats{}, err
		}
		if err := os.Remove(moved); err != nil {
			e.logger.Warn().Err(err).Str("file", moved).Msg("Failed to delete extracted archive")
		}
	case ".pdf":
		paths = []string{moved}
	default:
		return documentStats{}, nil
	}

	return e.inventoryStats(ctx, paths), nil
}

// inventoryStats counts the PDFs in paths with their pages when an inventory is set
func (e *Exporter) inventoryStats(ctx context.Context, paths []string) documentStats {
	if e.inventory == nil {
		return documentStats{documents: countPDFs(paths)}
	}

	var stats documentStats
	for _, doc := range e.inventory.Inspect(ctx, paths) {
		stats.documents++
		stats.pages += doc.PageCount
		if !doc.Readable {
			stats.unreadable++
		}
	}
	if stats.unreadable > 0 {
		e.logger.Warn().
			Int("documents", stats.documents).
			Int("unreadable", stats.unreadable).
			Msg("Unreadable documents extracted")
	}
	e.logger.Debug().
		Int("documents", stats.documents).
		Int("pages", stats.pages).
		Msg("Extracted documents")
	return stats
}

func countPDFs(paths []string) int {
	count := 0
	for _, path := range paths {
		if strings.EqualFold(filepath.Ext(path), ".pdf") {
			count++
		}
	}
	return count
}
