package exporter

import (
	"context"
	"fmt"
)

// exportTabular exports the form type to a spreadsheet and moves it into the form directory
func (e *Exporter) exportTabular(ctx context.Context, unit exportUnit) error {
	record := e.log.Form(unit.project, unit.formType)
	fileName := fmt.Sprintf(e.export.TabularFileName, unit.formType)

	result, err := Retry(ctx, e.export.MaxRetry, e.logger, "excel "+unit.formType, func(ctx context.Context) Outcome {
		if err := e.driver.WaitPresent(ctx, e.sel.TableRow, e.timeouts.Default.Duration); err != nil {
			return e.attemptOutcome(ctx, stepErr(Step{"Table Row", "tr"}, err))
		}
		e.logger.Info().Str("project", unit.project).Str("form", unit.formType).Msg("Export Excel")

		pending, err := e.watcher.Begin(fileName)
		if err != nil {
			return e.attemptOutcome(ctx, err)
		}
		defer pending.Close()

		if err := e.triggerTabular(ctx, unit.archived); err != nil {
			return e.attemptOutcome(ctx, err)
		}

		outcome := pending.Wait(ctx, e.downloads.Timeout.Duration)
		if err := ctx.Err(); err != nil {
			return Fatal(err)
		}
		if !outcome.Completed {
			return Retryable(fmt.Sprintf("%v: %s", ErrDownloadFailed, fileName))
		}

		if _, err := moveFile(e.watcher.StagingDir(), unit.dir, outcome.FileName(fileName)); err != nil {
			return e.attemptOutcome(ctx, err)
		}
		return Ok()
	}, e.refreshExport(e.sel.TableRow))
	if err != nil {
		return err
	}

	if !result.OK {
		e.logger.Warn().Str("form", unit.formType).Msg("Export Excel failed, skipping to Export PDF")
		record.ExcelExportError = result.Reason
		return nil
	}
	record.ExcelExported = true
	return nil
}

// triggerTabular clicks through the export-to-spreadsheet path
func (e *Exporter) triggerTabular(ctx context.Context, archived bool) error {
	wait := e.timeouts.Element.Duration
	exportStep := Step{"Export all data to Excel", "btn"}

	if archived {
		if err := e.driver.Click(ctx, e.sel.ArchiveExportExcel, wait); err != nil {
			return stepErr(exportStep, err)
		}
		e.logger.Debug().Msg(exportStep.found())
		return nil
	}

	menuStep := Step{"Menu", "btn"}
	if err := e.driver.Click(ctx, e.sel.MenuButton, wait); err != nil {
		return stepErr(menuStep, err)
	}
	e.logger.Debug().Msg(menuStep.found())

	if err := e.driver.Click(ctx, e.sel.ExportExcel, wait); err != nil {
		return stepErr(exportStep, err)
	}
	e.logger.Debug().Msg(exportStep.found())
	return nil
}
