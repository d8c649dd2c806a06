package exportlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/o1export/internal/common"
	"github.com/ternarybob/o1export/internal/models"
)

// Aggregator accumulates per-project and per-form-type export outcomes for one run.
// It has a single writer and is not safe for concurrent use.
type Aggregator struct {
	log    models.ExportLog
	path   string
	logger arbor.ILogger
}

// NewAggregator creates an aggregator whose flush target is named after startedAt
func NewAggregator(config common.ExportLogConfig, startedAt time.Time, logger arbor.ILogger) *Aggregator {
	fileName := fmt.Sprintf("%s_%s", startedAt.Format(config.TimeLayout), config.Name)
	return &Aggregator{
		log:    make(models.ExportLog),
		path:   filepath.Join(config.Dir, fileName),
		logger: logger,
	}
}

// Path returns the file the log is flushed to
func (a *Aggregator) Path() string {
	return a.path
}

// Log returns the underlying mapping
func (a *Aggregator) Log() models.ExportLog {
	return a.log
}

// InitProject resets the record of project, dropping any form records
func (a *Aggregator) InitProject(project string) *models.ProjectRecord {
	record := models.NewProjectRecord()
	a.log[project] = record
	return record
}

// InitForm resets the record of formType within project
func (a *Aggregator) InitForm(project, formType string) *models.FormRecord {
	record := models.NewFormRecord()
	a.Project(project).Forms[formType] = record
	return record
}

// Project returns the record of project, creating it if absent
func (a *Aggregator) Project(project string) *models.ProjectRecord {
	record, ok := a.log[project]
	if !ok {
		record = a.InitProject(project)
	}
	return record
}

// Form returns the record of formType within project, creating it if absent
func (a *Aggregator) Form(project, formType string) *models.FormRecord {
	record, ok := a.Project(project).Forms[formType]
	if !ok {
		record = a.InitForm(project, formType)
	}
	return record
}

// Flush writes the log as indented JSON and returns the file path.
// An empty log writes nothing and returns an empty path.
func (a *Aggregator) Flush() (string, error) {
	if len(a.log) == 0 {
		a.logger.Info().Msg("No export logs to save")
		return "", nil
	}

	data, err := json.MarshalIndent(a.log, "", "    ")
	if err != nil {
		return "", fmt.Errorf("failed to encode export log: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(a.path), 0755); err != nil {
		return "", fmt.Errorf("failed to create export log directory: %w", err)
	}
	if err := os.WriteFile(a.path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export log: %w", err)
	}

	a.logger.Info().Str("path", a.path).Int("projects", len(a.log)).Msg("Export log saved")
	return a.path, nil
}

// Summary computes the run counters from the current log
func (a *Aggregator) Summary() models.RunSummary {
	var summary models.RunSummary
	for _, project := range a.log {
		summary.Projects++
		if project.ExportDone {
			summary.ProjectsExported++
		}
		for _, form := range project.Forms {
			summary.Forms++
			if form.Failed() {
				summary.FormsFailed++
			}
			summary.PageErrors += len(form.PdfsExportError)
			summary.Documents += form.ExtractedDocuments
			summary.DocumentPages += form.ExtractedPages
			summary.UnreadableDocuments += form.UnreadableDocuments
		}
	}
	return summary
}
