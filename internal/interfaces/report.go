package interfaces

import "github.com/ternarybob/o1export/internal/models"

// ReportRenderer renders the audit report of an export run
type ReportRenderer interface {
	// RenderRunReport renders run and its export log to a PDF byte slice
	RenderRunReport(run *models.RunRecord, log models.ExportLog) ([]byte, error)
}
