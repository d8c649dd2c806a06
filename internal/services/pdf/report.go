package pdf

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/o1export/internal/interfaces"
	"github.com/ternarybob/o1export/internal/models"
)

// ReportService implements interfaces.ReportRenderer
type ReportService struct {
	logger arbor.ILogger
}

// Compile-time assertion
var _ interfaces.ReportRenderer = (*ReportService)(nil)

// NewReportService creates a new run report renderer
func NewReportService(logger arbor.ILogger) *ReportService {
	return &ReportService{
		logger: logger,
	}
}

var reportColumns = []struct {
	title string
	width float64
	align string
}{
	{"Project", 52, "L"},
	{"Form type", 52, "L"},
	{"Total", 16, "R"},
	{"Exported", 18, "R"},
	{"Excel", 14, "C"},
	{"PDFs", 14, "C"},
	{"Docs", 14, "R"},
	{"Pages", 14, "R"},
	{"Error", 83, "L"},
}

// RenderRunReport renders a landscape table of every form type outcome
func (s *ReportService) RenderRunReport(run *models.RunRecord, log models.ExportLog) ([]byte, error) {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 10)
	pdf.SetTitle("Export run "+run.ID, true)
	pdf.SetCreator("o1export", true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, "Export run report", "", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "", 9)
	summary := run.Summary
	lines := []string{
		"Run: " + run.ID,
		"Status: " + string(run.Status),
		"Started: " + run.StartedAt.Format(time.RFC3339),
		"Duration: " + run.Duration().Round(time.Second).String(),
		fmt.Sprintf("Projects: %d exported of %d", summary.ProjectsExported, summary.Projects),
		fmt.Sprintf("Form types: %d failed of %d, page errors: %d", summary.FormsFailed, summary.Forms, summary.PageErrors),
		fmt.Sprintf("Documents: %d with %d pages, unreadable: %d", summary.Documents, summary.DocumentPages, summary.UnreadableDocuments),
	}
	if run.Error != "" {
		lines = append(lines, "Error: "+run.Error)
	}
	for _, line := range lines {
		pdf.CellFormat(0, 5, tr(line), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for _, col := range reportColumns {
		pdf.CellFormat(col.width, 6, col.title, "1", 0, col.align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	rows := 0
	for _, projectName := range sortedKeys(log) {
		project := log[projectName]
		if len(project.Forms) == 0 {
			s.row(pdf, tr, projectName, "", nil, project.ProjectError)
			rows++
			continue
		}
		for _, formType := range sortedKeys(project.Forms) {
			s.row(pdf, tr, projectName, formType, project.Forms[formType], project.ProjectError)
			rows++
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate report output")
		return nil, fmt.Errorf("failed to generate report output: %w", err)
	}

	s.logger.Debug().Int("rows", rows).Int("pdf_size", buf.Len()).Msg("Run report generated")
	return buf.Bytes(), nil
}

func (s *ReportService) row(pdf *fpdf.Fpdf, tr func(string) string, project, formType string, form *models.FormRecord, projectErr string) {
	cells := []string{project, formType, "", "", "", "", "", "", projectErr}
	if form != nil {
		cells[2] = strconv.Itoa(form.TotalForms)
		cells[3] = strconv.Itoa(form.TotalExportedForms)
		cells[4] = mark(form.ExcelExported)
		cells[5] = mark(form.PdfsExported)
		cells[6] = strconv.Itoa(form.ExtractedDocuments)
		cells[7] = strconv.Itoa(form.ExtractedPages)
		cells[8] = formError(form, projectErr)
	}

	for i, col := range reportColumns {
		pdf.CellFormat(col.width, 5, tr(truncate(pdf, cells[i], col.width-2)), "1", 0, col.align, false, 0, "")
	}
	pdf.Ln(-1)
}

func formError(form *models.FormRecord, projectErr string) string {
	switch {
	case form.FormsExportError != "":
		return form.FormsExportError
	case form.ExcelExportError != "":
		return "Excel: " + form.ExcelExportError
	case len(form.PdfsExportError) > 0:
		pages := make([]string, 0, len(form.PdfsExportError))
		for _, pageErr := range form.PdfsExportError {
			pages = append(pages, strconv.Itoa(pageErr.Page))
		}
		return fmt.Sprintf("PDF pages %v: %s", pages, form.PdfsExportError[0].Error)
	}
	return projectErr
}

func mark(ok bool) string {
	if ok {
		return "yes"
	}
	return "no"
}

// truncate shortens text with an ellipsis so it fits width at the current font
func truncate(pdf *fpdf.Fpdf, text string, width float64) string {
	if pdf.GetStringWidth(text) <= width {
		return text
	}
	runes := []rune(text)
	for len(runes) > 0 && pdf.GetStringWidth(string(runes)+"...") > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
