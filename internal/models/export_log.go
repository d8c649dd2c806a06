package models

// ExportLog maps project display names to their export outcome
type ExportLog map[string]*ProjectRecord

// ProjectRecord holds the outcome of exporting one project
type ProjectRecord struct {
	ExportDone   bool                   `json:"export_done"`
	ProjectError string                 `json:"proj_export_error"`
	Forms        map[string]*FormRecord `json:"forms"`
}

// FormRecord holds the outcome of exporting one form type of a project
type FormRecord struct {
	TotalForms          int         `json:"total_forms"`
	TotalExportedForms  int         `json:"total_exported_forms"`
	FormsExportError    string      `json:"forms_export_error"`
	ExcelExported       bool        `json:"excel_exported"`
	ExcelExportError    string      `json:"excel_export_error"`
	PdfsExported        bool        `json:"pdfs_exported"`
	PdfsExportError     []PageError `json:"pdfs_export_error"`
	ExtractedDocuments  int         `json:"extracted_documents"`
	ExtractedPages      int         `json:"extracted_pages"`
	UnreadableDocuments int         `json:"unreadable_documents"`
}

// PageError records a document export page that exhausted its retries
type PageError struct {
	Page  int    `json:"page"`
	Error string `json:"error"`
}

// NewProjectRecord returns a project record in its initial state
func NewProjectRecord() *ProjectRecord {
	return &ProjectRecord{Forms: make(map[string]*FormRecord)}
}

// NewFormRecord returns a form record in its initial state
func NewFormRecord() *FormRecord {
	return &FormRecord{PdfsExportError: []PageError{}}
}

// Failed reports whether any part of the form type export did not succeed
func (f *FormRecord) Failed() bool {
	return f.FormsExportError != "" || f.ExcelExportError != "" || len(f.PdfsExportError) > 0
}
