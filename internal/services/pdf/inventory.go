// -----------------------------------------------------------------------
// Document Inventory - page counts of extracted PDF documents
// Uses pdfcpu for Go-native PDF processing
// -----------------------------------------------------------------------

package pdf

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/o1export/internal/interfaces"
)

// Inventory implements interfaces.DocumentInventory using pdfcpu
type Inventory struct {
	conf   *model.Configuration
	logger arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.DocumentInventory = (*Inventory)(nil)

// NewInventory creates a new document inventory
func NewInventory(logger arbor.ILogger) *Inventory {
	return &Inventory{
		conf:   model.NewDefaultConfiguration(),
		logger: logger,
	}
}

// Inspect reads the page count of every PDF in paths.
// Non-PDF files are skipped; unreadable PDFs are reported with Readable false.
func (i *Inventory) Inspect(ctx context.Context, paths []string) []interfaces.DocumentInfo {
	documents := make([]interfaces.DocumentInfo, 0, len(paths))
	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}
		if !IsPDF(path) {
			continue
		}

		info := interfaces.DocumentInfo{Path: path}
		pages, err := i.pageCount(path)
		if err != nil {
			i.logger.Warn().Err(err).Str("path", path).Msg("Failed to read PDF")
			documents = append(documents, info)
			continue
		}

		info.PageCount = pages
		info.Readable = true
		documents = append(documents, info)
	}

	i.logger.Debug().Int("documents", len(documents)).Msg("Document inventory complete")
	return documents
}

// pageCount reads and validates the cross reference table of the PDF at path
func (i *Inventory) pageCount(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	pdfCtx, err := api.ReadAndValidate(f, i.conf)
	if err != nil {
		return 0, err
	}
	return pdfCtx.PageCount, nil
}

// IsPDF reports whether path has a .pdf extension
func IsPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}
