// -----------------------------------------------------------------------
// Document Inventory Interface - inspect extracted PDF documents
// -----------------------------------------------------------------------

package interfaces

import "context"

// DocumentInfo describes one extracted document
type DocumentInfo struct {
	Path      string `json:"path"`
	PageCount int    `json:"page_count"`
	Readable  bool   `json:"readable"`
}

// DocumentInventory inspects the documents extracted into a directory
type DocumentInventory interface {
	Inspect(ctx context.Context, paths []string) []DocumentInfo
}
