package exporter

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseTotalItems reads the item count from a pagination label such as "1 - 25 of 60"
func ParseTotalItems(text string) (int, error) {
	idx := strings.LastIndex(text, "of")
	if idx < 0 {
		return 0, fmt.Errorf("unexpected total items label %q", text)
	}
	fields := strings.Fields(text[idx+len("of"):])
	if len(fields) == 0 {
		return 0, fmt.Errorf("unexpected total items label %q", text)
	}
	total, err := strconv.Atoi(strings.ReplaceAll(fields[0], ",", ""))
	if err != nil {
		return 0, fmt.Errorf("unexpected total items label %q: %w", text, err)
	}
	if total < 0 {
		return 0, fmt.Errorf("negative total items in %q", text)
	}
	return total, nil
}

// PageCount returns the number of pages needed for total items, rounded up
func PageCount(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// parsePageNumber reads the active page indicator; an empty label is page 0
func parsePageNumber(text string) (int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, nil
	}
	return strconv.Atoi(text)
}
