package exporter

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ParseProjectList reads one project endpoint per line.
// Lines are trimmed; blank lines and lines starting with # are skipped.
func ParseProjectList(r io.Reader) ([]string, error) {
	var endpoints []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		endpoints = append(endpoints, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read project list: %w", err)
	}
	return endpoints, nil
}

// LoadProjectList reads the project list file at path
func LoadProjectList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrProjectListMissing, path)
		}
		return nil, fmt.Errorf("failed to open project list: %w", err)
	}
	defer f.Close()

	return ParseProjectList(f)
}
