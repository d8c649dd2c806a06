package exporter

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ensureDir creates dir and its parents; repeating it is harmless
func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// moveFile moves srcDir/name into dstDir, replacing an existing file of the same name
func moveFile(srcDir, dstDir, name string) (string, error) {
	src := filepath.Join(srcDir, name)
	dst := filepath.Join(dstDir, name)

	if _, err := os.Stat(dst); err == nil {
		if err := os.Remove(dst); err != nil {
			return "", fmt.Errorf("failed to replace %s: %w", dst, err)
		}
	}
	if err := os.Rename(src, dst); err != nil {
		return "", fmt.Errorf("failed to move %s: %w", src, err)
	}
	return dst, nil
}

// extractZip extracts archive into dir and returns the paths of the extracted files.
// Entries resolving outside dir are rejected.
func extractZip(archive, dir string) ([]string, error) {
	reader, err := zip.OpenReader(archive)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", archive, err)
	}
	defer reader.Close()

	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	var extracted []string
	for _, entry := range reader.File {
		target := filepath.Join(root, entry.Name)
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return extracted, fmt.Errorf("archive entry %q escapes target directory", entry.Name)
		}

		if entry.FileInfo().IsDir() {
			if err := ensureDir(target); err != nil {
				return extracted, err
			}
			continue
		}

		if err := extractEntry(entry, target); err != nil {
			return extracted, err
		}
		extracted = append(extracted, target)
	}
	return extracted, nil
}

func extractEntry(entry *zip.File, target string) error {
	if err := ensureDir(filepath.Dir(target)); err != nil {
		return err
	}

	src, err := entry.Open()
	if err != nil {
		return fmt.Errorf("failed to open archive entry %s: %w", entry.Name, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("failed to extract %s: %w", entry.Name, err)
	}
	return dst.Close()
}

// ClearFiles removes the regular files directly inside dir
func ClearFiles(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
