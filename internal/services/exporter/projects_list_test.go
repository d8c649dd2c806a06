package exporter

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProjectList(t *testing.T) {
	input := "https://x/p1\r\n\n   \n  https://x/p2  \n# paused\nhttps://x/p3"

	endpoints, err := ParseProjectList(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://x/p1", "https://x/p2", "https://x/p3"}, endpoints)
}

func TestLoadProjectList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "projects.txt")
	require.NoError(t, os.WriteFile(path, []byte("https://x/p1\n\nhttps://x/p2\n"), 0644))

	endpoints, err := LoadProjectList(path)
	require.NoError(t, err)
	assert.Len(t, endpoints, 2)
}

func TestLoadProjectList_Missing(t *testing.T) {
	_, err := LoadProjectList(filepath.Join(t.TempDir(), "projects.txt"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProjectListMissing))
}
