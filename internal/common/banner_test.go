package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/arbor"
)

func TestBannerLines(t *testing.T) {
	config := NewDefaultConfig()
	config.Export.ProjectsFile = "projects.txt"
	config.Logging.Output = []string{"stdout", "file"}
	ApplyFlagOverrides(config, true, "", "")

	lines := map[string]string{}
	for _, kv := range bannerLines(config) {
		lines[kv[0]] = kv[1]
	}

	assert.Equal(t, GetVersion(), lines["Version"])
	assert.Equal(t, "development", lines["Environment"])
	assert.Equal(t, "projects.txt", lines["Projects"])
	assert.Equal(t, "headful", lines["Browser"])
	assert.Equal(t, "debug", lines["Log level"])
	assert.Equal(t, "stdout, file", lines["Log output"])
}

func TestPrintBanner(t *testing.T) {
	assert.NotPanics(t, func() {
		PrintBanner(NewDefaultConfig(), arbor.NewLogger())
	})
}
