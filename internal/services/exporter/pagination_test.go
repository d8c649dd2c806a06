package exporter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTotalItems(t *testing.T) {
	tests := []struct {
		label   string
		want    int
		wantErr bool
	}{
		{"1 - 25 of 60", 60, false},
		{"26 - 50 of 1,250", 1250, false},
		{"Showing 1-3 of 3 forms", 3, false},
		{"of 0", 0, false},
		{"1 - 25", 0, true},
		{"1 - 25 of", 0, true},
		{"1 - 25 of many", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, err := ParseTotalItems(tt.label)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPageCount(t *testing.T) {
	assert.Equal(t, 0, PageCount(0, 25))
	assert.Equal(t, 1, PageCount(1, 25))
	assert.Equal(t, 1, PageCount(25, 25))
	assert.Equal(t, 2, PageCount(26, 25))
	assert.Equal(t, 3, PageCount(60, 25))
	assert.Equal(t, 0, PageCount(10, 0))
}

func TestParsePageNumber(t *testing.T) {
	n, err := parsePageNumber(" 3 ")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = parsePageNumber("")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = parsePageNumber("next")
	assert.Error(t, err)
}
