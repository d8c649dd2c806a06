package exporter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestXpathLiteral(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Inspections", `'Inspections'`},
		{"", `''`},
		{"Contractor's Report", `"Contractor's Report"`},
		{`Site "B" Walk`, `'Site "B" Walk'`},
		{`Contractor's "B" form's`, `concat('Contractor', "'", 's "B" form', "'", 's')`},
		{`'"`, `concat("'", '"')`},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, xpathLiteral(tt.in))
		})
	}
}
