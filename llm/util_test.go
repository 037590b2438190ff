package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanJSONBlock(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", `[{"id":"1"}]`, `[{"id":"1"}]`},
		{"json fence", "```json\n[{\"id\":\"1\"}]\n```", `[{"id":"1"}]`},
		{"bare fence", "```\n[]\n```", `[]`},
		{"padded", "  \n[]\n  ", `[]`},
		{"fence without newline", "```[1]```", `[1]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanJSONBlock(tt.input))
		})
	}
}
