package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueryTerms(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"plain", "red cat", []string{"red", "cat"}},
		{"short words kept", "the cat on a mat", []string{"the", "cat", "on", "a", "mat"}},
		{"extra whitespace", "  red \t cat\n", []string{"red", "cat"}},
		{"punctuation left to the index", "cat! ?!", []string{"cat!", "?!"}},
		{"empty", "   ", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, queryTerms(tt.query))
		})
	}
}
