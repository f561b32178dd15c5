package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newsflow/variantpad/internal/resolver"
)

var testSelections = []resolver.Selection{
	{ID: "all", Label: resolver.AllLabel, Images: []string{"a", "b"}},
	{ID: "11", Label: "Red (1 images)", Name: "Red", Images: []string{"a"}},
	{ID: "12", Label: "Blue (1 images)", Name: "Blue", Images: []string{"b"}},
}

func TestPromptSelection(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"index", "3\n", "12"},
		{"id", "11\n", "11"},
		{"name", "blue\n", "12"},
		{"empty line", "\n", resolver.AllID},
		{"eof", "", resolver.AllID},
		{"retry after invalid", "9\nRed\n", "11"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			got, err := promptSelection(strings.NewReader(tt.input), &out, testSelections)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPromptSelectionInvalidAtEOF(t *testing.T) {
	var out bytes.Buffer
	_, err := promptSelection(strings.NewReader("Green"), &out, testSelections)
	assert.Error(t, err)
	assert.Contains(t, out.String(), "无效选择: Green")
}

func TestPrintSelections(t *testing.T) {
	var out bytes.Buffer
	printSelections(&out, testSelections)
	assert.Contains(t, out.String(), "Blue (1 images)")
	assert.Contains(t, out.String(), resolver.AllLabel)
}
