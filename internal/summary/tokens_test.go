package summary

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateCounter(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"hello world", 3},
		{"a b c d e", 5},
		{"internationalization", 5},
		{"日本語の会議", 2},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := EstimateCounter{}.CountTokens(context.Background(), tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
