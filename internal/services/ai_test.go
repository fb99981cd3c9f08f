package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDrafts(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"bare array", `[{"title":"Restock shelf 4","priority":"high","deadline":null}]`, 1},
		{"fenced", "```json\n[{\"title\":\"Call supplier\"},{\"title\":\"Weekly report\",\"type\":\"report\"}]\n```", 2},
		{"empty", "[]", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drafts, err := parseDrafts(tt.content)
			require.NoError(t, err)
			assert.Len(t, drafts, tt.want)
		})
	}
}

func TestParseDrafts_Deadline(t *testing.T) {
	drafts, err := parseDrafts(`[{"title":"Inventory count","deadline":"2025-10-28T23:59:59Z"}]`)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	require.NotNil(t, drafts[0].Deadline)
	assert.True(t, drafts[0].Deadline.Equal(time.Date(2025, 10, 28, 23, 59, 59, 0, time.UTC)))
}

func TestParseDrafts_RejectsProse(t *testing.T) {
	_, err := parseDrafts("Sure! Here are your tasks.")
	assert.Error(t, err)
}

func TestAIService_DisabledWithoutKey(t *testing.T) {
	ai := NewAIService("")
	assert.Nil(t, ai)

	_, err := ai.DraftTasks(context.Background(), "restock")
	assert.Error(t, err)
}
