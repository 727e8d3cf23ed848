package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/g1itchbot8888-del/agent-memory/internal/model"
)

func TestExtractClassifiesByPattern(t *testing.T) {
	text := `
	We decided to pivot from the leaderboard to memory.
	The key insight is that agents need continuous identity.
	I prefer semantic search over keyword matching.
	The goal is to ship a working prototype this quarter.
	The weather is nice outside right now.
	`

	e := NewHeuristicExtractor()
	got := e.Extract(text, 0.3)
	require.NotEmpty(t, got)

	byType := map[string]Candidate{}
	for _, c := range got {
		byType[c.Type] = c
	}

	assert.Contains(t, byType[model.TypeDecision].Content, "pivot")
	assert.Contains(t, byType[model.TypeInsight].Content, "continuous identity")
	assert.Contains(t, byType[model.TypePreference].Content, "semantic search")
	assert.Contains(t, byType[model.TypeGoal].Content, "prototype")

	for _, c := range got {
		assert.NotContains(t, c.Content, "weather", "small talk must not extract")
	}
}

func TestExtractSkipsShortChunks(t *testing.T) {
	e := NewHeuristicExtractor()
	assert.Empty(t, e.Extract("let's go. we will.", 0.3))
}

func TestExtractMinConfidence(t *testing.T) {
	e := NewHeuristicExtractor()
	text := "I prefer tabs over spaces in every project file"

	assert.NotEmpty(t, e.Extract(text, 0.5))
	assert.Empty(t, e.Extract(text, 0.9), "preference confidence 0.6 is below 0.9")
}

func TestExtractDeduplicates(t *testing.T) {
	e := NewHeuristicExtractor()
	text := `we decided to use postgres for the main store.
	We decided to use postgres for the main store!`

	got := e.Extract(text, 0.3)
	assert.Len(t, got, 1)
}

func TestSplitBoundaries(t *testing.T) {
	chunks := Split("first thought — second thought. third one!\nfourth line")
	assert.Equal(t, []string{"first thought", "second thought", "third one", "fourth line"}, chunks)
}

func TestEntities(t *testing.T) {
	text := `Met with Stevie about the ~memory-engine project. Stevie said we
	should benchmark "semantic recall" first. Ping @ops when done.`

	got := Entities(text)
	require.NotEmpty(t, got)

	find := func(kind, text string) bool {
		for _, e := range got {
			if e.Kind == kind && e.Text == text {
				return true
			}
		}
		return false
	}
	assert.True(t, find("person", "Stevie"), "capitalized name before 'said'")
	assert.True(t, find("person", "ops"), "@mention")
	assert.True(t, find("project", "memory-engine"), "tilde project")
	assert.True(t, find("quoted", "semantic recall"), "quoted term")
}

func TestEntitiesDeterministic(t *testing.T) {
	text := `Stevie and Jordan met with Stevie about "the rollout"`
	a := Entities(text)
	b := Entities(text)
	assert.Equal(t, a, b)
}
