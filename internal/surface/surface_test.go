package surface

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/g1itchbot8888-del/agent-memory/internal/config"
	"github.com/g1itchbot8888-del/agent-memory/internal/embedding"
	"github.com/g1itchbot8888-del/agent-memory/internal/logger"
	"github.com/g1itchbot8888-del/agent-memory/internal/model"
	"github.com/g1itchbot8888-del/agent-memory/internal/store"
)

type cannedEmbedder struct {
	mu    sync.Mutex
	fixed map[string][]float32
	next  int
}

func (e *cannedEmbedder) set(text string, v []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fixed[text] = v
}

func (e *cannedEmbedder) Embed(ctx context.Context, text string) (embedding.Vector, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if v, ok := e.fixed[text]; ok {
		return v, nil
	}
	v := make([]float32, 8)
	v[e.next%8] = 1
	e.next++
	e.fixed[text] = v
	return v, nil
}

func (e *cannedEmbedder) Dims() int { return 8 }

func newTestSurfacer(t *testing.T) (*Surfacer, *store.Store, *cannedEmbedder) {
	t.Helper()
	cfg := config.Default()
	cfg.Store.Path = filepath.Join(t.TempDir(), "test.db")
	emb := &cannedEmbedder{fixed: map[string][]float32{}}
	st, err := store.New(cfg, emb, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return New(st, cfg, logger.Nop()), st, emb
}

func TestPredictEmptyContext(t *testing.T) {
	ctx := context.Background()
	s, st, _ := newTestSurfacer(t)

	_, err := st.Put(ctx, store.PutParams{Content: "something stored beforehand"})
	require.NoError(t, err)

	got, err := s.Predict(ctx, "   ", 5)
	require.NoError(t, err)
	assert.Nil(t, got, "empty context must fast-exit with nothing")
}

func TestPredictEntityRule(t *testing.T) {
	ctx := context.Background()
	s, st, emb := newTestSurfacer(t)

	rec, err := st.Put(ctx, store.PutParams{Content: "Stevie runs the infra rotation this month"})
	require.NoError(t, err)
	// Orthogonal to the context so only the entity rule can pick it up.
	emb.set("catching up with Stevie about next steps", []float32{0, 0, 0, 0, 0, 0, 0, 1})

	got, err := s.Predict(ctx, "catching up with Stevie about next steps", 5)
	require.NoError(t, err)
	require.NotEmpty(t, got)

	assert.Equal(t, rec.ID, got[0].ID)
	assert.Equal(t, 0.85, got[0].Confidence)
	require.NotEmpty(t, got[0].Reasons)
	assert.Contains(t, got[0].Reasons[0], "Stevie")
}

func TestPredictSemanticRule(t *testing.T) {
	ctx := context.Background()
	s, st, emb := newTestSurfacer(t)

	target := []float32{1, 0, 0, 0, 0, 0, 0, 0}
	emb.set("deploys happen every friday afternoon", target)
	emb.set("when is the next deploy window", target)

	rec, err := st.Put(ctx, store.PutParams{Content: "deploys happen every friday afternoon"})
	require.NoError(t, err)

	got, err := s.Predict(ctx, "when is the next deploy window", 5)
	require.NoError(t, err)
	require.NotEmpty(t, got)

	assert.Equal(t, rec.ID, got[0].ID)
	// Perfect similarity scales to the full semantic confidence.
	assert.InDelta(t, 0.65, got[0].Confidence, 0.001)
	assert.Contains(t, got[0].Reasons, "semantically relevant to context")
}

func TestPredictExcludesUnrelated(t *testing.T) {
	ctx := context.Background()
	s, st, _ := newTestSurfacer(t)

	// Auto-assigned vectors are orthogonal, so nothing clears min confidence.
	_, err := st.Put(ctx, store.PutParams{Content: "the printer on floor two is jammed again"})
	require.NoError(t, err)

	got, err := s.Predict(ctx, "planning the database schema review", 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPredictTemporalRule(t *testing.T) {
	ctx := context.Background()
	s, st, _ := newTestSurfacer(t)

	rec, err := st.Put(ctx, store.PutParams{Content: "finished wiring the webhook retries"})
	require.NoError(t, err)

	got, err := s.Predict(ctx, "what did I finish yesterday", 5)
	require.NoError(t, err)
	require.NotEmpty(t, got)

	found := false
	for _, r := range got {
		if r.ID == rec.ID {
			found = true
			assert.GreaterOrEqual(t, r.Confidence, 0.4)
		}
	}
	assert.True(t, found, "recent record should surface on a temporal cue")
}

func TestPredictFiltersLearnings(t *testing.T) {
	ctx := context.Background()
	s, st, emb := newTestSurfacer(t)

	target := []float32{1, 0, 0, 0, 0, 0, 0, 0}
	emb.set("query for deploy schedule missed the ops doc", target)
	emb.set("deploy schedule", target)

	_, err := st.AddLearning(ctx, model.TypeRecallMiss,
		"deploy schedule", "query for deploy schedule missed the ops doc", "", nil)
	require.NoError(t, err)

	got, err := s.Predict(ctx, "deploy schedule", 5)
	require.NoError(t, err)
	for _, r := range got {
		assert.False(t, r.IsLearning(), "learnings must not surface as memories")
	}
}

func TestPredictConflictAnnotation(t *testing.T) {
	ctx := context.Background()
	s, st, emb := newTestSurfacer(t)

	shared := []float32{1, 0, 0, 0, 0, 0, 0, 0}
	emb.set("Bill's favorite editor is vim", shared)
	emb.set("Bill's favorite editor is emacs", shared)
	emb.set("which editor does Bill like", shared)

	_, err := st.Put(ctx, store.PutParams{
		Content:  "Bill's favorite editor is vim",
		Metadata: map[string]any{"entities": []any{"Bill"}},
	})
	require.NoError(t, err)
	_, err = st.Put(ctx, store.PutParams{
		Content:  "Bill's favorite editor is emacs",
		Metadata: map[string]any{"entities": []any{"Bill"}},
	})
	require.NoError(t, err)

	got, err := s.Predict(ctx, "which editor does Bill like", 5)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	for _, r := range got {
		assert.True(t, r.Conflict, "contradicting pair should be flagged")
	}
}

func TestExtractTemporal(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	tr := ExtractTemporal("what happened yesterday", now)
	require.NotNil(t, tr)
	assert.Equal(t, "yesterday", tr.Phrase)
	assert.Equal(t, now.Add(-48*time.Hour), tr.From)
	assert.Equal(t, now, tr.To)

	tr = ExtractTemporal("we shipped it an hour ago", now)
	require.NotNil(t, tr)
	assert.Equal(t, "an hour ago", tr.Phrase)
	assert.Equal(t, now.Add(-time.Hour), tr.From)

	assert.Nil(t, ExtractTemporal("no cue in this sentence", now))
}
