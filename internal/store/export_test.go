package store

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/g1itchbot8888-del/agent-memory/internal/config"
	"github.com/g1itchbot8888-del/agent-memory/internal/logger"
	"github.com/g1itchbot8888-del/agent-memory/internal/model"
)

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src, emb := newTestStore(t)

	emb.set("the primary region is us-west", vec(1, 0, 0, 0))
	a, _ := src.Put(ctx, PutParams{
		Content:  "the primary region is us-west",
		Type:     model.TypeDecision,
		Metadata: map[string]any{"entities": []any{"us-west"}},
	})
	b, _ := src.Put(ctx, PutParams{Content: "failover region is us-east"})
	src.Link(ctx, b.ID, a.ID, model.RelExtends)
	src.SetIdentity(ctx, "name", "Ada")
	src.SetActive(ctx, "current_task", "region migration")

	var buf bytes.Buffer
	if err := src.Export(ctx, &buf); err != nil {
		t.Fatalf("export: %v", err)
	}

	// Import into a fresh store with no embedder: vectors must come from
	// the snapshot, not a provider round-trip.
	cfg := config.Default()
	cfg.Store.Path = filepath.Join(t.TempDir(), "imported.db")
	dst, err := New(cfg, nil, logger.Nop())
	if err != nil {
		t.Fatalf("create dst: %v", err)
	}
	t.Cleanup(func() { dst.Close() })

	n, err := dst.Import(ctx, &buf)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 records imported, got %d", n)
	}

	got, err := dst.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("get imported: %v", err)
	}
	if got.Content != a.Content || got.Type != model.TypeDecision {
		t.Errorf("imported record mismatch: %+v", got)
	}
	if len(got.Embedding) == 0 {
		t.Error("expected embedding carried through the snapshot")
	}

	edges, _ := dst.Edges(ctx, a.ID)
	if len(edges) != 1 || edges[0].SourceID != b.ID {
		t.Fatalf("expected edge imported, got %+v", edges)
	}

	identity, _ := dst.Identity(ctx)
	if identity["name"].Value != "Ada" {
		t.Error("expected identity imported")
	}
	active, _ := dst.Active(ctx)
	if active["current_task"].Value != "region migration" {
		t.Error("expected active context imported")
	}
}

func TestImportRejectsBadSnapshot(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	if _, err := s.Import(ctx, bytes.NewReader([]byte("not json"))); err == nil {
		t.Error("expected decode error")
	}
	if _, err := s.Import(ctx, bytes.NewReader([]byte(`{"version": 99}`))); err == nil {
		t.Error("expected version error")
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s, emb := newTestStore(t)

	a, _ := s.Put(ctx, PutParams{Content: "stored with a vector attached"})
	emb.fail = true
	s.Put(ctx, PutParams{Content: "stored while the provider was down"})
	emb.fail = false
	b, _ := s.Put(ctx, PutParams{Content: "a decision to count separately", Type: model.TypeDecision, Tier: model.TierActive})
	s.Link(ctx, b.ID, a.ID, model.RelDerives)
	s.SetIdentity(ctx, "name", "Ada")

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Records != 3 {
		t.Errorf("expected 3 records, got %d", stats.Records)
	}
	if stats.ByTier["archive"] != 2 || stats.ByTier["active"] != 1 {
		t.Errorf("unexpected tier counts %v", stats.ByTier)
	}
	if stats.ByType["decision"] != 1 {
		t.Errorf("unexpected type counts %v", stats.ByType)
	}
	if stats.Edges != 1 || stats.ByRelation["derives"] != 1 {
		t.Errorf("unexpected edge counts %d %v", stats.Edges, stats.ByRelation)
	}
	if stats.IdentityKeys != 1 {
		t.Errorf("expected 1 identity key, got %d", stats.IdentityKeys)
	}
	if stats.PendingEmbeddings != 1 {
		t.Errorf("expected 1 pending embedding, got %d", stats.PendingEmbeddings)
	}
	if stats.DBSizeBytes == 0 {
		t.Error("expected non-zero db size")
	}
}
