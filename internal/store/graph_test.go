package store

import (
	"context"
	"errors"
	"testing"

	"github.com/g1itchbot8888-del/agent-memory/internal/model"
)

func TestLinkValidation(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	a, _ := s.Put(ctx, PutParams{Content: "timezone is set to pacific"})
	b, _ := s.Put(ctx, PutParams{Content: "timezone changed to eastern"})

	var verr *ValidationError
	if _, err := s.Link(ctx, a.ID, b.ID, "contradicts"); !errors.As(err, &verr) {
		t.Errorf("expected ValidationError for unknown relation, got %v", err)
	}
	if _, err := s.Link(ctx, a.ID, a.ID, model.RelUpdates); !errors.As(err, &verr) {
		t.Errorf("expected ValidationError for self link, got %v", err)
	}
	if _, err := s.Link(ctx, a.ID, "01JQZZZZZZZZZZZZZZZZZZZZZZ", model.RelUpdates); !errors.As(err, &verr) {
		t.Errorf("expected ValidationError for unknown target, got %v", err)
	}
}

func TestLinkIdempotent(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	a, _ := s.Put(ctx, PutParams{Content: "first draft of the proposal"})
	b, _ := s.Put(ctx, PutParams{Content: "second draft of the proposal"})

	if _, err := s.Link(ctx, b.ID, a.ID, model.RelUpdates); err != nil {
		t.Fatalf("link: %v", err)
	}
	if _, err := s.Link(ctx, b.ID, a.ID, model.RelUpdates); err != nil {
		t.Fatalf("repeat link: %v", err)
	}

	edges, _ := s.Edges(ctx, a.ID)
	if len(edges) != 1 {
		t.Fatalf("expected 1 edge after duplicate link, got %d", len(edges))
	}
}

func TestResolveFollowsChain(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	v1, _ := s.Put(ctx, PutParams{Content: "working hours are 9 to 5 pacific"})
	v2, _ := s.Put(ctx, PutParams{Content: "working hours are 10 to 6 pacific"})
	v3, _ := s.Put(ctx, PutParams{Content: "working hours are 9 to 5 eastern"})
	s.Link(ctx, v1.ID, v2.ID, model.RelUpdates)
	s.Link(ctx, v2.ID, v3.ID, model.RelUpdates)

	live, err := s.Resolve(ctx, v1.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if live.ID != v3.ID {
		t.Errorf("expected chain tail, got %q", live.Content)
	}
	if _, flagged := live.Metadata["ambiguous_resolution"]; flagged {
		t.Error("clean chain must not be flagged ambiguous")
	}
}

func TestResolveCycle(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	a, _ := s.Put(ctx, PutParams{Content: "config lives in the repo"})
	b, _ := s.Put(ctx, PutParams{Content: "config lives in the vault"})
	s.Link(ctx, a.ID, b.ID, model.RelUpdates)
	s.Link(ctx, b.ID, a.ID, model.RelUpdates)

	got, err := s.Resolve(ctx, a.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.ID != a.ID {
		t.Errorf("cycle should return the original record, got %s", got.ID)
	}
	if flagged, _ := got.Metadata["ambiguous_resolution"].(bool); !flagged {
		t.Error("expected ambiguous_resolution marker on cycle")
	}

	// The marker is a snapshot annotation, never persisted.
	stored, _ := s.Get(ctx, a.ID)
	if _, ok := stored.Metadata["ambiguous_resolution"]; ok {
		t.Error("marker must not be written to storage")
	}
}

func TestResolveNoEdges(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	rec, _ := s.Put(ctx, PutParams{Content: "nothing supersedes this one"})
	got, err := s.Resolve(ctx, rec.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.ID != rec.ID {
		t.Errorf("expected the record itself, got %s", got.ID)
	}
}

func TestEnrichAttachesRelated(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	base, _ := s.Put(ctx, PutParams{Content: "the service runs on postgres"})
	ext, _ := s.Put(ctx, PutParams{Content: "postgres runs version 16 with pgvector"})
	s.Link(ctx, ext.ID, base.ID, model.RelExtends)

	enriched, err := s.Enrich(ctx, []model.Record{*base})
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if len(enriched) != 1 {
		t.Fatalf("expected 1 enriched record, got %d", len(enriched))
	}
	if len(enriched[0].Context) != 1 || enriched[0].Context[0].Record.ID != ext.ID {
		t.Fatalf("expected the extends source attached, got %+v", enriched[0].Context)
	}
	if enriched[0].Context[0].Relation != model.RelExtends {
		t.Errorf("expected extends relation, got %q", enriched[0].Context[0].Relation)
	}
}

func TestConflictsFor(t *testing.T) {
	ctx := context.Background()
	s, emb := newTestStore(t)

	shared := vec(1, 0, 0, 0)
	emb.set("Bill's favorite editor is vim", shared)
	emb.set("Bill's favorite editor is emacs", shared)
	emb.set("lunch order is a burrito", vec(0, 0, 0, 1))

	a, _ := s.Put(ctx, PutParams{
		Content:  "Bill's favorite editor is vim",
		Metadata: map[string]any{"entities": []any{"Bill"}},
	})
	b, _ := s.Put(ctx, PutParams{
		Content:  "Bill's favorite editor is emacs",
		Metadata: map[string]any{"entities": []any{"Bill"}},
	})
	s.Put(ctx, PutParams{
		Content:  "lunch order is a burrito",
		Metadata: map[string]any{"entities": []any{"Bill"}},
	})

	conflicts, err := s.ConflictsFor(ctx, a.ID)
	if err != nil {
		t.Fatalf("conflicts: %v", err)
	}
	if len(conflicts) != 1 || conflicts[0] != b.ID {
		t.Fatalf("expected one conflict with the emacs record, got %v", conflicts)
	}

	// An updates edge resolves the conflict.
	s.Link(ctx, a.ID, b.ID, model.RelUpdates)
	conflicts, _ = s.ConflictsFor(ctx, a.ID)
	if len(conflicts) != 0 {
		t.Errorf("expected no conflicts after linking, got %v", conflicts)
	}
}
