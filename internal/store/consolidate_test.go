package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/g1itchbot8888-del/agent-memory/internal/model"
)

func backdate(t *testing.T, s *Store, id string, created time.Time) {
	t.Helper()
	_, err := s.db.Exec(`UPDATE records SET created_at = ? WHERE id = ?`,
		formatTime(created), id)
	if err != nil {
		t.Fatalf("backdate: %v", err)
	}
}

func setAccess(t *testing.T, s *Store, id string, count int, accessed time.Time) {
	t.Helper()
	_, err := s.db.Exec(`UPDATE records SET access_count = ?, accessed_at = ? WHERE id = ?`,
		count, formatTime(accessed), id)
	if err != nil {
		t.Fatalf("set access: %v", err)
	}
}

func TestConsolidateMergesNearDuplicates(t *testing.T) {
	ctx := context.Background()
	s, emb := newTestStore(t)

	shared := vec(1, 0, 0, 0)
	emb.set("deploys go out every friday afternoon", shared)
	emb.set("we deploy on friday afternoons", shared)
	emb.set("the retro happens on mondays", vec(0, 1, 0, 0))

	keeper, _ := s.Put(ctx, PutParams{
		Content: "deploys go out every friday afternoon", Salience: 0.9,
		Metadata: map[string]any{"source": "standup"},
	})
	dup, _ := s.Put(ctx, PutParams{
		Content: "we deploy on friday afternoons", Salience: 0.6,
		Metadata: map[string]any{"channel": "ops"},
	})
	other, _ := s.Put(ctx, PutParams{Content: "the retro happens on mondays"})

	report, err := s.Consolidate(ctx)
	if err != nil {
		t.Fatalf("consolidate: %v", err)
	}
	if report.Merged != 1 {
		t.Fatalf("expected 1 merged, got %d", report.Merged)
	}

	// Both constituents are gone, replaced by one synthesized record.
	for _, id := range []string{keeper.ID, dup.ID} {
		if _, err := s.Get(ctx, id); !IsNotFound(err) {
			t.Errorf("expected constituent %s removed, got %v", id, err)
		}
	}
	records, _ := s.List(ctx, ListParams{Type: model.TypeFact})
	var merged *model.Record
	for i := range records {
		if records[i].ID != other.ID {
			merged = &records[i]
		}
	}
	if merged == nil {
		t.Fatal("expected a merged record")
	}
	if merged.Content != keeper.Content {
		t.Errorf("expected keeper content retained, got %q", merged.Content)
	}
	if merged.Salience != 0.9 {
		t.Errorf("expected max salience 0.9, got %v", merged.Salience)
	}
	if merged.MetaString("source") != "standup" || merged.MetaString("channel") != "ops" {
		t.Error("expected metadata union from both constituents")
	}
	if _, ok := merged.Metadata["merged_from"]; !ok {
		t.Error("expected merged_from provenance")
	}

	// The unrelated record is untouched.
	if _, err := s.Get(ctx, other.ID); err != nil {
		t.Errorf("unrelated record should survive: %v", err)
	}
}

func TestConsolidateRepointsEdges(t *testing.T) {
	ctx := context.Background()
	s, emb := newTestStore(t)

	shared := vec(1, 0, 0, 0)
	emb.set("auth tokens rotate every hour", shared)
	emb.set("tokens for auth rotate hourly", shared)
	emb.set("session cookies last a week", vec(0, 1, 0, 0))

	a, _ := s.Put(ctx, PutParams{Content: "auth tokens rotate every hour", Salience: 0.8})
	b, _ := s.Put(ctx, PutParams{Content: "tokens for auth rotate hourly", Salience: 0.5})
	outside, _ := s.Put(ctx, PutParams{Content: "session cookies last a week"})
	s.Link(ctx, outside.ID, b.ID, model.RelExtends)

	if _, err := s.Consolidate(ctx); err != nil {
		t.Fatalf("consolidate: %v", err)
	}

	edges, _ := s.Edges(ctx, outside.ID)
	if len(edges) != 1 {
		t.Fatalf("expected edge re-pointed, got %d edges", len(edges))
	}
	if edges[0].TargetID == a.ID || edges[0].TargetID == b.ID {
		t.Error("edge still references a merged-away constituent")
	}
}

func TestConsolidatePrunesStale(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	stale, _ := s.Put(ctx, PutParams{Content: "temporary note about a one-off errand", Salience: 0.1})
	backdate(t, s, stale.ID, time.Now().UTC().AddDate(0, 0, -45))

	// Same age and salience but accessed once: kept.
	touched, _ := s.Put(ctx, PutParams{Content: "another old note that was actually read", Salience: 0.1})
	backdate(t, s, touched.ID, time.Now().UTC().AddDate(0, 0, -45))
	setAccess(t, s, touched.ID, 1, time.Now().UTC().AddDate(0, 0, -40))

	// Young record below the floor: kept.
	young, _ := s.Put(ctx, PutParams{Content: "fresh low-salience note from this week", Salience: 0.1})

	report, err := s.Consolidate(ctx)
	if err != nil {
		t.Fatalf("consolidate: %v", err)
	}
	if report.Pruned != 1 {
		t.Fatalf("expected 1 pruned, got %d", report.Pruned)
	}
	if _, err := s.Get(ctx, stale.ID); !IsNotFound(err) {
		t.Error("expected stale record pruned")
	}
	for _, id := range []string{touched.ID, young.ID} {
		if _, err := s.Get(ctx, id); err != nil {
			t.Errorf("expected %s kept: %v", id, err)
		}
	}
}

func TestConsolidatePromotesHotRecords(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	hot, _ := s.Put(ctx, PutParams{Content: "the build cache lives on the shared runner"})
	setAccess(t, s, hot.ID, 5, time.Now().UTC())

	// Frequently accessed but long ago: stays archived.
	cold, _ := s.Put(ctx, PutParams{Content: "the old build cache was on local disk"})
	setAccess(t, s, cold.ID, 5, time.Now().UTC().AddDate(0, 0, -20))

	report, err := s.Consolidate(ctx)
	if err != nil {
		t.Fatalf("consolidate: %v", err)
	}
	if report.Promoted != 1 {
		t.Fatalf("expected 1 promoted, got %d", report.Promoted)
	}

	got, _ := s.Get(ctx, hot.ID)
	if got.Tier != model.TierActive {
		t.Errorf("expected hot record promoted to active, got %q", got.Tier)
	}
	stayed, _ := s.Get(ctx, cold.ID)
	if stayed.Tier != model.TierArchive {
		t.Errorf("expected cold record to stay archived, got %q", stayed.Tier)
	}
}

func TestConsolidateRespectsActiveCap(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	s.cfg.Consolidate.ActiveSoftCap = 2

	low, _ := s.Put(ctx, PutParams{Content: "active item number one with low weight", Tier: model.TierActive, Salience: 0.2})
	s.Put(ctx, PutParams{Content: "active item number two holding steady", Tier: model.TierActive, Salience: 0.6})

	strong, _ := s.Put(ctx, PutParams{Content: "frequently needed runbook for incident response", Salience: 0.9})
	setAccess(t, s, strong.ID, 4, time.Now().UTC())
	weak, _ := s.Put(ctx, PutParams{Content: "frequently read but minor changelog entry", Salience: 0.1})
	setAccess(t, s, weak.ID, 4, time.Now().UTC())

	report, err := s.Consolidate(ctx)
	if err != nil {
		t.Fatalf("consolidate: %v", err)
	}
	if report.Promoted != 1 || report.Demoted != 1 {
		t.Fatalf("expected 1 promoted and 1 demoted, got %+v", report)
	}

	promoted, _ := s.Get(ctx, strong.ID)
	if promoted.Tier != model.TierActive {
		t.Error("expected the high-salience candidate promoted")
	}
	demoted, _ := s.Get(ctx, low.ID)
	if demoted.Tier != model.TierArchive {
		t.Error("expected the lowest-salience active record demoted")
	}
	stayed, _ := s.Get(ctx, weak.ID)
	if stayed.Tier != model.TierArchive {
		t.Error("expected the weak candidate kept out by the cap")
	}

	active, _ := s.List(ctx, ListParams{Tier: model.TierActive})
	if len(active) != 2 {
		t.Errorf("expected active tier at the cap, got %d", len(active))
	}
}

func TestConsolidateIdempotent(t *testing.T) {
	ctx := context.Background()
	s, emb := newTestStore(t)

	shared := vec(1, 0, 0, 0)
	for i := 0; i < 3; i++ {
		content := fmt.Sprintf("variant %d of the same onboarding fact", i)
		emb.set(content, shared)
		s.Put(ctx, PutParams{Content: content, Salience: 0.5 + float64(i)*0.1})
	}
	stale, _ := s.Put(ctx, PutParams{Content: "abandoned thought from over a month ago", Salience: 0.1})
	backdate(t, s, stale.ID, time.Now().UTC().AddDate(0, 0, -60))

	first, err := s.Consolidate(ctx)
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}
	if first.Merged == 0 || first.Pruned == 0 {
		t.Fatalf("expected work in the first pass, got %+v", first)
	}

	second, err := s.Consolidate(ctx)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if second.Merged != 0 || second.Pruned != 0 || second.Promoted != 0 || second.Demoted != 0 {
		t.Errorf("expected empty second pass, got %+v", second)
	}
}
