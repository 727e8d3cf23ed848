// Package surface predicts which stored records are relevant to a block of
// context text, without an explicit query. Entity mentions, semantic
// similarity, and temporal cues each contribute candidates at different
// confidence levels.
package surface

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/g1itchbot8888-del/agent-memory/internal/config"
	"github.com/g1itchbot8888-del/agent-memory/internal/extract"
	"github.com/g1itchbot8888-del/agent-memory/internal/model"
	"github.com/g1itchbot8888-del/agent-memory/internal/store"
)

// Surfaced is a record chosen for preloading, with the confidence and the
// reasons it was picked.
type Surfaced struct {
	model.Record
	Confidence float64  `json:"confidence"`
	Reasons    []string `json:"reasons"`
	Conflict   bool     `json:"conflict,omitempty"`
}

// Surfacer runs the prediction rules against a store.
type Surfacer struct {
	store *store.Store
	cfg   config.Config
	log   *slog.Logger
	now   func() time.Time
}

// New returns a Surfacer over the given store.
func New(st *store.Store, cfg config.Config, log *slog.Logger) *Surfacer {
	return &Surfacer{store: st, cfg: cfg, log: log, now: time.Now}
}

const perEntityLimit = 2

// Predict surfaces up to limit records relevant to context text. Empty
// text surfaces nothing. Each record carries every reason that matched it;
// the confidence is the strongest rule's, nudged by past recall learnings.
func (s *Surfacer) Predict(ctx context.Context, text string, limit int) ([]Surfaced, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}

	byID := map[string]*Surfaced{}
	var order []string

	note := func(rec model.Record, confidence float64, reason string) {
		if rec.IsLearning() {
			return
		}
		if cur, ok := byID[rec.ID]; ok {
			if confidence > cur.Confidence {
				cur.Confidence = confidence
			}
			cur.Reasons = append(cur.Reasons, reason)
			return
		}
		byID[rec.ID] = &Surfaced{Record: rec, Confidence: confidence, Reasons: []string{reason}}
		order = append(order, rec.ID)
	}

	// Entity mentions carry the strongest signal.
	for _, ent := range extract.Entities(text) {
		matches, err := s.store.FindByEntity(ctx, ent.Text, perEntityLimit)
		if err != nil {
			return nil, err
		}
		for _, rec := range matches {
			note(rec, s.cfg.Surface.EntityConfidence,
				fmt.Sprintf("mentions %s: %q", ent.Kind, ent.Text))
		}
	}

	// Semantic similarity against the whole context block. Resolution is
	// skipped so the scaled score still describes the scored record.
	hits, err := s.store.Search(ctx, store.SearchParams{
		Query:     text,
		Limit:     limit + perEntityLimit,
		NoResolve: true,
	})
	if err != nil {
		return nil, err
	}
	floor := s.cfg.Search.Floor
	for _, hit := range hits {
		scaled := s.cfg.Surface.SemanticConfidence * (hit.Score - floor) / (1 - floor)
		if scaled <= 0 {
			continue
		}
		note(hit.Record, scaled, "semantically relevant to context")
	}

	// Temporal cues pull in recent records at low confidence.
	if tr := ExtractTemporal(text, s.now().UTC()); tr != nil {
		recent, err := s.store.ListByTimeRange(ctx, tr.From, tr.To, limit)
		if err != nil {
			return nil, err
		}
		for _, rec := range recent {
			note(rec, s.cfg.Surface.TemporalConfidence,
				fmt.Sprintf("touched %s", tr.Phrase))
		}
	}

	results := make([]Surfaced, 0, len(order))
	for _, id := range order {
		results = append(results, *byID[id])
	}

	results, err = s.applyLearningBias(ctx, text, results)
	if err != nil {
		return nil, err
	}

	filtered := results[:0]
	for _, r := range results {
		if r.Confidence >= s.cfg.Surface.MinConfidence {
			filtered = append(filtered, r)
		}
	}
	results = filtered

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Confidence != results[j].Confidence {
			return results[i].Confidence > results[j].Confidence
		}
		return results[i].UpdatedAt.After(results[j].UpdatedAt)
	})
	if len(results) > limit {
		results = results[:limit]
	}

	for i := range results {
		conflicts, err := s.store.ConflictsFor(ctx, results[i].ID)
		if err != nil {
			s.log.Warn("conflict check failed", "id", results[i].ID, "err", err)
			continue
		}
		if len(conflicts) > 0 {
			results[i].Conflict = true
		}
	}
	return results, nil
}

// applyLearningBias nudges confidence by past retrieval outcomes: records
// that have produced recall hits get a boost, records behind recall misses
// get docked.
func (s *Surfacer) applyLearningBias(ctx context.Context, text string, results []Surfaced) ([]Surfaced, error) {
	if len(results) == 0 || s.cfg.Surface.LearningBias == 0 {
		return results, nil
	}
	hitLearnings, err := s.store.RelevantLearnings(ctx, text, model.TypeRecallHit, 10)
	if err != nil {
		return nil, err
	}
	missLearnings, err := s.store.RelevantLearnings(ctx, text, model.TypeRecallMiss, 10)
	if err != nil {
		return nil, err
	}
	if len(hitLearnings) == 0 && len(missLearnings) == 0 {
		return results, nil
	}

	hitIDs := learningSubjects(hitLearnings)
	missIDs := learningSubjects(missLearnings)
	for i := range results {
		if hitIDs[results[i].ID] {
			results[i].Confidence += s.cfg.Surface.LearningBias
			results[i].Reasons = append(results[i].Reasons, "past recall hit")
		}
		if missIDs[results[i].ID] {
			results[i].Confidence -= s.cfg.Surface.LearningBias
		}
		if results[i].Confidence > 1 {
			results[i].Confidence = 1
		}
	}
	return results, nil
}

// learningSubjects collects the record ids a set of learnings refer to via
// their record_id metadata.
func learningSubjects(learnings []model.Record) map[string]bool {
	ids := map[string]bool{}
	for _, l := range learnings {
		if id := l.MetaString("record_id"); id != "" {
			ids[id] = true
		}
	}
	return ids
}

// Format renders surfaced records as markdown for context injection.
func Format(results []Surfaced) string {
	if len(results) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("# Surfaced Context\n\n")
	for i, r := range results {
		fmt.Fprintf(&b, "%d. **[%s]** %s\n", i+1, r.Type, r.Content)
		fmt.Fprintf(&b, "   - reason: %s\n", strings.Join(r.Reasons, "; "))
		if r.Conflict {
			b.WriteString("   - may conflict with another stored record\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}
