package store

import (
	"context"
	"sort"
	"strings"

	"github.com/g1itchbot8888-del/agent-memory/internal/model"
)

// AddLearning records an interaction outcome as a first-class record so
// later retrieval can be biased by it. kind must be one of the learning
// types (recall_hit, recall_miss, correction, insight, error).
func (s *Store) AddLearning(ctx context.Context, kind, trigger, lesson, contextText string, meta map[string]any) (*model.Record, error) {
	if !model.LearningTypes[kind] {
		return nil, &ValidationError{Field: "kind", Reason: "unknown learning type: " + kind}
	}
	if strings.TrimSpace(lesson) == "" {
		return nil, &ValidationError{Field: "lesson", Reason: "must not be empty"}
	}

	merged := map[string]any{}
	for k, v := range meta {
		merged[k] = v
	}
	if trigger != "" {
		merged["trigger"] = trigger
	}
	if contextText != "" {
		merged["context"] = contextText
	}
	merged["times_applied"] = 0

	return s.Put(ctx, PutParams{
		Content:  lesson,
		Tier:     model.TierArchive,
		Type:     kind,
		Metadata: merged,
	})
}

// RelevantLearnings returns past learnings whose trigger or lesson text
// overlaps the given text, most useful first. kind narrows to one learning
// type; empty matches all learning types.
func (s *Store) RelevantLearnings(ctx context.Context, text, kind string, limit int) ([]model.Record, error) {
	if limit <= 0 {
		limit = 5
	}
	terms := learningTerms(text)
	if len(terms) == 0 {
		return nil, nil
	}

	var kinds []string
	if kind != "" {
		if !model.LearningTypes[kind] {
			return nil, &ValidationError{Field: "kind", Reason: "unknown learning type: " + kind}
		}
		kinds = []string{kind}
	} else {
		for k := range model.LearningTypes {
			kinds = append(kinds, k)
		}
	}

	s.mu.RLock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE type IN (`+placeholders(len(kinds))+`)`,
		idArgs(kinds)...)
	if err != nil {
		s.mu.RUnlock()
		return nil, err
	}
	var candidates []model.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			rows.Close()
			s.mu.RUnlock()
			return nil, err
		}
		candidates = append(candidates, r)
	}
	rows.Close()
	s.mu.RUnlock()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	type scored struct {
		rec   model.Record
		score int
	}
	var matched []scored
	for _, r := range candidates {
		// Insight and error memories from ordinary capture share type names
		// with learnings; only actual learnings count here.
		if !r.IsLearning() {
			continue
		}
		haystack := strings.ToLower(r.Content + " " + r.MetaString("trigger") + " " + r.MetaString("context"))
		n := 0
		for _, t := range terms {
			if strings.Contains(haystack, t) {
				n++
			}
		}
		if n > 0 {
			matched = append(matched, scored{rec: r, score: n})
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].score != matched[j].score {
			return matched[i].score > matched[j].score
		}
		return matched[i].rec.UpdatedAt.After(matched[j].rec.UpdatedAt)
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}

	out := make([]model.Record, len(matched))
	for i, m := range matched {
		out[i] = m.rec
	}
	return out, nil
}

// MarkApplied increments a learning's times_applied counter.
func (s *Store) MarkApplied(ctx context.Context, id string) error {
	rec, err := s.getRecord(ctx, id)
	if err != nil {
		return err
	}
	if !rec.IsLearning() {
		return &ValidationError{Field: "id", Reason: "record is not a learning"}
	}
	applied := 0
	if v, ok := rec.Metadata["times_applied"]; ok {
		switch n := v.(type) {
		case float64:
			applied = int(n)
		case int:
			applied = n
		}
	}
	meta := map[string]any{"times_applied": applied + 1}
	_, err = s.Update(ctx, id, UpdateFields{Metadata: meta})
	return err
}

// learningTerms lowercases and splits the text, dropping words too short to
// discriminate.
func learningTerms(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	var terms []string
	seen := map[string]bool{}
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?\"'()[]")
		if len(f) < 3 || seen[f] {
			continue
		}
		seen[f] = true
		terms = append(terms, f)
	}
	return terms
}
