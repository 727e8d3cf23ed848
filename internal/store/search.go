package store

import (
	"context"
	"sort"
	"strings"

	"github.com/g1itchbot8888-del/agent-memory/internal/embedding"
	"github.com/g1itchbot8888-del/agent-memory/internal/model"
)

// SearchParams holds parameters for semantic search.
type SearchParams struct {
	Query       string
	Limit       int
	Tier        model.Tier // optional scope
	Type        string     // optional scope
	MinSalience float64

	// NoResolve disables updates-edge resolution of hits. Used internally
	// when the caller wants the raw matched record.
	NoResolve bool
}

// SearchResult is a record snapshot with its similarity score in [0,1].
type SearchResult struct {
	model.Record
	Score float64 `json:"score"`
}

// Search embeds the query and ranks candidate records by cosine similarity.
// Similarity is the primary sort key and updated_at descending breaks ties.
// Results below the configured floor are excluded. Hits superseded via an
// updates edge are resolved to their live record. Each returned record's
// access tracking is bumped.
//
// Without an embedding provider the query falls back to case-insensitive
// substring matching at a fixed mid score.
func (s *Store) Search(ctx context.Context, p SearchParams) ([]SearchResult, error) {
	if strings.TrimSpace(p.Query) == "" {
		return nil, nil
	}
	limit := p.Limit
	if limit <= 0 {
		limit = 5
	}

	var queryVec []float32
	if s.embedder != nil {
		v, err := s.embedder.Embed(ctx, p.Query)
		if err != nil {
			// Retries are exhausted inside the provider wrapper; degrade to
			// the keyword path rather than failing the read.
			s.log.Warn("query embedding failed, falling back to keyword search", "err", err)
		} else {
			queryVec = v
		}
	}

	candidates, err := s.candidates(ctx, p)
	if err != nil {
		return nil, err
	}

	var results []SearchResult
	if queryVec != nil {
		for i := range candidates {
			rec := &candidates[i]
			if rec.Embedding == nil {
				// Lazy re-embed on first touch after the vector went stale
				// or the provider was down at write time.
				rec.Embedding = s.embedAndAttach(ctx, rec.ID, rec.Content, rec.ContentHash)
				if rec.Embedding == nil {
					continue
				}
			}
			score := embedding.CosineSimilarity(queryVec, rec.Embedding)
			if score < s.cfg.Search.Floor {
				continue
			}
			results = append(results, SearchResult{Record: *rec, Score: score})
		}
	} else {
		needle := strings.ToLower(p.Query)
		for i := range candidates {
			if strings.Contains(strings.ToLower(candidates[i].Content), needle) {
				results = append(results, SearchResult{Record: candidates[i], Score: 0.5})
			}
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].UpdatedAt.After(results[j].UpdatedAt)
	})
	if len(results) > limit {
		results = results[:limit]
	}

	if !p.NoResolve {
		results = s.resolveResults(ctx, results)
	}

	for i := range results {
		if err := s.Touch(ctx, results[i].ID); err != nil && !IsNotFound(err) {
			return nil, err
		}
	}
	return results, nil
}

// candidates loads the pre-filtered candidate set for a search.
func (s *Store) candidates(ctx context.Context, p SearchParams) ([]model.Record, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if p.Tier != "" {
		where = append(where, "tier = ?")
		args = append(args, string(p.Tier))
	}
	if p.Type != "" {
		where = append(where, "type = ?")
		args = append(args, p.Type)
	}
	if p.MinSalience > 0 {
		where = append(where, "salience >= ?")
		args = append(args, p.MinSalience)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE `+strings.Join(where, " AND "), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// resolveResults replaces superseded hits with their live record, keeping
// the hit's score and dropping duplicates that resolve to the same id.
func (s *Store) resolveResults(ctx context.Context, results []SearchResult) []SearchResult {
	out := results[:0]
	seen := map[string]bool{}
	for _, r := range results {
		live, err := s.Resolve(ctx, r.ID)
		if err != nil {
			out = append(out, r)
			continue
		}
		if seen[live.ID] {
			continue
		}
		seen[live.ID] = true
		out = append(out, SearchResult{Record: *live, Score: r.Score})
	}
	return out
}
