package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/g1itchbot8888-del/agent-memory/internal/embedding"
	"github.com/g1itchbot8888-del/agent-memory/internal/model"
)

// Link creates a directed edge between two records. Self-links and unknown
// ids are validation errors. Linking is idempotent per (source, target,
// relation).
func (s *Store) Link(ctx context.Context, sourceID, targetID string, rel model.Relation) (*model.Edge, error) {
	if !model.ValidRelations[rel] {
		return nil, &ValidationError{Field: "relation", Reason: fmt.Sprintf("unknown relation %q", rel)}
	}
	if sourceID == targetID {
		return nil, &ValidationError{Field: "target_id", Reason: "self-referential edge"}
	}
	for _, id := range []string{sourceID, targetID} {
		if _, err := s.getRecord(ctx, id); err != nil {
			if IsNotFound(err) {
				return nil, &ValidationError{Field: "id", Reason: fmt.Sprintf("unknown record %s", id)}
			}
			return nil, err
		}
	}

	edge := model.Edge{SourceID: sourceID, TargetID: targetID, Relation: rel, CreatedAt: now()}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO record_edges (source_id, target_id, relation, created_at)
		 VALUES (?, ?, ?, ?)`,
		sourceID, targetID, string(rel), formatTime(edge.CreatedAt))
	if err != nil {
		return nil, err
	}
	return &edge, nil
}

// Unlink removes an edge. Removing a missing edge is a no-op.
func (s *Store) Unlink(ctx context.Context, sourceID, targetID string, rel model.Relation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM record_edges WHERE source_id = ? AND target_id = ? AND relation = ?`,
		sourceID, targetID, string(rel))
	return err
}

// Neighbors returns the ids reachable from id by one outgoing edge,
// optionally restricted to one relation kind.
func (s *Store) Neighbors(ctx context.Context, id string, rel model.Relation) ([]string, error) {
	where := "source_id = ?"
	args := []interface{}{id}
	if rel != "" {
		where += " AND relation = ?"
		args = append(args, string(rel))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT target_id FROM record_edges WHERE `+where+` ORDER BY created_at`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		ids = append(ids, t)
	}
	return ids, rows.Err()
}

// Edges returns all edges touching a record, in either direction.
func (s *Store) Edges(ctx context.Context, id string) ([]model.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_id, target_id, relation, created_at FROM record_edges
		 WHERE source_id = ? OR target_id = ?`, id, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEdges(rows)
}

func scanEdges(rows *sql.Rows) ([]model.Edge, error) {
	var edges []model.Edge
	for rows.Next() {
		var e model.Edge
		var rel, created string
		if err := rows.Scan(&e.SourceID, &e.TargetID, &rel, &created); err != nil {
			return nil, err
		}
		e.Relation = model.Relation(rel)
		e.CreatedAt = parseTime(created)
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// Resolve follows outgoing updates edges from id to the live record: the
// first node with no further outgoing updates edge. Traversal tracks
// visited ids, so a cycle terminates in at most cycle-length steps; in that
// case the original record is returned with an ambiguous_resolution marker
// on the snapshot (nothing is persisted). Resolve does not bump access
// tracking; the read paths that call it do.
func (s *Store) Resolve(ctx context.Context, id string) (*model.Record, error) {
	original, err := s.getRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	visited := map[string]bool{id: true}
	current := original
	for {
		next, err := s.newestUpdatesTarget(ctx, current.ID)
		if err != nil {
			return nil, err
		}
		if next == "" {
			return current, nil
		}
		if visited[next] {
			// Cycle: resolution is ambiguous. Flag the original snapshot.
			if original.Metadata == nil {
				original.Metadata = map[string]any{}
			}
			original.Metadata["ambiguous_resolution"] = true
			return original, nil
		}
		visited[next] = true
		nextRec, err := s.getRecord(ctx, next)
		if err != nil {
			if IsNotFound(err) {
				// Dangling edge; stop at the last reachable record.
				return current, nil
			}
			return nil, err
		}
		current = nextRec
	}
}

// newestUpdatesTarget returns the most recent outgoing updates target of id,
// or "" when there is none.
func (s *Store) newestUpdatesTarget(ctx context.Context, id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var target string
	err := s.db.QueryRowContext(ctx,
		`SELECT target_id FROM record_edges
		 WHERE source_id = ? AND relation = ?
		 ORDER BY created_at DESC LIMIT 1`, id, string(model.RelUpdates)).Scan(&target)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return target, nil
}

// Related is auxiliary context attached by Enrich.
type Related struct {
	Record   model.Record   `json:"record"`
	Relation model.Relation `json:"relation"`
}

// Enriched is a record with its extends/derives context.
type Enriched struct {
	model.Record
	Context []Related `json:"context,omitempty"`
}

// Enrich attaches incoming extends/derives records as auxiliary context to
// each input, without replacing the input record itself.
func (s *Store) Enrich(ctx context.Context, records []model.Record) ([]Enriched, error) {
	out := make([]Enriched, 0, len(records))
	for _, rec := range records {
		e := Enriched{Record: rec}
		for _, rel := range []model.Relation{model.RelExtends, model.RelDerives} {
			sources, err := s.incomingSources(ctx, rec.ID, rel)
			if err != nil {
				return nil, err
			}
			for _, srcID := range sources {
				src, err := s.getRecord(ctx, srcID)
				if err != nil {
					continue
				}
				e.Context = append(e.Context, Related{Record: *src, Relation: rel})
			}
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) incomingSources(ctx context.Context, id string, rel model.Relation) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_id FROM record_edges WHERE target_id = ? AND relation = ?
		 ORDER BY created_at`, id, string(rel))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var src string
		if err := rows.Scan(&src); err != nil {
			return nil, err
		}
		ids = append(ids, src)
	}
	return ids, rows.Err()
}

// ConflictsFor returns ids of records that likely contradict the given
// record: embedding similarity above the conflict threshold, overlapping
// entity metadata, and no updates/extends edge between the pair in either
// direction. A heuristic signal for callers, never an automatic resolution.
func (s *Store) ConflictsFor(ctx context.Context, id string) ([]string, error) {
	rec, err := s.getRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Embedding == nil {
		return nil, nil
	}
	entities := entitySet(rec)
	if len(entities) == 0 {
		return nil, nil
	}

	others, err := s.candidates(ctx, SearchParams{})
	if err != nil {
		return nil, err
	}

	var conflicts []string
	for i := range others {
		other := &others[i]
		if other.ID == id || other.Embedding == nil {
			continue
		}
		if embedding.CosineSimilarity(rec.Embedding, other.Embedding) < s.cfg.Surface.ConflictThreshold {
			continue
		}
		if !overlaps(entities, entitySet(other)) {
			continue
		}
		linked, err := s.hasResolutionEdge(ctx, id, other.ID)
		if err != nil {
			return nil, err
		}
		if linked {
			continue
		}
		conflicts = append(conflicts, other.ID)
	}
	return conflicts, nil
}

// hasResolutionEdge reports whether an updates or extends edge connects the
// two records in either direction.
func (s *Store) hasResolutionEdge(ctx context.Context, a, b string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM record_edges
		 WHERE ((source_id = ? AND target_id = ?) OR (source_id = ? AND target_id = ?))
		   AND relation IN (?, ?)`,
		a, b, b, a, string(model.RelUpdates), string(model.RelExtends)).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// entitySet extracts the lowercase entity tags from record metadata.
func entitySet(r *model.Record) map[string]bool {
	set := map[string]bool{}
	if r.Metadata == nil {
		return set
	}
	switch v := r.Metadata["entities"].(type) {
	case []any:
		for _, e := range v {
			if s, ok := e.(string); ok && s != "" {
				set[strings.ToLower(s)] = true
			}
		}
	case []string:
		for _, e := range v {
			if e != "" {
				set[strings.ToLower(e)] = true
			}
		}
	case string:
		for _, e := range strings.Split(v, ",") {
			e = strings.TrimSpace(e)
			if e != "" {
				set[strings.ToLower(e)] = true
			}
		}
	}
	return set
}

func overlaps(a, b map[string]bool) bool {
	for k := range a {
		if b[k] {
			return true
		}
	}
	return false
}
