package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/g1itchbot8888-del/agent-memory/internal/model"
)

// Snapshot is the portable JSON form of a store: every record with its
// vector, both context tables, and the relation graph.
type Snapshot struct {
	Version  int                    `json:"version"`
	Records  []model.Record         `json:"records"`
	Identity map[string]model.Entry `json:"identity"`
	Active   map[string]model.Entry `json:"active"`
	Edges    []model.Edge           `json:"edges"`
}

const snapshotVersion = 1

// Export writes the full store contents as JSON. Embeddings are carried so
// an import does not need a provider round-trip.
func (s *Store) Export(ctx context.Context, w io.Writer) error {
	records, err := s.candidates(ctx, SearchParams{})
	if err != nil {
		return err
	}

	identity, err := s.Identity(ctx)
	if err != nil {
		return err
	}
	active, err := s.Active(ctx)
	if err != nil {
		return err
	}

	s.mu.RLock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_id, target_id, relation, created_at FROM record_edges`)
	if err != nil {
		s.mu.RUnlock()
		return err
	}
	edges, err := scanEdges(rows)
	rows.Close()
	s.mu.RUnlock()
	if err != nil {
		return err
	}

	snap := Snapshot{
		Version:  snapshotVersion,
		Records:  records,
		Identity: identity,
		Active:   active,
		Edges:    edges,
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

// Import loads a snapshot produced by Export. Existing rows with the same
// ids or keys are replaced; everything else is left in place.
func (s *Store) Import(ctx context.Context, r io.Reader) (int, error) {
	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return 0, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return 0, fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	for _, rec := range snap.Records {
		if rec.ID == "" || rec.Content == "" {
			return 0, fmt.Errorf("snapshot record missing id or content")
		}
		var accessed *string
		if rec.AccessedAt != nil {
			t := formatTime(*rec.AccessedAt)
			accessed = &t
		}
		hash := rec.ContentHash
		if hash == "" {
			hash = contentHash(rec.Content)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO records (id, content, tier, type, salience, embedding,
			 content_hash, created_at, updated_at, accessed_at, access_count, metadata)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.Content, string(rec.Tier), rec.Type, rec.Salience,
			encodeVector(rec.Embedding), hash,
			formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt), accessed,
			rec.AccessCount, marshalMetadata(rec.Metadata))
		if err != nil {
			return 0, fmt.Errorf("import record %s: %w", rec.ID, err)
		}
	}

	for k, e := range snap.Identity {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO identity (key, value, updated_at) VALUES (?, ?, ?)`,
			k, e.Value, formatTime(e.UpdatedAt)); err != nil {
			return 0, err
		}
	}
	for k, e := range snap.Active {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO active_context (key, value, updated_at) VALUES (?, ?, ?)`,
			k, e.Value, formatTime(e.UpdatedAt)); err != nil {
			return 0, err
		}
	}
	for _, e := range snap.Edges {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO record_edges (source_id, target_id, relation, created_at)
			 VALUES (?, ?, ?, ?)`,
			e.SourceID, e.TargetID, string(e.Relation), formatTime(e.CreatedAt)); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(snap.Records), nil
}
