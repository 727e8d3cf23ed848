package store

import (
	"context"
	"os"
)

// Stats is a point-in-time snapshot of store contents.
type Stats struct {
	DBPath            string         `json:"db_path"`
	DBSizeBytes       int64          `json:"db_size_bytes"`
	Records           int            `json:"records"`
	ByTier            map[string]int `json:"by_tier"`
	ByType            map[string]int `json:"by_type"`
	Edges             int            `json:"edges"`
	ByRelation        map[string]int `json:"by_relation"`
	IdentityKeys      int            `json:"identity_keys"`
	ActiveKeys        int            `json:"active_keys"`
	PendingEmbeddings int            `json:"pending_embeddings"`
}

// Stats reports record, edge, and context counts plus embedding backlog.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := &Stats{
		DBPath:     s.path,
		ByTier:     map[string]int{},
		ByType:     map[string]int{},
		ByRelation: map[string]int{},
	}
	if info, err := os.Stat(s.path); err == nil {
		st.DBSizeBytes = info.Size()
	}

	if err := s.countGroups(ctx, `SELECT tier, COUNT(*) FROM records GROUP BY tier`, st.ByTier); err != nil {
		return nil, err
	}
	if err := s.countGroups(ctx, `SELECT type, COUNT(*) FROM records GROUP BY type`, st.ByType); err != nil {
		return nil, err
	}
	if err := s.countGroups(ctx, `SELECT relation, COUNT(*) FROM record_edges GROUP BY relation`, st.ByRelation); err != nil {
		return nil, err
	}
	for _, n := range st.ByTier {
		st.Records += n
	}
	for _, n := range st.ByRelation {
		st.Edges += n
	}

	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM identity`)
	if err := row.Scan(&st.IdentityKeys); err != nil {
		return nil, err
	}
	row = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM active_context`)
	if err := row.Scan(&st.ActiveKeys); err != nil {
		return nil, err
	}
	row = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE embedding IS NULL`)
	if err := row.Scan(&st.PendingEmbeddings); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Store) countGroups(ctx context.Context, query string, dst map[string]int) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		dst[key] = n
	}
	return rows.Err()
}
