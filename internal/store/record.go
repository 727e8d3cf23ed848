package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/g1itchbot8888-del/agent-memory/internal/embedding"
	"github.com/g1itchbot8888-del/agent-memory/internal/model"
)

// PutParams holds parameters for storing a record.
type PutParams struct {
	Content  string
	Tier     model.Tier // defaults to archive
	Type     string     // defaults to fact
	Salience float64    // <= 0 means use the type default
	Metadata map[string]any
}

// Put validates and persists a new record, then computes its embedding
// outside the write section and attaches it. A provider failure leaves the
// record persisted with a null vector, flagged for lazy re-embedding.
func (s *Store) Put(ctx context.Context, p PutParams) (*model.Record, error) {
	if strings.TrimSpace(p.Content) == "" {
		return nil, &ValidationError{Field: "content", Reason: "must not be empty"}
	}
	tier := p.Tier
	if tier == "" {
		tier = model.TierArchive
	}
	if !model.ValidTiers[tier] {
		return nil, &ValidationError{Field: "tier", Reason: fmt.Sprintf("unknown tier %q", tier)}
	}
	recType := p.Type
	if recType == "" {
		recType = model.TypeFact
	}
	if !model.ValidTypes[recType] {
		return nil, &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown type %q", recType)}
	}
	salience := p.Salience
	if salience <= 0 {
		salience = model.DefaultSalience(recType)
	}
	if salience > 1 {
		salience = 1
	}

	ts := now()
	rec := model.Record{
		ID:          s.newID(),
		Content:     strings.TrimSpace(p.Content),
		Tier:        tier,
		Type:        recType,
		Salience:    salience,
		ContentHash: contentHash(strings.TrimSpace(p.Content)),
		CreatedAt:   ts,
		UpdatedAt:   ts,
		Metadata:    p.Metadata,
	}

	s.mu.Lock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO records (id, content, tier, type, salience, content_hash,
		 created_at, updated_at, access_count, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		rec.ID, rec.Content, string(rec.Tier), rec.Type, rec.Salience, rec.ContentHash,
		formatTime(ts), formatTime(ts), marshalMetadata(rec.Metadata))
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("insert record: %w", err)
	}

	rec.Embedding = s.embedAndAttach(ctx, rec.ID, rec.Content, rec.ContentHash)
	return &rec, nil
}

// embedAndAttach computes a vector for content and attaches it to the record
// in a short atomic update. The attach is keyed on the content hash so a
// concurrent content change discards the stale vector. Returns nil when the
// provider is unavailable or disabled.
func (s *Store) embedAndAttach(ctx context.Context, id, content, hash string) []float32 {
	if s.embedder == nil {
		return nil
	}
	vec, err := s.embedder.Embed(ctx, content)
	if err != nil {
		if errors.Is(err, embedding.ErrProviderUnavailable) {
			s.log.Warn("embedding unavailable, record persisted without vector",
				"id", id, "err", err)
			return nil
		}
		s.log.Warn("embedding failed", "id", id, "err", err)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx,
		`UPDATE records SET embedding = ? WHERE id = ? AND content_hash = ?`,
		encodeVector(vec), id, hash)
	if err != nil {
		s.log.Warn("attach embedding", "id", id, "err", err)
		return nil
	}
	return vec
}

// Get retrieves a record snapshot by id and bumps its access tracking.
func (s *Store) Get(ctx context.Context, id string) (*model.Record, error) {
	rec, err := s.getRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.Touch(ctx, id); err != nil {
		return nil, err
	}
	return rec, nil
}

// getRecord reads a record without touching access tracking.
func (s *Store) getRecord(ctx context.Context, id string) (*model.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// UpdateFields holds the mutable fields for Update. Nil pointers are left
// unchanged; Metadata, when non-nil, is merged key-by-key into the existing
// metadata.
type UpdateFields struct {
	Content  *string
	Tier     *model.Tier
	Type     *string
	Salience *float64
	Metadata map[string]any
}

// Update mutates a record and bumps updated_at. A content change invalidates
// the cached vector; the replacement is computed outside the write section.
func (s *Store) Update(ctx context.Context, id string, f UpdateFields) (*model.Record, error) {
	rec, err := s.getRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	if f.Tier != nil && !model.ValidTiers[*f.Tier] {
		return nil, &ValidationError{Field: "tier", Reason: fmt.Sprintf("unknown tier %q", *f.Tier)}
	}
	if f.Type != nil && !model.ValidTypes[*f.Type] {
		return nil, &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown type %q", *f.Type)}
	}
	if f.Content != nil && strings.TrimSpace(*f.Content) == "" {
		return nil, &ValidationError{Field: "content", Reason: "must not be empty"}
	}

	contentChanged := false
	if f.Content != nil {
		c := strings.TrimSpace(*f.Content)
		if c != rec.Content {
			rec.Content = c
			rec.ContentHash = contentHash(c)
			rec.Embedding = nil
			contentChanged = true
		}
	}
	if f.Tier != nil {
		rec.Tier = *f.Tier
	}
	if f.Type != nil {
		rec.Type = *f.Type
	}
	if f.Salience != nil {
		sal := *f.Salience
		if sal < 0 {
			sal = 0
		}
		if sal > 1 {
			sal = 1
		}
		rec.Salience = sal
	}
	if f.Metadata != nil {
		if rec.Metadata == nil {
			rec.Metadata = map[string]any{}
		}
		for k, v := range f.Metadata {
			rec.Metadata[k] = v
		}
	}
	rec.UpdatedAt = now()

	var emb any
	if rec.Embedding != nil {
		emb = encodeVector(rec.Embedding)
	}

	s.mu.Lock()
	res, err := s.db.ExecContext(ctx,
		`UPDATE records SET content = ?, tier = ?, type = ?, salience = ?,
		 embedding = ?, content_hash = ?, updated_at = ?, metadata = ?
		 WHERE id = ?`,
		rec.Content, string(rec.Tier), rec.Type, rec.Salience,
		emb, rec.ContentHash, formatTime(rec.UpdatedAt), marshalMetadata(rec.Metadata), id)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("update record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, &NotFoundError{ID: id}
	}

	if contentChanged {
		rec.Embedding = s.embedAndAttach(ctx, id, rec.Content, rec.ContentHash)
	}
	return rec, nil
}

// Touch bumps accessed_at and the access counter. Called by every
// successful read path.
func (s *Store) Touch(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx,
		`UPDATE records SET accessed_at = ?, access_count = access_count + 1 WHERE id = ?`,
		formatTime(now()), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &NotFoundError{ID: id}
	}
	return nil
}

// Delete removes a record and any edges that reference it.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM record_edges WHERE source_id = ? OR target_id = ?`, id, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &NotFoundError{ID: id}
	}
	return tx.Commit()
}

// ListParams holds filters for List.
type ListParams struct {
	Tier        model.Tier
	Type        string
	MinSalience float64
	Limit       int
}

// List returns record snapshots matching the filters, most recently updated
// first. List does not bump access tracking.
func (s *Store) List(ctx context.Context, p ListParams) ([]model.Record, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 50
	}

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
	args = append(args, limit)

	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE `+strings.Join(where, " AND ")+`
		 ORDER BY updated_at DESC LIMIT ?`, args...)
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

// ListByTimeRange returns records created or updated inside [from, to],
// newest first. Used by the surfacer for temporal matches.
func (s *Store) ListByTimeRange(ctx context.Context, from, to time.Time, limit int) ([]model.Record, error) {
	if limit <= 0 {
		limit = 10
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM records
		 WHERE (created_at >= ? AND created_at <= ?)
		    OR (updated_at >= ? AND updated_at <= ?)
		 ORDER BY created_at DESC LIMIT ?`,
		formatTime(from), formatTime(to), formatTime(from), formatTime(to), limit)
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

// FindByEntity returns records whose content or entity metadata mention the
// term, newest first. Matching is case-insensitive substring.
func (s *Store) FindByEntity(ctx context.Context, term string, limit int) ([]model.Record, error) {
	if strings.TrimSpace(term) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}
	pattern := "%" + strings.ToLower(term) + "%"

	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM records
		 WHERE lower(content) LIKE ? OR lower(coalesce(metadata, '')) LIKE ?
		 ORDER BY updated_at DESC LIMIT ?`,
		pattern, pattern, limit)
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
