package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/g1itchbot8888-del/agent-memory/internal/model"
)

// SetIdentity stores an identity attribute, overwriting in place. Identity
// entries are always loaded, never embedded, and never pruned.
func (s *Store) SetIdentity(ctx context.Context, key, value string) error {
	return s.setEntry(ctx, "identity", key, value)
}

// Identity returns all identity entries keyed by attribute.
func (s *Store) Identity(ctx context.Context) (map[string]model.Entry, error) {
	return s.entries(ctx, "identity")
}

// SetActive stores an active-context value, overwriting in place.
func (s *Store) SetActive(ctx context.Context, key, value string) error {
	return s.setEntry(ctx, "active_context", key, value)
}

// Active returns all active-context entries keyed by name.
func (s *Store) Active(ctx context.Context) (map[string]model.Entry, error) {
	return s.entries(ctx, "active_context")
}

func (s *Store) setEntry(ctx context.Context, table, key, value string) error {
	if strings.TrimSpace(key) == "" {
		return &ValidationError{Field: "key", Reason: "must not be empty"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO `+table+` (key, value, updated_at) VALUES (?, ?, ?)`,
		key, value, formatTime(now()))
	return err
}

func (s *Store) entries(ctx context.Context, table string) (map[string]model.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `SELECT key, value, updated_at FROM `+table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := map[string]model.Entry{}
	for rows.Next() {
		var e model.Entry
		var updated string
		if err := rows.Scan(&e.Key, &e.Value, &updated); err != nil {
			return nil, err
		}
		e.UpdatedAt = parseTime(updated)
		entries[e.Key] = e
	}
	return entries, rows.Err()
}

// StartupContext renders identity and active context as the text block
// loaded at session start.
func (s *Store) StartupContext(ctx context.Context) (string, error) {
	identity, err := s.Identity(ctx)
	if err != nil {
		return "", err
	}
	active, err := s.Active(ctx)
	if err != nil {
		return "", err
	}

	var parts []string
	if len(identity) > 0 {
		lines := []string{"# Identity"}
		for _, key := range sortedKeys(identity) {
			lines = append(lines, fmt.Sprintf("- %s: %s", key, identity[key].Value))
		}
		parts = append(parts, strings.Join(lines, "\n"))
	}
	if len(active) > 0 {
		lines := []string{"# Active Context"}
		for _, key := range sortedKeys(active) {
			lines = append(lines, "## "+key, active[key].Value)
		}
		parts = append(parts, strings.Join(lines, "\n"))
	}

	return strings.Join(parts, "\n\n"), nil
}

func sortedKeys(m map[string]model.Entry) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
