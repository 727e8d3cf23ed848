// Package store implements the tiered memory engine: record storage,
// semantic search, graph relations, and consolidation over one SQLite
// database. A single Store owns all records, identity/active entries, and
// edges for its database; callers receive value snapshots.
package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/g1itchbot8888-del/agent-memory/internal/config"
	"github.com/g1itchbot8888-del/agent-memory/internal/embedding"
	"github.com/g1itchbot8888-del/agent-memory/internal/model"
)

// Store is the SQLite-backed memory engine.
//
// Concurrency model: mu is the process-wide write section. All mutating
// operations hold the write lock; reads hold the read lock and see committed
// per-record state only. Embedding calls never happen inside the write
// section — vectors are computed first, then attached in a short final
// update keyed on the content hash.
type Store struct {
	db        *sql.DB
	mu        sync.RWMutex
	entropyMu sync.Mutex
	entropy   *rand.Rand
	embedder  embedding.Embedder // nil when embeddings are disabled
	cfg       config.Config
	log       *slog.Logger

	path string
}

// New opens or creates the database at cfg.Store.Path. The embedder may be
// nil, in which case search falls back to substring matching and records are
// persisted without vectors.
func New(cfg config.Config, embedder embedding.Embedder, log *slog.Logger) (*Store, error) {
	dbPath := cfg.Store.Path
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &Store{
		db:       db,
		entropy:  rand.New(rand.NewSource(time.Now().UnixNano())),
		embedder: embedder,
		cfg:      cfg,
		log:      log,
		path:     dbPath,
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) newID() string {
	s.entropyMu.Lock()
	defer s.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		id           TEXT PRIMARY KEY,
		content      TEXT NOT NULL,
		tier         TEXT NOT NULL DEFAULT 'archive',
		type         TEXT NOT NULL DEFAULT 'fact',
		salience     REAL NOT NULL DEFAULT 0.5,
		embedding    BLOB,
		content_hash TEXT NOT NULL,
		created_at   TEXT NOT NULL,
		updated_at   TEXT NOT NULL,
		accessed_at  TEXT,
		access_count INTEGER NOT NULL DEFAULT 0,
		metadata     TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_records_tier ON records(tier);
	CREATE INDEX IF NOT EXISTS idx_records_type ON records(type);
	CREATE INDEX IF NOT EXISTS idx_records_updated ON records(updated_at DESC);
	CREATE INDEX IF NOT EXISTS idx_records_created ON records(created_at DESC);

	CREATE TABLE IF NOT EXISTS identity (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS active_context (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS record_edges (
		source_id  TEXT NOT NULL REFERENCES records(id),
		target_id  TEXT NOT NULL REFERENCES records(id),
		relation   TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (source_id, target_id, relation)
	);
	CREATE INDEX IF NOT EXISTS idx_edges_target ON record_edges(target_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func now() time.Time { return time.Now().UTC() }

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t
}

// contentHash fingerprints record content so that stale vectors can be
// detected and recomputed lazily.
func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// encodeVector serializes a float32 vector as a little-endian blob.
func encodeVector(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeVector deserializes a little-endian blob back to a float32 vector.
func decodeVector(b []byte) []float32 {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

type scanner interface {
	Scan(dest ...interface{}) error
}

const recordColumns = `id, content, tier, type, salience, embedding, content_hash,
	created_at, updated_at, accessed_at, access_count, metadata`

func scanRecord(row scanner) (model.Record, error) {
	var r model.Record
	var emb []byte
	var accessedAt, metadata sql.NullString
	var createdAt, updatedAt, tier string

	err := row.Scan(
		&r.ID, &r.Content, &tier, &r.Type, &r.Salience, &emb, &r.ContentHash,
		&createdAt, &updatedAt, &accessedAt, &r.AccessCount, &metadata,
	)
	if err != nil {
		return r, err
	}

	r.Tier = model.Tier(tier)
	r.Embedding = decodeVector(emb)
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	if accessedAt.Valid {
		t := parseTime(accessedAt.String)
		r.AccessedAt = &t
	}
	if metadata.Valid && metadata.String != "" {
		json.Unmarshal([]byte(metadata.String), &r.Metadata)
	}

	return r, nil
}

func marshalMetadata(m map[string]any) *string {
	if len(m) == 0 {
		return nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	s := string(b)
	return &s
}
