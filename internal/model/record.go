// Package model defines the core memory data types.
package model

import "time"

// Tier governs default loading and retention behavior of a record.
type Tier string

const (
	TierIdentity Tier = "identity"
	TierActive   Tier = "active"
	TierArchive  Tier = "archive"
)

// ValidTiers are the allowed record tiers.
var ValidTiers = map[Tier]bool{
	TierIdentity: true,
	TierActive:   true,
	TierArchive:  true,
}

// Record kinds. Learning kinds share the record shape but form a distinct
// type set read by the surfacer.
const (
	TypeFact       = "fact"
	TypeDecision   = "decision"
	TypePreference = "preference"
	TypeInsight    = "insight"
	TypeGoal       = "goal"
	TypeDaily      = "daily"
	TypeLongTerm   = "long_term"

	TypeRecallHit  = "recall_hit"
	TypeRecallMiss = "recall_miss"
	TypeCorrection = "correction"
	TypeError      = "error"
)

// ValidTypes are the allowed record types.
var ValidTypes = map[string]bool{
	TypeFact:       true,
	TypeDecision:   true,
	TypePreference: true,
	TypeInsight:    true,
	TypeGoal:       true,
	TypeDaily:      true,
	TypeLongTerm:   true,
	TypeRecallHit:  true,
	TypeRecallMiss: true,
	TypeCorrection: true,
	TypeError:      true,
}

// LearningTypes is the subset of types that represent operational learnings.
var LearningTypes = map[string]bool{
	TypeRecallHit:  true,
	TypeRecallMiss: true,
	TypeCorrection: true,
	TypeInsight:    true,
	TypeError:      true,
}

// DefaultSalience returns the default salience for a record type.
func DefaultSalience(recordType string) float64 {
	switch recordType {
	case TypeDecision, TypeGoal:
		return 0.8
	case TypePreference, TypeInsight, TypeCorrection:
		return 0.7
	case TypeLongTerm:
		return 0.6
	case TypeDaily, TypeRecallHit, TypeRecallMiss:
		return 0.4
	default:
		return 0.5
	}
}

// Record represents a single stored memory unit. Callers always receive
// value snapshots; the store owns the authoritative row.
type Record struct {
	ID          string         `json:"id"`
	Content     string         `json:"content"`
	Tier        Tier           `json:"tier"`
	Type        string         `json:"type"`
	Salience    float64        `json:"salience"`
	Embedding   []float32      `json:"embedding,omitempty"`
	ContentHash string         `json:"content_hash,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	AccessedAt  *time.Time     `json:"accessed_at,omitempty"`
	AccessCount int            `json:"access_count"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// IsLearning reports whether the record is an operational learning rather
// than an ordinary memory. Learnings share the insight and error type names
// with ordinary records; the times_applied counter set at recording time
// tells them apart.
func (r *Record) IsLearning() bool {
	if !LearningTypes[r.Type] {
		return false
	}
	_, ok := r.Metadata["times_applied"]
	return ok
}

// MetaString returns a string metadata value, or "" when absent.
func (r *Record) MetaString(key string) string {
	if r.Metadata == nil {
		return ""
	}
	s, _ := r.Metadata[key].(string)
	return s
}

// Relation is the kind of a directed edge between two records.
type Relation string

const (
	RelUpdates Relation = "updates" // source logically supersedes target
	RelExtends Relation = "extends" // source adds detail to target
	RelDerives Relation = "derives" // source was inferred/synthesized from target
)

// ValidRelations are the allowed edge kinds.
var ValidRelations = map[Relation]bool{
	RelUpdates: true,
	RelExtends: true,
	RelDerives: true,
}

// Edge is a directed relation between two records.
type Edge struct {
	SourceID  string    `json:"source_id"`
	TargetID  string    `json:"target_id"`
	Relation  Relation  `json:"relation"`
	CreatedAt time.Time `json:"created_at"`
}

// Entry is a key-unique identity or active-context value. Entries are
// rendered directly into context, never embedded or pruned.
type Entry struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
