package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/g1itchbot8888-del/agent-memory/internal/embedding"
	"github.com/g1itchbot8888-del/agent-memory/internal/model"
)

// Report summarizes one consolidation pass.
type Report struct {
	Merged   int           `json:"merged"`
	Pruned   int           `json:"pruned"`
	Promoted int           `json:"promoted"`
	Demoted  int           `json:"demoted"`
	Warnings []string      `json:"warnings,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Consolidate runs one merge/prune/promote pass over the archive. The pass
// is idempotent: running it again with no intervening writes yields an
// empty report. Each cluster merge, prune, and promotion commits
// independently, so a concurrent reader sees pre- or post-step state for
// any record, never a torn one, and the pass can be aborted between steps
// without corruption. Scheduling is the caller's responsibility.
func (s *Store) Consolidate(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{}

	if err := s.mergeClusters(ctx, report); err != nil {
		return report, err
	}
	if err := s.pruneStale(ctx, report); err != nil {
		return report, err
	}
	if err := s.promoteHot(ctx, report); err != nil {
		return report, err
	}

	report.Duration = time.Since(start)
	s.log.Info("consolidation complete",
		"merged", report.Merged, "pruned", report.Pruned,
		"promoted", report.Promoted, "demoted", report.Demoted,
		"duration", report.Duration)
	return report, nil
}

// mergeClusters groups archive records of the same type by mutual cosine
// similarity at or above the merge threshold and collapses each cluster of
// two or more into one synthesized record. Each merge is all-or-nothing per
// cluster and independent across clusters.
func (s *Store) mergeClusters(ctx context.Context, report *Report) error {
	archive, err := s.candidates(ctx, SearchParams{Tier: model.TierArchive})
	if err != nil {
		return err
	}

	byType := map[string][]model.Record{}
	for _, r := range archive {
		if r.Embedding == nil {
			continue
		}
		byType[r.Type] = append(byType[r.Type], r)
	}

	for _, group := range byType {
		for _, cluster := range clusterBySimilarity(group, s.cfg.Consolidate.MergeThreshold) {
			if len(cluster) < 2 {
				continue
			}
			if err := s.mergeCluster(ctx, cluster); err != nil {
				warning := fmt.Sprintf("cluster merge skipped: %v", err)
				report.Warnings = append(report.Warnings, warning)
				s.log.Warn("cluster merge skipped", "err", err)
				continue
			}
			report.Merged += len(cluster) - 1
		}
	}
	return nil
}

// clusterBySimilarity seeds clusters in salience order and absorbs every
// remaining record whose similarity to the seed meets the threshold.
func clusterBySimilarity(records []model.Record, threshold float64) [][]model.Record {
	sorted := make([]model.Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Salience != sorted[j].Salience {
			return sorted[i].Salience > sorted[j].Salience
		}
		return sorted[i].UpdatedAt.After(sorted[j].UpdatedAt)
	})

	assigned := map[string]bool{}
	var clusters [][]model.Record
	for i := range sorted {
		seed := sorted[i]
		if assigned[seed.ID] {
			continue
		}
		assigned[seed.ID] = true
		cluster := []model.Record{seed}
		for j := i + 1; j < len(sorted); j++ {
			cand := sorted[j]
			if assigned[cand.ID] {
				continue
			}
			if embedding.CosineSimilarity(seed.Embedding, cand.Embedding) >= threshold {
				assigned[cand.ID] = true
				cluster = append(cluster, cand)
			}
		}
		clusters = append(clusters, cluster)
	}
	return clusters
}

// mergeCluster synthesizes one record for a cluster inside a single
// transaction: union of metadata, highest salience, summed access counts,
// newest updated_at, and the keeper's content and vector. Edges that
// referenced any constituent are re-pointed to the merged record so update
// chains stay intact, and the merged record derives each constituent's
// former updates target.
func (s *Store) mergeCluster(ctx context.Context, cluster []model.Record) error {
	keeper := cluster[0] // highest salience, from cluster ordering

	merged := model.Record{
		ID:          s.newID(),
		Content:     keeper.Content,
		Tier:        model.TierArchive,
		Type:        keeper.Type,
		Salience:    keeper.Salience,
		Embedding:   keeper.Embedding,
		ContentHash: keeper.ContentHash,
		CreatedAt:   keeper.CreatedAt,
		UpdatedAt:   keeper.UpdatedAt,
		Metadata:    map[string]any{},
	}

	inCluster := map[string]bool{}
	mergedFrom := make([]string, 0, len(cluster))
	for _, c := range cluster {
		inCluster[c.ID] = true
		mergedFrom = append(mergedFrom, c.ID)
	}

	// Union metadata with keeper precedence, accumulate counters and
	// timestamps across constituents.
	merged.AccessCount = 0
	for i := len(cluster) - 1; i >= 0; i-- {
		c := cluster[i]
		for k, v := range c.Metadata {
			merged.Metadata[k] = v
		}
	}
	for _, c := range cluster {
		merged.AccessCount += c.AccessCount
		if c.UpdatedAt.After(merged.UpdatedAt) {
			merged.UpdatedAt = c.UpdatedAt
		}
		if c.CreatedAt.Before(merged.CreatedAt) {
			merged.CreatedAt = c.CreatedAt
		}
	}
	merged.Metadata["merged_from"] = mergedFrom

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO records (id, content, tier, type, salience, embedding, content_hash,
		 created_at, updated_at, access_count, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		merged.ID, merged.Content, string(merged.Tier), merged.Type, merged.Salience,
		encodeVector(merged.Embedding), merged.ContentHash,
		formatTime(merged.CreatedAt), formatTime(merged.UpdatedAt),
		merged.AccessCount, marshalMetadata(merged.Metadata))
	if err != nil {
		return fmt.Errorf("insert merged record: %w", err)
	}

	// Collect edges touching any constituent, then rewrite them against the
	// merged id. Edges internal to the cluster collapse to self-edges and
	// are dropped.
	rows, err := tx.QueryContext(ctx,
		`SELECT source_id, target_id, relation, created_at FROM record_edges
		 WHERE source_id IN (`+placeholders(len(mergedFrom))+`)
		    OR target_id IN (`+placeholders(len(mergedFrom))+`)`,
		append(idArgs(mergedFrom), idArgs(mergedFrom)...)...)
	if err != nil {
		return err
	}
	edges, err := scanEdges(rows)
	rows.Close()
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM record_edges
		 WHERE source_id IN (`+placeholders(len(mergedFrom))+`)
		    OR target_id IN (`+placeholders(len(mergedFrom))+`)`,
		append(idArgs(mergedFrom), idArgs(mergedFrom)...)...)
	if err != nil {
		return err
	}

	for _, e := range edges {
		src, tgt := e.SourceID, e.TargetID
		if inCluster[src] {
			src = merged.ID
		}
		if inCluster[tgt] {
			tgt = merged.ID
		}
		if src == tgt {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO record_edges (source_id, target_id, relation, created_at)
			 VALUES (?, ?, ?, ?)`,
			src, tgt, string(e.Relation), formatTime(e.CreatedAt)); err != nil {
			return err
		}
		// Preserve provenance: the merged record derives whatever a
		// constituent previously superseded.
		if e.Relation == model.RelUpdates && src == merged.ID && !inCluster[e.TargetID] {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO record_edges (source_id, target_id, relation, created_at)
				 VALUES (?, ?, ?, ?)`,
				merged.ID, tgt, string(model.RelDerives), formatTime(now())); err != nil {
				return err
			}
		}
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM records WHERE id IN (`+placeholders(len(mergedFrom))+`)`,
		idArgs(mergedFrom)...)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// pruneStale removes archive records below the salience floor that were
// never accessed and have aged past the retention window. Identity and
// active tier records are never pruned.
func (s *Store) pruneStale(ctx context.Context, report *Report) error {
	cutoff := now().AddDate(0, 0, -s.cfg.Consolidate.PruneRetentionDays)

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM records
		 WHERE tier = ? AND salience < ? AND access_count = 0 AND created_at < ?`,
		string(model.TierArchive), s.cfg.Consolidate.PruneSalienceFloor, formatTime(cutoff))
	if err != nil {
		return err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if len(ids) == 0 {
		return tx.Commit()
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM record_edges
		 WHERE source_id IN (`+placeholders(len(ids))+`)
		    OR target_id IN (`+placeholders(len(ids))+`)`,
		append(idArgs(ids), idArgs(ids)...)...); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM records WHERE id IN (`+placeholders(len(ids))+`)`,
		idArgs(ids)...); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	report.Pruned = len(ids)
	return nil
}

// promoteHot moves frequently-accessed archive records into the active
// tier, respecting the active soft cap. When the tier is full a candidate
// only displaces the lowest-salience active record if it is strictly more
// salient, which keeps repeated passes stable.
func (s *Store) promoteHot(ctx context.Context, report *Report) error {
	windowStart := now().AddDate(0, 0, -s.cfg.Consolidate.PromoteWindowDays)

	archive, err := s.candidates(ctx, SearchParams{Tier: model.TierArchive})
	if err != nil {
		return err
	}
	var hot []model.Record
	for _, r := range archive {
		if r.AccessCount >= s.cfg.Consolidate.PromoteAccessThreshold &&
			r.AccessedAt != nil && r.AccessedAt.After(windowStart) {
			hot = append(hot, r)
		}
	}
	if len(hot) == 0 {
		return nil
	}
	sort.SliceStable(hot, func(i, j int) bool { return hot[i].Salience > hot[j].Salience })

	active, err := s.candidates(ctx, SearchParams{Tier: model.TierActive})
	if err != nil {
		return err
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].Salience < active[j].Salience })

	softCap := s.cfg.Consolidate.ActiveSoftCap
	for _, cand := range hot {
		if len(active) < softCap {
			if err := s.setTier(ctx, cand.ID, model.TierActive); err != nil {
				return err
			}
			cand.Tier = model.TierActive
			active = append(active, cand)
			sort.SliceStable(active, func(i, j int) bool { return active[i].Salience < active[j].Salience })
			report.Promoted++
			continue
		}
		lowest := active[0]
		if cand.Salience <= lowest.Salience {
			continue
		}
		if err := s.setTier(ctx, lowest.ID, model.TierArchive); err != nil {
			return err
		}
		if err := s.setTier(ctx, cand.ID, model.TierActive); err != nil {
			return err
		}
		cand.Tier = model.TierActive
		active[0] = cand
		sort.SliceStable(active, func(i, j int) bool { return active[i].Salience < active[j].Salience })
		report.Promoted++
		report.Demoted++
	}
	return nil
}

func (s *Store) setTier(ctx context.Context, id string, tier model.Tier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`UPDATE records SET tier = ?, updated_at = ? WHERE id = ?`,
		string(tier), formatTime(now()), id)
	return err
}

func placeholders(n int) string {
	switch n {
	case 0:
		return ""
	case 1:
		return "?"
	}
	b := make([]byte, 0, n*2-1)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, '?')
	}
	return string(b)
}

func idArgs(ids []string) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
