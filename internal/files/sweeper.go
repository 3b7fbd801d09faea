package files

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/WailSalutem-Health-Care/clinic-service/internal/db"
)

// DefaultGracePeriod protects uploads whose metadata row may still be in
// flight.
const DefaultGracePeriod = time.Hour

const sweepBatchSize = 500

// SweepPolicy decides which files a sweep may remove.
type SweepPolicy struct {
	// Grace protects staging files of uploads still in progress and, when
	// visit deletes remove files, unreferenced files whose row may still be
	// in flight.
	Grace time.Duration
	// Retain is set when visit deletes keep their files. Unreferenced files
	// then age out after RetainFor instead; zero keeps them indefinitely.
	Retain    bool
	RetainFor time.Duration
}

// Sweeper removes stored files that no patient_files row references, such as
// bytes left by a crashed upload or retained after a visit delete, and stale
// staging files.
type Sweeper struct {
	storage *Storage
	repo    *Repository
	policy  SweepPolicy
	now     func() time.Time
}

func NewSweeper(storage *Storage, q db.Querier, policy SweepPolicy) *Sweeper {
	if policy.Grace <= 0 {
		policy.Grace = DefaultGracePeriod
	}
	return &Sweeper{storage: storage, repo: NewRepository(q), policy: policy, now: time.Now}
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	Scanned int
	Orphans []string
	Staged  []string
	Removed int
}

// Sweep removes stale staging files and orphaned files older than the
// policy allows, unless dryRun is set. A file that fails to delete is logged
// and skipped.
func (s *Sweeper) Sweep(ctx context.Context, dryRun bool) (*SweepResult, error) {
	res := &SweepResult{}
	if err := s.sweepStaging(ctx, res, dryRun); err != nil {
		return nil, err
	}

	if s.policy.Retain && s.policy.RetainFor <= 0 {
		log.Info().Msg("retained files are kept indefinitely, skipping orphan sweep")
		return res, nil
	}
	age := s.policy.Grace
	if s.policy.Retain && s.policy.RetainFor > age {
		age = s.policy.RetainFor
	}
	cutoff := s.now().Add(-age)
	log.Info().
		Str("root", s.storage.Root()).
		Time("cutoff", cutoff).
		Bool("dry_run", dryRun).
		Msg("starting orphaned file sweep")

	var candidates []string
	err := s.storage.Walk(func(f StoredFile) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		res.Scanned++
		if f.ModTime.Before(cutoff) {
			candidates = append(candidates, f.Path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk upload dir: %w", err)
	}

	for start := 0; start < len(candidates); start += sweepBatchSize {
		end := start + sweepBatchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		batch := candidates[start:end]

		refs, err := s.repo.Referenced(ctx, batch)
		if err != nil {
			return nil, err
		}
		for _, p := range batch {
			if !refs[p] {
				res.Orphans = append(res.Orphans, p)
			}
		}
	}

	if len(res.Orphans) == 0 {
		log.Info().Int("scanned", res.Scanned).Msg("no orphaned files found")
		return res, nil
	}

	for _, p := range res.Orphans {
		if dryRun {
			log.Info().Str("path", p).Msg("orphaned file (dry run)")
			continue
		}
		if err := s.storage.Remove(p); err != nil {
			log.Error().Err(err).Str("path", p).Msg("failed to remove orphaned file")
			continue
		}
		res.Removed++
	}

	log.Info().
		Int("scanned", res.Scanned).
		Int("orphans", len(res.Orphans)).
		Int("removed", res.Removed).
		Msg("orphaned file sweep finished")
	return res, nil
}

// sweepStaging removes staging files older than the grace period. They
// belong to uploads that never finished, so no row can reference them.
func (s *Sweeper) sweepStaging(ctx context.Context, res *SweepResult, dryRun bool) error {
	cutoff := s.now().Add(-s.policy.Grace)
	err := s.storage.WalkStaging(func(f StoredFile) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if f.ModTime.Before(cutoff) {
			res.Staged = append(res.Staged, f.Path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk staging dir: %w", err)
	}

	for _, name := range res.Staged {
		if dryRun {
			log.Info().Str("staged", name).Msg("stale staging file (dry run)")
			continue
		}
		if err := s.storage.RemoveStaged(name); err != nil {
			log.Error().Err(err).Str("staged", name).Msg("failed to remove staging file")
			continue
		}
		res.Removed++
	}
	return nil
}
