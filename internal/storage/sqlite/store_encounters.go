package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Monroeshindelar/lw-game-service/internal/encounter"
)

// PutCandidates upserts encounter candidates into the pool.
func (s *Store) PutCandidates(ctx context.Context, candidates []encounter.Candidate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if len(candidates) == 0 {
		return nil
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin candidates transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, candidate := range candidates {
		if strings.TrimSpace(candidate.GenerationID) == "" {
			return fmt.Errorf("candidate generation id is required")
		}
		if strings.TrimSpace(candidate.LocationID) == "" {
			return fmt.Errorf("candidate location id is required")
		}
		if candidate.SpeciesID <= 0 {
			return fmt.Errorf("candidate species id must be positive")
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT OR REPLACE INTO encounter_candidates
			   (generation_id, location_id, mode, species_id, rate)
			 VALUES (?, ?, ?, ?, ?)`,
			candidate.GenerationID,
			candidate.LocationID,
			string(candidate.Mode),
			candidate.SpeciesID,
			candidate.Rate,
		); err != nil {
			return fmt.Errorf("insert candidate: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit candidates transaction: %w", err)
	}
	return nil
}

// ListCandidates returns the candidate pool for a generation, location and
// mode set.
func (s *Store) ListCandidates(ctx context.Context, generationID, locationID string, modes []encounter.Mode) ([]encounter.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if len(modes) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(modes))
	args := []any{generationID, locationID}
	for i, mode := range modes {
		placeholders[i] = "?"
		args = append(args, string(mode))
	}

	query := fmt.Sprintf(
		`SELECT generation_id, location_id, mode, species_id, rate
		 FROM encounter_candidates
		 WHERE generation_id = ? AND location_id = ? AND mode IN (%s)
		 ORDER BY species_id`,
		strings.Join(placeholders, ", "),
	)

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var candidates []encounter.Candidate
	for rows.Next() {
		var candidate encounter.Candidate
		var mode string
		if err := rows.Scan(
			&candidate.GenerationID,
			&candidate.LocationID,
			&mode,
			&candidate.SpeciesID,
			&candidate.Rate,
		); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		candidate.Mode = encounter.Mode(mode)
		candidates = append(candidates, candidate)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}
	return candidates, nil
}

// HasGeneration reports whether any candidate data exists for a generation.
func (s *Store) HasGeneration(ctx context.Context, generationID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s == nil || s.sqlDB == nil {
		return false, fmt.Errorf("storage is not configured")
	}

	var found int
	err := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT 1 FROM encounter_candidates WHERE generation_id = ? LIMIT 1`,
		generationID,
	).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check generation: %w", err)
	}
	return true, nil
}
