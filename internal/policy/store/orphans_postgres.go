package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"frost/internal/policy/models"
)

// PostgresOrphans records orphaned bundles in PostgreSQL.
type PostgresOrphans struct {
	db *sql.DB
}

func NewPostgresOrphans(db *sql.DB) *PostgresOrphans {
	return &PostgresOrphans{db: db}
}

// Record stores the orphan. Recording the same ledger hash twice is a no-op.
func (s *PostgresOrphans) Record(ctx context.Context, orphan *models.OrphanedBundle) error {
	query := `
		INSERT INTO orphaned_bundles (ledger_hash, policy_id, device_id, owner, reason, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (ledger_hash) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		orphan.LedgerHash, orphan.PolicyID, orphan.DeviceID, orphan.Owner, orphan.Reason, orphan.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("record orphaned bundle: %w", err)
	}
	return nil
}

// ListUnreconciled returns up to limit pending orphans, oldest first.
func (s *PostgresOrphans) ListUnreconciled(ctx context.Context, limit int) ([]*models.OrphanedBundle, error) {
	query := `
		SELECT ledger_hash, policy_id, device_id, owner, reason, recorded_at
		FROM orphaned_bundles
		WHERE reconciled_at IS NULL
		ORDER BY recorded_at, ledger_hash
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list orphaned bundles: %w", err)
	}
	defer rows.Close()

	var orphans []*models.OrphanedBundle
	for rows.Next() {
		var o models.OrphanedBundle
		if err := rows.Scan(&o.LedgerHash, &o.PolicyID, &o.DeviceID, &o.Owner, &o.Reason, &o.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan orphaned bundle: %w", err)
		}
		orphans = append(orphans, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orphaned bundles: %w", err)
	}
	return orphans, nil
}

// MarkReconciled stamps the given orphans and returns how many changed.
func (s *PostgresOrphans) MarkReconciled(ctx context.Context, hashes []string, at time.Time) (int, error) {
	if len(hashes) == 0 {
		return 0, nil
	}
	query := `
		UPDATE orphaned_bundles
		SET reconciled_at = $2
		WHERE ledger_hash = ANY($1) AND reconciled_at IS NULL
	`
	res, err := s.db.ExecContext(ctx, query, pq.Array(hashes), at)
	if err != nil {
		return 0, fmt.Errorf("mark orphans reconciled: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark orphans rows affected: %w", err)
	}
	return int(affected), nil
}

// SettlePolicy stamps every pending orphan of policyID.
func (s *PostgresOrphans) SettlePolicy(ctx context.Context, policyID string, at time.Time) (int, error) {
	query := `
		UPDATE orphaned_bundles
		SET reconciled_at = $2
		WHERE policy_id = $1 AND reconciled_at IS NULL
	`
	res, err := s.db.ExecContext(ctx, query, policyID, at)
	if err != nil {
		return 0, fmt.Errorf("settle orphans of policy: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("settle orphans rows affected: %w", err)
	}
	return int(affected), nil
}
