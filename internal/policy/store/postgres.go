package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"frost/internal/policy/models"
	"frost/pkg/platform/sentinel"
)

// PostgresStore is the policy index backed by PostgreSQL. Device listings
// are ordered by insertion sequence.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetByPolicyID(ctx context.Context, policyID string) (*models.PolicyRecord, error) {
	query := `
		SELECT policy_id, device_id, owner, ledger_hash, created_at
		FROM policies
		WHERE policy_id = $1
	`
	var record models.PolicyRecord
	err := s.db.QueryRowContext(ctx, query, policyID).Scan(
		&record.PolicyID, &record.DeviceID, &record.Owner, &record.LedgerHash, &record.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find policy by id: %w", err)
	}
	return &record, nil
}

func (s *PostgresStore) ListByDeviceID(ctx context.Context, deviceID string) ([]*models.PolicyRecord, error) {
	query := `
		SELECT policy_id, device_id, owner, ledger_hash, created_at
		FROM policies
		WHERE device_id = $1
		ORDER BY seq
	`
	rows, err := s.db.QueryContext(ctx, query, deviceID)
	if err != nil {
		return nil, fmt.Errorf("list policies by device: %w", err)
	}
	defer rows.Close()

	var records []*models.PolicyRecord
	for rows.Next() {
		var record models.PolicyRecord
		if err := rows.Scan(&record.PolicyID, &record.DeviceID, &record.Owner, &record.LedgerHash, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan policy: %w", err)
		}
		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate policies: %w", err)
	}
	return records, nil
}

// AddNew atomically inserts the record if its policy id is free, returning
// sentinel.ErrAlreadyUsed otherwise.
func (s *PostgresStore) AddNew(ctx context.Context, record *models.PolicyRecord) error {
	query := `
		INSERT INTO policies (policy_id, device_id, owner, ledger_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (policy_id) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query,
		record.PolicyID, record.DeviceID, record.Owner, record.LedgerHash, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert policy: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert policy rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrAlreadyUsed
	}
	return nil
}

func (s *PostgresStore) DeleteAllForDevice(ctx context.Context, deviceID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM policies WHERE device_id = $1`, deviceID)
	if err != nil {
		return 0, fmt.Errorf("delete policies for device: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete policies rows affected: %w", err)
	}
	return int(affected), nil
}
