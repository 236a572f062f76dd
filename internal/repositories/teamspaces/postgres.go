package teamspaces

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cloudcrate/cloudcrate/internal/common"
	"github.com/cloudcrate/cloudcrate/internal/dbx"
	"github.com/cloudcrate/cloudcrate/internal/models"
)

// PostgresRepository implements teamspace storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Teamspace, error) {
	query := `
		SELECT id, admin_id, used_storage_mb, storage_limit_mb, member_count, member_limit, created_at
		FROM teamspaces WHERE id = $1
	`

	var ts models.Teamspace
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&ts.ID, &ts.AdminID, &ts.UsedStorageMB, &ts.StorageLimitMB,
		&ts.MemberCount, &ts.MemberLimit, &ts.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("teamspace %d: %w", id, common.ErrorNotFound)
		}
		return nil, fmt.Errorf("failed to select teamspace: %w", err)
	}
	return &ts, nil
}

func (r *PostgresRepository) AdjustUsedStorage(ctx context.Context, id int64, deltaMB int64) error {
	query := `UPDATE teamspaces SET used_storage_mb = GREATEST(0, used_storage_mb + $2) WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, deltaMB)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("teamspace %d: %w", id, common.ErrorNotFound)
	}
	return nil
}

func (r *PostgresRepository) SetUsedStorage(ctx context.Context, id int64, usedMB int64) error {
	query := `UPDATE teamspaces SET used_storage_mb = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, usedMB)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("teamspace %d: %w", id, common.ErrorNotFound)
	}
	return nil
}
