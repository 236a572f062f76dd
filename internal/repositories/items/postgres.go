package items

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudcrate/cloudcrate/internal/common"
	"github.com/cloudcrate/cloudcrate/internal/dbx"
	"github.com/cloudcrate/cloudcrate/internal/models"
)

// itemColumns is the shared select list; scanItem must stay in sync with it.
const itemColumns = `id, owner_id, teamspace_id, parent_id, type, name, file_path, size, mime_type, access, is_deleted, deleted_at, created_at, updated_at`

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*models.Item, error) {
	var item models.Item
	err := row.Scan(
		&item.ID, &item.OwnerID, &item.TeamspaceID, &item.ParentID,
		&item.Type, &item.Name, &item.FilePath, &item.Size, &item.MimeType,
		&item.Access, &item.IsDeleted, &item.DeletedAt,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *PostgresRepository) queryItems(ctx context.Context, query string, args ...any) ([]*models.Item, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select items: %w", err)
	}
	defer rows.Close()

	var result []*models.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// placeholders renders "$start, $start+1, ..." for n values.
func placeholders(start, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ", ")
}

func idArgs(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = $1`
	item, err := scanItem(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("item %d: %w", id, common.ErrorNotFound)
		}
		return nil, fmt.Errorf("failed to select item: %w", err)
	}
	return item, nil
}

func (r *PostgresRepository) GetByIDs(ctx context.Context, ids []int64) ([]*models.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + itemColumns + ` FROM items WHERE id IN (` + placeholders(1, len(ids)) + `)`
	return r.queryItems(ctx, query, idArgs(ids)...)
}

// hasDeletedAncestor walks parent links upward from id (inclusive) and
// reports whether any node on the chain is soft-deleted.
func (r *PostgresRepository) hasDeletedAncestor(ctx context.Context, id int64) (bool, error) {
	query := `
		WITH RECURSIVE chain AS (
			SELECT id, parent_id, is_deleted FROM items WHERE id = $1
			UNION ALL
			SELECT p.id, p.parent_id, p.is_deleted FROM items p JOIN chain c ON p.id = c.parent_id
		)
		SELECT COALESCE(bool_or(is_deleted), FALSE) FROM chain
	`
	var deleted bool
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&deleted); err != nil {
		return false, fmt.Errorf("failed to check ancestors: %w", err)
	}
	return deleted, nil
}

func tenantFilter(tenant models.Tenant, argIndex int) (string, any) {
	if tenant.Kind == models.TenantTeam {
		return fmt.Sprintf("teamspace_id = $%d", argIndex), tenant.ID
	}
	return fmt.Sprintf("owner_id = $%d AND teamspace_id IS NULL", argIndex), tenant.ID
}

func (r *PostgresRepository) ListChildren(ctx context.Context, tenant models.Tenant, parentID *int64, trashed bool) ([]*models.Item, error) {
	// A non-deleted child of a deleted folder is still in trash for listing
	// purposes, so the parent chain decides before per-item flags do.
	ancestorDeleted := false
	if parentID != nil {
		var err error
		if ancestorDeleted, err = r.hasDeletedAncestor(ctx, *parentID); err != nil {
			return nil, err
		}
	}
	if ancestorDeleted && !trashed {
		return nil, nil
	}

	filter, arg := tenantFilter(tenant, 1)
	args := []any{arg}
	query := `SELECT ` + itemColumns + ` FROM items WHERE ` + filter
	if parentID == nil {
		query += ` AND parent_id IS NULL`
	} else {
		query += fmt.Sprintf(` AND parent_id = $%d`, len(args)+1)
		args = append(args, *parentID)
	}
	if !ancestorDeleted {
		query += fmt.Sprintf(` AND is_deleted = $%d`, len(args)+1)
		args = append(args, trashed)
	}
	query += ` ORDER BY type DESC, name`

	return r.queryItems(ctx, query, args...)
}

func (r *PostgresRepository) Descendants(ctx context.Context, folderID int64, maxDepth int) ([]*models.Item, error) {
	query := `
		WITH RECURSIVE subtree AS (
			SELECT i.*, 1 AS depth FROM items i WHERE i.parent_id = $1
			UNION ALL
			SELECT c.*, s.depth + 1 FROM items c JOIN subtree s ON c.parent_id = s.id WHERE s.depth < $2
		)
		SELECT ` + itemColumns + ` FROM subtree
	`
	return r.queryItems(ctx, query, folderID, maxDepth)
}

func (r *PostgresRepository) Files(ctx context.Context, tenant models.Tenant, folderID *int64) ([]*models.Item, error) {
	if folderID == nil {
		filter, arg := tenantFilter(tenant, 1)
		query := `SELECT ` + itemColumns + ` FROM items WHERE ` + filter + ` AND type = 'file' AND NOT is_deleted`
		return r.queryItems(ctx, query, arg)
	}

	query := `
		WITH RECURSIVE subtree AS (
			SELECT i.* FROM items i WHERE i.parent_id = $1
			UNION ALL
			SELECT c.* FROM items c JOIN subtree s ON c.parent_id = s.id
		)
		SELECT ` + itemColumns + ` FROM subtree WHERE type = 'file' AND NOT is_deleted
	`
	return r.queryItems(ctx, query, *folderID)
}

func (r *PostgresRepository) Create(ctx context.Context, item *models.Item) (*models.Item, error) {
	query := `
		INSERT INTO items (owner_id, teamspace_id, parent_id, type, name, file_path, size, mime_type, access, is_deleted, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		item.OwnerID, item.TeamspaceID, item.ParentID, item.Type, item.Name,
		item.FilePath, item.Size, item.MimeType, item.Access, item.IsDeleted, item.DeletedAt,
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return item, nil
}

func (r *PostgresRepository) UpdateBatch(ctx context.Context, items []*models.Item) error {
	query := `
		UPDATE items
		SET parent_id = $2, name = $3, file_path = $4, size = $5, mime_type = $6,
			access = $7, is_deleted = $8, deleted_at = $9, updated_at = now()
		WHERE id = $1
	`
	for _, item := range items {
		res, err := r.db.ExecContext(ctx, query,
			item.ID, item.ParentID, item.Name, item.FilePath, item.Size,
			item.MimeType, item.Access, item.IsDeleted, item.DeletedAt,
		)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected error: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("item %d: %w", item.ID, common.ErrorNotFound)
		}
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("item %d: %w", id, common.ErrorNotFound)
	}
	return nil
}

func (r *PostgresRepository) DeleteBatch(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := `DELETE FROM items WHERE id IN (` + placeholders(1, len(ids)) + `)`
	res, err := r.db.ExecContext(ctx, query, idArgs(ids)...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) ExpiredIDs(ctx context.Context, threshold time.Time) ([]int64, error) {
	query := `SELECT id FROM items WHERE is_deleted AND deleted_at <= $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to select expired items: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *PostgresRepository) FolderPath(ctx context.Context, folderID int64) (string, error) {
	query := `
		WITH RECURSIVE chain AS (
			SELECT id, parent_id, name, 0 AS depth FROM items WHERE id = $1
			UNION ALL
			SELECT p.id, p.parent_id, p.name, c.depth + 1 FROM items p JOIN chain c ON p.id = c.parent_id
		)
		SELECT name FROM chain ORDER BY depth DESC
	`
	rows, err := r.db.QueryContext(ctx, query, folderID)
	if err != nil {
		return "", fmt.Errorf("failed to select folder path: %w", err)
	}
	defer rows.Close()

	var segments []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return "", err
		}
		segments = append(segments, name)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	if len(segments) == 0 {
		return "", fmt.Errorf("folder %d: %w", folderID, common.ErrorNotFound)
	}
	return strings.Join(segments, "/"), nil
}

func (r *PostgresRepository) ExistsWithName(ctx context.Context, tenant models.Tenant, parentID *int64, name string) (bool, error) {
	filter, arg := tenantFilter(tenant, 1)
	args := []any{arg}
	query := `SELECT EXISTS(SELECT 1 FROM items WHERE ` + filter + ` AND NOT is_deleted`
	if parentID == nil {
		query += ` AND parent_id IS NULL`
	} else {
		query += fmt.Sprintf(` AND parent_id = $%d`, len(args)+1)
		args = append(args, *parentID)
	}
	query += fmt.Sprintf(` AND lower(name) = lower($%d))`, len(args)+1)
	args = append(args, name)

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check name: %w", err)
	}
	return exists, nil
}
