package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"retail-backoffice/internal/ability"
	"retail-backoffice/internal/domain"

	"github.com/google/uuid"
)

// SQLiteAccessRepository implements AccessRepository for DB_DRIVER=sqlite.
// Matrices are stored as JSON text, timestamps as RFC 3339 text.
type SQLiteAccessRepository struct {
	db *sql.DB
}

func NewSQLiteAccessRepository(db *sql.DB) *SQLiteAccessRepository {
	return &SQLiteAccessRepository{db: db}
}

var _ AccessRepository = (*SQLiteAccessRepository)(nil)

// NewAccessRepository picks the access store for a database driver.
func NewAccessRepository(db *sql.DB, driver string) (AccessRepository, error) {
	switch driver {
	case "", "postgres":
		return NewPostgresAccessRepository(db), nil
	case "sqlite":
		return NewSQLiteAccessRepository(db), nil
	default:
		return nil, fmt.Errorf("no access repository for driver %q", driver)
	}
}

const sqliteAccessesTable = `
	CREATE TABLE IF NOT EXISTS accesses (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		name TEXT NOT NULL,
		permissions TEXT NOT NULL DEFAULT '{}',
		field_permissions TEXT NOT NULL DEFAULT '{}',
		admin_permission INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`

// EnsureSchema creates the accesses table when missing.
func (r *SQLiteAccessRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, sqliteAccessesTable); err != nil {
		return fmt.Errorf("failed to create accesses table: %w", err)
	}
	return nil
}

const sqliteAccessColumns = `id, tenant_id, name, permissions, field_permissions, admin_permission, created_at, updated_at`

func sqliteNow() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func scanSQLiteAccess(row rowScanner) (*domain.Access, error) {
	var (
		a                    domain.Access
		perms, fieldPerms    []byte
		createdAt, updatedAt string
	)
	if err := row.Scan(&a.ID, &a.TenantID, &a.Name, &perms, &fieldPerms, &a.AdminPermission, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	var err error
	if a.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if a.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	if err := decodeMatrices(&a, perms, fieldPerms); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *SQLiteAccessRepository) GetAccess(ctx context.Context, accessID string) (*domain.Access, error) {
	if accessID == "" {
		return nil, fmt.Errorf("access_id is required")
	}
	if _, err := uuid.Parse(accessID); err != nil {
		return nil, fmt.Errorf("access %s: %w", accessID, ErrNotFound)
	}
	a, err := scanSQLiteAccess(r.db.QueryRowContext(ctx,
		`SELECT `+sqliteAccessColumns+` FROM accesses WHERE id = ?`, accessID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("access %s: %w", accessID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query access: %w", err)
	}
	return a, nil
}

func (r *SQLiteAccessRepository) ListAccesses(ctx context.Context, tenantID string) ([]*domain.Access, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant_id is required")
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sqliteAccessColumns+` FROM accesses WHERE tenant_id = ? ORDER BY name ASC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accesses: %w", err)
	}
	defer rows.Close()

	var out []*domain.Access
	for rows.Next() {
		a, err := scanSQLiteAccess(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan access: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accesses: %w", err)
	}
	return out, nil
}

func (r *SQLiteAccessRepository) CreateAccess(ctx context.Context, access *domain.Access) (string, error) {
	if access == nil || access.TenantID == "" || access.Name == "" {
		return "", fmt.Errorf("tenant_id and name are required")
	}
	if access.ID == "" {
		access.ID = uuid.NewString()
	}
	perms, fieldPerms, err := encodeMatrices(access.Permissions, access.FieldPermissions)
	if err != nil {
		return "", err
	}
	ts := sqliteNow()
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO accesses (`+sqliteAccessColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		access.ID, access.TenantID, access.Name, string(perms), string(fieldPerms), access.AdminPermission, ts, ts,
	); err != nil {
		return "", fmt.Errorf("failed to create access: %w", err)
	}
	return access.ID, nil
}

func (r *SQLiteAccessRepository) UpdatePermissions(ctx context.Context, accessID string, perms ability.PermissionMatrix, fieldPerms ability.FieldPermissionMatrix, admin bool) error {
	if accessID == "" {
		return fmt.Errorf("access_id is required")
	}
	p, fp, err := encodeMatrices(perms, fieldPerms)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE accesses SET permissions = ?, field_permissions = ?, admin_permission = ?, updated_at = ? WHERE id = ?`,
		string(p), string(fp), admin, sqliteNow(), accessID)
	if err != nil {
		return fmt.Errorf("failed to update access permissions: %w", err)
	}
	return requireAffected(res, accessID)
}

func (r *SQLiteAccessRepository) DeleteAccess(ctx context.Context, accessID string) error {
	if accessID == "" {
		return fmt.Errorf("access_id is required")
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM accesses WHERE id = ?`, accessID)
	if err != nil {
		return fmt.Errorf("failed to delete access: %w", err)
	}
	return requireAffected(res, accessID)
}
