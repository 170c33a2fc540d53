package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"retail-backoffice/internal/ability"
	"retail-backoffice/internal/domain"

	"github.com/google/uuid"
)

// PostgresAccessRepository implements AccessRepository on the accesses
// table. Permission matrices are JSONB columns.
type PostgresAccessRepository struct {
	db *sql.DB
}

func NewPostgresAccessRepository(db *sql.DB) *PostgresAccessRepository {
	return &PostgresAccessRepository{db: db}
}

var _ AccessRepository = (*PostgresAccessRepository)(nil)

const accessColumns = `
	id::text,
	tenant_id::text,
	name,
	permissions,
	field_permissions,
	admin_permission,
	created_at,
	updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccess(row rowScanner) (*domain.Access, error) {
	var (
		a          domain.Access
		perms      []byte
		fieldPerms []byte
	)
	if err := row.Scan(&a.ID, &a.TenantID, &a.Name, &perms, &fieldPerms, &a.AdminPermission, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	if err := decodeMatrices(&a, perms, fieldPerms); err != nil {
		return nil, err
	}
	return &a, nil
}

func decodeMatrices(a *domain.Access, perms, fieldPerms []byte) error {
	if len(perms) > 0 {
		if err := json.Unmarshal(perms, &a.Permissions); err != nil {
			return fmt.Errorf("failed to decode permissions: %w", err)
		}
	}
	if len(fieldPerms) > 0 {
		if err := json.Unmarshal(fieldPerms, &a.FieldPermissions); err != nil {
			return fmt.Errorf("failed to decode field_permissions: %w", err)
		}
	}
	return nil
}

// GetAccess loads one access by ID. A malformed ID is reported as not found.
func (r *PostgresAccessRepository) GetAccess(ctx context.Context, accessID string) (*domain.Access, error) {
	if accessID == "" {
		return nil, fmt.Errorf("access_id is required")
	}
	if _, err := uuid.Parse(accessID); err != nil {
		return nil, fmt.Errorf("access %s: %w", accessID, ErrNotFound)
	}

	query := `SELECT` + accessColumns + `
		FROM accesses
		WHERE id = $1
	`
	a, err := scanAccess(r.db.QueryRowContext(ctx, query, accessID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("access %s: %w", accessID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query access: %w", err)
	}
	return a, nil
}

// ListAccesses returns the tenant's accesses ordered by name.
func (r *PostgresAccessRepository) ListAccesses(ctx context.Context, tenantID string) ([]*domain.Access, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant_id is required")
	}
	query := `SELECT` + accessColumns + `
		FROM accesses
		WHERE tenant_id = $1
		ORDER BY name ASC
	`
	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accesses: %w", err)
	}
	defer rows.Close()

	var out []*domain.Access
	for rows.Next() {
		a, err := scanAccess(rows)
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

func (r *PostgresAccessRepository) CreateAccess(ctx context.Context, access *domain.Access) (string, error) {
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

	query := `
		INSERT INTO accesses (id, tenant_id, name, permissions, field_permissions, admin_permission, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING id::text
	`
	var id string
	if err := r.db.QueryRowContext(ctx, query,
		access.ID, access.TenantID, access.Name, perms, fieldPerms, access.AdminPermission,
	).Scan(&id); err != nil {
		return "", fmt.Errorf("failed to create access: %w", err)
	}
	return id, nil
}

func (r *PostgresAccessRepository) UpdatePermissions(ctx context.Context, accessID string, perms ability.PermissionMatrix, fieldPerms ability.FieldPermissionMatrix, admin bool) error {
	if accessID == "" {
		return fmt.Errorf("access_id is required")
	}
	p, fp, err := encodeMatrices(perms, fieldPerms)
	if err != nil {
		return err
	}
	query := `
		UPDATE accesses
		SET permissions = $2, field_permissions = $3, admin_permission = $4, updated_at = NOW()
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, accessID, p, fp, admin)
	if err != nil {
		return fmt.Errorf("failed to update access permissions: %w", err)
	}
	return requireAffected(res, accessID)
}

func (r *PostgresAccessRepository) DeleteAccess(ctx context.Context, accessID string) error {
	if accessID == "" {
		return fmt.Errorf("access_id is required")
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM accesses WHERE id = $1`, accessID)
	if err != nil {
		return fmt.Errorf("failed to delete access: %w", err)
	}
	return requireAffected(res, accessID)
}

func requireAffected(res sql.Result, accessID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("access %s: %w", accessID, ErrNotFound)
	}
	return nil
}

func encodeMatrices(perms ability.PermissionMatrix, fieldPerms ability.FieldPermissionMatrix) ([]byte, []byte, error) {
	if perms == nil {
		perms = ability.PermissionMatrix{}
	}
	if fieldPerms == nil {
		fieldPerms = ability.FieldPermissionMatrix{}
	}
	p, err := marshalJSONB(perms)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode permissions: %w", err)
	}
	fp, err := marshalJSONB(fieldPerms)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode field_permissions: %w", err)
	}
	return p, fp, nil
}
