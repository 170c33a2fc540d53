package repository

import (
	"context"

	"retail-backoffice/internal/ability"
	"retail-backoffice/internal/domain"
)

// AccessRepository stores permission sets.
type AccessRepository interface {
	GetAccess(ctx context.Context, accessID string) (*domain.Access, error)
	ListAccesses(ctx context.Context, tenantID string) ([]*domain.Access, error)

	// CreateAccess generates the ID when access.ID is empty and returns it.
	CreateAccess(ctx context.Context, access *domain.Access) (string, error)
	UpdatePermissions(ctx context.Context, accessID string, perms ability.PermissionMatrix, fieldPerms ability.FieldPermissionMatrix, admin bool) error
	DeleteAccess(ctx context.Context, accessID string) error
}
