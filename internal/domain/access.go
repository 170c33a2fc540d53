package domain

import (
	"time"

	"retail-backoffice/internal/ability"
)

// Access is a stored permission set assigned to users (accesses table).
type Access struct {
	ID       string `db:"id" json:"id"`
	TenantID string `db:"tenant_id" json:"tenant_id"`
	Name     string `db:"name" json:"name"`

	Permissions      ability.PermissionMatrix      `db:"permissions" json:"permissions"`             // JSONB
	FieldPermissions ability.FieldPermissionMatrix `db:"field_permissions" json:"field_permissions"` // JSONB
	AdminPermission  bool                          `db:"admin_permission" json:"admin_permission"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	// rules compiled from the matrices, built on first use
	abilities ability.Cell
}

var _ ability.Holder = (*Access)(nil)

func (a *Access) compile() []ability.Rule {
	return ability.BuildRules(a.Permissions, a.FieldPermissions, a.AdminPermission)
}

// BuildAbilityRules returns the cached rules, compiling them on first use.
// Later changes to the matrices are not seen until RebuildAbilityRules.
func (a *Access) BuildAbilityRules() []ability.Rule {
	return a.abilities.Rules(a.compile)
}

// RebuildAbilityRules recompiles the rules from the current matrices.
func (a *Access) RebuildAbilityRules() []ability.Rule {
	return a.abilities.Rebuild(a.compile)
}

// AbilityRules implements ability.Holder.
func (a *Access) AbilityRules() []ability.Rule {
	return a.BuildAbilityRules()
}

func (a *Access) Can(action ability.Action, subject, field string) bool {
	return ability.Can(a.BuildAbilityRules(), action, subject, field)
}

func (a *Access) Cannot(action ability.Action, subject, field string) bool {
	return !a.Can(action, subject, field)
}
