package auth

import (
	"errors"
	"fmt"

	"github.com/Dominus-Gray/polaris-analytics/internal/domain"
)

// ErrPermissionDenied signals a role or ownership mismatch. Callers must not
// retry.
var ErrPermissionDenied = errors.New("permission denied")

// Role is an externally assigned authorization role.
type Role string

const (
	RoleSuperAdmin  Role = "SuperAdmin"
	RoleAnalyst     Role = "Analyst"
	RoleOrgAdmin    Role = "OrgAdmin"
	RoleCaseManager Role = "CaseManager"
	RoleClient      Role = "client"
)

// ParseRole validates a role string produced by the identity collaborator.
func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RoleSuperAdmin, RoleAnalyst, RoleOrgAdmin, RoleCaseManager, RoleClient:
		return Role(raw), nil
	default:
		return "", fmt.Errorf("unknown role %q", raw)
	}
}

// Principal is the pre-validated identity tuple consumed from the external
// authentication collaborator. OrganizationKey is the single canonical
// foreign key for same-organization checks.
type Principal struct {
	UserID          string
	Role            Role
	OrganizationKey string
}

// CanViewClient decides client-level metrics access per the RBAC matrix:
// SuperAdmin and Analyst see any client, OrgAdmin and CaseManager see their
// own organization, a client sees only itself.
func (p Principal) CanViewClient(profile domain.ClientProfile) bool {
	switch p.Role {
	case RoleSuperAdmin, RoleAnalyst:
		return true
	case RoleOrgAdmin, RoleCaseManager:
		return p.OrganizationKey != "" && p.OrganizationKey == profile.OrganizationKey
	case RoleClient:
		return p.UserID == profile.ClientID
	default:
		return false
	}
}

// CanViewCohorts decides cohort-level access: SuperAdmin, Analyst and
// OrgAdmin only.
func (p Principal) CanViewCohorts() bool {
	switch p.Role {
	case RoleSuperAdmin, RoleAnalyst, RoleOrgAdmin:
		return true
	default:
		return false
	}
}

// ScopesCohortToOrganization reports whether cohort aggregation must be
// restricted to the principal's own organization members.
func (p Principal) ScopesCohortToOrganization() bool {
	return p.Role == RoleOrgAdmin
}
