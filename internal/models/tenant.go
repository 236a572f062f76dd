package models

import "fmt"

// TenantKind distinguishes personal storage from teamspace storage.
type TenantKind string

const (
	TenantUser TenantKind = "user"
	TenantTeam TenantKind = "team"
)

// Tenant identifies one storage-quota and physical-root boundary:
// either a user or a teamspace.
type Tenant struct {
	Kind TenantKind
	ID   int64
}

// UserTenant returns the tenant for a user's personal storage.
func UserTenant(userID int64) Tenant {
	return Tenant{Kind: TenantUser, ID: userID}
}

// TeamTenant returns the tenant for a teamspace's shared storage.
func TeamTenant(teamspaceID int64) Tenant {
	return Tenant{Kind: TenantTeam, ID: teamspaceID}
}

// Root returns the tenant's storage root, relative to the storage base path.
// Every physical path of the tenant lives underneath it.
func (t Tenant) Root() string {
	if t.Kind == TenantTeam {
		return fmt.Sprintf("teams/team%d", t.ID)
	}
	return fmt.Sprintf("users/user%d", t.ID)
}

func (t Tenant) String() string {
	return fmt.Sprintf("%s:%d", t.Kind, t.ID)
}
