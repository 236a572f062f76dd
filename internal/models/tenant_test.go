package models

import "testing"

func TestTenantRoot(t *testing.T) {
	if got := UserTenant(1).Root(); got != "users/user1" {
		t.Fatalf("user root = %q", got)
	}
	if got := TeamTenant(42).Root(); got != "teams/team42" {
		t.Fatalf("team root = %q", got)
	}
}

func TestItemTenant(t *testing.T) {
	personal := &Item{OwnerID: 3, Type: ItemTypeFile}
	if got := personal.Tenant(); got != UserTenant(3) {
		t.Fatalf("personal tenant = %+v", got)
	}

	teamID := int64(7)
	shared := &Item{OwnerID: 3, TeamspaceID: &teamID, Type: ItemTypeFile}
	if got := shared.Tenant(); got != TeamTenant(7) {
		t.Fatalf("shared tenant = %+v", got)
	}
}
