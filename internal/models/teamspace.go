package models

import "time"

// Teamspace is a shared storage tenant. Unlike users, its storage and member
// limits are stored per row rather than derived from a plan table.
type Teamspace struct {
	ID             int64
	AdminID        int64
	UsedStorageMB  int64
	StorageLimitMB int64
	MemberCount    int64
	MemberLimit    int64
	CreatedAt      time.Time
}
