// Package models defines the data records persisted by the metadata
// repository: items (the per-tenant file/folder tree), users and teamspaces.
package models

import "time"

// ItemType discriminates the two node kinds of the tenant tree.
type ItemType string

const (
	ItemTypeFile   ItemType = "file"
	ItemTypeFolder ItemType = "folder"
)

// AccessLevel controls teamspace visibility of an item.
type AccessLevel string

const (
	AccessPrivate   AccessLevel = "private"
	AccessTeamRead  AccessLevel = "team_read"
	AccessTeamWrite AccessLevel = "team_write"
)

// Item is one node in a tenant's hierarchical tree.
//
// A folder never carries FilePath or Size; a file carries both once it has
// been materialized on disk. FilePath is relative to the tenant's storage
// root (e.g. "docs/report.pdf"). The engine borrows items by value for the
// duration of one operation and hands updated copies back to the repository.
type Item struct {
	ID          int64
	OwnerID     int64
	TeamspaceID *int64
	ParentID    *int64

	Type     ItemType
	Name     string
	FilePath string
	Size     int64
	MimeType string
	Access   AccessLevel

	IsDeleted bool
	DeletedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Tenant returns the storage-root and quota boundary the item belongs to:
// its teamspace when set, otherwise its owner.
func (i *Item) Tenant() Tenant {
	if i.TeamspaceID != nil {
		return Tenant{Kind: TenantTeam, ID: *i.TeamspaceID}
	}
	return Tenant{Kind: TenantUser, ID: i.OwnerID}
}

// IsFile reports whether the item is a file node.
func (i *Item) IsFile() bool { return i.Type == ItemTypeFile }

// IsFolder reports whether the item is a folder node.
func (i *Item) IsFolder() bool { return i.Type == ItemTypeFolder }
