package storage

import (
	"context"
	"io"

	"github.com/cloudcrate/cloudcrate/internal/models"
)

// Adapter performs the physical file and directory operations behind the
// metadata tree. Implementations must route every path through a Resolver
// and surface the sentinel errors from internal/common.
//
// All relative paths exclude the tenant root ("docs/report.pdf", not
// "users/user1/docs/report.pdf"); the tenant is passed or derived from the
// item.
type Adapter interface {
	// Save writes the incoming stream into dir, disambiguating the name on
	// collision, and returns the relative path actually used.
	Save(ctx context.Context, tenant models.Tenant, dir string, file *models.IncomingFile) (string, error)

	// CreateFolder idempotently creates a directory. It returns false, not
	// an error, when the directory already existed.
	CreateFolder(ctx context.Context, tenant models.Tenant, rel string) (bool, error)

	// Rename renames a file in place (preserving the original extension when
	// newName has none) or moves a folder to a sibling path with the new
	// name. currentFolderPath is the folder's own relative path and is
	// ignored for files.
	Rename(ctx context.Context, item *models.Item, newName, currentFolderPath string) (string, error)

	// Move relocates a file or a folder (recursively) under
	// destinationFolderPath. sourceFolderPath is the folder's current
	// relative path and is ignored for files.
	Move(ctx context.Context, item *models.Item, destinationFolderPath, sourceFolderPath string) (string, error)

	// Delete removes a file or recursively removes a folder. A missing
	// target is not an error; any other I/O failure propagates.
	Delete(ctx context.Context, item *models.Item, folderPath string) error

	// Open returns a streaming reader for a stored file.
	Open(ctx context.Context, tenant models.Tenant, rel string) (io.ReadCloser, error)
}
