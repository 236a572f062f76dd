package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/cloudcrate/cloudcrate/internal/common"
	"github.com/cloudcrate/cloudcrate/internal/models"
)

// DiskAdapter implements Adapter on the local filesystem. Tenant trees live
// under the resolver's base path, mirroring the logical folder hierarchy.
type DiskAdapter struct {
	resolver *Resolver
}

func NewDiskAdapter(resolver *Resolver) *DiskAdapter {
	return &DiskAdapter{resolver: resolver}
}

// Save writes the incoming stream into dir. On a name collision the stored
// name gets a short unique suffix so Save never overwrites existing bytes.
func (d *DiskAdapter) Save(ctx context.Context, tenant models.Tenant, dir string, file *models.IncomingFile) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	absDir, err := d.resolver.Resolve(tenant, dir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(absDir, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", absDir, err)
	}

	name := path.Base(strings.ReplaceAll(file.Name, `\`, "/"))
	if name == "." || name == "/" || name == "" {
		return "", fmt.Errorf("file name %q: %w", file.Name, common.ErrorInvalidArgument)
	}

	rel := path.Join(dir, name)
	abs, err := d.resolver.Resolve(tenant, rel)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(abs); err == nil {
		name = disambiguate(name)
		rel = path.Join(dir, name)
		if abs, err = d.resolver.Resolve(tenant, rel); err != nil {
			return "", err
		}
	}

	out, err := os.OpenFile(abs, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o660)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", abs, err)
	}
	if _, err := io.Copy(out, file.Content); err != nil {
		out.Close()
		_ = os.Remove(abs)
		return "", fmt.Errorf("write %s: %w", abs, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", abs, err)
	}

	return rel, nil
}

// CreateFolder creates the directory if needed and reports whether it was
// actually created.
func (d *DiskAdapter) CreateFolder(ctx context.Context, tenant models.Tenant, rel string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	abs, err := d.resolver.Resolve(tenant, rel)
	if err != nil {
		return false, err
	}
	if info, err := os.Stat(abs); err == nil && info.IsDir() {
		return false, nil
	}
	if err := os.MkdirAll(abs, 0o770); err != nil {
		return false, fmt.Errorf("mkdir %s: %w", abs, err)
	}
	return true, nil
}

func (d *DiskAdapter) Rename(ctx context.Context, item *models.Item, newName, currentFolderPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var srcRel string
	switch item.Type {
	case models.ItemTypeFile:
		srcRel = item.FilePath
		if ext := path.Ext(newName); ext == "" {
			newName += path.Ext(item.FilePath)
		}
	case models.ItemTypeFolder:
		if strings.TrimSpace(currentFolderPath) == "" {
			return "", fmt.Errorf("folder path: %w", common.ErrorInvalidArgument)
		}
		srcRel = currentFolderPath
	default:
		return "", fmt.Errorf("type %q: %w", item.Type, common.ErrorNotSupportedType)
	}

	newRel := path.Join(TrimLastSegment(srcRel), newName)
	return newRel, d.relocate(item.Tenant(), srcRel, newRel)
}

func (d *DiskAdapter) Move(ctx context.Context, item *models.Item, destinationFolderPath, sourceFolderPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(destinationFolderPath) == "" {
		return "", fmt.Errorf("destination path: %w", common.ErrorInvalidArgument)
	}

	var srcRel, newRel string
	switch item.Type {
	case models.ItemTypeFile:
		srcRel = item.FilePath
		newRel = path.Join(destinationFolderPath, path.Base(item.FilePath))
	case models.ItemTypeFolder:
		if strings.TrimSpace(sourceFolderPath) == "" {
			return "", fmt.Errorf("source folder path: %w", common.ErrorInvalidArgument)
		}
		srcRel = sourceFolderPath
		newRel = path.Join(destinationFolderPath, item.Name)
	default:
		return "", fmt.Errorf("type %q: %w", item.Type, common.ErrorNotSupportedType)
	}

	return newRel, d.relocate(item.Tenant(), srcRel, newRel)
}

// relocate validates both endpoints and performs one os.Rename. The source
// must exist and the destination must not.
func (d *DiskAdapter) relocate(tenant models.Tenant, srcRel, dstRel string) error {
	src, err := d.resolver.Resolve(tenant, srcRel)
	if err != nil {
		return err
	}
	dst, err := d.resolver.Resolve(tenant, dstRel)
	if err != nil {
		return err
	}

	if _, err := os.Stat(src); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("source %s: %w", srcRel, common.ErrorNotFound)
		}
		return fmt.Errorf("stat %s: %w", src, err)
	}
	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("destination %s: %w", dstRel, common.ErrorAlreadyExists)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o770); err != nil {
		return fmt.Errorf("mkdir parent of %s: %w", dst, err)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("rename %s -> %s: %w", src, dst, err)
	}
	return nil
}

// Delete removes a file or a folder tree. Missing targets are fine: delete
// is idempotent so metadata cleanup is never blocked by bytes that are
// already gone.
func (d *DiskAdapter) Delete(ctx context.Context, item *models.Item, folderPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	switch item.Type {
	case models.ItemTypeFile:
		if item.FilePath == "" {
			return nil
		}
		abs, err := d.resolver.Resolve(item.Tenant(), item.FilePath)
		if err != nil {
			return err
		}
		if err := os.Remove(abs); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", abs, err)
		}
		return nil
	case models.ItemTypeFolder:
		if folderPath == "" {
			return nil
		}
		abs, err := d.resolver.Resolve(item.Tenant(), folderPath)
		if err != nil {
			return err
		}
		if err := os.RemoveAll(abs); err != nil {
			return fmt.Errorf("remove %s: %w", abs, err)
		}
		return nil
	default:
		return fmt.Errorf("type %q: %w", item.Type, common.ErrorNotSupportedType)
	}
}

func (d *DiskAdapter) Open(ctx context.Context, tenant models.Tenant, rel string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	abs, err := d.resolver.Resolve(tenant, rel)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("file %s: %w", rel, common.ErrorNotFound)
		}
		return nil, fmt.Errorf("open %s: %w", abs, err)
	}
	return f, nil
}

// disambiguate inserts a short unique suffix before the extension.
func disambiguate(name string) string {
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	return fmt.Sprintf("%s_%s%s", stem, uuid.NewString()[:8], ext)
}
