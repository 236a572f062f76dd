package services

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"iter"
	"path"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cloudcrate/cloudcrate/internal/common"
	"github.com/cloudcrate/cloudcrate/internal/dbx"
	"github.com/cloudcrate/cloudcrate/internal/logging"
	"github.com/cloudcrate/cloudcrate/internal/models"
	itemsrepo "github.com/cloudcrate/cloudcrate/internal/repositories/items"
	teamspacesrepo "github.com/cloudcrate/cloudcrate/internal/repositories/teamspaces"
	usersrepo "github.com/cloudcrate/cloudcrate/internal/repositories/users"
	"github.com/cloudcrate/cloudcrate/internal/storage"
)

// --- helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func seqOf(items ...*models.Item) iter.Seq[*models.Item] {
	return func(yield func(*models.Item) bool) {
		for _, item := range items {
			if !yield(item) {
				return
			}
		}
	}
}

type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...any) {}
func (nopLogger) Info(context.Context, string, ...any)  {}
func (nopLogger) Warn(context.Context, string, ...any)  {}
func (nopLogger) Error(context.Context, string, ...any) {}
func (l nopLogger) With(...any) logging.Logger          { return l }

// --- repositories ---

type fakeItemsRepo struct {
	byID map[int64]*models.Item

	files    []*models.Item
	filesErr error

	folderPath    string
	folderPathErr error

	expiredIDs []int64
	expiredErr error
	threshold  time.Time

	updated   []*models.Item
	updateErr error

	createErr error
	created   []*models.Item

	deleteBatches   [][]int64
	deleteBatchErrs []error
	deleteBatchNs   []int64
}

func (f *fakeItemsRepo) GetByID(ctx context.Context, id int64) (*models.Item, error) {
	if item, ok := f.byID[id]; ok {
		return item, nil
	}
	return nil, fmt.Errorf("item %d: %w", id, common.ErrorNotFound)
}

func (f *fakeItemsRepo) GetByIDs(ctx context.Context, ids []int64) ([]*models.Item, error) {
	var out []*models.Item
	for _, id := range ids {
		if item, ok := f.byID[id]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *fakeItemsRepo) ListChildren(context.Context, models.Tenant, *int64, bool) ([]*models.Item, error) {
	return nil, nil
}

func (f *fakeItemsRepo) Descendants(context.Context, int64, int) ([]*models.Item, error) {
	return nil, nil
}

func (f *fakeItemsRepo) Files(ctx context.Context, tenant models.Tenant, folderID *int64) ([]*models.Item, error) {
	if f.filesErr != nil {
		return nil, f.filesErr
	}
	return f.files, nil
}

func (f *fakeItemsRepo) Create(ctx context.Context, item *models.Item) (*models.Item, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	item.ID = int64(len(f.created) + 1)
	f.created = append(f.created, item)
	return item, nil
}

func (f *fakeItemsRepo) UpdateBatch(ctx context.Context, items []*models.Item) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updated = append(f.updated, items...)
	return nil
}

func (f *fakeItemsRepo) Delete(context.Context, int64) error { return nil }

func (f *fakeItemsRepo) DeleteBatch(ctx context.Context, ids []int64) (int64, error) {
	call := len(f.deleteBatches)
	f.deleteBatches = append(f.deleteBatches, ids)
	if call < len(f.deleteBatchErrs) && f.deleteBatchErrs[call] != nil {
		return 0, f.deleteBatchErrs[call]
	}
	if call < len(f.deleteBatchNs) {
		return f.deleteBatchNs[call], nil
	}
	return int64(len(ids)), nil
}

func (f *fakeItemsRepo) ExpiredIDs(ctx context.Context, threshold time.Time) ([]int64, error) {
	f.threshold = threshold
	if f.expiredErr != nil {
		return nil, f.expiredErr
	}
	return f.expiredIDs, nil
}

func (f *fakeItemsRepo) FolderPath(ctx context.Context, folderID int64) (string, error) {
	if f.folderPathErr != nil {
		return "", f.folderPathErr
	}
	return f.folderPath, nil
}

func (f *fakeItemsRepo) ExistsWithName(context.Context, models.Tenant, *int64, string) (bool, error) {
	return false, nil
}

type fakeUsersRepo struct {
	user *models.User

	adjusted []int64
	adjErr   error

	setTo  []int64
	setErr error
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	if f.user == nil {
		return nil, fmt.Errorf("user %d: %w", id, common.ErrorNotFound)
	}
	return f.user, nil
}

func (f *fakeUsersRepo) AdjustUsedStorage(ctx context.Context, id int64, deltaMB int64) error {
	if f.adjErr != nil {
		return f.adjErr
	}
	f.adjusted = append(f.adjusted, deltaMB)
	return nil
}

func (f *fakeUsersRepo) SetUsedStorage(ctx context.Context, id int64, usedMB int64) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.setTo = append(f.setTo, usedMB)
	return nil
}

type fakeTeamspacesRepo struct {
	ts *models.Teamspace

	adjusted []int64
	adjErr   error

	setTo []int64
}

func (f *fakeTeamspacesRepo) GetByID(ctx context.Context, id int64) (*models.Teamspace, error) {
	if f.ts == nil {
		return nil, fmt.Errorf("teamspace %d: %w", id, common.ErrorNotFound)
	}
	return f.ts, nil
}

func (f *fakeTeamspacesRepo) AdjustUsedStorage(ctx context.Context, id int64, deltaMB int64) error {
	if f.adjErr != nil {
		return f.adjErr
	}
	f.adjusted = append(f.adjusted, deltaMB)
	return nil
}

func (f *fakeTeamspacesRepo) SetUsedStorage(ctx context.Context, id int64, usedMB int64) error {
	f.setTo = append(f.setTo, usedMB)
	return nil
}

type fakeRepoManager struct {
	items *fakeItemsRepo
	users *fakeUsersRepo
	teams *fakeTeamspacesRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Items(db dbx.DBTX) itemsrepo.Repository       { return m.items }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository       { return m.users }
func (m *fakeRepoManager) Teamspaces(db dbx.DBTX) teamspacesrepo.Repository {
	return m.teams
}

// --- storage adapter ---

// fakeAdapter mirrors the path arithmetic of the disk adapter without
// touching the filesystem and records every call.
type fakeAdapter struct {
	saveRel string
	saveErr error

	renameCalls int
	renameErr   error

	moveCalls int
	moveErr   error

	deleted   []int64
	deleteErr map[int64]error

	content map[string]string
	openErr map[string]error
}

func (f *fakeAdapter) Save(ctx context.Context, tenant models.Tenant, dir string, file *models.IncomingFile) (string, error) {
	if f.saveErr != nil {
		return "", f.saveErr
	}
	if f.saveRel != "" {
		return f.saveRel, nil
	}
	return path.Join(dir, file.Name), nil
}

func (f *fakeAdapter) CreateFolder(ctx context.Context, tenant models.Tenant, rel string) (bool, error) {
	return true, nil
}

func (f *fakeAdapter) Rename(ctx context.Context, item *models.Item, newName, currentFolderPath string) (string, error) {
	f.renameCalls++
	if f.renameErr != nil {
		return "", f.renameErr
	}
	if item.Type == models.ItemTypeFile {
		if path.Ext(newName) == "" {
			newName += path.Ext(item.FilePath)
		}
		return path.Join(storage.TrimLastSegment(item.FilePath), newName), nil
	}
	return path.Join(storage.TrimLastSegment(currentFolderPath), newName), nil
}

func (f *fakeAdapter) Move(ctx context.Context, item *models.Item, destinationFolderPath, sourceFolderPath string) (string, error) {
	f.moveCalls++
	if f.moveErr != nil {
		return "", f.moveErr
	}
	if item.Type == models.ItemTypeFile {
		return path.Join(destinationFolderPath, path.Base(item.FilePath)), nil
	}
	return path.Join(destinationFolderPath, item.Name), nil
}

func (f *fakeAdapter) Delete(ctx context.Context, item *models.Item, folderPath string) error {
	if err, ok := f.deleteErr[item.ID]; ok {
		return err
	}
	f.deleted = append(f.deleted, item.ID)
	return nil
}

func (f *fakeAdapter) Open(ctx context.Context, tenant models.Tenant, rel string) (io.ReadCloser, error) {
	if err, ok := f.openErr[rel]; ok {
		return nil, err
	}
	content, ok := f.content[rel]
	if !ok {
		return nil, fmt.Errorf("file %s: %w", rel, common.ErrorNotFound)
	}
	return io.NopCloser(strings.NewReader(content)), nil
}
