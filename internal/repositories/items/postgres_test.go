package items

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cloudcrate/cloudcrate/internal/common"
	"github.com/cloudcrate/cloudcrate/internal/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var itemCols = []string{
	"id", "owner_id", "teamspace_id", "parent_id", "type", "name", "file_path",
	"size", "mime_type", "access", "is_deleted", "deleted_at", "created_at", "updated_at",
}

func addItemRow(rows *sqlmock.Rows, id int64, typ, name, filePath string, size int64) *sqlmock.Rows {
	now := time.Now()
	return rows.AddRow(id, int64(1), nil, nil, typ, name, filePath, size, "text/plain", "private", false, nil, now, now)
}

func TestGetByID_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+id,\s*owner_id,.*\s+FROM\s+items\s+WHERE\s+id\s*=\s*\$1\s*$`

	rows := sqlmock.NewRows(itemCols)
	addItemRow(rows, 5, "file", "a.txt", "docs/a.txt", 11)
	mock.ExpectQuery(q).WithArgs(int64(5)).WillReturnRows(rows)

	got, err := repo.GetByID(context.Background(), 5)
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if got.ID != 5 || got.Name != "a.txt" || got.FilePath != "docs/a.txt" {
		t.Fatalf("unexpected item: %+v", got)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+id,\s*owner_id,.*\s+FROM\s+items\s+WHERE\s+id\s*=\s*\$1\s*$`
	mock.ExpectQuery(q).WithArgs(int64(9)).WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), 9)
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestGetByIDs(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+id,\s*owner_id,.*\s+FROM\s+items\s+WHERE\s+id\s+IN\s+\(\$1,\s*\$2\)\s*$`

	rows := sqlmock.NewRows(itemCols)
	addItemRow(rows, 1, "file", "a.txt", "docs/a.txt", 1)
	addItemRow(rows, 2, "folder", "docs", "", 0)
	mock.ExpectQuery(q).WithArgs(int64(1), int64(2)).WillReturnRows(rows)

	got, err := repo.GetByIDs(context.Background(), []int64{1, 2})
	if err != nil {
		t.Fatalf("GetByIDs error: %v", err)
	}
	if len(got) != 2 || got[1].Type != models.ItemTypeFolder {
		t.Fatalf("unexpected items: %+v", got)
	}
}

func TestGetByIDs_Empty(t *testing.T) {
	repo, _, db := newRepoWithMock(t)
	defer db.Close()

	got, err := repo.GetByIDs(context.Background(), nil)
	if err != nil || got != nil {
		t.Fatalf("GetByIDs(nil) = (%v, %v), want (nil, nil)", got, err)
	}
}

func TestCreate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*INSERT\s+INTO\s+items\s*\(owner_id,.*\)\s*VALUES\s*\(\$1,.*\$11\)\s*RETURNING\s+id,\s*created_at,\s*updated_at\s*$`

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(42), now, now)
	mock.ExpectQuery(q).WillReturnRows(rows)

	item := &models.Item{
		OwnerID: 1, Type: models.ItemTypeFile, Name: "a.txt",
		FilePath: "docs/a.txt", Size: 3, MimeType: "text/plain", Access: models.AccessPrivate,
	}
	got, err := repo.Create(context.Background(), item)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.ID != 42 {
		t.Fatalf("id not populated: %+v", got)
	}
}

func TestUpdateBatch_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*UPDATE\s+items\s+SET\s+parent_id\s*=\s*\$2,.*WHERE\s+id\s*=\s*\$1\s*$`
	mock.ExpectExec(q).WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateBatch(context.Background(), []*models.Item{{ID: 7, Type: models.ItemTypeFile}})
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestDeleteBatch(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^DELETE\s+FROM\s+items\s+WHERE\s+id\s+IN\s+\(\$1,\s*\$2,\s*\$3\)\s*$`
	mock.ExpectExec(q).WithArgs(int64(1), int64(2), int64(3)).WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.DeleteBatch(context.Background(), []int64{1, 2, 3})
	if err != nil {
		t.Fatalf("DeleteBatch error: %v", err)
	}
	// one of the three rows was already gone
	if n != 2 {
		t.Fatalf("DeleteBatch = %d, want 2", n)
	}
}

func TestExpiredIDs(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+id\s+FROM\s+items\s+WHERE\s+is_deleted\s+AND\s+deleted_at\s*<=\s*\$1\s+ORDER\s+BY\s+id\s*$`

	threshold := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id"}).AddRow(int64(3)).AddRow(int64(8))
	mock.ExpectQuery(q).WithArgs(threshold).WillReturnRows(rows)

	ids, err := repo.ExpiredIDs(context.Background(), threshold)
	if err != nil {
		t.Fatalf("ExpiredIDs error: %v", err)
	}
	if len(ids) != 2 || ids[0] != 3 || ids[1] != 8 {
		t.Fatalf("unexpected ids: %v", ids)
	}
}

func TestFolderPath(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)WITH\s+RECURSIVE\s+chain.*SELECT\s+name\s+FROM\s+chain\s+ORDER\s+BY\s+depth\s+DESC`

	rows := sqlmock.NewRows([]string{"name"}).AddRow("docs").AddRow("projects").AddRow("2024")
	mock.ExpectQuery(q).WithArgs(int64(12)).WillReturnRows(rows)

	got, err := repo.FolderPath(context.Background(), 12)
	if err != nil {
		t.Fatalf("FolderPath error: %v", err)
	}
	if got != "docs/projects/2024" {
		t.Fatalf("FolderPath = %q", got)
	}
}

func TestFolderPath_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)WITH\s+RECURSIVE\s+chain.*ORDER\s+BY\s+depth\s+DESC`
	mock.ExpectQuery(q).WithArgs(int64(99)).WillReturnRows(sqlmock.NewRows([]string{"name"}))

	_, err := repo.FolderPath(context.Background(), 99)
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestListChildren_TrashedSkipsAncestorCheckAtRoot(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+id,\s*owner_id,.*WHERE\s+owner_id\s*=\s*\$1\s+AND\s+teamspace_id\s+IS\s+NULL\s+AND\s+parent_id\s+IS\s+NULL\s+AND\s+is_deleted\s*=\s*\$2\s+ORDER\s+BY\s+type\s+DESC,\s*name\s*$`

	rows := sqlmock.NewRows(itemCols)
	addItemRow(rows, 4, "folder", "old", "", 0)
	mock.ExpectQuery(q).WithArgs(int64(1), true).WillReturnRows(rows)

	got, err := repo.ListChildren(context.Background(), models.UserTenant(1), nil, true)
	if err != nil {
		t.Fatalf("ListChildren error: %v", err)
	}
	if len(got) != 1 || got[0].Name != "old" {
		t.Fatalf("unexpected children: %+v", got)
	}
}

func TestListChildren_DeletedAncestorHidesActiveListing(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	chainQ := `(?s)WITH\s+RECURSIVE\s+chain.*COALESCE\(bool_or\(is_deleted\),\s*FALSE\)\s+FROM\s+chain`
	mock.ExpectQuery(chainQ).WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(true))

	parent := int64(7)
	got, err := repo.ListChildren(context.Background(), models.UserTenant(1), &parent, false)
	if err != nil {
		t.Fatalf("ListChildren error: %v", err)
	}
	if got != nil {
		t.Fatalf("children under a trashed ancestor must not appear in active listings: %+v", got)
	}
}

func TestExistsWithName_CaseInsensitive(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+EXISTS\(.*lower\(name\)\s*=\s*lower\(\$3\)\)\s*$`

	parent := int64(2)
	mock.ExpectQuery(q).WithArgs(int64(1), parent, "Report.PDF").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsWithName(context.Background(), models.UserTenant(1), &parent, "Report.PDF")
	if err != nil {
		t.Fatalf("ExistsWithName error: %v", err)
	}
	if !exists {
		t.Fatalf("want exists = true")
	}
}
