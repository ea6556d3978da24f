package accounts

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock, db
}

var columns = []string{"id", "uid", "email", "name", "password_hash", "verified", "active", "created_at", "updated_at"}

var created = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func accountRow(id string, verified, active bool) *sqlmock.Rows {
	return sqlmock.NewRows(columns).
		AddRow(id, "uid-"+id, "a@x.com", "Alice", "$2a$10$digest", verified, active, created, created)
}

const insertQuery = `(?s)^INSERT\s+INTO\s+accounts\s*\(uid,\s*email,\s*name,\s*password_hash,\s*verified,\s*active\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6\)\s*RETURNING\s+id,\s*created_at,\s*updated_at\s*$`

func TestCreate_Success(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(insertQuery).
		WithArgs("uid-1", "a@x.com", "Alice", "digest", false, true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("1", created, created))

	got, err := repo.Create(context.Background(), &models.Account{
		UID: "uid-1", Email: "  A@X.com ", Name: "Alice", PasswordHash: "digest", Verified: false, Active: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "1", got.ID)
	assert.Equal(t, "a@x.com", got.Email)
	assert.Equal(t, created, got.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_UniqueViolation(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(insertQuery).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "accounts_email_key"})

	_, err := repo.Create(context.Background(), &models.Account{UID: "u", Email: "a@x.com"})
	assert.ErrorIs(t, err, common.ErrDuplicateAccount)
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(insertQuery).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.Account{UID: "u", Email: "a@x.com"})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
	assert.False(t, common.IsTransient(err))
}

func TestCreate_Timeout(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(insertQuery).WillReturnError(context.DeadlineExceeded)

	_, err := repo.Create(context.Background(), &models.Account{UID: "u", Email: "a@x.com"})
	assert.True(t, common.IsTransient(err))
}

const selectByEmail = `(?s)^SELECT\s+id,\s*uid,\s*email,\s*name,\s*password_hash,\s*verified,\s*active,\s*created_at,\s*updated_at\s+FROM\s+accounts\s+WHERE\s+email\s*=\s*\$1\s*$`

func TestFindByEmail_Found(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(selectByEmail).WithArgs("a@x.com").WillReturnRows(accountRow("1", true, true))

	got, err := repo.FindByEmail(context.Background(), "A@x.com")
	require.NoError(t, err)
	assert.Equal(t, "1", got.ID)
	assert.Equal(t, "uid-1", got.UID)
	assert.Equal(t, "$2a$10$digest", got.PasswordHash)
	assert.True(t, got.Verified)
	assert.True(t, got.Active)
}

func TestFindByEmail_NotFound(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(selectByEmail).WithArgs("ghost@x.com").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByEmail(context.Background(), "ghost@x.com")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

const selectByID = `(?s)^SELECT\s+id,.*FROM\s+accounts\s+WHERE\s+id\s*=\s*\$1\s*$`

func TestFindByID(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(selectByID).WithArgs("1").WillReturnRows(accountRow("1", false, true))
	mock.ExpectQuery(selectByID).WithArgs("2").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(selectByID).WithArgs("3").WillReturnError(errors.New("db err"))

	got, err := repo.FindByID(context.Background(), "1")
	require.NoError(t, err)
	assert.False(t, got.Verified)

	_, err = repo.FindByID(context.Background(), "2")
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = repo.FindByID(context.Background(), "3")
	assert.ErrorContains(t, err, "db error: db err")
}

func TestFindByIDAndUpdate_NonNumericID(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	for _, id := range []string{"abc", "", "-1", "0", "1; DROP TABLE accounts"} {
		_, err := repo.FindByID(context.Background(), id)
		assert.ErrorIs(t, err, common.ErrNotFound, "find %q", id)

		v := true
		_, err = repo.Update(context.Background(), id, models.AccountPatch{Verified: &v})
		assert.ErrorIs(t, err, common.ErrNotFound, "update %q", id)
	}
	require.NoError(t, mock.ExpectationsWereMet(), "no statement reaches the database")
}

const (
	lockQuery   = `(?s)^SELECT\s+id,.*FROM\s+accounts\s+WHERE\s+id\s*=\s*\$1\s+FOR\s+UPDATE\s*$`
	updateQuery = `(?s)^UPDATE\s+accounts\s+SET\s+verified\s*=\s*\$2,\s*active\s*=\s*\$3,\s*updated_at\s*=\s*\$4\s+WHERE\s+id\s*=\s*\$1\s*$`
)

func TestUpdate_SetsVerified(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)
	now := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	mock.ExpectBegin()
	mock.ExpectQuery(lockQuery).WithArgs("1").WillReturnRows(accountRow("1", false, true))
	mock.ExpectExec(updateQuery).WithArgs("1", true, true, now).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	verified := true
	got, err := repo.Update(context.Background(), "1", models.AccountPatch{Verified: &verified})
	require.NoError(t, err)
	assert.True(t, got.Verified)
	assert.True(t, got.Active)
	assert.Equal(t, now, got.UpdatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_EmptyPatchOnlyReads(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(lockQuery).WithArgs("1").WillReturnRows(accountRow("1", true, false))
	mock.ExpectCommit()

	got, err := repo.Update(context.Background(), "1", models.AccountPatch{})
	require.NoError(t, err)
	assert.False(t, got.Active)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_NotFoundRollsBack(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(lockQuery).WithArgs("9").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	v := true
	_, err := repo.Update(context.Background(), "9", models.AccountPatch{Verified: &v})
	assert.ErrorIs(t, err, common.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_ExecErrorRollsBack(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(lockQuery).WithArgs("1").WillReturnRows(accountRow("1", false, true))
	mock.ExpectExec(updateQuery).WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	v := false
	_, err := repo.Update(context.Background(), "1", models.AccountPatch{Active: &v})
	require.Error(t, err)
	assert.True(t, common.IsTransient(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_BeginError(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectBegin().WillReturnError(errors.New("conn reset"))

	v := true
	_, err := repo.Update(context.Background(), "1", models.AccountPatch{Verified: &v})
	assert.ErrorContains(t, err, "update account: begin tx: conn reset")
}
