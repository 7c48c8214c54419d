package access_test

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/credportal/credportal/engine/access"
	"github.com/credportal/credportal/engine/core"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var created = time.Date(2025, time.August, 1, 12, 0, 0, 0, time.UTC)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func ptr[T any](v T) *T { return &v }

var userColumns = []string{
	"id", "username", "password_hash", "email", "full_name", "otp_secret",
	"is_active", "is_staff", "is_superuser", "last_login_ip", "last_login",
	"created_at", "updated_at",
}

func userRows(mock pgxmock.PgxPoolIface) *pgxmock.Rows {
	return mock.NewRows(userColumns).AddRow(
		int64(1), "msouza", "$argon2id$v=19$m=15000,t=2,p=1$c2FsdA$aGFzaA", "m@example.com", "Maria Souza",
		ptr("JBSWY3DPEHPK3PXP"), true, true, false, nil, nil, created, created,
	)
}

func TestModuleRepository(t *testing.T) {
	ctx := context.Background()
	t.Run("Should map a duplicate title to a conflict", func(t *testing.T) {
		mock := newMock(t)
		repo := access.NewModuleRepository(mock)
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO modules (title) VALUES ($1) RETURNING id, title, created_at, updated_at")).
			WithArgs("Credit").
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "modules_title_key"})
		_, err := repo.Create(ctx, &access.ModuleInput{Title: "Credit"})
		assert.ErrorIs(t, err, core.ErrConflict)
		var pgErr *pgconn.PgError
		require.ErrorAs(t, err, &pgErr)
		assert.Equal(t, "modules_title_key", pgErr.ConstraintName)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("Should search module titles", func(t *testing.T) {
		mock := newMock(t)
		repo := access.NewModuleRepository(mock)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM modules mo WHERE (mo.title::text ILIKE $1)")).
			WithArgs("%cred%").
			WillReturnRows(mock.NewRows([]string{"count"}).AddRow(int64(1)))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT mo.id, mo.title, mo.created_at, mo.updated_at FROM modules mo")).
			WithArgs("%cred%").
			WillReturnRows(mock.NewRows([]string{"id", "title", "created_at", "updated_at"}).
				AddRow(int32(2), "Credit", created, created))
		page, err := repo.GetPaginated(ctx, core.PageRequest{Filter: "cred", Page: 1, PageSize: 10})
		require.NoError(t, err)
		assert.Equal(t, "Credit", page.Data[0].Title)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPermissionRepository(t *testing.T) {
	ctx := context.Background()
	t.Run("Should join the module title into listings", func(t *testing.T) {
		mock := newMock(t)
		repo := access.NewPermissionRepository(mock)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM permissions p JOIN modules mo ON mo.id = p.module_id")).
			WillReturnRows(mock.NewRows([]string{"count"}).AddRow(int64(1)))
		mock.ExpectQuery(regexp.QuoteMeta("mo.title AS module_title, p.created_at, p.updated_at FROM permissions p JOIN modules mo")).
			WillReturnRows(mock.NewRows([]string{"id", "name", "description", "module_id", "module_title", "created_at", "updated_at"}).
				AddRow(int32(7), "contact.view", nil, int32(2), ptr("Credit"), created, created))
		page, err := repo.GetPaginated(ctx, core.PageRequest{Page: 1, PageSize: 10})
		require.NoError(t, err)
		require.Len(t, page.Data, 1)
		assert.Equal(t, "Credit", *page.Data[0].ModuleTitle)
		assert.Nil(t, page.Data[0].Description)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("Should return the module title on create", func(t *testing.T) {
		mock := newMock(t)
		repo := access.NewPermissionRepository(mock)
		mock.ExpectQuery(regexp.QuoteMeta("(SELECT title FROM modules WHERE id = module_id) AS module_title")).
			WithArgs(pgxmock.AnyArg(), int32(2), "contact.view").
			WillReturnRows(mock.NewRows([]string{"id", "name", "description", "module_id", "module_title", "created_at", "updated_at"}).
				AddRow(int32(7), "contact.view", nil, int32(2), ptr("Credit"), created, created))
		got, err := repo.Create(ctx, &access.PermissionInput{Name: "contact.view", ModuleID: 2})
		require.NoError(t, err)
		require.NotNil(t, got.ModuleTitle)
		assert.Equal(t, "Credit", *got.ModuleTitle)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("Should reject a permission for a missing module", func(t *testing.T) {
		mock := newMock(t)
		repo := access.NewPermissionRepository(mock)
		mock.ExpectQuery("INSERT INTO permissions").
			WithArgs(pgxmock.AnyArg(), int32(99), "contact.view").
			WillReturnError(&pgconn.PgError{Code: pgerrcode.ForeignKeyViolation})
		_, err := repo.Create(ctx, &access.PermissionInput{Name: "contact.view", ModuleID: 99})
		assert.ErrorIs(t, err, core.ErrValidation)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRoleRepository_SetPermissions(t *testing.T) {
	ctx := context.Background()
	t.Run("Should replace grants with a deduplicated set", func(t *testing.T) {
		mock := newMock(t)
		repo := access.NewRoleRepository(mock)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM role_permissions WHERE role_id = $1")).
			WithArgs(int32(3)).
			WillReturnResult(pgxmock.NewResult("DELETE", 4))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO role_permissions (role_id,permission_id) VALUES ($1,$2),($3,$4)")).
			WithArgs(int32(3), int32(5), int32(3), int32(9)).
			WillReturnResult(pgxmock.NewResult("INSERT", 2))
		mock.ExpectCommit()
		require.NoError(t, repo.SetPermissions(ctx, 3, []int32{9, 5, 9}))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("Should clear grants for an empty set", func(t *testing.T) {
		mock := newMock(t)
		repo := access.NewRoleRepository(mock)
		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM role_permissions").WithArgs(int32(3)).
			WillReturnResult(pgxmock.NewResult("DELETE", 2))
		mock.ExpectCommit()
		require.NoError(t, repo.SetPermissions(ctx, 3, nil))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("Should roll back when a permission does not exist", func(t *testing.T) {
		mock := newMock(t)
		repo := access.NewRoleRepository(mock)
		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM role_permissions").WithArgs(int32(3)).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
		mock.ExpectExec("INSERT INTO role_permissions").WithArgs(int32(3), int32(404)).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.ForeignKeyViolation})
		mock.ExpectRollback()
		err := repo.SetPermissions(ctx, 3, []int32{404})
		assert.ErrorIs(t, err, core.ErrValidation)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	t.Run("Should never serialize credentials", func(t *testing.T) {
		mock := newMock(t)
		repo := access.NewUserRepository(mock)
		mock.ExpectQuery(regexp.QuoteMeta("FROM users u WHERE u.id = $1 LIMIT 1")).
			WithArgs(int64(1)).
			WillReturnRows(userRows(mock))
		user, err := repo.GetByID(ctx, 1)
		require.NoError(t, err)
		assert.NotEmpty(t, user.PasswordHash)
		raw, err := json.Marshal(user)
		require.NoError(t, err)
		assert.NotContains(t, string(raw), "argon2id")
		assert.NotContains(t, string(raw), "JBSWY3DPEHPK3PXP")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("Should create active accounts", func(t *testing.T) {
		mock := newMock(t)
		repo := access.NewUserRepository(mock)
		mock.ExpectQuery(regexp.QuoteMeta(
			"INSERT INTO users (email,full_name,is_active,is_staff,is_superuser,otp_secret,password_hash,username)",
		)).
			WithArgs("m@example.com", "Maria Souza", true, true, false, pgxmock.AnyArg(), "hash", "msouza").
			WillReturnRows(userRows(mock))
		user, err := repo.Create(ctx, &access.UserInput{
			Username:     "msouza",
			Email:        "m@example.com",
			FullName:     "Maria Souza",
			PasswordHash: "hash",
			IsStaff:      true,
		})
		require.NoError(t, err)
		assert.True(t, user.IsActive)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("Should record the login address in canonical form", func(t *testing.T) {
		mock := newMock(t)
		repo := access.NewUserRepository(mock)
		mock.ExpectQuery(regexp.QuoteMeta("UPDATE users SET last_login = $1, last_login_ip = $2 WHERE id = $3")).
			WithArgs(created, "10.0.0.7", int64(1)).
			WillReturnRows(userRows(mock))
		_, err := repo.RecordLogin(ctx, 1, "::ffff:10.0.0.7", created)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("Should reject a malformed login address", func(t *testing.T) {
		mock := newMock(t)
		_, err := access.NewUserRepository(mock).RecordLogin(ctx, 1, "not-an-ip", created)
		assert.ErrorIs(t, err, core.ErrValidation)
	})
	t.Run("Should report a missing username as not found", func(t *testing.T) {
		mock := newMock(t)
		repo := access.NewUserRepository(mock)
		mock.ExpectQuery(regexp.QuoteMeta("WHERE u.username = $1")).
			WithArgs("ghost").
			WillReturnRows(mock.NewRows(userColumns))
		_, err := repo.GetByUsername(ctx, "ghost")
		assert.ErrorIs(t, err, core.ErrNotFound)
	})
	t.Run("Should surface storage failures on role assignment", func(t *testing.T) {
		mock := newMock(t)
		repo := access.NewUserRepository(mock)
		boom := errors.New("connection refused")
		mock.ExpectBegin().WillReturnError(boom)
		err := repo.SetRoles(ctx, 1, []int32{2})
		assert.ErrorIs(t, err, boom)
	})
}
