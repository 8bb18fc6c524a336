package admincli

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/ecomarket/internal/common"
	"github.com/dmitrijs2005/ecomarket/internal/dbx"
	"github.com/dmitrijs2005/ecomarket/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/ecomarket/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/ecomarket/internal/server/repositories/roles"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeManager uses the real Postgres repositories but skips migrations.
type fakeManager struct {
	migrateErr error
}

func (m *fakeManager) RunMigrations(context.Context, *sql.DB) error { return m.migrateErr }

func (m *fakeManager) Accounts(db dbx.DBTX) accounts.Repository {
	return accounts.NewPostgresRepository(db)
}

func (m *fakeManager) Roles(db dbx.DBTX) roles.Repository {
	return roles.NewPostgresRepository(db)
}

// stubSeams replaces the package seams for the duration of the test.
func stubSeams(t *testing.T, db *sql.DB, m repomanager.RepositoryManager, passwords ...string) {
	t.Helper()
	oldRead, oldOpen, oldManager := readPassword, openDB, newManager
	t.Cleanup(func() { readPassword, openDB, newManager = oldRead, oldOpen, oldManager })

	readPassword = func(int) ([]byte, error) {
		if len(passwords) == 0 {
			return nil, errors.New("no more input")
		}
		pw := passwords[0]
		passwords = passwords[1:]
		return []byte(pw), nil
	}
	openDB = func(context.Context, string) (*sql.DB, error) {
		if db == nil {
			return nil, errors.New("connection refused")
		}
		return db, nil
	}
	newManager = func() repomanager.RepositoryManager { return m }
}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock
}

func expectRoleUpsert(mock sqlmock.Sqlmock, id int64, name string) {
	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+roles`).
		WithArgs(name).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(id, name))
}

func expectExists(mock sqlmock.Sqlmock, column, value string, found bool) {
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS (SELECT 1 FROM accounts WHERE `+column+` = $1)`)).
		WithArgs(value).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(found))
}

func TestRun_Usage(t *testing.T) {
	var out bytes.Buffer
	assert.ErrorIs(t, Run(context.Background(), nil, &out), ErrUsage)
	assert.ErrorIs(t, Run(context.Background(), []string{"drop"}, &out), ErrUsage)
}

func TestCreate_CreatesAdministrator(t *testing.T) {
	db, mock := newMock(t)
	stubSeams(t, db, &fakeManager{}, "AdminPass123", "AdminPass123")

	mock.ExpectBegin()
	expectRoleUpsert(mock, 1, "ROLE_ADMIN")
	expectRoleUpsert(mock, 2, "ROLE_USER")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS (SELECT 1 FROM accounts WHERE username = $1)`)).
		WithArgs("root").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	expectExists(mock, "email", "root", false)
	expectExists(mock, "username", "root@example.com", false)
	expectExists(mock, "email", "root@example.com", false)
	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+accounts`).
		WithArgs("root", "root@example.com", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(10), time.Now()))
	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+account_roles`).
		WithArgs(int64(10), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+account_roles`).
		WithArgs(int64(10), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectClose()

	var out bytes.Buffer
	err := Run(context.Background(), []string{"create", "-u", "root", "-e", "root@example.com", "-cost", "4"}, &out)

	require.NoError(t, err)
	assert.Contains(t, out.String(), `administrator "root" created`)
	assert.NotContains(t, out.String(), "AdminPass123")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_ExistingAccount(t *testing.T) {
	db, mock := newMock(t)
	stubSeams(t, db, &fakeManager{}, "pw", "pw")

	mock.ExpectBegin()
	expectRoleUpsert(mock, 1, "ROLE_ADMIN")
	expectRoleUpsert(mock, 2, "ROLE_USER")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS (SELECT 1 FROM accounts WHERE username = $1)`)).
		WithArgs("admin").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectCommit()
	mock.ExpectClose()

	var out bytes.Buffer
	err := Run(context.Background(), []string{"create", "-cost", "4"}, &out)

	require.NoError(t, err)
	assert.Contains(t, out.String(), "already exists")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_PasswordProblems(t *testing.T) {
	tests := []struct {
		name      string
		passwords []string
		want      error
	}{
		{"mismatch", []string{"one", "two"}, ErrPasswordMismatch},
		{"empty", []string{"", ""}, ErrEmptyPassword},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stubSeams(t, nil, &fakeManager{}, tt.passwords...)

			err := Run(context.Background(), []string{"create"}, &bytes.Buffer{})

			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCreate_ConnectionErrors(t *testing.T) {
	t.Run("open", func(t *testing.T) {
		stubSeams(t, nil, &fakeManager{}, "pw", "pw")
		err := Run(context.Background(), []string{"create"}, &bytes.Buffer{})
		assert.ErrorContains(t, err, "db init error")
	})

	t.Run("migrations", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectClose()
		stubSeams(t, db, &fakeManager{migrateErr: errors.New("dirty")}, "pw", "pw")

		err := Run(context.Background(), []string{"create"}, &bytes.Buffer{})

		assert.ErrorContains(t, err, "migration error")
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRoles_ListsRoles(t *testing.T) {
	db, mock := newMock(t)
	stubSeams(t, db, &fakeManager{})

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, name FROM roles ORDER BY id`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(1), "ROLE_ADMIN").
			AddRow(int64(2), "ROLE_USER"))
	mock.ExpectClose()

	var out bytes.Buffer
	err := Run(context.Background(), []string{"roles", "-d", "postgres://x"}, &out)

	require.NoError(t, err)
	assert.Equal(t, "1\tROLE_ADMIN\n2\tROLE_USER\n", out.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_AdminEmailIsAnotherUsername(t *testing.T) {
	db, mock := newMock(t)
	stubSeams(t, db, &fakeManager{}, "pw", "pw")

	mock.ExpectBegin()
	expectRoleUpsert(mock, 1, "ROLE_ADMIN")
	expectRoleUpsert(mock, 2, "ROLE_USER")
	expectExists(mock, "username", "admin", false)
	expectExists(mock, "email", "admin", false)
	expectExists(mock, "username", "admin@example.com", true)
	mock.ExpectRollback()
	mock.ExpectClose()

	err := Run(context.Background(), []string{"create", "-cost", "4"}, &bytes.Buffer{})

	assert.ErrorIs(t, err, common.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}
