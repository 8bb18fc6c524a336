package services

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/ecomarket/internal/common"
	"github.com/dmitrijs2005/ecomarket/internal/dbx"
	"github.com/dmitrijs2005/ecomarket/internal/logging"
	"github.com/dmitrijs2005/ecomarket/internal/server/auth"
	"github.com/dmitrijs2005/ecomarket/internal/server/models"
	"github.com/dmitrijs2005/ecomarket/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/ecomarket/internal/server/repositories/roles"
	"golang.org/x/crypto/bcrypt"
)

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

// memStore is a credential store kept in memory. It enforces the same
// uniqueness rules as the database schema.
type memStore struct {
	mu       sync.Mutex
	accounts []*models.Account
	roles    []*models.Role
	links    map[int64][]int64

	// injected failures
	existsErr  error
	getErr     error
	createErr  error
	roleErr    error
	addRoleErr error

	// lookups after the first missAfter report ErrorNotFound (0 disables)
	missAfter   int
	getCalls    int
	createCalls int
	upsertCalls int
}

func newMemStore() *memStore {
	return &memStore{links: map[int64][]int64{}}
}

func (m *memStore) Create(_ context.Context, a *models.Account) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if m.createErr != nil {
		return nil, m.createErr
	}
	for _, existing := range m.accounts {
		if existing.Username == a.Username {
			return nil, common.NewUsernameConflict()
		}
		if existing.Email == a.Email {
			return nil, common.NewEmailConflict()
		}
	}
	cp := *a
	cp.ID = int64(len(m.accounts) + 1)
	cp.CreatedAt = time.Now()
	m.accounts = append(m.accounts, &cp)
	out := cp
	return &out, nil
}

func (m *memStore) find(match func(*models.Account) bool) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.missAfter > 0 && m.getCalls > m.missAfter {
		return nil, common.ErrorNotFound
	}
	for _, a := range m.accounts {
		if match(a) {
			cp := *a
			cp.Roles = []models.Role{}
			for _, rid := range m.links[a.ID] {
				for _, r := range m.roles {
					if r.ID == rid {
						cp.Roles = append(cp.Roles, *r)
					}
				}
			}
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (m *memStore) GetByUsername(_ context.Context, username string) (*models.Account, error) {
	return m.find(func(a *models.Account) bool { return a.Username == username })
}

func (m *memStore) GetByEmail(_ context.Context, email string) (*models.Account, error) {
	return m.find(func(a *models.Account) bool { return a.Email == email })
}

func (m *memStore) exists(match func(*models.Account) bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.existsErr != nil {
		return false, m.existsErr
	}
	for _, a := range m.accounts {
		if match(a) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) ExistsByUsername(_ context.Context, username string) (bool, error) {
	return m.exists(func(a *models.Account) bool { return a.Username == username })
}

func (m *memStore) ExistsByEmail(_ context.Context, email string) (bool, error) {
	return m.exists(func(a *models.Account) bool { return a.Email == email })
}

func (m *memStore) AddRole(_ context.Context, accountID, roleID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.addRoleErr != nil {
		return m.addRoleErr
	}
	for _, id := range m.links[accountID] {
		if id == roleID {
			return nil
		}
	}
	m.links[accountID] = append(m.links[accountID], roleID)
	return nil
}

func (m *memStore) GetOrCreate(_ context.Context, name string) (*models.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertCalls++
	if m.roleErr != nil {
		return nil, m.roleErr
	}
	for _, r := range m.roles {
		if r.Name == name {
			cp := *r
			return &cp, nil
		}
	}
	r := &models.Role{ID: int64(len(m.roles) + 1), Name: name}
	m.roles = append(m.roles, r)
	cp := *r
	return &cp, nil
}

func (m *memStore) GetByName(_ context.Context, name string) (*models.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.roles {
		if r.Name == name {
			cp := *r
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (m *memStore) List(context.Context) ([]models.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Role, 0, len(m.roles))
	for _, r := range m.roles {
		out = append(out, *r)
	}
	return out, nil
}

func (m *memStore) countRole(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.roles {
		if r.Name == name {
			n++
		}
	}
	return n
}

type fakeRepoManager struct {
	store *memStore
}

func (f *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (f *fakeRepoManager) Accounts(dbx.DBTX) accounts.Repository       { return f.store }
func (f *fakeRepoManager) Roles(dbx.DBTX) roles.Repository             { return f.store }

// --- helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func newTestService(t *testing.T, db *sql.DB, store *memStore) *AuthService {
	t.Helper()
	tokens := auth.NewTokenService([]byte("k"), time.Hour)
	return NewAuthService(db, &fakeRepoManager{store: store}, auth.NewBcryptHasher(bcrypt.MinCost), tokens, logging.Nop())
}

