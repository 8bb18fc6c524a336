// Package services contains server-side business logic. This file implements
// AuthService, which handles registration, login and bearer-token
// authentication on top of the credential store.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/ecomarket/internal/common"
	"github.com/dmitrijs2005/ecomarket/internal/dbx"
	"github.com/dmitrijs2005/ecomarket/internal/logging"
	"github.com/dmitrijs2005/ecomarket/internal/server/auth"
	"github.com/dmitrijs2005/ecomarket/internal/server/models"
	"github.com/dmitrijs2005/ecomarket/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/ecomarket/internal/server/repositories/repomanager"
)

// AuthResult is returned by Login and Register. ID and Email are nil when
// the account record could not be loaded after a successful login.
type AuthResult struct {
	Token    string
	ID       *int64
	Username string
	Email    *string
}

// AuthService provides authentication-related operations:
// - Login: verify credentials and issue a token
// - Register: create an account with the default role and issue a token
// - Authenticate: turn a bearer token back into a Principal
type AuthService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      auth.Hasher
	tokens      *auth.TokenService
	resolver    *auth.Resolver
	logger      logging.Logger
}

// NewAuthService wires the service to the credential store.
func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, hasher auth.Hasher, tokens *auth.TokenService, logger logging.Logger) *AuthService {
	return &AuthService{
		db:          db,
		repomanager: m,
		hasher:      hasher,
		tokens:      tokens,
		resolver:    auth.NewResolver(accountIdentities{repo: m.Accounts(db)}),
		logger:      logger,
	}
}

// Login verifies identifier (username or email) and password and issues a
// token for the resolved principal. Unknown accounts, accounts without a
// usable password and wrong passwords all yield common.ErrorUnauthorized.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*AuthResult, error) {
	p, err := s.resolver.Resolve(ctx, identifier)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) || errors.Is(err, common.ErrInvalidAccount) {
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("error resolving account: %w", err)
	}

	if !s.hasher.Verify(password, p.PasswordHash) {
		return nil, common.ErrorUnauthorized
	}

	token, err := s.tokens.Issue(p)
	if err != nil {
		return nil, common.ErrorInternal
	}

	res := &AuthResult{Token: token, Username: p.Identifier}

	account, err := s.findAccount(ctx, p.Identifier)
	if err != nil {
		s.logger.Warn(ctx, "login response without account details", "subject", p.Identifier, "error", err)
		return res, nil
	}
	res.ID = &account.ID
	res.Email = &account.Email

	return res, nil
}

// Register creates an account holding ROLE_USER. The username is checked
// before the email, both before anything is written. Each value must be
// unused as a username and as an email, since Resolve matches an identifier
// against both columns. A concurrent
// registration that wins the race surfaces as the same *common.ConflictError.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*AuthResult, error) {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(email) == "" || password == "" {
		return nil, common.ErrBadRequest
	}

	repo := s.repomanager.Accounts(s.db)

	taken, err := identifierTaken(ctx, repo, username)
	if err != nil {
		return nil, fmt.Errorf("error checking username: %w", err)
	}
	if taken {
		return nil, common.NewUsernameConflict()
	}

	taken, err = identifierTaken(ctx, repo, email)
	if err != nil {
		return nil, fmt.Errorf("error checking email: %w", err)
	}
	if taken {
		return nil, common.NewEmailConflict()
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	var account *models.Account
	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		role, err := s.repomanager.Roles(tx).GetOrCreate(ctx, common.RoleUser)
		if err != nil {
			return fmt.Errorf("error ensuring default role: %w", err)
		}

		accountsTx := s.repomanager.Accounts(tx)
		account, err = accountsTx.Create(ctx, &models.Account{Username: username, Email: email, Hash: hash})
		if err != nil {
			return err
		}
		account.Roles = []models.Role{*role}

		return accountsTx.AddRole(ctx, account.ID, role.ID)
	}); err != nil {
		if errors.Is(err, common.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("error creating account: %w", err)
	}

	p, err := auth.NewPrincipal(registeredIdentity{username: account.Username, hash: account.Hash}, username)
	if err != nil {
		return nil, common.ErrorInternal
	}

	token, err := s.tokens.Issue(p)
	if err != nil {
		return nil, common.ErrorInternal
	}

	return &AuthResult{Token: token, ID: &account.ID, Username: account.Username, Email: &account.Email}, nil
}

// Authenticate reloads the principal named by token and checks the token
// against it. Every token or account problem yields common.ErrorUnauthorized;
// store failures are returned wrapped.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*auth.Principal, error) {
	subject, err := s.tokens.ExtractSubject(token)
	if err != nil {
		return nil, common.ErrorUnauthorized
	}

	p, err := s.resolver.Resolve(ctx, subject)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) || errors.Is(err, common.ErrInvalidAccount) {
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("error resolving account: %w", err)
	}

	if !s.tokens.Validate(token, p) {
		return nil, common.ErrorUnauthorized
	}

	return p, nil
}

// findAccount loads the account by username, then by email.
func (s *AuthService) findAccount(ctx context.Context, identifier string) (*models.Account, error) {
	repo := s.repomanager.Accounts(s.db)
	account, err := repo.GetByUsername(ctx, identifier)
	if errors.Is(err, common.ErrorNotFound) {
		account, err = repo.GetByEmail(ctx, identifier)
	}
	return account, err
}

// registeredIdentity is a freshly inserted account. It is issued a token
// before any authorities are loaded.
type registeredIdentity struct {
	auth.NoAuthorities
	username string
	hash     string
}

func (r registeredIdentity) Identifier() string   { return r.username }
func (r registeredIdentity) PasswordHash() string { return r.hash }

// accountIdentities adapts an accounts.Repository to auth.IdentityStore.
type accountIdentities struct {
	repo accounts.Repository
}

func (a accountIdentities) FindByEmail(ctx context.Context, email string) (auth.Identity, error) {
	account, err := a.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (a accountIdentities) FindByUsername(ctx context.Context, username string) (auth.Identity, error) {
	account, err := a.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return account, nil
}

// identifierTaken reports whether value is already some account's username
// or email.
func identifierTaken(ctx context.Context, repo accounts.Repository, value string) (bool, error) {
	taken, err := repo.ExistsByUsername(ctx, value)
	if err != nil || taken {
		return taken, err
	}
	return repo.ExistsByEmail(ctx, value)
}
