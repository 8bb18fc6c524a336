package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/ecomarket/internal/common"
	"github.com/dmitrijs2005/ecomarket/internal/dbx"
	"github.com/dmitrijs2005/ecomarket/internal/server/models"
)

// AdminAccount describes the administrator ensured by Seed.
type AdminAccount struct {
	Username string
	Email    string
	Password string
}

// Seed makes sure ROLE_ADMIN and ROLE_USER exist. When admin.Password is
// set and no account owns admin.Username yet, it also creates the
// administrator holding both roles. It reports whether an account was
// created. Existing accounts are left untouched. An admin username or email
// already used by another account under the other field is a conflict.
func (s *AuthService) Seed(ctx context.Context, admin AdminAccount) (bool, error) {
	var hash string
	if admin.Password != "" {
		var err error
		if hash, err = s.hasher.Hash(admin.Password); err != nil {
			return false, fmt.Errorf("error hashing password: %w", err)
		}
	}

	created := false
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		rolesTx := s.repomanager.Roles(tx)

		adminRole, err := rolesTx.GetOrCreate(ctx, common.RoleAdmin)
		if err != nil {
			return fmt.Errorf("error ensuring %s: %w", common.RoleAdmin, err)
		}
		userRole, err := rolesTx.GetOrCreate(ctx, common.RoleUser)
		if err != nil {
			return fmt.Errorf("error ensuring %s: %w", common.RoleUser, err)
		}

		if hash == "" {
			return nil
		}

		accountsTx := s.repomanager.Accounts(tx)
		exists, err := accountsTx.ExistsByUsername(ctx, admin.Username)
		if err != nil {
			return fmt.Errorf("error checking username: %w", err)
		}
		if exists {
			return nil
		}

		taken, err := accountsTx.ExistsByEmail(ctx, admin.Username)
		if err != nil {
			return fmt.Errorf("error checking username: %w", err)
		}
		if taken {
			return common.NewUsernameConflict()
		}
		taken, err = identifierTaken(ctx, accountsTx, admin.Email)
		if err != nil {
			return fmt.Errorf("error checking email: %w", err)
		}
		if taken {
			return common.NewEmailConflict()
		}

		account, err := accountsTx.Create(ctx, &models.Account{Username: admin.Username, Email: admin.Email, Hash: hash})
		if err != nil {
			return err
		}
		for _, role := range []*models.Role{adminRole, userRole} {
			if err := accountsTx.AddRole(ctx, account.ID, role.ID); err != nil {
				return err
			}
		}

		created = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if created {
		s.logger.Info(ctx, "administrator account created", "username", admin.Username)
	}
	return created, nil
}
