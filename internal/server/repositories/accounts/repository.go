// Package accounts stores end-user accounts and their role links.
package accounts

import (
	"context"

	"github.com/dmitrijs2005/ecomarket/internal/server/models"
)

// Repository is the account half of the credential store. Lookups compare
// username and email exactly as stored. Missing rows yield
// common.ErrorNotFound; a duplicate username or email on Create yields a
// *common.ConflictError naming the field.
type Repository interface {
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	GetByUsername(ctx context.Context, username string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	AddRole(ctx context.Context, accountID, roleID int64) error
}
