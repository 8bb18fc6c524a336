// Package roles stores named authorities.
package roles

import (
	"context"

	"github.com/dmitrijs2005/ecomarket/internal/server/models"
)

type Repository interface {
	// GetOrCreate returns the role called name, inserting it first if
	// needed. Concurrent callers always observe the same row.
	GetOrCreate(ctx context.Context, name string) (*models.Role, error)
	GetByName(ctx context.Context, name string) (*models.Role, error)
	List(ctx context.Context) ([]models.Role, error)
}
