package store

import (
	"context"

	"github.com/me/schedsim/pkg/model"
)

// Store defines the persistence layer for simulation history.
type Store interface {
	// Cycle history
	CreateCycle(ctx context.Context, c *model.Cycle) error
	GetCycle(ctx context.Context, id string) (*model.Cycle, error)
	ListCycles(ctx context.Context, opts model.ListOptions) ([]*model.Cycle, int, error)
	DeleteCycle(ctx context.Context, id string) error

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
