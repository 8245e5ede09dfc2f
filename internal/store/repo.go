package store

import (
	"context"
	"errors"
	"time"

	"github.com/lukadfagundes/bwaincell-sub004/internal/domain"
)

// ErrNotFound is returned when a notification does not exist or is not owned by the caller.
var ErrNotFound = errors.New("notification not found")

// Repo defines storage operations for notification definitions.
type Repo interface {
	Create(ctx context.Context, n *domain.Notification) error
	Get(ctx context.Context, id string) (*domain.Notification, error)
	ListByOwner(ctx context.Context, userID, tenantID int64) ([]domain.Notification, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Notification, error)
	Save(ctx context.Context, n *domain.Notification) error
	Deactivate(ctx context.Context, n *domain.Notification) error
	Delete(ctx context.Context, id string, userID, tenantID int64) error
	Close() error
}
