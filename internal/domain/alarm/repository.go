package alarm

import (
	"context"
)

// Repository defines the operations for persisting and retrieving Alarm records.
type Repository interface {
	Create(ctx context.Context, a *Alarm) error // assigns ID, CreatedAt, UpdatedAt
	GetByID(ctx context.Context, id int64) (*Alarm, error)
	Update(ctx context.Context, a *Alarm) error
	SetEnabled(ctx context.Context, id int64, enabled bool) error
	Delete(ctx context.Context, id int64) error
	ListAll(ctx context.Context) ([]*Alarm, error) // ordered by hour, minute
	ListEnabled(ctx context.Context) ([]*Alarm, error)
	Count(ctx context.Context) (int, error)
}
