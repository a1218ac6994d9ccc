package journal

import (
	"context"

	domain "courtside/internal/domain/journal"
)

// Store persists scan journal entries.
type Store interface {
	Append(ctx context.Context, entry domain.Entry) error
	ListByClass(ctx context.Context, classID string, limit int) ([]domain.Entry, error)
	DeleteByClass(ctx context.Context, classID string) (int, error)
}
