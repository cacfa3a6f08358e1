package repository

import "context"

// Storage bundles the repositories over one backing connection and lets
// callers run several repo calls in a single transaction
type Storage interface {
	User() UserRepo
	Session() SessionRepo

	InTx(ctx context.Context, fn func(Storage) error) error
}
