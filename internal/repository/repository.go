package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/okunev/blogauth/internal/models"
)

// User repository interface
type UserRepo interface {
	// Create user
	// If username or email is taken already has to return apperrors.ConflictError
	CreateUser(ctx context.Context, username string, email string, hashedPassword string) (models.User, error)

	// Get user by it's id or username
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)

	// Existence checks used by registration to report which field
	// conflicted. Registration checks email first, then username: the
	// order is user observable, it decides which conflict is reported.
	EmailExists(ctx context.Context, email string) (bool, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
}

// SessionRepo holds the single active session per user: the mapping from
// user id to the one refresh token currently honored.
type SessionRepo interface {
	// Create or atomically replace the user's session record.
	// Last writer wins: a second login invalidates the first.
	Upsert(ctx context.Context, userID uuid.UUID, token string) (models.Session, error)

	// Find the session by user AND exact token match.
	// A superseded token must not match even if the user is correct:
	// must return apperrors.ErrSessionNotFound
	Find(ctx context.Context, userID uuid.UUID, token string) (models.Session, error)

	// Atomically swap the stored token from oldToken to newToken.
	// Compare-and-swap: if the stored token is not oldToken anymore the
	// rotation loses and must return apperrors.ErrSessionNotFound
	// without changing anything.
	Rotate(ctx context.Context, userID uuid.UUID, oldToken string, newToken string) (models.Session, error)

	// Delete the session whose token equals the given value.
	// Idempotent: no error when nothing matches.
	DeleteByToken(ctx context.Context, token string) error
}
