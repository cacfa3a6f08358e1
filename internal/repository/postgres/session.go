package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/okunev/blogauth/internal/apperrors"
	"github.com/okunev/blogauth/internal/models"
)

type SessionRepo struct {
	DB DBTX
}

const upsertSession = `-- name: UpsertSession
INSERT INTO sessions (user_id, token, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (user_id) DO UPDATE
SET token = EXCLUDED.token, updated_at = EXCLUDED.updated_at
RETURNING user_id, token, updated_at
`

// Upsert replaces the user's session record or creates one if absent.
// Single statement, so concurrent upserts for the same user resolve as
// last writer wins without a read-modify-write window.
func (r *SessionRepo) Upsert(ctx context.Context, userID uuid.UUID, token string) (models.Session, error) {
	rows, _ := r.DB.Query(ctx, upsertSession, userID, token, time.Now())
	session, err := pgx.CollectOneRow(rows, rowToSession)
	if err != nil {
		return session, fmt.Errorf("db error: %w", err)
	}
	return session, nil
}

const findSession = `-- name: FindSession by user and exact token
SELECT user_id, token, updated_at
FROM sessions
WHERE user_id = $1 AND token = $2
`

func (r *SessionRepo) Find(ctx context.Context, userID uuid.UUID, token string) (models.Session, error) {
	rows, _ := r.DB.Query(ctx, findSession, userID, token)
	session, err := pgx.CollectOneRow(rows, rowToSession)

	switch {
	case err == nil:
		return session, nil
	case errors.Is(err, pgx.ErrNoRows):
		return session, apperrors.ErrSessionNotFound
	default:
		return session, fmt.Errorf("db error: %w", err)
	}
}

const rotateSession = `-- name: RotateSession only if the stored token still matches
UPDATE sessions
SET token = $3, updated_at = $4
WHERE user_id = $1 AND token = $2
RETURNING user_id, token, updated_at
`

// Rotate swaps the stored token from oldToken to newToken in one
// conditional UPDATE. Of two concurrent refreshes presenting the same
// token exactly one matches the WHERE clause, the other gets
// apperrors.ErrSessionNotFound.
func (r *SessionRepo) Rotate(ctx context.Context, userID uuid.UUID, oldToken string, newToken string) (models.Session, error) {
	rows, _ := r.DB.Query(ctx, rotateSession, userID, oldToken, newToken, time.Now())
	session, err := pgx.CollectOneRow(rows, rowToSession)

	switch {
	case err == nil:
		return session, nil
	case errors.Is(err, pgx.ErrNoRows):
		return session, apperrors.ErrSessionNotFound
	default:
		return session, fmt.Errorf("db error: %w", err)
	}
}

const deleteSessionByToken = `-- name: DeleteSessionByToken
DELETE FROM sessions
WHERE token = $1
`

// DeleteByToken revokes the session holding the token. Idempotent:
// deleting a token that no longer matches anything is not an error.
func (r *SessionRepo) DeleteByToken(ctx context.Context, token string) error {
	_, err := r.DB.Exec(ctx, deleteSessionByToken, token)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func rowToSession(row pgx.CollectableRow) (models.Session, error) {
	var s models.Session
	err := row.Scan(&s.UserID, &s.Token, &s.UpdatedAt)
	return s, err
}
