package models

import (
	"time"

	"github.com/google/uuid"
)

// Session is the durable record of a user's single active session:
// the mapping from the user to the one refresh token currently honored.
// At most one session exists per user; a new login or refresh replaces it.
type Session struct {
	UserID    uuid.UUID
	Token     string
	UpdatedAt time.Time
}
