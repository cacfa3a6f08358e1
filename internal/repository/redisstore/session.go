// Package redisstore implements the session repository on Redis. It is an
// alternative to the postgres backend for deployments that keep sessions
// out of the main database.
//
// Layout: one hash per user under "blogauth:session:user:<id>" holding the
// current token and the update timestamp, plus a reverse index
// "blogauth:session:token:<token>" -> user id so logout can revoke by
// token alone. Every write goes through a Lua script, so replace, rotate
// and delete stay atomic without client-side locking.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/okunev/blogauth/internal/apperrors"
	"github.com/okunev/blogauth/internal/models"
)

const (
	userKeyPrefix  = "blogauth:session:user:"
	tokenKeyPrefix = "blogauth:session:token:"
)

// KEYS[1] user hash, ARGV: token, updatedAt unix, ttl seconds, user id
const upsertScript = `
local old = redis.call("HGET", KEYS[1], "token")
if old then
  redis.call("DEL", "` + tokenKeyPrefix + `" .. old)
end
redis.call("HSET", KEYS[1], "token", ARGV[1], "updated_at", ARGV[2])
redis.call("SET", "` + tokenKeyPrefix + `" .. ARGV[1], ARGV[4])
local ttl = tonumber(ARGV[3])
if ttl > 0 then
  redis.call("EXPIRE", KEYS[1], ttl)
  redis.call("EXPIRE", "` + tokenKeyPrefix + `" .. ARGV[1], ttl)
end
return 1
`

// KEYS[1] user hash, ARGV: old token, new token, updatedAt unix, ttl seconds, user id
const rotateScript = `
local current = redis.call("HGET", KEYS[1], "token")
if not current or current ~= ARGV[1] then
  return 0
end
redis.call("DEL", "` + tokenKeyPrefix + `" .. current)
redis.call("HSET", KEYS[1], "token", ARGV[2], "updated_at", ARGV[3])
redis.call("SET", "` + tokenKeyPrefix + `" .. ARGV[2], ARGV[5])
local ttl = tonumber(ARGV[4])
if ttl > 0 then
  redis.call("EXPIRE", KEYS[1], ttl)
  redis.call("EXPIRE", "` + tokenKeyPrefix + `" .. ARGV[2], ttl)
end
return 1
`

// KEYS[1] token index key, ARGV: token
const deleteByTokenScript = `
local uid = redis.call("GET", KEYS[1])
if not uid then
  return 0
end
local userKey = "` + userKeyPrefix + `" .. uid
if redis.call("HGET", userKey, "token") == ARGV[1] then
  redis.call("DEL", userKey)
end
redis.call("DEL", KEYS[1])
return 1
`

var (
	upsertLua        = redis.NewScript(upsertScript)
	rotateLua        = redis.NewScript(rotateScript)
	deleteByTokenLua = redis.NewScript(deleteByTokenScript)
)

type SessionRepo struct {
	rdb *redis.Client

	// Key expiry, normally the refresh token TTL. Zero keeps records
	// until explicitly replaced or deleted.
	ttl time.Duration
}

func NewSessionRepo(rdb *redis.Client, ttl time.Duration) *SessionRepo {
	return &SessionRepo{rdb: rdb, ttl: ttl}
}

func (r *SessionRepo) Upsert(ctx context.Context, userID uuid.UUID, token string) (models.Session, error) {
	now := time.Now().Truncate(time.Second)

	err := upsertLua.Run(ctx, r.rdb,
		[]string{userKey(userID)},
		token, now.Unix(), int(r.ttl.Seconds()), userID.String(),
	).Err()
	if err != nil {
		return models.Session{}, fmt.Errorf("redis error: %w", err)
	}

	return models.Session{UserID: userID, Token: token, UpdatedAt: now}, nil
}

func (r *SessionRepo) Find(ctx context.Context, userID uuid.UUID, token string) (models.Session, error) {
	vals, err := r.rdb.HMGet(ctx, userKey(userID), "token", "updated_at").Result()
	if err != nil {
		return models.Session{}, fmt.Errorf("redis error: %w", err)
	}

	stored, ok := vals[0].(string)
	if !ok || stored != token {
		return models.Session{}, apperrors.ErrSessionNotFound
	}

	return models.Session{
		UserID:    userID,
		Token:     stored,
		UpdatedAt: parseUnix(vals[1]),
	}, nil
}

func (r *SessionRepo) Rotate(ctx context.Context, userID uuid.UUID, oldToken string, newToken string) (models.Session, error) {
	now := time.Now().Truncate(time.Second)

	status, err := rotateLua.Run(ctx, r.rdb,
		[]string{userKey(userID)},
		oldToken, newToken, now.Unix(), int(r.ttl.Seconds()), userID.String(),
	).Int64()
	if err != nil {
		return models.Session{}, fmt.Errorf("redis error: %w", err)
	}
	if status == 0 {
		return models.Session{}, apperrors.ErrSessionNotFound
	}

	return models.Session{UserID: userID, Token: newToken, UpdatedAt: now}, nil
}

func (r *SessionRepo) DeleteByToken(ctx context.Context, token string) error {
	// Status ignored: delete is idempotent, a missing token is fine
	err := deleteByTokenLua.Run(ctx, r.rdb, []string{tokenKeyPrefix + token}, token).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

func userKey(userID uuid.UUID) string {
	return userKeyPrefix + userID.String()
}

func parseUnix(v any) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	unix, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(unix, 0)
}
