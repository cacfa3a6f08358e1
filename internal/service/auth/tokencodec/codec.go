package tokencodec

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/okunev/blogauth/internal/apperrors"
	"github.com/okunev/blogauth/internal/models"
)

const (
	defaultSigningMethod   = "HS256"
	defaultAccessTokenTTL  = 30 * time.Minute
	defaultRefreshTokenTTL = 60 * time.Minute
)

type Claims struct {
	jwt.RegisteredClaims
	UserID uuid.UUID `json:"uid"`
}

// Codec config with sensible defaults
type Config struct {
	// Secret keys to sign access and refresh tokens
	// Both required, must differ: a token minted for one purpose
	// must never verify against the other purpose's key
	AccessSecret  string
	RefreshSecret string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set than default is used
	Alg string

	// Access and refresh token lifetimes
	// If not set than default is used
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Codec issues and verifies the two token kinds. Immutable after New,
// safe for concurrent use.
type Codec struct {
	accessKey  []byte
	refreshKey []byte

	alg jwt.SigningMethod

	accessTTL  time.Duration
	refreshTTL time.Duration
}

func New(cfg Config) (*Codec, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("both access and refresh secret keys must be set")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("access and refresh secret keys must differ")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTTL, defaultAccessTokenTTL)
	setDefaultDuration(&cfg.RefreshTTL, defaultRefreshTokenTTL)

	return &Codec{
		accessKey:  []byte(cfg.AccessSecret),
		refreshKey: []byte(cfg.RefreshSecret),
		alg:        jwt.GetSigningMethod(cfg.Alg),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
	}, nil
}

func (c *Codec) AccessTTL() time.Duration  { return c.accessTTL }
func (c *Codec) RefreshTTL() time.Duration { return c.refreshTTL }

// IssueAccess signs a short-lived stateless access token for the user
func (c *Codec) IssueAccess(userID uuid.UUID) (models.IssuedToken, error) {
	return c.issue(c.accessKey, c.accessTTL, userID)
}

// IssueRefresh signs a refresh token for the user. The token is only
// honored while it matches the stored session record.
func (c *Codec) IssueRefresh(userID uuid.UUID) (models.IssuedToken, error) {
	return c.issue(c.refreshKey, c.refreshTTL, userID)
}

func (c *Codec) issue(key []byte, ttl time.Duration, userID uuid.UUID) (models.IssuedToken, error) {
	now := time.Now().Truncate(time.Second)
	expiresAt := now.Add(ttl)

	token := jwt.NewWithClaims(
		c.alg,
		Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        uuid.NewString(),
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(expiresAt),
			},
			UserID: userID,
		},
	)
	signed, err := token.SignedString(key)
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while signing token. Err: %w", err)
	}

	return models.IssuedToken{Value: signed, ExpiresAt: expiresAt}, nil
}

// VerifyAccess validates signature and expiry of an access token and
// returns its subject
func (c *Codec) VerifyAccess(token string) (uuid.UUID, error) {
	return c.verify(c.accessKey, token)
}

// VerifyRefresh validates signature and expiry of a refresh token and
// returns its subject. It says nothing about whether the token is still
// the one on record.
func (c *Codec) VerifyRefresh(token string) (uuid.UUID, error) {
	return c.verify(c.refreshKey, token)
}

func (c *Codec) verify(key []byte, token string) (uuid.UUID, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (any, error) { return key, nil },
		jwt.WithValidMethods([]string{c.alg.Alg()}),
	)
	if err != nil {
		// The parse error says whether the signature or the expiry failed.
		// Collapse it: both are untrusted-input failures.
		return uuid.Nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidToken, err)
	}

	return claims.UserID, nil
}
