package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/okunev/blogauth/internal/apperrors"
	"github.com/okunev/blogauth/internal/models"
	"github.com/okunev/blogauth/internal/repository"
	"github.com/okunev/blogauth/internal/service/auth/tokencodec"
)

const (
	defaultAccessCookieName  = "accesstoken"
	defaultRefreshCookieName = "refreshtoken"
)

// Interface to create or compare user password hashes
type PasswordHasher interface {
	// Generate Hash from password
	Hash(password string) (string, error)

	// Compare known hashedPassword and user provided password
	// Must be protected against timing attacks
	Compare(hashedPassword string, password string) error
}

type Config struct {
	// Cookie names for the two tokens
	// If not set than default is used
	AccessCookieName  string
	RefreshCookieName string

	// Hasher to use during registration or login
	// BcryptHasher is used when not set
	Hasher PasswordHasher
}

// Result of a successful register, login or refresh: the public user
// projection plus the token pair to deliver
type Result struct {
	User models.PublicUser
	Pair models.TokenPair
}

// AuthService orchestrates register, login, logout and refresh as state
// transitions over the user repo and the session store. It enforces one
// active refresh token per user and rejects stale or forged refresh
// attempts.
type AuthService struct {
	codec    *tokencodec.Codec
	hasher   PasswordHasher
	users    repository.UserRepo
	sessions repository.SessionRepo

	accessCookieName  string
	refreshCookieName string
}

func NewService(cfg Config, codec *tokencodec.Codec, users repository.UserRepo, sessions repository.SessionRepo) (*AuthService, error) {
	if codec == nil || users == nil || sessions == nil {
		return nil, errors.New("codec and repos must not be nil")
	}

	hasher := cfg.Hasher
	if hasher == nil {
		hasher = BcryptHasher{}
	}

	setDefaultString := func(field *string, def string) {
		if *field == "" {
			*field = def
		}
	}
	setDefaultString(&cfg.AccessCookieName, defaultAccessCookieName)
	setDefaultString(&cfg.RefreshCookieName, defaultRefreshCookieName)

	return &AuthService{
		codec:             codec,
		hasher:            hasher,
		users:             users,
		sessions:          sessions,
		accessCookieName:  cfg.AccessCookieName,
		refreshCookieName: cfg.RefreshCookieName,
	}, nil
}

// Register creates the user and opens its session.
// Email is checked before username: the order decides which conflict the
// caller sees and is part of the contract.
func (s *AuthService) Register(ctx context.Context, username string, email string, password string) (Result, error) {
	taken, err := s.users.EmailExists(ctx, email)
	if err != nil {
		return Result{}, fmt.Errorf("can't check email. Err: %w", err)
	}
	if taken {
		return Result{}, &apperrors.ConflictError{Field: "email"}
	}

	taken, err = s.users.UsernameExists(ctx, username)
	if err != nil {
		return Result{}, fmt.Errorf("can't check username. Err: %w", err)
	}
	if taken {
		return Result{}, &apperrors.ConflictError{Field: "username"}
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return Result{}, fmt.Errorf("can't use this as password, error=%w", err)
	}

	// May still report a conflict here: the existence checks race with
	// concurrent registrations, the unique constraint settles it
	user, err := s.users.CreateUser(ctx, username, email, hash)
	if err != nil {
		return Result{}, err
	}

	return s.openSession(ctx, user)
}

// Login verifies the password and opens a fresh session, overwriting any
// prior one. This is the point at which a second login invalidates the
// first: single active session per user.
func (s *AuthService) Login(ctx context.Context, username string, password string) (Result, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			// Burn comparable time so an unknown username is not
			// distinguishable from a wrong password by latency
			_ = s.hasher.Compare(noUserHash, password)
			return Result{}, apperrors.ErrInvalidCredentials
		}
		return Result{}, fmt.Errorf("can't get user. Err: %w", err)
	}

	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		return Result{}, apperrors.ErrInvalidCredentials
	}

	return s.openSession(ctx, user)
}

// Logout deletes the session matching the presented refresh token.
// Idempotent: logging out twice, or with a token that no longer matches,
// is not an error. The record deletion is what makes logout effective
// even while the token's signature is still valid.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}

	if err := s.sessions.DeleteByToken(ctx, refreshToken); err != nil {
		return fmt.Errorf("can't delete session. Err: %w", err)
	}
	return nil
}

// Refresh rotates the session to a new token pair.
// The presented token must pass two independent checks: the signature and
// expiry (codec) and being the one on record (store). The store swap is a
// compare-and-swap, so of two concurrent refreshes with the same token
// exactly one wins; the loser gets apperrors.ErrSessionNotFound.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (Result, error) {
	userID, err := s.codec.VerifyRefresh(refreshToken)
	if err != nil {
		return Result{}, err
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return Result{}, apperrors.ErrSessionNotFound
		}
		return Result{}, fmt.Errorf("can't get user. Err: %w", err)
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return Result{}, err
	}

	if _, err := s.sessions.Rotate(ctx, user.ID, refreshToken, pair.Refresh.Value); err != nil {
		return Result{}, err
	}

	return Result{User: user.Public(), Pair: pair}, nil
}

// Authenticate resolves the access token from the request to a user.
// Used by middleware on protected endpoints; purely stateless, no store
// lookup happens here.
func (s *AuthService) Authenticate(ctx context.Context, r *http.Request) (models.User, error) {
	cookie, err := r.Cookie(s.accessCookieName)
	if err != nil {
		return models.User{}, apperrors.ErrInvalidToken
	}

	userID, err := s.codec.VerifyAccess(cookie.Value)
	if err != nil {
		return models.User{}, err
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return models.User{}, apperrors.ErrInvalidToken
		}
		return models.User{}, fmt.Errorf("can't get user. Err: %w", err)
	}

	return user, nil
}

// openSession mints a token pair and durably records the refresh token.
// If the store write fails no tokens reach the caller: the server must
// never hand out a refresh token it can't later validate against state.
func (s *AuthService) openSession(ctx context.Context, user models.User) (Result, error) {
	pair, err := s.issuePair(user)
	if err != nil {
		return Result{}, err
	}

	if _, err := s.sessions.Upsert(ctx, user.ID, pair.Refresh.Value); err != nil {
		return Result{}, fmt.Errorf("can't save session. Err: %w", err)
	}

	return Result{User: user.Public(), Pair: pair}, nil
}

func (s *AuthService) issuePair(user models.User) (models.TokenPair, error) {
	access, err := s.codec.IssueAccess(user.ID)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("can't issue access token. Err: %w", err)
	}

	refresh, err := s.codec.IssueRefresh(user.ID)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("can't issue refresh token. Err: %w", err)
	}

	return models.TokenPair{Access: access, Refresh: refresh}, nil
}

// bcrypt of an unguessable random password, used to equalize login timing
// for unknown usernames
const noUserHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"
