package auth

import (
	"fmt"
	"net/http"
	"time"

	"github.com/okunev/blogauth/internal/models"
)

// Cookie-based token delivery. Both cookies are HttpOnly so page scripts
// can't read them, and each max-age equals its token's TTL. The same
// values are used on register, login and refresh: the max-age is derived
// from the token expiry in one place only.

// SetTokenPair attaches both tokens to the outgoing response
func (s *AuthService) SetTokenPair(w http.ResponseWriter, pair models.TokenPair) {
	http.SetCookie(w, tokenCookie(s.accessCookieName, pair.Access))
	http.SetCookie(w, tokenCookie(s.refreshCookieName, pair.Refresh))
}

// ClearTokens instructs the client to drop both previously set tokens
func (s *AuthService) ClearTokens(w http.ResponseWriter) {
	http.SetCookie(w, expiredCookie(s.accessCookieName))
	http.SetCookie(w, expiredCookie(s.refreshCookieName))
}

// ReadRefreshToken reads the refresh token the caller presented.
// The token comes from the cookie only, never from a request body.
func (s *AuthService) ReadRefreshToken(r *http.Request) (string, error) {
	cookie, err := r.Cookie(s.refreshCookieName)
	if err != nil {
		return "", fmt.Errorf("no refresh token in request: %w", err)
	}
	return cookie.Value, nil
}

func tokenCookie(name string, token models.IssuedToken) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    token.Value,
		Path:     "/",
		MaxAge:   int(time.Until(token.ExpiresAt).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}

func expiredCookie(name string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}
