package handlers

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/okunev/blogauth/internal/logger"
	"github.com/okunev/blogauth/internal/metrics"
	"github.com/okunev/blogauth/internal/repository/postgres"
	"github.com/okunev/blogauth/internal/service/auth"
	"github.com/okunev/blogauth/internal/service/auth/tokencodec"
	"github.com/okunev/blogauth/internal/testutil"
)

func Test_AuthHandler(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	// Run http server with the full router and production auth service
	withServer := func(dbpool *pgxpool.Pool, t *testing.T, fn func(url string, client *http.Client)) {
		testutil.WithTx(dbpool, t, func(tx pgx.Tx) {
			codec, err := tokencodec.New(tokencodec.Config{
				AccessSecret:  "test-access-secret",
				RefreshSecret: "test-refresh-secret",
			})
			require.NoError(t, err)

			s, err := auth.NewService(auth.Config{}, codec, &postgres.UserRepo{DB: tx}, &postgres.SessionRepo{DB: tx})
			require.NoError(t, err, "auth service starting error")

			h := NewAuth(s, logger.NewNoOp(), metrics.New())
			srv := httptest.NewServer(NewRouter(h, http.NotFoundHandler(), logger.NewNoOp()))
			defer srv.Close()

			fn(srv.URL, srv.Client())
		})
	}

	register := func(t *testing.T, url string, client *http.Client, body string) *http.Response {
		t.Helper()
		resp, err := client.Post(url+"/api/auth/register", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}

	cookieByName := func(t *testing.T, resp *http.Response, name string) *http.Cookie {
		t.Helper()
		for _, c := range resp.Cookies() {
			if c.Name == name {
				return c
			}
		}
		t.Fatalf("cookie %q not found in response", name)
		return nil
	}

	readBody := func(t *testing.T, resp *http.Response) string {
		t.Helper()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return string(body)
	}

	// Send request with given cookies attached
	do := func(t *testing.T, client *http.Client, method string, url string, cookies ...*http.Cookie) *http.Response {
		t.Helper()
		req, err := http.NewRequest(method, url, nil)
		require.NoError(t, err)
		for _, c := range cookies {
			req.AddCookie(c)
		}
		resp, err := client.Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}

	validRegister := `{"username": "alice", "email": "alice@x.com", "password": "StrongEnoughPassword"}`

	t.Run("register ok", func(t *testing.T) {
		withServer(pg.Pool, t, func(url string, client *http.Client) {
			resp := register(t, url, client, validRegister)
			body := readBody(t, resp)

			require.Equalf(t, http.StatusCreated, resp.StatusCode, "not expected code. Body: %s", body)
			require.Contains(t, body, `"authenticated":true`)
			require.Contains(t, body, `"username":"alice"`)
			require.NotContains(t, body, "password", "no password material may leak into the response")

			access := cookieByName(t, resp, "accesstoken")
			refresh := cookieByName(t, resp, "refreshtoken")
			for _, c := range []*http.Cookie{access, refresh} {
				require.True(t, c.HttpOnly, "token cookies should be HttpOnly")
				require.Equal(t, "/", c.Path)
				require.NotEmpty(t, c.Value)
				require.Positive(t, c.MaxAge)
			}
			require.Greater(t, refresh.MaxAge, access.MaxAge, "refresh cookie outlives access cookie")
		})
	})

	t.Run("register conflict", func(t *testing.T) {
		withServer(pg.Pool, t, func(url string, client *http.Client) {
			resp := register(t, url, client, validRegister)
			require.Equal(t, http.StatusCreated, resp.StatusCode)

			resp = register(t, url, client, `{"username": "bob", "email": "alice@x.com", "password": "StrongEnoughPassword"}`)
			body := readBody(t, resp)

			require.Equal(t, http.StatusConflict, resp.StatusCode)
			require.JSONEq(t, `
				{
					"error": "service_error",
					"message": "user with this email already exists"
				}`, body)
			require.Empty(t, resp.Cookies(), "no cookies should be set on conflict")
		})
	})

	t.Run("register invalid payload", func(t *testing.T) {
		withServer(pg.Pool, t, func(url string, client *http.Client) {
			resp := register(t, url, client, `{"username": "alice", "email": "not-an-email", "password": "short"}`)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	})

	t.Run("login", func(t *testing.T) {
		withServer(pg.Pool, t, func(url string, client *http.Client) {
			resp := register(t, url, client, validRegister)
			require.Equal(t, http.StatusCreated, resp.StatusCode)

			t.Run("wrong password", func(t *testing.T) {
				resp, err := client.Post(url+"/api/auth/login", "application/json",
					strings.NewReader(`{"username": "alice", "password": "WrongPassword"}`))
				require.NoError(t, err)
				body := readBody(t, resp)
				defer func() { _ = resp.Body.Close() }()

				require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
				require.JSONEq(t, `
					{
						"error": "service_error",
						"message": "Invalid username or password"
					}`, body)
				require.Empty(t, resp.Cookies(), "no cookies should be set on login error")
			})

			t.Run("ok", func(t *testing.T) {
				resp, err := client.Post(url+"/api/auth/login", "application/json",
					strings.NewReader(`{"username": "alice", "password": "StrongEnoughPassword"}`))
				require.NoError(t, err)
				body := readBody(t, resp)
				defer func() { _ = resp.Body.Close() }()

				require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
				require.Contains(t, body, `"authenticated":true`)
				cookieByName(t, resp, "accesstoken")
				cookieByName(t, resp, "refreshtoken")
			})
		})
	})

	t.Run("refresh rotates and rejects the replayed token", func(t *testing.T) {
		withServer(pg.Pool, t, func(url string, client *http.Client) {
			registered := register(t, url, client, validRegister)
			require.Equal(t, http.StatusCreated, registered.StatusCode)
			original := cookieByName(t, registered, "refreshtoken")

			// First refresh: ok, new pair is set
			resp := do(t, client, http.MethodPost, url+"/api/auth/refresh", original)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			rotated := cookieByName(t, resp, "refreshtoken")
			require.NotEqual(t, original.Value, rotated.Value, "refresh must rotate the token")

			// Replaying the superseded token: 401, no cookies
			resp = do(t, client, http.MethodPost, url+"/api/auth/refresh", original)
			require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			require.Empty(t, resp.Cookies())

			// The rotated one still works
			resp = do(t, client, http.MethodPost, url+"/api/auth/refresh", rotated)
			require.Equal(t, http.StatusOK, resp.StatusCode)
		})
	})

	t.Run("refresh without cookie", func(t *testing.T) {
		withServer(pg.Pool, t, func(url string, client *http.Client) {
			resp := do(t, client, http.MethodPost, url+"/api/auth/refresh")
			require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	})

	t.Run("logout revokes and is idempotent", func(t *testing.T) {
		withServer(pg.Pool, t, func(url string, client *http.Client) {
			registered := register(t, url, client, validRegister)
			require.Equal(t, http.StatusCreated, registered.StatusCode)
			refresh := cookieByName(t, registered, "refreshtoken")

			resp := do(t, client, http.MethodPost, url+"/api/auth/logout", refresh)
			body := readBody(t, resp)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			require.JSONEq(t, `{"user": null, "authenticated": false}`, body)

			// Both cookies are cleared
			for _, name := range []string{"accesstoken", "refreshtoken"} {
				c := cookieByName(t, resp, name)
				require.Empty(t, c.Value)
				require.Negative(t, c.MaxAge)
			}

			// The still unexpired token is no longer honored
			resp = do(t, client, http.MethodPost, url+"/api/auth/refresh", refresh)
			require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

			// Logging out again, or without any cookie: still 200
			resp = do(t, client, http.MethodPost, url+"/api/auth/logout", refresh)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			resp = do(t, client, http.MethodPost, url+"/api/auth/logout")
			require.Equal(t, http.StatusOK, resp.StatusCode)
		})
	})

	t.Run("me", func(t *testing.T) {
		withServer(pg.Pool, t, func(url string, client *http.Client) {
			registered := register(t, url, client, validRegister)
			require.Equal(t, http.StatusCreated, registered.StatusCode)
			access := cookieByName(t, registered, "accesstoken")

			t.Run("with access token", func(t *testing.T) {
				resp := do(t, client, http.MethodGet, url+"/api/auth/me", access)
				body := readBody(t, resp)

				require.Equal(t, http.StatusOK, resp.StatusCode)
				require.Contains(t, body, `"username":"alice"`)
			})

			t.Run("without token", func(t *testing.T) {
				resp := do(t, client, http.MethodGet, url+"/api/auth/me")
				require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			})

			t.Run("with refresh token in place of access", func(t *testing.T) {
				refresh := cookieByName(t, registered, "refreshtoken")
				forged := &http.Cookie{Name: "accesstoken", Value: refresh.Value}

				resp := do(t, client, http.MethodGet, url+"/api/auth/me", forged)
				require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "refresh token must not authorize requests")
			})
		})
	})
}
