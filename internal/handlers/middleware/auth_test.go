package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/okunev/blogauth/internal/apperrors"
	"github.com/okunev/blogauth/internal/models"
)

type fakeAuthService struct {
	user models.User
	err  error
}

func (f *fakeAuthService) Authenticate(_ context.Context, _ *http.Request) (models.User, error) {
	return f.user, f.err
}

func Test_AuthMiddleware(t *testing.T) {
	t.Parallel()

	echoUser := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		require.True(t, ok, "authenticated request must carry the user in context")
		_, _ = w.Write([]byte(user.Username))
	})

	t.Run("authenticated request reaches the handler", func(t *testing.T) {
		as := &fakeAuthService{user: models.User{ID: uuid.New(), Username: "alice"}}
		handler := AuthMiddleware(as)(echoUser)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))

		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "alice", w.Body.String())
	})

	tests := []struct {
		name string
		err  error
	}{
		{name: "invalid token", err: apperrors.ErrInvalidToken},
		{name: "unknown user", err: apperrors.ErrUserNotFound},
		{name: "store failure", err: errors.New("connection reset")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { reached = true })
			handler := AuthMiddleware(&fakeAuthService{err: tt.err})(next)

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))

			require.Equal(t, http.StatusUnauthorized, w.Code)
			require.False(t, reached, "handler must not run on failed authentication")
		})
	}
}

func Test_UserContext(t *testing.T) {
	t.Parallel()

	t.Run("roundtrip", func(t *testing.T) {
		want := models.User{ID: uuid.New(), Username: "alice"}
		ctx := NewContextWithUser(context.Background(), want)

		got, ok := UserFromContext(ctx)
		require.True(t, ok)
		require.Equal(t, want, got)
	})

	t.Run("missing user", func(t *testing.T) {
		_, ok := UserFromContext(context.Background())
		require.False(t, ok)
	})
}
