package render

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type testPayload struct {
	Username string `json:"username" validate:"required,min=2"`
	Email    string `json:"email" validate:"required,email"`
}

func Test_BindAndValidate(t *testing.T) {
	t.Parallel()

	bind := func(t *testing.T, body string) (*httptest.ResponseRecorder, testPayload, error) {
		t.Helper()
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		data, err := BindAndValidate[testPayload](w, r)
		return w, data, err
	}

	t.Run("ok", func(t *testing.T) {
		w, data, err := bind(t, `{"username": "alice", "email": "alice@x.com"}`)

		require.NoError(t, err)
		require.Equal(t, "alice", data.Username)
		require.Equal(t, "alice@x.com", data.Email)
		require.Empty(t, w.Body.String(), "nothing should be written on success")
	})

	t.Run("broken json", func(t *testing.T) {
		w, _, err := bind(t, `{"username": `)

		require.Error(t, err)
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Contains(t, w.Body.String(), DecodingErrorType)
	})

	t.Run("wrong field type", func(t *testing.T) {
		w, _, err := bind(t, `{"username": 42, "email": "alice@x.com"}`)

		require.Error(t, err)
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Contains(t, w.Body.String(), "Invalid data type for field 'username'")
	})

	t.Run("validation failures report json field names", func(t *testing.T) {
		w, _, err := bind(t, `{"username": "a", "email": "nope"}`)

		require.Error(t, err)
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.JSONEq(t, `
			{
				"error": "validation_failed",
				"message": "Request validation failed",
				"fields": {
					"username": "Value is too short (minimum 2)",
					"email": "Invalid email address"
				}
			}`, w.Body.String())
	})

	t.Run("missing required fields", func(t *testing.T) {
		w, _, err := bind(t, `{}`)

		require.Error(t, err)
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Contains(t, w.Body.String(), "This field is required")
	})
}

func Test_JSONWithStatus(t *testing.T) {
	t.Parallel()

	t.Run("sets status and content type", func(t *testing.T) {
		w := httptest.NewRecorder()
		JSONWithStatus(w, map[string]string{"hello": "world"}, http.StatusCreated)

		require.Equal(t, http.StatusCreated, w.Code)
		require.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
		require.JSONEq(t, `{"hello": "world"}`, w.Body.String())
	})

	t.Run("unencodable data answers 500", func(t *testing.T) {
		w := httptest.NewRecorder()
		JSONWithStatus(w, make(chan int), http.StatusOK)

		require.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func Test_ServiceError(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	ServiceError(w, "user with this email already exists", http.StatusConflict)

	require.Equal(t, http.StatusConflict, w.Code)
	require.JSONEq(t, `
		{
			"error": "service_error",
			"message": "user with this email already exists"
		}`, w.Body.String())
}
