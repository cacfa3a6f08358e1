package handlers

import (
	"net/http"

	"github.com/okunev/blogauth/internal/handlers/middleware"
	"github.com/okunev/blogauth/internal/handlers/render"
)

func handleUserMe() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := middleware.UserFromContext(r.Context())
		public := user.Public()
		render.JSON(w, AuthResponse{User: &public, Authenticated: true})
	})
}
