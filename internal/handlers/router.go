package handlers

import (
	"net/http"

	"github.com/okunev/blogauth/internal/handlers/middleware"
	"github.com/okunev/blogauth/internal/logger"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(authHandler *AuthHandler, metricsHandler http.Handler, l logger.Logger) http.Handler {
	withAuth := middleware.AuthMiddleware(authHandler.auth)

	apiauth := http.NewServeMux()
	apiauth.Handle("/", authHandler.Handler())
	apiauth.Handle("GET /me", withAuth(handleUserMe()))

	root := http.NewServeMux()
	root.Handle("/api/auth/", http.StripPrefix("/api/auth", apiauth))
	root.Handle("GET /metrics", metricsHandler)

	return chain(root,
		middleware.LoggerMiddleware(l),
	)
}
