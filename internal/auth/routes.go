// internal/auth/routes.go

package auth

import (
	"github.com/gorilla/mux"
)

// RegisterPublicRoutes wires the unauthenticated endpoints: registration,
// login and token refresh.
func RegisterPublicRoutes(router *mux.Router, handler *Handler) {
	router.HandleFunc("/auth/register", handler.Register).Methods("POST")
	router.HandleFunc("/auth/login", handler.Login).Methods("POST")
	router.HandleFunc("/auth/refresh", handler.Refresh).Methods("POST")
}

// RegisterProtectedRoutes wires the endpoints that require a valid access
// token; router is expected to already carry the auth middleware.
func RegisterProtectedRoutes(router *mux.Router, handler *Handler) {
	router.HandleFunc("/auth/logout", handler.Logout).Methods("POST")
	router.HandleFunc("/me", handler.Me).Methods("GET")
	router.HandleFunc("/me", handler.UpdateMe).Methods("PATCH")
	router.HandleFunc("/users/search", handler.SearchUsers).Methods("GET")
	router.HandleFunc("/users/{id:[0-9]+}", handler.GetUser).Methods("GET")
}
