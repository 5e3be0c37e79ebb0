// internal/api/routes.go

package api

import (
	"github.com/gorilla/mux"
)

// RegisterRoutes wires the message-level surface under /api/v1/messages.
// Routers passed in are expected to already carry the auth middleware.
func RegisterRoutes(router *mux.Router, handler *Handler) {
	router.HandleFunc("/messages/{id:[0-9]+}", handler.Edit).Methods("PATCH")
	router.HandleFunc("/messages/{id:[0-9]+}", handler.Delete).Methods("DELETE")
	router.HandleFunc("/messages/{id:[0-9]+}/forward", handler.Forward).Methods("POST")
	router.HandleFunc("/messages/search", handler.Search).Methods("GET")
	router.HandleFunc("/messages/unread", handler.UnreadSummary).Methods("GET")
}
