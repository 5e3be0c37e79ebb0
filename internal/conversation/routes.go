// internal/conversation/routes.go

package conversation

import (
	"github.com/gorilla/mux"
)

// RegisterRoutes wires the conversation surface; router is expected to
// already carry the auth middleware.
func RegisterRoutes(router *mux.Router, handler *Handler) {
	router.HandleFunc("/conversations/direct", handler.CreateDirect).Methods("POST")
	router.HandleFunc("/conversations", handler.List).Methods("GET")
	router.HandleFunc("/conversations/{id:[0-9]+}", handler.Get).Methods("GET")
	router.HandleFunc("/conversations/{id:[0-9]+}/messages", handler.Messages).Methods("GET")
}
