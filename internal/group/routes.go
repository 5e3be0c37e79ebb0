// internal/group/routes.go

package group

import (
	"github.com/gorilla/mux"
)

// RegisterRoutes wires the group surface; router is expected to already
// carry the auth middleware.
func RegisterRoutes(router *mux.Router, handler *Handler) {
	router.HandleFunc("/groups", handler.Create).Methods("POST")
	router.HandleFunc("/groups/{id:[0-9]+}", handler.Get).Methods("GET")
	router.HandleFunc("/groups/{id:[0-9]+}", handler.Update).Methods("PATCH")
	router.HandleFunc("/groups/{id:[0-9]+}/members", handler.AddMembers).Methods("POST")
	router.HandleFunc("/groups/{id:[0-9]+}/members/{userId:[0-9]+}", handler.RemoveMember).Methods("DELETE")
	router.HandleFunc("/groups/{id:[0-9]+}/members/{userId:[0-9]+}/role", handler.UpdateRole).Methods("PATCH")
}
