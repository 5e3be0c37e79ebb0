// internal/chathub/wire.go
// Assembles the hub, dispatcher and chat handler. Kept as one constructor
// because the three have a small initialization cycle (the dispatcher
// needs the chat handler, the chat handler needs the hub, the hub needs
// the dispatcher) that is easiest to resolve in one place.

package chathub

import (
	"github.com/kiekchat/realtime-core/internal/auth"
	"github.com/kiekchat/realtime-core/internal/media"
	"github.com/kiekchat/realtime-core/internal/store"
)

// New builds a ready-to-run Hub: call StartHeartbeat on the result once the
// server begins accepting connections.
func New(repo store.Repository, mediaStore media.Store, tokens auth.TokenService) *Hub {
	chat := NewChatHandler(repo, mediaStore)
	dispatcher := NewDispatcher(tokens, chat)
	hub := NewHub(dispatcher)
	chat.BindHub(hub)
	hub.SetOnLastDisconnect(chat.OnUserDisconnected)
	return hub
}
