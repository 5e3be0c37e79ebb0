// internal/chathub/hub.go
// Connection hub (spec.md C5), adapted from the teacher's
// internal/messaging/hub.go actor loop into the two-index model spec.md §4.5
// names explicitly, so add/authenticate/remove/sendToUser/isUserOnline are
// directly callable rather than routed through a channel.

package chathub

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kiekchat/realtime-core/internal/metrics"
)

const heartbeatInterval = 30 * time.Second

// entry is the hub's per-connection record: the authoritative owner
// (spec.md §9) from which the userID index is derived.
type entry struct {
	conn          *connection
	userID        int64
	authenticated bool
	alive         bool
	authTimer     *time.Timer
}

// Hub is the process-wide connection registry. Its two indices and the
// typing-timer map (owned by the presence handler) are the only shared
// mutable state in the system (spec.md §5); all access here is serialized
// by mu.
type Hub struct {
	mu sync.RWMutex

	connections map[string]*entry   // connectionId -> entry
	byUser      map[int64]map[string]bool // userId -> set<connectionId>

	dispatcher *Dispatcher

	onLastDisconnect func(userID int64)

	shuttingDown bool
	stopHeartbeat chan struct{}
	wg            sync.WaitGroup
}

// SetOnLastDisconnect registers the callback invoked once a user's final
// connection closes (spec.md §4.9's offline transition). Wired after
// construction to avoid a NewHub/NewChatHandler initialization cycle.
func (h *Hub) SetOnLastDisconnect(fn func(userID int64)) {
	h.onLastDisconnect = fn
}

func NewHub(dispatcher *Dispatcher) *Hub {
	h := &Hub{
		connections:   make(map[string]*entry),
		byUser:        make(map[int64]map[string]bool),
		dispatcher:    dispatcher,
		stopHeartbeat: make(chan struct{}),
	}
	return h
}

// StartHeartbeat launches the single 30s liveness ticker of spec.md §4.5.
func (h *Hub) StartHeartbeat() {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				h.tick()
			case <-h.stopHeartbeat:
				return
			}
		}
	}()
}

func (h *Hub) tick() {
	var dead []string
	var toPing []*connection

	h.mu.Lock()
	for id, e := range h.connections {
		if !e.alive {
			dead = append(dead, id)
			continue
		}
		e.alive = false
		toPing = append(toPing, e.conn)
	}
	h.mu.Unlock()

	for _, id := range dead {
		h.remove(id)
	}
	for _, c := range toPing {
		if err := c.ping(); err != nil {
			h.remove(c.id)
		}
	}
}

// Add registers a new, not-yet-authenticated socket and arms the 5s
// auth-handshake timer of spec.md §4.5.
func (h *Hub) Add(conn *websocket.Conn) *connection {
	id := uuid.New().String()
	c := newConnection(id, conn, h)

	timer := time.AfterFunc(authHandshakeTimeout, func() {
		h.mu.RLock()
		e, ok := h.connections[id]
		authenticated := ok && e.authenticated
		h.mu.RUnlock()
		if ok && !authenticated {
			c.enqueue(OutboundFrame{Type: TypeAuthError, Payload: errorPayload{Code: "AUTH_TIMEOUT", Message: "authentication timed out"}})
			c.closeWithCode(4001, "authentication timeout")
			h.remove(id)
		}
	})

	h.mu.Lock()
	h.connections[id] = &entry{conn: c, alive: true, authTimer: timer}
	h.mu.Unlock()

	metrics.ConnectionOpened()
	c.start()
	return c
}

// Authenticate binds a connection to a userID and cancels its handshake
// timer. ok is false if the connection is unknown (already removed); first
// is true iff this is the user's only open connection, i.e. the presence
// handler should broadcast an "online" transition (spec.md §4.9's
// multi-device rule: auth on an already-online user stays silent).
func (h *Hub) Authenticate(connID string, userID int64) (ok bool, first bool) {
	h.mu.Lock()
	e, exists := h.connections[connID]
	if !exists {
		h.mu.Unlock()
		return false, false
	}
	e.userID = userID
	e.authenticated = true
	if e.authTimer != nil {
		e.authTimer.Stop()
	}
	if h.byUser[userID] == nil {
		h.byUser[userID] = make(map[string]bool)
	}
	first = len(h.byUser[userID]) == 0
	h.byUser[userID][connID] = true
	onlineUsers := len(h.byUser)
	h.mu.Unlock()

	metrics.SetOnlineUsers(onlineUsers)
	return true, first
}

// remove drops a connection from both indices and returns the now-detached
// userID, if the connection had authenticated.
func (h *Hub) remove(connID string) (int64, bool) {
	h.mu.Lock()
	e, ok := h.connections[connID]
	if !ok {
		h.mu.Unlock()
		return 0, false
	}
	delete(h.connections, connID)
	if e.authTimer != nil {
		e.authTimer.Stop()
	}

	wasAuthenticated := e.authenticated
	userID := e.userID
	lastConnection := false
	if wasAuthenticated {
		if set, ok := h.byUser[userID]; ok {
			delete(set, connID)
			if len(set) == 0 {
				delete(h.byUser, userID)
				lastConnection = true
			}
		}
	}
	onlineUsers := len(h.byUser)
	h.mu.Unlock()

	metrics.ConnectionClosed()
	metrics.SetOnlineUsers(onlineUsers)

	closeSendOnce(e.conn)

	if wasAuthenticated && lastConnection && h.onLastDisconnect != nil {
		h.onLastDisconnect(userID)
	}
	return userID, wasAuthenticated
}

// closeSendOnce closes a connection's send channel at most once; remove()
// may race with the connection's own readPump teardown.
func closeSendOnce(c *connection) {
	defer func() { recover() }()
	close(c.send)
}

func (h *Hub) markAlive(connID string) {
	h.mu.Lock()
	if e, ok := h.connections[connID]; ok {
		e.alive = true
	}
	h.mu.Unlock()
}

// SendToUser writes to every open connection for userID; returns whether at
// least one write happened (spec.md §4.5).
func (h *Hub) SendToUser(userID int64, frame OutboundFrame) bool {
	h.mu.RLock()
	set := h.byUser[userID]
	conns := make([]*connection, 0, len(set))
	for connID := range set {
		if e, ok := h.connections[connID]; ok {
			conns = append(conns, e.conn)
		}
	}
	h.mu.RUnlock()

	sent := false
	for _, c := range conns {
		if c.enqueue(frame) {
			sent = true
		} else {
			h.remove(c.id)
		}
	}
	return sent
}

func (h *Hub) IsUserOnline(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[userID]) > 0
}

// ConversationNeighbors is resolved by callers (the store), the hub only
// answers "is this user online" per-id; kept separate to avoid the hub
// depending on the store gateway.

func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

func (h *Hub) OnlineUserCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser)
}

// Shutdown closes every socket with code 1001, then waits for the heartbeat
// loop to stop, with a hard deadline enforced by the caller's context
// (spec.md §5).
func (h *Hub) Shutdown(ctx context.Context) {
	h.mu.Lock()
	h.shuttingDown = true
	conns := make([]*connection, 0, len(h.connections))
	for _, e := range h.connections {
		conns = append(conns, e.conn)
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.closeWithCode(1001, "server shutdown")
	}
	close(h.stopHeartbeat)

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		log.Printf("chathub: shutdown deadline exceeded, exiting anyway")
	}
}
