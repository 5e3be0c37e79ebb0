package chathub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiekchat/realtime-core/internal/auth"
	"github.com/kiekchat/realtime-core/internal/media"
	"github.com/kiekchat/realtime-core/internal/store"
)

// testServer wires a real Hub behind httptest, grounded on the teacher
// pack's httptest+gorilla/websocket integration test style: a full
// client dials a real socket rather than exercising the hub's internals
// directly, so the tests exercise the actual wire protocol.
type testServer struct {
	server *httptest.Server
	repo   store.Repository
	tokens auth.TokenService
	hub    *Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	repo := store.NewMemoryRepository()
	tokens := auth.NewTokenService(repo, "test-secret", time.Hour, 24*time.Hour)
	hub := New(repo, media.NewNoopStore(), tokens)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", ServeWS(hub))
	srv := httptest.NewServer(mux)

	t.Cleanup(srv.Close)
	return &testServer{server: srv, repo: repo, tokens: tokens, hub: hub}
}

func (ts *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ts.server.URL, "http") + "/ws"
}

func (ts *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(ts.wsURL(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (ts *testServer) createUser(t *testing.T, username string) *store.User {
	t.Helper()
	u := &store.User{Username: username, Email: username + "@example.com", DisplayName: username, CreatedAt: time.Now()}
	require.NoError(t, ts.repo.CreateUser(context.Background(), u))
	return u
}

func (ts *testServer) accessToken(t *testing.T, userID int64, username string) string {
	t.Helper()
	access, _, err := ts.tokens.Issue(context.Background(), userID, username)
	require.NoError(t, err)
	return access
}

func readFrame(t *testing.T, conn *websocket.Conn, timeout time.Duration) OutboundFrame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(timeout))
	var frame OutboundFrame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func authenticate(t *testing.T, conn *websocket.Conn, token string) OutboundFrame {
	t.Helper()
	require.NoError(t, conn.WriteJSON(InboundFrame{
		ID:      "auth-1",
		Type:    InTypeAuth,
		Payload: mustJSON(t, authPayload{Token: token}),
	}))
	return readFrame(t, conn, 2*time.Second)
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestAuthSuccessAndChatRoundTrip(t *testing.T) {
	ts := newTestServer(t)

	alice := ts.createUser(t, "alice")
	bob := ts.createUser(t, "bob")
	conv, err := ts.repo.CreateDirectConversation(context.Background(), alice.ID, bob.ID)
	require.NoError(t, err)

	aliceConn := ts.dial(t)
	bobConn := ts.dial(t)

	authFrame := authenticate(t, aliceConn, ts.accessToken(t, alice.ID, alice.Username))
	assert.Equal(t, TypeAuthSuccess, authFrame.Type)
	assert.Equal(t, "auth-1", authFrame.ReplyTo)

	authenticate(t, bobConn, ts.accessToken(t, bob.ID, bob.Username))

	// bob coming online is announced to alice, who shares the conversation.
	presence := readFrame(t, aliceConn, 2*time.Second)
	assert.Equal(t, TypePresence, presence.Type)

	require.NoError(t, aliceConn.WriteJSON(InboundFrame{
		ID:   "send-1",
		Type: InTypeChatSend,
		Payload: mustJSON(t, map[string]interface{}{
			"conversationId":  conv.ID,
			"content":         "hello bob",
			"clientMessageId": "client-1",
		}),
	}))

	sentAck := readFrame(t, aliceConn, 2*time.Second)
	assert.Equal(t, TypeChatSent, sentAck.Type)
	assert.Equal(t, "send-1", sentAck.ReplyTo)

	received := readFrame(t, bobConn, 2*time.Second)
	assert.Equal(t, TypeChatReceive, received.Type)

	// chat:delivered must carry the real conversationId (the teacher's
	// messaging code is documented to ship this field empty).
	deliveredAck := readFrame(t, aliceConn, 2*time.Second)
	assert.Equal(t, TypeChatDelivered, deliveredAck.Type)
	payload, ok := deliveredAck.Payload.(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, conv.ID, payload["conversationId"])
	assert.NotZero(t, payload["conversationId"])
}

func TestUnauthenticatedFrameIsRejected(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t)

	require.NoError(t, conn.WriteJSON(InboundFrame{
		ID:      "x",
		Type:    InTypeChatSend,
		Payload: mustJSON(t, map[string]interface{}{"conversationId": 1, "content": "hi"}),
	}))

	frame := readFrame(t, conn, 2*time.Second)
	assert.Equal(t, TypeError, frame.Type)
	payload, ok := frame.Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "NOT_AUTHENTICATED", payload["code"])
}

func TestUnknownFrameTypeRespondsWithError(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.createUser(t, "alice")
	conn := ts.dial(t)
	authenticate(t, conn, ts.accessToken(t, alice.ID, alice.Username))

	require.NoError(t, conn.WriteJSON(InboundFrame{ID: "u1", Type: "made:up", Payload: []byte("{}")}))

	frame := readFrame(t, conn, 2*time.Second)
	assert.Equal(t, TypeError, frame.Type)
	payload, ok := frame.Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "UNKNOWN_TYPE", payload["code"])
}

func TestInvalidTokenRejectsAuth(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t)

	frame := authenticate(t, conn, "not-a-real-token")
	assert.Equal(t, TypeAuthError, frame.Type)
	payload, ok := frame.Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "INVALID_TOKEN", payload["code"])
}

func TestMultiDeviceAuthOnlyBroadcastsPresenceOnce(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.createUser(t, "alice")
	bob := ts.createUser(t, "bob")
	_, err := ts.repo.CreateDirectConversation(context.Background(), alice.ID, bob.ID)
	require.NoError(t, err)

	bobConn := ts.dial(t)
	authenticate(t, bobConn, ts.accessToken(t, bob.ID, bob.Username))

	// Alice's first device connecting broadcasts online to bob (a neighbor).
	aliceConn1 := ts.dial(t)
	authenticate(t, aliceConn1, ts.accessToken(t, alice.ID, alice.Username))

	presence := readFrame(t, bobConn, 2*time.Second)
	assert.Equal(t, TypePresence, presence.Type)
	payload, ok := presence.Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "online", payload["status"])

	// Alice's second device must NOT trigger a second online broadcast.
	aliceConn2 := ts.dial(t)
	authenticate(t, aliceConn2, ts.accessToken(t, alice.ID, alice.Username))

	bobConn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
	var frame OutboundFrame
	err = bobConn.ReadJSON(&frame)
	assert.Error(t, err, "bob should not receive a second presence frame for alice's second device")
}

func TestTypingBroadcastToOtherParticipant(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.createUser(t, "alice")
	bob := ts.createUser(t, "bob")
	conv, err := ts.repo.CreateDirectConversation(context.Background(), alice.ID, bob.ID)
	require.NoError(t, err)

	aliceConn := ts.dial(t)
	bobConn := ts.dial(t)
	authenticate(t, aliceConn, ts.accessToken(t, alice.ID, alice.Username))
	authenticate(t, bobConn, ts.accessToken(t, bob.ID, bob.Username))

	require.NoError(t, aliceConn.WriteJSON(InboundFrame{
		ID:      "t1",
		Type:    InTypeChatTyping,
		Payload: mustJSON(t, map[string]interface{}{"conversationId": conv.ID, "isTyping": true}),
	}))

	frame := readFrame(t, bobConn, 2*time.Second)
	assert.Equal(t, TypeChatTyping, frame.Type)
	payload, ok := frame.Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, payload["isTyping"])
	assert.EqualValues(t, alice.ID, payload["userId"])
}

func TestReadReceiptNotifiesSender(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.createUser(t, "alice")
	bob := ts.createUser(t, "bob")
	conv, err := ts.repo.CreateDirectConversation(context.Background(), alice.ID, bob.ID)
	require.NoError(t, err)

	aliceConn := ts.dial(t)
	bobConn := ts.dial(t)
	authenticate(t, aliceConn, ts.accessToken(t, alice.ID, alice.Username))
	authenticate(t, bobConn, ts.accessToken(t, bob.ID, bob.Username))
	presence := readFrame(t, aliceConn, 2*time.Second) // presence:update for bob
	assert.Equal(t, TypePresence, presence.Type)

	require.NoError(t, aliceConn.WriteJSON(InboundFrame{
		ID:      "send-1",
		Type:    InTypeChatSend,
		Payload: mustJSON(t, map[string]interface{}{"conversationId": conv.ID, "content": "hi bob", "clientMessageId": "c1"}),
	}))
	readFrame(t, aliceConn, 2*time.Second) // chat:sent
	received := readFrame(t, bobConn, 2*time.Second) // chat:receive
	readFrame(t, aliceConn, 2*time.Second)           // chat:delivered

	receivedPayload, ok := received.Payload.(map[string]interface{})
	require.True(t, ok)
	msgID := receivedPayload["messageId"]

	require.NoError(t, bobConn.WriteJSON(InboundFrame{
		ID:      "read-1",
		Type:    InTypeChatRead,
		Payload: mustJSON(t, map[string]interface{}{"conversationId": conv.ID, "messageId": msgID}),
	}))

	readAck := readFrame(t, aliceConn, 2*time.Second)
	assert.Equal(t, TypeChatRead, readAck.Type)
	payload, ok := readAck.Payload.(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, bob.ID, payload["readBy"])
}

func TestAuthHandshakeTimeout(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping auth-timeout test (waits out the full 5s handshake window) in -short mode")
	}
	ts := newTestServer(t)
	conn := ts.dial(t)

	frame := readFrame(t, conn, 7*time.Second)
	assert.Equal(t, TypeAuthError, frame.Type)
	payload, ok := frame.Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "AUTH_TIMEOUT", payload["code"])

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "server should have closed the socket after the timeout")
}

func TestHubConnectionAndOnlineCounts(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.createUser(t, "alice")

	assert.Equal(t, 0, ts.hub.ConnectionCount())
	assert.Equal(t, 0, ts.hub.OnlineUserCount())

	conn := ts.dial(t)
	// Give the server goroutine a moment to register the new connection.
	waitFor(t, func() bool { return ts.hub.ConnectionCount() == 1 })

	authenticate(t, conn, ts.accessToken(t, alice.ID, alice.Username))
	waitFor(t, func() bool { return ts.hub.OnlineUserCount() == 1 })
	assert.True(t, ts.hub.IsUserOnline(alice.ID))

	conn.Close()
	waitFor(t, func() bool { return ts.hub.OnlineUserCount() == 0 })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.True(t, cond(), "condition not met within deadline")
}
