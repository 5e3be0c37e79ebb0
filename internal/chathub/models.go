// internal/chathub/models.go
// The frame envelope of spec.md §4.6/§6.2, both directions.

package chathub

import "encoding/json"

// InboundFrame is a client→server frame, parsed but not yet payload-validated.
type InboundFrame struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
}

// OutboundFrame is a server→client frame. ReplyTo, when set, is the id of
// the client frame being answered.
type OutboundFrame struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp int64       `json:"timestamp"`
	ReplyTo   string      `json:"replyTo,omitempty"`
}

// Server→client frame type constants (spec.md §6.2).
const (
	TypeAuthSuccess   = "auth:success"
	TypeAuthError     = "auth:error"
	TypeChatSent      = "chat:sent"
	TypeChatReceive   = "chat:receive"
	TypeChatDelivered = "chat:delivered"
	TypeChatRead      = "chat:read"
	TypeChatTyping    = "chat:typing"
	TypeChatEdited    = "chat:edited"
	TypeChatDeleted   = "chat:deleted"
	TypePresence      = "presence:update"
	TypeError         = "error"
)

// Client→server frame type constants.
const (
	InTypeAuth        = "auth"
	InTypeChatSend    = "chat:send"
	InTypeChatRead    = "chat:read"
	InTypeChatTyping  = "chat:typing"
)

type authPayload struct {
	Token string `json:"token"`
}

type chatSendPayload struct {
	ConversationID   int64  `json:"conversationId"`
	Content          string `json:"content"`
	ContentType      string `json:"contentType"`
	ReplyToMessageID *int64 `json:"replyToMessageId"`
	ClientMessageID  string `json:"clientMessageId"`
}

type chatReadPayload struct {
	ConversationID int64 `json:"conversationId"`
	MessageID      int64 `json:"messageId"`
}

type chatTypingPayload struct {
	ConversationID int64 `json:"conversationId"`
	IsTyping       bool  `json:"isTyping"`
}

type replyPreviewPayload struct {
	ID       int64  `json:"id"`
	SenderID int64  `json:"senderId"`
	Content  string `json:"content"`
}

type chatReceivePayload struct {
	MessageID      int64                `json:"messageId"`
	SenderID       int64                `json:"senderId"`
	SenderName     string               `json:"senderName"`
	ConversationID int64                `json:"conversationId"`
	Content        string               `json:"content"`
	ContentType    string               `json:"contentType"`
	Timestamp      int64                `json:"timestamp"`
	ReplyTo        *replyPreviewPayload `json:"replyTo,omitempty"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
