// internal/api/models.go
// Request/response shapes for the message-level surface (spec.md C10,
// §4.10) that don't belong to conversation or group: edit, delete, forward,
// search, unread summary.

package api

type EditMessageRequest struct {
	Content string `json:"content" validate:"required,min=1,max=4000"`
}

type ForwardRequest struct {
	ConversationIDs []int64 `json:"conversationIds" validate:"required,min=1,dive,gt=0"`
}

type UnreadSummary struct {
	Conversations []UnreadConversation `json:"conversations"`
	Total         int                  `json:"total"`
}

type UnreadConversation struct {
	ConversationID int64 `json:"conversationId"`
	Count          int   `json:"count"`
}

type HealthResponse struct {
	Status        string `json:"status"`
	Uptime        string `json:"uptime"`
	WSConnections int    `json:"wsConnections"`
	OnlineUsers   int    `json:"onlineUsers"`
}
