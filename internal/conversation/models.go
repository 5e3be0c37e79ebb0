// internal/conversation/models.go

package conversation

type CreateDirectRequest struct {
	UserID int64 `json:"userId" validate:"required"`
}

type MessagesPage struct {
	Messages   []*MessageView `json:"messages"`
	NextCursor *int64         `json:"nextCursor"`
	HasMore    bool           `json:"hasMore"`
}

// MessageView is a Message with any reply preview/media URL already
// resolved, ready to serialize straight to a client.
type MessageView struct {
	ID               int64         `json:"id"`
	ConversationID   int64         `json:"conversationId"`
	SenderID         int64         `json:"senderId"`
	Content          string        `json:"content"`
	ContentType      string        `json:"contentType"`
	ReplyToMessageID *int64        `json:"replyToMessageId,omitempty"`
	ReplyTo          *ReplyPreview `json:"replyTo,omitempty"`
	CreatedAt        string        `json:"createdAt"`
	EditedAt         *string       `json:"editedAt,omitempty"`
	DeletedAt        *string       `json:"deletedAt,omitempty"`
}

type ReplyPreview struct {
	ID       int64  `json:"id"`
	SenderID int64  `json:"senderId"`
	Content  string `json:"content"`
}
