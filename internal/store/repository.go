// internal/store/repository.go
// Repository is the Store gateway (spec.md C2): the only component that
// constructs queries. Every other component consumes the typed entities in
// models.go.

package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

type Repository interface {
	// Users
	CreateUser(ctx context.Context, u *User) error
	GetUserByID(ctx context.Context, id int64) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	UpdateUser(ctx context.Context, u *User) error
	SetUserOnline(ctx context.Context, userID int64, online bool, lastSeen time.Time) error
	SearchUsers(ctx context.Context, query string, excludeUserID int64, limit int) ([]*User, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)
	EmailTaken(ctx context.Context, email string) (bool, error)

	// Refresh tokens
	CreateRefreshToken(ctx context.Context, t *RefreshToken) error
	GetRefreshToken(ctx context.Context, token string) (*RefreshToken, error)
	DeleteRefreshToken(ctx context.Context, token string) error
	DeleteUserRefreshTokens(ctx context.Context, userID int64) error

	// Conversations
	CreateDirectConversation(ctx context.Context, userA, userB int64) (*Conversation, error)
	FindDirectConversation(ctx context.Context, userA, userB int64) (*Conversation, error)
	CreateGroupConversation(ctx context.Context, creatorID int64, memberIDs []int64, name string, description *string) (*Conversation, *Group, error)
	GetConversation(ctx context.Context, id int64) (*Conversation, error)
	GetGroupByConversation(ctx context.Context, conversationID int64) (*Group, error)
	UpdateGroup(ctx context.Context, g *Group) error
	TouchConversation(ctx context.Context, id int64, when time.Time) error
	ListUserConversations(ctx context.Context, userID int64) ([]*Conversation, error)

	// Participants
	AddParticipant(ctx context.Context, p *Participant) error
	RemoveParticipant(ctx context.Context, conversationID, userID int64) error
	GetParticipant(ctx context.Context, conversationID, userID int64) (*Participant, error)
	ListParticipants(ctx context.Context, conversationID int64) ([]*Participant, error)
	IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error)
	UpdateParticipantRole(ctx context.Context, conversationID, userID int64, role ParticipantRole) error
	UpdateLastReadAt(ctx context.Context, conversationID, userID int64, when time.Time) error
	CountAdmins(ctx context.Context, conversationID int64) (int, error)

	// Messages
	CreateMessage(ctx context.Context, m *Message) error
	GetMessage(ctx context.Context, id int64) (*Message, error)
	GetMessagesPage(ctx context.Context, conversationID int64, cursor *int64, limit int) ([]*Message, error)
	GetLastMessage(ctx context.Context, conversationID int64) (*Message, error)
	CountUnread(ctx context.Context, conversationID, userID int64, since *time.Time) (int, error)
	MessagesAtOrBefore(ctx context.Context, conversationID int64, cutoff time.Time, excludeSenderID int64) ([]*Message, error)
	EditMessage(ctx context.Context, id int64, content string, editedAt time.Time) error
	DeleteMessage(ctx context.Context, id int64, deletedAt time.Time) error
	SearchMessages(ctx context.Context, userID int64, query string, conversationID *int64, limit int) ([]*Message, error)

	// Receipts
	UpsertDeliveredReceipt(ctx context.Context, messageID, userID int64, when time.Time) error
	UpsertReadReceipt(ctx context.Context, messageID, userID int64, when time.Time) error
	GetReceipt(ctx context.Context, messageID, userID int64) (*MessageReceipt, error)

	// Contacts
	AddContact(ctx context.Context, c *Contact) error
	RemoveContact(ctx context.Context, ownerUserID, contactUserID int64) error
	ListContacts(ctx context.Context, ownerUserID int64) ([]*Contact, error)

	// Blocks
	BlockUser(ctx context.Context, blockerID, blockedID int64) error
	UnblockUser(ctx context.Context, blockerID, blockedID int64) error
	IsBlocked(ctx context.Context, userA, userB int64) (bool, error)
	ListBlocked(ctx context.Context, blockerID int64) ([]*User, error)

	// Conversation neighbors — users sharing at least one conversation,
	// used by presence fanout (spec.md §4.9).
	ConversationNeighbors(ctx context.Context, userID int64) ([]int64, error)
}
