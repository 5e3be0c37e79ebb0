// internal/store/models.go
// Entities of the messaging data model. The store package is the only
// place that knows about table shapes; every other package consumes these
// typed values.

package store

import "time"

type ConversationType string

const (
	ConversationDirect ConversationType = "DIRECT"
	ConversationGroup  ConversationType = "GROUP"
)

type ParticipantRole string

const (
	RoleAdmin  ParticipantRole = "ADMIN"
	RoleMember ParticipantRole = "MEMBER"
)

type ContentType string

const (
	ContentText   ContentType = "TEXT"
	ContentImage  ContentType = "IMAGE"
	ContentFile   ContentType = "FILE"
	ContentAudio  ContentType = "AUDIO"
	ContentVideo  ContentType = "VIDEO"
	ContentSystem ContentType = "SYSTEM"
)

func (c ContentType) Valid() bool {
	switch c {
	case ContentText, ContentImage, ContentFile, ContentAudio, ContentVideo, ContentSystem:
		return true
	}
	return false
}

type ReceiptStatus string

const (
	ReceiptDelivered ReceiptStatus = "DELIVERED"
	ReceiptRead      ReceiptStatus = "READ"
)

// DeletedMessagePlaceholder overwrites Message.Content on a "delete for
// everyone" per spec.md §4.10.
const DeletedMessagePlaceholder = "This message was deleted"

// User is the identity record, spec.md §3.
type User struct {
	ID           int64     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	DisplayName  string    `db:"display_name" json:"displayName"`
	AvatarURL    *string   `db:"avatar_url" json:"avatarUrl,omitempty"`
	Bio          *string   `db:"bio" json:"bio,omitempty"`
	IsOnline     bool      `db:"is_online" json:"isOnline"`
	LastSeen     time.Time `db:"last_seen" json:"lastSeen"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// PublicUser strips fields that non-owners should never see (no email).
type PublicUser struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
	AvatarURL   *string   `json:"avatarUrl,omitempty"`
	Bio         *string   `json:"bio,omitempty"`
	IsOnline    bool      `json:"isOnline"`
	LastSeen    time.Time `json:"lastSeen"`
}

func (u *User) Public() *PublicUser {
	if u == nil {
		return nil
	}
	return &PublicUser{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		Bio:         u.Bio,
		IsOnline:    u.IsOnline,
		LastSeen:    u.LastSeen,
	}
}

// WithEmail is the shape returned to the owner of the account (GET /me).
type WithEmail struct {
	PublicUser
	Email string `json:"email"`
}

func (u *User) WithEmail() *WithEmail {
	if u == nil {
		return nil
	}
	return &WithEmail{PublicUser: *u.Public(), Email: u.Email}
}

// RefreshToken is a single-use opaque bearer, spec.md §3/§4.1.
type RefreshToken struct {
	Token     string    `db:"token" json:"-"`
	UserID    int64     `db:"user_id" json:"-"`
	ExpiresAt time.Time `db:"expires_at" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"-"`
}

// Conversation is the thread container, spec.md §3.
type Conversation struct {
	ID        int64            `db:"id" json:"id"`
	Type      ConversationType `db:"type" json:"type"`
	CreatedAt time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time        `db:"updated_at" json:"updatedAt"`
}

// ConversationSummary is what list-conversations returns per row.
type ConversationSummary struct {
	Conversation
	Participants []*PublicUser `json:"participants"`
	LastMessage  *Message      `json:"lastMessage,omitempty"`
	UnreadCount  int           `json:"unreadCount"`
}

// Participant is the (conversationId, userId) join row, spec.md §3.
type Participant struct {
	ConversationID int64           `db:"conversation_id" json:"conversationId"`
	UserID         int64           `db:"user_id" json:"userId"`
	Role           ParticipantRole `db:"role" json:"role"`
	JoinedAt       time.Time       `db:"joined_at" json:"joinedAt"`
	LastReadAt     *time.Time      `db:"last_read_at" json:"lastReadAt,omitempty"`
}

// ReplyPreview is a read-only projection of a reply's parent message, used
// so clients don't need a second round trip to render a quoted reply.
type ReplyPreview struct {
	ID       int64  `json:"id"`
	SenderID int64  `json:"senderId"`
	Content  string `json:"content"`
}

// Message is a single chat message, spec.md §3.
type Message struct {
	ID             int64       `db:"id" json:"id"`
	ConversationID int64       `db:"conversation_id" json:"conversationId"`
	SenderID       int64       `db:"sender_id" json:"senderId"`
	Content        string      `db:"content" json:"content"`
	ContentType    ContentType `db:"content_type" json:"contentType"`
	ReplyToID      *int64      `db:"reply_to_id" json:"replyToMessageId,omitempty"`
	CreatedAt      time.Time   `db:"created_at" json:"createdAt"`
	EditedAt       *time.Time  `db:"edited_at" json:"editedAt,omitempty"`
	DeletedAt      *time.Time  `db:"deleted_at" json:"deletedAt,omitempty"`

	ReplyTo *ReplyPreview `db:"-" json:"replyTo,omitempty"`
}

func (m *Message) IsDeleted() bool { return m.DeletedAt != nil }

// MessageReceipt is per-user per-message delivery status, spec.md §3.
type MessageReceipt struct {
	MessageID int64         `db:"message_id" json:"messageId"`
	UserID    int64         `db:"user_id" json:"userId"`
	Status    ReceiptStatus `db:"status" json:"status"`
	Timestamp time.Time     `db:"timestamp" json:"timestamp"`
}

// Group is the 1:1 extension row for GROUP conversations, spec.md §3.
type Group struct {
	ID             int64     `db:"id" json:"id"`
	ConversationID int64     `db:"conversation_id" json:"conversationId"`
	Name           string    `db:"name" json:"name"`
	Description    *string   `db:"description" json:"description,omitempty"`
	IconURL        *string   `db:"icon_url" json:"iconUrl,omitempty"`
	CreatedBy      int64     `db:"created_by" json:"createdBy"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}

// Contact is a directional address-book entry, spec.md §3.
type Contact struct {
	OwnerUserID   int64     `db:"owner_user_id" json:"ownerUserId"`
	ContactUserID int64     `db:"contact_user_id" json:"contactUserId"`
	Nickname      *string   `db:"nickname" json:"nickname,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

// Block records that OwnerUserID blocked BlockedUserID, spec.md §3.
type Block struct {
	BlockerUserID int64     `db:"blocker_user_id" json:"blockerUserId"`
	BlockedUserID int64     `db:"blocked_user_id" json:"blockedUserId"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

// MessageCursor pages backward through conversation history, spec.md §4.3.
type MessageCursor struct {
	Messages   []*Message
	NextCursor *int64
	HasMore    bool
}
