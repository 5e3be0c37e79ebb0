// internal/store/postgres.go
// Postgres-backed Store gateway, in the teacher's sqlx style
// (internal/messaging/postgres.go, internal/auth/repository.go).

package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type postgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository wraps an open sqlx connection as the Store gateway.
func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func wrapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// --- Users -----------------------------------------------------------------

func (r *postgresRepository) CreateUser(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (username, email, password_hash, display_name, avatar_url, bio, is_online, last_seen, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`
	return r.db.QueryRowContext(ctx, query,
		u.Username, u.Email, u.PasswordHash, u.DisplayName, u.AvatarURL, u.Bio, u.IsOnline, u.LastSeen, u.CreatedAt,
	).Scan(&u.ID)
}

func (r *postgresRepository) GetUserByID(ctx context.Context, id int64) (*User, error) {
	var u User
	err := r.db.GetContext(ctx, &u, `SELECT * FROM users WHERE id = $1`, id)
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &u, nil
}

func (r *postgresRepository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := r.db.GetContext(ctx, &u, `SELECT * FROM users WHERE email = $1`, email)
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &u, nil
}

func (r *postgresRepository) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	err := r.db.GetContext(ctx, &u, `SELECT * FROM users WHERE username = $1`, username)
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &u, nil
}

func (r *postgresRepository) UpdateUser(ctx context.Context, u *User) error {
	query := `
		UPDATE users SET display_name = $1, avatar_url = $2, bio = $3
		WHERE id = $4`
	_, err := r.db.ExecContext(ctx, query, u.DisplayName, u.AvatarURL, u.Bio, u.ID)
	return err
}

func (r *postgresRepository) SetUserOnline(ctx context.Context, userID int64, online bool, lastSeen time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_online = $1, last_seen = $2 WHERE id = $3`, online, lastSeen, userID)
	return err
}

func (r *postgresRepository) SearchUsers(ctx context.Context, query string, excludeUserID int64, limit int) ([]*User, error) {
	var users []*User
	err := r.db.SelectContext(ctx, &users, `
		SELECT * FROM users
		WHERE id != $1 AND (username ILIKE '%'||$2||'%' OR display_name ILIKE '%'||$2||'%')
		ORDER BY username ASC
		LIMIT $3`, excludeUserID, query, limit)
	return users, err
}

func (r *postgresRepository) UsernameTaken(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists)
	return exists, err
}

func (r *postgresRepository) EmailTaken(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	return exists, err
}

// --- Refresh tokens ----------------------------------------------------------

func (r *postgresRepository) CreateRefreshToken(ctx context.Context, t *RefreshToken) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (token, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4)`, t.Token, t.UserID, t.ExpiresAt, t.CreatedAt)
	return err
}

func (r *postgresRepository) GetRefreshToken(ctx context.Context, token string) (*RefreshToken, error) {
	var t RefreshToken
	err := r.db.GetContext(ctx, &t, `SELECT * FROM refresh_tokens WHERE token = $1`, token)
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &t, nil
}

func (r *postgresRepository) DeleteRefreshToken(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE token = $1`, token)
	return err
}

func (r *postgresRepository) DeleteUserRefreshTokens(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID)
	return err
}

// --- Conversations -----------------------------------------------------------

// FindDirectConversation implements spec.md §4.3's "exists a participant row
// with userA AND exists a participant row with userB on the same
// conversation" semantics, not an OR over {userA,userB}.
func (r *postgresRepository) FindDirectConversation(ctx context.Context, userA, userB int64) (*Conversation, error) {
	var c Conversation
	err := r.db.GetContext(ctx, &c, `
		SELECT c.* FROM conversations c
		WHERE c.type = 'DIRECT'
		  AND EXISTS (SELECT 1 FROM conversation_participants p WHERE p.conversation_id = c.id AND p.user_id = $1)
		  AND EXISTS (SELECT 1 FROM conversation_participants p WHERE p.conversation_id = c.id AND p.user_id = $2)
		LIMIT 1`, userA, userB)
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &c, nil
}

func (r *postgresRepository) CreateDirectConversation(ctx context.Context, userA, userB int64) (*Conversation, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now()
	c := &Conversation{Type: ConversationDirect, CreatedAt: now, UpdatedAt: now}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO conversations (type, created_at, updated_at) VALUES ($1, $2, $3) RETURNING id`,
		c.Type, c.CreatedAt, c.UpdatedAt).Scan(&c.ID)
	if err != nil {
		return nil, err
	}

	for _, uid := range []int64{userA, userB} {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO conversation_participants (conversation_id, user_id, role, joined_at)
			VALUES ($1, $2, $3, $4)`, c.ID, uid, RoleMember, now); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *postgresRepository) CreateGroupConversation(ctx context.Context, creatorID int64, memberIDs []int64, name string, description *string) (*Conversation, *Group, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	now := time.Now()
	c := &Conversation{Type: ConversationGroup, CreatedAt: now, UpdatedAt: now}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO conversations (type, created_at, updated_at) VALUES ($1, $2, $3) RETURNING id`,
		c.Type, c.CreatedAt, c.UpdatedAt).Scan(&c.ID)
	if err != nil {
		return nil, nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO conversation_participants (conversation_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, $4)`, c.ID, creatorID, RoleAdmin, now); err != nil {
		return nil, nil, err
	}
	for _, uid := range memberIDs {
		if uid == creatorID {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO conversation_participants (conversation_id, user_id, role, joined_at)
			VALUES ($1, $2, $3, $4)`, c.ID, uid, RoleMember, now); err != nil {
			return nil, nil, err
		}
	}

	g := &Group{ConversationID: c.ID, Name: name, Description: description, CreatedBy: creatorID, CreatedAt: now}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO groups (conversation_id, name, description, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		g.ConversationID, g.Name, g.Description, g.CreatedBy, g.CreatedAt).Scan(&g.ID)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	return c, g, nil
}

func (r *postgresRepository) GetConversation(ctx context.Context, id int64) (*Conversation, error) {
	var c Conversation
	err := r.db.GetContext(ctx, &c, `SELECT * FROM conversations WHERE id = $1`, id)
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &c, nil
}

func (r *postgresRepository) GetGroupByConversation(ctx context.Context, conversationID int64) (*Group, error) {
	var g Group
	err := r.db.GetContext(ctx, &g, `SELECT * FROM groups WHERE conversation_id = $1`, conversationID)
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &g, nil
}

func (r *postgresRepository) UpdateGroup(ctx context.Context, g *Group) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE groups SET name = $1, description = $2, icon_url = $3 WHERE id = $4`,
		g.Name, g.Description, g.IconURL, g.ID)
	return err
}

func (r *postgresRepository) TouchConversation(ctx context.Context, id int64, when time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE conversations SET updated_at = $1 WHERE id = $2`, when, id)
	return err
}

func (r *postgresRepository) ListUserConversations(ctx context.Context, userID int64) ([]*Conversation, error) {
	var convs []*Conversation
	err := r.db.SelectContext(ctx, &convs, `
		SELECT c.* FROM conversations c
		JOIN conversation_participants p ON p.conversation_id = c.id
		WHERE p.user_id = $1
		ORDER BY c.updated_at DESC`, userID)
	return convs, err
}

// --- Participants -------------------------------------------------------------

func (r *postgresRepository) AddParticipant(ctx context.Context, p *Participant) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO conversation_participants (conversation_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, $4)`, p.ConversationID, p.UserID, p.Role, p.JoinedAt)
	return err
}

func (r *postgresRepository) RemoveParticipant(ctx context.Context, conversationID, userID int64) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM conversation_participants WHERE conversation_id = $1 AND user_id = $2`, conversationID, userID)
	return err
}

func (r *postgresRepository) GetParticipant(ctx context.Context, conversationID, userID int64) (*Participant, error) {
	var p Participant
	err := r.db.GetContext(ctx, &p, `
		SELECT * FROM conversation_participants WHERE conversation_id = $1 AND user_id = $2`, conversationID, userID)
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &p, nil
}

func (r *postgresRepository) ListParticipants(ctx context.Context, conversationID int64) ([]*Participant, error) {
	var ps []*Participant
	err := r.db.SelectContext(ctx, &ps, `
		SELECT * FROM conversation_participants WHERE conversation_id = $1 ORDER BY joined_at ASC`, conversationID)
	return ps, err
}

func (r *postgresRepository) IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM conversation_participants WHERE conversation_id = $1 AND user_id = $2)`,
		conversationID, userID).Scan(&exists)
	return exists, err
}

func (r *postgresRepository) UpdateParticipantRole(ctx context.Context, conversationID, userID int64, role ParticipantRole) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversation_participants SET role = $1 WHERE conversation_id = $2 AND user_id = $3`,
		role, conversationID, userID)
	return err
}

func (r *postgresRepository) UpdateLastReadAt(ctx context.Context, conversationID, userID int64, when time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversation_participants SET last_read_at = $1 WHERE conversation_id = $2 AND user_id = $3`,
		when, conversationID, userID)
	return err
}

func (r *postgresRepository) CountAdmins(ctx context.Context, conversationID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM conversation_participants WHERE conversation_id = $1 AND role = $2`,
		conversationID, RoleAdmin).Scan(&n)
	return n, err
}

// --- Messages -------------------------------------------------------------------

func (r *postgresRepository) CreateMessage(ctx context.Context, m *Message) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	query := `
		INSERT INTO messages (conversation_id, sender_id, content, content_type, reply_to_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	return r.db.QueryRowContext(ctx, query,
		m.ConversationID, m.SenderID, m.Content, m.ContentType, m.ReplyToID, m.CreatedAt,
	).Scan(&m.ID)
}

func (r *postgresRepository) GetMessage(ctx context.Context, id int64) (*Message, error) {
	var m Message
	err := r.db.GetContext(ctx, &m, `SELECT * FROM messages WHERE id = $1`, id)
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &m, nil
}

// GetMessagesPage implements spec.md §4.3's limit+1 cursor pattern: callers
// ask for limit+1 rows here and pop the extra one themselves.
func (r *postgresRepository) GetMessagesPage(ctx context.Context, conversationID int64, cursor *int64, limit int) ([]*Message, error) {
	var rows []*Message
	var err error
	if cursor == nil {
		err = r.db.SelectContext(ctx, &rows, `
			SELECT * FROM messages
			WHERE conversation_id = $1 AND deleted_at IS NULL
			ORDER BY created_at DESC, id DESC
			LIMIT $2`, conversationID, limit)
	} else {
		err = r.db.SelectContext(ctx, &rows, `
			SELECT m.* FROM messages m
			WHERE m.conversation_id = $1 AND m.deleted_at IS NULL
			  AND (m.created_at, m.id) < (SELECT created_at, id FROM messages WHERE id = $2)
			ORDER BY m.created_at DESC, m.id DESC
			LIMIT $3`, conversationID, *cursor, limit)
	}
	return rows, err
}

func (r *postgresRepository) GetLastMessage(ctx context.Context, conversationID int64) (*Message, error) {
	var m Message
	err := r.db.GetContext(ctx, &m, `
		SELECT * FROM messages WHERE conversation_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC, id DESC LIMIT 1`, conversationID)
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &m, nil
}

func (r *postgresRepository) CountUnread(ctx context.Context, conversationID, userID int64, since *time.Time) (int, error) {
	var n int
	var err error
	if since == nil {
		err = r.db.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM messages
			WHERE conversation_id = $1 AND sender_id != $2 AND deleted_at IS NULL`,
			conversationID, userID).Scan(&n)
	} else {
		err = r.db.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM messages
			WHERE conversation_id = $1 AND sender_id != $2 AND deleted_at IS NULL AND created_at > $3`,
			conversationID, userID, *since).Scan(&n)
	}
	return n, err
}

func (r *postgresRepository) MessagesAtOrBefore(ctx context.Context, conversationID int64, cutoff time.Time, excludeSenderID int64) ([]*Message, error) {
	var rows []*Message
	err := r.db.SelectContext(ctx, &rows, `
		SELECT * FROM messages
		WHERE conversation_id = $1 AND sender_id != $2 AND created_at <= $3
		ORDER BY created_at ASC`, conversationID, excludeSenderID, cutoff)
	return rows, err
}

func (r *postgresRepository) EditMessage(ctx context.Context, id int64, content string, editedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE messages SET content = $1, edited_at = $2 WHERE id = $3`, content, editedAt, id)
	return err
}

func (r *postgresRepository) DeleteMessage(ctx context.Context, id int64, deletedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE messages SET content = $1, deleted_at = $2 WHERE id = $3`, DeletedMessagePlaceholder, deletedAt, id)
	return err
}

func (r *postgresRepository) SearchMessages(ctx context.Context, userID int64, query string, conversationID *int64, limit int) ([]*Message, error) {
	var rows []*Message
	var err error
	if conversationID == nil {
		err = r.db.SelectContext(ctx, &rows, `
			SELECT m.* FROM messages m
			JOIN conversation_participants p ON p.conversation_id = m.conversation_id AND p.user_id = $1
			WHERE m.deleted_at IS NULL AND m.content ILIKE '%'||$2||'%'
			ORDER BY m.created_at DESC
			LIMIT $3`, userID, query, limit)
	} else {
		err = r.db.SelectContext(ctx, &rows, `
			SELECT m.* FROM messages m
			JOIN conversation_participants p ON p.conversation_id = m.conversation_id AND p.user_id = $1
			WHERE m.deleted_at IS NULL AND m.content ILIKE '%'||$2||'%' AND m.conversation_id = $3
			ORDER BY m.created_at DESC
			LIMIT $4`, userID, query, *conversationID, limit)
	}
	return rows, err
}

// --- Receipts -------------------------------------------------------------------

// UpsertDeliveredReceipt never downgrades an existing READ receipt: the
// UPDATE clause is intentionally empty (spec.md §4.7 step 7).
func (r *postgresRepository) UpsertDeliveredReceipt(ctx context.Context, messageID, userID int64, when time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO message_receipts (message_id, user_id, status, timestamp)
		VALUES ($1, $2, 'DELIVERED', $3)
		ON CONFLICT (message_id, user_id) DO NOTHING`, messageID, userID, when)
	return err
}

func (r *postgresRepository) UpsertReadReceipt(ctx context.Context, messageID, userID int64, when time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO message_receipts (message_id, user_id, status, timestamp)
		VALUES ($1, $2, 'READ', $3)
		ON CONFLICT (message_id, user_id) DO UPDATE SET status = 'READ', timestamp = $3`, messageID, userID, when)
	return err
}

func (r *postgresRepository) GetReceipt(ctx context.Context, messageID, userID int64) (*MessageReceipt, error) {
	var rc MessageReceipt
	err := r.db.GetContext(ctx, &rc, `
		SELECT * FROM message_receipts WHERE message_id = $1 AND user_id = $2`, messageID, userID)
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &rc, nil
}

// --- Contacts -------------------------------------------------------------------

func (r *postgresRepository) AddContact(ctx context.Context, c *Contact) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO contacts (owner_user_id, contact_user_id, nickname, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner_user_id, contact_user_id) DO UPDATE SET nickname = $3`,
		c.OwnerUserID, c.ContactUserID, c.Nickname, c.CreatedAt)
	return err
}

func (r *postgresRepository) RemoveContact(ctx context.Context, ownerUserID, contactUserID int64) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM contacts WHERE owner_user_id = $1 AND contact_user_id = $2`, ownerUserID, contactUserID)
	return err
}

func (r *postgresRepository) ListContacts(ctx context.Context, ownerUserID int64) ([]*Contact, error) {
	var cs []*Contact
	err := r.db.SelectContext(ctx, &cs, `
		SELECT * FROM contacts WHERE owner_user_id = $1 ORDER BY created_at DESC`, ownerUserID)
	return cs, err
}

// --- Blocks ---------------------------------------------------------------------

func (r *postgresRepository) BlockUser(ctx context.Context, blockerID, blockedID int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO blocks (blocker_user_id, blocked_user_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (blocker_user_id, blocked_user_id) DO NOTHING`, blockerID, blockedID, time.Now())
	return err
}

func (r *postgresRepository) UnblockUser(ctx context.Context, blockerID, blockedID int64) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM blocks WHERE blocker_user_id = $1 AND blocked_user_id = $2`, blockerID, blockedID)
	return err
}

// IsBlocked is symmetric per spec.md §3: A blocked B or B blocked A.
func (r *postgresRepository) IsBlocked(ctx context.Context, userA, userB int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM blocks
			WHERE (blocker_user_id = $1 AND blocked_user_id = $2)
			   OR (blocker_user_id = $2 AND blocked_user_id = $1)
		)`, userA, userB).Scan(&exists)
	return exists, err
}

func (r *postgresRepository) ListBlocked(ctx context.Context, blockerID int64) ([]*User, error) {
	var users []*User
	err := r.db.SelectContext(ctx, &users, `
		SELECT u.* FROM users u
		JOIN blocks b ON b.blocked_user_id = u.id
		WHERE b.blocker_user_id = $1`, blockerID)
	return users, err
}

func (r *postgresRepository) ConversationNeighbors(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	err := r.db.SelectContext(ctx, &ids, `
		SELECT DISTINCT p2.user_id
		FROM conversation_participants p1
		JOIN conversation_participants p2 ON p2.conversation_id = p1.conversation_id
		WHERE p1.user_id = $1 AND p2.user_id != $1`, userID)
	return ids, err
}
