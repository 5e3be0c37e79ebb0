// internal/store/memory.go
// In-memory Store gateway: same Repository contract as the Postgres
// implementation, backing package tests and a dependency-free dev mode.
// Grounded on the teacher's sqlx-backed postgresRepository in postgres.go —
// same method set, same ErrNotFound/ErrAlreadyExists semantics, map-backed
// instead of table-backed.

package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryRepository struct {
	mu sync.Mutex

	users         map[int64]*User
	usersByEmail  map[string]int64
	usersByName   map[string]int64
	nextUserID    int64

	refreshTokens map[string]*RefreshToken

	conversations   map[int64]*Conversation
	nextConvID      int64
	groups          map[int64]*Group // keyed by conversation id
	nextGroupID     int64
	directIndex     map[[2]int64]int64 // sorted (userA,userB) -> conversation id

	participants map[int64]map[int64]*Participant // conversationID -> userID -> Participant

	messages   map[int64]*Message
	nextMsgID  int64
	byConv     map[int64][]int64 // conversationID -> ordered message ids, oldest first

	receipts map[[2]int64]*MessageReceipt // (messageID, userID) -> receipt

	contacts map[int64]map[int64]*Contact // ownerID -> contactID -> Contact
	blocks   map[int64]map[int64]bool     // blockerID -> blockedID -> true
}

// NewMemoryRepository returns a Repository backed entirely by in-process
// maps. It is safe for concurrent use and never touches a network or disk,
// which makes it the fallback store for local development without Postgres
// and the fixture of choice for service-layer tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		users:         make(map[int64]*User),
		usersByEmail:  make(map[string]int64),
		usersByName:   make(map[string]int64),
		refreshTokens: make(map[string]*RefreshToken),
		conversations: make(map[int64]*Conversation),
		groups:        make(map[int64]*Group),
		directIndex:   make(map[[2]int64]int64),
		participants:  make(map[int64]map[int64]*Participant),
		messages:      make(map[int64]*Message),
		byConv:        make(map[int64][]int64),
		receipts:      make(map[[2]int64]*MessageReceipt),
		contacts:      make(map[int64]map[int64]*Contact),
		blocks:        make(map[int64]map[int64]bool),
	}
}

// --- Users -------------------------------------------------------------

func (r *memoryRepository) CreateUser(ctx context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.usersByEmail[u.Email]; taken {
		return ErrAlreadyExists
	}
	if _, taken := r.usersByName[u.Username]; taken {
		return ErrAlreadyExists
	}
	r.nextUserID++
	u.ID = r.nextUserID
	cp := *u
	r.users[u.ID] = &cp
	r.usersByEmail[u.Email] = u.ID
	r.usersByName[u.Username] = u.ID
	return nil
}

func (r *memoryRepository) GetUserByID(ctx context.Context, id int64) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memoryRepository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	r.mu.Lock()
	id, ok := r.usersByEmail[email]
	r.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	return r.GetUserByID(ctx, id)
}

func (r *memoryRepository) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	r.mu.Lock()
	id, ok := r.usersByName[username]
	r.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	return r.GetUserByID(ctx, id)
}

func (r *memoryRepository) UpdateUser(ctx context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.ID]; !ok {
		return ErrNotFound
	}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *memoryRepository) SetUserOnline(ctx context.Context, userID int64, online bool, lastSeen time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.IsOnline = online
	u.LastSeen = lastSeen
	return nil
}

func (r *memoryRepository) SearchUsers(ctx context.Context, query string, excludeUserID int64, limit int) ([]*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	query = strings.ToLower(query)
	var out []*User
	for _, u := range r.users {
		if u.ID == excludeUserID {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(u.Username), query) &&
			!strings.Contains(strings.ToLower(u.DisplayName), query) {
			continue
		}
		cp := *u
		out = append(out, &cp)
		if len(out) >= limit {
			break
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryRepository) UsernameTaken(ctx context.Context, username string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.usersByName[username]
	return ok, nil
}

func (r *memoryRepository) EmailTaken(ctx context.Context, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.usersByEmail[email]
	return ok, nil
}

// --- Refresh tokens ------------------------------------------------------

func (r *memoryRepository) CreateRefreshToken(ctx context.Context, t *RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.refreshTokens[t.Token] = &cp
	return nil
}

func (r *memoryRepository) GetRefreshToken(ctx context.Context, token string) (*RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.refreshTokens[token]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *memoryRepository) DeleteRefreshToken(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.refreshTokens, token)
	return nil
}

func (r *memoryRepository) DeleteUserRefreshTokens(ctx context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for token, t := range r.refreshTokens {
		if t.UserID == userID {
			delete(r.refreshTokens, token)
		}
	}
	return nil
}

// --- Conversations ---------------------------------------------------------

func directKey(userA, userB int64) [2]int64 {
	if userA > userB {
		userA, userB = userB, userA
	}
	return [2]int64{userA, userB}
}

func (r *memoryRepository) CreateDirectConversation(ctx context.Context, userA, userB int64) (*Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := directKey(userA, userB)
	if id, ok := r.directIndex[key]; ok {
		cp := *r.conversations[id]
		return &cp, nil
	}

	r.nextConvID++
	now := time.Now()
	conv := &Conversation{ID: r.nextConvID, Type: ConversationDirect, CreatedAt: now, UpdatedAt: now}
	r.conversations[conv.ID] = conv
	r.directIndex[key] = conv.ID
	r.participants[conv.ID] = map[int64]*Participant{
		userA: {ConversationID: conv.ID, UserID: userA, Role: RoleMember, JoinedAt: now},
		userB: {ConversationID: conv.ID, UserID: userB, Role: RoleMember, JoinedAt: now},
	}
	cp := *conv
	return &cp, nil
}

func (r *memoryRepository) FindDirectConversation(ctx context.Context, userA, userB int64) (*Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.directIndex[directKey(userA, userB)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r.conversations[id]
	return &cp, nil
}

func (r *memoryRepository) CreateGroupConversation(ctx context.Context, creatorID int64, memberIDs []int64, name string, description *string) (*Conversation, *Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextConvID++
	now := time.Now()
	conv := &Conversation{ID: r.nextConvID, Type: ConversationGroup, CreatedAt: now, UpdatedAt: now}
	r.conversations[conv.ID] = conv

	members := map[int64]*Participant{
		creatorID: {ConversationID: conv.ID, UserID: creatorID, Role: RoleAdmin, JoinedAt: now},
	}
	for _, id := range memberIDs {
		if id == creatorID {
			continue
		}
		members[id] = &Participant{ConversationID: conv.ID, UserID: id, Role: RoleMember, JoinedAt: now}
	}
	r.participants[conv.ID] = members

	r.nextGroupID++
	g := &Group{ID: r.nextGroupID, ConversationID: conv.ID, Name: name, Description: description, CreatedBy: creatorID, CreatedAt: now}
	r.groups[conv.ID] = g

	convCp, gCp := *conv, *g
	return &convCp, &gCp, nil
}

func (r *memoryRepository) GetConversation(ctx context.Context, id int64) (*Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memoryRepository) GetGroupByConversation(ctx context.Context, conversationID int64) (*Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[conversationID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (r *memoryRepository) UpdateGroup(ctx context.Context, g *Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.groups[g.ConversationID]; !ok {
		return ErrNotFound
	}
	cp := *g
	r.groups[g.ConversationID] = &cp
	return nil
}

func (r *memoryRepository) TouchConversation(ctx context.Context, id int64, when time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[id]
	if !ok {
		return ErrNotFound
	}
	c.UpdatedAt = when
	return nil
}

func (r *memoryRepository) ListUserConversations(ctx context.Context, userID int64) ([]*Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Conversation
	for convID, members := range r.participants {
		if _, ok := members[userID]; !ok {
			continue
		}
		cp := *r.conversations[convID]
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// --- Participants ------------------------------------------------------

func (r *memoryRepository) AddParticipant(ctx context.Context, p *Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.participants[p.ConversationID] == nil {
		r.participants[p.ConversationID] = make(map[int64]*Participant)
	}
	cp := *p
	r.participants[p.ConversationID][p.UserID] = &cp
	return nil
}

func (r *memoryRepository) RemoveParticipant(ctx context.Context, conversationID, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.participants[conversationID], userID)
	return nil
}

func (r *memoryRepository) GetParticipant(ctx context.Context, conversationID, userID int64) (*Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[conversationID][userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memoryRepository) ListParticipants(ctx context.Context, conversationID int64) ([]*Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Participant
	for _, p := range r.participants[conversationID] {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (r *memoryRepository) IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.participants[conversationID][userID]
	return ok, nil
}

func (r *memoryRepository) UpdateParticipantRole(ctx context.Context, conversationID, userID int64, role ParticipantRole) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[conversationID][userID]
	if !ok {
		return ErrNotFound
	}
	p.Role = role
	return nil
}

func (r *memoryRepository) UpdateLastReadAt(ctx context.Context, conversationID, userID int64, when time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[conversationID][userID]
	if !ok {
		return ErrNotFound
	}
	t := when
	p.LastReadAt = &t
	return nil
}

func (r *memoryRepository) CountAdmins(ctx context.Context, conversationID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, p := range r.participants[conversationID] {
		if p.Role == RoleAdmin {
			count++
		}
	}
	return count, nil
}

// --- Messages ------------------------------------------------------------

func (r *memoryRepository) CreateMessage(ctx context.Context, m *Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextMsgID++
	m.ID = r.nextMsgID
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	cp := *m
	r.messages[m.ID] = &cp
	r.byConv[m.ConversationID] = append(r.byConv[m.ConversationID], m.ID)
	return nil
}

func (r *memoryRepository) GetMessage(ctx context.Context, id int64) (*Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m
	return &cp, nil
}

// GetMessagesPage returns up to limit messages strictly older than cursor
// (or the newest page if cursor is nil), newest-first — the same ordering
// the Postgres implementation's query returns, matching the teacher's
// limit+1 cursor convention the conversation service pops one row from.
func (r *memoryRepository) GetMessagesPage(ctx context.Context, conversationID int64, cursor *int64, limit int) ([]*Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := r.byConv[conversationID]

	newestFirst := make([]int64, len(ids))
	for i, id := range ids {
		newestFirst[len(ids)-1-i] = id
	}

	var out []*Message
	for _, id := range newestFirst {
		if cursor != nil && id >= *cursor {
			continue
		}
		m := r.messages[id]
		if m.IsDeleted() {
			continue
		}
		cp := *m
		out = append(out, &cp)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *memoryRepository) GetLastMessage(ctx context.Context, conversationID int64) (*Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := r.byConv[conversationID]
	if len(ids) == 0 {
		return nil, ErrNotFound
	}
	cp := *r.messages[ids[len(ids)-1]]
	return &cp, nil
}

func (r *memoryRepository) CountUnread(ctx context.Context, conversationID, userID int64, since *time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, id := range r.byConv[conversationID] {
		m := r.messages[id]
		if m.SenderID == userID {
			continue
		}
		if m.IsDeleted() {
			continue
		}
		if since != nil && !m.CreatedAt.After(*since) {
			continue
		}
		count++
	}
	return count, nil
}

func (r *memoryRepository) MessagesAtOrBefore(ctx context.Context, conversationID int64, cutoff time.Time, excludeSenderID int64) ([]*Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Message
	for _, id := range r.byConv[conversationID] {
		m := r.messages[id]
		if m.SenderID == excludeSenderID {
			continue
		}
		if m.CreatedAt.After(cutoff) {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memoryRepository) EditMessage(ctx context.Context, id int64, content string, editedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return ErrNotFound
	}
	m.Content = content
	t := editedAt
	m.EditedAt = &t
	return nil
}

func (r *memoryRepository) DeleteMessage(ctx context.Context, id int64, deletedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return ErrNotFound
	}
	m.Content = DeletedMessagePlaceholder
	t := deletedAt
	m.DeletedAt = &t
	return nil
}

func (r *memoryRepository) SearchMessages(ctx context.Context, userID int64, query string, conversationID *int64, limit int) ([]*Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	query = strings.ToLower(query)

	var out []*Message
	for convID, members := range r.participants {
		if _, ok := members[userID]; !ok {
			continue
		}
		if conversationID != nil && convID != *conversationID {
			continue
		}
		for _, id := range r.byConv[convID] {
			m := r.messages[id]
			if m.IsDeleted() {
				continue
			}
			if !strings.Contains(strings.ToLower(m.Content), query) {
				continue
			}
			cp := *m
			out = append(out, &cp)
			if len(out) >= limit {
				return out, nil
			}
		}
	}
	return out, nil
}

// --- Receipts --------------------------------------------------------------

func (r *memoryRepository) UpsertDeliveredReceipt(ctx context.Context, messageID, userID int64, when time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := [2]int64{messageID, userID}
	if existing, ok := r.receipts[key]; ok && existing.Status == ReceiptRead {
		return nil // never downgrade READ back to DELIVERED
	}
	r.receipts[key] = &MessageReceipt{MessageID: messageID, UserID: userID, Status: ReceiptDelivered, Timestamp: when}
	return nil
}

func (r *memoryRepository) UpsertReadReceipt(ctx context.Context, messageID, userID int64, when time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.receipts[[2]int64{messageID, userID}] = &MessageReceipt{MessageID: messageID, UserID: userID, Status: ReceiptRead, Timestamp: when}
	return nil
}

func (r *memoryRepository) GetReceipt(ctx context.Context, messageID, userID int64) (*MessageReceipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.receipts[[2]int64{messageID, userID}]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// --- Contacts ------------------------------------------------------------

func (r *memoryRepository) AddContact(ctx context.Context, c *Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.contacts[c.OwnerUserID] == nil {
		r.contacts[c.OwnerUserID] = make(map[int64]*Contact)
	}
	cp := *c
	r.contacts[c.OwnerUserID][c.ContactUserID] = &cp
	return nil
}

func (r *memoryRepository) RemoveContact(ctx context.Context, ownerUserID, contactUserID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.contacts[ownerUserID], contactUserID)
	return nil
}

func (r *memoryRepository) ListContacts(ctx context.Context, ownerUserID int64) ([]*Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Contact
	for _, c := range r.contacts[ownerUserID] {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

// --- Blocks ----------------------------------------------------------------

func (r *memoryRepository) BlockUser(ctx context.Context, blockerID, blockedID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.blocks[blockerID] == nil {
		r.blocks[blockerID] = make(map[int64]bool)
	}
	r.blocks[blockerID][blockedID] = true
	return nil
}

func (r *memoryRepository) UnblockUser(ctx context.Context, blockerID, blockedID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.blocks[blockerID], blockedID)
	return nil
}

func (r *memoryRepository) IsBlocked(ctx context.Context, userA, userB int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.blocks[userA][userB] || r.blocks[userB][userA], nil
}

func (r *memoryRepository) ListBlocked(ctx context.Context, blockerID int64) ([]*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*User
	for id := range r.blocks[blockerID] {
		if u, ok := r.users[id]; ok {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- Presence fanout ---------------------------------------------------

// ConversationNeighbors returns every user sharing at least one conversation
// with userID, deduplicated and excluding userID itself.
func (r *memoryRepository) ConversationNeighbors(ctx context.Context, userID int64) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[int64]bool)
	var out []int64
	for _, members := range r.participants {
		if _, ok := members[userID]; !ok {
			continue
		}
		for other := range members {
			if other == userID || seen[other] {
				continue
			}
			seen[other] = true
			out = append(out, other)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
