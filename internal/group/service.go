// internal/group/service.go
// Group service (spec.md C4): group creation, membership, and role
// management, each mutating operation guarded by admin status.

package group

import (
	"context"
	"fmt"
	"time"

	"github.com/kiekchat/realtime-core/internal/apperr"
	"github.com/kiekchat/realtime-core/internal/store"
)

// Broadcaster fans a freshly persisted SYSTEM message out to a conversation's
// live participants, mirroring the chat handler's chat:receive fanout
// (spec.md §4.7). Optional: a nil Broadcaster just skips live delivery.
type Broadcaster interface {
	BroadcastSystemMessage(conversationID int64, msg *store.Message, participantIDs []int64)
}

type Service interface {
	Create(ctx context.Context, creatorID int64, req CreateRequest) (*store.Conversation, *store.Group, error)
	Get(ctx context.Context, conversationID, requesterID int64) (*store.Group, error)
	Update(ctx context.Context, conversationID, requesterID int64, req UpdateRequest) (*store.Group, error)
	AddMembers(ctx context.Context, conversationID, requesterID int64, memberIDs []int64) error
	RemoveMember(ctx context.Context, conversationID, requesterID, targetID int64) error
	UpdateRole(ctx context.Context, conversationID, requesterID, targetID int64, role store.ParticipantRole) error
}

type service struct {
	repo        store.Repository
	broadcaster Broadcaster
}

func NewService(repo store.Repository, broadcaster Broadcaster) Service {
	return &service{repo: repo, broadcaster: broadcaster}
}

// requireAdmin distinguishes "Not a member" from "Admin privileges
// required" per spec.md §4.4.
func (s *service) requireAdmin(ctx context.Context, conversationID, userID int64) (*store.Participant, error) {
	p, err := s.repo.GetParticipant(ctx, conversationID, userID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, apperr.Forbiddenf("FORBIDDEN", "Not a member")
		}
		return nil, apperr.Internalf(err, "load participant")
	}
	if p.Role != store.RoleAdmin {
		return nil, apperr.Forbiddenf("FORBIDDEN", "Admin privileges required")
	}
	return p, nil
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func (s *service) Create(ctx context.Context, creatorID int64, req CreateRequest) (*store.Conversation, *store.Group, error) {
	memberIDs := dedupe(req.MemberIDs)

	names := make([]string, 0, len(memberIDs))
	for _, id := range memberIDs {
		if id == creatorID {
			continue
		}
		user, err := s.repo.GetUserByID(ctx, id)
		if err != nil {
			if err == store.ErrNotFound {
				return nil, nil, apperr.Validationf("VALIDATION_ERROR", "member %d does not exist", id)
			}
			return nil, nil, apperr.Internalf(err, "load member")
		}
		names = append(names, user.DisplayName)
	}

	conv, g, err := s.repo.CreateGroupConversation(ctx, creatorID, memberIDs, req.Name, req.Description)
	if err != nil {
		return nil, nil, apperr.Internalf(err, "create group conversation")
	}

	s.emitSystemMessage(ctx, conv.ID, creatorID, fmt.Sprintf("created the group %q", req.Name))

	return conv, g, nil
}

func (s *service) Get(ctx context.Context, conversationID, requesterID int64) (*store.Group, error) {
	isParticipant, err := s.repo.IsParticipant(ctx, conversationID, requesterID)
	if err != nil {
		return nil, apperr.Internalf(err, "check participant")
	}
	if !isParticipant {
		return nil, apperr.Forbiddenf("FORBIDDEN", "Not a member")
	}
	g, err := s.repo.GetGroupByConversation(ctx, conversationID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, apperr.NotFoundf("NOT_FOUND", "group not found")
		}
		return nil, apperr.Internalf(err, "load group")
	}
	return g, nil
}

func (s *service) Update(ctx context.Context, conversationID, requesterID int64, req UpdateRequest) (*store.Group, error) {
	if _, err := s.requireAdmin(ctx, conversationID, requesterID); err != nil {
		return nil, err
	}
	g, err := s.repo.GetGroupByConversation(ctx, conversationID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, apperr.NotFoundf("NOT_FOUND", "group not found")
		}
		return nil, apperr.Internalf(err, "load group")
	}

	if req.Name != nil {
		g.Name = *req.Name
	}
	if req.Description != nil {
		g.Description = req.Description
	}
	if req.IconURL != nil {
		g.IconURL = req.IconURL
	}

	if err := s.repo.UpdateGroup(ctx, g); err != nil {
		return nil, apperr.Internalf(err, "update group")
	}
	return g, nil
}

// AddMembers filters out already-present ids; fails VALIDATION if the
// resulting set is empty (spec.md §4.4).
func (s *service) AddMembers(ctx context.Context, conversationID, requesterID int64, memberIDs []int64) error {
	if _, err := s.requireAdmin(ctx, conversationID, requesterID); err != nil {
		return err
	}

	memberIDs = dedupe(memberIDs)
	var toAdd []int64
	var names []string
	now := time.Now()
	for _, id := range memberIDs {
		already, err := s.repo.IsParticipant(ctx, conversationID, id)
		if err != nil {
			return apperr.Internalf(err, "check participant")
		}
		if already {
			continue
		}
		user, err := s.repo.GetUserByID(ctx, id)
		if err != nil {
			if err == store.ErrNotFound {
				return apperr.Validationf("VALIDATION_ERROR", "member %d does not exist", id)
			}
			return apperr.Internalf(err, "load member")
		}
		toAdd = append(toAdd, id)
		names = append(names, user.DisplayName)
	}

	if len(toAdd) == 0 {
		return apperr.Validationf("VALIDATION_ERROR", "no new members to add")
	}

	for _, id := range toAdd {
		if err := s.repo.AddParticipant(ctx, &store.Participant{
			ConversationID: conversationID,
			UserID:         id,
			Role:           store.RoleMember,
			JoinedAt:       now,
		}); err != nil {
			return apperr.Internalf(err, "add participant")
		}
	}

	s.emitSystemMessage(ctx, conversationID, requesterID, fmt.Sprintf("added %s", joinNames(names)))
	return nil
}

// RemoveMember lets an admin remove anyone, or a member remove themselves
// (leave). Removing an admin auto-promotes the oldest remaining member.
func (s *service) RemoveMember(ctx context.Context, conversationID, requesterID, targetID int64) error {
	requester, err := s.repo.GetParticipant(ctx, conversationID, requesterID)
	if err != nil {
		if err == store.ErrNotFound {
			return apperr.Forbiddenf("FORBIDDEN", "Not a member")
		}
		return apperr.Internalf(err, "load participant")
	}
	isSelf := requesterID == targetID
	if !isSelf && requester.Role != store.RoleAdmin {
		return apperr.Forbiddenf("FORBIDDEN", "Admin privileges required")
	}

	target, err := s.repo.GetParticipant(ctx, conversationID, targetID)
	if err != nil {
		if err == store.ErrNotFound {
			return apperr.NotFoundf("NOT_FOUND", "member not found")
		}
		return apperr.Internalf(err, "load target participant")
	}

	targetUser, err := s.repo.GetUserByID(ctx, targetID)
	if err != nil {
		return apperr.Internalf(err, "load target user")
	}

	if err := s.repo.RemoveParticipant(ctx, conversationID, targetID); err != nil {
		return apperr.Internalf(err, "remove participant")
	}

	if target.Role == store.RoleAdmin {
		if err := s.promoteOldestRemaining(ctx, conversationID); err != nil {
			return err
		}
	}

	var text string
	if isSelf {
		text = fmt.Sprintf("%s left the group", targetUser.DisplayName)
	} else {
		text = fmt.Sprintf("removed %s", targetUser.DisplayName)
	}
	s.emitSystemMessage(ctx, conversationID, requesterID, text)
	return nil
}

func (s *service) promoteOldestRemaining(ctx context.Context, conversationID int64) error {
	remaining, err := s.repo.ListParticipants(ctx, conversationID)
	if err != nil {
		return apperr.Internalf(err, "list remaining participants")
	}
	if len(remaining) == 0 {
		return nil
	}

	oldest := remaining[0]
	for _, p := range remaining[1:] {
		if p.JoinedAt.Before(oldest.JoinedAt) {
			oldest = p
		}
	}
	if err := s.repo.UpdateParticipantRole(ctx, conversationID, oldest.UserID, store.RoleAdmin); err != nil {
		return apperr.Internalf(err, "promote new admin")
	}
	return nil
}

func (s *service) UpdateRole(ctx context.Context, conversationID, requesterID, targetID int64, role store.ParticipantRole) error {
	if _, err := s.requireAdmin(ctx, conversationID, requesterID); err != nil {
		return err
	}
	if _, err := s.repo.GetParticipant(ctx, conversationID, targetID); err != nil {
		if err == store.ErrNotFound {
			return apperr.NotFoundf("NOT_FOUND", "member not found")
		}
		return apperr.Internalf(err, "load target participant")
	}
	if err := s.repo.UpdateParticipantRole(ctx, conversationID, targetID, role); err != nil {
		return apperr.Internalf(err, "update role")
	}
	return nil
}

func (s *service) emitSystemMessage(ctx context.Context, conversationID, actorID int64, text string) {
	msg := &store.Message{
		ConversationID: conversationID,
		SenderID:       actorID,
		Content:        text,
		ContentType:    store.ContentSystem,
		CreatedAt:      time.Now(),
	}
	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		return
	}
	_ = s.repo.TouchConversation(ctx, conversationID, msg.CreatedAt)

	if s.broadcaster == nil {
		return
	}
	participants, err := s.repo.ListParticipants(ctx, conversationID)
	if err != nil {
		return
	}
	ids := make([]int64, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.UserID)
	}
	s.broadcaster.BroadcastSystemMessage(conversationID, msg, ids)
}

func joinNames(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	default:
		out := names[0]
		for _, n := range names[1:] {
			out += ", " + n
		}
		return out
	}
}
