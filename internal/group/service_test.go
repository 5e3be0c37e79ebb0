package group

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiekchat/realtime-core/internal/apperr"
	"github.com/kiekchat/realtime-core/internal/store"
)

type recordingBroadcaster struct {
	messages []*store.Message
}

func (b *recordingBroadcaster) BroadcastSystemMessage(conversationID int64, msg *store.Message, participantIDs []int64) {
	b.messages = append(b.messages, msg)
}

func seedUser(t *testing.T, repo store.Repository, username string) *store.User {
	t.Helper()
	u := &store.User{Username: username, Email: username + "@example.com", DisplayName: username, CreatedAt: time.Now()}
	require.NoError(t, repo.CreateUser(context.Background(), u))
	return u
}

func newTestGroup(t *testing.T) (Service, store.Repository, *recordingBroadcaster) {
	t.Helper()
	repo := store.NewMemoryRepository()
	b := &recordingBroadcaster{}
	return NewService(repo, b), repo, b
}

func TestCreateGroupMakesCreatorAdmin(t *testing.T) {
	ctx := context.Background()
	svc, repo, b := newTestGroup(t)

	creator := seedUser(t, repo, "creator")
	member := seedUser(t, repo, "member")

	conv, g, err := svc.Create(ctx, creator.ID, CreateRequest{Name: "Friends", MemberIDs: []int64{member.ID}})
	require.NoError(t, err)
	assert.Equal(t, "Friends", g.Name)

	p, err := repo.GetParticipant(ctx, conv.ID, creator.ID)
	require.NoError(t, err)
	assert.Equal(t, store.RoleAdmin, p.Role)

	p, err = repo.GetParticipant(ctx, conv.ID, member.ID)
	require.NoError(t, err)
	assert.Equal(t, store.RoleMember, p.Role)

	require.Len(t, b.messages, 1, "group creation emits a SYSTEM message")
	assert.Equal(t, store.ContentSystem, b.messages[0].ContentType)
}

func TestAddMembersRejectsEmptyResult(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestGroup(t)

	creator := seedUser(t, repo, "creator")
	member := seedUser(t, repo, "member")
	_, _, err := svc.Create(ctx, creator.ID, CreateRequest{Name: "G", MemberIDs: []int64{member.ID}})
	require.NoError(t, err)

	conv, _, err := svc.Create(ctx, creator.ID, CreateRequest{Name: "G2", MemberIDs: []int64{member.ID}})
	require.NoError(t, err)

	// member is already in conv; adding them again should no-op to empty and fail.
	err = svc.AddMembers(ctx, conv.ID, creator.ID, []int64{member.ID})
	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.Validation, appErr.Kind)
}

func TestAddMembersRequiresAdmin(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestGroup(t)

	creator := seedUser(t, repo, "creator")
	member := seedUser(t, repo, "member")
	outsider := seedUser(t, repo, "outsider")

	conv, _, err := svc.Create(ctx, creator.ID, CreateRequest{Name: "G", MemberIDs: []int64{member.ID}})
	require.NoError(t, err)

	err = svc.AddMembers(ctx, conv.ID, member.ID, []int64{outsider.ID})
	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.Forbidden, appErr.Kind)
	assert.Contains(t, appErr.Message, "Admin")
}

func TestRemoveMemberPromotesOldestOnAdminRemoval(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestGroup(t)

	creator := seedUser(t, repo, "creator")
	memberA := seedUser(t, repo, "memberA")
	memberB := seedUser(t, repo, "memberB")

	conv, _, err := svc.Create(ctx, creator.ID, CreateRequest{Name: "G", MemberIDs: []int64{memberA.ID, memberB.ID}})
	require.NoError(t, err)

	// Remove the only admin (creator); the oldest remaining member gets promoted.
	require.NoError(t, svc.RemoveMember(ctx, conv.ID, creator.ID, creator.ID))

	p, err := repo.GetParticipant(ctx, conv.ID, memberA.ID)
	require.NoError(t, err)
	assert.Equal(t, store.RoleAdmin, p.Role, "oldest remaining member (joined first) is promoted")
}

func TestRemoveMemberAllowsSelfLeave(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestGroup(t)

	creator := seedUser(t, repo, "creator")
	member := seedUser(t, repo, "member")
	conv, _, err := svc.Create(ctx, creator.ID, CreateRequest{Name: "G", MemberIDs: []int64{member.ID}})
	require.NoError(t, err)

	require.NoError(t, svc.RemoveMember(ctx, conv.ID, member.ID, member.ID))

	isParticipant, err := repo.IsParticipant(ctx, conv.ID, member.ID)
	require.NoError(t, err)
	assert.False(t, isParticipant)
}

func TestRemoveMemberForbidsNonAdminRemovingOthers(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestGroup(t)

	creator := seedUser(t, repo, "creator")
	memberA := seedUser(t, repo, "memberA")
	memberB := seedUser(t, repo, "memberB")
	conv, _, err := svc.Create(ctx, creator.ID, CreateRequest{Name: "G", MemberIDs: []int64{memberA.ID, memberB.ID}})
	require.NoError(t, err)

	err = svc.RemoveMember(ctx, conv.ID, memberA.ID, memberB.ID)
	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.Forbidden, appErr.Kind)
}

func TestUpdateRoleRequiresAdmin(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestGroup(t)

	creator := seedUser(t, repo, "creator")
	member := seedUser(t, repo, "member")
	conv, _, err := svc.Create(ctx, creator.ID, CreateRequest{Name: "G", MemberIDs: []int64{member.ID}})
	require.NoError(t, err)

	require.NoError(t, svc.UpdateRole(ctx, conv.ID, creator.ID, member.ID, store.RoleAdmin))

	p, err := repo.GetParticipant(ctx, conv.ID, member.ID)
	require.NoError(t, err)
	assert.Equal(t, store.RoleAdmin, p.Role)
}
