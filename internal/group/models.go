// internal/group/models.go

package group

type CreateRequest struct {
	Name        string  `json:"name" validate:"required,min=1,max=64"`
	Description *string `json:"description" validate:"omitempty,max=280"`
	MemberIDs   []int64 `json:"memberIds" validate:"required,min=1"`
}

type UpdateRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=64"`
	Description *string `json:"description" validate:"omitempty,max=280"`
	IconURL     *string `json:"iconUrl"`
}

type AddMembersRequest struct {
	MemberIDs []int64 `json:"memberIds" validate:"required,min=1"`
}

type UpdateRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=ADMIN MEMBER"`
}
