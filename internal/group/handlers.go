// internal/group/handlers.go

package group

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/kiekchat/realtime-core/internal/apperr"
	"github.com/kiekchat/realtime-core/internal/auth"
	"github.com/kiekchat/realtime-core/internal/common/utils"
	"github.com/kiekchat/realtime-core/internal/store"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func writeError(w http.ResponseWriter, err error) {
	if appErr, ok := apperr.As(err); ok {
		utils.ErrorResponse(w, appErr.Kind.HTTPStatus(), appErr.Code, appErr.Message)
		return
	}
	utils.ErrorResponse(w, http.StatusInternalServerError, "INTERNAL_ERROR", "an unexpected error occurred")
}

func conversationID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req CreateRequest
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorResponse(w, http.StatusBadRequest, "VALIDATION_ERROR", "malformed request body")
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		utils.ErrorResponse(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	conv, g, err := h.service.Create(r.Context(), userID, req)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.SuccessResponse(w, http.StatusCreated, map[string]interface{}{"conversation": conv, "group": g})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id, err := conversationID(r)
	if err != nil {
		utils.ErrorResponse(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid conversation id")
		return
	}

	g, svcErr := h.service.Get(r.Context(), id, userID)
	if svcErr != nil {
		writeError(w, svcErr)
		return
	}
	utils.SuccessResponse(w, http.StatusOK, g)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id, err := conversationID(r)
	if err != nil {
		utils.ErrorResponse(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid conversation id")
		return
	}

	var req UpdateRequest
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorResponse(w, http.StatusBadRequest, "VALIDATION_ERROR", "malformed request body")
		return
	}

	g, svcErr := h.service.Update(r.Context(), id, userID, req)
	if svcErr != nil {
		writeError(w, svcErr)
		return
	}
	utils.SuccessResponse(w, http.StatusOK, g)
}

func (h *Handler) AddMembers(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id, err := conversationID(r)
	if err != nil {
		utils.ErrorResponse(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid conversation id")
		return
	}

	var req AddMembersRequest
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorResponse(w, http.StatusBadRequest, "VALIDATION_ERROR", "malformed request body")
		return
	}

	if svcErr := h.service.AddMembers(r.Context(), id, userID, req.MemberIDs); svcErr != nil {
		writeError(w, svcErr)
		return
	}
	utils.MessageResponse(w, http.StatusOK, "members added")
}

func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id, err := conversationID(r)
	if err != nil {
		utils.ErrorResponse(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid conversation id")
		return
	}
	targetID, err := strconv.ParseInt(mux.Vars(r)["userId"], 10, 64)
	if err != nil {
		utils.ErrorResponse(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid user id")
		return
	}

	if svcErr := h.service.RemoveMember(r.Context(), id, userID, targetID); svcErr != nil {
		writeError(w, svcErr)
		return
	}
	utils.MessageResponse(w, http.StatusOK, "member removed")
}

func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id, err := conversationID(r)
	if err != nil {
		utils.ErrorResponse(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid conversation id")
		return
	}
	targetID, err := strconv.ParseInt(mux.Vars(r)["userId"], 10, 64)
	if err != nil {
		utils.ErrorResponse(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid user id")
		return
	}

	var req UpdateRoleRequest
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorResponse(w, http.StatusBadRequest, "VALIDATION_ERROR", "malformed request body")
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		utils.ErrorResponse(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	if svcErr := h.service.UpdateRole(r.Context(), id, userID, targetID, store.ParticipantRole(req.Role)); svcErr != nil {
		writeError(w, svcErr)
		return
	}
	utils.MessageResponse(w, http.StatusOK, "role updated")
}
