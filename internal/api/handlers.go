// internal/api/handlers.go

package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/kiekchat/realtime-core/internal/apperr"
	"github.com/kiekchat/realtime-core/internal/auth"
	"github.com/kiekchat/realtime-core/internal/common/utils"
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

func messageID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id, err := messageID(r)
	if err != nil {
		utils.ErrorResponse(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid message id")
		return
	}

	var req EditMessageRequest
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorResponse(w, http.StatusBadRequest, "VALIDATION_ERROR", "malformed request body")
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		utils.ErrorResponse(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	msg, svcErr := h.service.EditMessage(r.Context(), userID, id, req.Content)
	if svcErr != nil {
		writeError(w, svcErr)
		return
	}
	utils.SuccessResponse(w, http.StatusOK, msg)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id, err := messageID(r)
	if err != nil {
		utils.ErrorResponse(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid message id")
		return
	}

	if svcErr := h.service.DeleteMessage(r.Context(), userID, id); svcErr != nil {
		writeError(w, svcErr)
		return
	}
	utils.MessageResponse(w, http.StatusOK, "message deleted")
}

func (h *Handler) Forward(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id, err := messageID(r)
	if err != nil {
		utils.ErrorResponse(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid message id")
		return
	}

	var req ForwardRequest
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorResponse(w, http.StatusBadRequest, "VALIDATION_ERROR", "malformed request body")
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		utils.ErrorResponse(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	forwarded, svcErr := h.service.Forward(r.Context(), userID, id, req.ConversationIDs)
	if svcErr != nil {
		writeError(w, svcErr)
		return
	}
	utils.SuccessResponse(w, http.StatusCreated, forwarded)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	query := r.URL.Query().Get("q")
	var conversationID *int64
	if raw := r.URL.Query().Get("conversationId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			utils.ErrorResponse(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid conversationId")
			return
		}
		conversationID = &id
	}

	results, svcErr := h.service.Search(r.Context(), userID, query, conversationID)
	if svcErr != nil {
		writeError(w, svcErr)
		return
	}
	utils.SuccessResponse(w, http.StatusOK, results)
}

func (h *Handler) UnreadSummary(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	summary, svcErr := h.service.UnreadSummary(r.Context(), userID)
	if svcErr != nil {
		writeError(w, svcErr)
		return
	}
	utils.SuccessResponse(w, http.StatusOK, summary)
}
