// internal/conversation/handlers.go

package conversation

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

func (h *Handler) CreateDirect(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req CreateDirectRequest
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorResponse(w, http.StatusBadRequest, "VALIDATION_ERROR", "malformed request body")
		return
	}

	conv, err := h.service.GetOrCreateDirect(r.Context(), userID, req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.SuccessResponse(w, http.StatusCreated, conv)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	summaries, err := h.service.ListForUser(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.SuccessResponse(w, http.StatusOK, summaries)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		utils.ErrorResponse(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid conversation id")
		return
	}

	summary, svcErr := h.service.Get(r.Context(), id, userID)
	if svcErr != nil {
		writeError(w, svcErr)
		return
	}
	utils.SuccessResponse(w, http.StatusOK, summary)
}

func (h *Handler) Messages(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		utils.ErrorResponse(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid conversation id")
		return
	}

	var cursor *int64
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		c, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			utils.ErrorResponse(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid cursor")
			return
		}
		cursor = &c
	}

	limit := defaultPageLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if l, err := strconv.Atoi(raw); err == nil {
			limit = l
		}
	}

	page, svcErr := h.service.GetMessages(r.Context(), id, userID, cursor, limit)
	if svcErr != nil {
		writeError(w, svcErr)
		return
	}
	utils.SuccessResponse(w, http.StatusOK, page)
}
