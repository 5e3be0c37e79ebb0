// internal/auth/handlers.go
// HTTP handlers for the auth and user-profile surface of spec.md §6.1.

package auth

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/kiekchat/realtime-core/internal/apperr"
	"github.com/kiekchat/realtime-core/internal/common/utils"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeError(w http.ResponseWriter, err error) {
	if appErr, ok := apperr.As(err); ok {
		utils.ErrorResponse(w, appErr.Kind.HTTPStatus(), appErr.Code, appErr.Message)
		return
	}
	utils.ErrorResponse(w, http.StatusInternalServerError, "INTERNAL_ERROR", "an unexpected error occurred")
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.ErrorResponse(w, http.StatusBadRequest, "VALIDATION_ERROR", "malformed request body")
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		utils.ErrorResponse(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	resp, err := h.service.Register(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.SuccessResponse(w, http.StatusCreated, resp)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.ErrorResponse(w, http.StatusBadRequest, "VALIDATION_ERROR", "malformed request body")
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		utils.ErrorResponse(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	resp, err := h.service.Login(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.SuccessResponse(w, http.StatusOK, resp)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.ErrorResponse(w, http.StatusBadRequest, "VALIDATION_ERROR", "malformed request body")
		return
	}

	pair, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.SuccessResponse(w, http.StatusOK, pair)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req LogoutRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.ErrorResponse(w, http.StatusBadRequest, "VALIDATION_ERROR", "malformed request body")
		return
	}

	if err := h.service.Logout(r.Context(), req.RefreshToken); err != nil {
		writeError(w, err)
		return
	}
	utils.MessageResponse(w, http.StatusOK, "logged out")
}

// Me returns the caller's own profile, including email.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	user, err := h.service.GetByID(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.SuccessResponse(w, http.StatusOK, user.WithEmail())
}

// GetUser returns another user's public profile (no email).
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		utils.ErrorResponse(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid user id")
		return
	}

	user, svcErr := h.service.GetByID(r.Context(), id)
	if svcErr != nil {
		writeError(w, svcErr)
		return
	}
	utils.SuccessResponse(w, http.StatusOK, user.Public())
}

func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	var req UpdateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.ErrorResponse(w, http.StatusBadRequest, "VALIDATION_ERROR", "malformed request body")
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		utils.ErrorResponse(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), userID, req)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.SuccessResponse(w, http.StatusOK, user.WithEmail())
}

// SearchUsers implements GET /api/v1/users/search?q=.
func (h *Handler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	query := r.URL.Query().Get("q")

	users, err := h.service.SearchUsers(r.Context(), query, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.SuccessResponse(w, http.StatusOK, users)
}
