package user

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/redmonkez12/usergate/internal/httputil"
	"github.com/redmonkez12/usergate/internal/logging"
)

// Handler contains HTTP handlers for administrative user endpoints
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// BulkActionResponse reports the outcome of block, unblock and delete.
type BulkActionResponse struct {
	Message  string `json:"message"`
	Affected int64  `json:"affected"`
}

// List returns all non-deleted users
// @Summary      List users
// @Description  Non-deleted users ordered by last login, newest first
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} Summary
// @Failure      401 {object} httputil.ErrorResponse
// @Failure      403 {object} httputil.ErrorResponse
// @Router       /users [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	users, err := h.service.List(r.Context())
	if err != nil {
		logger.Error("list users failed", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to list users", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	httputil.RespondJSON(w, users, http.StatusOK)
}

// Block blocks the given users
// @Summary      Block users
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body []string true "User ids"
// @Success      200 {object} BulkActionResponse
// @Failure      400 {object} httputil.ErrorResponse
// @Router       /users/block [put]
func (h *Handler) Block(w http.ResponseWriter, r *http.Request) {
	h.bulk(w, r, h.service.Block, "Selected users blocked.")
}

// Unblock clears the blocked flag on the given users
// @Summary      Unblock users
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body []string true "User ids"
// @Success      200 {object} BulkActionResponse
// @Failure      400 {object} httputil.ErrorResponse
// @Router       /users/unblock [put]
func (h *Handler) Unblock(w http.ResponseWriter, r *http.Request) {
	h.bulk(w, r, h.service.Unblock, "Selected users unblocked.")
}

// Delete soft-deletes the given users
// @Summary      Delete users
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body []string true "User ids"
// @Success      200 {object} BulkActionResponse
// @Failure      400 {object} httputil.ErrorResponse
// @Router       /users/delete [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	h.bulk(w, r, h.service.Delete, "Selected users deleted.")
}

func (h *Handler) bulk(
	w http.ResponseWriter,
	r *http.Request,
	action func(ctx context.Context, ids []uuid.UUID) (int64, error),
	message string,
) {
	logger := logging.GetLoggerFromContext(r.Context())

	var ids []uuid.UUID
	if err := json.NewDecoder(r.Body).Decode(&ids); err != nil {
		logger.Warn("invalid user id list", "error", err.Error())
		httputil.RespondErrorWithCode(w, "request body must be an array of user ids", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	n, err := action(r.Context(), ids)
	if err != nil {
		if errors.Is(err, ErrEmptySelection) {
			httputil.RespondValidationError(w, err.Error(), map[string]string{"ids": "cannot be blank"})
			return
		}
		logger.Error("bulk user action failed", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to update users", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	httputil.RespondJSON(w, BulkActionResponse{Message: message, Affected: n}, http.StatusOK)
}
