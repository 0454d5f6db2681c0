// Package handler provides HTTP handlers for the API.
package handler

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hilvik/vivum-demo-v1/internal/middleware"
	"github.com/hilvik/vivum-demo-v1/internal/model"
	"github.com/hilvik/vivum-demo-v1/pkg/logger"
)

// ActivateHandler exchanges an invitation code for an access token.
type ActivateHandler struct {
	inviteCode string
	jwtSecret  string
	tokenTTL   time.Duration
	logger     *logger.Logger
}

// NewActivateHandler creates a new activation handler.
func NewActivateHandler(inviteCode, jwtSecret string, tokenTTL time.Duration, log *logger.Logger) *ActivateHandler {
	return &ActivateHandler{
		inviteCode: inviteCode,
		jwtSecret:  jwtSecret,
		tokenTTL:   tokenTTL,
		logger:     log,
	}
}

// Activate handles POST /api/v1/activate
func (h *ActivateHandler) Activate(w http.ResponseWriter, r *http.Request) {
	var req model.ActivateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := middleware.ValidateInviteCode(req.Code); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := middleware.CheckInviteCode(h.inviteCode, req.Code); err != nil {
		h.logger.Info("activation rejected",
			zap.String("correlation_id", middleware.GetCorrelationID(r.Context())),
		)
		writeError(w, http.StatusUnauthorized, "invalid invitation code")
		return
	}

	token, userID, expiresAt, err := middleware.IssueToken(h.jwtSecret, h.tokenTTL, time.Now())
	if err != nil {
		h.logger.Error("failed to issue token", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	h.logger.Info("user activated", zap.String("user_id", userID))

	writeJSON(w, http.StatusOK, &model.TokenResponse{
		Token:     token,
		UserID:    userID,
		ExpiresAt: expiresAt,
	})
}
