package handler

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/hilvik/vivum-demo-v1/internal/engine"
	"github.com/hilvik/vivum-demo-v1/internal/middleware"
	"github.com/hilvik/vivum-demo-v1/internal/model"
	"github.com/hilvik/vivum-demo-v1/internal/service"
	"github.com/hilvik/vivum-demo-v1/pkg/logger"
)

// Rejection reasons reported in a SubmitResponse.
const (
	ReasonEmpty = "empty"
	ReasonBusy  = "busy"
)

// MessageHandler handles query submission.
type MessageHandler struct {
	service *service.SessionService
	logger  *logger.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(svc *service.SessionService, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		service: svc,
		logger:  log,
	}
}

// Submit handles POST /api/v1/sessions/{id}/messages
//
// An accepted query answers 202; the answer arrives on the stream. A blank
// query or one sent while the previous answer is still in progress answers
// 200 with accepted=false.
func (h *MessageHandler) Submit(w http.ResponseWriter, r *http.Request) {
	sess, ok := lookupSession(h.service, w, r)
	if !ok {
		return
	}

	var req model.SubmitRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := middleware.ValidateMessageContent(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := sess.Engine.Submit(req.Content)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, &model.SubmitResponse{Accepted: true})
	case errors.Is(err, engine.ErrEmptySubmission):
		writeJSON(w, http.StatusOK, &model.SubmitResponse{Reason: ReasonEmpty})
	case errors.Is(err, engine.ErrBusy):
		writeJSON(w, http.StatusOK, &model.SubmitResponse{Reason: ReasonBusy})
	case errors.Is(err, engine.ErrClosed):
		writeError(w, http.StatusNotFound, "session not found")
	default:
		h.logger.Error("failed to submit query", zap.String("session_id", sess.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to submit query")
	}
}
