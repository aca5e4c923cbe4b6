package handlers

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"indiflow/internal/engine"
	"indiflow/internal/session"
	"indiflow/internal/storage"
	"indiflow/pkg/response"
)

// Syncer reloads flow schedules after a flow changed.
type Syncer interface {
	Sync(ctx context.Context) error
}

type Handler struct {
	eng    *engine.Engine
	sched  Syncer
	logger *zap.Logger
}

// New returns handlers serving eng. sched may be nil when scheduling is off.
func New(eng *engine.Engine, sched Syncer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{eng: eng, sched: sched, logger: logger.Named("api")}
}

func (h *Handler) HealthCheck(c *gin.Context) {
	st, err := h.eng.Status(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"status": "ok", "mode": st.Mode})
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, storage.ErrInvalidFlow):
		response.BadRequest(c, err.Error())
	case errors.Is(err, session.ErrRecordingActive),
		errors.Is(err, session.ErrPlaybackActive),
		errors.Is(err, session.ErrAlreadyRecording),
		errors.Is(err, session.ErrAlreadyPlaying),
		errors.Is(err, engine.ErrNotRecording):
		response.Conflict(c, err.Error())
	default:
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		response.InternalServerError(c, err.Error())
	}
}

func (h *Handler) resync(ctx context.Context) {
	if h.sched == nil {
		return
	}
	if err := h.sched.Sync(ctx); err != nil {
		h.logger.Warn("failed to reload schedules", zap.Error(err))
	}
}
