package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Wajahat883/EDU-PREP-sub001/internal/config"
	"github.com/Wajahat883/EDU-PREP-sub001/internal/middleware"
	"github.com/Wajahat883/EDU-PREP-sub001/internal/response"
	"github.com/Wajahat883/EDU-PREP-sub001/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // keeps a slow query from stalling the SSE loop
)

// MonitorHandler streams completions of one exam type to internal callers.
type MonitorHandler struct {
	rdb               redis.UniversalClient
	monitorService    *service.MonitorService
	log               zerolog.Logger
	refreshInterval   time.Duration
	keepAliveInterval time.Duration
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(rdb redis.UniversalClient, monitorService *service.MonitorService, log zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		rdb:               rdb,
		monitorService:    monitorService,
		log:               log.With().Str("component", "monitor_handler").Logger(),
		refreshInterval:   refreshInterval,
		keepAliveInterval: keepAliveInterval,
	}
}

// ExamTypeStream godoc
// GET /api/v1/monitor/exam-types/:exam_type_id/stream
// Server-sent events: a snapshot summary first, then one message per stored
// result, a refreshed summary when something changed, and periodic pings.
func (h *MonitorHandler) ExamTypeStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	if claims.Role != service.RoleService {
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		return
	}

	examTypeID := c.Param("exam_type_id")
	if examTypeID == "" {
		response.Fail(c, http.StatusBadRequest, response.ErrValidation)
		return
	}

	reqCtx := c.Request.Context()
	summary, err := h.monitorService.Summary(reqCtx, examTypeID)
	if err != nil {
		h.log.Error().Err(err).Str("exam_type_id", examTypeID).Msg("Monitor snapshot failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	// Subscribe before the snapshot goes out so nothing published in between is lost.
	pubsub := h.rdb.Subscribe(reqCtx, config.CacheKey.ExamTypeMonitorChannel(examTypeID))
	defer pubsub.Close()
	if _, err := pubsub.Receive(reqCtx); err != nil {
		h.log.Error().Err(err).Msg("Monitor subscribe failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	ch := pubsub.Channel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.SSEvent("message", gin.H{"type": "snapshot", "data": summary})
	c.Writer.Flush()

	keepAliveTicker := time.NewTicker(h.keepAliveInterval)
	defer keepAliveTicker.Stop()
	refreshTicker := time.NewTicker(h.refreshInterval)
	defer refreshTicker.Stop()

	dirty := false
	pingPayload, _ := json.Marshal(map[string]string{"type": "ping"})

	h.log.Info().Str("exam_type_id", examTypeID).Msg("Monitor attached")

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("exam_type_id", examTypeID).Msg("Monitor detached")
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}
			// Payload is already JSON, forward it as-is.
			c.Writer.Write([]byte("data: "))
			c.Writer.Write([]byte(msg.Payload))
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
			dirty = true

		case <-refreshTicker.C:
			if !dirty {
				continue
			}
			h.sendRefresh(c, reqCtx, examTypeID)
			dirty = false

		case <-keepAliveTicker.C:
			c.Writer.Write([]byte("data: "))
			c.Writer.Write(pingPayload)
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
		}
	}
}

func (h *MonitorHandler) sendRefresh(c *gin.Context, parentCtx context.Context, examTypeID string) {
	ctx, cancel := context.WithTimeout(parentCtx, refreshTimeout)
	defer cancel()

	summary, err := h.monitorService.Summary(ctx, examTypeID)
	if err != nil {
		h.log.Warn().Err(err).Msg("Monitor refresh failed")
		return
	}
	c.SSEvent("message", gin.H{"type": "refresh", "data": summary})
	c.Writer.Flush()
}
