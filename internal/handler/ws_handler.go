package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/Wajahat883/EDU-PREP-sub001/internal/event"
	"github.com/Wajahat883/EDU-PREP-sub001/internal/middleware"
	"github.com/Wajahat883/EDU-PREP-sub001/internal/response"
	"github.com/Wajahat883/EDU-PREP-sub001/internal/service"
	ws "github.com/Wajahat883/EDU-PREP-sub001/internal/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams a session's events to its owner.
type WSHandler struct {
	sessionService *service.ExamSessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
	pingPeriod     time.Duration
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.ExamSessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
		pingPeriod:     ws.PingPeriod,
	}
}

// SessionEvents godoc
// WS /ws/v1/sessions/:session_id/events?token=
// Sends a snapshot on connect, then timer_update, time_expired, exam_paused,
// exam_resumed and session_completed as they happen. The server closes the
// socket once the session reaches a terminal state.
func (h *WSHandler) SessionEvents(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID := c.Param("session_id")
	if _, err := uuid.Parse(sessionID); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	// Subscribe before upgrading so access errors still get a proper HTTP status.
	sub, view, err := h.sessionService.Subscribe(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		status, code := statusFor(err)
		response.FailWithDetail(c, status, code, err.Error())
		return
	}
	defer sub.Close()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Str("user_id", claims.UserID).
		Str("session_id", sessionID).
		Logger()
	wsLog.Info().Msg("Session stream connected")

	if err := ws.WriteTyped(conn, ws.SnapshotResponse{Event: ws.EventSnapshot, Data: view}); err != nil {
		return
	}

	replies := make(chan any, 4)
	done := make(chan struct{})
	go h.readPump(conn, wsLog, sessionID, claims.UserID, replies, done)

	h.writePump(conn, wsLog, sub, replies, done)
}

// readPump owns reads. Anything it wants to send goes through replies so the
// write side stays single-writer.
func (h *WSHandler) readPump(conn *websocket.Conn, wsLog zerolog.Logger, sessionID, userID string, replies chan<- any, done chan<- struct{}) {
	defer close(done)
	ws.PrepareRead(conn)

	for {
		var msg ws.RequestEnvelope
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		var reply any
		switch msg.Action {
		case ws.ActionPing:
			reply = ws.PongResponse{Event: ws.EventPong}
		case ws.ActionSnapshot:
			view, err := h.sessionService.GetSession(context.Background(), sessionID, userID)
			if err != nil {
				reply = ws.ErrorResponse{Event: ws.EventError, Error: err.Error()}
			} else {
				reply = ws.SnapshotResponse{Event: ws.EventSnapshot, Data: view}
			}
		default:
			reply = ws.ErrorResponse{Event: ws.EventError, Error: "unknown action: " + string(msg.Action)}
		}

		select {
		case replies <- reply:
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Reply dropped, client is flooding")
		}
	}
}

func (h *WSHandler) writePump(conn *websocket.Conn, wsLog zerolog.Logger, sub *event.Subscription, replies <-chan any, done <-chan struct{}) {
	ticker := time.NewTicker(h.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-sub.C:
			if !ok {
				wsLog.Info().Msg("Session closed, ending stream")
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"),
					time.Now().Add(ws.WriteWait))
				return
			}
			if err := ws.WriteTyped(conn, event.Wrap(e)); err != nil {
				wsLog.Debug().Err(err).Msg("Event write failed")
				return
			}

		case reply := <-replies:
			if err := ws.WriteTyped(conn, reply); err != nil {
				return
			}

		case <-ticker.C:
			if err := ws.WritePing(conn); err != nil {
				return
			}

		case <-done:
			return
		}
	}
}
