package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Wajahat883/EDU-PREP-sub001/internal/middleware"
	"github.com/Wajahat883/EDU-PREP-sub001/internal/model"
	"github.com/Wajahat883/EDU-PREP-sub001/internal/response"
	"github.com/Wajahat883/EDU-PREP-sub001/internal/service"
	"github.com/Wajahat883/EDU-PREP-sub001/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// SessionHandler exposes exam session operations over HTTP.
type SessionHandler struct {
	sessionService *service.ExamSessionService
	log            zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessionService *service.ExamSessionService, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "session_handler").Logger(),
	}
}

// CreateSession godoc
// POST /api/v1/sessions
// Starts a new attempt for the authenticated user.
func (h *SessionHandler) CreateSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sess, err := h.sessionService.CreateSession(c.Request.Context(), service.CreateSessionInput{
		UserID:      claims.UserID,
		ExamTypeID:  req.ExamTypeID,
		Mode:        req.Mode,
		QuestionIDs: req.QuestionIDs,
		TimeLimit:   req.TimeLimit,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"session": sess})
}

// ListSessions godoc
// GET /api/v1/sessions?limit=
// Lists the caller's sessions, newest first.
func (h *SessionHandler) ListSessions(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultListLimit)))
	if err != nil || limit < 1 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	sessions, err := h.sessionService.ListSessions(c.Request.Context(), claims.UserID, limit)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"sessions": sessions})
}

// GetSession godoc
// GET /api/v1/sessions/:session_id
func (h *SessionHandler) GetSession(c *gin.Context) {
	claims, sessionID, ok := h.sessionParams(c)
	if !ok {
		return
	}

	view, err := h.sessionService.GetSession(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": view})
}

// SubmitAnswer godoc
// POST /api/v1/sessions/:session_id/answers
func (h *SessionHandler) SubmitAnswer(c *gin.Context) {
	claims, sessionID, ok := h.sessionParams(c)
	if !ok {
		return
	}

	var req model.SubmitAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	res, err := h.sessionService.SubmitAnswer(c.Request.Context(), service.SubmitAnswerInput{
		SessionID:      sessionID,
		RequesterID:    claims.UserID,
		QuestionID:     req.QuestionID,
		SelectedOption: req.SelectedOption,
		TimeSpent:      req.TimeSpent,
		IsCorrect:      req.IsCorrect,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, res)
}

// RequestHint godoc
// POST /api/v1/sessions/:session_id/hints
func (h *SessionHandler) RequestHint(c *gin.Context) {
	claims, sessionID, ok := h.sessionParams(c)
	if !ok {
		return
	}

	var req model.RequestHintRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	res, err := h.sessionService.RequestHint(c.Request.Context(), sessionID, claims.UserID, req.HintLevel)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, res)
}

// FlagQuestion godoc
// POST /api/v1/sessions/:session_id/flags
// Toggles the review flag on an answered question.
func (h *SessionHandler) FlagQuestion(c *gin.Context) {
	claims, sessionID, ok := h.sessionParams(c)
	if !ok {
		return
	}

	var req model.FlagQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	res, err := h.sessionService.FlagQuestion(c.Request.Context(), sessionID, claims.UserID, req.QuestionID)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, res)
}

// Pause godoc
// POST /api/v1/sessions/:session_id/pause
func (h *SessionHandler) Pause(c *gin.Context) {
	claims, sessionID, ok := h.sessionParams(c)
	if !ok {
		return
	}

	if err := h.sessionService.Pause(c.Request.Context(), sessionID, claims.UserID); err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": model.SessionStatusPaused})
}

// Resume godoc
// POST /api/v1/sessions/:session_id/resume
func (h *SessionHandler) Resume(c *gin.Context) {
	claims, sessionID, ok := h.sessionParams(c)
	if !ok {
		return
	}

	res, err := h.sessionService.Resume(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, res)
}

// Complete godoc
// POST /api/v1/sessions/:session_id/complete
func (h *SessionHandler) Complete(c *gin.Context) {
	claims, sessionID, ok := h.sessionParams(c)
	if !ok {
		return
	}

	res, err := h.sessionService.Complete(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, res)
}

// GetResults godoc
// GET /api/v1/sessions/:session_id/results
func (h *SessionHandler) GetResults(c *gin.Context) {
	claims, sessionID, ok := h.sessionParams(c)
	if !ok {
		return
	}

	res, err := h.sessionService.GetResults(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, res)
}

// Abandon godoc
// POST /api/v1/sessions/:session_id/abandon
// Service tokens may abandon any session; students only their own.
func (h *SessionHandler) Abandon(c *gin.Context) {
	claims, sessionID, ok := h.sessionParams(c)
	if !ok {
		return
	}

	requester := claims.UserID
	if claims.Role == service.RoleService {
		requester = ""
	}

	if err := h.sessionService.Abandon(c.Request.Context(), sessionID, requester); err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": model.SessionStatusAbandoned})
}

func (h *SessionHandler) sessionParams(c *gin.Context) (*service.Claims, string, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, "", false
	}

	sessionID := c.Param("session_id")
	if _, err := uuid.Parse(sessionID); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return nil, "", false
	}
	return claims, sessionID, true
}

// fail maps service errors onto HTTP responses.
func (h *SessionHandler) fail(c *gin.Context, err error) {
	status, code := statusFor(err)
	if code == response.ErrInternal {
		h.log.Error().Err(err).
			Str("path", c.FullPath()).
			Str("request_id", response.RequestID(c)).
			Msg("Session request failed")
		response.Fail(c, status, code)
		return
	}
	response.FailWithDetail(c, status, code, err.Error())
}

func statusFor(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, response.ErrNotFound
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, response.ErrForbidden
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, response.ErrValidation
	case errors.Is(err, service.ErrInvalidState):
		return http.StatusConflict, response.ErrInvalidState
	case errors.Is(err, service.ErrInvalidOperation):
		return http.StatusUnprocessableEntity, response.ErrInvalidOperation
	case errors.Is(err, service.ErrExhausted):
		return http.StatusUnprocessableEntity, response.ErrHintsExhausted
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}
