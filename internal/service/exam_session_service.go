package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strconv"
	"time"

	"github.com/Wajahat883/EDU-PREP-sub001/internal/event"
	"github.com/Wajahat883/EDU-PREP-sub001/internal/metrics"
	"github.com/Wajahat883/EDU-PREP-sub001/internal/model"
	"github.com/Wajahat883/EDU-PREP-sub001/internal/repository"
	"github.com/Wajahat883/EDU-PREP-sub001/internal/timer"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const restoreConcurrency = 8

// ExamSessionConfig wires the collaborators of ExamSessionService.
type ExamSessionConfig struct {
	Store              repository.SessionStore
	Questions          QuestionBank
	Hints              HintProvider
	Scoring            *ScoringEngine
	Timers             *timer.Coordinator
	Bus                *event.Bus
	SecondsPerQuestion int
	Now                func() time.Time
	Shuffle            func(n int, swap func(i, j int))
	Log                zerolog.Logger
}

// ExamSessionService owns the lifecycle of exam attempts.
type ExamSessionService struct {
	store              repository.SessionStore
	questions          QuestionBank
	hints              HintProvider
	scoring            *ScoringEngine
	timers             *timer.Coordinator
	bus                *event.Bus
	locks              *sessionLocks
	secondsPerQuestion int
	now                func() time.Time
	shuffle            func(n int, swap func(i, j int))
	log                zerolog.Logger
}

// NewExamSessionService creates a new ExamSessionService and registers itself
// as the timer coordinator's expiry handler.
func NewExamSessionService(cfg ExamSessionConfig) *ExamSessionService {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Shuffle == nil {
		cfg.Shuffle = rand.Shuffle
	}
	if cfg.SecondsPerQuestion <= 0 {
		cfg.SecondsPerQuestion = 60
	}
	if cfg.Questions == nil {
		cfg.Questions = StaticQuestionBank{}
	}
	if cfg.Hints == nil {
		cfg.Hints = NewLeveledHintProvider(cfg.Questions)
	}
	if cfg.Scoring == nil {
		cfg.Scoring = NewScoringEngine(nil)
	}

	s := &ExamSessionService{
		store:              cfg.Store,
		questions:          cfg.Questions,
		hints:              cfg.Hints,
		scoring:            cfg.Scoring,
		timers:             cfg.Timers,
		bus:                cfg.Bus,
		locks:              newSessionLocks(),
		secondsPerQuestion: cfg.SecondsPerQuestion,
		now:                cfg.Now,
		shuffle:            cfg.Shuffle,
		log:                cfg.Log.With().Str("component", "exam_session_service").Logger(),
	}
	s.timers.SetExpireHandler(s.HandleExpiry)
	return s
}

// CreateSessionInput carries the parameters of a new attempt.
type CreateSessionInput struct {
	UserID      string
	ExamTypeID  string
	Mode        string
	QuestionIDs []string
	TimeLimit   *int // seconds, overrides the per-question allowance in timed mode
}

// SessionView is a session as returned to its owner, with live time remaining.
type SessionView struct {
	*model.ExamSession
	Policy     model.ModePolicy `json:"policy"`
	IsComplete bool             `json:"is_complete"`
}

// SubmitAnswerInput carries one answer submission.
type SubmitAnswerInput struct {
	SessionID      string
	RequesterID    string
	QuestionID     string
	SelectedOption string
	TimeSpent      int
	IsCorrect      bool
}

// SubmitAnswerResult reports the session's progress after an answer.
type SubmitAnswerResult struct {
	CurrentQuestionIndex   int  `json:"current_question_index"`
	IsComplete             bool `json:"is_complete"`
	NextQuestionDifficulty *int `json:"next_question_difficulty,omitempty"`
}

// HintResult is the outcome of a granted hint.
type HintResult struct {
	HintText       string `json:"hint_text"`
	HintsRemaining int    `json:"hints_remaining"`
}

// FlagResult reports the new review flag of a question.
type FlagResult struct {
	QuestionID      string `json:"question_id"`
	MarkedForReview bool   `json:"marked_for_review"`
}

// ResumeResult reports the accumulated pause time.
type ResumeResult struct {
	TotalPausedTime float64 `json:"total_paused_time"`
	TimeRemaining   *int    `json:"time_remaining,omitempty"`
}

// CompletionSummary is the short result returned by Complete.
type CompletionSummary struct {
	CorrectCount    int     `json:"correct_count"`
	TotalQuestions  int     `json:"total_questions"`
	ScorePercentage float64 `json:"score_percentage"`
	Grade           string  `json:"grade"`
}

// CreateSession validates the request, fixes the question order and starts
// the countdown for timed sessions.
func (s *ExamSessionService) CreateSession(ctx context.Context, in CreateSessionInput) (*model.ExamSession, error) {
	if in.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if in.ExamTypeID == "" {
		return nil, fmt.Errorf("%w: exam type is required", ErrValidation)
	}
	mode, ok := model.ParseMode(in.Mode)
	if !ok {
		return nil, fmt.Errorf("%w: unknown mode %q", ErrValidation, in.Mode)
	}
	if len(in.QuestionIDs) == 0 {
		return nil, fmt.Errorf("%w: question list is empty", ErrValidation)
	}
	seen := make(map[string]struct{}, len(in.QuestionIDs))
	for _, qid := range in.QuestionIDs {
		if qid == "" {
			return nil, fmt.Errorf("%w: empty question id", ErrValidation)
		}
		if _, dup := seen[qid]; dup {
			return nil, fmt.Errorf("%w: duplicate question id %q", ErrValidation, qid)
		}
		seen[qid] = struct{}{}
	}
	if in.TimeLimit != nil && *in.TimeLimit <= 0 {
		return nil, fmt.Errorf("%w: time limit must be positive", ErrValidation)
	}

	policy := ResolveModePolicy(mode, len(in.QuestionIDs), s.secondsPerQuestion)

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}

	questionIDs := slices.Clone(in.QuestionIDs)
	if policy.RandomizeQuestions {
		s.shuffle(len(questionIDs), func(i, j int) {
			questionIDs[i], questionIDs[j] = questionIDs[j], questionIDs[i]
		})
	}

	now := s.now()
	sess := &model.ExamSession{
		ID:          id.String(),
		UserID:      in.UserID,
		ExamTypeID:  in.ExamTypeID,
		Mode:        mode,
		QuestionIDs: questionIDs,
		Status:      model.SessionStatusInProgress,
		StartedAt:   now,
		Answers:     []model.Answer{},
		AdaptiveFeatures: model.AdaptiveFeatures{
			NextQuestionDifficulty: model.DefaultDifficulty,
			DifficultyHistory:      []int{},
			AdaptiveEnabled:        policy.AdaptiveEnabled,
		},
		HintsRemaining: policy.HintsPerQuestion * len(questionIDs),
		UpdatedAt:      now,
	}
	if mode == model.ModeTimed {
		limit := *policy.TotalTime
		if in.TimeLimit != nil {
			limit = *in.TimeLimit
		}
		remaining := limit
		sess.TimeLimit = &limit
		sess.TimeRemaining = &remaining
	}

	if err := s.store.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	if sess.IsTimed() {
		err := s.timers.Start(timer.Anchor{
			SessionID: sess.ID,
			Total:     time.Duration(*sess.TimeLimit) * time.Second,
			StartedAt: sess.StartedAt,
		})
		if err != nil {
			return nil, fmt.Errorf("start timer: %w", err)
		}
		metrics.ActiveTimers.Set(float64(s.timers.Active()))
	}

	metrics.SessionsStarted.WithLabelValues(string(mode)).Inc()
	s.log.Info().
		Str("session_id", sess.ID).
		Str("user_id", sess.UserID).
		Str("mode", string(mode)).
		Int("questions", len(questionIDs)).
		Msg("Exam session created")

	return sess, nil
}

// GetSession returns the owner's view of a session with time remaining
// recomputed from its anchors.
func (s *ExamSessionService) GetSession(ctx context.Context, sessionID, requesterID string) (*SessionView, error) {
	sess, err := s.load(ctx, sessionID, requesterID)
	if err != nil {
		return nil, err
	}

	if sess.IsTimed() && !sess.Status.Terminal() {
		rem := s.liveRemaining(sess)
		sess.TimeRemaining = &rem
	}

	return &SessionView{
		ExamSession: sess,
		Policy:      ResolveModePolicy(sess.Mode, len(sess.QuestionIDs), s.secondsPerQuestion),
		IsComplete:  sess.CurrentQuestionIndex == len(sess.QuestionIDs),
	}, nil
}

// ListSessions returns the requester's sessions, newest first.
func (s *ExamSessionService) ListSessions(ctx context.Context, requesterID string, limit int) ([]model.ExamSession, error) {
	sessions, err := s.store.ListByUser(ctx, requesterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// SubmitAnswer appends an answer and advances the session.
func (s *ExamSessionService) SubmitAnswer(ctx context.Context, in SubmitAnswerInput) (*SubmitAnswerResult, error) {
	unlock := s.locks.Lock(in.SessionID)
	defer unlock()

	sess, err := s.load(ctx, in.SessionID, in.RequesterID)
	if err != nil {
		return nil, err
	}
	if sess.Status != model.SessionStatusInProgress {
		return nil, fmt.Errorf("%w: session is %s", ErrInvalidState, sess.Status)
	}
	if err := s.expireIfDue(ctx, sess); err != nil {
		return nil, err
	}
	if sess.CurrentQuestionIndex >= len(sess.QuestionIDs) {
		return nil, fmt.Errorf("%w: every question has been answered", ErrInvalidState)
	}
	if !sess.HasQuestion(in.QuestionID) {
		return nil, fmt.Errorf("%w: question %q is not part of this session", ErrValidation, in.QuestionID)
	}
	if sess.AnswerIndex(in.QuestionID) >= 0 {
		return nil, fmt.Errorf("%w: question %q already answered", ErrValidation, in.QuestionID)
	}
	if in.TimeSpent < 0 {
		return nil, fmt.Errorf("%w: time spent cannot be negative", ErrValidation)
	}

	now := s.now()
	sess.Answers = append(sess.Answers, model.Answer{
		QuestionID:     in.QuestionID,
		SelectedOption: in.SelectedOption,
		TimeSpent:      in.TimeSpent,
		IsCorrect:      in.IsCorrect,
		Hints:          []string{},
		AnsweredAt:     now,
	})
	sess.CurrentQuestionIndex = len(sess.Answers)
	applyAdaptive(&sess.AdaptiveFeatures, in.IsCorrect)
	sess.UpdatedAt = now

	if err := s.store.Update(ctx, sess); err != nil {
		return nil, fmt.Errorf("save answer: %w", err)
	}
	metrics.AnswersSubmitted.WithLabelValues(strconv.FormatBool(in.IsCorrect)).Inc()

	res := &SubmitAnswerResult{
		CurrentQuestionIndex: sess.CurrentQuestionIndex,
		IsComplete:           sess.CurrentQuestionIndex == len(sess.QuestionIDs),
	}
	if sess.AdaptiveFeatures.AdaptiveEnabled {
		next := sess.AdaptiveFeatures.NextQuestionDifficulty
		res.NextQuestionDifficulty = &next
	}
	return res, nil
}

// RequestHint spends one hint on the most recently answered question.
func (s *ExamSessionService) RequestHint(ctx context.Context, sessionID, requesterID string, level int) (*HintResult, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	sess, err := s.load(ctx, sessionID, requesterID)
	if err != nil {
		return nil, err
	}
	if level < MinHintLevel || level > MaxHintLevel {
		return nil, fmt.Errorf("%w: hint level must be between %d and %d", ErrValidation, MinHintLevel, MaxHintLevel)
	}
	if sess.Status != model.SessionStatusInProgress {
		return nil, fmt.Errorf("%w: session is %s", ErrInvalidState, sess.Status)
	}
	policy := ResolveModePolicy(sess.Mode, len(sess.QuestionIDs), s.secondsPerQuestion)
	if policy.HintsPerQuestion == 0 {
		return nil, fmt.Errorf("%w: %s mode offers no hints", ErrInvalidOperation, sess.Mode)
	}
	if err := s.expireIfDue(ctx, sess); err != nil {
		return nil, err
	}
	if sess.HintsRemaining <= 0 {
		return nil, ErrExhausted
	}
	if len(sess.Answers) == 0 {
		return nil, fmt.Errorf("%w: no answered question to attach a hint to", ErrInvalidState)
	}

	last := &sess.Answers[len(sess.Answers)-1]
	if len(last.Hints) >= policy.HintsPerQuestion {
		return nil, fmt.Errorf("%w: %d hints already used on question %s", ErrExhausted, len(last.Hints), last.QuestionID)
	}
	text, err := s.hints.Hint(ctx, last.QuestionID, level)
	if err != nil {
		return nil, fmt.Errorf("generate hint: %w", err)
	}

	last.Hints = append(last.Hints, text)
	sess.HintsRemaining--
	sess.HintsUsed++
	sess.UpdatedAt = s.now()

	if err := s.store.Update(ctx, sess); err != nil {
		return nil, fmt.Errorf("save hint: %w", err)
	}
	metrics.HintsGranted.Inc()

	return &HintResult{HintText: text, HintsRemaining: sess.HintsRemaining}, nil
}

// FlagQuestion toggles the review flag of an answered question.
func (s *ExamSessionService) FlagQuestion(ctx context.Context, sessionID, requesterID, questionID string) (*FlagResult, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	sess, err := s.load(ctx, sessionID, requesterID)
	if err != nil {
		return nil, err
	}
	if sess.Status.Terminal() {
		return nil, fmt.Errorf("%w: session is %s", ErrInvalidState, sess.Status)
	}
	idx := sess.AnswerIndex(questionID)
	if idx < 0 {
		return nil, fmt.Errorf("%w: question %q has no answer to flag", ErrValidation, questionID)
	}

	sess.Answers[idx].MarkedForReview = !sess.Answers[idx].MarkedForReview
	sess.UpdatedAt = s.now()

	if err := s.store.Update(ctx, sess); err != nil {
		return nil, fmt.Errorf("save flag: %w", err)
	}
	return &FlagResult{QuestionID: questionID, MarkedForReview: sess.Answers[idx].MarkedForReview}, nil
}

// Pause freezes a session and its countdown.
func (s *ExamSessionService) Pause(ctx context.Context, sessionID, requesterID string) error {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	sess, err := s.load(ctx, sessionID, requesterID)
	if err != nil {
		return err
	}
	if sess.Status.Terminal() {
		return fmt.Errorf("%w: session is %s", ErrInvalidState, sess.Status)
	}
	policy := ResolveModePolicy(sess.Mode, len(sess.QuestionIDs), s.secondsPerQuestion)
	if !policy.AllowPause {
		return fmt.Errorf("%w: %s sessions cannot be paused", ErrInvalidOperation, sess.Mode)
	}
	if sess.Status != model.SessionStatusInProgress {
		return fmt.Errorf("%w: session is %s", ErrInvalidState, sess.Status)
	}

	now := s.now()
	sess.Status = model.SessionStatusPaused
	sess.PausedAt = &now
	sess.UpdatedAt = now
	if sess.IsTimed() {
		rem := timer.Seconds(timer.RemainingAt(time.Duration(*sess.TimeLimit)*time.Second, sess.StartedAt, sess.PausedFor(), nil, now))
		if d, err := s.timers.Pause(sess.ID); err == nil {
			rem = timer.Seconds(d)
		}
		sess.TimeRemaining = &rem
	}

	if err := s.store.Update(ctx, sess); err != nil {
		return fmt.Errorf("save pause: %w", err)
	}

	s.bus.Publish(ctx, model.EventExamPaused{SessionID: sess.ID, TimeRemaining: sess.TimeRemaining})
	return nil
}

// Resume restarts a paused session, adding the pause to its accumulated total.
func (s *ExamSessionService) Resume(ctx context.Context, sessionID, requesterID string) (*ResumeResult, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	sess, err := s.load(ctx, sessionID, requesterID)
	if err != nil {
		return nil, err
	}
	if sess.Status != model.SessionStatusPaused {
		return nil, fmt.Errorf("%w: session is %s", ErrInvalidState, sess.Status)
	}

	now := s.now()
	s.closePause(sess, now)
	sess.Status = model.SessionStatusInProgress
	sess.ResumedAt = &now
	sess.UpdatedAt = now
	if sess.IsTimed() {
		if _, err := s.timers.Resume(sess.ID); err != nil {
			s.log.Warn().Err(err).Str("session_id", sess.ID).Msg("Timer resume failed")
		}
		rem := s.liveRemaining(sess)
		sess.TimeRemaining = &rem
	}

	if err := s.store.Update(ctx, sess); err != nil {
		return nil, fmt.Errorf("save resume: %w", err)
	}

	s.bus.Publish(ctx, model.EventExamResumed{
		SessionID:       sess.ID,
		TotalPausedTime: sess.TotalPausedTime,
		TimeRemaining:   sess.TimeRemaining,
	})
	return &ResumeResult{TotalPausedTime: sess.TotalPausedTime, TimeRemaining: sess.TimeRemaining}, nil
}

// Complete scores the session and closes it.
func (s *ExamSessionService) Complete(ctx context.Context, sessionID, requesterID string) (*CompletionSummary, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	sess, err := s.load(ctx, sessionID, requesterID)
	if err != nil {
		return nil, err
	}
	if sess.Status.Terminal() {
		return nil, fmt.Errorf("%w: session is %s", ErrInvalidState, sess.Status)
	}

	res, err := s.finalize(ctx, sess, model.CompletionSubmitted)
	if err != nil {
		return nil, err
	}
	return &CompletionSummary{
		CorrectCount:    res.CorrectCount,
		TotalQuestions:  res.TotalQuestions,
		ScorePercentage: res.ScorePercentage,
		Grade:           res.Grade,
	}, nil
}

// GetResults returns the full result sheet of a completed session.
func (s *ExamSessionService) GetResults(ctx context.Context, sessionID, requesterID string) (*model.ScoringResult, error) {
	sess, err := s.load(ctx, sessionID, requesterID)
	if err != nil {
		return nil, err
	}
	if sess.Status != model.SessionStatusCompleted {
		return nil, fmt.Errorf("%w: session is %s", ErrInvalidState, sess.Status)
	}
	if sess.Results == nil {
		return s.scoreSession(ctx, sess), nil
	}
	return sess.Results, nil
}

// Abandon closes a session without scoring it. An empty requesterID skips
// the ownership check for system callers such as inactivity sweeps.
func (s *ExamSessionService) Abandon(ctx context.Context, sessionID, requesterID string) error {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	sess, err := s.getByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if requesterID != "" && sess.UserID != requesterID {
		return ErrForbidden
	}
	if sess.Status.Terminal() {
		return fmt.Errorf("%w: session is %s", ErrInvalidState, sess.Status)
	}

	now := s.now()
	s.closePause(sess, now)
	if sess.IsTimed() {
		rem := timer.Seconds(timer.RemainingAt(time.Duration(*sess.TimeLimit)*time.Second, sess.StartedAt, sess.PausedFor(), nil, now))
		sess.TimeRemaining = &rem
	}
	sess.Status = model.SessionStatusAbandoned
	sess.EndedAt = &now
	sess.UpdatedAt = now

	if err := s.store.Update(ctx, sess); err != nil {
		return fmt.Errorf("save abandon: %w", err)
	}
	s.teardown(sess.ID)

	metrics.SessionsFinished.WithLabelValues(string(sess.Mode), string(model.SessionStatusAbandoned)).Inc()
	s.log.Info().Str("session_id", sess.ID).Msg("Exam session abandoned")
	return nil
}

// Subscribe attaches a listener to the owner's session events.
func (s *ExamSessionService) Subscribe(ctx context.Context, sessionID, requesterID string) (*event.Subscription, *SessionView, error) {
	// Subscribe before reading state so a completion racing with this call
	// still closes the subscription.
	sub := s.bus.Subscribe(sessionID)
	view, err := s.GetSession(ctx, sessionID, requesterID)
	if err != nil {
		sub.Close()
		return nil, nil, err
	}
	if view.Status.Terminal() {
		sub.Close()
		return nil, nil, fmt.Errorf("%w: session is %s", ErrInvalidState, view.Status)
	}
	return sub, view, nil
}

// HandleExpiry is the timer coordinator's callback: it auto-submits the
// session with whatever answers it holds.
func (s *ExamSessionService) HandleExpiry(ctx context.Context, sessionID string) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	sess, err := s.getByID(ctx, sessionID)
	if err != nil {
		s.log.Error().Err(err).Str("session_id", sessionID).Msg("Load expired session failed")
		return
	}
	if sess.Status.Terminal() {
		return
	}
	if _, err := s.finalize(ctx, sess, model.CompletionTimeExpired); err != nil {
		s.log.Error().Err(err).Str("session_id", sessionID).Msg("Auto-complete on expiry failed")
	}
}

// RestoreTimers rebuilds countdowns for timed sessions after a restart. The
// remaining time is derived from the persisted anchors only; sessions that ran
// out while the process was down are completed immediately.
func (s *ExamSessionService) RestoreTimers(ctx context.Context) error {
	sessions, err := s.store.ListActiveTimed(ctx)
	if err != nil {
		return fmt.Errorf("list active timed sessions: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(restoreConcurrency)

	for i := range sessions {
		sess := &sessions[i]
		g.Go(func() error {
			return s.restore(gctx, sess)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	metrics.ActiveTimers.Set(float64(s.timers.Active()))
	s.log.Info().Int("sessions", len(sessions)).Int("timers", s.timers.Active()).Msg("Timers restored")
	return nil
}

func (s *ExamSessionService) restore(ctx context.Context, sess *model.ExamSession) error {
	if !sess.IsTimed() || sess.Status.Terminal() {
		return nil
	}
	total := time.Duration(*sess.TimeLimit) * time.Second
	rem := timer.RemainingAt(total, sess.StartedAt, sess.PausedFor(), sess.PausedAt, s.now())
	if rem <= 0 {
		// Expire publishes time_expired even though no timer was registered.
		s.timers.Expire(sess.ID, total)
		s.HandleExpiry(ctx, sess.ID)
		return nil
	}

	err := s.timers.Start(timer.Anchor{
		SessionID: sess.ID,
		Total:     total,
		StartedAt: sess.StartedAt,
		PausedFor: sess.PausedFor(),
		PausedAt:  sess.PausedAt,
	})
	if err != nil && !errors.Is(err, timer.ErrTimerExists) {
		return fmt.Errorf("restore timer %s: %w", sess.ID, err)
	}
	return nil
}

// finalize scores and completes a session. The caller holds the session lock.
func (s *ExamSessionService) finalize(ctx context.Context, sess *model.ExamSession, reason model.CompletionReason) (*model.ScoringResult, error) {
	now := s.now()
	s.closePause(sess, now)

	if sess.IsTimed() {
		rem := 0
		if reason != model.CompletionTimeExpired {
			rem = timer.Seconds(timer.RemainingAt(time.Duration(*sess.TimeLimit)*time.Second, sess.StartedAt, sess.PausedFor(), nil, now))
		}
		sess.TimeRemaining = &rem
	}

	res := s.scoreSession(ctx, sess)

	sess.Status = model.SessionStatusCompleted
	sess.EndedAt = &now
	sess.CompletionReason = reason
	sess.Statistics = Statistics(res)
	sess.Results = res
	sess.UpdatedAt = now

	if err := s.store.Update(ctx, sess); err != nil {
		return nil, fmt.Errorf("save completion: %w", err)
	}

	s.bus.Publish(ctx, model.EventSessionCompleted{
		SessionID:  sess.ID,
		UserID:     sess.UserID,
		ExamTypeID: sess.ExamTypeID,
		Mode:       sess.Mode,
		Reason:     reason,
		Result:     *res,
	})
	s.teardown(sess.ID)

	metrics.SessionsFinished.WithLabelValues(string(sess.Mode), string(reason)).Inc()
	metrics.ScorePercentage.WithLabelValues(sess.ExamTypeID).Observe(res.ScorePercentage)
	s.log.Info().
		Str("session_id", sess.ID).
		Str("reason", string(reason)).
		Int("correct", res.CorrectCount).
		Int("total", res.TotalQuestions).
		Float64("score", res.ScorePercentage).
		Msg("Exam session completed")

	return res, nil
}

func (s *ExamSessionService) scoreSession(ctx context.Context, sess *model.ExamSession) *model.ScoringResult {
	meta, err := s.questions.GetQuestionMeta(ctx, sess.QuestionIDs)
	if err != nil {
		// Scoring falls back to "unknown" buckets for whatever is missing.
		s.log.Warn().Err(err).Str("session_id", sess.ID).Msg("Question metadata unavailable")
	}
	policy := ResolveModePolicy(sess.Mode, len(sess.QuestionIDs), s.secondsPerQuestion)

	return s.scoring.Score(ScoringInput{
		SessionID:         sess.ID,
		ExamTypeID:        sess.ExamTypeID,
		QuestionIDs:       sess.QuestionIDs,
		Answers:           sess.Answers,
		Questions:         meta,
		TimeLimit:         sess.TimeLimit,
		ShowCorrectAnswer: policy.ShowCorrectAnswer,
	})
}

// expireIfDue completes a timed session whose clock has run out but whose
// tick has not fired yet, and reports it as an invalid state to the caller.
func (s *ExamSessionService) expireIfDue(ctx context.Context, sess *model.ExamSession) error {
	if !sess.IsTimed() || s.liveRemaining(sess) > 0 {
		return nil
	}
	s.timers.Expire(sess.ID, time.Duration(*sess.TimeLimit)*time.Second)
	if _, err := s.finalize(ctx, sess, model.CompletionTimeExpired); err != nil {
		return err
	}
	return fmt.Errorf("%w: time expired", ErrInvalidState)
}

// liveRemaining prefers the coordinator's clock and falls back to the anchors.
func (s *ExamSessionService) liveRemaining(sess *model.ExamSession) int {
	if d, ok := s.timers.Remaining(sess.ID); ok {
		return timer.Seconds(d)
	}
	total := time.Duration(*sess.TimeLimit) * time.Second
	return timer.Seconds(timer.RemainingAt(total, sess.StartedAt, sess.PausedFor(), sess.PausedAt, s.now()))
}

func (s *ExamSessionService) closePause(sess *model.ExamSession, now time.Time) {
	if sess.PausedAt == nil {
		return
	}
	if d := now.Sub(*sess.PausedAt); d > 0 {
		sess.TotalPausedTime += d.Seconds()
	}
	sess.PausedAt = nil
}

func (s *ExamSessionService) teardown(sessionID string) {
	s.timers.Stop(sessionID)
	metrics.ActiveTimers.Set(float64(s.timers.Active()))
	s.bus.CloseSession(sessionID)
}

func (s *ExamSessionService) getByID(ctx context.Context, sessionID string) (*model.ExamSession, error) {
	sess, err := s.store.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	return sess, nil
}

func (s *ExamSessionService) load(ctx context.Context, sessionID, requesterID string) (*model.ExamSession, error) {
	sess, err := s.getByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.UserID != requesterID {
		return nil, ErrForbidden
	}
	return sess, nil
}
