// Package flow implements the per-session intake state machine.
//
// The engine advances one FlowSession at a time through the intake graph:
// classification, then either biometric employee verification (with bounded
// retries and manual escalation) or visitor intake (field collection, photo,
// host notification). Client-side actions are handed off through the signal
// mailbox; all collaborators sit behind narrow interfaces.
//
// Callers must serialize calls per session; the session registry owns that.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/openlobby/LobbyPipe/internal/employee"
	"github.com/openlobby/LobbyPipe/internal/models"
	"github.com/openlobby/LobbyPipe/internal/notify"
	"github.com/openlobby/LobbyPipe/internal/prompts"
	"github.com/openlobby/LobbyPipe/internal/signal"
	"github.com/openlobby/LobbyPipe/internal/store"
	"github.com/openlobby/LobbyPipe/internal/verify"
)

// Opts holds configuration options for the flow engine.
type Opts struct {
	MaxFaceAttempts int
	Classifier      Classifier
	Clock           func() time.Time
}

// Option defines a configuration option for the flow engine.
type Option func(*Opts)

// WithMaxFaceAttempts overrides the biometric capture budget.
func WithMaxFaceAttempts(n int) Option {
	return func(o *Opts) { o.MaxFaceAttempts = n }
}

// WithClassifier sets a model-backed fallback classifier.
func WithClassifier(c Classifier) Option {
	return func(o *Opts) { o.Classifier = c }
}

// WithClock overrides the time source, used in tests.
func WithClock(clock func() time.Time) Option {
	return func(o *Opts) { o.Clock = clock }
}

// Engine drives flow sessions through the intake graph.
type Engine struct {
	mailbox         *signal.Mailbox
	employees       employee.Store
	otp             *verify.OTPManager
	notifier        notify.Notifier
	store           store.Store
	classifier      Classifier
	maxFaceAttempts int
	now             func() time.Time
}

// NewEngine creates a flow engine over the given collaborators.
func NewEngine(mailbox *signal.Mailbox, employees employee.Store, otp *verify.OTPManager, notifier notify.Notifier, st store.Store, opts ...Option) *Engine {
	cfg := Opts{
		MaxFaceAttempts: DefaultMaxFaceAttempts,
		Clock:           time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Engine{
		mailbox:         mailbox,
		employees:       employees,
		otp:             otp,
		notifier:        notifier,
		store:           st,
		classifier:      cfg.Classifier,
		maxFaceAttempts: cfg.MaxFaceAttempts,
		now:             cfg.Clock,
	}
}

// NewSession initializes a fresh flow session in the idle state.
func (e *Engine) NewSession(id string) *models.FlowSession {
	now := e.now()
	return &models.FlowSession{
		ID:             id,
		State:          models.StateIdle,
		UserType:       models.UserTypeUnknown,
		VisitorData:    make(map[models.VisitorField]string),
		CreatedAt:      now,
		LastActivityAt: now,
	}
}

// HandleUtterance advances the session on one accepted, awake utterance.
// The wake tracker has already filtered wake/sleep/language traffic.
func (e *Engine) HandleUtterance(ctx context.Context, s *models.FlowSession, lang models.Language, text string) (string, error) {
	s.LastActivityAt = e.now()
	defer e.persist(s)

	// The first utterance after waking opens classification.
	if s.State == models.StateIdle {
		s.State = models.StateClassification
	}

	switch s.State {
	case models.StateClassification:
		return e.handleClassification(ctx, s, lang, text), nil

	case models.StateFaceRecognition, models.StateVisitorFaceCapture, models.StateHostNotification:
		// Waiting on the kiosk client; speech cannot advance these states.
		return prompts.Get(prompts.KeyStateFallback, lang), nil

	case models.StateManualVerification:
		id := extractEmployeeID(text)
		if id == "" {
			return prompts.Get(prompts.KeyManualNeedID, lang), nil
		}
		return e.beginCredentialCheck(ctx, s, lang, id)

	case models.StateCredentialCheck:
		code := extractCode(text)
		if code == "" {
			return prompts.Get(prompts.KeyStateFallback, lang), nil
		}
		return e.checkCode(ctx, s, lang, code)

	case models.StateEmployeeVerified:
		return prompts.Get(prompts.KeyAssistantReady, lang), nil

	case models.StateVisitorInfoCollection:
		return e.collectVisitorField(ctx, s, lang, text), nil

	case models.StateEnd:
		return prompts.Get(prompts.KeySessionEnd, lang), nil

	default:
		slog.Error("flow session in unexpected state", "session_id", s.ID, "state", s.State)
		return "", fmt.Errorf("%w: %s", models.ErrWrongState, s.State)
	}
}

// handleClassification resolves the speaker into a flow branch. Only the
// employee branch ever emits a capture signal.
func (e *Engine) handleClassification(ctx context.Context, s *models.FlowSession, lang models.Language, text string) string {
	switch e.classify(ctx, text) {
	case models.UserTypeEmployee:
		s.UserType = models.UserTypeEmployee
		s.State = models.StateFaceRecognition
		s.VerificationAttempts = 0
		e.mailbox.Post(s.ID, models.SignalStartFaceCapture, nil)
		slog.Info("flow classified speaker", "session_id", s.ID, "user_type", s.UserType)
		return prompts.Get(prompts.KeyClassifiedEmployee, lang)

	case models.UserTypeVisitor:
		s.UserType = models.UserTypeVisitor
		s.State = models.StateVisitorInfoCollection
		e.mailbox.Post(s.ID, models.SignalStartVisitorInfo, nil)
		slog.Info("flow classified speaker", "session_id", s.ID, "user_type", s.UserType)
		return prompts.Get(prompts.KeyClassifiedVisitor, lang)

	default:
		return prompts.Get(prompts.KeyClassifyRetry, lang)
	}
}

// HandleCaptureResult advances the session on a kiosk capture callback.
// Only the two biometric states accept one; anything else is a client bug
// and rejected with ErrWrongState.
func (e *Engine) HandleCaptureResult(ctx context.Context, s *models.FlowSession, lang models.Language, res models.CaptureResult) (string, error) {
	s.LastActivityAt = e.now()

	switch s.State {
	case models.StateFaceRecognition:
		defer e.persist(s)
		return e.handleFaceResult(ctx, s, lang, res)
	case models.StateVisitorFaceCapture:
		defer e.persist(s)
		return e.finishVisitor(ctx, s, lang, res.Success), nil
	default:
		slog.Warn("flow capture result outside biometric state", "session_id", s.ID, "state", s.State)
		return "", fmt.Errorf("%w: capture result in %s", models.ErrWrongState, s.State)
	}
}

// handleFaceResult applies the verification policy to one employee capture.
func (e *Engine) handleFaceResult(ctx context.Context, s *models.FlowSession, lang models.Language, res models.CaptureResult) (string, error) {
	outcome := OutcomeNoMatch
	var rec *models.EmployeeRecord
	if res.Success && res.Identity != "" {
		var err error
		rec, err = e.employees.GetByID(ctx, res.Identity)
		if err == nil {
			outcome = OutcomeMatch
		} else if !errors.Is(err, models.ErrEmployeeNotFound) {
			slog.Error("flow employee lookup failed", "error", err, "session_id", s.ID, "identity", res.Identity)
		}
	}

	if outcome == OutcomeNoMatch {
		s.VerificationAttempts++
	}

	switch Decide(outcome, s.VerificationAttempts, e.maxFaceAttempts) {
	case DecisionSuccess:
		s.Employee = rec
		s.State = models.StateEmployeeVerified
		s.VerificationAttempts = 0
		e.mailbox.Post(s.ID, models.SignalStopFaceCapture, nil)
		slog.Info("flow employee verified by face", "session_id", s.ID, "employee_id", rec.ID, "confidence", res.Confidence)
		return prompts.Get(prompts.KeyFaceVerified, lang, rec.Name), nil

	case DecisionRetry:
		e.mailbox.Post(s.ID, models.SignalStartFaceCapture, nil)
		slog.Info("flow face attempt failed, retrying", "session_id", s.ID, "attempts", s.VerificationAttempts)
		return prompts.Get(prompts.KeyFaceRetry, lang), nil

	default: // DecisionEscalate
		s.State = models.StateManualVerification
		s.VerificationAttempts = 0
		e.mailbox.Post(s.ID, models.SignalStopFaceCapture, nil)
		slog.Info("flow escalating to manual verification", "session_id", s.ID)
		return prompts.Get(prompts.KeyManualIntro, lang), nil
	}
}

// HandleManualVerification advances the manual credential flow: name plus
// employee ID first, then the one-time code.
func (e *Engine) HandleManualVerification(ctx context.Context, s *models.FlowSession, lang models.Language, req models.ManualVerificationRequest) (string, error) {
	s.LastActivityAt = e.now()
	defer e.persist(s)

	switch s.State {
	case models.StateManualVerification:
		if req.EmployeeID == "" {
			return prompts.Get(prompts.KeyManualNeedID, lang), nil
		}
		return e.beginCredentialCheck(ctx, s, lang, req.EmployeeID)
	case models.StateCredentialCheck:
		if req.Code == "" {
			return prompts.Get(prompts.KeyStateFallback, lang), nil
		}
		return e.checkCode(ctx, s, lang, req.Code)
	default:
		return "", fmt.Errorf("%w: manual verification in %s", models.ErrWrongState, s.State)
	}
}

// beginCredentialCheck resolves the employee ID and issues a one-time code.
func (e *Engine) beginCredentialCheck(ctx context.Context, s *models.FlowSession, lang models.Language, id string) (string, error) {
	rec, err := e.employees.GetByID(ctx, id)
	if errors.Is(err, models.ErrEmployeeNotFound) {
		return prompts.Get(prompts.KeyManualNotFound, lang), nil
	}
	if err != nil {
		slog.Error("flow employee lookup failed", "error", err, "session_id", s.ID)
		return "", fmt.Errorf("failed to look up employee: %w", err)
	}

	if err := e.otp.Issue(ctx, s.ID, rec); err != nil {
		return "", err
	}
	s.State = models.StateCredentialCheck
	s.CodeAttempts = 0
	slog.Info("flow one-time code issued", "session_id", s.ID, "employee_id", rec.ID)
	return prompts.Get(prompts.KeyCodeSent, lang), nil
}

// checkCode verifies a spoken or submitted one-time code.
func (e *Engine) checkCode(ctx context.Context, s *models.FlowSession, lang models.Language, code string) (string, error) {
	rec, err := e.otp.Check(s.ID, code)
	switch {
	case err == nil:
		s.Employee = rec
		s.State = models.StateEmployeeVerified
		s.VerificationAttempts = 0
		s.CodeAttempts = 0
		slog.Info("flow employee verified by code", "session_id", s.ID, "employee_id", rec.ID)
		return prompts.Get(prompts.KeyCodeVerified, lang, rec.Name), nil

	case errors.Is(err, models.ErrCodeMismatch):
		s.CodeAttempts++
		return prompts.Get(prompts.KeyCodeMismatch, lang), nil

	case errors.Is(err, models.ErrCodeExpired):
		// Reissue a fresh code to the same employee.
		if prev := e.otp.Employee(s.ID); prev != nil {
			if err := e.otp.Issue(ctx, s.ID, prev); err != nil {
				return "", err
			}
			return prompts.Get(prompts.KeyCodeExpired, lang), nil
		}
		s.State = models.StateEnd
		return prompts.Get(prompts.KeyCodeEscalate, lang), nil

	case errors.Is(err, models.ErrCodeExhausted), errors.Is(err, models.ErrNoCodeIssued):
		s.State = models.StateEnd
		s.CodeAttempts = 0
		slog.Warn("flow credential check exhausted", "session_id", s.ID)
		return prompts.Get(prompts.KeyCodeEscalate, lang), nil

	default:
		return "", err
	}
}

// HandleVisitorInfo merges a (possibly partial) visitor form submission.
func (e *Engine) HandleVisitorInfo(ctx context.Context, s *models.FlowSession, lang models.Language, req models.VisitorInfoRequest) (string, error) {
	s.LastActivityAt = e.now()
	if s.State != models.StateVisitorInfoCollection {
		return "", fmt.Errorf("%w: visitor info in %s", models.ErrWrongState, s.State)
	}
	defer e.persist(s)

	setVisitorField(s, models.VisitorFieldName, req.Name)
	setVisitorField(s, models.VisitorFieldPhone, req.Phone)
	setVisitorField(s, models.VisitorFieldPurpose, req.Purpose)
	setVisitorField(s, models.VisitorFieldHost, req.Host)

	return e.visitorNextStep(s, lang), nil
}

// collectVisitorField assigns one utterance to the first missing field.
func (e *Engine) collectVisitorField(ctx context.Context, s *models.FlowSession, lang models.Language, text string) string {
	missing := s.MissingVisitorFields()
	if len(missing) > 0 {
		setVisitorField(s, missing[0], strings.TrimSpace(text))
	}
	return e.visitorNextStep(s, lang)
}

// visitorNextStep re-prompts for the next missing field, or moves to photo
// capture once the form is complete.
func (e *Engine) visitorNextStep(s *models.FlowSession, lang models.Language) string {
	missing := s.MissingVisitorFields()
	if len(missing) == 0 {
		s.State = models.StateVisitorFaceCapture
		e.mailbox.Post(s.ID, models.SignalStartVisitorPhoto, nil)
		slog.Info("flow visitor form complete", "session_id", s.ID)
		return prompts.Get(prompts.KeyVisitorPhotoPrompt, lang, s.VisitorData[models.VisitorFieldHost])
	}

	switch missing[0] {
	case models.VisitorFieldName:
		return prompts.Get(prompts.KeyVisitorNeedName, lang)
	case models.VisitorFieldPhone:
		return prompts.Get(prompts.KeyVisitorNeedPhone, lang)
	case models.VisitorFieldPurpose:
		return prompts.Get(prompts.KeyVisitorNeedPurpose, lang)
	default:
		return prompts.Get(prompts.KeyVisitorNeedHost, lang)
	}
}

// finishVisitor records the photo outcome, pages the host, logs the visit, and
// ends the flow. Notification failure is recorded, never propagated.
func (e *Engine) finishVisitor(ctx context.Context, s *models.FlowSession, lang models.Language, photoOK bool) string {
	s.State = models.StateHostNotification
	s.NotificationAttempted = true

	hostName := s.VisitorData[models.VisitorFieldHost]
	reply := ""
	if !photoOK {
		reply = prompts.Get(prompts.KeyVisitorPhotoRetry, lang) + " "
	}

	host, err := e.employees.GetByName(ctx, hostName)
	if err == nil {
		err = e.notifier.NotifyHost(ctx, host, e.visitorLog(s, photoOK, false))
	}
	if err != nil {
		slog.Warn("flow host notification failed", "error", err, "session_id", s.ID, "host", hostName)
		reply += prompts.Get(prompts.KeyHostNotifyFailed, lang)
	} else {
		s.NotificationDelivered = true
		reply += prompts.Get(prompts.KeyHostNotified, lang, host.Name)
	}

	if err := e.store.AddVisitorLog(e.visitorLog(s, photoOK, s.NotificationDelivered)); err != nil {
		slog.Error("flow visitor log write failed", "error", err, "session_id", s.ID)
	}

	s.State = models.StateEnd
	slog.Info("flow visitor intake complete", "session_id", s.ID, "host_notified", s.NotificationDelivered)
	return reply
}

// visitorLog builds the persisted intake record from the session.
func (e *Engine) visitorLog(s *models.FlowSession, photoOK, notified bool) models.VisitorLog {
	return models.VisitorLog{
		SessionID:     s.ID,
		Name:          s.VisitorData[models.VisitorFieldName],
		Phone:         s.VisitorData[models.VisitorFieldPhone],
		Purpose:       s.VisitorData[models.VisitorFieldPurpose],
		Host:          s.VisitorData[models.VisitorFieldHost],
		PhotoCaptured: photoOK,
		HostNotified:  notified,
		Time:          e.now(),
	}
}

// CheckToolAccess gates restricted assistant tools to verified employees.
// Returns whether access is granted and the spoken denial otherwise.
func (e *Engine) CheckToolAccess(s *models.FlowSession, lang models.Language) (bool, string) {
	if s.State == models.StateEmployeeVerified && s.Employee != nil {
		return true, ""
	}
	if s.UserType == models.UserTypeVisitor {
		return false, prompts.Get(prompts.KeyAccessDeniedVisitor, lang)
	}
	return false, prompts.Get(prompts.KeyAccessDeniedAsleep, lang)
}

// SoftReset returns the session to idle on auto-sleep: verification progress
// and the pending signal are cleared, collected visitor data survives the turn.
func (e *Engine) SoftReset(s *models.FlowSession) {
	s.State = models.StateIdle
	s.UserType = models.UserTypeUnknown
	s.Employee = nil
	s.VerificationAttempts = 0
	s.CodeAttempts = 0
	e.otp.Drop(s.ID)
	e.mailbox.Drop(s.ID)
	e.persist(s)
	slog.Info("flow session soft reset", "session_id", s.ID)
}

// Teardown releases everything the engine holds for a session, used on
// explicit end. Idempotent.
func (e *Engine) Teardown(sessionID string) {
	e.otp.Drop(sessionID)
	e.mailbox.Drop(sessionID)
	if err := e.store.DeleteFlowSession(sessionID); err != nil {
		slog.Error("flow session delete failed", "error", err, "session_id", sessionID)
	}
}

// persist saves the session snapshot. Storage failure is logged, never fatal
// to the flow.
func (e *Engine) persist(s *models.FlowSession) {
	if err := e.store.SaveFlowSession(*s); err != nil {
		slog.Error("flow session save failed", "error", err, "session_id", s.ID)
	}
}

// extractEmployeeID pulls an employee ID out of a spoken utterance: the first
// token containing a digit, joined with a single-letter token before it
// ("E 100" -> "E100").
func extractEmployeeID(text string) string {
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, tok := range tokens {
		if !containsDigit(tok) {
			continue
		}
		if allDigits(tok) && i > 0 && len(tokens[i-1]) == 1 && !containsDigit(tokens[i-1]) {
			return employee.NormalizeID(tokens[i-1] + tok)
		}
		return employee.NormalizeID(tok)
	}
	return ""
}

// extractCode pulls a numeric one-time code out of a spoken utterance by
// collapsing all digits ("4 8 2 9 1 3" -> "482913").
func extractCode(text string) string {
	var b strings.Builder
	for _, r := range text {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	code := b.String()
	if len(code) < 4 || len(code) > 8 {
		return ""
	}
	return code
}

func containsDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func allDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

// setVisitorField records a non-empty value, initializing the map if the
// session was restored without one.
func setVisitorField(s *models.FlowSession, field models.VisitorField, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	if s.VisitorData == nil {
		s.VisitorData = make(map[models.VisitorField]string)
	}
	s.VisitorData[field] = value
}
