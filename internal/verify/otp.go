// Package verify provides the verification collaborators of the coordination
// core.
//
// This file implements the one-time-code manager for manual credential
// verification: issue a code through a delivery channel, then check it against
// an explicit expiry window and attempt budget.
package verify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/openlobby/LobbyPipe/internal/models"
	"github.com/openlobby/LobbyPipe/internal/util"
)

// Default one-time-code policy. Both values are deliberately explicit
// configuration rather than hard-wired behavior.
const (
	DefaultCodeTTL         = 5 * time.Minute
	DefaultCodeMaxAttempts = 3
	DefaultCodeLength      = 6
)

// CodeSender delivers an issued code to the employee's contact on file.
type CodeSender interface {
	SendCode(ctx context.Context, rec *models.EmployeeRecord, code string) error
}

// OTPOpts holds configuration options for the OTP manager.
type OTPOpts struct {
	TTL         time.Duration
	MaxAttempts int
	CodeLength  int
	Clock       func() time.Time
}

// OTPOption defines a configuration option for the OTP manager.
type OTPOption func(*OTPOpts)

// WithCodeTTL overrides the code validity window.
func WithCodeTTL(d time.Duration) OTPOption {
	return func(o *OTPOpts) { o.TTL = d }
}

// WithCodeMaxAttempts overrides the per-code check budget.
func WithCodeMaxAttempts(n int) OTPOption {
	return func(o *OTPOpts) { o.MaxAttempts = n }
}

// WithCodeLength overrides the generated code length.
func WithCodeLength(n int) OTPOption {
	return func(o *OTPOpts) { o.CodeLength = n }
}

// WithClock overrides the time source, used in tests.
func WithClock(clock func() time.Time) OTPOption {
	return func(o *OTPOpts) { o.Clock = clock }
}

// issuedCode tracks one outstanding code for a session.
type issuedCode struct {
	code     string
	employee models.EmployeeRecord
	issuedAt time.Time
	attempts int
}

// OTPManager issues and checks one-time codes, one outstanding code per
// session. Reissuing overwrites the previous code.
type OTPManager struct {
	mu          sync.Mutex
	issued      map[string]*issuedCode
	sender      CodeSender
	ttl         time.Duration
	maxAttempts int
	codeLength  int
	now         func() time.Time
}

// NewOTPManager creates an OTP manager delivering codes through sender.
func NewOTPManager(sender CodeSender, opts ...OTPOption) *OTPManager {
	cfg := OTPOpts{
		TTL:         DefaultCodeTTL,
		MaxAttempts: DefaultCodeMaxAttempts,
		CodeLength:  DefaultCodeLength,
		Clock:       time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &OTPManager{
		issued:      make(map[string]*issuedCode),
		sender:      sender,
		ttl:         cfg.TTL,
		maxAttempts: cfg.MaxAttempts,
		codeLength:  cfg.CodeLength,
		now:         cfg.Clock,
	}
}

// Issue generates a fresh code for the session's employee and delivers it.
// Any previous outstanding code for the session is replaced.
func (m *OTPManager) Issue(ctx context.Context, sessionID string, rec *models.EmployeeRecord) error {
	code := util.GenerateNumericCode(m.codeLength)

	if err := m.sender.SendCode(ctx, rec, code); err != nil {
		slog.Error("OTPManager code delivery failed", "error", err, "session_id", sessionID, "employee_id", rec.ID)
		return fmt.Errorf("failed to deliver one-time code: %w", err)
	}

	m.mu.Lock()
	m.issued[sessionID] = &issuedCode{
		code:     code,
		employee: *rec,
		issuedAt: m.now(),
	}
	m.mu.Unlock()

	slog.Info("OTPManager issued code", "session_id", sessionID, "employee_id", rec.ID)
	return nil
}

// Check verifies a spoken code for the session. On success the outstanding
// code is consumed and the verified employee record returned. Failures map to
// models.ErrCodeMismatch, models.ErrCodeExpired (reissue is the caller's
// decision), models.ErrCodeExhausted (budget spent, code discarded), or
// models.ErrNoCodeIssued.
func (m *OTPManager) Check(sessionID, code string) (*models.EmployeeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	issued, ok := m.issued[sessionID]
	if !ok {
		return nil, models.ErrNoCodeIssued
	}

	if m.now().Sub(issued.issuedAt) > m.ttl {
		// The entry is kept so the caller can reissue for the same employee;
		// an expired code can never verify.
		slog.Info("OTPManager code expired", "session_id", sessionID)
		return nil, models.ErrCodeExpired
	}

	if issued.code != code {
		issued.attempts++
		if issued.attempts >= m.maxAttempts {
			delete(m.issued, sessionID)
			slog.Warn("OTPManager attempt budget exhausted", "session_id", sessionID, "attempts", issued.attempts)
			return nil, models.ErrCodeExhausted
		}
		slog.Debug("OTPManager code mismatch", "session_id", sessionID, "attempts", issued.attempts)
		return nil, models.ErrCodeMismatch
	}

	rec := issued.employee
	delete(m.issued, sessionID)
	slog.Info("OTPManager code verified", "session_id", sessionID, "employee_id", rec.ID)
	return &rec, nil
}

// Employee returns the employee attached to the session's outstanding code,
// used to reissue after expiry. Returns nil when no code is outstanding.
func (m *OTPManager) Employee(sessionID string) *models.EmployeeRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	if issued, ok := m.issued[sessionID]; ok {
		rec := issued.employee
		return &rec
	}
	return nil
}

// Drop discards any outstanding code for the session. Idempotent.
func (m *OTPManager) Drop(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.issued, sessionID)
}
