// Package models defines the core data structures for LobbyPipe.
//
// It includes the flow state and signal types shared by the coordination core,
// the kiosk-facing request payloads, and the standard API response envelope.
package models

import (
	"errors"
	"time"
)

// FlowState identifies a node in the intake flow graph.
type FlowState string

const (
	// StateIdle is the quiescent state before a wake phrase is heard.
	StateIdle FlowState = "idle"
	// StateClassification waits for the speaker to identify as employee or visitor.
	StateClassification FlowState = "classification"
	// StateFaceRecognition runs biometric verification for employees.
	StateFaceRecognition FlowState = "face_recognition"
	// StateManualVerification collects name and employee ID after face retries are exhausted.
	StateManualVerification FlowState = "manual_verification"
	// StateCredentialCheck awaits the one-time code issued during manual verification.
	StateCredentialCheck FlowState = "credential_check"
	// StateEmployeeVerified is the absorbing success state for employees.
	StateEmployeeVerified FlowState = "employee_verified"
	// StateVisitorInfoCollection accumulates the required visitor fields.
	StateVisitorInfoCollection FlowState = "visitor_info_collection"
	// StateVisitorFaceCapture waits for the best-effort visitor photo.
	StateVisitorFaceCapture FlowState = "visitor_face_capture"
	// StateHostNotification pages the host employee.
	StateHostNotification FlowState = "host_notification"
	// StateEnd is the terminal state of a completed flow.
	StateEnd FlowState = "end"
)

// IsValidFlowState checks whether the given state belongs to the flow graph.
func IsValidFlowState(s FlowState) bool {
	switch s {
	case StateIdle, StateClassification, StateFaceRecognition, StateManualVerification,
		StateCredentialCheck, StateEmployeeVerified, StateVisitorInfoCollection,
		StateVisitorFaceCapture, StateHostNotification, StateEnd:
		return true
	default:
		return false
	}
}

// IsBiometric reports whether the state drives camera capture on the kiosk.
func (s FlowState) IsBiometric() bool {
	return s == StateFaceRecognition || s == StateVisitorFaceCapture
}

// IsTerminal reports whether the flow has finished.
func (s FlowState) IsTerminal() bool {
	return s == StateEnd
}

// UserType classifies the current speaker.
type UserType string

const (
	// UserTypeEmployee marks the speaker as a verified-or-verifying employee.
	UserTypeEmployee UserType = "employee"
	// UserTypeVisitor marks the speaker as a visitor.
	UserTypeVisitor UserType = "visitor"
	// UserTypeUnknown is the pre-classification default.
	UserTypeUnknown UserType = "unknown"
)

// Language identifies a supported prompt language.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageTamil   Language = "ta"
	LanguageTelugu  Language = "te"
	LanguageHindi   Language = "hi"
)

// DefaultLanguage is used until the speaker selects or reveals another language.
const DefaultLanguage = LanguageEnglish

// IsValidLanguage checks whether the given language is supported.
func IsValidLanguage(l Language) bool {
	switch l {
	case LanguageEnglish, LanguageTamil, LanguageTelugu, LanguageHindi:
		return true
	default:
		return false
	}
}

// VisitorField names one of the fields collected from a visitor.
type VisitorField string

const (
	VisitorFieldName    VisitorField = "name"
	VisitorFieldPhone   VisitorField = "phone"
	VisitorFieldPurpose VisitorField = "purpose"
	VisitorFieldHost    VisitorField = "host"
)

// RequiredVisitorFields lists the fields that gate the move to photo capture,
// in the order they are prompted for.
var RequiredVisitorFields = []VisitorField{
	VisitorFieldName, VisitorFieldPhone, VisitorFieldPurpose, VisitorFieldHost,
}

// EmployeeRecord is the normalized employee identity attached to a session
// after successful verification.
type EmployeeRecord struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// FlowSession tracks one conversation through the intake flow.
type FlowSession struct {
	ID                    string                  `json:"id"`
	State                 FlowState               `json:"state"`
	UserType              UserType                `json:"user_type"`
	Employee              *EmployeeRecord         `json:"employee,omitempty"`
	VisitorData           map[VisitorField]string `json:"visitor_data,omitempty"`
	VerificationAttempts  int                     `json:"verification_attempts"`
	CodeAttempts          int                     `json:"code_attempts"`
	NotificationAttempted bool                    `json:"notification_attempted"`
	NotificationDelivered bool                    `json:"notification_delivered"`
	CreatedAt             time.Time               `json:"created_at"`
	LastActivityAt        time.Time               `json:"last_activity_at"`
}

// MissingVisitorFields returns the required visitor fields not yet collected,
// in prompt order.
func (s *FlowSession) MissingVisitorFields() []VisitorField {
	var missing []VisitorField
	for _, f := range RequiredVisitorFields {
		if s.VisitorData[f] == "" {
			missing = append(missing, f)
		}
	}
	return missing
}

// Signal names understood by the kiosk client.
type SignalName string

const (
	// SignalStartFaceCapture asks the client to start the camera and post frames
	// to the capture-result endpoint. Only ever emitted on the employee branch.
	SignalStartFaceCapture SignalName = "start_face_capture"
	// SignalStopFaceCapture asks the client to stop the camera.
	SignalStopFaceCapture SignalName = "stop_face_capture"
	// SignalStartVisitorInfo asks the client to show the visitor form.
	SignalStartVisitorInfo SignalName = "start_visitor_info"
	// SignalStartVisitorPhoto asks the client to take the best-effort visitor photo.
	SignalStartVisitorPhoto SignalName = "start_visitor_photo"
)

// Signal is a transient instruction handed from the coordination core to the
// polling kiosk client. At most one live signal exists per session; a new post
// overwrites an unconsumed one.
type Signal struct {
	Name      SignalName     `json:"name"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// CaptureResult is the client's report of a biometric capture attempt.
type CaptureResult struct {
	Success    bool    `json:"success"`
	Identity   string  `json:"identity,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// VisitorLog is the persisted record of a completed visitor intake.
type VisitorLog struct {
	SessionID     string    `json:"session_id"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone"`
	Purpose       string    `json:"purpose"`
	Host          string    `json:"host"`
	PhotoCaptured bool      `json:"photo_captured"`
	HostNotified  bool      `json:"host_notified"`
	Time          time.Time `json:"time"`
}

// Validation constants for kiosk-facing request payloads.
const (
	// MaxUtteranceLength bounds a single transcribed utterance.
	MaxUtteranceLength = 2048
	// MaxVisitorFieldLength bounds each collected visitor field.
	MaxVisitorFieldLength = 256
)

// Error variables for request validation and flow-level failures.
var (
	ErrEmptySessionID     = errors.New("session id cannot be empty")
	ErrEmptyUtterance     = errors.New("utterance text cannot be empty")
	ErrUtteranceTooLong   = errors.New("utterance exceeds maximum length")
	ErrFieldTooLong       = errors.New("visitor field exceeds maximum length")
	ErrMissingEmployeeID  = errors.New("employee id is required")
	ErrUnknownSession     = errors.New("unknown session")
	ErrSessionEnded       = errors.New("session has ended")
	ErrWrongState         = errors.New("event not valid in current state")
	ErrEmployeeNotFound   = errors.New("employee record not found")
	ErrCodeMismatch       = errors.New("one-time code does not match")
	ErrCodeExpired        = errors.New("one-time code has expired")
	ErrCodeExhausted      = errors.New("one-time code attempt budget exhausted")
	ErrNoCodeIssued       = errors.New("no one-time code issued for this session")
	ErrMatcherUnavailable = errors.New("biometric matcher unavailable")
)

// UtteranceRequest carries one classified utterance from the conversational engine.
type UtteranceRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

// Validate checks an UtteranceRequest.
func (r *UtteranceRequest) Validate() error {
	if r.SessionID == "" {
		return ErrEmptySessionID
	}
	if r.Text == "" {
		return ErrEmptyUtterance
	}
	if len(r.Text) > MaxUtteranceLength {
		return ErrUtteranceTooLong
	}
	return nil
}

// CaptureResultRequest carries the kiosk client's capture callback. Either a
// pre-computed result or a base64 image (routed through the matcher) is given.
type CaptureResultRequest struct {
	SessionID  string  `json:"session_id"`
	Success    bool    `json:"success"`
	Identity   string  `json:"identity,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Image      string  `json:"image,omitempty"` // base64-encoded frame, optional
}

// Validate checks a CaptureResultRequest.
func (r *CaptureResultRequest) Validate() error {
	if r.SessionID == "" {
		return ErrEmptySessionID
	}
	return nil
}

// VisitorInfoRequest carries a (possibly partial) visitor form submission.
type VisitorInfoRequest struct {
	SessionID string `json:"session_id"`
	Name      string `json:"name,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Purpose   string `json:"purpose,omitempty"`
	Host      string `json:"host,omitempty"`
}

// Validate checks a VisitorInfoRequest.
func (r *VisitorInfoRequest) Validate() error {
	if r.SessionID == "" {
		return ErrEmptySessionID
	}
	for _, v := range []string{r.Name, r.Phone, r.Purpose, r.Host} {
		if len(v) > MaxVisitorFieldLength {
			return ErrFieldTooLong
		}
	}
	return nil
}

// ManualVerificationRequest carries a manual credential step: name plus
// employee ID first, then the one-time code on a later call.
type ManualVerificationRequest struct {
	SessionID  string `json:"session_id"`
	Name       string `json:"name,omitempty"`
	EmployeeID string `json:"employee_id,omitempty"`
	Code       string `json:"code,omitempty"`
}

// Validate checks a ManualVerificationRequest.
func (r *ManualVerificationRequest) Validate() error {
	if r.SessionID == "" {
		return ErrEmptySessionID
	}
	if r.EmployeeID == "" && r.Code == "" {
		return ErrMissingEmployeeID
	}
	return nil
}

// SessionRequest identifies a session for end/consume style endpoints.
type SessionRequest struct {
	SessionID string `json:"session_id"`
}

// Validate checks a SessionRequest.
func (r *SessionRequest) Validate() error {
	if r.SessionID == "" {
		return ErrEmptySessionID
	}
	return nil
}

// FlowStatus is the observability snapshot returned by the status endpoint.
type FlowStatus struct {
	SessionID            string                  `json:"session_id"`
	State                FlowState               `json:"state"`
	UserType             UserType                `json:"user_type"`
	Awake                bool                    `json:"awake"`
	Language             Language                `json:"language"`
	VerificationAttempts int                     `json:"verification_attempts"`
	VisitorData          map[VisitorField]string `json:"visitor_data,omitempty"`
	LastActivityAt       time.Time               `json:"last_activity_at"`
}
