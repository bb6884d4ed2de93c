// Package notify wraps the Twilio API for SMS delivery in LobbyPipe: host
// arrival notifications and one-time verification codes.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/openlobby/LobbyPipe/internal/models"
)

// Notifier delivers visitor arrival notifications to the host employee.
type Notifier interface {
	NotifyHost(ctx context.Context, host *models.EmployeeRecord, visitor models.VisitorLog) error
}

// SMSSender sends a plain text message to a phone number.
type SMSSender interface {
	SendSMS(ctx context.Context, to string, body string) error
}

// Opts holds configuration options for the Twilio SMS client.
// This focuses solely on Twilio API requirements.
type Opts struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// Option defines a configuration option for the Twilio SMS client.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFromNumber sets the sending phone number in E.164 format.
func WithFromNumber(from string) Option {
	return func(o *Opts) { o.FromNumber = from }
}

// Client wraps the Twilio REST API for SMS.
type Client struct {
	client     *twilio.RestClient
	fromNumber string // E.164 format, e.g. "+15550100"
}

// NewClient creates a Twilio SMS client. Options fall back to the
// TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_FROM_NUMBER environment
// variables when unset.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.FromNumber == "" {
		cfg.FromNumber = os.Getenv("TWILIO_FROM_NUMBER")
	}
	slog.Debug("Twilio client config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"FromNumber_set", cfg.FromNumber != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.FromNumber == "" {
		return nil, fmt.Errorf("from number must be provided")
	}

	client := twilio.NewRestClientWithParams(
		twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		},
	)

	return &Client{
		client:     client,
		fromNumber: cfg.FromNumber,
	}, nil
}

// SendSMS sends a text message using the Twilio API.
func (c *Client) SendSMS(ctx context.Context, to string, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(c.fromNumber)
	params.SetBody(body)

	_, err := c.client.Api.CreateMessage(params)
	if err != nil {
		slog.Error("Twilio SendSMS failed", "to", to, "error", err)
		return fmt.Errorf("failed to send message to %s: %w", to, err)
	}

	slog.Debug("Twilio message sent", "to", to)
	return nil
}

// NotifyHost texts the host employee that their visitor has arrived.
func (c *Client) NotifyHost(ctx context.Context, host *models.EmployeeRecord, visitor models.VisitorLog) error {
	return notifyHost(ctx, c, host, visitor)
}

// SendCode texts a one-time verification code to the employee's phone on file.
func (c *Client) SendCode(ctx context.Context, rec *models.EmployeeRecord, code string) error {
	return sendCode(ctx, c, rec, code)
}

// notifyHost composes and delivers the arrival notification through any SMS
// sender. Split out so the SMS transport stays swappable in tests.
func notifyHost(ctx context.Context, sender SMSSender, host *models.EmployeeRecord, visitor models.VisitorLog) error {
	if host == nil || host.Phone == "" {
		return fmt.Errorf("host has no phone number on file")
	}
	body := fmt.Sprintf("LobbyPipe: %s is at the front desk to see you. Purpose: %s. Contact: %s.",
		visitor.Name, visitor.Purpose, visitor.Phone)
	if err := sender.SendSMS(ctx, host.Phone, body); err != nil {
		return fmt.Errorf("failed to notify host %s: %w", host.ID, err)
	}
	slog.Info("host notified of visitor arrival", "host_id", host.ID, "visitor_name", visitor.Name)
	return nil
}

// sendCode composes and delivers the verification code message.
func sendCode(ctx context.Context, sender SMSSender, rec *models.EmployeeRecord, code string) error {
	if rec == nil || rec.Phone == "" {
		return fmt.Errorf("employee has no phone number on file")
	}
	body := fmt.Sprintf("LobbyPipe verification code: %s. It expires in a few minutes.", code)
	if err := sender.SendSMS(ctx, rec.Phone, body); err != nil {
		return fmt.Errorf("failed to send code to %s: %w", rec.ID, err)
	}
	return nil
}

// LogNotifier logs instead of sending, for development without Twilio
// credentials.
type LogNotifier struct{}

// NotifyHost logs the would-be notification.
func (LogNotifier) NotifyHost(ctx context.Context, host *models.EmployeeRecord, visitor models.VisitorLog) error {
	slog.Info("LogNotifier host notification",
		"host", hostLabel(host), "visitor_name", visitor.Name, "purpose", visitor.Purpose)
	return nil
}

// SendCode logs the would-be code delivery.
func (LogNotifier) SendCode(ctx context.Context, rec *models.EmployeeRecord, code string) error {
	slog.Info("LogNotifier verification code", "employee", hostLabel(rec), "code", code)
	return nil
}

func hostLabel(rec *models.EmployeeRecord) string {
	if rec == nil {
		return "<none>"
	}
	if rec.Name != "" {
		return rec.Name
	}
	return rec.ID
}

// MockNotifier records notifications and codes for tests.
type MockNotifier struct {
	HostCalls []HostCall
	CodeCalls []CodeCall
	Err       error
}

type HostCall struct {
	Host    *models.EmployeeRecord
	Visitor models.VisitorLog
}

type CodeCall struct {
	Employee *models.EmployeeRecord
	Code     string
}

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) NotifyHost(ctx context.Context, host *models.EmployeeRecord, visitor models.VisitorLog) error {
	if m.Err != nil {
		return m.Err
	}
	m.HostCalls = append(m.HostCalls, HostCall{Host: host, Visitor: visitor})
	return nil
}

func (m *MockNotifier) SendCode(ctx context.Context, rec *models.EmployeeRecord, code string) error {
	if m.Err != nil {
		return m.Err
	}
	m.CodeCalls = append(m.CodeCalls, CodeCall{Employee: rec, Code: code})
	return nil
}
