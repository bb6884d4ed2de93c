package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/openlobby/LobbyPipe/internal/models"
)

type fakeSMS struct {
	to   []string
	body []string
	err  error
}

func (f *fakeSMS) SendSMS(_ context.Context, to, body string) error {
	if f.err != nil {
		return f.err
	}
	f.to = append(f.to, to)
	f.body = append(f.body, body)
	return nil
}

func TestNewClientValidation(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")

	if _, err := NewClient(); err == nil {
		t.Error("NewClient without credentials should fail")
	}
	if _, err := NewClient(WithAccountSID("AC123"), WithAuthToken("tok")); err == nil {
		t.Error("NewClient without from number should fail")
	}
	if _, err := NewClient(WithAccountSID("AC123"), WithAuthToken("tok"), WithFromNumber("+15550100")); err != nil {
		t.Errorf("NewClient with full config: unexpected error: %v", err)
	}
}

func TestNotifyHost(t *testing.T) {
	sms := &fakeSMS{}
	host := &models.EmployeeRecord{ID: "E100", Name: "Priya Raman", Phone: "+15550100"}
	visitor := models.VisitorLog{Name: "John Doe", Phone: "+15550199", Purpose: "meeting"}

	if err := notifyHost(context.Background(), sms, host, visitor); err != nil {
		t.Fatalf("notifyHost: unexpected error: %v", err)
	}
	if len(sms.to) != 1 || sms.to[0] != "+15550100" {
		t.Fatalf("sent to %v, want the host phone", sms.to)
	}
	for _, want := range []string{"John Doe", "meeting", "+15550199"} {
		if !strings.Contains(sms.body[0], want) {
			t.Errorf("notification body %q missing %q", sms.body[0], want)
		}
	}
}

func TestNotifyHostNoPhone(t *testing.T) {
	sms := &fakeSMS{}
	host := &models.EmployeeRecord{ID: "E100", Name: "Priya Raman"}
	if err := notifyHost(context.Background(), sms, host, models.VisitorLog{Name: "John Doe"}); err == nil {
		t.Error("host without phone should be an error")
	}
	if err := notifyHost(context.Background(), sms, nil, models.VisitorLog{}); err == nil {
		t.Error("nil host should be an error")
	}
	if len(sms.to) != 0 {
		t.Error("nothing should be sent without a phone number")
	}
}

func TestNotifyHostDeliveryFailure(t *testing.T) {
	sms := &fakeSMS{err: errors.New("gateway down")}
	host := &models.EmployeeRecord{ID: "E100", Phone: "+15550100"}
	if err := notifyHost(context.Background(), sms, host, models.VisitorLog{Name: "John Doe"}); err == nil {
		t.Error("delivery failure should surface")
	}
}

func TestSendCode(t *testing.T) {
	sms := &fakeSMS{}
	rec := &models.EmployeeRecord{ID: "E100", Phone: "+15550100"}

	if err := sendCode(context.Background(), sms, rec, "482913"); err != nil {
		t.Fatalf("sendCode: unexpected error: %v", err)
	}
	if !strings.Contains(sms.body[0], "482913") {
		t.Errorf("code message %q missing the code", sms.body[0])
	}

	if err := sendCode(context.Background(), sms, &models.EmployeeRecord{ID: "E200"}, "111111"); err == nil {
		t.Error("employee without phone should be an error")
	}
}

func TestMockNotifier(t *testing.T) {
	m := NewMockNotifier()
	host := &models.EmployeeRecord{ID: "E100"}
	if err := m.NotifyHost(context.Background(), host, models.VisitorLog{Name: "John Doe"}); err != nil {
		t.Fatal(err)
	}
	if err := m.SendCode(context.Background(), host, "123456"); err != nil {
		t.Fatal(err)
	}
	if len(m.HostCalls) != 1 || m.HostCalls[0].Visitor.Name != "John Doe" {
		t.Errorf("HostCalls = %+v", m.HostCalls)
	}
	if len(m.CodeCalls) != 1 || m.CodeCalls[0].Code != "123456" {
		t.Errorf("CodeCalls = %+v", m.CodeCalls)
	}
}
