package genai

import (
	"context"
	"errors"
	"testing"

	"github.com/openai/openai-go"

	"github.com/openlobby/LobbyPipe/internal/models"
)

type fakeGenerator struct {
	answer   string
	err      error
	lastUser string
}

func (f *fakeGenerator) GenerateWithMessages(_ context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	if len(messages) > 0 {
		if user := messages[len(messages)-1].OfUser; user != nil {
			f.lastUser = user.Content.OfString.Value
		}
	}
	return f.answer, f.err
}

func TestNewClientRequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewClient(); err == nil {
		t.Error("NewClient without a key should fail")
	}
	if _, err := NewClient(WithAPIKey("sk-test")); err != nil {
		t.Errorf("NewClient with a key: unexpected error: %v", err)
	}
}

func TestClassifyUserType(t *testing.T) {
	tests := []struct {
		answer string
		want   models.UserType
	}{
		{"employee", models.UserTypeEmployee},
		{"Employee.", models.UserTypeEmployee},
		{"visitor", models.UserTypeVisitor},
		{"I think this is a visitor", models.UserTypeVisitor},
		{"unknown", models.UserTypeUnknown},
		{"no idea", models.UserTypeUnknown},
	}
	for _, tt := range tests {
		fake := &fakeGenerator{answer: tt.answer}
		c := NewUserTypeClassifier(fake)
		got, err := c.ClassifyUserType(context.Background(), "I'm here for the 3pm")
		if err != nil {
			t.Fatalf("answer %q: unexpected error: %v", tt.answer, err)
		}
		if got != tt.want {
			t.Errorf("answer %q = %s, want %s", tt.answer, got, tt.want)
		}
		if fake.lastUser != "I'm here for the 3pm" {
			t.Errorf("model saw %q, want the raw utterance", fake.lastUser)
		}
	}
}

func TestClassifyUserTypePropagatesError(t *testing.T) {
	c := NewUserTypeClassifier(&fakeGenerator{err: errors.New("rate limited")})
	got, err := c.ClassifyUserType(context.Background(), "hello")
	if err == nil {
		t.Error("transport error should propagate")
	}
	if got != models.UserTypeUnknown {
		t.Errorf("errored classification = %s, want unknown", got)
	}
}
