package prompts

import (
	"strings"
	"testing"

	"github.com/openlobby/LobbyPipe/internal/models"
)

func TestGetFallsBackToEnglish(t *testing.T) {
	tests := []struct {
		name string
		key  Key
		lang models.Language
	}{
		{"translated key in tamil", KeyWakeAck, models.LanguageTamil},
		{"untranslated key in tamil", KeyAssistantReady, models.LanguageTamil},
		{"unknown language", KeyWakeAck, models.Language("fr")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Get(tt.key, tt.lang); got == "" {
				t.Errorf("Get(%s, %s) returned empty reply", tt.key, tt.lang)
			}
		})
	}

	if got := Get(Key("no_such_key"), models.LanguageEnglish); got != "" {
		t.Errorf("unknown key should return empty, got %q", got)
	}
}

func TestGetFormatsArgs(t *testing.T) {
	got := Get(KeyFaceVerified, models.LanguageEnglish, "Priya Raman")
	if !strings.Contains(got, "Priya Raman") {
		t.Errorf("formatted reply should contain the name, got %q", got)
	}
}

func TestContainsAny(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		phrases []string
		want    bool
	}{
		{"exact wake phrase", "hey lobby", WakePhrases(models.LanguageEnglish), true},
		{"embedded wake phrase", "um, Hey Lobby, are you there?", WakePhrases(models.LanguageEnglish), true},
		{"no match", "what time is it", WakePhrases(models.LanguageEnglish), false},
		{"tamil wake phrase", "ஹே லாபி", WakePhrases(models.LanguageTamil), true},
		{"sleep phrase", "ok goodbye lobby", SleepPhrases(models.LanguageEnglish), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ContainsAny(tt.text, tt.phrases); got != tt.want {
				t.Errorf("ContainsAny(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestDetectScriptLanguage(t *testing.T) {
	tests := []struct {
		text string
		want models.Language
	}{
		{"मुझे मदद चाहिए", models.LanguageHindi},
		{"எனக்கு உதவி வேண்டும்", models.LanguageTamil},
		{"నాకు సహాయం కావాలి", models.LanguageTelugu},
		{"I need help", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := DetectScriptLanguage(tt.text); got != tt.want {
			t.Errorf("DetectScriptLanguage(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestResolveLanguage(t *testing.T) {
	tests := []struct {
		label string
		want  models.Language
	}{
		{"tamil", models.LanguageTamil},
		{" Telugu ", models.LanguageTelugu},
		{"hi", models.LanguageHindi},
		{"english", models.LanguageEnglish},
		{"klingon", ""},
	}

	for _, tt := range tests {
		if got := ResolveLanguage(tt.label); got != tt.want {
			t.Errorf("ResolveLanguage(%q) = %q, want %q", tt.label, got, tt.want)
		}
	}
}

func TestDetectSwitchRequest(t *testing.T) {
	tests := []struct {
		text string
		want models.Language
	}{
		{"can you speak tamil please", models.LanguageTamil},
		{"talk in hindi", models.LanguageHindi},
		{"english please", models.LanguageEnglish},
		{"I'm here to see someone", ""},
	}

	for _, tt := range tests {
		if got := DetectSwitchRequest(tt.text); got != tt.want {
			t.Errorf("DetectSwitchRequest(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}
