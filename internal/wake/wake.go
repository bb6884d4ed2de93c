// Package wake implements the wake/sleep lifecycle that gates whether the
// coordination core accepts input for a session.
//
// A tracker is created asleep and only wakes on a configured wake phrase.
// While awake every utterance is accepted and refreshes the activity clock;
// a periodic idle check puts the tracker back to sleep. Sleeping is the
// default quiescent state, not an error, and the tracker itself cannot fail.
package wake

import (
	"log/slog"
	"sync"
	"time"

	"github.com/openlobby/LobbyPipe/internal/models"
	"github.com/openlobby/LobbyPipe/internal/prompts"
)

// DefaultIdleTimeout is the inactivity window after which an awake tracker
// goes back to sleep.
const DefaultIdleTimeout = 3 * time.Minute

// Opts holds configuration options for a Tracker.
type Opts struct {
	IdleTimeout time.Duration
}

// Option defines a configuration option for a Tracker.
type Option func(*Opts)

// WithIdleTimeout overrides the idle timeout.
func WithIdleTimeout(d time.Duration) Option {
	return func(o *Opts) { o.IdleTimeout = d }
}

// Result describes how the tracker classified one utterance.
type Result struct {
	// Accepted is false only while asleep for non-wake input; such input is
	// ignored entirely, with no spoken reply.
	Accepted bool
	// Reply is the tracker's own spoken reply (wake/sleep acknowledgements,
	// language switches). Empty when the flow engine should produce the reply.
	Reply string
	// WokeUp is set when this utterance transitioned asleep -> awake.
	WokeUp bool
	// WentToSleep is set when this utterance transitioned awake -> asleep.
	WentToSleep bool
}

// Tracker holds the wake/sleep and language state for one session.
type Tracker struct {
	mu           sync.Mutex
	awake        bool
	language     models.Language
	lastActivity time.Time
	idleTimeout  time.Duration
}

// NewTracker creates a tracker in the asleep state with the default language.
func NewTracker(now time.Time, opts ...Option) *Tracker {
	cfg := Opts{IdleTimeout: DefaultIdleTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	return &Tracker{
		language:     models.DefaultLanguage,
		lastActivity: now,
		idleTimeout:  cfg.IdleTimeout,
	}
}

// HandleUtterance gates one utterance. Asleep trackers accept only wake
// phrases; awake trackers accept everything and refresh the activity clock.
func (t *Tracker) HandleUtterance(text string, now time.Time) Result {
	t.mu.Lock()
	defer t.mu.Unlock()

	// A strong script signal or an explicit switch request updates the
	// conversation language before any phrase matching.
	if lang := prompts.DetectScriptLanguage(text); lang != "" {
		t.language = lang
	}
	switchLang := prompts.DetectSwitchRequest(text)

	if !t.awake {
		if !t.matchesWakePhrase(text) {
			return Result{}
		}
		t.awake = true
		t.lastActivity = now
		slog.Info("wake.Tracker woke up", "language", t.language)
		return Result{
			Accepted: true,
			Reply:    prompts.Get(prompts.KeyWakeAck, t.language),
			WokeUp:   true,
		}
	}

	t.lastActivity = now

	if switchLang != "" {
		t.language = switchLang
		slog.Debug("wake.Tracker language switched", "language", t.language)
		return Result{Accepted: true, Reply: prompts.Get(prompts.KeyLanguageAck, t.language)}
	}

	if prompts.ContainsAny(text, prompts.SleepPhrases(t.language)) {
		t.awake = false
		slog.Info("wake.Tracker going to sleep on request")
		return Result{
			Accepted:    true,
			Reply:       prompts.Get(prompts.KeySleepAck, t.language),
			WentToSleep: true,
		}
	}

	if t.matchesWakePhrase(text) {
		return Result{Accepted: true, Reply: prompts.Get(prompts.KeyAlreadyAwake, t.language)}
	}

	return Result{Accepted: true}
}

// matchesWakePhrase checks the utterance against every language's wake
// phrases and adopts the matched language. Caller must hold t.mu.
func (t *Tracker) matchesWakePhrase(text string) bool {
	for lang, phrases := range prompts.AllWakePhrases() {
		if prompts.ContainsAny(text, phrases) {
			t.language = lang
			return true
		}
	}
	return false
}

// CheckIdle transitions awake -> asleep when the idle timeout has elapsed.
// Returns true when the tracker fell asleep on this check.
func (t *Tracker) CheckIdle(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.awake || now.Sub(t.lastActivity) <= t.idleTimeout {
		return false
	}
	t.awake = false
	slog.Info("wake.Tracker auto-sleep after idle timeout", "idle", now.Sub(t.lastActivity))
	return true
}

// Touch refreshes the activity clock, used when non-utterance events
// (capture callbacks, form submissions) arrive for an awake session.
func (t *Tracker) Touch(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastActivity = now
}

// Sleep forces the tracker asleep, used on explicit session end.
func (t *Tracker) Sleep() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.awake = false
}

// Awake reports whether the tracker is awake.
func (t *Tracker) Awake() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.awake
}

// Language returns the currently selected conversation language.
func (t *Tracker) Language() models.Language {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.language
}

// SetLanguage overrides the conversation language.
func (t *Tracker) SetLanguage(lang models.Language) {
	if !models.IsValidLanguage(lang) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.language = lang
}

// LastActivity returns the time of the last accepted event.
func (t *Tracker) LastActivity() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastActivity
}
