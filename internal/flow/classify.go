// Package flow implements the per-session intake state machine.
//
// This file holds speaker classification: fast multilingual keyword matching
// with an optional model-backed fallback for inconclusive utterances.
package flow

import (
	"context"
	"log/slog"
	"strings"

	"github.com/openlobby/LobbyPipe/internal/models"
)

// Classifier resolves an utterance to a user type when keyword matching is
// inconclusive. Implementations return UserTypeUnknown when they cannot tell.
type Classifier interface {
	ClassifyUserType(ctx context.Context, text string) (models.UserType, error)
}

// Keyword sets for speaker classification, per supported language.
var employeeKeywords = []string{
	"employee", "staff", "i work here", "work here", "employe",
	"ஊழியர்", "பணியாளர்",
	"ఉద్యోగి", "సిబ్బంది",
	"कर्मचारी", "स्टाफ",
}

var visitorKeywords = []string{
	"visitor", "guest", "visiting", "here to meet", "here to see", "appointment", "delivery",
	"பார்வையாளர்", "விருந்தினர்",
	"సందర్శకుడు", "అతిథి",
	"आगंतुक", "मेहमान", "मिलने आया", "मिलने आयी",
}

// classifyKeywords matches the utterance against both keyword sets.
// Returns UserTypeUnknown when neither or both sets match.
func classifyKeywords(text string) models.UserType {
	lowered := strings.ToLower(text)
	employee := containsAnyKeyword(lowered, employeeKeywords)
	visitor := containsAnyKeyword(lowered, visitorKeywords)
	switch {
	case employee && !visitor:
		return models.UserTypeEmployee
	case visitor && !employee:
		return models.UserTypeVisitor
	default:
		return models.UserTypeUnknown
	}
}

func containsAnyKeyword(lowered string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(lowered, k) {
			return true
		}
	}
	return false
}

// classify runs keyword matching first and falls back to the model classifier
// when available. Classifier errors degrade to unknown and a re-prompt.
func (e *Engine) classify(ctx context.Context, text string) models.UserType {
	if ut := classifyKeywords(text); ut != models.UserTypeUnknown {
		return ut
	}
	if e.classifier == nil {
		return models.UserTypeUnknown
	}
	ut, err := e.classifier.ClassifyUserType(ctx, text)
	if err != nil {
		slog.Warn("flow classifier fallback failed", "error", err)
		return models.UserTypeUnknown
	}
	if ut != models.UserTypeEmployee && ut != models.UserTypeVisitor {
		return models.UserTypeUnknown
	}
	return ut
}
