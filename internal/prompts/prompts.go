// Package prompts holds the localized spoken-reply catalog and the phrase
// sets used for wake/sleep detection and language resolution.
//
// Every user-facing reply produced by the coordination core is selected from
// this catalog; raw errors are never spoken.
package prompts

import (
	"fmt"
	"strings"

	"github.com/openlobby/LobbyPipe/internal/models"
)

// Key identifies one reply template in the catalog.
type Key string

const (
	KeyWakeAck             Key = "wake_ack"
	KeySleepAck            Key = "sleep_ack"
	KeyAutoSleepNotice     Key = "auto_sleep_notice"
	KeyAlreadyAwake        Key = "already_awake"
	KeyLanguageAck         Key = "language_ack"
	KeyClassifyPrompt      Key = "classify_prompt"
	KeyClassifyRetry       Key = "classify_retry"
	KeyClassifiedEmployee  Key = "classified_employee"
	KeyClassifiedVisitor   Key = "classified_visitor"
	KeyFaceRetry           Key = "face_retry"
	KeyFaceVerified        Key = "face_verified"
	KeyManualIntro         Key = "manual_intro"
	KeyManualNeedID        Key = "manual_need_id"
	KeyManualNotFound      Key = "manual_not_found"
	KeyCodeSent            Key = "code_sent"
	KeyCodeMismatch        Key = "code_mismatch"
	KeyCodeExpired         Key = "code_expired"
	KeyCodeEscalate        Key = "code_escalate"
	KeyCodeVerified        Key = "code_verified"
	KeyVisitorNeedName     Key = "visitor_need_name"
	KeyVisitorNeedPhone    Key = "visitor_need_phone"
	KeyVisitorNeedPurpose  Key = "visitor_need_purpose"
	KeyVisitorNeedHost     Key = "visitor_need_host"
	KeyVisitorPhotoPrompt  Key = "visitor_photo_prompt"
	KeyVisitorPhotoRetry   Key = "visitor_photo_retry"
	KeyHostNotified        Key = "host_notified"
	KeyHostNotifyFailed    Key = "host_notify_failed"
	KeyFlowComplete        Key = "flow_complete"
	KeyAssistantReady      Key = "assistant_ready"
	KeySessionEnd          Key = "session_end"
	KeyStateFallback       Key = "state_fallback"
	KeyAccessDeniedVisitor Key = "access_denied_visitor"
	KeyAccessDeniedAsleep  Key = "access_denied_asleep"
)

// catalog maps each key to its per-language templates. English is complete;
// other languages fall back to English for untranslated keys.
var catalog = map[Key]map[models.Language]string{
	KeyWakeAck: {
		models.LanguageEnglish: "Hello, I'm the front desk assistant. How can I help you today?",
		models.LanguageTamil:   "வணக்கம், நான் வரவேற்பு உதவியாளர். இன்று நான் எப்படி உதவலாம்?",
		models.LanguageTelugu:  "హలో, నేను ఫ్రంట్ డెస్క్ అసిస్టెంట్. ఈ రోజు మీకు ఎలా సహాయం చేయగలను?",
		models.LanguageHindi:   "नमस्ते, मैं फ्रंट डेस्क सहायक हूँ। आज मैं आपकी कैसे मदद कर सकती हूँ?",
	},
	KeySleepAck: {
		models.LanguageEnglish: "Going to sleep now. Say the wake phrase when you need me.",
	},
	KeyAutoSleepNotice: {
		models.LanguageEnglish: "I haven't heard anything for a while, so I'm going to sleep.",
	},
	KeyAlreadyAwake: {
		models.LanguageEnglish: "I'm already awake and listening.",
	},
	KeyLanguageAck: {
		models.LanguageEnglish: "Sure, I'll continue in your preferred language.",
		models.LanguageTamil:   "சரி, நான் தமிழில் தொடர்கிறேன்.",
		models.LanguageTelugu:  "సరే, నేను తెలుగులో కొనసాగిస్తాను.",
		models.LanguageHindi:   "ठीक है, मैं हिंदी में जारी रखूँगी।",
	},
	KeyClassifyPrompt: {
		models.LanguageEnglish: "Are you an employee or a visitor?",
		models.LanguageTamil:   "நீங்கள் ஊழியரா அல்லது பார்வையாளரா?",
		models.LanguageTelugu:  "మీరు ఉద్యోగినా లేదా సందర్శకుడా?",
		models.LanguageHindi:   "क्या आप कर्मचारी हैं या आगंतुक?",
	},
	KeyClassifyRetry: {
		models.LanguageEnglish: "Sorry, I didn't catch that. Please tell me whether you are an employee or a visitor.",
		models.LanguageTamil:   "மன்னிக்கவும், புரியவில்லை. நீங்கள் ஊழியரா அல்லது பார்வையாளரா என்று கூறுங்கள்.",
		models.LanguageTelugu:  "క్షమించండి, అర్థం కాలేదు. మీరు ఉద్యోగినా లేదా సందర్శకుడా అని చెప్పండి.",
		models.LanguageHindi:   "माफ़ कीजिए, समझ नहीं आया। कृपया बताइए कि आप कर्मचारी हैं या आगंतुक।",
	},
	KeyClassifiedEmployee: {
		models.LanguageEnglish: "Welcome back. Please look at the camera so I can verify your identity.",
		models.LanguageTamil:   "மீண்டும் வரவேற்கிறோம். உங்கள் அடையாளத்தை சரிபார்க்க கேமராவைப் பாருங்கள்.",
		models.LanguageTelugu:  "తిరిగి స్వాగతం. మీ గుర్తింపును ధృవీకరించడానికి కెమెరా వైపు చూడండి.",
		models.LanguageHindi:   "वापसी पर स्वागत है। कृपया कैमरे की ओर देखिए ताकि मैं आपकी पहचान सत्यापित कर सकूँ।",
	},
	KeyClassifiedVisitor: {
		models.LanguageEnglish: "Welcome. I'll need a few details to check you in. What is your name?",
		models.LanguageTamil:   "வரவேற்கிறோம். உங்களைப் பதிவு செய்ய சில விவரங்கள் தேவை. உங்கள் பெயர் என்ன?",
		models.LanguageTelugu:  "స్వాగతం. మిమ్మల్ని చెక్ ఇన్ చేయడానికి కొన్ని వివరాలు కావాలి. మీ పేరు ఏమిటి?",
		models.LanguageHindi:   "स्वागत है। चेक-इन के लिए मुझे कुछ जानकारी चाहिए। आपका नाम क्या है?",
	},
	KeyFaceRetry: {
		models.LanguageEnglish: "I couldn't recognize you. Let's try once more — please face the camera.",
	},
	KeyFaceVerified: {
		models.LanguageEnglish: "Welcome %s! You're verified. How can I help you?",
	},
	KeyManualIntro: {
		models.LanguageEnglish: "I couldn't verify you by face. Let's do it manually — please tell me your name and employee ID.",
	},
	KeyManualNeedID: {
		models.LanguageEnglish: "I still need your employee ID to continue.",
	},
	KeyManualNotFound: {
		models.LanguageEnglish: "I couldn't find that employee ID. Could you repeat it for me?",
	},
	KeyCodeSent: {
		models.LanguageEnglish: "I've sent a one-time code to the contact we have on file. Please read it out when you have it.",
	},
	KeyCodeMismatch: {
		models.LanguageEnglish: "That code doesn't match. Please try again.",
	},
	KeyCodeExpired: {
		models.LanguageEnglish: "That code has expired. I've sent you a fresh one.",
	},
	KeyCodeEscalate: {
		models.LanguageEnglish: "I couldn't verify the code. Please contact the security desk and they'll help you from here.",
	},
	KeyCodeVerified: {
		models.LanguageEnglish: "Thank you %s, you're verified. How can I help you?",
	},
	KeyVisitorNeedName: {
		models.LanguageEnglish: "May I have your name, please?",
		models.LanguageTamil:   "உங்கள் பெயரை கூற முடியுமா?",
		models.LanguageTelugu:  "దయచేసి మీ పేరు చెప్పగలరా?",
		models.LanguageHindi:   "कृपया अपना नाम बताइए।",
	},
	KeyVisitorNeedPhone: {
		models.LanguageEnglish: "What's the best phone number to reach you?",
		models.LanguageTamil:   "உங்களை தொடர்பு கொள்ள சிறந்த தொலைபேசி எண் எது?",
		models.LanguageTelugu:  "మిమ్మల్ని సంప్రదించడానికి ఫోన్ నంబర్ ఏమిటి?",
		models.LanguageHindi:   "आपसे संपर्क करने के लिए फ़ोन नंबर क्या है?",
	},
	KeyVisitorNeedPurpose: {
		models.LanguageEnglish: "What is the purpose of your visit?",
		models.LanguageTamil:   "உங்கள் வருகையின் நோக்கம் என்ன?",
		models.LanguageTelugu:  "మీ సందర్శన ఉద్దేశ్యం ఏమిటి?",
		models.LanguageHindi:   "आपके आने का उद्देश्य क्या है?",
	},
	KeyVisitorNeedHost: {
		models.LanguageEnglish: "Who are you here to meet?",
		models.LanguageTamil:   "நீங்கள் யாரை சந்திக்க வந்துள்ளீர்கள்?",
		models.LanguageTelugu:  "మీరు ఎవరిని కలవడానికి వచ్చారు?",
		models.LanguageHindi:   "आप किनसे मिलने आए हैं?",
	},
	KeyVisitorPhotoPrompt: {
		models.LanguageEnglish: "Thanks! Please look at the camera for a quick photo while I let %s know you're here.",
	},
	KeyVisitorPhotoRetry: {
		models.LanguageEnglish: "The photo didn't come through, but that's alright — we can continue.",
	},
	KeyHostNotified: {
		models.LanguageEnglish: "%s has been notified and will be with you shortly. Please take a seat.",
	},
	KeyHostNotifyFailed: {
		models.LanguageEnglish: "I couldn't reach your host directly, but the front desk has your details and will follow up. Please take a seat.",
	},
	KeyFlowComplete: {
		models.LanguageEnglish: "You're all checked in. Thank you!",
	},
	KeyAssistantReady: {
		models.LanguageEnglish: "You're verified — ask me anything, or say goodbye when you're done.",
	},
	KeySessionEnd: {
		models.LanguageEnglish: "Thank you! Say the wake phrase if you need anything else.",
	},
	KeyStateFallback: {
		models.LanguageEnglish: "Sorry, I didn't catch that. Could you repeat it?",
	},
	KeyAccessDeniedVisitor: {
		models.LanguageEnglish: "Visitors have limited access. Your host will help you with anything you need.",
	},
	KeyAccessDeniedAsleep: {
		models.LanguageEnglish: "Please verify your identity first. Say the wake phrase to start.",
	},
}

// Get returns the reply for key in the given language, formatted with args.
// Unsupported languages and untranslated keys fall back to English.
func Get(key Key, lang models.Language, args ...any) string {
	bucket, ok := catalog[key]
	if !ok {
		return ""
	}
	template, ok := bucket[lang]
	if !ok || template == "" {
		template = bucket[models.DefaultLanguage]
	}
	if len(args) == 0 {
		return template
	}
	return fmt.Sprintf(template, args...)
}

// wakePhrases and sleepPhrases are matched by case-insensitive containment.
// Matching any language's phrase also reveals the speaker's language.
var wakePhrases = map[models.Language][]string{
	models.LanguageEnglish: {"hey lobby", "hello lobby", "wake up"},
	models.LanguageTamil:   {"ஹே லாபி", "எழுந்திரு"},
	models.LanguageTelugu:  {"హే లాబీ", "లేచి రా"},
	models.LanguageHindi:   {"हे लॉबी", "जागो"},
}

var sleepPhrases = map[models.Language][]string{
	models.LanguageEnglish: {"go idle", "go to sleep", "goodbye lobby"},
	models.LanguageTamil:   {"தூங்கு"},
	models.LanguageTelugu:  {"నిద్రపో"},
	models.LanguageHindi:   {"सो जाओ"},
}

// WakePhrases returns the wake phrase set for a language.
func WakePhrases(lang models.Language) []string {
	if p, ok := wakePhrases[lang]; ok {
		return p
	}
	return wakePhrases[models.DefaultLanguage]
}

// SleepPhrases returns the sleep phrase set for a language.
func SleepPhrases(lang models.Language) []string {
	if p, ok := sleepPhrases[lang]; ok {
		return p
	}
	return sleepPhrases[models.DefaultLanguage]
}

// AllWakePhrases returns every configured wake phrase with its language.
func AllWakePhrases() map[models.Language][]string {
	return wakePhrases
}

// ContainsAny reports whether text contains any of the given phrases,
// case-insensitively.
func ContainsAny(text string, phrases []string) bool {
	lowered := strings.ToLower(text)
	for _, p := range phrases {
		if p != "" && strings.Contains(lowered, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// DetectScriptLanguage detects a language from Unicode script blocks.
// Returns empty when no strong script signal is present.
func DetectScriptLanguage(text string) models.Language {
	for _, r := range text {
		switch {
		case r >= 0x0900 && r <= 0x097F: // Devanagari
			return models.LanguageHindi
		case r >= 0x0B80 && r <= 0x0BFF: // Tamil
			return models.LanguageTamil
		case r >= 0x0C00 && r <= 0x0C7F: // Telugu
			return models.LanguageTelugu
		}
	}
	return ""
}

// languageLabels maps spoken language names and codes to language values.
var languageLabels = map[string]models.Language{
	"english": models.LanguageEnglish, "en": models.LanguageEnglish,
	"tamil": models.LanguageTamil, "ta": models.LanguageTamil, "தமிழ்": models.LanguageTamil,
	"telugu": models.LanguageTelugu, "te": models.LanguageTelugu, "తెలుగు": models.LanguageTelugu,
	"hindi": models.LanguageHindi, "hi": models.LanguageHindi, "हिंदी": models.LanguageHindi,
}

// ResolveLanguage maps a spoken label or code to a supported language.
// Returns empty when the label is not recognized.
func ResolveLanguage(label string) models.Language {
	return languageLabels[strings.ToLower(strings.TrimSpace(label))]
}

// switchTriggers are explicit in-conversation language switch requests.
var switchTriggers = map[models.Language][]string{
	models.LanguageTamil:   {"talk in tamil", "speak tamil"},
	models.LanguageTelugu:  {"talk in telugu", "speak telugu"},
	models.LanguageHindi:   {"talk in hindi", "speak hindi", "hindi mein"},
	models.LanguageEnglish: {"talk in english", "speak english", "english please"},
}

// DetectSwitchRequest checks whether text asks to change the conversation
// language. Returns empty when no switch is requested.
func DetectSwitchRequest(text string) models.Language {
	lowered := strings.ToLower(text)
	for lang, triggers := range switchTriggers {
		for _, phrase := range triggers {
			if strings.Contains(lowered, phrase) {
				return lang
			}
		}
	}
	return ""
}
