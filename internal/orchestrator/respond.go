package orchestrator

import (
	"fmt"
	"strings"

	"github.com/normanking/buddy/internal/alert"
	"github.com/normanking/buddy/internal/emotion"
	"github.com/normanking/buddy/internal/pattern"
	"github.com/normanking/buddy/internal/prediction"
	"github.com/normanking/buddy/internal/profile"
	"github.com/normanking/buddy/pkg/types"
)

// Each template is a list of sentences; the short style keeps the first.
var englishTemplates = map[types.FineEmotion][]string{
	types.EmotionJoy: {
		"That's lovely to hear!",
		"Hold on to what made today good, and tell me more if you like.",
	},
	types.EmotionSadness: {
		"I'm sorry you're feeling low.",
		"You don't have to carry this alone. I'm here to listen whenever you want to talk.",
	},
	types.EmotionAnger: {
		"It sounds like something really frustrated you.",
		"It's okay to feel angry. Taking a few slow breaths before reacting can help.",
	},
	types.EmotionFear: {
		"That sounds frightening.",
		"You're safe to share it here. What is worrying you the most right now?",
	},
	types.EmotionAnxiety: {
		"It sounds like you're feeling anxious.",
		"Try breathing in for four counts and out for six. We can take this one step at a time.",
	},
	types.EmotionNeutral: {
		"Thanks for checking in.",
		"How has the rest of your day been?",
	},
	types.EmotionCrisis: {
		"I'm really concerned about your safety right now.",
		"You matter, and you deserve support immediately.",
	},
}

var tamilTemplates = map[types.FineEmotion][]string{
	types.EmotionJoy: {
		"கேட்க மிகவும் மகிழ்ச்சியாக இருக்கிறது!",
		"இன்றைய நல்ல தருணங்களைப் பற்றி இன்னும் சொல்லுங்கள்.",
	},
	types.EmotionSadness: {
		"நீங்கள் சோகமாக இருப்பதைக் கேட்டு வருந்துகிறேன்.",
		"நீங்கள் தனியாக இல்லை. நான் கேட்க இங்கே இருக்கிறேன்.",
	},
	types.EmotionAnger: {
		"ஏதோ உங்களை மிகவும் கோபப்படுத்தியிருக்கிறது.",
		"கோபம் வருவது இயல்பு. சில முறை மெதுவாக மூச்சு விடுங்கள்.",
	},
	types.EmotionFear: {
		"அது மிகவும் பயமாக இருந்திருக்கும்.",
		"இங்கே பகிர்வது பாதுகாப்பானது. இப்போது உங்களை அதிகம் கவலைப்படுத்துவது என்ன?",
	},
	types.EmotionAnxiety: {
		"நீங்கள் பதற்றமாக இருப்பது போல் தெரிகிறது.",
		"நான்கு எண்ணிக்கை மூச்சை உள்ளிழுத்து ஆறு எண்ணிக்கை வெளியே விடுங்கள்.",
	},
	types.EmotionNeutral: {
		"பகிர்ந்ததற்கு நன்றி.",
		"உங்கள் நாள் எப்படி போகிறது?",
	},
	types.EmotionCrisis: {
		"உங்கள் பாதுகாப்பு குறித்து நான் மிகவும் கவலைப்படுகிறேன்.",
		"நீங்கள் முக்கியமானவர், உடனடியாக உதவி பெற தகுதியானவர்.",
	},
}

const (
	helplineLine      = "Please reach out now: Tele-MANAS 14416, KIRAN 1800-599-0019, emergency 112."
	helplineLineTamil = "உடனே தொடர்பு கொள்ளுங்கள்: டெலி-மனஸ் 14416, கிரண் 1800-599-0019, அவசரம் 112."
	womenLine         = "Women Helpline 181 and the National Commission for Women (7827170170) can also help."
)

type replyInput struct {
	record   emotion.Record
	summary  pattern.Summary
	forecast *prediction.Forecast
	warning  string
	alert    *alert.Alert
	language profile.Language
	style    profile.ResponseStyle
}

func composeReply(in replyInput) string {
	switch in.language {
	case profile.LanguageTamil:
		return composeTamil(in)
	case profile.LanguageBilingual:
		return composeEnglish(in) + "\n" + composeTamil(in)
	default:
		return composeEnglish(in)
	}
}

func composeEnglish(in replyInput) string {
	parts := sentences(englishTemplates, in.record.FineEmotion, in.style)

	if in.style == profile.StyleDetailed {
		if line := trendLine(in.summary.Trend); line != "" {
			parts = append(parts, line)
		}
		if in.forecast != nil {
			parts = append(parts, in.forecast.Message)
		}
	}
	if in.warning != "" && in.style != profile.StyleShort {
		parts = append(parts, in.warning)
	}

	if urgent(in) {
		parts = append(parts, helplineLine)
	}
	if in.alert != nil {
		parts = append(parts, fmt.Sprintf("I've raised a %s wellness alert so you get support.", in.alert.Severity))
		if in.alert.Flags.SpecializedSupport {
			parts = append(parts, womenLine)
		}
		if in.alert.Flags.NotifyGuardians && !in.alert.GuardianConsent {
			parts = append(parts, "If you'd like, I can let your guardian know. Reply /consent "+in.alert.ID+".")
		}
	}
	return strings.Join(parts, " ")
}

func composeTamil(in replyInput) string {
	parts := sentences(tamilTemplates, in.record.FineEmotion, in.style)
	if urgent(in) {
		parts = append(parts, helplineLineTamil)
	}
	return strings.Join(parts, " ")
}

func sentences(table map[types.FineEmotion][]string, e types.FineEmotion, style profile.ResponseStyle) []string {
	tmpl, ok := table[e]
	if !ok {
		tmpl = table[types.EmotionNeutral]
	}
	if style == profile.StyleShort {
		return []string{tmpl[0]}
	}
	return append([]string(nil), tmpl...)
}

// urgent reports whether helplines must be shown.
func urgent(in replyInput) bool {
	return in.record.IsCrisis || in.record.FineEmotion == types.EmotionCrisis || in.alert != nil
}

func trendLine(t pattern.Trend) string {
	switch t {
	case pattern.TrendImproving:
		return "Your recent messages show your mood improving."
	case pattern.TrendDeclining:
		return "Your recent messages show your mood dipping."
	case pattern.TrendStable:
		return "Your mood has been fairly steady."
	}
	return ""
}
