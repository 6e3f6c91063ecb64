package indicator

import (
	"os"
	"strings"
)

type locale string

const (
	localeEnglish locale = "en"
	localeFrench  locale = "fr"
)

type messages struct {
	recording  string
	processing string
	errorText  string
}

func indicatorMessagesFromEnv() messages {
	return indicatorMessages(resolveLocale(os.Getenv("LANG")))
}

func resolveLocale(raw string) locale {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if strings.HasPrefix(raw, "fr") {
		return localeFrench
	}
	return localeEnglish
}

func indicatorMessages(tag locale) messages {
	switch tag {
	case localeFrench:
		return messages{
			recording:  "Lilibet écoute…",
			processing: "Transcription…",
			errorText:  "Échec de l'enregistrement",
		}
	default:
		return messages{
			recording:  "Lilibet is listening…",
			processing: "Transcribing…",
			errorText:  "Recording failed",
		}
	}
}
