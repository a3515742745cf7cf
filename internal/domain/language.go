package domain

import "strings"

// Language is the session's answer language selection: "auto", "darija" or
// an explicit language code.
type Language string

const (
	LanguageAuto   Language = "auto"
	LanguageDarija Language = "darija"
)

const darijaDirective = "[PRIORITY_LANGUAGE: MOROCCAN_DARIJA] Réponds exclusivement en Darija marocaine."

// ParseLanguage normalises a user supplied selection. Empty means auto.
func ParseLanguage(s string) Language {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return LanguageAuto
	}
	return Language(s)
}

// Directive returns the prefix that tells the model which language to answer
// in, or "" for auto.
func (l Language) Directive() string {
	switch l {
	case LanguageAuto, "":
		return ""
	case LanguageDarija:
		return darijaDirective
	default:
		return "[PRIORITY_LANGUAGE: " + strings.ToUpper(string(l)) + "]"
	}
}

// Decorate prepends the directive to text, separated by a blank line.
func (l Language) Decorate(text string) string {
	d := l.Directive()
	if d == "" {
		return text
	}
	return d + "\n\n" + text
}

// IsRTL is a layout hint for the presentation side.
func (l Language) IsRTL() bool {
	return l == "ar" || l == LanguageDarija
}
