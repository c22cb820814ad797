package logger

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Length limits for logged values
const (
	MaxPathLength         = 500
	MaxUserIDLength       = 128
	MaxErrorMessageLength = 1000
	MaxTextLength         = 2000
	// MaxDebugContentLength bounds full prompts and completions in debug mode
	MaxDebugContentLength = 10000
)

// SanitizeString drops invalid UTF-8 and control characters other than
// whitespace, then truncates to maxLength bytes. maxLength <= 0 means
// MaxTextLength.
func SanitizeString(s string, maxLength int) string {
	if s == "" {
		return ""
	}
	if maxLength <= 0 {
		maxLength = MaxTextLength
	}
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			return r
		}
		return -1
	}, s)
	if len(s) <= maxLength {
		return s
	}
	cut := maxLength
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// SanitizePath bounds a request path
func SanitizePath(path string) string {
	return SanitizeString(path, MaxPathLength)
}

// SanitizeError bounds an error message; nil is ""
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeString(err.Error(), MaxErrorMessageLength)
}

// SanitizeUserID bounds a caller-supplied user id
func SanitizeUserID(userID string) string {
	return SanitizeString(userID, MaxUserIDLength)
}

// SanitizeText bounds free text written by users, such as coaching questions
func SanitizeText(text string) string {
	return SanitizeString(text, MaxTextLength)
}

// SanitizeDebugContent bounds prompts and completions logged in debug mode
func SanitizeDebugContent(content string) string {
	return SanitizeString(content, MaxDebugContentLength)
}
