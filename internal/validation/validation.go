// Package validation sanitizes prompt text and rejects unsafe input.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultLogLength is the maximum length of text passed to log fields.
const DefaultLogLength = 100

var (
	controlChars = regexp.MustCompile(`[\x{00}-\x{08}\x{0B}\x{0C}\x{0E}-\x{1F}\x{7F}-\x{9F}]`)

	dangerousPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(union\s+select|drop\s+table|delete\s+from|insert\s+into)`),
		regexp.MustCompile(`(?i)<script[^>]*>.*?</script>`),
		regexp.MustCompile(`(?i)(exec\s*\(|eval\s*\()`),
	}

	htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
)

// Error is a rejected input. Its message is safe to return to clients.
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

// ValidatePrompt checks prompt against the acceptance rules and returns the sanitized text:
// control characters stripped, & < > escaped, runs of whitespace collapsed to one space.
// Length is measured in runes before sanitizing.
func ValidatePrompt(prompt string, maxLength int) (string, error) {
	if prompt == "" {
		return "", &Error{Message: "Prompt cannot be empty"}
	}
	if n := utf8.RuneCountInString(prompt); maxLength > 0 && n > maxLength {
		return "", &Error{Message: fmt.Sprintf("Prompt too long: %d > %d", n, maxLength)}
	}

	sanitized := controlChars.ReplaceAllString(prompt, "")
	for _, p := range dangerousPatterns {
		if p.MatchString(sanitized) {
			return "", &Error{Message: "Prompt contains potentially dangerous content"}
		}
	}
	sanitized = htmlEscaper.Replace(sanitized)
	sanitized = strings.Join(strings.Fields(sanitized), " ")
	if sanitized == "" {
		return "", &Error{Message: "Prompt is empty after sanitization"}
	}
	return sanitized, nil
}

// SanitizeForLogging makes text safe for a log field: control characters stripped, & < >
// escaped, and cut to maxLength runes with a "..." suffix.
func SanitizeForLogging(text string, maxLength int) string {
	if text == "" {
		return "[empty]"
	}
	if maxLength <= 3 {
		maxLength = DefaultLogLength
	}
	sanitized := htmlEscaper.Replace(controlChars.ReplaceAllString(text, ""))
	if utf8.RuneCountInString(sanitized) > maxLength {
		runes := []rune(sanitized)
		sanitized = string(runes[:maxLength-3]) + "..."
	}
	return sanitized
}
