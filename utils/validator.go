// utils/validator.go - Input validation
package utils

import (
	"regexp"
	"strings"
)

var (
	emailRegex      = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	identifierRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:-]{0,63}$`)
)

// ValidateEmail checks if email is valid
func ValidateEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// ValidateIdentifier checks an external entity reference such as a loan
// application or credit manager id.
func ValidateIdentifier(id string) bool {
	return identifierRegex.MatchString(id)
}

// SanitizeInput removes potentially harmful characters
func SanitizeInput(input string) string {
	// Remove leading/trailing spaces
	input = strings.TrimSpace(input)

	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	return input
}

// SanitizeOptional sanitizes an optional free-text field. A nil input stays
// nil so "not given" is never turned into an empty string.
func SanitizeOptional(input *string) *string {
	if input == nil {
		return nil
	}
	cleaned := SanitizeInput(*input)
	return &cleaned
}
