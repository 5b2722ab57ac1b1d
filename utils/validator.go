// utils/validator.go - Input validation
package utils

import (
	"regexp"
	"strings"
)

var fileIDRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._/-]{0,254}$`)

// SanitizeText removes potentially harmful characters from free text
func SanitizeText(input string) string {
	// Remove leading/trailing spaces
	input = strings.TrimSpace(input)

	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	return input
}

// ValidFileID checks a storage reference; file contents live outside the engine.
func ValidFileID(fileID string) bool {
	if !fileIDRegex.MatchString(fileID) {
		return false
	}
	for _, part := range strings.Split(fileID, "/") {
		if part == "" || part == "." || part == ".." {
			return false
		}
	}
	return true
}
