package errors

import (
	"strings"
	"unicode"
)

// maxIDLength bounds identifiers received from the host.
const maxIDLength = 256

// ValidateGameID validates a game id received over RPC.
//
// Game ids are Humble machine names, optionally suffixed with "_<n>" for
// split keys. They never contain whitespace, control characters or URL
// delimiters, so anything else is rejected before it reaches a URL or a
// humble:// URI.
func ValidateGameID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidInput, "game id cannot be empty")
	}
	if len(id) > maxIDLength {
		return New(ErrCodeInvalidInput, "game id too long (max %d characters)", maxIDLength)
	}
	for _, r := range id {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return New(ErrCodeInvalidInput, "game id contains invalid characters")
		}
	}
	if strings.ContainsAny(id, `/\?#&`) {
		return New(ErrCodeInvalidInput, "game id contains reserved characters: %q", id)
	}
	return nil
}

// ValidateGamekey validates an order gamekey before it is placed in a path.
func ValidateGamekey(key string) error {
	if key == "" {
		return New(ErrCodeInvalidInput, "gamekey cannot be empty")
	}
	for _, r := range key {
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-') {
			return New(ErrCodeInvalidInput, "gamekey contains invalid characters: %q", key)
		}
	}
	return nil
}
