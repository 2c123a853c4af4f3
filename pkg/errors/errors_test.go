package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeUnknownBackend, "unexpected chunk: %d", 3)

	if err.Code != ErrCodeUnknownBackend {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeUnknownBackend)
	}
	if err.Message != "unexpected chunk: 3" {
		t.Errorf("Message = %v, want %v", err.Message, "unexpected chunk: 3")
	}

	expected := "UNKNOWN_BACKEND: unexpected chunk: 3"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(ErrCodeBackendUnavailable, cause, "GET /api/v1/user/order")

	if err.Cause != cause {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if errors.Unwrap(err) != cause {
		t.Errorf("Unwrap() = %v, want %v", errors.Unwrap(err), cause)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     Code
		expected bool
	}{
		{"matching code", AuthRequired("401"), ErrCodeAuthRequired, true},
		{"different code", UnknownBackend("shape"), ErrCodeAuthRequired, false},
		{"wrapped by fmt", fmt.Errorf("resolve: %w", InvalidGame("no name")), ErrCodeInvalidHumbleGame, true},
		{"plain error", errors.New("boom"), ErrCodeInternal, false},
		{"nil", nil, ErrCodeInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.expected {
				t.Errorf("Is() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestIsOutermostWins(t *testing.T) {
	inner := New(ErrCodeWebpackParse, "missing model")
	outer := Wrap(ErrCodeUnknownBackend, inner, "subscriber hub")

	if !Is(outer, ErrCodeUnknownBackend) {
		t.Error("outer code not reported")
	}
	if Is(outer, ErrCodeWebpackParse) {
		t.Error("inner code should be shadowed by the outer one")
	}
}

func TestGetCodeAndUserMessage(t *testing.T) {
	err := fmt.Errorf("ctx: %w", New(ErrCodePlatformNotSupported, "no linux build"))
	if got := GetCode(err); got != ErrCodePlatformNotSupported {
		t.Errorf("GetCode() = %q", got)
	}
	if got := UserMessage(err); got != "no linux build" {
		t.Errorf("UserMessage() = %q", got)
	}
	if got := GetCode(errors.New("x")); got != "" {
		t.Errorf("GetCode(plain) = %q, want empty", got)
	}
	if got := UserMessage(errors.New("x")); got != "x" {
		t.Errorf("UserMessage(plain) = %q", got)
	}
}

func TestValidateGameID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"torchlight2_steam", false},
		{"humblebundle_key_0", false},
		{"", true},
		{"has space", true},
		{"a/b", true},
		{"a?b", true},
		{"tab\tid", true},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			err := ValidateGameID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateGameID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidInput) {
				t.Errorf("error code = %v, want INVALID_INPUT", GetCode(err))
			}
		})
	}
}

func TestValidateGamekey(t *testing.T) {
	if err := ValidateGamekey("AbC123xyz"); err != nil {
		t.Errorf("valid gamekey rejected: %v", err)
	}
	for _, bad := range []string{"", "../etc", "k e y", "key%2F"} {
		if err := ValidateGamekey(bad); err == nil {
			t.Errorf("ValidateGamekey(%q) accepted", bad)
		}
	}
}
