// Package rpc implements the launcher side channel: JSON-RPC 2.0 messages,
// one per line, in both directions.
//
// The launcher sends requests and notifications; the plugin answers
// requests and sends its own notifications. Requests are handled
// concurrently. All output goes through a single writer so lines never
// interleave.
package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/matzehuels/humbleplugin/pkg/errors"
)

// Version is the JSON-RPC protocol version.
const Version = "2.0"

// Standard JSON-RPC error codes.
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)

// Launcher error codes.
const (
	AuthenticationRequired = 1
	BackendNotAvailable    = 4
	UnknownBackendResponse = 5
)

// Message is an inbound JSON-RPC message.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the message expects no response.
func (m *Message) IsNotification() bool {
	return len(m.ID) == 0 || string(m.ID) == "null"
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string { return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message) }

type resultResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result"`
}

type errorResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Error   *Error          `json:"error"`
}

type notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// ErrorFrom converts a handler error to the error object sent to the
// launcher.
func ErrorFrom(err error) *Error {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	switch errors.GetCode(err) {
	case errors.ErrCodeAuthRequired:
		return &Error{Code: AuthenticationRequired, Message: "Authentication required"}
	case errors.ErrCodeBackendUnavailable:
		return &Error{Code: BackendNotAvailable, Message: "Backend not available", Data: errors.UserMessage(err)}
	case errors.ErrCodeUnknownBackend, errors.ErrCodeWebpackParse:
		return &Error{Code: UnknownBackendResponse, Message: "Unknown backend response", Data: errors.UserMessage(err)}
	case errors.ErrCodeInvalidInput:
		return &Error{Code: InvalidParams, Message: errors.UserMessage(err)}
	}
	return &Error{Code: InternalError, Message: errors.UserMessage(err)}
}

// Decode unmarshals params into T. Empty params yield the zero value.
func Decode[T any](params json.RawMessage) (T, error) {
	var v T
	if len(params) == 0 || string(params) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(params, &v); err != nil {
		return v, &Error{Code: InvalidParams, Message: "invalid params", Data: err.Error()}
	}
	return v, nil
}
