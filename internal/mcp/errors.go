// Package mcp implements the Model Context Protocol server exposing
// the extraction and retrieval engine to AI clients.
package mcp

import (
	"context"
	stderrors "errors"
	"fmt"

	sterrors "github.com/steeltrace/steeltrace/internal/errors"
)

// MCP protocol error codes.
const (
	// ErrCodeDocumentNotFound indicates an unknown document or
	// knowledge base id.
	ErrCodeDocumentNotFound = -32001

	// ErrCodeProviderFailed indicates an LLM or embedding call failed.
	ErrCodeProviderFailed = -32002

	// ErrCodeTimeout indicates the request timed out or was cancelled.
	ErrCodeTimeout = -32003

	// ErrCodeStorageFailed indicates a store or vector index failure.
	ErrCodeStorageFailed = -32004

	// Standard JSON-RPC error codes.
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// MCPError is an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// NewInvalidParamsError creates an invalid-params error.
func NewInvalidParamsError(message string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: message}
}

// NewMethodNotFoundError creates a method-not-found error for a tool.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{Code: ErrCodeMethodNotFound, Message: "tool not found: " + name}
}

// MapError converts internal errors to MCP protocol errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}
	var mcpErr *MCPError
	if stderrors.As(err, &mcpErr) {
		return mcpErr
	}

	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "request timed out"}
	case stderrors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "request was cancelled"}
	}

	switch sterrors.GetCode(err) {
	case sterrors.ErrCodeInputNotFound:
		return &MCPError{Code: ErrCodeDocumentNotFound, Message: err.Error()}
	case sterrors.ErrCodeInvalidQuery, sterrors.ErrCodeInvalidInput:
		return &MCPError{Code: ErrCodeInvalidParams, Message: err.Error()}
	case sterrors.ErrCodeCancelled:
		return &MCPError{Code: ErrCodeTimeout, Message: err.Error()}
	case sterrors.ErrCodeNoModelAvailable, sterrors.ErrCodeNoCredentials,
		sterrors.ErrCodeProviderTransient, sterrors.ErrCodeProviderPermanent,
		sterrors.ErrCodeEmbeddingFailed:
		return &MCPError{Code: ErrCodeProviderFailed, Message: err.Error()}
	case sterrors.ErrCodeStorageTransient, sterrors.ErrCodeStorageFailed,
		sterrors.ErrCodeVectorBackendUnavailable, sterrors.ErrCodeDimensionMismatch:
		return &MCPError{Code: ErrCodeStorageFailed, Message: err.Error()}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: err.Error()}
	}
}
