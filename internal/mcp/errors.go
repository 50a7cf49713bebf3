// Package mcp exposes the matching engine as a Model Context Protocol server.
package mcp

import (
	"context"
	"errors"
	"fmt"

	smerrors "github.com/Aman-CERP/schemamatch/internal/errors"
)

// Custom MCP error codes.
const (
	// ErrCodeIndexNotLoaded indicates no catalog index is loaded yet.
	ErrCodeIndexNotLoaded = -32001

	// ErrCodeDatabase indicates the catalog database is unreachable.
	ErrCodeDatabase = -32002

	// ErrCodeTimeout indicates the request timed out or was canceled.
	ErrCodeTimeout = -32003

	// ErrCodeCatalogUnavailable indicates the catalog file is missing or unreadable.
	ErrCodeCatalogUnavailable = -32004

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

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}
	if e, ok := smerrors.As(err); ok {
		return mapCodedError(e)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

// NewInvalidParamsError creates an error for invalid parameters.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewResourceNotFoundError creates an error for unknown resources.
func NewResourceNotFoundError(uri string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Resource '%s' not found.", uri),
	}
}

func mapCodedError(e *smerrors.Error) *MCPError {
	message := e.Message
	if e.Suggestion != "" {
		message = fmt.Sprintf("%s. %s", e.Message, e.Suggestion)
	}

	switch e.Code {
	case smerrors.ErrCodeIndexNotLoaded:
		return &MCPError{Code: ErrCodeIndexNotLoaded, Message: message}
	case smerrors.ErrCodeDatabaseTimeout:
		return &MCPError{Code: ErrCodeTimeout, Message: message}
	case smerrors.ErrCodeFileNotFound, smerrors.ErrCodeFilePermission,
		smerrors.ErrCodeCatalogCorrupt, smerrors.ErrCodeLockUnavailable:
		return &MCPError{Code: ErrCodeCatalogUnavailable, Message: message}
	}

	switch e.Category {
	case smerrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case smerrors.CategoryDatabase:
		return &MCPError{Code: ErrCodeDatabase, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
