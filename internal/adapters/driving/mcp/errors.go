// Package mcp provides an MCP (Model Context Protocol) server adapter for invoicesync.
// It lets AI assistants reconcile extracted invoice data onto ClickUp tasks.
package mcp

import "errors"

var (
	// ErrMissingReconciler is returned when the reconciler is not provided.
	ErrMissingReconciler = errors.New("mcp: reconciler is required")

	// ErrMissingInvoice is returned when a tool call carries no invoice.
	ErrMissingInvoice = errors.New("mcp: invoice is required")

	// ErrMappingsUnavailable is returned when a profile is requested but no
	// mapping service is configured.
	ErrMappingsUnavailable = errors.New("mcp: mapping profiles are not available")
)
