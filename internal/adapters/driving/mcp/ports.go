package mcp

import (
	"github.com/custodia-labs/invoicesync/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Reconciler writes invoice data onto tasks.
	Reconciler driving.Reconciler

	// Mappings resolves saved mapping profiles. Optional.
	Mappings driving.MappingService

	// Settings supplies the default reconcile options. Optional.
	Settings driving.SettingsService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Reconciler == nil {
		return ErrMissingReconciler
	}
	return nil
}
