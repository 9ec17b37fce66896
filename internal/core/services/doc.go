// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The reconciliation engine lives here: the schema inspector, field matcher,
// type inferrer, field synthesizer, value setter, description appender and
// subtask expander, driven by Reconciler one call at a time.
package services
