// Package domain defines the core business entities for invoicesync.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - InvoiceRecord: Extracted invoice header values plus line items
//   - Entry: A semantic key and its value, known or unknown
//   - FieldDescriptor: A custom field defined on a task list
//   - SchemaIndex: A list's custom fields keyed by normalised name
//   - ReconciliationReport: Per-key and per-item outcomes of one call
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
