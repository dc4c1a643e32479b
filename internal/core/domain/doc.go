// Package domain defines the core entities of the cell store.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Cell: A positioned unit of content on the canvas
//   - Relationship: A directed edge between two cells
//   - ContentLocation: Where a cell's payload physically lives
//   - Snapshot: One journal entry made of reversible changes
//   - Conflict: An unresolved divergence between an external edit and the store
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
