// Package services implements the driving ports on top of the driven ports.
//
// # Components
//
//   - CellService: journaled mutations of the cell graph
//   - Journal: snapshot numbering, redo truncation and retention
//   - History: the undo/redo cursor
//   - LazyCache: resident metadata with lazily loaded content
//   - Reconciler: external editor sessions and conflict detection
//   - TraceService, TransferService, SettingsService
//
// Every mutation runs inside one CellStore transaction that also appends
// its snapshot, so the store and journal never disagree.
//
// # Import Rules
//
//   - Can Import: domain, ports/driven, ports/driving, logger
//   - Cannot Import: Any adapter package
package services
