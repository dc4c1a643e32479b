// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - CellStore: Cell metadata, sidecar files, journal rows and conflicts
//   - ConfigStore: Application configuration
//   - EditorLauncher: Starts external editor processes
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - TraceStore: Execution trace history. Trace commands are disabled without it.
//   - RemoteFetcher: Downloads remote content. Remote cells fail to load on a cache miss without it.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
