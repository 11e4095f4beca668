// Package logging provides a minimal logging interface and adapters for
// SupportMesh.
//
// The Logger interface defines the standard logging methods (Debug, Info,
// Warn, Error) that the broker, registry and agents use for observability.
// This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - WorkflowLogger with contextual helpers (component, session) and domain
//     helpers for gate decisions and escalations
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	broker := bus.New(func(o *bus.Options) { o.Logger = logger })
//
// The design intentionally keeps the interface minimal to avoid vendor
// lock-in while supporting structured logging where available.
package logging
