// Package logging provides a minimal logging interface and adapters for taskmesh.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the router, factory and resolver use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - MeshLogger with component scoping and dispatch helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	mesh, err := taskmesh.New(func(o *taskmesh.Options) { o.Logger = logger })
//
// There is no package-level logger: every component receives its logger at
// construction time.
package logging
