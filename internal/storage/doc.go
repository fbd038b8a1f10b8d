// Package storage persists the engine's output streams.
//
// It records:
//   - status changes (append-only history)
//   - terminal job results (also read back at startup to warm the result history)
//   - log records forwarded by the logx sink
//
// Persistence is best effort. The engine never reads from storage while running.
package storage
