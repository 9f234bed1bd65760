// Package logging provides structured logging for lanprobe.
//
// This package wraps a zap logger with package-level convenience functions so
// the discovery endpoint, the responder and the CLI all log the same way
// without threading a logger through every constructor.
//
// # Log Levels
//
//   - Debug: datagram hex dumps, per-attempt wait notices
//   - Info: endpoint bound, broadcast sent, reply received
//   - Warn: bind retries, stale replies, read errors that are retried
//   - Error: socket open failures, broadcast option failures, exhausted attempts
//
// # Structured Logging
//
//	logging.Warn("Couldn't bind listener socket",
//	    zap.Uint16("port", 20088),
//	    zap.Int("attempt", 2),
//	    zap.Error(err),
//	)
//
// # Configuration
//
// Logging is silent unless a level is given explicitly or through the
// LANPROBE_LOG_LEVEL environment variable:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// Output goes to stderr so that command output on stdout stays scriptable.
// LANPROBE_LOG_FORMAT=json switches from the colored console encoder to one
// JSON object per line.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. SetLogger and Initialize
// are meant to be called once at startup (or from a test before it runs).
package logging
