// Package logger provides a simple, thread-safe logging facility.
//
// The logger supports four levels: Debug, Info, Warn, and Error.
// Each log entry includes a timestamp, level, optional source tag, and
// message. The source tag identifies where the entry came from, such as
// "worker-2" or "conn-1f3a9c0e".
//
// # Basic Usage
//
// Using the default logger:
//
//	logger.Info("", "Listening on %s", addr)
//	logger.Info("worker-0", "Got a job, executing")
//	logger.Error("conn-1f3a9c0e", "Write failed: %v", err)
//
// Creating a custom logger:
//
//	l := logger.New(os.Stderr, logger.LevelDebug)
//	l.Debug("worker-1", "Debug message")
//
// # Log Levels
//
// Messages below the configured level are filtered:
//   - LevelDebug: all messages
//   - LevelInfo: Info, Warn, Error
//   - LevelWarn: Warn, Error
//   - LevelError: Error only
//
// ParseLevel converts configuration strings ("debug", "info", "warn",
// "error") into a Level.
//
// # Thread Safety
//
// All logging operations are protected by a mutex and safe for concurrent use.
package logger
