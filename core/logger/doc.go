// Package logger provides a structured logging facility based on Zap.
//
// It offers a configured logger instance that supports different environments
// (development vs production) and integrates with the Fiber web framework.
//
// # Correlation
//
// Two identifiers tie log lines together. WithRayID attaches the per-request
// RayID set by the rayid middleware. WithTrace attaches the trace id of an
// audit ledger entry, so that a failed bootstrap or sync can be found both in
// the audit table and in process output.
//
// # Usage
//
//	log, _ := logger.New(&logger.Config{Level: "info"})
//	log.Info("Server started")
//
//	l := logger.WithTrace(log, entry.TraceID)
//	l.Error("Pull failed", zap.Error(err))
package logger
