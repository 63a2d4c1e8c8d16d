// Package clog provides structured logging for engine runs.
//
// It wraps Go's log/slog to provide JSON-formatted logs with context
// propagation (run id, task id, layer index) for post-hoc debugging of a
// scheduler run.
//
// Create a logger for a run directory:
//
//	logger, err := clog.New("/path/to/run", clog.LevelInfo)
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	runLogger := logger.WithRun("run-abc123")
//	taskLogger := runLogger.WithTask("task-1").WithLayer(0)
//	taskLogger.Info("task started")
//
// Use [NopLogger] in tests to discard all output.
package clog
