// Package logging provides structured logging for spinwheel runs.
//
// It wraps Go's log/slog to produce JSON-formatted logs with role context
// attached. Each rank in a wheel logs through a child logger carrying its
// run, cylinder and role attributes, which replaces the per-role side files
// the coordination protocol does not itself require.
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. Child loggers
// created via the With* methods share the underlying writer safely.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger(runDir, "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	roleLog := logger.WithCylinder(0).WithRole("slam_max")
//	roleLog.Info("bound improved", "bound", 42.0, "iter", 17)
//
// # Rotation
//
// Long runs can rotate the log file by size:
//
//	logger, err := logging.NewLoggerWithRotation(runDir, "INFO", logging.RotationConfig{
//	    MaxSizeMB:  10,
//	    MaxBackups: 3,
//	})
//
// # Testing
//
// Use [NopLogger] to discard all output:
//
//	logger := logging.NopLogger()
package logging
