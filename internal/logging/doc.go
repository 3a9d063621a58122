// Package logging provides structured logging using uber/zap.
//
// Two modes are offered:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Output goes to stderr by default.
//
// Example Usage:
//
//	logger, err := logging.New(logging.FromConfig(cfg.Logging))
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	logger.Info("session opened", logging.Session(id))
package logging
