// Package logger provides the structured logging interface used across e6dl.
//
// It wraps zerolog behind a small Logger interface with field chaining:
//
//	log, closer, err := logger.New(&cfg.Logging)
//	if err != nil {
//	    return err
//	}
//	defer closer.Close()
//
//	log.WithField("pool_id", 1234).Info("Resolving pool")
//	log.WithError(err).Warn("Download failed")
//
// There is no package-level logger. The CLI builds one at startup and passes
// it to every component; components fall back to Nop when given nil.
// NewTestLogger captures messages for assertions in tests.
package logger
