package cmdlog

import (
	"go.uber.org/zap"

	"tripweave/internal/metrics"
)

// Run wraps one CLI command with run/error counters and structured logging.
func Run(log *zap.Logger, cmd string, f func() error) error {
	metrics.IncCommandRun(cmd)
	err := f()
	if err != nil {
		metrics.IncCommandError(cmd)
		log.Error(cmd+" failed", zap.Error(err))
	} else {
		log.Info(cmd + " ok")
	}
	return err
}
