package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/okian/coachplan/pkg/logger"
)

const logFilePermission = 0600

// SetupLogging initializes the global logger on stderr, mirrored into
// logFile when it is set. The returned func closes the file.
func SetupLogging(level, format, logFile string) (func() error, error) {
	var out io.Writer = os.Stderr
	closer := func() error { return nil }
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out = io.MultiWriter(os.Stderr, file)
		closer = file.Close
	}
	if err := logger.Init(logger.WithLevel(level), logger.WithFormat(format), logger.WithOutput(out)); err != nil {
		_ = closer()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if logFile != "" {
		logger.Get().Debug(context.Background(), "logging to file", logger.String("logFile", logFile))
	}
	return closer, nil
}
