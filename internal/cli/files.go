package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/coachplan/internal/adapters/ingest"
	"github.com/okian/coachplan/internal/domain/model"
	"github.com/okian/coachplan/internal/domain/rules"
	"github.com/okian/coachplan/pkg/logger"
)

const directoryPermission = 0750

// loadRules reads path, or returns the built-in table when path is empty.
func loadRules(ctx context.Context, path string) (*rules.Table, error) {
	if path == "" {
		return rules.Default()
	}
	return rules.LoadFile(ctx, path)
}

// readFile opens path and hands it to read.
func readFile(path string, read func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	if err := read(f); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// writeFile creates path, with its directory, and hands it to write.
func writeFile(ctx context.Context, path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	logger.Get().Info(ctx, "report written", logger.String("file", path))
	return nil
}

// readSessions reads a sessions CSV and logs every rejected line.
func readSessions(ctx context.Context, path string, loc *time.Location, stats *Stats) (ingest.Sessions, error) {
	var out ingest.Sessions
	err := readFile(path, func(r io.Reader) error {
		var err error
		out, err = ingest.ReadSessions(r, loc)
		return err
	})
	if err != nil {
		return ingest.Sessions{}, err
	}
	for _, e := range out.Errors {
		logger.Get().Warn(ctx, "row rejected", logger.String("file", path), logger.Int("line", e.Line),
			logger.String("field", e.Field), logger.String("reason", e.Msg))
	}
	stats.RowsRead += len(out.Inputs) + len(out.Errors)
	stats.RowsRejected += len(out.Errors)
	return out, nil
}

// readStaff reads the roster and, when set, the availability grid.
func readStaff(roster, availability string, loc *time.Location) ([]model.Coach, []model.Availability, error) {
	var (
		coaches []model.Coach
		windows []model.Availability
	)
	err := readFile(roster, func(r io.Reader) error {
		var err error
		coaches, err = ingest.ReadRoster(r)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	if availability == "" {
		return coaches, nil, nil
	}
	err = readFile(availability, func(r io.Reader) error {
		var err error
		windows, err = ingest.ReadAvailability(r, loc)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return coaches, windows, nil
}
