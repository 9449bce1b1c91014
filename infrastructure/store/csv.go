// Package store holds the tabular sinks for analysis results.
package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ahrav/go-covenant/internal/ports"
)

var _ ports.TabularStore = (*CSVStore)(nil)

// CSVStore writes rows to a single CSV file. Every UpsertRows call replaces
// the file contents; readers never observe a partially written file.
type CSVStore struct {
	path   string
	logger *slog.Logger
}

// NewCSVStore returns a store writing to path. A nil logger discards.
func NewCSVStore(path string, logger *slog.Logger) *CSVStore {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &CSVStore{path: path, logger: logger}
}

// Path returns the destination file.
func (s *CSVStore) Path() string { return s.path }

// UpsertRows writes header followed by rows.
func (s *CSVStore) UpsertRows(ctx context.Context, header []string, rows [][]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.write(header, rows); err != nil {
		return ports.NewStoreError("csv", "upsert", err)
	}
	s.logger.InfoContext(ctx, "rows written", "path", s.path, "rows", len(rows))
	return nil
}

func (s *CSVStore) write(header []string, rows [][]string) (err error) {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err := EncodeCSV(tmp, header, rows); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	return nil
}

// EncodeCSV writes header, when non-empty, followed by rows to w.
func EncodeCSV(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if len(header) > 0 {
		if err := cw.Write(header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}
	return nil
}
