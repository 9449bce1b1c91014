package application

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ahrav/go-covenant/infrastructure/report"
	"github.com/ahrav/go-covenant/infrastructure/store"
	"github.com/ahrav/go-covenant/internal/domain"
	"github.com/ahrav/go-covenant/internal/ports"
)

// ReportName is the object name of the published risk table.
const ReportName = "clause_risks.csv"

// Job describes one contract analysis run.
type Job struct {
	RunID        string
	DocumentPath string
	ContractName string
	Description  string
	// Notify sends the alert when a notifier is configured.
	Notify bool
	// Recipient overrides the notifier's default address.
	Recipient string
	// ArtifactDir receives the rewrite digest. Empty skips the digest.
	ArtifactDir string
}

// Sinks are the collaborators a job reads from and writes to. Every field
// except Chunker may be nil.
type Sinks struct {
	Chunker  ports.DocumentChunker
	Store    ports.TabularStore
	Reports  ports.ReportStore
	Notifier ports.AlertNotifier
}

// JobResult is the outcome of Execute.
type JobResult struct {
	Records    []domain.ClauseRecord
	Summary    domain.RiskSummary
	ReportLink string
	DigestPath string
	Elapsed    time.Duration
}

// Execute chunks the document, analyzes every clause and hands the
// records to the configured sinks. Sink failures are joined into the
// returned error alongside a complete result. A canceled run returns the
// records finished so far and skips the sinks.
func (rt *Runtime) Execute(ctx context.Context, job Job, sinks Sinks, logger *slog.Logger) (*JobResult, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if sinks.Chunker == nil {
		return nil, errors.New("no document chunker configured")
	}
	logger = logger.With("run_id", job.RunID)
	start := time.Now()

	clauses, err := sinks.Chunker.ExtractClauses(ctx, job.DocumentPath)
	if err != nil {
		return nil, fmt.Errorf("failed to extract clauses: %w", err)
	}
	if len(clauses) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoClauses, job.DocumentPath)
	}
	logger.InfoContext(ctx, "clauses extracted", "document", job.DocumentPath, "count", len(clauses))

	records, err := rt.Pipeline.Run(ctx, clauses, rt.Config.Analysis.StartID)
	res := &JobResult{Records: records, Summary: domain.Summarize(records)}
	if err != nil {
		res.Elapsed = time.Since(start)
		return res, err
	}

	var errs []error

	header, rows := domain.Header(), domain.Rows(records)
	if sinks.Store != nil {
		if err := sinks.Store.UpsertRows(ctx, header, rows); err != nil {
			errs = append(errs, err)
		}
	}

	if sinks.Reports != nil {
		var buf bytes.Buffer
		if err := store.EncodeCSV(&buf, header, rows); err != nil {
			errs = append(errs, err)
		} else if link, err := sinks.Reports.Publish(ctx, job.RunID, ReportName, buf.Bytes(), "text/csv"); err != nil {
			errs = append(errs, err)
		} else {
			res.ReportLink = link
		}
	}

	if job.ArtifactDir != "" && res.Summary.High > 0 {
		path := filepath.Join(job.ArtifactDir, report.DigestName)
		if err := writeDigest(path, records); err != nil {
			errs = append(errs, err)
		} else {
			res.DigestPath = path
		}
	}

	if job.Notify && sinks.Notifier != nil {
		if err := sinks.Notifier.Send(ctx, rt.alert(job, res)); err != nil {
			errs = append(errs, err)
		}
	}

	res.Elapsed = time.Since(start)
	logger.InfoContext(ctx, "run complete",
		"records", res.Summary.Total,
		"high", res.Summary.High,
		"medium", res.Summary.Medium,
		"low", res.Summary.Low,
		"unknown", res.Summary.Unknown,
		"elapsed", res.Elapsed,
	)
	return res, errors.Join(errs...)
}

func (rt *Runtime) alert(job Job, res *JobResult) ports.Alert {
	name := job.ContractName
	if name == "" {
		name = filepath.Base(job.DocumentPath)
	}
	a := ports.Alert{
		Subject:             fmt.Sprintf("Compliance risk report: %s", name),
		Recipient:           job.Recipient,
		ContractName:        name,
		ContractDescription: job.Description,
		Total:               res.Summary.Total,
		High:                res.Summary.High,
		Medium:              res.Summary.Medium,
		Low:                 res.Summary.Low,
		ReportLink:          res.ReportLink,
	}
	if res.DigestPath != "" {
		a.Attachments = []string{res.DigestPath}
	}
	return a
}

func writeDigest(path string, records []domain.ClauseRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create digest directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(report.RewriteDigest(records)), 0o644); err != nil {
		return fmt.Errorf("failed to write digest: %w", err)
	}
	return nil
}
