package ingest

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/turtacn/leadscope/internal/domain/installbase"
	"github.com/turtacn/leadscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/leadscope/pkg/errors"
)

// Files names the CSV file of each source table.  An empty path means the
// table is absent and read as empty.
type Files struct {
	Assets        string
	Opportunities string
	Projects      string
	Catalog       string
}

// Source loads a snapshot from a set of CSV files.
type Source struct {
	files  Files
	logger logging.Logger
}

// NewSource creates a Source.
func NewSource(files Files, logger logging.Logger) *Source {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Source{files: files, logger: logger.Named("ingest")}
}

// Snapshot reads every table.  A file that cannot be opened or parsed fails
// the whole load with ErrCodeSourceRead; bad cells only add issues.
func (s *Source) Snapshot(ctx context.Context) (*installbase.Snapshot, error) {
	start := time.Now()
	snap := &installbase.Snapshot{}

	steps := []struct {
		table string
		path  string
		read  func(io.Reader) ([]installbase.Issue, error)
	}{
		{installbase.TableAssets, s.files.Assets, func(r io.Reader) ([]installbase.Issue, error) {
			var (
				issues []installbase.Issue
				err    error
			)
			snap.Assets, issues, err = ReadAssets(r)
			return issues, err
		}},
		{installbase.TableOpportunities, s.files.Opportunities, func(r io.Reader) ([]installbase.Issue, error) {
			var (
				issues []installbase.Issue
				err    error
			)
			snap.Opportunities, issues, err = ReadOpportunities(r)
			return issues, err
		}},
		{installbase.TableProjects, s.files.Projects, func(r io.Reader) ([]installbase.Issue, error) {
			var (
				issues []installbase.Issue
				err    error
			)
			snap.Projects, issues, err = ReadProjects(r)
			return issues, err
		}},
		{installbase.TableCatalog, s.files.Catalog, func(r io.Reader) ([]installbase.Issue, error) {
			var (
				issues []installbase.Issue
				err    error
			)
			snap.Catalog, issues, err = ReadCatalog(r)
			return issues, err
		}},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if step.path == "" {
			s.logger.Debug("source table not configured", logging.String("table", step.table))
			continue
		}
		issues, err := readFile(step.path, step.read)
		if err != nil {
			return nil, err
		}
		snap.Issues = append(snap.Issues, issues...)
	}

	s.logger.Info("sources loaded",
		logging.Int("assets", len(snap.Assets)),
		logging.Int("opportunities", len(snap.Opportunities)),
		logging.Int("projects", len(snap.Projects)),
		logging.Int("catalog", len(snap.Catalog)),
		logging.Int("issues", len(snap.Issues)),
		logging.Duration("elapsed", time.Since(start)),
	)
	return snap, nil
}

func readFile(path string, read func(io.Reader) ([]installbase.Issue, error)) ([]installbase.Issue, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSourceRead, "failed to open source table").WithDetail(path)
	}
	defer f.Close()
	issues, err := read(f)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSourceRead, "failed to read source table").WithDetail(path)
	}
	return issues, nil
}
