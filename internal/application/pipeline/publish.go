package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"github.com/turtacn/leadscope/internal/domain/lead"
	"github.com/turtacn/leadscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/leadscope/pkg/errors"
)

// ArtifactUploader copies an exported file to object storage.
type ArtifactUploader interface {
	UploadFile(ctx context.Context, objectName, path string) error
}

// LeadPublisher announces scored leads to downstream consumers.
type LeadPublisher interface {
	PublishLeads(ctx context.Context, asOf time.Time, leads []*lead.Lead) error
}

// MetricsRecorder receives run metrics.  Push delivers them when the
// process is too short-lived to be scraped.
type MetricsRecorder interface {
	ObserveStage(stage string, elapsed time.Duration)
	ObserveLead(leadType, priority string, score float64)
	ObserveRecommendation(layer string)
	ObserveIssue(code string)
	SetRecords(table string, n int)
	SetCoverage(path string, ratio float64)
	RunCompleted(success bool, elapsed time.Duration)
	Push(ctx context.Context) error
}

// Publish applies the sinks in order: registration log, lead and
// recommendation repositories, CSV export, upload, event publish and
// metrics push.  The first failing sink stops the sequence.
func (p *Pipeline) Publish(ctx context.Context, res *Result) (err error) {
	start := time.Now()
	defer func() { p.observeRun(ctx, res, err == nil, time.Since(start)+res.Stats.Duration) }()

	if s := p.cfg.RegistrationStore; s != nil {
		if regs := p.cfg.Registry.Since(p.persistedSeq); len(regs) > 0 {
			if err := s.Append(ctx, regs...); err != nil {
				return errors.Wrap(err, errors.ErrCodeCacheError, "failed to persist account registrations")
			}
			p.persistedSeq += len(regs)
			p.logger.Info("account registrations persisted", logging.Int("new_keys", len(regs)))
		}
	}

	if p.cfg.Leads != nil {
		if err := p.cfg.Leads.ReplaceAll(ctx, res.Leads); err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to replace leads")
		}
	}
	if p.cfg.Recommendations != nil {
		if err := p.cfg.Recommendations.ReplaceAll(ctx, res.Recommendations); err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to replace recommendations")
		}
	}

	var paths []string
	if p.cfg.OutputDir != "" {
		if paths, err = ExportCSV(p.cfg.OutputDir, res); err != nil {
			return err
		}
		p.logger.Info("results exported", logging.String("dir", p.cfg.OutputDir), logging.Strings("files", paths))
	}

	if p.cfg.Uploader != nil {
		for _, path := range paths {
			if err := p.cfg.Uploader.UploadFile(ctx, filepath.Base(path), path); err != nil {
				return errors.Wrap(err, errors.ErrCodeExportFailed, "failed to upload export").WithDetail(path)
			}
		}
	}

	if p.cfg.Publisher != nil {
		if err := p.cfg.Publisher.PublishLeads(ctx, res.AsOf, res.Leads); err != nil {
			return errors.Wrap(err, errors.ErrCodePublishFailed, "failed to publish leads")
		}
	}
	return nil
}

func (p *Pipeline) observeRun(ctx context.Context, res *Result, success bool, elapsed time.Duration) {
	m := p.cfg.Metrics
	if m == nil {
		return
	}
	s := res.Stats
	m.SetRecords("assets", s.Assets)
	m.SetRecords("opportunities", s.Opportunities)
	m.SetRecords("projects", s.Projects)
	m.SetRecords("catalog", s.CatalogEntries)
	m.SetRecords("accounts", s.Accounts)
	m.SetCoverage("dense", res.Coverage.DenseRatio)
	m.SetCoverage("sparse", res.Coverage.SparseRatio)
	for _, l := range res.Leads {
		m.ObserveLead(string(l.Type), string(l.Priority), l.Score)
	}
	for _, r := range res.Recommendations {
		m.ObserveRecommendation(string(r.MatchLayer))
	}
	for _, i := range res.Issues {
		m.ObserveIssue(string(i.Code))
	}
	m.RunCompleted(success, elapsed)
	p.push(ctx)
}

func (p *Pipeline) observeFailure(ctx context.Context) {
	if p.cfg.Metrics == nil {
		return
	}
	p.cfg.Metrics.RunCompleted(false, 0)
	p.push(ctx)
}

// push is best effort: an unreachable gateway must not fail a run whose
// results are already stored.
func (p *Pipeline) push(ctx context.Context) {
	if err := p.cfg.Metrics.Push(ctx); err != nil {
		p.logger.Warn("metrics push failed", logging.Err(err))
	}
}
