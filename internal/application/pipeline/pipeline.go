// Package pipeline runs the batch: normalize, resolve, detect, score and
// recommend, strictly in that order, then hands the result to the
// configured sinks.
package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/leadscope/internal/application/leadgen"
	"github.com/turtacn/leadscope/internal/application/recommending"
	"github.com/turtacn/leadscope/internal/application/resolution"
	"github.com/turtacn/leadscope/internal/application/scoring"
	"github.com/turtacn/leadscope/internal/domain/account"
	"github.com/turtacn/leadscope/internal/domain/installbase"
	"github.com/turtacn/leadscope/internal/domain/lead"
	"github.com/turtacn/leadscope/internal/domain/recommendation"
	"github.com/turtacn/leadscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/leadscope/pkg/errors"
)

// Stage names, in execution order.
const (
	StageNormalize = "normalize"
	StageResolve   = "resolve"
	StageDetect    = "detect"
	StageScore     = "score"
	StageRecommend = "recommend"
)

// Stages lists the stages in execution order.
var Stages = []string{StageNormalize, StageResolve, StageDetect, StageScore, StageRecommend}

// DefaultWorkers bounds the recommendation stage when no limit is set.
const DefaultWorkers = 4

// nearMissMargin is how far below the fuzzy threshold a best match may fall
// and still be reported as a low-confidence match.
const nearMissMargin = 15

// Sources supplies one ingestion batch.
type Sources interface {
	Snapshot(ctx context.Context) (*installbase.Snapshot, error)
}

// SnapshotFunc adapts a function to Sources.
type SnapshotFunc func(ctx context.Context) (*installbase.Snapshot, error)

// Snapshot calls f.
func (f SnapshotFunc) Snapshot(ctx context.Context) (*installbase.Snapshot, error) { return f(ctx) }

// Config holds the pipeline's collaborators.  Registry, Detector and Scorer
// are required; every sink is optional.
type Config struct {
	Registry  *account.Registry
	Detector  *leadgen.Detector
	Scorer    *scoring.Scorer
	Recommend recommending.Config
	Workers   int
	Logger    logging.Logger

	RegistrationStore account.RegistrationStore
	Leads             lead.Repository
	Recommendations   recommendation.Repository
	OutputDir         string
	Uploader          ArtifactUploader
	Publisher         LeadPublisher
	Metrics           MetricsRecorder
}

// Pipeline is the batch orchestrator.  A Pipeline may be run repeatedly;
// the account registry carries over between runs so canonical keys stay
// stable.
type Pipeline struct {
	cfg      Config
	resolver *resolution.Resolver
	logger   logging.Logger

	restored     bool
	persistedSeq int
}

// New validates cfg and creates a Pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Registry == nil {
		return nil, errors.InvalidParam("pipeline requires an account registry")
	}
	if cfg.Detector == nil {
		return nil, errors.InvalidParam("pipeline requires a detector")
	}
	if cfg.Scorer == nil {
		return nil, errors.InvalidParam("pipeline requires a scorer")
	}
	if cfg.Workers < 1 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNopLogger()
	}
	return &Pipeline{
		cfg:      cfg,
		resolver: resolution.NewResolver(cfg.Registry, cfg.Logger),
		logger:   cfg.Logger.Named("pipeline"),
	}, nil
}

// Execute runs the pipeline and publishes the result to every sink.
func (p *Pipeline) Execute(ctx context.Context, src Sources) (*Result, error) {
	res, err := p.Run(ctx, src)
	if err != nil {
		p.observeFailure(ctx)
		return nil, err
	}
	if err := p.Publish(ctx, res); err != nil {
		return res, err
	}
	return res, nil
}

// Run loads a snapshot and computes leads and recommendations.  It writes
// nothing except new canonical keys in the in-memory registry.
func (p *Pipeline) Run(ctx context.Context, src Sources) (*Result, error) {
	start := time.Now()
	if err := p.restore(ctx); err != nil {
		return nil, err
	}

	snap, err := src.Snapshot(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnknown, "failed to load sources")
	}

	res := &Result{
		AsOf:     p.cfg.Detector.AsOf(),
		Snapshot: snap,
		Stats:    newStats(),
	}
	res.Issues = append(res.Issues, snap.Issues...)
	keysBefore := len(p.cfg.Registry.Keys())

	timed := func(stage string, fn func() error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		t := time.Now()
		if err := fn(); err != nil {
			return errors.Wrap(err, errors.ErrCodeStageFailed, "stage "+stage+" failed")
		}
		elapsed := time.Since(t)
		res.Stats.StageDurations[stage] = elapsed
		if p.cfg.Metrics != nil {
			p.cfg.Metrics.ObserveStage(stage, elapsed)
		}
		p.logger.Debug("stage complete", logging.String("stage", stage), logging.Duration("elapsed", elapsed))
		return nil
	}

	if err := timed(StageNormalize, func() error {
		res.Issues = append(res.Issues, p.normalize(snap)...)
		return nil
	}); err != nil {
		return nil, err
	}
	if err := timed(StageResolve, func() error {
		res.Graph = p.resolver.Resolve(snap)
		res.Coverage = res.Graph.Coverage
		res.Issues = append(res.Issues, res.Graph.Issues...)
		return nil
	}); err != nil {
		return nil, err
	}
	var detected []*lead.Lead
	if err := timed(StageDetect, func() error {
		detected = p.cfg.Detector.Generate(snap.Assets, res.Graph)
		return nil
	}); err != nil {
		return nil, err
	}
	if err := timed(StageScore, func() error {
		res.Leads = p.cfg.Scorer.ScoreAll(detected, res.Graph)
		return nil
	}); err != nil {
		return nil, err
	}
	if err := timed(StageRecommend, func() error {
		return p.recommend(ctx, res)
	}); err != nil {
		return nil, err
	}

	res.Stats.fill(res, len(p.cfg.Registry.Keys())-keysBefore)
	res.Stats.Duration = time.Since(start)
	p.logger.Info("pipeline run complete",
		logging.Int("assets", res.Stats.Assets),
		logging.Int("accounts", res.Stats.Accounts),
		logging.Int("leads", res.Stats.Leads),
		logging.Int("recommendations", res.Stats.Recommendations),
		logging.Int("issues", res.Stats.Issues),
		logging.String("coverage", res.Coverage.String()),
		logging.Duration("elapsed", res.Stats.Duration),
	)
	return res, nil
}

// restore replays the persisted registration log once per Pipeline.
func (p *Pipeline) restore(ctx context.Context) error {
	if p.restored || p.cfg.RegistrationStore == nil {
		return nil
	}
	regs, err := p.cfg.RegistrationStore.Load(ctx)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to load account registrations")
	}
	p.cfg.Registry.Restore(regs)
	p.persistedSeq = len(p.cfg.Registry.Log())
	p.restored = true
	p.logger.Info("account registry restored", logging.Int("keys", len(regs)))
	return nil
}

// normalize repairs identifiers, derives product families and registers
// every account name seen, in source order, so key registration order is
// deterministic.
func (p *Pipeline) normalize(snap *installbase.Snapshot) []installbase.Issue {
	var issues []installbase.Issue
	issues = append(issues, installbase.AssignAssetIDs(snap.Assets)...)
	issues = append(issues, installbase.AssignOpportunityIDs(snap.Opportunities)...)
	issues = append(issues, installbase.AssignProjectIDs(snap.Projects)...)

	for _, a := range snap.Assets {
		a.ProductFamily = installbase.DeriveFamily(a.ProductFamily, a.ProductName, a.BusinessArea)
	}

	register := func(table string, row int, raw string) {
		if raw == "" || installbase.IsSentinel(raw) {
			return
		}
		m := p.cfg.Registry.NormalizeMatch(raw)
		if m.Method != account.MethodNew || m.Score == 0 || m.Score < p.cfg.Registry.Threshold()-nearMissMargin {
			return
		}
		p.logger.Debug("account name below match threshold",
			logging.String("table", table), logging.Int("row", row),
			logging.String("name", raw), logging.Int("best_score", m.Score))
		issues = append(issues, installbase.Issue{
			Code:    errors.ErrCodeLowConfidenceMatch,
			Table:   table,
			Row:     row,
			Field:   "account_name",
			Value:   raw,
			Message: "no canonical account cleared the threshold; registered as new",
		})
	}
	for _, a := range snap.Assets {
		register(installbase.TableAssets, a.Row, a.AccountName)
	}
	for _, o := range snap.Opportunities {
		register(installbase.TableOpportunities, o.Row, o.AccountName)
	}
	for _, pr := range snap.Projects {
		register(installbase.TableProjects, pr.Row, pr.AccountName)
	}
	return issues
}

// recommend fans out per asset.  Each worker writes its own slot, so the
// flattened output follows asset order regardless of scheduling.
func (p *Pipeline) recommend(ctx context.Context, res *Result) error {
	res.engine = recommending.NewEngine(recommending.NewCatalog(res.Snapshot.Catalog), p.cfg.Recommend, p.cfg.Logger)

	// Leads are sorted best first, so the first lead seen for an asset is
	// the one its recommendations attach to.
	topLead := make(map[string]string, len(res.Leads))
	for _, l := range res.Leads {
		if _, ok := topLead[l.AssetID]; !ok && l.AssetID != "" {
			topLead[l.AssetID] = l.ID
		}
	}

	assets := res.Snapshot.Assets
	slots := make([][]recommendation.Recommendation, len(assets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for i, a := range assets {
		i, a := i, a
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			slots[i] = res.engine.RecommendAsset(a, topLead[a.SerialID])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	n := 0
	for _, s := range slots {
		n += len(s)
	}
	res.Recommendations = make([]recommendation.Recommendation, 0, n)
	for _, s := range slots {
		res.Recommendations = append(res.Recommendations, s...)
	}
	return nil
}
