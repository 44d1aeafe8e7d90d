// Package scoring ranks leads with a weighted, rule-based 0-100 score.
package scoring

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/turtacn/leadscope/internal/application/resolution"
	"github.com/turtacn/leadscope/internal/domain/lead"
	"github.com/turtacn/leadscope/internal/infrastructure/monitoring/logging"
)

// Config tunes the scorer.
type Config struct {
	Weights           Weights
	Urgency           UrgencyBands
	Priority          lead.PriorityBands
	StrategicFamilies []string
	AsOf              time.Time
}

// DefaultConfig returns the default weights and bands.
func DefaultConfig() Config {
	return Config{
		Weights:  DefaultWeights(),
		Urgency:  DefaultUrgencyBands(),
		Priority: lead.DefaultPriorityBands(),
	}
}

// Validate checks every invariant of the configuration.
func (c Config) Validate() error {
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	if err := c.Urgency.Validate(); err != nil {
		return err
	}
	return c.Priority.Validate()
}

// Scorer computes lead scores.  It holds no mutable state, so scoring is a
// pure function of the lead and its account context.
type Scorer struct {
	cfg       Config
	strategic map[string]struct{}
	logger    logging.Logger
}

// NewScorer validates cfg and creates a Scorer.
func NewScorer(cfg Config, logger logging.Logger) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	strategic := make(map[string]struct{}, len(cfg.StrategicFamilies))
	for _, f := range cfg.StrategicFamilies {
		strategic[strings.ToLower(strings.TrimSpace(f))] = struct{}{}
	}
	if cfg.AsOf.IsZero() {
		now := time.Now().UTC()
		cfg.AsOf = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	return &Scorer{cfg: cfg, strategic: strategic, logger: logger.Named("scorer")}, nil
}

// Bands returns the priority bands in use.
func (s *Scorer) Bands() lead.PriorityBands { return s.cfg.Priority }

// Breakdown returns the four sub-scores of l.
func (s *Scorer) Breakdown(l *lead.Lead, ctx AccountContext) lead.Breakdown {
	return lead.Breakdown{
		Urgency:      urgencyScore(l, s.cfg.Urgency),
		AccountSize:  accountSizeScore(ctx),
		Engagement:   engagementScore(ctx, s.cfg.AsOf),
		StrategicFit: strategicFitScore(l, ctx, s.strategic),
	}
}

// Score returns the weighted score of l, rounded to two decimals, and its
// priority.
func (s *Scorer) Score(l *lead.Lead, ctx AccountContext) (float64, lead.Priority) {
	score, _ := s.score(l, ctx)
	return score, s.cfg.Priority.Tier(score)
}

func (s *Scorer) score(l *lead.Lead, ctx AccountContext) (float64, lead.Breakdown) {
	b := s.Breakdown(l, ctx)
	w := s.cfg.Weights
	raw := b.Urgency*w.Urgency + b.AccountSize*w.AccountSize +
		b.Engagement*w.Engagement + b.StrategicFit*w.StrategicFit
	return math.Round(lead.Clamp(raw)*100) / 100, b
}

// ScoreAll scores every lead against its account in g and returns them
// sorted by score descending, then id ascending.  Leads are updated in
// place.
func (s *Scorer) ScoreAll(leads []*lead.Lead, g *resolution.Graph) []*lead.Lead {
	start := time.Now()
	contexts := make(map[string]AccountContext)
	tiers := make(map[lead.Priority]int, 4)
	for _, l := range leads {
		ctx, ok := contexts[l.AccountID]
		if !ok {
			ctx = ContextFor(g, l.AccountID)
			contexts[l.AccountID] = ctx
		}
		score, b := s.score(l, ctx)
		l.ApplyScore(score, s.cfg.Priority.Tier(score), b)
		tiers[l.Priority]++
	}

	out := make([]*lead.Lead, len(leads))
	copy(out, leads)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})

	s.logger.Info("leads scored",
		logging.Int("leads", len(out)),
		logging.Int("critical", tiers[lead.PriorityCritical]),
		logging.Int("high", tiers[lead.PriorityHigh]),
		logging.Int("medium", tiers[lead.PriorityMedium]),
		logging.Int("low", tiers[lead.PriorityLow]),
		logging.Duration("elapsed", time.Since(start)),
	)
	return out
}
