// Package recommending maps assets and projects to ranked catalog services
// through an ordered list of matching strategies followed by urgency and
// keyword re-ranking.
package recommending

import (
	"sort"
	"strings"

	"github.com/turtacn/leadscope/internal/domain/installbase"
	"github.com/turtacn/leadscope/internal/domain/recommendation"
	"github.com/turtacn/leadscope/internal/infrastructure/monitoring/logging"
)

// Defaults.
const (
	DefaultTopN            = 5
	DefaultNearTermEOLDays = 365
)

// DefaultFallbackServices are proposed when no better match exists.
var DefaultFallbackServices = []string{
	"Installation and Startup Service",
	"Proactive Health Check",
	"Support Coverage Assessment",
}

// Re-ranking bonuses.
const (
	immediateBoost = 15
	plannedBoost   = 10
	exactKeyword   = 20
	relatedKeyword = 10
)

var (
	migrationWords = []string{"upgrade", "migration", "migrate", "modernization", "modernisation", "transition"}
	planningWords  = []string{"refresh", "planning", "plan", "assessment", "roadmap", "lifecycle"}
)

// Config tunes the engine.
type Config struct {
	TopN             int
	NearTermEOLDays  int
	FallbackServices []string
}

// DefaultConfig returns the default engine settings.
func DefaultConfig() Config {
	return Config{
		TopN:             DefaultTopN,
		NearTermEOLDays:  DefaultNearTermEOLDays,
		FallbackServices: DefaultFallbackServices,
	}
}

// Engine produces recommendations.  It is safe for concurrent use.
type Engine struct {
	catalog    *Catalog
	strategies []Strategy
	fallback   Strategy
	cfg        Config
	logger     logging.Logger
}

// NewEngine creates an Engine running the exact-product, category and
// fallback strategies in that order.
func NewEngine(catalog *Catalog, cfg Config, logger logging.Logger) *Engine {
	if cfg.TopN < 1 {
		cfg.TopN = DefaultTopN
	}
	if cfg.NearTermEOLDays <= 0 {
		cfg.NearTermEOLDays = DefaultNearTermEOLDays
	}
	if len(cfg.FallbackServices) == 0 {
		cfg.FallbackServices = DefaultFallbackServices
	}
	if catalog == nil {
		catalog = NewCatalog(nil)
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	fallback := Fallback(cfg.FallbackServices)
	return &Engine{
		catalog:    catalog,
		strategies: []Strategy{ExactProduct, Category, fallback},
		fallback:   fallback,
		cfg:        cfg,
		logger:     logger.Named("recommender"),
	}
}

// TopN returns the configured list length.
func (e *Engine) TopN() int { return e.cfg.TopN }

// RecommendAsset recommends services for an assessed asset.
func (e *Engine) RecommendAsset(a *installbase.Asset, leadID string) []recommendation.Recommendation {
	s := SubjectFromAsset(a)
	s.LeadID = leadID
	return e.Recommend(s)
}

// RecommendProject recommends services for a project.
func (e *Engine) RecommendProject(p *installbase.Project) []recommendation.Recommendation {
	return e.Recommend(SubjectFromProject(p))
}

// Recommend returns at most TopN recommendations with unique service names.
// The result is never empty: the fallback strategy always proposes
// something.
func (e *Engine) Recommend(s Subject) []recommendation.Recommendation {
	var cands []Candidate
	var layer recommendation.MatchLayer
	for _, strategy := range e.strategies {
		if cands = strategy(s, e.catalog); len(cands) > 0 {
			layer = cands[0].Layer
			break
		}
	}
	if layer != recommendation.LayerFallback && countUnique(cands) < e.cfg.TopN {
		cands = append(cands, e.fallback(s, e.catalog)...)
	}

	contextCats := recommendation.Categories(s.Context)
	for i := range cands {
		e.boost(&cands[i], s)
		cands[i].Bonus = keywordBonus(contextCats, cands[i].Entry)
	}

	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.Boost+a.Bonus != b.Boost+b.Bonus {
			return a.Boost+a.Bonus > b.Boost+b.Bonus
		}
		return strings.ToLower(a.Entry.ServiceName) < strings.ToLower(b.Entry.ServiceName)
	})

	out := make([]recommendation.Recommendation, 0, e.cfg.TopN)
	seen := make(map[string]struct{}, len(cands))
	for _, c := range cands {
		key := strings.ToLower(strings.TrimSpace(c.Entry.ServiceName))
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, recommendation.Recommendation{
			SubjectID:   s.ID,
			LeadID:      s.LeadID,
			Rank:        len(out) + 1,
			ServiceName: c.Entry.ServiceName,
			SKUCode:     c.Entry.SKUCode,
			Confidence:  c.Confidence,
			Urgency:     c.Urgency,
			MatchLayer:  c.Layer,
		})
		if len(out) == e.cfg.TopN {
			break
		}
	}

	e.logger.Debug("recommended",
		logging.String("subject", s.ID),
		logging.String("layer", string(layer)),
		logging.Int("candidates", len(cands)),
		logging.Int("returned", len(out)),
	)
	return out
}

// boost labels time-sensitive services.  Lapsed or past-EOL subjects favour
// upgrade and migration work; subjects nearing end of life favour refresh
// planning.
func (e *Engine) boost(c *Candidate, s Subject) {
	name := strings.ToLower(c.Entry.ServiceName + " " + c.Entry.SubPractice)
	c.Urgency, c.Boost = recommendation.UrgencyStandard, 0
	switch {
	case (s.Expired || s.PastEOL) && containsAny(name, migrationWords):
		c.Urgency, c.Boost = recommendation.UrgencyImmediate, immediateBoost
	case s.DaysUntilEOL >= 0 && s.DaysUntilEOL <= e.cfg.NearTermEOLDays && containsAny(name, planningWords):
		c.Urgency, c.Boost = recommendation.UrgencyPlanned, plannedBoost
	}
}

func keywordBonus(contextCats []string, e installbase.CatalogEntry) float64 {
	if len(contextCats) == 0 {
		return 0
	}
	svc := recommendation.Categories(e.Practice + " " + e.SubPractice + " " + e.ServiceName)
	switch {
	case recommendation.Overlaps(contextCats, svc):
		return exactKeyword
	case recommendation.RelatedAny(contextCats, svc):
		return relatedKeyword
	}
	return 0
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func countUnique(cands []Candidate) int {
	seen := make(map[string]struct{}, len(cands))
	for _, c := range cands {
		seen[strings.ToLower(strings.TrimSpace(c.Entry.ServiceName))] = struct{}{}
	}
	return len(seen)
}
