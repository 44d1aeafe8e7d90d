package scoring

import (
	"strings"
	"time"

	"github.com/turtacn/leadscope/internal/application/resolution"
	"github.com/turtacn/leadscope/internal/domain/installbase"
	"github.com/turtacn/leadscope/internal/domain/lead"
	"github.com/turtacn/leadscope/internal/domain/recommendation"
)

// AccountContext is the account-level evidence a lead is scored against.
// It is built only from ingested records.
type AccountContext struct {
	AssetCount    int
	Opportunities []*installbase.Opportunity
	Projects      []*installbase.Project
}

// ContextFor collects the context of an account from the graph.  Unknown
// accounts yield an empty context.
func ContextFor(g *resolution.Graph, accountID string) AccountContext {
	if g == nil {
		return AccountContext{}
	}
	links := g.Links(accountID)
	if links == nil {
		return AccountContext{}
	}
	return AccountContext{
		AssetCount:    len(links.Assets),
		Opportunities: links.Opportunities,
		Projects:      links.Projects,
	}
}

// urgencyScore bands the days past end of life or expiry.
func urgencyScore(l *lead.Lead, bands UrgencyBands) float64 {
	d := l.UrgencyDays
	var s float64
	switch {
	case d >= bands.Critical:
		s = 100
	case d >= bands.High:
		s = 80
	case d >= bands.Elevated:
		s = 60
	case d > 0:
		s = 40
	default:
		s = 20
	}
	if l.Type == lead.TypeServiceGap && s < serviceGapUrgencyFloor {
		s = serviceGapUrgencyFloor
	}
	return s
}

// An uncovered asset is a present gap even with no elapsed time.
const serviceGapUrgencyFloor = 40

func assetCountBand(n int) float64 {
	switch {
	case n >= 50:
		return 100
	case n >= 20:
		return 80
	case n >= 10:
		return 60
	case n >= 5:
		return 40
	default:
		return 20
	}
}

func sizeCategoryBand(c installbase.SizeCategory) float64 {
	switch c {
	case installbase.SizeEnterprise:
		return 100
	case installbase.SizeLarge:
		return 80
	case installbase.SizeMedium:
		return 60
	case installbase.SizeSmall:
		return 40
	}
	return 0
}

// accountSizeScore bands the install-base size.  When any project of the
// account has a recognisable size category the largest one is averaged in;
// otherwise asset count alone decides.
func accountSizeScore(ctx AccountContext) float64 {
	assets := assetCountBand(ctx.AssetCount)
	best := 0.0
	for _, p := range ctx.Projects {
		if c, ok := installbase.ParseSizeCategory(p.SizeCategory); ok {
			if b := sizeCategoryBand(c); b > best {
				best = b
			}
		}
	}
	if best == 0 {
		return assets
	}
	return (assets + best) / 2
}

const (
	perOpportunityPoints = 12
	maxCountedOpps       = 5
	recentProjectDays    = 730
	olderProjectDays     = 1825
)

// engagementScore combines open opportunities with the recency of the last
// delivered project.
func engagementScore(ctx AccountContext, asOf time.Time) float64 {
	n := len(ctx.Opportunities)
	if n > maxCountedOpps {
		n = maxCountedOpps
	}
	s := float64(n * perOpportunityPoints)

	latest := -1
	for _, p := range ctx.Projects {
		t := p.LastActivity()
		if t == nil {
			continue
		}
		age := installbase.DaysBetween(*t, asOf)
		if age < 0 {
			age = 0
		}
		if latest < 0 || age < latest {
			latest = age
		}
	}
	switch {
	case latest < 0:
	case latest <= recentProjectDays:
		s += 40
	case latest <= olderProjectDays:
		s += 25
	default:
		s += 10
	}
	return lead.Clamp(s)
}

// strategicFitScore rates how well the lead's product family aligns with
// what the account already buys.
func strategicFitScore(l *lead.Lead, ctx AccountContext, strategic map[string]struct{}) float64 {
	family := recommendation.Categories(l.ProductFamily)
	for _, p := range ctx.Projects {
		if recommendation.Overlaps(family, recommendation.Categories(p.PracticeCode)) {
			return 100
		}
	}
	for _, o := range ctx.Opportunities {
		if o.ProductLine == "" {
			continue
		}
		if strings.EqualFold(o.ProductLine, l.ProductFamily) ||
			recommendation.Overlaps(family, recommendation.Categories(o.ProductLine)) {
			return 80
		}
	}
	if _, ok := strategic[strings.ToLower(l.ProductFamily)]; ok && l.ProductFamily != "" {
		return 60
	}
	return 30
}
