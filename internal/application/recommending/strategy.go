package recommending

import (
	"strings"

	"github.com/turtacn/leadscope/internal/domain/installbase"
	"github.com/turtacn/leadscope/internal/domain/recommendation"
)

// Layer confidence bands.
const (
	ConfidenceExactWithSKU = 95
	ConfidenceExact        = 85
	ConfidenceCategory     = 65
	ConfidenceFallback     = 50
)

// Subject is what a recommendation is computed for: an asset or a project.
type Subject struct {
	ID            string
	LeadID        string
	ProductNumber string
	ProductName   string
	Family        string
	Context       string

	Expired      bool
	PastEOL      bool
	DaysUntilEOL int
}

// SubjectFromAsset describes an assessed asset.
func SubjectFromAsset(a *installbase.Asset) Subject {
	return Subject{
		ID:            a.SerialID,
		ProductNumber: a.ProductNumber,
		ProductName:   a.ProductName,
		Family:        a.ProductFamily,
		Context:       strings.TrimSpace(a.Description + " " + a.ProductName + " " + a.ProductFamily),
		Expired:       a.SupportExpired,
		PastEOL:       a.PastEOL(),
		DaysUntilEOL:  a.DaysUntilEOL(),
	}
}

// SubjectFromProject describes a delivery project.  The practice code
// drives the category layer and the description is the context.
func SubjectFromProject(p *installbase.Project) Subject {
	return Subject{
		ID:           p.ID,
		Family:       p.PracticeCode,
		Context:      strings.TrimSpace(p.Description + " " + p.PracticeCode),
		DaysUntilEOL: -1,
	}
}

// Candidate is a catalog service proposed by a strategy.
type Candidate struct {
	Entry      installbase.CatalogEntry
	Layer      recommendation.MatchLayer
	Confidence float64
	Urgency    recommendation.Urgency
	Boost      float64
	Bonus      float64
}

// Strategy proposes candidates for a subject.  An empty result passes the
// subject on to the next strategy.
type Strategy func(Subject, *Catalog) []Candidate

// ExactProduct looks the subject's product number, then its product name, up
// in the catalog's product mapping.
func ExactProduct(s Subject, c *Catalog) []Candidate {
	var entries []installbase.CatalogEntry
	for _, id := range []string{s.ProductNumber, s.ProductName} {
		if id == "" {
			continue
		}
		if entries = c.ForProduct(id); len(entries) > 0 {
			break
		}
	}
	out := make([]Candidate, 0, len(entries))
	for _, e := range entries {
		conf := float64(ConfidenceExact)
		if e.SKUCode != "" {
			conf = ConfidenceExactWithSKU
		}
		out = append(out, Candidate{Entry: e, Layer: recommendation.LayerExactProduct, Confidence: conf})
	}
	return out
}

// Category returns the services tagged with the subject family's taxonomy
// categories.
func Category(s Subject, c *Catalog) []Candidate {
	if strings.TrimSpace(s.Family) == "" {
		return nil
	}
	entries := c.InCategories(recommendation.Categories(s.Family), strings.TrimSpace(s.Family))
	out := make([]Candidate, 0, len(entries))
	for _, e := range entries {
		out = append(out, Candidate{Entry: e, Layer: recommendation.LayerCategory, Confidence: ConfidenceCategory})
	}
	return out
}

// Fallback returns a strategy that always proposes the named generic
// services.  Names found in the catalog carry its entry; unknown names are
// synthesized.
func Fallback(names []string) Strategy {
	return func(_ Subject, c *Catalog) []Candidate {
		out := make([]Candidate, 0, len(names))
		for _, n := range names {
			n = strings.TrimSpace(n)
			if n == "" {
				continue
			}
			e, ok := c.ByName(n)
			if !ok {
				e = installbase.CatalogEntry{Practice: "General", ServiceName: n}
			}
			out = append(out, Candidate{Entry: e, Layer: recommendation.LayerFallback, Confidence: ConfidenceFallback})
		}
		return out
	}
}
