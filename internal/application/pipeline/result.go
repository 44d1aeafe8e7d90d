package pipeline

import (
	"time"

	"github.com/turtacn/leadscope/internal/application/recommending"
	"github.com/turtacn/leadscope/internal/application/resolution"
	"github.com/turtacn/leadscope/internal/domain/installbase"
	"github.com/turtacn/leadscope/internal/domain/lead"
	"github.com/turtacn/leadscope/internal/domain/recommendation"
	"github.com/turtacn/leadscope/pkg/errors"
)

// Result is the output of one run.
type Result struct {
	AsOf            time.Time
	Leads           []*lead.Lead
	Recommendations []recommendation.Recommendation
	Coverage        resolution.Coverage
	Issues          []installbase.Issue
	Stats           Stats

	Snapshot *installbase.Snapshot
	Graph    *resolution.Graph

	engine *recommending.Engine
}

// Stats summarises a run.
type Stats struct {
	Assets          int
	Opportunities   int
	Projects        int
	CatalogEntries  int
	Accounts        int
	NewAccountKeys  int
	Leads           int
	Recommendations int
	Issues          int

	LeadsByType            map[lead.Type]int
	LeadsByPriority        map[lead.Priority]int
	RecommendationsByLayer map[recommendation.MatchLayer]int
	IssuesByCode           map[errors.ErrorCode]int
	StageDurations         map[string]time.Duration
	Duration               time.Duration
}

func newStats() Stats {
	return Stats{
		LeadsByType:            make(map[lead.Type]int),
		LeadsByPriority:        make(map[lead.Priority]int),
		RecommendationsByLayer: make(map[recommendation.MatchLayer]int),
		IssuesByCode:           make(map[errors.ErrorCode]int),
		StageDurations:         make(map[string]time.Duration, len(Stages)),
	}
}

func (s *Stats) fill(res *Result, newKeys int) {
	snap := res.Snapshot
	s.Assets = len(snap.Assets)
	s.Opportunities = len(snap.Opportunities)
	s.Projects = len(snap.Projects)
	s.CatalogEntries = len(snap.Catalog)
	if res.Graph != nil {
		s.Accounts = len(res.Graph.Accounts)
	}
	s.NewAccountKeys = newKeys
	s.Leads = len(res.Leads)
	for _, l := range res.Leads {
		s.LeadsByType[l.Type]++
		s.LeadsByPriority[l.Priority]++
	}
	s.Recommendations = len(res.Recommendations)
	for _, r := range res.Recommendations {
		s.RecommendationsByLayer[r.MatchLayer]++
	}
	s.Issues = len(res.Issues)
	s.IssuesByCode = installbase.CountByCode(res.Issues)
}

// LeadsFor returns the leads raised on an asset or project, best first.
func (r *Result) LeadsFor(subjectID string) []*lead.Lead {
	var out []*lead.Lead
	for _, l := range r.Leads {
		if l.SubjectID() == subjectID {
			out = append(out, l)
		}
	}
	return out
}

// RecommendationsFor returns the recommendations of one subject in rank
// order.
func (r *Result) RecommendationsFor(subjectID string) []recommendation.Recommendation {
	var out []recommendation.Recommendation
	for _, rec := range r.Recommendations {
		if rec.SubjectID == subjectID {
			out = append(out, rec)
		}
	}
	return out
}

// Asset looks an asset up by its assigned or source serial id.
func (r *Result) Asset(serial string) (*installbase.Asset, error) {
	if r.Snapshot != nil {
		if a, ok := r.Snapshot.AssetBySerial(serial); ok {
			return a, nil
		}
	}
	return nil, errors.New(errors.ErrCodeAssetNotFound, "asset not found").WithDetail(serial)
}

// RecommendProject recommends services for one project of the run.
func (r *Result) RecommendProject(projectID string) ([]recommendation.Recommendation, error) {
	if r.Snapshot != nil && r.engine != nil {
		for _, p := range r.Snapshot.Projects {
			if p.ID == projectID || (p.SourceID != "" && p.SourceID == projectID) {
				return r.engine.RecommendProject(p), nil
			}
		}
	}
	return nil, errors.NotFound("project not found").WithDetail(projectID)
}
