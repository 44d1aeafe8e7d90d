// Package leadgen scans assessed assets for business conditions and emits
// unscored leads.
package leadgen

import (
	"fmt"
	"time"

	"github.com/turtacn/leadscope/internal/application/resolution"
	"github.com/turtacn/leadscope/internal/domain/installbase"
	"github.com/turtacn/leadscope/internal/domain/lead"
	"github.com/turtacn/leadscope/internal/infrastructure/monitoring/logging"
)

// DefaultHardwareRefreshDays is the end-of-life age that triggers a refresh.
const DefaultHardwareRefreshDays = 1825

// Config tunes the detector.
type Config struct {
	HardwareRefreshDays int
	Risk                installbase.RiskPolicy
	// AsOf is the reference date for all age computations.  Zero means the
	// current day.
	AsOf time.Time
}

// DefaultConfig returns the default thresholds and patterns.
func DefaultConfig() Config {
	return Config{
		HardwareRefreshDays: DefaultHardwareRefreshDays,
		Risk:                installbase.DefaultRiskPolicy(),
	}
}

// Detector applies the lead rules.  Each rule is evaluated independently and
// emits at most one lead per asset.
type Detector struct {
	cfg    Config
	logger logging.Logger
}

// NewDetector creates a Detector.
func NewDetector(cfg Config, logger logging.Logger) *Detector {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if cfg.Risk.Status == nil {
		cfg.Risk.Status = installbase.DefaultStatusMatcher()
	}
	return &Detector{cfg: cfg, logger: logger.Named("detector")}
}

// AsOf returns the reference date in use.
func (d *Detector) AsOf() time.Time {
	if d.cfg.AsOf.IsZero() {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	return d.cfg.AsOf
}

// Assess recomputes the derived risk fields of every asset.
func (d *Detector) Assess(assets []*installbase.Asset) {
	asOf := d.AsOf()
	for _, a := range assets {
		d.cfg.Risk.Assess(a, asOf)
	}
}

// Generate assesses the assets of g and returns their leads in asset order,
// rule order within an asset.
func (d *Detector) Generate(assets []*installbase.Asset, g *resolution.Graph) []*lead.Lead {
	start := time.Now()
	d.Assess(assets)

	var leads []*lead.Lead
	counts := make(map[lead.Type]int, len(lead.Types))
	for _, a := range assets {
		accountID := resolution.UnassignedAccountID
		if g != nil {
			if id, ok := g.AccountOfAsset(a.SerialID); ok {
				accountID = id
			}
		}
		for _, l := range d.Detect(a) {
			l.AccountID = accountID
			leads = append(leads, l)
			counts[l.Type]++
		}
	}

	d.logger.Info("leads detected",
		logging.Int("assets", len(assets)),
		logging.Int("leads", len(leads)),
		logging.Int(string(lead.TypeCoverageRenewal), counts[lead.TypeCoverageRenewal]),
		logging.Int(string(lead.TypeHardwareRefresh), counts[lead.TypeHardwareRefresh]),
		logging.Int(string(lead.TypeServiceGap), counts[lead.TypeServiceGap]),
		logging.Duration("elapsed", time.Since(start)),
	)
	return leads
}

// Detect evaluates the rules against one already assessed asset.
func (d *Detector) Detect(a *installbase.Asset) []*lead.Lead {
	var out []*lead.Lead

	if a.SupportExpired && (a.RiskLevel == installbase.RiskCritical || a.RiskLevel == installbase.RiskHigh) {
		out = append(out, d.newLead(lead.TypeCoverageRenewal, a, a.DaysSinceExpiry, coverageJustification(a)))
	}
	if a.EOLDate != nil && a.DaysSinceEOL > d.cfg.HardwareRefreshDays {
		out = append(out, d.newLead(lead.TypeHardwareRefresh, a, a.DaysSinceEOL, refreshJustification(a)))
	}
	if a.Uncovered {
		days := a.DaysSinceEOL
		if days < 0 {
			days = 0
		}
		out = append(out, d.newLead(lead.TypeServiceGap, a, days, gapJustification(a)))
	}
	return out
}

func (d *Detector) newLead(t lead.Type, a *installbase.Asset, urgencyDays int, why string) *lead.Lead {
	return &lead.Lead{
		ID:            lead.NewID(t, a.SerialID),
		Type:          t,
		AssetID:       a.SerialID,
		ProductFamily: a.ProductFamily,
		RiskLevel:     a.RiskLevel,
		UrgencyDays:   urgencyDays,
		Justification: why,
	}
}

func years(days int) float64 {
	return float64(days) / 365.25
}

func productLabel(a *installbase.Asset) string {
	if a.ProductName != "" {
		return a.ProductName
	}
	return a.ProductFamily + " asset"
}

func coverageJustification(a *installbase.Asset) string {
	if a.DaysSinceExpiry > 0 {
		return fmt.Sprintf("%s support status %q, coverage lapsed %d days ago; risk %s.",
			productLabel(a), a.SupportStatus, a.DaysSinceExpiry, a.RiskLevel)
	}
	return fmt.Sprintf("%s support status %q; risk %s, coverage renewal required.",
		productLabel(a), a.SupportStatus, a.RiskLevel)
}

func refreshJustification(a *installbase.Asset) string {
	return fmt.Sprintf("%s is %.1f years (%d days) past end of life; hardware refresh recommended.",
		productLabel(a), years(a.DaysSinceEOL), a.DaysSinceEOL)
}

func gapJustification(a *installbase.Asset) string {
	return fmt.Sprintf("%s has no active support coverage (status %q).", productLabel(a), a.SupportStatus)
}
