package installbase

import (
	"regexp"
	"time"

	"github.com/turtacn/leadscope/pkg/errors"
)

// RiskLevel classifies how exposed an asset is.
type RiskLevel string

const (
	RiskCritical RiskLevel = "CRITICAL"
	RiskHigh     RiskLevel = "HIGH"
	RiskMedium   RiskLevel = "MEDIUM"
)

// Default support-status patterns, matched case-insensitively on word
// boundaries.
const (
	DefaultExpiredPattern   = `expired|lapsed|terminated|out of warranty|end of support`
	DefaultUncoveredPattern = `uncovered|not covered|no coverage|no contract|unsupported|none`
)

// Default risk thresholds in days past end of life.
const (
	DefaultCriticalEOLDays = 1825
	DefaultHighEOLDays     = 1095
)

// StatusMatcher classifies free-text support statuses.
type StatusMatcher struct {
	expired   *regexp.Regexp
	uncovered *regexp.Regexp
}

// NewStatusMatcher compiles the two status patterns.  Empty patterns fall
// back to the defaults; an invalid pattern is a configuration error.
func NewStatusMatcher(expired, uncovered string) (*StatusMatcher, error) {
	if expired == "" {
		expired = DefaultExpiredPattern
	}
	if uncovered == "" {
		uncovered = DefaultUncoveredPattern
	}
	e, err := compileStatus(expired)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvariant, "invalid expired status pattern")
	}
	u, err := compileStatus(uncovered)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvariant, "invalid uncovered status pattern")
	}
	return &StatusMatcher{expired: e, uncovered: u}, nil
}

// DefaultStatusMatcher returns a matcher built from the default patterns.
func DefaultStatusMatcher() *StatusMatcher {
	m, err := NewStatusMatcher("", "")
	if err != nil {
		panic(err)
	}
	return m
}

func compileStatus(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile(`(?i)\b(?:` + pattern + `)\b`)
}

// Expired reports whether status denotes lapsed support.
func (m *StatusMatcher) Expired(status string) bool { return m.expired.MatchString(status) }

// Uncovered reports whether status denotes an asset with no support at all.
func (m *StatusMatcher) Uncovered(status string) bool { return m.uncovered.MatchString(status) }

// RiskPolicy derives per-asset risk from support status and end-of-life age.
type RiskPolicy struct {
	CriticalEOLDays int
	HighEOLDays     int
	Status          *StatusMatcher
}

// DefaultRiskPolicy returns the policy with default thresholds and patterns.
func DefaultRiskPolicy() RiskPolicy {
	return RiskPolicy{
		CriticalEOLDays: DefaultCriticalEOLDays,
		HighEOLDays:     DefaultHighEOLDays,
		Status:          DefaultStatusMatcher(),
	}
}

// Level applies the risk rule: CRITICAL when support has expired and the
// asset is at least CriticalEOLDays past end of life; HIGH when support has
// expired or the asset is at least HighEOLDays past end of life; MEDIUM
// otherwise.
func (p RiskPolicy) Level(expired bool, daysSinceEOL int) RiskLevel {
	switch {
	case expired && daysSinceEOL >= p.CriticalEOLDays:
		return RiskCritical
	case expired || daysSinceEOL >= p.HighEOLDays:
		return RiskHigh
	default:
		return RiskMedium
	}
}

// Assess recomputes the derived fields of a as of the given reference date.
func (p RiskPolicy) Assess(a *Asset, asOf time.Time) {
	a.SupportExpired = p.Status.Expired(a.SupportStatus)
	a.Uncovered = p.Status.Uncovered(a.SupportStatus)

	a.DaysSinceEOL = 0
	if a.EOLDate != nil {
		a.DaysSinceEOL = DaysBetween(*a.EOLDate, asOf)
	}

	a.DaysSinceExpiry = 0
	switch {
	case a.EOSLDate != nil && DaysBetween(*a.EOSLDate, asOf) > 0:
		a.DaysSinceExpiry = DaysBetween(*a.EOSLDate, asOf)
	case a.SupportExpired && a.DaysSinceEOL > 0:
		a.DaysSinceExpiry = a.DaysSinceEOL
	}

	age := a.DaysSinceEOL
	if age < 0 {
		age = 0
	}
	a.RiskLevel = p.Level(a.SupportExpired, age)
}
