package leadgen

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/leadscope/internal/application/resolution"
	"github.com/turtacn/leadscope/internal/domain/account"
	"github.com/turtacn/leadscope/internal/domain/installbase"
	"github.com/turtacn/leadscope/internal/domain/lead"
	"github.com/turtacn/leadscope/internal/testutil"
)

var asOf = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func newDetector() *Detector {
	cfg := DefaultConfig()
	cfg.AsOf = asOf
	return NewDetector(cfg, testutil.NewMockLogger())
}

func dateYearsAgo(n int) *time.Time {
	t := asOf.AddDate(-n, 0, 0)
	return &t
}

func typesOf(leads []*lead.Lead) []lead.Type {
	var out []lead.Type
	for _, l := range leads {
		out = append(out, l.Type)
	}
	return out
}

func TestDetect_ExpiredTenYearsPastEOL(t *testing.T) {
	d := newDetector()
	a := &installbase.Asset{SerialID: "SGH1", ProductName: "ProLiant DL380 Gen8", ProductFamily: "Compute",
		SupportStatus: "Warranty Expired", EOLDate: dateYearsAgo(10)}
	d.Assess([]*installbase.Asset{a})

	leads := d.Detect(a)

	assert.Equal(t, installbase.RiskCritical, a.RiskLevel)
	assert.ElementsMatch(t, []lead.Type{lead.TypeCoverageRenewal, lead.TypeHardwareRefresh}, typesOf(leads))
	for _, l := range leads {
		assert.Equal(t, installbase.RiskCritical, l.RiskLevel)
		assert.Equal(t, "SGH1", l.AssetID)
		assert.Equal(t, lead.NewID(l.Type, "SGH1"), l.ID)
		assert.GreaterOrEqual(t, l.UrgencyDays, 3650)
		assert.NotContains(t, l.Justification, "$")
	}
	assert.Contains(t, leads[1].Justification, "10.0 years")
}

func TestDetect_Rules(t *testing.T) {
	d := newDetector()
	tests := []struct {
		name  string
		asset *installbase.Asset
		want  []lead.Type
	}{
		{"expired recent eol is high", &installbase.Asset{SupportStatus: "Lapsed", EOLDate: dateYearsAgo(1)},
			[]lead.Type{lead.TypeCoverageRenewal}},
		{"old but covered", &installbase.Asset{SupportStatus: "Active", EOLDate: dateYearsAgo(6)},
			[]lead.Type{lead.TypeHardwareRefresh}},
		{"exactly at refresh threshold", &installbase.Asset{SupportStatus: "Active",
			EOLDate: func() *time.Time { t := asOf.AddDate(0, 0, -DefaultHardwareRefreshDays); return &t }()}, nil},
		{"uncovered", &installbase.Asset{SupportStatus: "Not Covered"},
			[]lead.Type{lead.TypeServiceGap}},
		{"healthy", &installbase.Asset{SupportStatus: "Active", EOLDate: dateYearsAgo(-2)}, nil},
		{"no dates expired", &installbase.Asset{SupportStatus: "Expired"},
			[]lead.Type{lead.TypeCoverageRenewal}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.asset.SerialID = "X"
			d.Assess([]*installbase.Asset{tt.asset})
			assert.Equal(t, tt.want, typesOf(d.Detect(tt.asset)))
		})
	}
}

func TestGenerate_AssignsAccounts(t *testing.T) {
	d := newDetector()
	assets := []*installbase.Asset{
		{SerialID: "A1", TerritoryID: "56012", SupportStatus: "None"},
		{SerialID: "A2", SupportStatus: "None"},
	}
	r := resolution.NewResolver(account.NewRegistry(nil, 85), nil)
	g := r.Resolve(&installbase.Snapshot{Assets: assets})

	leads := d.Generate(assets, g)
	require.Len(t, leads, 2)
	assert.Equal(t, "56012", leads[0].AccountID)
	assert.Equal(t, resolution.UnassignedAccountID, leads[1].AccountID)
}

func TestGenerate_Idempotent(t *testing.T) {
	d := newDetector()
	build := func() []*installbase.Asset {
		return []*installbase.Asset{
			{SerialID: "A1", SupportStatus: "Expired", EOLDate: dateYearsAgo(7)},
			{SerialID: "A2", SupportStatus: "Uncovered", EOLDate: dateYearsAgo(2)},
		}
	}
	first := d.Generate(build(), nil)
	second := d.Generate(build(), nil)
	assert.Equal(t, first, second)
}

func TestAsOf_DefaultsToToday(t *testing.T) {
	d := NewDetector(DefaultConfig(), nil)
	now := time.Now().UTC()
	assert.Equal(t, now.Year(), d.AsOf().Year())
	assert.Equal(t, 0, d.AsOf().Hour())
}
