package recommending

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/leadscope/internal/domain/installbase"
	"github.com/turtacn/leadscope/internal/domain/recommendation"
	"github.com/turtacn/leadscope/internal/testutil"
)

func testCatalog() *Catalog {
	return NewCatalog([]installbase.CatalogEntry{
		{Practice: "Compute", SubPractice: "Server", ServiceName: "ProLiant Upgrade Service", SKUCode: "H1A23", ProductMapping: "P9D95A; DL380"},
		{Practice: "Compute", SubPractice: "Server", ServiceName: "Server Health Check", ProductMapping: "P9D95A"},
		{Practice: "Compute", SubPractice: "Server", ServiceName: "Server Health Check", ProductMapping: "P9D95A"},
		{Practice: "Storage", SubPractice: "Backup", ServiceName: "Backup Modernization", SKUCode: "S100"},
		{Practice: "Storage", SubPractice: "Array", ServiceName: "Array Refresh Planning"},
		{Practice: "Storage", SubPractice: "Array", ServiceName: "Storage Migration"},
		{Practice: "Data", SubPractice: "Analytics", ServiceName: "Data Platform Assessment"},
		{Practice: "Network", SubPractice: "Wireless", ServiceName: "Wireless Site Survey"},
		{Practice: "General", ServiceName: "Proactive Health Check", SKUCode: "G1"},
		{Practice: "General", ServiceName: ""},
	})
}

func newEngine() *Engine {
	return NewEngine(testCatalog(), DefaultConfig(), testutil.NewMockLogger())
}

func names(recs []recommendation.Recommendation) []string {
	var out []string
	for _, r := range recs {
		out = append(out, r.ServiceName)
	}
	return out
}

func TestCatalog_Index(t *testing.T) {
	c := testCatalog()
	assert.Equal(t, 9, c.Len())
	assert.Len(t, c.ForProduct("p9d95a"), 3)
	assert.Len(t, c.ForProduct(" DL380 "), 1)
	assert.Empty(t, c.ForProduct("unknown"))

	e, ok := c.ByName("proactive health CHECK")
	require.True(t, ok)
	assert.Equal(t, "G1", e.SKUCode)
}

func TestRecommend_ExactProductLayer(t *testing.T) {
	recs := newEngine().Recommend(Subject{ID: "A1", ProductNumber: "P9D95A", Family: "Compute", DaysUntilEOL: -1})

	require.NotEmpty(t, recs)
	assert.Equal(t, "ProLiant Upgrade Service", recs[0].ServiceName)
	assert.Equal(t, 95.0, recs[0].Confidence)
	assert.Equal(t, recommendation.LayerExactProduct, recs[0].MatchLayer)
	assert.Equal(t, 85.0, recs[1].Confidence)
	assert.Equal(t, "Server Health Check", recs[1].ServiceName)

	// Two distinct exact services, padded from the fallback layer.
	assert.Len(t, recs, 5)
	assert.Equal(t, recommendation.LayerFallback, recs[2].MatchLayer)
	assert.Equal(t, 50.0, recs[2].Confidence)
}

func TestRecommend_ProductNameWhenNoNumber(t *testing.T) {
	recs := newEngine().Recommend(Subject{ID: "A1", ProductName: "DL380", DaysUntilEOL: -1})
	assert.Equal(t, recommendation.LayerExactProduct, recs[0].MatchLayer)
}

func TestRecommend_CategoryLayer(t *testing.T) {
	recs := newEngine().Recommend(Subject{ID: "A2", Family: "Storage", Context: "storage array", DaysUntilEOL: -1})

	require.NotEmpty(t, recs)
	for _, r := range recs[:3] {
		assert.Equal(t, recommendation.LayerCategory, r.MatchLayer)
		assert.Equal(t, 65.0, r.Confidence)
	}
	assert.Equal(t, recommendation.LayerFallback, recs[len(recs)-1].MatchLayer)
}

func TestRecommend_FallbackAlwaysNonEmpty(t *testing.T) {
	e := NewEngine(NewCatalog(nil), DefaultConfig(), nil)
	recs := e.Recommend(Subject{ID: "A3", Family: "Widgets", DaysUntilEOL: -1})
	require.Len(t, recs, len(DefaultFallbackServices))
	for _, r := range recs {
		assert.Equal(t, recommendation.LayerFallback, r.MatchLayer)
		assert.Equal(t, 50.0, r.Confidence)
		assert.Empty(t, r.SKUCode)
	}

	recs = newEngine().Recommend(Subject{ID: "A3", Family: "Widgets", DaysUntilEOL: -1})
	assert.Contains(t, names(recs), "Proactive Health Check")
}

func TestRecommend_FallbackSkipsBlankNames(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FallbackServices = []string{"", "Proactive Health Check", "   "}
	recs := NewEngine(testCatalog(), cfg, nil).Recommend(Subject{ID: "A6", Family: "Widgets", DaysUntilEOL: -1})
	require.Len(t, recs, 1)
	assert.Equal(t, "Proactive Health Check", recs[0].ServiceName)
	assert.Equal(t, "G1", recs[0].SKUCode)
}

func TestRecommend_StorageContextOutranksFallback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FallbackServices = []string{"Proactive Health Check", "Storage Migration"}
	e := NewEngine(testCatalog(), cfg, nil)

	recs := e.Recommend(Subject{ID: "A4", Family: "Storage", Context: "storage", DaysUntilEOL: -1})
	idx := func(name string) int {
		for i, r := range recs {
			if r.ServiceName == name {
				return i
			}
		}
		return -1
	}
	require.GreaterOrEqual(t, idx("Storage Migration"), 0)
	require.GreaterOrEqual(t, idx("Proactive Health Check"), 0)
	assert.Less(t, idx("Storage Migration"), idx("Proactive Health Check"))

	// Within the fallback layer alone the keyword bonus decides.
	only := NewEngine(NewCatalog(nil), cfg, nil).Recommend(Subject{ID: "A5", Family: "Widgets", Context: "storage", DaysUntilEOL: -1})
	assert.Equal(t, []string{"Storage Migration", "Proactive Health Check"}, names(only))
}

func TestRecommend_UrgencyBoosting(t *testing.T) {
	e := newEngine()

	expired := e.Recommend(Subject{ID: "A6", Family: "Storage", Expired: true, PastEOL: true, DaysUntilEOL: -1})
	assert.Equal(t, recommendation.UrgencyImmediate, expired[0].Urgency)
	assert.True(t, strings.Contains(expired[0].ServiceName, "Migration") || strings.Contains(expired[0].ServiceName, "Modernization"))

	nearTerm := e.Recommend(Subject{ID: "A7", Family: "Storage", DaysUntilEOL: 90})
	assert.Equal(t, "Array Refresh Planning", nearTerm[0].ServiceName)
	assert.Equal(t, recommendation.UrgencyPlanned, nearTerm[0].Urgency)

	far := e.Recommend(Subject{ID: "A8", Family: "Storage", DaysUntilEOL: 900})
	for _, r := range far {
		assert.Equal(t, recommendation.UrgencyStandard, r.Urgency)
	}
}

func TestRecommend_Properties(t *testing.T) {
	e := newEngine()
	subjects := []Subject{
		{ID: "1", ProductNumber: "P9D95A", DaysUntilEOL: -1},
		{ID: "2", Family: "Compute", Context: "server backup", DaysUntilEOL: 10},
		{ID: "3", Family: "Storage", Expired: true, PastEOL: true, DaysUntilEOL: -1},
		{ID: "4", Family: "Network", DaysUntilEOL: -1},
		{ID: "5", DaysUntilEOL: -1},
	}
	for _, s := range subjects {
		t.Run(fmt.Sprintf("subject %s", s.ID), func(t *testing.T) {
			recs := e.Recommend(s)
			assert.NotEmpty(t, recs)
			assert.LessOrEqual(t, len(recs), 5)
			seen := map[string]bool{}
			for i, r := range recs {
				key := strings.ToLower(r.ServiceName)
				assert.False(t, seen[key], "duplicate %s", r.ServiceName)
				seen[key] = true
				assert.Equal(t, i+1, r.Rank)
				assert.Equal(t, s.ID, r.SubjectID)
			}
			assert.Equal(t, recs, e.Recommend(s))
		})
	}
}

func TestRecommend_TopNTruncates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TopN = 2
	recs := NewEngine(testCatalog(), cfg, nil).Recommend(Subject{ID: "x", Family: "Storage", DaysUntilEOL: -1})
	assert.Len(t, recs, 2)
}

func TestRecommendAssetAndProject(t *testing.T) {
	e := newEngine()
	a := &installbase.Asset{SerialID: "SGH1", ProductNumber: "P9D95A", ProductFamily: "Compute", SupportExpired: true}
	recs := e.RecommendAsset(a, "LD-1")
	require.NotEmpty(t, recs)
	assert.Equal(t, "LD-1", recs[0].LeadID)
	assert.Equal(t, "SGH1", recs[0].SubjectID)

	p := &installbase.Project{ID: "P1", PracticeCode: "Network", Description: "wireless refresh"}
	precs := e.RecommendProject(p)
	require.NotEmpty(t, precs)
	assert.Equal(t, "Wireless Site Survey", precs[0].ServiceName)
	assert.Equal(t, recommendation.LayerCategory, precs[0].MatchLayer)
}
