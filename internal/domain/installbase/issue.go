package installbase

import (
	"fmt"

	"github.com/turtacn/leadscope/pkg/errors"
)

// Table names used on issues.
const (
	TableAssets        = "assets"
	TableOpportunities = "opportunities"
	TableProjects      = "projects"
	TableCatalog       = "catalog"
)

// Issue is a per-record problem that was recovered locally.  Issues are
// reported on the run result and never abort a batch.
type Issue struct {
	Code    errors.ErrorCode `json:"code"`
	Table   string           `json:"table"`
	Row     int              `json:"row"`
	Field   string           `json:"field,omitempty"`
	Value   string           `json:"value,omitempty"`
	Message string           `json:"message"`
}

func (i Issue) String() string {
	if i.Field == "" {
		return fmt.Sprintf("[%s] %s row %d: %s", i.Code, i.Table, i.Row, i.Message)
	}
	return fmt.Sprintf("[%s] %s row %d %s=%q: %s", i.Code, i.Table, i.Row, i.Field, i.Value, i.Message)
}

// CountByCode tallies issues per error code.
func CountByCode(issues []Issue) map[errors.ErrorCode]int {
	out := make(map[errors.ErrorCode]int)
	for _, i := range issues {
		out[i.Code]++
	}
	return out
}
