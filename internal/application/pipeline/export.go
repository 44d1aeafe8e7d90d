package pipeline

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/turtacn/leadscope/internal/domain/lead"
	"github.com/turtacn/leadscope/internal/domain/recommendation"
	"github.com/turtacn/leadscope/pkg/errors"
)

// Export file names.
const (
	LeadsFile           = "leads.csv"
	RecommendationsFile = "recommendations.csv"
)

// LeadColumns and RecommendationColumns are the stable export headers.
var (
	LeadColumns = []string{
		"id", "type", "score", "priority", "account_id", "asset_id", "project_id",
		"risk_level", "urgency_days", "justification",
	}
	RecommendationColumns = []string{
		"subject_id", "lead_id", "rank", "service_name", "sku_code",
		"confidence", "urgency", "match_layer",
	}
)

// WriteLeadsCSV writes leads in the given order.
func WriteLeadsCSV(w io.Writer, leads []*lead.Lead) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(LeadColumns); err != nil {
		return errors.Wrap(err, errors.ErrCodeExportFailed, "write leads header")
	}
	for _, l := range leads {
		row := []string{
			l.ID,
			string(l.Type),
			strconv.FormatFloat(l.Score, 'f', 2, 64),
			string(l.Priority),
			l.AccountID,
			l.AssetID,
			l.ProjectID,
			string(l.RiskLevel),
			strconv.Itoa(l.UrgencyDays),
			l.Justification,
		}
		if err := cw.Write(row); err != nil {
			return errors.Wrap(err, errors.ErrCodeExportFailed, "write lead row").WithDetail(l.ID)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.Wrap(err, errors.ErrCodeExportFailed, "flush leads")
	}
	return nil
}

// WriteRecommendationsCSV writes recommendations in the given order.
func WriteRecommendationsCSV(w io.Writer, recs []recommendation.Recommendation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(RecommendationColumns); err != nil {
		return errors.Wrap(err, errors.ErrCodeExportFailed, "write recommendations header")
	}
	for _, r := range recs {
		row := []string{
			r.SubjectID,
			r.LeadID,
			strconv.Itoa(r.Rank),
			r.ServiceName,
			r.SKUCode,
			strconv.FormatFloat(r.Confidence, 'f', -1, 64),
			string(r.Urgency),
			string(r.MatchLayer),
		}
		if err := cw.Write(row); err != nil {
			return errors.Wrap(err, errors.ErrCodeExportFailed, "write recommendation row").WithDetail(r.SubjectID)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.Wrap(err, errors.ErrCodeExportFailed, "flush recommendations")
	}
	return nil
}

// ExportCSV writes leads.csv and recommendations.csv into dir and returns
// their paths.  Each file is written beside its target and renamed into
// place, so readers never see a half-written export.
func ExportCSV(dir string, res *Result) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExportFailed, "create output directory").WithDetail(dir)
	}
	files := []struct {
		name  string
		write func(io.Writer) error
	}{
		{LeadsFile, func(w io.Writer) error { return WriteLeadsCSV(w, res.Leads) }},
		{RecommendationsFile, func(w io.Writer) error { return WriteRecommendationsCSV(w, res.Recommendations) }},
	}
	paths := make([]string, 0, len(files))
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if err := writeAtomic(path, f.write); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExportFailed, "create temp file").WithDetail(path)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, errors.ErrCodeExportFailed, "close temp file").WithDetail(path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(err, errors.ErrCodeExportFailed, "rename export").WithDetail(path)
	}
	return nil
}
