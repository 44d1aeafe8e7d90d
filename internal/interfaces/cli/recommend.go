package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/leadscope/internal/domain/recommendation"
	"github.com/turtacn/leadscope/pkg/errors"
)

// RecommendationList is the printable outcome of `leadscope recommend`.
type RecommendationList struct {
	SubjectID       string                          `json:"subject_id"`
	Recommendations []recommendation.Recommendation `json:"recommendations"`
}

func (l *RecommendationList) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s:", l.SubjectID)
	for _, r := range l.Recommendations {
		fmt.Fprintf(&sb, "\n  %d. %s (%s, confidence %.0f, %s)", r.Rank, r.ServiceName, r.MatchLayer, r.Confidence, r.Urgency)
	}
	return sb.String()
}

func (l *RecommendationList) TableHeaders() []string {
	return []string{"RANK", "SERVICE", "SKU", "CONFIDENCE", "URGENCY", "LAYER"}
}

func (l *RecommendationList) TableRows() [][]string {
	rows := make([][]string, 0, len(l.Recommendations))
	for _, r := range l.Recommendations {
		rows = append(rows, []string{
			strconv.Itoa(r.Rank), r.ServiceName, r.SKUCode,
			strconv.FormatFloat(r.Confidence, 'f', 0, 64), string(r.Urgency), string(r.MatchLayer),
		})
	}
	return rows
}

// NewRecommendCmd creates the recommend command.
func NewRecommendCmd() *cobra.Command {
	var (
		serial, project string
		fromDB          bool
	)

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Recommend services for one asset or project",
		Long: "Run the pipeline without publishing and print the ranked service\n" +
			"recommendations of a single asset (--serial) or project (--project).\n" +
			"With --from-db the recommendations stored by the last published run\n" +
			"are read from PostgreSQL instead.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (serial == "") == (project == "") {
				return errors.InvalidParam("exactly one of --serial or --project is required")
			}
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := cliCtx.commandContext(cmd)
			defer cancel()

			if fromDB {
				return printStoredRecommendations(ctx, cmd, cliCtx, serial+project)
			}

			comps, err := buildComponents(ctx, cliCtx.Config, cliCtx.Logger, false)
			if err != nil {
				return err
			}
			defer comps.Close()

			res, err := comps.Pipeline.Run(ctx, comps.Source)
			if err != nil {
				return err
			}

			out := &RecommendationList{}
			if serial != "" {
				asset, err := res.Asset(serial)
				if err != nil {
					return err
				}
				out.SubjectID = asset.SerialID
				out.Recommendations = res.RecommendationsFor(asset.SerialID)
			} else {
				recs, err := res.RecommendProject(project)
				if err != nil {
					return err
				}
				out.SubjectID = project
				out.Recommendations = recs
			}
			return PrintResult(cmd, out)
		},
	}

	cmd.Flags().StringVar(&serial, "serial", "", "asset serial id (source or assigned)")
	cmd.Flags().StringVar(&project, "project", "", "project id")
	cmd.Flags().BoolVar(&fromDB, "from-db", false, "read stored recommendations instead of running the pipeline")
	return cmd
}

func printStoredRecommendations(ctx context.Context, cmd *cobra.Command, cliCtx *CLIContext, subjectID string) error {
	store, err := openReadStore(ctx, cliCtx.Config, cliCtx.Logger)
	if err != nil {
		return err
	}
	defer store.Close()

	recs, err := store.Recommendations.ListBySubject(ctx, subjectID)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return errors.NotFound("no stored recommendations").WithDetail(subjectID)
	}
	return PrintResult(cmd, &RecommendationList{SubjectID: subjectID, Recommendations: recs})
}
