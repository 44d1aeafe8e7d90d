package cli

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/leadscope/internal/application/pipeline"
	"github.com/turtacn/leadscope/internal/domain/lead"
	"github.com/turtacn/leadscope/internal/infrastructure/database/redis"
	"github.com/turtacn/leadscope/internal/infrastructure/monitoring/logging"
)

// RunSummary is the printable outcome of `leadscope run`.
type RunSummary struct {
	AsOf            string         `json:"as_of"`
	Assets          int            `json:"assets"`
	Accounts        int            `json:"accounts"`
	NewAccountKeys  int            `json:"new_account_keys"`
	Leads           int            `json:"leads"`
	Recommendations int            `json:"recommendations"`
	Issues          int            `json:"issues"`
	Coverage        string         `json:"coverage"`
	LeadsByPriority map[string]int `json:"leads_by_priority"`
	IssuesByCode    map[string]int `json:"issues_by_code,omitempty"`
	TopLeads        []*lead.Lead   `json:"top_leads,omitempty"`
	DurationMS      int64          `json:"duration_ms"`
}

// maxSummaryLeads bounds the leads listed in the summary.
const maxSummaryLeads = 10

func newRunSummary(res *pipeline.Result) *RunSummary {
	s := &RunSummary{
		AsOf:            res.AsOf.Format("2006-01-02"),
		Assets:          res.Stats.Assets,
		Accounts:        res.Stats.Accounts,
		NewAccountKeys:  res.Stats.NewAccountKeys,
		Leads:           res.Stats.Leads,
		Recommendations: res.Stats.Recommendations,
		Issues:          res.Stats.Issues,
		Coverage:        res.Coverage.String(),
		LeadsByPriority: make(map[string]int, len(res.Stats.LeadsByPriority)),
		IssuesByCode:    make(map[string]int, len(res.Stats.IssuesByCode)),
		DurationMS:      res.Stats.Duration.Milliseconds(),
	}
	for p, n := range res.Stats.LeadsByPriority {
		s.LeadsByPriority[string(p)] = n
	}
	for c, n := range res.Stats.IssuesByCode {
		s.IssuesByCode[string(c)] = n
	}
	top := res.Leads
	if len(top) > maxSummaryLeads {
		top = top[:maxSummaryLeads]
	}
	s.TopLeads = top
	return s
}

func (s *RunSummary) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "as of %s: %d assets, %d accounts (%d new keys)\n", s.AsOf, s.Assets, s.Accounts, s.NewAccountKeys)
	fmt.Fprintf(&sb, "%d leads, %d recommendations, %d issues\n", s.Leads, s.Recommendations, s.Issues)
	fmt.Fprintf(&sb, "coverage: %s\n", s.Coverage)
	for _, p := range []lead.Priority{lead.PriorityCritical, lead.PriorityHigh, lead.PriorityMedium, lead.PriorityLow} {
		if n := s.LeadsByPriority[string(p)]; n > 0 {
			fmt.Fprintf(&sb, "  %-8s %d\n", p, n)
		}
	}
	codes := make([]string, 0, len(s.IssuesByCode))
	for c := range s.IssuesByCode {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	for _, c := range codes {
		fmt.Fprintf(&sb, "  issue %s: %d\n", c, s.IssuesByCode[c])
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (s *RunSummary) TableHeaders() []string {
	return []string{"ID", "TYPE", "SCORE", "PRIORITY", "ACCOUNT", "SUBJECT"}
}

func (s *RunSummary) TableRows() [][]string {
	rows := make([][]string, 0, len(s.TopLeads))
	for _, l := range s.TopLeads {
		rows = append(rows, []string{
			l.ID, string(l.Type), strconv.FormatFloat(l.Score, 'f', 2, 64), string(l.Priority), l.AccountID, l.SubjectID(),
		})
	}
	return rows
}

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	var (
		outputDir string
		workers   int
		dryRun    bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline and publish the results",
		Long: "Load the source tables, resolve accounts, detect and score leads,\n" +
			"recommend services and write the results to every enabled sink.\n" +
			fmt.Sprintf("With redis.enabled the run holds a lock that expires %s after\n", redis.DefaultLockTTL) +
			"its last renewal; the lock is renewed while the run is alive.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			cfg := *cliCtx.Config
			if outputDir != "" {
				cfg.Output.Dir = outputDir
			}
			if workers > 0 {
				cfg.Pipeline.Workers = workers
			}

			ctx, cancel := cliCtx.commandContext(cmd)
			defer cancel()

			comps, err := buildComponents(ctx, &cfg, cliCtx.Logger, !dryRun)
			if err != nil {
				return err
			}
			defer comps.Close()

			res, err := execute(ctx, comps, cliCtx.Logger, dryRun)
			if err != nil {
				return err
			}
			return PrintResult(cmd, newRunSummary(res))
		},
	}

	cmd.Flags().StringVar(&outputDir, "output-dir", "", "directory for leads.csv and recommendations.csv (overrides output.dir)")
	cmd.Flags().IntVar(&workers, "workers", 0, "recommendation workers (overrides pipeline.workers)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "compute results without writing to any sink")
	return cmd
}

// execute runs the pipeline under the run lock when one is configured.
func execute(ctx context.Context, comps *components, log logging.Logger, dryRun bool) (*pipeline.Result, error) {
	if dryRun {
		return comps.Pipeline.Run(ctx, comps.Source)
	}
	if comps.RunLock != nil {
		if err := comps.RunLock.Acquire(ctx); err != nil {
			return nil, err
		}
		defer func() {
			if err := comps.RunLock.Release(context.Background()); err != nil {
				log.Warn("failed to release run lock", logging.Err(err))
			}
		}()
		defer comps.RunLock.KeepAlive(ctx)()
	}
	return comps.Pipeline.Execute(ctx, comps.Source)
}
