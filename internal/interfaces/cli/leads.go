package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/leadscope/internal/config"
	"github.com/turtacn/leadscope/internal/domain/lead"
	"github.com/turtacn/leadscope/internal/domain/recommendation"
	"github.com/turtacn/leadscope/internal/infrastructure/database/postgres"
	"github.com/turtacn/leadscope/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/leadscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/leadscope/pkg/errors"
)

// openDatabase is replaced in tests.
var openDatabase = func(ctx context.Context, cfg *config.Config, log logging.Logger) (*postgres.Connection, error) {
	if !cfg.Database.Enabled {
		return nil, errors.InvalidParam("database is disabled; set database.enabled to true")
	}
	return postgres.NewConnection(ctx, postgresConfig(cfg.Database), log)
}

// readStore is the published lead and recommendation set, read back from
// PostgreSQL.
type readStore struct {
	Leads           lead.Repository
	Recommendations recommendation.Repository

	conn *postgres.Connection
}

func (s *readStore) Close() error {
	return s.conn.Close()
}

// openReadStore connects and health-checks the database before handing out
// the repositories.
func openReadStore(ctx context.Context, cfg *config.Config, log logging.Logger) (*readStore, error) {
	conn, err := openDatabase(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if err := conn.HealthCheck(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return &readStore{
		Leads:           repositories.NewPostgresLeadRepo(conn, log),
		Recommendations: repositories.NewPostgresRecommendationRepo(conn, log),
		conn:            conn,
	}, nil
}

// LeadList is the printable outcome of `leadscope leads list`.
type LeadList struct {
	Total int64        `json:"total"`
	Leads []*lead.Lead `json:"leads"`
}

func (l *LeadList) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d of %d leads", len(l.Leads), l.Total)
	for _, ld := range l.Leads {
		fmt.Fprintf(&sb, "\n  %s %-8s %5.1f %s %s %s", ld.ID, ld.Priority, ld.Score, ld.Type, ld.AccountID, ld.SubjectID())
	}
	return sb.String()
}

func (l *LeadList) TableHeaders() []string {
	return []string{"ID", "PRIORITY", "SCORE", "TYPE", "ACCOUNT", "SUBJECT"}
}

func (l *LeadList) TableRows() [][]string {
	rows := make([][]string, 0, len(l.Leads))
	for _, ld := range l.Leads {
		rows = append(rows, []string{
			ld.ID, string(ld.Priority), strconv.FormatFloat(ld.Score, 'f', 1, 64),
			string(ld.Type), ld.AccountID, ld.SubjectID(),
		})
	}
	return rows
}

// NewLeadsCmd creates the leads command.
func NewLeadsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leads",
		Short: "Query the leads published to PostgreSQL",
	}
	cmd.AddCommand(newLeadsListCmd())
	return cmd
}

func newLeadsListCmd() *cobra.Command {
	var (
		f                  lead.Filter
		leadType, priority string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List published leads by descending score",
		Long: "List the leads stored by the last published run, highest score first.\n" +
			"Requires database.enabled.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if leadType != "" {
				f.Type = lead.Type(strings.ToLower(leadType))
				if !f.Type.IsValid() {
					return errors.InvalidParam("unknown lead type").WithDetail(leadType)
				}
			}
			if priority != "" {
				f.Priority = lead.Priority(strings.ToUpper(priority))
				if f.Priority.Rank() > lead.PriorityLow.Rank() {
					return errors.InvalidParam("unknown priority").WithDetail(priority)
				}
			}
			if f.Limit < 0 {
				return errors.InvalidParam("--limit must not be negative")
			}

			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := cliCtx.commandContext(cmd)
			defer cancel()

			store, err := openReadStore(ctx, cliCtx.Config, cliCtx.Logger)
			if err != nil {
				return err
			}
			defer store.Close()

			leads, err := store.Leads.List(ctx, f)
			if err != nil {
				return err
			}
			total, err := store.Leads.Count(ctx)
			if err != nil {
				return err
			}
			return PrintResult(cmd, &LeadList{Total: total, Leads: leads})
		},
	}

	cmd.Flags().StringVar(&f.AccountID, "account", "", "canonical account key")
	cmd.Flags().StringVar(&leadType, "type", "", "lead type (coverage-renewal, hardware-refresh, service-gap)")
	cmd.Flags().StringVar(&priority, "priority", "", "priority tier (critical, high, medium, low)")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "maximum number of leads (0 for all)")
	return cmd
}
