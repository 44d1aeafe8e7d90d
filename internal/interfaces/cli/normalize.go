package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/leadscope/internal/config"
	"github.com/turtacn/leadscope/internal/domain/account"
	"github.com/turtacn/leadscope/internal/infrastructure/database/redis"
	"github.com/turtacn/leadscope/internal/infrastructure/monitoring/logging"
)

// NormalizedName is one line of `leadscope normalize` output.
type NormalizedName struct {
	Raw    string         `json:"raw"`
	Key    string         `json:"key"`
	Method account.Method `json:"method"`
	Score  int            `json:"score"`
}

// NormalizedNames is the printable outcome of `leadscope normalize`.
type NormalizedNames []NormalizedName

func (n NormalizedNames) String() string {
	lines := make([]string, len(n))
	for i, m := range n {
		lines[i] = fmt.Sprintf("%s\t%s", m.Raw, m.Key)
	}
	return strings.Join(lines, "\n")
}

func (n NormalizedNames) TableHeaders() []string {
	return []string{"NAME", "KEY", "METHOD", "SCORE"}
}

func (n NormalizedNames) TableRows() [][]string {
	rows := make([][]string, len(n))
	for i, m := range n {
		rows[i] = []string{m.Raw, m.Key, string(m.Method), strconv.Itoa(m.Score)}
	}
	return rows
}

// NewNormalizeCmd creates the normalize command.
func NewNormalizeCmd() *cobra.Command {
	var noRestore bool

	cmd := &cobra.Command{
		Use:   "normalize NAME...",
		Short: "Print the canonical account key of each name",
		Long: "Normalize account names in argument order.  Names seen earlier in the\n" +
			"same invocation are candidates for later ones, so variants collapse onto\n" +
			"the first spelling.  When redis is enabled the persisted registry is\n" +
			"loaded first; nothing is written back.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := cliCtx.commandContext(cmd)
			defer cancel()

			reg := newRegistry(cliCtx.Config)
			if !noRestore {
				if err := restoreRegistry(ctx, cliCtx.Config, reg, cliCtx.Logger); err != nil {
					return err
				}
			}
			return PrintResult(cmd, normalizeNames(reg, args))
		},
	}

	cmd.Flags().BoolVar(&noRestore, "no-restore", false, "ignore the persisted registry")
	return cmd
}

func normalizeNames(reg *account.Registry, names []string) NormalizedNames {
	out := make(NormalizedNames, 0, len(names))
	for _, raw := range names {
		m := reg.NormalizeMatch(raw)
		out = append(out, NormalizedName{Raw: raw, Key: m.Key, Method: m.Method, Score: m.Score})
	}
	return out
}

func restoreRegistry(ctx context.Context, cfg *config.Config, reg *account.Registry, log logging.Logger) error {
	if !cfg.Redis.Enabled {
		return nil
	}
	client, err := redis.NewClient(ctx, redis.RedisConfig{
		Addr:        cfg.Redis.Addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		KeyPrefix:   cfg.Redis.KeyPrefix,
		DialTimeout: cfg.Redis.DialTimeout,
	}, log)
	if err != nil {
		return err
	}
	defer client.Close()

	regs, err := redis.NewRegistrationStore(client, log).Load(ctx)
	if err != nil {
		return err
	}
	reg.Restore(regs)
	return nil
}
