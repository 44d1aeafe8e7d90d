package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/turtacn/leadscope/internal/domain/installbase"
	"github.com/turtacn/leadscope/internal/domain/lead"
	"github.com/turtacn/leadscope/internal/infrastructure/database/postgres"
	"github.com/turtacn/leadscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/leadscope/pkg/errors"
)

var leadColumns = []string{
	"id", "lead_type", "account_id", "asset_id", "project_id", "product_family",
	"risk_level", "urgency_days", "justification", "score", "priority",
	"urgency_score", "account_size_score", "engagement_score", "strategic_fit_score",
}

type postgresLeadRepo struct {
	baseRepo
}

// NewPostgresLeadRepo creates the PostgreSQL lead repository.
func NewPostgresLeadRepo(conn *postgres.Connection, log logging.Logger) lead.Repository {
	return &postgresLeadRepo{baseRepo: newBaseRepo(conn, log, "lead_repo")}
}

// ReplaceAll deletes the previous lead set and inserts leads in one
// transaction.
func (r *postgresLeadRepo) ReplaceAll(ctx context.Context, leads []*lead.Lead) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM leads`); err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to clear leads")
		}
		return insertBatches(ctx, tx, "leads", leadColumns, len(leads), func(i int) []interface{} {
			l := leads[i]
			return []interface{}{
				l.ID, string(l.Type), l.AccountID, l.AssetID, l.ProjectID, l.ProductFamily,
				string(l.RiskLevel), l.UrgencyDays, l.Justification, l.Score, string(l.Priority),
				l.Breakdown.Urgency, l.Breakdown.AccountSize, l.Breakdown.Engagement, l.Breakdown.StrategicFit,
			}
		})
	})
	if err != nil {
		return err
	}
	r.log.Info("leads replaced", logging.Int("count", len(leads)))
	return nil
}

// List returns leads matching f, best score first.
func (r *postgresLeadRepo) List(ctx context.Context, f lead.Filter) ([]*lead.Lead, error) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(col string, v string) {
		if v == "" {
			return
		}
		args = append(args, v)
		conds = append(conds, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	add("account_id", f.AccountID)
	add("lead_type", string(f.Type))
	add("priority", string(f.Priority))

	query := "SELECT " + strings.Join(leadColumns, ", ") + " FROM leads"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY score DESC, id ASC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.executor().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list leads")
	}
	defer rows.Close()

	var out []*lead.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to iterate leads")
	}
	return out, nil
}

// Count returns the number of stored leads.
func (r *postgresLeadRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.executor().QueryRowContext(ctx, `SELECT COUNT(*) FROM leads`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to count leads")
	}
	return n, nil
}

func scanLead(row scanner) (*lead.Lead, error) {
	l := &lead.Lead{}
	var typ, risk, priority string
	err := row.Scan(
		&l.ID, &typ, &l.AccountID, &l.AssetID, &l.ProjectID, &l.ProductFamily,
		&risk, &l.UrgencyDays, &l.Justification, &l.Score, &priority,
		&l.Breakdown.Urgency, &l.Breakdown.AccountSize, &l.Breakdown.Engagement, &l.Breakdown.StrategicFit,
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan lead")
	}
	l.Type = lead.Type(typ)
	l.RiskLevel = installbase.RiskLevel(risk)
	l.Priority = lead.Priority(priority)
	return l, nil
}
