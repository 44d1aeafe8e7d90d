package repositories

import (
	"context"
	"database/sql"
	"strings"

	"github.com/turtacn/leadscope/internal/domain/recommendation"
	"github.com/turtacn/leadscope/internal/infrastructure/database/postgres"
	"github.com/turtacn/leadscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/leadscope/pkg/errors"
)

var recommendationColumns = []string{
	"subject_id", "rank", "lead_id", "service_name", "sku_code", "confidence", "urgency", "match_layer",
}

type postgresRecommendationRepo struct {
	baseRepo
}

// NewPostgresRecommendationRepo creates the PostgreSQL recommendation
// repository.
func NewPostgresRecommendationRepo(conn *postgres.Connection, log logging.Logger) recommendation.Repository {
	return &postgresRecommendationRepo{baseRepo: newBaseRepo(conn, log, "recommendation_repo")}
}

func (r *postgresRecommendationRepo) ReplaceAll(ctx context.Context, recs []recommendation.Recommendation) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM recommendations`); err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to clear recommendations")
		}
		return insertBatches(ctx, tx, "recommendations", recommendationColumns, len(recs), func(i int) []interface{} {
			rec := recs[i]
			return []interface{}{
				rec.SubjectID, rec.Rank, rec.LeadID, rec.ServiceName, rec.SKUCode,
				rec.Confidence, string(rec.Urgency), string(rec.MatchLayer),
			}
		})
	})
	if err != nil {
		return err
	}
	r.log.Info("recommendations replaced", logging.Int("count", len(recs)))
	return nil
}

// ListBySubject returns the recommendations of one asset or project in rank
// order.
func (r *postgresRecommendationRepo) ListBySubject(ctx context.Context, subjectID string) ([]recommendation.Recommendation, error) {
	query := "SELECT " + strings.Join(recommendationColumns, ", ") +
		" FROM recommendations WHERE subject_id = $1 ORDER BY rank ASC"
	rows, err := r.executor().QueryContext(ctx, query, subjectID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list recommendations")
	}
	defer rows.Close()

	var out []recommendation.Recommendation
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to iterate recommendations")
	}
	return out, nil
}

func scanRecommendation(row scanner) (recommendation.Recommendation, error) {
	var (
		rec            recommendation.Recommendation
		urgency, layer string
	)
	err := row.Scan(&rec.SubjectID, &rec.Rank, &rec.LeadID, &rec.ServiceName, &rec.SKUCode,
		&rec.Confidence, &urgency, &layer)
	if err != nil {
		return rec, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan recommendation")
	}
	rec.Urgency = recommendation.Urgency(urgency)
	rec.MatchLayer = recommendation.MatchLayer(layer)
	return rec, nil
}
