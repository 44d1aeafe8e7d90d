// Package repositories implements the lead and recommendation repositories
// on PostgreSQL.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/turtacn/leadscope/internal/infrastructure/database/postgres"
	"github.com/turtacn/leadscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/leadscope/pkg/errors"
)

// insertBatchSize bounds the rows of one multi-row INSERT, keeping the
// parameter count well below the protocol limit of 65535.
const insertBatchSize = 500

// queryExecutor abstracts sql.DB and sql.Tx
type queryExecutor interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// scanner abstracts sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

type baseRepo struct {
	conn *postgres.Connection
	log  logging.Logger
}

func newBaseRepo(conn *postgres.Connection, log logging.Logger, name string) baseRepo {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return baseRepo{conn: conn, log: log.Named(name)}
}

func (r baseRepo) executor() queryExecutor {
	return r.conn.DB()
}

// withTx runs fn in a transaction, rolling back when fn fails.
func (r baseRepo) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.conn.DB().BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to begin transaction")
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.log.Error("rollback failed", logging.Err(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to commit transaction")
	}
	return nil
}

// insertBatches writes rows with multi-row INSERT statements of at most
// insertBatchSize rows each.
func insertBatches(ctx context.Context, ex queryExecutor, table string, columns []string, n int, row func(i int) []interface{}) error {
	for start := 0; start < n; start += insertBatchSize {
		end := start + insertBatchSize
		if end > n {
			end = n
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", table, strings.Join(columns, ", "))
		args := make([]interface{}, 0, (end-start)*len(columns))
		for i := start; i < end; i++ {
			if i > start {
				sb.WriteString(", ")
			}
			sb.WriteByte('(')
			for c := range columns {
				if c > 0 {
					sb.WriteString(", ")
				}
				fmt.Fprintf(&sb, "$%d", len(args)+c+1)
			}
			sb.WriteByte(')')
			args = append(args, row(i)...)
		}
		if _, err := ex.ExecContext(ctx, sb.String(), args...); err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to insert into "+table)
		}
	}
	return nil
}
