package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Aman-CERP/schemamatch/internal/catalog"
	smerrors "github.com/Aman-CERP/schemamatch/internal/errors"
)

// PostgresStore reads the catalog from PostgreSQL through a pgx pool.
type PostgresStore struct {
	pool    *pgxpool.Pool
	table   string
	breaker *smerrors.CircuitBreaker
	logger  *slog.Logger
}

func openPostgres(ctx context.Context, dsn string, opts Options) (*PostgresStore, error) {
	table, err := quoteTable(opts.MetadataTable)
	if err != nil {
		return nil, err
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, smerrors.New(smerrors.ErrCodeUnsupportedDSN, "invalid PostgreSQL DSN", err)
	}
	cfg.ConnConfig.ConnectTimeout = opts.ConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, smerrors.DatabaseError("create PostgreSQL pool", err)
	}

	return &PostgresStore{
		pool:    pool,
		table:   table,
		breaker: newBreaker("postgres"),
		logger:  opts.Logger,
	}, nil
}

// Driver returns "postgres".
func (s *PostgresStore) Driver() string {
	return string(KindPostgres)
}

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return pgError("ping PostgreSQL", err)
	}
	return nil
}

// Attributes reads every catalog row ordered by id.
func (s *PostgresStore) Attributes(ctx context.Context) ([]catalog.AttributeRecord, error) {
	return smerrors.CircuitExecute(s.breaker, func() ([]catalog.AttributeRecord, error) {
		rows, err := s.pool.Query(ctx, attributesQuery(s.table))
		if err != nil {
			return nil, pgError("read catalog", err)
		}
		defer rows.Close()

		var records []catalog.AttributeRecord
		for rows.Next() {
			var r catalog.AttributeRecord
			if err := rows.Scan(&r.ID, &r.Schema, &r.Table, &r.Column,
				&r.Type, &r.Constraint, &r.Relation, &r.Description); err != nil {
				return nil, pgError("scan catalog row", err)
			}
			records = append(records, r)
		}
		if err := rows.Err(); err != nil {
			return nil, pgError("read catalog", err)
		}
		return records, nil
	})
}

// ColumnDescription looks up one column's description with bind parameters.
func (s *PostgresStore) ColumnDescription(ctx context.Context, schema, table, column string) (string, error) {
	query := `SELECT COALESCE(description, '') FROM ` + s.table +
		` WHERE "schema" = $1 AND "table" = $2 AND nom_attr = $3 LIMIT 1`

	return smerrors.CircuitExecute(s.breaker, func() (string, error) {
		var desc string
		err := s.pool.QueryRow(ctx, query, schema, table, column).Scan(&desc)
		if errors.Is(err, pgx.ErrNoRows) || (err == nil && desc == "") {
			return NoDescription, nil
		}
		if err != nil {
			return "", pgError("read column description", err)
		}
		return desc, nil
	})
}

// Execute runs query and collects its rows, if any.
func (s *PostgresStore) Execute(ctx context.Context, query string) (*Result, error) {
	return smerrors.CircuitExecute(s.breaker, func() (*Result, error) {
		if !returnsRows(query) {
			tag, err := s.pool.Exec(ctx, query)
			if err != nil {
				return nil, pgError("execute statement", err)
			}
			return &Result{RowsAffected: tag.RowsAffected(), Message: ExecutedMessage}, nil
		}

		rows, err := s.pool.Query(ctx, query)
		if err != nil {
			return nil, pgError("execute query", err)
		}
		defer rows.Close()

		fields := rows.FieldDescriptions()
		res := &Result{Columns: make([]string, len(fields)), Rows: [][]any{}}
		for i, f := range fields {
			res.Columns[i] = f.Name
		}
		for rows.Next() {
			values, err := rows.Values()
			if err != nil {
				return nil, pgError("read row", err)
			}
			for i := range values {
				values[i] = normalizeValue(values[i])
			}
			res.Rows = append(res.Rows, values)
		}
		if err := rows.Err(); err != nil {
			return nil, pgError("execute query", err)
		}
		res.RowsAffected = rows.CommandTag().RowsAffected()
		return res, nil
	})
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// pgError classifies err: server-side errors are SQL failures, anything
// else is treated as a retryable connectivity problem.
func pgError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return smerrors.New(smerrors.ErrCodeSQLFailed, fmt.Sprintf("%s: %s", op, pgErr.Message), err).
			WithDetail("sqlstate", pgErr.Code)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return smerrors.New(smerrors.ErrCodeDatabaseTimeout, op+": timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return smerrors.DatabaseError(op, err)
}

var _ Store = (*PostgresStore)(nil)
