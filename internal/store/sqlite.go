package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Aman-CERP/schemamatch/internal/catalog"
	smerrors "github.com/Aman-CERP/schemamatch/internal/errors"
)

// SQLiteStore reads the catalog from a SQLite database.
// A schema-qualified metadata table such as metadata.attributs is looked up
// as metadata_attributs, since SQLite has no schemas.
type SQLiteStore struct {
	db      *sql.DB
	path    string
	table   string
	breaker *smerrors.CircuitBreaker
}

func openSQLite(path string, opts Options) (*SQLiteStore, error) {
	table, err := quoteTable(strings.ReplaceAll(opts.MetadataTable, ".", "_"))
	if err != nil {
		return nil, err
	}

	db, err := OpenSQLiteDB(path)
	if err != nil {
		return nil, err
	}

	return &SQLiteStore{
		db:      db,
		path:    path,
		table:   table,
		breaker: newBreaker("sqlite"),
	}, nil
}

// OpenSQLiteDB opens path with the pragmas every SQLite file in this module uses.
func OpenSQLiteDB(path string) (*sql.DB, error) {
	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, smerrors.DatabaseError("open SQLite database", err)
	}

	// Single connection: keeps :memory: databases alive and avoids writer contention.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, smerrors.DatabaseError("configure SQLite", fmt.Errorf("%s: %w", pragma, err))
		}
	}
	return db, nil
}

// Driver returns "sqlite".
func (s *SQLiteStore) Driver() string {
	return string(KindSQLite)
}

// Path returns the database path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Ping checks connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return smerrors.DatabaseError("ping SQLite", err)
	}
	return nil
}

// Attributes reads every catalog row ordered by id.
func (s *SQLiteStore) Attributes(ctx context.Context) ([]catalog.AttributeRecord, error) {
	return smerrors.CircuitExecute(s.breaker, func() ([]catalog.AttributeRecord, error) {
		rows, err := s.db.QueryContext(ctx, attributesQuery(s.table))
		if err != nil {
			return nil, sqlError("read catalog", err)
		}
		defer rows.Close()

		var records []catalog.AttributeRecord
		for rows.Next() {
			var r catalog.AttributeRecord
			if err := rows.Scan(&r.ID, &r.Schema, &r.Table, &r.Column,
				&r.Type, &r.Constraint, &r.Relation, &r.Description); err != nil {
				return nil, sqlError("scan catalog row", err)
			}
			records = append(records, r)
		}
		if err := rows.Err(); err != nil {
			return nil, sqlError("read catalog", err)
		}
		return records, nil
	})
}

// ColumnDescription looks up one column's description with bind parameters.
func (s *SQLiteStore) ColumnDescription(ctx context.Context, schema, table, column string) (string, error) {
	query := `SELECT COALESCE(description, '') FROM ` + s.table +
		` WHERE "schema" = ? AND "table" = ? AND nom_attr = ? LIMIT 1`

	return smerrors.CircuitExecute(s.breaker, func() (string, error) {
		var desc string
		err := s.db.QueryRowContext(ctx, query, schema, table, column).Scan(&desc)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && desc == "") {
			return NoDescription, nil
		}
		if err != nil {
			return "", sqlError("read column description", err)
		}
		return desc, nil
	})
}

// Execute runs query and collects its rows, if any.
func (s *SQLiteStore) Execute(ctx context.Context, query string) (*Result, error) {
	return smerrors.CircuitExecute(s.breaker, func() (*Result, error) {
		if !returnsRows(query) {
			res, err := s.db.ExecContext(ctx, query)
			if err != nil {
				return nil, sqlError("execute statement", err)
			}
			n, _ := res.RowsAffected()
			return &Result{RowsAffected: n, Message: ExecutedMessage}, nil
		}

		rows, err := s.db.QueryContext(ctx, query)
		if err != nil {
			return nil, sqlError("execute query", err)
		}
		defer rows.Close()

		cols, err := rows.Columns()
		if err != nil {
			return nil, sqlError("read columns", err)
		}
		res := &Result{Columns: cols, Rows: [][]any{}}
		for rows.Next() {
			values := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range values {
				ptrs[i] = &values[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				return nil, sqlError("scan row", err)
			}
			for i := range values {
				values[i] = normalizeValue(values[i])
			}
			res.Rows = append(res.Rows, values)
		}
		if err := rows.Err(); err != nil {
			return nil, sqlError("execute query", err)
		}
		res.RowsAffected = int64(len(res.Rows))
		return res, nil
	})
}

// Import creates the metadata table if needed and appends records in one
// transaction. IDs of zero are assigned by SQLite.
func (s *SQLiteStore) Import(ctx context.Context, records []catalog.AttributeRecord) error {
	ddl := `CREATE TABLE IF NOT EXISTS ` + s.table + ` (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	"schema" TEXT,
	"table" TEXT,
	nom_attr TEXT,
	type TEXT,
	contraint TEXT,
	relation TEXT,
	description TEXT
)`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return sqlError("create metadata table", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return sqlError("begin import", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO `+s.table+
		` (id, "schema", "table", nom_attr, type, contraint, relation, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return sqlError("prepare import", err)
	}
	defer stmt.Close()

	for _, r := range records {
		var id any
		if r.ID != 0 {
			id = r.ID
		}
		if _, err := stmt.ExecContext(ctx, id, r.Schema, r.Table, r.Column,
			r.Type, r.Constraint, r.Relation, r.Description); err != nil {
			return sqlError(fmt.Sprintf("import %s", r.QualifiedName()), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return sqlError("commit import", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func sqlError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return smerrors.New(smerrors.ErrCodeDatabaseTimeout, op+": timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return smerrors.New(smerrors.ErrCodeSQLFailed, fmt.Sprintf("%s: %v", op, err), err)
}

var _ Store = (*SQLiteStore)(nil)
