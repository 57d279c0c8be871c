package steps

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"go-etl-pipeline/internal/pipeline"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteSource runs a query against a SQLite database and emits one record
// per row.
//
//	config:
//	  path: data/app.db
//	  query: SELECT id, name FROM people WHERE active = ?
//	  args: [1]
var SQLiteSource = pipeline.DeclareSource("sources/sqlite", validateSQLiteSource, newSQLiteSource)

// SQLiteLoader inserts records into a table inside one transaction. The
// transaction commits on End and rolls back on Abort.
//
//	config:
//	  path: out/app.db
//	  table: people
//	  columns: [id, name]
//	  create: true
var SQLiteLoader = pipeline.DeclareLoader("loaders/sqlite", validateSQLiteLoader, newSQLiteLoader)

func openSQLite(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	return db, nil
}

// ------------------- source -------------------

type sqliteSource struct {
	logger pipeline.Logger
	path   string
	query  string
	args   []any

	db *sql.DB
}

func validateSQLiteSource(cfg map[string]any) []error {
	var errs []error
	if err := requireString(cfg, "path"); err != nil {
		errs = append(errs, err)
	}
	if err := requireString(cfg, "query"); err != nil {
		errs = append(errs, err)
	}
	if a, ok := cfg["args"]; ok {
		if _, isList := a.([]any); !isList {
			errs = append(errs, errors.New("args must be a list"))
		}
	}
	return errs
}

func newSQLiteSource(_ context.Context, logger pipeline.Logger, cfg map[string]any) (pipeline.Source, error) {
	args, _ := cfg["args"].([]any)
	return &sqliteSource{
		logger: logger,
		path:   stringOpt(cfg, "path", ""),
		query:  stringOpt(cfg, "query", ""),
		args:   args,
	}, nil
}

func (s *sqliteSource) Begin(ctx context.Context) error {
	db, err := openSQLite(ctx, s.path)
	if err != nil {
		return err
	}
	s.db = db
	return nil
}

func (s *sqliteSource) GetRecords(ctx context.Context) ([]pipeline.Record, error) {
	rows, err := s.db.QueryContext(ctx, s.query, s.args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var records []pipeline.Record
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		rec := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				rec[c] = string(b)
				continue
			}
			rec[c] = values[i]
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	s.logger.Debug("sqlite query done", "path", s.path, "records", len(records))
	return records, nil
}

func (s *sqliteSource) close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *sqliteSource) End(context.Context) error   { return s.close() }
func (s *sqliteSource) Abort(context.Context) error { return s.close() }

// ------------------- loader -------------------

type sqliteLoader struct {
	logger  pipeline.Logger
	path    string
	table   string
	columns []string
	create  bool

	mu   sync.Mutex
	db   *sql.DB
	tx   *sql.Tx
	stmt *sql.Stmt
}

func validateSQLiteLoader(cfg map[string]any) []error {
	var errs []error
	if err := requireString(cfg, "path"); err != nil {
		errs = append(errs, err)
	}
	if err := requireString(cfg, "table"); err != nil {
		errs = append(errs, err)
	} else if !identRe.MatchString(cfg["table"].(string)) {
		errs = append(errs, fmt.Errorf("table %q is not a valid identifier", cfg["table"]))
	}
	cols, ok := stringList(cfg["columns"])
	switch {
	case !ok:
		errs = append(errs, errors.New("columns must be a list of strings"))
	case len(cols) == 0:
		errs = append(errs, errors.New("columns is required"))
	default:
		for _, c := range cols {
			if !identRe.MatchString(c) {
				errs = append(errs, fmt.Errorf("column %q is not a valid identifier", c))
			}
		}
	}
	return errs
}

func newSQLiteLoader(_ context.Context, logger pipeline.Logger, cfg map[string]any) (pipeline.Loader, error) {
	cols, _ := stringList(cfg["columns"])
	return &sqliteLoader{
		logger:  logger,
		path:    stringOpt(cfg, "path", ""),
		table:   stringOpt(cfg, "table", ""),
		columns: cols,
		create:  boolOpt(cfg, "create", true),
	}, nil
}

func (l *sqliteLoader) Begin(ctx context.Context) error {
	db, err := openSQLite(ctx, l.path)
	if err != nil {
		return err
	}
	// a single connection keeps every insert inside the one transaction
	db.SetMaxOpenConns(1)

	if l.create {
		ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", l.table, strings.Join(l.columns, ", "))
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			db.Close()
			return fmt.Errorf("create table %s: %w", l.table, err)
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		db.Close()
		return fmt.Errorf("begin transaction: %w", err)
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(l.columns)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		l.table, strings.Join(l.columns, ", "), marks))
	if err != nil {
		tx.Rollback()
		db.Close()
		return fmt.Errorf("prepare insert: %w", err)
	}

	l.mu.Lock()
	l.db, l.tx, l.stmt = db, tx, stmt
	l.mu.Unlock()
	return nil
}

func (l *sqliteLoader) LoadRecord(ctx context.Context, rec pipeline.Record) error {
	obj, err := asObject(rec)
	if err != nil {
		return err
	}
	args := make([]any, len(l.columns))
	for i, c := range l.columns {
		args[i] = sqlValue(obj[c])
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stmt == nil {
		return errors.New("sqlite loader used outside a transaction")
	}
	if _, err := l.stmt.ExecContext(ctx, args...); err != nil {
		return fmt.Errorf("insert into %s: %w", l.table, err)
	}
	return nil
}

// sqlValue stores nested values as JSON text.
func sqlValue(v any) any {
	switch v.(type) {
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
	return v
}

func (l *sqliteLoader) End(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.tx == nil {
		return nil
	}
	l.stmt.Close()
	err := l.tx.Commit()
	l.tx, l.stmt = nil, nil
	if err != nil {
		l.closeLocked()
		return fmt.Errorf("commit: %w", err)
	}
	l.logger.Info("sqlite load committed", "table", l.table)
	return l.closeLocked()
}

func (l *sqliteLoader) Abort(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.tx != nil {
		l.stmt.Close()
		err := l.tx.Rollback()
		l.tx, l.stmt = nil, nil
		if err != nil && !errors.Is(err, sql.ErrTxDone) {
			l.closeLocked()
			return fmt.Errorf("rollback: %w", err)
		}
	}
	return l.closeLocked()
}

func (l *sqliteLoader) closeLocked() error {
	if l.db == nil {
		return nil
	}
	err := l.db.Close()
	l.db = nil
	return err
}
