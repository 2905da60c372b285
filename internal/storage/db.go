package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Driver selects the SQL backend. SQLite is the default for local use;
// MySQL and PostgreSQL serve hosted deployments.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverMySQL    Driver = "mysql"
	DriverPostgres Driver = "postgres"
)

// DB wraps the database connection together with its dialect, so the stores
// can share one SQL surface across backends.
type DB struct {
	conn   *sql.DB
	driver Driver
}

// Open opens (or creates) the store. For sqlite, dsn is the database file
// path (":memory:" for tests); for mysql and postgres it is the driver DSN.
func Open(driver Driver, dsn string) (*DB, error) {
	if driver == "" {
		driver = DriverSQLite
	}

	var conn *sql.DB
	var err error
	switch driver {
	case DriverSQLite:
		if dsn != ":memory:" {
			if mkErr := os.MkdirAll(filepath.Dir(dsn), 0755); mkErr != nil {
				return nil, fmt.Errorf("create db directory: %w", mkErr)
			}
		}
		conn, err = sql.Open("sqlite", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
		if err == nil {
			// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
			conn.SetMaxOpenConns(1)
		}
	case DriverMySQL:
		if !strings.Contains(dsn, "parseTime") {
			sep := "?"
			if strings.Contains(dsn, "?") {
				sep = "&"
			}
			dsn += sep + "parseTime=true"
		}
		conn, err = sql.Open("mysql", dsn)
	case DriverPostgres:
		conn, err = sql.Open("postgres", dsn)
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	db := &DB{conn: conn, driver: driver}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying database connection.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Driver returns the active backend.
func (db *DB) Driver() Driver {
	return db.driver
}

// rebind rewrites ? placeholders into the dialect's positional form.
func (db *DB) rebind(query string) string {
	if db.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (db *DB) Exec(query string, args ...any) (sql.Result, error) {
	return db.conn.Exec(db.rebind(query), args...)
}

func (db *DB) Query(query string, args ...any) (*sql.Rows, error) {
	return db.conn.Query(db.rebind(query), args...)
}

func (db *DB) QueryRow(query string, args ...any) *sql.Row {
	return db.conn.QueryRow(db.rebind(query), args...)
}

// Begin starts a transaction whose statements go through the same
// placeholder rewriting as the DB itself.
func (db *DB) Begin() (*Tx, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx, db: db}, nil
}

// Tx wraps sql.Tx with the dialect's placeholder rewriting.
type Tx struct {
	tx *sql.Tx
	db *DB
}

func (t *Tx) Exec(query string, args ...any) (sql.Result, error) {
	return t.tx.Exec(t.db.rebind(query), args...)
}

func (t *Tx) Query(query string, args ...any) (*sql.Rows, error) {
	return t.tx.Query(t.db.rebind(query), args...)
}

func (t *Tx) QueryRow(query string, args ...any) *sql.Row {
	return t.tx.QueryRow(t.db.rebind(query), args...)
}

func (t *Tx) Commit() error   { return t.tx.Commit() }
func (t *Tx) Rollback() error { return t.tx.Rollback() }

// ── Schema ─────────────────────────────────────────────────

// Column type tokens that differ between backends. Inserts always write
// every column, so defaults are kept to the few MySQL allows everywhere.
func (db *DB) idType() string {
	if db.driver == DriverMySQL {
		return "VARCHAR(64)"
	}
	return "TEXT"
}

func (db *DB) varType() string {
	if db.driver == DriverMySQL {
		return "VARCHAR(32)"
	}
	return "TEXT"
}

func (db *DB) textType() string {
	if db.driver == DriverMySQL {
		return "MEDIUMTEXT"
	}
	return "TEXT"
}

func (db *DB) floatType() string {
	switch db.driver {
	case DriverMySQL:
		return "DOUBLE"
	case DriverPostgres:
		return "DOUBLE PRECISION"
	default:
		return "REAL"
	}
}

func (db *DB) boolType() string {
	if db.driver == DriverSQLite {
		return "INTEGER"
	}
	return "BOOLEAN"
}

func (db *DB) timeType() string {
	switch db.driver {
	case DriverMySQL:
		return "DATETIME(6)"
	case DriverPostgres:
		return "TIMESTAMPTZ"
	default:
		return "DATETIME"
	}
}

func (db *DB) migrate() error {
	migrations := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS projects (
			id         %s PRIMARY KEY,
			title      %s NOT NULL,
			created_at %s NOT NULL,
			updated_at %s NOT NULL
		)`, db.idType(), db.textType(), db.timeType(), db.timeType()),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS blocks (
			id                  %[1]s PRIMARY KEY,
			project_id          %[1]s NOT NULL,
			parent_id           %[1]s,
			sort_order          %[2]s NOT NULL,
			type                %[3]s NOT NULL,
			text_content        %[4]s NOT NULL,
			markdown            %[4]s NOT NULL,
			heading_level       INTEGER NOT NULL DEFAULT 0,
			status              %[3]s NOT NULL,
			tags_json           %[4]s NOT NULL,
			word_goal           INTEGER NOT NULL DEFAULT 0,
			goal_type           %[3]s NOT NULL,
			aggregate_goal      INTEGER NOT NULL DEFAULT 0,
			aggregate_goal_type %[3]s NOT NULL,
			word_count          INTEGER NOT NULL DEFAULT 0,
			image_src           %[4]s NOT NULL,
			image_alt           %[4]s NOT NULL,
			image_caption       %[4]s NOT NULL,
			image_width         INTEGER NOT NULL DEFAULT 0,
			is_bibliography     %[5]s NOT NULL,
			is_pseudo_section   %[5]s NOT NULL,
			is_notes            %[5]s NOT NULL,
			created_at          %[6]s NOT NULL,
			updated_at          %[6]s NOT NULL
		)`, db.idType(), db.floatType(), db.varType(), db.textType(), db.boolType(), db.timeType()),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS snapshots (
			id          %[1]s PRIMARY KEY,
			project_id  %[1]s NOT NULL,
			label       %[2]s NOT NULL,
			blocks_json %[2]s NOT NULL,
			created_at  %[3]s NOT NULL
		)`, db.idType(), db.textType(), db.timeType()),
		`CREATE INDEX idx_blocks_project_order ON blocks (project_id, sort_order)`,
		`CREATE INDEX idx_blocks_parent ON blocks (parent_id)`,
		`CREATE INDEX idx_snapshots_project ON snapshots (project_id)`,
	}

	for _, m := range migrations {
		if _, err := db.conn.Exec(m); err != nil {
			// MySQL has no CREATE INDEX IF NOT EXISTS; re-running is normal.
			if strings.Contains(m, "CREATE INDEX") && isExistingObject(err) {
				continue
			}
			if strings.Contains(m, "ALTER TABLE") && isDuplicateColumn(err) {
				continue
			}
			return fmt.Errorf("migration failed: %.40s: %w", m, err)
		}
	}
	return nil
}

func isExistingObject(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "Duplicate key name")
}

func isDuplicateColumn(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "duplicate column") || strings.Contains(msg, "Duplicate column")
}
