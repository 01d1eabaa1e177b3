package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

const schema = `CREATE TABLE IF NOT EXISTS climate_state (
	id          INTEGER PRIMARY KEY CHECK(id=1),
	mode        TEXT NOT NULL,
	target      REAL,
	target_low  REAL,
	target_high REAL,
	away        BOOLEAN NOT NULL DEFAULT FALSE,
	updated_at  TEXT NOT NULL
)`

// columns added after the first release; older databases get them on Migrate
var migrations = []struct {
	column string
	ddl    string
}{
	{"action", "ALTER TABLE climate_state ADD COLUMN action TEXT NOT NULL DEFAULT 'off'"},
}

// Open opens the sqlite database at path and brings its schema up to date.
func Open(path string) (*sql.DB, error) {
	dbConn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows a single writer
	dbConn.SetMaxOpenConns(1)

	if err := Migrate(dbConn); err != nil {
		dbConn.Close()
		return nil, err
	}
	return dbConn, nil
}

func Migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create climate_state table: %w", err)
	}

	existing, err := tableColumns(db, "climate_state")
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if existing[m.column] {
			continue
		}
		if _, err := db.Exec(m.ddl); err != nil {
			return fmt.Errorf("failed to add column %s: %w", m.column, err)
		}
		log.Info().Str("column", m.column).Msg("Applied climate_state migration")
	}
	return nil
}

func tableColumns(db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		return nil, fmt.Errorf("failed to read %s schema: %w", table, err)
	}
	defer rows.Close()

	columns := map[string]bool{}
	for rows.Next() {
		var (
			cid          int
			name, ctype  string
			notNull      bool
			defaultValue *string
			pk           int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &defaultValue, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan %s schema: %w", table, err)
		}
		columns[name] = true
	}
	return columns, rows.Err()
}
