package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var sqliteDialect = dialect{
	name: "sqlite",
	schema: `
	CREATE TABLE IF NOT EXISTS cluster (
		id   INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS house (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		cluster_id      INTEGER NOT NULL REFERENCES cluster(id),
		building_number TEXT    NOT NULL,
		unit_number     TEXT    NOT NULL DEFAULT '',
		area            TEXT    NOT NULL,
		direction       TEXT    NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS item (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		house_id          INTEGER NOT NULL REFERENCES house(id),
		transaction_type  TEXT    NOT NULL DEFAULT '매매',
		price             REAL,
		office            TEXT    NOT NULL DEFAULT '',
		last_updated_date TEXT    NOT NULL DEFAULT '',
		added_date        TEXT    NOT NULL DEFAULT '',
		remark            TEXT    NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_house_building ON house(building_number, area);
	CREATE INDEX IF NOT EXISTS idx_item_house     ON item(house_id);
	CREATE UNIQUE INDEX IF NOT EXISTS ux_item_tuple ON item(
		house_id, COALESCE(price, -1), office, last_updated_date, added_date, remark
	);
	`,
}

// OpenSQLite opens (or creates) the SQLite corpus at path. ":memory:" gives a
// private in-memory database, which is what the tests use.
func OpenSQLite(path string) (*SQLStore, error) {
	connStr := path
	if path == ":memory:" {
		// Named per store: pooled connections share it, other stores do not.
		connStr = "file:mem-" + uuid.NewString() + "?mode=memory&cache=shared"
	} else if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("sqlite: create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: enable WAL mode: %w", err)
		}
	}

	s, err := newSQLStore(db, sqliteDialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}
