package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"boohill-ingest/utils"
)

var postgresDialect = dialect{
	name:     "postgres",
	numbered: true,
	schema: `
		CREATE TABLE IF NOT EXISTS cluster (
			id   BIGSERIAL PRIMARY KEY,
			name TEXT UNIQUE NOT NULL
		);

		CREATE TABLE IF NOT EXISTS house (
			id              BIGSERIAL PRIMARY KEY,
			cluster_id      BIGINT NOT NULL REFERENCES cluster(id),
			building_number TEXT   NOT NULL,
			unit_number     TEXT   NOT NULL DEFAULT '',
			area            TEXT   NOT NULL,
			direction       TEXT   NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS item (
			id                BIGSERIAL PRIMARY KEY,
			house_id          BIGINT NOT NULL REFERENCES house(id),
			transaction_type  TEXT   NOT NULL DEFAULT '매매',
			price             DOUBLE PRECISION,
			office            TEXT   NOT NULL DEFAULT '',
			last_updated_date TEXT   NOT NULL DEFAULT '',
			added_date        TEXT   NOT NULL DEFAULT '',
			remark            TEXT   NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_house_building ON house(building_number, area);
		CREATE INDEX IF NOT EXISTS idx_item_house     ON item(house_id);
		CREATE UNIQUE INDEX IF NOT EXISTS ux_item_tuple ON item(
			house_id, COALESCE(price, -1), office, last_updated_date, added_date, remark
		);
	`,
}

// OpenPostgres connects to PostgreSQL, waiting for the server to come up,
// runs schema migrations and returns a ready-to-use store.
func OpenPostgres(ctx context.Context, dsn string, logger *utils.Logger) (*SQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	retry := &utils.RetryConfig{MaxAttempts: 6, BaseDelay: 500 * time.Millisecond, Logger: logger}
	if err := retry.DoContext(ctx, "postgres ping", func() error {
		return db.PingContext(ctx)
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	s, err := newSQLStore(db, postgresDialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}
