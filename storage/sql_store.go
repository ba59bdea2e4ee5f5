package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"boohill-ingest/models"
)

// dialect holds what differs between the SQL backends.
type dialect struct {
	name string
	// numbered placeholders ($1, $2, ...) instead of "?".
	numbered bool
	schema   string
}

// rebind rewrites "?" placeholders for dialects that number them.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// SQLStore is the database/sql implementation of HouseStore shared by the
// SQLite and PostgreSQL backends.
type SQLStore struct {
	db *sql.DB
	d  dialect
	// writeMu serialises write transactions; SQLite allows one writer.
	writeMu sync.Mutex
}

var _ HouseStore = (*SQLStore)(nil)

func newSQLStore(db *sql.DB, d dialect) (*SQLStore, error) {
	s := &SQLStore{db: db, d: d}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("%s: migrate: %w", d.name, err)
	}
	return s, nil
}

func (s *SQLStore) migrate() error {
	_, err := s.db.Exec(s.d.schema)
	return err
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// FetchHousesWithItems returns houses in the given buildings, optionally
// narrowed to one area, ordered by id, with their items. No building numbers
// means every house.
func (s *SQLStore) FetchHousesWithItems(ctx context.Context, q models.HouseQuery) ([]*models.PersistedHouse, error) {
	where, args := houseFilter(q)

	rows, err := s.db.QueryContext(ctx, s.d.rebind(`
		SELECT id, cluster_id, building_number, unit_number, area
		FROM house`+where+`
		ORDER BY id`), args...)
	if err != nil {
		return nil, fmt.Errorf("%s: fetch houses: %w", s.d.name, err)
	}

	var houses []*models.PersistedHouse
	byID := make(map[int64]*models.PersistedHouse)
	for rows.Next() {
		h := &models.PersistedHouse{Items: []*models.PersistedItem{}}
		if err := rows.Scan(&h.ID, &h.ClusterID, &h.BuildingNumber, &h.UnitNumber, &h.Area); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%s: scan house: %w", s.d.name, err)
		}
		houses = append(houses, h)
		byID[h.ID] = h
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: fetch houses: %w", s.d.name, err)
	}
	if len(houses) == 0 {
		return houses, nil
	}

	items, err := s.db.QueryContext(ctx, s.d.rebind(`
		SELECT id, house_id, price, office, last_updated_date, added_date, remark
		FROM item
		WHERE house_id IN (SELECT id FROM house`+where+`)
		ORDER BY id`), args...)
	if err != nil {
		return nil, fmt.Errorf("%s: fetch items: %w", s.d.name, err)
	}
	defer items.Close()

	for items.Next() {
		it, err := scanItem(items)
		if err != nil {
			return nil, fmt.Errorf("%s: scan item: %w", s.d.name, err)
		}
		if h, ok := byID[it.HouseID]; ok {
			h.Items = append(h.Items, it)
		}
	}
	return houses, items.Err()
}

func houseFilter(q models.HouseQuery) (string, []interface{}) {
	var conds []string
	var args []interface{}

	var buildings []string
	for _, b := range q.BuildingNumbers {
		if b = strings.TrimSpace(b); b != "" {
			buildings = append(buildings, b)
		}
	}
	if len(buildings) > 0 {
		marks := strings.TrimSuffix(strings.Repeat("?,", len(buildings)), ",")
		conds = append(conds, "building_number IN ("+marks+")")
		for _, b := range buildings {
			args = append(args, b)
		}
	}
	if area := strings.TrimSpace(q.Area); area != "" {
		conds = append(conds, "area = ?")
		args = append(args, area)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(r rowScanner) (*models.PersistedItem, error) {
	it := &models.PersistedItem{}
	var price sql.NullFloat64
	if err := r.Scan(&it.ID, &it.HouseID, &price, &it.Office, &it.LastUpdated, &it.AddedDate, &it.Remark); err != nil {
		return nil, err
	}
	if price.Valid {
		p := price.Float64
		it.Price = &p
	}
	return it, nil
}

// GetOrCreateCluster returns the id of the named cluster, creating it if
// needed.
func (s *SQLStore) GetOrCreateCluster(ctx context.Context, name string) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.getOrCreateCluster(ctx, s.db, name)
}

func (s *SQLStore) getOrCreateCluster(ctx context.Context, q querier, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if _, err := q.ExecContext(ctx, s.d.rebind(
		`INSERT INTO cluster (name) VALUES (?) ON CONFLICT DO NOTHING`), name); err != nil {
		return 0, fmt.Errorf("%s: insert cluster %q: %w", s.d.name, name, err)
	}

	var id int64
	err := q.QueryRowContext(ctx, s.d.rebind(`SELECT id FROM cluster WHERE name = ?`), name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%s: lookup cluster %q: %w", s.d.name, name, err)
	}
	return id, nil
}

// AddItems appends items to an existing house and returns how many rows were
// actually inserted.
func (s *SQLStore) AddItems(ctx context.Context, houseID int64, items []*models.ParsedItem, addedDate string) (int, error) {
	var added int
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		added, err = s.addItems(ctx, tx, houseID, items, addedDate)
		return err
	})
	return added, err
}

// InsertHouseWithItems creates a house (resolving its cluster by name) and
// appends its items. It returns the new house id.
func (s *SQLStore) InsertHouseWithItems(ctx context.Context, house *models.ParsedHouse, addedDate string) (int64, error) {
	var id int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, _, err = s.insertHouseWithItems(ctx, tx, house, addedDate)
		return err
	})
	return id, err
}

// Apply writes a whole batch: items of duplicate houses, merges into chosen
// houses, then new houses. Any failure rolls the batch back.
func (s *SQLStore) Apply(ctx context.Context, plan *models.ImportPlan) (*models.ImportOutcome, error) {
	out := &models.ImportOutcome{NewHouseIDs: []int64{}}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, h := range plan.Duplicates {
			if h.DuplicateOf == nil {
				continue
			}
			n, err := s.addItems(ctx, tx, *h.DuplicateOf, h.Items, plan.AddedDate)
			if err != nil {
				return err
			}
			out.DuplicateItemsAdded += n
		}

		for _, m := range plan.Merges {
			n, err := s.addItems(ctx, tx, m.HouseID, m.House.Items, plan.AddedDate)
			if err != nil {
				return err
			}
			out.MergedItemsAdded += n
			if n > 0 {
				out.MergedHouses++
			}
		}

		for _, h := range plan.NewHouses {
			id, n, err := s.insertHouseWithItems(ctx, tx, h, plan.AddedDate)
			if err != nil {
				return err
			}
			out.NewHouses++
			out.NewItems += n
			out.NewHouseIDs = append(out.NewHouseIDs, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", s.d.name, err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("%s: rollback: %w", s.d.name, rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", s.d.name, err)
	}
	return nil
}

func (s *SQLStore) insertHouseWithItems(ctx context.Context, q querier, house *models.ParsedHouse, addedDate string) (int64, int, error) {
	clusterID, err := s.getOrCreateCluster(ctx, q, house.ClusterName)
	if err != nil {
		return 0, 0, err
	}

	var id int64
	err = q.QueryRowContext(ctx, s.d.rebind(`
		INSERT INTO house (cluster_id, building_number, unit_number, area, direction)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`),
		clusterID,
		strings.TrimSpace(house.BuildingNumber),
		models.NormalizeUnit(house.UnitNumber),
		strings.TrimSpace(house.Area),
		strings.TrimSpace(house.Direction),
	).Scan(&id)
	if err != nil {
		return 0, 0, fmt.Errorf("%s: insert house %s: %w", s.d.name, house.Key, err)
	}

	n, err := s.addItems(ctx, q, id, house.Items, addedDate)
	if err != nil {
		return 0, 0, err
	}
	return id, n, nil
}

// addItems skips items whose storage key already exists on the house and
// inserts the rest with ON CONFLICT DO NOTHING against the item tuple index.
func (s *SQLStore) addItems(ctx context.Context, q querier, houseID int64, items []*models.ParsedItem, addedDate string) (int, error) {
	existing, err := s.itemKeys(ctx, q, houseID)
	if err != nil {
		return 0, err
	}

	insert := s.d.rebind(`
		INSERT INTO item (house_id, transaction_type, price, office, last_updated_date, added_date, remark)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`)

	added := 0
	for _, it := range items {
		key := it.StorageKey(addedDate)
		if _, dup := existing[key]; dup {
			continue
		}
		res, err := q.ExecContext(ctx, insert,
			houseID,
			string(it.TransactionType),
			nullFloat(it.Price),
			strings.TrimSpace(it.Office),
			strings.TrimSpace(it.LastUpdated),
			strings.TrimSpace(addedDate),
			strings.TrimSpace(it.Remark),
		)
		if err != nil {
			return added, fmt.Errorf("%s: insert item for house %d: %w", s.d.name, houseID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return added, fmt.Errorf("%s: rows affected: %w", s.d.name, err)
		}
		added += int(n)
		existing[key] = struct{}{}
	}
	return added, nil
}

func (s *SQLStore) itemKeys(ctx context.Context, q querier, houseID int64) (map[string]struct{}, error) {
	rows, err := q.QueryContext(ctx, s.d.rebind(`
		SELECT id, house_id, price, office, last_updated_date, added_date, remark
		FROM item WHERE house_id = ?`), houseID)
	if err != nil {
		return nil, fmt.Errorf("%s: load items of house %d: %w", s.d.name, houseID, err)
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan item: %w", s.d.name, err)
		}
		keys[it.StorageKey()] = struct{}{}
	}
	return keys, rows.Err()
}

func nullFloat(p *float64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}
