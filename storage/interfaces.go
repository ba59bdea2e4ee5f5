package storage

import (
	"context"

	"boohill-ingest/models"
)

// HouseReader loads persisted houses with their items. The returned slice is
// a snapshot; later writes never change it.
type HouseReader interface {
	FetchHousesWithItems(ctx context.Context, q models.HouseQuery) ([]*models.PersistedHouse, error)
}

// HouseWriter appends items and inserts houses. Item inserts are
// insert-or-ignore on the full (price, office, last updated, added, remark)
// tuple, so replaying a batch adds nothing.
type HouseWriter interface {
	AddItems(ctx context.Context, houseID int64, items []*models.ParsedItem, addedDate string) (int, error)
	InsertHouseWithItems(ctx context.Context, house *models.ParsedHouse, addedDate string) (int64, error)
	// Apply runs every write of a batch in one transaction.
	Apply(ctx context.Context, plan *models.ImportPlan) (*models.ImportOutcome, error)
}

// HouseStore is any storage backend the importer can run against.
type HouseStore interface {
	HouseReader
	HouseWriter
	Close() error
}

// BatchWriter exports a parsed batch, e.g. to CSV for review.
type BatchWriter interface {
	WriteHouses(houses []*models.ParsedHouse) error
	Close() error
}
