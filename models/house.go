package models

import (
	"fmt"
	"strconv"
	"strings"
)

// TransactionType is the listing kind printed in front of a price.
type TransactionType string

const (
	Sale  TransactionType = "매매"
	Lease TransactionType = "전세"
)

const nullToken = "<null>"

// ParsedItem is one listing recognised under a house block.
type ParsedItem struct {
	TransactionType TransactionType `json:"transaction_type"`
	Price           *float64        `json:"price,omitempty"`
	Office          string          `json:"office,omitempty"`
	LastUpdated     string          `json:"last_updated,omitempty"`
	Remark          string          `json:"remark,omitempty"`
}

// Retained reports whether the item carries a price or an office.
// Anything else is noise and never leaves the scanner.
func (it *ParsedItem) Retained() bool {
	return it.Price != nil || strings.TrimSpace(it.Office) != ""
}

// Key is the in-batch identity (price, office, remark), lower-cased.
func (it *ParsedItem) Key() string {
	return ItemKey(it.Price, it.Office, it.Remark)
}

// StorageKey extends Key with the last-updated and added dates. It is the
// identity used when appending items to a persisted house.
func (it *ParsedItem) StorageKey(addedDate string) string {
	return StorageKey(it.Price, it.Office, it.LastUpdated, addedDate, it.Remark)
}

// PriceDisplay renders the price in 억 units, e.g. "17.5억".
func (it *ParsedItem) PriceDisplay() string {
	if it.Price == nil {
		return ""
	}
	eok := strconv.FormatFloat(*it.Price/1e8, 'f', 4, 64)
	eok = strings.TrimRight(strings.TrimRight(eok, "0"), ".")
	return eok + "억"
}

// Display is a single-line summary used by the report and trace output.
func (it *ParsedItem) Display() string {
	return fmt.Sprintf("%s %s | %s | %s | %s",
		it.TransactionType, it.PriceDisplay(), orDash(it.Office), orDash(it.LastUpdated), orDash(it.Remark))
}

// ParsedHouse is one unit recognised in the pasted text.
type ParsedHouse struct {
	ClusterName    string        `json:"cluster_name"`
	BuildingNumber string        `json:"building_number"`
	UnitNumber     string        `json:"unit_number,omitempty"`
	Area           string        `json:"area"`
	Direction      string        `json:"direction,omitempty"`
	Items          []*ParsedItem `json:"items"`
	Key            string        `json:"key"`

	DuplicateOf     *int64 `json:"duplicate_of,omitempty"`
	DuplicateReason string `json:"duplicate_reason,omitempty"`
}

// IsDuplicate reports whether the matcher tied the house to a persisted one.
func (h *ParsedHouse) IsDuplicate() bool {
	return h.DuplicateOf != nil
}

// MarkDuplicate records the persisted house this one duplicates.
func (h *ParsedHouse) MarkDuplicate(houseID int64, reason string) {
	id := houseID
	h.DuplicateOf = &id
	h.DuplicateReason = reason
}

// Display mirrors the row shown to the operator when reviewing a batch.
func (h *ParsedHouse) Display() string {
	dir := ""
	if h.Direction != "" {
		dir = " " + h.Direction
	}
	prefix := ""
	if h.IsDuplicate() {
		prefix = "[DUP] "
	}
	s := fmt.Sprintf("%s%s %s동 %s (%s평%s) - %d items",
		prefix, h.ClusterName, h.BuildingNumber, h.UnitNumber, h.Area, dir, len(h.Items))
	if h.DuplicateOf != nil {
		s += fmt.Sprintf(" -> same as id=%d", *h.DuplicateOf)
	}
	return s
}

// HouseKey builds the case-insensitive identity of a parsed house.
func HouseKey(cluster, building, unit, area string) string {
	u := NormalizeUnit(unit)
	if u == "" {
		u = nullToken
	}
	return strings.ToLower(strings.TrimSpace(cluster) + "|" + strings.TrimSpace(building) + "|" + u + "|" + strings.TrimSpace(area))
}

// NormalizeUnit trims a unit code; blank and absent both become "".
func NormalizeUnit(unit string) string {
	return strings.TrimSpace(unit)
}

// PersistedItem is an item row read back from the store.
type PersistedItem struct {
	ID          int64    `json:"id"`
	HouseID     int64    `json:"house_id"`
	Price       *float64 `json:"price,omitempty"`
	Office      string   `json:"office,omitempty"`
	LastUpdated string   `json:"last_updated,omitempty"`
	AddedDate   string   `json:"added_date,omitempty"`
	Remark      string   `json:"remark,omitempty"`
}

// Key matches ParsedItem.Key.
func (it *PersistedItem) Key() string {
	return ItemKey(it.Price, it.Office, it.Remark)
}

// StorageKey matches ParsedItem.StorageKey.
func (it *PersistedItem) StorageKey() string {
	return StorageKey(it.Price, it.Office, it.LastUpdated, it.AddedDate, it.Remark)
}

// PersistedHouse is a house row with its items, as consumed by the matcher.
type PersistedHouse struct {
	ID             int64            `json:"id"`
	ClusterID      int64            `json:"cluster_id"`
	BuildingNumber string           `json:"building_number"`
	UnitNumber     string           `json:"unit_number,omitempty"`
	Area           string           `json:"area"`
	Items          []*PersistedItem `json:"items"`
}

// HouseQuery scopes a fetch of persisted houses.
type HouseQuery struct {
	BuildingNumbers []string
	Area            string // empty means no area filter
}

// ItemKey formats the (price, office, remark) tuple.
func ItemKey(price *float64, office, remark string) string {
	return strings.ToLower(FormatPrice(price) + "|" + nullable(office) + "|" + nullable(remark))
}

// StorageKey formats the (price, office, last updated, added, remark) tuple.
func StorageKey(price *float64, office, lastUpdated, added, remark string) string {
	return strings.ToLower(strings.Join([]string{
		FormatPrice(price), nullable(office), nullable(lastUpdated), nullable(added), nullable(remark),
	}, "|"))
}

// FormatPrice renders a price with the shortest exact decimal form.
func FormatPrice(price *float64) string {
	if price == nil {
		return nullToken
	}
	return strconv.FormatFloat(*price, 'f', -1, 64)
}

func nullable(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nullToken
	}
	return s
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
