package models

import "time"

// ParseResult is everything the scanner produced for one pasted text.
type ParseResult struct {
	Houses []*ParsedHouse `json:"houses"`
	Logs   []string       `json:"logs"`
}

// TotalItems counts the retained items over all houses.
func (r *ParseResult) TotalItems() int {
	n := 0
	for _, h := range r.Houses {
		n += len(h.Items)
	}
	return n
}

// SimilarMatch pairs a parsed house with persisted houses of the same
// identity that share none of its items.
type SimilarMatch struct {
	House      *ParsedHouse      `json:"house"`
	Candidates []*PersistedHouse `json:"candidates"`
}

// Classification is the matcher's verdict over a parsed batch.
type Classification struct {
	Novel      []*ParsedHouse  `json:"novel"`
	Duplicates []*ParsedHouse  `json:"duplicates"`
	Similar    []*SimilarMatch `json:"similar"`
	Logs       []string        `json:"logs"`
}

// ImportPreview is a parsed and classified batch awaiting a decision.
type ImportPreview struct {
	RunID          string          `json:"run_id"`
	AddedDate      string          `json:"added_date"`
	Parse          *ParseResult    `json:"parse"`
	Classification *Classification `json:"classification"`
	CreatedAt      time.Time       `json:"created_at"`
}

// MergeRequest appends a parsed house's items to a chosen persisted house.
type MergeRequest struct {
	HouseID int64        `json:"house_id"`
	House   *ParsedHouse `json:"house"`
}

// ImportPlan lists the writes for one batch; storage applies it atomically.
type ImportPlan struct {
	AddedDate  string          `json:"added_date"`
	Duplicates []*ParsedHouse  `json:"duplicates"`
	Merges     []*MergeRequest `json:"merges"`
	NewHouses  []*ParsedHouse  `json:"new_houses"`
}

// ImportOutcome reports what storage actually inserted.
type ImportOutcome struct {
	RunID               string  `json:"run_id"`
	DuplicateItemsAdded int     `json:"duplicate_items_added"`
	MergedHouses        int     `json:"merged_houses"`
	MergedItemsAdded    int     `json:"merged_items_added"`
	NewHouses           int     `json:"new_houses"`
	NewItems            int     `json:"new_items"`
	NewHouseIDs         []int64 `json:"new_house_ids"`
}
