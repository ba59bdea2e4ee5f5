package models

// PriceStats summarises the priced items of one transaction type.
type PriceStats struct {
	Count   int     `json:"count"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Average float64 `json:"average"`
}

// BatchReport is the operator-facing summary of a preview or import.
type BatchReport struct {
	RunID           string                          `json:"run_id"`
	TotalHouses     int                             `json:"total_houses"`
	TotalItems      int                             `json:"total_items"`
	NovelHouses     int                             `json:"novel_houses"`
	NovelItems      int                             `json:"novel_items"`
	DuplicateHouses int                             `json:"duplicate_houses"`
	SimilarHouses   int                             `json:"similar_houses"`
	UnpricedItems   int                             `json:"unpriced_items"`
	Prices          map[TransactionType]*PriceStats `json:"prices"`
	ItemsByOffice   map[string]int                  `json:"items_by_office"`
	Houses          []*ParsedHouse                  `json:"-"`
	Outcome         *ImportOutcome                  `json:"outcome,omitempty"`
}
