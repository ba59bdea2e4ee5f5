package api

import "boohill-ingest/models"

type previewRequest struct {
	Text string `json:"text"`
}

// applyRequest applies a cached preview by RunID, or parses Text afresh
// when no RunID is given.
type applyRequest struct {
	RunID   string `json:"run_id"`
	Text    string `json:"text"`
	Similar string `json:"similar"`
}

type previewResponse struct {
	RunID      string                 `json:"run_id"`
	AddedDate  string                 `json:"added_date"`
	Summary    string                 `json:"summary"`
	Novel      []*models.ParsedHouse  `json:"novel"`
	Duplicates []*models.ParsedHouse  `json:"duplicates"`
	Similar    []*models.SimilarMatch `json:"similar"`
	Report     *models.BatchReport    `json:"report"`
	Trace      []string               `json:"trace"`
}

type applyResponse struct {
	RunID   string                `json:"run_id"`
	Summary string                `json:"summary"`
	Outcome *models.ImportOutcome `json:"outcome"`
}
