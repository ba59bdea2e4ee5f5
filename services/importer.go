package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"boohill-ingest/models"
	"boohill-ingest/parser"
	"boohill-ingest/storage"
	"boohill-ingest/utils"
)

// SimilarMode decides what happens to houses that match a persisted
// identity without sharing an item.
type SimilarMode string

const (
	// SimilarInsert adds them as new houses.
	SimilarInsert SimilarMode = "insert"
	// SimilarMerge appends their items to the first candidate house.
	SimilarMerge SimilarMode = "merge"
	// SimilarSkip leaves them out of the import.
	SimilarSkip SimilarMode = "skip"
)

var (
	ErrUnknownSimilarMode = errors.New("similar mode must be insert, merge or skip")
	ErrNoStore            = errors.New("importer has no store configured")
	ErrEmptyPreview       = errors.New("preview has no classification")
)

// ParseSimilarMode validates a mode name; "" means SimilarInsert.
func ParseSimilarMode(s string) (SimilarMode, error) {
	switch SimilarMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", SimilarInsert:
		return SimilarInsert, nil
	case SimilarMerge:
		return SimilarMerge, nil
	case SimilarSkip:
		return SimilarSkip, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSimilarMode, s)
}

// TraceSink receives the trace of every preview run.
type TraceSink interface {
	Ship(runID string, lines []string) error
}

// Importer drives one batch: parse, classify against the store, then apply.
type Importer struct {
	parser  *parser.Parser
	matcher *Matcher
	store   storage.HouseStore
	sink    TraceSink
	logger  *utils.Logger
	now     func() time.Time
}

// NewImporter wires an Importer. store may be nil, in which case previews
// treat the corpus as empty and Apply fails with ErrNoStore. sink may be nil.
func NewImporter(p *parser.Parser, store storage.HouseStore, sink TraceSink, logger *utils.Logger) *Importer {
	return &Importer{
		parser:  p,
		matcher: NewMatcher(logger),
		store:   store,
		sink:    sink,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock replaces the clock used for the added date.
func (i *Importer) WithClock(now func() time.Time) *Importer {
	i.now = now
	return i
}

// Preview parses text and classifies the houses against the persisted
// snapshot. Nothing is written.
func (i *Importer) Preview(ctx context.Context, text string) (*models.ImportPreview, error) {
	runID := uuid.NewString()
	log := i.logger.With("run_id", runID)

	res := i.parser.Parse(text)
	houses, folds := parser.CollapseHouses(res.Houses)
	res.Houses = houses
	res.Logs = append(res.Logs, folds...)

	var persisted []*models.PersistedHouse
	if i.store != nil && len(houses) > 0 {
		var err error
		persisted, err = i.store.FetchHousesWithItems(ctx, BuildQuery(houses))
		if err != nil {
			return nil, fmt.Errorf("importer: fetch persisted houses: %w", err)
		}
	}

	cls := i.matcher.Classify(houses, persisted)

	if i.sink != nil {
		trace := make([]string, 0, len(res.Logs)+len(cls.Logs))
		trace = append(trace, res.Logs...)
		trace = append(trace, cls.Logs...)
		if err := i.sink.Ship(runID, trace); err != nil {
			log.Warn("[importer] trace shipping failed: %v", err)
		}
	}

	now := i.now()
	log.Info("[importer] Parsed %d houses / %d items: novel %d, duplicates %d, similar %d",
		len(houses), res.TotalItems(), len(cls.Novel), len(cls.Duplicates), len(cls.Similar))

	return &models.ImportPreview{
		RunID:          runID,
		AddedDate:      now.Format("2006-01-02"),
		Parse:          res,
		Classification: cls,
		CreatedAt:      now,
	}, nil
}

// Plan turns a preview into the writes to perform.
func Plan(preview *models.ImportPreview, mode SimilarMode) (*models.ImportPlan, error) {
	if preview == nil || preview.Classification == nil {
		return nil, ErrEmptyPreview
	}
	cls := preview.Classification

	plan := &models.ImportPlan{
		AddedDate:  preview.AddedDate,
		Duplicates: cls.Duplicates,
		Merges:     []*models.MergeRequest{},
		NewHouses:  append([]*models.ParsedHouse{}, cls.Novel...),
	}

	for _, s := range cls.Similar {
		switch mode {
		case SimilarInsert:
			plan.NewHouses = append(plan.NewHouses, s.House)
		case SimilarMerge:
			if len(s.Candidates) > 0 {
				plan.Merges = append(plan.Merges, &models.MergeRequest{HouseID: s.Candidates[0].ID, House: s.House})
			}
		case SimilarSkip:
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownSimilarMode, mode)
		}
	}
	return plan, nil
}

// Apply writes a previewed batch in one transaction and returns what was
// actually inserted.
func (i *Importer) Apply(ctx context.Context, preview *models.ImportPreview, mode SimilarMode) (*models.ImportOutcome, error) {
	if i.store == nil {
		return nil, ErrNoStore
	}
	plan, err := Plan(preview, mode)
	if err != nil {
		return nil, err
	}

	out, err := i.store.Apply(ctx, plan)
	if err != nil {
		return nil, fmt.Errorf("importer: apply run %s: %w", preview.RunID, err)
	}
	out.RunID = preview.RunID

	i.logger.With("run_id", preview.RunID).Info("[importer] %s", OutcomeSummary(out))
	return out, nil
}

// Import is Preview followed by Apply.
func (i *Importer) Import(ctx context.Context, text string, mode SimilarMode) (*models.ImportPreview, *models.ImportOutcome, error) {
	preview, err := i.Preview(ctx, text)
	if err != nil {
		return nil, nil, err
	}
	out, err := i.Apply(ctx, preview, mode)
	if err != nil {
		return preview, nil, err
	}
	return preview, out, nil
}

// PreviewSummary is the one-line "would add" text shown before applying.
func PreviewSummary(p *models.ImportPreview) string {
	cls := p.Classification
	items := 0
	for _, h := range cls.Novel {
		items += len(h.Items)
	}
	return fmt.Sprintf("Would add: %d houses, %d items (duplicates: %d, similar: %d)",
		len(cls.Novel), items, len(cls.Duplicates), len(cls.Similar))
}

// OutcomeSummary is the one-line result of an applied batch.
func OutcomeSummary(o *models.ImportOutcome) string {
	return fmt.Sprintf("Imported dup items: %d, Merged: %d (%d items), New houses: %d (%d items)",
		o.DuplicateItemsAdded, o.MergedHouses, o.MergedItemsAdded, o.NewHouses, o.NewItems)
}
