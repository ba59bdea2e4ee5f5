package services

import (
	"fmt"
	"strings"

	"boohill-ingest/models"
	"boohill-ingest/utils"
)

// DuplicateReason is recorded on houses tied to a persisted house.
const DuplicateReason = "Matches existing DB house with shared item"

// BuildQuery scopes the persisted fetch to the batch: every distinct building
// number, and the area only when the whole batch shares one.
func BuildQuery(houses []*models.ParsedHouse) models.HouseQuery {
	buildings := utils.NewFoldedSeenSet()
	areas := utils.NewFoldedSeenSet()

	var q models.HouseQuery
	var firstArea string
	for _, h := range houses {
		if buildings.Add(h.BuildingNumber) {
			q.BuildingNumbers = append(q.BuildingNumbers, strings.TrimSpace(h.BuildingNumber))
		}
		if areas.Add(h.Area) && firstArea == "" {
			firstArea = strings.TrimSpace(h.Area)
		}
	}
	if areas.Size() == 1 {
		q.Area = firstArea
	}
	return q
}

// Matcher classifies parsed houses against a persisted snapshot.
type Matcher struct {
	logger *utils.Logger
}

// NewMatcher creates a Matcher with the given logger.
func NewMatcher(logger *utils.Logger) *Matcher {
	return &Matcher{logger: logger}
}

// Classify splits houses into duplicates (same identity and at least one
// shared item), similar (same identity, no shared item) and novel. A
// duplicate points at the first matching persisted house in snapshot order.
// An empty snapshot makes everything novel.
func (m *Matcher) Classify(houses []*models.ParsedHouse, persisted []*models.PersistedHouse) *models.Classification {
	c := &models.Classification{
		Novel:      []*models.ParsedHouse{},
		Duplicates: []*models.ParsedHouse{},
		Similar:    []*models.SimilarMatch{},
		Logs:       []string{},
	}

	// Indexed by snapshot position; ids need not be unique.
	keys := make([]map[string]struct{}, len(persisted))
	for i, p := range persisted {
		set := make(map[string]struct{}, len(p.Items))
		for _, it := range p.Items {
			set[it.Key()] = struct{}{}
		}
		keys[i] = set
	}

	for _, h := range houses {
		var candidates []*models.PersistedHouse
		var shared *models.PersistedHouse
		for i, p := range persisted {
			if !identityMatches(h, p) {
				continue
			}
			candidates = append(candidates, p)
			if shared == nil && hasSharedItem(h.Items, keys[i]) {
				shared = p
			}
		}

		switch {
		case shared != nil:
			h.MarkDuplicate(shared.ID, DuplicateReason)
			c.Duplicates = append(c.Duplicates, h)
			c.Logs = append(c.Logs, fmt.Sprintf("DB duplicate: %s matches house_id=%d", h.Display(), shared.ID))
		case len(candidates) > 0:
			c.Similar = append(c.Similar, &models.SimilarMatch{House: h, Candidates: candidates})
			c.Logs = append(c.Logs, fmt.Sprintf("Similar: %s matches %d house(s) without a shared item", h.Display(), len(candidates)))
		default:
			c.Novel = append(c.Novel, h)
		}
	}

	if m.logger != nil {
		m.logger.Debug("[matcher] %d houses vs %d persisted: novel=%d duplicates=%d similar=%d",
			len(houses), len(persisted), len(c.Novel), len(c.Duplicates), len(c.Similar))
	}
	return c
}

// identityMatches compares building, area and unit, trimmed and
// case-insensitive. A missing unit equals a missing unit.
func identityMatches(h *models.ParsedHouse, p *models.PersistedHouse) bool {
	return strings.EqualFold(strings.TrimSpace(h.BuildingNumber), strings.TrimSpace(p.BuildingNumber)) &&
		strings.EqualFold(strings.TrimSpace(h.Area), strings.TrimSpace(p.Area)) &&
		strings.EqualFold(models.NormalizeUnit(h.UnitNumber), models.NormalizeUnit(p.UnitNumber))
}

func hasSharedItem(items []*models.ParsedItem, persisted map[string]struct{}) bool {
	for _, it := range items {
		if _, ok := persisted[it.Key()]; ok {
			return true
		}
	}
	return false
}
