package parser

import (
	"fmt"

	"boohill-ingest/models"
)

// DeduplicateItems keeps the first item per Key in input order. Later
// occurrences come back in dropped so the caller can report them.
func DeduplicateItems(items []*models.ParsedItem) (unique, dropped []*models.ParsedItem) {
	seen := make(map[string]struct{}, len(items))
	unique = make([]*models.ParsedItem, 0, len(items))

	for _, it := range items {
		key := it.Key()
		if _, dup := seen[key]; dup {
			dropped = append(dropped, it)
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, it)
	}
	return unique, dropped
}

// MergeItems appends the incoming items whose Key is not already in target
// and returns the grown slice with the number added.
func MergeItems(target, incoming []*models.ParsedItem) ([]*models.ParsedItem, int) {
	seen := make(map[string]struct{}, len(target)+len(incoming))
	for _, it := range target {
		seen[it.Key()] = struct{}{}
	}

	added := 0
	for _, it := range incoming {
		key := it.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		target = append(target, it)
		added++
	}
	return target, added
}

// CollapseHouses folds houses with the same Key into the first one, merging
// their items. The same unit pasted twice in one batch becomes one house.
// It returns the collapsed list and one log line per fold.
func CollapseHouses(houses []*models.ParsedHouse) ([]*models.ParsedHouse, []string) {
	byKey := make(map[string]*models.ParsedHouse, len(houses))
	out := make([]*models.ParsedHouse, 0, len(houses))
	var logs []string

	for _, h := range houses {
		first, ok := byKey[h.Key]
		if !ok {
			byKey[h.Key] = h
			out = append(out, h)
			continue
		}
		var added int
		first.Items, added = MergeItems(first.Items, h.Items)
		logs = append(logs, fmt.Sprintf("Merged repeated house %s: %d new items", h.Key, added))
	}
	return out, logs
}
