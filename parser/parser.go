// Package parser turns text copied from a listing portal into houses and
// their items. Parsing never fails: unrecognised lines are skipped and every
// decision is written to an ordered trace so a run can be audited.
package parser

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"boohill-ingest/models"
)

// Options tunes the scanner to the portal layout.
type Options struct {
	// DefaultArea is used when no area is found on the floor line.
	DefaultArea string
	// HeaderWindow bounds the descriptor lookahead, counted from the header.
	HeaderWindow int
	// OfficeLookahead is how many lines after a date may hold the office.
	OfficeLookahead int
}

// DefaultOptions returns the settings the portal layout was measured with.
func DefaultOptions() Options {
	return Options{DefaultArea: "47", HeaderWindow: 15, OfficeLookahead: 4}
}

// Parser scans pasted listing text. It holds no state between runs and is
// safe for concurrent use.
type Parser struct {
	opts Options
}

// New creates a Parser; zero-valued options fall back to DefaultOptions.
func New(opts Options) *Parser {
	def := DefaultOptions()
	if opts.DefaultArea == "" {
		opts.DefaultArea = def.DefaultArea
	}
	if opts.HeaderWindow <= 0 {
		opts.HeaderWindow = def.HeaderWindow
	}
	if opts.OfficeLookahead <= 0 {
		opts.OfficeLookahead = def.OfficeLookahead
	}
	return &Parser{opts: opts}
}

// Parse runs a default Parser over text.
func Parse(text string) *models.ParseResult {
	return New(DefaultOptions()).Parse(text)
}

// trace collects the human-readable decision log of one run.
type trace struct {
	lines []string
}

func (t *trace) add(format string, args ...interface{}) {
	t.lines = append(t.lines, fmt.Sprintf(format, args...))
}

// houseScan is the in-progress state of one house block. Descriptors are
// first-match-wins: once floorSeen is set nothing overwrites unit, area or
// direction.
type houseScan struct {
	house      *models.ParsedHouse
	floorSeen  bool
	multiItem  bool
	itemsStart int
}

// Parse scans text and returns the houses that kept at least one item.
func (p *Parser) Parse(text string) *models.ParseResult {
	result := &models.ParseResult{Houses: []*models.ParsedHouse{}, Logs: []string{}}
	if strings.TrimSpace(text) == "" {
		return result
	}

	raw := SplitLines(text)
	lines := cleanLines(raw)
	tr := &trace{}

	tr.add("Raw length: %d, LF count: %d", utf8.RuneCountInString(text), strings.Count(text, "\n"))
	tr.add("Total lines: %d", len(lines))
	preview := make([]string, 0, 5)
	for i := 0; i < len(raw) && i < 5; i++ {
		preview = append(preview, fmt.Sprintf("[%d] %s", i+1, raw[i]))
	}
	tr.add("First lines: %s", strings.Join(preview, " | "))

	for i := 0; i < len(lines); {
		m := houseHeader.FindStringSubmatch(lines[i])
		if m == nil {
			i++
			continue
		}
		house, next := p.scanHouse(lines, i, m, tr)
		if house != nil {
			result.Houses = append(result.Houses, house)
		}
		i = next
	}

	result.Logs = tr.lines
	return result
}

// scanHouse handles one block opened by the header at index header and
// returns the index where the outer scan resumes. The returned house is nil
// when no item survived.
func (p *Parser) scanHouse(lines []string, header int, m []string, tr *trace) (*models.ParsedHouse, int) {
	cluster := strings.TrimSpace(m[1])
	building := m[2]
	tr.add("House header at line %d: %s %s동", header+1, cluster, building)

	hs := &houseScan{
		house: &models.ParsedHouse{
			ClusterName:    cluster,
			BuildingNumber: building,
			Area:           p.opts.DefaultArea,
		},
		itemsStart: header + 1,
	}
	p.probeWindow(lines, header, hs, tr)

	items, next := p.scanItems(lines, hs.itemsStart, hs.multiItem, tr)
	if len(items) == 0 {
		tr.add("  Skipped house (no items found, end at line %d)", next)
		return nil, next
	}

	unique, dropped := DeduplicateItems(items)
	for _, it := range dropped {
		tr.add("    Duplicate item skipped (price=%s, office=%s, remark=%s)",
			models.FormatPrice(it.Price), it.Office, it.Remark)
	}

	h := hs.house
	h.Items = unique
	h.Key = models.HouseKey(h.ClusterName, h.BuildingNumber, h.UnitNumber, h.Area)
	tr.add("  Added house with %d items (end at line %d)", len(h.Items), next)
	return h, next
}

// probeWindow reads descriptors from the lines after the header. It stops at
// the window edge, at the next header, or at the collapse marker, which also
// moves the item start to the line after it.
func (p *Parser) probeWindow(lines []string, header int, hs *houseScan, tr *trace) {
	for j := header + 1; j < len(lines) && j < header+p.opts.HeaderWindow; j++ {
		probe := lines[j]
		if probe == "" {
			continue
		}
		if isHouseHeader(probe) {
			break
		}

		if !hs.floorSeen {
			if fm := floorDescriptor.FindStringSubmatch(probe); fm != nil {
				hs.floorSeen = true
				readFloorLine(probe, j, fm[1], hs.house, tr)
			}
		}

		if multiItemMarker.MatchString(probe) {
			hs.multiItem = true
			tr.add("  Multi-item marker at line %d", j+1)
		}

		if strings.Contains(probe, collapseMarker) {
			hs.itemsStart = j + 1
			tr.add("  Items start after line %d", j+1)
			break
		}
	}
}

// readFloorLine fills unit, area and direction from the first floor line.
// Area and direction are only ever taken from this line.
func readFloorLine(line string, idx int, floor string, h *models.ParsedHouse, tr *trace) {
	h.UnitNumber = EncodeUnit(floor)
	tr.add("  Floor at line %d: %s -> unit %s", idx+1, line, h.UnitNumber)

	if am := areaInfoLine.FindStringSubmatch(line); am != nil {
		h.Area = am[1]
		tr.add("  Area at line %d: %s평 (info-line)", idx+1, h.Area)
	} else if am := areaFallback.FindStringSubmatch(line); am != nil {
		h.Area = am[1]
		tr.add("  Area at line %d: %s평 (fallback)", idx+1, h.Area)
	}

	if dm := direction.FindStringSubmatch(line); dm != nil {
		h.Direction = dm[1]
		tr.add("  Direction at line %d: %s", idx+1, h.Direction)
	}
}
