package parser

import (
	"strings"

	"boohill-ingest/models"
)

// itemScan is the in-progress state of one item block.
type itemScan struct {
	items    []*models.ParsedItem
	open     *models.ParsedItem
	sawPrice bool
}

// commit keeps the open item if it carries a price or an office.
func (s *itemScan) commit() bool {
	if s.open == nil || !s.open.Retained() {
		return false
	}
	s.items = append(s.items, s.open)
	return true
}

// scanItems assembles one item per price line from start until the next
// house header or end of input, and returns the index of that header (or
// len(lines)). The first price line of a multi-item house is the portal's
// range summary when it contains "~" and is skipped once.
func (p *Parser) scanItems(lines []string, start int, multiItem bool, tr *trace) ([]*models.ParsedItem, int) {
	s := &itemScan{}

	j := start
	for ; j < len(lines); j++ {
		probe := lines[j]
		if probe == "" {
			continue
		}
		if isHouseHeader(probe) {
			break
		}

		if pm := priceLine.FindStringSubmatch(probe); pm != nil {
			priceText := pm[2]
			if !s.sawPrice && multiItem && strings.Contains(priceText, rangeSep) {
				tr.add("    Skip summary price at line %d: %s", j+1, priceText)
				s.sawPrice = true
				continue
			}
			s.sawPrice = true

			if s.commit() {
				tr.add("    Saved item (price=%s, office=%s) at line %d",
					models.FormatPrice(s.open.Price), s.open.Office, j+1)
			}
			s.open = &models.ParsedItem{
				TransactionType: models.TransactionType(pm[1]),
				Price:           ParsePrice(priceText),
			}
			tr.add("    New item at line %d: %s %s -> %s",
				j+1, pm[1], priceText, models.FormatPrice(s.open.Price))
			continue
		}

		if s.open == nil {
			continue
		}

		if s.open.Remark == "" && strings.Contains(probe, quote) {
			if remark, end := extractQuotedBlock(lines, j); remark != "" {
				s.open.Remark = remark
				j = end
				tr.add("    Remark captured through line %d", j+1)
				continue
			}
		}

		if dm := dateLine.FindStringSubmatch(probe); dm != nil {
			s.open.LastUpdated = formatDate(dm)
			tr.add("    Date at line %d: %s", j+1, s.open.LastUpdated)
			if office, k, ok := p.findOffice(lines, j); ok {
				s.open.Office = office
				tr.add("    Office at line %d: %s", k+1, office)
			}
		}
	}

	if s.commit() {
		tr.add("    Saved final item")
	}
	return s.items, j
}

// findOffice returns the first line after the date line, within the office
// lookahead, that is neither blank nor known noise. House headers count as
// noise and are looked past.
func (p *Parser) findOffice(lines []string, dateIdx int) (string, int, bool) {
	for k := dateIdx + 1; k < len(lines) && k <= dateIdx+p.opts.OfficeLookahead; k++ {
		line := lines[k]
		if line == "" {
			continue
		}
		if isNonOfficeLine(line) {
			continue
		}
		return line, k, true
	}
	return "", dateIdx, false
}

// extractQuotedBlock reads a remark starting at start. The first non-blank
// line must contain a quote; following non-blank lines are taken until one
// with a quote closes the block. A line with two quotes closes on itself, and
// a house header ends an unterminated block before it. It returns the joined
// remark and the index of the last consumed line, or "" and start.
func extractQuotedBlock(lines []string, start int) (string, int) {
	var parts []string
	end := start
	inQuote := false

	for i := start; i < len(lines); i++ {
		line := lines[i]
		if line == "" {
			continue
		}
		if isHouseHeader(line) {
			break
		}

		if !inQuote {
			if !strings.Contains(line, quote) {
				break
			}
			inQuote = true
			if cleaned := stripQuotes(line); cleaned != "" {
				parts = append(parts, cleaned)
			}
			end = i
			if strings.Count(line, quote) >= 2 {
				break
			}
			continue
		}

		if strings.Contains(line, quote) {
			if cleaned := stripQuotes(line); cleaned != "" {
				parts = append(parts, cleaned)
			}
			end = i
			break
		}

		parts = append(parts, line)
		end = i
	}

	if len(parts) == 0 {
		return "", start
	}
	return strings.TrimSpace(strings.Join(parts, " ")), end
}

func stripQuotes(line string) string {
	return strings.TrimSpace(strings.ReplaceAll(line, quote, ""))
}
