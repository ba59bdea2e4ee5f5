package services

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"

	"boohill-ingest/models"
	"boohill-ingest/utils"
)

// ReportService builds and prints batch summaries.
type ReportService struct {
	logger *utils.Logger
}

func NewReportService(logger *utils.Logger) *ReportService {
	return &ReportService{logger: logger}
}

// Generate summarises a preview, and the outcome when it was applied.
func (s *ReportService) Generate(p *models.ImportPreview, out *models.ImportOutcome) *models.BatchReport {
	r := &models.BatchReport{
		Prices:        make(map[models.TransactionType]*models.PriceStats),
		ItemsByOffice: make(map[string]int),
		Outcome:       out,
	}
	if p == nil || p.Parse == nil {
		return r
	}

	r.RunID = p.RunID
	r.Houses = p.Parse.Houses
	r.TotalHouses = len(p.Parse.Houses)
	r.TotalItems = p.Parse.TotalItems()

	if cls := p.Classification; cls != nil {
		r.NovelHouses = len(cls.Novel)
		for _, h := range cls.Novel {
			r.NovelItems += len(h.Items)
		}
		r.DuplicateHouses = len(cls.Duplicates)
		r.SimilarHouses = len(cls.Similar)
	}

	sums := make(map[models.TransactionType]float64)
	for _, h := range p.Parse.Houses {
		for _, it := range h.Items {
			if it.Office != "" {
				r.ItemsByOffice[it.Office]++
			}
			if it.Price == nil {
				r.UnpricedItems++
				continue
			}

			st, ok := r.Prices[it.TransactionType]
			if !ok {
				st = &models.PriceStats{Min: *it.Price, Max: *it.Price}
				r.Prices[it.TransactionType] = st
			}
			st.Count++
			sums[it.TransactionType] += *it.Price
			if *it.Price < st.Min {
				st.Min = *it.Price
			}
			if *it.Price > st.Max {
				st.Max = *it.Price
			}
		}
	}
	for tt, st := range r.Prices {
		st.Average = sums[tt] / float64(st.Count)
	}

	return r
}

// Print writes the report as aligned text. Widths are measured in terminal
// cells so Hangul columns line up.
func (s *ReportService) Print(w io.Writer, r *models.BatchReport) {
	sep := strings.Repeat("═", 60)
	thin := strings.Repeat("─", 60)

	fmt.Fprintf(w, "\n%s\n", sep)
	fmt.Fprintf(w, "  BATCH REPORT %s\n", r.RunID)
	fmt.Fprintf(w, "%s\n\n", sep)

	fmt.Fprintf(w, "  Overview\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Houses parsed   : %d (%d items)\n", r.TotalHouses, r.TotalItems)
	fmt.Fprintf(w, "  New             : %d (%d items)\n", r.NovelHouses, r.NovelItems)
	fmt.Fprintf(w, "  Duplicates      : %d\n", r.DuplicateHouses)
	fmt.Fprintf(w, "  Similar         : %d\n", r.SimilarHouses)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "  Houses\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.Houses) == 0 {
		fmt.Fprintf(w, "  No houses found\n")
	}
	for _, h := range r.Houses {
		status := "new"
		if h.IsDuplicate() {
			status = fmt.Sprintf("dup of %d", *h.DuplicateOf)
		}
		fmt.Fprintf(w, "  %s %s %s %s %s %3d items  %s\n",
			cell(h.ClusterName, 16),
			cell(h.BuildingNumber+"동", 6),
			cell(orNone(h.UnitNumber), 5),
			cell(h.Area+"평", 5),
			cell(h.Direction, 6),
			len(h.Items), status)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "  Prices\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.Prices) == 0 {
		fmt.Fprintf(w, "  No price data available\n")
	}
	for _, tt := range []models.TransactionType{models.Sale, models.Lease} {
		st, ok := r.Prices[tt]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "  %s  %3d items  min %s  avg %s  max %s\n",
			cell(string(tt), 4), st.Count, eok(st.Min), eok(st.Average), eok(st.Max))
	}
	if r.UnpricedItems > 0 {
		fmt.Fprintf(w, "  %d items without a price\n", r.UnpricedItems)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "  Items by Office\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.ItemsByOffice) == 0 {
		fmt.Fprintf(w, "  No office data\n")
	} else {
		type officeCount struct {
			office string
			count  int
		}
		var offices []officeCount
		for o, n := range r.ItemsByOffice {
			offices = append(offices, officeCount{o, n})
		}
		sort.Slice(offices, func(i, j int) bool {
			if offices[i].count != offices[j].count {
				return offices[i].count > offices[j].count
			}
			return offices[i].office < offices[j].office
		})
		for _, oc := range offices {
			fmt.Fprintf(w, "  %s %s (%d)\n", cell(oc.office, 30), strings.Repeat("█", oc.count), oc.count)
		}
	}

	if r.Outcome != nil {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "  Import\n")
		fmt.Fprintf(w, "  %s\n", thin)
		fmt.Fprintf(w, "  %s\n", OutcomeSummary(r.Outcome))
	}

	fmt.Fprintf(w, "\n%s\n\n", sep)
}

// PrintTrace writes the trace lines of a preview.
func (s *ReportService) PrintTrace(w io.Writer, p *models.ImportPreview) {
	for _, l := range p.Parse.Logs {
		fmt.Fprintln(w, l)
	}
	for _, l := range p.Classification.Logs {
		fmt.Fprintln(w, l)
	}
}

// PrintHouses lists persisted houses with their items.
func (s *ReportService) PrintHouses(w io.Writer, houses []*models.PersistedHouse) {
	if len(houses) == 0 {
		fmt.Fprintf(w, "  No houses found\n")
		return
	}
	for _, h := range houses {
		fmt.Fprintf(w, "  #%-5d %s %s %s %d items\n",
			h.ID, cell(h.BuildingNumber+"동", 6), cell(orNone(h.UnitNumber), 5), cell(h.Area+"평", 5), len(h.Items))
		for _, it := range h.Items {
			p := (&models.ParsedItem{Price: it.Price}).PriceDisplay()
			fmt.Fprintf(w, "          %s %s %s %s\n",
				cell(p, 8), cell(orNone(it.Office), 24), cell(orNone(it.LastUpdated), 10), it.Remark)
		}
	}
}

// cell pads or truncates s to width terminal cells.
func cell(s string, width int) string {
	return runewidth.FillRight(runewidth.Truncate(s, width, "…"), width)
}

func eok(v float64) string {
	return (&models.ParsedItem{Price: &v}).PriceDisplay()
}

func orNone(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
