package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"boohill-ingest/models"
)

var csvHeader = []string{
	"cluster", "building", "unit", "area", "direction", "duplicate_of",
	"transaction_type", "price", "office", "last_updated", "remark",
}

// CSVWriter writes a parsed batch to CSV, one row per item, so a paste can be
// reviewed in a spreadsheet before it is imported.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	closer io.Closer
	writer *csv.Writer
}

var _ BatchWriter = (*CSVWriter)(nil)

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	c, err := newCSVWriter(f, f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return c, nil
}

func newCSVWriter(w io.Writer, closer io.Closer) (*CSVWriter, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	cw.Flush()
	return &CSVWriter{closer: closer, writer: cw}, cw.Error()
}

// WriteHouses appends one row per item of every house.
func (c *CSVWriter) WriteHouses(houses []*models.ParsedHouse) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, h := range houses {
		dup := ""
		if h.DuplicateOf != nil {
			dup = fmt.Sprintf("%d", *h.DuplicateOf)
		}
		for _, it := range h.Items {
			price := ""
			if it.Price != nil {
				price = models.FormatPrice(it.Price)
			}
			row := []string{
				h.ClusterName,
				h.BuildingNumber,
				h.UnitNumber,
				h.Area,
				h.Direction,
				dup,
				string(it.TransactionType),
				price,
				it.Office,
				it.LastUpdated,
				it.Remark,
			}
			if err := c.writer.Write(row); err != nil {
				return fmt.Errorf("csv: write row: %w", err)
			}
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	if c.closer == nil {
		return c.writer.Error()
	}
	return c.closer.Close()
}
