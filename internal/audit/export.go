package audit

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// CSVExporter renders timeline and movement exports. Quantities are printed
// in the workshop's bookkeeping locale, so 1234.5 becomes "1.234,500".
type CSVExporter struct {
	printer *message.Printer
}

// NewCSVExporter builds an exporter with German number formatting.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{printer: message.NewPrinter(language.German)}
}

// WriteTimeline encodes audit rows as CSV with a header line.
func (e *CSVExporter) WriteTimeline(rows []TimelineRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = ';'
	if err := w.Write([]string{"Zeitpunkt", "Akteur", "Aktion", "Entität", "ID", "Details"}); err != nil {
		return nil, fmt.Errorf("audit: write csv header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.At.Format(time.RFC3339),
			row.Actor,
			row.Action,
			row.Entity,
			row.EntityID,
			row.Meta,
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("audit: write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("audit: flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteMovements encodes ledger rows as CSV with localised quantities.
func (e *CSVExporter) WriteMovements(rows []MovementRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = ';'
	header := []string{"Zeitpunkt", "Artikeltyp", "Artikel", "Bewegung", "Menge", "Einheit", "Bestand vorher", "Bestand nachher", "Grund", "Referenz", "Akteur"}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("audit: write csv header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.At.Format(time.RFC3339),
			row.ArticleType,
			fmt.Sprintf("%d", row.ArticleID),
			row.Movement,
			e.quantity(row.Delta),
			row.Unit,
			e.quantity(row.Before),
			e.quantity(row.After),
			row.Reason,
			row.Reference,
			row.Actor,
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("audit: write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("audit: flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *CSVExporter) quantity(v float64) string {
	return e.printer.Sprintf("%.3f", v)
}
