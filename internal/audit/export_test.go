package audit

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWriteMovementsLocalisesQuantities(t *testing.T) {
	exporter := NewCSVExporter()
	at := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	out, err := exporter.WriteMovements([]MovementRow{
		{
			At:          at,
			ArticleType: "RAW_SOAP",
			ArticleID:   1,
			Movement:    "OUT",
			Delta:       -1234.5,
			Unit:        "g",
			Before:      5000,
			After:       3765.5,
			Reason:      "order SW-1001",
			Reference:   "ref-1",
			Actor:       "maria",
		},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "Zeitpunkt;Artikeltyp;Artikel;Bewegung;Menge;Einheit;Bestand vorher;Bestand nachher;Grund;Referenz;Akteur", lines[0])

	fields := strings.Split(lines[1], ";")
	require.Equal(t, "2026-03-14T09:30:00Z", fields[0])
	require.Equal(t, "-1.234,500", fields[4])
	require.Equal(t, "5.000,000", fields[6])
	require.Equal(t, "3.765,500", fields[7])
}

func TestWriteTimelineHeaderAndRows(t *testing.T) {
	exporter := NewCSVExporter()

	out, err := exporter.WriteTimeline([]TimelineRow{
		{
			At:       time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
			Actor:    "maria",
			Action:   "stock:produce",
			Entity:   "stock_mutation",
			EntityID: "FINISHED_GOOD:10",
			Meta:     `{"count":5}`,
		},
	})
	require.NoError(t, err)

	text := string(out)
	require.True(t, strings.HasPrefix(text, "Zeitpunkt;Akteur;Aktion;Entität;ID;Details\n"))
	require.Contains(t, text, "stock:produce")
	require.Contains(t, text, `"{""count"":5}"`)
}

func TestWriteMovementsEmpty(t *testing.T) {
	exporter := NewCSVExporter()

	out, err := exporter.WriteMovements(nil)
	require.NoError(t, err)
	require.Equal(t, 1, strings.Count(strings.TrimSpace(string(out)), "\n")+1)
}
