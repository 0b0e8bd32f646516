package report

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/verte-zerg/tuifit/internal/fit"
	"github.com/verte-zerg/tuifit/internal/model"
	"github.com/verte-zerg/tuifit/internal/plot"
)

// HistoryReader lists stored fits.
type HistoryReader interface {
	ListFits(ctx context.Context, filter model.HistoryFilter) ([]model.FitRecord, error)
}

// LoadHistory reads the records matching filter.
func LoadHistory(ctx context.Context, st HistoryReader, filter model.HistoryFilter) ([]model.FitRecord, error) {
	records, err := st.ListFits(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return records, nil
}

// HistoryHeaders are the columns of the history table.
var HistoryHeaders = []string{"ID", "When", "Source", "Trigger", "Points", "Tau", "Half-life", "Status"}

// HistoryRows formats records as table cells.
func HistoryRows(records []model.FitRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			strconv.FormatInt(rec.ID, 10),
			rec.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			rec.Source,
			string(rec.Trigger),
			strconv.Itoa(rec.Points),
			fit.FormatConstant(rec.Tau),
			fit.FormatConstant(rec.Tau * math.Ln2),
			rec.Status,
		})
	}
	return rows
}

// WriteHistory encodes records in the requested format.
func WriteHistory(w io.Writer, format Format, records []model.FitRecord) error {
	switch format {
	case FormatJSON, FormatYAML:
		out := make([]Record, len(records))
		for i, rec := range records {
			out[i] = toRecord(rec)
		}
		if format == FormatJSON {
			return writeJSON(w, out)
		}
		return writeYAML(w, out)
	default:
		if len(records) == 0 {
			_, err := fmt.Fprintln(w, "No fits recorded.")
			return err
		}
		lines := plot.FormatTable(HistoryHeaders, HistoryRows(records), map[int]bool{0: true, 4: true, 5: true, 6: true})
		for _, line := range lines {
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
		return nil
	}
}
