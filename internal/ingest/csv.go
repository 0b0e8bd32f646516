package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/verte-zerg/tuifit/internal/model"
)

// Delimiter separates CSV columns.
const Delimiter = '|'

// ParseCSV reads pipe-delimited text. The first line is a header; the first
// two columns of every following line are x and y.
func ParseCSV(r io.Reader) (model.Series, error) {
	reader := csv.NewReader(r)
	reader.Comma = Delimiter
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return model.Series{}, fmt.Errorf("csv is empty")
		}
		return model.Series{}, fmt.Errorf("failed to read csv header: %w", err)
	}
	var xTitle, yTitle string
	if len(header) >= 2 {
		xTitle = strings.TrimSpace(header[0])
		yTitle = strings.TrimSpace(header[1])
	}

	var xs, ys []float64
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return model.Series{}, fmt.Errorf("failed to read csv: %w", err)
		}
		line, _ := reader.FieldPos(0)
		if len(record) < 2 {
			return model.Series{}, fmt.Errorf("line %d: expected 2 columns, got %d", line, len(record))
		}
		x, err := parseCell(record[0])
		if err != nil {
			return model.Series{}, fmt.Errorf("line %d: invalid x value: %w", line, err)
		}
		y, err := parseCell(record[1])
		if err != nil {
			return model.Series{}, fmt.Errorf("line %d: invalid y value: %w", line, err)
		}
		xs = append(xs, x)
		ys = append(ys, y)
	}
	return model.NewSeries(xs, ys, xTitle, yTitle, "")
}

func parseCell(cell string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(cell), 64)
}

// WriteCSV writes a series in the format ParseCSV reads.
func WriteCSV(w io.Writer, s model.Series) error {
	writer := csv.NewWriter(w)
	writer.Comma = Delimiter
	if err := writer.Write([]string{s.XTitle, s.YTitle}); err != nil {
		return err
	}
	for i := 0; i < s.Len(); i++ {
		row := []string{
			strconv.FormatFloat(s.X[i], 'g', -1, 64),
			strconv.FormatFloat(s.Y[i], 'g', -1, 64),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
