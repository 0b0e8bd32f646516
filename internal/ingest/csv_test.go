package ingest

import (
	"bytes"
	"strings"
	"testing"

	"github.com/verte-zerg/tuifit/internal/model"
)

func TestParseCSVHeaderAndRows(t *testing.T) {
	input := "Time | Counts\n0|100\n1 | 60\n\n# comment\n2|37\n"
	s, err := ParseCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if s.Len() != 3 {
		t.Fatalf("expected 3 samples, got %d", s.Len())
	}
	if s.X[1] != 1 || s.Y[1] != 60 || s.Y[2] != 37 {
		t.Fatalf("unexpected samples: %+v %+v", s.X, s.Y)
	}
	if s.XTitle != "Time" || s.YTitle != "Counts" || s.Title != model.DefaultTitle {
		t.Fatalf("unexpected titles: %q %q %q", s.XTitle, s.YTitle, s.Title)
	}
}

func TestParseCSVExtraColumnsIgnored(t *testing.T) {
	s, err := ParseCSV(strings.NewReader("x|y|err\n0|5|0.1\n1|4|0.2\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if s.Len() != 2 || s.Y[0] != 5 {
		t.Fatalf("unexpected series: %+v", s)
	}
}

func TestParseCSVDefaultTitles(t *testing.T) {
	s, err := ParseCSV(strings.NewReader("header\n0|1\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if s.XTitle != model.DefaultXTitle || s.YTitle != model.DefaultYTitle {
		t.Fatalf("expected default titles, got %q %q", s.XTitle, s.YTitle)
	}
}

func TestParseCSVReportsLine(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("x|y\n0|1\n1|abc\n"))
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "line 3") {
		t.Fatalf("expected line number in error, got %v", err)
	}
}

func TestParseCSVShortRow(t *testing.T) {
	if _, err := ParseCSV(strings.NewReader("x|y\n0\n")); err == nil {
		t.Fatalf("expected error for single column row")
	}
}

func TestParseCSVEmpty(t *testing.T) {
	if _, err := ParseCSV(strings.NewReader("")); err == nil {
		t.Fatalf("expected error for empty input")
	}
}

func TestWriteCSVReadsBack(t *testing.T) {
	s, err := model.NewSeries([]float64{0, 5, 10}, []float64{40, 12.5, 3}, "t", "n", "")
	if err != nil {
		t.Fatalf("series: %v", err)
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, s); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "t|n\n0|40\n") {
		t.Fatalf("unexpected output: %q", buf.String())
	}
	back, err := ParseCSV(&buf)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if back.Len() != 3 || back.Y[1] != 12.5 || back.XTitle != "t" {
		t.Fatalf("unexpected series: %+v", back)
	}
}
