package ingest

import (
	"errors"
	"testing"
)

func TestFormatFromName(t *testing.T) {
	cases := map[string]Format{
		"decay.csv":      FormatCSV,
		"DECAY.CSV":      FormatCSV,
		"run.tdf":        FormatCurveContainer,
		"run":            FormatCurveContainer,
		"dir.csv/run.bd": FormatCurveContainer,
	}
	for name, want := range cases {
		if got := FormatFromName(name); got != want {
			t.Fatalf("%s: expected %s, got %s", name, want, got)
		}
	}
}

func TestFormatFromURL(t *testing.T) {
	got, err := FormatFromURL("https://example.org/data/decay.CSV?rev=2")
	if err != nil || got != FormatCSV {
		t.Fatalf("expected csv, got %s, %v", got, err)
	}
	got, err = FormatFromURL("http://example.org/run.tdf")
	if err != nil || got != FormatCurveContainer {
		t.Fatalf("expected tdf, got %s, %v", got, err)
	}
	if _, err := FormatFromURL("http://example.org/run.txt"); !errors.Is(err, ErrUnsupportedExtension) {
		t.Fatalf("expected ErrUnsupportedExtension, got %v", err)
	}
}

func TestIsURL(t *testing.T) {
	if !IsURL("HTTPS://example.org/a.csv") || !IsURL("http://x/a.csv") {
		t.Fatalf("expected urls")
	}
	if IsURL("/tmp/a.csv") || IsURL("ftp://x/a.csv") {
		t.Fatalf("expected non-urls")
	}
}
