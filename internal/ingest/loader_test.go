package ingest

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

type fakeDecoder struct{}

func (fakeDecoder) Decode(r io.Reader) (Curve, error) {
	if _, err := io.ReadAll(r); err != nil {
		return Curve{}, err
	}
	return Curve{X: []float64{0, 1}, Y: []float64{10, 5}, Title: "run 7"}, nil
}

func TestLoaderLocalCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decay.csv")
	if err := os.WriteFile(path, []byte("x|y\n0|100\n1|60\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	l := &Loader{}
	s, format, err := l.Load(context.Background(), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if format != FormatCSV || s.Len() != 2 {
		t.Fatalf("unexpected result %s %+v", format, s)
	}
}

func TestLoaderCurveContainer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.tdf")
	if err := os.WriteFile(path, []byte{0x00, 0x01}, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := (&Loader{}).Load(context.Background(), path); !errors.Is(err, ErrNoCurveDecoder) {
		t.Fatalf("expected ErrNoCurveDecoder, got %v", err)
	}
	s, format, err := (&Loader{Curves: fakeDecoder{}}).Load(context.Background(), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if format != FormatCurveContainer || s.Title != "run 7" || s.Len() != 2 {
		t.Fatalf("unexpected result %s %+v", format, s)
	}
}

func TestLoaderMissingFile(t *testing.T) {
	if _, _, err := (&Loader{}).Load(context.Background(), filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Fatalf("expected error")
	}
}

func TestLoaderURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("x|y\n0|3\n"))
	}))
	t.Cleanup(srv.Close)

	l := &Loader{Fetcher: NewFetcher(0, nil)}
	s, format, err := l.Load(context.Background(), srv.URL+"/remote.csv")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if format != FormatCSV || s.Y[0] != 3 {
		t.Fatalf("unexpected result %s %+v", format, s)
	}
	if _, _, err := l.Load(context.Background(), srv.URL+"/remote.json"); !errors.Is(err, ErrUnsupportedExtension) {
		t.Fatalf("expected ErrUnsupportedExtension, got %v", err)
	}
}

func TestLoaderRefreshingLeavesOriginal(t *testing.T) {
	l := &Loader{Fetcher: NewFetcher(0, newMapCache())}
	r := l.Refreshing()
	if !r.Fetcher.Refresh || l.Fetcher.Refresh {
		t.Fatalf("expected only the copy to refresh")
	}
	if r.Fetcher.Cache != l.Fetcher.Cache {
		t.Fatalf("expected the copy to share the cache")
	}
	if (&Loader{}).Refreshing().Fetcher != nil {
		t.Fatalf("expected a nil fetcher to stay nil")
	}
}
