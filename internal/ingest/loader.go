package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/verte-zerg/tuifit/internal/model"
)

// Loader resolves a source string into a Series.
type Loader struct {
	Fetcher *Fetcher
	Curves  CurveDecoder
}

// Refreshing returns a copy of l that always downloads remote sources,
// refreshing the cache instead of reading from it.
func (l *Loader) Refreshing() *Loader {
	out := *l
	if l.Fetcher != nil {
		fetcher := *l.Fetcher
		fetcher.Refresh = true
		out.Fetcher = &fetcher
	}
	return &out
}

// Load reads source, a local path or an http(s) URL, and returns the series
// with the format it was decoded as.
func (l *Loader) Load(ctx context.Context, source string) (model.Series, Format, error) {
	if IsURL(source) {
		return l.loadURL(ctx, source)
	}
	return l.loadFile(source)
}

func (l *Loader) loadFile(path string) (model.Series, Format, error) {
	format := FormatFromName(path)
	file, err := os.Open(path)
	if err != nil {
		return model.Series{}, format, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() {
		_ = file.Close()
	}()
	series, err := l.decode(format, file)
	if err != nil {
		return model.Series{}, format, fmt.Errorf("failed to load %s: %w", filepath.Base(path), err)
	}
	return series, format, nil
}

func (l *Loader) loadURL(ctx context.Context, rawURL string) (model.Series, Format, error) {
	format, err := FormatFromURL(rawURL)
	if err != nil {
		return model.Series{}, 0, err
	}
	fetcher := l.Fetcher
	if fetcher == nil {
		fetcher = NewFetcher(0, nil)
	}
	data, err := fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return model.Series{}, format, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	series, err := l.decode(format, bytes.NewReader(data))
	if err != nil {
		return model.Series{}, format, fmt.Errorf("failed to load %s: %w", rawURL, err)
	}
	return series, format, nil
}

func (l *Loader) decode(format Format, r io.Reader) (model.Series, error) {
	switch format {
	case FormatCSV:
		return ParseCSV(r)
	case FormatCurveContainer:
		if l.Curves == nil {
			return model.Series{}, ErrNoCurveDecoder
		}
		curve, err := l.Curves.Decode(r)
		if err != nil {
			return model.Series{}, err
		}
		return model.NewSeries(curve.X, curve.Y, curve.XTitle, curve.YTitle, curve.Title)
	default:
		return model.Series{}, fmt.Errorf("unsupported format %s", format)
	}
}
