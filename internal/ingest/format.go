// Package ingest loads data series from files, URLs and curve containers.
package ingest

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// Format is a supported input format.
type Format int

// Input formats.
const (
	FormatCSV Format = iota + 1
	FormatCurveContainer
)

// ErrUnsupportedExtension is returned for URLs that end in neither .csv nor .tdf.
var ErrUnsupportedExtension = errors.New("please use a url ending with either .csv or .tdf")

func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatCurveContainer:
		return "tdf"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// FormatFromName resolves a local file name. Anything that is not .csv is
// treated as a curve container.
func FormatFromName(name string) Format {
	if strings.EqualFold(filepath.Ext(name), ".csv") {
		return FormatCSV
	}
	return FormatCurveContainer
}

// FormatFromURL resolves a remote source from the extension of its path.
func FormatFromURL(raw string) (Format, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid url: %w", err)
	}
	switch strings.ToLower(path.Ext(u.Path)) {
	case ".csv":
		return FormatCSV, nil
	case ".tdf":
		return FormatCurveContainer, nil
	default:
		return 0, ErrUnsupportedExtension
	}
}

// IsURL reports whether source should be fetched over HTTP.
func IsURL(source string) bool {
	lower := strings.ToLower(source)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
