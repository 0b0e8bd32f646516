// Package report renders fit results and history for non-interactive output.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/tuifit/internal/fit"
	"github.com/verte-zerg/tuifit/internal/model"
)

// Format is an output encoding.
type Format string

// Output encodings.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates an output format name.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (want text, json or yaml)", name)
	}
}

// Selection is the normalized selection rect.
type Selection struct {
	X0 float64 `json:"x0" yaml:"x0"`
	X1 float64 `json:"x1" yaml:"x1"`
	Y0 float64 `json:"y0" yaml:"y0"`
	Y1 float64 `json:"y1" yaml:"y1"`
}

// Params are the fitted model parameters. Error fields are omitted when the
// covariance could not be estimated.
type Params struct {
	Amplitude    float64  `json:"amplitude" yaml:"amplitude"`
	AmplitudeErr *float64 `json:"amplitude_err,omitempty" yaml:"amplitude_err,omitempty"`
	Tau          float64  `json:"tau" yaml:"tau"`
	TauErr       *float64 `json:"tau_err,omitempty" yaml:"tau_err,omitempty"`
	Offset       *float64 `json:"offset,omitempty" yaml:"offset,omitempty"`
	OffsetErr    *float64 `json:"offset_err,omitempty" yaml:"offset_err,omitempty"`
}

// Fit is the serializable form of a publication.
type Fit struct {
	Source      string    `json:"source" yaml:"source"`
	Trigger     string    `json:"trigger" yaml:"trigger"`
	Selection   Selection `json:"selection" yaml:"selection"`
	Points      int       `json:"points" yaml:"points"`
	Params      Params    `json:"params" yaml:"params"`
	Tau         string    `json:"time_constant" yaml:"time_constant"`
	HalfLife    string    `json:"half_life" yaml:"half_life"`
	Rate        string    `json:"rate" yaml:"rate"`
	Status      string    `json:"status" yaml:"status"`
	Converged   bool      `json:"converged" yaml:"converged"`
	SSR         float64   `json:"ssr" yaml:"ssr"`
	Evaluations int       `json:"evaluations" yaml:"evaluations"`
}

// BuildFit converts a publication into a report.
func BuildFit(source string, pub fit.Publication) Fit {
	res := pub.Result
	errs := res.StdErrs()
	out := Fit{
		Source:      source,
		Trigger:     string(pub.Trigger),
		Selection:   Selection{X0: pub.Rect.X0, X1: pub.Rect.X1, Y0: pub.Rect.Y0, Y1: pub.Rect.Y1},
		Points:      len(pub.Points),
		Tau:         pub.Tau,
		HalfLife:    pub.HalfLife,
		Rate:        pub.Rate,
		Status:      res.Status.String(),
		Converged:   res.Converged(),
		SSR:         res.SSR,
		Evaluations: res.Evaluations,
		Params: Params{
			Amplitude: res.Amplitude,
			Tau:       res.Tau,
		},
	}
	out.Params.AmplitudeErr = finite(errs, 0)
	out.Params.TauErr = finite(errs, 1)
	if res.HasOffset {
		offset := res.Offset
		out.Params.Offset = &offset
		out.Params.OffsetErr = finite(errs, 2)
	}
	return out
}

func finite(values []float64, i int) *float64 {
	if i >= len(values) {
		return nil
	}
	v := values[i]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// WriteFit encodes a fit report.
func WriteFit(w io.Writer, format Format, f Fit, showWarning bool) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, f)
	case FormatYAML:
		return writeYAML(w, f)
	default:
		return writeFitText(w, f, showWarning)
	}
}

func writeFitText(w io.Writer, f Fit, showWarning bool) error {
	lines := []string{
		fmt.Sprintf("Source: %s", f.Source),
		fmt.Sprintf("Selection: x=[%g, %g] y=[%g, %g] (%d points, %s)", f.Selection.X0, f.Selection.X1, f.Selection.Y0, f.Selection.Y1, f.Points, f.Trigger),
		fmt.Sprintf("Time constant: %s", f.Tau),
		fmt.Sprintf("Half-life: %s", f.HalfLife),
		fmt.Sprintf("Rate: %s", f.Rate),
		fmt.Sprintf("Amplitude: %s", withErr(f.Params.Amplitude, f.Params.AmplitudeErr)),
		fmt.Sprintf("Tau: %s", withErr(f.Params.Tau, f.Params.TauErr)),
	}
	if f.Params.Offset != nil {
		lines = append(lines, fmt.Sprintf("Offset: %s", withErr(*f.Params.Offset, f.Params.OffsetErr)))
	}
	lines = append(lines, fmt.Sprintf("Status: %s (ssr=%.6g, %d evaluations)", f.Status, f.SSR, f.Evaluations))
	if showWarning {
		lines = append(lines, WarningText)
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// WarningText is shown when the optimizer did not report success.
const WarningText = "Warning: the fit did not converge; results may be unreliable."

func withErr(v float64, err *float64) string {
	if err == nil {
		return fmt.Sprintf("%.6g", v)
	}
	return fmt.Sprintf("%.6g ± %.2g", v, *err)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode json: %w", err)
	}
	return nil
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	return enc.Close()
}

// Record is the serializable form of a stored fit.
type Record struct {
	ID        int64     `json:"id" yaml:"id"`
	CreatedAt string    `json:"created_at" yaml:"created_at"`
	SessionID string    `json:"session_id" yaml:"session_id"`
	Source    string    `json:"source" yaml:"source"`
	Trigger   string    `json:"trigger" yaml:"trigger"`
	Selection Selection `json:"selection" yaml:"selection"`
	Points    int       `json:"points" yaml:"points"`
	Amplitude float64   `json:"amplitude" yaml:"amplitude"`
	Tau       float64   `json:"tau" yaml:"tau"`
	Offset    *float64  `json:"offset,omitempty" yaml:"offset,omitempty"`
	Status    string    `json:"status" yaml:"status"`
}

func toRecord(rec model.FitRecord) Record {
	out := Record{
		ID:        rec.ID,
		CreatedAt: rec.CreatedAt.Format(time.RFC3339),
		SessionID: rec.SessionID,
		Source:    rec.Source,
		Trigger:   string(rec.Trigger),
		Selection: Selection{X0: rec.Rect.X0, X1: rec.Rect.X1, Y0: rec.Rect.Y0, Y1: rec.Rect.Y1},
		Points:    rec.Points,
		Amplitude: rec.Amplitude,
		Tau:       rec.Tau,
		Status:    rec.Status,
	}
	if rec.HasOffset {
		offset := rec.Offset
		out.Offset = &offset
	}
	return out
}
