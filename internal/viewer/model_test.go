package viewer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/tuifit/internal/fit"
	"github.com/verte-zerg/tuifit/internal/ingest"
	"github.com/verte-zerg/tuifit/internal/model"
)

type memHistory struct {
	records []model.FitRecord
	err     error
}

func (h *memHistory) InsertFit(_ context.Context, rec model.FitRecord) (int64, error) {
	if h.err != nil {
		return 0, h.err
	}
	rec.ID = int64(len(h.records) + 1)
	h.records = append(h.records, rec)
	return rec.ID, nil
}

func (h *memHistory) ListFits(_ context.Context, _ model.HistoryFilter) ([]model.FitRecord, error) {
	return h.records, nil
}

type stubLoader struct {
	series model.Series
}

func (l stubLoader) Load(context.Context, string) (model.Series, ingest.Format, error) {
	return l.series, ingest.FormatCSV, nil
}

func decaySession(t *testing.T) *fit.Session {
	t.Helper()
	s, err := model.NewSeries([]float64{0, 1, 2, 3, 4, 5}, []float64{100, 60, 37, 22, 13, 8}, "", "", "")
	if err != nil {
		t.Fatalf("series: %v", err)
	}
	return fit.NewSession("decay.csv", s, nil)
}

func newTestModel(t *testing.T, history History) *Model {
	t.Helper()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewModel(decaySession(t), history, nil, Options{ExportDir: t.TempDir(), Now: func() time.Time { return now }})
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return m
}

func press(m *Model, key string) {
	switch key {
	case "enter":
		m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	case "esc":
		m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	case "tab":
		m.Update(tea.KeyMsg{Type: tea.KeyTab})
	case "left":
		m.Update(tea.KeyMsg{Type: tea.KeyLeft})
	default:
		m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)})
	}
}

func TestRenderFooterFormats(t *testing.T) {
	m := &Model{
		last: &fit.Publication{Tau: "1.9832", HalfLife: "1.3746", Rate: "0.5042", ShowWarning: true},
		tabs: []string{"Plot", "History"},
	}
	out := m.renderFooter()
	if !containsAll(out, []string{"Time constant: 1.9832", "Half-life: 1.3746", "Rate: 0.5042", "did not converge"}) {
		t.Fatalf("footer missing expected segments: %s", out)
	}
	m.last.ShowWarning = false
	m.errMsg = "Please select an area containing some valid data."
	out = m.renderFooter()
	if strings.Contains(out, "did not converge") || !strings.Contains(out, "valid data") {
		t.Fatalf("unexpected footer: %s", out)
	}
}

func TestManualFitFromInitialView(t *testing.T) {
	history := &memHistory{}
	m := newTestModel(t, history)
	press(m, "f")
	if m.last == nil || m.last.Tau != "1.9832" {
		t.Fatalf("expected published tau 1.9832, got %+v", m.last)
	}
	if len(history.records) != 1 || history.records[0].Trigger != model.TriggerManual || history.records[0].Source != "decay.csv" {
		t.Fatalf("expected one recorded manual fit, got %+v", history.records)
	}
	press(m, "f")
	if len(history.records) != 1 || !strings.Contains(m.notice, "unchanged") {
		t.Fatalf("expected the identical selection to be skipped, notice %q", m.notice)
	}
	if !strings.Contains(m.View(), "Time constant: 1.9832") {
		t.Fatalf("expected result in view")
	}
}

func TestPanObservesSelection(t *testing.T) {
	m := newTestModel(t, nil)
	before := m.view
	press(m, "left")
	sel, ok := m.session.Selection()
	if !ok || sel != m.view || m.view.X0 >= before.X0 {
		t.Fatalf("expected pan left to move and observe the view, got %+v", sel)
	}
}

func TestZoomKeepsCenter(t *testing.T) {
	m := newTestModel(t, nil)
	press(m, "+")
	if m.view.X0 <= 0 || m.view.X1 >= 5 || (m.view.X0+m.view.X1)/2 != 2.5 {
		t.Fatalf("unexpected zoomed view %+v", m.view)
	}
}

func TestEmptySelectionNotice(t *testing.T) {
	m := newTestModel(t, nil)
	press(m, "f")
	for i := 0; i < 20; i++ {
		press(m, "k")
	}
	press(m, "f")
	if !strings.Contains(m.errMsg, "valid data") {
		t.Fatalf("expected empty selection message, got %q", m.errMsg)
	}
	if m.last == nil || m.last.Tau != "1.9832" {
		t.Fatalf("expected previous result to remain")
	}
}

func TestResetRefitsWithOffset(t *testing.T) {
	history := &memHistory{}
	m := newTestModel(t, history)
	press(m, "+")
	press(m, "r")
	if m.view != fullView(m.session.Series()) {
		t.Fatalf("expected full view after reset, got %+v", m.view)
	}
	if m.last == nil || !m.last.Result.HasOffset || m.last.Trigger != model.TriggerReset {
		t.Fatalf("expected reset publication, got %+v", m.last)
	}
	if len(history.records) != 1 || history.records[0].Trigger != model.TriggerReset {
		t.Fatalf("expected recorded reset fit, got %+v", history.records)
	}
	press(m, "r")
	if len(history.records) != 1 {
		t.Fatalf("expected the second reset to be skipped")
	}
}

func TestBoundsForm(t *testing.T) {
	m := newTestModel(t, nil)
	press(m, "/")
	if !m.formMode {
		t.Fatalf("expected form mode")
	}
	for i, v := range []string{"3", "0", "100", "0"} {
		m.formInputs[i].SetValue(v)
	}
	press(m, "enter")
	if m.formMode {
		t.Fatalf("expected form to close, error %q", m.formError)
	}
	if m.view != (model.Rect{X0: 0, X1: 3, Y0: 0, Y1: 100}) {
		t.Fatalf("expected normalized view, got %+v", m.view)
	}
	press(m, "f")
	if m.last == nil || len(m.last.Points) != 4 {
		t.Fatalf("expected fit over four points, got %+v", m.last)
	}
}

func TestBoundsFormRejectsText(t *testing.T) {
	m := newTestModel(t, nil)
	press(m, "/")
	m.formInputs[2].SetValue("abc")
	press(m, "enter")
	if !m.formMode || !strings.Contains(m.formError, "y0") {
		t.Fatalf("expected y0 error, got %q", m.formError)
	}
	press(m, "esc")
	if m.formMode {
		t.Fatalf("expected esc to close the form")
	}
}

func TestExportWritesPNG(t *testing.T) {
	m := newTestModel(t, nil)
	press(m, "f")
	press(m, "e")
	if m.errMsg != "" {
		t.Fatalf("export failed: %s", m.errMsg)
	}
	path := filepath.Join(m.opts.ExportDir, "fit-20240301-120000.png")
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		t.Fatalf("expected png at %s: %v", path, err)
	}
}

func TestRecordFailureShown(t *testing.T) {
	m := newTestModel(t, &memHistory{err: errors.New("disk full")})
	press(m, "f")
	if !strings.Contains(m.errMsg, "disk full") || m.last == nil {
		t.Fatalf("expected fit with record error, got %q", m.errMsg)
	}
}

func TestHistoryTab(t *testing.T) {
	history := &memHistory{}
	m := newTestModel(t, history)
	press(m, "f")
	press(m, "tab")
	if m.activeTab != tabHistory || len(m.records) != 1 {
		t.Fatalf("expected history tab with one record, got tab %d, %d records", m.activeTab, len(m.records))
	}
	if !strings.Contains(m.View(), "1.9832") {
		t.Fatalf("expected tau in history view")
	}
}

func TestLoadedReplacesData(t *testing.T) {
	m := newTestModel(t, nil)
	press(m, "f")
	s, err := model.NewSeries([]float64{10, 20, 30}, []float64{9, 4, 2}, "", "", "")
	if err != nil {
		t.Fatalf("series: %v", err)
	}
	m.loader = stubLoader{series: s}
	press(m, "o")
	if !m.openMode {
		t.Fatalf("expected open mode")
	}
	m.openInput.SetValue("other.csv")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatalf("expected load command")
	}
	m.Update(cmd())
	if m.last != nil || m.session.Source != "other.csv" || m.view != (model.Rect{X0: 10, X1: 30, Y0: 2, Y1: 9}) {
		t.Fatalf("expected fresh state for the new source, got %+v %+v", m.last, m.view)
	}
}

func containsAll(haystack string, needles []string) bool {
	for _, needle := range needles {
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}
