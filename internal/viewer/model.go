// Package viewer provides the Bubble Tea data viewer and fit interface.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/tuifit/internal/fit"
	"github.com/verte-zerg/tuifit/internal/ingest"
	"github.com/verte-zerg/tuifit/internal/model"
	"github.com/verte-zerg/tuifit/internal/plot"
	"github.com/verte-zerg/tuifit/internal/report"
)

const (
	tabPlot = iota
	tabHistory
)

const (
	defaultHeight     = 20
	defaultPanStep    = 0.1
	defaultZoomFactor = 1.25
	historyLimit      = 200
	loadTimeout       = 2 * time.Minute
)

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	resultStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	noticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
)

// History records fits and lists them back.
type History interface {
	InsertFit(ctx context.Context, rec model.FitRecord) (int64, error)
	ListFits(ctx context.Context, filter model.HistoryFilter) ([]model.FitRecord, error)
}

// Loader resolves a source into a series.
type Loader interface {
	Load(ctx context.Context, source string) (model.Series, ingest.Format, error)
}

// Options tunes the viewer.
type Options struct {
	Height     int
	PanStep    float64
	ZoomFactor float64
	Color      bool
	ExportDir  string
	// Now defaults to time.Now.
	Now func() time.Time
}

// Model implements the Bubble Tea viewer.
type Model struct {
	session *fit.Session
	history History
	loader  Loader
	opts    Options

	view model.Rect
	last *fit.Publication

	notice string
	errMsg string

	tabs         []string
	activeTab    int
	plotViewport viewport.Model
	historyTable table.Model
	records      []model.FitRecord

	width  int
	height int

	formMode   bool
	formInputs []textinput.Model
	formIndex  int
	formError  string

	openMode  bool
	openInput textinput.Model
	loading   bool
}

type loadedMsg struct {
	source string
	series model.Series
	err    error
}

// NewModel constructs a viewer over session. history and loader may be nil.
func NewModel(session *fit.Session, history History, loader Loader, opts Options) *Model {
	if opts.Height <= 0 {
		opts.Height = defaultHeight
	}
	if opts.PanStep <= 0 {
		opts.PanStep = defaultPanStep
	}
	if opts.ZoomFactor <= 1 {
		opts.ZoomFactor = defaultZoomFactor
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	m := &Model{
		session:      session,
		history:      history,
		loader:       loader,
		opts:         opts,
		tabs:         []string{"Plot", "History"},
		plotViewport: viewport.New(0, 0),
	}
	m.initForm()
	m.historyTable = buildHistoryTable(nil, 80, 10)
	m.setView(fullView(session.Series()))
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		return m, nil
	case loadedMsg:
		m.handleLoaded(msg)
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.formMode {
			return m.updateForm(msg)
		}
		if m.openMode {
			return m.updateOpen(msg)
		}
		if msg.String() == "q" {
			return m, tea.Quit
		}
		switch msg.String() {
		case "tab":
			m.moveTab(1)
			return m, tea.ClearScreen
		case "shift+tab":
			m.moveTab(-1)
			return m, tea.ClearScreen
		}
		if m.activeTab == tabHistory {
			var cmd tea.Cmd
			m.historyTable, cmd = m.historyTable.Update(msg)
			return m, cmd
		}
		return m.updatePlot(msg)
	}
	return m, nil
}

func (m *Model) updatePlot(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "left", "h":
		m.pan(-1, 0)
	case "right", "l":
		m.pan(1, 0)
	case "up", "k":
		m.pan(0, 1)
	case "down", "j":
		m.pan(0, -1)
	case "+", "=":
		m.zoom(1/m.opts.ZoomFactor, 1/m.opts.ZoomFactor)
	case "-":
		m.zoom(m.opts.ZoomFactor, m.opts.ZoomFactor)
	case "]":
		m.zoom(1/m.opts.ZoomFactor, 1)
	case "[":
		m.zoom(m.opts.ZoomFactor, 1)
	case "}":
		m.zoom(1, 1/m.opts.ZoomFactor)
	case "{":
		m.zoom(1, m.opts.ZoomFactor)
	case "f":
		m.fitManual()
	case "r":
		m.fitReset()
	case "e":
		m.export()
	case "/":
		return m, m.startForm()
	case "o":
		if m.loader == nil || m.loading {
			return m, nil
		}
		m.openMode = true
		m.openInput.SetValue(m.session.Source)
		return m, m.openInput.Focus()
	default:
		var cmd tea.Cmd
		m.plotViewport, cmd = m.plotViewport.Update(msg)
		return m, cmd
	}
	m.renderPlot()
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(bodyHeight), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := lipgloss.Height(activeNavStyle.Render("X"))
	if tabsHeight < 1 {
		tabsHeight = 1
	}
	headerHeight = tabsHeight + 1
	footerHeight = lipgloss.Height(m.renderFooter())
	bodyHeight = m.height - headerHeight - footerHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyHeight, _ := m.layoutHeights()
	m.plotViewport.Width = m.width
	m.plotViewport.Height = bodyHeight
	m.historyTable.SetWidth(m.width)
	m.historyTable.SetHeight(maxInt(1, bodyHeight-1))
	for i := range m.formInputs {
		promptWidth := lipgloss.Width(m.formInputs[i].Prompt)
		m.formInputs[i].Width = maxInt(10, m.width-promptWidth-2)
	}
	m.openInput.Width = maxInt(10, m.width-lipgloss.Width(m.openInput.Prompt)-2)
	m.renderPlot()
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	next := (m.activeTab + delta + count) % count
	m.activeTab = next
	if m.activeTab == tabHistory {
		m.refreshHistory()
		m.historyTable.Focus()
	} else {
		m.historyTable.Blur()
	}
}

// setView moves the plot and reports the new bounds as the selection.
func (m *Model) setView(r model.Rect) {
	m.view = r
	m.session.Observe(r)
	m.renderPlot()
}

func (m *Model) pan(dx, dy float64) {
	r := m.view
	stepX := (r.X1 - r.X0) * m.opts.PanStep * dx
	stepY := (r.Y1 - r.Y0) * m.opts.PanStep * dy
	m.setView(model.Rect{X0: r.X0 + stepX, X1: r.X1 + stepX, Y0: r.Y0 + stepY, Y1: r.Y1 + stepY})
}

func (m *Model) zoom(fx, fy float64) {
	r := m.view
	cx, cy := (r.X0+r.X1)/2, (r.Y0+r.Y1)/2
	hx, hy := (r.X1-r.X0)/2*fx, (r.Y1-r.Y0)/2*fy
	m.setView(model.Rect{X0: cx - hx, X1: cx + hx, Y0: cy - hy, Y1: cy + hy})
}

func (m *Model) fitManual() {
	pub, outcome, err := m.session.FitManual()
	if err != nil {
		m.reportError(err)
		return
	}
	m.errMsg = ""
	if outcome == fit.OutcomeUnchanged {
		m.notice = "Selection unchanged; keeping the previous fit."
		return
	}
	m.publish(pub)
	if pub.XRange != nil && pub.YRange != nil {
		m.setView(model.Rect{X0: pub.XRange.Min, X1: pub.XRange.Max, Y0: pub.YRange.Min, Y1: pub.YRange.Max})
	}
}

func (m *Model) fitReset() {
	full := fullView(m.session.Series())
	m.view = full
	pub, outcome, err := m.session.FitReset(full)
	if err != nil {
		m.reportError(err)
		return
	}
	m.errMsg = ""
	switch outcome {
	case fit.OutcomeFitted:
		m.publish(pub)
	case fit.OutcomeUnchanged:
		m.notice = "View reset; bounds unchanged."
	case fit.OutcomeEmpty:
		m.notice = "View reset."
	}
}

func (m *Model) publish(pub fit.Publication) {
	m.last = &pub
	m.notice = fmt.Sprintf("Fitted %d points (%s).", len(pub.Points), pub.Trigger)
	if m.history == nil {
		return
	}
	rec := m.session.Record(pub, m.opts.Now())
	if _, err := m.history.InsertFit(context.Background(), rec); err != nil {
		m.errMsg = fmt.Sprintf("failed to record fit: %v", err)
	}
}

func (m *Model) reportError(err error) {
	var fitErr *fit.FitError
	switch {
	case errors.Is(err, fit.ErrNoSelection), errors.Is(err, fit.ErrEmptySelection):
		m.notice = ""
		m.errMsg = capitalize(err.Error()) + "."
	case errors.As(err, &fitErr):
		m.notice = ""
		m.errMsg = capitalize(fitErr.Error())
	default:
		m.errMsg = err.Error()
	}
}

func (m *Model) export() {
	dir := m.opts.ExportDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		m.errMsg = fmt.Sprintf("failed to create export directory: %v", err)
		return
	}
	path := filepath.Join(dir, fmt.Sprintf("fit-%s.png", m.opts.Now().Format("20060102-150405")))
	if err := m.writePNG(path); err != nil {
		m.errMsg = err.Error()
		return
	}
	m.errMsg = ""
	m.notice = "Exported " + path
}

func (m *Model) writePNG(path string) error {
	series := m.session.Series()
	samples := fit.Select(series, fit.Normalize(m.view))
	if len(samples) == 0 {
		return fmt.Errorf("nothing to export: no data in view")
	}
	chart := plot.Chart{
		Title:  series.Title,
		XTitle: series.XTitle,
		YTitle: series.YTitle,
		View:   m.view,
	}
	var line []model.Sample
	if m.last != nil {
		line = curveSamples(*m.last, 200)
		chart.Caption = fmt.Sprintf("tau=%s  half-life=%s  rate=%s", m.last.Tau, m.last.HalfLife, m.last.Rate)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := chart.RenderPNG(file, samples, line); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// curveSamples evaluates the fitted curve at n evenly spaced x values over
// the fitted selection.
func curveSamples(pub fit.Publication, n int) []model.Sample {
	if n < 2 {
		n = 2
	}
	x0, x1 := pub.Rect.X0, pub.Rect.X1
	out := make([]model.Sample, n)
	for i := range out {
		x := x0 + (x1-x0)*float64(i)/float64(n-1)
		out[i] = model.Sample{X: x, Y: pub.Result.Eval(x)}
	}
	return out
}

func (m *Model) handleLoaded(msg loadedMsg) {
	m.loading = false
	if msg.err != nil {
		m.errMsg = msg.err.Error()
		return
	}
	m.session.Reload(msg.source, msg.series)
	m.last = nil
	m.errMsg = ""
	m.notice = fmt.Sprintf("Loaded %s (%d points).", msg.source, msg.series.Len())
	m.setView(fullView(msg.series))
}

func (m *Model) loadCmd(source string) tea.Cmd {
	loader := m.loader
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		series, _, err := loader.Load(ctx, source)
		return loadedMsg{source: source, series: series, err: err}
	}
}

func (m *Model) updateOpen(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.openMode = false
		return m, nil
	case tea.KeyEnter:
		source := strings.TrimSpace(m.openInput.Value())
		m.openMode = false
		if source == "" {
			return m, nil
		}
		m.loading = true
		m.notice = "Loading " + source + "..."
		return m, m.loadCmd(source)
	}
	var cmd tea.Cmd
	m.openInput, cmd = m.openInput.Update(msg)
	return m, cmd
}

func (m *Model) refreshHistory() {
	if m.history == nil {
		m.records = nil
		return
	}
	records, err := report.LoadHistory(context.Background(), m.history, model.HistoryFilter{Last: historyLimit})
	if err != nil {
		m.errMsg = err.Error()
		return
	}
	m.records = records
	width := m.width
	if width <= 0 {
		width = 80
	}
	_, bodyHeight, _ := m.layoutHeights()
	m.historyTable = buildHistoryTable(records, width, bodyHeight)
	if m.activeTab == tabHistory {
		m.historyTable.Focus()
	}
}

func fullView(s model.Series) model.Rect {
	if r, ok := s.Bounds(); ok {
		return r
	}
	return model.Rect{X0: 0, X1: 1, Y0: 0, Y1: 1}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func parseBound(input textinput.Model) (float64, error) {
	value := strings.TrimSpace(input.Value())
	if value == "" {
		return 0, fmt.Errorf("%s is required", strings.TrimSuffix(strings.TrimSpace(input.Prompt), ":"))
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", strings.TrimSuffix(strings.TrimSpace(input.Prompt), ":"), value)
	}
	return v, nil
}

func newInput(prompt string) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.CharLimit = 0
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}
