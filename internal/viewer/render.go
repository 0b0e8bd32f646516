package viewer

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/tuifit/internal/fit"
	"github.com/verte-zerg/tuifit/internal/model"
	"github.com/verte-zerg/tuifit/internal/plot"
	"github.com/verte-zerg/tuifit/internal/report"
)

func (m *Model) initForm() {
	m.formInputs = []textinput.Model{
		newInput("x0: "),
		newInput("x1: "),
		newInput("y0: "),
		newInput("y1: "),
	}
	m.openInput = newInput("Source: ")
	m.openInput.Placeholder = "path/to/data.csv or https://host/data.csv"
}

func (m *Model) startForm() tea.Cmd {
	m.formMode = true
	m.formError = ""
	r := m.view
	for i, v := range []float64{r.X0, r.X1, r.Y0, r.Y1} {
		m.formInputs[i].SetValue(formatBound(v))
	}
	return m.setFormIndex(0)
}

func (m *Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.formMode = false
		m.formError = ""
		return m, nil
	case tea.KeyEnter:
		rect, err := m.formRect()
		if err != nil {
			m.formError = err.Error()
			return m, nil
		}
		m.formMode = false
		m.formError = ""
		m.view = fit.Normalize(rect)
		m.session.Observe(rect)
		m.notice = "Selection set; press f to fit."
		m.renderPlot()
		return m, nil
	case tea.KeyTab, tea.KeyDown:
		return m, m.setFormIndex(m.formIndex + 1)
	case tea.KeyShiftTab, tea.KeyUp:
		return m, m.setFormIndex(m.formIndex - 1)
	}
	var cmd tea.Cmd
	m.formInputs[m.formIndex], cmd = m.formInputs[m.formIndex].Update(msg)
	return m, cmd
}

func (m *Model) formRect() (model.Rect, error) {
	values := make([]float64, len(m.formInputs))
	for i, input := range m.formInputs {
		v, err := parseBound(input)
		if err != nil {
			return model.Rect{}, err
		}
		values[i] = v
	}
	return model.Rect{X0: values[0], X1: values[1], Y0: values[2], Y1: values[3]}, nil
}

func (m *Model) setFormIndex(idx int) tea.Cmd {
	count := len(m.formInputs)
	if count == 0 {
		return nil
	}
	idx = (idx + count) % count
	m.formIndex = idx
	var cmd tea.Cmd
	for i := range m.formInputs {
		if i == m.formIndex {
			cmd = m.formInputs[i].Focus()
		} else {
			m.formInputs[i].Blur()
		}
	}
	return cmd
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderHeader() string {
	tabs := padLines(m.renderTabs(), m.width)
	r := m.view
	inView := len(fit.Select(m.session.Series(), fit.Normalize(r)))
	summary := fmt.Sprintf("Source: %s  View: x=[%s, %s] y=[%s, %s]  Points: %d/%d",
		sourceLabel(m.session.Source), formatBound(r.X0), formatBound(r.X1), formatBound(r.Y0), formatBound(r.Y1),
		inView, m.session.Series().Len())
	return tabs + "\n" + headerStyle.Render(truncateLine(summary, m.width))
}

func (m *Model) renderBody(height int) string {
	switch {
	case m.formMode:
		return fitLines(m.renderForm(), m.width, height)
	case m.openMode:
		return fitLines("Open data source (enter to load, esc to cancel)\n"+m.openInput.View(), m.width, height)
	case m.activeTab == tabHistory:
		if m.history == nil {
			return fitLines("History is disabled.", m.width, height)
		}
		if len(m.records) == 0 {
			return fitLines("No fits recorded.", m.width, height)
		}
		return fitLines(m.historyTable.View(), m.width, height)
	default:
		return fitLines(m.plotViewport.View(), m.width, height)
	}
}

func (m *Model) renderForm() string {
	lines := []string{"Selection bounds (enter to apply, esc to cancel)"}
	for _, input := range m.formInputs {
		lines = append(lines, input.View())
	}
	if m.formError != "" {
		lines = append(lines, errorStyle.Render(m.formError))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderHelp() string {
	switch {
	case m.formMode:
		return headerStyle.Render("tab/shift+tab: next field  enter: apply  esc: cancel")
	case m.activeTab == tabHistory:
		return headerStyle.Render("Tabs: tab  Scroll: up/down  Quit: q")
	default:
		return headerStyle.Render("Pan: arrows/hjkl  Zoom: +/- [ ] { }  Fit: f  Reset: r  Bounds: /  Open: o  Export: e  Tabs: tab  Quit: q")
	}
}

// renderFooter shows the published constants, the convergence warning and
// any notice or error.
func (m *Model) renderFooter() string {
	lines := []string{}
	if m.last != nil {
		lines = append(lines, resultStyle.Render(fmt.Sprintf("Time constant: %s  Half-life: %s  Rate: %s", m.last.Tau, m.last.HalfLife, m.last.Rate)))
		if m.last.ShowWarning {
			lines = append(lines, warningStyle.Render(report.WarningText))
		}
	}
	switch {
	case m.errMsg != "":
		lines = append(lines, errorStyle.Render(m.errMsg))
	case m.notice != "":
		lines = append(lines, noticeStyle.Render(m.notice))
	}
	lines = append(lines, m.renderHelp())
	return strings.Join(lines, "\n")
}

func (m *Model) renderPlot() {
	series := m.session.Series()
	width := m.width
	if width <= 0 {
		width = 80
	}
	scatter := plot.Scatter{
		Title:  series.Title,
		XTitle: series.XTitle,
		YTitle: series.YTitle,
		View:   m.view,
		Height: m.opts.Height,
		Color:  m.opts.Color,
	}
	scatter.Width = plot.WidthFor(width, scatter.AxisWidth()+1)

	samples := make([]model.Sample, series.Len())
	for i := range samples {
		samples[i] = series.At(i)
	}
	var overlay *plot.Overlay
	if m.last != nil {
		res := m.last.Result
		overlay = &plot.Overlay{Eval: res.Eval, Domain: model.Span{Min: m.last.Rect.X0, Max: m.last.Rect.X1}}
	}
	m.plotViewport.SetContent(strings.Join(scatter.Render(samples, overlay), "\n"))
}

func buildHistoryTable(records []model.FitRecord, width, height int) table.Model {
	rows := report.HistoryRows(records)
	columns := make([]table.Column, len(report.HistoryHeaders))
	for i, title := range report.HistoryHeaders {
		w := runewidth.StringWidth(title)
		for _, row := range rows {
			if cw := runewidth.StringWidth(row[i]); cw > w {
				w = cw
			}
		}
		columns[i] = table.Column{Title: title, Width: w}
	}
	tableRows := make([]table.Row, len(rows))
	for i := range rows {
		// Newest first.
		tableRows[len(rows)-1-i] = table.Row(rows[i])
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(tableRows),
		table.WithHeight(maxInt(1, height-1)),
	)
	t.SetWidth(width)
	t.SetStyles(historyTableStyles())
	return t
}

func historyTableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

func sourceLabel(source string) string {
	if source == "" {
		return "dummy"
	}
	return source
}

func formatBound(v float64) string {
	return fit.FormatConstant(v)
}

func padLines(s string, width int) string {
	if width <= 0 || s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	return strings.Join(lines, "\n")
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

// truncateLine cuts s to width display cells with a trailing ellipsis.
func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	return runewidth.Truncate(s, width, "...")
}
