// Package main provides the CLI entrypoint for tuifit.
package main

import (
	"fmt"
	"log"
	"math"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/tuifit/internal/config"
	"github.com/verte-zerg/tuifit/internal/fit"
	"github.com/verte-zerg/tuifit/internal/generator"
	"github.com/verte-zerg/tuifit/internal/ingest"
	"github.com/verte-zerg/tuifit/internal/model"
	"github.com/verte-zerg/tuifit/internal/plot"
	"github.com/verte-zerg/tuifit/internal/report"
	"github.com/verte-zerg/tuifit/internal/viewer"
	"github.com/verte-zerg/tuifit/internal/watch"
)

const defaultHistoryHeight = 12

var (
	viewDummy      bool
	viewHeight     int
	viewPanStep    float64
	viewZoomFactor float64
	viewColor      bool
	viewExportDir  string

	fitX0, fitX1, fitY0, fitY1 float64
	fitReset                   bool
	fitOutput                  string
	fitPNG                     string

	dummyTau  float64
	dummySeed int64
	dummyOut  string

	historySource string
	historySince  string
	historyLast   int
	historyPlot   bool
	historyOutput string

	watchSchedule string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "tuifit [source]",
		Short:         "TUI exponential decay fitter",
		SilenceUsage:  true,
		SilenceErrors: false,
		Args:          cobra.MaximumNArgs(1),
		RunE:          runViewCmd,
	}
	addViewFlags(rootCmd)

	viewCmd := &cobra.Command{
		Use:   "view [source]",
		Short: "Open the interactive viewer",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runViewCmd,
	}
	addViewFlags(viewCmd)

	rootCmd.AddCommand(viewCmd)
	rootCmd.AddCommand(newFitCmd())
	rootCmd.AddCommand(newDummyCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newConfigCmd())
	return rootCmd
}

func addViewFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&viewDummy, "dummy", false, "start with generated dummy data")
	cmd.Flags().IntVar(&viewHeight, "height", config.DefaultViewHeight, "plot height in rows")
	cmd.Flags().Float64Var(&viewPanStep, "pan-step", config.DefaultPanStep, "fraction of the view moved per pan key")
	cmd.Flags().Float64Var(&viewZoomFactor, "zoom-factor", config.DefaultZoomFactor, "view scale per zoom key")
	cmd.Flags().BoolVar(&viewColor, "color", true, "colored plot output")
	cmd.Flags().StringVar(&viewExportDir, "export-dir", "", "PNG export directory")
}

func runViewCmd(cmd *cobra.Command, args []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyIntConfig(cmd, "height", &viewHeight, fileCfg.View.Height)
	applyFloatConfig(cmd, "pan-step", &viewPanStep, fileCfg.View.PanStep)
	applyFloatConfig(cmd, "zoom-factor", &viewZoomFactor, fileCfg.View.ZoomFactor)
	applyBoolConfig(cmd, "color", &viewColor, fileCfg.View.Color)
	applyStringConfig(cmd, "export-dir", &viewExportDir, fileCfg.View.ExportDir)
	if viewExportDir == "" {
		viewExportDir = config.DefaultExportDir()
	}
	if err := validateViewFlags(); err != nil {
		return err
	}

	app, err := newApp(cmd.Context(), fileCfg)
	if err != nil {
		return err
	}
	defer app.Close()

	var (
		source string
		series model.Series
	)
	switch {
	case len(args) == 1:
		source = args[0]
		series, _, err = app.loader.Load(cmd.Context(), source)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", source, err)
		}
	case viewDummy:
		dummy := generator.New().Generate()
		series = dummy.Series
		logErrf("Generated dummy data with tau=%.0f\n", dummy.Tau)
	default:
		return fmt.Errorf("a source is required (file, URL, or --dummy)")
	}

	session := fit.NewSession(source, series, app.fitter)
	opts := viewer.Options{
		Height:     viewHeight,
		PanStep:    viewPanStep,
		ZoomFactor: viewZoomFactor,
		Color:      viewColor,
		ExportDir:  viewExportDir,
	}
	m := viewer.NewModel(session, app.historyOrNil(), app.loader, opts)
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func validateViewFlags() error {
	if viewHeight < 4 {
		return fmt.Errorf("--height must be >= 4")
	}
	if viewPanStep <= 0 || viewPanStep > 1 {
		return fmt.Errorf("--pan-step must be between 0 and 1")
	}
	if viewZoomFactor <= 1 {
		return fmt.Errorf("--zoom-factor must be > 1")
	}
	return nil
}

func newFitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fit <source>",
		Short: "Fit a selection once and print the result",
		Args:  cobra.ExactArgs(1),
		RunE:  runFitCmd,
	}
	cmd.Flags().Float64Var(&fitX0, "x0", math.NaN(), "selection x corner")
	cmd.Flags().Float64Var(&fitX1, "x1", math.NaN(), "selection opposite x corner")
	cmd.Flags().Float64Var(&fitY0, "y0", math.NaN(), "selection y corner")
	cmd.Flags().Float64Var(&fitY1, "y1", math.NaN(), "selection opposite y corner")
	cmd.Flags().BoolVar(&fitReset, "reset", false, "fit the full data bounds with an offset term")
	cmd.Flags().StringVar(&fitOutput, "output", "text", "output format (text, json, yaml)")
	cmd.Flags().StringVar(&fitPNG, "png", "", "also write a PNG chart to this file")
	return cmd
}

func runFitCmd(cmd *cobra.Command, args []string) error {
	format, err := report.ParseFormat(fitOutput)
	if err != nil {
		return err
	}
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	app, err := newApp(cmd.Context(), fileCfg)
	if err != nil {
		return err
	}
	defer app.Close()

	source := args[0]
	series, _, err := app.loader.Load(cmd.Context(), source)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", source, err)
	}
	session := fit.NewSession(source, series, app.fitter)

	var (
		pub     fit.Publication
		outcome fit.Outcome
	)
	if fitReset {
		bounds, ok := series.Bounds()
		if !ok {
			return fmt.Errorf("%s has no data", source)
		}
		session.Observe(bounds)
		pub, outcome, err = session.FitReset(bounds)
	} else {
		rect, rerr := selectionFromFlags()
		if rerr != nil {
			return rerr
		}
		session.Observe(rect)
		pub, outcome, err = session.FitManual()
	}
	if err != nil {
		return err
	}
	if outcome != fit.OutcomeFitted {
		return fmt.Errorf("no data inside the selection")
	}

	if hist := app.historyOrNil(); hist != nil {
		if _, err := hist.InsertFit(cmd.Context(), session.Record(pub, time.Now())); err != nil {
			logErrf("failed to record fit: %v\n", err)
		}
	}
	if fitPNG != "" {
		if err := writeFitPNG(fitPNG, series, pub); err != nil {
			return err
		}
		logErrf("Wrote %s\n", fitPNG)
	}
	if err := report.WriteFit(cmd.OutOrStdout(), format, report.BuildFit(source, pub), pub.ShowWarning); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func selectionFromFlags() (model.Rect, error) {
	values := map[string]float64{"x0": fitX0, "x1": fitX1, "y0": fitY0, "y1": fitY1}
	for _, name := range []string{"x0", "x1", "y0", "y1"} {
		if math.IsNaN(values[name]) {
			return model.Rect{}, fmt.Errorf("--%s is required unless --reset is set", name)
		}
	}
	return model.Rect{X0: fitX0, X1: fitX1, Y0: fitY0, Y1: fitY1}, nil
}

func writeFitPNG(path string, series model.Series, pub fit.Publication) error {
	chart := plot.Chart{
		Title:   series.Title,
		XTitle:  series.XTitle,
		YTitle:  series.YTitle,
		View:    pub.Rect,
		Caption: fmt.Sprintf("tau=%s  half-life=%s  rate=%s", pub.Tau, pub.HalfLife, pub.Rate),
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create png directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := chart.RenderPNG(file, pub.Points, pub.Line); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to render png: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func newDummyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dummy",
		Short: "Write a generated exponential histogram as CSV",
		Args:  cobra.NoArgs,
		RunE:  runDummyCmd,
	}
	cmd.Flags().Float64Var(&dummyTau, "tau", 0, "time constant (default: random in [200, 500))")
	cmd.Flags().Int64Var(&dummySeed, "seed", 0, "random seed (default: time based)")
	cmd.Flags().StringVar(&dummyOut, "out", "", "output file (default: stdout)")
	return cmd
}

func runDummyCmd(cmd *cobra.Command, _ []string) error {
	if dummyTau < 0 {
		return fmt.Errorf("--tau must be > 0")
	}
	gen := generator.New()
	if cmd.Flags().Changed("seed") {
		gen = generator.NewWithSeed(dummySeed)
	}
	var dummy generator.Dummy
	if dummyTau > 0 {
		dummy = gen.GenerateTau(dummyTau)
	} else {
		dummy = gen.Generate()
	}

	out := cmd.OutOrStdout()
	if dummyOut != "" {
		file, err := os.Create(dummyOut)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", dummyOut, err)
		}
		defer func() {
			if cerr := file.Close(); cerr != nil {
				logErrf("failed to close %s: %v\n", dummyOut, cerr)
			}
		}()
		out = file
	}
	if err := ingest.WriteCSV(out, dummy.Series); err != nil {
		return fmt.Errorf("failed to write dummy data: %w", err)
	}
	logErrf("Generated dummy data with tau=%g\n", dummy.Tau)
	return nil
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded fits",
		Args:  cobra.NoArgs,
		RunE:  runHistoryCmd,
	}
	cmd.Flags().StringVar(&historySource, "source", "", "source filter")
	cmd.Flags().StringVar(&historySince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&historyLast, "last", 0, "limit to last N fits")
	cmd.Flags().BoolVar(&historyPlot, "plot", false, "plot tau over the listed fits")
	cmd.Flags().StringVar(&historyOutput, "output", "text", "output format (text, json, yaml)")
	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	format, err := report.ParseFormat(historyOutput)
	if err != nil {
		return err
	}
	filter := model.HistoryFilter{Source: historySource, Last: historyLast}
	if historyLast < 0 {
		return fmt.Errorf("--last must be >= 0")
	}
	if historySince != "" {
		parsed, err := time.ParseInLocation("2006-01-02", historySince, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --since value: %w", err)
		}
		filter.Since = &parsed
	}

	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	st, err := openStore(fileCfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	records, err := report.LoadHistory(cmd.Context(), st, filter)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if err := report.WriteHistory(out, format, records); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if historyPlot && len(records) > 0 {
		if _, err := fmt.Fprintln(out); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		width := plot.WidthFor(plot.TerminalWidth(), 0)
		if err := plot.PlotTau(out, records, width, defaultHistoryHeight, false); err != nil {
			return fmt.Errorf("failed to plot history: %w", err)
		}
	}
	return nil
}

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <url>",
		Short: "Refit a remote source on a schedule",
		Args:  cobra.ExactArgs(1),
		RunE:  runWatchCmd,
	}
	cmd.Flags().StringVar(&watchSchedule, "schedule", config.DefaultSchedule, "cron spec or @every interval")
	return cmd
}

func runWatchCmd(cmd *cobra.Command, args []string) error {
	source := args[0]
	if !ingest.IsURL(source) {
		return fmt.Errorf("watch needs an http(s) URL, got %q", source)
	}
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "schedule", &watchSchedule, fileCfg.Watch.Schedule)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, fileCfg)
	if err != nil {
		return err
	}
	defer app.Close()

	logger := log.New(os.Stderr, "", log.LstdFlags)
	var rec watch.Recorder
	if hist := app.historyOrNil(); hist != nil {
		rec = hist
	}
	w := watch.New(ctx, source, app.loader.Refreshing(), app.fitter, rec, logger)
	w.OnPublish = func(pub fit.Publication) {
		if err := report.WriteFit(cmd.OutOrStdout(), report.FormatText, report.BuildFit(source, pub), pub.ShowWarning); err != nil {
			logger.Printf("[ERROR] write result: %v", err)
		}
	}
	if err := w.Register(watchSchedule); err != nil {
		return err
	}
	logger.Printf("[INFO] running initial refit")
	if _, _, err := w.RunOnce(); err != nil {
		logger.Printf("[WARN] refit %s: %v", source, err)
	}
	w.Start()
	logErrln("Press Ctrl+C to stop.")
	<-ctx.Done()
	w.Stop()
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := ensureConfigFile(path); err != nil {
		return err
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

// ensureConfigFile writes the commented template unless path already exists.
func ensureConfigFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(config.Template()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
