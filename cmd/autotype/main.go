// Package main provides the CLI entrypoint for autotype.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/verte-zerg/autotype/internal/buildinfo"
	"github.com/verte-zerg/autotype/internal/cadence"
	"github.com/verte-zerg/autotype/internal/config"
	"github.com/verte-zerg/autotype/internal/control"
	"github.com/verte-zerg/autotype/internal/emitter"
	"github.com/verte-zerg/autotype/internal/model"
	"github.com/verte-zerg/autotype/internal/observability"
	"github.com/verte-zerg/autotype/internal/session"
	"github.com/verte-zerg/autotype/internal/source"
	"github.com/verte-zerg/autotype/internal/stats"
	"github.com/verte-zerg/autotype/internal/statsui"
	"github.com/verte-zerg/autotype/internal/store"
	"github.com/verte-zerg/autotype/internal/tui"
)

const (
	defaultCountdown       = 3 * time.Second
	defaultProgressEvery   = 50
	defaultCheckpointEvery = 100
	defaultCurveWindow     = 20
	checkpointRetention    = 30 * 24 * time.Hour
)

const (
	emitterKeyboard = "keyboard"
	emitterStdout   = "stdout"
)

var (
	typingWPM             float64
	typingVariation       float64
	typingFatigue         float64
	typingBurst           float64
	typingHesitation      float64
	typingMicroPause      float64
	typingTypo            float64
	typingCountdown       time.Duration
	typingProgressEvery   int
	typingCheckpointEvery int

	logLevel  string
	logFormat string
	logFile   string

	typeFile    string
	typeStdin   bool
	typeText    string
	typeEmitter string

	statsOutcome     string
	statsSince       string
	statsLast        int
	statsCurveWindow int
	statsPlain       bool
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "autotype",
		Short:         "Type clipboard text at a human cadence",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runPanelCmd,
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", observability.DefaultLevel, "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", observability.DefaultFormat, "console log format (console, plain, json)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "rotating JSON log file")
	addTypingFlags(rootCmd)

	rootCmd.AddCommand(newTypeCmd())
	rootCmd.AddCommand(newManualCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func addTypingFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&typingWPM, "wpm", cadence.DefaultBaseWPM, "base typing speed in words per minute")
	cmd.Flags().Float64Var(&typingVariation, "wpm-variation", cadence.DefaultWPMVariation, "keystroke timing spread (0-1)")
	cmd.Flags().Float64Var(&typingFatigue, "fatigue", cadence.DefaultFatigueFactor, "slowdown by the end of the text (0-1)")
	cmd.Flags().Float64Var(&typingBurst, "burst", cadence.DefaultBurstChance, "burst probability per character (0-1)")
	cmd.Flags().Float64Var(&typingHesitation, "hesitation", cadence.DefaultHesitationChance, "hesitation probability per character (0-1)")
	cmd.Flags().Float64Var(&typingMicroPause, "micro-pause", cadence.DefaultMicroPauseChance, "micro-pause probability per character (0-1)")
	cmd.Flags().Float64Var(&typingTypo, "typo", cadence.DefaultTypoChance, "typo probability per letter (0-1)")
	cmd.Flags().DurationVar(&typingCountdown, "countdown", defaultCountdown, "delay before typing starts")
	cmd.Flags().IntVar(&typingProgressEvery, "progress-every", defaultProgressEvery, "characters between progress reports")
	cmd.Flags().IntVar(&typingCheckpointEvery, "checkpoint-every", defaultCheckpointEvery, "characters between saved checkpoints (0 disables)")
}

// app holds everything a typing command needs.
type app struct {
	typing model.TypingConfig
	params cadence.Params
	logger *zap.Logger
	store  *store.Store
	close  func()
}

// setup loads env, config and flags, then opens the logger and the store.
func setup(cmd *cobra.Command, console zapcore.WriteSyncer, defaultLogFile string) (*app, error) {
	if err := config.LoadEnvFile(config.DefaultEnvPath()); err != nil {
		return nil, err
	}
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := fileCfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	typing := resolveTyping(cmd, fileCfg.Typing)
	params := paramsFor(typing)
	if err := validateTyping(typing, params); err != nil {
		return nil, err
	}

	logCfg := resolveLog(cmd, fileCfg.Log)
	if logCfg.File == "" {
		logCfg.File = defaultLogFile
	}
	logger, closeLog, err := observability.New(logCfg, console)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		if cerr := closeLog(); cerr != nil {
			_ = cerr
		}
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if n, err := st.PruneCheckpoints(cmd.Context(), time.Now().Add(-checkpointRetention)); err != nil {
		logger.Warn("failed to prune checkpoints", zap.Error(err))
	} else if n > 0 {
		logger.Debug("pruned stale checkpoints", zap.Int64("count", n))
	}

	return &app{
		typing: typing,
		params: params,
		logger: logger,
		store:  st,
		close: func() {
			if cerr := st.Close(); cerr != nil {
				logErrf("failed to close db: %v\n", cerr)
			}
			_ = logger.Sync()
			if cerr := closeLog(); cerr != nil {
				_ = cerr
			}
		},
	}, nil
}

// controller wires a session controller to the store and the given sinks.
func (a *app) controller(src session.TextSource, em session.KeyEmitter, sinks ...session.StatusSink) *session.Controller {
	all := session.Sinks{session.LogSink(a.logger), recordSink(a.store, a.logger)}
	all = append(all, sinks...)
	return session.New(src, em, session.Options{
		Params:          a.params,
		Countdown:       a.typing.Countdown,
		ProgressEvery:   a.typing.ProgressEvery,
		CheckpointEvery: a.typing.CheckpointEvery,
		Checkpoints:     a.store,
		Sink:            all,
		Logger:          a.logger,
	})
}

// recordSink stores every finished run.
func recordSink(st *store.Store, logger *zap.Logger) session.StatusSink {
	return session.SinkFunc(func(ev session.Event) {
		switch ev.Kind {
		case session.EventStopped, session.EventCompleted, session.EventFailed:
		default:
			return
		}
		if ev.Stats == nil {
			return
		}
		if _, err := st.InsertRun(context.Background(), *ev.Stats, ev.Flows); err != nil {
			logger.Warn("failed to record run", zap.String("run_id", ev.RunID), zap.Error(err))
		}
	})
}

func runPanelCmd(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd, zapcore.AddSync(io.Discard), config.DefaultLogPath())
	if err != nil {
		return err
	}
	defer a.close()

	forward := &tui.ProgramSink{}
	ctrl := a.controller(source.Clipboard{}, emitter.NewKeyboard(), forward)
	panel := tui.NewModel(ctrl, a.store, a.params.WPMVariation, a.logger)
	program := tea.NewProgram(panel, tea.WithAltScreen())
	forward.Attach(program)
	_, runErr := program.Run()
	stopAndWait(ctrl)
	if runErr != nil {
		return fmt.Errorf("failed to run TUI: %w", runErr)
	}
	return nil
}

func newTypeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "type",
		Short: "Type text once and exit",
		Args:  cobra.NoArgs,
		RunE:  runTypeCmd,
	}
	addTypingFlags(cmd)
	cmd.Flags().StringVar(&typeFile, "file", "", "read text from a file")
	cmd.Flags().BoolVar(&typeStdin, "stdin", false, "read text from stdin")
	cmd.Flags().StringVar(&typeText, "text", "", "type the given text")
	cmd.Flags().StringVar(&typeEmitter, "emitter", emitterKeyboard, "key emitter (keyboard, stdout)")
	cmd.MarkFlagsMutuallyExclusive("file", "stdin", "text")
	return cmd
}

func runTypeCmd(cmd *cobra.Command, _ []string) error {
	src := selectSource(typeFile, typeStdin, typeText)
	em, report, err := selectEmitter(typeEmitter)
	if err != nil {
		return err
	}
	a, err := setup(cmd, zapcore.AddSync(os.Stderr), "")
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctrl := a.controller(src, em, control.ConsoleSink(report))
	go func() {
		<-ctx.Done()
		if ctrl.State() != session.Stopped {
			_ = ctrl.Stop()
		}
	}()
	if err := ctrl.Start(ctx, a.typing.WPM); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	if err := ctrl.Wait(); err != nil {
		return err
	}
	return nil
}

func newManualCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manual",
		Short: "Control typing from a line prompt",
		Args:  cobra.NoArgs,
		RunE:  runManualCmd,
	}
	addTypingFlags(cmd)
	return cmd
}

func runManualCmd(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd, zapcore.AddSync(os.Stderr), "")
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src := source.Clipboard{}
	ctrl := a.controller(src, emitter.NewKeyboard(), control.ConsoleSink(os.Stdout))
	prompt := &control.Prompt{
		Session:   ctrl,
		Source:    src,
		In:        os.Stdin,
		Out:       os.Stdout,
		Variation: a.params.WPMVariation,
	}
	return prompt.Run(ctx)
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show run history",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&statsOutcome, "outcome", "", "outcome filter (completed, stopped, failed)")
	cmd.Flags().StringVar(&statsSince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&statsLast, "last", 0, "limit to last N runs")
	cmd.Flags().IntVar(&statsCurveWindow, "curve-window", defaultCurveWindow, "moving average window")
	cmd.Flags().BoolVar(&statsPlain, "plain", false, "print a text report instead of the TUI")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := statsConfig(statsOutcome, statsSince, statsLast, statsCurveWindow)
	if err != nil {
		return err
	}

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	if statsPlain || !term.IsTerminal(int(os.Stdout.Fd())) {
		report, err := stats.BuildReport(cmd.Context(), st, cfg)
		if err != nil {
			return err
		}
		return report.Render(cmd.OutOrStdout(), cfg.CurveWindow, stats.TerminalWidth(), time.Now())
	}

	program := tea.NewProgram(statsui.NewModel(st, cfg), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run stats TUI: %w", err)
	}
	return nil
}

func statsConfig(outcome, since string, last, window int) (model.StatsConfig, error) {
	switch outcome {
	case "", model.OutcomeCompleted, model.OutcomeStopped, model.OutcomeFailed:
	default:
		return model.StatsConfig{}, fmt.Errorf("invalid --outcome %q", outcome)
	}
	var sinceTime *time.Time
	if since != "" {
		parsed, err := time.ParseInLocation("2006-01-02", since, time.Local)
		if err != nil {
			return model.StatsConfig{}, fmt.Errorf("invalid --since value: %w", err)
		}
		sinceTime = &parsed
	}
	if last < 0 {
		return model.StatsConfig{}, fmt.Errorf("--last must be >= 0")
	}
	if window < 1 {
		return model.StatsConfig{}, fmt.Errorf("--curve-window must be >= 1")
	}
	return model.StatsConfig{
		Outcome:     outcome,
		Since:       sinceTime,
		Last:        last,
		CurveWindow: window,
	}, nil
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
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
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

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "autotype %s\n", buildinfo.Version())
			return err
		},
	}
}

func selectSource(file string, stdin bool, text string) session.TextSource {
	switch {
	case file != "":
		return source.File{Path: file}
	case stdin:
		return source.Stdin()
	case text != "":
		return source.Static(text)
	default:
		return source.Clipboard{}
	}
}

// selectEmitter returns the emitter and where status lines go. Status moves
// to stderr when the typed text itself goes to stdout.
func selectEmitter(name string) (session.KeyEmitter, io.Writer, error) {
	switch name {
	case emitterKeyboard:
		return emitter.NewKeyboard(), os.Stdout, nil
	case emitterStdout:
		return emitter.NewWriter(os.Stdout), os.Stderr, nil
	default:
		return nil, nil, fmt.Errorf("invalid --emitter %q (want %s or %s)", name, emitterKeyboard, emitterStdout)
	}
}

// stopAndWait ends a live run or a pending start. Stop reports
// ErrInvalidCommand when neither exists.
func stopAndWait(ctrl *session.Controller) {
	_ = ctrl.Stop()
	_ = ctrl.Wait()
}

func resolveTyping(cmd *cobra.Command, file config.TypingConfig) model.TypingConfig {
	applyFloatConfig(cmd, "wpm", &typingWPM, file.WPM)
	applyFloatConfig(cmd, "wpm-variation", &typingVariation, file.WPMVariation)
	applyFloatConfig(cmd, "fatigue", &typingFatigue, file.Fatigue)
	applyFloatConfig(cmd, "burst", &typingBurst, file.Burst)
	applyFloatConfig(cmd, "hesitation", &typingHesitation, file.Hesitation)
	applyFloatConfig(cmd, "micro-pause", &typingMicroPause, file.MicroPause)
	applyFloatConfig(cmd, "typo", &typingTypo, file.Typo)
	if file.Countdown != nil {
		applyDurationConfig(cmd, "countdown", &typingCountdown, &file.Countdown.Duration)
	}
	applyIntConfig(cmd, "progress-every", &typingProgressEvery, file.ProgressEvery)
	applyIntConfig(cmd, "checkpoint-every", &typingCheckpointEvery, file.CheckpointEvery)

	return model.TypingConfig{
		WPM:             typingWPM,
		WPMVariation:    typingVariation,
		Fatigue:         typingFatigue,
		Burst:           typingBurst,
		Hesitation:      typingHesitation,
		MicroPause:      typingMicroPause,
		Typo:            typingTypo,
		Countdown:       typingCountdown,
		ProgressEvery:   typingProgressEvery,
		CheckpointEvery: typingCheckpointEvery,
	}
}

func resolveLog(cmd *cobra.Command, file config.LogConfig) observability.Config {
	applyStringConfig(cmd, "log-level", &logLevel, file.Level)
	applyStringConfig(cmd, "log-format", &logFormat, file.Format)
	applyStringConfig(cmd, "log-file", &logFile, file.File)

	cfg := observability.Config{
		Level:      logLevel,
		Format:     logFormat,
		File:       logFile,
		MaxSize:    observability.DefaultMaxSize,
		MaxBackups: observability.DefaultMaxBackups,
		MaxAge:     observability.DefaultMaxAge,
	}
	if file.MaxSize != nil {
		cfg.MaxSize = *file.MaxSize
	}
	if file.MaxBackups != nil {
		cfg.MaxBackups = *file.MaxBackups
	}
	if file.MaxAge != nil {
		cfg.MaxAge = *file.MaxAge
	}
	if file.Compress != nil {
		cfg.Compress = *file.Compress
	}
	return cfg
}

func paramsFor(cfg model.TypingConfig) cadence.Params {
	return cadence.Params{
		BaseWPM:          cfg.WPM,
		WPMVariation:     cfg.WPMVariation,
		FatigueFactor:    cfg.Fatigue,
		BurstChance:      cfg.Burst,
		HesitationChance: cfg.Hesitation,
		MicroPauseChance: cfg.MicroPause,
		TypoChance:       cfg.Typo,
	}
}

func validateTyping(cfg model.TypingConfig, params cadence.Params) error {
	if cfg.WPM < control.MinWPM || cfg.WPM > control.MaxWPM {
		return fmt.Errorf("--wpm must be between %d and %d", control.MinWPM, control.MaxWPM)
	}
	if err := params.Validate(); err != nil {
		return fmt.Errorf("invalid typing settings: %w", err)
	}
	if cfg.Countdown < 0 {
		return fmt.Errorf("--countdown must be >= 0")
	}
	if cfg.ProgressEvery <= 0 {
		return fmt.Errorf("--progress-every must be > 0")
	}
	if cfg.CheckpointEvery < 0 {
		return fmt.Errorf("--checkpoint-every must be >= 0")
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

func applyDurationConfig(cmd *cobra.Command, name string, target, value *time.Duration) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# autotype configuration
# Uncomment a value to enable it. CLI flags and AUTOTYPE_* variables override config values.

[typing]
# wpm = %d                # Base speed in words per minute (%d-%d)
# wpm-variation = %.2f    # Keystroke timing spread (0-1)
# fatigue = %.2f          # Slowdown by the end of the text (0-1)
# burst = %.2f            # Burst probability per character (0-1)
# hesitation = %.2f       # Hesitation probability per character (0-1)
# micro-pause = %.2f      # Micro-pause probability per character (0-1)
# typo = %.3f             # Typo probability per letter (0-1)
# countdown = %q          # Delay before typing starts
# progress-every = %d     # Characters between progress reports
# checkpoint-every = %d  # Characters between saved checkpoints (0 disables)

[log]
# level = %q          # debug, info, warn, error
# format = %q       # console, plain, json
# file = ""              # Rotating JSON log file
# max-size = %d          # Megabytes before rotation
# max-backups = %d        # Rotated files to keep
# max-age = %d           # Days to keep rotated files
# compress = false
`,
		cadence.DefaultBaseWPM,
		control.MinWPM,
		control.MaxWPM,
		cadence.DefaultWPMVariation,
		cadence.DefaultFatigueFactor,
		cadence.DefaultBurstChance,
		cadence.DefaultHesitationChance,
		cadence.DefaultMicroPauseChance,
		cadence.DefaultTypoChance,
		defaultCountdown.String(),
		defaultProgressEvery,
		defaultCheckpointEvery,
		observability.DefaultLevel,
		observability.DefaultFormat,
		observability.DefaultMaxSize,
		observability.DefaultMaxBackups,
		observability.DefaultMaxAge,
	)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
