package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gdamore/tcell/v2"
	Md "github.com/maroda/ringfleet/display"
	Mo "github.com/maroda/ringfleet/obvy"
	Rp "github.com/maroda/ringfleet/plugin"
	Ms "github.com/maroda/ringfleet/server"
	Rt "github.com/maroda/ringfleet/types"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// rootOptions is the environment plus whatever flags override it
type rootOptions struct {
	env Ms.Env
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	var (
		config string
		addr   string
		lines  int
	)

	cmd := &cobra.Command{
		Use:           "ringfleet",
		Short:         "Ringfleet - a fleet of simulated telephone lines",
		Long:          "Drives up to eight ringer relays through random calls and patterns.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			e, err := Ms.LoadEnv()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("config") {
				e.ConfigFile = config
			}
			if cmd.Flags().Changed("addr") {
				e.Addr = addr
			}
			if cmd.Flags().Changed("lines") {
				e.Lines = lines
			}
			opts.env = e
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&config, "config", "c", "", "tuning file, JSON or YAML (RINGFLEET_CONFIG)")
	cmd.PersistentFlags().StringVar(&addr, "addr", "", "API listen address (RINGFLEET_ADDR)")
	cmd.PersistentFlags().IntVar(&lines, "lines", 0, "number of lines on the board (RINGFLEET_LINES)")

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newWebCommand(opts))
	cmd.AddCommand(newSettingsCommand(opts))
	cmd.AddCommand(newPatternsCommand())

	return cmd
}

func newRunCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the board with the terminal display",
		RunE: func(cmd *cobra.Command, args []string) error {
			logFile, err := os.OpenFile(opts.env.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return fmt.Errorf("open log file: %w", err)
			}
			defer logFile.Close()
			setupLogging(logFile, opts.env.Debug)

			screen, err := Md.GetTTY()
			if err != nil {
				slog.Error("Could not open the terminal", slog.Any("error", err))
				return err
			}

			b, err := buildBoard(opts.env, screen)
			if err != nil {
				screen.Fini()
				return err
			}
			defer b.Close()

			return Md.StartTerminal(b.view, opts.env.Addr)
		},
	}
}

func newWebCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "web",
		Short: "Run the board headless, API and metrics only",
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(os.Stderr, opts.env.Debug)

			b, err := buildBoard(opts.env, nil)
			if err != nil {
				return err
			}
			defer b.Close()

			return Md.StartWebNoTUI(b.view, opts.env.Addr)
		},
	}
}

func newSettingsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect or reset the stored settings record",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the stored settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSettings(opts.env, func(store *Rp.BadgerSettings) error {
				out := cmd.OutOrStdout()
				rec, ok := store.Load()
				if !ok {
					fmt.Fprintln(out, "No valid settings stored, defaults apply:")
					rec = Ms.DefaultRecord()
				}
				fmt.Fprintf(out, "version:          %d\n", rec.Version)
				fmt.Fprintf(out, "enabled lines:    %d\n", rec.EnabledLineCount)
				fmt.Fprintf(out, "max concurrent:   %d\n", rec.MaxConcurrentActive)
				fmt.Fprintf(out, "max call delay:   %ds\n", rec.MaxCallDelaySeconds)
				fmt.Fprintf(out, "ringer hang time: %ds\n", rec.RingerHangTimeSeconds)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Remove the stored settings, the next start uses defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSettings(opts.env, func(store *Rp.BadgerSettings) error {
				if err := store.Reset(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Settings removed")
				return nil
			})
		},
	})

	return cmd
}

func newPatternsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "patterns",
		Short: "List pattern modes and custom strategies",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "modes:")
			for m := Rt.PatternRandom; m <= Rt.PatternCustom; m++ {
				fmt.Fprintf(out, "  %s\n", Ms.ModeName(m))
			}
			fmt.Fprintln(out, "strategies:")
			for _, name := range Rp.StrategyNames() {
				fmt.Fprintf(out, "  %s\n", name)
			}
		},
	}
}

func setupLogging(w io.Writer, debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

func withSettings(e Ms.Env, fn func(store *Rp.BadgerSettings) error) error {
	db, err := Rp.OpenBadger(e.SettingsPath)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(Rp.NewBadgerSettings(db))
}

// board is everything a running ringfleet owns
type board struct {
	view     *Md.View
	db       *badger.DB
	callLog  *Rp.BadgerOutput
	midi     *Rp.MIDIRelay
	shutdown func()
}

// buildBoard wires storage, outputs and observability around the core.
// screen may be nil for a headless board.
func buildBoard(e Ms.Env, screen tcell.Screen) (*board, error) {
	if e.Tracing == "honeycomb" && Ms.FillEnvVar("HONEYCOMB_API_KEY") == "ENOENT" {
		slog.Warn("HONEYCOMB_API_KEY is not set, spans will be dropped")
	}
	shutdown, err := Mo.InitTracing(e.Tracing)
	if err != nil {
		slog.Error("Tracing disabled", slog.Any("error", err))
		shutdown = func() {}
	}
	b := &board{shutdown: shutdown}

	var cf *Ms.ConfigFile
	if e.ConfigFile != "" {
		cf, err = Ms.LoadConfigFileName(e.ConfigFile)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("config %s: %w", e.ConfigFile, err)
		}
	}

	strategyName := "alternate"
	if cf != nil && cf.Strategy != "" {
		strategyName = cf.Strategy
	}
	strategy, err := Rp.StrategyLookup(strategyName)
	if err != nil {
		b.Close()
		return nil, err
	}

	b.db, err = Rp.OpenBadger(e.SettingsPath)
	if err != nil {
		b.Close()
		return nil, err
	}

	stats := Mo.NewStatsInternal()
	reporter := Ms.MultiReporter{Ms.SlogReporter{}, stats}
	if e.CallLog {
		b.callLog = Rp.NewBadgerOutputDB(b.db, 50)
		reporter = append(reporter, b.callLog)
	}

	var next Ms.Relay
	if e.Output == "midi" {
		b.midi, err = Md.InitMIDIRelay()
		if err != nil {
			slog.Warn("MIDI output unavailable, relays are simulated only", slog.Any("error", err))
		} else {
			next = b.midi
		}
	}
	activeLow := cf != nil && cf.ActiveLow

	now := time.Now()
	sb := Ms.NewSwitchboard(now, Ms.SwitchboardConfig{
		Lines:    e.Lines,
		Relay:    Ms.NewRelayBank(activeLow, next),
		Policy:   cf.Policy(),
		Reporter: reporter,
		Store:    Rp.NewBadgerSettings(b.db),
		Strategy: strategy,
		Mode:     cf.Mode(),
	})
	sb.LoadSettings(context.Background(), now)

	b.view, err = Md.NewView(sb, screen, stats)
	if err != nil {
		b.Close()
		return nil, err
	}
	if b.callLog != nil {
		b.view.CallLog = b.callLog
	}

	slog.Info("Ringfleet ready",
		slog.Int("lines", sb.Fleet.TotalLines()),
		slog.String("strategy", strategy.Type()),
		slog.String("output", e.Output))
	return b, nil
}

// Close flushes the call log and releases every output
func (b *board) Close() {
	if b.callLog != nil {
		if err := b.callLog.Close(); err != nil {
			slog.Error("Call log close failed", slog.Any("error", err))
		}
	}
	if b.midi != nil {
		b.midi.Flush()
		b.midi.Close()
	}
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			slog.Error("Database close failed", slog.Any("error", err))
		}
	}
	b.shutdown()
}
