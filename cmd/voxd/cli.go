package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"gopkg.in/natefinch/lumberjack.v2"

	"voxd/audiocapture"
	"voxd/clipboard"
	"voxd/config"
	"voxd/history"
	"voxd/hotkey"
	"voxd/intent"
	"voxd/internal/agent"
	"voxd/internal/types"
	"voxd/llm"
	"voxd/notify"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp() *cli.App {
	app := &cli.App{
		Name:    "voxd",
		Usage:   "Press a key, speak, get the model's answer on your clipboard",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "Config file path"},
			&cli.BoolFlag{Name: "verbose", Usage: "Log at debug level"},
		},
		Action: runAction,
		Commands: []*cli.Command{
			runCmd(),
			sendCmd(),
			historyCmd(),
			configCmd(),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// runCmd creates the run command, also the default action.
func runCmd() *cli.Command {
	return &cli.Command{
		Name:   "run",
		Usage:  "Run the background agent (default when no command is given)",
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if cfg.APIKey == "" {
		return cli.Exit(fmt.Sprintf("API key required: set %s or api_key in the config file", config.EnvAPIKey), 1)
	}

	log, closeLog := newLogger(cfg, c.Bool("verbose"))
	defer closeLog()
	slog.SetDefault(log)

	trigger, err := hotkey.LookupKey(cfg.TriggerKey)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	gen, err := llm.New(llm.Config{
		Provider: cfg.Provider,
		APIKey:   cfg.APIKey,
		BaseURL:  cfg.BaseURL,
	})
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	rec, err := audiocapture.NewRecorder(audiocapture.Config{
		SampleRate: cfg.SampleRate,
		Channels:   cfg.Channels,
		Dir:        cfg.AudioDir(),
	})
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer rec.Close()

	var hist agent.History
	if !cfg.DisableHistory {
		store, err := history.Open(cfg.HistoryDir(), cfg.HistoryDays)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		defer store.Close()
		hist = store
	}

	sink := agent.NewSink(log, notify.New(log), clipboardWriter{})
	pipe := agent.NewPipeline(log, gen, agent.PipelineConfig{
		Models:       cfg.Models,
		Instructions: cfg.Instructions,
		Timeout:      time.Duration(cfg.RequestTimeout) * time.Second,
	})
	ctl := agent.NewController(log, recorder{rec}, pipe, sink, cfg.DefaultMode, cfg.DefaultModel)

	runID := uuid.New().String()
	ag := agent.New(agent.Deps{
		Log:        log,
		Keys:       hotkey.NewListener(log),
		Classifier: intent.NewClassifier(trigger),
		Controller: ctl,
		Pipeline:   pipe,
		Sink:       sink,
		History:    hist,
		RunID:      runID,
		TriggerKey: cfg.TriggerKey,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting",
		"version", Version,
		"run_id", runID,
		"provider", cfg.Provider,
		"trigger", cfg.TriggerKey)
	return ag.Run(ctx)
}

// sendCmd creates the send command, a one-shot request without the hotkey loop.
func sendCmd() *cli.Command {
	return &cli.Command{
		Name:      "send",
		Usage:     "Send a recorded WAV file to the model once and print the reply",
		ArgsUsage: "<file.wav>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Usage: "assistant or transcribe (default: config)"},
			&cli.StringFlag{Name: "model", Usage: "fast or capable (default: config)"},
			&cli.BoolFlag{Name: "copy", Usage: "Also copy the reply to the clipboard"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("usage: voxd send <file.wav>", 1)
			}

			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			if cfg.APIKey == "" {
				return cli.Exit(fmt.Sprintf("API key required: set %s or api_key in the config file", config.EnvAPIKey), 1)
			}

			mode, err := resolveMode(cfg, c.String("mode"))
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			choice, err := resolveModel(cfg, c.String("model"))
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}

			audio, err := os.ReadFile(c.Args().First())
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}

			gen, err := llm.New(llm.Config{
				Provider: cfg.Provider,
				APIKey:   cfg.APIKey,
				BaseURL:  cfg.BaseURL,
			})
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}

			ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.RequestTimeout)*time.Second)
			defer cancel()

			start := time.Now()
			resp, err := gen.Generate(ctx, llm.Request{
				Model:       cfg.Models[choice],
				Instruction: cfg.Instructions[mode],
				Audio:       audio,
				MIMEType:    "audio/wav",
			})
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}

			if c.Bool("copy") {
				if err := clipboard.Write(resp.Text); err != nil {
					fmt.Fprintf(os.Stderr, "copy failed: %v\n", err)
				}
			}
			fmt.Println(resp.Text)
			fmt.Fprintf(os.Stderr, "%s answered in %.1fs (%d tokens)\n",
				cfg.Models[choice], time.Since(start).Seconds(), resp.Usage.TotalTokens)
			return nil
		},
	}
}

// historyCmd creates the history command.
func historyCmd() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show recent sessions, newest first",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 10, Usage: "Maximum entries to show"},
			&cli.BoolFlag{Name: "json", Usage: "Print entries as JSON"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			if cfg.DisableHistory {
				return cli.Exit("history is disabled in the config", 1)
			}

			store, err := history.Open(cfg.HistoryDir(), cfg.HistoryDays)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			defer store.Close()

			entries, err := store.Recent(c.Int("limit"))
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}

			if c.Bool("json") {
				return outputJSON(entries)
			}
			if len(entries) == 0 {
				fmt.Println("no sessions recorded yet")
				return nil
			}
			for _, e := range entries {
				fmt.Println(historyLine(e))
			}
			return nil
		},
	}
}

// configCmd creates the config command group.
func configCmd() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage the config file",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write a config file with the default settings",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "force", Usage: "Overwrite an existing file"},
				},
				Action: func(c *cli.Context) error {
					path := c.String("config")
					if path == "" {
						p, err := config.DefaultPath()
						if err != nil {
							return cli.Exit(err.Error(), 1)
						}
						path = p
					}
					if _, err := os.Stat(path); err == nil && !c.Bool("force") {
						return cli.Exit(fmt.Sprintf("%s already exists, use --force to overwrite", path), 1)
					}
					if err := config.Default().Save(path); err != nil {
						return cli.Exit(err.Error(), 1)
					}
					fmt.Println("wrote", path)
					return nil
				},
			},
			{
				Name:  "path",
				Usage: "Print the default config file location",
				Action: func(_ *cli.Context) error {
					p, err := config.DefaultPath()
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}
					fmt.Println(p)
					return nil
				},
			},
		},
	}
}

// Helper functions

// newLogger builds the agent logger. Logs always go to stdout; when a log
// file is configured they are also written there through a size-capped
// rotating writer.
func newLogger(cfg *config.Config, verbose bool) (*slog.Logger, func()) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	var w io.Writer = os.Stdout
	closeFn := func() {}
	if cfg.LogFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // MB
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}
		w = io.MultiWriter(os.Stdout, rotator)
		closeFn = func() { rotator.Close() }
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), closeFn
}

// resolveMode maps a --mode flag value onto the config.
func resolveMode(cfg *config.Config, s string) (types.Mode, error) {
	if s == "" {
		return cfg.DefaultMode, nil
	}
	m := types.Mode(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown mode %q, want assistant or transcribe", s)
	}
	return m, nil
}

// resolveModel maps a --model flag value onto the config.
func resolveModel(cfg *config.Config, s string) (types.ModelChoice, error) {
	if s == "" {
		return cfg.DefaultModel, nil
	}
	m := types.ModelChoice(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown model %q, want fast or capable", s)
	}
	return m, nil
}

// historyLine renders one entry for terminal output.
func historyLine(e history.Entry) string {
	ts := e.CreatedAt.Local().Format("2006-01-02 15:04:05")
	if e.Failed() {
		return fmt.Sprintf("%s  %-10s %-18s FAILED %s: %s", ts, e.Mode, e.Model, e.ErrKind, e.ErrMessage)
	}

	text := strings.ReplaceAll(e.Text, "\n", " ")
	if utf8.RuneCountInString(text) > 80 {
		text = string([]rune(text)[:80]) + "..."
	}
	return fmt.Sprintf("%s  %-10s %-18s %s", ts, e.Mode, e.Model, text)
}

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// recorder adapts the audio capture package to the agent's interfaces.
type recorder struct {
	r *audiocapture.Recorder
}

func (r recorder) Begin(ctx context.Context) (agent.CaptureHandle, error) {
	s, err := r.r.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// clipboardWriter adapts the clipboard package to the agent's interface.
type clipboardWriter struct{}

func (clipboardWriter) Write(text string) error {
	return clipboard.Write(text)
}
