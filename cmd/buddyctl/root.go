package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"buddy/internal/bootstrap"
	"buddy/internal/commands"
	"buddy/internal/config"
	"buddy/internal/domain"
	"buddy/internal/rules"
	"buddy/internal/timers"
	"buddy/internal/usecase"
)

type rootOptions struct {
	configPath  string
	metricsAddr string
	verbose     bool

	out    io.Writer
	errOut io.Writer
	now    func() time.Time
}

func newRootCommand(out, errOut io.Writer) *cobra.Command {
	return newRootCommandAt(out, errOut, time.Now)
}

// newRootCommandAt is newRootCommand with a fixed clock for local answers.
func newRootCommandAt(out, errOut io.Writer, now func() time.Time) *cobra.Command {
	opts := &rootOptions{out: out, errOut: errOut, now: now}

	root := &cobra.Command{
		Use:           "buddyctl",
		Short:         "Talk to buddy from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.CompletionOptions.DisableDefaultCmd = true

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default ~/.buddy/config.yaml)")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "print state changes and timer ticks")

	root.AddCommand(
		newAskCommand(opts),
		newClassifyCommand(opts),
		newRewriteCommand(opts),
		newTimerCommand(opts),
		newREPLCommand(opts),
	)
	return root
}

func (o *rootOptions) build(ctx context.Context, sink *consoleSink) (*bootstrap.Services, error) {
	return bootstrap.Build(ctx, bootstrap.Options{
		ConfigPath:  o.configPath,
		MetricsAddr: o.metricsAddr,
		Events:      sink,
		Opener:      sink,
		Notifier:    sink,
		Now:         o.now,
	})
}

func newAskCommand(opts *rootOptions) *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "ask <utterance...>",
		Short: "Handle one utterance as if it had been spoken",
		Example: `  buddyctl ask what time is it
  buddyctl ask --wait set a timer for 30 seconds`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sink := newConsoleSink(opts.out, opts.verbose)
			services, err := opts.build(ctx, sink)
			if err != nil {
				return err
			}
			defer services.Close()

			if _, err := services.Assistant.HandleUtterance(ctx, strings.Join(args, " ")); err != nil {
				return err
			}
			if wait {
				return waitForTimers(ctx, services.Timers, 100*time.Millisecond)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "keep running until started timers finish")
	return cmd
}

// waitForTimers blocks until every listed timer has completed.
func waitForTimers(ctx context.Context, manager *timers.Manager, poll time.Duration) error {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		pending := false
		for _, timer := range manager.List() {
			if !timer.IsComplete {
				pending = true
				break
			}
		}
		if !pending {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func newClassifyCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <utterance...>",
		Short: "Show how an utterance would be handled locally",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result := commands.Classify(strings.Join(args, " "), opts.now())
			enc := json.NewEncoder(opts.out)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
}

func newRewriteCommand(opts *rootOptions) *cobra.Command {
	var rulesPath string
	cmd := &cobra.Command{
		Use:   "rewrite <transcript...>",
		Short: "Apply the transcript rules to text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFile(opts.configPath)
			if err != nil {
				return err
			}
			if rulesPath == "" {
				rulesPath = cfg.Rules.Path
			}
			engine, err := rules.NewEngine(rulesPath, cfg.Rules.IterationLimit, zerolog.Nop())
			if err != nil {
				return err
			}
			out, err := engine.Apply(strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(opts.out, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&rulesPath, "rules", "", "rules file (default from config)")
	return cmd
}

func newTimerCommand(opts *rootOptions) *cobra.Command {
	var tick time.Duration
	cmd := &cobra.Command{
		Use:     "timer <duration...>",
		Short:   "Run a countdown in the terminal",
		Example: "  buddyctl timer 5 minutes\n  buddyctl timer 1 min 30 seconds",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, ok := commands.ParseTimerDuration("timer for " + strings.Join(args, " "))
			if !ok || req.TotalSeconds() <= 0 {
				return fmt.Errorf("could not understand duration %q", strings.Join(args, " "))
			}

			sink := newConsoleSink(opts.out, true)
			done := make(chan domain.Timer, 1)
			manager := timers.NewManager(timers.Options{
				Interval: tick,
				OnTick:   sink.TimerUpdated,
				OnComplete: func(timer domain.Timer) {
					done <- timer
				},
			})
			defer manager.Close()

			manager.Add(req.TotalSeconds(), req.Label)
			select {
			case timer := <-done:
				sink.TimerCompleted(timer)
				fmt.Fprintln(opts.out, usecase.TimerDoneMessage(timer.Label))
				return nil
			case <-cmd.Context().Done():
				return errors.New("timer cancelled")
			}
		},
	}
	cmd.Flags().DurationVar(&tick, "tick", time.Second, "countdown step")
	_ = cmd.Flags().MarkHidden("tick")
	return cmd
}
