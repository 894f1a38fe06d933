package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"buddy/internal/bootstrap"
	"buddy/internal/timers"
	"buddy/internal/usecase"
)

func newREPLCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Interactive session with typed or spoken input",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			rl, err := readline.NewEx(&readline.Config{
				Prompt:          "buddy> ",
				InterruptPrompt: "^C",
				EOFPrompt:       "exit",
			})
			if err != nil {
				return fmt.Errorf("failed to create readline: %w", err)
			}
			defer rl.Close()

			sink := newConsoleSink(rl.Stdout(), opts.verbose)
			services, err := opts.build(ctx, sink)
			if err != nil {
				return err
			}
			defer services.Close()

			session := &replSession{services: services, out: rl.Stdout()}
			session.printHelp()
			return session.run(ctx, rl)
		},
	}
}

type replSession struct {
	services  *bootstrap.Services
	out       io.Writer
	listening bool
}

func (s *replSession) run(ctx context.Context, rl *readline.Instance) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				if s.listening {
					s.handle(ctx, "/abort")
				}
				continue
			}
			return nil
		}
		if quit := s.handle(ctx, line); quit {
			return nil
		}
		if s.listening {
			rl.SetPrompt("listening (enter to stop)> ")
		} else {
			rl.SetPrompt("buddy> ")
		}
	}
}

// handle runs one input line and reports whether the session should end.
// While listening, any line stops the microphone.
func (s *replSession) handle(ctx context.Context, line string) bool {
	input := strings.TrimSpace(line)

	if s.listening && input != "/abort" {
		s.listening = false
		if _, err := s.services.Controller.Stop(ctx); err != nil && !errors.Is(err, usecase.ErrNoTranscript) {
			fmt.Fprintf(s.out, "stop failed: %v\n", err)
		}
		return false
	}
	if input == "" {
		return false
	}
	if !strings.HasPrefix(input, "/") {
		if _, err := s.services.Assistant.HandleUtterance(ctx, input); err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
		return false
	}

	parts := strings.Fields(input)
	cmd, args := strings.ToLower(parts[0]), parts[1:]
	switch cmd {
	case "/quit", "/exit":
		return true
	case "/help", "/?":
		s.printHelp()
	case "/listen", "/l":
		if err := s.services.Controller.Start(ctx); err != nil {
			fmt.Fprintf(s.out, "listen failed: %v\n", err)
			return false
		}
		s.listening = true
	case "/abort":
		s.listening = false
		if err := s.services.Controller.Abort(); err != nil && !errors.Is(err, usecase.ErrNoActiveSession) {
			fmt.Fprintf(s.out, "abort failed: %v\n", err)
		}
	case "/search":
		on, ok := parseToggle(args)
		if !ok {
			fmt.Fprintln(s.out, "usage: /search on|off")
			return false
		}
		s.services.Assistant.SetSearchMode(on)
		s.printStatus()
	case "/mute":
		on, ok := parseToggle(args)
		if !ok {
			fmt.Fprintln(s.out, "usage: /mute on|off")
			return false
		}
		s.services.Assistant.SetMuted(on)
		s.printStatus()
	case "/timers", "/t":
		s.printTimers()
	case "/cancel":
		if len(args) != 1 {
			fmt.Fprintln(s.out, "usage: /cancel <timer-id>")
			return false
		}
		s.services.Timers.Remove(args[0])
		s.printTimers()
	case "/reset":
		s.services.Assistant.ResetConversation()
		fmt.Fprintln(s.out, "conversation cleared")
	case "/status":
		s.printStatus()
	default:
		fmt.Fprintf(s.out, "unknown command %s (try /help)\n", cmd)
	}
	return false
}

func parseToggle(args []string) (bool, bool) {
	if len(args) != 1 {
		return false, false
	}
	switch strings.ToLower(args[0]) {
	case "on", "true", "1":
		return true, true
	case "off", "false", "0":
		return false, true
	default:
		return false, false
	}
}

func (s *replSession) printStatus() {
	status := s.services.Assistant.Status()
	fmt.Fprintf(s.out, "state=%s search=%t muted=%t\n", status.State, status.SearchMode, status.Muted)
}

func (s *replSession) printTimers() {
	list := s.services.Timers.List()
	if len(list) == 0 {
		fmt.Fprintln(s.out, "no timers")
		return
	}
	for _, timer := range list {
		state := timers.FormatRemaining(timer.Remaining)
		if timer.IsComplete {
			state = "done"
		}
		fmt.Fprintf(s.out, "%s  %-24s %s\n", timer.ID, timer.Label, state)
	}
}

func (s *replSession) printHelp() {
	fmt.Fprintln(s.out, `Type to talk to buddy, or:
  /listen           speak; press enter to stop
  /abort            discard what is being heard
  /search on|off    web search mode for assistant replies
  /mute on|off      suppress speech
  /timers           list timers
  /cancel <id>      cancel a timer
  /reset            forget the conversation
  /status           show assistant state
  /quit             exit`)
}
