package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/pkg/browser"

	"buddy/internal/domain"
	"buddy/internal/timers"
)

// consoleSink renders backend events as plain text. It also serves as the
// URL opener and notifier for terminal use.
type consoleSink struct {
	mu      sync.Mutex
	out     io.Writer
	verbose bool

	streaming bool
	open      func(url string) error
}

func newConsoleSink(out io.Writer, verbose bool) *consoleSink {
	return &consoleSink{out: out, verbose: verbose, open: browser.OpenURL}
}

func (c *consoleSink) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endStreamLocked()
	fmt.Fprintf(c.out, format, args...)
}

func (c *consoleSink) endStreamLocked() {
	if c.streaming {
		fmt.Fprintln(c.out)
		c.streaming = false
	}
}

func (c *consoleSink) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	if c.verbose {
		c.printf("[%s] %s\n", state, reason)
	}
}

func (c *consoleSink) PartialTranscript(text string) {
	if c.verbose {
		c.printf("… %s\n", text)
	}
}

func (c *consoleSink) FinalTranscript(raw string, transformed string) {
	if c.verbose && raw != transformed {
		c.printf("rewrote %q -> %q\n", raw, transformed)
	}
}

func (c *consoleSink) UserMessage(text string) {
	c.printf("you: %s\n", text)
}

func (c *consoleSink) AssistantDelta(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.streaming {
		fmt.Fprint(c.out, "buddy: ")
		c.streaming = true
	}
	fmt.Fprint(c.out, text)
}

func (c *consoleSink) AssistantMessage(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.streaming {
		c.endStreamLocked()
		return
	}
	fmt.Fprintf(c.out, "buddy: %s\n", text)
}

// Speak is a no-op; the terminal has no synthesizer.
func (c *consoleSink) Speak(string) {}

func (c *consoleSink) TimerUpdated(timer domain.Timer) {
	if c.verbose {
		c.printf("timer %s: %s\n", timer.Label, timers.FormatRemaining(timer.Remaining))
	}
}

func (c *consoleSink) TimerCompleted(timer domain.Timer) {
	c.printf("\atimer %s done\n", timer.Label)
}

func (c *consoleSink) SessionError(code domain.ErrorCode, detail string) {
	c.printf("error (%s): %s\n", code, detail)
}

func (c *consoleSink) OpenURL(_ context.Context, url string) error {
	if strings.TrimSpace(url) == "" {
		return fmt.Errorf("empty url")
	}
	if err := c.open(url); err != nil {
		return fmt.Errorf("open %s: %w", url, err)
	}
	return nil
}

func (c *consoleSink) Notify(_ context.Context, title string, body string) error {
	c.printf("%s: %s\n", title, body)
	return nil
}
