package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"buddy/internal/ports"
)

const (
	defaultStartupProbe = 250 * time.Millisecond
	defaultStopTimeout  = 1200 * time.Millisecond
)

// Options tunes how the recorder process is supervised.
type Options struct {
	// Command is the recorder binary; it must accept ffmpeg arguments.
	Command string
	// StartupProbe is how long a fresh process must survive before capture is
	// considered started.
	StartupProbe time.Duration
	// StopTimeout is how long Stop waits after SIGINT before killing.
	StopTimeout time.Duration
	Logger      zerolog.Logger
}

// FFMPEGCapture streams 16-bit little-endian microphone PCM from ffmpeg.
type FFMPEGCapture struct {
	command      string
	startupProbe time.Duration
	stopTimeout  time.Duration
	logger       zerolog.Logger
}

func NewFFMPEGCapture(opts Options) *FFMPEGCapture {
	if strings.TrimSpace(opts.Command) == "" {
		opts.Command = "ffmpeg"
	}
	if opts.StartupProbe <= 0 {
		opts.StartupProbe = defaultStartupProbe
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = defaultStopTimeout
	}
	return &FFMPEGCapture{
		command:      opts.Command,
		startupProbe: opts.StartupProbe,
		stopTimeout:  opts.StopTimeout,
		logger:       opts.Logger.With().Str("component", "audio").Logger(),
	}
}

func (c *FFMPEGCapture) Start(ctx context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	cmd := exec.CommandContext(ctx, c.command, captureArgs(cfg)...)
	stderr := &lockedBuffer{}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create recorder stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start recorder %q: %w", c.command, err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	select {
	case err := <-waitErr:
		if err != nil {
			return nil, fmt.Errorf("recorder exited before capture started: %w: %s", err, stderr.Trimmed())
		}
		return nil, errors.New("recorder exited before capture started")
	case <-time.After(c.startupProbe):
	}

	c.logger.Debug().Int("pid", cmd.Process.Pid).Str("device", cfg.InputDevice).Msg("microphone capture started")
	return &captureSession{
		stdout:      stdout,
		stderr:      stderr,
		process:     cmd.Process,
		waitErr:     waitErr,
		stopTimeout: c.stopTimeout,
		logger:      c.logger,
	}, nil
}

// captureArgs fills in capture defaults and renders the recorder arguments.
func captureArgs(cfg ports.AudioConfig) []string {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}

	return []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le",
		"-",
	}
}

type captureSession struct {
	stdout io.ReadCloser
	stderr *lockedBuffer

	process     *os.Process
	waitErr     <-chan error
	stopTimeout time.Duration
	logger      zerolog.Logger

	stopOnce sync.Once
	stopErr  error
}

func (s *captureSession) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

func (s *captureSession) Close() error {
	return s.Stop()
}

// Stop interrupts the recorder, escalating to kill after the stop timeout.
func (s *captureSession) Stop() error {
	s.stopOnce.Do(func() {
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.stopErr = ignoreExitStatus(err)
			}
		case <-time.After(s.stopTimeout):
			s.logger.Warn().Dur("timeout", s.stopTimeout).Msg("recorder ignored interrupt; killing")
			if s.process != nil {
				_ = s.process.Kill()
			}
			if err, ok := <-s.waitErr; ok {
				s.stopErr = ignoreExitStatus(err)
			}
		}

		if closeErr := s.stdout.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) && s.stopErr == nil {
			s.stopErr = closeErr
		}

		if detail := s.stderr.Trimmed(); detail != "" {
			if s.stopErr != nil {
				s.stopErr = fmt.Errorf("%w: %s", s.stopErr, detail)
			} else {
				s.logger.Debug().Str("stderr", detail).Msg("recorder output")
			}
		}
	})

	return s.stopErr
}

// ignoreExitStatus treats a non-zero exit after interrupt as a clean stop.
func ignoreExitStatus(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

// lockedBuffer collects recorder stderr written from the exec copier goroutine.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Trimmed() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(b.buf.String())
}
