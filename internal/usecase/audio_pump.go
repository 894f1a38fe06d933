package usecase

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"buddy/internal/domain"
	"buddy/internal/metrics"
	"buddy/internal/ports"
)

// audioPump copies microphone PCM into the provider stream in fixed chunks.
type audioPump struct {
	done chan struct{}

	mu    sync.Mutex
	bytes int64
	err   error
}

func startAudioPump(audio ports.AudioSession, stream ports.StreamingSession, chunkSize int) *audioPump {
	p := &audioPump{done: make(chan struct{})}
	go p.run(audio, stream, chunkSize)
	return p
}

func (p *audioPump) run(audio ports.AudioSession, stream ports.StreamingSession, chunkSize int) {
	defer close(p.done)

	if chunkSize < 256 {
		chunkSize = 4096
	}

	buf := make([]byte, chunkSize)
	for {
		n, err := audio.Read(buf)
		if n > 0 {
			if sendErr := stream.SendAudio(buf[:n]); sendErr != nil {
				p.fail(fmt.Errorf("failed to stream audio: %w", sendErr))
				return
			}
			p.count(n)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				p.fail(fmt.Errorf("audio capture error: %w", err))
			}
			return
		}
	}
}

func (p *audioPump) count(n int) {
	metrics.AudioBytes.Add(float64(n))
	p.mu.Lock()
	p.bytes += int64(n)
	p.mu.Unlock()
}

func (p *audioPump) fail(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

// Wait blocks until the pump exits and returns the bytes sent and the
// failure, if any. A clean end of capture is not a failure.
func (p *audioPump) Wait() (int64, error) {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bytes, p.err
}

// report forwards a pump failure to the UI.
func (p *audioPump) report(events ports.EventSink) {
	if _, err := p.Wait(); err != nil {
		events.SessionError(domain.ErrorCodeAudioStream, err.Error())
	}
}

func waitForStream(session ports.StreamingSession, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		done <- session.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		_ = session.Close()
		return <-done
	}
}
