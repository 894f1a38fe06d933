package deepgram

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"buddy/internal/domain"
)

var (
	closeStreamFrame = []byte(`{"type":"CloseStream"}`)
	keepAliveFrame   = []byte(`{"type":"KeepAlive"}`)
)

type session struct {
	conn      *websocket.Conn
	keepAlive time.Duration
	logger    zerolog.Logger

	events   chan domain.TranscriptEvent
	audio    chan []byte
	readDone chan struct{}
	done     chan struct{}

	wg sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeSendOnce sync.Once
	closeOnce     sync.Once
	sendMu        sync.RWMutex
	sendClosed    bool
}

func newSession(conn *websocket.Conn, keepAlive time.Duration, logger zerolog.Logger) *session {
	s := &session{
		conn:      conn,
		keepAlive: keepAlive,
		logger:    logger,
		events:    make(chan domain.TranscriptEvent, 64),
		audio:     make(chan []byte, 32),
		readDone:  make(chan struct{}),
		done:      make(chan struct{}),
	}

	s.wg.Add(2)
	go s.readLoop()
	go s.writeLoop()
	go func() {
		s.wg.Wait()
		close(s.events)
		close(s.done)
		_ = conn.Close()
	}()
	return s
}

func (s *session) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	s.sendMu.RLock()
	closed := s.sendClosed
	s.sendMu.RUnlock()
	if closed {
		return errors.New("audio stream is already closed")
	}

	copied := append([]byte(nil), chunk...)
	select {
	case s.audio <- copied:
		return nil
	case <-s.done:
		if err := s.waitErr(); err != nil {
			return err
		}
		return errors.New("session closed")
	}
}

// CloseSend stops accepting audio; the writer then asks Deepgram to flush.
func (s *session) CloseSend() error {
	s.closeSendOnce.Do(func() {
		s.sendMu.Lock()
		s.sendClosed = true
		close(s.audio)
		s.sendMu.Unlock()
	})
	return nil
}

func (s *session) Events() <-chan domain.TranscriptEvent {
	return s.events
}

func (s *session) Wait() error {
	<-s.done
	return s.waitErr()
}

func (s *session) Close() error {
	s.closeOnce.Do(func() {
		_ = s.CloseSend()
		_ = s.conn.Close()
	})
	<-s.done
	return s.waitErr()
}

func (s *session) waitErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *session) setErr(err error) {
	if err == nil {
		return
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived:
			return
		}
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *session) writeLoop() {
	defer s.wg.Done()

	var keepAlive <-chan time.Time
	if s.keepAlive > 0 {
		ticker := time.NewTicker(s.keepAlive)
		defer ticker.Stop()
		keepAlive = ticker.C
	}

	for {
		select {
		case chunk, ok := <-s.audio:
			if !ok {
				if err := s.conn.WriteMessage(websocket.TextMessage, closeStreamFrame); err != nil {
					s.setErr(fmt.Errorf("failed to close stream: %w", err))
				}
				return
			}
			if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
				s.writeFailed(fmt.Errorf("failed to send audio: %w", err))
				return
			}
		case <-keepAlive:
			if err := s.conn.WriteMessage(websocket.TextMessage, keepAliveFrame); err != nil {
				s.writeFailed(fmt.Errorf("failed to send keepalive: %w", err))
				return
			}
		case <-s.readDone:
			return
		}
	}
}

// writeFailed records err unless the reader already ended the session, then
// closes the connection so a blocked reader returns.
func (s *session) writeFailed(err error) {
	select {
	case <-s.readDone:
	default:
		s.setErr(err)
	}
	_ = s.conn.Close()
}

func (s *session) readLoop() {
	defer s.wg.Done()
	defer close(s.readDone)

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.setErr(fmt.Errorf("failed to read provider event: %w", err))
			return
		}

		var msg liveMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			continue
		}

		switch strings.ToLower(msg.Type) {
		case "error":
			s.setErr(errors.New(msg.errorText()))
			return
		case "metadata":
			s.logger.Debug().Str("request_id", msg.RequestID).Msg("deepgram metadata")
		case "utteranceend", "speechstarted":
		default:
			if event, ok := msg.event(); ok {
				s.emit(event)
			}
		}
	}
}

// emit drops events when the consumer is not keeping up.
func (s *session) emit(event domain.TranscriptEvent) {
	select {
	case s.events <- event:
	default:
		s.logger.Warn().Str("kind", string(event.Kind)).Msg("transcript event dropped")
	}
}
