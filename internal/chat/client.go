// Package chat talks to the remote assistant endpoint and decodes its
// event-stream replies.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"buddy/internal/domain"
	"buddy/internal/metrics"
	"buddy/internal/ports"
)

const maxErrorBody = 64 << 10

// Config configures the chat endpoint.
type Config struct {
	URL    string
	APIKey string
	// Timeout bounds the wait for response headers. A reply that is already
	// streaming runs until it ends or the caller's context is done.
	Timeout time.Duration
}

// Client streams replies from the chat endpoint.
type Client struct {
	url    string
	apiKey string
	http   *http.Client
	logger zerolog.Logger
}

type requestBody struct {
	Messages     []domain.ChatMessage `json:"messages"`
	IsSearchMode bool                 `json:"isSearchMode"`
}

type errorBody struct {
	Error string `json:"error"`
}

func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = cfg.Timeout
	return &Client{
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		http:   &http.Client{Transport: transport},
		logger: logger.With().Str("component", "chat").Logger(),
	}
}

// Stream posts the conversation and calls onDelta for each text delta in
// arrival order. It returns nil once the stream terminates, a context error
// when ctx is cancelled, and *Error for every other failure.
func (c *Client) Stream(ctx context.Context, req ports.ChatRequest, onDelta func(text string)) error {
	if c.url == "" {
		return &Error{Message: MessageConnection, Err: errors.New("chat endpoint not configured")}
	}

	payload, err := json.Marshal(requestBody{Messages: req.Messages, IsSearchMode: req.IsSearchMode})
	if err != nil {
		return &Error{Message: MessageGeneric, Err: fmt.Errorf("encode chat request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return &Error{Message: MessageConnection, Err: fmt.Errorf("create chat request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	c.logger.Debug().Int("messages", len(req.Messages)).Bool("search_mode", req.IsSearchMode).Msg("chat request")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		metrics.ChatErrors.WithLabelValues("0").Inc()
		c.logger.Warn().Err(err).Msg("chat transport failure")
		return &Error{Message: MessageConnection, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.statusError(resp)
	}

	deltas := 0
	decoder := NewDecoder(func(text string) {
		deltas++
		metrics.ChatDeltas.Inc()
		if onDelta != nil {
			onDelta(text)
		}
	})

	received := false
	buf := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			received = true
			if decoder.Feed(buf[:n]) {
				break
			}
		}
		if errors.Is(readErr, io.EOF) {
			if !received {
				metrics.ChatErrors.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
				return &Error{Status: resp.StatusCode, Message: MessageNoResponse}
			}
			decoder.Finish()
			break
		}
		if readErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			metrics.ChatErrors.WithLabelValues("0").Inc()
			return &Error{Message: MessageConnection, Err: fmt.Errorf("read chat stream: %w", readErr)}
		}
	}

	elapsed := time.Since(start)
	metrics.ChatLatency.Observe(elapsed.Seconds())
	c.logger.Debug().Int("deltas", deltas).Dur("elapsed", elapsed).Msg("chat stream finished")
	return nil
}

// Complete collects a whole reply. An empty reply becomes MessageEmptyReply.
func (c *Client) Complete(ctx context.Context, req ports.ChatRequest) (string, error) {
	var reply strings.Builder
	if err := c.Stream(ctx, req, func(text string) { reply.WriteString(text) }); err != nil {
		return "", err
	}
	if strings.TrimSpace(reply.String()) == "" {
		return MessageEmptyReply, nil
	}
	return reply.String(), nil
}

func (c *Client) statusError(resp *http.Response) error {
	metrics.ChatErrors.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
	c.logger.Warn().Int("status", resp.StatusCode).Msg("chat endpoint returned error status")

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return &Error{Status: resp.StatusCode, Message: MessageRateLimited}
	case http.StatusPaymentRequired:
		return &Error{Status: resp.StatusCode, Message: MessageCreditsLow}
	}

	message := MessageGeneric
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body errorBody
	if err := json.Unmarshal(data, &body); err == nil && strings.TrimSpace(body.Error) != "" {
		message = body.Error
	}
	return &Error{Status: resp.StatusCode, Message: message, Err: fmt.Errorf("chat endpoint status %d", resp.StatusCode)}
}
