package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buddy/internal/domain"
	"buddy/internal/ports"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{URL: server.URL, APIKey: "secret", Timeout: 5 * time.Second}, zerolog.Nop())
}

func sampleRequest() ports.ChatRequest {
	return ports.ChatRequest{
		Messages: []domain.ChatMessage{
			{Role: domain.ChatRoleUser, Content: "tell me a joke"},
		},
		IsSearchMode: true,
	}
}

func TestStreamSendsRequestAndEmitsDeltas(t *testing.T) {
	t.Parallel()

	var gotAuth string
	var gotBody requestBody
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		_, _ = w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"Why \"}}]}\n"))
		flusher.Flush()
		_, _ = w.Write([]byte(": keep-alive\n\ndata: {\"choices\":[{\"delta\":{\"content\":\"not?\"}}]}\n"))
		flusher.Flush()
		_, _ = w.Write([]byte("data: [DONE]\n"))
	})

	var deltas []string
	err := client.Stream(context.Background(), sampleRequest(), func(text string) {
		deltas = append(deltas, text)
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret", gotAuth)
	assert.True(t, gotBody.IsSearchMode)
	assert.Equal(t, sampleRequest().Messages, gotBody.Messages)
	assert.Equal(t, []string{"Why ", "not?"}, deltas)
}

func TestStreamMapsStatusCodes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, message: MessageRateLimited},
		{name: "credits", status: http.StatusPaymentRequired, message: MessageCreditsLow},
		{name: "server error with body", status: http.StatusInternalServerError, body: `{"error":"AI gateway error"}`, message: "AI gateway error"},
		{name: "server error without body", status: http.StatusBadGateway, body: "upstream down", message: MessageGeneric},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})

			err := client.Stream(context.Background(), sampleRequest(), nil)
			var chatErr *Error
			require.ErrorAs(t, err, &chatErr)
			assert.Equal(t, tc.status, chatErr.Status)
			assert.Equal(t, tc.message, chatErr.Message)
			assert.Equal(t, tc.message, UserMessage(err))
		})
	}
}

func TestStreamEmptyBody(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	err := client.Stream(context.Background(), sampleRequest(), nil)
	var chatErr *Error
	require.ErrorAs(t, err, &chatErr)
	assert.Equal(t, http.StatusOK, chatErr.Status)
	assert.Equal(t, MessageNoResponse, UserMessage(err))
}

func TestStreamEmptyEventStream(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
	})

	err := client.Stream(context.Background(), sampleRequest(), func(string) {
		t.Error("unexpected delta")
	})
	assert.Equal(t, MessageNoResponse, UserMessage(err))
}

func TestStreamOutlivesHeaderTimeout(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, word := range []string{"one ", "two ", "three"} {
			_, _ = w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"" + word + "\"}}]}\n"))
			flusher.Flush()
			time.Sleep(60 * time.Millisecond)
		}
		_, _ = w.Write([]byte("data: [DONE]\n"))
	}))
	t.Cleanup(server.Close)
	client := NewClient(Config{URL: server.URL, Timeout: 50 * time.Millisecond}, zerolog.Nop())

	reply, err := client.Complete(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "one two three", reply)
}

func TestStreamTransportFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := NewClient(Config{URL: url}, zerolog.Nop())
	err := client.Stream(context.Background(), sampleRequest(), nil)

	var chatErr *Error
	require.ErrorAs(t, err, &chatErr)
	assert.Equal(t, MessageConnection, chatErr.Message)
}

func TestStreamHonoursCancellation(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n"))
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	t.Cleanup(func() { close(release) })

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- client.Stream(ctx, sampleRequest(), func(text string) { got <- text })
	}()

	assert.Equal(t, "partial", <-got)
	cancel()

	select {
	case err := <-errCh:
		assert.True(t, errors.Is(err, context.Canceled))
		assert.Equal(t, MessageCancelled, UserMessage(err))
	case <-time.After(3 * time.Second):
		t.Fatal("stream did not stop after cancellation")
	}
}

func TestCompleteFallsBackOnEmptyReply(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("data: [DONE]\n"))
	})

	reply, err := client.Complete(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, MessageEmptyReply, reply)
}

func TestCompleteJoinsDeltas(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"It's \"}}]}\n" +
			"data: {\"choices\":[{\"delta\":{\"content\":\"sunny.\"}}]}\n"))
	})

	reply, err := client.Complete(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "It's sunny.", reply)
}

func TestStreamWithoutURL(t *testing.T) {
	t.Parallel()

	client := NewClient(Config{}, zerolog.Nop())
	err := client.Stream(context.Background(), sampleRequest(), nil)
	assert.Equal(t, MessageConnection, UserMessage(err))
}
