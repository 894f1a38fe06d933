package usecase

import (
	"testing"

	"buddy/internal/domain"
)

func TestConversationKeepsLatestExchanges(t *testing.T) {
	t.Parallel()

	c := newConversation(2)
	c.AddExchange("one", "1")
	c.AddExchange("two", "2")
	c.AddExchange("three", "3")

	if c.Len() != 4 {
		t.Fatalf("expected 4 messages, got %d", c.Len())
	}

	req := c.Request("four")
	if len(req) != 5 {
		t.Fatalf("expected history plus new message, got %d", len(req))
	}
	if req[0].Content != "two" || req[4] != (domain.ChatMessage{Role: domain.ChatRoleUser, Content: "four"}) {
		t.Fatalf("unexpected request: %+v", req)
	}

	req[0].Content = "mutated"
	if c.Request("x")[0].Content != "two" {
		t.Fatalf("request must not alias history")
	}

	c.Reset()
	if c.Len() != 0 || len(c.Request("hi")) != 1 {
		t.Fatalf("reset did not clear history")
	}
}

func TestConversationDefaultLimit(t *testing.T) {
	t.Parallel()

	c := newConversation(0)
	for i := 0; i < 15; i++ {
		c.AddExchange("q", "a")
	}
	if c.Len() != 20 {
		t.Fatalf("expected default of 10 exchanges, got %d messages", c.Len())
	}
}
