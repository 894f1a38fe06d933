package usecase

import "buddy/internal/domain"

// conversation keeps the most recent exchanges sent as chat context.
// Callers synchronize access.
type conversation struct {
	maxExchanges int
	messages     []domain.ChatMessage
}

func newConversation(maxExchanges int) *conversation {
	if maxExchanges <= 0 {
		maxExchanges = 10
	}
	return &conversation{maxExchanges: maxExchanges}
}

func (c *conversation) AddExchange(user, assistant string) {
	c.messages = append(c.messages,
		domain.ChatMessage{Role: domain.ChatRoleUser, Content: user},
		domain.ChatMessage{Role: domain.ChatRoleAssistant, Content: assistant},
	)
	if limit := c.maxExchanges * 2; len(c.messages) > limit {
		c.messages = append([]domain.ChatMessage(nil), c.messages[len(c.messages)-limit:]...)
	}
}

// Request returns the history followed by a new user message.
func (c *conversation) Request(user string) []domain.ChatMessage {
	out := make([]domain.ChatMessage, 0, len(c.messages)+1)
	out = append(out, c.messages...)
	return append(out, domain.ChatMessage{Role: domain.ChatRoleUser, Content: user})
}

func (c *conversation) Len() int {
	return len(c.messages)
}

func (c *conversation) Reset() {
	c.messages = nil
}
