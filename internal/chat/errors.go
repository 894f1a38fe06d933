package chat

import (
	"context"
	"errors"
)

const (
	MessageRateLimited = "I'm getting too many requests right now. Give me a moment!"
	MessageCreditsLow  = "AI credits are running low. Please add more credits."
	MessageGeneric     = "Something went wrong. Please try again."
	MessageNoResponse  = "No response received."
	MessageConnection  = "Connection error. Please check your internet and try again."
	MessageEmptyReply  = "I didn't catch that. Could you try again?"
	MessageCancelled   = "Okay, never mind."
)

// Error is a chat failure carrying a message fit to show or speak to the user.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// UserMessage returns the user-facing text for any error from this package.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var chatErr *Error
	if errors.As(err, &chatErr) {
		return chatErr.Message
	}
	if errors.Is(err, context.Canceled) {
		return MessageCancelled
	}
	return MessageGeneric
}
