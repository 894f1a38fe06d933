package domain

import "time"

// Timer is a snapshot of one countdown. Only the timer manager mutates timers.
type Timer struct {
	ID         string    `json:"id"`
	Label      string    `json:"label"`
	Duration   int       `json:"duration"`
	Remaining  int       `json:"remaining"`
	IsComplete bool      `json:"isComplete"`
	CreatedAt  time.Time `json:"createdAt"`
}
