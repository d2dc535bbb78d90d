// Package message provides the discussion threads attached to handovers and
// snagging reports.
package message

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a message does not exist in the thread.
var ErrNotFound = errors.New("message not found")

// Thread identifies which kind of entity a message belongs to.
type Thread string

const (
	ThreadHandover Thread = "handover"
	ThreadSnagging Thread = "snagging"
)

// Message is one post in a thread. Threads are independent of the parent's status.
type Message struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"threadId"`
	AuthorID  string    `json:"authorId"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Input is the payload for posting or editing a message.
type Input struct {
	Body string `json:"body" validate:"required,max=5000"`
}
