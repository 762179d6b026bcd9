package model

import (
	"time"

	"github.com/google/uuid"
)

type TurnID string

// NewTurnID generates a new unique TurnID
func NewTurnID() TurnID {
	return TurnID(uuid.New().String())
}

// Turn is a single prompt/response pair of a conversation
type Turn struct {
	ID        TurnID
	Index     int
	Prompt    string
	Response  string
	CreatedAt time.Time
}

// History is an ordered sequence of turns. It lives in memory for one run.
type History []Turn

// Append returns a new History with one more turn. The receiver is not modified.
func (h History) Append(prompt, response string) History {
	next := make(History, len(h), len(h)+1)
	copy(next, h)

	return append(next, Turn{
		ID:        NewTurnID(),
		Index:     h.nextIndex(),
		Prompt:    prompt,
		Response:  response,
		CreatedAt: time.Now(),
	})
}

// Last returns the most recent n turns. If n <= 0 or n >= len(h), all turns are returned.
func (h History) Last(n int) History {
	if n <= 0 || n >= len(h) {
		return h
	}
	return h[len(h)-n:]
}

// Bytes returns the total size of prompts and responses
func (h History) Bytes() int {
	total := 0
	for _, turn := range h {
		total += turn.Bytes()
	}
	return total
}

// Bytes returns the size of the turn's prompt and response
func (t Turn) Bytes() int {
	return len(t.Prompt) + len(t.Response)
}

// Indexes keep increasing after older turns are summarized away
func (h History) nextIndex() int {
	if len(h) == 0 {
		return 0
	}
	return h[len(h)-1].Index + 1
}
