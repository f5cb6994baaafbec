// Package chatsession implements a bounded, in-memory message window: a
// mutex-guarded slice of gateway.Message capped at MaxMessages, trimming
// the oldest entries once the cap is exceeded. The Broker and Solver build
// their own message lists and do not use it.
package chatsession

import (
	"sync"
	"time"

	"github.com/kadirpekel/agentcore/pkg/corerrors"
	"github.com/kadirpekel/agentcore/pkg/gateway"
)

// MinMaxMessages and MaxMaxMessages bound the valid MaxMessages range.
const (
	MinMaxMessages     = 1
	MaxMaxMessages     = 10000
	DefaultMaxMessages = 1000
)

// Stats summarizes a History's current contents.
type Stats struct {
	SessionID    string
	MessageCount int
	MaxMessages  int
	RoleCounts   map[string]int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// History is a bounded, in-memory working buffer of conversation messages
// for one session. It is not a persistent store: its contents are lost
// when the process holding it exits.
type History struct {
	mu          sync.RWMutex
	sessionID   string
	messages    []gateway.Message
	maxMessages int
	createdAt   time.Time
	updatedAt   time.Time
}

// New builds a History for sessionID with the default MaxMessages (1000).
func New(sessionID string) *History {
	h, _ := NewWithMax(sessionID, DefaultMaxMessages)
	return h
}

// NewWithMax builds a History with an explicit MaxMessages, which must lie
// in [MinMaxMessages, MaxMaxMessages].
func NewWithMax(sessionID string, maxMessages int) (*History, error) {
	if maxMessages < MinMaxMessages || maxMessages > MaxMaxMessages {
		return nil, &corerrors.ConfigError{
			Field:   "max_messages",
			Message: "must be between 1 and 10000",
		}
	}
	now := time.Now()
	return &History{
		sessionID:   sessionID,
		messages:    make([]gateway.Message, 0),
		maxMessages: maxMessages,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// Append adds msg to the window, trimming the oldest message(s) if the
// window exceeds MaxMessages.
func (h *History) Append(msg gateway.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.messages = append(h.messages, msg)
	if len(h.messages) > h.maxMessages {
		h.messages = h.messages[len(h.messages)-h.maxMessages:]
	}
	h.updatedAt = time.Now()
}

// Recent returns the last n messages in order, oldest first. n <= 0 or an
// empty History returns an empty slice.
func (h *History) Recent(n int) []gateway.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n <= 0 || len(h.messages) == 0 {
		return []gateway.Message{}
	}
	start := len(h.messages) - n
	if start < 0 {
		start = 0
	}
	out := make([]gateway.Message, len(h.messages)-start)
	copy(out, h.messages[start:])
	return out
}

// All returns every message currently held.
func (h *History) All() []gateway.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]gateway.Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// SetMaxMessages changes the window size, trimming immediately if the new
// cap is smaller than the current message count.
func (h *History) SetMaxMessages(maxMessages int) error {
	if maxMessages < MinMaxMessages || maxMessages > MaxMaxMessages {
		return &corerrors.ConfigError{
			Field:   "max_messages",
			Message: "must be between 1 and 10000",
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.maxMessages = maxMessages
	if len(h.messages) > h.maxMessages {
		h.messages = h.messages[len(h.messages)-h.maxMessages:]
	}
	h.updatedAt = time.Now()
	return nil
}

// Clear empties the window.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.messages = make([]gateway.Message, 0)
	h.updatedAt = time.Now()
}

// Stats reports the window's current size and per-role message counts.
func (h *History) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	roleCounts := make(map[string]int)
	for _, msg := range h.messages {
		roleCounts[msg.Role]++
	}

	return Stats{
		SessionID:    h.sessionID,
		MessageCount: len(h.messages),
		MaxMessages:  h.maxMessages,
		RoleCounts:   roleCounts,
		CreatedAt:    h.createdAt,
		UpdatedAt:    h.updatedAt,
	}
}
