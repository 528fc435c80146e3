// Package session keeps the transient per-chat dialogue state.
package session

import (
	"context"
	"time"

	"mindcheck-bot/internal/models"
)

// Store maps a chat id to its current Conversation.
type Store interface {
	// Get returns the conversation or nil when there is none (or it expired).
	Get(ctx context.Context, chatID int64) (*models.Conversation, error)
	// Put replaces the conversation and refreshes its TTL.
	Put(ctx context.Context, chatID int64, conv *models.Conversation) error
	// Delete drops the conversation. Deleting a missing entry is not an error.
	Delete(ctx context.Context, chatID int64) error
}

// Sweeper is implemented by stores that need periodic eviction of abandoned sessions.
type Sweeper interface {
	Sweep(now time.Time) int
}
