package store

import (
	"context"

	"PMentor/module/mentor/model"
)

// MessageStore persists chat messages. Implementations report a missing
// record with an errs.ErrRecordNotFound coded error.
type MessageStore interface {
	Save(ctx context.Context, m *model.Message) (*model.Message, error)
	// MarkRead flips is_read for a message addressed to receiverID. A message
	// that is already read is returned unchanged.
	MarkRead(ctx context.Context, messageID, receiverID string) (*model.Message, error)
	// Conversation lists messages exchanged between a and b, oldest first.
	Conversation(ctx context.Context, a, b string) ([]*model.Message, error)
}

type ConnectionStore interface {
	// Save inserts or replaces by ID. Inserting a second (requester, target,
	// type) triple fails with errs.ErrDuplicateKey.
	Save(ctx context.Context, c *model.Connection) (*model.Connection, error)
	Get(ctx context.Context, id string) (*model.Connection, error)
	Exists(ctx context.Context, requesterID, targetID string, t model.ConnectionType) (bool, error)
	ListByTarget(ctx context.Context, targetID string, status model.ConnectionStatus) ([]*model.Connection, error)
	// ListAccepted returns accepted connections where userID is either side.
	ListAccepted(ctx context.Context, userID string) ([]*model.Connection, error)
}

// Directory resolves users and their display names.
type Directory interface {
	Lookup(ctx context.Context, userID string) (*model.Profile, error)
	// DisplayName returns "" and a not-found error when the user or profile is absent.
	DisplayName(ctx context.Context, userID string) (string, error)
}
