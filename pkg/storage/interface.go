package storage

import "context"

// UserStore defines account persistence: registration and lookup.
type UserStore interface {
	// Create registers a new user. Returns relayerr.ErrForbidden if the id is taken.
	Create(ctx context.Context, user *User) error

	// Get retrieves a user by id.
	Get(ctx context.Context, id string) (*User, error)

	// Exists reports whether a user id is already registered.
	Exists(ctx context.Context, id string) (bool, error)
}

// MailboxStore defines the dual-write delivery primitive and the
// high-water-mark paginated reads each party uses to sync.
type MailboxStore interface {
	// SendMessage atomically appends one row to the recipient's inbound
	// mailbox (keyed under recipientWrappedKey) and one row to the
	// sender's outbound mailbox (keyed under senderWrappedKey), returning
	// both. The two rows share the same ciphertext but carry distinct
	// wrapped keys, since each was wrapped under a different public key.
	SendMessage(ctx context.Context, senderID, recipientID string, content, senderWrappedKey, recipientWrappedKey []byte) (*SentMessage, error)

	// InboundAfter returns inbound rows for userID with id > after, oldest
	// first, up to limit rows.
	InboundAfter(ctx context.Context, userID string, after int64, limit int) ([]*Message, error)

	// OutboundAfter returns outbound rows for userID with id > after, oldest
	// first, up to limit rows.
	OutboundAfter(ctx context.Context, userID string, after int64, limit int) ([]*Message, error)
}

// Store combines all storage interfaces backing the relay server.
type Store interface {
	Users() UserStore
	Mailbox() MailboxStore

	// Close closes the storage connection.
	Close() error

	// Ping checks the storage connection.
	Ping(ctx context.Context) error

	// Stats reports connection pool utilization for health checks.
	Stats() PoolStats
}

// PoolStats is a snapshot of connection pool utilization.
type PoolStats struct {
	AcquiredConns int32
	IdleConns     int32
	MaxConns      int32
}
