package db

import (
	"time"

	"github.com/google/uuid"
)

// Delegation is one owner→delegate authorization edge mirrored from the
// indexer. Addresses are stored as 0x-prefixed lowercase hex.
type Delegation struct {
	Owner      string    `json:"owner"`
	Delegate   string    `json:"delegate"`
	Authorized bool      `json:"authorized"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// AllowlistEntry is one owner address with access rights.
type AllowlistEntry struct {
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is an accepted signed action.
type Message struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Href      string    `json:"href"`
	Type      string    `json:"type"`
	Timestamp int64     `json:"timestamp"`
	Signature string    `json:"signature"`
	Signer    string    `json:"signer"`
	Identity  string    `json:"identity"`
	CreatedAt time.Time `json:"created_at"`
}
