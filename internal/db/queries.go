package db

import (
	"context"
)

const upsertDelegation = `
INSERT INTO delegations (owner, delegate, authorized, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (owner, delegate)
DO UPDATE SET authorized = EXCLUDED.authorized, updated_at = now()
RETURNING owner, delegate, authorized, updated_at
`

// UpsertDelegationParams contains parameters for upserting a delegation.
type UpsertDelegationParams struct {
	Owner      string
	Delegate   string
	Authorized bool
}

// UpsertDelegation records the current authorization state for an
// (owner, delegate) pair. Idempotent: replaying an indexer record is a
// no-op beyond the timestamp.
func (q *Queries) UpsertDelegation(ctx context.Context, arg UpsertDelegationParams) (Delegation, error) {
	row := q.db.QueryRow(ctx, upsertDelegation, arg.Owner, arg.Delegate, arg.Authorized)
	var d Delegation
	err := row.Scan(&d.Owner, &d.Delegate, &d.Authorized, &d.UpdatedAt)
	return d, err
}

const listDelegations = `
SELECT owner, delegate, authorized, updated_at
FROM delegations
ORDER BY updated_at DESC
`

// ListDelegations returns all known delegation records, revoked ones
// included; eligibility resolution needs to see authorized=false.
func (q *Queries) ListDelegations(ctx context.Context) ([]Delegation, error) {
	rows, err := q.db.Query(ctx, listDelegations)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Delegation
	for rows.Next() {
		var d Delegation
		if err := rows.Scan(&d.Owner, &d.Delegate, &d.Authorized, &d.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

const upsertAllowlistEntry = `
INSERT INTO allowlist (address, created_at)
VALUES ($1, now())
ON CONFLICT (address) DO UPDATE SET address = EXCLUDED.address
RETURNING address, created_at
`

// UpsertAllowlistEntry records an owner address with access rights.
func (q *Queries) UpsertAllowlistEntry(ctx context.Context, address string) (AllowlistEntry, error) {
	row := q.db.QueryRow(ctx, upsertAllowlistEntry, address)
	var e AllowlistEntry
	err := row.Scan(&e.Address, &e.CreatedAt)
	return e, err
}

const deleteAllowlistEntry = `
DELETE FROM allowlist WHERE address = $1
`

// DeleteAllowlistEntry removes an address no longer reported by the
// indexer.
func (q *Queries) DeleteAllowlistEntry(ctx context.Context, address string) error {
	_, err := q.db.Exec(ctx, deleteAllowlistEntry, address)
	return err
}

const listAllowlist = `
SELECT address, created_at FROM allowlist ORDER BY created_at
`

// ListAllowlist returns all allow-listed owner addresses.
func (q *Queries) ListAllowlist(ctx context.Context) ([]AllowlistEntry, error) {
	rows, err := q.db.Query(ctx, listAllowlist)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []AllowlistEntry
	for rows.Next() {
		var e AllowlistEntry
		if err := rows.Scan(&e.Address, &e.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

const insertMessage = `
INSERT INTO messages (id, title, href, type, timestamp, signature, signer, identity, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
RETURNING id, title, href, type, timestamp, signature, signer, identity, created_at
`

// InsertMessageParams contains parameters for storing an accepted message.
type InsertMessageParams struct {
	Title     string
	Href      string
	Type      string
	Timestamp int64
	Signature string
	Signer    string
	Identity  string
}

// InsertMessage stores a message that passed the authoritative eligibility
// check.
func (q *Queries) InsertMessage(ctx context.Context, arg InsertMessageParams) (Message, error) {
	row := q.db.QueryRow(ctx, insertMessage,
		newUUID(), arg.Title, arg.Href, arg.Type, arg.Timestamp,
		arg.Signature, arg.Signer, arg.Identity,
	)
	var m Message
	err := row.Scan(&m.ID, &m.Title, &m.Href, &m.Type, &m.Timestamp,
		&m.Signature, &m.Signer, &m.Identity, &m.CreatedAt)
	return m, err
}

const listMessages = `
SELECT id, title, href, type, timestamp, signature, signer, identity, created_at
FROM messages
ORDER BY created_at DESC
LIMIT $1
`

// ListMessages returns the most recent accepted messages.
func (q *Queries) ListMessages(ctx context.Context, limit int32) ([]Message, error) {
	rows, err := q.db.Query(ctx, listMessages, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Title, &m.Href, &m.Type, &m.Timestamp,
			&m.Signature, &m.Signer, &m.Identity, &m.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}
