package db

import (
	"context"
)

// Querier is the query surface handlers and the sync loop depend on;
// mocked in tests.
type Querier interface {
	UpsertDelegation(ctx context.Context, arg UpsertDelegationParams) (Delegation, error)
	ListDelegations(ctx context.Context) ([]Delegation, error)
	UpsertAllowlistEntry(ctx context.Context, address string) (AllowlistEntry, error)
	DeleteAllowlistEntry(ctx context.Context, address string) error
	ListAllowlist(ctx context.Context) ([]AllowlistEntry, error)
	InsertMessage(ctx context.Context, arg InsertMessageParams) (Message, error)
	ListMessages(ctx context.Context, limit int32) ([]Message, error)
}

var _ Querier = (*Queries)(nil)
