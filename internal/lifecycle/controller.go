// Package lifecycle orchestrates delegated-key authorization: payload
// construction, on-chain submission, asynchronous confirmation against the
// indexer, and local persistence of the confirmed key.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/kiwinews/delegation-api/internal/chain"
	"github.com/kiwinews/delegation-api/internal/codec"
	"github.com/kiwinews/delegation-api/internal/eligibility"
	"github.com/kiwinews/delegation-api/internal/keys"
	"github.com/kiwinews/delegation-api/internal/keystore"
	"github.com/kiwinews/delegation-api/internal/logger"
)

// State is the controller's position in the authorization lifecycle.
type State int

const (
	StateIdle State = iota
	StateKeyGenerated
	StatePayloadBuilt
	StateNeedsChainSwitch
	StateSubmitted
	StateAwaitingConfirmation
	StateConfirmed
	StateRevoked
	StateStalled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateKeyGenerated:
		return "key_generated"
	case StatePayloadBuilt:
		return "payload_built"
	case StateNeedsChainSwitch:
		return "needs_chain_switch"
	case StateSubmitted:
		return "submitted"
	case StateAwaitingConfirmation:
		return "awaiting_confirmation"
	case StateConfirmed:
		return "confirmed"
	case StateRevoked:
		return "revoked"
	case StateStalled:
		return "stalled"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// ErrConfirmationStalled is returned through the completion callback path
// when the indexer has not reported the delegation within the configured
// bound. Retry resumes polling.
var ErrConfirmationStalled = errors.New("delegation confirmation stalled")

// ChainWriter submits authorization payloads on chain.
type ChainWriter interface {
	VerifyChain(ctx context.Context) error
	SubmitAuthorization(ctx context.Context, payload codec.Payload) (common.Hash, error)
}

// DelegationReader reads current delegation state from the indexer.
type DelegationReader interface {
	Delegations(ctx context.Context) (eligibility.DelegationMap, error)
}

// KeyStore persists confirmed keys and in-flight pending records.
type KeyStore interface {
	Put(owner common.Address, key *keys.DelegatedKey) error
	Delete(owner common.Address) error
	PutPending(p keystore.Pending) error
	Pending(owner common.Address) (*keystore.Pending, error)
	DeletePending(owner common.Address) error
}

// Config tunes confirmation polling. A zero ConfirmationBound polls
// indefinitely.
type Config struct {
	PollInterval      time.Duration
	ConfirmationBound time.Duration
}

// DefaultConfig matches the observed production cadence.
func DefaultConfig() Config {
	return Config{
		PollInterval:      5 * time.Second,
		ConfirmationBound: 15 * time.Minute,
	}
}

// Controller drives the authorization lifecycle for a single owner.
// Exactly one controller must be active per owner address; the memoized
// key generator guards re-entrant Connect calls so a second invocation
// never mints a fresh key while a submission is in flight.
type Controller struct {
	owner     common.Address
	generator *keys.Generator
	codec     codec.Codec
	chain     ChainWriter
	reader    DelegationReader
	store     KeyStore
	cfg       Config
	logger    *zap.Logger

	// onConfirmed fires once when the delegation is confirmed and the key
	// is persisted.
	onConfirmed func(*keystore.Account)

	mu       sync.Mutex
	state    State
	delegate common.Address
	key      *keys.DelegatedKey
	txHash   common.Hash
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewController builds an idle controller for owner. onConfirmed may be nil.
func NewController(
	owner common.Address,
	cdc codec.Codec,
	writer ChainWriter,
	reader DelegationReader,
	store KeyStore,
	cfg Config,
	onConfirmed func(*keystore.Account),
) *Controller {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	return &Controller{
		owner:       owner,
		generator:   keys.NewGenerator(),
		codec:       cdc,
		chain:       writer,
		reader:      reader,
		store:       store,
		cfg:         cfg,
		logger:      logger.Log,
		onConfirmed: onConfirmed,
		state:       StateIdle,
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Delegate returns the session's delegate address, zero before key
// generation.
func (c *Controller) Delegate() common.Address {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delegate
}

// Connect runs the authorization flow for the owner: lazy key generation,
// payload build, chain check, submission, and confirmation polling. A
// successful return means the submission is awaiting confirmation (or was
// already confirmed); polling continues in the background until
// confirmation, the bound elapses, or Teardown.
func (c *Controller) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateSubmitted, StateAwaitingConfirmation:
		c.mu.Unlock()
		return nil
	case StateConfirmed:
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	key, err := c.generator.Key()
	if err != nil {
		c.setState(StateFailed)
		return err
	}
	c.mu.Lock()
	c.key = key
	c.delegate = key.Address
	c.state = StateKeyGenerated
	c.mu.Unlock()

	payload, err := c.codec.Encode(c.owner, key, true)
	if err != nil {
		c.setState(StateFailed)
		return fmt.Errorf("failed to build authorization payload: %w", err)
	}
	c.setState(StatePayloadBuilt)

	if err := c.chain.VerifyChain(ctx); err != nil {
		if errors.Is(err, chain.ErrChainMismatch) {
			c.setState(StateNeedsChainSwitch)
			return err
		}
		c.setState(StateFailed)
		return err
	}

	txHash, err := c.chain.SubmitAuthorization(ctx, payload)
	if err != nil {
		c.setState(StateFailed)
		return err
	}
	c.mu.Lock()
	c.txHash = txHash
	c.state = StateSubmitted
	c.mu.Unlock()

	// Persist the in-flight submission so a restart resumes polling
	// instead of orphaning it on chain.
	if err := c.store.PutPending(keystore.Pending{
		Owner:  c.owner,
		Key:    key.Hex(),
		TxHash: txHash,
	}); err != nil {
		c.logger.Warn("Failed to persist pending authorization",
			zap.String("owner", c.owner.Hex()),
			zap.Error(err),
		)
	}

	c.startPolling()
	return nil
}

// Resume picks up a pending submission persisted by an earlier session and
// restarts confirmation polling. It reports whether anything was resumed.
func (c *Controller) Resume(ctx context.Context) (bool, error) {
	pending, err := c.store.Pending(c.owner)
	if err != nil {
		return false, err
	}
	if pending == nil {
		return false, nil
	}

	key, err := keys.FromHex(pending.Key)
	if err != nil {
		// The record is unusable; clear it so the next connect starts
		// over cleanly.
		_ = c.store.DeletePending(c.owner)
		return false, fmt.Errorf("corrupt pending record for %s: %w", c.owner.Hex(), err)
	}

	c.mu.Lock()
	c.key = key
	c.delegate = key.Address
	c.txHash = pending.TxHash
	c.state = StateSubmitted
	c.mu.Unlock()

	c.logger.Info("Resuming pending authorization",
		zap.String("owner", c.owner.Hex()),
		zap.String("delegate", key.Address.Hex()),
		zap.String("tx_hash", pending.TxHash.Hex()),
	)
	c.startPolling()
	return true, nil
}

// Retry restarts confirmation polling from Stalled, or re-runs the connect
// flow after a chain switch or failure.
func (c *Controller) Retry(ctx context.Context) error {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	switch state {
	case StateStalled:
		c.startPolling()
		return nil
	case StateNeedsChainSwitch, StateFailed:
		c.mu.Lock()
		c.state = StateIdle
		c.mu.Unlock()
		return c.Connect(ctx)
	}
	return fmt.Errorf("nothing to retry from state %s", state)
}

// Revoke submits an authorize=false payload for the session's delegate and
// transitions to Revoked. Confirmation polling stops; the locally stored
// key remains until Disconnect so the owner can still inspect it.
func (c *Controller) Revoke(ctx context.Context) error {
	c.mu.Lock()
	key := c.key
	c.mu.Unlock()
	if key == nil {
		return fmt.Errorf("no delegated key to revoke")
	}

	payload, err := c.codec.Encode(c.owner, key, false)
	if err != nil {
		return fmt.Errorf("failed to build revocation payload: %w", err)
	}
	if err := c.chain.VerifyChain(ctx); err != nil {
		if errors.Is(err, chain.ErrChainMismatch) {
			c.setState(StateNeedsChainSwitch)
		}
		return err
	}
	txHash, err := c.chain.SubmitAuthorization(ctx, payload)
	if err != nil {
		return err
	}

	c.Teardown()
	c.setState(StateRevoked)
	c.logger.Info("Delegation revocation submitted",
		zap.String("owner", c.owner.Hex()),
		zap.String("delegate", key.Address.Hex()),
		zap.String("tx_hash", txHash.Hex()),
	)
	return nil
}

// ObserveDelegations applies an externally observed delegation map to the
// controller. A Confirmed controller whose record flips to
// authorized=false transitions to Revoked; nothing else changes.
func (c *Controller) ObserveDelegations(delegations eligibility.DelegationMap) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateConfirmed {
		return
	}
	record, ok := delegations[c.delegate]
	if ok && record.Owner == c.owner && record.Authorized {
		return
	}
	c.state = StateRevoked
	c.logger.Info("Delegation revoked",
		zap.String("owner", c.owner.Hex()),
		zap.String("delegate", c.delegate.Hex()),
	)
}

// Teardown cancels confirmation polling. Call on disconnect, chain change,
// or component teardown; an orphaned poller would keep hitting the indexer
// forever.
func (c *Controller) Teardown() {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Disconnect tears the controller down and destroys the locally persisted
// key and pending record for the owner.
func (c *Controller) Disconnect() error {
	c.Teardown()
	if err := c.store.DeletePending(c.owner); err != nil {
		return err
	}
	if err := c.store.Delete(c.owner); err != nil {
		return err
	}
	c.mu.Lock()
	c.state = StateIdle
	c.mu.Unlock()
	return nil
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// startPolling launches the confirmation poller, replacing any previous
// one.
func (c *Controller) startPolling() {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		c.Teardown()
		c.mu.Lock()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	c.state = StateAwaitingConfirmation
	done := c.done
	c.mu.Unlock()

	go c.poll(ctx, done)
}

// poll checks the indexer at a fixed interval for the confirmed record. A
// transaction success is never treated as confirmation; only the indexer's
// authorized=true record is.
func (c *Controller) poll(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if c.cfg.ConfirmationBound > 0 {
		timer := time.NewTimer(c.cfg.ConfirmationBound)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			c.setState(StateStalled)
			c.logger.Warn("Delegation confirmation stalled",
				zap.String("owner", c.owner.Hex()),
				zap.String("delegate", c.delegate.Hex()),
				zap.Duration("bound", c.cfg.ConfirmationBound),
			)
			return
		case <-ticker.C:
			if c.checkConfirmation(ctx) {
				return
			}
		}
	}
}

// checkConfirmation does one indexer poll; true means polling should stop.
func (c *Controller) checkConfirmation(ctx context.Context) bool {
	delegations, err := c.reader.Delegations(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		c.logger.Warn("Delegation poll failed", zap.Error(err))
		return false
	}

	record, ok := delegations[c.delegate]
	if !ok || record.Owner != c.owner || !record.Authorized {
		return false
	}

	// Confirmed: only now does the key become usable.
	if err := c.store.Put(c.owner, c.key); err != nil {
		c.logger.Error("Failed to persist confirmed key",
			zap.String("owner", c.owner.Hex()),
			zap.Error(err),
		)
		return false
	}
	if err := c.store.DeletePending(c.owner); err != nil {
		c.logger.Warn("Failed to clear pending record", zap.Error(err))
	}

	c.mu.Lock()
	c.state = StateConfirmed
	key := c.key
	c.mu.Unlock()

	c.logger.Info("Delegation confirmed",
		zap.String("owner", c.owner.Hex()),
		zap.String("delegate", c.delegate.Hex()),
	)

	if c.onConfirmed != nil {
		c.onConfirmed(&keystore.Account{Owner: c.owner, Key: key})
	}
	return true
}
