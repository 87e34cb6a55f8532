// Package chain writes authorization payloads to the delegation contract.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/kiwinews/delegation-api/internal/codec"
	"github.com/kiwinews/delegation-api/internal/logger"
)

// The delegation contract exposes a single write: etch(bytes32[3]), which
// emits a Delegate event carrying the same payload for the indexer.
const etchABI = `[{"inputs":[{"internalType":"bytes32[3]","name":"data","type":"bytes32[3]"}],"name":"etch","outputs":[],"stateMutability":"nonpayable","type":"function"},{"anonymous":false,"inputs":[{"indexed":false,"internalType":"bytes32[3]","name":"data","type":"bytes32[3]"}],"name":"Delegate","type":"event"}]`

var (
	// ErrChainMismatch means the wallet is connected to a different network
	// than the delegation contract lives on. Prompt a switch; do not submit.
	ErrChainMismatch = errors.New("wallet is on the wrong network")

	// ErrSubmissionRejected means the user declined the wallet signature.
	ErrSubmissionRejected = errors.New("transaction rejected by wallet")

	// ErrInsufficientFunds means the wallet cannot cover gas; surfaced
	// verbatim so the user knows to fund it.
	ErrInsufficientFunds = errors.New("wallet has insufficient funds for gas")
)

// Backend is the subset of an Ethereum client the submitter needs.
// *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
}

// Submitter writes authorization payloads through the custody wallet's
// transactor.
type Submitter struct {
	backend  Backend
	contract *bind.BoundContract
	address  common.Address
	chainID  *big.Int
	opts     *bind.TransactOpts
	logger   *zap.Logger
}

// NewSubmitter builds a submitter for the delegation contract at address on
// the given chain. opts carries the custody wallet's signer.
func NewSubmitter(backend Backend, address common.Address, chainID int64, opts *bind.TransactOpts) (*Submitter, error) {
	parsed, err := abi.JSON(strings.NewReader(etchABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse delegation contract ABI: %w", err)
	}
	return &Submitter{
		backend:  backend,
		contract: bind.NewBoundContract(address, parsed, backend, backend, backend),
		address:  address,
		chainID:  big.NewInt(chainID),
		opts:     opts,
		logger:   logger.Log,
	}, nil
}

// VerifyChain checks that the connected node is on the required network.
// Returns ErrChainMismatch when it is not; the caller should prompt a chain
// switch instead of submitting.
func (s *Submitter) VerifyChain(ctx context.Context) error {
	id, err := s.backend.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to read chain id: %w", err)
	}
	if id.Cmp(s.chainID) != 0 {
		s.logger.Warn("Connected to wrong network",
			zap.String("want_chain_id", s.chainID.String()),
			zap.String("got_chain_id", id.String()),
		)
		return errors.Wrapf(ErrChainMismatch, "connected to chain %s, need %s", id, s.chainID)
	}
	return nil
}

// SubmitAuthorization writes the payload as a single etch transaction and
// returns its hash. The payload is deterministic for its inputs, so
// resubmitting after a failure writes an identical commitment.
func (s *Submitter) SubmitAuthorization(ctx context.Context, payload codec.Payload) (common.Hash, error) {
	opts := *s.opts
	opts.Context = ctx

	tx, err := s.contract.Transact(&opts, "etch", [3][32]byte(payload))
	if err != nil {
		return common.Hash{}, classifySubmitError(err)
	}

	s.logger.Info("Authorization payload submitted",
		zap.String("tx_hash", tx.Hash().Hex()),
		zap.String("contract", s.address.Hex()),
	)
	return tx.Hash(), nil
}

// WaitMined blocks until the submitted transaction is mined and checks its
// status. A successful receipt does not confirm the delegation; only the
// indexer's record does.
func (s *Submitter) WaitMined(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	receipt, err := bind.WaitMinedHash(ctx, s.backend, txHash)
	if err != nil {
		return nil, fmt.Errorf("failed waiting for transaction %s: %w", txHash.Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("transaction %s reverted", txHash.Hex())
	}
	return receipt, nil
}

func classifySubmitError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "insufficient funds"):
		return errors.Wrap(ErrInsufficientFunds, err.Error())
	case strings.Contains(msg, "denied"), strings.Contains(msg, "rejected"), strings.Contains(msg, "cancelled"):
		return errors.Wrap(ErrSubmissionRejected, err.Error())
	}
	return fmt.Errorf("failed to submit authorization: %w", err)
}
