// Package signer produces and verifies the domain-separated structured
// signatures that authorize protected actions (votes, submissions,
// comments, reactions). A signature by a delegated key is
// indistinguishable from one by the custody wallet at verification time;
// the verifier always re-resolves eligibility against current delegation
// and allowlist state instead of trusting the client.
package signer

import (
	"crypto/ecdsa"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/pkg/errors"

	"github.com/kiwinews/delegation-api/internal/eligibility"
)

// Action types accepted on the wire.
const (
	TypeAmplify    = "amplify"
	TypeSubmission = "submission"
	TypeComment    = "comment"
	TypeReaction   = "reaction"
)

// ErrEligibilityDenied is returned when a recovered signer resolves to no
// allow-listed owner. The caller must block the action; there is nothing to
// retry.
var ErrEligibilityDenied = errors.New("signer is not eligible to act for any allow-listed owner")

var domain = apitypes.TypedDataDomain{
	Name:    "kiwinews",
	Version: "1.0.0",
	Salt:    "0xfe7a9d68e99b6942bb3a36178b251da8bd061c20ed1e795207ae97183b590e5b",
}

var types = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "salt", Type: "bytes32"},
	},
	"Message": {
		{Name: "title", Type: "string"},
		{Name: "href", Type: "string"},
		{Name: "type", Type: "string"},
		{Name: "timestamp", Type: "uint256"},
	},
}

// Message is the canonical structured form of a protected action.
type Message struct {
	Title     string `json:"title"`
	Href      string `json:"href"`
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// New builds a message of the given type stamped with the current time.
func New(title, href, actionType string) Message {
	return Message{
		Title:     title,
		Href:      href,
		Type:      actionType,
		Timestamp: time.Now().Unix(),
	}
}

// ValidType reports whether t is one of the accepted action types.
func ValidType(t string) bool {
	switch t {
	case TypeAmplify, TypeSubmission, TypeComment, TypeReaction:
		return true
	}
	return false
}

func typedData(msg Message) apitypes.TypedData {
	return apitypes.TypedData{
		Types:       types,
		PrimaryType: "Message",
		Domain:      domain,
		Message: apitypes.TypedDataMessage{
			"title":     msg.Title,
			"href":      msg.Href,
			"type":      msg.Type,
			"timestamp": math.NewHexOrDecimal256(msg.Timestamp),
		},
	}
}

// Digest computes the EIP-712 hash the signature covers.
func Digest(msg Message) ([]byte, error) {
	hash, _, err := apitypes.TypedDataAndHash(typedData(msg))
	if err != nil {
		return nil, fmt.Errorf("failed to hash message: %w", err)
	}
	return hash, nil
}

// Sign signs the message with priv and returns the 65-byte signature with
// the Ethereum recovery id convention (v in {27, 28}).
func Sign(priv *ecdsa.PrivateKey, msg Message) ([]byte, error) {
	if priv == nil {
		return nil, fmt.Errorf("signing key is unavailable")
	}
	digest, err := Digest(msg)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(digest, priv)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign message")
	}
	sig[64] += 27
	return sig, nil
}

// Recover returns the address that produced sig over msg.
func Recover(msg Message, sig []byte) (common.Address, error) {
	if len(sig) != 65 {
		return common.Address{}, fmt.Errorf("invalid signature length %d", len(sig))
	}
	digest, err := Digest(msg)
	if err != nil {
		return common.Address{}, err
	}
	normalized := make([]byte, 65)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	pub, err := crypto.SigToPub(digest, normalized)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "failed to recover signer")
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Verify recovers the signer of msg and resolves it against the current
// allowlist and delegation state, returning the owner identity the action
// is performed as. ErrEligibilityDenied is returned when the signer has no
// standing; the delegation state passed in must be live, not cached.
func Verify(msg Message, sig []byte, allowlist []common.Address, delegations eligibility.DelegationMap) (common.Address, error) {
	signerAddr, err := Recover(msg, sig)
	if err != nil {
		return common.Address{}, err
	}
	owner, ok := eligibility.Resolve(allowlist, delegations, signerAddr)
	if !ok {
		return common.Address{}, ErrEligibilityDenied
	}
	return owner, nil
}
