package codec

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/kiwinews/delegation-api/internal/keys"
)

// Payload is the opaque three-word commitment written on chain to link a
// custody account to a delegated key. Its byte layout is owned by this
// package alone; callers must treat it as opaque.
type Payload [3][32]byte

// Hex returns the payload words as 0x-prefixed hex strings, the shape the
// etch contract call and the Delegate event use.
func (p Payload) Hex() [3]string {
	return [3]string{
		hexutil.Encode(p[0][:]),
		hexutil.Encode(p[1][:]),
		hexutil.Encode(p[2][:]),
	}
}

// Record is the decoded view of a payload as the indexer observes it.
type Record struct {
	Delegate   common.Address
	Authorized bool
}

// Codec builds and resolves authorization payloads. Encode is
// deterministic: identical inputs always produce a byte-identical payload,
// which makes resubmission of a pending authorization safe.
type Codec interface {
	Encode(owner common.Address, delegate *keys.DelegatedKey, authorize bool) (Payload, error)
	Decode(owner common.Address, payload Payload) (*Record, error)
}

// authorizationDigest binds (owner, authorize) under a fixed domain prefix.
// The delegate key signs this digest, which is the proof that whoever
// produced the payload controls the delegate address.
func authorizationDigest(owner common.Address, authorize bool) []byte {
	flag := byte(0x00)
	if authorize {
		flag = 0x01
	}
	return crypto.Keccak256(
		[]byte("kiwinews:delegation:v2"),
		owner.Bytes(),
		[]byte{flag},
	)
}

// delegatorCodec is the production payload encoding:
//
//	word 0: [flag][v][10 zero bytes][20-byte delegate address]
//	word 1: signature R
//	word 2: signature S
//
// where (R, S, v) is the delegate key's signature over the authorization
// digest. The transaction sender supplies the owner identity, so it is not
// carried in the payload itself.
type delegatorCodec struct{}

// NewCodec returns the default authorization codec.
func NewCodec() Codec {
	return delegatorCodec{}
}

func (delegatorCodec) Encode(owner common.Address, delegate *keys.DelegatedKey, authorize bool) (Payload, error) {
	var p Payload
	if delegate == nil || delegate.PrivateKey == nil {
		return p, fmt.Errorf("delegate key is required")
	}

	digest := authorizationDigest(owner, authorize)
	sig, err := crypto.Sign(digest, delegate.PrivateKey)
	if err != nil {
		return p, fmt.Errorf("failed to sign authorization digest: %w", err)
	}

	if authorize {
		p[0][0] = 0x01
	}
	p[0][1] = sig[64] // recovery id
	copy(p[0][12:], delegate.Address.Bytes())
	copy(p[1][:], sig[0:32])
	copy(p[2][:], sig[32:64])
	return p, nil
}

func (delegatorCodec) Decode(owner common.Address, payload Payload) (*Record, error) {
	authorized := payload[0][0] == 0x01
	delegate := common.BytesToAddress(payload[0][12:32])

	sig := make([]byte, 65)
	copy(sig[0:32], payload[1][:])
	copy(sig[32:64], payload[2][:])
	sig[64] = payload[0][1]

	digest := authorizationDigest(owner, authorized)
	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return nil, fmt.Errorf("failed to recover delegate from payload: %w", err)
	}
	recovered := crypto.PubkeyToAddress(*pub)
	if !bytes.Equal(recovered.Bytes(), delegate.Bytes()) {
		return nil, fmt.Errorf("payload signature does not prove control of delegate %s", delegate.Hex())
	}

	return &Record{Delegate: delegate, Authorized: authorized}, nil
}
