package keys

import (
	"crypto/ecdsa"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// DelegatedKey is an ephemeral secp256k1 signing identity that acts on
// behalf of a custody account once its authorization is confirmed on chain.
type DelegatedKey struct {
	PrivateKey *ecdsa.PrivateKey
	Address    common.Address
}

// Hex returns the private key as a 0x-prefixed hex string, the format the
// key store and the backup blob use.
func (k *DelegatedKey) Hex() string {
	return hexutil.Encode(crypto.FromECDSA(k.PrivateKey))
}

// FromHex reconstructs a delegated key from its 0x-prefixed hex encoding.
func FromHex(s string) (*DelegatedKey, error) {
	raw, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}
	priv, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &DelegatedKey{
		PrivateKey: priv,
		Address:    crypto.PubkeyToAddress(priv.PublicKey),
	}, nil
}

// Generator creates at most one delegated key per session. Key generation
// is expensive and a re-render or re-entrant connect must never mint a
// second key mid-flight, so the result is memoized for the generator's
// lifetime.
type Generator struct {
	once sync.Once
	key  *DelegatedKey
	err  error
}

// NewGenerator returns a session-scoped key generator. Callers own its
// lifecycle; there is no package-level key state.
func NewGenerator() *Generator {
	return &Generator{}
}

// Key returns the session's delegated key, generating it on first call.
func (g *Generator) Key() (*DelegatedKey, error) {
	g.once.Do(func() {
		priv, err := crypto.GenerateKey()
		if err != nil {
			g.err = fmt.Errorf("failed to generate delegated key: %w", err)
			return
		}
		g.key = &DelegatedKey{
			PrivateKey: priv,
			Address:    crypto.PubkeyToAddress(priv.PublicKey),
		}
	})
	return g.key, g.err
}
