// Package backup escrows the delegated private key into platform
// credential storage via the WebAuthn large-blob extension, so a user can
// recover the key on another device through the platform's own encrypted
// sync. The key never leaves the device outside platform-credential
// custody and is never sent to any server by this package.
package backup

import (
	"bytes"
	"context"
	"crypto/sha256"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/kiwinews/delegation-api/internal/eligibility"
	"github.com/kiwinews/delegation-api/internal/keys"
	"github.com/kiwinews/delegation-api/internal/keystore"
	"github.com/kiwinews/delegation-api/internal/logger"
)

var (
	// ErrUnsupported means the platform fails the capability gate. The
	// feature must be hidden entirely, not rendered as an error.
	ErrUnsupported = errors.New("platform does not support key backup")

	// ErrBlobWriteDeclined means the ceremony completed but the platform
	// reported written=false. Common causes are a third-party password
	// manager intercepting the credential or an OS/browser combination
	// without large-blob support; retrying without changing those will not
	// help, so this must not be framed as transient.
	ErrBlobWriteDeclined = errors.New("platform declined the key blob write")

	// ErrLargeBlobUnsupported means the create ceremony produced a
	// credential without a blob store, so there is nothing to escrow into.
	ErrLargeBlobUnsupported = errors.New("created credential does not support large blobs")

	// ErrCeremonyOrder means StoreKey was called without a credential from
	// a completed CreateCredential step.
	ErrCeremonyOrder = errors.New("no created credential to store against")

	// ErrKeyNotEligible means a restored key does not resolve to any
	// allow-listed owner under current delegation state.
	ErrKeyNotEligible = errors.New("restored key is not eligible for any allow-listed owner")

	// ErrEmptyBlob means the read ceremony returned no key material.
	ErrEmptyBlob = errors.New("credential holds no key blob")
)

// Capability is the platform feature probe. All four flags are required;
// anything less hides the feature (fail closed, never degraded).
type Capability struct {
	PlatformAuthenticator bool
	UserVerification      bool
	ConditionalMediation  bool
	LargeBlob             bool
}

// Supported reports whether the backup feature may be offered at all.
func (c Capability) Supported() bool {
	return c.PlatformAuthenticator && c.UserVerification && c.ConditionalMediation && c.LargeBlob
}

// CreateResult is the outcome of a create-credential ceremony.
type CreateResult struct {
	CredentialID       []byte
	LargeBlobSupported bool
}

// AssertionResult is the outcome of a get-assertion ceremony.
type AssertionResult struct {
	// Written is the platform's explicit large-blob write result. Ceremony
	// completion alone never implies the blob was stored.
	Written bool
	Blob    []byte
}

// Authenticator is the platform credential API. Implementations bridge to
// the host's WebAuthn surface; exactly one ceremony may be in flight.
type Authenticator interface {
	Capabilities(ctx context.Context) (Capability, error)
	Create(ctx context.Context, options protocol.PublicKeyCredentialCreationOptions) (*CreateResult, error)
	Assert(ctx context.Context, options protocol.PublicKeyCredentialRequestOptions) (*AssertionResult, error)
}

// KeyStore is the slice of the local key store a restore needs.
type KeyStore interface {
	Put(owner common.Address, key *keys.DelegatedKey) error
}

// Credential identifies a platform credential created for one
// (owner, delegate) pair.
type Credential struct {
	ID       []byte
	Owner    common.Address
	Delegate common.Address
}

// Manager runs the two-step escrow (create, then store) and the restore
// path. Ceremonies are serialized; create and store are strictly
// sequential, never concurrent.
type Manager struct {
	authenticator Authenticator
	rpID          string
	rpName        string
	logger        *zap.Logger

	mu      sync.Mutex
	pending *Credential

	capOnce    sync.Once
	capability Capability
	capErr     error
}

// NewManager builds a backup manager bound to the application's relying
// party identity.
func NewManager(authenticator Authenticator, rpID, rpName string) *Manager {
	return &Manager{
		authenticator: authenticator,
		rpID:          rpID,
		rpName:        rpName,
		logger:        logger.Log,
	}
}

// Available reports whether the backup feature may be shown. The platform
// probe runs once per session and is cached; call sites must not re-test
// individual capability flags.
func (m *Manager) Available(ctx context.Context) (bool, error) {
	m.capOnce.Do(func() {
		m.capability, m.capErr = m.authenticator.Capabilities(ctx)
	})
	if m.capErr != nil {
		return false, m.capErr
	}
	return m.capability.Supported(), nil
}

// userHandle derives the credential's user handle from the owner/delegate
// pair. SHA-256 keeps it deterministic (the same pair always maps to the
// same credential) and non-reversible.
func userHandle(owner, delegate common.Address) []byte {
	sum := sha256.Sum256([]byte(owner.Hex() + delegate.Hex()))
	return sum[:]
}

// CreateCredential is step 1/2: create a platform credential for the
// owner/delegate pair with mandatory large-blob support.
func (m *Manager) CreateCredential(ctx context.Context, owner, delegate common.Address) (*Credential, error) {
	if ok, err := m.Available(ctx); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrUnsupported
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	challenge, err := protocol.CreateChallenge()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create challenge")
	}

	options := protocol.PublicKeyCredentialCreationOptions{
		Challenge: challenge,
		RelyingParty: protocol.RelyingPartyEntity{
			CredentialEntity: protocol.CredentialEntity{Name: m.rpName},
			ID:               m.rpID,
		},
		User: protocol.UserEntity{
			CredentialEntity: protocol.CredentialEntity{Name: credentialName(owner)},
			DisplayName:      credentialName(owner),
			ID:               userHandle(owner, delegate),
		},
		Parameters: []protocol.CredentialParameter{
			{Type: protocol.PublicKeyCredentialType, Algorithm: webauthncose.AlgES256},
		},
		AuthenticatorSelection: protocol.AuthenticatorSelection{
			AuthenticatorAttachment: protocol.Platform,
			ResidentKey:             protocol.ResidentKeyRequirementPreferred,
			UserVerification:        protocol.VerificationRequired,
		},
		Extensions: protocol.AuthenticationExtensions{
			// Support is required, not merely requested: a credential
			// without a blob store cannot hold the key.
			"largeBlob": map[string]interface{}{"support": "required"},
		},
	}

	result, err := m.authenticator.Create(ctx, options)
	if err != nil {
		return nil, errors.Wrap(err, "credential creation ceremony failed")
	}
	if !result.LargeBlobSupported {
		return nil, ErrLargeBlobUnsupported
	}

	credential := &Credential{ID: result.CredentialID, Owner: owner, Delegate: delegate}
	m.pending = credential

	m.logger.Info("Backup credential created",
		zap.String("owner", owner.Hex()),
		zap.String("delegate", delegate.Hex()),
	)
	return credential, nil
}

// StoreKey is step 2/2: a second, separate ceremony against the credential
// from CreateCredential, writing the delegated private key into its large
// blob. The platform's written flag is checked; a completed ceremony with
// written=false fails with ErrBlobWriteDeclined. A credential stores
// exactly one key; re-storing overwrites.
func (m *Manager) StoreKey(ctx context.Context, credential *Credential, key *keys.DelegatedKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if credential == nil || m.pending == nil || !bytes.Equal(credential.ID, m.pending.ID) {
		return ErrCeremonyOrder
	}
	if key == nil || key.PrivateKey == nil {
		return errors.New("delegated key is required")
	}

	challenge, err := protocol.CreateChallenge()
	if err != nil {
		return errors.Wrap(err, "failed to create challenge")
	}

	options := protocol.PublicKeyCredentialRequestOptions{
		Challenge:      challenge,
		RelyingPartyID: m.rpID,
		AllowedCredentials: []protocol.CredentialDescriptor{
			{Type: protocol.PublicKeyCredentialType, CredentialID: protocol.URLEncodedBase64(credential.ID)},
		},
		UserVerification: protocol.VerificationDiscouraged,
		Extensions: protocol.AuthenticationExtensions{
			"largeBlob": map[string]interface{}{"write": []byte(key.Hex())},
		},
	}

	result, err := m.authenticator.Assert(ctx, options)
	if err != nil {
		return errors.Wrap(err, "key storage ceremony failed")
	}
	if !result.Written {
		return ErrBlobWriteDeclined
	}

	m.pending = nil
	m.logger.Info("Delegated key escrowed to platform credential",
		zap.String("owner", credential.Owner.Hex()),
	)
	return nil
}

// Restore reads the key blob back, reconstructs the signer, resolves its
// eligibility under current state, and persists it into the local key
// store. Returns the restored account.
func (m *Manager) Restore(ctx context.Context, allowlist []common.Address, delegations eligibility.DelegationMap, store KeyStore) (*keystore.Account, error) {
	if ok, err := m.Available(ctx); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrUnsupported
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	challenge, err := protocol.CreateChallenge()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create challenge")
	}

	options := protocol.PublicKeyCredentialRequestOptions{
		Challenge:        challenge,
		RelyingPartyID:   m.rpID,
		UserVerification: protocol.VerificationDiscouraged,
		Extensions: protocol.AuthenticationExtensions{
			"largeBlob": map[string]interface{}{"read": true},
		},
	}

	result, err := m.authenticator.Assert(ctx, options)
	if err != nil {
		return nil, errors.Wrap(err, "key restore ceremony failed")
	}
	if len(result.Blob) == 0 {
		return nil, ErrEmptyBlob
	}

	key, err := keys.FromHex(string(result.Blob))
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode restored key")
	}

	owner, ok := eligibility.Resolve(allowlist, delegations, key.Address)
	if !ok {
		return nil, ErrKeyNotEligible
	}

	if err := store.Put(owner, key); err != nil {
		return nil, errors.Wrap(err, "failed to persist restored key")
	}

	m.logger.Info("Delegated key restored from platform credential",
		zap.String("owner", owner.Hex()),
		zap.String("delegate", key.Address.Hex()),
	)
	return &keystore.Account{Owner: owner, Key: key}, nil
}

func credentialName(owner common.Address) string {
	hex := owner.Hex()
	return "Kiwi Wallet " + hex[:6] + "..." + hex[len(hex)-4:]
}
