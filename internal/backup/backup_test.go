package backup

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiwinews/delegation-api/internal/eligibility"
	"github.com/kiwinews/delegation-api/internal/keys"
	"github.com/kiwinews/delegation-api/internal/logger"
)

func init() {
	logger.InitLogger("test")
}

var fullCapability = Capability{
	PlatformAuthenticator: true,
	UserVerification:      true,
	ConditionalMediation:  true,
	LargeBlob:             true,
}

// fakeAuthenticator simulates the platform credential API, holding one
// large blob per fake credential.
type fakeAuthenticator struct {
	capability Capability
	capErr     error

	credentialID   []byte
	largeBlob      bool
	declineWrite   bool
	blob           []byte
	createOptions  *protocol.PublicKeyCredentialCreationOptions
	requestOptions *protocol.PublicKeyCredentialRequestOptions
}

func (f *fakeAuthenticator) Capabilities(ctx context.Context) (Capability, error) {
	return f.capability, f.capErr
}

func (f *fakeAuthenticator) Create(ctx context.Context, options protocol.PublicKeyCredentialCreationOptions) (*CreateResult, error) {
	f.createOptions = &options
	return &CreateResult{CredentialID: f.credentialID, LargeBlobSupported: f.largeBlob}, nil
}

func (f *fakeAuthenticator) Assert(ctx context.Context, options protocol.PublicKeyCredentialRequestOptions) (*AssertionResult, error) {
	f.requestOptions = &options

	ext, ok := options.Extensions["largeBlob"].(map[string]interface{})
	if !ok {
		return &AssertionResult{}, nil
	}
	if data, ok := ext["write"].([]byte); ok {
		if f.declineWrite {
			return &AssertionResult{Written: false}, nil
		}
		f.blob = data
		return &AssertionResult{Written: true}, nil
	}
	if _, ok := ext["read"]; ok {
		return &AssertionResult{Blob: f.blob}, nil
	}
	return &AssertionResult{}, nil
}

type mapStore map[common.Address]*keys.DelegatedKey

func (s mapStore) Put(owner common.Address, key *keys.DelegatedKey) error {
	s[owner] = key
	return nil
}

func newTestKey(t *testing.T) *keys.DelegatedKey {
	t.Helper()
	key, err := keys.NewGenerator().Key()
	require.NoError(t, err)
	return key
}

var (
	owner    = common.HexToAddress("0xaaa0000000000000000000000000000000000001")
	delegate = common.HexToAddress("0xbbb0000000000000000000000000000000000002")
)

func newManager(auth *fakeAuthenticator) *Manager {
	return NewManager(auth, "news.kiwistand.com", "Kiwi News")
}

func TestAvailable(t *testing.T) {
	tests := []struct {
		name       string
		capability Capability
		want       bool
	}{
		{"all capabilities present", fullCapability, true},
		{"no platform authenticator", Capability{UserVerification: true, ConditionalMediation: true, LargeBlob: true}, false},
		{"no user verification", Capability{PlatformAuthenticator: true, ConditionalMediation: true, LargeBlob: true}, false},
		{"no conditional mediation", Capability{PlatformAuthenticator: true, UserVerification: true, LargeBlob: true}, false},
		{"no large blob", Capability{PlatformAuthenticator: true, UserVerification: true, ConditionalMediation: true}, false},
		{"nothing supported", Capability{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newManager(&fakeAuthenticator{capability: tt.capability})
			ok, err := m.Available(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestCreateCredential(t *testing.T) {
	t.Run("unsupported platform is rejected outright", func(t *testing.T) {
		m := newManager(&fakeAuthenticator{capability: Capability{}})
		_, err := m.CreateCredential(context.Background(), owner, delegate)
		assert.ErrorIs(t, err, ErrUnsupported)
	})

	t.Run("requires large-blob support on the new credential", func(t *testing.T) {
		auth := &fakeAuthenticator{capability: fullCapability, credentialID: []byte{1}, largeBlob: false}
		m := newManager(auth)
		_, err := m.CreateCredential(context.Background(), owner, delegate)
		assert.ErrorIs(t, err, ErrLargeBlobUnsupported)
		// The write-declined diagnostic is reserved for the store step.
		assert.NotErrorIs(t, err, ErrBlobWriteDeclined)
	})

	t.Run("creates a platform credential with a deterministic user handle", func(t *testing.T) {
		auth := &fakeAuthenticator{capability: fullCapability, credentialID: []byte{1, 2, 3}, largeBlob: true}
		m := newManager(auth)

		credential, err := m.CreateCredential(context.Background(), owner, delegate)
		require.NoError(t, err)
		assert.Equal(t, []byte{1, 2, 3}, credential.ID)
		assert.Equal(t, owner, credential.Owner)
		assert.Equal(t, delegate, credential.Delegate)

		require.NotNil(t, auth.createOptions)
		assert.Equal(t, protocol.Platform, auth.createOptions.AuthenticatorSelection.AuthenticatorAttachment)
		assert.Equal(t, protocol.VerificationRequired, auth.createOptions.AuthenticatorSelection.UserVerification)
		assert.Equal(t, userHandle(owner, delegate), auth.createOptions.User.ID)

		ext, ok := auth.createOptions.Extensions["largeBlob"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "required", ext["support"])
	})
}

func TestStoreKey(t *testing.T) {
	t.Run("requires a prior create ceremony", func(t *testing.T) {
		m := newManager(&fakeAuthenticator{capability: fullCapability})
		err := m.StoreKey(context.Background(), &Credential{ID: []byte{9}}, newTestKey(t))
		assert.ErrorIs(t, err, ErrCeremonyOrder)
	})

	t.Run("fails when the platform declines the blob write", func(t *testing.T) {
		auth := &fakeAuthenticator{capability: fullCapability, credentialID: []byte{1}, largeBlob: true, declineWrite: true}
		m := newManager(auth)

		credential, err := m.CreateCredential(context.Background(), owner, delegate)
		require.NoError(t, err)

		err = m.StoreKey(context.Background(), credential, newTestKey(t))
		assert.ErrorIs(t, err, ErrBlobWriteDeclined)
	})

	t.Run("writes the key blob against the created credential", func(t *testing.T) {
		auth := &fakeAuthenticator{capability: fullCapability, credentialID: []byte{1}, largeBlob: true}
		m := newManager(auth)
		key := newTestKey(t)

		credential, err := m.CreateCredential(context.Background(), owner, delegate)
		require.NoError(t, err)
		require.NoError(t, m.StoreKey(context.Background(), credential, key))

		assert.Equal(t, []byte(key.Hex()), auth.blob)

		// The ceremony is consumed; a second store needs a fresh create.
		err = m.StoreKey(context.Background(), credential, key)
		assert.ErrorIs(t, err, ErrCeremonyOrder)
	})
}

func TestRestore(t *testing.T) {
	escrow := func(t *testing.T, auth *fakeAuthenticator, key *keys.DelegatedKey) *Manager {
		t.Helper()
		m := newManager(auth)
		credential, err := m.CreateCredential(context.Background(), owner, key.Address)
		require.NoError(t, err)
		require.NoError(t, m.StoreKey(context.Background(), credential, key))
		return m
	}

	t.Run("round-trips an eligible key into the local store", func(t *testing.T) {
		auth := &fakeAuthenticator{capability: fullCapability, credentialID: []byte{1}, largeBlob: true}
		key := newTestKey(t)
		m := escrow(t, auth, key)

		allowlist := []common.Address{owner}
		delegations := eligibility.DelegationMap{
			key.Address: {Owner: owner, Authorized: true},
		}
		store := mapStore{}

		account, err := m.Restore(context.Background(), allowlist, delegations, store)
		require.NoError(t, err)
		assert.Equal(t, owner, account.Owner)
		assert.Equal(t, key.Address, account.Key.Address)
		assert.Equal(t, key, store[owner])
	})

	t.Run("rejects a key with no standing", func(t *testing.T) {
		auth := &fakeAuthenticator{capability: fullCapability, credentialID: []byte{1}, largeBlob: true}
		key := newTestKey(t)
		m := escrow(t, auth, key)

		_, err := m.Restore(context.Background(), []common.Address{owner}, nil, mapStore{})
		assert.ErrorIs(t, err, ErrKeyNotEligible)
	})

	t.Run("rejects an empty blob", func(t *testing.T) {
		auth := &fakeAuthenticator{capability: fullCapability, credentialID: []byte{1}, largeBlob: true}
		m := newManager(auth)

		_, err := m.Restore(context.Background(), []common.Address{owner}, nil, mapStore{})
		assert.ErrorIs(t, err, ErrEmptyBlob)
	})
}
