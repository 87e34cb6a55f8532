// Package keystore persists delegated private keys on the user's device,
// scoped by the owner address they are bound to. A stored key belongs to
// exactly one owner and is never reused across owners.
package keystore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kiwinews/delegation-api/internal/keys"
)

const (
	keyFileSuffix     = ".key.json"
	pendingFileSuffix = ".pending.json"
)

// Account is a stored delegated key together with the owner identity it
// signs for.
type Account struct {
	Owner common.Address
	Key   *keys.DelegatedKey
}

// Pending records an authorization that was submitted on chain but not yet
// confirmed by the indexer. Persisting it lets a restart resume polling
// instead of orphaning the submission.
type Pending struct {
	Owner  common.Address `json:"owner"`
	Key    string         `json:"private_key"`
	TxHash common.Hash    `json:"tx_hash"`
}

type keyFile struct {
	Owner      string `json:"owner"`
	PrivateKey string `json:"private_key"`
}

// Store is a directory-backed key store. Access within one process is
// serialized by an internal mutex; concurrent processes sharing the same
// directory get last-writer-wins per owner, with atomic file replacement so
// a losing writer never leaves a torn file behind.
type Store struct {
	mu  sync.Mutex
	dir string
}

// New opens (creating if needed) a key store rooted at dir.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create keystore directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) keyPath(owner common.Address) string {
	return filepath.Join(s.dir, strings.ToLower(owner.Hex())+keyFileSuffix)
}

func (s *Store) pendingPath(owner common.Address) string {
	return filepath.Join(s.dir, strings.ToLower(owner.Hex())+pendingFileSuffix)
}

// writeFileAtomic writes via a temp file and rename so readers never
// observe a partially written record.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Chmod(name, 0o600); err != nil {
		os.Remove(name)
		return err
	}
	return os.Rename(name, path)
}

// Put stores the delegated key for owner, replacing any previous key for
// the same owner. Single active key per owner: re-storing overwrites, it
// does not version.
func (s *Store) Put(owner common.Address, key *keys.DelegatedKey) error {
	if key == nil || key.PrivateKey == nil {
		return fmt.Errorf("delegated key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	record := keyFile{Owner: owner.Hex(), PrivateKey: key.Hex()}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode key record: %w", err)
	}
	if err := writeFileAtomic(s.keyPath(owner), data); err != nil {
		return fmt.Errorf("failed to write key for %s: %w", owner.Hex(), err)
	}
	return nil
}

// Account retrieves a stored account. Retrieval precedence:
//
//   - exactly one key stored and no filter: that key is returned;
//   - multiple keys stored: a filter is required and selects the match;
//   - a filter that matches no stored key returns nil, even when exactly
//     one key exists.
//
// The last rule is a deliberate contract: a mismatched filter means the
// caller asked for a specific identity and silently falling back to an
// unrelated key would sign as the wrong owner.
func (s *Store) Account(filter *common.Address) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	owners, err := s.listOwners()
	if err != nil {
		return nil, err
	}

	if filter != nil {
		for _, owner := range owners {
			if owner == *filter {
				return s.readAccount(owner)
			}
		}
		return nil, nil
	}

	if len(owners) == 1 {
		return s.readAccount(owners[0])
	}
	return nil, nil
}

// Delete removes the stored key for owner. Deleting an absent key is not
// an error.
func (s *Store) Delete(owner common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.keyPath(owner)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete key for %s: %w", owner.Hex(), err)
	}
	return nil
}

// PutPending persists an in-flight authorization for owner.
func (s *Store) PutPending(p Pending) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode pending record: %w", err)
	}
	if err := writeFileAtomic(s.pendingPath(p.Owner), data); err != nil {
		return fmt.Errorf("failed to write pending record for %s: %w", p.Owner.Hex(), err)
	}
	return nil
}

// Pending returns the in-flight authorization for owner, or nil when there
// is none.
func (s *Store) Pending(owner common.Address) (*Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.pendingPath(owner))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read pending record for %s: %w", owner.Hex(), err)
	}
	var p Pending
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode pending record for %s: %w", owner.Hex(), err)
	}
	return &p, nil
}

// DeletePending clears the in-flight record for owner.
func (s *Store) DeletePending(owner common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.pendingPath(owner)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete pending record for %s: %w", owner.Hex(), err)
	}
	return nil
}

func (s *Store) listOwners() ([]common.Address, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list keystore: %w", err)
	}
	var owners []common.Address
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, keyFileSuffix) {
			continue
		}
		hex := strings.TrimSuffix(name, keyFileSuffix)
		if !common.IsHexAddress(hex) {
			continue
		}
		owners = append(owners, common.HexToAddress(hex))
	}
	return owners, nil
}

func (s *Store) readAccount(owner common.Address) (*Account, error) {
	data, err := os.ReadFile(s.keyPath(owner))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read key for %s: %w", owner.Hex(), err)
	}
	var record keyFile
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode key record for %s: %w", owner.Hex(), err)
	}
	key, err := keys.FromHex(record.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("corrupt key record for %s: %w", owner.Hex(), err)
	}
	return &Account{Owner: owner, Key: key}, nil
}
