package keys

import (
	"bytes"
	"crypto/ecdsa"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/chainsafe/optimal-wallet/pkg/config"
)

// Keyring holds named signing keys indexed by their Ethereum address
type Keyring struct {
	mu    sync.RWMutex
	keys  map[common.Address]*ecdsa.PrivateKey
	names map[string]common.Address
}

// NewKeyring creates an empty keyring
func NewKeyring() *Keyring {
	return &Keyring{
		keys:  make(map[common.Address]*ecdsa.PrivateKey),
		names: make(map[string]common.Address),
	}
}

// NewKeyringFromConfig loads every configured signer, decrypting encrypted keys with the master key
func NewKeyringFromConfig(cfg *config.KeysConfig) (*Keyring, error) {
	kr := NewKeyring()

	var masterKey []byte
	if cfg.MasterKey != "" {
		mk, err := MasterKeyFromBase64(cfg.MasterKey)
		if err != nil {
			return nil, err
		}
		masterKey = mk
	}

	for _, signer := range cfg.Signers {
		var (
			key *ecdsa.PrivateKey
			err error
		)
		if signer.EncryptedKey != "" {
			if masterKey == nil {
				return nil, fmt.Errorf("signer %q is encrypted but no master key is configured", signer.Name)
			}
			key, err = DecryptPrivateKey(signer.EncryptedKey, masterKey)
		} else {
			key, err = ParsePrivateKey(signer.PrivateKey)
		}
		if err != nil {
			return nil, fmt.Errorf("signer %q: %w", signer.Name, err)
		}
		if _, err := kr.Add(signer.Name, key); err != nil {
			return nil, err
		}
	}

	return kr, nil
}

// Add registers key under name and returns its address
func (k *Keyring) Add(name string, key *ecdsa.PrivateKey) (common.Address, error) {
	if key == nil {
		return common.Address{}, fmt.Errorf("nil key for signer %q", name)
	}
	addr := crypto.PubkeyToAddress(key.PublicKey)

	k.mu.Lock()
	defer k.mu.Unlock()

	if existing, ok := k.names[name]; ok && existing != addr {
		return common.Address{}, fmt.Errorf("signer name %q already registered for %s", name, existing.Hex())
	}
	k.keys[addr] = key
	k.names[name] = addr
	return addr, nil
}

// Key returns the private key controlling addr
func (k *Keyring) Key(addr common.Address) (*ecdsa.PrivateKey, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	key, ok := k.keys[addr]
	return key, ok
}

// Address returns the address registered under name
func (k *Keyring) Address(name string) (common.Address, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	addr, ok := k.names[name]
	return addr, ok
}

// Addresses returns all signer addresses in byte order
func (k *Keyring) Addresses() []common.Address {
	k.mu.RLock()
	defer k.mu.RUnlock()

	out := make([]common.Address, 0, len(k.keys))
	for addr := range k.keys {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}

// Len returns the number of keys
func (k *Keyring) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.keys)
}
