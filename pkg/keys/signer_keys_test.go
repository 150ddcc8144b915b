package keys

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/chainsafe/optimal-wallet/pkg/config"
)

const testPrivateKeyHex = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

func testSeed() []byte {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i)
	}
	return seed
}

func TestDeriveSignerKey_Deterministic(t *testing.T) {
	k1, err := DeriveSignerKey("worker", testSeed())
	if err != nil {
		t.Fatalf("DeriveSignerKey failed: %v", err)
	}
	k2, err := DeriveSignerKey("worker", testSeed())
	if err != nil {
		t.Fatalf("DeriveSignerKey (2nd call) failed: %v", err)
	}
	if crypto.PubkeyToAddress(k1.PublicKey) != crypto.PubkeyToAddress(k2.PublicKey) {
		t.Error("derived keys don't match")
	}

	k3, err := DeriveSignerKey("owner", testSeed())
	if err != nil {
		t.Fatalf("DeriveSignerKey (other label) failed: %v", err)
	}
	if crypto.PubkeyToAddress(k1.PublicKey) == crypto.PubkeyToAddress(k3.PublicKey) {
		t.Error("different labels should derive different keys")
	}
}

func TestDeriveSignerKey_ShortSeed(t *testing.T) {
	if _, err := DeriveSignerKey("worker", []byte("short")); err == nil {
		t.Fatal("expected error for short seed")
	}
}

func TestEncryptDecryptPrivateKey(t *testing.T) {
	masterKey, err := GenerateMasterKey()
	if err != nil {
		t.Fatalf("GenerateMasterKey failed: %v", err)
	}
	key, err := ParsePrivateKey("0x" + testPrivateKeyHex)
	if err != nil {
		t.Fatalf("ParsePrivateKey failed: %v", err)
	}

	encrypted, err := EncryptPrivateKey(key, masterKey)
	if err != nil {
		t.Fatalf("EncryptPrivateKey failed: %v", err)
	}

	decrypted, err := DecryptPrivateKey(encrypted, masterKey)
	if err != nil {
		t.Fatalf("DecryptPrivateKey failed: %v", err)
	}
	if crypto.PubkeyToAddress(decrypted.PublicKey) != crypto.PubkeyToAddress(key.PublicKey) {
		t.Error("decrypted key does not match original")
	}

	otherKey, _ := GenerateMasterKey()
	if _, err := DecryptPrivateKey(encrypted, otherKey); err == nil {
		t.Error("expected decryption with wrong master key to fail")
	}
}

func TestMasterKeyFromBase64_WrongSize(t *testing.T) {
	if _, err := MasterKeyFromBase64(MasterKeyToBase64([]byte("too-short"))); err == nil {
		t.Fatal("expected error for short master key")
	}
}

func TestNewKeyringFromConfig(t *testing.T) {
	masterKey, _ := GenerateMasterKey()
	workerKey, _ := DeriveSignerKey("worker", testSeed())
	encrypted, err := EncryptPrivateKey(workerKey, masterKey)
	if err != nil {
		t.Fatalf("EncryptPrivateKey failed: %v", err)
	}

	kr, err := NewKeyringFromConfig(&config.KeysConfig{
		MasterKey: MasterKeyToBase64(masterKey),
		Signers: []config.SignerConfig{
			{Name: "deployer", PrivateKey: testPrivateKeyHex},
			{Name: "worker", EncryptedKey: encrypted},
		},
	})
	if err != nil {
		t.Fatalf("NewKeyringFromConfig failed: %v", err)
	}

	if kr.Len() != 2 {
		t.Fatalf("expected 2 keys, got %d", kr.Len())
	}
	workerAddr, ok := kr.Address("worker")
	if !ok {
		t.Fatal("worker not registered")
	}
	if workerAddr != crypto.PubkeyToAddress(workerKey.PublicKey) {
		t.Errorf("worker address mismatch: %s", workerAddr.Hex())
	}
	if _, ok := kr.Key(workerAddr); !ok {
		t.Error("worker key not retrievable by address")
	}
	if len(kr.Addresses()) != 2 {
		t.Errorf("expected 2 addresses, got %d", len(kr.Addresses()))
	}
}

func TestNewKeyringFromConfig_InvalidHex(t *testing.T) {
	_, err := NewKeyringFromConfig(&config.KeysConfig{
		Signers: []config.SignerConfig{{Name: "broken", PrivateKey: "zz"}},
	})
	if err == nil {
		t.Fatal("expected error for invalid private key")
	}
}
