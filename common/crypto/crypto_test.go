package crypto_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/bdobrica/Kuruma/common/crypto"
)

func makeKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, crypto.KeySize)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func TestSealOpen_Roundtrip(t *testing.T) {
	key := makeKey(t)

	sealed, err := crypto.Seal(key, "N1234567")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if strings.Contains(sealed, "N1234567") {
		t.Fatal("sealed value leaks plaintext")
	}

	got, err := crypto.Open(key, sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got != "N1234567" {
		t.Errorf("Open = %q, want %q", got, "N1234567")
	}
}

func TestSeal_NonDeterministic(t *testing.T) {
	key := makeKey(t)

	a, err := crypto.Seal(key, "same")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	b, err := crypto.Seal(key, "same")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if a == b {
		t.Error("two seals of the same plaintext are identical (nonce not random)")
	}
}

func TestOpen_WrongKey(t *testing.T) {
	key := makeKey(t)
	sealed, err := crypto.Seal(key, "secret")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	other := makeKey(t)
	other[0] ^= 0xff
	if _, err := crypto.Open(other, sealed); err == nil {
		t.Error("expected error opening with the wrong key")
	}
}

func TestSeal_InvalidKeySize(t *testing.T) {
	if _, err := crypto.Seal([]byte("short"), "x"); !errors.Is(err, crypto.ErrInvalidKeySize) {
		t.Errorf("expected ErrInvalidKeySize, got %v", err)
	}
}

func TestOpen_TooShort(t *testing.T) {
	// "AAAA" decodes to three zero bytes, below the nonce size.
	if _, err := crypto.Open(makeKey(t), "AAAA"); !errors.Is(err, crypto.ErrCiphertextTooShort) {
		t.Errorf("expected ErrCiphertextTooShort, got %v", err)
	}
}

func TestParseMasterKey(t *testing.T) {
	valid := strings.Repeat("ab", crypto.KeySize)
	key, err := crypto.ParseMasterKey("  " + valid + "\n")
	if err != nil {
		t.Fatalf("ParseMasterKey: %v", err)
	}
	if len(key) != crypto.KeySize {
		t.Errorf("len = %d, want %d", len(key), crypto.KeySize)
	}

	for _, bad := range []string{"", "zz", strings.Repeat("ab", 8)} {
		if _, err := crypto.ParseMasterKey(bad); err == nil {
			t.Errorf("ParseMasterKey(%q): expected error", bad)
		}
	}
}

func TestPasswordHasher(t *testing.T) {
	h := crypto.PasswordHasher{Iterations: 1000}

	hash, salt, err := h.Hash("Str0ng!Pass")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !h.Verify("Str0ng!Pass", hash, salt) {
		t.Error("Verify rejected the correct password")
	}
	if h.Verify("Str0ng!Pas", hash, salt) {
		t.Error("Verify accepted a wrong password")
	}

	hash2, salt2, err := h.Hash("Str0ng!Pass")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if salt == salt2 || hash == hash2 {
		t.Error("salts should be random per hash")
	}
}

func TestNewSessionToken(t *testing.T) {
	a, err := crypto.NewSessionToken()
	if err != nil {
		t.Fatalf("NewSessionToken: %v", err)
	}
	b, _ := crypto.NewSessionToken()
	if a == b {
		t.Error("tokens should be unique")
	}
	if len(a) != 43 {
		t.Errorf("token length = %d, want 43", len(a))
	}
}
