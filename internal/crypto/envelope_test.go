package crypto

import (
	"bytes"
	"crypto/rand"
	"errors"
	"testing"
)

func randBytes(t testing.TB, n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	return b
}

func testKey(t testing.TB) []byte {
	key, err := DeriveKey(randBytes(t, 48))
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	return key[:]
}

func TestSealOpenRoundTrip(t *testing.T) {
	key := testKey(t)
	pt := randBytes(t, 4096)
	aad := []byte("profile/name")
	ct, err := Seal(key, pt, aad)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	out, err := Open(key, ct, aad)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(pt, out) {
		t.Fatal("plaintext mismatch")
	}
}

func TestDeriveKeyDeterministic(t *testing.T) {
	secret := []byte("long-lived-configured-secret")
	k1, err := DeriveKey(secret)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	k2, err := DeriveKey(secret)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if k1 != k2 {
		t.Fatal("same secret must derive the same key")
	}
	if _, err := DeriveKey(nil); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestOpenWrongKey(t *testing.T) {
	ct, err := Seal(testKey(t), []byte("secret-data"), nil)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := Open(testKey(t), ct, nil); !errors.Is(err, ErrDecryptFailed) {
		t.Fatalf("expected ErrDecryptFailed, got %v", err)
	}
}

func TestOpenAADMismatch(t *testing.T) {
	key := testKey(t)
	ct, err := Seal(key, []byte("secret-data"), []byte("aad-1"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := Open(key, ct, []byte("aad-2")); err == nil {
		t.Fatal("expected auth failure with mismatched AAD")
	}
}

func TestOpenTamper(t *testing.T) {
	key := testKey(t)
	ct, err := Seal(key, []byte("hello"), nil)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	for _, idx := range []int{0, len(ct) / 2, len(ct) - 1} {
		mut := append([]byte(nil), ct...)
		mut[idx] ^= 0xFF
		if _, err := Open(key, mut, nil); !errors.Is(err, ErrDecryptFailed) {
			t.Fatalf("mutation at %d: expected ErrDecryptFailed, got %v", idx, err)
		}
	}
}

func TestOpenTruncation(t *testing.T) {
	key := testKey(t)
	ct, err := Seal(key, []byte("hello"), nil)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := Open(key, ct[:len(ct)-1], nil); err == nil {
		t.Fatal("expected failure on truncated ciphertext")
	}
	if _, err := Open(key, ct[:8], nil); !errors.Is(err, ErrCiphertextTooShort) {
		t.Fatalf("expected ErrCiphertextTooShort, got %v", err)
	}
}

func TestSealUniqueNonce(t *testing.T) {
	key := testKey(t)
	pt := []byte("data")
	ct1, err := Seal(key, pt, nil)
	if err != nil {
		t.Fatalf("seal1: %v", err)
	}
	ct2, err := Seal(key, pt, nil)
	if err != nil {
		t.Fatalf("seal2: %v", err)
	}
	if bytes.Equal(ct1, ct2) {
		t.Fatal("expected distinct ciphertexts for identical plaintext")
	}
}

func FuzzEnvelopeRejectMutations(f *testing.F) {
	f.Add([]byte("hello"), []byte("aad"))
	f.Add([]byte(""), []byte(""))
	f.Fuzz(func(t *testing.T, pt, aad []byte) {
		key := testKey(t)
		ct, err := Seal(key, pt, aad)
		if err != nil {
			t.Fatalf("seal: %v", err)
		}
		if _, err := Open(key, ct, aad); err != nil {
			t.Fatalf("open baseline: %v", err)
		}
		if len(ct) == 0 {
			return
		}
		mut := append([]byte(nil), ct...)
		idx := len(pt) % len(mut)
		mut[idx] ^= 0xFF
		if _, err := Open(key, mut, aad); err == nil {
			t.Fatalf("mutation at %d succeeded", idx)
		}
	})
}
