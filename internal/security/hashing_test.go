package security

import (
	"strings"
	"testing"
)

func TestHashAndVerify(t *testing.T) {
	h := NewHasher(4) // min cost keeps the test fast
	hash, err := h.Hash("s3cret")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hash == "s3cret" || hash == "" {
		t.Fatal("hash must not be empty or equal to the input")
	}
	if !h.Verify("s3cret", hash) {
		t.Error("correct password must verify")
	}
	if h.Verify("wrong", hash) {
		t.Error("wrong password must not verify")
	}
}

func TestHashSaltedPerCall(t *testing.T) {
	h := NewHasher(4)
	a, err := h.Hash("same")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	b, err := h.Hash("same")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if a == b {
		t.Error("two hashes of the same password must differ (fresh salt per call)")
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	h := NewHasher(4)
	if h.Verify("anything", "not-a-bcrypt-hash") {
		t.Error("malformed stored hash must verify false, not panic or error")
	}
	if h.Verify("anything", "") {
		t.Error("empty stored hash must verify false")
	}
}

func TestHashCostClamped(t *testing.T) {
	if h := NewHasher(0); h.Cost < 4 {
		t.Errorf("zero cost should fall back to a sane default, got %d", h.Cost)
	}
	if h := NewHasher(99); h.Cost > 31 {
		t.Errorf("cost should be clamped to bcrypt max, got %d", h.Cost)
	}
}

func TestLongPasswordTruncation(t *testing.T) {
	h := NewHasher(4)
	long := strings.Repeat("a", 80)
	hash, err := h.Hash(long)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !h.Verify(long, hash) {
		t.Error("long password must verify against its own hash")
	}
	// Bytes beyond 72 do not participate in the digest.
	if !h.Verify(long[:72], hash) {
		t.Error("72-byte prefix should verify against the long password's hash")
	}
	if h.Verify(long[:40], hash) {
		t.Error("shorter prefix must not verify")
	}
}
