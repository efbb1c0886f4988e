package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestNip44Roundtrip(t *testing.T) {
	alicePriv, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("key generation failed: %v", err)
	}
	bobPriv, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("key generation failed: %v", err)
	}
	alicePub, _ := GetPublicKey(alicePriv)
	bobPub, _ := GetPublicKey(bobPriv)

	convKey, err := GetConversationKey(alicePriv, bobPub)
	if err != nil {
		t.Fatalf("conversation key failed: %v", err)
	}

	plaintext := `{"method":"pay_invoice","params":{"invoice":"lnbc1..."}}`
	ciphertext, err := Nip44Encrypt(plaintext, convKey)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if strings.Contains(ciphertext, "pay_invoice") {
		t.Error("ciphertext leaks plaintext")
	}

	decrypted, err := Nip44Decrypt(ciphertext, convKey)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if decrypted != plaintext {
		t.Errorf("roundtrip mismatch:\n  in:  %q\n  out: %q", plaintext, decrypted)
	}

	// The other side derives the same conversation key
	bobConvKey, err := GetConversationKey(bobPriv, alicePub)
	if err != nil {
		t.Fatalf("peer conversation key failed: %v", err)
	}
	if !bytes.Equal(convKey, bobConvKey) {
		t.Error("conversation keys differ between the two sides")
	}
}

func TestNip44DecryptRejectsTampering(t *testing.T) {
	priv, _ := GeneratePrivateKey()
	peerPriv, _ := GeneratePrivateKey()
	peerPub, _ := GetPublicKey(peerPriv)
	convKey, _ := GetConversationKey(priv, peerPub)

	ciphertext, err := Nip44Encrypt("hello", convKey)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}

	// Flip a character in the body of the payload
	tampered := []byte(ciphertext)
	mid := len(tampered) / 2
	if tampered[mid] == 'A' {
		tampered[mid] = 'B'
	} else {
		tampered[mid] = 'A'
	}

	if _, err := Nip44Decrypt(string(tampered), convKey); err == nil {
		t.Error("tampered payload decrypted without error")
	}
}

func TestNip04Roundtrip(t *testing.T) {
	alicePriv, _ := GeneratePrivateKey()
	bobPriv, _ := GeneratePrivateKey()
	alicePub, _ := GetPublicKey(alicePriv)
	bobPub, _ := GetPublicKey(bobPriv)

	aliceShared, err := GetNip04SharedSecret(alicePriv, bobPub)
	if err != nil {
		t.Fatalf("shared secret failed: %v", err)
	}
	bobShared, err := GetNip04SharedSecret(bobPriv, alicePub)
	if err != nil {
		t.Fatalf("peer shared secret failed: %v", err)
	}
	if !bytes.Equal(aliceShared, bobShared) {
		t.Fatal("shared secrets differ between the two sides")
	}

	plaintext := `{"result_type":"get_balance","result":{"balance":21000}}`
	ciphertext, err := Nip04Encrypt(plaintext, aliceShared)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if !strings.Contains(ciphertext, "?iv=") {
		t.Errorf("ciphertext %q missing iv separator", ciphertext)
	}

	decrypted, err := Nip04Decrypt(ciphertext, bobShared)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if decrypted != plaintext {
		t.Errorf("roundtrip mismatch:\n  in:  %q\n  out: %q", plaintext, decrypted)
	}
}

func TestNip44PaddingBoundaries(t *testing.T) {
	priv, _ := GeneratePrivateKey()
	peerPriv, _ := GeneratePrivateKey()
	peerPub, _ := GetPublicKey(peerPriv)
	convKey, _ := GetConversationKey(priv, peerPub)

	for _, n := range []int{1, 31, 32, 33, 96, 97, 256} {
		plaintext := strings.Repeat("x", n)
		ciphertext, err := Nip44Encrypt(plaintext, convKey)
		if err != nil {
			t.Fatalf("len %d: encrypt failed: %v", n, err)
		}
		decrypted, err := Nip44Decrypt(ciphertext, convKey)
		if err != nil {
			t.Fatalf("len %d: decrypt failed: %v", n, err)
		}
		if decrypted != plaintext {
			t.Errorf("len %d: roundtrip mismatch", n)
		}
	}
}
