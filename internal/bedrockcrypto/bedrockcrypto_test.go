package bedrockcrypto

import "testing"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	server, err := NewKeyExchange()
	if err != nil {
		t.Fatalf("server kex: %v", err)
	}
	client, err := NewKeyExchange()
	if err != nil {
		t.Fatalf("client kex: %v", err)
	}

	serverEnc, err := server.DeriveSecret(client.PublicKey())
	if err != nil {
		t.Fatalf("server derive: %v", err)
	}
	clientEnc, err := client.DeriveSecret(server.PublicKey())
	if err != nil {
		t.Fatalf("client derive: %v", err)
	}

	plaintext := []byte("hello bedrock")
	ciphertext, err := serverEnc.Encrypt(0, plaintext)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	got, err := clientEnc.Decrypt(0, ciphertext)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if string(got) != string(plaintext) {
		t.Fatalf("got %q want %q", got, plaintext)
	}
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	server, _ := NewKeyExchange()
	client, _ := NewKeyExchange()
	serverEnc, _ := server.DeriveSecret(client.PublicKey())
	clientEnc, _ := client.DeriveSecret(server.PublicKey())

	ciphertext, err := serverEnc.Encrypt(0, []byte("hello"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	ciphertext[0] ^= 0xFF

	if _, err := clientEnc.Decrypt(0, ciphertext); err == nil {
		t.Fatal("expected decryption failure for tampered ciphertext")
	}
}

func TestDecryptRejectsWrongCounter(t *testing.T) {
	server, _ := NewKeyExchange()
	client, _ := NewKeyExchange()
	serverEnc, _ := server.DeriveSecret(client.PublicKey())
	clientEnc, _ := client.DeriveSecret(server.PublicKey())

	ciphertext, err := serverEnc.Encrypt(0, []byte("hello"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := clientEnc.Decrypt(1, ciphertext); err == nil {
		t.Fatal("expected decryption failure for mismatched counter")
	}
}
