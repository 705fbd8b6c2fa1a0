// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package config

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func TestNewTokenCipher(t *testing.T) {
	tests := []struct {
		name      string
		masterKey string
		wantErr   error
	}{
		{
			name:      "valid key",
			masterKey: "my-super-secret-master-key",
			wantErr:   nil,
		},
		{
			name:      "empty key",
			masterKey: "",
			wantErr:   ErrEmptyMasterKey,
		},
		{
			name:      "short key",
			masterKey: "x",
			wantErr:   nil, // HKDF can derive from any length
		},
		{
			name:      "long key",
			masterKey: strings.Repeat("a", 1000),
			wantErr:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewTokenCipher(tt.masterKey)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("NewTokenCipher() error = %v, wantErr %v", err, tt.wantErr)
				}
				if c != nil {
					t.Error("NewTokenCipher() returned cipher on error")
				}
			} else {
				if err != nil {
					t.Errorf("NewTokenCipher() unexpected error = %v", err)
				}
				if c == nil {
					t.Error("NewTokenCipher() returned nil cipher")
				}
			}
		})
	}
}

func TestTokenCipher_Encrypt(t *testing.T) {
	c, err := NewTokenCipher("test-master-key")
	if err != nil {
		t.Fatalf("Failed to create cipher: %v", err)
	}

	tests := []struct {
		name      string
		plaintext string
		wantErr   error
	}{
		{
			name:      "valid plaintext",
			plaintext: "my-session-token",
			wantErr:   nil,
		},
		{
			name:      "empty plaintext",
			plaintext: "",
			wantErr:   ErrEmptyPlaintext,
		},
		{
			name:      "special characters",
			plaintext: "token!@#$%^&*()_+-=[]{}|;':\",./<>?",
			wantErr:   nil,
		},
		{
			name:      "very long plaintext",
			plaintext: strings.Repeat("x", 10000),
			wantErr:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ciphertext, err := c.Encrypt(tt.plaintext)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Encrypt() error = %v, wantErr %v", err, tt.wantErr)
				}
				if ciphertext != "" {
					t.Error("Encrypt() returned ciphertext on error")
				}
				return
			}

			if err != nil {
				t.Fatalf("Encrypt() unexpected error = %v", err)
			}
			if ciphertext == "" {
				t.Fatal("Encrypt() returned empty ciphertext")
			}
			if _, decodeErr := base64.StdEncoding.DecodeString(ciphertext); decodeErr != nil {
				t.Errorf("Encrypt() output is not valid base64: %v", decodeErr)
			}
		})
	}
}

func TestTokenCipher_Decrypt(t *testing.T) {
	c, err := NewTokenCipher("test-master-key")
	if err != nil {
		t.Fatalf("Failed to create cipher: %v", err)
	}

	valid, err := c.Encrypt("known-token")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	tests := []struct {
		name       string
		ciphertext string
		wantErr    error
	}{
		{
			name:       "valid ciphertext",
			ciphertext: valid,
			wantErr:    nil,
		},
		{
			name:       "empty ciphertext",
			ciphertext: "",
			wantErr:    ErrEmptyCiphertext,
		},
		{
			name:       "invalid base64",
			ciphertext: "not-valid-base64!!!",
			wantErr:    ErrInvalidCiphertext,
		},
		{
			name:       "too short",
			ciphertext: base64.StdEncoding.EncodeToString([]byte("short")),
			wantErr:    ErrCiphertextTooShort,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plaintext, err := c.Decrypt(tt.ciphertext)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Decrypt() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}

			if err != nil {
				t.Fatalf("Decrypt() unexpected error = %v", err)
			}
			if plaintext != "known-token" {
				t.Errorf("Decrypt() = %q, want known-token", plaintext)
			}
		})
	}
}

func TestTokenCipher_RoundTrip(t *testing.T) {
	c, err := NewTokenCipher("round-trip-key")
	if err != nil {
		t.Fatalf("Failed to create cipher: %v", err)
	}

	tokens := []string{
		"simple-token",
		"token with spaces",
		strings.Repeat("long", 500),
	}

	for _, token := range tokens {
		encrypted, err := c.Encrypt(token)
		if err != nil {
			t.Fatalf("Encrypt(%q) error = %v", token, err)
		}

		decrypted, err := c.Decrypt(encrypted)
		if err != nil {
			t.Fatalf("Decrypt() error = %v", err)
		}

		if decrypted != token {
			t.Errorf("round trip mismatch: got %q, want %q", decrypted, token)
		}
	}
}

func TestTokenCipher_UniqueNonce(t *testing.T) {
	c, err := NewTokenCipher("nonce-key")
	if err != nil {
		t.Fatalf("Failed to create cipher: %v", err)
	}

	// Encrypting the same plaintext twice must produce different ciphertexts
	first, err := c.Encrypt("same-token")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	second, err := c.Encrypt("same-token")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	if first == second {
		t.Error("Encrypt() produced identical ciphertexts; nonce is not random")
	}
}

func TestTokenCipher_DifferentKeys(t *testing.T) {
	c1, err := NewTokenCipher("key-one")
	if err != nil {
		t.Fatalf("Failed to create cipher: %v", err)
	}
	c2, err := NewTokenCipher("key-two")
	if err != nil {
		t.Fatalf("Failed to create cipher: %v", err)
	}

	encrypted, err := c1.Encrypt("cross-key-token")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	// A cipher with a different master key must not decrypt the data
	if _, err := c2.Decrypt(encrypted); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("Decrypt() with wrong key error = %v, want ErrDecryptionFailed", err)
	}
}

func TestTokenCipher_TamperedCiphertext(t *testing.T) {
	c, err := NewTokenCipher("tamper-key")
	if err != nil {
		t.Fatalf("Failed to create cipher: %v", err)
	}

	encrypted, err := c.Encrypt("tamper-token")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	// Flip one byte in the middle of the ciphertext
	raw, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		t.Fatalf("base64 decode error = %v", err)
	}
	raw[len(raw)/2] ^= 0xFF
	tampered := base64.StdEncoding.EncodeToString(raw)

	if _, err := c.Decrypt(tampered); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("Decrypt() of tampered data error = %v, want ErrDecryptionFailed", err)
	}
}

func TestTokenCipher_ValidateEncryptionSetup(t *testing.T) {
	c, err := NewTokenCipher("setup-key")
	if err != nil {
		t.Fatalf("Failed to create cipher: %v", err)
	}

	if err := c.ValidateEncryptionSetup(); err != nil {
		t.Errorf("ValidateEncryptionSetup() error = %v", err)
	}
}

func TestMaskToken(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  string
	}{
		{
			name:  "empty token",
			token: "",
			want:  "",
		},
		{
			name:  "short token",
			token: "abc",
			want:  "****",
		},
		{
			name:  "exactly four characters",
			token: "abcd",
			want:  "****",
		},
		{
			name:  "normal token",
			token: "session-token-abc1",
			want:  "****...abc1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaskToken(tt.token); got != tt.want {
				t.Errorf("MaskToken(%q) = %q, want %q", tt.token, got, tt.want)
			}
		})
	}
}

func TestDeriveKey(t *testing.T) {
	// Same master key must derive the same AES key
	k1, err := deriveKey("stable-key")
	if err != nil {
		t.Fatalf("deriveKey() error = %v", err)
	}
	k2, err := deriveKey("stable-key")
	if err != nil {
		t.Fatalf("deriveKey() error = %v", err)
	}
	if string(k1) != string(k2) {
		t.Error("deriveKey() is not deterministic for the same input")
	}
	if len(k1) != aesKeySize {
		t.Errorf("deriveKey() length = %d, want %d", len(k1), aesKeySize)
	}

	// Different master keys must derive different AES keys
	k3, err := deriveKey("other-key")
	if err != nil {
		t.Fatalf("deriveKey() error = %v", err)
	}
	if string(k1) == string(k3) {
		t.Error("deriveKey() produced identical keys for different inputs")
	}
}

func BenchmarkEncrypt(b *testing.B) {
	c, _ := NewTokenCipher("bench-key")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = c.Encrypt("benchmark-session-token")
	}
}

func BenchmarkDecrypt(b *testing.B) {
	c, _ := NewTokenCipher("bench-key")
	encrypted, _ := c.Encrypt("benchmark-session-token")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = c.Decrypt(encrypted)
	}
}
