// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package token

import (
	"encoding/base64"
	"errors"
	"testing"
)

func TestNewEncryptor(t *testing.T) {
	t.Parallel()
	key, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		key     string
		wantNil bool
		wantErr bool
	}{
		{"empty disables", "", true, false},
		{"valid", key, false, false},
		{"short", base64.StdEncoding.EncodeToString([]byte("short")), true, true},
		{"bad base64", "not-valid-base64!!!", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			enc, err := NewEncryptor(tt.key)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if (enc == nil) != tt.wantNil {
				t.Fatalf("enc = %v, wantNil %v", enc, tt.wantNil)
			}
		})
	}
}

func TestEncryptRoundTrip(t *testing.T) {
	t.Parallel()
	key, _ := GenerateKey()
	enc, err := NewEncryptor(key)
	if err != nil {
		t.Fatal(err)
	}

	ct1, err := enc.Encrypt("1//refresh-token")
	if err != nil {
		t.Fatal(err)
	}
	ct2, _ := enc.Encrypt("1//refresh-token")
	if ct1 == ct2 {
		t.Fatal("nonces must differ between encryptions")
	}
	pt, err := enc.Decrypt(ct1)
	if err != nil || pt != "1//refresh-token" {
		t.Fatalf("Decrypt = %q, %v", pt, err)
	}
	if empty, _ := enc.Encrypt(""); empty != "" {
		t.Fatalf("Encrypt(\"\") = %q", empty)
	}
}

func TestDecryptRejectsTampering(t *testing.T) {
	t.Parallel()
	key, _ := GenerateKey()
	enc, _ := NewEncryptor(key)
	ct, _ := enc.Encrypt("secret")

	raw, _ := base64.StdEncoding.DecodeString(ct)
	raw[len(raw)-1] ^= 0xff
	if _, err := enc.Decrypt(base64.StdEncoding.EncodeToString(raw)); !errors.Is(err, ErrDecryptionFailed) {
		t.Fatalf("tampered err = %v", err)
	}
	if _, err := enc.Decrypt("AAAA"); !errors.Is(err, ErrInvalidCiphertext) {
		t.Fatalf("short err = %v", err)
	}

	other, _ := GenerateKey()
	enc2, _ := NewEncryptor(other)
	if _, err := enc2.Decrypt(ct); !errors.Is(err, ErrDecryptionFailed) {
		t.Fatalf("wrong key err = %v", err)
	}
}

func TestNilEncryptorPassesThrough(t *testing.T) {
	t.Parallel()
	var enc *Encryptor
	if enc.Enabled() {
		t.Fatal("nil encryptor reports enabled")
	}
	if v, _ := enc.Encrypt("plain"); v != "plain" {
		t.Fatalf("Encrypt = %q", v)
	}
	if v, _ := enc.Decrypt("plain"); v != "plain" {
		t.Fatalf("Decrypt = %q", v)
	}
}
