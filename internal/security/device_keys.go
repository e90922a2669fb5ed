package security

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"strings"
)

const (
	// DeviceKeyHexLen is the hex length of a raw 32-byte Ed25519 public key.
	DeviceKeyHexLen = 2 * ed25519.PublicKeySize
	// SignatureHexLen is the hex length of a 64-byte Ed25519 signature.
	SignatureHexLen = 2 * ed25519.SignatureSize
)

// ErrInvalidDeviceKey is returned when a device public key is not 32 bytes of hex.
var ErrInvalidDeviceKey = errors.New("invalid device key")

// spkiEd25519Prefix is the DER SubjectPublicKeyInfo header for an Ed25519 key (OID 1.3.101.112).
var spkiEd25519Prefix = []byte{0x30, 0x2a, 0x30, 0x05, 0x06, 0x03, 0x2b, 0x65, 0x70, 0x03, 0x21, 0x00}

// ParseDeviceKey decodes a hex Ed25519 public key by wrapping it in its SPKI envelope
// and parsing that with x509, so only well-formed Ed25519 keys come back.
func ParseDeviceKey(pubHex string) (ed25519.PublicKey, error) {
	if len(pubHex) != DeviceKeyHexLen {
		return nil, ErrInvalidDeviceKey
	}
	raw, err := hex.DecodeString(pubHex)
	if err != nil {
		return nil, ErrInvalidDeviceKey
	}
	der := make([]byte, 0, len(spkiEd25519Prefix)+len(raw))
	der = append(der, spkiEd25519Prefix...)
	der = append(der, raw...)
	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, ErrInvalidDeviceKey
	}
	key, ok := pub.(ed25519.PublicKey)
	if !ok {
		return nil, ErrInvalidDeviceKey
	}
	return key, nil
}

// NormalizeDeviceKey lower-cases a hex key so the same device always maps to one row.
func NormalizeDeviceKey(pubHex string) string {
	return strings.ToLower(strings.TrimSpace(pubHex))
}
