package security

import (
	"crypto/ed25519"
	"encoding/hex"

	"proctor-integrity/backend/internal/canonical"
)

// VerifySignature reports whether signatureHex is a valid Ed25519 signature by publicKeyHex over
// the canonical encoding of payload. payload must be the object exactly as the device signed it,
// before any validation or coercion. Malformed input of any kind yields false.
func VerifySignature(payload any, signatureHex, publicKeyHex string) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	if len(signatureHex) != SignatureHexLen {
		return false
	}
	sig, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false
	}
	pub, err := ParseDeviceKey(publicKeyHex)
	if err != nil {
		return false
	}
	msg, err := canonical.Encode(payload)
	if err != nil {
		return false
	}
	return ed25519.Verify(pub, msg, sig)
}

// SignPayload signs the canonical encoding of payload with priv and returns the hex signature.
// It is the device-side counterpart of VerifySignature.
func SignPayload(priv ed25519.PrivateKey, payload any) (string, error) {
	msg, err := canonical.Encode(payload)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(ed25519.Sign(priv, msg)), nil
}
