package security

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"testing"

	"proctor-integrity/backend/internal/canonical"
)

func newDeviceKey(t *testing.T) (ed25519.PrivateKey, string) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return priv, hex.EncodeToString(pub)
}

func signedPayload(t *testing.T) map[string]any {
	t.Helper()
	v, err := canonical.Decode([]byte(`{
		"eventId":"7b0c5a52-5f1e-4d36-9a1a-2f3b0b8f9e10",
		"timestamp":"2026-03-01T10:00:00Z",
		"sessionId":"1f6f1a0e-8a43-4c7e-9a55-0d5a7b7c2b11",
		"type":"SESSION_END",
		"payload":{"focusedSeconds":1200,"durationSeconds":1500.0},
		"assignmentId":"hw-1"
	}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return v.(map[string]any)
}

func TestVerifySignature_RoundTrip(t *testing.T) {
	priv, pubHex := newDeviceKey(t)
	payload := signedPayload(t)
	sig, err := SignPayload(priv, payload)
	if err != nil {
		t.Fatalf("SignPayload: %v", err)
	}
	if !VerifySignature(payload, sig, pubHex) {
		t.Fatal("VerifySignature should accept a valid signature")
	}
	if !VerifySignature(payload, strings.ToUpper(sig), strings.ToUpper(pubHex)) {
		t.Error("VerifySignature should accept upper-case hex")
	}
	// Key order on the wire does not matter.
	reordered, _ := canonical.Decode([]byte(`{"assignmentId":"hw-1","payload":{"durationSeconds":1500,"focusedSeconds":1200},
		"type":"SESSION_END","sessionId":"1f6f1a0e-8a43-4c7e-9a55-0d5a7b7c2b11","timestamp":"2026-03-01T10:00:00Z",
		"eventId":"7b0c5a52-5f1e-4d36-9a1a-2f3b0b8f9e10"}`))
	if !VerifySignature(reordered, sig, pubHex) {
		t.Error("VerifySignature should be independent of key order")
	}
}

func TestVerifySignature_Tampering(t *testing.T) {
	priv, pubHex := newDeviceKey(t)
	_, otherPub := newDeviceKey(t)
	payload := signedPayload(t)
	sig, err := SignPayload(priv, payload)
	if err != nil {
		t.Fatalf("SignPayload: %v", err)
	}

	flipHex := func(s string) string {
		b, _ := hex.DecodeString(s)
		b[len(b)/2] ^= 0x01
		return hex.EncodeToString(b)
	}
	modified := signedPayload(t)
	modified["payload"].(map[string]any)["focusedSeconds"] = 1201

	testCases := []struct {
		name    string
		payload any
		sig     string
		pub     string
	}{
		{"payload changed", modified, sig, pubHex},
		{"signature bit flipped", payload, flipHex(sig), pubHex},
		{"key bit flipped", payload, sig, flipHex(pubHex)},
		{"other key", payload, sig, otherPub},
		{"short signature", payload, sig[:126], pubHex},
		{"non-hex signature", payload, strings.Repeat("zz", 64), pubHex},
		{"short key", payload, sig, pubHex[:62]},
		{"non-hex key", payload, sig, strings.Repeat("g", 64)},
		{"empty", payload, "", ""},
		{"unencodable payload", make(chan int), sig, pubHex},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if VerifySignature(tc.payload, tc.sig, tc.pub) {
				t.Error("VerifySignature should return false")
			}
		})
	}
}

func TestVerifySignature_Deterministic(t *testing.T) {
	priv, pubHex := newDeviceKey(t)
	payload := signedPayload(t)
	sig, _ := SignPayload(priv, payload)
	for i := 0; i < 5; i++ {
		if !VerifySignature(payload, sig, pubHex) {
			t.Fatalf("iteration %d: VerifySignature changed its answer", i)
		}
	}
}
