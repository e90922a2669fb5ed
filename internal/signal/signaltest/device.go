// Package signaltest builds signed wire signals the way an editor extension does. Used by tests.
package signaltest

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"proctor-integrity/backend/internal/canonical"
	"proctor-integrity/backend/internal/security"
	"proctor-integrity/backend/internal/signal"
)

// Device holds an Ed25519 key pair standing in for one editor installation.
type Device struct {
	priv      ed25519.PrivateKey
	PublicKey string
	SessionID string
}

// NewDevice generates a device key and a session id.
func NewDevice() (*Device, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &Device{priv: priv, PublicKey: hex.EncodeToString(pub), SessionID: uuid.New().String()}, nil
}

// Fields describe one signal. Zero EventID, Timestamp and AssignmentID get defaults.
type Fields struct {
	EventID      string
	AssignmentID string
	Type         string
	Seq          int64
	Timestamp    time.Time
	Payload      map[string]any
	CourseID     string
}

// Sign returns the signal as the server decodes it from a request body, signed by d.
func (d *Device) Sign(f Fields) (signal.Wire, error) {
	if f.EventID == "" {
		f.EventID = uuid.New().String()
	}
	if f.AssignmentID == "" {
		f.AssignmentID = "hw-1"
	}
	if f.Timestamp.IsZero() {
		f.Timestamp = time.Now().UTC()
	}
	if f.Payload == nil {
		f.Payload = map[string]any{}
	}
	body := map[string]any{
		"eventId":      f.EventID,
		"sessionId":    d.SessionID,
		"timestamp":    f.Timestamp.UTC().Format(time.RFC3339Nano),
		"type":         f.Type,
		"payload":      f.Payload,
		"assignmentId": f.AssignmentID,
		"seq":          f.Seq,
		"publicKey":    d.PublicKey,
	}
	if f.CourseID != "" {
		body["courseId"] = f.CourseID
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	decoded, err := canonical.Decode(raw)
	if err != nil {
		return nil, err
	}
	w := signal.Wire(decoded.(map[string]any))
	sig, err := security.SignPayload(d.priv, w.SignedPayload())
	if err != nil {
		return nil, err
	}
	w["signature"] = sig
	return w, nil
}

// CorruptSignature returns a copy of w whose signature has its first byte flipped.
func CorruptSignature(w signal.Wire) signal.Wire {
	out := make(signal.Wire, len(w))
	for k, v := range w {
		out[k] = v
	}
	sig, _ := w["signature"].(string)
	b, err := hex.DecodeString(sig)
	if err != nil || len(b) == 0 {
		out["signature"] = "00"
		return out
	}
	b[0] ^= 0xff
	out["signature"] = hex.EncodeToString(b)
	return out
}
