// Package signal decodes and validates device signals and extracts the exact object the device signed.
package signal

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"proctor-integrity/backend/internal/security"
	"proctor-integrity/backend/internal/signal/domain"
)

// ErrValidation is wrapped by every schema or bounds failure.
var ErrValidation = errors.New("signal: validation failed")

const (
	maxIDLen          = 128
	maxRefLen         = 256
	maxVersionLen     = 64
	maxFilePathLen    = 512
	maxFocusedSeconds = 7 * 24 * 60 * 60
	maxCount          = math.MaxInt32
)

// Wire is one signal exactly as decoded from the request body (see canonical.Decode).
type Wire map[string]any

// RawEventID returns the eventId as sent, or "" when it is missing or not a string.
func (w Wire) RawEventID() string {
	s, _ := w["eventId"].(string)
	return s
}

var (
	signedFields         = []string{"eventId", "timestamp", "sessionId", "type", "payload", "assignmentId"}
	optionalSignedFields = []string{"courseId", "commitSha", "repoIdentifier"}
)

// SignedPayload returns the subset of w covered by the device signature, with values untouched.
// Optional fields are included only when the device sent them. seq, signature and publicKey are not signed.
func (w Wire) SignedPayload() map[string]any {
	out := make(map[string]any, len(signedFields)+len(optionalSignedFields))
	for _, k := range signedFields {
		out[k] = w[k]
	}
	for _, k := range optionalSignedFields {
		if v, ok := w[k]; ok {
			out[k] = v
		}
	}
	return out
}

// Validator checks the envelope and type-specific payload of a wire signal.
type Validator struct {
	MaxSeq int64
}

// Validate returns the typed signal for w or an error wrapping ErrValidation.
func (v Validator) Validate(w Wire) (*domain.Signal, error) {
	eventID, err := uuidField(w, "eventId")
	if err != nil {
		return nil, err
	}
	sessionID, err := uuidField(w, "sessionId")
	if err != nil {
		return nil, err
	}
	ts, err := stringField(w, "timestamp", true, 1, 64)
	if err != nil {
		return nil, err
	}
	timestamp, err := time.Parse(time.RFC3339Nano, *ts)
	if err != nil {
		return nil, invalid("timestamp", "not an RFC 3339 timestamp")
	}
	assignmentID, err := stringField(w, "assignmentId", true, 1, maxIDLen)
	if err != nil {
		return nil, err
	}
	courseID, err := stringField(w, "courseId", false, 1, maxRefLen)
	if err != nil {
		return nil, err
	}
	commitSHA, err := stringField(w, "commitSha", false, 1, maxRefLen)
	if err != nil {
		return nil, err
	}
	repo, err := stringField(w, "repoIdentifier", false, 1, maxRefLen)
	if err != nil {
		return nil, err
	}
	maxSeq := v.MaxSeq
	if maxSeq <= 0 {
		maxSeq = 1_000_000_000
	}
	seq, err := intField(w, "seq", true, 1, maxSeq)
	if err != nil {
		return nil, err
	}
	sig, err := hexField(w, "signature", security.SignatureHexLen)
	if err != nil {
		return nil, err
	}
	pub, err := hexField(w, "publicKey", security.DeviceKeyHexLen)
	if err != nil {
		return nil, err
	}

	typ, _ := w["type"].(string)
	body, ok := w["payload"].(map[string]any)
	if !ok {
		return nil, invalid("payload", "must be an object")
	}
	payload, err := decodePayload(domain.Type(typ), body)
	if err != nil {
		return nil, err
	}

	return &domain.Signal{
		EventID:        eventID,
		SessionID:      sessionID,
		AssignmentID:   *assignmentID,
		Type:           domain.Type(typ),
		Timestamp:      timestamp.UTC(),
		Payload:        payload,
		CourseID:       courseID,
		CommitSHA:      commitSHA,
		RepoIdentifier: repo,
		Seq:            *seq,
		Signature:      strings.ToLower(sig),
		PublicKey:      security.NormalizeDeviceKey(pub),
	}, nil
}

func decodePayload(t domain.Type, m map[string]any) (domain.Payload, error) {
	switch t {
	case domain.TypeSessionStart:
		editor, err := stringField(m, "editorVersion", false, 0, maxVersionLen)
		if err != nil {
			return nil, err
		}
		ext, err := stringField(m, "extensionVersion", false, 0, maxVersionLen)
		if err != nil {
			return nil, err
		}
		return domain.SessionStart{EditorVersion: deref(editor), ExtensionVersion: deref(ext)}, nil

	case domain.TypeSessionEnd:
		focused, err := intField(m, "focusedSeconds", true, 0, maxFocusedSeconds)
		if err != nil {
			return nil, err
		}
		duration, err := intField(m, "durationSeconds", false, 0, maxCount)
		if err != nil {
			return nil, err
		}
		return domain.SessionEnd{FocusedSeconds: *focused, DurationSeconds: duration}, nil

	case domain.TypeEditBurst:
		path, err := stringField(m, "filePath", false, 0, maxFilePathLen)
		if err != nil {
			return nil, err
		}
		inserted, err := intField(m, "charsInserted", true, 0, maxCount)
		if err != nil {
			return nil, err
		}
		deleted, err := intField(m, "charsDeleted", true, 0, maxCount)
		if err != nil {
			return nil, err
		}
		duration, err := intField(m, "durationMs", false, 0, maxCount)
		if err != nil {
			return nil, err
		}
		return domain.EditBurst{FilePath: deref(path), CharsInserted: *inserted, CharsDeleted: *deleted, DurationMs: duration}, nil

	case domain.TypeCheckpointCreated:
		id, err := stringField(m, "checkpointId", true, 1, maxIDLen)
		if err != nil {
			return nil, err
		}
		files, err := intField(m, "fileCount", false, 0, maxCount)
		if err != nil {
			return nil, err
		}
		return domain.CheckpointCreated{CheckpointID: *id, FileCount: files}, nil

	case domain.TypeUnverifiedChanges:
		id, err := stringField(m, "checkpointId", false, 1, maxIDLen)
		if err != nil {
			return nil, err
		}
		last, err := stringField(m, "last_checkpoint_id", false, 1, maxIDLen)
		if err != nil {
			return nil, err
		}
		changed, err := intField(m, "changedFiles", false, 0, maxCount)
		if err != nil {
			return nil, err
		}
		return domain.UnverifiedChanges{CheckpointID: id, LastCheckpointID: last, ChangedFiles: changed}, nil
	}
	return nil, invalid("type", fmt.Sprintf("unknown signal type %q", string(t)))
}

func invalid(field, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrValidation, field, reason)
}

// stringField returns nil for a missing or null optional field.
func stringField(m map[string]any, key string, required bool, minLen, maxLen int) (*string, error) {
	raw, ok := m[key]
	if !ok || raw == nil {
		if required {
			return nil, invalid(key, "required")
		}
		return nil, nil
	}
	s, ok := raw.(string)
	if !ok {
		return nil, invalid(key, "must be a string")
	}
	if n := utf8.RuneCountInString(s); n < minLen || n > maxLen {
		return nil, invalid(key, fmt.Sprintf("length must be between %d and %d", minLen, maxLen))
	}
	return &s, nil
}

// intField accepts integral JSON numbers (1500 and 1500.0 alike) within [min, max].
func intField(m map[string]any, key string, required bool, min, max int64) (*int64, error) {
	raw, ok := m[key]
	if !ok || raw == nil {
		if required {
			return nil, invalid(key, "required")
		}
		return nil, nil
	}
	var f float64
	switch n := raw.(type) {
	case json.Number:
		parsed, err := strconv.ParseFloat(string(n), 64)
		if err != nil {
			return nil, invalid(key, "must be a number")
		}
		f = parsed
	case float64:
		f = n
	default:
		return nil, invalid(key, "must be a number")
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return nil, invalid(key, "must be an integer")
	}
	if f < float64(min) || f > float64(max) {
		return nil, invalid(key, fmt.Sprintf("must be between %d and %d", min, max))
	}
	i := int64(f)
	return &i, nil
}

func uuidField(m map[string]any, key string) (string, error) {
	s, err := stringField(m, key, true, 36, 36)
	if err != nil {
		return "", err
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return "", invalid(key, "must be a UUID")
	}
	return id.String(), nil
}

func hexField(m map[string]any, key string, n int) (string, error) {
	s, err := stringField(m, key, true, n, n)
	if err != nil {
		return "", err
	}
	if _, err := hex.DecodeString(*s); err != nil {
		return "", invalid(key, "must be hex")
	}
	return *s, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
