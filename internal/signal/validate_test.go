package signal

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"proctor-integrity/backend/internal/canonical"
	"proctor-integrity/backend/internal/signal/domain"
)

var (
	testSig = strings.Repeat("ab", 64)
	testPub = strings.Repeat("CD", 32)
)

func wire(t *testing.T, typ, payload string, extra string) Wire {
	t.Helper()
	body := `{"eventId":"7B0C5A52-5F1E-4D36-9A1A-2F3B0B8F9E10","sessionId":"1f6f1a0e-8a43-4c7e-9a55-0d5a7b7c2b11",` +
		`"timestamp":"2026-03-01T10:00:00.000Z","type":"` + typ + `","payload":` + payload +
		`,"assignmentId":"hw-1","seq":3,"signature":"` + testSig + `","publicKey":"` + testPub + `"` + extra + `}`
	v, err := canonical.Decode([]byte(body))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return Wire(v.(map[string]any))
}

func TestValidate_Envelope(t *testing.T) {
	w := wire(t, "SESSION_START", `{"editorVersion":"1.90.0"}`, `,"courseId":"cs101","commitSha":null`)
	s, err := Validator{MaxSeq: 100}.Validate(w)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if s.EventID != "7b0c5a52-5f1e-4d36-9a1a-2f3b0b8f9e10" {
		t.Errorf("EventID = %q", s.EventID)
	}
	if s.Seq != 3 || s.AssignmentID != "hw-1" || s.Type != domain.TypeSessionStart {
		t.Errorf("unexpected signal %+v", s)
	}
	if s.CourseID == nil || *s.CourseID != "cs101" || s.CommitSHA != nil {
		t.Errorf("optional refs = %v %v", s.CourseID, s.CommitSHA)
	}
	if s.PublicKey != strings.ToLower(testPub) {
		t.Errorf("PublicKey not normalized: %q", s.PublicKey)
	}
	if p, ok := s.Payload.(domain.SessionStart); !ok || p.EditorVersion != "1.90.0" {
		t.Errorf("Payload = %#v", s.Payload)
	}
}

func TestValidate_Payloads(t *testing.T) {
	testCases := []struct {
		name    string
		typ     string
		payload string
		wantErr bool
	}{
		{"session end", "SESSION_END", `{"focusedSeconds":1200,"durationSeconds":1500.0}`, false},
		{"session end missing focus", "SESSION_END", `{}`, true},
		{"session end too long", "SESSION_END", `{"focusedSeconds":604801}`, true},
		{"session end fractional", "SESSION_END", `{"focusedSeconds":1.5}`, true},
		{"session end string number", "SESSION_END", `{"focusedSeconds":"12"}`, true},
		{"edit burst", "EDIT_BURST", `{"filePath":"main.go","charsInserted":10,"charsDeleted":0}`, false},
		{"edit burst negative", "EDIT_BURST", `{"charsInserted":-1,"charsDeleted":0}`, true},
		{"checkpoint created", "CHECKPOINT_CREATED", `{"checkpointId":"ck-1","fileCount":4}`, false},
		{"checkpoint created empty id", "CHECKPOINT_CREATED", `{"checkpointId":""}`, true},
		{"unverified null", "UNVERIFIED_CHANGES", `{"checkpointId":null}`, false},
		{"unverified lineage", "UNVERIFIED_CHANGES", `{"checkpointId":"ck-2","last_checkpoint_id":"ck-1","changedFiles":2}`, false},
		{"unverified bad id type", "UNVERIFIED_CHANGES", `{"checkpointId":7}`, true},
		{"unknown type", "FOCUS_LOST", `{}`, true},
		{"payload not object", "SESSION_START", `[]`, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Validator{}.Validate(wire(t, tc.typ, tc.payload, ""))
			if tc.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("err = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate: %v", err)
			}
		})
	}
}

func TestValidate_EnvelopeErrors(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(Wire)
	}{
		{"missing eventId", func(w Wire) { delete(w, "eventId") }},
		{"bad eventId", func(w Wire) { w["eventId"] = "not-a-uuid-not-a-uuid-not-a-uuid-xxxx" }},
		{"bad timestamp", func(w Wire) { w["timestamp"] = "yesterday" }},
		{"empty assignment", func(w Wire) { w["assignmentId"] = "" }},
		{"long assignment", func(w Wire) { w["assignmentId"] = strings.Repeat("a", 129) }},
		{"seq zero", func(w Wire) { w["seq"] = float64(0) }},
		{"seq over max", func(w Wire) { w["seq"] = float64(101) }},
		{"short signature", func(w Wire) { w["signature"] = "abcd" }},
		{"non-hex key", func(w Wire) { w["publicKey"] = strings.Repeat("zz", 32) }},
		{"course id not string", func(w Wire) { w["courseId"] = float64(1) }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := wire(t, "SESSION_START", `{}`, "")
			tc.mutate(w)
			if _, err := (Validator{MaxSeq: 100}).Validate(w); !errors.Is(err, ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestWire_SignedPayload(t *testing.T) {
	w := wire(t, "SESSION_END", `{"focusedSeconds":1200.0}`, `,"repoIdentifier":"org/repo"`)
	signed := w.SignedPayload()
	for _, k := range []string{"seq", "signature", "publicKey", "courseId", "commitSha"} {
		if _, ok := signed[k]; ok {
			t.Errorf("signed payload should not contain %q", k)
		}
	}
	if signed["repoIdentifier"] != "org/repo" {
		t.Errorf("repoIdentifier = %v", signed["repoIdentifier"])
	}
	if got := signed["payload"].(map[string]any)["focusedSeconds"]; got != json.Number("1200.0") {
		t.Errorf("focusedSeconds = %#v, want the wire number untouched", got)
	}
	if w.RawEventID() != "7B0C5A52-5F1E-4D36-9A1A-2F3B0B8F9E10" {
		t.Errorf("RawEventID = %q", w.RawEventID())
	}
	if (Wire{}).RawEventID() != "" {
		t.Error("RawEventID of empty wire should be empty")
	}
}
