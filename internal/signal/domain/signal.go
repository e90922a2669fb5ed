package domain

import (
	"encoding/json"
	"time"
)

// Type tags a signal and selects its payload schema.
type Type string

const (
	TypeSessionStart      Type = "SESSION_START"
	TypeSessionEnd        Type = "SESSION_END"
	TypeEditBurst         Type = "EDIT_BURST"
	TypeCheckpointCreated Type = "CHECKPOINT_CREATED"
	TypeUnverifiedChanges Type = "UNVERIFIED_CHANGES"
)

// Valid reports whether t is one of the known signal types.
func (t Type) Valid() bool {
	switch t {
	case TypeSessionStart, TypeSessionEnd, TypeEditBurst, TypeCheckpointCreated, TypeUnverifiedChanges:
		return true
	}
	return false
}

// Payload is the closed set of typed signal bodies. Only this package's types implement it.
type Payload interface {
	SignalType() Type
}

// SessionStart opens an editor session.
type SessionStart struct {
	EditorVersion    string `json:"editorVersion,omitempty"`
	ExtensionVersion string `json:"extensionVersion,omitempty"`
}

// SessionEnd closes a session and reports how long the editor was focused.
type SessionEnd struct {
	FocusedSeconds  int64  `json:"focusedSeconds"`
	DurationSeconds *int64 `json:"durationSeconds,omitempty"`
}

// EditBurst summarizes a run of edits.
type EditBurst struct {
	FilePath      string `json:"filePath,omitempty"`
	CharsInserted int64  `json:"charsInserted"`
	CharsDeleted  int64  `json:"charsDeleted"`
	DurationMs    *int64 `json:"durationMs,omitempty"`
}

// CheckpointCreated reports a new client-side verified checkpoint.
type CheckpointCreated struct {
	CheckpointID string `json:"checkpointId"`
	FileCount    *int64 `json:"fileCount,omitempty"`
}

// UnverifiedChanges reports work that is not covered by a verified checkpoint.
// CheckpointID nil means the client no longer has any local checkpoint.
type UnverifiedChanges struct {
	CheckpointID     *string `json:"checkpointId"`
	LastCheckpointID *string `json:"last_checkpoint_id,omitempty"`
	ChangedFiles     *int64  `json:"changedFiles,omitempty"`
}

func (SessionStart) SignalType() Type      { return TypeSessionStart }
func (SessionEnd) SignalType() Type        { return TypeSessionEnd }
func (EditBurst) SignalType() Type         { return TypeEditBurst }
func (CheckpointCreated) SignalType() Type { return TypeCheckpointCreated }
func (UnverifiedChanges) SignalType() Type { return TypeUnverifiedChanges }

// Signal is a validated integrity event from a device.
type Signal struct {
	EventID        string
	SessionID      string
	AssignmentID   string
	Type           Type
	Timestamp      time.Time
	Payload        Payload
	CourseID       *string
	CommitSHA      *string
	RepoIdentifier *string
	Seq            int64
	Signature      string
	PublicKey      string
}

// DeclaredCheckpointID returns the checkpoint id the signal declares and whether the type declares one at all.
// CHECKPOINT_CREATED always declares its id; UNVERIFIED_CHANGES may declare null.
func (s *Signal) DeclaredCheckpointID() (id *string, declares bool) {
	switch p := s.Payload.(type) {
	case CheckpointCreated:
		return &p.CheckpointID, true
	case UnverifiedChanges:
		return p.CheckpointID, true
	}
	return nil, false
}

// PayloadJSON returns the typed payload as stored JSON.
func (s *Signal) PayloadJSON() ([]byte, error) {
	return json.Marshal(s.Payload)
}
