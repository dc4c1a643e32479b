package domain

import (
	"fmt"
	"time"
)

// Conflict is a recorded divergence between an external edit and the store.
// It stays until resolved explicitly.
type Conflict struct {
	CellID       CellID       `json:"cell_id"`
	ShortID      string       `json:"short_id"`
	Kind         ConflictKind `json:"kind"`
	ArtifactPath string       `json:"artifact_path"`
	ExternalPath string       `json:"external_path"`
	OriginalHash string       `json:"original_hash"`
	InAppHash    string       `json:"in_app_hash"`
	ExternalHash string       `json:"external_hash"`
	DetectedAt   time.Time    `json:"detected_at"`
}

// ConflictKind says how the two versions came to diverge.
type ConflictKind string

// Conflict kinds.
const (
	// ConflictExternalModification is a tracked file that changed on disk
	// without the editor writing it, while the store also changed.
	ConflictExternalModification ConflictKind = "external_modification"

	// ConflictConcurrentEdit is an editor working on a private copy while
	// the cell was changed in-app.
	ConflictConcurrentEdit ConflictKind = "concurrent_edit"

	// ConflictExternalEditor is an editor saving a tracked file in place
	// while the store also changed.
	ConflictExternalEditor ConflictKind = "external_editor"
)

// IsValid reports whether k is a known kind.
func (k ConflictKind) IsValid() bool {
	switch k {
	case ConflictExternalModification, ConflictConcurrentEdit, ConflictExternalEditor:
		return true
	default:
		return false
	}
}

// ClassifyConflict names the kind of a divergence found after an edit.
// inPlace is true when the editor worked on the tracked file itself and
// saves counts the writes observed from it.
func ClassifyConflict(inPlace bool, saves int) ConflictKind {
	switch {
	case !inPlace:
		return ConflictConcurrentEdit
	case saves == 0:
		return ConflictExternalModification
	default:
		return ConflictExternalEditor
	}
}

// ConflictResolution picks which side of a conflict survives.
type ConflictResolution string

// Resolutions.
const (
	// KeepExternal writes the editor's version into the cell.
	KeepExternal ConflictResolution = "external"

	// KeepInternal keeps the in-app version and discards the editor's.
	KeepInternal ConflictResolution = "internal"
)

// ParseConflictResolution converts user input into a ConflictResolution.
func ParseConflictResolution(s string) (ConflictResolution, error) {
	switch ConflictResolution(s) {
	case KeepExternal, KeepInternal:
		return ConflictResolution(s), nil
	default:
		return "", fmt.Errorf("%w: resolution must be %q or %q", ErrInvalidInput, KeepExternal, KeepInternal)
	}
}

// Conflict artifact delimiters.
const (
	ConflictMarkerInApp    = "<<<<<<< in-app"
	ConflictMarkerSplit    = "======="
	ConflictMarkerExternal = ">>>>>>> external"
)

// FormatConflictArtifact lays out both versions between the conflict markers.
func FormatConflictArtifact(inApp, external []byte) []byte {
	out := make([]byte, 0, len(inApp)+len(external)+64)
	out = append(out, ConflictMarkerInApp...)
	out = append(out, '\n')
	out = appendLine(out, inApp)
	out = append(out, ConflictMarkerSplit...)
	out = append(out, '\n')
	out = appendLine(out, external)
	out = append(out, ConflictMarkerExternal...)
	out = append(out, '\n')
	return out
}

func appendLine(dst, b []byte) []byte {
	dst = append(dst, b...)
	if len(b) > 0 && b[len(b)-1] != '\n' {
		dst = append(dst, '\n')
	}
	return dst
}
