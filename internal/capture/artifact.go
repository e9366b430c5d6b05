package capture

import (
	"time"

	"github.com/google/uuid"
)

// ArtifactKind enumerates the artifact kinds the bridge produces.
type ArtifactKind string

// Artifact kinds.
const (
	ArtifactStill ArtifactKind = "still"
	ArtifactClip  ArtifactKind = "clip"
)

// Artifact is a captured still or recorded clip. Ownership transfers to the
// caller once returned; the bridge never retains artifacts.
type Artifact struct {
	ID        string
	Kind      ArtifactKind
	MIME      string
	Data      []byte
	CreatedAt time.Time
}

func newArtifact(kind ArtifactKind, mime string, data []byte) *Artifact {
	return &Artifact{
		ID:        uuid.New().String(),
		Kind:      kind,
		MIME:      mime,
		Data:      data,
		CreatedAt: time.Now(),
	}
}
