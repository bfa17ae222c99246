package entity

import (
	"time"

	"github.com/google/uuid"
)

type ResultKind string

const (
	KindResult  ResultKind = "result"
	KindPreview ResultKind = "preview"
)

// Result is the terminal artifact of a finished chain for one image. The
// next run of the same kind supersedes it.
type Result struct {
	ID        uuid.UUID  `json:"id"`
	Kind      ResultKind `json:"kind"`
	Type      OutputType `json:"type"`
	FileName  string     `json:"file_name"`
	BlobKey   string     `json:"blob_key"`
	ImageID   uuid.UUID  `json:"image_id"`
	ProjectID uuid.UUID  `json:"project_id"`
	OwnerID   uuid.UUID  `json:"owner_id"`
	CreatedAt time.Time  `json:"created_at"`
}
