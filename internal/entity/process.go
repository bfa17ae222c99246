package entity

import (
	"time"

	"github.com/google/uuid"
)

// PreviewMessagePrefix distinguishes preview-run correlation ids from full-run
// ones on the results queue.
const PreviewMessagePrefix = "preview-"

// Process is the ephemeral token for one in-flight pipeline step of one
// image. It is created right before the dispatch and deleted when the
// matching result message arrives; a lookup miss means the run was cancelled
// and the result is dropped.
type Process struct {
	MessageID string    `json:"message_id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	RunnerID  uuid.UUID `json:"runner_id"`
	ProjectID uuid.UUID `json:"project_id"`
	ImageID   uuid.UUID `json:"image_id"`

	CurPos    int    `json:"cur_pos"`
	InputURI  string `json:"input_uri"`
	OutputURI string `json:"output_uri"`

	Preview   bool      `json:"preview"`
	CreatedAt time.Time `json:"created_at"`
}

func NewMessageID(preview bool) string {
	id := uuid.NewString()
	if preview {
		return PreviewMessagePrefix + id
	}

	return id
}
