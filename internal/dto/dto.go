package dto

import (
	"time"

	"github.com/google/uuid"
)

// ToolInput is the boundary shape of one pipeline tool.
type ToolInput struct {
	Procedure string                 `json:"procedure"`
	Params    map[string]interface{} `json:"params,omitempty"`
}

// RunInput identifies who triggers a run; the runner may differ from the
// owner under a shared-edit session.
type RunInput struct {
	RunnerID        uuid.UUID
	ShareLinkID     *uuid.UUID
	ExpectedVersion int64
}

// DispatchMessage is the queue contract towards a worker; the queue is named
// after the procedure.
type DispatchMessage struct {
	MessageID  string                 `json:"messageId"`
	Timestamp  time.Time              `json:"timestamp"`
	Procedure  string                 `json:"procedure"`
	Parameters map[string]interface{} `json:"parameters"`
}

const (
	ParamInputImageURI  = "inputImageURI"
	ParamOutputImageURI = "outputImageURI"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ResultMessage is consumed from the single results queue and correlated
// back to a Process by id.
type ResultMessage struct {
	CorrelationID string        `json:"correlationId"`
	Status        string        `json:"status"`
	Output        *ResultOutput `json:"output,omitempty"`
	Error         *ResultError  `json:"error,omitempty"`
}

type ResultOutput struct {
	ImageURI string `json:"imageURI"`
	Type     string `json:"type"`
}

type ResultError struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// Real-time notification events pushed to the fan-out collaborator.
const (
	EventProcessUpdate  = "process-update"
	EventProcessError   = "process-error"
	EventPreviewReady   = "preview-ready"
	EventPreviewError   = "preview-error"
	EventProjectUpdated = "project-updated"
)

type ProcessUpdatePayload struct {
	MessageID string `json:"msgId"`
}

type ProcessErrorPayload struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

type PreviewReadyPayload struct {
	ImageURL    string   `json:"imageUrl"`
	TextResults []string `json:"textResults"`
}

type ProjectUpdatedPayload struct {
	ProjectID uuid.UUID `json:"projectId"`
	Version   int64     `json:"version"`
}
