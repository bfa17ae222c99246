package entity

import (
	"time"

	"github.com/google/uuid"
)

type Permission string

const (
	PermissionRead Permission = "read"
	PermissionEdit Permission = "edit"
)

type Tool struct {
	Position  int                    `json:"position"`
	Procedure string                 `json:"procedure"`
	Params    map[string]interface{} `json:"params,omitempty"`
}

type ProjectImage struct {
	ID          uuid.UUID `json:"id"`
	SourceKey   string    `json:"source_key"`
	SourceURI   string    `json:"source_uri"`
	OutputURI   string    `json:"output_uri,omitempty"`
	ContentHash string    `json:"content_hash"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
}

type ShareLink struct {
	ID         uuid.UUID  `json:"id"`
	Permission Permission `json:"permission"`
	Revoked    bool       `json:"revoked"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Project is the versioned aggregate every mutation goes through. Version is
// the compare-and-swap guard: it moves by exactly 1 per successful write.
type Project struct {
	ID      uuid.UUID `json:"id"`
	OwnerID uuid.UUID `json:"owner_id"`
	Name    string    `json:"name"`

	Tools      []Tool         `json:"tools"`
	Images     []ProjectImage `json:"images"`
	ShareLinks []ShareLink    `json:"share_links"`

	Version              int64 `json:"version"`
	ChargedAdvancedTools int   `json:"charged_advanced_tools"`
	PendingAdvancedOps   int   `json:"pending_advanced_ops"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AdvancedToolCount reports how many tools in the pipeline are metered.
func (p *Project) AdvancedToolCount() int {
	count := 0
	for _, t := range p.Tools {
		if proc, ok := LookupProcedure(t.Procedure); ok && proc.Advanced {
			count++
		}
	}

	return count
}

// NormalizePositions renumbers tools to a contiguous 0..n-1 sequence,
// keeping the current order.
func (p *Project) NormalizePositions() {
	for i := range p.Tools {
		p.Tools[i].Position = i
	}
}

// ClampCharged keeps chargedAdvancedTools within the number of advanced
// tools still present; the user may have removed tools after being charged.
func (p *Project) ClampCharged() {
	if total := p.AdvancedToolCount(); p.ChargedAdvancedTools > total {
		p.ChargedAdvancedTools = total
	}
}

func (p *Project) ImageByID(id uuid.UUID) (*ProjectImage, bool) {
	for i := range p.Images {
		if p.Images[i].ID == id {
			return &p.Images[i], true
		}
	}

	return nil, false
}

// HasEditAccess reports whether userID may mutate or run the project: the
// owner always can, others only through a live edit share link.
func (p *Project) HasEditAccess(userID uuid.UUID, shareLinkID *uuid.UUID) bool {
	if p.OwnerID == userID {
		return true
	}

	if shareLinkID == nil {
		return false
	}

	for _, link := range p.ShareLinks {
		if link.ID == *shareLinkID && !link.Revoked && link.Permission == PermissionEdit {
			return true
		}
	}

	return false
}
