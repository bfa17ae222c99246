package response

import "github.com/andreyxaxa/Photo-Pipeline/internal/entity"

type Error struct {
	Message string `json:"message"`
}

// Conflict is returned on a version mismatch so the client can refetch and
// retry with the server's version.
type Conflict struct {
	Message       string `json:"message"`
	ServerVersion int64  `json:"serverVersion"`
}

// EditorLimit is returned when the project is at editor capacity.
type EditorLimit struct {
	Message string `json:"message"`
	Active  int    `json:"active"`
	Limit   int    `json:"limit"`
}

type Project struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
	Name    string `json:"name"`

	Tools      []entity.Tool         `json:"tools"`
	Images     []entity.ProjectImage `json:"images"`
	ShareLinks []entity.ShareLink    `json:"share_links"`

	Version              int64 `json:"version"`
	ChargedAdvancedTools int   `json:"charged_advanced_tools"`
	PendingAdvancedOps   int   `json:"pending_advanced_ops"`

	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func NewProject(p *entity.Project) Project {
	return Project{
		ID:                   p.ID.String(),
		OwnerID:              p.OwnerID.String(),
		Name:                 p.Name,
		Tools:                p.Tools,
		Images:               p.Images,
		ShareLinks:           p.ShareLinks,
		Version:              p.Version,
		ChargedAdvancedTools: p.ChargedAdvancedTools,
		PendingAdvancedOps:   p.PendingAdvancedOps,
		CreatedAt:            p.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:            p.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

type Result struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Type      string `json:"type"`
	FileName  string `json:"file_name"`
	BlobKey   string `json:"blob_key"`
	ImageID   string `json:"image_id"`
	CreatedAt string `json:"created_at"`
}

func NewResult(r *entity.Result) Result {
	return Result{
		ID:        r.ID.String(),
		Kind:      string(r.Kind),
		Type:      string(r.Type),
		FileName:  r.FileName,
		BlobKey:   r.BlobKey,
		ImageID:   r.ImageID.String(),
		CreatedAt: r.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

type Presence struct {
	Active int `json:"active"`
}
