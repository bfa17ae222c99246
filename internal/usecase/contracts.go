package usecase

import (
	"context"
	"io"

	"github.com/andreyxaxa/Photo-Pipeline/internal/dto"
	"github.com/andreyxaxa/Photo-Pipeline/internal/entity"
	"github.com/google/uuid"
)

type (
	// ProjectUseCase covers every aggregate mutation; all of them go through
	// the compare-and-swap update with the caller's expected version.
	ProjectUseCase interface {
		CreateProject(ctx context.Context, ownerID uuid.UUID, name string) (*entity.Project, error)
		GetProject(ctx context.Context, ownerID, projectID uuid.UUID) (*entity.Project, error)
		ListProjects(ctx context.Context, ownerID uuid.UUID) ([]*entity.Project, error)
		RenameProject(ctx context.Context, ownerID, projectID uuid.UUID, name string, expectedVersion int64) (*entity.Project, error)
		AddTool(ctx context.Context, ownerID, projectID uuid.UUID, tool dto.ToolInput, expectedVersion int64) (*entity.Project, error)
		RemoveTool(ctx context.Context, ownerID, projectID uuid.UUID, position int, expectedVersion int64) (*entity.Project, error)
		ReorderTools(ctx context.Context, ownerID, projectID uuid.UUID, order []int, expectedVersion int64) (*entity.Project, error)
		AddImage(ctx context.Context, ownerID, projectID uuid.UUID, data io.Reader, fileName, contentType string, size int64, expectedVersion int64) (*entity.Project, error)
		RemoveImage(ctx context.Context, ownerID, projectID, imageID uuid.UUID, expectedVersion int64) (*entity.Project, error)
		CreateShareLink(ctx context.Context, ownerID, projectID uuid.UUID, permission entity.Permission, expectedVersion int64) (*entity.Project, error)
		RevokeShareLink(ctx context.Context, ownerID, projectID, linkID uuid.UUID, expectedVersion int64) (*entity.Project, error)
		DeleteProject(ctx context.Context, ownerID, projectID uuid.UUID, expectedVersion int64) error
		ListResults(ctx context.Context, ownerID, projectID uuid.UUID, kind entity.ResultKind) ([]*entity.Result, error)
	}

	// PipelineUseCase drives images through the tool chain step by step and
	// consumes worker results.
	PipelineUseCase interface {
		Run(ctx context.Context, ownerID, projectID uuid.UUID, in dto.RunInput) error
		Preview(ctx context.Context, ownerID, projectID, imageID uuid.UUID, in dto.RunInput) error
		HandleResult(ctx context.Context, msg dto.ResultMessage) error
		Cancel(ctx context.Context, ownerID, projectID uuid.UUID) error
	}

	// QuotaUseCase reconciles metered advanced-tool usage against the
	// billing authority.
	QuotaUseCase interface {
		Reconcile(ctx context.Context, project *entity.Project, runnerID uuid.UUID, imageCount int, expectedVersion int64) (*entity.Project, error)
		RefundPending(ctx context.Context, ownerID, projectID, runnerID uuid.UUID) error
	}

	// PresenceUseCase bounds concurrent editors on non-premium projects.
	PresenceUseCase interface {
		EnsureSlot(ctx context.Context, ownerID, projectID, editorID uuid.UUID) (int, error)
	}
)
