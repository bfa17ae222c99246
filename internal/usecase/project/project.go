package project

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/andreyxaxa/Photo-Pipeline/internal/dto"
	"github.com/andreyxaxa/Photo-Pipeline/internal/entity"
	"github.com/andreyxaxa/Photo-Pipeline/internal/repo"
	"github.com/andreyxaxa/Photo-Pipeline/pkg/logger"
	"github.com/google/uuid"
)

type ProjectUseCase struct {
	projectRepo repo.ProjectRepo
	processRepo repo.ProcessRepo
	resultRepo  repo.ResultRepo
	blobRepo    repo.BlobRepo
	presence    repo.PresenceRepo
	transactor  repo.Transactor

	logger logger.Interface
}

func New(
	projectRepo repo.ProjectRepo,
	processRepo repo.ProcessRepo,
	resultRepo repo.ResultRepo,
	blobRepo repo.BlobRepo,
	presence repo.PresenceRepo,
	transactor repo.Transactor,
	l logger.Interface,
) *ProjectUseCase {
	return &ProjectUseCase{
		projectRepo: projectRepo,
		processRepo: processRepo,
		resultRepo:  resultRepo,
		blobRepo:    blobRepo,
		presence:    presence,
		transactor:  transactor,
		logger:      l,
	}
}

func (uc *ProjectUseCase) CreateProject(ctx context.Context, ownerID uuid.UUID, name string) (*entity.Project, error) {
	now := time.Now()
	project := &entity.Project{
		ID:         uuid.New(),
		OwnerID:    ownerID,
		Name:       name,
		Tools:      []entity.Tool{},
		Images:     []entity.ProjectImage{},
		ShareLinks: []entity.ShareLink{},
		Version:    0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := uc.projectRepo.Create(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("ProjectUseCase - CreateProject - uc.projectRepo.Create: %w", err)
	}

	return project, nil
}

func (uc *ProjectUseCase) GetProject(ctx context.Context, ownerID, projectID uuid.UUID) (*entity.Project, error) {
	project, err := uc.projectRepo.GetByID(ctx, ownerID, projectID)
	if err != nil {
		return nil, fmt.Errorf("ProjectUseCase - GetProject - uc.projectRepo.GetByID: %w", err)
	}

	return project, nil
}

func (uc *ProjectUseCase) ListProjects(ctx context.Context, ownerID uuid.UUID) ([]*entity.Project, error) {
	projects, err := uc.projectRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("ProjectUseCase - ListProjects - uc.projectRepo.ListByOwner: %w", err)
	}

	return projects, nil
}

func (uc *ProjectUseCase) RenameProject(ctx context.Context, ownerID, projectID uuid.UUID, name string, expectedVersion int64) (*entity.Project, error) {
	project, err := uc.projectRepo.Update(ctx, ownerID, projectID, expectedVersion, func(p *entity.Project) error {
		p.Name = name

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ProjectUseCase - RenameProject - uc.projectRepo.Update: %w", err)
	}

	return project, nil
}

func (uc *ProjectUseCase) AddTool(ctx context.Context, ownerID, projectID uuid.UUID, tool dto.ToolInput, expectedVersion int64) (*entity.Project, error) {
	if err := entity.ValidateTool(tool.Procedure, tool.Params); err != nil {
		return nil, fmt.Errorf("ProjectUseCase - AddTool: %w", err)
	}

	project, err := uc.projectRepo.Update(ctx, ownerID, projectID, expectedVersion, func(p *entity.Project) error {
		p.Tools = append(p.Tools, entity.Tool{
			Procedure: tool.Procedure,
			Params:    tool.Params,
		})
		p.NormalizePositions()

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ProjectUseCase - AddTool - uc.projectRepo.Update: %w", err)
	}

	return project, nil
}

func (uc *ProjectUseCase) RemoveTool(ctx context.Context, ownerID, projectID uuid.UUID, position int, expectedVersion int64) (*entity.Project, error) {
	project, err := uc.projectRepo.Update(ctx, ownerID, projectID, expectedVersion, func(p *entity.Project) error {
		if position < 0 || position >= len(p.Tools) {
			return fmt.Errorf("position %d out of range", position)
		}

		p.Tools = append(p.Tools[:position], p.Tools[position+1:]...)
		p.NormalizePositions()
		// удаление advanced-инструмента не возвращает средства, но заряд не
		// может превышать то, что осталось в пайплайне
		p.ClampCharged()

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ProjectUseCase - RemoveTool - uc.projectRepo.Update: %w", err)
	}

	return project, nil
}

func (uc *ProjectUseCase) ReorderTools(ctx context.Context, ownerID, projectID uuid.UUID, order []int, expectedVersion int64) (*entity.Project, error) {
	project, err := uc.projectRepo.Update(ctx, ownerID, projectID, expectedVersion, func(p *entity.Project) error {
		if len(order) != len(p.Tools) {
			return fmt.Errorf("order length %d does not match tool count %d", len(order), len(p.Tools))
		}

		reordered := make([]entity.Tool, 0, len(p.Tools))
		seen := make(map[int]bool, len(order))
		for _, pos := range order {
			if pos < 0 || pos >= len(p.Tools) || seen[pos] {
				return fmt.Errorf("order is not a permutation of current positions")
			}
			seen[pos] = true
			reordered = append(reordered, p.Tools[pos])
		}

		p.Tools = reordered
		p.NormalizePositions()

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ProjectUseCase - ReorderTools - uc.projectRepo.Update: %w", err)
	}

	return project, nil
}

func (uc *ProjectUseCase) AddImage(
	ctx context.Context,
	ownerID, projectID uuid.UUID,
	data io.Reader,
	fileName, contentType string,
	size int64,
	expectedVersion int64,
) (*entity.Project, error) {
	imageID := uuid.New()
	ref := repo.BlobRef{
		OwnerID:   ownerID,
		ProjectID: projectID,
		Stage:     repo.StageSources,
		Key:       imageID.String(),
	}

	// hash while streaming so byte-identical re-uploads produce the same
	// content hash for the preview cache
	hasher := sha256.New()
	err := uc.blobRepo.Upload(ctx, ref, io.TeeReader(data, hasher), contentType, size)
	if err != nil {
		return nil, fmt.Errorf("ProjectUseCase - AddImage - uc.blobRepo.Upload: %w", err)
	}

	image := entity.ProjectImage{
		ID:          imageID,
		SourceKey:   ref.Key,
		ContentHash: hex.EncodeToString(hasher.Sum(nil)),
		FileName:    fileName,
		ContentType: contentType,
		Size:        size,
	}

	project, err := uc.projectRepo.Update(ctx, ownerID, projectID, expectedVersion, func(p *entity.Project) error {
		p.Images = append(p.Images, image)

		return nil
	})
	if err != nil {
		// aggregate update lost, the uploaded blob is orphaned
		deleteErr := uc.blobRepo.Delete(ctx, ref)
		if deleteErr != nil {
			uc.logger.Error(deleteErr, "ProjectUseCase - AddImage - uc.blobRepo.Delete")
		}
		return nil, fmt.Errorf("ProjectUseCase - AddImage - uc.projectRepo.Update: %w", err)
	}

	return project, nil
}

func (uc *ProjectUseCase) RemoveImage(ctx context.Context, ownerID, projectID, imageID uuid.UUID, expectedVersion int64) (*entity.Project, error) {
	var removed *entity.ProjectImage

	project, err := uc.projectRepo.Update(ctx, ownerID, projectID, expectedVersion, func(p *entity.Project) error {
		for i := range p.Images {
			if p.Images[i].ID == imageID {
				img := p.Images[i]
				removed = &img
				p.Images = append(p.Images[:i], p.Images[i+1:]...)

				return nil
			}
		}

		return fmt.Errorf("image %s not found", imageID)
	})
	if err != nil {
		return nil, fmt.Errorf("ProjectUseCase - RemoveImage - uc.projectRepo.Update: %w", err)
	}

	err = uc.blobRepo.Delete(ctx, repo.BlobRef{
		OwnerID:   ownerID,
		ProjectID: projectID,
		Stage:     repo.StageSources,
		Key:       removed.SourceKey,
	})
	if err != nil {
		uc.logger.Warn("failed to delete source key=%s, error=%v", removed.SourceKey, err)
	}

	return project, nil
}

func (uc *ProjectUseCase) CreateShareLink(ctx context.Context, ownerID, projectID uuid.UUID, permission entity.Permission, expectedVersion int64) (*entity.Project, error) {
	if permission != entity.PermissionRead && permission != entity.PermissionEdit {
		return nil, fmt.Errorf("ProjectUseCase - CreateShareLink - unknown permission %q", permission)
	}

	project, err := uc.projectRepo.Update(ctx, ownerID, projectID, expectedVersion, func(p *entity.Project) error {
		p.ShareLinks = append(p.ShareLinks, entity.ShareLink{
			ID:         uuid.New(),
			Permission: permission,
			CreatedAt:  time.Now(),
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ProjectUseCase - CreateShareLink - uc.projectRepo.Update: %w", err)
	}

	return project, nil
}

func (uc *ProjectUseCase) RevokeShareLink(ctx context.Context, ownerID, projectID, linkID uuid.UUID, expectedVersion int64) (*entity.Project, error) {
	project, err := uc.projectRepo.Update(ctx, ownerID, projectID, expectedVersion, func(p *entity.Project) error {
		for i := range p.ShareLinks {
			if p.ShareLinks[i].ID == linkID {
				p.ShareLinks[i].Revoked = true

				return nil
			}
		}

		return fmt.Errorf("share link %s not found", linkID)
	})
	if err != nil {
		return nil, fmt.Errorf("ProjectUseCase - RevokeShareLink - uc.projectRepo.Update: %w", err)
	}

	return project, nil
}

// DeleteProject removes the aggregate under the same version guard as any
// other mutation; processes and results go in the same transaction. Blob and
// presence cleanup is best-effort once the rows are gone.
func (uc *ProjectUseCase) DeleteProject(ctx context.Context, ownerID, projectID uuid.UUID, expectedVersion int64) error {
	// агрегат и зависимые строки удаляем в одной транзакции
	err := uc.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := uc.projectRepo.Delete(ctx, ownerID, projectID, expectedVersion); err != nil {
			return fmt.Errorf("uc.projectRepo.Delete: %w", err)
		}

		if _, err := uc.processRepo.DeleteByProject(ctx, projectID); err != nil {
			return fmt.Errorf("uc.processRepo.DeleteByProject: %w", err)
		}

		if err := uc.resultRepo.DeleteByProject(ctx, projectID); err != nil {
			return fmt.Errorf("uc.resultRepo.DeleteByProject: %w", err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("ProjectUseCase - DeleteProject - uc.transactor.WithinTransaction: %w", err)
	}

	if err := uc.blobRepo.DeleteProject(ctx, ownerID, projectID); err != nil {
		uc.logger.Warn("failed to delete blobs for project=%s, error=%v", projectID, err)
	}

	if err := uc.presence.Clear(ctx, ownerID, projectID); err != nil {
		uc.logger.Warn("failed to clear presence for project=%s, error=%v", projectID, err)
	}

	return nil
}

func (uc *ProjectUseCase) ListResults(ctx context.Context, ownerID, projectID uuid.UUID, kind entity.ResultKind) ([]*entity.Result, error) {
	if _, err := uc.projectRepo.GetByID(ctx, ownerID, projectID); err != nil {
		return nil, fmt.Errorf("ProjectUseCase - ListResults - uc.projectRepo.GetByID: %w", err)
	}

	results, err := uc.resultRepo.ListByProject(ctx, projectID, kind)
	if err != nil {
		return nil, fmt.Errorf("ProjectUseCase - ListResults - uc.resultRepo.ListByProject: %w", err)
	}

	return results, nil
}
