package quota

import (
	"context"
	"fmt"

	"github.com/andreyxaxa/Photo-Pipeline/internal/entity"
	"github.com/andreyxaxa/Photo-Pipeline/internal/repo"
	"github.com/andreyxaxa/Photo-Pipeline/pkg/logger"
	"github.com/andreyxaxa/Photo-Pipeline/pkg/types/errs"
	"github.com/google/uuid"
)

// QuotaUseCase settles metered advanced-tool usage before a run starts and
// compensates it on cancel.
type QuotaUseCase struct {
	projectRepo repo.ProjectRepo
	quotaAPI    repo.QuotaAPI

	logger logger.Interface
}

func New(projectRepo repo.ProjectRepo, quotaAPI repo.QuotaAPI, l logger.Interface) *QuotaUseCase {
	return &QuotaUseCase{
		projectRepo: projectRepo,
		quotaAPI:    quotaAPI,
		logger:      l,
	}
}

// Reconcile computes how many billable operations the run still needs and
// charges them for the runner. Nothing is dispatched and the aggregate stays
// untouched if the authority denies.
func (uc *QuotaUseCase) Reconcile(
	ctx context.Context,
	project *entity.Project,
	runnerID uuid.UUID,
	imageCount int,
	expectedVersion int64,
) (*entity.Project, error) {
	totalAdvanced := project.AdvancedToolCount()

	// пользователь мог удалить advanced-инструменты после списания
	charged := project.ChargedAdvancedTools
	if charged > totalAdvanced {
		charged = totalAdvanced
	}

	newlyNeeded := totalAdvanced - charged
	opsToSpend := newlyNeeded * imageCount

	if opsToSpend == 0 {
		// внешний вызов не нужен, фиксируем только дрейф
		if charged == project.ChargedAdvancedTools {
			return project, nil
		}

		updated, err := uc.projectRepo.Update(ctx, project.OwnerID, project.ID, expectedVersion, func(p *entity.Project) error {
			p.ChargedAdvancedTools = charged

			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("QuotaUseCase - Reconcile - uc.projectRepo.Update: %w", err)
		}

		return updated, nil
	}

	allowed, err := uc.quotaAPI.CanSpend(ctx, runnerID, opsToSpend)
	if err != nil {
		return nil, fmt.Errorf("QuotaUseCase - Reconcile - uc.quotaAPI.CanSpend: %w", err)
	}
	if !allowed {
		return nil, fmt.Errorf("QuotaUseCase - Reconcile: %w", errs.ErrQuotaDenied)
	}

	updated, err := uc.projectRepo.Update(ctx, project.OwnerID, project.ID, expectedVersion, func(p *entity.Project) error {
		p.ChargedAdvancedTools = charged + newlyNeeded
		p.PendingAdvancedOps = opsToSpend

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("QuotaUseCase - Reconcile - uc.projectRepo.Update: %w", err)
	}

	return updated, nil
}

// RefundPending compensates the in-flight charge on cancellation. The refund
// call is best-effort: a failure is logged and local cleanup proceeds.
func (uc *QuotaUseCase) RefundPending(ctx context.Context, ownerID, projectID, runnerID uuid.UUID) error {
	project, err := uc.projectRepo.GetByID(ctx, ownerID, projectID)
	if err != nil {
		return fmt.Errorf("QuotaUseCase - RefundPending - uc.projectRepo.GetByID: %w", err)
	}

	if project.PendingAdvancedOps == 0 {
		return nil
	}

	if err := uc.quotaAPI.Refund(ctx, runnerID, project.PendingAdvancedOps); err != nil {
		uc.logger.Error(err, "QuotaUseCase - RefundPending - uc.quotaAPI.Refund")
	}

	_, err = uc.projectRepo.UpdateAny(ctx, ownerID, projectID, func(p *entity.Project) error {
		p.PendingAdvancedOps = 0

		return nil
	})
	if err != nil {
		return fmt.Errorf("QuotaUseCase - RefundPending - uc.projectRepo.UpdateAny: %w", err)
	}

	return nil
}
