package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/andreyxaxa/Photo-Pipeline/internal/entity"
	"github.com/andreyxaxa/Photo-Pipeline/internal/repo"
	"github.com/andreyxaxa/Photo-Pipeline/pkg/logger"
	"github.com/andreyxaxa/Photo-Pipeline/pkg/types/errs"
	"github.com/google/uuid"
)

// PresenceUseCase bounds how many editors may be active on one project at a
// time. Premium owners are exempt from the limit.
type PresenceUseCase struct {
	presenceRepo repo.PresenceRepo
	quotaAPI     repo.QuotaAPI

	window time.Duration
	limit  int

	logger logger.Interface
}

func New(presenceRepo repo.PresenceRepo, quotaAPI repo.QuotaAPI, window time.Duration, limit int, l logger.Interface) *PresenceUseCase {
	return &PresenceUseCase{
		presenceRepo: presenceRepo,
		quotaAPI:     quotaAPI,
		window:       window,
		limit:        limit,
		logger:       l,
	}
}

// EnsureSlot refreshes the editor's heartbeat and admits them while the live
// editor count stays within the owner's tier limit. On denial the returned
// error carries the current active count and the limit.
func (uc *PresenceUseCase) EnsureSlot(ctx context.Context, ownerID, projectID, editorID uuid.UUID) (int, error) {
	tier, err := uc.quotaAPI.Tier(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("PresenceUseCase - EnsureSlot - uc.quotaAPI.Tier: %w", err)
	}

	limit := uc.limit
	if tier == entity.TierPremium {
		limit = 0
	}

	active, admitted, err := uc.presenceRepo.EnsureSlot(ctx, ownerID, projectID, editorID, uc.window, limit)
	if err != nil {
		return 0, fmt.Errorf("PresenceUseCase - EnsureSlot - uc.presenceRepo.EnsureSlot: %w", err)
	}

	if !admitted {
		return active, &errs.EditorLimitError{Active: active, Limit: limit}
	}

	return active, nil
}
