package repo

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/andreyxaxa/Photo-Pipeline/internal/entity"
	"github.com/google/uuid"
)

// Blob stages mirror the pipeline: uploaded sources, intermediate step
// outputs, final results, preview results.
const (
	StageSources  = "sources"
	StageSteps    = "steps"
	StageResults  = "results"
	StagePreviews = "previews"
)

// BlobRef addresses one object in the blob store by (owner, project, stage, key).
type BlobRef struct {
	OwnerID   uuid.UUID
	ProjectID uuid.UUID
	Stage     string
	Key       string
}

func (r BlobRef) Path() string {
	return fmt.Sprintf("%s/%s/%s/%s", r.OwnerID, r.ProjectID, r.Stage, r.Key)
}

type (
	ProjectRepo interface {
		Create(ctx context.Context, project *entity.Project) error
		GetByID(ctx context.Context, ownerID, projectID uuid.UUID) (*entity.Project, error)
		ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*entity.Project, error)
		// Update applies mutate and bumps version by 1 only while the stored
		// version still equals expectedVersion; otherwise it returns
		// errs.ConflictError with the server's current version.
		Update(ctx context.Context, ownerID, projectID uuid.UUID, expectedVersion int64, mutate func(*entity.Project) error) (*entity.Project, error)
		// UpdateAny is the orchestrator-internal variant without a client
		// expectation: it retries the swap against the latest version.
		UpdateAny(ctx context.Context, ownerID, projectID uuid.UUID, mutate func(*entity.Project) error) (*entity.Project, error)
		Delete(ctx context.Context, ownerID, projectID uuid.UUID, expectedVersion int64) error
	}

	ProcessRepo interface {
		Create(ctx context.Context, process *entity.Process) error
		GetByMessageID(ctx context.Context, messageID string) (*entity.Process, error)
		GetAnyByProject(ctx context.Context, projectID uuid.UUID) (*entity.Process, error)
		// Delete is idempotent: deleting a missing process is a no-op.
		Delete(ctx context.Context, messageID string) error
		DeleteByProject(ctx context.Context, projectID uuid.UUID) (int64, error)
		CountByRun(ctx context.Context, projectID uuid.UUID, preview bool) (int64, error)
	}

	ResultRepo interface {
		Upsert(ctx context.Context, result *entity.Result) error
		ListByProject(ctx context.Context, projectID uuid.UUID, kind entity.ResultKind) ([]*entity.Result, error)
		DeleteByProject(ctx context.Context, projectID uuid.UUID) error
	}

	PreviewCacheRepo interface {
		Get(ctx context.Context, ownerID uuid.UUID, cacheKey string) (*entity.PreviewCacheEntry, error)
		Upsert(ctx context.Context, entry *entity.PreviewCacheEntry) error
		IncrementHit(ctx context.Context, ownerID uuid.UUID, cacheKey string) error
	}

	BlobRepo interface {
		Upload(ctx context.Context, ref BlobRef, data io.Reader, contentType string, size int64) error
		Download(ctx context.Context, ref BlobRef) (io.ReadCloser, error)
		Delete(ctx context.Context, ref BlobRef) error
		Copy(ctx context.Context, src, dst BlobRef) error
		DeleteProject(ctx context.Context, ownerID, projectID uuid.UUID) error
		PresignGet(ctx context.Context, ref BlobRef, ttl time.Duration) (string, error)
		PresignPut(ctx context.Context, ref BlobRef, ttl time.Duration) (string, error)
	}

	PresenceRepo interface {
		// EnsureSlot purges heartbeats older than window, refreshes an
		// existing editor, or admits a new one while the live count stays
		// below limit. limit <= 0 means unlimited.
		EnsureSlot(ctx context.Context, ownerID, projectID, editorID uuid.UUID, window time.Duration, limit int) (active int, admitted bool, err error)
		Clear(ctx context.Context, ownerID, projectID uuid.UUID) error
	}

	QuotaAPI interface {
		CanSpend(ctx context.Context, userID uuid.UUID, n int) (bool, error)
		Refund(ctx context.Context, userID uuid.UUID, n int) error
		Tier(ctx context.Context, userID uuid.UUID) (entity.Tier, error)
	}

	Transactor interface {
		WithinTransaction(ctx context.Context, f func(ctx context.Context) error) error
	}
)
