package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/andreyxaxa/Photo-Pipeline/internal/dto"
	"github.com/andreyxaxa/Photo-Pipeline/internal/entity"
	"github.com/andreyxaxa/Photo-Pipeline/internal/infrastructure"
	"github.com/andreyxaxa/Photo-Pipeline/internal/repo"
	"github.com/andreyxaxa/Photo-Pipeline/internal/usecase"
	"github.com/andreyxaxa/Photo-Pipeline/pkg/logger"
	"github.com/andreyxaxa/Photo-Pipeline/pkg/types/errs"
	"github.com/google/uuid"
)

// PipelineUseCase is the per-image step state machine: it dispatches one
// step at a time and advances on the matching result message.
type PipelineUseCase struct {
	projectRepo repo.ProjectRepo
	processRepo repo.ProcessRepo
	resultRepo  repo.ResultRepo
	cacheRepo   repo.PreviewCacheRepo
	blobRepo    repo.BlobRepo

	quota      usecase.QuotaUseCase
	dispatcher infrastructure.StepDispatcher
	notifier   infrastructure.Notifier

	presignTTL time.Duration
	logger     logger.Interface
}

func New(
	projectRepo repo.ProjectRepo,
	processRepo repo.ProcessRepo,
	resultRepo repo.ResultRepo,
	cacheRepo repo.PreviewCacheRepo,
	blobRepo repo.BlobRepo,
	quota usecase.QuotaUseCase,
	dispatcher infrastructure.StepDispatcher,
	notifier infrastructure.Notifier,
	presignTTL time.Duration,
	l logger.Interface,
) *PipelineUseCase {
	return &PipelineUseCase{
		projectRepo: projectRepo,
		processRepo: processRepo,
		resultRepo:  resultRepo,
		cacheRepo:   cacheRepo,
		blobRepo:    blobRepo,
		quota:       quota,
		dispatcher:  dispatcher,
		notifier:    notifier,
		presignTTL:  presignTTL,
		logger:      l,
	}
}

// Run starts the full pipeline for every image of the project.
func (uc *PipelineUseCase) Run(ctx context.Context, ownerID, projectID uuid.UUID, in dto.RunInput) error {
	project, err := uc.projectRepo.GetByID(ctx, ownerID, projectID)
	if err != nil {
		return fmt.Errorf("PipelineUseCase - Run - uc.projectRepo.GetByID: %w", err)
	}

	if !project.HasEditAccess(in.RunnerID, in.ShareLinkID) {
		return fmt.Errorf("PipelineUseCase - Run: %w", errs.ErrPermissionDenied)
	}

	if len(project.Tools) == 0 {
		return fmt.Errorf("PipelineUseCase - Run: %w", errs.ErrEmptyPipeline)
	}

	if len(project.Images) == 0 {
		return fmt.Errorf("PipelineUseCase - Run: %w", errs.ErrNoImages)
	}

	// 1. сверяем advanced-квоту до первого dispatch
	project, err = uc.quota.Reconcile(ctx, project, in.RunnerID, len(project.Images), in.ExpectedVersion)
	if err != nil {
		return fmt.Errorf("PipelineUseCase - Run - uc.quota.Reconcile: %w", err)
	}

	// 2. каждая картинка стартует с позиции 0
	for i := range project.Images {
		img := project.Images[i]

		inputURI, err := uc.blobRepo.PresignGet(ctx, repo.BlobRef{
			OwnerID:   project.OwnerID,
			ProjectID: project.ID,
			Stage:     repo.StageSources,
			Key:       img.SourceKey,
		}, uc.presignTTL)
		if err != nil {
			return fmt.Errorf("PipelineUseCase - Run - uc.blobRepo.PresignGet: %w", err)
		}

		if err := uc.dispatchStep(ctx, project, img.ID, 0, inputURI, in.RunnerID, false); err != nil {
			return fmt.Errorf("PipelineUseCase - Run - uc.dispatchStep: %w", err)
		}
	}

	uc.notify(ctx, project.OwnerID, dto.EventProjectUpdated, dto.ProjectUpdatedPayload{
		ProjectID: project.ID,
		Version:   project.Version,
	})

	return nil
}

// Preview runs the pipeline for a single image into the preview namespace,
// short-circuiting through the cache when the same source bytes already went
// through the same tool chain.
func (uc *PipelineUseCase) Preview(ctx context.Context, ownerID, projectID, imageID uuid.UUID, in dto.RunInput) error {
	project, err := uc.projectRepo.GetByID(ctx, ownerID, projectID)
	if err != nil {
		return fmt.Errorf("PipelineUseCase - Preview - uc.projectRepo.GetByID: %w", err)
	}

	if !project.HasEditAccess(in.RunnerID, in.ShareLinkID) {
		return fmt.Errorf("PipelineUseCase - Preview: %w", errs.ErrPermissionDenied)
	}

	if len(project.Tools) == 0 {
		return fmt.Errorf("PipelineUseCase - Preview: %w", errs.ErrEmptyPipeline)
	}

	img, ok := project.ImageByID(imageID)
	if !ok {
		return fmt.Errorf("PipelineUseCase - Preview: %w", errs.ErrRecordNotFound)
	}

	cacheKey := CacheKey(img.ContentHash, project.Tools)

	entry, err := uc.cacheRepo.Get(ctx, project.OwnerID, cacheKey)
	if err == nil {
		// попадание в кеш - оркестратор не нужен
		if err := uc.cacheRepo.IncrementHit(ctx, project.OwnerID, cacheKey); err != nil {
			uc.logger.Warn("PipelineUseCase - Preview - uc.cacheRepo.IncrementHit: %v", err)
		}

		payload, err := uc.previewPayloadFromCache(ctx, project, entry)
		if err != nil {
			return fmt.Errorf("PipelineUseCase - Preview - uc.previewPayloadFromCache: %w", err)
		}

		uc.notify(ctx, in.RunnerID, dto.EventPreviewReady, payload)

		return nil
	}

	if !errors.Is(err, errs.ErrRecordNotFound) {
		return fmt.Errorf("PipelineUseCase - Preview - uc.cacheRepo.Get: %w", err)
	}

	project, err = uc.quota.Reconcile(ctx, project, in.RunnerID, 1, in.ExpectedVersion)
	if err != nil {
		return fmt.Errorf("PipelineUseCase - Preview - uc.quota.Reconcile: %w", err)
	}

	inputURI, err := uc.blobRepo.PresignGet(ctx, repo.BlobRef{
		OwnerID:   project.OwnerID,
		ProjectID: project.ID,
		Stage:     repo.StageSources,
		Key:       img.SourceKey,
	}, uc.presignTTL)
	if err != nil {
		return fmt.Errorf("PipelineUseCase - Preview - uc.blobRepo.PresignGet: %w", err)
	}

	if err := uc.dispatchStep(ctx, project, imageID, 0, inputURI, in.RunnerID, true); err != nil {
		return fmt.Errorf("PipelineUseCase - Preview - uc.dispatchStep: %w", err)
	}

	return nil
}

// HandleResult consumes one worker result message. A Process lookup miss
// means the run was cancelled after dispatch - the message is dropped.
func (uc *PipelineUseCase) HandleResult(ctx context.Context, msg dto.ResultMessage) error {
	process, err := uc.processRepo.GetByMessageID(ctx, msg.CorrelationID)
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			uc.logger.Debug("PipelineUseCase - HandleResult - stale result dropped: %s", msg.CorrelationID)

			return nil
		}

		return fmt.Errorf("PipelineUseCase - HandleResult - uc.processRepo.GetByMessageID: %w", err)
	}

	project, err := uc.projectRepo.GetByID(ctx, process.OwnerID, process.ProjectID)
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			// проект удалили во время выполнения
			return uc.deleteProcess(ctx, process.MessageID)
		}

		return fmt.Errorf("PipelineUseCase - HandleResult - uc.projectRepo.GetByID: %w", err)
	}

	if msg.Status == dto.StatusError {
		return uc.failStep(ctx, process, msg)
	}

	if process.CurPos >= len(project.Tools) {
		// пайплайн укоротили конкурентной правкой
		uc.logger.Warn("PipelineUseCase - HandleResult - cursor %d out of pipeline, dropping: %s", process.CurPos, process.MessageID)

		return uc.deleteProcess(ctx, process.MessageID)
	}

	proc, ok := entity.LookupProcedure(project.Tools[process.CurPos].Procedure)
	if !ok {
		return fmt.Errorf("PipelineUseCase - HandleResult - %q: %w", project.Tools[process.CurPos].Procedure, errs.ErrUnknownProcedure)
	}

	lastStep := process.CurPos+1 >= len(project.Tools)

	if lastStep {
		return uc.finalizeStep(ctx, project, process, proc)
	}

	// терминальный промежуточный вывод (текст) сохраняем сразу
	if proc.Terminal {
		if err := uc.persistArtifact(ctx, project, process, proc, process.MessageID); err != nil {
			return fmt.Errorf("PipelineUseCase - HandleResult - uc.persistArtifact: %w", err)
		}
	}

	nextInput := process.InputURI
	if proc.Output == entity.OutputImage {
		nextInput, err = uc.blobRepo.PresignGet(ctx, repo.BlobRef{
			OwnerID:   process.OwnerID,
			ProjectID: process.ProjectID,
			Stage:     repo.StageSteps,
			Key:       process.MessageID,
		}, uc.presignTTL)
		if err != nil {
			return fmt.Errorf("PipelineUseCase - HandleResult - uc.blobRepo.PresignGet: %w", err)
		}
	}

	if err := uc.dispatchStep(ctx, project, process.ImageID, process.CurPos+1, nextInput, process.RunnerID, process.Preview); err != nil {
		uc.logger.Error(err, "PipelineUseCase - HandleResult - uc.dispatchStep")
		uc.notifyStepError(ctx, process, "dispatch_failed", "failed to dispatch next step")

		return uc.deleteProcess(ctx, process.MessageID)
	}

	return uc.deleteProcess(ctx, process.MessageID)
}

// Cancel drops every outstanding Process of the project and compensates the
// in-flight quota charge. Cancelling an already-cancelled run is a no-op.
func (uc *PipelineUseCase) Cancel(ctx context.Context, ownerID, projectID uuid.UUID) error {
	process, err := uc.processRepo.GetAnyByProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			// шагов в полёте нет, но после упавшего воркера мог остаться заряд
			if err := uc.quota.RefundPending(ctx, ownerID, projectID, ownerID); err != nil {
				if errors.Is(err, errs.ErrRecordNotFound) {
					return nil
				}

				return fmt.Errorf("PipelineUseCase - Cancel - uc.quota.RefundPending: %w", err)
			}

			return nil
		}

		return fmt.Errorf("PipelineUseCase - Cancel - uc.processRepo.GetAnyByProject: %w", err)
	}

	if _, err := uc.processRepo.DeleteByProject(ctx, projectID); err != nil {
		return fmt.Errorf("PipelineUseCase - Cancel - uc.processRepo.DeleteByProject: %w", err)
	}

	if err := uc.quota.RefundPending(ctx, ownerID, projectID, process.RunnerID); err != nil {
		return fmt.Errorf("PipelineUseCase - Cancel - uc.quota.RefundPending: %w", err)
	}

	return nil
}

// dispatchStep creates the Process token and publishes the step to the
// procedure's queue. The Process is rolled back if the publish fails.
func (uc *PipelineUseCase) dispatchStep(
	ctx context.Context,
	project *entity.Project,
	imageID uuid.UUID,
	pos int,
	inputURI string,
	runnerID uuid.UUID,
	preview bool,
) error {
	tool := project.Tools[pos]

	proc, ok := entity.LookupProcedure(tool.Procedure)
	if !ok {
		return fmt.Errorf("dispatchStep - %q: %w", tool.Procedure, errs.ErrUnknownProcedure)
	}

	messageID := entity.NewMessageID(preview)

	// воркер пишет результат шага по ключу messageID
	outputURI, err := uc.blobRepo.PresignPut(ctx, repo.BlobRef{
		OwnerID:   project.OwnerID,
		ProjectID: project.ID,
		Stage:     repo.StageSteps,
		Key:       messageID,
	}, uc.presignTTL)
	if err != nil {
		return fmt.Errorf("dispatchStep - uc.blobRepo.PresignPut: %w", err)
	}

	process := &entity.Process{
		MessageID: messageID,
		OwnerID:   project.OwnerID,
		RunnerID:  runnerID,
		ProjectID: project.ID,
		ImageID:   imageID,
		CurPos:    pos,
		InputURI:  inputURI,
		OutputURI: outputURI,
		Preview:   preview,
		CreatedAt: time.Now(),
	}

	if err := uc.processRepo.Create(ctx, process); err != nil {
		return fmt.Errorf("dispatchStep - uc.processRepo.Create: %w", err)
	}

	params := make(map[string]interface{}, len(tool.Params)+2)
	for k, v := range tool.Params {
		params[k] = v
	}
	params[dto.ParamInputImageURI] = inputURI
	params[dto.ParamOutputImageURI] = outputURI

	err = uc.dispatcher.Dispatch(ctx, dto.DispatchMessage{
		MessageID:  messageID,
		Timestamp:  process.CreatedAt,
		Procedure:  proc.Name,
		Parameters: params,
	})
	if err != nil {
		if delErr := uc.processRepo.Delete(ctx, messageID); delErr != nil {
			uc.logger.Error(delErr, "dispatchStep - uc.processRepo.Delete")
		}

		return fmt.Errorf("dispatchStep - uc.dispatcher.Dispatch: %w", err)
	}

	if !preview {
		uc.notify(ctx, runnerID, dto.EventProcessUpdate, dto.ProcessUpdatePayload{MessageID: messageID})
	}

	return nil
}

// failStep resolves a step that the worker reported as failed. The image's
// chain stops here; other images of the run are unaffected.
func (uc *PipelineUseCase) failStep(ctx context.Context, process *entity.Process, msg dto.ResultMessage) error {
	code, text := "worker_error", "step failed"
	if msg.Error != nil {
		code, text = msg.Error.Code, msg.Error.Msg
	}

	uc.notifyStepError(ctx, process, code, text)

	return uc.deleteProcess(ctx, process.MessageID)
}

// finalizeStep persists the terminal artifact of the image's chain and, when
// it was the run's last in-flight image, closes out the whole run.
func (uc *PipelineUseCase) finalizeStep(ctx context.Context, project *entity.Project, process *entity.Process, proc entity.Procedure) error {
	artifactKey := process.ImageID.String()
	if proc.Output == entity.OutputText {
		artifactKey = process.MessageID
	}

	if err := uc.persistArtifact(ctx, project, process, proc, artifactKey); err != nil {
		return fmt.Errorf("finalizeStep - uc.persistArtifact: %w", err)
	}

	if !process.Preview && proc.Output == entity.OutputImage {
		uc.updateImageOutput(ctx, process, artifactKey)
	}

	if err := uc.deleteProcess(ctx, process.MessageID); err != nil {
		return err
	}

	if process.Preview {
		// превью гоняет одну картинку - её последний шаг закрывает ран
		uc.settlePending(ctx, process)

		return uc.finishPreview(ctx, project, process)
	}

	remaining, err := uc.processRepo.CountByRun(ctx, process.ProjectID, false)
	if err != nil {
		return fmt.Errorf("finalizeStep - uc.processRepo.CountByRun: %w", err)
	}

	if remaining > 0 {
		return nil
	}

	// последний шаг последней картинки - ран закрыт, заряд потрачен
	uc.settlePending(ctx, process)

	uc.notify(ctx, process.OwnerID, dto.EventProjectUpdated, dto.ProjectUpdatedPayload{
		ProjectID: process.ProjectID,
		Version:   project.Version,
	})

	return nil
}

// persistArtifact copies the step output out of the transient steps stage
// into results/previews and upserts the Result record superseding the
// previous run of the same kind.
func (uc *PipelineUseCase) persistArtifact(
	ctx context.Context,
	project *entity.Project,
	process *entity.Process,
	proc entity.Procedure,
	artifactKey string,
) error {
	kind := entity.KindResult
	stage := repo.StageResults
	if process.Preview {
		kind = entity.KindPreview
		stage = repo.StagePreviews
	}

	src := repo.BlobRef{OwnerID: process.OwnerID, ProjectID: process.ProjectID, Stage: repo.StageSteps, Key: process.MessageID}
	dst := repo.BlobRef{OwnerID: process.OwnerID, ProjectID: process.ProjectID, Stage: stage, Key: artifactKey}

	if err := uc.blobRepo.Copy(ctx, src, dst); err != nil {
		return fmt.Errorf("persistArtifact - uc.blobRepo.Copy: %w", err)
	}

	fileName := process.ImageID.String()
	if img, ok := project.ImageByID(process.ImageID); ok {
		fileName = img.FileName
	}
	if proc.Output == entity.OutputText {
		fileName += ".txt"
	}

	result := &entity.Result{
		ID:        uuid.New(),
		Kind:      kind,
		Type:      proc.Output,
		FileName:  fileName,
		BlobKey:   artifactKey,
		ImageID:   process.ImageID,
		ProjectID: process.ProjectID,
		OwnerID:   process.OwnerID,
		CreatedAt: time.Now(),
	}

	if err := uc.resultRepo.Upsert(ctx, result); err != nil {
		return fmt.Errorf("persistArtifact - uc.resultRepo.Upsert: %w", err)
	}

	return nil
}

// finishPreview assembles the aggregate preview payload, notifies the runner
// and feeds the cache so the next identical preview short-circuits.
func (uc *PipelineUseCase) finishPreview(ctx context.Context, project *entity.Project, process *entity.Process) error {
	previews, err := uc.resultRepo.ListByProject(ctx, process.ProjectID, entity.KindPreview)
	if err != nil {
		return fmt.Errorf("finishPreview - uc.resultRepo.ListByProject: %w", err)
	}

	payload := dto.PreviewReadyPayload{TextResults: []string{}}
	blobKeys := []string{}

	for _, res := range previews {
		if res.ImageID != process.ImageID {
			continue
		}

		switch res.Type {
		case entity.OutputImage:
			url, err := uc.blobRepo.PresignGet(ctx, repo.BlobRef{
				OwnerID:   process.OwnerID,
				ProjectID: process.ProjectID,
				Stage:     repo.StagePreviews,
				Key:       res.BlobKey,
			}, uc.presignTTL)
			if err != nil {
				return fmt.Errorf("finishPreview - uc.blobRepo.PresignGet: %w", err)
			}

			payload.ImageURL = url
			blobKeys = append(blobKeys, res.BlobKey)
		case entity.OutputText:
			text, err := uc.readTextBlob(ctx, process, res.BlobKey)
			if err != nil {
				return fmt.Errorf("finishPreview - uc.readTextBlob: %w", err)
			}

			payload.TextResults = append(payload.TextResults, text)
		}
	}

	uc.notify(ctx, process.RunnerID, dto.EventPreviewReady, payload)

	img, ok := project.ImageByID(process.ImageID)
	if !ok {
		return nil
	}

	entry := &entity.PreviewCacheEntry{
		OwnerID:     process.OwnerID,
		CacheKey:    CacheKey(img.ContentHash, project.Tools),
		BlobKeys:    blobKeys,
		TextResults: payload.TextResults,
		Elapsed:     time.Since(process.CreatedAt),
		CreatedAt:   time.Now(),
		LastHitAt:   time.Now(),
	}

	// кеш best-effort, превью уже доставлено
	if err := uc.cacheRepo.Upsert(ctx, entry); err != nil {
		uc.logger.Warn("finishPreview - uc.cacheRepo.Upsert: %v", err)
	}

	return nil
}

// previewPayloadFromCache rebuilds the preview notification from a cache
// entry without touching the pipeline.
func (uc *PipelineUseCase) previewPayloadFromCache(ctx context.Context, project *entity.Project, entry *entity.PreviewCacheEntry) (dto.PreviewReadyPayload, error) {
	payload := dto.PreviewReadyPayload{TextResults: entry.TextResults}
	if payload.TextResults == nil {
		payload.TextResults = []string{}
	}

	if len(entry.BlobKeys) == 0 {
		return payload, nil
	}

	url, err := uc.blobRepo.PresignGet(ctx, repo.BlobRef{
		OwnerID:   project.OwnerID,
		ProjectID: project.ID,
		Stage:     repo.StagePreviews,
		Key:       entry.BlobKeys[0],
	}, uc.presignTTL)
	if err != nil {
		return dto.PreviewReadyPayload{}, fmt.Errorf("previewPayloadFromCache - uc.blobRepo.PresignGet: %w", err)
	}

	payload.ImageURL = url

	return payload, nil
}

func (uc *PipelineUseCase) readTextBlob(ctx context.Context, process *entity.Process, key string) (string, error) {
	rc, err := uc.blobRepo.Download(ctx, repo.BlobRef{
		OwnerID:   process.OwnerID,
		ProjectID: process.ProjectID,
		Stage:     repo.StagePreviews,
		Key:       key,
	})
	if err != nil {
		return "", fmt.Errorf("readTextBlob - uc.blobRepo.Download: %w", err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("readTextBlob - io.ReadAll: %w", err)
	}

	return string(raw), nil
}

// updateImageOutput records the final artifact reference on the aggregate
// image; the run already finished, so a failure here only loses a link.
func (uc *PipelineUseCase) updateImageOutput(ctx context.Context, process *entity.Process, artifactKey string) {
	url, err := uc.blobRepo.PresignGet(ctx, repo.BlobRef{
		OwnerID:   process.OwnerID,
		ProjectID: process.ProjectID,
		Stage:     repo.StageResults,
		Key:       artifactKey,
	}, uc.presignTTL)
	if err != nil {
		uc.logger.Warn("updateImageOutput - uc.blobRepo.PresignGet: %v", err)

		return
	}

	_, err = uc.projectRepo.UpdateAny(ctx, process.OwnerID, process.ProjectID, func(p *entity.Project) error {
		if img, ok := p.ImageByID(process.ImageID); ok {
			img.OutputURI = url
		}

		return nil
	})
	if err != nil {
		uc.logger.Warn("updateImageOutput - uc.projectRepo.UpdateAny: %v", err)
	}
}

// settlePending zeroes the in-flight charge once the run completed - the
// spent operations are no longer refundable.
func (uc *PipelineUseCase) settlePending(ctx context.Context, process *entity.Process) {
	_, err := uc.projectRepo.UpdateAny(ctx, process.OwnerID, process.ProjectID, func(p *entity.Project) error {
		p.PendingAdvancedOps = 0

		return nil
	})
	if err != nil {
		uc.logger.Warn("settlePending - uc.projectRepo.UpdateAny: %v", err)
	}
}

func (uc *PipelineUseCase) notifyStepError(ctx context.Context, process *entity.Process, code, msg string) {
	event := dto.EventProcessError
	if process.Preview {
		event = dto.EventPreviewError
	}

	uc.notify(ctx, process.RunnerID, event, dto.ProcessErrorPayload{Code: code, Msg: msg})
}

func (uc *PipelineUseCase) deleteProcess(ctx context.Context, messageID string) error {
	if err := uc.processRepo.Delete(ctx, messageID); err != nil {
		return fmt.Errorf("PipelineUseCase - deleteProcess - uc.processRepo.Delete: %w", err)
	}

	return nil
}

func (uc *PipelineUseCase) notify(ctx context.Context, userID uuid.UUID, event string, payload interface{}) {
	if err := uc.notifier.Notify(ctx, userID, event, payload); err != nil {
		uc.logger.Warn("PipelineUseCase - notify - %s: %v", event, err)
	}
}
