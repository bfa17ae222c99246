package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/andreyxaxa/Photo-Pipeline/internal/dto"
	"github.com/andreyxaxa/Photo-Pipeline/internal/entity"
	"github.com/andreyxaxa/Photo-Pipeline/internal/repo"
	"github.com/andreyxaxa/Photo-Pipeline/internal/usecase/quota"
	"github.com/andreyxaxa/Photo-Pipeline/pkg/types/errs"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -------- test fakes --------

type fakeProjectRepo struct {
	repo.ProjectRepo
	project *entity.Project
}

func (f *fakeProjectRepo) GetByID(ctx context.Context, ownerID, projectID uuid.UUID) (*entity.Project, error) {
	if f.project == nil || f.project.ID != projectID {
		return nil, errs.ErrRecordNotFound
	}

	return f.project, nil
}

func (f *fakeProjectRepo) Update(ctx context.Context, ownerID, projectID uuid.UUID, expectedVersion int64, mutate func(*entity.Project) error) (*entity.Project, error) {
	if f.project.Version != expectedVersion {
		return nil, &errs.ConflictError{ServerVersion: f.project.Version}
	}

	if err := mutate(f.project); err != nil {
		return nil, err
	}

	f.project.Version++

	return f.project, nil
}

func (f *fakeProjectRepo) UpdateAny(ctx context.Context, ownerID, projectID uuid.UUID, mutate func(*entity.Project) error) (*entity.Project, error) {
	if err := mutate(f.project); err != nil {
		return nil, err
	}

	f.project.Version++

	return f.project, nil
}

type fakeProcessRepo struct {
	repo.ProcessRepo
	processes map[string]*entity.Process
}

func newFakeProcessRepo() *fakeProcessRepo {
	return &fakeProcessRepo{processes: map[string]*entity.Process{}}
}

func (f *fakeProcessRepo) Create(ctx context.Context, process *entity.Process) error {
	f.processes[process.MessageID] = process

	return nil
}

func (f *fakeProcessRepo) GetByMessageID(ctx context.Context, messageID string) (*entity.Process, error) {
	p, ok := f.processes[messageID]
	if !ok {
		return nil, errs.ErrRecordNotFound
	}

	return p, nil
}

func (f *fakeProcessRepo) GetAnyByProject(ctx context.Context, projectID uuid.UUID) (*entity.Process, error) {
	for _, p := range f.processes {
		if p.ProjectID == projectID {
			return p, nil
		}
	}

	return nil, errs.ErrRecordNotFound
}

func (f *fakeProcessRepo) Delete(ctx context.Context, messageID string) error {
	delete(f.processes, messageID)

	return nil
}

func (f *fakeProcessRepo) DeleteByProject(ctx context.Context, projectID uuid.UUID) (int64, error) {
	var n int64
	for id, p := range f.processes {
		if p.ProjectID == projectID {
			delete(f.processes, id)
			n++
		}
	}

	return n, nil
}

func (f *fakeProcessRepo) CountByRun(ctx context.Context, projectID uuid.UUID, preview bool) (int64, error) {
	var n int64
	for _, p := range f.processes {
		if p.ProjectID == projectID && p.Preview == preview {
			n++
		}
	}

	return n, nil
}

type fakeResultRepo struct {
	repo.ResultRepo
	results map[string]*entity.Result
}

func newFakeResultRepo() *fakeResultRepo {
	return &fakeResultRepo{results: map[string]*entity.Result{}}
}

func resultKey(r *entity.Result) string {
	return fmt.Sprintf("%s/%s/%s/%s", r.ProjectID, r.ImageID, r.Kind, r.Type)
}

func (f *fakeResultRepo) Upsert(ctx context.Context, result *entity.Result) error {
	f.results[resultKey(result)] = result

	return nil
}

func (f *fakeResultRepo) ListByProject(ctx context.Context, projectID uuid.UUID, kind entity.ResultKind) ([]*entity.Result, error) {
	var out []*entity.Result
	for _, r := range f.results {
		if r.ProjectID == projectID && r.Kind == kind {
			out = append(out, r)
		}
	}

	return out, nil
}

func (f *fakeResultRepo) DeleteByProject(ctx context.Context, projectID uuid.UUID) error {
	for k, r := range f.results {
		if r.ProjectID == projectID {
			delete(f.results, k)
		}
	}

	return nil
}

type fakeCacheRepo struct {
	repo.PreviewCacheRepo
	entries map[string]*entity.PreviewCacheEntry
	hits    int
}

func newFakeCacheRepo() *fakeCacheRepo {
	return &fakeCacheRepo{entries: map[string]*entity.PreviewCacheEntry{}}
}

func (f *fakeCacheRepo) Get(ctx context.Context, ownerID uuid.UUID, cacheKey string) (*entity.PreviewCacheEntry, error) {
	e, ok := f.entries[ownerID.String()+"/"+cacheKey]
	if !ok {
		return nil, errs.ErrRecordNotFound
	}

	return e, nil
}

func (f *fakeCacheRepo) Upsert(ctx context.Context, entry *entity.PreviewCacheEntry) error {
	f.entries[entry.OwnerID.String()+"/"+entry.CacheKey] = entry

	return nil
}

func (f *fakeCacheRepo) IncrementHit(ctx context.Context, ownerID uuid.UUID, cacheKey string) error {
	f.hits++

	return nil
}

type blobCopy struct {
	src, dst repo.BlobRef
}

type fakeBlobRepo struct {
	repo.BlobRepo
	copies []blobCopy
	texts  map[string]string
}

func newFakeBlobRepo() *fakeBlobRepo {
	return &fakeBlobRepo{texts: map[string]string{}}
}

func (f *fakeBlobRepo) Copy(ctx context.Context, src, dst repo.BlobRef) error {
	f.copies = append(f.copies, blobCopy{src: src, dst: dst})
	if text, ok := f.texts[src.Path()]; ok {
		f.texts[dst.Path()] = text
	}

	return nil
}

func (f *fakeBlobRepo) Download(ctx context.Context, ref repo.BlobRef) (io.ReadCloser, error) {
	text, ok := f.texts[ref.Path()]
	if !ok {
		return nil, errs.ErrRecordNotFound
	}

	return io.NopCloser(strings.NewReader(text)), nil
}

func (f *fakeBlobRepo) PresignGet(ctx context.Context, ref repo.BlobRef, ttl time.Duration) (string, error) {
	return "https://blob.test/" + ref.Path(), nil
}

func (f *fakeBlobRepo) PresignPut(ctx context.Context, ref repo.BlobRef, ttl time.Duration) (string, error) {
	return "https://blob.test/put/" + ref.Path(), nil
}

type fakeQuotaAPI struct {
	repo.QuotaAPI
	allowed bool

	canSpendCalls []int
	refunds       []int
	refundUser    uuid.UUID
}

func (f *fakeQuotaAPI) CanSpend(ctx context.Context, userID uuid.UUID, n int) (bool, error) {
	f.canSpendCalls = append(f.canSpendCalls, n)

	return f.allowed, nil
}

func (f *fakeQuotaAPI) Refund(ctx context.Context, userID uuid.UUID, n int) error {
	f.refundUser = userID
	f.refunds = append(f.refunds, n)

	return nil
}

type fakeDispatcher struct {
	msgs []dto.DispatchMessage
	err  error
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, msg dto.DispatchMessage) error {
	if f.err != nil {
		return f.err
	}

	f.msgs = append(f.msgs, msg)

	return nil
}

func (f *fakeDispatcher) Close() error { return nil }

type notification struct {
	userID  uuid.UUID
	event   string
	payload interface{}
}

type fakeNotifier struct {
	events []notification
}

func (f *fakeNotifier) Notify(ctx context.Context, userID uuid.UUID, event string, payload interface{}) error {
	f.events = append(f.events, notification{userID: userID, event: event, payload: payload})

	return nil
}

func (f *fakeNotifier) byEvent(event string) []notification {
	var out []notification
	for _, n := range f.events {
		if n.event == event {
			out = append(out, n)
		}
	}

	return out
}

type nopLogger struct{}

func (nopLogger) Debug(message interface{}, args ...interface{}) {}
func (nopLogger) Info(message string, args ...interface{})       {}
func (nopLogger) Warn(message string, args ...interface{})       {}
func (nopLogger) Error(message interface{}, args ...interface{}) {}
func (nopLogger) Fatal(message interface{}, args ...interface{}) {}

// -------- helpers --------

type fixture struct {
	uc *PipelineUseCase

	projectRepo *fakeProjectRepo
	processRepo *fakeProcessRepo
	resultRepo  *fakeResultRepo
	cacheRepo   *fakeCacheRepo
	blobRepo    *fakeBlobRepo
	quotaAPI    *fakeQuotaAPI
	dispatcher  *fakeDispatcher
	notifier    *fakeNotifier
}

func newFixture(project *entity.Project) *fixture {
	f := &fixture{
		projectRepo: &fakeProjectRepo{project: project},
		processRepo: newFakeProcessRepo(),
		resultRepo:  newFakeResultRepo(),
		cacheRepo:   newFakeCacheRepo(),
		blobRepo:    newFakeBlobRepo(),
		quotaAPI:    &fakeQuotaAPI{allowed: true},
		dispatcher:  &fakeDispatcher{},
		notifier:    &fakeNotifier{},
	}

	quotaUseCase := quota.New(f.projectRepo, f.quotaAPI, nopLogger{})
	f.uc = New(
		f.projectRepo,
		f.processRepo,
		f.resultRepo,
		f.cacheRepo,
		f.blobRepo,
		quotaUseCase,
		f.dispatcher,
		f.notifier,
		time.Minute,
		nopLogger{},
	)

	return f
}

func testProject(tools []entity.Tool, imageCount int) *entity.Project {
	p := &entity.Project{
		ID:      uuid.New(),
		OwnerID: uuid.New(),
		Name:    "test",
		Tools:   tools,
		Version: 5,
	}

	for i := 0; i < imageCount; i++ {
		p.Images = append(p.Images, entity.ProjectImage{
			ID:          uuid.New(),
			SourceKey:   fmt.Sprintf("src-%d", i),
			ContentHash: fmt.Sprintf("hash-%d", i),
			FileName:    fmt.Sprintf("img-%d.png", i),
			ContentType: "image/png",
		})
	}

	return p
}

// drainRun feeds a success result for every outstanding process until the
// run settles, capped to guard against dispatch loops.
func drainRun(t *testing.T, f *fixture) {
	t.Helper()

	for i := 0; i < 100; i++ {
		if len(f.processRepo.processes) == 0 {
			return
		}

		var ids []string
		for id := range f.processRepo.processes {
			ids = append(ids, id)
		}

		for _, id := range ids {
			err := f.uc.HandleResult(context.Background(), dto.ResultMessage{
				CorrelationID: id,
				Status:        dto.StatusSuccess,
			})
			require.NoError(t, err)
		}
	}

	t.Fatal("run did not settle")
}

// -------- tests --------

func TestRun_TwoImagesTwoTools(t *testing.T) {
	t.Parallel()

	project := testProject([]entity.Tool{
		{Position: 0, Procedure: entity.ProcBrightness, Params: map[string]interface{}{"amount": 10}},
		{Position: 1, Procedure: entity.ProcContrast, Params: map[string]interface{}{"amount": 5}},
	}, 2)
	f := newFixture(project)
	owner := project.OwnerID

	err := f.uc.Run(context.Background(), owner, project.ID, dto.RunInput{RunnerID: owner, ExpectedVersion: 5})
	require.NoError(t, err)

	// по процессу на картинку, позиция 0
	require.Len(t, f.dispatcher.msgs, 2)
	require.Len(t, f.processRepo.processes, 2)
	assert.Equal(t, entity.ProcBrightness, f.dispatcher.msgs[0].Procedure)
	assert.Equal(t, 10, f.dispatcher.msgs[0].Parameters["amount"])
	assert.NotEmpty(t, f.dispatcher.msgs[0].Parameters[dto.ParamInputImageURI])
	assert.NotEmpty(t, f.dispatcher.msgs[0].Parameters[dto.ParamOutputImageURI])

	drainRun(t, f)

	// 2 картинки x 2 шага
	assert.Len(t, f.dispatcher.msgs, 4)
	assert.Equal(t, entity.ProcContrast, f.dispatcher.msgs[2].Procedure)

	results, err := f.resultRepo.ListByProject(context.Background(), project.ID, entity.KindResult)
	require.NoError(t, err)
	assert.Len(t, results, 2)
	for _, res := range results {
		assert.Equal(t, entity.OutputImage, res.Type)
		assert.Equal(t, res.ImageID.String(), res.BlobKey)
	}

	// advanced-инструментов нет - биллинг не трогаем
	assert.Empty(t, f.quotaAPI.canSpendCalls)
	assert.Equal(t, 0, project.PendingAdvancedOps)

	assert.NotEmpty(t, f.notifier.byEvent(dto.EventProjectUpdated))
}

func TestRun_EmptyPipeline(t *testing.T) {
	t.Parallel()

	project := testProject(nil, 1)
	f := newFixture(project)

	err := f.uc.Run(context.Background(), project.OwnerID, project.ID, dto.RunInput{RunnerID: project.OwnerID, ExpectedVersion: 5})
	assert.True(t, errors.Is(err, errs.ErrEmptyPipeline))
	assert.Empty(t, f.dispatcher.msgs)
}

func TestRun_NoImages(t *testing.T) {
	t.Parallel()

	project := testProject([]entity.Tool{{Position: 0, Procedure: entity.ProcGrayscale}}, 0)
	f := newFixture(project)

	err := f.uc.Run(context.Background(), project.OwnerID, project.ID, dto.RunInput{RunnerID: project.OwnerID, ExpectedVersion: 5})
	assert.True(t, errors.Is(err, errs.ErrNoImages))
}

func TestRun_QuotaDenied_NothingDispatched(t *testing.T) {
	t.Parallel()

	project := testProject([]entity.Tool{
		{Position: 0, Procedure: entity.ProcAIUpscale, Params: map[string]interface{}{"factor": 2}},
	}, 3)
	f := newFixture(project)
	f.quotaAPI.allowed = false

	err := f.uc.Run(context.Background(), project.OwnerID, project.ID, dto.RunInput{RunnerID: project.OwnerID, ExpectedVersion: 5})
	assert.True(t, errors.Is(err, errs.ErrQuotaDenied))
	assert.Empty(t, f.dispatcher.msgs)
	assert.Empty(t, f.processRepo.processes)
	assert.Equal(t, []int{3}, f.quotaAPI.canSpendCalls)
}

func TestRun_SharedEditAccess(t *testing.T) {
	t.Parallel()

	project := testProject([]entity.Tool{{Position: 0, Procedure: entity.ProcGrayscale}}, 1)
	link := entity.ShareLink{ID: uuid.New(), Permission: entity.PermissionEdit}
	project.ShareLinks = []entity.ShareLink{link}
	f := newFixture(project)
	stranger := uuid.New()

	// без ссылки нельзя
	err := f.uc.Run(context.Background(), project.OwnerID, project.ID, dto.RunInput{RunnerID: stranger, ExpectedVersion: 5})
	assert.True(t, errors.Is(err, errs.ErrPermissionDenied))

	err = f.uc.Run(context.Background(), project.OwnerID, project.ID, dto.RunInput{
		RunnerID:        stranger,
		ShareLinkID:     &link.ID,
		ExpectedVersion: 5,
	})
	require.NoError(t, err)
	require.Len(t, f.processRepo.processes, 1)
	for _, p := range f.processRepo.processes {
		assert.Equal(t, stranger, p.RunnerID)
		assert.Equal(t, project.OwnerID, p.OwnerID)
	}
}

func TestHandleResult_StaleMessageDropped(t *testing.T) {
	t.Parallel()

	f := newFixture(testProject(nil, 0))

	err := f.uc.HandleResult(context.Background(), dto.ResultMessage{
		CorrelationID: uuid.NewString(),
		Status:        dto.StatusSuccess,
	})
	require.NoError(t, err)
	assert.Empty(t, f.notifier.events)
	assert.Empty(t, f.dispatcher.msgs)
}

func TestHandleResult_WorkerError(t *testing.T) {
	t.Parallel()

	project := testProject([]entity.Tool{
		{Position: 0, Procedure: entity.ProcGrayscale},
		{Position: 1, Procedure: entity.ProcBlur, Params: map[string]interface{}{"radius": 2}},
	}, 2)
	f := newFixture(project)

	err := f.uc.Run(context.Background(), project.OwnerID, project.ID, dto.RunInput{RunnerID: project.OwnerID, ExpectedVersion: 5})
	require.NoError(t, err)
	require.Len(t, f.processRepo.processes, 2)

	var failedID string
	for id := range f.processRepo.processes {
		failedID = id

		break
	}

	err = f.uc.HandleResult(context.Background(), dto.ResultMessage{
		CorrelationID: failedID,
		Status:        dto.StatusError,
		Error:         &dto.ResultError{Code: "oom", Msg: "worker out of memory"},
	})
	require.NoError(t, err)

	// упавшая цепочка остановлена, вторая картинка живёт дальше
	assert.Len(t, f.processRepo.processes, 1)
	errEvents := f.notifier.byEvent(dto.EventProcessError)
	require.Len(t, errEvents, 1)
	payload, ok := errEvents[0].payload.(dto.ProcessErrorPayload)
	require.True(t, ok)
	assert.Equal(t, "oom", payload.Code)
}

func TestHandleResult_TerminalTextMidChain(t *testing.T) {
	t.Parallel()

	project := testProject([]entity.Tool{
		{Position: 0, Procedure: entity.ProcAITextExtract},
		{Position: 1, Procedure: entity.ProcGrayscale},
	}, 1)
	project.ChargedAdvancedTools = 1 // уже оплачено
	f := newFixture(project)

	err := f.uc.Run(context.Background(), project.OwnerID, project.ID, dto.RunInput{RunnerID: project.OwnerID, ExpectedVersion: 5})
	require.NoError(t, err)
	require.Len(t, f.dispatcher.msgs, 1)

	firstInput := f.dispatcher.msgs[0].Parameters[dto.ParamInputImageURI]

	drainRun(t, f)

	require.Len(t, f.dispatcher.msgs, 2)
	// текстовый шаг не меняет картинку - вход следующего шага прежний
	assert.Equal(t, firstInput, f.dispatcher.msgs[1].Parameters[dto.ParamInputImageURI])

	results, err := f.resultRepo.ListByProject(context.Background(), project.ID, entity.KindResult)
	require.NoError(t, err)
	require.Len(t, results, 2)

	types := map[entity.OutputType]bool{}
	for _, res := range results {
		types[res.Type] = true
	}
	assert.True(t, types[entity.OutputText])
	assert.True(t, types[entity.OutputImage])
}

func TestPreview_CacheHitBypassesPipeline(t *testing.T) {
	t.Parallel()

	project := testProject([]entity.Tool{{Position: 0, Procedure: entity.ProcGrayscale}}, 1)
	f := newFixture(project)
	img := project.Images[0]

	f.cacheRepo.entries[project.OwnerID.String()+"/"+CacheKey(img.ContentHash, project.Tools)] = &entity.PreviewCacheEntry{
		OwnerID:     project.OwnerID,
		BlobKeys:    []string{"cached-key"},
		TextResults: []string{"hello"},
	}

	err := f.uc.Preview(context.Background(), project.OwnerID, project.ID, img.ID, dto.RunInput{RunnerID: project.OwnerID, ExpectedVersion: 5})
	require.NoError(t, err)

	assert.Empty(t, f.dispatcher.msgs)
	assert.Equal(t, 1, f.cacheRepo.hits)

	ready := f.notifier.byEvent(dto.EventPreviewReady)
	require.Len(t, ready, 1)
	payload, ok := ready[0].payload.(dto.PreviewReadyPayload)
	require.True(t, ok)
	assert.Contains(t, payload.ImageURL, "cached-key")
	assert.Equal(t, []string{"hello"}, payload.TextResults)
}

func TestPreview_MissRunsAndFeedsCache(t *testing.T) {
	t.Parallel()

	project := testProject([]entity.Tool{{Position: 0, Procedure: entity.ProcGrayscale}}, 1)
	f := newFixture(project)
	img := project.Images[0]
	in := dto.RunInput{RunnerID: project.OwnerID, ExpectedVersion: 5}

	err := f.uc.Preview(context.Background(), project.OwnerID, project.ID, img.ID, in)
	require.NoError(t, err)

	require.Len(t, f.dispatcher.msgs, 1)
	assert.True(t, strings.HasPrefix(f.dispatcher.msgs[0].MessageID, entity.PreviewMessagePrefix))

	drainRun(t, f)

	previews, err := f.resultRepo.ListByProject(context.Background(), project.ID, entity.KindPreview)
	require.NoError(t, err)
	require.Len(t, previews, 1)
	assert.Equal(t, entity.KindPreview, previews[0].Kind)

	ready := f.notifier.byEvent(dto.EventPreviewReady)
	require.Len(t, ready, 1)

	// повторный preview той же картинки с теми же инструментами - из кеша
	err = f.uc.Preview(context.Background(), project.OwnerID, project.ID, img.ID, dto.RunInput{RunnerID: project.OwnerID, ExpectedVersion: project.Version})
	require.NoError(t, err)

	assert.Len(t, f.dispatcher.msgs, 1)
	assert.Equal(t, 1, f.cacheRepo.hits)
	assert.Len(t, f.notifier.byEvent(dto.EventPreviewReady), 2)
}

func TestCancel_RefundsAndIsIdempotent(t *testing.T) {
	t.Parallel()

	project := testProject([]entity.Tool{
		{Position: 0, Procedure: entity.ProcAIUpscale, Params: map[string]interface{}{"factor": 2}},
	}, 2)
	f := newFixture(project)
	runner := project.OwnerID

	err := f.uc.Run(context.Background(), project.OwnerID, project.ID, dto.RunInput{RunnerID: runner, ExpectedVersion: 5})
	require.NoError(t, err)
	require.Len(t, f.processRepo.processes, 2)
	require.Equal(t, 2, project.PendingAdvancedOps)

	err = f.uc.Cancel(context.Background(), project.OwnerID, project.ID)
	require.NoError(t, err)

	assert.Empty(t, f.processRepo.processes)
	assert.Equal(t, []int{2}, f.quotaAPI.refunds)
	assert.Equal(t, runner, f.quotaAPI.refundUser)
	assert.Equal(t, 0, project.PendingAdvancedOps)

	// повторная отмена - no-op
	err = f.uc.Cancel(context.Background(), project.OwnerID, project.ID)
	require.NoError(t, err)
	assert.Len(t, f.quotaAPI.refunds, 1)
}

func TestCancel_AfterWorkerFailureRefundsPending(t *testing.T) {
	t.Parallel()

	project := testProject([]entity.Tool{
		{Position: 0, Procedure: entity.ProcAIUpscale, Params: map[string]interface{}{"factor": 2}},
	}, 1)
	f := newFixture(project)
	owner := project.OwnerID

	err := f.uc.Run(context.Background(), owner, project.ID, dto.RunInput{RunnerID: owner, ExpectedVersion: 5})
	require.NoError(t, err)
	require.Equal(t, 1, project.PendingAdvancedOps)

	var msgID string
	for id := range f.processRepo.processes {
		msgID = id
	}

	// воркер упал на единственном шаге - процессов больше нет
	err = f.uc.HandleResult(context.Background(), dto.ResultMessage{
		CorrelationID: msgID,
		Status:        dto.StatusError,
		Error:         &dto.ResultError{Code: "oom", Msg: "worker out of memory"},
	})
	require.NoError(t, err)
	require.Empty(t, f.processRepo.processes)
	require.Equal(t, 1, project.PendingAdvancedOps)

	// отмена после ошибки всё равно возвращает заряд
	err = f.uc.Cancel(context.Background(), owner, project.ID)
	require.NoError(t, err)

	assert.Equal(t, []int{1}, f.quotaAPI.refunds)
	assert.Equal(t, owner, f.quotaAPI.refundUser)
	assert.Equal(t, 0, project.PendingAdvancedOps)
}

func TestPreview_ConcurrentImagesFinishIndependently(t *testing.T) {
	t.Parallel()

	project := testProject([]entity.Tool{{Position: 0, Procedure: entity.ProcGrayscale}}, 2)
	f := newFixture(project)
	in := dto.RunInput{RunnerID: project.OwnerID, ExpectedVersion: 5}

	err := f.uc.Preview(context.Background(), project.OwnerID, project.ID, project.Images[0].ID, in)
	require.NoError(t, err)
	err = f.uc.Preview(context.Background(), project.OwnerID, project.ID, project.Images[1].ID, in)
	require.NoError(t, err)
	require.Len(t, f.dispatcher.msgs, 2)

	// первая картинка готова, вторая ещё в полёте
	err = f.uc.HandleResult(context.Background(), dto.ResultMessage{
		CorrelationID: f.dispatcher.msgs[0].MessageID,
		Status:        dto.StatusSuccess,
	})
	require.NoError(t, err)

	ready := f.notifier.byEvent(dto.EventPreviewReady)
	require.Len(t, ready, 1)
	payload, ok := ready[0].payload.(dto.PreviewReadyPayload)
	require.True(t, ok)
	assert.Contains(t, payload.ImageURL, project.Images[0].ID.String())

	err = f.uc.HandleResult(context.Background(), dto.ResultMessage{
		CorrelationID: f.dispatcher.msgs[1].MessageID,
		Status:        dto.StatusSuccess,
	})
	require.NoError(t, err)
	assert.Len(t, f.notifier.byEvent(dto.EventPreviewReady), 2)
}

func TestCancel_LateResultDropped(t *testing.T) {
	t.Parallel()

	project := testProject([]entity.Tool{{Position: 0, Procedure: entity.ProcGrayscale}}, 1)
	f := newFixture(project)

	err := f.uc.Run(context.Background(), project.OwnerID, project.ID, dto.RunInput{RunnerID: project.OwnerID, ExpectedVersion: 5})
	require.NoError(t, err)

	var msgID string
	for id := range f.processRepo.processes {
		msgID = id
	}

	err = f.uc.Cancel(context.Background(), project.OwnerID, project.ID)
	require.NoError(t, err)

	// результат отменённого шага прилетел после отмены
	err = f.uc.HandleResult(context.Background(), dto.ResultMessage{CorrelationID: msgID, Status: dto.StatusSuccess})
	require.NoError(t, err)

	results, err := f.resultRepo.ListByProject(context.Background(), project.ID, entity.KindResult)
	require.NoError(t, err)
	assert.Empty(t, results)
}
