package quota

import (
	"context"
	"errors"
	"testing"

	"github.com/andreyxaxa/Photo-Pipeline/internal/entity"
	"github.com/andreyxaxa/Photo-Pipeline/internal/repo"
	"github.com/andreyxaxa/Photo-Pipeline/pkg/types/errs"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -------- test fakes --------

type fakeProjectRepo struct {
	repo.ProjectRepo
	project     *entity.Project
	updateCalls int
}

func (f *fakeProjectRepo) GetByID(ctx context.Context, ownerID, projectID uuid.UUID) (*entity.Project, error) {
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
	f.updateCalls++

	return f.project, nil
}

func (f *fakeProjectRepo) UpdateAny(ctx context.Context, ownerID, projectID uuid.UUID, mutate func(*entity.Project) error) (*entity.Project, error) {
	if err := mutate(f.project); err != nil {
		return nil, err
	}

	f.project.Version++
	f.updateCalls++

	return f.project, nil
}

type fakeQuotaAPI struct {
	repo.QuotaAPI
	allowed bool

	canSpendUser  uuid.UUID
	canSpendCalls []int

	refundUser uuid.UUID
	refundErr  error
	refunds    []int
}

func (f *fakeQuotaAPI) CanSpend(ctx context.Context, userID uuid.UUID, n int) (bool, error) {
	f.canSpendUser = userID
	f.canSpendCalls = append(f.canSpendCalls, n)

	return f.allowed, nil
}

func (f *fakeQuotaAPI) Refund(ctx context.Context, userID uuid.UUID, n int) error {
	f.refundUser = userID
	f.refunds = append(f.refunds, n)

	return f.refundErr
}

type nopLogger struct{}

func (nopLogger) Debug(message interface{}, args ...interface{}) {}
func (nopLogger) Info(message string, args ...interface{})       {}
func (nopLogger) Warn(message string, args ...interface{})       {}
func (nopLogger) Error(message interface{}, args ...interface{}) {}
func (nopLogger) Fatal(message interface{}, args ...interface{}) {}

// -------- tests --------

func newProject(tools []entity.Tool, charged int) *entity.Project {
	return &entity.Project{
		ID:                   uuid.New(),
		OwnerID:              uuid.New(),
		Tools:                tools,
		Version:              5,
		ChargedAdvancedTools: charged,
	}
}

func TestReconcile_ChargesNewlyNeeded(t *testing.T) {
	t.Parallel()

	project := newProject([]entity.Tool{
		{Position: 0, Procedure: entity.ProcBrightness},
		{Position: 1, Procedure: entity.ProcAIUpscale, Params: map[string]interface{}{"factor": 2}},
	}, 0)
	projectRepo := &fakeProjectRepo{project: project}
	api := &fakeQuotaAPI{allowed: true}
	runner := uuid.New()

	uc := New(projectRepo, api, nopLogger{})

	updated, err := uc.Reconcile(context.Background(), project, runner, 3, 5)
	require.NoError(t, err)

	// 1 новый advanced-инструмент на 3 картинки
	assert.Equal(t, []int{3}, api.canSpendCalls)
	assert.Equal(t, runner, api.canSpendUser)
	assert.Equal(t, 1, updated.ChargedAdvancedTools)
	assert.Equal(t, 3, updated.PendingAdvancedOps)
	assert.Equal(t, int64(6), updated.Version)
}

func TestReconcile_DenialLeavesAggregateUntouched(t *testing.T) {
	t.Parallel()

	project := newProject([]entity.Tool{
		{Position: 0, Procedure: entity.ProcAIStyleTransfer, Params: map[string]interface{}{"style": "sketch"}},
	}, 0)
	projectRepo := &fakeProjectRepo{project: project}
	api := &fakeQuotaAPI{allowed: false}

	uc := New(projectRepo, api, nopLogger{})

	_, err := uc.Reconcile(context.Background(), project, uuid.New(), 2, 5)
	assert.True(t, errors.Is(err, errs.ErrQuotaDenied))
	assert.Equal(t, 0, project.ChargedAdvancedTools)
	assert.Equal(t, 0, project.PendingAdvancedOps)
	assert.Equal(t, 0, projectRepo.updateCalls)
}

func TestReconcile_NoAdvancedTools_NoAPICall(t *testing.T) {
	t.Parallel()

	project := newProject([]entity.Tool{
		{Position: 0, Procedure: entity.ProcBrightness},
		{Position: 1, Procedure: entity.ProcContrast},
	}, 0)
	projectRepo := &fakeProjectRepo{project: project}
	api := &fakeQuotaAPI{allowed: true}

	uc := New(projectRepo, api, nopLogger{})

	updated, err := uc.Reconcile(context.Background(), project, uuid.New(), 2, 5)
	require.NoError(t, err)

	assert.Empty(t, api.canSpendCalls)
	assert.Equal(t, 0, projectRepo.updateCalls)
	assert.Equal(t, 0, updated.PendingAdvancedOps)
}

func TestReconcile_AlreadyCharged_NoAPICall(t *testing.T) {
	t.Parallel()

	project := newProject([]entity.Tool{
		{Position: 0, Procedure: entity.ProcAIUpscale, Params: map[string]interface{}{"factor": 2}},
	}, 1)
	projectRepo := &fakeProjectRepo{project: project}
	api := &fakeQuotaAPI{allowed: true}

	uc := New(projectRepo, api, nopLogger{})

	_, err := uc.Reconcile(context.Background(), project, uuid.New(), 4, 5)
	require.NoError(t, err)

	assert.Empty(t, api.canSpendCalls)
}

func TestReconcile_PersistsChargedDrift(t *testing.T) {
	t.Parallel()

	// начислено больше, чем осталось advanced-инструментов
	project := newProject([]entity.Tool{
		{Position: 0, Procedure: entity.ProcAIUpscale, Params: map[string]interface{}{"factor": 2}},
	}, 3)
	projectRepo := &fakeProjectRepo{project: project}
	api := &fakeQuotaAPI{allowed: true}

	uc := New(projectRepo, api, nopLogger{})

	updated, err := uc.Reconcile(context.Background(), project, uuid.New(), 2, 5)
	require.NoError(t, err)

	assert.Empty(t, api.canSpendCalls)
	assert.Equal(t, 1, updated.ChargedAdvancedTools)
	assert.Equal(t, 1, projectRepo.updateCalls)
}

func TestRefundPending(t *testing.T) {
	t.Parallel()

	project := newProject(nil, 1)
	project.PendingAdvancedOps = 3
	projectRepo := &fakeProjectRepo{project: project}
	api := &fakeQuotaAPI{}
	runner := uuid.New()

	uc := New(projectRepo, api, nopLogger{})

	err := uc.RefundPending(context.Background(), project.OwnerID, project.ID, runner)
	require.NoError(t, err)

	assert.Equal(t, []int{3}, api.refunds)
	assert.Equal(t, runner, api.refundUser)
	assert.Equal(t, 0, project.PendingAdvancedOps)
}

func TestRefundPending_NothingPending(t *testing.T) {
	t.Parallel()

	project := newProject(nil, 0)
	projectRepo := &fakeProjectRepo{project: project}
	api := &fakeQuotaAPI{}

	uc := New(projectRepo, api, nopLogger{})

	err := uc.RefundPending(context.Background(), project.OwnerID, project.ID, uuid.New())
	require.NoError(t, err)

	assert.Empty(t, api.refunds)
	assert.Equal(t, 0, projectRepo.updateCalls)
}

func TestRefundPending_RefundFailureDoesNotBlockCleanup(t *testing.T) {
	t.Parallel()

	project := newProject(nil, 1)
	project.PendingAdvancedOps = 2
	projectRepo := &fakeProjectRepo{project: project}
	api := &fakeQuotaAPI{refundErr: errors.New("authority down")}

	uc := New(projectRepo, api, nopLogger{})

	err := uc.RefundPending(context.Background(), project.OwnerID, project.ID, uuid.New())
	require.NoError(t, err)

	// компенсация best-effort, локальное состояние всё равно чистим
	assert.Equal(t, 0, project.PendingAdvancedOps)
}
