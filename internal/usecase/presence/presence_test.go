package presence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/andreyxaxa/Photo-Pipeline/internal/entity"
	"github.com/andreyxaxa/Photo-Pipeline/internal/repo"
	"github.com/andreyxaxa/Photo-Pipeline/pkg/types/errs"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -------- test fakes --------

type fakePresenceRepo struct {
	repo.PresenceRepo
	active   int
	admitted bool

	gotWindow time.Duration
	gotLimit  int
}

func (f *fakePresenceRepo) EnsureSlot(ctx context.Context, ownerID, projectID, editorID uuid.UUID, window time.Duration, limit int) (int, bool, error) {
	f.gotWindow = window
	f.gotLimit = limit

	return f.active, f.admitted, nil
}

type fakeQuotaAPI struct {
	repo.QuotaAPI
	tier    entity.Tier
	tierErr error
}

func (f *fakeQuotaAPI) Tier(ctx context.Context, userID uuid.UUID) (entity.Tier, error) {
	return f.tier, f.tierErr
}

type nopLogger struct{}

func (nopLogger) Debug(message interface{}, args ...interface{}) {}
func (nopLogger) Info(message string, args ...interface{})       {}
func (nopLogger) Warn(message string, args ...interface{})       {}
func (nopLogger) Error(message interface{}, args ...interface{}) {}
func (nopLogger) Fatal(message interface{}, args ...interface{}) {}

// -------- tests --------

func TestEnsureSlot_Admitted(t *testing.T) {
	t.Parallel()

	presenceRepo := &fakePresenceRepo{active: 1, admitted: true}
	api := &fakeQuotaAPI{tier: entity.TierFree}

	uc := New(presenceRepo, api, 30*time.Second, 2, nopLogger{})

	active, err := uc.EnsureSlot(context.Background(), uuid.New(), uuid.New(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 1, active)
	assert.Equal(t, 2, presenceRepo.gotLimit)
	assert.Equal(t, 30*time.Second, presenceRepo.gotWindow)
}

func TestEnsureSlot_DeniedAtCapacity(t *testing.T) {
	t.Parallel()

	presenceRepo := &fakePresenceRepo{active: 2, admitted: false}
	api := &fakeQuotaAPI{tier: entity.TierFree}

	uc := New(presenceRepo, api, 30*time.Second, 2, nopLogger{})

	active, err := uc.EnsureSlot(context.Background(), uuid.New(), uuid.New(), uuid.New())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrEditorLimit))
	assert.Equal(t, 2, active)

	var limitErr *errs.EditorLimitError
	require.True(t, errors.As(err, &limitErr))
	assert.Equal(t, 2, limitErr.Active)
	assert.Equal(t, 2, limitErr.Limit)
}

func TestEnsureSlot_PremiumOwnerUnlimited(t *testing.T) {
	t.Parallel()

	presenceRepo := &fakePresenceRepo{active: 7, admitted: true}
	api := &fakeQuotaAPI{tier: entity.TierPremium}

	uc := New(presenceRepo, api, 30*time.Second, 2, nopLogger{})

	active, err := uc.EnsureSlot(context.Background(), uuid.New(), uuid.New(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 7, active)
	// premium - лимит снимается
	assert.Equal(t, 0, presenceRepo.gotLimit)
}

func TestEnsureSlot_TierLookupFailure(t *testing.T) {
	t.Parallel()

	presenceRepo := &fakePresenceRepo{}
	api := &fakeQuotaAPI{tierErr: errors.New("authority down")}

	uc := New(presenceRepo, api, 30*time.Second, 2, nopLogger{})

	_, err := uc.EnsureSlot(context.Background(), uuid.New(), uuid.New(), uuid.New())
	assert.Error(t, err)
}
