package persistent

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/andreyxaxa/Photo-Pipeline/pkg/redisclient"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const presenceWindow = 30 * time.Second

func newTestPresenceRepo(t *testing.T) (*PresenceRepo, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewPresenceRepo(&redisclient.RedisClient{Client: client}), client
}

func TestPresenceRepo_AdmitsUpToLimit(t *testing.T) {
	t.Parallel()

	repo, _ := newTestPresenceRepo(t)
	ctx := context.Background()
	owner, project := uuid.New(), uuid.New()
	editorA, editorB, editorC := uuid.New(), uuid.New(), uuid.New()

	active, admitted, err := repo.EnsureSlot(ctx, owner, project, editorA, presenceWindow, 2)
	require.NoError(t, err)
	assert.True(t, admitted)
	assert.Equal(t, 1, active)

	active, admitted, err = repo.EnsureSlot(ctx, owner, project, editorB, presenceWindow, 2)
	require.NoError(t, err)
	assert.True(t, admitted)
	assert.Equal(t, 2, active)

	// третьему редактору мест нет
	active, admitted, err = repo.EnsureSlot(ctx, owner, project, editorC, presenceWindow, 2)
	require.NoError(t, err)
	assert.False(t, admitted)
	assert.Equal(t, 2, active)

	// повторный heartbeat известного редактора - не новый слот
	_, admitted, err = repo.EnsureSlot(ctx, owner, project, editorA, presenceWindow, 2)
	require.NoError(t, err)
	assert.True(t, admitted)
}

func TestPresenceRepo_StaleEditorPurgedThenAdmit(t *testing.T) {
	t.Parallel()

	repo, client := newTestPresenceRepo(t)
	ctx := context.Background()
	owner, project := uuid.New(), uuid.New()
	editorA, editorB, editorC := uuid.New(), uuid.New(), uuid.New()

	_, _, err := repo.EnsureSlot(ctx, owner, project, editorA, presenceWindow, 2)
	require.NoError(t, err)
	_, _, err = repo.EnsureSlot(ctx, owner, project, editorB, presenceWindow, 2)
	require.NoError(t, err)

	// heartbeat первого редактора протух
	key := presenceKey(owner, project)
	stale := float64(time.Now().Add(-presenceWindow - time.Second).UnixMilli())
	require.NoError(t, client.ZAdd(ctx, key, redis.Z{Score: stale, Member: editorA.String()}).Err())

	active, admitted, err := repo.EnsureSlot(ctx, owner, project, editorC, presenceWindow, 2)
	require.NoError(t, err)
	assert.True(t, admitted)
	assert.Equal(t, 2, active)

	err = client.ZScore(ctx, key, editorA.String()).Err()
	assert.ErrorIs(t, err, redis.Nil)
}

func TestPresenceRepo_ClearFreesSlots(t *testing.T) {
	t.Parallel()

	repo, _ := newTestPresenceRepo(t)
	ctx := context.Background()
	owner, project := uuid.New(), uuid.New()

	for i := 0; i < 2; i++ {
		_, _, err := repo.EnsureSlot(ctx, owner, project, uuid.New(), presenceWindow, 2)
		require.NoError(t, err)
	}

	require.NoError(t, repo.Clear(ctx, owner, project))

	active, admitted, err := repo.EnsureSlot(ctx, owner, project, uuid.New(), presenceWindow, 2)
	require.NoError(t, err)
	assert.True(t, admitted)
	assert.Equal(t, 1, active)
}
