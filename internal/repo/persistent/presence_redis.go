package persistent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andreyxaxa/Photo-Pipeline/pkg/redisclient"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// PresenceRepo keeps one sorted set per project, member = editor id,
// score = last heartbeat. Expiry falls out of score purging plus a key TTL.
type PresenceRepo struct {
	*redisclient.RedisClient
}

func NewPresenceRepo(rc *redisclient.RedisClient) *PresenceRepo {
	return &PresenceRepo{rc}
}

func presenceKey(ownerID, projectID uuid.UUID) string {
	return fmt.Sprintf("presence:%s:%s", ownerID, projectID)
}

func (r *PresenceRepo) EnsureSlot(
	ctx context.Context,
	ownerID, projectID, editorID uuid.UUID,
	window time.Duration,
	limit int,
) (int, bool, error) {
	key := presenceKey(ownerID, projectID)
	now := time.Now()
	cutoff := now.Add(-window)

	err := r.Client.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%d", cutoff.UnixMilli())).Err()
	if err != nil {
		return 0, false, fmt.Errorf("PresenceRepo - EnsureSlot - r.Client.ZRemRangeByScore: %w", err)
	}

	member := editorID.String()

	_, err = r.Client.ZScore(ctx, key, member).Result()
	known := err == nil
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, false, fmt.Errorf("PresenceRepo - EnsureSlot - r.Client.ZScore: %w", err)
	}

	if !known && limit > 0 {
		active, err := r.Client.ZCard(ctx, key).Result()
		if err != nil {
			return 0, false, fmt.Errorf("PresenceRepo - EnsureSlot - r.Client.ZCard: %w", err)
		}
		if active >= int64(limit) {
			return int(active), false, nil
		}
	}

	// ZADD doubles as refresh for a known editor; two racing admissions
	// collapse into one member, so overshoot resolves itself.
	err = r.Client.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMilli()), Member: member}).Err()
	if err != nil {
		return 0, false, fmt.Errorf("PresenceRepo - EnsureSlot - r.Client.ZAdd: %w", err)
	}

	if err := r.Client.Expire(ctx, key, window).Err(); err != nil {
		return 0, false, fmt.Errorf("PresenceRepo - EnsureSlot - r.Client.Expire: %w", err)
	}

	active, err := r.Client.ZCard(ctx, key).Result()
	if err != nil {
		return 0, false, fmt.Errorf("PresenceRepo - EnsureSlot - r.Client.ZCard: %w", err)
	}

	return int(active), true, nil
}

func (r *PresenceRepo) Clear(ctx context.Context, ownerID, projectID uuid.UUID) error {
	err := r.Client.Del(ctx, presenceKey(ownerID, projectID)).Err()
	if err != nil {
		return fmt.Errorf("PresenceRepo - Clear - r.Client.Del: %w", err)
	}

	return nil
}
