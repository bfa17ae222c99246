package persistent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/andreyxaxa/Photo-Pipeline/internal/entity"
	"github.com/andreyxaxa/Photo-Pipeline/pkg/postgres"
	"github.com/andreyxaxa/Photo-Pipeline/pkg/types/errs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	// Table
	previewCacheTable = "preview_cache"

	// Columns
	cacheOwnerIDColumn   = "owner_id"
	cacheKeyColumn       = "cache_key"
	cacheBlobKeysColumn  = "blob_keys"
	cacheTextsColumn     = "text_results"
	cacheHitCountColumn  = "hit_count"
	cacheElapsedMsColumn = "elapsed_ms"
	cacheCreatedAtColumn = "created_at"
	cacheLastHitAtColumn = "last_hit_at"
)

type PreviewCacheRepo struct {
	*postgres.Postgres
}

func NewPreviewCacheRepo(pg *postgres.Postgres) *PreviewCacheRepo {
	return &PreviewCacheRepo{pg}
}

func (r *PreviewCacheRepo) Get(ctx context.Context, ownerID uuid.UUID, cacheKey string) (*entity.PreviewCacheEntry, error) {
	sql, args, err := r.Builder.
		Select(
			cacheOwnerIDColumn,
			cacheKeyColumn,
			cacheBlobKeysColumn,
			cacheTextsColumn,
			cacheHitCountColumn,
			cacheElapsedMsColumn,
			cacheCreatedAtColumn,
			cacheLastHitAtColumn,
		).
		From(previewCacheTable).
		Where(squirrel.And{
			squirrel.Eq{cacheOwnerIDColumn: ownerID},
			squirrel.Eq{cacheKeyColumn: cacheKey},
		}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("PreviewCacheRepo - Get - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	var entry entity.PreviewCacheEntry
	var blobKeys, texts []byte
	var elapsedMs int64

	err = executor.QueryRow(ctx, sql, args...).Scan(
		&entry.OwnerID,
		&entry.CacheKey,
		&blobKeys,
		&texts,
		&entry.HitCount,
		&elapsedMs,
		&entry.CreatedAt,
		&entry.LastHitAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("PreviewCacheRepo - Get: %w", errs.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("PreviewCacheRepo - Get - executor.QueryRow.Scan: %w", err)
	}

	entry.Elapsed = time.Duration(elapsedMs) * time.Millisecond

	if err := json.Unmarshal(blobKeys, &entry.BlobKeys); err != nil {
		return nil, fmt.Errorf("PreviewCacheRepo - Get - json.Unmarshal blob keys: %w", err)
	}
	if err := json.Unmarshal(texts, &entry.TextResults); err != nil {
		return nil, fmt.Errorf("PreviewCacheRepo - Get - json.Unmarshal text results: %w", err)
	}

	return &entry, nil
}

func (r *PreviewCacheRepo) Upsert(ctx context.Context, entry *entity.PreviewCacheEntry) error {
	if entry.BlobKeys == nil {
		entry.BlobKeys = []string{}
	}
	if entry.TextResults == nil {
		entry.TextResults = []string{}
	}

	blobKeys, err := json.Marshal(entry.BlobKeys)
	if err != nil {
		return fmt.Errorf("PreviewCacheRepo - Upsert - json.Marshal blob keys: %w", err)
	}
	texts, err := json.Marshal(entry.TextResults)
	if err != nil {
		return fmt.Errorf("PreviewCacheRepo - Upsert - json.Marshal text results: %w", err)
	}

	sql, args, err := r.Builder.
		Insert(previewCacheTable).
		Columns(
			cacheOwnerIDColumn,
			cacheKeyColumn,
			cacheBlobKeysColumn,
			cacheTextsColumn,
			cacheHitCountColumn,
			cacheElapsedMsColumn,
			cacheCreatedAtColumn,
			cacheLastHitAtColumn,
		).
		Values(
			entry.OwnerID,
			entry.CacheKey,
			blobKeys,
			texts,
			entry.HitCount,
			entry.Elapsed.Milliseconds(),
			entry.CreatedAt,
			entry.LastHitAt,
		).
		Suffix(fmt.Sprintf(
			"ON CONFLICT (%s, %s) DO UPDATE SET %s = EXCLUDED.%s, %s = EXCLUDED.%s, %s = EXCLUDED.%s",
			cacheOwnerIDColumn, cacheKeyColumn,
			cacheBlobKeysColumn, cacheBlobKeysColumn,
			cacheTextsColumn, cacheTextsColumn,
			cacheElapsedMsColumn, cacheElapsedMsColumn,
		)).
		ToSql()
	if err != nil {
		return fmt.Errorf("PreviewCacheRepo - Upsert - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	_, err = executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("PreviewCacheRepo - Upsert - executor.Exec: %w", err)
	}

	return nil
}

func (r *PreviewCacheRepo) IncrementHit(ctx context.Context, ownerID uuid.UUID, cacheKey string) error {
	sql, args, err := r.Builder.
		Update(previewCacheTable).
		Set(cacheHitCountColumn, squirrel.Expr(cacheHitCountColumn+" + 1")).
		Set(cacheLastHitAtColumn, time.Now()).
		Where(squirrel.And{
			squirrel.Eq{cacheOwnerIDColumn: ownerID},
			squirrel.Eq{cacheKeyColumn: cacheKey},
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("PreviewCacheRepo - IncrementHit - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	tag, err := executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("PreviewCacheRepo - IncrementHit - executor.Exec: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("PreviewCacheRepo - IncrementHit: %w", errs.ErrRecordNotFound)
	}

	return nil
}
