package persistent

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/andreyxaxa/Photo-Pipeline/internal/entity"
	"github.com/andreyxaxa/Photo-Pipeline/pkg/postgres"
	"github.com/google/uuid"
)

const (
	// Table
	resultsTable = "results"

	// Columns
	resultIDColumn        = "id"
	resultKindColumn      = "kind"
	resultTypeColumn      = "type"
	resultFileNameColumn  = "file_name"
	resultBlobKeyColumn   = "blob_key"
	resultImageIDColumn   = "image_id"
	resultProjectIDColumn = "project_id"
	resultOwnerIDColumn   = "owner_id"
	resultCreatedAtColumn = "created_at"
)

type ResultRepo struct {
	*postgres.Postgres
}

func NewResultRepo(pg *postgres.Postgres) *ResultRepo {
	return &ResultRepo{pg}
}

// Upsert supersedes the previous artifact of the same kind for the image.
func (r *ResultRepo) Upsert(ctx context.Context, result *entity.Result) error {
	sql, args, err := r.Builder.
		Insert(resultsTable).
		Columns(
			resultIDColumn,
			resultKindColumn,
			resultTypeColumn,
			resultFileNameColumn,
			resultBlobKeyColumn,
			resultImageIDColumn,
			resultProjectIDColumn,
			resultOwnerIDColumn,
			resultCreatedAtColumn,
		).
		Values(
			result.ID,
			result.Kind,
			result.Type,
			result.FileName,
			result.BlobKey,
			result.ImageID,
			result.ProjectID,
			result.OwnerID,
			result.CreatedAt,
		).
		Suffix(fmt.Sprintf(
			"ON CONFLICT (%s, %s, %s, %s) DO UPDATE SET %s = EXCLUDED.%s, %s = EXCLUDED.%s, %s = EXCLUDED.%s, %s = EXCLUDED.%s",
			resultProjectIDColumn, resultImageIDColumn, resultKindColumn, resultTypeColumn,
			resultIDColumn, resultIDColumn,
			resultFileNameColumn, resultFileNameColumn,
			resultBlobKeyColumn, resultBlobKeyColumn,
			resultCreatedAtColumn, resultCreatedAtColumn,
		)).
		ToSql()
	if err != nil {
		return fmt.Errorf("ResultRepo - Upsert - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	_, err = executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("ResultRepo - Upsert - executor.Exec: %w", err)
	}

	return nil
}

func (r *ResultRepo) ListByProject(ctx context.Context, projectID uuid.UUID, kind entity.ResultKind) ([]*entity.Result, error) {
	sql, args, err := r.Builder.
		Select(
			resultIDColumn,
			resultKindColumn,
			resultTypeColumn,
			resultFileNameColumn,
			resultBlobKeyColumn,
			resultImageIDColumn,
			resultProjectIDColumn,
			resultOwnerIDColumn,
			resultCreatedAtColumn,
		).
		From(resultsTable).
		Where(squirrel.And{
			squirrel.Eq{resultProjectIDColumn: projectID},
			squirrel.Eq{resultKindColumn: kind},
		}).
		OrderBy(resultCreatedAtColumn + " ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ResultRepo - ListByProject - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	rows, err := executor.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("ResultRepo - ListByProject - executor.Query: %w", err)
	}
	defer rows.Close()

	var results []*entity.Result
	for rows.Next() {
		var result entity.Result
		err = rows.Scan(
			&result.ID,
			&result.Kind,
			&result.Type,
			&result.FileName,
			&result.BlobKey,
			&result.ImageID,
			&result.ProjectID,
			&result.OwnerID,
			&result.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("ResultRepo - ListByProject - rows.Scan: %w", err)
		}
		results = append(results, &result)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ResultRepo - ListByProject - rows.Err: %w", err)
	}

	return results, nil
}

func (r *ResultRepo) DeleteByProject(ctx context.Context, projectID uuid.UUID) error {
	sql, args, err := r.Builder.
		Delete(resultsTable).
		Where(squirrel.Eq{resultProjectIDColumn: projectID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("ResultRepo - DeleteByProject - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	_, err = executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("ResultRepo - DeleteByProject - executor.Exec: %w", err)
	}

	return nil
}
