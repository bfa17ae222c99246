package persistent

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/andreyxaxa/Photo-Pipeline/internal/entity"
	"github.com/andreyxaxa/Photo-Pipeline/pkg/postgres"
	"github.com/andreyxaxa/Photo-Pipeline/pkg/types/errs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	// Table
	processesTable = "processes"

	// Columns
	processMessageIDColumn = "message_id"
	processOwnerIDColumn   = "owner_id"
	processRunnerIDColumn  = "runner_id"
	processProjectIDColumn = "project_id"
	processImageIDColumn   = "image_id"
	processCurPosColumn    = "cur_pos"
	processInputURIColumn  = "input_uri"
	processOutputURIColumn = "output_uri"
	processPreviewColumn   = "preview"
	processCreatedAtColumn = "created_at"
)

type ProcessRepo struct {
	*postgres.Postgres
}

func NewProcessRepo(pg *postgres.Postgres) *ProcessRepo {
	return &ProcessRepo{pg}
}

func (r *ProcessRepo) Create(ctx context.Context, process *entity.Process) error {
	sql, args, err := r.Builder.
		Insert(processesTable).
		Columns(
			processMessageIDColumn,
			processOwnerIDColumn,
			processRunnerIDColumn,
			processProjectIDColumn,
			processImageIDColumn,
			processCurPosColumn,
			processInputURIColumn,
			processOutputURIColumn,
			processPreviewColumn,
			processCreatedAtColumn,
		).
		Values(
			process.MessageID,
			process.OwnerID,
			process.RunnerID,
			process.ProjectID,
			process.ImageID,
			process.CurPos,
			process.InputURI,
			process.OutputURI,
			process.Preview,
			process.CreatedAt,
		).ToSql()
	if err != nil {
		return fmt.Errorf("ProcessRepo - Create - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	_, err = executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("ProcessRepo - Create - executor.Exec: %w", err)
	}

	return nil
}

func (r *ProcessRepo) GetByMessageID(ctx context.Context, messageID string) (*entity.Process, error) {
	sql, args, err := r.Builder.
		Select(
			processMessageIDColumn,
			processOwnerIDColumn,
			processRunnerIDColumn,
			processProjectIDColumn,
			processImageIDColumn,
			processCurPosColumn,
			processInputURIColumn,
			processOutputURIColumn,
			processPreviewColumn,
			processCreatedAtColumn,
		).
		From(processesTable).
		Where(squirrel.Eq{processMessageIDColumn: messageID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ProcessRepo - GetByMessageID - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	var process entity.Process
	err = executor.QueryRow(ctx, sql, args...).Scan(
		&process.MessageID,
		&process.OwnerID,
		&process.RunnerID,
		&process.ProjectID,
		&process.ImageID,
		&process.CurPos,
		&process.InputURI,
		&process.OutputURI,
		&process.Preview,
		&process.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("ProcessRepo - GetByMessageID: %w", errs.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("ProcessRepo - GetByMessageID - executor.QueryRow.Scan: %w", err)
	}

	return &process, nil
}

func (r *ProcessRepo) GetAnyByProject(ctx context.Context, projectID uuid.UUID) (*entity.Process, error) {
	sql, args, err := r.Builder.
		Select(
			processMessageIDColumn,
			processOwnerIDColumn,
			processRunnerIDColumn,
			processProjectIDColumn,
			processImageIDColumn,
			processCurPosColumn,
			processInputURIColumn,
			processOutputURIColumn,
			processPreviewColumn,
			processCreatedAtColumn,
		).
		From(processesTable).
		Where(squirrel.Eq{processProjectIDColumn: projectID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ProcessRepo - GetAnyByProject - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	var process entity.Process
	err = executor.QueryRow(ctx, sql, args...).Scan(
		&process.MessageID,
		&process.OwnerID,
		&process.RunnerID,
		&process.ProjectID,
		&process.ImageID,
		&process.CurPos,
		&process.InputURI,
		&process.OutputURI,
		&process.Preview,
		&process.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("ProcessRepo - GetAnyByProject: %w", errs.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("ProcessRepo - GetAnyByProject - executor.QueryRow.Scan: %w", err)
	}

	return &process, nil
}

// Delete is idempotent: a missing row is not an error, a late result for a
// cancelled run resolves to a no-op.
func (r *ProcessRepo) Delete(ctx context.Context, messageID string) error {
	sql, args, err := r.Builder.
		Delete(processesTable).
		Where(squirrel.Eq{processMessageIDColumn: messageID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("ProcessRepo - Delete - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	_, err = executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("ProcessRepo - Delete - executor.Exec: %w", err)
	}

	return nil
}

func (r *ProcessRepo) DeleteByProject(ctx context.Context, projectID uuid.UUID) (int64, error) {
	sql, args, err := r.Builder.
		Delete(processesTable).
		Where(squirrel.Eq{processProjectIDColumn: projectID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("ProcessRepo - DeleteByProject - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	tag, err := executor.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("ProcessRepo - DeleteByProject - executor.Exec: %w", err)
	}

	return tag.RowsAffected(), nil
}

func (r *ProcessRepo) CountByRun(ctx context.Context, projectID uuid.UUID, preview bool) (int64, error) {
	sql, args, err := r.Builder.
		Select("COUNT(*)").
		From(processesTable).
		Where(squirrel.And{
			squirrel.Eq{processProjectIDColumn: projectID},
			squirrel.Eq{processPreviewColumn: preview},
		}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("ProcessRepo - CountByRun - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	var count int64
	err = executor.QueryRow(ctx, sql, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ProcessRepo - CountByRun - executor.QueryRow.Scan: %w", err)
	}

	return count, nil
}
