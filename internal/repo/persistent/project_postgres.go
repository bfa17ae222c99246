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
	projectsTable = "projects"

	// Columns
	projectIDColumn      = "id"
	projectOwnerIDColumn = "owner_id"
	projectNameColumn    = "name"
	projectToolsColumn   = "tools"
	projectImagesColumn  = "images"
	projectSharesColumn  = "share_links"
	projectVersionColumn = "version"
	projectChargedColumn = "charged_advanced_tools"
	projectPendingColumn = "pending_advanced_ops"
	projectCreatedColumn = "created_at"
	projectUpdatedColumn = "updated_at"
)

// ProjectRepo keeps the whole aggregate in one row: scalar counters as
// columns, tools/images/share links as jsonb documents. The version column
// is the only concurrency control.
type ProjectRepo struct {
	*postgres.Postgres
}

func NewProjectRepo(pg *postgres.Postgres) *ProjectRepo {
	return &ProjectRepo{pg}
}

func (r *ProjectRepo) Create(ctx context.Context, project *entity.Project) error {
	tools, images, shares, err := marshalProjectDocs(project)
	if err != nil {
		return fmt.Errorf("ProjectRepo - Create - marshalProjectDocs: %w", err)
	}

	sql, args, err := r.Builder.
		Insert(projectsTable).
		Columns(
			projectIDColumn,
			projectOwnerIDColumn,
			projectNameColumn,
			projectToolsColumn,
			projectImagesColumn,
			projectSharesColumn,
			projectVersionColumn,
			projectChargedColumn,
			projectPendingColumn,
			projectCreatedColumn,
			projectUpdatedColumn,
		).
		Values(
			project.ID,
			project.OwnerID,
			project.Name,
			tools,
			images,
			shares,
			project.Version,
			project.ChargedAdvancedTools,
			project.PendingAdvancedOps,
			project.CreatedAt,
			project.UpdatedAt,
		).ToSql()
	if err != nil {
		return fmt.Errorf("ProjectRepo - Create - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	_, err = executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("ProjectRepo - Create - executor.Exec: %w", err)
	}

	return nil
}

func (r *ProjectRepo) GetByID(ctx context.Context, ownerID, projectID uuid.UUID) (*entity.Project, error) {
	sql, args, err := r.selectProject().
		Where(squirrel.And{
			squirrel.Eq{projectIDColumn: projectID},
			squirrel.Eq{projectOwnerIDColumn: ownerID},
		}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ProjectRepo - GetByID - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	project, err := scanProject(executor.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("ProjectRepo - GetByID: %w", errs.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("ProjectRepo - GetByID - scanProject: %w", err)
	}

	return project, nil
}

func (r *ProjectRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*entity.Project, error) {
	sql, args, err := r.selectProject().
		Where(squirrel.Eq{projectOwnerIDColumn: ownerID}).
		OrderBy(projectCreatedColumn + " ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ProjectRepo - ListByOwner - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	rows, err := executor.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("ProjectRepo - ListByOwner - executor.Query: %w", err)
	}
	defer rows.Close()

	var projects []*entity.Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("ProjectRepo - ListByOwner - scanProject: %w", err)
		}
		projects = append(projects, project)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ProjectRepo - ListByOwner - rows.Err: %w", err)
	}

	return projects, nil
}

// Update is the compare-and-swap primitive: mutate is applied to the copy
// read at expectedVersion, and the write lands only if the stored version has
// not moved. A lost race returns errs.ConflictError with the current server
// version so the caller can refetch and retry.
func (r *ProjectRepo) Update(
	ctx context.Context,
	ownerID, projectID uuid.UUID,
	expectedVersion int64,
	mutate func(*entity.Project) error,
) (*entity.Project, error) {
	project, err := r.GetByID(ctx, ownerID, projectID)
	if err != nil {
		return nil, fmt.Errorf("ProjectRepo - Update - r.GetByID: %w", err)
	}

	if project.Version != expectedVersion {
		return nil, fmt.Errorf("ProjectRepo - Update: %w", &errs.ConflictError{ServerVersion: project.Version})
	}

	if err := mutate(project); err != nil {
		return nil, fmt.Errorf("ProjectRepo - Update - mutate: %w", err)
	}

	swapped, err := r.swap(ctx, project, expectedVersion)
	if err != nil {
		return nil, fmt.Errorf("ProjectRepo - Update: %w", err)
	}
	if !swapped {
		current, err := r.GetByID(ctx, ownerID, projectID)
		if err != nil {
			return nil, fmt.Errorf("ProjectRepo - Update - r.GetByID: %w", err)
		}
		return nil, fmt.Errorf("ProjectRepo - Update: %w", &errs.ConflictError{ServerVersion: current.Version})
	}

	return project, nil
}

const _updateAnyAttempts = 5

// UpdateAny retries the swap against whatever version is current. Used for
// orchestrator-internal counter updates that carry no client expectation.
func (r *ProjectRepo) UpdateAny(
	ctx context.Context,
	ownerID, projectID uuid.UUID,
	mutate func(*entity.Project) error,
) (*entity.Project, error) {
	var lastVersion int64

	for attempt := 0; attempt < _updateAnyAttempts; attempt++ {
		project, err := r.GetByID(ctx, ownerID, projectID)
		if err != nil {
			return nil, fmt.Errorf("ProjectRepo - UpdateAny - r.GetByID: %w", err)
		}

		expected := project.Version
		lastVersion = expected

		if err := mutate(project); err != nil {
			return nil, fmt.Errorf("ProjectRepo - UpdateAny - mutate: %w", err)
		}

		swapped, err := r.swap(ctx, project, expected)
		if err != nil {
			return nil, fmt.Errorf("ProjectRepo - UpdateAny: %w", err)
		}
		if swapped {
			return project, nil
		}
	}

	return nil, fmt.Errorf("ProjectRepo - UpdateAny: %w", &errs.ConflictError{ServerVersion: lastVersion})
}

func (r *ProjectRepo) Delete(ctx context.Context, ownerID, projectID uuid.UUID, expectedVersion int64) error {
	sql, args, err := r.Builder.
		Delete(projectsTable).
		Where(squirrel.And{
			squirrel.Eq{projectIDColumn: projectID},
			squirrel.Eq{projectOwnerIDColumn: ownerID},
			squirrel.Eq{projectVersionColumn: expectedVersion},
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("ProjectRepo - Delete - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	tag, err := executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("ProjectRepo - Delete - executor.Exec: %w", err)
	}

	if tag.RowsAffected() == 0 {
		current, err := r.GetByID(ctx, ownerID, projectID)
		if err != nil {
			if errors.Is(err, errs.ErrRecordNotFound) {
				return fmt.Errorf("ProjectRepo - Delete: %w", errs.ErrRecordNotFound)
			}
			return fmt.Errorf("ProjectRepo - Delete - r.GetByID: %w", err)
		}
		return fmt.Errorf("ProjectRepo - Delete: %w", &errs.ConflictError{ServerVersion: current.Version})
	}

	return nil
}

// swap writes the mutated aggregate guarded by the version read before the
// mutation; version moves by exactly 1.
func (r *ProjectRepo) swap(ctx context.Context, project *entity.Project, expectedVersion int64) (bool, error) {
	project.Version = expectedVersion + 1
	project.UpdatedAt = time.Now()

	tools, images, shares, err := marshalProjectDocs(project)
	if err != nil {
		return false, fmt.Errorf("swap - marshalProjectDocs: %w", err)
	}

	sql, args, err := r.Builder.
		Update(projectsTable).
		Set(projectNameColumn, project.Name).
		Set(projectToolsColumn, tools).
		Set(projectImagesColumn, images).
		Set(projectSharesColumn, shares).
		Set(projectVersionColumn, project.Version).
		Set(projectChargedColumn, project.ChargedAdvancedTools).
		Set(projectPendingColumn, project.PendingAdvancedOps).
		Set(projectUpdatedColumn, project.UpdatedAt).
		Where(squirrel.And{
			squirrel.Eq{projectIDColumn: project.ID},
			squirrel.Eq{projectOwnerIDColumn: project.OwnerID},
			squirrel.Eq{projectVersionColumn: expectedVersion},
		}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("swap - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	tag, err := executor.Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("swap - executor.Exec: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

func (r *ProjectRepo) selectProject() squirrel.SelectBuilder {
	return r.Builder.
		Select(
			projectIDColumn,
			projectOwnerIDColumn,
			projectNameColumn,
			projectToolsColumn,
			projectImagesColumn,
			projectSharesColumn,
			projectVersionColumn,
			projectChargedColumn,
			projectPendingColumn,
			projectCreatedColumn,
			projectUpdatedColumn,
		).
		From(projectsTable)
}

func scanProject(row pgx.Row) (*entity.Project, error) {
	var project entity.Project
	var tools, images, shares []byte

	err := row.Scan(
		&project.ID,
		&project.OwnerID,
		&project.Name,
		&tools,
		&images,
		&shares,
		&project.Version,
		&project.ChargedAdvancedTools,
		&project.PendingAdvancedOps,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(tools, &project.Tools); err != nil {
		return nil, fmt.Errorf("scanProject - json.Unmarshal tools: %w", err)
	}
	if err := json.Unmarshal(images, &project.Images); err != nil {
		return nil, fmt.Errorf("scanProject - json.Unmarshal images: %w", err)
	}
	if err := json.Unmarshal(shares, &project.ShareLinks); err != nil {
		return nil, fmt.Errorf("scanProject - json.Unmarshal share links: %w", err)
	}

	return &project, nil
}

func marshalProjectDocs(project *entity.Project) (tools, images, shares []byte, err error) {
	if project.Tools == nil {
		project.Tools = []entity.Tool{}
	}
	if project.Images == nil {
		project.Images = []entity.ProjectImage{}
	}
	if project.ShareLinks == nil {
		project.ShareLinks = []entity.ShareLink{}
	}

	tools, err = json.Marshal(project.Tools)
	if err != nil {
		return nil, nil, nil, err
	}
	images, err = json.Marshal(project.Images)
	if err != nil {
		return nil, nil, nil, err
	}
	shares, err = json.Marshal(project.ShareLinks)
	if err != nil {
		return nil, nil, nil, err
	}

	return tools, images, shares, nil
}
