package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"archmap/internal/domain"
)

// ProjectRepository define el contrato de persistencia para proyectos.
// Todas las lecturas y mutaciones van acotadas por owner_id.
type ProjectRepository interface {
	Create(ctx context.Context, project domain.Project) error
	GetByID(ctx context.Context, id, ownerID string) (domain.Project, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]domain.Project, error)
	Update(ctx context.Context, project domain.Project) error
	Delete(ctx context.Context, id, ownerID string) error
}

// PgProjectRepository implementa ProjectRepository usando pgxpool.
type PgProjectRepository struct {
	pool *pgxpool.Pool
}

func NewPgProjectRepository(pool *pgxpool.Pool) *PgProjectRepository {
	return &PgProjectRepository{pool: pool}
}

func (r *PgProjectRepository) Create(ctx context.Context, project domain.Project) error {
	const query = `
		INSERT INTO projects (id, owner_id, name, repo_url, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		project.ID,
		project.OwnerID,
		project.Name,
		project.RepoURL,
		project.Description,
		project.CreatedAt,
		project.UpdatedAt,
	)
	return err
}

func (r *PgProjectRepository) GetByID(ctx context.Context, id, ownerID string) (domain.Project, error) {
	const query = `
		SELECT id, owner_id, name, repo_url, description, created_at, updated_at
		FROM projects
		WHERE id = $1 AND owner_id = $2
	`
	var p domain.Project
	err := r.pool.QueryRow(ctx, query, id, ownerID).Scan(
		&p.ID,
		&p.OwnerID,
		&p.Name,
		&p.RepoURL,
		&p.Description,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

func (r *PgProjectRepository) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]domain.Project, error) {
	const query = `
		SELECT id, owner_id, name, repo_url, description, created_at, updated_at
		FROM projects
		WHERE owner_id = $1
		ORDER BY created_at
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []domain.Project
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(
			&p.ID,
			&p.OwnerID,
			&p.Name,
			&p.RepoURL,
			&p.Description,
			&p.CreatedAt,
			&p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (r *PgProjectRepository) Update(ctx context.Context, project domain.Project) error {
	const query = `
		UPDATE projects
		SET name = $3, repo_url = $4, description = $5, updated_at = $6
		WHERE id = $1 AND owner_id = $2
	`
	tag, err := r.pool.Exec(ctx, query,
		project.ID,
		project.OwnerID,
		project.Name,
		project.RepoURL,
		project.Description,
		project.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgProjectRepository) Delete(ctx context.Context, id, ownerID string) error {
	const query = `DELETE FROM projects WHERE id = $1 AND owner_id = $2`
	tag, err := r.pool.Exec(ctx, query, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
