package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/edusphere/apiserver/types"
	"github.com/google/uuid"
)

// TagRepository handles persistence for tags.
type TagRepository struct {
	db *sql.DB
}

func NewTagRepository(db *sql.DB) *TagRepository {
	return &TagRepository{db: db}
}

func (r *TagRepository) Create(ctx context.Context, tag types.Tag) (types.Tag, error) {
	if tag.ID == "" {
		tag.ID = uuid.NewString()
	}
	const query = `INSERT INTO tags (id, name, description) VALUES ($1, $2, $3)`
	if _, err := r.db.ExecContext(ctx, query, tag.ID, tag.Name, tag.Description); err != nil {
		return types.Tag{}, translate(err)
	}
	return tag, nil
}

func (r *TagRepository) GetByName(ctx context.Context, name string) (types.Tag, error) {
	const query = `SELECT id, name, description FROM tags WHERE name = $1`
	var tag types.Tag
	err := r.db.QueryRowContext(ctx, query, name).Scan(&tag.ID, &tag.Name, &tag.Description)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Tag{}, ErrNotFound
		}
		return types.Tag{}, err
	}
	return tag, nil
}

func (r *TagRepository) List(ctx context.Context) ([]types.Tag, error) {
	const query = `SELECT id, name, description FROM tags ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tags := make([]types.Tag, 0)
	for rows.Next() {
		var tag types.Tag
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.Description); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tags, nil
}

// FileRepository handles persistence for uploaded file records.
type FileRepository struct {
	db *sql.DB
}

func NewFileRepository(db *sql.DB) *FileRepository {
	return &FileRepository{db: db}
}

func (r *FileRepository) Create(ctx context.Context, file types.File) (types.File, error) {
	if file.ID == "" {
		file.ID = uuid.NewString()
	}
	file.CreatedAt = time.Now().UTC()

	const query = `
		INSERT INTO files (id, name, email, image_url, tag, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		file.ID,
		file.Name,
		file.Email,
		file.ImageURL,
		file.Tag,
		file.CreatedAt,
	); err != nil {
		return types.File{}, translate(err)
	}
	return file, nil
}
