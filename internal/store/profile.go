package store

import (
	"context"
	"database/sql"

	"github.com/edusphere/apiserver/types"
	"github.com/google/uuid"
)

// ProfileRepository handles persistence for user profiles.
type ProfileRepository struct {
	db *sql.DB
}

func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) Create(ctx context.Context, profile types.Profile) (types.Profile, error) {
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}

	const query = `
		INSERT INTO profiles (id, gender, date_of_birth, about, contact_no, profession, image)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		profile.ID,
		profile.Gender,
		profile.DateOfBirth,
		profile.About,
		profile.ContactNo,
		profile.Profession,
		profile.Image,
	); err != nil {
		return types.Profile{}, translate(err)
	}
	return profile, nil
}

func (r *ProfileRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM profiles WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}
