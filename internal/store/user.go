package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/edusphere/apiserver/types"
	"github.com/google/uuid"
)

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userSelect = `
		SELECT u.id, u.first_name, u.last_name, u.email, u.password_hash, u.account_type,
			u.profile_id, u.reset_token, u.reset_expiry, u.created_at,
			p.id, p.gender, p.date_of_birth, p.about, p.contact_no, p.profession, p.image
		FROM users u
		LEFT JOIN profiles p ON p.id = u.profile_id`

func scanUser(row interface{ Scan(...any) error }) (types.User, error) {
	var (
		user        types.User
		profileID   sql.NullString
		resetToken  sql.NullString
		resetExpiry sql.NullTime
		joinedID    sql.NullString
		image       sql.NullString
		profile     types.Profile
	)
	err := row.Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&user.PasswordHash,
		&user.AccountType,
		&profileID,
		&resetToken,
		&resetExpiry,
		&user.CreatedAt,
		&joinedID,
		&profile.Gender,
		&profile.DateOfBirth,
		&profile.About,
		&profile.ContactNo,
		&profile.Profession,
		&image,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}

	user.ProfileID = profileID.String
	if resetToken.Valid && resetExpiry.Valid {
		user.SetReset(resetToken.String, resetExpiry.Time)
	}
	if joinedID.Valid {
		profile.ID = joinedID.String
		profile.Image = image.String
		user.Profile = &profile
	}
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return types.User{}, ErrNotFound
	}
	return scanUser(r.db.QueryRowContext(ctx, userSelect+` WHERE u.id = $1`, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, userSelect+` WHERE u.email = $1`, email))
}

// GetByResetToken returns the user holding token with a deadline after now.
func (r *UserRepository) GetByResetToken(ctx context.Context, token string, now time.Time) (types.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		userSelect+` WHERE u.reset_token = $1 AND u.reset_expiry > $2`, token, now))
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = time.Now().UTC()

	const query = `
		INSERT INTO users (id, first_name, last_name, email, password_hash, account_type, profile_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.FirstName,
		user.LastName,
		user.Email,
		user.PasswordHash,
		user.AccountType,
		nullString(user.ProfileID),
		user.CreatedAt,
	); err != nil {
		return types.User{}, translate(err)
	}
	return user, nil
}

// SetReset records a pending reset on the user.
func (r *UserRepository) SetReset(ctx context.Context, id, token string, expiry time.Time) error {
	const query = `UPDATE users SET reset_token = $1, reset_expiry = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, token, expiry, id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

// ClearReset drops the pending reset only while the user still holds token.
func (r *UserRepository) ClearReset(ctx context.Context, id, token string) error {
	const query = `
		UPDATE users
		SET reset_token = NULL,
			reset_expiry = NULL
		WHERE id = $1 AND reset_token = $2`
	result, err := r.db.ExecContext(ctx, query, id, token)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	const query = `UPDATE users SET password_hash = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, passwordHash, id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

// CompleteReset stores passwordHash and clears the pending reset, provided
// token is still held by the user and unexpired at now.
func (r *UserRepository) CompleteReset(ctx context.Context, id, token, passwordHash string, now time.Time) error {
	const query = `
		UPDATE users
		SET password_hash = $1,
			reset_token = NULL,
			reset_expiry = NULL
		WHERE id = $2 AND reset_token = $3 AND reset_expiry > $4`
	result, err := r.db.ExecContext(ctx, query, passwordHash, id, token, now)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM users WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

func expectAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
