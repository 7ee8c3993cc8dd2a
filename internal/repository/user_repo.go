package repository

import (
	"context"

	"github.com/noberman/PTSessionTrackerBack/internal/models"
)

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (org_id, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`
	return r.db.QueryRow(ctx, query, user.OrgID, user.Email, user.PasswordHash, user.Role).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `
		SELECT id, org_id, email, password_hash, role, commission_profile_id, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	var user models.User
	err := r.db.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.OrgID,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.CommissionProfileID,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, org_id, email, password_hash, role, commission_profile_id, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	var user models.User
	err := r.db.QueryRow(ctx, query, email).Scan(
		&user.ID,
		&user.OrgID,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.CommissionProfileID,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) ListTrainersByOrg(ctx context.Context, orgID int64) ([]models.User, error) {
	query := `
		SELECT id, org_id, email, password_hash, role, commission_profile_id, created_at, updated_at
		FROM users
		WHERE org_id = $1 AND role = 'trainer'
		ORDER BY id ASC
	`
	rows, err := r.db.Query(ctx, query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	trainers := make([]models.User, 0)
	for rows.Next() {
		var user models.User
		if err := rows.Scan(
			&user.ID,
			&user.OrgID,
			&user.Email,
			&user.PasswordHash,
			&user.Role,
			&user.CommissionProfileID,
			&user.CreatedAt,
			&user.UpdatedAt,
		); err != nil {
			return nil, err
		}
		trainers = append(trainers, user)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return trainers, nil
}

func (r *UserRepository) AssignCommissionProfile(ctx context.Context, userID, profileID int64) error {
	query := `
		UPDATE users
		SET commission_profile_id = $2, updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.Exec(ctx, query, userID, profileID)
	return err
}

// AssignProfileToUnconfiguredTrainers sets the profile on every trainer of the
// organization that has no v2 profile yet and returns how many were updated.
func (r *UserRepository) AssignProfileToUnconfiguredTrainers(ctx context.Context, orgID, profileID int64) (int, error) {
	query := `
		UPDATE users
		SET commission_profile_id = $2, updated_at = NOW()
		WHERE org_id = $1 AND role = 'trainer' AND commission_profile_id IS NULL
	`
	tag, err := r.db.Exec(ctx, query, orgID, profileID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
