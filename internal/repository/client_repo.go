package repository

import (
	"context"

	"github.com/noberman/PTSessionTrackerBack/internal/models"
)

type CreateClientInput struct {
	OrgID     int64
	TrainerID int64
	FullName  string
}

type ClientRepository struct {
	db DBTX
}

func NewClientRepository(db DBTX) *ClientRepository {
	return &ClientRepository{db: db}
}

func (r *ClientRepository) Create(ctx context.Context, input CreateClientInput) (*models.Client, error) {
	query := `
		INSERT INTO clients (org_id, trainer_id, full_name, active)
		VALUES ($1, $2, $3, TRUE)
		RETURNING id, org_id, trainer_id, full_name, active, archived_at, created_at
	`
	var client models.Client
	err := r.db.QueryRow(ctx, query, input.OrgID, input.TrainerID, input.FullName).Scan(
		&client.ID,
		&client.OrgID,
		&client.TrainerID,
		&client.FullName,
		&client.Active,
		&client.ArchivedAt,
		&client.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *ClientRepository) GetByID(ctx context.Context, clientID int64) (*models.Client, error) {
	query := `
		SELECT id, org_id, trainer_id, full_name, active, archived_at, created_at
		FROM clients
		WHERE id = $1
	`
	var client models.Client
	err := r.db.QueryRow(ctx, query, clientID).Scan(
		&client.ID,
		&client.OrgID,
		&client.TrainerID,
		&client.FullName,
		&client.Active,
		&client.ArchivedAt,
		&client.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &client, nil
}

// SetActiveIfCurrent flips the active flag only when it currently holds the
// expected value, so deactivate/reactivate are idempotence-safe.
func (r *ClientRepository) SetActiveIfCurrent(ctx context.Context, clientID int64, currentActive, nextActive bool) (*models.Client, error) {
	query := `
		UPDATE clients
		SET active = $3,
		    archived_at = CASE WHEN $3 THEN NULL ELSE NOW() END
		WHERE id = $1 AND active = $2
		RETURNING id, org_id, trainer_id, full_name, active, archived_at, created_at
	`
	var client models.Client
	err := r.db.QueryRow(ctx, query, clientID, currentActive, nextActive).Scan(
		&client.ID,
		&client.OrgID,
		&client.TrainerID,
		&client.FullName,
		&client.Active,
		&client.ArchivedAt,
		&client.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &client, nil
}
