package repository

import (
	"context"

	"github.com/noberman/PTSessionTrackerBack/internal/models"
	"github.com/shopspring/decimal"
)

type CreatePackageInput struct {
	OrgID         int64
	ClientID      int64
	Name          string
	TotalSessions int
	TotalValue    decimal.Decimal
}

type PackageRepository struct {
	db DBTX
}

func NewPackageRepository(db DBTX) *PackageRepository {
	return &PackageRepository{db: db}
}

func (r *PackageRepository) Create(ctx context.Context, input CreatePackageInput) (*models.Package, error) {
	query := `
		INSERT INTO packages (org_id, client_id, name, total_sessions, total_value)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, org_id, client_id, name, total_sessions, total_value, archived, created_at
	`
	var pkg models.Package
	err := r.db.QueryRow(ctx, query, input.OrgID, input.ClientID, input.Name, input.TotalSessions, input.TotalValue).Scan(
		&pkg.ID,
		&pkg.OrgID,
		&pkg.ClientID,
		&pkg.Name,
		&pkg.TotalSessions,
		&pkg.TotalValue,
		&pkg.Archived,
		&pkg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &pkg, nil
}

func (r *PackageRepository) GetByID(ctx context.Context, packageID int64) (*models.Package, error) {
	query := `
		SELECT id, org_id, client_id, name, total_sessions, total_value, archived, created_at
		FROM packages
		WHERE id = $1
	`
	var pkg models.Package
	err := r.db.QueryRow(ctx, query, packageID).Scan(
		&pkg.ID,
		&pkg.OrgID,
		&pkg.ClientID,
		&pkg.Name,
		&pkg.TotalSessions,
		&pkg.TotalValue,
		&pkg.Archived,
		&pkg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &pkg, nil
}

func (r *PackageRepository) GetByIDForUpdate(ctx context.Context, packageID int64) (*models.Package, error) {
	query := `
		SELECT id, org_id, client_id, name, total_sessions, total_value, archived, created_at
		FROM packages
		WHERE id = $1
		FOR UPDATE
	`
	var pkg models.Package
	err := r.db.QueryRow(ctx, query, packageID).Scan(
		&pkg.ID,
		&pkg.OrgID,
		&pkg.ClientID,
		&pkg.Name,
		&pkg.TotalSessions,
		&pkg.TotalValue,
		&pkg.Archived,
		&pkg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &pkg, nil
}

func (r *PackageRepository) ListByClientID(ctx context.Context, clientID int64) ([]models.Package, error) {
	query := `
		SELECT id, org_id, client_id, name, total_sessions, total_value, archived, created_at
		FROM packages
		WHERE client_id = $1
		ORDER BY id ASC
	`
	rows, err := r.db.Query(ctx, query, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	packages := make([]models.Package, 0)
	for rows.Next() {
		var pkg models.Package
		if err := rows.Scan(
			&pkg.ID,
			&pkg.OrgID,
			&pkg.ClientID,
			&pkg.Name,
			&pkg.TotalSessions,
			&pkg.TotalValue,
			&pkg.Archived,
			&pkg.CreatedAt,
		); err != nil {
			return nil, err
		}
		packages = append(packages, pkg)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return packages, nil
}

// SetArchivedByClientID archives or unarchives every package of a client in
// one statement; used when the client is deactivated or reactivated.
func (r *PackageRepository) SetArchivedByClientID(ctx context.Context, clientID int64, archived bool) (int, error) {
	query := `
		UPDATE packages
		SET archived = $2
		WHERE client_id = $1 AND archived <> $2
	`
	tag, err := r.db.Exec(ctx, query, clientID, archived)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
