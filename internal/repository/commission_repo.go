package repository

import (
	"context"

	"github.com/noberman/PTSessionTrackerBack/internal/models"
)

type CommissionRepository struct {
	db DBTX
}

func NewCommissionRepository(db DBTX) *CommissionRepository {
	return &CommissionRepository{db: db}
}

func (r *CommissionRepository) CreateProfile(ctx context.Context, profile *models.CommissionProfile) error {
	query := `
		INSERT INTO commission_profiles (org_id, name, calculation_method, trigger_type)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err := r.db.QueryRow(ctx, query, profile.OrgID, profile.Name, profile.CalculationMethod, profile.TriggerType).
		Scan(&profile.ID, &profile.CreatedAt)
	if err != nil {
		return err
	}

	for i := range profile.Tiers {
		tier := &profile.Tiers[i]
		tier.ProfileID = profile.ID
		if err := r.CreateTier(ctx, tier); err != nil {
			return err
		}
	}
	return nil
}

func (r *CommissionRepository) CreateTier(ctx context.Context, tier *models.CommissionTier) error {
	query := `
		INSERT INTO commission_tiers (profile_id, tier_level, session_threshold, session_commission_percent, session_flat_fee)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	return r.db.QueryRow(
		ctx,
		query,
		tier.ProfileID,
		tier.TierLevel,
		tier.SessionThreshold,
		tier.SessionCommissionPercent,
		tier.SessionFlatFee,
	).Scan(&tier.ID)
}

func (r *CommissionRepository) GetProfileByID(ctx context.Context, profileID int64) (*models.CommissionProfile, error) {
	query := `
		SELECT id, org_id, name, calculation_method, trigger_type, created_at
		FROM commission_profiles
		WHERE id = $1
	`
	var profile models.CommissionProfile
	err := r.db.QueryRow(ctx, query, profileID).Scan(
		&profile.ID,
		&profile.OrgID,
		&profile.Name,
		&profile.CalculationMethod,
		&profile.TriggerType,
		&profile.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	tiers, err := r.ListTiersByProfileID(ctx, profile.ID)
	if err != nil {
		return nil, err
	}
	profile.Tiers = tiers
	return &profile, nil
}

// GetProfileForTrainer resolves the trainer's assigned profile with its tiers.
// Returns pgx.ErrNoRows when the trainer has no profile assigned.
func (r *CommissionRepository) GetProfileForTrainer(ctx context.Context, trainerID int64) (*models.CommissionProfile, error) {
	query := `
		SELECT p.id, p.org_id, p.name, p.calculation_method, p.trigger_type, p.created_at
		FROM commission_profiles p
		JOIN users u ON u.commission_profile_id = p.id
		WHERE u.id = $1
	`
	var profile models.CommissionProfile
	err := r.db.QueryRow(ctx, query, trainerID).Scan(
		&profile.ID,
		&profile.OrgID,
		&profile.Name,
		&profile.CalculationMethod,
		&profile.TriggerType,
		&profile.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	tiers, err := r.ListTiersByProfileID(ctx, profile.ID)
	if err != nil {
		return nil, err
	}
	profile.Tiers = tiers
	return &profile, nil
}

func (r *CommissionRepository) ListTiersByProfileID(ctx context.Context, profileID int64) ([]models.CommissionTier, error) {
	query := `
		SELECT id, profile_id, tier_level, session_threshold, session_commission_percent, session_flat_fee
		FROM commission_tiers
		WHERE profile_id = $1
		ORDER BY session_threshold ASC, tier_level ASC
	`
	rows, err := r.db.Query(ctx, query, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tiers := make([]models.CommissionTier, 0)
	for rows.Next() {
		var tier models.CommissionTier
		if err := rows.Scan(
			&tier.ID,
			&tier.ProfileID,
			&tier.TierLevel,
			&tier.SessionThreshold,
			&tier.SessionCommissionPercent,
			&tier.SessionFlatFee,
		); err != nil {
			return nil, err
		}
		tiers = append(tiers, tier)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return tiers, nil
}

func (r *CommissionRepository) CountProfilesByOrg(ctx context.Context, orgID int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM commission_profiles
		WHERE org_id = $1
	`
	var count int
	if err := r.db.QueryRow(ctx, query, orgID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *CommissionRepository) ListLegacyTiersByOrg(ctx context.Context, orgID int64) ([]models.LegacyCommissionTier, error) {
	query := `
		SELECT id, org_id, min_sessions, max_sessions, percentage, package_type
		FROM legacy_commission_tiers
		WHERE org_id = $1
		ORDER BY min_sessions ASC, id ASC
	`
	rows, err := r.db.Query(ctx, query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tiers := make([]models.LegacyCommissionTier, 0)
	for rows.Next() {
		var tier models.LegacyCommissionTier
		if err := rows.Scan(
			&tier.ID,
			&tier.OrgID,
			&tier.MinSessions,
			&tier.MaxSessions,
			&tier.Percentage,
			&tier.PackageType,
		); err != nil {
			return nil, err
		}
		tiers = append(tiers, tier)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return tiers, nil
}
