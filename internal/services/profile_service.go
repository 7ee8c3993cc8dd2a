package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/noberman/PTSessionTrackerBack/internal/commission"
	"github.com/noberman/PTSessionTrackerBack/internal/models"
	"github.com/noberman/PTSessionTrackerBack/internal/repository"
	"github.com/shopspring/decimal"
)

// CommissionProfileService manages v2 profiles and their trainer assignments.
type CommissionProfileService struct {
	db             *pgxpool.Pool
	commissionRepo *repository.CommissionRepository
	userRepo       *repository.UserRepository
}

func NewCommissionProfileService(
	db *pgxpool.Pool,
	commissionRepo *repository.CommissionRepository,
	userRepo *repository.UserRepository,
) *CommissionProfileService {
	return &CommissionProfileService{
		db:             db,
		commissionRepo: commissionRepo,
		userRepo:       userRepo,
	}
}

type CreateProfileTierInput struct {
	SessionThreshold int
	Percent          *decimal.Decimal
	FlatFee          *decimal.Decimal
}

type CreateProfileInput struct {
	OrgID             int64
	Name              string
	CalculationMethod string
	TriggerType       string
	Tiers             []CreateProfileTierInput
}

// CreateProfile validates and persists a profile with its tiers atomically.
func (s *CommissionProfileService) CreateProfile(ctx context.Context, input CreateProfileInput) (*models.CommissionProfile, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.OrgID <= 0 || input.Name == "" {
		return nil, ErrInvalidInput
	}
	if input.TriggerType == "" {
		input.TriggerType = models.TriggerMonthlyCumulative
	}
	if input.TriggerType != models.TriggerMonthlyCumulative {
		return nil, fmt.Errorf("%w: unsupported trigger type %q", ErrInvalidInput, input.TriggerType)
	}

	profile := &models.CommissionProfile{
		OrgID:             input.OrgID,
		Name:              input.Name,
		CalculationMethod: input.CalculationMethod,
		TriggerType:       input.TriggerType,
	}
	for i, tier := range input.Tiers {
		profile.Tiers = append(profile.Tiers, models.CommissionTier{
			TierLevel:                i + 1,
			SessionThreshold:         tier.SessionThreshold,
			SessionCommissionPercent: tier.Percent,
			SessionFlatFee:           tier.FlatFee,
		})
	}

	if err := commission.ValidateProfile(profile); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := repository.NewCommissionRepository(tx).CreateProfile(ctx, profile); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return profile, nil
}

func (s *CommissionProfileService) GetProfile(ctx context.Context, orgID, profileID int64) (*models.CommissionProfile, error) {
	profile, err := s.commissionRepo.GetProfileByID(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if profile.OrgID != orgID {
		return nil, ErrForbidden
	}
	return profile, nil
}

// AssignProfile attaches a profile to a trainer. Both must belong to the
// caller's organization and the target must actually be a trainer.
func (s *CommissionProfileService) AssignProfile(ctx context.Context, orgID, trainerID, profileID int64) (*models.User, error) {
	if orgID <= 0 || trainerID <= 0 || profileID <= 0 {
		return nil, ErrInvalidInput
	}

	trainer, err := s.userRepo.GetByID(ctx, trainerID)
	if err != nil {
		return nil, err
	}
	if trainer.OrgID != orgID {
		return nil, ErrForbidden
	}
	if trainer.Role != models.RoleTrainer {
		return nil, fmt.Errorf("%w: commission profiles apply to trainers only", ErrInvalidInput)
	}

	profile, err := s.commissionRepo.GetProfileByID(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if profile.OrgID != orgID {
		return nil, ErrForbidden
	}

	if err := s.userRepo.AssignCommissionProfile(ctx, trainerID, profileID); err != nil {
		return nil, err
	}
	return s.userRepo.GetByID(ctx, trainerID)
}
