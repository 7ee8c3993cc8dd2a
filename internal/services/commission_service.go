package services

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/noberman/PTSessionTrackerBack/internal/commission"
	"github.com/noberman/PTSessionTrackerBack/internal/models"
)

type trainerSessionReader interface {
	ListForTrainerPeriod(ctx context.Context, trainerID int64, from, to time.Time) ([]models.Session, error)
}

type profileReader interface {
	GetProfileForTrainer(ctx context.Context, trainerID int64) (*models.CommissionProfile, error)
}

type trainerLister interface {
	ListTrainersByOrg(ctx context.Context, orgID int64) ([]models.User, error)
}

type CommissionService struct {
	sessionRepo    trainerSessionReader
	commissionRepo profileReader
	userRepo       trainerLister
}

func NewCommissionService(
	sessionRepo trainerSessionReader,
	commissionRepo profileReader,
	userRepo trainerLister,
) *CommissionService {
	return &CommissionService{
		sessionRepo:    sessionRepo,
		commissionRepo: commissionRepo,
		userRepo:       userRepo,
	}
}

// TrainerReport is the per-trainer entry of an organization report. Error is
// set when this trainer's calculation failed; the rest of the report is
// unaffected.
type TrainerReport struct {
	TrainerID    int64                   `json:"trainer_id"`
	TrainerEmail string                  `json:"trainer_email"`
	ProfileName  string                  `json:"profile_name,omitempty"`
	PeriodStart  time.Time               `json:"period_start"`
	PeriodEnd    time.Time               `json:"period_end"`
	Result       commission.PeriodResult `json:"result"`
	Error        string                  `json:"error,omitempty"`
}

// CalculateForPeriod computes one trainer's commission over [from, to].
// A trainer without an assigned profile gets an unconfigured result instead
// of an error. The result is a point-in-time snapshot: concurrent validation
// toggles are not serialized against it.
func (s *CommissionService) CalculateForPeriod(ctx context.Context, trainerID int64, from, to time.Time) (*commission.PeriodResult, string, error) {
	if trainerID <= 0 || from.IsZero() || to.IsZero() || to.Before(from) {
		return nil, "", ErrInvalidInput
	}

	sessions, err := s.sessionRepo.ListForTrainerPeriod(ctx, trainerID, from.UTC(), to.UTC())
	if err != nil {
		return nil, "", err
	}

	profile, err := s.commissionRepo.GetProfileForTrainer(ctx, trainerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			result := commission.Unconfigured(sessions)
			return &result, "", nil
		}
		return nil, "", err
	}

	result, err := commission.CalculatePeriod(profile, sessions)
	if err != nil {
		return nil, "", err
	}
	return &result, profile.Name, nil
}

// OrganizationReport computes every trainer of an organization for the
// period. One trainer's misconfiguration is recorded on their entry and does
// not abort the rest.
func (s *CommissionService) OrganizationReport(ctx context.Context, orgID int64, from, to time.Time) ([]TrainerReport, error) {
	if orgID <= 0 || from.IsZero() || to.IsZero() || to.Before(from) {
		return nil, ErrInvalidInput
	}

	trainers, err := s.userRepo.ListTrainersByOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}

	reports := make([]TrainerReport, 0, len(trainers))
	for _, trainer := range trainers {
		report := TrainerReport{
			TrainerID:    trainer.ID,
			TrainerEmail: trainer.Email,
			PeriodStart:  from.UTC(),
			PeriodEnd:    to.UTC(),
		}

		result, profileName, err := s.CalculateForPeriod(ctx, trainer.ID, from, to)
		if err != nil {
			report.Error = err.Error()
		} else {
			report.Result = *result
			report.ProfileName = profileName
		}
		reports = append(reports, report)
	}

	return reports, nil
}
