package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/noberman/PTSessionTrackerBack/internal/commission"
	"github.com/noberman/PTSessionTrackerBack/internal/models"
	"github.com/noberman/PTSessionTrackerBack/internal/repository"
)

const (
	MigrationSucceeded = "succeeded"
	MigrationFailed    = "failed"
	MigrationSkipped   = "skipped"
)

const migratedProfileName = "Migrated commission plan"

// Package-type buckets recognized by the legacy commission data. Anything
// else is reported as a warning instead of being silently filed under
// "custom" the way the v1 scripts did.
var knownLegacyPackageTypes = map[string]bool{
	"standard": true,
	"premium":  true,
	"elite":    true,
	"custom":   true,
}

type MigrationResult struct {
	OrgID            int64    `json:"org_id"`
	Status           string   `json:"status"`
	ProfileID        int64    `json:"profile_id,omitempty"`
	TiersCreated     int      `json:"tiers_created"`
	TrainersAssigned int      `json:"trainers_assigned"`
	Warnings         []string `json:"warnings,omitempty"`
	Error            string   `json:"error,omitempty"`
}

type MigrationSummary struct {
	RunID      uuid.UUID         `json:"run_id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Succeeded  int               `json:"succeeded"`
	Failed     int               `json:"failed"`
	Skipped    int               `json:"skipped"`
	Results    []MigrationResult `json:"results"`
}

type VerificationResult struct {
	OrgID               int64  `json:"org_id"`
	TrainerID           int64  `json:"trainer_id,omitempty"`
	ProfileAssigned     bool   `json:"profile_assigned"`
	ProfileName         string `json:"profile_name,omitempty"`
	CurrentPeriodCount  int    `json:"current_period_session_count"`
	Note                string `json:"note,omitempty"`
}

// CommissionMigrationService performs the one-time move from v1 flat
// organization-wide tiers to v2 per-trainer profiles.
type CommissionMigrationService struct {
	db             *pgxpool.Pool
	orgRepo        *repository.OrganizationRepository
	commissionRepo *repository.CommissionRepository
	userRepo       *repository.UserRepository
	sessionRepo    *repository.SessionRepository
}

func NewCommissionMigrationService(
	db *pgxpool.Pool,
	orgRepo *repository.OrganizationRepository,
	commissionRepo *repository.CommissionRepository,
	userRepo *repository.UserRepository,
	sessionRepo *repository.SessionRepository,
) *CommissionMigrationService {
	return &CommissionMigrationService{
		db:             db,
		orgRepo:        orgRepo,
		commissionRepo: commissionRepo,
		userRepo:       userRepo,
		sessionRepo:    sessionRepo,
	}
}

// MigrateOrganization migrates a single organization inside its own
// transaction. Re-running is a no-op reported as skipped: an organization
// that already has any v2 profile is left untouched.
func (s *CommissionMigrationService) MigrateOrganization(ctx context.Context, orgID int64) MigrationResult {
	result := MigrationResult{OrgID: orgID}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		result.Status = MigrationFailed
		result.Error = err.Error()
		return result
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// Serialize concurrent runs for the same organization.
	if _, err := tx.Exec(ctx, advisoryLockSQL, organizationLockKey(orgID)); err != nil {
		result.Status = MigrationFailed
		result.Error = err.Error()
		return result
	}

	txCommissionRepo := repository.NewCommissionRepository(tx)
	txUserRepo := repository.NewUserRepository(tx)

	existing, err := txCommissionRepo.CountProfilesByOrg(ctx, orgID)
	if err != nil {
		result.Status = MigrationFailed
		result.Error = err.Error()
		return result
	}
	if existing > 0 {
		result.Status = MigrationSkipped
		result.Warnings = append(result.Warnings, fmt.Sprintf("organization already has %d commission profile(s)", existing))
		return result
	}

	legacy, err := txCommissionRepo.ListLegacyTiersByOrg(ctx, orgID)
	if err != nil {
		result.Status = MigrationFailed
		result.Error = err.Error()
		return result
	}
	if len(legacy) == 0 {
		result.Status = MigrationSkipped
		result.Warnings = append(result.Warnings, "no legacy commission tiers to migrate")
		return result
	}

	profile, warnings, err := buildProfileFromLegacyTiers(orgID, legacy)
	result.Warnings = append(result.Warnings, warnings...)
	if err != nil {
		result.Status = MigrationFailed
		result.Error = err.Error()
		return result
	}

	if err := txCommissionRepo.CreateProfile(ctx, profile); err != nil {
		result.Status = MigrationFailed
		result.Error = err.Error()
		return result
	}

	assigned, err := txUserRepo.AssignProfileToUnconfiguredTrainers(ctx, orgID, profile.ID)
	if err != nil {
		result.Status = MigrationFailed
		result.Error = err.Error()
		return result
	}

	if err := tx.Commit(ctx); err != nil {
		result.Status = MigrationFailed
		result.Error = err.Error()
		return result
	}

	result.Status = MigrationSucceeded
	result.ProfileID = profile.ID
	result.TiersCreated = len(profile.Tiers)
	result.TrainersAssigned = assigned
	return result
}

// MigrateAll runs the migration for every organization. Each organization is
// its own transaction; one failure is recorded on its result and does not
// stop the rest.
func (s *CommissionMigrationService) MigrateAll(ctx context.Context) (*MigrationSummary, error) {
	orgs, err := s.orgRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	summary := &MigrationSummary{
		RunID:     uuid.New(),
		StartedAt: time.Now().UTC(),
	}
	for _, org := range orgs {
		result := s.MigrateOrganization(ctx, org.ID)
		switch result.Status {
		case MigrationSucceeded:
			summary.Succeeded++
		case MigrationSkipped:
			summary.Skipped++
		default:
			summary.Failed++
		}
		summary.Results = append(summary.Results, result)
	}
	summary.FinishedAt = time.Now().UTC()
	return summary, nil
}

// VerifyMigration spot-checks one organization after (or before) a run: picks
// the first trainer and reports whether a profile is assigned plus their
// current-calendar-month session count.
func (s *CommissionMigrationService) VerifyMigration(ctx context.Context, orgID int64) (*VerificationResult, error) {
	trainers, err := s.userRepo.ListTrainersByOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}

	verification := &VerificationResult{OrgID: orgID}
	if len(trainers) == 0 {
		verification.Note = "organization has no trainers"
		return verification, nil
	}

	trainer := trainers[0]
	verification.TrainerID = trainer.ID

	if trainer.CommissionProfileID != nil {
		profile, err := s.commissionRepo.GetProfileByID(ctx, *trainer.CommissionProfileID)
		if err != nil {
			return nil, err
		}
		verification.ProfileAssigned = true
		verification.ProfileName = profile.Name
	}

	now := time.Now().UTC()
	periodStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	periodEnd := periodStart.AddDate(0, 1, 0).Add(-time.Nanosecond)
	sessions, err := s.sessionRepo.ListForTrainerPeriod(ctx, trainer.ID, periodStart, periodEnd)
	if err != nil {
		return nil, err
	}
	verification.CurrentPeriodCount = len(sessions)

	return verification, nil
}

// buildProfileFromLegacyTiers translates v1 flat tiers into one v2 percentage
// profile: min_sessions becomes the session threshold, percentage the tier
// rate. Unrecognized package-type strings become warnings, the row still
// migrates.
func buildProfileFromLegacyTiers(orgID int64, legacy []models.LegacyCommissionTier) (*models.CommissionProfile, []string, error) {
	ordered := make([]models.LegacyCommissionTier, len(legacy))
	copy(ordered, legacy)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].MinSessions < ordered[j].MinSessions
	})

	warnings := []string{}
	profile := &models.CommissionProfile{
		OrgID:             orgID,
		Name:              migratedProfileName,
		CalculationMethod: models.MethodPercentage,
		TriggerType:       models.TriggerMonthlyCumulative,
	}

	for i, row := range ordered {
		threshold := row.MinSessions
		if i == 0 && threshold > 0 {
			// v1 ranges often start at 1; the v2 engine requires coverage
			// from zero.
			warnings = append(warnings, fmt.Sprintf("lowest legacy tier started at %d sessions, moved to 0", threshold))
			threshold = 0
		}

		if row.PackageType != nil {
			normalized := strings.ToLower(strings.TrimSpace(*row.PackageType))
			if !knownLegacyPackageTypes[normalized] {
				warnings = append(warnings, fmt.Sprintf("legacy tier %d has unrecognized package type %q", row.ID, *row.PackageType))
			}
		}

		percent := row.Percentage
		profile.Tiers = append(profile.Tiers, models.CommissionTier{
			TierLevel:                i + 1,
			SessionThreshold:         threshold,
			SessionCommissionPercent: &percent,
		})
	}

	if err := commission.ValidateProfile(profile); err != nil {
		return nil, warnings, err
	}
	return profile, warnings, nil
}
