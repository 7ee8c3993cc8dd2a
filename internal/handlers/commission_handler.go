package handlers

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/noberman/PTSessionTrackerBack/internal/commission"
	"github.com/noberman/PTSessionTrackerBack/internal/models"
	"github.com/noberman/PTSessionTrackerBack/internal/services"
	"github.com/shopspring/decimal"
)

type CommissionHandler struct {
	commissionService *services.CommissionService
	profileService    *services.CommissionProfileService
	migrationService  *services.CommissionMigrationService
}

func NewCommissionHandler(
	commissionService *services.CommissionService,
	profileService *services.CommissionProfileService,
	migrationService *services.CommissionMigrationService,
) *CommissionHandler {
	return &CommissionHandler{
		commissionService: commissionService,
		profileService:    profileService,
		migrationService:  migrationService,
	}
}

// TrainerReport computes a single trainer's commission for a period. Trainers
// may only ask about themselves; owners may ask about any trainer.
func (h *CommissionHandler) TrainerReport(c *fiber.Ctx) error {
	if !requireRole(c, models.RoleOwner, models.RoleTrainer) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	trainerID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || trainerID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid trainer id"})
	}

	if actorRole(c) == models.RoleTrainer {
		actorID, err := parseActorID(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
		}
		if actorID != trainerID {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
		}
	}

	from, to, err := parsePeriod(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	result, profileName, err := h.commissionService.CalculateForPeriod(c.Context(), trainerID, from, to)
	if err != nil {
		return mapCommissionError(c, err)
	}

	return c.JSON(fiber.Map{
		"trainer_id":   trainerID,
		"profile_name": profileName,
		"period_start": from,
		"period_end":   to,
		"result":       result,
	})
}

// OrganizationReport aggregates every trainer of the caller's organization.
func (h *CommissionHandler) OrganizationReport(c *fiber.Ctx) error {
	if !requireRole(c, models.RoleOwner) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	orgID, err := parseOrgID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	from, to, err := parsePeriod(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	reports, err := h.commissionService.OrganizationReport(c.Context(), orgID, from, to)
	if err != nil {
		return mapCommissionError(c, err)
	}

	return c.JSON(fiber.Map{
		"period_start": from,
		"period_end":   to,
		"trainers":     reports,
	})
}

type createProfileTierRequest struct {
	SessionThreshold int     `json:"session_threshold"`
	Percent          *string `json:"session_commission_percent"`
	FlatFee          *string `json:"session_flat_fee"`
}

type createProfileRequest struct {
	Name              string                     `json:"name"`
	CalculationMethod string                     `json:"calculation_method"`
	TriggerType       string                     `json:"trigger_type"`
	Tiers             []createProfileTierRequest `json:"tiers"`
}

func (h *CommissionHandler) CreateProfile(c *fiber.Ctx) error {
	if !requireRole(c, models.RoleOwner) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	orgID, err := parseOrgID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req createProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	input := services.CreateProfileInput{
		OrgID:             orgID,
		Name:              req.Name,
		CalculationMethod: req.CalculationMethod,
		TriggerType:       req.TriggerType,
	}
	for _, tier := range req.Tiers {
		parsed := services.CreateProfileTierInput{SessionThreshold: tier.SessionThreshold}
		if tier.Percent != nil {
			value, err := decimal.NewFromString(strings.TrimSpace(*tier.Percent))
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "session_commission_percent must be a decimal number"})
			}
			parsed.Percent = &value
		}
		if tier.FlatFee != nil {
			value, err := decimal.NewFromString(strings.TrimSpace(*tier.FlatFee))
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "session_flat_fee must be a decimal number"})
			}
			parsed.FlatFee = &value
		}
		input.Tiers = append(input.Tiers, parsed)
	}

	profile, err := h.profileService.CreateProfile(c.Context(), input)
	if err != nil {
		return mapCommissionError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"profile": profile})
}

func (h *CommissionHandler) GetProfile(c *fiber.Ctx) error {
	if !requireRole(c, models.RoleOwner, models.RoleTrainer) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	orgID, err := parseOrgID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	profileID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || profileID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid profile id"})
	}

	profile, err := h.profileService.GetProfile(c.Context(), orgID, profileID)
	if err != nil {
		return mapCommissionError(c, err)
	}

	return c.JSON(fiber.Map{"profile": profile})
}

type assignProfileRequest struct {
	ProfileID int64 `json:"profile_id"`
}

func (h *CommissionHandler) AssignProfile(c *fiber.Ctx) error {
	if !requireRole(c, models.RoleOwner) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	orgID, err := parseOrgID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	trainerID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || trainerID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid trainer id"})
	}

	var req assignProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	trainer, err := h.profileService.AssignProfile(c.Context(), orgID, trainerID, req.ProfileID)
	if err != nil {
		return mapCommissionError(c, err)
	}

	return c.JSON(fiber.Map{"trainer": trainer})
}

// MigrateOrganization runs the one-time v1-to-v2 migration for the caller's
// organization.
func (h *CommissionHandler) MigrateOrganization(c *fiber.Ctx) error {
	if !requireRole(c, models.RoleOwner) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	orgID, err := parseOrgID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	result := h.migrationService.MigrateOrganization(c.Context(), orgID)
	status := fiber.StatusOK
	if result.Status == services.MigrationFailed {
		status = fiber.StatusInternalServerError
	}
	return c.Status(status).JSON(fiber.Map{"migration": result})
}

func (h *CommissionHandler) VerifyMigration(c *fiber.Ctx) error {
	if !requireRole(c, models.RoleOwner) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	orgID, err := parseOrgID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	verification, err := h.migrationService.VerifyMigration(c.Context(), orgID)
	if err != nil {
		return mapCommissionError(c, err)
	}

	return c.JSON(fiber.Map{"verification": verification})
}

// parsePeriod reads from/to query params, defaulting to the current calendar
// month when both are absent.
func parsePeriod(c *fiber.Ctx) (time.Time, time.Time, error) {
	rawFrom := strings.TrimSpace(c.Query("from"))
	rawTo := strings.TrimSpace(c.Query("to"))

	if rawFrom == "" && rawTo == "" {
		now := time.Now().UTC()
		from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		to := from.AddDate(0, 1, 0).Add(-time.Nanosecond)
		return from, to, nil
	}

	from, err := time.Parse(time.RFC3339, rawFrom)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("from must be a valid RFC3339 timestamp")
	}
	to, err := time.Parse(time.RFC3339, rawTo)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("to must be a valid RFC3339 timestamp")
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, errors.New("to must not be before from")
	}
	return from.UTC(), to.UTC(), nil
}

func mapCommissionError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, commission.ErrInvalidProfile), errors.Is(err, commission.ErrNoTierDefined):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process commission request"})
	}
}
