package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/noberman/PTSessionTrackerBack/internal/models"
	"github.com/noberman/PTSessionTrackerBack/internal/repository"
	"github.com/noberman/PTSessionTrackerBack/internal/services"
	"github.com/shopspring/decimal"
)

type sessionApplicationService interface {
	LogSession(ctx context.Context, input services.LogSessionInput) (*models.Session, error)
	ValidateSession(ctx context.Context, sessionID int64) (*models.Session, error)
	CancelSession(ctx context.Context, sessionID int64) (*models.Session, error)
	GetSession(ctx context.Context, sessionID int64) (*models.Session, error)
	ListSessions(ctx context.Context, filter repository.SessionListFilter) ([]models.Session, int, error)
}

type SessionHandler struct {
	service sessionApplicationService
}

func NewSessionHandler(service *services.SessionService) *SessionHandler {
	return &SessionHandler{service: service}
}

type logSessionRequest struct {
	ClientID     int64   `json:"client_id"`
	PackageID    *int64  `json:"package_id"`
	Location     *string `json:"location"`
	SessionDate  string  `json:"session_date"`
	SessionValue string  `json:"session_value"`
}

func (h *SessionHandler) LogSession(c *fiber.Ctx) error {
	if !requireRole(c, models.RoleTrainer) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	trainerID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	orgID, err := parseOrgID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req logSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	sessionDate, err := time.Parse(time.RFC3339, strings.TrimSpace(req.SessionDate))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "session_date must be a valid RFC3339 timestamp"})
	}
	sessionValue, err := decimal.NewFromString(strings.TrimSpace(req.SessionValue))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "session_value must be a decimal number"})
	}

	session, err := h.service.LogSession(c.Context(), services.LogSessionInput{
		OrgID:        orgID,
		TrainerID:    trainerID,
		ClientID:     req.ClientID,
		PackageID:    req.PackageID,
		Location:     req.Location,
		SessionDate:  sessionDate,
		SessionValue: sessionValue,
	})
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) ValidateSession(c *fiber.Ctx) error {
	return h.toggleSession(c, true)
}

func (h *SessionHandler) CancelSession(c *fiber.Ctx) error {
	return h.toggleSession(c, false)
}

func (h *SessionHandler) toggleSession(c *fiber.Ctx, validate bool) error {
	if !requireRole(c, models.RoleOwner, models.RoleTrainer) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	sessionID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || sessionID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	var session *models.Session
	if validate {
		session, err = h.service.ValidateSession(c.Context(), sessionID)
	} else {
		session, err = h.service.CancelSession(c.Context(), sessionID)
	}
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) GetSession(c *fiber.Ctx) error {
	if !requireRole(c, models.RoleOwner, models.RoleTrainer) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	sessionID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || sessionID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	session, err := h.service.GetSession(c.Context(), sessionID)
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) ListSessions(c *fiber.Ctx) error {
	if !requireRole(c, models.RoleOwner, models.RoleTrainer) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	filter := repository.SessionListFilter{
		IncludeCancelled: strings.EqualFold(c.Query("include_cancelled"), "true"),
	}

	// Trainers only see their own sessions; owners may filter by trainer.
	if actorRole(c) == models.RoleTrainer {
		trainerID, err := parseActorID(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
		}
		filter.TrainerID = trainerID
	} else if raw := strings.TrimSpace(c.Query("trainer_id")); raw != "" {
		trainerID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || trainerID <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid trainer id"})
		}
		filter.TrainerID = trainerID
	}

	if raw := strings.TrimSpace(c.Query("client_id")); raw != "" {
		clientID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || clientID <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid client id"})
		}
		filter.ClientID = clientID
	}
	if raw := strings.TrimSpace(c.Query("from")); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "from must be a valid RFC3339 timestamp"})
		}
		filter.From = from
	}
	if raw := strings.TrimSpace(c.Query("to")); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "to must be a valid RFC3339 timestamp"})
		}
		filter.To = to
	}

	page, limit := parsePagination(c)
	filter.Limit = limit
	filter.Offset = (page - 1) * limit

	sessions, total, err := h.service.ListSessions(c.Context(), filter)
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.JSON(fiber.Map{
		"sessions":   sessions,
		"pagination": buildPaginationMeta(page, limit, total),
	})
}

func mapSessionError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrNoCredits):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrPackageArchived):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidStateTransition):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process session request"})
	}
}
