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
	"github.com/noberman/PTSessionTrackerBack/internal/services"
	"github.com/shopspring/decimal"
)

type packageApplicationService interface {
	CreatePackage(ctx context.Context, input services.CreatePackageInput) (*models.Package, error)
	AddPayment(ctx context.Context, packageID int64, amount decimal.Decimal, paidAt time.Time) (*models.PackageDetail, error)
	DeletePayment(ctx context.Context, packageID, paymentID int64) (*models.PackageDetail, error)
	GetDetail(ctx context.Context, packageID int64) (*models.PackageDetail, error)
	DeactivateClient(ctx context.Context, clientID int64) (*models.Client, error)
	ReactivateClient(ctx context.Context, clientID int64) (*models.Client, error)
}

type PackageHandler struct {
	service packageApplicationService
}

func NewPackageHandler(service *services.PackageService) *PackageHandler {
	return &PackageHandler{service: service}
}

type createPackageRequest struct {
	ClientID      int64  `json:"client_id"`
	Name          string `json:"name"`
	TotalSessions int    `json:"total_sessions"`
	TotalValue    string `json:"total_value"`
}

type addPaymentRequest struct {
	Amount string `json:"amount"`
	PaidAt string `json:"paid_at"`
}

func (h *PackageHandler) CreatePackage(c *fiber.Ctx) error {
	if !requireRole(c, models.RoleOwner, models.RoleTrainer) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	orgID, err := parseOrgID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req createPackageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	totalValue, err := decimal.NewFromString(strings.TrimSpace(req.TotalValue))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "total_value must be a decimal number"})
	}

	pkg, err := h.service.CreatePackage(c.Context(), services.CreatePackageInput{
		OrgID:         orgID,
		ClientID:      req.ClientID,
		Name:          req.Name,
		TotalSessions: req.TotalSessions,
		TotalValue:    totalValue,
	})
	if err != nil {
		return mapPackageError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"package": pkg})
}

func (h *PackageHandler) GetDetail(c *fiber.Ctx) error {
	if !requireRole(c, models.RoleOwner, models.RoleTrainer) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	packageID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || packageID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid package id"})
	}

	detail, err := h.service.GetDetail(c.Context(), packageID)
	if err != nil {
		return mapPackageError(c, err)
	}

	return c.JSON(fiber.Map{"package": detail})
}

func (h *PackageHandler) AddPayment(c *fiber.Ctx) error {
	if !requireRole(c, models.RoleOwner, models.RoleTrainer) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	packageID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || packageID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid package id"})
	}

	var req addPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "amount must be a decimal number"})
	}

	var paidAt time.Time
	if trimmed := strings.TrimSpace(req.PaidAt); trimmed != "" {
		paidAt, err = time.Parse(time.RFC3339, trimmed)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "paid_at must be a valid RFC3339 timestamp"})
		}
	}

	detail, err := h.service.AddPayment(c.Context(), packageID, amount, paidAt)
	if err != nil {
		return mapPackageError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"package": detail})
}

func (h *PackageHandler) DeletePayment(c *fiber.Ctx) error {
	if !requireRole(c, models.RoleOwner) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	packageID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || packageID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid package id"})
	}
	paymentID, err := strconv.ParseInt(c.Params("paymentID"), 10, 64)
	if err != nil || paymentID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid payment id"})
	}

	detail, err := h.service.DeletePayment(c.Context(), packageID, paymentID)
	if err != nil {
		return mapPackageError(c, err)
	}

	return c.JSON(fiber.Map{"package": detail})
}

func (h *PackageHandler) DeactivateClient(c *fiber.Ctx) error {
	return h.setClientActive(c, false)
}

func (h *PackageHandler) ReactivateClient(c *fiber.Ctx) error {
	return h.setClientActive(c, true)
}

func (h *PackageHandler) setClientActive(c *fiber.Ctx, active bool) error {
	if !requireRole(c, models.RoleOwner) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	clientID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || clientID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid client id"})
	}

	var client *models.Client
	if active {
		client, err = h.service.ReactivateClient(c.Context(), clientID)
	} else {
		client, err = h.service.DeactivateClient(c.Context(), clientID)
	}
	if err != nil {
		return mapPackageError(c, err)
	}

	return c.JSON(fiber.Map{"client": client})
}

func mapPackageError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrPaymentLocked):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrPackageArchived):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidStateTransition):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process package request"})
	}
}
