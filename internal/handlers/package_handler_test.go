package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/noberman/PTSessionTrackerBack/internal/models"
	"github.com/noberman/PTSessionTrackerBack/internal/services"
	"github.com/shopspring/decimal"
)

type stubPackageService struct {
	createErr error
	deleteErr error
	detail    *models.PackageDetail
	created   *models.Package
}

func (s *stubPackageService) CreatePackage(ctx context.Context, input services.CreatePackageInput) (*models.Package, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	return s.created, nil
}

func (s *stubPackageService) AddPayment(ctx context.Context, packageID int64, amount decimal.Decimal, paidAt time.Time) (*models.PackageDetail, error) {
	return s.detail, nil
}

func (s *stubPackageService) DeletePayment(ctx context.Context, packageID, paymentID int64) (*models.PackageDetail, error) {
	if s.deleteErr != nil {
		return nil, s.deleteErr
	}
	return s.detail, nil
}

func (s *stubPackageService) GetDetail(ctx context.Context, packageID int64) (*models.PackageDetail, error) {
	return s.detail, nil
}

func (s *stubPackageService) DeactivateClient(ctx context.Context, clientID int64) (*models.Client, error) {
	return nil, services.ErrInvalidStateTransition
}

func (s *stubPackageService) ReactivateClient(ctx context.Context, clientID int64) (*models.Client, error) {
	return nil, services.ErrInvalidStateTransition
}

func newPackageTestApp(service packageApplicationService, role string) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", "7")
		c.Locals("org_id", "1")
		c.Locals("role", role)
		return c.Next()
	})

	handler := &PackageHandler{service: service}
	app.Post("/packages", handler.CreatePackage)
	app.Get("/packages/:id", handler.GetDetail)
	app.Delete("/packages/:id/payments/:paymentID", handler.DeletePayment)
	app.Post("/clients/:id/deactivate", handler.DeactivateClient)
	return app
}

func TestCreatePackageReturnsCreated(t *testing.T) {
	service := &stubPackageService{
		created: &models.Package{ID: 42, Name: "10-pack", TotalSessions: 10},
	}
	app := newPackageTestApp(service, models.RoleOwner)

	body := `{"client_id": 3, "name": "10-pack", "total_sessions": 10, "total_value": "1000"}`
	req := httptest.NewRequest("POST", "/packages", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("Expected status 201, got %d", resp.StatusCode)
	}

	var payload struct {
		Package models.Package `json:"package"`
	}
	raw, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("Expected JSON body, got %v", err)
	}
	if payload.Package.ID != 42 {
		t.Errorf("Expected package id 42, got %d", payload.Package.ID)
	}
}

func TestCreatePackageRejectsBadDecimal(t *testing.T) {
	app := newPackageTestApp(&stubPackageService{}, models.RoleOwner)

	body := `{"client_id": 3, "name": "10-pack", "total_sessions": 10, "total_value": "not-a-number"}`
	req := httptest.NewRequest("POST", "/packages", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", resp.StatusCode)
	}
}

func TestDeletePaymentRequiresOwner(t *testing.T) {
	app := newPackageTestApp(&stubPackageService{}, models.RoleTrainer)

	req := httptest.NewRequest("DELETE", "/packages/1/payments/2", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("Expected status 403, got %d", resp.StatusCode)
	}
}

func TestDeletePaymentLockedMapsToConflict(t *testing.T) {
	service := &stubPackageService{
		deleteErr: fmt.Errorf("%w: 5 sessions already logged against this package but only 0 would remain unlocked", services.ErrPaymentLocked),
	}
	app := newPackageTestApp(service, models.RoleOwner)

	req := httptest.NewRequest("DELETE", "/packages/1/payments/2", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if resp.StatusCode != fiber.StatusConflict {
		t.Fatalf("Expected status 409, got %d", resp.StatusCode)
	}

	raw, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(raw), "5 sessions") {
		t.Errorf("Expected conflict body to carry the session count, got %s", raw)
	}
}

func TestUnknownRoleNeverPasses(t *testing.T) {
	app := newPackageTestApp(&stubPackageService{}, "superadmin")

	req := httptest.NewRequest("GET", "/packages/1", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("Expected status 403 for unknown role, got %d", resp.StatusCode)
	}
}
