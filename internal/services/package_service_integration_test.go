package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/noberman/PTSessionTrackerBack/internal/models"
	"github.com/noberman/PTSessionTrackerBack/internal/repository"
)

var (
	testDBOnce sync.Once
	testDBPool *pgxpool.Pool
	testDBErr  error
)

func TestPackagePaymentAndSessionFlow(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	packageService, sessionService := newIntegrationServices(pool)

	orgID, trainerID, clientID := createTestOrg(t, ctx, pool)
	t.Cleanup(func() { cleanupTestOrg(t, ctx, pool, orgID) })

	pkg, err := packageService.CreatePackage(ctx, CreatePackageInput{
		OrgID:         orgID,
		ClientID:      clientID,
		Name:          "10-session pack",
		TotalSessions: 10,
		TotalValue:    mustDec("1000"),
	})
	if err != nil {
		t.Fatalf("CreatePackage: %v", err)
	}

	detail, err := packageService.AddPayment(ctx, pkg.ID, mustDec("500"), time.Now().UTC())
	if err != nil {
		t.Fatalf("AddPayment: %v", err)
	}
	if detail.Summary.UnlockedSessions != 5 {
		t.Fatalf("expected 5 unlocked after half payment, got %d", detail.Summary.UnlockedSessions)
	}

	for i := 0; i < 5; i++ {
		if _, err := sessionService.LogSession(ctx, LogSessionInput{
			OrgID:        orgID,
			TrainerID:    trainerID,
			ClientID:     clientID,
			PackageID:    &pkg.ID,
			SessionDate:  time.Date(2026, 8, 3+i, 9, 0, 0, 0, time.UTC),
			SessionValue: mustDec("100"),
		}); err != nil {
			t.Fatalf("LogSession %d: %v", i+1, err)
		}
	}

	// Sixth session exceeds the 5 unlocked credits.
	_, err = sessionService.LogSession(ctx, LogSessionInput{
		OrgID:        orgID,
		TrainerID:    trainerID,
		ClientID:     clientID,
		PackageID:    &pkg.ID,
		SessionDate:  time.Date(2026, 8, 9, 9, 0, 0, 0, time.UTC),
		SessionValue: mustDec("100"),
	})
	if !errors.Is(err, ErrNoCredits) {
		t.Fatalf("expected ErrNoCredits for sixth session, got %v", err)
	}

	// Deleting the only payment would lock 5 used sessions.
	payment := detail.Payments[0]
	_, err = packageService.DeletePayment(ctx, pkg.ID, payment.ID)
	if !errors.Is(err, ErrPaymentLocked) {
		t.Fatalf("expected ErrPaymentLocked, got %v", err)
	}
	if err == nil || !strings.Contains(err.Error(), "5 sessions") {
		t.Fatalf("expected conflict numbers in error, got %v", err)
	}
}

func TestCancellingSessionFreesCredit(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	packageService, sessionService := newIntegrationServices(pool)

	orgID, trainerID, clientID := createTestOrg(t, ctx, pool)
	t.Cleanup(func() { cleanupTestOrg(t, ctx, pool, orgID) })

	pkg, err := packageService.CreatePackage(ctx, CreatePackageInput{
		OrgID:         orgID,
		ClientID:      clientID,
		Name:          "Single credit",
		TotalSessions: 1,
		TotalValue:    mustDec("100"),
	})
	if err != nil {
		t.Fatalf("CreatePackage: %v", err)
	}
	if _, err := packageService.AddPayment(ctx, pkg.ID, mustDec("100"), time.Now().UTC()); err != nil {
		t.Fatalf("AddPayment: %v", err)
	}

	session, err := sessionService.LogSession(ctx, LogSessionInput{
		OrgID:        orgID,
		TrainerID:    trainerID,
		ClientID:     clientID,
		PackageID:    &pkg.ID,
		SessionDate:  time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC),
		SessionValue: mustDec("100"),
	})
	if err != nil {
		t.Fatalf("LogSession: %v", err)
	}

	if _, err := sessionService.CancelSession(ctx, session.ID); err != nil {
		t.Fatalf("CancelSession: %v", err)
	}

	// The freed credit allows a replacement session.
	if _, err := sessionService.LogSession(ctx, LogSessionInput{
		OrgID:        orgID,
		TrainerID:    trainerID,
		ClientID:     clientID,
		PackageID:    &pkg.ID,
		SessionDate:  time.Date(2026, 8, 11, 9, 0, 0, 0, time.UTC),
		SessionValue: mustDec("100"),
	}); err != nil {
		t.Fatalf("LogSession after cancel: %v", err)
	}
}

func TestCancelledSessionDropsOutOfCommission(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	_, sessionService := newIntegrationServices(pool)

	orgID, trainerID, clientID := createTestOrg(t, ctx, pool)
	t.Cleanup(func() { cleanupTestOrg(t, ctx, pool, orgID) })

	commissionRepo := repository.NewCommissionRepository(pool)
	userRepo := repository.NewUserRepository(pool)

	profile := &models.CommissionProfile{
		OrgID:             orgID,
		Name:              "Flat 50",
		CalculationMethod: models.MethodPercentage,
		TriggerType:       models.TriggerMonthlyCumulative,
		Tiers: []models.CommissionTier{
			{TierLevel: 1, SessionThreshold: 0, SessionCommissionPercent: mustDecPtr("50")},
		},
	}
	if err := commissionRepo.CreateProfile(ctx, profile); err != nil {
		t.Fatalf("CreateProfile: %v", err)
	}
	if err := userRepo.AssignCommissionProfile(ctx, trainerID, profile.ID); err != nil {
		t.Fatalf("AssignCommissionProfile: %v", err)
	}

	var logged []*models.Session
	for i := 0; i < 3; i++ {
		session, err := sessionService.LogSession(ctx, LogSessionInput{
			OrgID:        orgID,
			TrainerID:    trainerID,
			ClientID:     clientID,
			SessionDate:  time.Date(2026, 8, 3+i, 9, 0, 0, 0, time.UTC),
			SessionValue: mustDec("100"),
		})
		if err != nil {
			t.Fatalf("LogSession %d: %v", i+1, err)
		}
		if _, err := sessionService.ValidateSession(ctx, session.ID); err != nil {
			t.Fatalf("ValidateSession %d: %v", i+1, err)
		}
		logged = append(logged, session)
	}

	commissionService := NewCommissionService(
		repository.NewSessionRepository(pool),
		commissionRepo,
		userRepo,
	)

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 31, 23, 59, 59, 0, time.UTC)

	before, _, err := commissionService.CalculateForPeriod(ctx, trainerID, from, to)
	if err != nil {
		t.Fatalf("CalculateForPeriod before cancel: %v", err)
	}
	if before.ValidatedCount != 3 || !before.TotalCommission.Equal(mustDec("150")) {
		t.Fatalf("expected 3 validated sessions totalling 150, got %d / %s",
			before.ValidatedCount, before.TotalCommission)
	}

	// Cancelling a validated session must remove it from the period report,
	// not just free the package credit.
	if _, err := sessionService.CancelSession(ctx, logged[1].ID); err != nil {
		t.Fatalf("CancelSession: %v", err)
	}

	after, _, err := commissionService.CalculateForPeriod(ctx, trainerID, from, to)
	if err != nil {
		t.Fatalf("CalculateForPeriod after cancel: %v", err)
	}
	if after.SessionCount != 2 {
		t.Fatalf("expected cancelled session gone from the breakdown, got %d sessions", after.SessionCount)
	}
	if after.ValidatedCount != 2 || !after.TotalCommission.Equal(mustDec("100")) {
		t.Fatalf("expected 2 validated sessions totalling 100 after cancel, got %d / %s",
			after.ValidatedCount, after.TotalCommission)
	}
}

func TestMigrateOrganizationIsIdempotent(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)

	orgID, trainerID, _ := createTestOrg(t, ctx, pool)
	t.Cleanup(func() { cleanupTestOrg(t, ctx, pool, orgID) })

	if _, err := pool.Exec(ctx, `
		INSERT INTO legacy_commission_tiers (org_id, min_sessions, max_sessions, percentage)
		VALUES ($1, 0, 9, 50), ($1, 10, NULL, 60)
	`, orgID); err != nil {
		t.Fatalf("seed legacy tiers: %v", err)
	}

	service := NewCommissionMigrationService(
		pool,
		repository.NewOrganizationRepository(pool),
		repository.NewCommissionRepository(pool),
		repository.NewUserRepository(pool),
		repository.NewSessionRepository(pool),
	)

	first := service.MigrateOrganization(ctx, orgID)
	if first.Status != MigrationSucceeded {
		t.Fatalf("expected first run to succeed, got %+v", first)
	}
	if first.TiersCreated != 2 || first.TrainersAssigned != 1 {
		t.Fatalf("expected 2 tiers and 1 trainer assigned, got %+v", first)
	}

	second := service.MigrateOrganization(ctx, orgID)
	if second.Status != MigrationSkipped {
		t.Fatalf("expected second run to be skipped, got %+v", second)
	}

	var profiles int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM commission_profiles WHERE org_id = $1", orgID).Scan(&profiles); err != nil {
		t.Fatalf("count profiles: %v", err)
	}
	if profiles != 1 {
		t.Fatalf("expected exactly one profile after two runs, got %d", profiles)
	}

	verification, err := service.VerifyMigration(ctx, orgID)
	if err != nil {
		t.Fatalf("VerifyMigration: %v", err)
	}
	if !verification.ProfileAssigned || verification.TrainerID != trainerID {
		t.Fatalf("expected trainer %d to have a profile, got %+v", trainerID, verification)
	}
}

func integrationTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	testDBOnce.Do(func() {
		_ = godotenv.Load(".env")
		_ = godotenv.Load(filepath.Join("..", "..", ".env"))

		dbURL := getTestDBURL()
		if dbURL == "" {
			testDBErr = fmt.Errorf("DB_URL is not set")
			return
		}

		cfg, err := pgxpool.ParseConfig(dbURL)
		if err != nil {
			testDBErr = err
			return
		}

		testDBPool, testDBErr = pgxpool.NewWithConfig(context.Background(), cfg)
		if testDBErr != nil {
			return
		}
		testDBErr = testDBPool.Ping(context.Background())
	})

	if testDBErr != nil {
		t.Skipf("skipping integration test: %v", testDBErr)
	}
	return testDBPool
}

func newIntegrationServices(pool *pgxpool.Pool) (*PackageService, *SessionService) {
	packageRepo := repository.NewPackageRepository(pool)
	paymentRepo := repository.NewPaymentRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)
	clientRepo := repository.NewClientRepository(pool)

	return NewPackageService(pool, packageRepo, paymentRepo, sessionRepo, clientRepo),
		NewSessionService(pool, sessionRepo, packageRepo, paymentRepo)
}

func createTestOrg(t *testing.T, ctx context.Context, pool *pgxpool.Pool) (orgID, trainerID, clientID int64) {
	t.Helper()

	name := fmt.Sprintf("test-org-%d", time.Now().UnixNano())
	if err := pool.QueryRow(ctx, "INSERT INTO organizations (name) VALUES ($1) RETURNING id", name).Scan(&orgID); err != nil {
		t.Fatalf("create organization: %v", err)
	}

	userRepo := repository.NewUserRepository(pool)
	trainer := &models.User{
		OrgID:        orgID,
		Email:        fmt.Sprintf("trainer-%d@example.com", time.Now().UnixNano()),
		PasswordHash: "test-hash",
		Role:         models.RoleTrainer,
	}
	if err := userRepo.CreateUser(ctx, trainer); err != nil {
		t.Fatalf("create trainer: %v", err)
	}
	trainerID = trainer.ID

	client, err := repository.NewClientRepository(pool).Create(ctx, repository.CreateClientInput{
		OrgID:     orgID,
		TrainerID: trainerID,
		FullName:  "Test Client",
	})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	clientID = client.ID

	return orgID, trainerID, clientID
}

func cleanupTestOrg(t *testing.T, ctx context.Context, pool *pgxpool.Pool, orgID int64) {
	t.Helper()

	statements := []string{
		"DELETE FROM sessions WHERE org_id = $1",
		"DELETE FROM payments WHERE package_id IN (SELECT id FROM packages WHERE org_id = $1)",
		"DELETE FROM packages WHERE org_id = $1",
		"DELETE FROM clients WHERE org_id = $1",
		"UPDATE users SET commission_profile_id = NULL WHERE org_id = $1",
		"DELETE FROM commission_tiers WHERE profile_id IN (SELECT id FROM commission_profiles WHERE org_id = $1)",
		"DELETE FROM commission_profiles WHERE org_id = $1",
		"DELETE FROM legacy_commission_tiers WHERE org_id = $1",
		"DELETE FROM users WHERE org_id = $1",
		"DELETE FROM organizations WHERE id = $1",
	}
	for _, statement := range statements {
		if _, err := pool.Exec(ctx, statement, orgID); err != nil {
			t.Fatalf("cleanup %q: %v", statement, err)
		}
	}
}

func getTestDBURL() string {
	return strings.TrimSpace(os.Getenv("DB_URL"))
}
