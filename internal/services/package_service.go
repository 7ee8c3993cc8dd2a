package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/noberman/PTSessionTrackerBack/internal/billing"
	"github.com/noberman/PTSessionTrackerBack/internal/models"
	"github.com/noberman/PTSessionTrackerBack/internal/repository"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrForbidden              = errors.New("forbidden")
	ErrNoCredits              = errors.New("no unlocked session credits remaining")
	ErrPaymentLocked          = errors.New("payment cannot be deleted")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrPackageArchived        = errors.New("package is archived")
)

type PackageService struct {
	db          *pgxpool.Pool
	packageRepo *repository.PackageRepository
	paymentRepo *repository.PaymentRepository
	sessionRepo *repository.SessionRepository
	clientRepo  *repository.ClientRepository
}

func NewPackageService(
	db *pgxpool.Pool,
	packageRepo *repository.PackageRepository,
	paymentRepo *repository.PaymentRepository,
	sessionRepo *repository.SessionRepository,
	clientRepo *repository.ClientRepository,
) *PackageService {
	return &PackageService{
		db:          db,
		packageRepo: packageRepo,
		paymentRepo: paymentRepo,
		sessionRepo: sessionRepo,
		clientRepo:  clientRepo,
	}
}

type CreatePackageInput struct {
	OrgID         int64
	ClientID      int64
	Name          string
	TotalSessions int
	TotalValue    decimal.Decimal
}

func (s *PackageService) CreatePackage(ctx context.Context, input CreatePackageInput) (*models.Package, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.OrgID <= 0 || input.ClientID <= 0 || input.Name == "" {
		return nil, ErrInvalidInput
	}
	if input.TotalSessions <= 0 {
		return nil, fmt.Errorf("%w: total_sessions must be greater than 0", ErrInvalidInput)
	}
	if input.TotalValue.IsNegative() {
		return nil, fmt.Errorf("%w: total_value must not be negative", ErrInvalidInput)
	}

	client, err := s.clientRepo.GetByID(ctx, input.ClientID)
	if err != nil {
		return nil, err
	}
	if client.OrgID != input.OrgID {
		return nil, ErrForbidden
	}
	if !client.Active {
		return nil, fmt.Errorf("%w: client is deactivated", ErrInvalidInput)
	}

	return s.packageRepo.Create(ctx, repository.CreatePackageInput{
		OrgID:         input.OrgID,
		ClientID:      input.ClientID,
		Name:          input.Name,
		TotalSessions: input.TotalSessions,
		TotalValue:    input.TotalValue,
	})
}

// AddPayment appends a payment to a package and returns the refreshed balance
// summary. The package row is advisory-locked so the summary reflects the
// payment just written.
func (s *PackageService) AddPayment(ctx context.Context, packageID int64, amount decimal.Decimal, paidAt time.Time) (*models.PackageDetail, error) {
	if packageID <= 0 || amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: payment amount must be greater than 0", ErrInvalidInput)
	}
	if paidAt.IsZero() {
		paidAt = time.Now().UTC()
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, advisoryLockSQL, packageLockKey(packageID)); err != nil {
		return nil, err
	}

	txPackageRepo := repository.NewPackageRepository(tx)
	txPaymentRepo := repository.NewPaymentRepository(tx)
	txSessionRepo := repository.NewSessionRepository(tx)

	pkg, err := txPackageRepo.GetByIDForUpdate(ctx, packageID)
	if err != nil {
		return nil, err
	}
	if pkg.Archived {
		return nil, ErrPackageArchived
	}

	if _, err := txPaymentRepo.Create(ctx, repository.CreatePaymentInput{
		PackageID: packageID,
		Amount:    amount,
		PaidAt:    paidAt.UTC(),
	}); err != nil {
		return nil, err
	}

	detail, err := buildPackageDetail(ctx, pkg, txPaymentRepo, txSessionRepo)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return detail, nil
}

// DeletePayment removes a payment unless doing so would lock credits already
// consumed by non-cancelled sessions. The guard and the delete run in one
// transaction under the package advisory lock, so a concurrent session log
// cannot slip between check and delete.
func (s *PackageService) DeletePayment(ctx context.Context, packageID, paymentID int64) (*models.PackageDetail, error) {
	if packageID <= 0 || paymentID <= 0 {
		return nil, ErrInvalidInput
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, advisoryLockSQL, packageLockKey(packageID)); err != nil {
		return nil, err
	}

	txPackageRepo := repository.NewPackageRepository(tx)
	txPaymentRepo := repository.NewPaymentRepository(tx)
	txSessionRepo := repository.NewSessionRepository(tx)

	pkg, err := txPackageRepo.GetByIDForUpdate(ctx, packageID)
	if err != nil {
		return nil, err
	}

	payment, err := txPaymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.PackageID != packageID {
		return nil, ErrInvalidInput
	}

	paidAmount, err := txPaymentRepo.SumByPackageID(ctx, packageID)
	if err != nil {
		return nil, err
	}
	usedSessions, err := txSessionRepo.CountActiveByPackageID(ctx, packageID)
	if err != nil {
		return nil, err
	}

	check := billing.CanDeletePayment(paidAmount, payment.Amount, pkg.TotalValue, pkg.TotalSessions, usedSessions)
	if !check.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrPaymentLocked, check.Reason)
	}

	if err := txPaymentRepo.Delete(ctx, paymentID); err != nil {
		return nil, err
	}

	detail, err := buildPackageDetail(ctx, pkg, txPaymentRepo, txSessionRepo)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return detail, nil
}

// GetDetail returns the package with its payments and recomputed summary.
func (s *PackageService) GetDetail(ctx context.Context, packageID int64) (*models.PackageDetail, error) {
	pkg, err := s.packageRepo.GetByID(ctx, packageID)
	if err != nil {
		return nil, err
	}
	return buildPackageDetail(ctx, pkg, s.paymentRepo, s.sessionRepo)
}

// DeactivateClient archives the client together with all their packages.
// Sessions stay untouched so history remains intact.
func (s *PackageService) DeactivateClient(ctx context.Context, clientID int64) (*models.Client, error) {
	return s.setClientActive(ctx, clientID, false)
}

// ReactivateClient restores the client and unarchives their packages.
func (s *PackageService) ReactivateClient(ctx context.Context, clientID int64) (*models.Client, error) {
	return s.setClientActive(ctx, clientID, true)
}

func (s *PackageService) setClientActive(ctx context.Context, clientID int64, active bool) (*models.Client, error) {
	if clientID <= 0 {
		return nil, ErrInvalidInput
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txClientRepo := repository.NewClientRepository(tx)
	txPackageRepo := repository.NewPackageRepository(tx)

	client, err := txClientRepo.SetActiveIfCurrent(ctx, clientID, !active, active)
	if err != nil {
		return nil, err
	}
	if _, err := txPackageRepo.SetArchivedByClientID(ctx, clientID, !active); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

func buildPackageDetail(
	ctx context.Context,
	pkg *models.Package,
	paymentRepo *repository.PaymentRepository,
	sessionRepo *repository.SessionRepository,
) (*models.PackageDetail, error) {
	payments, err := paymentRepo.ListByPackageID(ctx, pkg.ID)
	if err != nil {
		return nil, err
	}

	paidAmount := decimal.Zero
	for _, payment := range payments {
		paidAmount = paidAmount.Add(payment.Amount)
	}

	usedSessions, err := sessionRepo.CountActiveByPackageID(ctx, pkg.ID)
	if err != nil {
		return nil, err
	}

	return &models.PackageDetail{
		Package:  *pkg,
		Payments: payments,
		Summary:  billing.Summarize(paidAmount, pkg.TotalValue, pkg.TotalSessions, usedSessions),
	}, nil
}
