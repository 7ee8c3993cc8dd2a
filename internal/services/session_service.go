package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/noberman/PTSessionTrackerBack/internal/billing"
	"github.com/noberman/PTSessionTrackerBack/internal/models"
	"github.com/noberman/PTSessionTrackerBack/internal/repository"
	"github.com/shopspring/decimal"
)

type SessionService struct {
	db          *pgxpool.Pool
	sessionRepo *repository.SessionRepository
	packageRepo *repository.PackageRepository
	paymentRepo *repository.PaymentRepository
}

func NewSessionService(
	db *pgxpool.Pool,
	sessionRepo *repository.SessionRepository,
	packageRepo *repository.PackageRepository,
	paymentRepo *repository.PaymentRepository,
) *SessionService {
	return &SessionService{
		db:          db,
		sessionRepo: sessionRepo,
		packageRepo: packageRepo,
		paymentRepo: paymentRepo,
	}
}

type LogSessionInput struct {
	OrgID        int64
	TrainerID    int64
	ClientID     int64
	PackageID    *int64
	Location     *string
	SessionDate  time.Time
	SessionValue decimal.Decimal
}

// LogSession records a delivered session. When the session consumes a package
// credit, the unlocked/used comparison and the insert run inside one
// transaction under the package advisory lock: two concurrent logs against a
// package with one remaining credit cannot both pass the check.
func (s *SessionService) LogSession(ctx context.Context, input LogSessionInput) (*models.Session, error) {
	if input.OrgID <= 0 || input.TrainerID <= 0 || input.ClientID <= 0 {
		return nil, ErrInvalidInput
	}
	if input.SessionDate.IsZero() {
		return nil, fmt.Errorf("%w: session_date is required", ErrInvalidInput)
	}
	if input.SessionValue.IsNegative() {
		return nil, fmt.Errorf("%w: session_value must not be negative", ErrInvalidInput)
	}
	if input.Location != nil && strings.TrimSpace(*input.Location) == "" {
		return nil, fmt.Errorf("%w: location must not be empty", ErrInvalidInput)
	}

	createInput := repository.CreateSessionInput{
		OrgID:        input.OrgID,
		TrainerID:    input.TrainerID,
		ClientID:     input.ClientID,
		PackageID:    input.PackageID,
		Location:     input.Location,
		SessionDate:  input.SessionDate.UTC(),
		SessionValue: input.SessionValue,
	}

	if input.PackageID == nil {
		return s.sessionRepo.Create(ctx, createInput)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, advisoryLockSQL, packageLockKey(*input.PackageID)); err != nil {
		return nil, err
	}

	txPackageRepo := repository.NewPackageRepository(tx)
	txPaymentRepo := repository.NewPaymentRepository(tx)
	txSessionRepo := repository.NewSessionRepository(tx)

	pkg, err := txPackageRepo.GetByIDForUpdate(ctx, *input.PackageID)
	if err != nil {
		return nil, err
	}
	if pkg.Archived {
		return nil, ErrPackageArchived
	}
	if pkg.ClientID != input.ClientID || pkg.OrgID != input.OrgID {
		return nil, ErrForbidden
	}

	paidAmount, err := txPaymentRepo.SumByPackageID(ctx, pkg.ID)
	if err != nil {
		return nil, err
	}
	usedSessions, err := txSessionRepo.CountActiveByPackageID(ctx, pkg.ID)
	if err != nil {
		return nil, err
	}

	unlocked := billing.ComputeUnlockedSessions(paidAmount, pkg.TotalValue, pkg.TotalSessions)
	if usedSessions >= unlocked {
		return nil, fmt.Errorf("%w: %d of %d unlocked sessions already used", ErrNoCredits, usedSessions, unlocked)
	}

	session, err := txSessionRepo.Create(ctx, createInput)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return session, nil
}

// ValidateSession marks a session as confirmed/billable. Already-validated
// and cancelled sessions are rejected via the conditional update.
func (s *SessionService) ValidateSession(ctx context.Context, sessionID int64) (*models.Session, error) {
	if sessionID <= 0 {
		return nil, ErrInvalidInput
	}
	session, err := s.sessionRepo.MarkValidated(ctx, sessionID)
	if err != nil {
		return nil, mapNoRowsToTransition(ctx, s.sessionRepo, sessionID, err)
	}
	return session, nil
}

// CancelSession soft-cancels a session, freeing the package credit it
// consumed and removing it from commission totals.
func (s *SessionService) CancelSession(ctx context.Context, sessionID int64) (*models.Session, error) {
	if sessionID <= 0 {
		return nil, ErrInvalidInput
	}
	session, err := s.sessionRepo.MarkCancelled(ctx, sessionID)
	if err != nil {
		return nil, mapNoRowsToTransition(ctx, s.sessionRepo, sessionID, err)
	}
	return session, nil
}

func (s *SessionService) GetSession(ctx context.Context, sessionID int64) (*models.Session, error) {
	return s.sessionRepo.GetByID(ctx, sessionID)
}

func (s *SessionService) ListSessions(ctx context.Context, filter repository.SessionListFilter) ([]models.Session, int, error) {
	sessions, err := s.sessionRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.sessionRepo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return sessions, total, nil
}

// mapNoRowsToTransition distinguishes "session does not exist" from "session
// exists but is in the wrong state" after a conditional update matched zero
// rows.
func mapNoRowsToTransition(ctx context.Context, repo *repository.SessionRepository, sessionID int64, cause error) error {
	if _, getErr := repo.GetByID(ctx, sessionID); getErr == nil {
		return ErrInvalidStateTransition
	}
	return cause
}
