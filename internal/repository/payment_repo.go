package repository

import (
	"context"
	"time"

	"github.com/noberman/PTSessionTrackerBack/internal/models"
	"github.com/shopspring/decimal"
)

type CreatePaymentInput struct {
	PackageID int64
	Amount    decimal.Decimal
	PaidAt    time.Time
}

type PaymentRepository struct {
	db DBTX
}

func NewPaymentRepository(db DBTX) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, input CreatePaymentInput) (*models.Payment, error) {
	query := `
		INSERT INTO payments (package_id, amount, paid_at)
		VALUES ($1, $2, $3)
		RETURNING id, package_id, amount, paid_at, created_at
	`
	var payment models.Payment
	err := r.db.QueryRow(ctx, query, input.PackageID, input.Amount, input.PaidAt).Scan(
		&payment.ID,
		&payment.PackageID,
		&payment.Amount,
		&payment.PaidAt,
		&payment.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, paymentID int64) (*models.Payment, error) {
	query := `
		SELECT id, package_id, amount, paid_at, created_at
		FROM payments
		WHERE id = $1
	`
	var payment models.Payment
	err := r.db.QueryRow(ctx, query, paymentID).Scan(
		&payment.ID,
		&payment.PackageID,
		&payment.Amount,
		&payment.PaidAt,
		&payment.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *PaymentRepository) ListByPackageID(ctx context.Context, packageID int64) ([]models.Payment, error) {
	query := `
		SELECT id, package_id, amount, paid_at, created_at
		FROM payments
		WHERE package_id = $1
		ORDER BY paid_at ASC, id ASC
	`
	rows, err := r.db.Query(ctx, query, packageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]models.Payment, 0)
	for rows.Next() {
		var payment models.Payment
		if err := rows.Scan(
			&payment.ID,
			&payment.PackageID,
			&payment.Amount,
			&payment.PaidAt,
			&payment.CreatedAt,
		); err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return payments, nil
}

func (r *PaymentRepository) SumByPackageID(ctx context.Context, packageID int64) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM payments
		WHERE package_id = $1
	`
	var sum decimal.Decimal
	if err := r.db.QueryRow(ctx, query, packageID).Scan(&sum); err != nil {
		return decimal.Zero, err
	}
	return sum, nil
}

func (r *PaymentRepository) Delete(ctx context.Context, paymentID int64) error {
	query := `
		DELETE FROM payments
		WHERE id = $1
	`
	_, err := r.db.Exec(ctx, query, paymentID)
	return err
}
