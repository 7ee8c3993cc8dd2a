package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/noberman/PTSessionTrackerBack/internal/models"
	"github.com/shopspring/decimal"
)

type CreateSessionInput struct {
	OrgID        int64
	TrainerID    int64
	ClientID     int64
	PackageID    *int64
	Location     *string
	SessionDate  time.Time
	SessionValue decimal.Decimal
}

type SessionListFilter struct {
	TrainerID        int64
	ClientID         int64
	From             time.Time
	To               time.Time
	IncludeCancelled bool
	Limit            int
	Offset           int
}

const sessionColumns = `id, org_id, trainer_id, client_id, package_id, location, session_date, session_value,
		validated, validated_at, cancelled, cancelled_at, created_at`

type SessionRepository struct {
	db DBTX
}

func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

func scanSession(row interface{ Scan(dest ...any) error }, session *models.Session) error {
	return row.Scan(
		&session.ID,
		&session.OrgID,
		&session.TrainerID,
		&session.ClientID,
		&session.PackageID,
		&session.Location,
		&session.SessionDate,
		&session.SessionValue,
		&session.Validated,
		&session.ValidatedAt,
		&session.Cancelled,
		&session.CancelledAt,
		&session.CreatedAt,
	)
}

func (r *SessionRepository) Create(ctx context.Context, input CreateSessionInput) (*models.Session, error) {
	query := fmt.Sprintf(`
		INSERT INTO sessions (org_id, trainer_id, client_id, package_id, location, session_date, session_value)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING %s
	`, sessionColumns)

	var session models.Session
	row := r.db.QueryRow(
		ctx,
		query,
		input.OrgID,
		input.TrainerID,
		input.ClientID,
		input.PackageID,
		input.Location,
		input.SessionDate,
		input.SessionValue,
	)
	if err := scanSession(row, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *SessionRepository) GetByID(ctx context.Context, sessionID int64) (*models.Session, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM sessions
		WHERE id = $1
	`, sessionColumns)

	var session models.Session
	if err := scanSession(r.db.QueryRow(ctx, query, sessionID), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// CountActiveByPackageID counts the non-cancelled sessions consuming credits
// from a package. Run inside the same transaction as the balance check.
func (r *SessionRepository) CountActiveByPackageID(ctx context.Context, packageID int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM sessions
		WHERE package_id = $1 AND cancelled = FALSE
	`
	var count int
	if err := r.db.QueryRow(ctx, query, packageID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// ListForTrainerPeriod returns a trainer's non-cancelled sessions in
// [from, to], ordered by session date then creation order. This ordering is
// what makes progressive tier assignment deterministic.
func (r *SessionRepository) ListForTrainerPeriod(ctx context.Context, trainerID int64, from, to time.Time) ([]models.Session, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM sessions
		WHERE trainer_id = $1
		  AND cancelled = FALSE
		  AND session_date >= $2
		  AND session_date <= $3
		ORDER BY session_date ASC, id ASC
	`, sessionColumns)

	rows, err := r.db.Query(ctx, query, trainerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]models.Session, 0)
	for rows.Next() {
		var session models.Session
		if err := scanSession(rows, &session); err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

func (r *SessionRepository) List(ctx context.Context, filter SessionListFilter) ([]models.Session, error) {
	args := []any{}
	whereParts := []string{}

	if filter.TrainerID > 0 {
		args = append(args, filter.TrainerID)
		whereParts = append(whereParts, fmt.Sprintf("trainer_id = $%d", len(args)))
	}
	if filter.ClientID > 0 {
		args = append(args, filter.ClientID)
		whereParts = append(whereParts, fmt.Sprintf("client_id = $%d", len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		whereParts = append(whereParts, fmt.Sprintf("session_date >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		whereParts = append(whereParts, fmt.Sprintf("session_date <= $%d", len(args)))
	}
	if !filter.IncludeCancelled {
		whereParts = append(whereParts, "cancelled = FALSE")
	}
	if len(whereParts) == 0 {
		whereParts = append(whereParts, "TRUE")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM sessions
		WHERE %s
		ORDER BY session_date ASC, id ASC
	`, sessionColumns, strings.Join(whereParts, " AND "))

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]models.Session, 0)
	for rows.Next() {
		var session models.Session
		if err := scanSession(rows, &session); err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

func (r *SessionRepository) Count(ctx context.Context, filter SessionListFilter) (int, error) {
	args := []any{}
	whereParts := []string{}

	if filter.TrainerID > 0 {
		args = append(args, filter.TrainerID)
		whereParts = append(whereParts, fmt.Sprintf("trainer_id = $%d", len(args)))
	}
	if filter.ClientID > 0 {
		args = append(args, filter.ClientID)
		whereParts = append(whereParts, fmt.Sprintf("client_id = $%d", len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		whereParts = append(whereParts, fmt.Sprintf("session_date >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		whereParts = append(whereParts, fmt.Sprintf("session_date <= $%d", len(args)))
	}
	if !filter.IncludeCancelled {
		whereParts = append(whereParts, "cancelled = FALSE")
	}
	if len(whereParts) == 0 {
		whereParts = append(whereParts, "TRUE")
	}

	query := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM sessions
		WHERE %s
	`, strings.Join(whereParts, " AND "))

	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// MarkValidated flips validated false -> true. Returns pgx.ErrNoRows when the
// session is already validated or cancelled.
func (r *SessionRepository) MarkValidated(ctx context.Context, sessionID int64) (*models.Session, error) {
	query := fmt.Sprintf(`
		UPDATE sessions
		SET validated = TRUE, validated_at = NOW()
		WHERE id = $1 AND validated = FALSE AND cancelled = FALSE
		RETURNING %s
	`, sessionColumns)

	var session models.Session
	if err := scanSession(r.db.QueryRow(ctx, query, sessionID), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// MarkCancelled flips cancelled false -> true, freeing the package credit the
// session consumed. Returns pgx.ErrNoRows when already cancelled.
func (r *SessionRepository) MarkCancelled(ctx context.Context, sessionID int64) (*models.Session, error) {
	query := fmt.Sprintf(`
		UPDATE sessions
		SET cancelled = TRUE, cancelled_at = NOW()
		WHERE id = $1 AND cancelled = FALSE
		RETURNING %s
	`, sessionColumns)

	var session models.Session
	if err := scanSession(r.db.QueryRow(ctx, query, sessionID), &session); err != nil {
		return nil, err
	}
	return &session, nil
}
