package commission

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/noberman/PTSessionTrackerBack/internal/models"
	"github.com/shopspring/decimal"
)

var (
	ErrNoTierDefined  = errors.New("no tier covers the session count")
	ErrInvalidProfile = errors.New("invalid commission profile")
)

const (
	StatusOK           = "ok"
	StatusUnconfigured = "unconfigured"
)

// SessionCommission attributes one session of a period to the tier it billed
// at. Unvalidated sessions appear with a zero commission and no tier.
type SessionCommission struct {
	SessionID       int64           `json:"session_id"`
	SessionDate     time.Time       `json:"session_date"`
	SessionValue    decimal.Decimal `json:"session_value"`
	Validated       bool            `json:"validated"`
	CumulativeCount int             `json:"cumulative_count"`
	TierLevel       int             `json:"tier_level"`
	Rate            decimal.Decimal `json:"rate"`
	Commission      decimal.Decimal `json:"commission"`
}

// PeriodResult is the point-in-time commission snapshot for one trainer and
// period. Status distinguishes a trainer without a profile from a trainer who
// simply earned nothing.
type PeriodResult struct {
	Status          string              `json:"status"`
	SessionCount    int                 `json:"session_count"`
	ValidatedCount  int                 `json:"validated_count"`
	TotalCommission decimal.Decimal     `json:"total_commission"`
	Breakdown       []SessionCommission `json:"breakdown"`
}

// Unconfigured builds the zero result reported when a trainer has no assigned
// profile. Session counts are still filled in so the report can show activity.
func Unconfigured(sessions []models.Session) PeriodResult {
	validated := 0
	for _, s := range sessions {
		if s.Validated {
			validated++
		}
	}
	return PeriodResult{
		Status:          StatusUnconfigured,
		SessionCount:    len(sessions),
		ValidatedCount:  validated,
		TotalCommission: decimal.Zero,
		Breakdown:       []SessionCommission{},
	}
}

// ValidateProfile enforces the configuration invariants checked at save time:
// a known method, at least one tier, a tier at threshold 0 so every session
// count is covered, strictly increasing thresholds (no duplicates), and rate
// fields consistent with the method.
func ValidateProfile(profile *models.CommissionProfile) error {
	switch profile.CalculationMethod {
	case models.MethodPercentage, models.MethodFlatFee:
	default:
		return fmt.Errorf("%w: unknown calculation method %q", ErrInvalidProfile, profile.CalculationMethod)
	}
	if len(profile.Tiers) == 0 {
		return fmt.Errorf("%w: profile needs at least one tier", ErrInvalidProfile)
	}

	tiers := sortedTiers(profile.Tiers)
	if tiers[0].SessionThreshold != 0 {
		return fmt.Errorf("%w: lowest tier must start at threshold 0, got %d", ErrInvalidProfile, tiers[0].SessionThreshold)
	}
	for i, tier := range tiers {
		if tier.SessionThreshold < 0 {
			return fmt.Errorf("%w: tier %d has negative threshold", ErrInvalidProfile, tier.TierLevel)
		}
		if i > 0 && tier.SessionThreshold == tiers[i-1].SessionThreshold {
			return fmt.Errorf("%w: duplicate session threshold %d", ErrInvalidProfile, tier.SessionThreshold)
		}
		switch profile.CalculationMethod {
		case models.MethodPercentage:
			if tier.SessionCommissionPercent == nil {
				return fmt.Errorf("%w: tier %d is missing a commission percent", ErrInvalidProfile, tier.TierLevel)
			}
			if tier.SessionCommissionPercent.IsNegative() || tier.SessionCommissionPercent.GreaterThan(decimal.NewFromInt(100)) {
				return fmt.Errorf("%w: tier %d percent %s is outside 0-100", ErrInvalidProfile, tier.TierLevel, tier.SessionCommissionPercent)
			}
		case models.MethodFlatFee:
			if tier.SessionFlatFee == nil {
				return fmt.Errorf("%w: tier %d is missing a flat fee", ErrInvalidProfile, tier.TierLevel)
			}
			if tier.SessionFlatFee.IsNegative() {
				return fmt.Errorf("%w: tier %d flat fee %s is negative", ErrInvalidProfile, tier.TierLevel, tier.SessionFlatFee)
			}
		}
	}
	return nil
}

// ResolveTier returns the tier with the greatest threshold that is less than
// or equal to the cumulative validated-session count. Legacy data may contain
// duplicate thresholds despite save-time validation; the lowest tier level
// wins so resolution stays deterministic.
func ResolveTier(tiers []models.CommissionTier, cumulativeCount int) (*models.CommissionTier, error) {
	var match *models.CommissionTier
	for i := range tiers {
		tier := &tiers[i]
		if tier.SessionThreshold > cumulativeCount {
			continue
		}
		if match == nil ||
			tier.SessionThreshold > match.SessionThreshold ||
			(tier.SessionThreshold == match.SessionThreshold && tier.TierLevel < match.TierLevel) {
			match = tier
		}
	}
	if match == nil {
		return nil, fmt.Errorf("%w: count %d", ErrNoTierDefined, cumulativeCount)
	}
	return match, nil
}

// CalculatePeriod runs progressive tiering over one trainer's non-cancelled
// sessions in a period. Sessions are ordered by date then creation order;
// only validated sessions advance the cumulative counter and accrue payout.
func CalculatePeriod(profile *models.CommissionProfile, sessions []models.Session) (PeriodResult, error) {
	ordered := make([]models.Session, len(sessions))
	copy(ordered, sessions)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].SessionDate.Equal(ordered[j].SessionDate) {
			return ordered[i].SessionDate.Before(ordered[j].SessionDate)
		}
		return ordered[i].ID < ordered[j].ID
	})

	result := PeriodResult{
		Status:          StatusOK,
		SessionCount:    len(ordered),
		TotalCommission: decimal.Zero,
		Breakdown:       make([]SessionCommission, 0, len(ordered)),
	}

	cumulative := 0
	for _, session := range ordered {
		entry := SessionCommission{
			SessionID:    session.ID,
			SessionDate:  session.SessionDate,
			SessionValue: session.SessionValue,
			Validated:    session.Validated,
			Commission:   decimal.Zero,
		}
		if !session.Validated {
			result.Breakdown = append(result.Breakdown, entry)
			continue
		}

		// A session bills at the tier reached by the sessions validated
		// before it: with thresholds 0/10/20 the 11th session is the first
		// one past threshold 10.
		tier, err := ResolveTier(profile.Tiers, cumulative)
		if err != nil {
			return PeriodResult{}, err
		}

		cumulative++
		entry.CumulativeCount = cumulative
		entry.TierLevel = tier.TierLevel
		switch profile.CalculationMethod {
		case models.MethodPercentage:
			entry.Rate = *tier.SessionCommissionPercent
			entry.Commission = session.SessionValue.Mul(*tier.SessionCommissionPercent).Div(decimal.NewFromInt(100))
		case models.MethodFlatFee:
			entry.Rate = *tier.SessionFlatFee
			entry.Commission = *tier.SessionFlatFee
		default:
			return PeriodResult{}, fmt.Errorf("%w: unknown calculation method %q", ErrInvalidProfile, profile.CalculationMethod)
		}

		result.ValidatedCount++
		result.TotalCommission = result.TotalCommission.Add(entry.Commission)
		result.Breakdown = append(result.Breakdown, entry)
	}

	return result, nil
}

func sortedTiers(tiers []models.CommissionTier) []models.CommissionTier {
	out := make([]models.CommissionTier, len(tiers))
	copy(out, tiers)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SessionThreshold != out[j].SessionThreshold {
			return out[i].SessionThreshold < out[j].SessionThreshold
		}
		return out[i].TierLevel < out[j].TierLevel
	})
	return out
}
