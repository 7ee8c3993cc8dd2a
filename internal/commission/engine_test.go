package commission

import (
	"errors"
	"testing"
	"time"

	"github.com/noberman/PTSessionTrackerBack/internal/models"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func percentageProfile(thresholds []int, percents []string) *models.CommissionProfile {
	profile := &models.CommissionProfile{
		ID:                1,
		Name:              "Progressive",
		CalculationMethod: models.MethodPercentage,
		TriggerType:       models.TriggerMonthlyCumulative,
	}
	for i, threshold := range thresholds {
		profile.Tiers = append(profile.Tiers, models.CommissionTier{
			TierLevel:                i + 1,
			SessionThreshold:         threshold,
			SessionCommissionPercent: decPtr(percents[i]),
		})
	}
	return profile
}

func validatedSessions(count int, value string) []models.Session {
	base := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	sessions := make([]models.Session, 0, count)
	for i := 0; i < count; i++ {
		sessions = append(sessions, models.Session{
			ID:           int64(i + 1),
			SessionDate:  base.Add(time.Duration(i) * 24 * time.Hour),
			SessionValue: dec(value),
			Validated:    true,
		})
	}
	return sessions
}

func TestCalculatePeriodProgressiveTiering(t *testing.T) {
	profile := percentageProfile([]int{0, 10, 20}, []string{"50", "60", "70"})
	sessions := validatedSessions(25, "100")

	result, err := CalculatePeriod(profile, sessions)
	if err != nil {
		t.Fatalf("CalculatePeriod: %v", err)
	}

	if result.Status != StatusOK {
		t.Fatalf("expected ok status, got %q", result.Status)
	}
	if result.SessionCount != 25 || result.ValidatedCount != 25 {
		t.Fatalf("expected 25/25 sessions, got %d/%d", result.SessionCount, result.ValidatedCount)
	}

	// Sessions 1-10 at 50%, 11-20 at 60%, 21-25 at 70%.
	expectedTotal := dec("1450")
	if !result.TotalCommission.Equal(expectedTotal) {
		t.Fatalf("expected total %s, got %s", expectedTotal, result.TotalCommission)
	}
	if got := result.Breakdown[0]; got.TierLevel != 1 || !got.Commission.Equal(dec("50")) {
		t.Fatalf("expected session 1 at tier 1 for 50, got tier %d for %s", got.TierLevel, got.Commission)
	}
	if got := result.Breakdown[9]; got.TierLevel != 1 || !got.Commission.Equal(dec("50")) {
		t.Fatalf("expected session 10 still at tier 1, got tier %d for %s", got.TierLevel, got.Commission)
	}
	if got := result.Breakdown[10]; got.TierLevel != 2 || !got.Commission.Equal(dec("60")) {
		t.Fatalf("expected session 11 at tier 2 for 60, got tier %d for %s", got.TierLevel, got.Commission)
	}
	if got := result.Breakdown[20]; got.TierLevel != 3 || !got.Commission.Equal(dec("70")) {
		t.Fatalf("expected session 21 at tier 3 for 70, got tier %d for %s", got.TierLevel, got.Commission)
	}
}

func TestCalculatePeriodFlatFee(t *testing.T) {
	profile := &models.CommissionProfile{
		CalculationMethod: models.MethodFlatFee,
		TriggerType:       models.TriggerMonthlyCumulative,
		Tiers: []models.CommissionTier{
			{TierLevel: 1, SessionThreshold: 0, SessionFlatFee: decPtr("20")},
			{TierLevel: 2, SessionThreshold: 5, SessionFlatFee: decPtr("30")},
		},
	}
	sessions := validatedSessions(8, "95")

	result, err := CalculatePeriod(profile, sessions)
	if err != nil {
		t.Fatalf("CalculatePeriod: %v", err)
	}

	// Flat fees ignore session value: 5 sessions at 20, 3 at 30.
	if !result.TotalCommission.Equal(dec("190")) {
		t.Fatalf("expected total 190, got %s", result.TotalCommission)
	}
}

func TestCalculatePeriodSkipsUnvalidatedSessions(t *testing.T) {
	profile := percentageProfile([]int{0, 2}, []string{"40", "60"})
	sessions := validatedSessions(4, "100")
	sessions[1].Validated = false

	result, err := CalculatePeriod(profile, sessions)
	if err != nil {
		t.Fatalf("CalculatePeriod: %v", err)
	}

	if result.SessionCount != 4 || result.ValidatedCount != 3 {
		t.Fatalf("expected 4 sessions / 3 validated, got %d/%d", result.SessionCount, result.ValidatedCount)
	}
	// Validated sessions are 1, 3, 4: the third validated session crosses
	// threshold 2. Total = 40 + 40 + 60.
	if !result.TotalCommission.Equal(dec("140")) {
		t.Fatalf("expected total 140, got %s", result.TotalCommission)
	}
	if got := result.Breakdown[1]; got.Validated || !got.Commission.IsZero() || got.TierLevel != 0 {
		t.Fatalf("expected unvalidated session with zero commission, got %+v", got)
	}
}

func TestCalculatePeriodOrdersByDateThenID(t *testing.T) {
	profile := percentageProfile([]int{0, 1}, []string{"50", "100"})
	day := time.Date(2026, 6, 3, 10, 0, 0, 0, time.UTC)
	sessions := []models.Session{
		{ID: 9, SessionDate: day, SessionValue: dec("100"), Validated: true},
		{ID: 3, SessionDate: day.Add(-48 * time.Hour), SessionValue: dec("100"), Validated: true},
		{ID: 5, SessionDate: day, SessionValue: dec("100"), Validated: true},
	}

	result, err := CalculatePeriod(profile, sessions)
	if err != nil {
		t.Fatalf("CalculatePeriod: %v", err)
	}

	if result.Breakdown[0].SessionID != 3 || result.Breakdown[1].SessionID != 5 || result.Breakdown[2].SessionID != 9 {
		t.Fatalf("unexpected ordering: %d %d %d",
			result.Breakdown[0].SessionID, result.Breakdown[1].SessionID, result.Breakdown[2].SessionID)
	}
	// First session bills at 50%, the rest at 100%.
	if !result.TotalCommission.Equal(dec("250")) {
		t.Fatalf("expected total 250, got %s", result.TotalCommission)
	}
}

func TestCalculatePeriodFailsWhenNoTierCovers(t *testing.T) {
	profile := percentageProfile([]int{5}, []string{"50"})
	_, err := CalculatePeriod(profile, validatedSessions(2, "100"))
	if !errors.Is(err, ErrNoTierDefined) {
		t.Fatalf("expected ErrNoTierDefined, got %v", err)
	}
}

func TestResolveTierPicksHighestQualifyingThreshold(t *testing.T) {
	tiers := []models.CommissionTier{
		{TierLevel: 1, SessionThreshold: 0, SessionCommissionPercent: decPtr("40")},
		{TierLevel: 2, SessionThreshold: 10, SessionCommissionPercent: decPtr("55")},
		{TierLevel: 3, SessionThreshold: 20, SessionCommissionPercent: decPtr("70")},
	}

	tier, err := ResolveTier(tiers, 15)
	if err != nil {
		t.Fatalf("ResolveTier: %v", err)
	}
	if tier.TierLevel != 2 {
		t.Fatalf("expected tier 2 at count 15, got %d", tier.TierLevel)
	}

	tier, err = ResolveTier(tiers, 20)
	if err != nil {
		t.Fatalf("ResolveTier: %v", err)
	}
	if tier.TierLevel != 3 {
		t.Fatalf("expected tier 3 at count 20, got %d", tier.TierLevel)
	}
}

func TestResolveTierDuplicateThresholdPicksLowestLevel(t *testing.T) {
	tiers := []models.CommissionTier{
		{TierLevel: 2, SessionThreshold: 0, SessionCommissionPercent: decPtr("60")},
		{TierLevel: 1, SessionThreshold: 0, SessionCommissionPercent: decPtr("40")},
	}
	tier, err := ResolveTier(tiers, 3)
	if err != nil {
		t.Fatalf("ResolveTier: %v", err)
	}
	if tier.TierLevel != 1 {
		t.Fatalf("expected deterministic pick of tier level 1, got %d", tier.TierLevel)
	}
}

func TestValidateProfileRejectsBadConfigurations(t *testing.T) {
	valid := percentageProfile([]int{0, 10}, []string{"40", "60"})
	if err := ValidateProfile(valid); err != nil {
		t.Fatalf("expected valid profile, got %v", err)
	}

	noZero := percentageProfile([]int{5, 10}, []string{"40", "60"})
	if err := ValidateProfile(noZero); !errors.Is(err, ErrInvalidProfile) {
		t.Fatalf("expected rejection without threshold-0 tier, got %v", err)
	}

	duplicate := percentageProfile([]int{0, 10, 10}, []string{"40", "50", "60"})
	if err := ValidateProfile(duplicate); !errors.Is(err, ErrInvalidProfile) {
		t.Fatalf("expected rejection of duplicate thresholds, got %v", err)
	}

	empty := &models.CommissionProfile{CalculationMethod: models.MethodPercentage}
	if err := ValidateProfile(empty); !errors.Is(err, ErrInvalidProfile) {
		t.Fatalf("expected rejection of empty tier list, got %v", err)
	}

	badPercent := percentageProfile([]int{0}, []string{"140"})
	if err := ValidateProfile(badPercent); !errors.Is(err, ErrInvalidProfile) {
		t.Fatalf("expected rejection of percent above 100, got %v", err)
	}

	missingFee := &models.CommissionProfile{
		CalculationMethod: models.MethodFlatFee,
		Tiers:             []models.CommissionTier{{TierLevel: 1, SessionThreshold: 0}},
	}
	if err := ValidateProfile(missingFee); !errors.Is(err, ErrInvalidProfile) {
		t.Fatalf("expected rejection of flat-fee tier without a fee, got %v", err)
	}
}

func TestUnconfiguredCountsSessions(t *testing.T) {
	sessions := validatedSessions(3, "80")
	sessions[2].Validated = false

	result := Unconfigured(sessions)
	if result.Status != StatusUnconfigured {
		t.Fatalf("expected unconfigured status, got %q", result.Status)
	}
	if result.SessionCount != 3 || result.ValidatedCount != 2 {
		t.Fatalf("expected 3 sessions / 2 validated, got %d/%d", result.SessionCount, result.ValidatedCount)
	}
	if !result.TotalCommission.IsZero() {
		t.Fatalf("expected zero commission, got %s", result.TotalCommission)
	}
}
