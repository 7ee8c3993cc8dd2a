package services

import (
	"errors"
	"strings"
	"testing"

	"github.com/noberman/PTSessionTrackerBack/internal/commission"
	"github.com/noberman/PTSessionTrackerBack/internal/models"
)

func strPtr(s string) *string {
	return &s
}

func TestBuildProfileFromLegacyTiersTranslatesRows(t *testing.T) {
	legacy := []models.LegacyCommissionTier{
		{ID: 2, OrgID: 1, MinSessions: 10, Percentage: mustDec("60")},
		{ID: 1, OrgID: 1, MinSessions: 0, Percentage: mustDec("50")},
		{ID: 3, OrgID: 1, MinSessions: 20, Percentage: mustDec("70")},
	}

	profile, warnings, err := buildProfileFromLegacyTiers(1, legacy)
	if err != nil {
		t.Fatalf("buildProfileFromLegacyTiers: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}

	if profile.CalculationMethod != models.MethodPercentage {
		t.Fatalf("expected percentage method, got %q", profile.CalculationMethod)
	}
	if len(profile.Tiers) != 3 {
		t.Fatalf("expected 3 tiers, got %d", len(profile.Tiers))
	}
	// Rows sorted by min_sessions before tier levels are assigned.
	for i, wantThreshold := range []int{0, 10, 20} {
		tier := profile.Tiers[i]
		if tier.TierLevel != i+1 || tier.SessionThreshold != wantThreshold {
			t.Fatalf("tier %d: expected level %d threshold %d, got level %d threshold %d",
				i, i+1, wantThreshold, tier.TierLevel, tier.SessionThreshold)
		}
	}
	if !profile.Tiers[1].SessionCommissionPercent.Equal(mustDec("60")) {
		t.Fatalf("expected 60 percent on second tier, got %s", profile.Tiers[1].SessionCommissionPercent)
	}
}

func TestBuildProfileFromLegacyTiersMovesLowestThresholdToZero(t *testing.T) {
	legacy := []models.LegacyCommissionTier{
		{ID: 1, OrgID: 1, MinSessions: 1, Percentage: mustDec("45")},
		{ID: 2, OrgID: 1, MinSessions: 15, Percentage: mustDec("55")},
	}

	profile, warnings, err := buildProfileFromLegacyTiers(1, legacy)
	if err != nil {
		t.Fatalf("buildProfileFromLegacyTiers: %v", err)
	}
	if profile.Tiers[0].SessionThreshold != 0 {
		t.Fatalf("expected lowest threshold moved to 0, got %d", profile.Tiers[0].SessionThreshold)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "moved to 0") {
		t.Fatalf("expected a warning about the moved threshold, got %v", warnings)
	}
}

func TestBuildProfileFromLegacyTiersWarnsOnUnknownPackageType(t *testing.T) {
	legacy := []models.LegacyCommissionTier{
		{ID: 1, OrgID: 1, MinSessions: 0, Percentage: mustDec("50"), PackageType: strPtr("standard")},
		{ID: 2, OrgID: 1, MinSessions: 10, Percentage: mustDec("60"), PackageType: strPtr("prenium")},
	}

	profile, warnings, err := buildProfileFromLegacyTiers(1, legacy)
	if err != nil {
		t.Fatalf("buildProfileFromLegacyTiers: %v", err)
	}
	// The typo'd row still migrates; it is only flagged.
	if len(profile.Tiers) != 2 {
		t.Fatalf("expected both rows migrated, got %d tiers", len(profile.Tiers))
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "prenium") {
		t.Fatalf("expected warning naming the unknown package type, got %v", warnings)
	}
}

func TestBuildProfileFromLegacyTiersRejectsInvalidData(t *testing.T) {
	duplicate := []models.LegacyCommissionTier{
		{ID: 1, OrgID: 1, MinSessions: 0, Percentage: mustDec("50")},
		{ID: 2, OrgID: 1, MinSessions: 0, Percentage: mustDec("60")},
	}
	if _, _, err := buildProfileFromLegacyTiers(1, duplicate); !errors.Is(err, commission.ErrInvalidProfile) {
		t.Fatalf("expected duplicate thresholds to be rejected, got %v", err)
	}

	badPercent := []models.LegacyCommissionTier{
		{ID: 1, OrgID: 1, MinSessions: 0, Percentage: mustDec("250")},
	}
	if _, _, err := buildProfileFromLegacyTiers(1, badPercent); !errors.Is(err, commission.ErrInvalidProfile) {
		t.Fatalf("expected malformed percentage to be rejected, got %v", err)
	}
}
