package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	MethodPercentage = "percentage"
	MethodFlatFee    = "flat_fee"

	// TriggerMonthlyCumulative counts a trainer's validated sessions per
	// calendar month against tier thresholds.
	TriggerMonthlyCumulative = "monthly_cumulative"
)

// CommissionProfile is a named scheme assignable to one or more trainers.
// Tiers are kept ordered by session_threshold ascending.
type CommissionProfile struct {
	ID                int64            `json:"id"`
	OrgID             int64            `json:"org_id"`
	Name              string           `json:"name"`
	CalculationMethod string           `json:"calculation_method"`
	TriggerType       string           `json:"trigger_type"`
	Tiers             []CommissionTier `json:"tiers"`
	CreatedAt         time.Time        `json:"created_at"`
}

type CommissionTier struct {
	ID                       int64            `json:"id"`
	ProfileID                int64            `json:"profile_id"`
	TierLevel                int              `json:"tier_level"`
	SessionThreshold         int              `json:"session_threshold"`
	SessionCommissionPercent *decimal.Decimal `json:"session_commission_percent,omitempty"`
	SessionFlatFee           *decimal.Decimal `json:"session_flat_fee,omitempty"`
}

// LegacyCommissionTier is the v1 organization-wide flat tier, kept only for
// historical data and the one-time v2 migration.
type LegacyCommissionTier struct {
	ID          int64           `json:"id"`
	OrgID       int64           `json:"org_id"`
	MinSessions int             `json:"min_sessions"`
	MaxSessions *int            `json:"max_sessions,omitempty"`
	Percentage  decimal.Decimal `json:"percentage"`
	PackageType *string         `json:"package_type,omitempty"`
}
