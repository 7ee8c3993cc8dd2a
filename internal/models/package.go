package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Package is a prepaid bundle of training-session credits sold to a client.
// Credits unlock proportionally to payments received against total_value.
type Package struct {
	ID            int64           `json:"id"`
	OrgID         int64           `json:"org_id"`
	ClientID      int64           `json:"client_id"`
	Name          string          `json:"name"`
	TotalSessions int             `json:"total_sessions"`
	TotalValue    decimal.Decimal `json:"total_value"`
	Archived      bool            `json:"archived"`
	CreatedAt     time.Time       `json:"created_at"`
}

type Payment struct {
	ID        int64           `json:"id"`
	PackageID int64           `json:"package_id"`
	Amount    decimal.Decimal `json:"amount"`
	PaidAt    time.Time       `json:"paid_at"`
	CreatedAt time.Time       `json:"created_at"`
}

// PackageSummary is the denormalized balance state refreshed after every
// payment or session mutation.
type PackageSummary struct {
	PaidAmount        decimal.Decimal `json:"paid_amount"`
	UnlockedSessions  int             `json:"unlocked_sessions"`
	LockedSessions    int             `json:"locked_sessions"`
	UsedSessions      int             `json:"used_sessions"`
	RemainingSessions int             `json:"remaining_sessions"`
}

type PackageDetail struct {
	Package
	Payments []Payment      `json:"payments"`
	Summary  PackageSummary `json:"summary"`
}
