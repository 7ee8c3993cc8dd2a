package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Session struct {
	ID           int64           `json:"id"`
	OrgID        int64           `json:"org_id"`
	TrainerID    int64           `json:"trainer_id"`
	ClientID     int64           `json:"client_id"`
	PackageID    *int64          `json:"package_id,omitempty"`
	Location     *string         `json:"location,omitempty"`
	SessionDate  time.Time       `json:"session_date"`
	SessionValue decimal.Decimal `json:"session_value"`
	Validated    bool            `json:"validated"`
	ValidatedAt  *time.Time      `json:"validated_at,omitempty"`
	Cancelled    bool            `json:"cancelled"`
	CancelledAt  *time.Time      `json:"cancelled_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}
