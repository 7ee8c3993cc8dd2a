package billing

import (
	"fmt"

	"github.com/noberman/PTSessionTrackerBack/internal/models"
	"github.com/shopspring/decimal"
)

// ComputeUnlockedSessions returns how many session credits are usable given
// the payments received so far: floor(paidAmount / totalValue * totalSessions)
// clamped to [0, totalSessions]. A package with no price (fully comped) is
// fully unlocked as soon as anything has been paid, otherwise locked.
//
// Rounding is always down. This is the only place balance math rounds.
func ComputeUnlockedSessions(paidAmount, totalValue decimal.Decimal, totalSessions int) int {
	if totalSessions <= 0 {
		return 0
	}
	if totalValue.Sign() <= 0 {
		if paidAmount.Sign() > 0 {
			return totalSessions
		}
		return 0
	}
	if paidAmount.Sign() <= 0 {
		return 0
	}

	// Multiply before dividing and truncate the quotient at scale 0 so the
	// floor is exact regardless of decimal division precision.
	quotient, _ := paidAmount.Mul(decimal.NewFromInt(int64(totalSessions))).QuoRem(totalValue, 0)
	unlocked := int(quotient.IntPart())
	if unlocked > totalSessions {
		unlocked = totalSessions
	}
	if unlocked < 0 {
		unlocked = 0
	}
	return unlocked
}

// DeletePaymentCheck is the result of the pure guard run before a payment is
// removed. When disallowed, Reason carries both numbers in conflict.
type DeletePaymentCheck struct {
	Allowed      bool
	UsedSessions int
	NewUnlocked  int
	Reason       string
}

// CanDeletePayment checks whether removing a payment would lock credits that
// have already been consumed by non-cancelled sessions. It performs no writes.
func CanDeletePayment(paidAmount, paymentAmount, totalValue decimal.Decimal, totalSessions, usedSessions int) DeletePaymentCheck {
	newUnlocked := ComputeUnlockedSessions(paidAmount.Sub(paymentAmount), totalValue, totalSessions)
	check := DeletePaymentCheck{
		Allowed:      usedSessions <= newUnlocked,
		UsedSessions: usedSessions,
		NewUnlocked:  newUnlocked,
	}
	if !check.Allowed {
		check.Reason = fmt.Sprintf(
			"%d sessions already logged against this package but only %d would remain unlocked",
			usedSessions, newUnlocked,
		)
	}
	return check
}

// Summarize recomputes the denormalized balance state for a package.
// RemainingSessions never goes negative: used sessions beyond the unlocked
// count cannot occur through the guarded write paths, but stale data must not
// produce a negative display value.
func Summarize(paidAmount, totalValue decimal.Decimal, totalSessions, usedSessions int) models.PackageSummary {
	unlocked := ComputeUnlockedSessions(paidAmount, totalValue, totalSessions)
	remaining := unlocked - usedSessions
	if remaining < 0 {
		remaining = 0
	}
	return models.PackageSummary{
		PaidAmount:        paidAmount,
		UnlockedSessions:  unlocked,
		LockedSessions:    totalSessions - unlocked,
		UsedSessions:      usedSessions,
		RemainingSessions: remaining,
	}
}
