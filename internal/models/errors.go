package models

import (
	"context"
	"errors"
)

var (
	ErrInsufficientFunds        = errors.New("insufficient funds")
	ErrInvalidReferralGraph     = errors.New("invalid referral graph")
	ErrDuplicateOperation       = errors.New("duplicate idempotency key")
	ErrPackageNotFound          = errors.New("package not found")
	ErrStakeNotFound            = errors.New("stake not found")
	ErrStakeNotActive           = errors.New("stake is not active")
	ErrScheduleConflict         = errors.New("distribution already running for date")
	ErrUserNotFound             = errors.New("user not found")
	ErrUserExists               = errors.New("user already exists")
	ErrDepositNotFound          = errors.New("deposit not found")
	ErrWithdrawalNotFound       = errors.New("withdrawal not found")
	ErrAlreadyProcessed         = errors.New("already processed")
	ErrWithdrawalDateNotAllowed = errors.New("withdrawals are not accepted today")
	ErrInvalidAmount            = errors.New("amount must be greater than zero")
	ErrAmountOutOfRange         = errors.New("amount out of package range")
	ErrForbidden                = errors.New("admin role required")
	ErrReasonRequired           = errors.New("rejection reason is required")
	ErrInvalidSchedule          = errors.New("invalid schedule time")
	ErrFutureRunDate            = errors.New("distribution date is in the future")
	ErrInvalidPackage           = errors.New("invalid package")
	ErrInvalidBucket            = errors.New("invalid ledger bucket")
	ErrStorageUnavailable       = errors.New("storage unavailable")
)

// IsEntityError reports whether err concerns a single entity and must not abort a batch.
func IsEntityError(err error) bool {
	return err != nil &&
		!errors.Is(err, ErrStorageUnavailable) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}
