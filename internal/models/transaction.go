package models

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// ledger buckets
const (
	BucketCash       = "cash"
	BucketROI        = "roi"
	BucketCommission = "commission"
)

const (
	StakeActive    = "active"
	StakeCompleted = "completed"
)

// deposit and withdrawal statuses
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// ledger entry reasons
const (
	ReasonDeposit          = "deposit"
	ReasonCommission       = "commission"
	ReasonROI              = "roi"
	ReasonPrincipalReturn  = "principal_return"
	ReasonStakeOpen        = "stake_open"
	ReasonWithdrawal       = "withdrawal"
	ReasonWithdrawalReturn = "withdrawal_reject"
	ReasonAdjustment       = "adjustment"
)

// distribution run triggers
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
	TriggerCLI      = "cli"
)

const (
	RunSucceeded = "success"
	RunAborted   = "aborted"
)

func ValidBucket(bucket string) bool {
	switch bucket {
	case BucketCash, BucketROI, BucketCommission:
		return true
	default:
		return false
	}
}
