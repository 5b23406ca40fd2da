package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Balance struct {
	UserId     string          `db:"user_id" json:"user_id"`
	Cash       decimal.Decimal `db:"cash" json:"cash"`
	ROI        decimal.Decimal `db:"roi" json:"roi"`
	Commission decimal.Decimal `db:"commission" json:"commission"`
}

func (b Balance) Bucket(bucket string) decimal.Decimal {
	switch bucket {
	case BucketCash:
		return b.Cash
	case BucketROI:
		return b.ROI
	case BucketCommission:
		return b.Commission
	default:
		return decimal.Zero
	}
}

// Add returns a copy of b with delta applied to bucket.
func (b Balance) Add(bucket string, delta decimal.Decimal) Balance {
	switch bucket {
	case BucketCash:
		b.Cash = b.Cash.Add(delta)
	case BucketROI:
		b.ROI = b.ROI.Add(delta)
	case BucketCommission:
		b.Commission = b.Commission.Add(delta)
	}
	return b
}

func (b Balance) Withdrawable() decimal.Decimal {
	return b.ROI.Add(b.Commission)
}

func (b Balance) Total() decimal.Decimal {
	return b.Cash.Add(b.ROI).Add(b.Commission)
}

func (b Balance) Negative() bool {
	return b.Cash.IsNegative() || b.ROI.IsNegative() || b.Commission.IsNegative()
}

// LedgerEntry is one immutable movement of a single bucket. Credits are positive, debits negative.
type LedgerEntry struct {
	Id         string          `db:"id" json:"id"`
	PostingKey string          `db:"posting_key" json:"posting_key"`
	UserId     string          `db:"user_id" json:"user_id"`
	Bucket     string          `db:"bucket" json:"bucket"`
	Amount     decimal.Decimal `db:"amount" json:"amount"`
	Reason     string          `db:"reason" json:"reason"`
	RefId      string          `db:"ref_id" json:"ref_id"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

type Leg struct {
	Bucket string
	Amount decimal.Decimal
}

// Posting is the unit of work committed by the ledger store: the legs of one user plus the
// companion state changes that must land together with them.
type Posting struct {
	Key        string
	UserId     string
	Reason     string
	RefId      string
	Legs       []Leg
	Companions []Companion
	CreatedAt  time.Time
}

type PostingResult struct {
	Entries   []LedgerEntry
	Balance   Balance
	Duplicate bool
}

// Companion is a state change committed atomically with a posting.
type Companion interface {
	companion()
}

type StakeOpen struct {
	Stake *Stake
}

// StakeAccrual advances last_roi_date to Day and adds Earned to total_earned.
type StakeAccrual struct {
	StakeId string
	Day     time.Time
	Earned  decimal.Decimal
}

type StakeClose struct {
	StakeId string
	At      time.Time
}

type CommissionGrant struct {
	Record *CommissionRecord
}

// DepositApproval moves a pending deposit to approved and adds its amount to the owner's total investment.
type DepositApproval struct {
	DepositId string
	UserId    string
	Amount    decimal.Decimal
	By        string
	At        time.Time
}

type WithdrawalOpen struct {
	Withdrawal *Withdrawal
}

type WithdrawalReject struct {
	WithdrawalId string
	Reason       string
	By           string
	At           time.Time
}

func (StakeOpen) companion()        {}
func (StakeAccrual) companion()     {}
func (StakeClose) companion()       {}
func (CommissionGrant) companion()  {}
func (DepositApproval) companion()  {}
func (WithdrawalOpen) companion()   {}
func (WithdrawalReject) companion() {}
