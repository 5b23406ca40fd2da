package models

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// MaxDepth is the deepest upline level that takes part in commissions and promotion requirements.
const MaxDepth = 6

type User struct {
	Id              string          `db:"id" json:"id"`
	Username        string          `db:"username" json:"username"`
	Role            string          `db:"role" json:"role"`
	UplineId        sql.NullString  `db:"upline_id" json:"upline_id"`
	Level           int             `db:"level" json:"level"`
	TotalInvestment decimal.Decimal `db:"total_investment" json:"total_investment"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

type Package struct {
	Id            string          `db:"id" json:"id"`
	Level         int             `db:"level" json:"level"`
	Version       int             `db:"version" json:"version"`
	Name          string          `db:"name" json:"name"`
	MinInvestment decimal.Decimal `db:"min_investment" json:"min_investment"`
	MaxInvestment decimal.Decimal `db:"max_investment" json:"max_investment"`
	DailyROI      decimal.Decimal `db:"daily_roi" json:"daily_roi"`
	DurationDays  int             `db:"duration_days" json:"duration_days"`
	// commission percentage per depth, index 0 is depth 1
	CommissionRates [MaxDepth]decimal.Decimal `db:"-" json:"commission_rates"`
	LevelsEnabled   pq.Int64Array             `db:"levels_enabled" json:"levels_enabled"`
	Requirements    Requirements              `db:"-" json:"requirements"`
	IsActive        bool                      `db:"is_active" json:"is_active"`
	CreatedAt       time.Time                 `db:"created_at" json:"created_at"`
}

// DepthEnabled reports whether commissions are paid to ancestors at the given depth.
func (p *Package) DepthEnabled(depth int) bool {
	if depth < 1 || depth > MaxDepth {
		return false
	}
	if len(p.LevelsEnabled) == 0 {
		return true
	}
	for _, d := range p.LevelsEnabled {
		if int(d) == depth {
			return true
		}
	}
	return false
}

// Requirements to be promoted into a package level.
type Requirements struct {
	Level              int             `json:"level"`
	RequiredInvestment decimal.Decimal `json:"required_investment"`
	// required number of qualifying descendants per depth, index 0 is direct referrals
	DownlineRequired [MaxDepth]int `json:"downline_required"`
}

type Stake struct {
	Id           string          `db:"id" json:"id"`
	UserId       string          `db:"user_id" json:"user_id"`
	PackageId    string          `db:"package_id" json:"package_id"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	DailyROI     decimal.Decimal `db:"daily_roi" json:"daily_roi"`
	StartDate    time.Time       `db:"start_date" json:"start_date"`
	DurationDays int             `db:"duration_days" json:"duration_days"`
	EndDate      time.Time       `db:"end_date" json:"end_date"`
	Status       string          `db:"status" json:"status"`
	LastROIDate  sql.NullTime    `db:"last_roi_date" json:"last_roi_date"`
	TotalEarned  decimal.Decimal `db:"total_earned" json:"total_earned"`
	CompletedAt  sql.NullTime    `db:"completed_at" json:"completed_at"`
}

func (s *Stake) IsActive() bool {
	return s.Status == StakeActive
}

type CommissionRecord struct {
	Id            string          `db:"id" json:"id"`
	FromUserId    string          `db:"from_user_id" json:"from_user_id"`
	ToUserId      string          `db:"to_user_id" json:"to_user_id"`
	Depth         int             `db:"depth" json:"depth"`
	Percentage    decimal.Decimal `db:"percentage" json:"percentage"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	SourceEventId string          `db:"source_event_id" json:"source_event_id"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

type Deposit struct {
	Id              string          `db:"id" json:"id"`
	UserId          string          `db:"user_id" json:"user_id"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`
	PaymentMethod   string          `db:"payment_method" json:"payment_method"`
	TxHash          sql.NullString  `db:"tx_hash" json:"tx_hash"`
	Status          string          `db:"status" json:"status"`
	RejectionReason sql.NullString  `db:"rejection_reason" json:"rejection_reason"`
	ProcessedBy     sql.NullString  `db:"processed_by" json:"processed_by"`
	ProcessedAt     sql.NullTime    `db:"processed_at" json:"processed_at"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

type Withdrawal struct {
	Id                 string          `db:"id" json:"id"`
	UserId             string          `db:"user_id" json:"user_id"`
	Amount             decimal.Decimal `db:"amount" json:"amount"`
	ReservedROI        decimal.Decimal `db:"reserved_roi" json:"reserved_roi"`
	ReservedCommission decimal.Decimal `db:"reserved_commission" json:"reserved_commission"`
	WalletAddress      string          `db:"wallet_address" json:"wallet_address"`
	Status             string          `db:"status" json:"status"`
	RejectionReason    sql.NullString  `db:"rejection_reason" json:"rejection_reason"`
	TxHash             sql.NullString  `db:"tx_hash" json:"tx_hash"`
	ProcessedBy        sql.NullString  `db:"processed_by" json:"processed_by"`
	ProcessedAt        sql.NullTime    `db:"processed_at" json:"processed_at"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
}

type DistributionRun struct {
	Id              string          `db:"id" json:"id"`
	AsOf            time.Time       `db:"as_of" json:"as_of"`
	Trigger         string          `db:"trigger" json:"trigger"`
	StartedAt       time.Time       `db:"started_at" json:"started_at"`
	FinishedAt      time.Time       `db:"finished_at" json:"finished_at"`
	StakesProcessed int             `db:"stakes_processed" json:"stakes_processed"`
	Credits         int             `db:"credits" json:"credits"`
	TotalROI        decimal.Decimal `db:"total_roi" json:"total_roi"`
	StakesCompleted int             `db:"stakes_completed" json:"stakes_completed"`
	Failures        int             `db:"failures" json:"failures"`
	Status          string          `db:"status" json:"status"`
}
