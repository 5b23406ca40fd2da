package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Actor is the authenticated caller handed over by the auth layer.
type Actor struct {
	UserId string
	Role   string
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

type NotificationStake struct {
	Stake *Stake
	Msg   string
}

type Ancestor struct {
	User  *User
	Depth int
}

type CommissionSummary struct {
	SourceEventId string
	Credited      int
	Duplicates    int
	Skipped       int
	Total         decimal.Decimal
}

type DistributionResult struct {
	RunId           string          `json:"run_id"`
	AsOf            time.Time       `json:"as_of"`
	Trigger         string          `json:"trigger"`
	StakesProcessed int             `json:"stakes_processed"`
	Credits         int             `json:"credits"`
	TotalROI        decimal.Decimal `json:"total_roi"`
	StakesCompleted int             `json:"stakes_completed"`
	Failures        int             `json:"failures"`
	StartedAt       time.Time       `json:"started_at"`
	FinishedAt      time.Time       `json:"finished_at"`
}

type SchedulerStatus struct {
	IsRunning  bool                `json:"is_running"`
	InFlight   bool                `json:"in_flight"`
	Schedule   string              `json:"schedule"`
	NextRun    *time.Time          `json:"next_run"`
	LastRun    *time.Time          `json:"last_run"`
	LastResult *DistributionResult `json:"last_result,omitempty"`
}

type Dashboard struct {
	UserId             string          `json:"user_id"`
	Level              int             `json:"level"`
	TotalInvestment    decimal.Decimal `json:"total_investment"`
	Balance            Balance         `json:"balance"`
	DailyROIPercentage decimal.Decimal `json:"daily_roi_percentage"`
	TeamCounts         [MaxDepth]int   `json:"team_counts"`
	TotalCommissions   decimal.Decimal `json:"total_commissions"`
	PendingWithdrawals int             `json:"pending_withdrawals"`
}
