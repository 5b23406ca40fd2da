package util

import (
	"fmt"
	"time"
)

func ROIKey(stakeId string, day time.Time) string {
	return fmt.Sprintf("roi:%s:%s", stakeId, FormatDay(day))
}

func PrincipalKey(stakeId string) string {
	return "principal:" + stakeId
}

func StakeOpenKey(stakeId string) string {
	return "stake-open:" + stakeId
}

func CommissionKey(sourceEventId string, depth int) string {
	return fmt.Sprintf("commission:%s:%d", sourceEventId, depth)
}

func DepositKey(depositId string) string {
	return "deposit:" + depositId
}

func WithdrawalKey(withdrawalId string) string {
	return "withdrawal:" + withdrawalId
}

func WithdrawalRejectKey(withdrawalId string) string {
	return "withdrawal-reject:" + withdrawalId
}

func RunLockKey(asOf time.Time) string {
	return "roi:run:" + FormatDay(asOf)
}
