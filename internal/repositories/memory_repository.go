package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"minex/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// memoryState holds every table of the in-memory store behind one lock, so a ledger commit
// and its companions are applied as a single critical section.
type memoryState struct {
	mu sync.RWMutex

	users       map[string]*models.User
	balances    map[string]models.Balance
	packages    map[string]*models.Package
	stakes      map[string]*models.Stake
	postings    map[string]string // key -> user id
	entries     []models.LedgerEntry
	commissions []models.CommissionRecord
	deposits    map[string]*models.Deposit
	withdrawals map[string]*models.Withdrawal
	runs        []models.DistributionRun
}

// NewMemoryRepositories returns stores that keep everything in process memory. They honour
// the same atomicity and idempotency contracts as the postgres stores.
func NewMemoryRepositories() *Repositories {
	s := &memoryState{
		users:       make(map[string]*models.User),
		balances:    make(map[string]models.Balance),
		packages:    make(map[string]*models.Package),
		stakes:      make(map[string]*models.Stake),
		postings:    make(map[string]string),
		deposits:    make(map[string]*models.Deposit),
		withdrawals: make(map[string]*models.Withdrawal),
	}
	return &Repositories{
		Users:       &memoryUsers{s},
		Packages:    &memoryPackages{s},
		Stakes:      &memoryStakes{s},
		Ledger:      &memoryLedger{s},
		Commissions: &memoryCommissions{s},
		Deposits:    &memoryDeposits{s},
		Withdrawals: &memoryWithdrawals{s},
		Runs:        &memoryRuns{s},
	}
}

func cloneUser(u *models.User) *models.User {
	c := *u
	return &c
}

func clonePackage(p *models.Package) *models.Package {
	c := *p
	if p.LevelsEnabled != nil {
		c.LevelsEnabled = append(pq.Int64Array(nil), p.LevelsEnabled...)
	}
	return &c
}

func cloneStake(s *models.Stake) *models.Stake {
	c := *s
	return &c
}

type memoryUsers struct{ s *memoryState }

func (m *memoryUsers) Save(_ context.Context, user *models.User) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if _, ok := m.s.users[user.Id]; ok {
		return models.ErrUserExists
	}
	for _, u := range m.s.users {
		if u.Username == user.Username {
			return models.ErrUserExists
		}
	}
	m.s.users[user.Id] = cloneUser(user)
	m.s.balances[user.Id] = models.Balance{UserId: user.Id}
	return nil
}

func (m *memoryUsers) FindById(_ context.Context, id string) (*models.User, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	u, ok := m.s.users[id]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (m *memoryUsers) FindByUsername(_ context.Context, username string) (*models.User, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	for _, u := range m.s.users {
		if u.Username == username {
			return cloneUser(u), nil
		}
	}
	return nil, models.ErrUserNotFound
}

func (m *memoryUsers) FindByUpline(_ context.Context, uplineId string) ([]models.User, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	res := make([]models.User, 0)
	for _, u := range m.s.users {
		if u.UplineId.Valid && u.UplineId.String == uplineId {
			res = append(res, *u)
		}
	}
	sortUsers(res)
	return res, nil
}

func (m *memoryUsers) FindAll(_ context.Context) ([]models.User, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	res := make([]models.User, 0, len(m.s.users))
	for _, u := range m.s.users {
		res = append(res, *u)
	}
	sortUsers(res)
	return res, nil
}

func sortUsers(users []models.User) {
	sort.Slice(users, func(i, j int) bool {
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.Before(users[j].CreatedAt)
		}
		return users[i].Id < users[j].Id
	})
}

func (m *memoryUsers) UpdateUpline(_ context.Context, id, uplineId string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	u, ok := m.s.users[id]
	if !ok {
		return models.ErrUserNotFound
	}
	u.UplineId.String = uplineId
	u.UplineId.Valid = true
	return nil
}

func (m *memoryUsers) UpdateLevel(_ context.Context, id string, from, to int) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	u, ok := m.s.users[id]
	if !ok {
		return false, models.ErrUserNotFound
	}
	if u.Level != from {
		return false, nil
	}
	u.Level = to
	return true, nil
}

type memoryPackages struct{ s *memoryState }

func (m *memoryPackages) Save(_ context.Context, pkg *models.Package) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	for _, p := range m.s.packages {
		if p.Id == pkg.Id || (p.Level == pkg.Level && p.Version == pkg.Version) {
			return fmt.Errorf("level %d version %d: %w", pkg.Level, pkg.Version, models.ErrInvalidPackage)
		}
	}
	m.s.packages[pkg.Id] = clonePackage(pkg)
	return nil
}

func (m *memoryPackages) FindById(_ context.Context, id string) (*models.Package, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	p, ok := m.s.packages[id]
	if !ok {
		return nil, models.ErrPackageNotFound
	}
	return clonePackage(p), nil
}

func (m *memoryPackages) current() map[int]*models.Package {
	res := make(map[int]*models.Package)
	for _, p := range m.s.packages {
		if !p.IsActive {
			continue
		}
		if cur, ok := res[p.Level]; !ok || p.Version > cur.Version {
			res[p.Level] = p
		}
	}
	return res
}

func (m *memoryPackages) FindCurrent(_ context.Context, level int) (*models.Package, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	p, ok := m.current()[level]
	if !ok {
		return nil, models.ErrPackageNotFound
	}
	return clonePackage(p), nil
}

func (m *memoryPackages) FindAllCurrent(_ context.Context) ([]models.Package, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	res := make([]models.Package, 0)
	for _, p := range m.current() {
		res = append(res, *clonePackage(p))
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Level < res[j].Level })
	return res, nil
}

func (m *memoryPackages) LatestVersion(_ context.Context, level int) (int, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	version := 0
	for _, p := range m.s.packages {
		if p.Level == level && p.Version > version {
			version = p.Version
		}
	}
	return version, nil
}

type memoryStakes struct{ s *memoryState }

func (m *memoryStakes) FindById(_ context.Context, id string) (*models.Stake, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	st, ok := m.s.stakes[id]
	if !ok {
		return nil, models.ErrStakeNotFound
	}
	return cloneStake(st), nil
}

func (m *memoryStakes) FindByUser(_ context.Context, userId string) ([]models.Stake, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	res := make([]models.Stake, 0)
	for _, st := range m.s.stakes {
		if st.UserId == userId {
			res = append(res, *st)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].StartDate.Equal(res[j].StartDate) {
			return res[i].StartDate.After(res[j].StartDate)
		}
		return res[i].Id < res[j].Id
	})
	return res, nil
}

func (m *memoryStakes) FindActive(_ context.Context, before time.Time) ([]models.Stake, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	res := make([]models.Stake, 0)
	for _, st := range m.s.stakes {
		if st.IsActive() && st.StartDate.Before(before) {
			res = append(res, *st)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].UserId != res[j].UserId {
			return res[i].UserId < res[j].UserId
		}
		if !res[i].StartDate.Equal(res[j].StartDate) {
			return res[i].StartDate.Before(res[j].StartDate)
		}
		return res[i].Id < res[j].Id
	})
	return res, nil
}

type memoryLedger struct{ s *memoryState }

func (m *memoryLedger) Commit(_ context.Context, p *models.Posting) (*models.PostingResult, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if _, ok := m.s.postings[p.Key]; ok {
		return &models.PostingResult{
			Entries:   m.entriesByKey(p.Key),
			Balance:   m.s.balances[p.UserId],
			Duplicate: true,
		}, nil
	}

	bal, ok := m.s.balances[p.UserId]
	if !ok {
		return nil, models.ErrUserNotFound
	}

	entries := make([]models.LedgerEntry, 0, len(p.Legs))
	for _, leg := range p.Legs {
		bal = bal.Add(leg.Bucket, leg.Amount)
		entries = append(entries, models.LedgerEntry{
			Id:         uuid.NewString(),
			PostingKey: p.Key,
			UserId:     p.UserId,
			Bucket:     leg.Bucket,
			Amount:     leg.Amount,
			Reason:     p.Reason,
			RefId:      p.RefId,
			CreatedAt:  p.CreatedAt,
		})
	}
	if bal.Negative() {
		return nil, models.ErrInsufficientFunds
	}

	undo := make([]func(), 0, len(p.Companions))
	for _, c := range p.Companions {
		u, err := m.apply(c)
		if err != nil {
			for i := len(undo) - 1; i >= 0; i-- {
				undo[i]()
			}
			return nil, err
		}
		undo = append(undo, u)
	}

	m.s.postings[p.Key] = p.UserId
	m.s.entries = append(m.s.entries, entries...)
	m.s.balances[p.UserId] = bal

	return &models.PostingResult{
		Entries: entries,
		Balance: bal,
	}, nil
}

// apply performs one companion change and returns the function that reverts it.
func (m *memoryLedger) apply(c models.Companion) (func(), error) {
	switch c := c.(type) {
	case models.StakeOpen:
		if _, ok := m.s.stakes[c.Stake.Id]; ok {
			return nil, fmt.Errorf("open stake %s: %w", c.Stake.Id, models.ErrDuplicateOperation)
		}
		m.s.stakes[c.Stake.Id] = cloneStake(c.Stake)
		return func() { delete(m.s.stakes, c.Stake.Id) }, nil

	case models.StakeAccrual:
		st, ok := m.s.stakes[c.StakeId]
		if !ok || !st.IsActive() || c.Day.After(st.EndDate) ||
			(st.LastROIDate.Valid && !st.LastROIDate.Time.Before(c.Day)) {
			return nil, fmt.Errorf("accrue stake %s: %w", c.StakeId, models.ErrStakeNotActive)
		}
		prev := *st
		st.LastROIDate.Time = c.Day
		st.LastROIDate.Valid = true
		st.TotalEarned = st.TotalEarned.Add(c.Earned)
		return func() { *st = prev }, nil

	case models.StakeClose:
		st, ok := m.s.stakes[c.StakeId]
		if !ok || !st.IsActive() {
			return nil, fmt.Errorf("close stake %s: %w", c.StakeId, models.ErrStakeNotActive)
		}
		prev := *st
		st.Status = models.StakeCompleted
		st.CompletedAt.Time = c.At
		st.CompletedAt.Valid = true
		return func() { *st = prev }, nil

	case models.CommissionGrant:
		for _, rec := range m.s.commissions {
			if rec.SourceEventId == c.Record.SourceEventId && rec.Depth == c.Record.Depth {
				return nil, models.ErrDuplicateOperation
			}
		}
		n := len(m.s.commissions)
		m.s.commissions = append(m.s.commissions, *c.Record)
		return func() { m.s.commissions = m.s.commissions[:n] }, nil

	case models.DepositApproval:
		d, ok := m.s.deposits[c.DepositId]
		if !ok || d.Status != models.StatusPending || d.UserId != c.UserId || !d.Amount.Equal(c.Amount) {
			return nil, fmt.Errorf("deposit %s: %w", c.DepositId, models.ErrAlreadyProcessed)
		}
		u, ok := m.s.users[c.UserId]
		if !ok {
			return nil, models.ErrUserNotFound
		}
		prevDeposit, prevUser := *d, *u
		d.Status = models.StatusApproved
		d.ProcessedBy.String, d.ProcessedBy.Valid = c.By, true
		d.ProcessedAt.Time, d.ProcessedAt.Valid = c.At, true
		u.TotalInvestment = u.TotalInvestment.Add(c.Amount)
		return func() { *d, *u = prevDeposit, prevUser }, nil

	case models.WithdrawalOpen:
		if _, ok := m.s.withdrawals[c.Withdrawal.Id]; ok {
			return nil, fmt.Errorf("withdrawal %s: %w", c.Withdrawal.Id, models.ErrDuplicateOperation)
		}
		w := *c.Withdrawal
		m.s.withdrawals[w.Id] = &w
		return func() { delete(m.s.withdrawals, w.Id) }, nil

	case models.WithdrawalReject:
		w, ok := m.s.withdrawals[c.WithdrawalId]
		if !ok || w.Status != models.StatusPending {
			return nil, fmt.Errorf("withdrawal %s: %w", c.WithdrawalId, models.ErrAlreadyProcessed)
		}
		prev := *w
		w.Status = models.StatusRejected
		w.RejectionReason.String, w.RejectionReason.Valid = c.Reason, true
		w.ProcessedBy.String, w.ProcessedBy.Valid = c.By, true
		w.ProcessedAt.Time, w.ProcessedAt.Valid = c.At, true
		return func() { *w = prev }, nil
	}
	return nil, fmt.Errorf("unknown companion %T", c)
}

func (m *memoryLedger) entriesByKey(key string) []models.LedgerEntry {
	res := make([]models.LedgerEntry, 0)
	for _, e := range m.s.entries {
		if e.PostingKey == key {
			res = append(res, e)
		}
	}
	return res
}

func (m *memoryLedger) Balance(_ context.Context, userId string) (models.Balance, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	bal, ok := m.s.balances[userId]
	if !ok {
		return models.Balance{}, models.ErrUserNotFound
	}
	return bal, nil
}

func (m *memoryLedger) Entries(_ context.Context, userId string) ([]models.LedgerEntry, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	res := make([]models.LedgerEntry, 0)
	for _, e := range m.s.entries {
		if e.UserId == userId {
			res = append(res, e)
		}
	}
	return res, nil
}

func (m *memoryLedger) EntriesByKey(_ context.Context, key string) ([]models.LedgerEntry, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	return m.entriesByKey(key), nil
}

type memoryCommissions struct{ s *memoryState }

func (m *memoryCommissions) FindByEarner(_ context.Context, userId string) ([]models.CommissionRecord, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	res := make([]models.CommissionRecord, 0)
	for i := len(m.s.commissions) - 1; i >= 0; i-- {
		if m.s.commissions[i].ToUserId == userId {
			res = append(res, m.s.commissions[i])
		}
	}
	return res, nil
}

func (m *memoryCommissions) FindBySource(_ context.Context, sourceEventId string) ([]models.CommissionRecord, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	res := make([]models.CommissionRecord, 0)
	for _, rec := range m.s.commissions {
		if rec.SourceEventId == sourceEventId {
			res = append(res, rec)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Depth < res[j].Depth })
	return res, nil
}

type memoryDeposits struct{ s *memoryState }

func (m *memoryDeposits) Save(_ context.Context, deposit *models.Deposit) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if _, ok := m.s.deposits[deposit.Id]; ok {
		return fmt.Errorf("deposit %s: %w", deposit.Id, models.ErrDuplicateOperation)
	}
	d := *deposit
	m.s.deposits[d.Id] = &d
	return nil
}

func (m *memoryDeposits) FindById(_ context.Context, id string) (*models.Deposit, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	d, ok := m.s.deposits[id]
	if !ok {
		return nil, models.ErrDepositNotFound
	}
	c := *d
	return &c, nil
}

func (m *memoryDeposits) filter(match func(*models.Deposit) bool) []models.Deposit {
	res := make([]models.Deposit, 0)
	for _, d := range m.s.deposits {
		if match(d) {
			res = append(res, *d)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res
}

func (m *memoryDeposits) FindByUser(_ context.Context, userId string) ([]models.Deposit, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	res := m.filter(func(d *models.Deposit) bool { return d.UserId == userId })
	for i, j := 0, len(res)-1; i < j; i, j = i+1, j-1 {
		res[i], res[j] = res[j], res[i]
	}
	return res, nil
}

func (m *memoryDeposits) FindByStatus(_ context.Context, status string) ([]models.Deposit, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	return m.filter(func(d *models.Deposit) bool { return d.Status == status }), nil
}

func (m *memoryDeposits) Reject(_ context.Context, id, reason, by string, at time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	d, ok := m.s.deposits[id]
	if !ok {
		return models.ErrDepositNotFound
	}
	if d.Status != models.StatusPending {
		return fmt.Errorf("deposit %s: %w", id, models.ErrAlreadyProcessed)
	}
	d.Status = models.StatusRejected
	d.RejectionReason.String, d.RejectionReason.Valid = reason, true
	d.ProcessedBy.String, d.ProcessedBy.Valid = by, true
	d.ProcessedAt.Time, d.ProcessedAt.Valid = at, true
	return nil
}

type memoryWithdrawals struct{ s *memoryState }

func (m *memoryWithdrawals) FindById(_ context.Context, id string) (*models.Withdrawal, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	w, ok := m.s.withdrawals[id]
	if !ok {
		return nil, models.ErrWithdrawalNotFound
	}
	c := *w
	return &c, nil
}

func (m *memoryWithdrawals) FindByUser(_ context.Context, userId string) ([]models.Withdrawal, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	res := make([]models.Withdrawal, 0)
	for _, w := range m.s.withdrawals {
		if w.UserId == userId {
			res = append(res, *w)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

func (m *memoryWithdrawals) CountPending(_ context.Context, userId string) (int, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	n := 0
	for _, w := range m.s.withdrawals {
		if w.UserId == userId && w.Status == models.StatusPending {
			n++
		}
	}
	return n, nil
}

func (m *memoryWithdrawals) Approve(_ context.Context, id, txHash, by string, at time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	w, ok := m.s.withdrawals[id]
	if !ok {
		return models.ErrWithdrawalNotFound
	}
	if w.Status != models.StatusPending {
		return fmt.Errorf("withdrawal %s: %w", id, models.ErrAlreadyProcessed)
	}
	w.Status = models.StatusApproved
	w.TxHash.String, w.TxHash.Valid = txHash, txHash != ""
	w.ProcessedBy.String, w.ProcessedBy.Valid = by, true
	w.ProcessedAt.Time, w.ProcessedAt.Valid = at, true
	return nil
}

type memoryRuns struct{ s *memoryState }

func (m *memoryRuns) Save(_ context.Context, run *models.DistributionRun) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	m.s.runs = append(m.s.runs, *run)
	return nil
}

func (m *memoryRuns) FindLast(_ context.Context) (*models.DistributionRun, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	if len(m.s.runs) == 0 {
		return nil, nil
	}
	last := m.s.runs[len(m.s.runs)-1]
	return &last, nil
}
