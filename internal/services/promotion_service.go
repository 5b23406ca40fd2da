package services

import (
	"context"
	"errors"
	"strconv"

	"minex/internal/models"
	"minex/internal/monitoring"
	"minex/internal/repositories"
)

type PromotionService struct {
	users     repositories.UserStore
	referrals *ReferralService
	packages  *PackageService
}

func NewPromotionService(users repositories.UserStore, referrals *ReferralService, packages *PackageService) *PromotionService {
	return &PromotionService{
		users:     users,
		referrals: referrals,
		packages:  packages,
	}
}

// Evaluate advances the user by one level when the next level's requirements are met.
func (s *PromotionService) Evaluate(ctx context.Context, userId string) (bool, int, error) {
	user, err := s.users.FindById(ctx, userId)
	if err != nil {
		return false, 0, err
	}

	next := user.Level + 1
	req, err := s.packages.RequirementsFor(ctx, next)
	if err != nil {
		if errors.Is(err, models.ErrPackageNotFound) {
			// already at the top level
			return false, user.Level, nil
		}
		return false, user.Level, err
	}

	ok, err := s.qualifies(ctx, user, req)
	if err != nil || !ok {
		return false, user.Level, err
	}

	swapped, err := s.users.UpdateLevel(ctx, user.Id, user.Level, next)
	if err != nil {
		return false, user.Level, err
	}
	if !swapped {
		// promoted concurrently
		cur, err := s.users.FindById(ctx, user.Id)
		if err != nil {
			return false, user.Level, err
		}
		return false, cur.Level, nil
	}

	monitoring.PromotionsTotal.WithLabelValues(strconv.Itoa(next)).Inc()
	log.Infof("User %s promoted to level %d", user.Id, next)
	return true, next, nil
}

func (s *PromotionService) qualifies(ctx context.Context, user *models.User, req *models.Requirements) (bool, error) {
	if user.TotalInvestment.LessThan(req.RequiredInvestment) {
		return false, nil
	}

	needTeam := false
	for _, n := range req.DownlineRequired {
		if n > 0 {
			needTeam = true
			break
		}
	}
	if !needTeam {
		return true, nil
	}

	team, err := s.referrals.Team(ctx, user.Id)
	if err != nil {
		return false, err
	}
	for i, required := range req.DownlineRequired {
		if required == 0 {
			continue
		}
		qualifying := 0
		for _, member := range team[i+1] {
			if member.TotalInvestment.IsPositive() {
				qualifying++
			}
		}
		if qualifying < required {
			return false, nil
		}
	}
	return true, nil
}

// EvaluateChain evaluates the user and every ancestor whose downline counts the user could change.
// Per user failures are logged and skipped; storage failures stop the chain.
func (s *PromotionService) EvaluateChain(ctx context.Context, userId string) (int, error) {
	targets := []string{userId}
	ancestors, err := s.referrals.Ancestors(ctx, userId, models.MaxDepth)
	if err != nil && !models.IsEntityError(err) {
		return 0, err
	}
	for _, a := range ancestors {
		targets = append(targets, a.User.Id)
	}

	promoted := 0
	for _, id := range targets {
		ok, _, err := s.Evaluate(ctx, id)
		if err != nil {
			if !models.IsEntityError(err) {
				return promoted, err
			}
			log.Warnf("Promotion check for %s skipped: %v", id, err)
			continue
		}
		if ok {
			promoted++
		}
	}
	return promoted, nil
}
