package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"minex/internal/models"
	"minex/internal/repositories"
)

type ReferralService struct {
	users repositories.UserStore
	// serializes upline changes so two concurrent assignments cannot close a cycle
	assignMu sync.Mutex
}

func NewReferralService(users repositories.UserStore) *ReferralService {
	return &ReferralService{
		users: users,
	}
}

// Ancestors walks the upline chain, nearest first, stopping at a root or after maxDepth hops.
func (s *ReferralService) Ancestors(ctx context.Context, userId string, maxDepth int) ([]models.Ancestor, error) {
	if maxDepth > models.MaxDepth || maxDepth < 1 {
		maxDepth = models.MaxDepth
	}

	user, err := s.users.FindById(ctx, userId)
	if err != nil {
		return nil, err
	}

	res := make([]models.Ancestor, 0, maxDepth)
	seen := map[string]struct{}{user.Id: {}}
	cur := user
	for depth := 1; depth <= maxDepth && cur.UplineId.Valid; depth++ {
		uplineId := cur.UplineId.String
		if _, ok := seen[uplineId]; ok {
			return res, fmt.Errorf("cycle at %s: %w", uplineId, models.ErrInvalidReferralGraph)
		}
		seen[uplineId] = struct{}{}

		next, err := s.users.FindById(ctx, uplineId)
		if err != nil {
			if errors.Is(err, models.ErrUserNotFound) {
				log.Warnf("Upline %s of %s not found, ancestor walk stopped", uplineId, cur.Id)
				break
			}
			return nil, err
		}
		res = append(res, models.Ancestor{User: next, Depth: depth})
		cur = next
	}
	return res, nil
}

// DescendantsAtDepth returns the users exactly depth hops below userId.
func (s *ReferralService) DescendantsAtDepth(ctx context.Context, userId string, depth int) ([]models.User, error) {
	if depth < 1 || depth > models.MaxDepth {
		return nil, fmt.Errorf("depth %d out of range 1..%d", depth, models.MaxDepth)
	}
	team, err := s.walkDown(ctx, userId, depth)
	if err != nil {
		return nil, err
	}
	return team[depth], nil
}

// Team returns the downline grouped by depth 1..6.
func (s *ReferralService) Team(ctx context.Context, userId string) (map[int][]models.User, error) {
	return s.walkDown(ctx, userId, models.MaxDepth)
}

func (s *ReferralService) walkDown(ctx context.Context, userId string, maxDepth int) (map[int][]models.User, error) {
	if _, err := s.users.FindById(ctx, userId); err != nil {
		return nil, err
	}

	team := make(map[int][]models.User, maxDepth)
	seen := map[string]struct{}{userId: {}}
	frontier := []string{userId}
	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		level := make([]models.User, 0)
		next := make([]string, 0)
		for _, id := range frontier {
			children, err := s.users.FindByUpline(ctx, id)
			if err != nil {
				return nil, err
			}
			for _, c := range children {
				if _, ok := seen[c.Id]; ok {
					continue
				}
				seen[c.Id] = struct{}{}
				level = append(level, c)
				next = append(next, c.Id)
			}
		}
		team[depth] = level
		frontier = next
	}
	return team, nil
}

// AssignUpline sets the referrer of userId. The upline must exist, differ from the user and must not
// have the user anywhere in its own ancestor chain.
func (s *ReferralService) AssignUpline(ctx context.Context, actor models.Actor, userId, uplineId string) error {
	if !actor.IsAdmin() && actor.UserId != userId {
		return models.ErrForbidden
	}

	s.assignMu.Lock()
	defer s.assignMu.Unlock()

	user, err := s.users.FindById(ctx, userId)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() && user.UplineId.Valid {
		return models.ErrForbidden
	}
	if err := s.checkUpline(ctx, userId, uplineId); err != nil {
		return err
	}

	if err := s.users.UpdateUpline(ctx, userId, uplineId); err != nil {
		return err
	}
	log.Infof("User %s upline set to %s", userId, uplineId)
	return nil
}

func (s *ReferralService) checkUpline(ctx context.Context, userId, uplineId string) error {
	if uplineId == "" || uplineId == userId {
		return fmt.Errorf("upline %q for %s: %w", uplineId, userId, models.ErrInvalidReferralGraph)
	}

	upline, err := s.users.FindById(ctx, uplineId)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return fmt.Errorf("upline %s missing: %w", uplineId, models.ErrInvalidReferralGraph)
		}
		return err
	}

	// full reachability test, not bounded by the commission depth
	seen := map[string]struct{}{}
	cur := upline
	for cur.UplineId.Valid {
		next := cur.UplineId.String
		if next == userId {
			return fmt.Errorf("%s is an ancestor of %s: %w", userId, uplineId, models.ErrInvalidReferralGraph)
		}
		if _, ok := seen[next]; ok {
			return fmt.Errorf("existing cycle at %s: %w", next, models.ErrInvalidReferralGraph)
		}
		seen[next] = struct{}{}

		cur, err = s.users.FindById(ctx, next)
		if err != nil {
			if errors.Is(err, models.ErrUserNotFound) {
				return nil
			}
			return err
		}
	}
	return nil
}
