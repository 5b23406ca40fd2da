package services

import (
	"errors"
	"testing"

	"minex/internal/models"
)

func TestAncestorsStopAtSixHops(t *testing.T) {
	f := newFixture(t)
	users := f.chain(9)
	bottom := users[8]

	ancestors, err := f.svc.Referrals.Ancestors(f.ctx, bottom.Id, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(ancestors) != models.MaxDepth {
		t.Fatalf("ancestors = %d, want %d", len(ancestors), models.MaxDepth)
	}
	for i, a := range ancestors {
		if a.Depth != i+1 {
			t.Fatalf("ancestor %d has depth %d", i, a.Depth)
		}
		if want := users[7-i].Id; a.User.Id != want {
			t.Fatalf("depth %d ancestor = %s, want %s", a.Depth, a.User.Id, want)
		}
	}

	root, err := f.svc.Referrals.Ancestors(f.ctx, users[0].Id, models.MaxDepth)
	if err != nil || len(root) != 0 {
		t.Fatalf("root ancestors = %v, err %v", root, err)
	}
}

func TestDescendantsAtDepth(t *testing.T) {
	f := newFixture(t)
	root := f.user("root", "")
	a := f.user("a", root.Id)
	b := f.user("b", root.Id)
	f.user("a1", a.Id)
	f.user("a2", a.Id)
	f.user("b1", b.Id)

	direct, err := f.svc.Referrals.DescendantsAtDepth(f.ctx, root.Id, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(direct) != 2 {
		t.Fatalf("depth 1 = %d, want 2", len(direct))
	}
	second, _ := f.svc.Referrals.DescendantsAtDepth(f.ctx, root.Id, 2)
	if len(second) != 3 {
		t.Fatalf("depth 2 = %d, want 3", len(second))
	}
	third, _ := f.svc.Referrals.DescendantsAtDepth(f.ctx, root.Id, 3)
	if len(third) != 0 {
		t.Fatalf("depth 3 = %d, want 0", len(third))
	}
	if _, err := f.svc.Referrals.DescendantsAtDepth(f.ctx, root.Id, 7); err == nil {
		t.Fatal("depth 7 accepted")
	}
}

func TestAssignUplineRejectsCycles(t *testing.T) {
	f := newFixture(t)
	users := f.chain(3) // a <- b <- c
	a, c := users[0], users[2]

	tests := []struct {
		name   string
		user   string
		upline string
	}{
		{"self", a.Id, a.Id},
		{"descendant", a.Id, c.Id},
		{"missing", a.Id, "nobody"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.svc.Referrals.AssignUpline(f.ctx, admin, tt.user, tt.upline)
			if !errors.Is(err, models.ErrInvalidReferralGraph) {
				t.Fatalf("err = %v, want ErrInvalidReferralGraph", err)
			}
		})
	}

	other := f.user("other", "")
	if err := f.svc.Referrals.AssignUpline(f.ctx, admin, a.Id, other.Id); err != nil {
		t.Fatalf("valid assignment: %v", err)
	}
	ancestors, _ := f.svc.Referrals.Ancestors(f.ctx, c.Id, models.MaxDepth)
	if len(ancestors) != 3 || ancestors[2].User.Id != other.Id {
		t.Fatalf("ancestors after move = %+v", ancestors)
	}
}

func TestAssignUplineRequiresOwnerOrAdmin(t *testing.T) {
	f := newFixture(t)
	a := f.user("a", "")
	b := f.user("b", "")
	c := f.user("c", "")

	stranger := models.Actor{UserId: c.Id, Role: models.RoleUser}
	if err := f.svc.Referrals.AssignUpline(f.ctx, stranger, a.Id, b.Id); !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}

	self := models.Actor{UserId: a.Id, Role: models.RoleUser}
	if err := f.svc.Referrals.AssignUpline(f.ctx, self, a.Id, b.Id); err != nil {
		t.Fatalf("first self assignment: %v", err)
	}
	if err := f.svc.Referrals.AssignUpline(f.ctx, self, a.Id, c.Id); !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("reassignment err = %v, want ErrForbidden", err)
	}
}

func TestRegisterWithMissingUpline(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Users.Register(f.ctx, "orphan", "ghost", models.RoleUser); !errors.Is(err, models.ErrInvalidReferralGraph) {
		t.Fatalf("err = %v, want ErrInvalidReferralGraph", err)
	}
}
