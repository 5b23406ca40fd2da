package services

import (
	"testing"
)

func TestCommissionDirectReferrer(t *testing.T) {
	f := newFixture(t)
	f.pkg(2, "2", 30, "10")
	b := f.user("b", "")
	f.setLevel(b.Id, 2)
	c := f.user("c", b.Id)

	dep, summary := f.deposit(c.Id, "1000")

	assertMoney(t, "b commission", f.balance(b.Id).Commission, "100")
	assertMoney(t, "c cash", f.balance(c.Id).Cash, "1000")
	if summary.Credited != 1 {
		t.Fatalf("credited = %d, want 1", summary.Credited)
	}

	records, err := f.svc.Commissions.BySource(f.ctx, dep.Id)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	r := records[0]
	if r.Depth != 1 || r.ToUserId != b.Id || r.FromUserId != c.Id {
		t.Fatalf("unexpected record %+v", r)
	}
	assertMoney(t, "record amount", r.Amount, "100")
	assertMoney(t, "record percentage", r.Percentage, "10")
}

func TestCommissionReplayDoesNotDuplicate(t *testing.T) {
	f := newFixture(t)
	f.pkg(1, "1", 30, "10", "5", "2")
	users := f.chain(4)
	payer := users[3]

	dep, first := f.deposit(payer.Id, "200")
	if first.Credited != 3 {
		t.Fatalf("first credited = %d, want 3", first.Credited)
	}

	for i := 0; i < 3; i++ {
		_, summary, err := f.svc.Deposits.Approve(f.ctx, admin, dep.Id)
		if err != nil {
			t.Fatal(err)
		}
		if summary.Credited != 0 || summary.Duplicates != 3 {
			t.Fatalf("replay summary %+v", summary)
		}
	}
	summary, err := f.svc.Commissions.OnDepositApproved(f.ctx, dep.Id, payer.Id, money("200"))
	if err != nil {
		t.Fatal(err)
	}
	if summary.Duplicates != 3 {
		t.Fatalf("direct replay summary %+v", summary)
	}

	records, _ := f.svc.Commissions.BySource(f.ctx, dep.Id)
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}
	seen := map[int]bool{}
	for _, r := range records {
		if seen[r.Depth] {
			t.Fatalf("two records for depth %d", r.Depth)
		}
		seen[r.Depth] = true
	}
	assertMoney(t, "depth 1", f.balance(users[2].Id).Commission, "20")
	assertMoney(t, "depth 2", f.balance(users[1].Id).Commission, "10")
	assertMoney(t, "depth 3", f.balance(users[0].Id).Commission, "4")
	assertMoney(t, "payer cash", f.balance(payer.Id).Cash, "200")
}

func TestCommissionDepthSevenCutoff(t *testing.T) {
	f := newFixture(t)
	f.pkg(1, "1", 30, "10", "10", "10", "10", "10", "10")
	users := f.chain(8) // users[0] is seven hops above users[7]
	payer := users[7]

	_, summary := f.deposit(payer.Id, "100")
	if summary.Credited != 6 {
		t.Fatalf("credited = %d, want 6", summary.Credited)
	}
	for depth := 1; depth <= 6; depth++ {
		assertMoney(t, "ancestor commission", f.balance(users[7-depth].Id).Commission, "10")
	}
	assertMoney(t, "depth 7 commission", f.balance(users[0].Id).Commission, "0")

	history, _ := f.svc.Commissions.History(f.ctx, users[0].Id)
	if len(history) != 0 {
		t.Fatalf("depth 7 ancestor has %d records", len(history))
	}
}

func TestCommissionBoundAndZeroRates(t *testing.T) {
	f := newFixture(t)
	// depth 2 pays nothing, so no record may exist for it
	f.pkg(1, "1", 30, "7", "0", "3")
	users := f.chain(4)
	payer := users[3]

	dep, summary := f.deposit(payer.Id, "333.33")
	if summary.Credited != 2 || summary.Skipped != 1 {
		t.Fatalf("summary %+v", summary)
	}

	records, _ := f.svc.Commissions.BySource(f.ctx, dep.Id)
	total := money("0")
	for _, r := range records {
		if r.Depth == 2 {
			t.Fatal("record created for a zero rate")
		}
		total = total.Add(r.Amount)
	}
	// 7% + 3% of 333.33
	limit := money("333.33").Mul(money("0.10"))
	if total.GreaterThan(limit) {
		t.Fatalf("paid %s above bound %s", total, limit)
	}
	assertMoney(t, "summary total", summary.Total, total.String())
}

func TestCommissionUsesAncestorsOwnLevel(t *testing.T) {
	f := newFixture(t)
	f.pkg(1, "1", 30, "5")
	f.pkg(3, "1", 30, "15")
	high := f.user("high", "")
	f.setLevel(high.Id, 3)
	low := f.user("low", "")
	a := f.user("a", high.Id)
	b := f.user("b", low.Id)

	f.deposit(a.Id, "100")
	f.deposit(b.Id, "100")

	assertMoney(t, "level 3 upline", f.balance(high.Id).Commission, "15")
	assertMoney(t, "level 1 upline", f.balance(low.Id).Commission, "5")
}

func TestCommissionSkipsAncestorWithoutPackage(t *testing.T) {
	f := newFixture(t)
	f.pkg(1, "1", 30, "10", "10")
	top := f.user("top", "")
	f.setLevel(top.Id, 4) // no level 4 package
	mid := f.user("mid", top.Id)
	payer := f.user("payer", mid.Id)

	_, summary := f.deposit(payer.Id, "100")
	if summary.Credited != 1 || summary.Skipped != 1 {
		t.Fatalf("summary %+v", summary)
	}
	assertMoney(t, "mid", f.balance(mid.Id).Commission, "10")
	if got := f.balance(top.Id).Commission; !got.IsZero() {
		t.Fatalf("top commission = %s", got)
	}
	if _, err := f.svc.Commissions.History(f.ctx, mid.Id); err != nil {
		t.Fatal(err)
	}
}
