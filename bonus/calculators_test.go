package bonus_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vertex/comp-engine/bonus"
	"github.com/vertex/comp-engine/ledger"
	"github.com/vertex/comp-engine/money"
	"github.com/vertex/comp-engine/network"
	"github.com/vertex/comp-engine/store/memory"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

const pairingUnit = money.Money(100_000)

func testParams() map[network.Tier]network.PackageParams {
	return map[network.Tier]network.PackageParams{
		network.TierBronze: {
			Tier:           network.TierBronze,
			MaxPairsPerDay: 10,
		},
		network.TierSilver: {
			Tier:            network.TierSilver,
			MaxPairsPerDay:  20,
			LevelingAmount:  50_000,
			MatchingPercent: money.NewPercent(10),
		},
		network.TierGold: {
			Tier:            network.TierGold,
			MaxPairsPerDay:  30,
			LevelingAmount:  100_000,
			MatchingPercent: money.NewPercent(15),
		},
	}
}

func testMatrix() network.SponsorMatrix {
	return network.SponsorMatrix{
		network.TierBronze: {network.TierBronze: 20_000, network.TierSilver: 20_000, network.TierGold: 20_000},
		network.TierSilver: {network.TierBronze: 20_000, network.TierSilver: 50_000, network.TierGold: 50_000},
		network.TierGold:   {network.TierBronze: 20_000, network.TierSilver: 50_000, network.TierGold: 100_000},
	}
}

func testLadder() network.Ladder {
	return network.NewLadder([]network.CareerLevel{
		{Name: "associate", RequiredPP: 0},
		{Name: "manager", RequiredPP: 5_000, SharePercent: money.NewPercent(1)},
	})
}

// newTestCalc wires a calculator over fresh in-memory state.
func newTestCalc() (*bonus.Calculator, *memory.Store) {
	store := memory.New()
	dir := network.NewDirectory(testParams(), testMatrix(), testLadder(), store)
	calc := &bonus.Calculator{
		Directory:    dir,
		Ledger:       ledger.New(store),
		PairingUnit:  pairingUnit,
		ROPointValue: 1_000,
		Splits:       bonus.SplitPolicy{},
	}
	return calc, store
}

func saveMember(t *testing.T, store *memory.Store, id ledger.MemberID, tier network.Tier, sponsor ledger.MemberID, pos ledger.Leg) *network.MemberProfile {
	t.Helper()
	m := network.MemberProfile{
		ID:            id,
		Name:          string(id),
		Tier:          tier,
		PackageStatus: network.PackageActive,
		SponsorID:     sponsor,
		Position:      pos,
		CareerLevel:   "associate",
		CreatedAt:     time.Now().UTC(),
	}
	if err := store.Save(context.Background(), m); err != nil {
		t.Fatalf("save member %s: %v", id, err)
	}
	return &m
}

func creditBoth(t *testing.T, calc *bonus.Calculator, member ledger.MemberID, left, right ledger.Points, date ledger.Date) {
	t.Helper()
	ctx := context.Background()
	if left > 0 {
		if _, err := calc.Ledger.Credit(ctx, member, ledger.LegLeft, left, date, ledger.SourceRegistration, string(member)+"-l-"+date.String()); err != nil {
			t.Fatal(err)
		}
	}
	if right > 0 {
		if _, err := calc.Ledger.Credit(ctx, member, ledger.LegRight, right, date, ledger.SourceRegistration, string(member)+"-r-"+date.String()); err != nil {
			t.Fatal(err)
		}
	}
}

func assertSplitConsistent(t *testing.T, b *bonus.Bonus) {
	t.Helper()
	if !b.Consistent() {
		t.Errorf("split invariant broken: %d != %d + %d", b.Amount, b.EWalletAmount, b.CashAmount)
	}
}

// =============================================================================
// PAIRING TESTS
// =============================================================================

func TestPairing_PaysPerMatchedPair(t *testing.T) {
	// GIVEN: A silver member who gained 2 left and 3 right today
	// WHEN: Computing the pairing bonus
	// THEN: 2 pairs at the global unit, split 20/80

	calc, store := newTestCalc()
	day := ledger.NewDate(2026, time.June, 1)
	m := saveMember(t, store, "M-1", network.TierSilver, "", ledger.LegLeft)
	creditBoth(t, calc, "M-1", 2, 3, day)

	b, err := calc.Pairing(context.Background(), m, day, "run-1")
	if err != nil {
		t.Fatalf("pairing: %v", err)
	}
	if b == nil {
		t.Fatal("expected a bonus, got nil")
	}
	if b.Kind != bonus.KindPairing || b.Status != bonus.StatusPending {
		t.Errorf("kind/status = %s/%s, want pairing/pending", b.Kind, b.Status)
	}
	if b.Amount != 200_000 {
		t.Errorf("gross = %d, want 200000", b.Amount)
	}
	if b.EWalletAmount != 40_000 || b.CashAmount != 160_000 {
		t.Errorf("split = %d/%d, want 40000/160000", b.EWalletAmount, b.CashAmount)
	}
	if b.RunID != "run-1" || !b.BonusDate.Equal(day) {
		t.Errorf("run/date = %s/%s", b.RunID, b.BonusDate)
	}
	assertSplitConsistent(t, b)
}

func TestPairing_NoPairsNoRecord(t *testing.T) {
	// GIVEN: Volume on one leg only
	// WHEN: Computing the pairing bonus
	// THEN: No record is produced

	calc, store := newTestCalc()
	day := ledger.NewDate(2026, time.June, 1)
	m := saveMember(t, store, "M-1", network.TierSilver, "", ledger.LegLeft)
	creditBoth(t, calc, "M-1", 5, 0, day)

	b, err := calc.Pairing(context.Background(), m, day, "run-1")
	if err != nil {
		t.Fatalf("pairing: %v", err)
	}
	if b != nil {
		t.Errorf("expected nil bonus for zero pairs, got %+v", b)
	}
}

func TestPairing_CappedByPackage(t *testing.T) {
	// GIVEN: A bronze member (cap 10) with 15 points gained on each leg
	// WHEN: Computing the pairing bonus
	// THEN: Only 10 pairs pay

	calc, store := newTestCalc()
	day := ledger.NewDate(2026, time.June, 1)
	m := saveMember(t, store, "M-1", network.TierBronze, "", ledger.LegLeft)
	creditBoth(t, calc, "M-1", 15, 15, day)

	b, err := calc.Pairing(context.Background(), m, day, "run-1")
	if err != nil {
		t.Fatalf("pairing: %v", err)
	}
	if b == nil {
		t.Fatal("expected a bonus")
	}
	if b.Amount != pairingUnit.MulInt(10) {
		t.Errorf("gross = %d, want %d", b.Amount, pairingUnit.MulInt(10))
	}
}

func TestPairing_MissingTierConfigurationIsSkip(t *testing.T) {
	calc, store := newTestCalc()
	m := saveMember(t, store, "M-1", network.Tier("platinum"), "", ledger.LegLeft)

	_, err := calc.Pairing(context.Background(), m, ledger.NewDate(2026, time.June, 1), "run-1")
	if !errors.Is(err, network.ErrConfigurationMissing) {
		t.Errorf("error = %v, want ErrConfigurationMissing", err)
	}
	if !bonus.IsSkip(err) {
		t.Error("configuration error must classify as a skip")
	}
}

// =============================================================================
// MATCHING TESTS
// =============================================================================

func TestMatching_SumsActiveDownlinesOnly(t *testing.T) {
	// GIVEN: A silver upline with two active downlines pairing today and one
	//        inactive downline that also paired
	// WHEN: Computing the matching bonus
	// THEN: 10% of the two active downlines' pairing gross

	calc, store := newTestCalc()
	ctx := context.Background()
	day := ledger.NewDate(2026, time.June, 1)

	up := saveMember(t, store, "UP", network.TierSilver, "", ledger.LegLeft)
	saveMember(t, store, "D-1", network.TierBronze, "UP", ledger.LegLeft)
	saveMember(t, store, "D-2", network.TierBronze, "UP", ledger.LegRight)
	inactive := saveMember(t, store, "D-3", network.TierBronze, "UP", ledger.LegLeft)
	inactive.PackageStatus = network.PackageInactive
	if err := store.Save(ctx, *inactive); err != nil {
		t.Fatal(err)
	}

	creditBoth(t, calc, "D-1", 2, 2, day) // 2 pairs -> 200k
	creditBoth(t, calc, "D-2", 3, 3, day) // 3 pairs -> 300k
	creditBoth(t, calc, "D-3", 5, 5, day) // inactive, must not count

	b, err := calc.Matching(ctx, up, day, "run-1")
	if err != nil {
		t.Fatalf("matching: %v", err)
	}
	if b == nil {
		t.Fatal("expected a bonus")
	}
	if b.Amount != 50_000 { // 10% of 500k
		t.Errorf("gross = %d, want 50000", b.Amount)
	}
	if b.Kind != bonus.KindMatching {
		t.Errorf("kind = %s, want matching", b.Kind)
	}
	assertSplitConsistent(t, b)
}

func TestMatching_ZeroPercentTierSkips(t *testing.T) {
	// Bronze carries no matching percentage.
	calc, store := newTestCalc()
	day := ledger.NewDate(2026, time.June, 1)

	up := saveMember(t, store, "UP", network.TierBronze, "", ledger.LegLeft)
	saveMember(t, store, "D-1", network.TierBronze, "UP", ledger.LegLeft)
	creditBoth(t, calc, "D-1", 2, 2, day)

	b, err := calc.Matching(context.Background(), up, day, "run-1")
	if err != nil {
		t.Fatalf("matching: %v", err)
	}
	if b != nil {
		t.Errorf("expected nil for zero matching percent, got %+v", b)
	}
}

func TestMatching_IdleDownlinesYieldNothing(t *testing.T) {
	calc, store := newTestCalc()
	up := saveMember(t, store, "UP", network.TierGold, "", ledger.LegLeft)
	saveMember(t, store, "D-1", network.TierBronze, "UP", ledger.LegLeft)

	b, err := calc.Matching(context.Background(), up, ledger.NewDate(2026, time.June, 1), "run-1")
	if err != nil {
		t.Fatalf("matching: %v", err)
	}
	if b != nil {
		t.Errorf("expected nil when no downline paired, got %+v", b)
	}
}

// =============================================================================
// LEVELING TESTS
// =============================================================================

func TestLeveling_GatedOnSameDayPairing(t *testing.T) {
	// GIVEN: A gold member (leveling 100k) with and without pairs today
	// WHEN: Computing the leveling bonus
	// THEN: It pays only on a pairing day

	calc, store := newTestCalc()
	ctx := context.Background()
	day := ledger.NewDate(2026, time.June, 1)
	m := saveMember(t, store, "M-1", network.TierGold, "", ledger.LegLeft)

	b, err := calc.Leveling(ctx, m, day, "run-1")
	if err != nil {
		t.Fatalf("leveling: %v", err)
	}
	if b != nil {
		t.Fatalf("expected nil without pairing activity, got %+v", b)
	}

	creditBoth(t, calc, "M-1", 1, 1, day)

	b, err = calc.Leveling(ctx, m, day, "run-1")
	if err != nil {
		t.Fatalf("leveling: %v", err)
	}
	if b == nil {
		t.Fatal("expected a bonus on a pairing day")
	}
	if b.Amount != 100_000 {
		t.Errorf("gross = %d, want 100000", b.Amount)
	}
	if b.Kind != bonus.KindLeveling {
		t.Errorf("kind = %s, want leveling", b.Kind)
	}
	assertSplitConsistent(t, b)
}

func TestLeveling_ZeroAmountTierSkips(t *testing.T) {
	calc, store := newTestCalc()
	day := ledger.NewDate(2026, time.June, 1)
	m := saveMember(t, store, "M-1", network.TierBronze, "", ledger.LegLeft)
	creditBoth(t, calc, "M-1", 3, 3, day)

	b, err := calc.Leveling(context.Background(), m, day, "run-1")
	if err != nil {
		t.Fatalf("leveling: %v", err)
	}
	if b != nil {
		t.Errorf("expected nil for a tier without a leveling amount, got %+v", b)
	}
}

// =============================================================================
// SPONSOR TESTS
// =============================================================================

func TestSponsor_MatrixLookup(t *testing.T) {
	// GIVEN: A gold sponsor recruiting a silver member
	// WHEN: Computing the sponsor bonus
	// THEN: The matrix cell pays, awarded to the sponsor with no run id

	calc, store := newTestCalc()
	sponsor := saveMember(t, store, "S-1", network.TierGold, "", ledger.LegLeft)
	joiner := saveMember(t, store, "J-1", network.TierSilver, "S-1", ledger.LegLeft)

	b, err := calc.Sponsor(context.Background(), sponsor, joiner)
	if err != nil {
		t.Fatalf("sponsor: %v", err)
	}
	if b == nil {
		t.Fatal("expected a bonus")
	}
	if b.Amount != 50_000 {
		t.Errorf("gross = %d, want 50000", b.Amount)
	}
	if b.MemberID != "S-1" {
		t.Errorf("member = %s, want the sponsor", b.MemberID)
	}
	if b.RunID != "" {
		t.Errorf("run id = %q, want empty for event-triggered award", b.RunID)
	}
	assertSplitConsistent(t, b)
}

func TestSponsor_ZeroCellNoRecord(t *testing.T) {
	calc, store := newTestCalc()
	sponsor := saveMember(t, store, "S-1", network.Tier("platinum"), "", ledger.LegLeft)
	joiner := saveMember(t, store, "J-1", network.TierBronze, "S-1", ledger.LegLeft)

	b, err := calc.Sponsor(context.Background(), sponsor, joiner)
	if err != nil {
		t.Fatalf("sponsor: %v", err)
	}
	if b != nil {
		t.Errorf("expected nil for an empty matrix cell, got %+v", b)
	}
}
