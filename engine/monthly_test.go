package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vertex/comp-engine/bonus"
	"github.com/vertex/comp-engine/engine"
	"github.com/vertex/comp-engine/ledger"
	"github.com/vertex/comp-engine/money"
	"github.com/vertex/comp-engine/network"
	"github.com/vertex/comp-engine/store/memory"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type monthlyFixture struct {
	store  *memory.Store
	calc   *bonus.Calculator
	runner *engine.MonthlyRunner
}

func newMonthlyFixture() *monthlyFixture {
	store := memory.New()

	params := map[network.Tier]network.PackageParams{
		network.TierBronze: {Tier: network.TierBronze, MaxPairsPerDay: 10},
		network.TierSilver: {
			Tier:               network.TierSilver,
			MaxPairsPerDay:     20,
			RepeatOrderPercent: money.NewPercent(5),
		},
	}
	ladder := network.NewLadder([]network.CareerLevel{
		{Name: "associate", RequiredPP: 0},
		{Name: "manager", RequiredPP: 5_000, SharePercent: money.NewPercent(1)},
	})
	dir := network.NewDirectory(params, network.SponsorMatrix{}, ladder, store)

	calc := &bonus.Calculator{
		Directory:    dir,
		Ledger:       ledger.New(store),
		PairingUnit:  100_000,
		ROPointValue: 1_000,
		Splits:       bonus.SplitPolicy{},
	}

	return &monthlyFixture{
		store: store,
		calc:  calc,
		runner: &engine.MonthlyRunner{
			Runs:      store,
			Bonuses:   store,
			Calc:      calc,
			Directory: dir,
			Log:       zap.NewNop(),
		},
	}
}

func (f *monthlyFixture) addMember(t *testing.T, id ledger.MemberID, tier network.Tier, level string) {
	t.Helper()
	m := network.MemberProfile{
		ID:            id,
		Name:          string(id),
		Tier:          tier,
		PackageStatus: network.PackageActive,
		CareerLevel:   level,
		CreatedAt:     time.Now().UTC(),
	}
	if err := f.store.Save(context.Background(), m); err != nil {
		t.Fatalf("save member %s: %v", id, err)
	}
}

func (f *monthlyFixture) repeatOrderVolume(t *testing.T, id ledger.MemberID, points ledger.Points, date ledger.Date, ref string) {
	t.Helper()
	if _, err := f.calc.Ledger.Credit(context.Background(), id, ledger.LegLeft, points, date, ledger.SourceRepeatOrder, ref); err != nil {
		t.Fatalf("repeat-order credit %s: %v", id, err)
	}
}

// closedPeriod returns a period in the settled past.
func closedPeriod(t *testing.T) ledger.Period {
	t.Helper()
	p, err := ledger.NewPeriod(6, 2024)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

// =============================================================================
// PERIOD CLOSURE TESTS
// =============================================================================

func TestMonthlyRunner_RejectsUnclosedPeriod(t *testing.T) {
	// GIVEN: The period containing today
	// WHEN: Either monthly runner is invoked for it
	// THEN: ErrInvalidPeriod before any state is touched

	f := newMonthlyFixture()
	current := ledger.PeriodOf(ledger.Today())

	if _, err := f.runner.RunRepeatOrder(context.Background(), current); !errors.Is(err, ledger.ErrInvalidPeriod) {
		t.Errorf("repeat order error = %v, want ErrInvalidPeriod", err)
	}
	if _, err := f.runner.RunGlobalSharing(context.Background(), current); !errors.Is(err, ledger.ErrInvalidPeriod) {
		t.Errorf("global sharing error = %v, want ErrInvalidPeriod", err)
	}

	runs, err := f.store.ListMonthly(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 0 {
		t.Errorf("rejected invocations left %d run records", len(runs))
	}
}

// =============================================================================
// REPEAT ORDER TESTS
// =============================================================================

func TestMonthlyRunner_RepeatOrderPaysOnOwnVolume(t *testing.T) {
	// GIVEN: A silver member (5% RO) with 100 points of June repeat orders
	//        and a bronze member (no RO percent) with volume too
	// WHEN: The repeat-order run settles June
	// THEN: Only the silver member is paid, 5% of 100 * point value

	f := newMonthlyFixture()
	ctx := context.Background()
	period := closedPeriod(t)

	f.addMember(t, "M-1", network.TierSilver, "associate")
	f.addMember(t, "M-2", network.TierBronze, "associate")
	f.repeatOrderVolume(t, "M-1", 60, ledger.NewDate(2024, time.June, 5), "ro-1")
	f.repeatOrderVolume(t, "M-1", 40, ledger.NewDate(2024, time.June, 20), "ro-2")
	f.repeatOrderVolume(t, "M-2", 500, ledger.NewDate(2024, time.June, 6), "ro-3")

	run, err := f.runner.RunRepeatOrder(ctx, period)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if run.Status != engine.RunCompleted {
		t.Errorf("status = %s, want completed", run.Status)
	}

	// 100 points * 1000 point value = 100_000 revenue; 5% = 5_000.
	if got := run.Totals.Total(bonus.KindRepeatOrder); got != 5_000 {
		t.Errorf("repeat-order total = %d, want 5000", got)
	}
	if run.Totals.BonusCount != 1 {
		t.Errorf("bonus count = %d, want 1", run.Totals.BonusCount)
	}

	rows, err := f.store.ListByPeriod(ctx, period, bonus.KindRepeatOrder)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].MemberID != "M-1" {
		t.Fatalf("period rows = %+v, want one for M-1", rows)
	}
	if !rows[0].BonusDate.Equal(period.Start()) {
		t.Errorf("bonus date = %s, want first day of period", rows[0].BonusDate)
	}
}

func TestMonthlyRunner_SamePeriodAndKindRefused(t *testing.T) {
	// GIVEN: A completed repeat-order run for June
	// WHEN: Running repeat order again, then global sharing once
	// THEN: The re-run is refused; the other kind runs independently

	f := newMonthlyFixture()
	ctx := context.Background()
	period := closedPeriod(t)
	f.addMember(t, "M-1", network.TierSilver, "associate")

	if _, err := f.runner.RunRepeatOrder(ctx, period); err != nil {
		t.Fatalf("first run: %v", err)
	}

	_, err := f.runner.RunRepeatOrder(ctx, period)
	if !errors.Is(err, bonus.ErrAlreadyRun) {
		t.Errorf("re-run error = %v, want ErrAlreadyRun", err)
	}

	if _, err := f.runner.RunGlobalSharing(ctx, period); err != nil {
		t.Errorf("global sharing for the same period should be independent, got %v", err)
	}
}

// =============================================================================
// GLOBAL SHARING TESTS
// =============================================================================

func TestMonthlyRunner_GlobalSharingSplitsLevelPoolPerHead(t *testing.T) {
	// GIVEN: 1,000,000 of national RO revenue, two managers (1% level) and
	//        one associate (no share)
	// WHEN: The global-sharing run settles June
	// THEN: Each manager gets 5,000; the associate gets nothing

	f := newMonthlyFixture()
	ctx := context.Background()
	period := closedPeriod(t)

	f.addMember(t, "MGR-1", network.TierBronze, "manager")
	f.addMember(t, "MGR-2", network.TierBronze, "manager")
	f.addMember(t, "ASSOC", network.TierBronze, "associate")
	f.repeatOrderVolume(t, "ASSOC", 1000, ledger.NewDate(2024, time.June, 10), "ro-pool")

	run, err := f.runner.RunGlobalSharing(ctx, period)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// Pool = 1000 * 1000 = 1_000_000; 1% level pool = 10_000; 2 heads.
	rows, err := f.store.ListByPeriod(ctx, period, bonus.KindGlobalSharing)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("share rows = %d, want 2", len(rows))
	}
	for i := range rows {
		if rows[i].Amount != 5_000 {
			t.Errorf("share for %s = %d, want 5000", rows[i].MemberID, rows[i].Amount)
		}
		if rows[i].MemberID == "ASSOC" {
			t.Error("associate must not receive a share")
		}
	}
	if got := run.Totals.Total(bonus.KindGlobalSharing); got != 10_000 {
		t.Errorf("global-sharing total = %d, want 10000", got)
	}
}

func TestMonthlyRunner_GlobalSharingZeroPoolNoAwards(t *testing.T) {
	f := newMonthlyFixture()
	ctx := context.Background()
	period := closedPeriod(t)
	f.addMember(t, "MGR-1", network.TierBronze, "manager")

	run, err := f.runner.RunGlobalSharing(ctx, period)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if run.Totals.BonusCount != 0 {
		t.Errorf("bonus count = %d, want 0 on an empty pool", run.Totals.BonusCount)
	}
	if run.Status != engine.RunCompleted {
		t.Errorf("status = %s, want completed", run.Status)
	}
}
