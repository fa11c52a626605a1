package engine_test

import (
	"context"
	"errors"
	"sync"
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

const pairingUnit = money.Money(100_000)

// captureNotifier records everything sent through it.
type captureNotifier struct {
	mu    sync.Mutex
	notes []engine.Notification
}

func (c *captureNotifier) Notify(n engine.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notes = append(c.notes, n)
}

func (c *captureNotifier) ofKind(kind string) []engine.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []engine.Notification
	for _, n := range c.notes {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

type dailyFixture struct {
	store    *memory.Store
	calc     *bonus.Calculator
	runner   *engine.DailyRunner
	notifier *captureNotifier
}

func newDailyFixture() *dailyFixture {
	store := memory.New()

	params := map[network.Tier]network.PackageParams{
		network.TierBronze: {Tier: network.TierBronze, MaxPairsPerDay: 10},
		network.TierSilver: {
			Tier:            network.TierSilver,
			MaxPairsPerDay:  20,
			LevelingAmount:  50_000,
			MatchingPercent: money.NewPercent(10),
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
		PairingUnit:  pairingUnit,
		ROPointValue: 1_000,
		Splits:       bonus.SplitPolicy{},
	}

	notifier := &captureNotifier{}
	return &dailyFixture{
		store:    store,
		calc:     calc,
		notifier: notifier,
		runner: &engine.DailyRunner{
			Runs:      store,
			Bonuses:   store,
			Calc:      calc,
			Directory: dir,
			Notifier:  notifier,
			Log:       zap.NewNop(),
		},
	}
}

func (f *dailyFixture) addMember(t *testing.T, id ledger.MemberID, tier network.Tier, status network.PackageStatus) {
	t.Helper()
	m := network.MemberProfile{
		ID:            id,
		Name:          string(id),
		Tier:          tier,
		PackageStatus: status,
		CareerLevel:   "associate",
		CreatedAt:     time.Now().UTC(),
	}
	if err := f.store.Save(context.Background(), m); err != nil {
		t.Fatalf("save member %s: %v", id, err)
	}
}

func (f *dailyFixture) credit(t *testing.T, id ledger.MemberID, leg ledger.Leg, points ledger.Points, date ledger.Date, ref string) {
	t.Helper()
	if _, err := f.calc.Ledger.Credit(context.Background(), id, leg, points, date, ledger.SourceRegistration, ref); err != nil {
		t.Fatalf("credit %s: %v", id, err)
	}
}

func (f *dailyFixture) pairDay(t *testing.T, id ledger.MemberID, pairs ledger.Points, date ledger.Date) {
	t.Helper()
	f.credit(t, id, ledger.LegLeft, pairs, date, string(id)+"-l")
	f.credit(t, id, ledger.LegRight, pairs, date, string(id)+"-r")
}

// =============================================================================
// DAILY RUN TESTS
// =============================================================================

func TestDailyRunner_ComputesPairingAcrossPopulation(t *testing.T) {
	// GIVEN: Two bronze members who gained 2 and 3 balanced pairs today
	// WHEN: The daily run executes
	// THEN: Pairing totals sum both awards and the run record completes

	f := newDailyFixture()
	day := ledger.NewDate(2026, time.June, 1)
	f.addMember(t, "M-1", network.TierBronze, network.PackageActive)
	f.addMember(t, "M-2", network.TierBronze, network.PackageActive)
	f.pairDay(t, "M-1", 2, day)
	f.pairDay(t, "M-2", 3, day)

	run, err := f.runner.Run(context.Background(), day)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if run.Status != engine.RunCompleted {
		t.Errorf("status = %s, want completed", run.Status)
	}
	if got := run.Totals.Total(bonus.KindPairing); got != pairingUnit.MulInt(5) {
		t.Errorf("pairing total = %d, want %d", got, pairingUnit.MulInt(5))
	}
	if run.Totals.MembersProcessed != 2 {
		t.Errorf("members processed = %d, want 2", run.Totals.MembersProcessed)
	}

	rows, err := f.store.ListByRun(context.Background(), run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Errorf("persisted bonuses = %d, want 2", len(rows))
	}
	for i := range rows {
		if rows[i].Status != bonus.StatusPending {
			t.Errorf("bonus %s status = %s, want pending", rows[i].ID, rows[i].Status)
		}
	}
}

func TestDailyRunner_SecondRunForDateRefused(t *testing.T) {
	// GIVEN: A completed run for the date
	// WHEN: Running again
	// THEN: ErrAlreadyRun, and no second batch of bonuses

	f := newDailyFixture()
	day := ledger.NewDate(2026, time.June, 1)
	f.addMember(t, "M-1", network.TierBronze, network.PackageActive)
	f.pairDay(t, "M-1", 2, day)

	if _, err := f.runner.Run(context.Background(), day); err != nil {
		t.Fatalf("first run: %v", err)
	}

	_, err := f.runner.Run(context.Background(), day)
	if !errors.Is(err, bonus.ErrAlreadyRun) {
		t.Fatalf("error = %v, want ErrAlreadyRun", err)
	}
	var already *bonus.AlreadyRunError
	if !errors.As(err, &already) || already.Key != day.String() {
		t.Errorf("error = %v, want AlreadyRunError for %s", err, day)
	}

	rows, err := f.store.ListByMember(context.Background(), "M-1", 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Errorf("bonuses after refused re-run = %d, want 1", len(rows))
	}
}

func TestDailyRunner_InactiveMembersExcluded(t *testing.T) {
	f := newDailyFixture()
	day := ledger.NewDate(2026, time.June, 1)
	f.addMember(t, "M-1", network.TierBronze, network.PackageInactive)
	f.pairDay(t, "M-1", 5, day)

	run, err := f.runner.Run(context.Background(), day)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if run.Totals.BonusCount != 0 || run.Totals.MembersProcessed != 0 {
		t.Errorf("inactive member produced work: %+v", run.Totals)
	}
}

func TestDailyRunner_MisconfiguredMemberSkippedNotFatal(t *testing.T) {
	// GIVEN: One member whose tier has no parameters and one healthy member
	// WHEN: The daily run executes
	// THEN: The run completes; the broken member is counted skipped

	f := newDailyFixture()
	day := ledger.NewDate(2026, time.June, 1)
	f.addMember(t, "M-1", network.Tier("platinum"), network.PackageActive)
	f.addMember(t, "M-2", network.TierBronze, network.PackageActive)
	f.pairDay(t, "M-2", 2, day)

	run, err := f.runner.Run(context.Background(), day)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if run.Status != engine.RunCompleted {
		t.Errorf("status = %s, want completed", run.Status)
	}
	if run.Totals.MembersSkipped != 1 {
		t.Errorf("members skipped = %d, want 1", run.Totals.MembersSkipped)
	}
	if run.Totals.MembersProcessed != 1 {
		t.Errorf("members processed = %d, want 1", run.Totals.MembersProcessed)
	}
	if got := run.Totals.Total(bonus.KindPairing); got != pairingUnit.MulInt(2) {
		t.Errorf("pairing total = %d, want %d", got, pairingUnit.MulInt(2))
	}
}

func TestDailyRunner_NotifiesPairingOnly(t *testing.T) {
	// GIVEN: A silver member whose pairing day also produces a leveling bonus
	// WHEN: The daily run executes
	// THEN: Exactly one pending-approval notification, for the pairing award

	f := newDailyFixture()
	day := ledger.NewDate(2026, time.June, 1)
	f.addMember(t, "M-1", network.TierSilver, network.PackageActive)
	f.pairDay(t, "M-1", 2, day)

	run, err := f.runner.Run(context.Background(), day)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if run.Totals.BonusCount != 2 {
		t.Fatalf("bonus count = %d, want pairing + leveling", run.Totals.BonusCount)
	}

	pending := f.notifier.ofKind(engine.NotifyBonusPending)
	if len(pending) != 1 {
		t.Fatalf("pending notifications = %d, want 1", len(pending))
	}
	if pending[0].MemberID != "M-1" || pending[0].Payload["kind"] != string(bonus.KindPairing) {
		t.Errorf("notification = %+v", pending[0])
	}
}

func TestDailyRunner_CareerUpgradeFromCumulativeTotals(t *testing.T) {
	// GIVEN: A member whose cumulative leg totals cross the manager threshold
	// WHEN: The daily run processes them
	// THEN: The level upgrades and an upgrade notification fires

	f := newDailyFixture()
	ctx := context.Background()
	day := ledger.NewDate(2026, time.June, 1)
	f.addMember(t, "M-1", network.TierBronze, network.PackageActive)
	if err := f.store.AddPairingPoints(ctx, "M-1", ledger.LegLeft, 6_000); err != nil {
		t.Fatal(err)
	}
	if err := f.store.AddPairingPoints(ctx, "M-1", ledger.LegRight, 5_500); err != nil {
		t.Fatal(err)
	}

	if _, err := f.runner.Run(ctx, day); err != nil {
		t.Fatalf("run: %v", err)
	}

	m, err := f.store.Member(ctx, "M-1")
	if err != nil {
		t.Fatal(err)
	}
	if m.CareerLevel != "manager" {
		t.Errorf("career level = %s, want manager", m.CareerLevel)
	}

	upgrades := f.notifier.ofKind(engine.NotifyCareerUpgrade)
	if len(upgrades) != 1 {
		t.Errorf("upgrade notifications = %d, want 1", len(upgrades))
	}
}

// =============================================================================
// RETRY TESTS
// =============================================================================

func TestDailyRunner_RetryOfCompletedRunRefused(t *testing.T) {
	f := newDailyFixture()
	day := ledger.NewDate(2026, time.June, 1)
	f.addMember(t, "M-1", network.TierBronze, network.PackageActive)

	if _, err := f.runner.Run(context.Background(), day); err != nil {
		t.Fatalf("run: %v", err)
	}

	_, err := f.runner.Retry(context.Background(), day)
	if !errors.Is(err, bonus.ErrAlreadyRun) {
		t.Errorf("error = %v, want ErrAlreadyRun", err)
	}
}

func TestDailyRunner_RetryWithoutPriorRunJustRuns(t *testing.T) {
	f := newDailyFixture()
	day := ledger.NewDate(2026, time.June, 1)
	f.addMember(t, "M-1", network.TierBronze, network.PackageActive)
	f.pairDay(t, "M-1", 2, day)

	run, err := f.runner.Retry(context.Background(), day)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if run.Status != engine.RunCompleted {
		t.Errorf("status = %s, want completed", run.Status)
	}
}

func TestDailyRunner_RetryDoesNotDuplicateEarlierAwards(t *testing.T) {
	// GIVEN: A failed run whose earlier attempt already wrote the pairing row
	// WHEN: The operator retries the date
	// THEN: The existing row is recognized by its award key, counted in the
	//       totals, and not re-notified or duplicated

	f := newDailyFixture()
	ctx := context.Background()
	day := ledger.NewDate(2026, time.June, 1)
	f.addMember(t, "M-1", network.TierBronze, network.PackageActive)
	f.pairDay(t, "M-1", 2, day)

	failed := engine.DailyRun{
		ID:        "run-interrupted",
		Date:      day,
		Status:    engine.RunFailed,
		Totals:    engine.NewRunTotals(),
		StartedAt: time.Now().UTC(),
		Error:     "storage fault",
	}
	if err := f.store.CreateDaily(ctx, failed); err != nil {
		t.Fatal(err)
	}
	earlier := &bonus.Bonus{
		ID:            "b-earlier",
		MemberID:      "M-1",
		Kind:          bonus.KindPairing,
		Amount:        pairingUnit.MulInt(2),
		EWalletAmount: money.NewPercent(20).Of(pairingUnit.MulInt(2)),
		CashAmount:    money.NewPercent(80).Of(pairingUnit.MulInt(2)),
		Status:        bonus.StatusPending,
		BonusDate:     day,
		Period:        ledger.PeriodOf(day),
		RunID:         "run-interrupted",
		CreatedAt:     time.Now().UTC(),
	}
	if err := f.store.Insert(ctx, earlier); err != nil {
		t.Fatal(err)
	}

	run, err := f.runner.Retry(ctx, day)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if run.Status != engine.RunCompleted {
		t.Errorf("status = %s, want completed", run.Status)
	}
	if got := run.Totals.Total(bonus.KindPairing); got != pairingUnit.MulInt(2) {
		t.Errorf("pairing total = %d, want %d", got, pairingUnit.MulInt(2))
	}

	rows, err := f.store.ListByRun(ctx, "run-interrupted")
	if err != nil {
		t.Fatal(err)
	}
	var pairingRows int
	for i := range rows {
		if rows[i].Kind == bonus.KindPairing && rows[i].MemberID == "M-1" {
			pairingRows++
		}
	}
	if pairingRows != 1 {
		t.Errorf("pairing rows after retry = %d, want 1", pairingRows)
	}
	if pending := f.notifier.ofKind(engine.NotifyBonusPending); len(pending) != 0 {
		t.Errorf("duplicate award re-notified: %+v", pending)
	}
}
