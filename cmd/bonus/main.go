/*
main.go - Operator CLI for settlement runs and bonus decisions

PURPOSE:
  Command-line access to the batch runners and the approval workflow, for
  operators and cron jobs. Shares the exact wiring the HTTP server uses.

COMMANDS:
  bonus run-daily [DATE]             Settle a day (defaults to yesterday)
  bonus run-monthly MONTH YEAR       Settle a closed month
  bonus approve BONUS_ID             Approve and credit the e-wallet split
  bonus reject BONUS_ID              Reject a pending bonus
  bonus paid BONUS_ID                Mark an approved bonus paid out
  bonus runs                         Show recent run history

EXIT CODES:
  0  success
  1  failure (run failed, storage error, bad input)
  2  idempotency guard (already settled / already processed)

EXAMPLES:
  bonus run-daily 2026-08-31
  bonus run-daily 2026-08-31 --retry
  bonus run-monthly 8 2026 --kind repeat_order
  bonus approve 7f1c... --admin admin-1
  bonus reject 7f1c... --admin admin-1 --reason "volume dispute"

SEE ALSO:
  - engine/runner.go: Daily settlement
  - wallet/settlement.go: Approval state machine
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vertex/comp-engine/bonus"
	"github.com/vertex/comp-engine/config"
	"github.com/vertex/comp-engine/engine"
	"github.com/vertex/comp-engine/ledger"
	"github.com/vertex/comp-engine/network"
	"github.com/vertex/comp-engine/store/sqlite"
	"github.com/vertex/comp-engine/wallet"
)

const exitGuard = 2

var (
	dbPath  string
	cfgPath string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "comp.db", "SQLite database path")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "TOML config path")

	rootCmd.AddCommand(runDailyCmd)
	rootCmd.AddCommand(runMonthlyCmd)
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(rejectCmd)
	rootCmd.AddCommand(paidCmd)
	rootCmd.AddCommand(runsCmd)

	runDailyCmd.Flags().Bool("retry", false, "retry a failed or interrupted run")
	runMonthlyCmd.Flags().String("kind", "repeat_order", "repeat_order or global_sharing")
	for _, c := range []*cobra.Command{approveCmd, rejectCmd, paidCmd} {
		c.Flags().String("admin", "", "deciding admin id (required)")
	}
	rejectCmd.Flags().String("reason", "", "rejection reason")
}

var rootCmd = &cobra.Command{
	Use:   "bonus",
	Short: "Settlement runs and bonus decisions for the compensation engine",
	Long: `Operator CLI for the compensation engine. Triggers daily and monthly
settlement runs and drives the bonus approval workflow against the same
database the server uses.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, bonus.ErrAlreadyRun) || errors.Is(err, bonus.ErrAlreadyProcessed) {
			os.Exit(exitGuard)
		}
		os.Exit(1)
	}
}

// =============================================================================
// WIRING
// =============================================================================

// deps is the shared dependency graph, identical to the server's.
type deps struct {
	store      *sqlite.Store
	daily      *engine.DailyRunner
	monthly    *engine.MonthlyRunner
	settlement *wallet.SettlementService
}

func buildDeps() (*deps, error) {
	log, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	store, err := sqlite.New(dbPath)
	if err != nil {
		return nil, err
	}

	led := ledger.New(store)
	dir := network.NewDirectory(cfg.PackageParams(), cfg.SponsorMatrix(), cfg.Ladder(), store)
	calc := cfg.Calculator(dir, led)

	return &deps{
		store: store,
		daily: &engine.DailyRunner{
			Runs:      store,
			Bonuses:   store,
			Calc:      calc,
			Directory: dir,
			Notifier:  engine.NopNotifier{},
			ChunkSize: cfg.Engine.ChunkSize,
			Log:       log,
		},
		monthly: &engine.MonthlyRunner{
			Runs:      store,
			Bonuses:   store,
			Calc:      calc,
			Directory: dir,
			ChunkSize: cfg.Engine.ChunkSize,
			Log:       log,
		},
		settlement: wallet.NewSettlementService(store, log),
	}, nil
}

// =============================================================================
// RUN COMMANDS
// =============================================================================

var runDailyCmd = &cobra.Command{
	Use:   "run-daily [DATE]",
	Short: "Settle a day's pairing, matching and leveling bonuses",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDaily,
}

func runDaily(cmd *cobra.Command, args []string) error {
	date := ledger.Today().AddDays(-1)
	if len(args) == 1 {
		var err error
		date, err = ledger.ParseDate(args[0])
		if err != nil {
			return fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", args[0], err)
		}
	}
	retry, _ := cmd.Flags().GetBool("retry")

	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.store.Close()

	ctx := context.Background()
	var run *engine.DailyRun
	if retry {
		run, err = d.daily.Retry(ctx, date)
	} else {
		run, err = d.daily.Run(ctx, date)
	}
	if err != nil {
		return err
	}

	printRunSummary(string(run.Status), date.String(), run.Totals)
	return nil
}

var runMonthlyCmd = &cobra.Command{
	Use:   "run-monthly MONTH YEAR",
	Short: "Settle a closed month's repeat-order or global-sharing bonuses",
	Args:  cobra.ExactArgs(2),
	RunE:  runMonthly,
}

func runMonthly(cmd *cobra.Command, args []string) error {
	month, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid month %q", args[0])
	}
	year, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid year %q", args[1])
	}
	period, err := ledger.NewPeriod(month, year)
	if err != nil {
		return err
	}
	kind, _ := cmd.Flags().GetString("kind")

	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.store.Close()

	ctx := context.Background()
	var run *engine.MonthlyRun
	switch engine.MonthlyKind(kind) {
	case engine.MonthlyRepeatOrder:
		run, err = d.monthly.RunRepeatOrder(ctx, period)
	case engine.MonthlyGlobalSharing:
		run, err = d.monthly.RunGlobalSharing(ctx, period)
	default:
		return fmt.Errorf("unknown kind %q (repeat_order or global_sharing)", kind)
	}
	if err != nil {
		return err
	}

	printRunSummary(string(run.Status), period.String()+" "+kind, run.Totals)
	return nil
}

func printRunSummary(status, key string, totals engine.RunTotals) {
	fmt.Printf("run %s: %s\n", key, status)
	fmt.Printf("  members processed: %d, skipped: %d\n",
		totals.MembersProcessed, totals.MembersSkipped)
	fmt.Printf("  bonuses: %d, total amount: %d\n", totals.BonusCount, int64(totals.Sum()))
	for kind, amount := range totals.ByKind {
		fmt.Printf("    %-14s %d\n", kind, int64(amount))
	}
}

// =============================================================================
// DECISION COMMANDS
// =============================================================================

var approveCmd = &cobra.Command{
	Use:   "approve BONUS_ID",
	Short: "Approve a pending bonus and credit its e-wallet portion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return decide(cmd, args[0], func(d *deps, ctx context.Context, id bonus.BonusID, admin, _ string) (*bonus.Bonus, error) {
			return d.settlement.Approve(ctx, id, admin)
		})
	},
}

var rejectCmd = &cobra.Command{
	Use:   "reject BONUS_ID",
	Short: "Reject a pending bonus without crediting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return decide(cmd, args[0], func(d *deps, ctx context.Context, id bonus.BonusID, admin, reason string) (*bonus.Bonus, error) {
			return d.settlement.Reject(ctx, id, admin, reason)
		})
	},
}

var paidCmd = &cobra.Command{
	Use:   "paid BONUS_ID",
	Short: "Mark an approved bonus as paid out",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return decide(cmd, args[0], func(d *deps, ctx context.Context, id bonus.BonusID, admin, _ string) (*bonus.Bonus, error) {
			return d.settlement.MarkPaid(ctx, id, admin)
		})
	},
}

func decide(cmd *cobra.Command, id string,
	fn func(*deps, context.Context, bonus.BonusID, string, string) (*bonus.Bonus, error)) error {

	admin, _ := cmd.Flags().GetString("admin")
	if admin == "" {
		return fmt.Errorf("--admin is required")
	}
	reason, _ := cmd.Flags().GetString("reason")

	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.store.Close()

	b, err := fn(d, context.Background(), bonus.BonusID(id), admin, reason)
	if err != nil {
		return err
	}

	fmt.Printf("bonus %s: %s\n", b.ID, b.Status)
	fmt.Printf("  member: %s, kind: %s\n", b.MemberID, b.Kind)
	fmt.Printf("  amount: %d (ewallet %d, cash %d)\n",
		int64(b.Amount), int64(b.EWalletAmount), int64(b.CashAmount))
	return nil
}

// =============================================================================
// HISTORY
// =============================================================================

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent daily and monthly run history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		d, err := buildDeps()
		if err != nil {
			return err
		}
		defer d.store.Close()

		ctx := context.Background()
		daily, err := d.store.ListDaily(ctx, 10)
		if err != nil {
			return err
		}
		monthly, err := d.store.ListMonthly(ctx, 10)
		if err != nil {
			return err
		}

		fmt.Println("daily runs:")
		for _, run := range daily {
			fmt.Printf("  %s  %-9s  bonuses=%d  total=%d\n",
				run.Date, run.Status, run.Totals.BonusCount, int64(run.Totals.Sum()))
		}
		fmt.Println("monthly runs:")
		for _, run := range monthly {
			fmt.Printf("  %s %-14s %-9s  bonuses=%d  total=%d\n",
				run.Period, run.Kind, run.Status, run.Totals.BonusCount, int64(run.Totals.Sum()))
		}
		return nil
	},
}
