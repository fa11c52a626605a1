package money_test

import (
	"testing"

	"github.com/vertex/comp-engine/money"
)

// =============================================================================
// SPLIT TESTS
// =============================================================================

func TestSplitByPercent_PortionsSumToGross(t *testing.T) {
	// GIVEN: A gross amount that does not divide evenly at 20%
	// WHEN: Splitting
	// THEN: E-wallet truncates down and cash absorbs the remainder

	s := money.SplitByPercent(100_003, money.NewPercent(20))

	if s.EWallet != 20_000 {
		t.Errorf("ewallet = %d, want 20000", s.EWallet)
	}
	if s.Cash != 80_003 {
		t.Errorf("cash = %d, want 80003", s.Cash)
	}
	if s.EWallet+s.Cash != s.Gross {
		t.Errorf("portions %d+%d do not sum to gross %d", s.EWallet, s.Cash, s.Gross)
	}
}

func TestSplitByPercent_FractionalPercentTruncates(t *testing.T) {
	// GIVEN: 2.5% of 999 = 24.975
	// WHEN: Splitting
	// THEN: The e-wallet side truncates to 24, never rounds up

	s := money.SplitByPercent(999, money.MustParsePercent("2.5"))

	if s.EWallet != 24 {
		t.Errorf("ewallet = %d, want 24", s.EWallet)
	}
	if s.EWallet+s.Cash != 999 {
		t.Errorf("portions do not sum to gross")
	}
}

func TestSplitByPercent_ZeroGross(t *testing.T) {
	s := money.SplitByPercent(0, money.NewPercent(20))
	if s.EWallet != 0 || s.Cash != 0 {
		t.Errorf("zero gross produced nonzero portions: %+v", s)
	}
}

// =============================================================================
// PERCENT TESTS
// =============================================================================

func TestPercent_Of(t *testing.T) {
	cases := []struct {
		name    string
		percent string
		amount  money.Money
		want    money.Money
	}{
		{"whole percent", "5", 100_000, 5_000},
		{"truncates toward zero", "3", 101, 3},
		{"hundred percent", "100", 7_777, 7_777},
		{"zero percent", "0", 100_000, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := money.MustParsePercent(tc.percent).Of(tc.amount)
			if got != tc.want {
				t.Errorf("%s%% of %d = %d, want %d", tc.percent, tc.amount, got, tc.want)
			}
		})
	}
}

func TestParsePercent_RejectsMalformedInput(t *testing.T) {
	if _, err := money.ParsePercent("twenty"); err == nil {
		t.Error("expected an error for a non-numeric percent")
	}
	p, err := money.ParsePercent("2.5")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.IsZero() {
		t.Errorf("2.5 parsed as zero")
	}
}

func TestMustParsePercent_MalformedFallsBackToZero(t *testing.T) {
	p := money.MustParsePercent("not a number")
	if !p.IsZero() {
		t.Errorf("malformed percent should be zero, got %s", p)
	}
}
