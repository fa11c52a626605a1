/*
Package money provides integer minor-unit monetary amounts.

PURPOSE:
  All bonus amounts, wallet balances and configuration values are integer
  minor units (e.g. cents, sen). Percentage math goes through
  decimal.Decimal and is truncated back to an integer immediately, so no
  floating point ever touches a stored amount.

KEY CONCEPTS:
  - Money:   int64 minor units
  - Percent: an exact decimal ratio (e.g. "20" for 20%)
  - Split:   a gross amount divided into an e-wallet and a cash portion

SPLIT RULE:
  The e-wallet portion truncates down; the cash portion absorbs the
  rounding remainder. The two portions therefore always sum exactly to
  the gross amount.
*/
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Integer minor units
// =============================================================================

type Money int64

func (m Money) IsZero() bool     { return m == 0 }
func (m Money) IsNegative() bool { return m < 0 }

func (m Money) Add(n Money) Money { return m + n }
func (m Money) Sub(n Money) Money { return m - n }

// MulInt multiplies by an integer count (e.g. pairs * unit).
func (m Money) MulInt(n int64) Money { return Money(int64(m) * n) }

func (m Money) String() string { return fmt.Sprintf("%d", int64(m)) }

// =============================================================================
// PERCENT - Exact decimal ratio
// =============================================================================

// Percent is a percentage expressed exactly, e.g. NewPercent(20) is 20%.
type Percent struct {
	d decimal.Decimal
}

func NewPercent(v int64) Percent { return Percent{d: decimal.NewFromInt(v)} }

// ParsePercent parses a decimal percentage string ("2.5" is 2.5%).
func ParsePercent(s string) (Percent, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Percent{}, fmt.Errorf("parse percent %q: %w", s, err)
	}
	return Percent{d: d}, nil
}

// MustParsePercent is ParsePercent for strings already checked by
// configuration validation. Malformed input falls back to zero.
func MustParsePercent(s string) Percent {
	p, err := ParsePercent(s)
	if err != nil {
		return Percent{d: decimal.Zero}
	}
	return p
}

func (p Percent) IsZero() bool             { return p.d.IsZero() }
func (p Percent) String() string           { return p.d.String() + "%" }
func (p Percent) Decimal() decimal.Decimal { return p.d }

// Of returns p percent of m, truncated toward zero to integer minor units.
func (p Percent) Of(m Money) Money {
	return Money(decimal.NewFromInt(int64(m)).Mul(p.d).Div(decimal.NewFromInt(100)).IntPart())
}

// =============================================================================
// SPLIT - Gross amount divided into e-wallet and cash portions
// =============================================================================

// Split is the division of a gross bonus into the instantly spendable
// e-wallet portion and the held cash portion.
type Split struct {
	Gross   Money
	EWallet Money
	Cash    Money
}

// SplitByPercent divides gross by the e-wallet percentage. The e-wallet
// side truncates; cash absorbs the remainder, so EWallet+Cash == Gross.
func SplitByPercent(gross Money, ewalletPercent Percent) Split {
	ew := ewalletPercent.Of(gross)
	return Split{Gross: gross, EWallet: ew, Cash: gross - ew}
}
