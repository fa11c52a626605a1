/*
Package config loads the business configuration: package tier parameters,
the sponsor bonus matrix, the career ladder, split percentages and engine
tuning.

PURPOSE:
  The matrices and thresholds are genuinely business configuration, not
  code. Defaults are compiled in so the engine runs out of the box; a TOML
  file overrides them in deployment.

FORMAT (TOML):

  [bonus]
  pairing_unit       = 100000
  ro_point_value     = 1000
  ewallet_percent    = "20"

  [packages.silver]
  max_pairs_per_day    = 10
  leveling_amount      = 25000
  matching_percent     = "5"
  repeat_order_percent = "3"

  [sponsor_matrix.silver]
  bronze = 50000
  silver = 100000
  gold   = 100000

  [[career_levels]]
  name          = "sapphire"
  required_pp   = 5000
  share_percent = "5"

VALIDATION:
  Load rejects a non-monotone sponsor matrix, a ladder without a
  zero-threshold base level, a non-positive pairing unit and any
  unparseable percent string before a component sees the values.
*/
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/vertex/comp-engine/bonus"
	"github.com/vertex/comp-engine/ledger"
	"github.com/vertex/comp-engine/money"
	"github.com/vertex/comp-engine/network"
)

// ErrInvalidConfig wraps all validation failures.
var ErrInvalidConfig = errors.New("invalid configuration")

// =============================================================================
// FILE SHAPE
// =============================================================================

type Config struct {
	Engine       EngineConfig                `toml:"engine"`
	Bonus        BonusConfig                 `toml:"bonus"`
	Packages     map[string]PackageConfig    `toml:"packages"`
	SponsorGrid  map[string]map[string]int64 `toml:"sponsor_matrix"`
	CareerLevels []CareerLevelConfig         `toml:"career_levels"`
}

type EngineConfig struct {
	ChunkSize         int `toml:"chunk_size"`
	NotificationQueue int `toml:"notification_queue"`
}

type BonusConfig struct {
	PairingUnit    int64             `toml:"pairing_unit"`
	ROPointValue   int64             `toml:"ro_point_value"`
	EWalletPercent string            `toml:"ewallet_percent"`
	SplitOverrides map[string]string `toml:"split_overrides"`
}

type PackageConfig struct {
	MaxPairsPerDay     int    `toml:"max_pairs_per_day"`
	LevelingAmount     int64  `toml:"leveling_amount"`
	MatchingPercent    string `toml:"matching_percent"`
	RepeatOrderPercent string `toml:"repeat_order_percent"`
}

type CareerLevelConfig struct {
	Name         string `toml:"name"`
	RequiredPP   int64  `toml:"required_pp"`
	SharePercent string `toml:"share_percent"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the built-in configuration. Amounts are minor units.
func Default() Config {
	return Config{
		Engine: EngineConfig{ChunkSize: 200, NotificationQueue: 256},
		Bonus: BonusConfig{
			PairingUnit:    100_000,
			ROPointValue:   1_000,
			EWalletPercent: "20",
		},
		Packages: map[string]PackageConfig{
			"bronze": {MaxPairsPerDay: 5, LevelingAmount: 0, MatchingPercent: "3", RepeatOrderPercent: "2"},
			"silver": {MaxPairsPerDay: 10, LevelingAmount: 25_000, MatchingPercent: "5", RepeatOrderPercent: "3"},
			"gold":   {MaxPairsPerDay: 20, LevelingAmount: 50_000, MatchingPercent: "8", RepeatOrderPercent: "5"},
		},
		SponsorGrid: map[string]map[string]int64{
			"bronze": {"bronze": 50_000, "silver": 50_000, "gold": 50_000},
			"silver": {"bronze": 50_000, "silver": 100_000, "gold": 100_000},
			"gold":   {"bronze": 50_000, "silver": 100_000, "gold": 200_000},
		},
		CareerLevels: []CareerLevelConfig{
			{Name: "member", RequiredPP: 0, SharePercent: "0"},
			{Name: "bronze_director", RequiredPP: 25, SharePercent: "1"},
			{Name: "silver_director", RequiredPP: 100, SharePercent: "2"},
			{Name: "gold_director", RequiredPP: 500, SharePercent: "3"},
			{Name: "ruby_director", RequiredPP: 1_000, SharePercent: "4"},
			{Name: "sapphire_director", RequiredPP: 5_000, SharePercent: "5"},
			{Name: "emerald_director", RequiredPP: 10_000, SharePercent: "6"},
			{Name: "diamond_director", RequiredPP: 25_000, SharePercent: "8"},
		},
	}
}

// Load reads a TOML file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the business invariants on the raw values.
func (c Config) Validate() error {
	if c.Bonus.PairingUnit <= 0 {
		return fmt.Errorf("%w: pairing_unit must be positive", ErrInvalidConfig)
	}

	for _, tier := range network.Tiers() {
		if _, ok := c.Packages[string(tier)]; !ok {
			return fmt.Errorf("%w: package %q missing", ErrInvalidConfig, tier)
		}
	}

	if !c.sponsorMatrix().Monotone() {
		return fmt.Errorf("%w: sponsor matrix not monotone", ErrInvalidConfig)
	}

	base := false
	for _, l := range c.CareerLevels {
		if l.RequiredPP == 0 {
			base = true
		}
		if l.RequiredPP < 0 {
			return fmt.Errorf("%w: career level %q has negative threshold", ErrInvalidConfig, l.Name)
		}
	}
	if !base {
		return fmt.Errorf("%w: career ladder needs a zero-threshold base level", ErrInvalidConfig)
	}

	if err := validPercent("ewallet_percent", c.Bonus.EWalletPercent); err != nil {
		return err
	}
	for name, pct := range c.Bonus.SplitOverrides {
		if err := validPercent("split_overrides."+name, pct); err != nil {
			return err
		}
	}
	for name, p := range c.Packages {
		if err := validPercent("packages."+name+".matching_percent", p.MatchingPercent); err != nil {
			return err
		}
		if err := validPercent("packages."+name+".repeat_order_percent", p.RepeatOrderPercent); err != nil {
			return err
		}
	}
	for _, l := range c.CareerLevels {
		if err := validPercent("career level "+l.Name+" share_percent", l.SharePercent); err != nil {
			return err
		}
	}
	return nil
}

// validPercent rejects unparseable percent strings. The empty string stays
// legal as zero: TOML tables replace a PackageConfig wholesale, so a partial
// override legitimately leaves percent fields blank.
func validPercent(field, s string) error {
	if s == "" {
		return nil
	}
	if _, err := money.ParsePercent(s); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, field, err)
	}
	return nil
}

// =============================================================================
// DOMAIN ASSEMBLY
// =============================================================================

// PackageParams materializes the per-tier parameter table.
func (c Config) PackageParams() map[network.Tier]network.PackageParams {
	params := make(map[network.Tier]network.PackageParams, len(c.Packages))
	for name, p := range c.Packages {
		tier := network.Tier(name)
		if !tier.Valid() {
			continue
		}
		params[tier] = network.PackageParams{
			Tier:               tier,
			MaxPairsPerDay:     p.MaxPairsPerDay,
			LevelingAmount:     money.Money(p.LevelingAmount),
			MatchingPercent:    money.MustParsePercent(p.MatchingPercent),
			RepeatOrderPercent: money.MustParsePercent(p.RepeatOrderPercent),
		}
	}
	return params
}

func (c Config) sponsorMatrix() network.SponsorMatrix {
	m := make(network.SponsorMatrix, len(c.SponsorGrid))
	for s, row := range c.SponsorGrid {
		tier := network.Tier(s)
		if !tier.Valid() {
			continue
		}
		m[tier] = make(map[network.Tier]money.Money, len(row))
		for j, v := range row {
			if jt := network.Tier(j); jt.Valid() {
				m[tier][jt] = money.Money(v)
			}
		}
	}
	return m
}

// SponsorMatrix materializes the registration bonus table.
func (c Config) SponsorMatrix() network.SponsorMatrix { return c.sponsorMatrix() }

// Ladder materializes the career ladder.
func (c Config) Ladder() network.Ladder {
	levels := make([]network.CareerLevel, 0, len(c.CareerLevels))
	for _, l := range c.CareerLevels {
		levels = append(levels, network.CareerLevel{
			Name:         l.Name,
			RequiredPP:   ledger.Points(l.RequiredPP),
			SharePercent: money.MustParsePercent(l.SharePercent),
		})
	}
	return network.NewLadder(levels)
}

// Splits materializes the per-kind split policy.
func (c Config) Splits() bonus.SplitPolicy {
	policy := bonus.SplitPolicy{}
	def := money.MustParsePercent(c.Bonus.EWalletPercent)
	for _, kind := range append(bonus.DailyKinds(), append(bonus.MonthlyKinds(), bonus.KindSponsor)...) {
		policy[kind] = def
	}
	for name, pct := range c.Bonus.SplitOverrides {
		policy[bonus.Kind(name)] = money.MustParsePercent(pct)
	}
	return policy
}

// Calculator assembles a calculator over a directory and ledger.
func (c Config) Calculator(dir *network.Directory, led *ledger.Ledger) *bonus.Calculator {
	return &bonus.Calculator{
		Directory:    dir,
		Ledger:       led,
		PairingUnit:  money.Money(c.Bonus.PairingUnit),
		ROPointValue: money.Money(c.Bonus.ROPointValue),
		Splits:       c.Splits(),
	}
}
