package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertex/comp-engine/config"
	"github.com/vertex/comp-engine/ledger"
	"github.com/vertex/comp-engine/money"
	"github.com/vertex/comp-engine/network"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "comp.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// =============================================================================
// DEFAULT AND LOAD TESTS
// =============================================================================

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, config.Default().Validate())
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, int64(100_000), cfg.Bonus.PairingUnit)
	assert.Len(t, cfg.Packages, 3)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	// GIVEN: A file overriding the pairing unit and one tier
	// WHEN: Loading
	// THEN: Overrides land; untouched defaults survive

	path := writeConfig(t, `
[bonus]
pairing_unit = 250000

[packages.gold]
max_pairs_per_day = 50
leveling_amount = 75000
matching_percent = "10"
repeat_order_percent = "6"
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(250_000), cfg.Bonus.PairingUnit)

	params := cfg.PackageParams()
	assert.Equal(t, 50, params[network.TierGold].MaxPairsPerDay)
	assert.Equal(t, money.Money(75_000), params[network.TierGold].LevelingAmount)
	// Silver was not touched by the file.
	assert.Equal(t, 10, params[network.TierSilver].MaxPairsPerDay)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestLoad_MalformedTOML(t *testing.T) {
	path := writeConfig(t, `pairing_unit = [broken`)
	_, err := config.Load(path)
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}

// =============================================================================
// VALIDATION TESTS
// =============================================================================

func TestValidate_RejectsNonPositivePairingUnit(t *testing.T) {
	cfg := config.Default()
	cfg.Bonus.PairingUnit = 0
	require.ErrorIs(t, cfg.Validate(), config.ErrInvalidConfig)
}

func TestValidate_RejectsMissingTier(t *testing.T) {
	cfg := config.Default()
	delete(cfg.Packages, "silver")
	err := cfg.Validate()
	require.ErrorIs(t, err, config.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "silver")
}

func TestValidate_RejectsNonMonotoneSponsorMatrix(t *testing.T) {
	// GIVEN: A gold/gold cell paying less than silver/gold
	// WHEN: Validating
	// THEN: The matrix is refused

	cfg := config.Default()
	cfg.SponsorGrid["gold"]["gold"] = 10
	require.ErrorIs(t, cfg.Validate(), config.ErrInvalidConfig)
}

func TestValidate_RejectsLadderWithoutBase(t *testing.T) {
	cfg := config.Default()
	for i := range cfg.CareerLevels {
		if cfg.CareerLevels[i].RequiredPP == 0 {
			cfg.CareerLevels[i].RequiredPP = 10
		}
	}
	require.ErrorIs(t, cfg.Validate(), config.ErrInvalidConfig)
}

func TestLoad_RejectsMalformedEWalletPercent(t *testing.T) {
	// GIVEN: A file spelling the e-wallet share as a word
	// WHEN: Loading
	// THEN: The file is refused instead of silently splitting at 0%

	path := writeConfig(t, `
[bonus]
ewallet_percent = "twenty"
`)
	_, err := config.Load(path)
	require.ErrorIs(t, err, config.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "ewallet_percent")
}

func TestValidate_RejectsMalformedPercents(t *testing.T) {
	bad := func(mutate func(*config.Config)) error {
		cfg := config.Default()
		mutate(&cfg)
		return cfg.Validate()
	}

	require.ErrorIs(t, bad(func(c *config.Config) {
		p := c.Packages["silver"]
		p.MatchingPercent = "five"
		c.Packages["silver"] = p
	}), config.ErrInvalidConfig)

	require.ErrorIs(t, bad(func(c *config.Config) {
		c.Bonus.SplitOverrides = map[string]string{"pairing": "1/2"}
	}), config.ErrInvalidConfig)

	require.ErrorIs(t, bad(func(c *config.Config) {
		c.CareerLevels[1].SharePercent = "one"
	}), config.ErrInvalidConfig)
}

func TestValidate_AcceptsBlankPercentFields(t *testing.T) {
	// A partial [packages.x] table leaves unspecified percents empty.
	cfg := config.Default()
	p := cfg.Packages["bronze"]
	p.RepeatOrderPercent = ""
	cfg.Packages["bronze"] = p
	require.NoError(t, cfg.Validate())
}

// =============================================================================
// ASSEMBLY TESTS
// =============================================================================

func TestLadder_AssemblesSortedWithBase(t *testing.T) {
	ladder := config.Default().Ladder()
	assert.Equal(t, "member", ladder.Base().Name)
	assert.Equal(t, ledger.Points(0), ladder.Base().RequiredPP)

	level, ok := ladder.Level("diamond_director")
	require.True(t, ok)
	assert.Equal(t, ledger.Points(25_000), level.RequiredPP)
}

func TestSplits_DefaultAndOverride(t *testing.T) {
	// GIVEN: A 20% default with a per-kind override for global sharing
	// WHEN: Assembling the split policy
	// THEN: The override wins for its kind only

	cfg := config.Default()
	cfg.Bonus.SplitOverrides = map[string]string{"global_sharing": "100"}

	splits := cfg.Splits()
	assert.Equal(t, money.Money(20), splits.Apply("pairing", 100).EWallet)
	assert.Equal(t, money.Money(100), splits.Apply("global_sharing", 100).EWallet)
}

func TestSponsorMatrix_DropsUnknownTiers(t *testing.T) {
	cfg := config.Default()
	cfg.SponsorGrid["platinum"] = map[string]int64{"bronze": 1}

	m := cfg.SponsorMatrix()
	assert.Zero(t, m.Lookup(network.Tier("platinum"), network.TierBronze))
	assert.Equal(t, money.Money(50_000), m.Lookup(network.TierBronze, network.TierBronze))
}
