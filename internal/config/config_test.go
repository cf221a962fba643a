package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, GroupByClass, cfg.GroupBy)
	assert.True(t, cfg.IncludeUnresolvedPlaceholders)
	assert.Equal(t, TieBreakSpecificity, cfg.TieBreak)
	assert.True(t, cfg.Enabled(StrategyPlaceholder))
	assert.Greater(t, cfg.WorkerCount(), 0)
}

func TestParse(t *testing.T) {
	yaml := `
group-by: custom-label
include-unresolved-placeholders: false
labels:
  - match: '^com\.shop\.(\w+)\.'
    label: 'shop-$1'
  - match: 'Legacy'
    label: legacy
destination-strategies: [literal]
properties:
  queue.orders: orders-queue
tie-break: merge
exclude:
  - "**/test/**"
workers: 3
`
	cfg, err := Parse([]byte(yaml))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, GroupByCustomLabel, cfg.GroupBy)
	assert.False(t, cfg.IncludeUnresolvedPlaceholders)
	assert.Equal(t, []Strategy{StrategyLiteral}, cfg.DestinationStrategies)
	assert.False(t, cfg.Enabled(StrategyConstantField))
	assert.Equal(t, "orders-queue", cfg.Properties["queue.orders"])
	assert.Equal(t, TieBreakMerge, cfg.TieBreak)
	assert.Equal(t, []string{"**/test/**"}, cfg.Exclude)
	assert.Equal(t, 3, cfg.WorkerCount())

	labeler := cfg.Labeler()
	label, ok := labeler.Label("com.shop.orders.api.OrderController")
	require.True(t, ok)
	assert.Equal(t, "shop-orders", label)

	label, ok = labeler.Label("org.old.LegacyGateway")
	require.True(t, ok)
	assert.Equal(t, "legacy", label)

	_, ok = labeler.Label("org.other.Thing")
	assert.False(t, ok)
}

func TestParseEmptyKeepsDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("grouping: class\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		option string
	}{
		{"group-by", func(c *Config) { c.GroupBy = "module" }, "group-by"},
		{"tie-break", func(c *Config) { c.TieBreak = "random" }, "tie-break"},
		{"strategy", func(c *Config) { c.DestinationStrategies = []Strategy{"guess"} }, "destination-strategies"},
		{"custom-label without labels", func(c *Config) { c.GroupBy = GroupByCustomLabel }, "labels"},
		{"bad regexp", func(c *Config) { c.Labels = []LabelRule{{Match: "(", Label: "x"}} }, "labels"},
		{"empty label", func(c *Config) { c.Labels = []LabelRule{{Match: "x"}} }, "labels"},
		{"workers", func(c *Config) { c.Workers = -1 }, "workers"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
			var ce *Error
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tc.option, ce.Option)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "connviz.yaml")
	require.NoError(t, os.WriteFile(path, []byte("group-by: package\n"), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, GroupByPackage, cfg.GroupBy)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateLeavesConfigUntouched(t *testing.T) {
	cfg := Default()
	cfg.GroupBy = GroupByCustomLabel
	cfg.Labels = []LabelRule{{Match: `^com\.acme\.(\w+)\.`, Label: "acme-$1"}}
	before := *cfg
	before.Labels = slices.Clone(cfg.Labels)

	require.NoError(t, cfg.Validate())
	require.NoError(t, cfg.Validate())
	assert.Equal(t, &before, cfg)
}

func TestLabelerIsSharedAcrossGoroutines(t *testing.T) {
	cfg := Default()
	cfg.Labels = []LabelRule{
		{Match: "(", Label: "broken"},
		{Match: `^com\.acme\.(\w+)\.`, Label: "acme-$1"},
	}
	// no Validate: the broken pattern is skipped, the rest still applies
	labeler := cfg.Labeler()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			label, ok := labeler.Label("com.acme.billing.InvoiceApi")
			assert.True(t, ok)
			assert.Equal(t, "acme-billing", label)
		}()
	}
	wg.Wait()
}
