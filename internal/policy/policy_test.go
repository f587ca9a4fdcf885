package policy_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vcp_verifier/internal/evidence"
	"vcp_verifier/internal/evidence/evidencetest"
	"vcp_verifier/internal/policy"
)

func ruleIDs(violations []policy.Violation) []string {
	out := make([]string, len(violations))
	for i, v := range violations {
		out[i] = v.RuleID
	}
	return out
}

func TestParseTierOrdering(t *testing.T) {
	bronze, err := policy.ParseTier("Bronze")
	require.NoError(t, err)
	silver, err := policy.ParseTier("silver")
	require.NoError(t, err)
	gold, err := policy.ParseTier("GOLD")
	require.NoError(t, err)
	assert.True(t, bronze < silver && silver < gold)

	_, err = policy.ParseTier("platinum")
	assert.Error(t, err)
}

func TestDefaultRuleTableMonotonicallyStricter(t *testing.T) {
	table := policy.DefaultRuleTable()
	bronze := table.Lookup(policy.TierBronze)
	silver := table.Lookup(policy.TierSilver)
	gold := table.Lookup(policy.TierGold)

	assert.True(t, bronze.MinTimestampDigits <= silver.MinTimestampDigits)
	assert.True(t, silver.MinTimestampDigits <= gold.MinTimestampDigits)
	assert.True(t, bronze.MaxAnchorLatency >= silver.MaxAnchorLatency)
	assert.True(t, silver.MaxAnchorLatency >= gold.MaxAnchorLatency)
	assert.Equal(t, 24*time.Hour, silver.MaxAnchorLatency)
}

func TestCheckConformingSilverPack(t *testing.T) {
	b := evidencetest.New()
	b.AddOrders(3)
	pack := b.Pack()

	table := policy.DefaultRuleTable()
	violations := policy.Check(pack, policy.TierSilver, table.Lookup(policy.TierSilver))
	assert.Empty(t, violations)
}

func TestCheckMissingGlobalPolicy(t *testing.T) {
	b := evidencetest.New()
	b.AddOrders(1)
	pack := b.Pack()
	pack.Policy = nil

	table := policy.DefaultRuleTable()
	violations := policy.Check(pack, policy.TierSilver, table.Lookup(policy.TierSilver))
	assert.Contains(t, ruleIDs(violations), policy.RulePolicyPresent)
}

func TestCheckIncompleteIdentification(t *testing.T) {
	pack := &evidence.Pack{
		Policy: &evidence.PolicyIdentification{ConformanceTier: "platinum"},
	}
	table := policy.DefaultRuleTable()
	ids := ruleIDs(policy.Check(pack, policy.TierBronze, table.Lookup(policy.TierBronze)))
	assert.Contains(t, ids, policy.RulePolicyID)
	assert.Contains(t, ids, policy.RulePolicyTierKnown)
	assert.Contains(t, ids, policy.RulePolicyIssuer)
	assert.Contains(t, ids, policy.RulePolicyDepth)
}

func TestCheckTimestampPrecision(t *testing.T) {
	b := evidencetest.New()
	b.AddOrders(1)
	pack := b.Pack()
	// Millisecond precision satisfies Silver but not Gold.
	table := policy.DefaultRuleTable()
	assert.Empty(t, policy.Check(pack, policy.TierSilver, table.Lookup(policy.TierSilver)))

	ids := ruleIDs(policy.Check(pack, policy.TierGold, table.Lookup(policy.TierGold)))
	assert.Contains(t, ids, policy.RuleTimestampPrec)
}

func TestCheckChainRequiredAtSilver(t *testing.T) {
	b := evidencetest.New()
	b.WithChain = false
	b.AddOrders(2)
	pack := b.Pack()

	table := policy.DefaultRuleTable()
	assert.Empty(t, policy.Check(pack, policy.TierBronze, table.Lookup(policy.TierBronze)))

	violations := policy.Check(pack, policy.TierSilver, table.Lookup(policy.TierSilver))
	found := 0
	for _, v := range violations {
		if v.RuleID == policy.RuleChainRequired {
			found++
			assert.NotEmpty(t, v.EventID)
		}
	}
	assert.Equal(t, 2, found)
}

func TestCheckClockSyncSource(t *testing.T) {
	b := evidencetest.New()
	b.GoldLayout = true
	b.Tier = "gold"
	b.ClockSync = "wall-clock"
	b.AddOrders(1)
	pack := b.Pack()

	table := policy.DefaultRuleTable()
	ids := ruleIDs(policy.Check(pack, policy.TierGold, table.Lookup(policy.TierGold)))
	assert.Contains(t, ids, policy.RuleClockSynced)
}

func TestCheckPolicyConsistency(t *testing.T) {
	b := evidencetest.New()
	b.AddOrders(2)
	pack := b.Pack()
	pack.Events[1].Header.PolicyIdentification.PolicyID = "someone-elses-policy"

	table := policy.DefaultRuleTable()
	violations := policy.Check(pack, policy.TierSilver, table.Lookup(policy.TierSilver))
	require.Len(t, violations, 1)
	assert.Equal(t, policy.RulePolicyConsistent, violations[0].RuleID)
	assert.Equal(t, "evt-002", violations[0].EventID)
}

func TestLoadRuleTableOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	doc := `silver:
  min_timestamp_digits: 3
  require_chain: true
  require_clock_sync: true
  max_anchor_latency: 2h
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	table, err := policy.LoadRuleTable(path)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, table.Lookup(policy.TierSilver).MaxAnchorLatency)
	// Tiers absent from the file keep built-in rules.
	assert.Equal(t, 72*time.Hour, table.Lookup(policy.TierBronze).MaxAnchorLatency)
}
