// Package policy checks tier-based conformance requirements over event
// metadata. Tiers are totally ordered, Bronze < Silver < Gold, each with
// monotonically stricter rules; a pack claiming a tier must satisfy that
// tier's full rule set.
package policy

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Tier is a named conformance level.
type Tier int

const (
	TierUnknown Tier = iota
	TierBronze
	TierSilver
	TierGold
)

func (t Tier) String() string {
	switch t {
	case TierBronze:
		return "bronze"
	case TierSilver:
		return "silver"
	case TierGold:
		return "gold"
	default:
		return "unknown"
	}
}

// ParseTier maps a declared tier name onto the ordering.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bronze":
		return TierBronze, nil
	case "silver":
		return TierSilver, nil
	case "gold":
		return TierGold, nil
	default:
		return TierUnknown, fmt.Errorf("unknown conformance tier %q", s)
	}
}

// Rules is the structural requirement set for one tier.
type Rules struct {
	// MinTimestampDigits is the minimum number of fractional-second digits
	// TimestampISO must carry.
	MinTimestampDigits int `koanf:"min_timestamp_digits" json:"min_timestamp_digits"`
	// RequireChain makes PrevHash linkage mandatory.
	RequireChain bool `koanf:"require_chain" json:"require_chain"`
	// RequireClockSync makes a declared ClockSync status mandatory.
	RequireClockSync bool `koanf:"require_clock_sync" json:"require_clock_sync"`
	// SyncedClockOnly additionally restricts ClockSync to synchronized
	// sources (ntp, ptp).
	SyncedClockOnly bool `koanf:"synced_clock_only" json:"synced_clock_only"`
	// MaxAnchorLatency bounds anchor_time - batch_close_time.
	MaxAnchorLatency time.Duration `koanf:"max_anchor_latency" json:"max_anchor_latency"`
}

// RuleTable maps tier names to their rule sets.
type RuleTable map[string]Rules

// DefaultRuleTable is the built-in tier matrix.
func DefaultRuleTable() RuleTable {
	return RuleTable{
		TierBronze.String(): {
			MinTimestampDigits: 0,
			MaxAnchorLatency:   72 * time.Hour,
		},
		TierSilver.String(): {
			MinTimestampDigits: 3,
			RequireChain:       true,
			RequireClockSync:   true,
			MaxAnchorLatency:   24 * time.Hour,
		},
		TierGold.String(): {
			MinTimestampDigits: 6,
			RequireChain:       true,
			RequireClockSync:   true,
			SyncedClockOnly:    true,
			MaxAnchorLatency:   time.Hour,
		},
	}
}

// LoadRuleTable reads a tier rule table from a YAML file, keyed by tier
// name. Tiers absent from the file keep their built-in rules.
func LoadRuleTable(path string) (RuleTable, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load rule table: %w", err)
	}
	table := DefaultRuleTable()
	for name := range table {
		if !k.Exists(name) {
			continue
		}
		rules := table[name]
		if err := k.Unmarshal(name, &rules); err != nil {
			return nil, fmt.Errorf("rule table %s: %w", name, err)
		}
		table[name] = rules
	}
	return table, nil
}

// Lookup resolves the rules for a tier, falling back to Bronze for tiers
// missing from the table.
func (rt RuleTable) Lookup(t Tier) Rules {
	if rules, ok := rt[t.String()]; ok {
		return rules
	}
	return rt[TierBronze.String()]
}
