package policy

import (
	"fmt"
	"strings"

	"vcp_verifier/internal/evidence"
)

// Rule IDs reported in violations. Auditors match on these, so they are
// stable identifiers, not prose.
const (
	RulePolicyPresent    = "policy.identification.present"
	RulePolicyID         = "policy.id.present"
	RulePolicyTier       = "policy.tier.present"
	RulePolicyTierKnown  = "policy.tier.known"
	RulePolicyIssuer     = "policy.issuer.present"
	RulePolicyDepth      = "policy.depth.present"
	RulePolicyConsistent = "policy.id.consistent"
	RuleTimestampPrec    = "timestamp.precision"
	RuleChainRequired    = "chain.prevhash.required"
	RuleClockDeclared    = "clock.sync.declared"
	RuleClockSynced      = "clock.sync.source"
)

// Violation is one itemized non-conformance. EventID is empty for
// pack-level violations.
type Violation struct {
	RuleID  string `json:"rule_id"`
	EventID string `json:"event_id,omitempty"`
	Detail  string `json:"detail"`
}

// syncedSources are the ClockSync values gold-tier packs may declare.
var syncedSources = map[string]bool{
	"ntp": true,
	"ptp": true,
}

// Check validates the pack's metadata against the rule set for the claimed
// tier. It always completes the full scan and returns every violation; a
// pack satisfies the tier only with an empty result.
func Check(pack *evidence.Pack, tier Tier, rules Rules) []Violation {
	var out []Violation

	out = append(out, checkIdentification(pack)...)

	for _, e := range pack.Events {
		h := e.Header
		if h.PolicyIdentification == nil {
			out = append(out, Violation{
				RuleID:  RulePolicyPresent,
				EventID: h.EventID,
				Detail:  "event has no PolicyIdentification block",
			})
		} else if pack.Policy != nil {
			if h.PolicyIdentification.PolicyID != pack.Policy.PolicyID {
				out = append(out, Violation{
					RuleID:  RulePolicyConsistent,
					EventID: h.EventID,
					Detail: fmt.Sprintf("policy id %q differs from pack policy %q",
						h.PolicyIdentification.PolicyID, pack.Policy.PolicyID),
				})
			}
			if !strings.EqualFold(h.PolicyIdentification.ConformanceTier, pack.Policy.ConformanceTier) {
				out = append(out, Violation{
					RuleID:  RulePolicyConsistent,
					EventID: h.EventID,
					Detail: fmt.Sprintf("tier %q differs from pack tier %q",
						h.PolicyIdentification.ConformanceTier, pack.Policy.ConformanceTier),
				})
			}
		}

		if digits := fractionDigits(h.TimestampISO); digits < rules.MinTimestampDigits {
			out = append(out, Violation{
				RuleID:  RuleTimestampPrec,
				EventID: h.EventID,
				Detail: fmt.Sprintf("%s carries %d fractional digits, tier %s requires %d",
					h.TimestampISO, digits, tier, rules.MinTimestampDigits),
			})
		}

		if rules.RequireChain && !e.ChainInUse() {
			out = append(out, Violation{
				RuleID:  RuleChainRequired,
				EventID: h.EventID,
				Detail:  fmt.Sprintf("tier %s requires hash chain linkage", tier),
			})
		}

		sync := strings.ToLower(strings.TrimSpace(h.ClockSync))
		if rules.RequireClockSync && sync == "" {
			out = append(out, Violation{
				RuleID:  RuleClockDeclared,
				EventID: h.EventID,
				Detail:  fmt.Sprintf("tier %s requires a declared clock-sync status", tier),
			})
		}
		if rules.SyncedClockOnly && sync != "" && !syncedSources[sync] {
			out = append(out, Violation{
				RuleID:  RuleClockSynced,
				EventID: h.EventID,
				Detail:  fmt.Sprintf("tier %s requires a synchronized clock source, got %q", tier, h.ClockSync),
			})
		}
	}

	return out
}

func checkIdentification(pack *evidence.Pack) []Violation {
	pol := pack.Policy
	if pol == nil {
		return []Violation{{
			RuleID: RulePolicyPresent,
			Detail: "pack has no global policy_identification block",
		}}
	}
	var out []Violation
	if pol.PolicyID == "" {
		out = append(out, Violation{RuleID: RulePolicyID, Detail: "PolicyID is required"})
	}
	if pol.ConformanceTier == "" {
		out = append(out, Violation{RuleID: RulePolicyTier, Detail: "ConformanceTier is required"})
	} else if _, err := ParseTier(pol.ConformanceTier); err != nil {
		out = append(out, Violation{RuleID: RulePolicyTierKnown, Detail: err.Error()})
	}
	if pol.RegistrationPolicy.Issuer == "" {
		out = append(out, Violation{RuleID: RulePolicyIssuer, Detail: "RegistrationPolicy.Issuer is required"})
	}
	if pol.VerificationDepth == nil {
		out = append(out, Violation{RuleID: RulePolicyDepth, Detail: "VerificationDepth is required"})
	}
	return out
}

// fractionDigits counts fractional-second digits in an RFC 3339 timestamp.
func fractionDigits(iso string) int {
	dot := strings.IndexByte(iso, '.')
	if dot < 0 {
		return 0
	}
	digits := 0
	for _, r := range iso[dot+1:] {
		if r < '0' || r > '9' {
			break
		}
		digits++
	}
	return digits
}
