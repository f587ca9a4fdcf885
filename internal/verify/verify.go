package verify

import (
	"context"
	"encoding/hex"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"vcp_verifier/internal/evidence"
	"vcp_verifier/internal/policy"
)

// Config is the immutable per-engine configuration. It is passed in
// explicitly so multiple packs and tiers can be verified concurrently
// without shared state.
type Config struct {
	// Tier overrides the pack's declared tier when set.
	Tier policy.Tier
	// Rules is the tier rule table; nil means the built-in table.
	Rules policy.RuleTable
	// Anchors overrides the pack's own anchor records when set. Remote
	// sources are bounded by AnchorTimeout.
	Anchors AnchorSource
	// AnchorTimeout bounds an external anchor fetch. Zero means no bound.
	AnchorTimeout time.Duration
	// Clock is overridable for tests; nil means time.Now.
	Clock func() time.Time
}

// Engine runs verifications. It is safe for concurrent use: every run reads
// only its own immutable pack snapshot.
type Engine struct {
	cfg Config
}

// New builds an engine, filling config defaults.
func New(cfg Config) *Engine {
	if cfg.Rules == nil {
		cfg.Rules = policy.DefaultRuleTable()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Engine{cfg: cfg}
}

// VerifyDir loads the pack at dir and verifies it. Only a pack that cannot
// be loaded at all returns an error; every verification failure is reported
// in the Report.
func (e *Engine) VerifyDir(ctx context.Context, dir string) (*Report, error) {
	pack, err := evidence.LoadPack(dir)
	if err != nil {
		return nil, err
	}
	return e.Verify(ctx, pack), nil
}

// Verify runs all four checking layers over the pack. The layers are
// read-only over the same snapshot and run in parallel; chain continuity
// remains a single ordered pass within its layer.
func (e *Engine) Verify(ctx context.Context, pack *evidence.Pack) *Report {
	tier := e.resolveTier(pack)
	rules := e.cfg.Rules.Lookup(tier)

	anchors, anchorFetch := e.fetchAnchors(ctx, pack)

	var (
		eventLayer, chainLayer, batchLayer, anchorLayer, policyLayer LayerResult

		eventsChecked, linksVerified, proofsVerified, anchorsValidated int
	)

	var g errgroup.Group
	g.Go(func() error {
		eventLayer, eventsChecked = checkEventIntegrity(pack)
		return nil
	})
	g.Go(func() error {
		chainLayer, linksVerified = checkChainContinuity(pack)
		return nil
	})
	g.Go(func() error {
		var computedRoots map[string]string
		batchLayer, proofsVerified, computedRoots = checkBatches(pack)
		if anchorFetch != nil {
			anchorLayer = *anchorFetch
			return nil
		}
		// Anchor validation consumes the recomputed roots, so it follows
		// the batch layer on the same goroutine.
		anchorLayer, anchorsValidated = checkAnchors(pack, anchors, computedRoots, rules)
		return nil
	})
	g.Go(func() error {
		findings := policyFindings(policy.Check(pack, tier, rules))
		policyLayer = LayerResult{
			Name:     LayerPolicyConformance,
			Status:   layerStatus(findings),
			Findings: findings,
		}
		return nil
	})
	_ = g.Wait() // layer checkers report findings, never errors

	report := &Report{
		GeneratedAt:           e.cfg.Clock().UTC(),
		PackDir:               pack.Dir,
		Specification:         pack.Metadata.Specification,
		PolicyID:              packPolicyID(pack),
		Tier:                  tier.String(),
		Layers:                []LayerResult{eventLayer, chainLayer, batchLayer, anchorLayer, policyLayer},
		ExternalVerifiability: externalVerifiability(anchors),
		Summary: Summary{
			EventsChecked:      eventsChecked,
			ChainLinksVerified: linksVerified,
			ProofsVerified:     proofsVerified,
			AnchorsValidated:   anchorsValidated,
			EventTypes:         eventTypeCounts(pack),
		},
	}
	report.Overall = overall(report.Layers)
	return report
}

// overall is PASS only when no layer failed and no findings were itemized.
// A skipped chain layer does not fail the pack; an unanchored pack does.
func overall(layers []LayerResult) Status {
	for _, layer := range layers {
		switch layer.Status {
		case StatusFail, StatusUnanchored:
			return StatusFail
		}
		if len(layer.Findings) > 0 {
			return StatusFail
		}
	}
	return StatusPass
}

func (e *Engine) resolveTier(pack *evidence.Pack) policy.Tier {
	if e.cfg.Tier != policy.TierUnknown {
		return e.cfg.Tier
	}
	declared := pack.Metadata.ConformanceTier
	if declared == "" && pack.Policy != nil {
		declared = pack.Policy.ConformanceTier
	}
	tier, err := policy.ParseTier(declared)
	if err != nil {
		// The policy layer reports the unknown tier; checks still run at
		// the floor tier.
		return policy.TierBronze
	}
	return tier
}

// fetchAnchors resolves the anchor set: a configured source wins over the
// pack's static records. A source failure yields an UNANCHORED layer result
// instead of aborting the run.
func (e *Engine) fetchAnchors(ctx context.Context, pack *evidence.Pack) ([]evidence.Anchor, *LayerResult) {
	if e.cfg.Anchors == nil {
		return pack.Anchors, nil
	}
	if e.cfg.AnchorTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.AnchorTimeout)
		defer cancel()
	}
	anchors, err := e.cfg.Anchors.Fetch(ctx)
	if err != nil {
		return nil, &LayerResult{
			Name:   LayerAnchorValidity,
			Status: StatusUnanchored,
			Findings: []Finding{{
				Code:   CodeAnchorUnreachable,
				Detail: err.Error(),
			}},
		}
	}
	return anchors, nil
}

func packPolicyID(pack *evidence.Pack) string {
	if pack.Policy != nil && pack.Policy.PolicyID != "" {
		return pack.Policy.PolicyID
	}
	return pack.Metadata.PolicyID
}

func eventTypeCounts(pack *evidence.Pack) map[string]int {
	counts := map[string]int{}
	for _, e := range pack.Events {
		counts[e.Header.EventType]++
	}
	return counts
}

func decodeHex(h string) ([]byte, error) {
	return hex.DecodeString(strings.ToLower(strings.TrimSpace(h)))
}
