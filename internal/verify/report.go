// Package verify runs the four checking layers over a loaded evidence pack
// and aggregates their results into a single compliance report. Every layer
// completes its full scan and collects all applicable failures; only a
// structurally malformed record short-circuits that record's further checks.
package verify

import (
	"sort"
	"time"

	"vcp_verifier/internal/evidence"
	"vcp_verifier/internal/policy"
)

// Code identifies a failure category.
type Code string

const (
	CodeMalformedRecord         Code = "MalformedRecord"
	CodeHashMismatch            Code = "HashMismatch"
	CodeChainBreak              Code = "ChainBreak"
	CodeTimelineDisorder        Code = "TimelineDisorder"
	CodeMerkleRootMismatch      Code = "MerkleRootMismatch"
	CodeInclusionProofInvalid   Code = "InclusionProofInvalid"
	CodeAnchorRootMismatch      Code = "AnchorRootMismatch"
	CodeAnchorTemporalViolation Code = "AnchorTemporalViolation"
	CodeAnchorLatencyExceeded   Code = "AnchorLatencyExceeded"
	CodeAnchorUnreachable       Code = "AnchorUnreachable"
	CodePolicyViolation         Code = "PolicyViolation"
)

// Status is a layer or overall verdict.
type Status string

const (
	StatusPass Status = "PASS"
	StatusFail Status = "FAIL"
	// StatusSkipped marks a layer the pack legitimately does not exercise
	// (e.g. hash chain not in use at a tier that permits that).
	StatusSkipped Status = "SKIPPED"
	// StatusUnanchored marks the anchor layer when no anchor could be
	// obtained; the pack is intact but externally unattested.
	StatusUnanchored Status = "UNANCHORED"
)

// Layer names, in fixed report order.
const (
	LayerEventIntegrity    = "event_integrity"
	LayerChainContinuity   = "chain_continuity"
	LayerBatchCompleteness = "batch_completeness"
	LayerAnchorValidity    = "anchor_validity"
	LayerPolicyConformance = "policy_conformance"
)

// Finding is one itemized failure.
type Finding struct {
	Code    Code   `json:"code"`
	RuleID  string `json:"rule_id,omitempty"`
	EventID string `json:"event_id,omitempty"`
	Detail  string `json:"detail"`
}

// LayerResult is one layer's verdict plus its itemized failures.
type LayerResult struct {
	Name     string    `json:"name"`
	Status   Status    `json:"status"`
	Findings []Finding `json:"findings,omitempty"`
}

// Summary carries the counts auditors reconcile against the pack manifest.
type Summary struct {
	EventsChecked      int            `json:"events_checked"`
	ChainLinksVerified int            `json:"chain_links_verified"`
	ProofsVerified     int            `json:"proofs_verified"`
	AnchorsValidated   int            `json:"anchors_validated"`
	EventTypes         map[string]int `json:"event_types"`
}

// External verifiability weight of the anchor set. Anchor type never flips
// pass/fail, only this label.
const (
	VerifiabilityNone    = "none"
	VerifiabilityReduced = "reduced"
	VerifiabilityFull    = "full"
)

// Report is the aggregate verdict. GeneratedAt is the only field that may
// differ between two runs over unchanged input bytes.
type Report struct {
	GeneratedAt           time.Time     `json:"generated_at"`
	PackDir               string        `json:"pack_dir,omitempty"`
	Specification         string        `json:"specification,omitempty"`
	PolicyID              string        `json:"policy_id,omitempty"`
	Tier                  string        `json:"tier"`
	Layers                []LayerResult `json:"layers"`
	ExternalVerifiability string        `json:"external_verifiability"`
	Summary               Summary       `json:"summary"`
	Overall               Status        `json:"overall"`
}

// Pass reports whether the overall verdict is PASS.
func (r *Report) Pass() bool {
	return r.Overall == StatusPass
}

// Layer returns the named layer result, or nil.
func (r *Report) Layer(name string) *LayerResult {
	for i := range r.Layers {
		if r.Layers[i].Name == name {
			return &r.Layers[i]
		}
	}
	return nil
}

// Findings returns every itemized failure across all layers in report order.
func (r *Report) Findings() []Finding {
	var out []Finding
	for _, layer := range r.Layers {
		out = append(out, layer.Findings...)
	}
	return out
}

// FailureCategories returns the distinct failure codes present, sorted.
func (r *Report) FailureCategories() []string {
	seen := map[string]struct{}{}
	for _, f := range r.Findings() {
		seen[string(f.Code)] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for code := range seen {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

func layerStatus(findings []Finding) Status {
	if len(findings) > 0 {
		return StatusFail
	}
	return StatusPass
}

func externalVerifiability(anchors []evidence.Anchor) string {
	if len(anchors) == 0 {
		return VerifiabilityNone
	}
	for _, a := range anchors {
		switch a.Type {
		case evidence.AnchorTSA, evidence.AnchorLedger:
			return VerifiabilityFull
		}
	}
	return VerifiabilityReduced
}

func policyFindings(violations []policy.Violation) []Finding {
	out := make([]Finding, 0, len(violations))
	for _, v := range violations {
		out = append(out, Finding{
			Code:    CodePolicyViolation,
			RuleID:  v.RuleID,
			EventID: v.EventID,
			Detail:  v.Detail,
		})
	}
	return out
}
