package verify

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

var layerTitles = map[string]string{
	LayerEventIntegrity:    "Layer 1 - Event Hash Verification",
	LayerChainContinuity:   "Layer 1 - Hash Chain Continuity",
	LayerBatchCompleteness: "Layer 2 - Merkle Batch Verification",
	LayerAnchorValidity:    "Layer 3 - External Anchor Verification",
	LayerPolicyConformance: "Policy Conformance",
}

// Render writes the human-readable form of a report. The machine-readable
// form is the report's JSON encoding.
func Render(w io.Writer, r *Report) {
	rule := strings.Repeat("=", 70)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "Evidence Pack Verification Report")
	fmt.Fprintln(w, rule)
	if r.PackDir != "" {
		fmt.Fprintf(w, "Pack:          %s\n", r.PackDir)
	}
	if r.Specification != "" {
		fmt.Fprintf(w, "Specification: %s\n", r.Specification)
	}
	if r.PolicyID != "" {
		fmt.Fprintf(w, "Policy:        %s\n", r.PolicyID)
	}
	fmt.Fprintf(w, "Tier:          %s\n", r.Tier)
	fmt.Fprintf(w, "Generated:     %s\n", r.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintln(w)

	for _, layer := range r.Layers {
		title := layerTitles[layer.Name]
		if title == "" {
			title = layer.Name
		}
		fmt.Fprintf(w, "%s: %s\n", title, layer.Status)
		for _, f := range layer.Findings {
			if f.EventID != "" {
				fmt.Fprintf(w, "  ✗ %s [%s] %s\n", f.Code, f.EventID, f.Detail)
			} else {
				fmt.Fprintf(w, "  ✗ %s %s\n", f.Code, f.Detail)
			}
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "Summary:")
	fmt.Fprintf(w, "  events checked:       %d\n", r.Summary.EventsChecked)
	fmt.Fprintf(w, "  chain links verified: %d\n", r.Summary.ChainLinksVerified)
	fmt.Fprintf(w, "  proofs verified:      %d\n", r.Summary.ProofsVerified)
	fmt.Fprintf(w, "  anchors validated:    %d\n", r.Summary.AnchorsValidated)
	fmt.Fprintf(w, "  external verifiability: %s\n", r.ExternalVerifiability)

	types := make([]string, 0, len(r.Summary.EventTypes))
	for t := range r.Summary.EventTypes {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(w, "  %s: %d\n", t, r.Summary.EventTypes[t])
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, rule)
	if r.Pass() {
		fmt.Fprintln(w, "Overall: ✓ CRYPTOGRAPHICALLY VERIFIED")
	} else {
		fmt.Fprintf(w, "Overall: ✗ VERIFICATION FAILED (%s)\n", strings.Join(r.FailureCategories(), ", "))
	}
	fmt.Fprintln(w, rule)
}
