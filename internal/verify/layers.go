package verify

import (
	"fmt"
	"strings"
	"time"

	"vcp_verifier/internal/evidence"
	"vcp_verifier/internal/merkle"
	"vcp_verifier/internal/policy"
)

// checkEventIntegrity recomputes every event's self-hash and validates its
// payload schema. Per-event work is independent; failures never halt the
// scan.
func checkEventIntegrity(pack *evidence.Pack) (LayerResult, int) {
	var findings []Finding
	for _, rec := range pack.Malformed {
		findings = append(findings, Finding{
			Code:    CodeMalformedRecord,
			EventID: rec.EventID,
			Detail:  fmt.Sprintf("record %d: %v", rec.Index, rec.Err),
		})
	}

	checked := 0
	for _, e := range pack.Events {
		for _, problem := range evidence.ValidatePayload(e) {
			findings = append(findings, Finding{
				Code:    CodeMalformedRecord,
				EventID: e.Header.EventID,
				Detail:  problem,
			})
		}

		computed, err := evidence.ComputeEventHash(e)
		if err != nil {
			// Unknown algorithm or uncanonicalizable value: fail closed,
			// skip only this record's hash comparison.
			findings = append(findings, Finding{
				Code:    CodeMalformedRecord,
				EventID: e.Header.EventID,
				Detail:  err.Error(),
			})
			continue
		}
		checked++
		if !strings.EqualFold(computed, e.Header.EventHash) {
			findings = append(findings, Finding{
				Code:    CodeHashMismatch,
				EventID: e.Header.EventID,
				Detail:  fmt.Sprintf("stored %s, recomputed %s", e.Header.EventHash, computed),
			})
		}
	}

	return LayerResult{
		Name:     LayerEventIntegrity,
		Status:   layerStatus(findings),
		Findings: findings,
	}, checked
}

// checkChainContinuity walks the events in declared order verifying each
// PrevHash against the predecessor's stored EventHash, and checks timeline
// monotonicity. This pass is inherently sequential.
func checkChainContinuity(pack *evidence.Pack) (LayerResult, int) {
	events := pack.Events

	chainInUse := false
	for _, e := range events {
		if e.ChainInUse() {
			chainInUse = true
			break
		}
	}

	var findings []Finding
	links := 0

	if chainInUse {
		for i, e := range events {
			if i == 0 {
				if !strings.EqualFold(e.Header.PrevHash, evidence.ZeroHash) {
					findings = append(findings, Finding{
						Code:    CodeChainBreak,
						EventID: e.Header.EventID,
						Detail:  fmt.Sprintf("first event PrevHash must be the zero sentinel, got %s", e.Header.PrevHash),
					})
				}
				continue
			}
			expected := events[i-1].Header.EventHash
			if !strings.EqualFold(e.Header.PrevHash, expected) {
				findings = append(findings, Finding{
					Code:    CodeChainBreak,
					EventID: e.Header.EventID,
					Detail:  fmt.Sprintf("expected PrevHash %s, got %s", expected, e.Header.PrevHash),
				})
				continue
			}
			links++
		}
	}

	var prev time.Time
	for i, e := range events {
		ts, err := e.Timestamp()
		if err != nil {
			findings = append(findings, Finding{
				Code:    CodeMalformedRecord,
				EventID: e.Header.EventID,
				Detail:  fmt.Sprintf("unparseable timestamp: %v", err),
			})
			continue
		}
		if i > 0 && ts.Before(prev) {
			findings = append(findings, Finding{
				Code:    CodeTimelineDisorder,
				EventID: e.Header.EventID,
				Detail:  fmt.Sprintf("%s precedes prior event at %s", e.Header.TimestampISO, prev.Format(time.RFC3339Nano)),
			})
		}
		prev = ts
	}

	result := LayerResult{
		Name:     LayerChainContinuity,
		Status:   layerStatus(findings),
		Findings: findings,
	}
	if !chainInUse && len(findings) == 0 {
		// The policy layer decides whether the claimed tier allows an
		// unchained pack.
		result.Status = StatusSkipped
	}
	return result, links
}

// batchLeaves resolves the ordered leaf hashes for a batch. An empty member
// list means every non-meta event in declared order.
func batchLeaves(pack *evidence.Pack, batch *evidence.Batch) ([]string, []Finding) {
	if len(batch.EventIDs) == 0 {
		events := pack.TradingEvents()
		hashes := make([]string, len(events))
		for i, e := range events {
			hashes[i] = e.Header.EventHash
		}
		return hashes, nil
	}
	var findings []Finding
	hashes := make([]string, 0, len(batch.EventIDs))
	for _, id := range batch.EventIDs {
		e := pack.EventByID(id)
		if e == nil {
			findings = append(findings, Finding{
				Code:    CodeInclusionProofInvalid,
				EventID: id,
				Detail:  fmt.Sprintf("batch %s claims member %s which is not in the event set", batch.BatchID, id),
			})
			continue
		}
		hashes = append(hashes, e.Header.EventHash)
	}
	return hashes, findings
}

// checkBatches rebuilds each batch's Merkle tree from its leaf hashes and
// verifies every supplied inclusion proof independently.
func checkBatches(pack *evidence.Pack) (LayerResult, int, map[string]string) {
	var findings []Finding
	proofsVerified := 0
	computedRoots := make(map[string]string, len(pack.Batches))

	for i := range pack.Batches {
		batch := &pack.Batches[i]

		hashes, memberFindings := batchLeaves(pack, batch)
		findings = append(findings, memberFindings...)

		root, err := merkle.RootOverHex(hashes)
		if err != nil {
			findings = append(findings, Finding{
				Code:   CodeMerkleRootMismatch,
				Detail: fmt.Sprintf("batch %s: %v", batch.BatchID, err),
			})
			continue
		}
		computedRoots[batch.BatchID] = root

		if !strings.EqualFold(root, batch.MerkleRoot) {
			findings = append(findings, Finding{
				Code:   CodeMerkleRootMismatch,
				Detail: fmt.Sprintf("batch %s declares root %s, recomputed %s", batch.BatchID, batch.MerkleRoot, root),
			})
		}

		for _, proof := range batch.InclusionProofs {
			leaf, err := hexLeaf(proof.EventHash)
			if err != nil {
				findings = append(findings, Finding{
					Code:    CodeInclusionProofInvalid,
					EventID: proof.EventID,
					Detail:  err.Error(),
				})
				continue
			}
			against := proof.MerkleRoot
			if against == "" {
				against = batch.MerkleRoot
			}
			if !merkle.VerifyInclusion(leaf, proof.AuditPath, against) {
				findings = append(findings, Finding{
					Code:    CodeInclusionProofInvalid,
					EventID: proof.EventID,
					Detail:  fmt.Sprintf("audit path does not recombine to root %s", against),
				})
				continue
			}
			proofsVerified++
		}
	}

	return LayerResult{
		Name:     LayerBatchCompleteness,
		Status:   layerStatus(findings),
		Findings: findings,
	}, proofsVerified, computedRoots
}

// checkAnchors validates each anchor against the batch it attests to: root
// equality, no predating the attested events, and tier latency.
func checkAnchors(pack *evidence.Pack, anchors []evidence.Anchor, computedRoots map[string]string, rules policy.Rules) (LayerResult, int) {
	if len(anchors) == 0 {
		return LayerResult{
			Name:   LayerAnchorValidity,
			Status: StatusUnanchored,
			Findings: []Finding{{
				Code:   CodeAnchorUnreachable,
				Detail: "no anchor records present",
			}},
		}, 0
	}

	var findings []Finding
	validated := 0

	for i := range anchors {
		anchor := &anchors[i]
		ok := true

		batch := anchoredBatch(pack, anchor)
		if batch == nil {
			findings = append(findings, Finding{
				Code:   CodeAnchorRootMismatch,
				Detail: fmt.Sprintf("anchor %s references no known batch", anchor.AnchorID),
			})
			continue
		}

		root := computedRoots[batch.BatchID]
		if root == "" || !strings.EqualFold(anchor.MerkleRoot, root) {
			findings = append(findings, Finding{
				Code:   CodeAnchorRootMismatch,
				Detail: fmt.Sprintf("anchor %s commits root %s, batch %s computed %s", anchor.AnchorID, anchor.MerkleRoot, batch.BatchID, root),
			})
			ok = false
		}

		anchorTime, err := anchor.Timestamp()
		if err != nil {
			findings = append(findings, Finding{
				Code:   CodeMalformedRecord,
				Detail: fmt.Sprintf("anchor %s: unparseable timestamp: %v", anchor.AnchorID, err),
			})
			continue
		}

		closeTime, known := batchCloseTime(pack, batch)
		if known {
			if anchorTime.Before(closeTime) {
				findings = append(findings, Finding{
					Code: CodeAnchorTemporalViolation,
					Detail: fmt.Sprintf("anchor %s at %s predates latest attested event at %s",
						anchor.AnchorID, anchor.TimestampISO, closeTime.Format(time.RFC3339Nano)),
				})
				ok = false
			} else if latency := anchorTime.Sub(closeTime); rules.MaxAnchorLatency > 0 && latency > rules.MaxAnchorLatency {
				findings = append(findings, Finding{
					Code: CodeAnchorLatencyExceeded,
					Detail: fmt.Sprintf("anchor %s latency %s exceeds tier window %s",
						anchor.AnchorID, latency, rules.MaxAnchorLatency),
				})
				ok = false
			}
		}

		if ok {
			validated++
		}
	}

	return LayerResult{
		Name:     LayerAnchorValidity,
		Status:   layerStatus(findings),
		Findings: findings,
	}, validated
}

// anchoredBatch resolves which batch an anchor covers: by BatchID when
// declared, else the first batch.
func anchoredBatch(pack *evidence.Pack, anchor *evidence.Anchor) *evidence.Batch {
	if len(pack.Batches) == 0 {
		return nil
	}
	if anchor.BatchID == "" {
		return &pack.Batches[0]
	}
	for i := range pack.Batches {
		if pack.Batches[i].BatchID == anchor.BatchID {
			return &pack.Batches[i]
		}
	}
	return nil
}

// batchCloseTime is the latest timestamp among the batch's member events.
func batchCloseTime(pack *evidence.Pack, batch *evidence.Batch) (time.Time, bool) {
	var members []*evidence.Event
	if len(batch.EventIDs) == 0 {
		members = pack.TradingEvents()
	} else {
		for _, id := range batch.EventIDs {
			if e := pack.EventByID(id); e != nil {
				members = append(members, e)
			}
		}
	}
	var latest time.Time
	known := false
	for _, e := range members {
		ts, err := e.Timestamp()
		if err != nil {
			continue
		}
		if !known || ts.After(latest) {
			latest = ts
			known = true
		}
	}
	return latest, known
}

func hexLeaf(h string) ([]byte, error) {
	leaf, err := decodeHex(h)
	if err != nil {
		return nil, fmt.Errorf("event hash is not hex: %v", err)
	}
	return leaf, nil
}
