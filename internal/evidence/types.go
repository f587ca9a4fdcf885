// Package evidence defines the audit-trail evidence pack data model and
// loads packs from their on-disk form. Everything here is produced
// externally; the engine only reads and recomputes.
package evidence

import (
	"strings"
	"time"

	"vcp_verifier/internal/merkle"
)

// ZeroHash is the sentinel PrevHash of the first event in a chain.
const ZeroHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Meta event types carry batch/anchor governance records and are excluded
// from the Merkle leaf set.
const (
	TypeBatchEvent  = "VCP_BATCH"
	TypeAnchorEvent = "VCP_ANCHOR"
)

// Anchor types, ordered by external verifiability.
const (
	AnchorLocalFile = "local_file"
	AnchorTSA       = "tsa"
	AnchorLedger    = "ledger"
)

// RegistrationPolicy identifies who issued the policy registration.
type RegistrationPolicy struct {
	Issuer string `json:"Issuer"`
}

// VerificationDepth declares which layers the producer committed to.
// Values are "required", "optional" or "disabled".
type VerificationDepth struct {
	HashChainValidation    string `json:"HashChainValidation"`
	MerkleProofRequired    string `json:"MerkleProofRequired"`
	ExternalAnchorRequired string `json:"ExternalAnchorRequired"`
}

// PolicyIdentification is the per-event (and pack-global) policy metadata
// block.
type PolicyIdentification struct {
	PolicyID           string             `json:"PolicyID"`
	ConformanceTier    string             `json:"ConformanceTier"`
	RegistrationPolicy RegistrationPolicy `json:"RegistrationPolicy"`
	VerificationDepth  *VerificationDepth `json:"VerificationDepth,omitempty"`
}

// Header is the hashed envelope of every event.
type Header struct {
	EventID              string                `json:"EventID"`
	EventType            string                `json:"EventType"`
	TimestampISO         string                `json:"TimestampISO"`
	TimestampInt         int64                 `json:"TimestampInt"`
	EventHash            string                `json:"EventHash"`
	PrevHash             string                `json:"PrevHash"`
	HashAlgo             string                `json:"HashAlgo"`
	ClockSync            string                `json:"ClockSync,omitempty"`
	PolicyIdentification *PolicyIdentification `json:"PolicyIdentification,omitempty"`
}

// Event pairs the typed header with the raw decoded object the hash was
// computed over. Raw preserves JSON number literals (json.Number) so that
// recomputed hashes reproduce the producer's bytes exactly.
type Event struct {
	Header Header
	Raw    map[string]interface{}
}

// Payload returns the event object minus its Header: the domain fields the
// second half of the event hash covers.
func (e *Event) Payload() map[string]interface{} {
	out := make(map[string]interface{}, len(e.Raw))
	for k, v := range e.Raw {
		if k == "Header" {
			continue
		}
		out[k] = v
	}
	return out
}

// Timestamp parses the header's ISO timestamp.
func (e *Event) Timestamp() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, e.Header.TimestampISO)
}

// IsMeta reports whether the event is a batch/anchor governance record
// rather than a trading event.
func (e *Event) IsMeta() bool {
	switch e.Header.EventType {
	case TypeBatchEvent, TypeAnchorEvent:
		return true
	}
	return false
}

// ChainInUse reports whether the hash chain is populated: an event carries a
// link when PrevHash is non-empty.
func (e *Event) ChainInUse() bool {
	return strings.TrimSpace(e.Header.PrevHash) != ""
}

// InclusionProof is a standalone membership certificate for one event.
type InclusionProof struct {
	EventID    string             `json:"EventID"`
	EventHash  string             `json:"EventHash"`
	AuditPath  []merkle.ProofStep `json:"AuditPath"`
	MerkleRoot string             `json:"MerkleRoot"`
}

// Batch aggregates an ordered set of events under one Merkle root.
// An empty EventIDs list means the batch covers every non-meta event in the
// pack, in declared order.
type Batch struct {
	BatchID         string           `json:"BatchID"`
	MerkleRoot      string           `json:"MerkleRoot"`
	EventIDs        []string         `json:"EventIDs,omitempty"`
	InclusionProofs []InclusionProof `json:"InclusionProofs,omitempty"`
}

// Anchor is an external attestation of a batch root at a point in time.
type Anchor struct {
	AnchorID     string `json:"AnchorID"`
	BatchID      string `json:"BatchID,omitempty"`
	MerkleRoot   string `json:"MerkleRoot"`
	TimestampISO string `json:"TimestampISO"`
	Type         string `json:"Type"`
	Target       string `json:"Target,omitempty"`
}

// Timestamp parses the anchor's ISO timestamp.
func (a *Anchor) Timestamp() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, a.TimestampISO)
}

// Metadata is the pack-level descriptor from events.json.
type Metadata struct {
	Specification   string `json:"specification"`
	Generator       string `json:"generator"`
	ConformanceTier string `json:"conformance_tier"`
	PolicyID        string `json:"policy_id"`
	Protocol        string `json:"protocol,omitempty"`
}

// RecordError reports a single structurally malformed record that was
// skipped during loading while the rest of the run completed.
type RecordError struct {
	Index   int
	EventID string
	Err     error
}

// Pack is the immutable in-memory snapshot every checking layer reads.
type Pack struct {
	Dir       string
	Metadata  Metadata
	Policy    *PolicyIdentification
	Events    []*Event
	Batches   []Batch
	Anchors   []Anchor
	Malformed []RecordError
}

// EventByID looks an event up by its header ID.
func (p *Pack) EventByID(id string) *Event {
	for _, e := range p.Events {
		if e.Header.EventID == id {
			return e
		}
	}
	return nil
}

// TradingEvents returns the non-meta events in declared order.
func (p *Pack) TradingEvents() []*Event {
	out := make([]*Event, 0, len(p.Events))
	for _, e := range p.Events {
		if !e.IsMeta() {
			out = append(out, e)
		}
	}
	return out
}
