// Package evidencetest builds well-formed fixture packs for tests. This is
// the only place in the module that constructs events; the engine itself
// never creates evidence.
package evidencetest

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"vcp_verifier/internal/evidence"
	"vcp_verifier/internal/merkle"
)

const (
	layoutMillis = "2006-01-02T15:04:05.000Z07:00"
	layoutMicros = "2006-01-02T15:04:05.000000Z07:00"
)

// Builder assembles a consistent evidence pack: hashed and chained events,
// one Merkle batch with inclusion proofs, and one anchor.
type Builder struct {
	Tier         string
	PolicyID     string
	Issuer       string
	ClockSync    string
	WithChain    bool
	GoldLayout   bool
	AnchorType   string
	AnchorOffset time.Duration

	base   time.Time
	prev   string
	events []*evidence.Event
}

// New returns a builder producing a Silver-conformant pack.
func New() *Builder {
	return &Builder{
		Tier:         "silver",
		PolicyID:     "vcp-policy-0001",
		Issuer:       "test-registry",
		ClockSync:    "ntp",
		WithChain:    true,
		AnchorType:   evidence.AnchorLocalFile,
		AnchorOffset: time.Hour,
		base:         time.Date(2025, 3, 7, 9, 30, 0, 0, time.UTC),
		prev:         evidence.ZeroHash,
	}
}

// Policy is the pack-global PolicyIdentification block.
func (b *Builder) Policy() *evidence.PolicyIdentification {
	return &evidence.PolicyIdentification{
		PolicyID:           b.PolicyID,
		ConformanceTier:    b.Tier,
		RegistrationPolicy: evidence.RegistrationPolicy{Issuer: b.Issuer},
		VerificationDepth: &evidence.VerificationDepth{
			HashChainValidation:    "required",
			MerkleProofRequired:    "required",
			ExternalAnchorRequired: "required",
		},
	}
}

// AddEvent appends an event of the given type, one second after the
// previous one, computing its hash and chain link.
func (b *Builder) AddEvent(eventType string, payload map[string]interface{}) *evidence.Event {
	seq := len(b.events) + 1
	ts := b.base.Add(time.Duration(seq) * time.Second)
	layout := layoutMillis
	if b.GoldLayout {
		layout = layoutMicros
	}

	prev := ""
	if b.WithChain {
		prev = b.prev
	}

	header := map[string]interface{}{
		"EventID":              fmt.Sprintf("evt-%03d", seq),
		"EventType":            eventType,
		"TimestampISO":         ts.Format(layout),
		"TimestampInt":         json.Number(strconv.FormatInt(ts.UnixNano(), 10)),
		"PrevHash":             prev,
		"HashAlgo":             "SHA-256",
		"ClockSync":            b.ClockSync,
		"PolicyIdentification": b.Policy(),
	}
	raw := map[string]interface{}{"Header": header}
	for k, v := range payload {
		raw[k] = v
	}

	ev := &evidence.Event{
		Header: evidence.Header{
			EventID:              header["EventID"].(string),
			EventType:            eventType,
			TimestampISO:         header["TimestampISO"].(string),
			TimestampInt:         ts.UnixNano(),
			PrevHash:             prev,
			HashAlgo:             "SHA-256",
			ClockSync:            b.ClockSync,
			PolicyIdentification: b.Policy(),
		},
		Raw: raw,
	}

	hash, err := evidence.ComputeEventHash(ev)
	if err != nil {
		panic(fmt.Sprintf("evidencetest: hash fixture event: %v", err))
	}
	header["EventHash"] = hash
	ev.Header.EventHash = hash

	b.prev = hash
	b.events = append(b.events, ev)
	return ev
}

// AddOrders appends n well-formed ORDER_NEW events.
func (b *Builder) AddOrders(n int) {
	for i := 0; i < n; i++ {
		b.AddEvent("ORDER_NEW", OrderPayload(i))
	}
}

// OrderPayload is a conforming ORDER_NEW payload.
func OrderPayload(i int) map[string]interface{} {
	return map[string]interface{}{
		"OrderID":  fmt.Sprintf("ord-%04d", i),
		"Symbol":   "EURUSD",
		"Side":     "buy",
		"Quantity": json.Number("10.5000"),
		"Price":    json.Number("1.08450"),
	}
}

// Pack assembles the batch, proofs and anchor over the events added so far.
func (b *Builder) Pack() *evidence.Pack {
	// The batch covers trading events only; meta events never become leaves.
	var members []*evidence.Event
	for _, e := range b.events {
		if !e.IsMeta() {
			members = append(members, e)
		}
	}
	leaves := make([][]byte, len(members))
	for i, e := range members {
		leaf, err := hex.DecodeString(e.Header.EventHash)
		if err != nil {
			panic(fmt.Sprintf("evidencetest: fixture hash not hex: %v", err))
		}
		leaves[i] = leaf
	}
	tree := merkle.New(leaves)
	root := tree.RootHex()

	batch := evidence.Batch{
		BatchID:    "batch-001",
		MerkleRoot: root,
	}
	for i, e := range members {
		path, err := tree.AuditPath(i)
		if err != nil {
			panic(fmt.Sprintf("evidencetest: audit path: %v", err))
		}
		batch.InclusionProofs = append(batch.InclusionProofs, evidence.InclusionProof{
			EventID:    e.Header.EventID,
			EventHash:  e.Header.EventHash,
			AuditPath:  path,
			MerkleRoot: root,
		})
	}

	var anchors []evidence.Anchor
	if b.AnchorType != "" && len(b.events) > 0 {
		last, _ := b.events[len(b.events)-1].Timestamp()
		anchors = append(anchors, evidence.Anchor{
			AnchorID:     "anchor-001",
			BatchID:      batch.BatchID,
			MerkleRoot:   root,
			TimestampISO: last.Add(b.AnchorOffset).Format(layoutMillis),
			Type:         b.AnchorType,
			Target:       "file://anchors/anchor-001.json",
		})
	}

	return &evidence.Pack{
		Metadata: evidence.Metadata{
			Specification:   "VCP v1.1",
			Generator:       "evidencetest",
			ConformanceTier: b.Tier,
			PolicyID:        b.PolicyID,
		},
		Policy:  b.Policy(),
		Events:  b.events,
		Batches: []evidence.Batch{batch},
		Anchors: anchors,
	}
}

// WritePack writes the pack's three files into dir.
func (b *Builder) WritePack(dir string) error {
	pack := b.Pack()

	rawEvents := make([]map[string]interface{}, len(pack.Events))
	for i, e := range pack.Events {
		rawEvents[i] = e.Raw
	}
	if err := writeJSON(filepath.Join(dir, evidence.EventsFile), map[string]interface{}{
		"metadata":              pack.Metadata,
		"policy_identification": pack.Policy,
		"events":                rawEvents,
	}); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, evidence.BatchesFile), map[string]interface{}{
		"batches": pack.Batches,
	}); err != nil {
		return err
	}
	return writeJSON(filepath.Join(dir, evidence.AnchorsFile), map[string]interface{}{
		"anchors": pack.Anchors,
	})
}

func writeJSON(path string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
