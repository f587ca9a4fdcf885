package verify_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"vcp_verifier/internal/evidence/evidencetest"
	"vcp_verifier/internal/verify"
)

func TestRenderPass(t *testing.T) {
	b := evidencetest.New()
	b.AddOrders(3)
	report := verify.New(verify.Config{}).Verify(context.Background(), b.Pack())

	var buf bytes.Buffer
	verify.Render(&buf, report)
	out := buf.String()

	assert.Contains(t, out, "CRYPTOGRAPHICALLY VERIFIED")
	assert.Contains(t, out, "Layer 2 - Merkle Batch Verification: PASS")
	assert.Contains(t, out, "ORDER_NEW: 3")
	assert.Contains(t, out, "external verifiability: reduced")
}

func TestRenderFailListsFindings(t *testing.T) {
	b := evidencetest.New()
	b.AddOrders(3)
	pack := b.Pack()
	bogus := "deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef"
	pack.Events[1].Header.EventHash = bogus
	pack.Events[1].Raw["Header"].(map[string]interface{})["EventHash"] = bogus

	report := verify.New(verify.Config{}).Verify(context.Background(), pack)

	var buf bytes.Buffer
	verify.Render(&buf, report)
	out := buf.String()

	assert.Contains(t, out, "VERIFICATION FAILED")
	assert.Contains(t, out, "HashMismatch")
	assert.Contains(t, out, "evt-002")
}
