package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"vcp_verifier/internal/evidence"
)

// AnchorSource supplies anchor records from somewhere other than the pack
// itself. Implementations doing I/O must honor the context; the engine
// treats a fetch failure as "unanchored", never as a crash.
type AnchorSource interface {
	Fetch(ctx context.Context) ([]evidence.Anchor, error)
}

// StaticAnchors is an in-memory anchor source.
type StaticAnchors []evidence.Anchor

func (s StaticAnchors) Fetch(context.Context) ([]evidence.Anchor, error) {
	return s, nil
}

// FileAnchorSource reads an anchors.json-shaped attestation file outside
// the pack directory.
type FileAnchorSource struct {
	Path string
}

func (f FileAnchorSource) Fetch(ctx context.Context) ([]evidence.Anchor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read anchors: %w", err)
	}
	var doc struct {
		Anchors []evidence.Anchor `json:"anchors"`
	}
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode anchors: %w", err)
	}
	return doc.Anchors, nil
}
