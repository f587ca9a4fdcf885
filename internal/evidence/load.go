package evidence

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Pack file names, owned by external producers.
const (
	EventsFile  = "events.json"
	BatchesFile = "batches.json"
	AnchorsFile = "anchors.json"
)

type eventsDocument struct {
	Metadata Metadata              `json:"metadata"`
	Policy   *PolicyIdentification `json:"policy_identification"`
	Events   []json.RawMessage     `json:"events"`
}

type batchesDocument struct {
	Batches []Batch `json:"batches"`
}

type anchorsDocument struct {
	Anchors []Anchor `json:"anchors"`
}

// LoadPack reads an evidence pack directory. A missing or unparseable file
// fails the load; a single malformed event record is collected in
// Pack.Malformed and skipped so the rest of the run completes.
func LoadPack(dir string) (*Pack, error) {
	pack := &Pack{Dir: dir}

	var events eventsDocument
	if err := readJSON(filepath.Join(dir, EventsFile), &events); err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	pack.Metadata = events.Metadata
	pack.Policy = events.Policy

	for i, raw := range events.Events {
		ev, err := decodeEvent(raw)
		if err != nil {
			pack.Malformed = append(pack.Malformed, RecordError{
				Index:   i,
				EventID: peekEventID(raw),
				Err:     err,
			})
			continue
		}
		pack.Events = append(pack.Events, ev)
	}

	var batches batchesDocument
	if err := readJSON(filepath.Join(dir, BatchesFile), &batches); err != nil {
		return nil, fmt.Errorf("load batches: %w", err)
	}
	pack.Batches = batches.Batches

	var anchors anchorsDocument
	if err := readJSON(filepath.Join(dir, AnchorsFile), &anchors); err != nil {
		return nil, fmt.Errorf("load anchors: %w", err)
	}
	pack.Anchors = anchors.Anchors

	return pack, nil
}

func decodeEvent(raw json.RawMessage) (*Event, error) {
	// Two decodes of the same bytes: a typed header for the checkers and a
	// number-literal-preserving map for hash recomputation.
	var envelope struct {
		Header Header `json:"Header"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}
	if envelope.Header.EventID == "" {
		return nil, fmt.Errorf("event has no EventID")
	}
	if envelope.Header.EventType == "" {
		return nil, fmt.Errorf("event %s has no EventType", envelope.Header.EventID)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var obj map[string]interface{}
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if _, ok := obj["Header"].(map[string]interface{}); !ok {
		return nil, fmt.Errorf("event %s Header is not an object", envelope.Header.EventID)
	}
	return &Event{Header: envelope.Header, Raw: obj}, nil
}

func peekEventID(raw json.RawMessage) string {
	var envelope struct {
		Header struct {
			EventID string `json:"EventID"`
		} `json:"Header"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return ""
	}
	return envelope.Header.EventID
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}
