package evidence

import (
	"fmt"

	"vcp_verifier/internal/canonical"
)

// ComputeEventHash recomputes the event's self-hash:
// hash(canonical(Header without EventHash) || canonical(event without Header))
// using the algorithm the header declares. Unknown algorithms fail closed.
func ComputeEventHash(e *Event) (string, error) {
	headerRaw, ok := e.Raw["Header"].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("%w: event %s has no Header object", canonical.ErrMalformedRecord, e.Header.EventID)
	}
	header := make(map[string]interface{}, len(headerRaw))
	for k, v := range headerRaw {
		if k == "EventHash" {
			continue
		}
		header[k] = v
	}

	headerBytes, err := canonical.Marshal(header)
	if err != nil {
		return "", err
	}
	payloadBytes, err := canonical.Marshal(e.Payload())
	if err != nil {
		return "", err
	}
	return canonical.SumHex(e.Header.HashAlgo, headerBytes, payloadBytes)
}
