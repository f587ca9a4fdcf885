package evidence

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// payloadSchema is the required-field set for one event type. Field names
// are dotted paths into the payload (event object minus Header). Decimal
// fields must additionally parse as positive fixed-precision decimals.
type payloadSchema struct {
	required []string
	decimals []string
}

var payloadSchemas = map[string]payloadSchema{
	"ORDER_NEW": {
		required: []string{"OrderID", "Symbol", "Side", "Quantity", "Price"},
		decimals: []string{"Quantity", "Price"},
	},
	"ORDER_CANCEL": {
		required: []string{"OrderID", "Symbol"},
	},
	"EXECUTION": {
		required: []string{"TradeID", "OrderID", "Symbol", "Side", "Quantity", "Price"},
		decimals: []string{"Quantity", "Price"},
	},
	"SIGNAL": {
		required: []string{"SignalID", "Name", "Value"},
	},
	TypeBatchEvent: {
		required: []string{"Governance.BatchID", "Governance.MerkleRoot"},
	},
	TypeAnchorEvent: {
		required: []string{"Governance.AnchorID", "Governance.AnchorTarget"},
	},
}

// ValidatePayload checks the event's payload against the schema for its
// declared type. Unknown event types fail closed. Each problem is returned
// as one message; an empty slice means the payload conforms.
func ValidatePayload(e *Event) []string {
	schema, ok := payloadSchemas[e.Header.EventType]
	if !ok {
		return []string{fmt.Sprintf("unknown event type %q", e.Header.EventType)}
	}

	payload := e.Payload()
	var problems []string
	for _, field := range schema.required {
		if _, ok := resolveField(payload, field); !ok {
			problems = append(problems, fmt.Sprintf("missing required field %s", field))
		}
	}
	for _, field := range schema.decimals {
		val, ok := resolveField(payload, field)
		if !ok {
			continue // already reported as missing
		}
		d, err := parseDecimal(val)
		if err != nil {
			problems = append(problems, fmt.Sprintf("field %s is not a decimal: %v", field, err))
			continue
		}
		if d.Sign() <= 0 {
			problems = append(problems, fmt.Sprintf("field %s must be positive, got %s", field, d))
		}
	}
	return problems
}

// resolveField walks a dotted path through nested payload objects.
func resolveField(payload map[string]interface{}, path string) (interface{}, bool) {
	var current interface{} = payload
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func parseDecimal(v interface{}) (decimal.Decimal, error) {
	switch val := v.(type) {
	case json.Number:
		return decimal.NewFromString(val.String())
	case string:
		return decimal.NewFromString(val)
	case float64:
		return decimal.NewFromFloat(val), nil
	default:
		return decimal.Decimal{}, fmt.Errorf("unsupported type %T", v)
	}
}
