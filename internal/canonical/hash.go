package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// AlgoSHA256 is the only digest family the engine supports. Records
// declaring anything else fail closed.
const AlgoSHA256 = "SHA-256"

var ErrUnknownHashAlgo = errors.New("unknown hash algorithm")

// SumHex digests the concatenation of parts with the named algorithm and
// returns lowercase hex.
func SumHex(algo string, parts ...[]byte) (string, error) {
	switch strings.ToUpper(strings.ReplaceAll(algo, "_", "-")) {
	case AlgoSHA256, "SHA256":
		h := sha256.New()
		for _, p := range parts {
			h.Write(p)
		}
		return hex.EncodeToString(h.Sum(nil)), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownHashAlgo, algo)
	}
}
