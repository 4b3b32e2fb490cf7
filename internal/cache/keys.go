// Package cache provides the content-addressed result cache in front of
// model calls: deterministic cache-key derivation from normalized inputs,
// and a Store abstraction with Redis and in-memory implementations.
//
// Key format: aigw:<version>:<prefix>:<sha256hex>. The version segment is
// part of every key, so changing the normalization or serialization scheme
// below invalidates all prior entries without a manual flush; bump
// keyVersion whenever the canonical form changes.
package cache

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const (
	keyNamespace = "aigw"
	keyVersion   = "v1"
)

// DeriveKey produces a stable cache key from a prefix and an ordered list of
// input values. It is a pure function with no failure mode: values that
// cannot be serialized are stringified instead.
//
// Two calls with logically equivalent inputs yield the same key: strings are
// trimmed, NFKC-normalized, and lowercased; array order is irrelevant;
// object key order is irrelevant; nil pointers and JSON nulls collapse to a
// single null marker.
func DeriveKey(prefix string, values ...any) string {
	normed := make([]any, len(values))
	for i, v := range values {
		normed[i] = normalizeValue(v)
	}
	payload, err := json.Marshal(normed)
	if err != nil {
		// Unreachable for values produced by normalizeValue, kept as a
		// stringified fallback so DeriveKey can never fail.
		payload = []byte(fmt.Sprint(normed))
	}
	sum := sha256.Sum256(payload)
	return fmt.Sprintf("%s:%s:%s:%x", keyNamespace, keyVersion, prefix, sum)
}

// normalizeValue maps an arbitrary Go value onto its canonical form.
// Arbitrary structs are routed through a JSON round-trip so that struct,
// map, and pointer inputs all land in the same representation before
// normalization.
func normalizeValue(v any) any {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return canonString(fmt.Sprint(v))
	}
	var decoded any
	if err := json.Unmarshal(b, &decoded); err != nil {
		return canonString(fmt.Sprint(v))
	}
	return normalizeDecoded(decoded)
}

// normalizeDecoded canonicalizes a decoded JSON value. Normalization is
// idempotent and order-independent for arrays and objects.
func normalizeDecoded(v any) any {
	switch t := v.(type) {
	case string:
		return canonString(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = normalizeDecoded(t[i])
		}
		// Sort by canonical serialization so ["b","a"] and ["a","b"]
		// derive the same key.
		sort.SliceStable(out, func(i, j int) bool {
			return canonical(out[i]) < canonical(out[j])
		})
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeDecoded(val)
		}
		// encoding/json marshals map keys in sorted order, which gives
		// the lexicographic key ordering for free.
		return out
	default:
		// Numbers, booleans, and nil are already canonical.
		return t
	}
}

func canonString(s string) string {
	return strings.ToLower(norm.NFKC.String(strings.TrimSpace(s)))
}

func canonical(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
