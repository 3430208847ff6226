package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix allows the algorithm to change later.
const (
	DomainProduction = "prodsys/production/v1"
	DomainTrace      = "prodsys/trace/v1"
)

// hashWithDomain computes SHA-256 with domain separation:
// SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint computes the content address of a production: its type,
// support declaration, and alpha-renamed conditions and actions. The name
// and doc string are excluded, so two structurally identical rules share a
// fingerprint.
func Fingerprint(p *Production) (string, error) {
	lhs, rhs := canonicalForm(p)
	obj := map[string]any{
		"type":    p.Type.String(),
		"support": p.Support.String(),
		"lhs":     lhs,
		"rhs":     rhs,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("Fingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainProduction, canonical), nil
}

// TraceHash computes the content address of a canonical trace document.
func TraceHash(doc map[string]any) (string, error) {
	canonical, err := MarshalCanonical(doc)
	if err != nil {
		return "", fmt.Errorf("TraceHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainTrace, canonical), nil
}
