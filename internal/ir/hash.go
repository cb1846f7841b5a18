package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity. Version suffix enables
// future algorithm migration.
const (
	DomainProgram = "kinet/program/v1"
	DomainPatch   = "kinet/patch/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null byte prevents
// domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ProgramHash computes the content-addressed id of a compiled program.
// Two compiles of the same patch must produce the same hash; the
// determinism suite pins this.
func (p *CompiledProgram) ProgramHash() (string, error) {
	m, err := CanonicalMap(p)
	if err != nil {
		return "", fmt.Errorf("program hash: %w", err)
	}
	canonical, err := MarshalCanonical(m)
	if err != nil {
		return "", fmt.Errorf("program hash: %w", err)
	}
	return hashWithDomain(DomainProgram, canonical), nil
}

// HashCanonical hashes arbitrary canonicalizable data under a domain.
// Used by the compile cache to key entries by patch content.
func HashCanonical(domain string, v any) (string, error) {
	m, err := CanonicalMap(v)
	if err != nil {
		return "", err
	}
	canonical, err := MarshalCanonical(m)
	if err != nil {
		return "", err
	}
	return hashWithDomain(domain, canonical), nil
}
