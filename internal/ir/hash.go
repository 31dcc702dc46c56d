package ir

import (
	"crypto/sha256"
	"encoding/hex"
)

// Domain prefixes for content digests.
// Version suffix enables future algorithm migration.
const (
	DomainStub     = "rbisynth/stub/v1"
	DomainSnapshot = "rbisynth/snapshot/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Digest returns the content digest of serialized stub text.
// Equal text always yields an equal digest, so two runs over the same
// snapshot can be compared by digest alone.
func Digest(text string) string {
	return hashWithDomain(DomainStub, []byte(text))
}

// TreeDigest serializes t with sigil and returns its digest.
func TreeDigest(t *Tree, sigil Sigil) string {
	return Digest(Serialize(t, sigil))
}

// SnapshotDigest identifies the runtime snapshot a run read.
func SnapshotDigest(data []byte) string {
	return hashWithDomain(DomainSnapshot, data)
}
