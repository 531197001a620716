package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainState    = "waypoint/state/v1"
	DomainMutation = "waypoint/mutation/v1"
	DomainTrace    = "waypoint/trace/v1"
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

// StateHash fingerprints a state tree. Equal trees hash equally regardless
// of map iteration order.
func StateHash(state any) (string, error) {
	canonical, err := MarshalCanonical(state)
	if err != nil {
		return "", fmt.Errorf("StateHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainState, canonical), nil
}

// MutationID computes the content-addressed ID of a journaled mutation.
// The same commit at the same position of a session always gets the same
// ID, which makes journal writes idempotent across replays.
func MutationID(session string, seq int64, typ string, payload any) (string, error) {
	canonical, err := MarshalCanonical(map[string]any{
		"session": session,
		"seq":     seq,
		"type":    typ,
		"payload": payload,
	})
	if err != nil {
		return "", fmt.Errorf("MutationID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainMutation, canonical), nil
}

// TraceHash fingerprints a recorded trace.
func TraceHash(trace any) (string, error) {
	canonical, err := MarshalCanonical(trace)
	if err != nil {
		return "", fmt.Errorf("TraceHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainTrace, canonical), nil
}

// MustStateHash is like StateHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustStateHash(state any) string {
	h, err := StateHash(state)
	if err != nil {
		panic(err)
	}
	return h
}

// MustMutationID is like MutationID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustMutationID(session string, seq int64, typ string, payload any) string {
	id, err := MutationID(session, seq, typ, payload)
	if err != nil {
		panic(err)
	}
	return id
}
