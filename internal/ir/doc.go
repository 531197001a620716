// Package ir is the interchange representation for values that leave the
// process: journal payloads, state fingerprints and golden traces.
//
// Everything that is hashed or persisted goes through MarshalCanonical so
// equal values always produce equal bytes. ir imports nothing internal.
package ir
