// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

// Package key models the node's committee-voting key pair. The real BLS
// signature scheme is a cryptographic primitive explicitly out of this
// component's scope (§1); Keys only carries the public key bytes the
// rest of the engine needs to identify "us" inside a committee, plus a
// pluggable Signer used by tests and by collaborators that do own real
// BLS keys.
package key

import "golang.org/x/crypto/ed25519"

// Keys is the node's consensus identity: a BLS public key (opaque bytes,
// as produced by the out-of-scope crypto collaborator) and a Signer used
// to produce signatures over step votes.
type Keys struct {
	BLSPubKey []byte
	Signer    Signer
}

// Signer signs a message on behalf of the local provisioner. Production
// wiring backs this with the real BLS secret key; tests back it with an
// Ed25519 stand-in, matching the way events/reduction.go in the teacher
// imports ed25519 for its own event-signing fixtures.
type Signer interface {
	Sign(msg []byte) ([]byte, error)
}

// EdSigner is a Signer backed by an Ed25519 private key. It exists for
// tests and local devnets; it never backs a production BLS-keyed node.
type EdSigner struct {
	Priv ed25519.PrivateKey
}

// NewEdSigner derives a deterministic Ed25519 signer from seed, handy for
// reproducible test fixtures.
func NewEdSigner(seed []byte) *EdSigner {
	padded := make([]byte, ed25519.SeedSize)
	copy(padded, seed)

	return &EdSigner{Priv: ed25519.NewKeyFromSeed(padded)}
}

// Sign implements Signer.
func (s *EdSigner) Sign(msg []byte) ([]byte, error) {
	return ed25519.Sign(s.Priv, msg), nil
}

// PubKeyBytes of the underlying key pair.
func (s *EdSigner) PubKeyBytes() []byte {
	return s.Priv.Public().(ed25519.PublicKey)
}

// Verifier checks a signature produced by a Signer's counterpart public
// key. Production wiring backs this with the real BLS verifier; tests
// use EdVerifier.
type Verifier interface {
	Verify(pubKey, msg, sig []byte) bool
}

// EdVerifier is a Verifier over Ed25519 public keys, the counterpart to
// EdSigner.
type EdVerifier struct{}

// Verify implements Verifier.
func (EdVerifier) Verify(pubKey, msg, sig []byte) bool {
	if len(pubKey) != ed25519.PublicKeySize {
		return false
	}

	return ed25519.Verify(ed25519.PublicKey(pubKey), msg, sig)
}
