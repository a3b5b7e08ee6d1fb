// Package lnwallet provides the cryptographic primitives the hosted-channel
// protocol signs and verifies against: the LastCrossSignedState digest, the
// resize-proposal digest, and deterministic channel identifier derivation.
// It deliberately carries none of a funded channel's on-chain machinery
// (funding transactions, commitment scripts, anchor outputs): a hosted
// channel has no on-chain leg.
package lnwallet

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Signer signs and verifies hosted-channel protocol digests. ChannelMaster
// signs with a KeySigner over the node's own identity private key; tests
// use a KeySigner over a plain in-memory private key.
//
// Signatures are BIP340 Schnorr over the digest rather than DER-encoded
// ECDSA: every hosted-channel wire message carries a signature as a fixed
// 64-byte field (see lnwire.LastCrossSignedState.RemoteSigOfLocal and
// friends), which is exactly schnorr.Signature's native serialization and
// avoids a variable-length DER encoding that wouldn't fit a fixed field.
type Signer interface {
	// Sign returns a signature over digest, using the node's identity
	// key.
	Sign(digest [32]byte) (*schnorr.Signature, error)

	// PubKey returns the node's own identity public key.
	PubKey() *btcec.PublicKey
}

// KeySigner is the straightforward Signer backed by a single static
// private key, the shape used in tests and by a minimal standalone
// deployment.
type KeySigner struct {
	priv *btcec.PrivateKey
}

// NewKeySigner wraps priv as a Signer.
func NewKeySigner(priv *btcec.PrivateKey) *KeySigner {
	return &KeySigner{priv: priv}
}

func (k *KeySigner) Sign(digest [32]byte) (*schnorr.Signature, error) {
	return schnorr.Sign(k.priv, digest[:])
}

func (k *KeySigner) PubKey() *btcec.PublicKey {
	return k.priv.PubKey()
}

// VerifyDigest checks sig against digest under pubKey.
func VerifyDigest(pubKey *btcec.PublicKey, digest [32]byte, sig *schnorr.Signature) bool {
	return sig.Verify(digest[:], pubKey)
}

// ParseSignature decodes a wire-format 64-byte signature field.
func ParseSignature(sig [64]byte) (*schnorr.Signature, error) {
	return schnorr.ParseSignature(sig[:])
}

// SerializeSignature packs sig into its wire-format 64-byte field.
func SerializeSignature(sig *schnorr.Signature) [64]byte {
	var out [64]byte
	copy(out[:], sig.Serialize())
	return out
}

// DeriveChannelID deterministically derives a hosted channel's ChannelID
// from the two parties' compressed identity pubkeys, sorted so both sides
// compute the same value regardless of who is host or client. Mirrors the
// role ChannelPoint-hashing plays for a funded channel's ChannelID, with no
// funding outpoint to hash since hosted channels don't have one.
func DeriveChannelID(hostPubKey, clientPubKey [33]byte) [32]byte {
	var buf [66]byte
	if lexLess(hostPubKey[:], clientPubKey[:]) {
		copy(buf[:33], hostPubKey[:])
		copy(buf[33:], clientPubKey[:])
	} else {
		copy(buf[:33], clientPubKey[:])
		copy(buf[33:], hostPubKey[:])
	}
	return chainhash.HashH(buf[:])
}

func lexLess(a, b []byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
