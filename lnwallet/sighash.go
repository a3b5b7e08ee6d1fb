package lnwallet

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/lightninglabs/hosted-channels/lnwire"
)

// HostedSigHash computes the digest both parties sign over a
// LastCrossSignedState: SHA256 of the fixed-layout buffer returned by
// lcss.SigMaterial(). A single SHA256 rather than Bitcoin's usual
// double-SHA256, since this digest never anchors to a block header.
func HostedSigHash(lcss *lnwire.LastCrossSignedState) ([32]byte, error) {
	material, err := lcss.SigMaterial()
	if err != nil {
		return [32]byte{}, err
	}
	return chainhash.HashH(material), nil
}

// ResizeSigHash computes the digest a client signs when proposing a
// ResizeChannel.
func ResizeSigHash(msg *lnwire.ResizeChannel) ([32]byte, error) {
	material, err := msg.SigMaterial()
	if err != nil {
		return [32]byte{}, err
	}
	return chainhash.HashH(material), nil
}
