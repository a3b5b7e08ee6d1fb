// Package node defines NodeInterface, the narrow contract the hosted-
// channel core requires from the underlying Lightning node: sending and
// receiving custom peer messages, intercepting HTLCs before the node's own
// switch would forward them, decrypting onions, and answering chain-tip
// queries. Everything in this package is a driver boundary; the
// core never reaches past it into the node's own wallet, graph, or peer
// transport.
package node

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/lightninglabs/hosted-channels/lnwire"
)

// HtlcAcceptRequest describes an HTLC the node's switch is about to route
// across a hosted channel link, handed to the handler registered with
// InterceptHTLC.
type HtlcAcceptRequest struct {
	// Incoming identifies the HTLC on its incoming link.
	Incoming lnwire.ShortChannelID

	IncomingHtlcID uint64

	PaymentHash [32]byte

	// OnionBlob is the still-encrypted Sphinx packet; the handler must
	// call DecryptOnion before it can decide how to route the HTLC
	// onward.
	OnionBlob [lnwire.OnionPacketSize]byte

	IncomingAmount lnwire.MilliSatoshi

	IncomingCltvExpiry uint32
}

// InterceptAction is the handler's verdict on an HtlcAcceptRequest: resolve
// it immediately (this node is the final recipient, or already knows the
// preimage), continue it onward to NextShortChanID, or reject it with a
// failure.
type InterceptAction struct {
	Resolve  bool
	Preimage [32]byte

	Continue        bool
	NextShortChanID lnwire.ShortChannelID
	NextAmount      lnwire.MilliSatoshi
	NextCltvExpiry  uint32
	NextOnion       [lnwire.OnionPacketSize]byte

	// Pending means the handler has taken ownership of this HTLC and
	// will deliver its verdict later via ResolveHeldHTLC, because
	// resolving it depends on another hosted channel's own sign-exchange
	// completing rather than anything decidable inline.
	Pending bool

	// Reject, when none of Resolve, Continue, or Pending is set, is the
	// failure reason reported upstream.
	Reject []byte
}

// DecryptedOnion is the result of peeling one layer off a Sphinx packet:
// either routing instructions for the next hop, or, with FinalHop set, the
// news that this node is the final hop (NextShortChanID is then the zero
// value). A malformed onion is reported as DecryptOnion's error instead.
type DecryptedOnion struct {
	NextShortChanID lnwire.ShortChannelID
	AmountToForward lnwire.MilliSatoshi
	OutgoingCltv    uint32
	NextOnionBlob   [lnwire.OnionPacketSize]byte

	// FinalHop is true when this onion's destination is the local node
	// rather than a further hop.
	FinalHop bool
}

// ForwardResult is the node's verdict on a ForwardHTLC call, delivered
// once the downstream leg settles or fails.
type ForwardResult struct {
	Fulfilled bool
	Preimage  [32]byte
	FailData  []byte
}

// PeerMessageHandler is invoked for every hosted-channel-range message
// received from any connected peer.
type PeerMessageHandler func(peerID [33]byte, tag lnwire.MessageType, payload []byte)

// HtlcInterceptHandler decides the fate of an HTLC the switch is about to
// route across a hosted channel link.
//
// NOTE: this MUST NOT block on anything beyond local state -
// it runs inline in the node's own switch goroutine, ahead of ever handing
// control to the hosted-channel event loop.
type HtlcInterceptHandler func(req *HtlcAcceptRequest) InterceptAction

// ChainTx is a confirmed on-chain transaction's witness data, as scanned by
// channelmaster.PreimageCatcher for HTLC preimages. Witness reuses
// wire.TxWitness (one stack per input) rather than a flat [][]byte so a
// production NodeInterface can hand over btcd/wire.MsgTx.TxIn[i].Witness
// values directly.
type ChainTx struct {
	TxID    chainhash.Hash
	Witness []wire.TxWitness
}

// NodeInterface is the abstract driver the hosted-channel core requires
// from its host Lightning node. A production implementation
// wraps the node's own peer/switch/wallet RPC surface; tests use the
// in-memory double in node/mock.go.
type NodeInterface interface {
	// SendCustomMessage best-effort sends a hosted-channel-range message
	// to peerID. There is no delivery receipt; sends are
	// fire-and-forget from the channel's point of view.
	SendCustomMessage(peerID [33]byte, tag lnwire.MessageType, payload []byte) error

	// OnPeerMessage registers the single dispatch handler for inbound
	// hosted-channel-range messages from any peer. Only one handler may
	// be registered; a second call replaces the first.
	OnPeerMessage(handler PeerMessageHandler)

	// InterceptHTLC registers the handler that decides whether an HTLC
	// about to cross a hosted channel link resolves, continues, or is
	// rejected.
	InterceptHTLC(handler HtlcInterceptHandler)

	// ResolveHeldHTLC delivers the deferred verdict for an HTLC a prior
	// InterceptHTLC handler answered with Pending.
	ResolveHeldHTLC(incoming lnwire.ShortChannelID, htlcID uint64, action InterceptAction)

	// CurrentBlock returns the node's current best-known chain height.
	CurrentBlock() (uint32, error)

	// ChainHash returns the genesis hash of the chain this node is
	// running against, checked against every InvokeHostedChannel.
	ChainHash() chainhash.Hash

	// ForwardHTLC asks the node to route an HTLC out one of its own
	// regular links toward scid, used when a payment arriving over a
	// hosted channel continues to a hop the plugin doesn't own. The
	// returned channel yields exactly one ForwardResult once the
	// downstream leg resolves.
	ForwardHTLC(scid lnwire.ShortChannelID, amount lnwire.MilliSatoshi,
		cltvExpiry uint32, paymentHash [32]byte,
		onion [lnwire.OnionPacketSize]byte) (<-chan ForwardResult, error)

	// DecryptOnion peels one Sphinx layer off onion, keyed to
	// paymentHash so replay of the same onion at a different hop is
	// rejected the same way the node's own switch would reject it.
	DecryptOnion(onion [lnwire.OnionPacketSize]byte, paymentHash [32]byte) (*DecryptedOnion, error)

	// ScanBlock returns the witness data of every transaction in the
	// block at height, for channelmaster.PreimageCatcher to search for
	// revealed preimages.
	ScanBlock(height uint32) ([]ChainTx, error)

	// PrivateKey and PublicKey are this node's own identity keypair,
	// used to sign and be addressed as counterparty in every LCSS.
	PrivateKey() *btcec.PrivateKey
	PublicKey() *btcec.PublicKey
}
