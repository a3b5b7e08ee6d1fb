package channelmaster

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/lightninglabs/hosted-channels/channel"
	"github.com/lightninglabs/hosted-channels/channeldb"
	"github.com/lightninglabs/hosted-channels/lnwire"
	"github.com/lightninglabs/hosted-channels/node"
)

// PreimageCatcher watches the chain for witness data revealing the
// preimage of any outgoing HTLC this node has in flight, and settles it
// regardless of whether the counterparty is responsive.
type PreimageCatcher struct {
	db   *channeldb.DB
	node node.NodeInterface
	cm   *ChannelMaster
}

// NewPreimageCatcher constructs a PreimageCatcher bound to cm's channel
// registry.
func NewPreimageCatcher(db *channeldb.DB, n node.NodeInterface, cm *ChannelMaster) *PreimageCatcher {
	return &PreimageCatcher{db: db, node: n, cm: cm}
}

// trackedHtlc pairs a payment hash's owning channel and HTLC id, so a
// matching witness value can be routed back to the right channel.
type trackedHtlc struct {
	peerID [33]byte
	htlcID uint64
}

// OnBlockUpdated scans height's confirmed transactions for a 32-byte
// witness value whose SHA256 matches any payment hash this node is
// currently owed on through an outgoing HTLC. A match is dispatched to its
// owning channel immediately, independent of whether the channel's peer
// has sent (or will ever send) its own UpdateFulfillHtlc.
func (p *PreimageCatcher) OnBlockUpdated(height uint32) {
	tracked := p.trackedHashes()
	if len(tracked) == 0 {
		return
	}

	txs, err := p.node.ScanBlock(height)
	if err != nil {
		mstrLog.Errorf("preimage catcher: scan block %d: %v", height, err)
		return
	}

	for _, tx := range txs {
		for _, witness := range tx.Witness {
			for _, item := range witness {
				if len(item) != 32 {
					continue
				}

				var preimage [32]byte
				copy(preimage[:], item)
				hash := [32]byte(chainhash.HashH(preimage[:]))

				t, ok := tracked[hash]
				if !ok {
					continue
				}
				p.settle(t.peerID, t.htlcID, hash, preimage)
			}
		}
	}
}

// trackedHashes snapshots the paymentHash->(peer, htlcID) set this node has
// a stake in from chain, drawn from every channel's current outgoing HTLCs.
func (p *PreimageCatcher) trackedHashes() map[[32]byte]trackedHtlc {
	p.cm.mu.Lock()
	defer p.cm.mu.Unlock()

	out := make(map[[32]byte]trackedHtlc)
	for peerID, e := range p.cm.channels {
		lcss := e.ch.LCSS()
		if lcss == nil {
			continue
		}
		for _, htlc := range lcss.OutgoingHtlcs {
			out[htlc.PaymentHash] = trackedHtlc{peerID: peerID, htlcID: htlc.ID}
		}
	}
	return out
}

// settle dispatches a chain-recovered preimage to its owning channel as a
// synthetic UpdateFulfillHtlc, exactly as if the peer itself had sent one,
// then drives it through the same reconciliation commit every other
// fulfill uses. It is idempotent: once the channel no longer carries the
// outgoing HTLC, or already has a fulfill or fail for it queued, a repeat
// sighting of the same preimage is a silent no-op. On a channel that is
// not Active the preimage is only persisted, not dispatched.
func (p *PreimageCatcher) settle(peerID [33]byte, htlcID uint64, hash, preimage [32]byte) {
	p.cm.opMu.Lock()
	defer p.cm.opMu.Unlock()

	ch, ok := p.cm.lookup(peerID)
	if !ok || !ch.HasOutgoing(htlcID) || ch.HasUncommittedResolution(htlcID) {
		return
	}

	if ch.Status() != channel.StatusActive {
		// The channel can no longer commit, but the preimage is still
		// proof of payment worth keeping.
		if err := p.db.PutPreimage(hash, preimage); err != nil {
			mstrLog.Errorf("preimage catcher: persist chain preimage for hash %x: %v", hash, err)
		}
		return
	}

	msg := &lnwire.UpdateFulfillHtlc{
		ChanID:          ch.ChannelID(),
		ID:              htlcID,
		PaymentPreimage: preimage,
	}

	if err := ch.InjectFulfill(msg); err != nil {
		mstrLog.Errorf("preimage catcher: deliver chain preimage for hash %x: %v", hash, err)
		return
	}

	if err := ch.CommitPending(); err != nil {
		mstrLog.Errorf("preimage catcher: commit chain-recovered fulfill: %v", err)
	}

	p.cm.persist(ch)
}
