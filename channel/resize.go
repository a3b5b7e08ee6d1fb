package channel

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/go-errors/errors"

	"github.com/lightninglabs/hosted-channels/lnwallet"
	"github.com/lightninglabs/hosted-channels/lnwire"
)

var (
	errResizeNotGrowth = errors.New("resize must strictly grow channel capacity")
	errResizeBadSig    = errors.New("resize signature does not verify")
	errResizeNotClient = errors.New("only a client may propose a resize")
)

// ProposeResize is called on the client side to grow the channel's
// capacity, denominated in satoshis as the wire message carries it. Only a
// client may call this; a host accepts a resize by folding it into its
// next LCSS rather than signing anything itself. The proposal takes effect
// at the next commit alongside whatever HTLC updates are already pending,
// the same way a resize is applied on the host side once it arrives.
func (c *Channel) ProposeResize(newCapacity btcutil.Amount) error {
	if c.IsHost {
		return errResizeNotClient
	}
	if c.status != StatusActive {
		return errChannelNotActive
	}

	msg := &lnwire.ResizeChannel{
		ChanID:      channelID(c),
		NewCapacity: newCapacity,
	}
	if msg.NewCapacityMsat() <= c.lcss.InitHostedChannel.ChannelCapacity {
		return errResizeNotGrowth
	}

	digest, err := lnwallet.ResizeSigHash(msg)
	if err != nil {
		return err
	}

	sig, err := c.signer.Sign(digest)
	if err != nil {
		return err
	}
	msg.ClientSig = lnwallet.SerializeSignature(sig)

	c.pendingResize = msg

	if err := c.master.SendMessage(c.PeerID, msg); err != nil {
		return err
	}

	return c.CommitPending()
}

// OnResizeChannel handles a client's ResizeChannel on the host side: it
// validates the proposal is growth-only and correctly signed, records it
// as pending, and triggers a commit that folds it into the next LCSS.
func (c *Channel) OnResizeChannel(msg *lnwire.ResizeChannel) error {
	if !c.IsHost {
		return c.suspend("resize received on client side")
	}
	if c.status != StatusActive {
		return errChannelNotActive
	}
	if msg.NewCapacityMsat() <= c.lcss.InitHostedChannel.ChannelCapacity {
		return c.suspend(errResizeNotGrowth.Error())
	}

	digest, err := lnwallet.ResizeSigHash(msg)
	if err != nil {
		return err
	}
	sig, err := lnwallet.ParseSignature(msg.ClientSig)
	if err != nil {
		return c.suspend(errResizeBadSig.Error())
	}
	if !lnwallet.VerifyDigest(c.RemotePubKey, digest, sig) {
		return c.suspend(errResizeBadSig.Error())
	}

	c.pendingResize = msg

	return c.CommitPending()
}

// applyPendingResize folds c.pendingResize into candidate, crediting the
// additional liquidity to whichever side is the host: from the host's own
// perspective that is its LocalBalance, from the client's it is its
// RemoteBalance, since LCSS balances are always expressed from the
// holder's own point of view.
func (c *Channel) applyPendingResize(candidate *lnwire.LastCrossSignedState) {
	if c.pendingResize == nil {
		return
	}

	newCapacity := c.pendingResize.NewCapacityMsat()
	added := newCapacity - candidate.InitHostedChannel.ChannelCapacity
	candidate.InitHostedChannel.ChannelCapacity = newCapacity

	if c.IsHost {
		candidate.LocalBalance += added
	} else {
		candidate.RemoteBalance += added
	}
}
