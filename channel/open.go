package channel

import (
	"github.com/go-errors/errors"

	"github.com/lightninglabs/hosted-channels/lnwire"
)

// OnInvoke handles a client's InvokeHostedChannel, the host-side half of
// the opening handshake. params describes the terms this host is
// willing to offer; chainHash must match the invocation's.
func (c *Channel) OnInvoke(msg *lnwire.InvokeHostedChannel, chainHash [32]byte, params lnwire.InitHostedChannelParams) error {
	if !c.IsHost {
		return c.suspend("invoke received on client side")
	}
	if msg.ChainHash != chainHash {
		return c.suspend("chain hash mismatch")
	}

	c.status = StatusOpening

	return c.master.SendMessage(c.PeerID, &lnwire.InitHostedChannel{Params: params})
}

// OnInit handles a host's InitHostedChannel on the client side: it builds
// the genesis LCSS, signs it, and sends the opening StateUpdate.
func (c *Channel) OnInit(msg *lnwire.InitHostedChannel, refundScriptPubKey []byte) error {
	if c.IsHost {
		return c.suspend("init received on host side")
	}

	blockDay := c.master.CurrentBlockDay()
	lcss := InitialLCSS(false, refundScriptPubKey, msg.Params, blockDay)

	if err := SignLCSS(lcss, c.signer); err != nil {
		return err
	}

	c.lcss = lcss

	return c.sendStateUpdate()
}

// OnOpeningStateUpdate handles the StateUpdate that completes the Opening
// handshake: the host constructs the genesis LCSS on its first receipt; the
// client (and the host on its second receipt) verifies the counterparty's
// signature and moves to Active.
func (c *Channel) OnOpeningStateUpdate(msg *lnwire.StateUpdate, refundScriptPubKey []byte, params lnwire.InitHostedChannelParams) error {
	if c.lcss == nil {
		if !c.IsHost {
			return c.suspend("state update received before init")
		}

		lcss := InitialLCSS(true, refundScriptPubKey, params, msg.BlockDay)
		lcss.RemoteSigOfLocal = msg.LocalSigOfRemoteLCSS

		if err := checkOpeningCounters(msg); err != nil {
			return c.suspend(err.Error())
		}

		if err := SignLCSS(lcss, c.signer); err != nil {
			return err
		}

		if err := ValidateLCSS(lcss, c.signer.PubKey(), c.RemotePubKey); err != nil {
			return c.suspend(err.Error())
		}

		c.lcss = lcss
		c.status = StatusActive

		return c.sendStateUpdate()
	}

	if err := checkOpeningCounters(msg); err != nil {
		return c.suspend(err.Error())
	}

	c.lcss.RemoteSigOfLocal = msg.LocalSigOfRemoteLCSS
	if err := ValidateLCSS(c.lcss, c.signer.PubKey(), c.RemotePubKey); err != nil {
		return c.suspend(err.Error())
	}

	c.status = StatusActive
	return nil
}

func checkOpeningCounters(msg *lnwire.StateUpdate) error {
	if msg.LocalUpdates != 0 || msg.RemoteUpdates != 0 {
		return errOpeningCountersNonzero
	}
	return nil
}

var errOpeningCountersNonzero = errors.New("opening state update must carry zero update counters")

// OnSyncState handles a peer's LastCrossSignedState received while
// SyncingData: both
// sides compare their last committed state to detect whether either
// missed the other's final commit before the disconnect that preceded
// this reconnect.
func (c *Channel) OnSyncState(msg *lnwire.LastCrossSignedState) error {
	if c.status != StatusSyncingData {
		return errNotActive
	}
	if c.lcss == nil {
		return c.suspend("resync state received with no local state to compare")
	}

	// theirView re-expresses the peer's reported state in our own
	// perspective, directly comparable against c.lcss field-for-field.
	theirView := msg.Reverse()

	switch {
	case theirView.LocalUpdates == c.lcss.LocalUpdates && theirView.RemoteUpdates == c.lcss.RemoteUpdates:
		// Both sides already agree; nothing to recover.
		c.status = StatusActive
		return nil

	case theirView.LocalUpdates < c.lcss.LocalUpdates || theirView.RemoteUpdates < c.lcss.RemoteUpdates:
		// The peer never received, or never committed, our last
		// StateUpdate. Resend our current state so they catch up.
		c.status = StatusActive
		return c.master.SendMessage(c.PeerID, c.lcss)

	default:
		// The peer reports a state ahead of ours, meaning we crashed
		// before persisting our side of the last commit. Adopt it if
		// it validates; otherwise this channel needs a manual
		// override to recover.
		if err := ValidateLCSS(theirView, c.signer.PubKey(), c.RemotePubKey); err != nil {
			return c.suspend("resync: remote state invalid: " + err.Error())
		}
		c.lcss = theirView
		c.status = StatusActive
		return nil
	}
}

// sendStateUpdate emits the current lcss's half of a cross-sign as a
// StateUpdate, used both during opening and reconciliation.
func (c *Channel) sendStateUpdate() error {
	update := &lnwire.StateUpdate{
		ChanID:               channelID(c),
		BlockDay:             c.lcss.BlockDay,
		LocalUpdates:         c.lcss.LocalUpdates,
		RemoteUpdates:        c.lcss.RemoteUpdates,
		LocalSigOfRemoteLCSS: c.lcss.LocalSigOfRemote,
	}
	return c.master.SendMessage(c.PeerID, update)
}
