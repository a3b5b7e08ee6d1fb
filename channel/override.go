package channel

import (
	"github.com/go-errors/errors"

	"github.com/lightninglabs/hosted-channels/lnwire"
)

var (
	errOverrideNotHost      = errors.New("only a host may issue a state override")
	errOverrideNotClient    = errors.New("only a client may ratify a state override")
	errOverrideNotSuspended = errors.New("state override requires a suspended channel")
)

// IssueOverride is called on the host side against a Suspended channel: it
// builds a forced LCSS with empty HTLC lists (discarding every in-flight
// payment) and sends it as a StateOverride for the client to ratify.
// Every pending incoming HTLC forward this channel held as the
// outgoing leg fails upstream immediately, since the override unilaterally
// discards them.
func (c *Channel) IssueOverride(newLocalBalance lnwire.MilliSatoshi) error {
	if !c.IsHost {
		return errOverrideNotHost
	}
	if c.status != StatusSuspended {
		return errOverrideNotSuspended
	}

	c.status = StatusOverriding
	c.pendingOverrideLocalBalance = newLocalBalance

	c.cancelAllResolutions("channel overridden")

	// The forced state carries no HTLCs and reset update counters; the
	// client adopts it only if this signature over its reversed view
	// verifies.
	forced := lnwire.LastCrossSignedState{
		IsHost:             true,
		RefundScriptPubKey: c.lcss.RefundScriptPubKey,
		InitHostedChannel:  c.lcss.InitHostedChannel,
		BlockDay:           c.master.CurrentBlockDay(),
		LocalBalance:       newLocalBalance,
		RemoteBalance:      c.lcss.InitHostedChannel.ChannelCapacity - newLocalBalance,
	}
	if err := SignLCSS(&forced, c.signer); err != nil {
		return err
	}

	return c.master.SendMessage(c.PeerID, &lnwire.StateOverride{
		ChanID:               channelID(c),
		BlockDay:             forced.BlockDay,
		LocalBalance:         forced.LocalBalance,
		RemoteBalance:        forced.RemoteBalance,
		LocalUpdates:         forced.LocalUpdates,
		RemoteUpdates:        forced.RemoteUpdates,
		LocalSigOfRemoteLCSS: forced.LocalSigOfRemote,
	})
}

// OnStateOverride handles a host's StateOverride on the client side. The
// client decides out-of-band (not here) whether to ratify it; ratification
// is expressed by the caller invoking AcceptOverride.
func (c *Channel) OnStateOverride(msg *lnwire.StateOverride) error {
	if c.IsHost {
		return c.suspend("override received on host side")
	}

	c.status = StatusOverriding
	c.pendingOverride = msg

	return nil
}

// AcceptOverride ratifies a pending StateOverride on the client side:
// countersigns the forced state and replies with a StateUpdate.
// Rejecting is simply never calling this - the channel stays
// Overriding/Suspended.
func (c *Channel) AcceptOverride() error {
	if c.IsHost {
		return errOverrideNotClient
	}
	if c.status != StatusOverriding || c.pendingOverride == nil {
		return errOverrideNotSuspended
	}

	msg := c.pendingOverride

	candidate := lnwire.LastCrossSignedState{
		IsHost:             false,
		RefundScriptPubKey: c.lcss.RefundScriptPubKey,
		InitHostedChannel:  c.lcss.InitHostedChannel,
		BlockDay:           msg.BlockDay,
		LocalBalance:       msg.RemoteBalance,
		RemoteBalance:      msg.LocalBalance,
		LocalUpdates:       msg.RemoteUpdates,
		RemoteUpdates:      msg.LocalUpdates,
	}
	candidate.RemoteSigOfLocal = msg.LocalSigOfRemoteLCSS

	if err := SignLCSS(&candidate, c.signer); err != nil {
		return err
	}
	if err := ValidateLCSS(&candidate, c.signer.PubKey(), c.RemotePubKey); err != nil {
		return c.suspend(err.Error())
	}

	c.cancelAllResolutions("channel overridden")

	c.lcss = &candidate
	c.uncommitted = nil
	c.pendingOverride = nil
	c.pendingResize = nil
	c.status = StatusActive

	return c.master.SendMessage(c.PeerID, &lnwire.StateUpdate{
		ChanID:               channelID(c),
		BlockDay:             candidate.BlockDay,
		LocalUpdates:         candidate.LocalUpdates,
		RemoteUpdates:        candidate.RemoteUpdates,
		LocalSigOfRemoteLCSS: candidate.LocalSigOfRemote,
	})
}

// OnOverrideStateUpdate handles the client's countersigning StateUpdate on
// the host side, completing the override.
func (c *Channel) OnOverrideStateUpdate(msg *lnwire.StateUpdate) error {
	if c.status != StatusOverriding {
		return errOverrideNotSuspended
	}

	candidate := lnwire.LastCrossSignedState{
		IsHost:             true,
		RefundScriptPubKey: c.lcss.RefundScriptPubKey,
		InitHostedChannel:  c.lcss.InitHostedChannel,
		BlockDay:           msg.BlockDay,
		LocalUpdates:       msg.RemoteUpdates,
		RemoteUpdates:      msg.LocalUpdates,
		RemoteSigOfLocal:   msg.LocalSigOfRemoteLCSS,
	}
	candidate.LocalBalance = c.pendingOverrideLocalBalance
	candidate.RemoteBalance = c.lcss.InitHostedChannel.ChannelCapacity - candidate.LocalBalance

	if err := SignLCSS(&candidate, c.signer); err != nil {
		return err
	}
	if err := ValidateLCSS(&candidate, c.signer.PubKey(), c.RemotePubKey); err != nil {
		return c.suspend(err.Error())
	}

	c.lcss = &candidate
	c.uncommitted = nil
	c.status = StatusActive

	return nil
}
