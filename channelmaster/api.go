package channelmaster

import (
	"encoding/hex"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/go-errors/errors"

	"github.com/lightninglabs/hosted-channels/channel"
	"github.com/lightninglabs/hosted-channels/lnwire"
)

var errUnknownChannel = errors.New("channelmaster: no channel recorded for that peer")

// ChannelInfo is the stable, JSON-marshalable projection of one hosted
// channel exposed by the control surface's hc-list/hc-channel methods.
type ChannelInfo struct {
	PeerID         string `json:"peer_id"`
	IsHost         bool   `json:"is_host"`
	Status         string `json:"status"`
	ShortChannelID string `json:"short_channel_id"`

	CapacityMsat      uint64 `json:"capacity_msat"`
	LocalBalanceMsat  uint64 `json:"local_balance_msat"`
	RemoteBalanceMsat uint64 `json:"remote_balance_msat"`

	LocalUpdates  uint32 `json:"local_updates"`
	RemoteUpdates uint32 `json:"remote_updates"`
	BlockDay      uint32 `json:"block_day"`

	NumIncomingHtlcs int `json:"num_incoming_htlcs"`
	NumOutgoingHtlcs int `json:"num_outgoing_htlcs"`

	// LastSeen is the zero time if the peer has never connected.
	LastSeen time.Time `json:"last_seen"`

	// LastErrorBlockDay is omitted if the channel has never recorded a
	// protocol error.
	LastErrorBlockDay uint32 `json:"last_error_block_day,omitempty"`
}

// channelJSON builds peerID's ChannelInfo from its current in-memory
// channel. Caller must hold opMu or otherwise know ch isn't concurrently
// mutated.
func (cm *ChannelMaster) channelJSON(peerID [33]byte, ch *channel.Channel) ChannelInfo {
	info := ChannelInfo{
		PeerID: hex.EncodeToString(peerID[:]),
		IsHost: ch.IsHost,
		Status: ch.Status().String(),
	}

	if lastSeen, ok := cm.LastSeen(peerID); ok {
		info.LastSeen = lastSeen
	}
	if blockDay, ok := ch.LastErrorBlockDay(); ok {
		info.LastErrorBlockDay = blockDay
	}

	lcss := ch.LCSS()
	if lcss == nil {
		return info
	}

	info.ShortChannelID = ch.ShortChannelID().String()
	info.CapacityMsat = uint64(lcss.InitHostedChannel.ChannelCapacity)
	info.LocalBalanceMsat = uint64(lcss.LocalBalance)
	info.RemoteBalanceMsat = uint64(lcss.RemoteBalance)
	info.LocalUpdates = lcss.LocalUpdates
	info.RemoteUpdates = lcss.RemoteUpdates
	info.BlockDay = lcss.BlockDay
	info.NumIncomingHtlcs = len(lcss.IncomingHtlcs)
	info.NumOutgoingHtlcs = len(lcss.OutgoingHtlcs)

	return info
}

// ListChannels implements the hc-list control method: a snapshot
// projection of every channel this node currently has a record for.
func (cm *ChannelMaster) ListChannels() []ChannelInfo {
	cm.opMu.Lock()
	defer cm.opMu.Unlock()

	cm.mu.Lock()
	entries := make(map[[33]byte]*channel.Channel, len(cm.channels))
	for peerID, e := range cm.channels {
		entries[peerID] = e.ch
	}
	cm.mu.Unlock()

	out := make([]ChannelInfo, 0, len(entries))
	for peerID, ch := range entries {
		out = append(out, cm.channelJSON(peerID, ch))
	}
	return out
}

// GetChannel implements the hc-channel control method.
func (cm *ChannelMaster) GetChannel(peerID [33]byte) (*ChannelInfo, bool) {
	cm.opMu.Lock()
	defer cm.opMu.Unlock()

	ch, ok := cm.lookup(peerID)
	if !ok {
		return nil, false
	}
	info := cm.channelJSON(peerID, ch)
	return &info, true
}

// Override implements the hc-override control method: it drives a
// Suspended channel's host side through IssueOverride, then
// fails every pending forward whose outgoing leg lived on this channel
// upstream with "channel overridden", since the override unilaterally
// discards their in-flight HTLCs without peer agreement.
func (cm *ChannelMaster) Override(peerID [33]byte, newLocalBalance lnwire.MilliSatoshi) error {
	cm.opMu.Lock()
	defer cm.opMu.Unlock()

	ch, ok := cm.lookup(peerID)
	if !ok {
		return errUnknownChannel
	}

	if err := ch.IssueOverride(newLocalBalance); err != nil {
		cm.persist(ch)
		return err
	}

	cm.persist(ch)
	cm.failForwardsFor(peerID, "channel overridden")

	return nil
}

// Resize implements the hc-resize control method: it drives a client-side
// channel's ProposeResize with a new capacity in satoshis. Only meaningful
// when this node is the client; a host accepts a resize automatically upon
// receiving ResizeChannel from its peer.
func (cm *ChannelMaster) Resize(peerID [33]byte, newCapacity btcutil.Amount) error {
	cm.opMu.Lock()
	defer cm.opMu.Unlock()

	ch, ok := cm.lookup(peerID)
	if !ok {
		return errUnknownChannel
	}

	err := ch.ProposeResize(newCapacity)
	cm.persist(ch)
	return err
}

// AcceptOverride implements the hc-accept-override control method: the
// client side's out-of-band ratification of a pending StateOverride.
// There is no corresponding host-side control method to reject one;
// rejecting is simply never calling this, per channel.AcceptOverride's own
// doc comment.
func (cm *ChannelMaster) AcceptOverride(peerID [33]byte) error {
	cm.opMu.Lock()
	defer cm.opMu.Unlock()

	ch, ok := cm.lookup(peerID)
	if !ok {
		return errUnknownChannel
	}

	err := ch.AcceptOverride()
	cm.persist(ch)
	return err
}

// CloseChannel implements the hc-close control method, the only way a
// channel record is ever removed. Any
// in-flight forward whose outgoing leg lived on this channel fails
// upstream first, since closing the record discards the ability to
// resolve them through it.
func (cm *ChannelMaster) CloseChannel(peerID [33]byte) error {
	cm.opMu.Lock()
	defer cm.opMu.Unlock()

	if _, ok := cm.lookup(peerID); !ok {
		return errUnknownChannel
	}

	cm.failForwardsFor(peerID, "channel closed")

	cm.mu.Lock()
	e := cm.channels[peerID]
	delete(cm.channels, peerID)
	if e != nil {
		delete(cm.scidIndex, e.ch.ShortChannelID())
	}
	cm.mu.Unlock()

	return cm.db.DeleteChannel(peerID)
}
