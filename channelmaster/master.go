// Package channelmaster implements the process-wide hosted-channel
// registry: it owns every Channel (keyed by peer node id), stitches HTLCs
// between them into a forwarding fabric, fans block updates out to each
// channel and the preimage catcher, and replays in-flight forwards on
// startup. ChannelMaster holds every Channel directly, and a Channel only
// ever calls back through the narrow channel.Master interface this package
// implements.
package channelmaster

import (
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/go-errors/errors"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/ticker"

	"github.com/lightninglabs/hosted-channels/channel"
	"github.com/lightninglabs/hosted-channels/channeldb"
	"github.com/lightninglabs/hosted-channels/lnwallet"
	"github.com/lightninglabs/hosted-channels/lnwire"
	"github.com/lightninglabs/hosted-channels/node"
)

// entry is one registered channel plus the bookkeeping ChannelMaster needs
// that doesn't belong on Channel itself.
type entry struct {
	ch *channel.Channel

	// lastSeen is the clock time of the peer's most recent Connect call,
	// surfaced through the control API so an operator can tell a
	// recently-dropped peer from one that's been gone for days.
	lastSeen time.Time
}

// Config carries the tunables passed through to every Channel, the
// block-refresh cadence, and the host/client terms a fresh channel is
// opened with.
type Config struct {
	Channel channel.Config

	// BlockRefreshInterval is how often ChannelMaster polls the node for
	// its current block and fans it out to every channel; one minute by
	// default.
	BlockRefreshInterval time.Duration

	// ChainHash is checked against every InvokeHostedChannel.
	ChainHash [32]byte

	// HostParams is the terms this node offers when acting as host,
	// sent back in InitHostedChannel.
	HostParams lnwire.InitHostedChannelParams

	// RefundScript returns the script this node's client side expects to
	// be refunded to if its host misbehaves, carried in
	// InvokeHostedChannel.
	RefundScript func() []byte

	// Branding, if non-nil, is the display metadata returned to any
	// client that sends AskBrandingInfo.
	Branding *lnwire.HostedChannelBranding

	// AllowedHosts, when non-empty, restricts which peers this node will
	// accept an InitHostedChannel from when acting as client.
	AllowedHosts [][33]byte
}

// DefaultConfig returns the suggested defaults, leaving the chain hash,
// host terms, and refund script for the caller to fill in.
func DefaultConfig() Config {
	return Config{
		Channel:              channel.DefaultConfig(),
		BlockRefreshInterval: time.Minute,
	}
}

// ChannelMaster is the process-wide registry and forwarding fabric.
type ChannelMaster struct {
	// mu protects the registry, the short-channel-id index, and
	// currentBlock.
	mu sync.Mutex

	// opMu serializes every call that mutates channel state, the
	// process-wide stand-in for a single-threaded cooperative event
	// loop: node callbacks arrive on arbitrary goroutines, but only
	// one may be acting on the channel set at a time. Functions that
	// require it held document so in their doc comment.
	opMu sync.Mutex

	db   *channeldb.DB
	node node.NodeInterface
	cfg  Config

	channels  map[[33]byte]*entry
	scidIndex map[lnwire.ShortChannelID][33]byte

	currentBlock uint32

	blockTicker ticker.Ticker

	clock clock.Clock

	catcher *PreimageCatcher

	quit chan struct{}
	wg   sync.WaitGroup
}

var _ channel.Master = (*ChannelMaster)(nil)

// New constructs a ChannelMaster. Call Start to replay persisted state and
// begin driving the event loop.
func New(db *channeldb.DB, n node.NodeInterface, cfg Config) *ChannelMaster {
	cm := &ChannelMaster{
		db:        db,
		node:      n,
		cfg:       cfg,
		channels:  make(map[[33]byte]*entry),
		scidIndex: make(map[lnwire.ShortChannelID][33]byte),
		clock:     clock.NewDefaultClock(),
		quit:      make(chan struct{}),
	}
	cm.catcher = NewPreimageCatcher(db, n, cm)
	return cm
}

// Start rehydrates every persisted channel, replays interrupted forwards,
// registers with the node, and begins the block-refresh timer.
func (cm *ChannelMaster) Start() error {
	height, err := cm.node.CurrentBlock()
	if err != nil {
		return err
	}
	cm.mu.Lock()
	cm.currentBlock = height
	cm.mu.Unlock()

	if err := cm.restoreChannels(); err != nil {
		return err
	}
	if err := cm.replayForwards(); err != nil {
		return err
	}

	cm.node.OnPeerMessage(cm.handlePeerMessage)
	cm.node.InterceptHTLC(cm.handleHtlcIntercept)

	cm.blockTicker = ticker.New(cm.cfg.BlockRefreshInterval)
	cm.blockTicker.Resume()

	cm.wg.Add(1)
	go cm.blockLoop()

	return nil
}

// Stop halts the block-refresh timer and waits for it to exit.
func (cm *ChannelMaster) Stop() {
	close(cm.quit)
	if cm.blockTicker != nil {
		cm.blockTicker.Stop()
	}
	cm.wg.Wait()
}

func (cm *ChannelMaster) blockLoop() {
	defer cm.wg.Done()

	for {
		select {
		case <-cm.blockTicker.Ticks():
			cm.refreshBlock()
		case <-cm.quit:
			return
		}
	}
}

// refreshBlock refreshes currentBlock from the node and fans it out to
// each Channel and the preimage catcher.
func (cm *ChannelMaster) refreshBlock() {
	height, err := cm.node.CurrentBlock()
	if err != nil {
		return
	}

	cm.mu.Lock()
	cm.currentBlock = height
	entries := make([]*entry, 0, len(cm.channels))
	for _, e := range cm.channels {
		entries = append(entries, e)
	}
	cm.mu.Unlock()

	cm.opMu.Lock()
	for _, e := range entries {
		if err := e.ch.OnBlockUpdated(height); err != nil {
			cm.failForwardsFor(e.ch.PeerID, "channel suspended on cltv expiry")
		}
		cm.persist(e.ch)
	}
	cm.opMu.Unlock()

	cm.catcher.OnBlockUpdated(height)
}

// Connect drives a peer connection/reconnection into the registry,
// creating the channel record on its first contact. isHost is true when
// this node is acting as host for peerID.
func (cm *ChannelMaster) Connect(peerID [33]byte, isHost bool, remotePub *btcec.PublicKey) error {
	cm.opMu.Lock()
	defer cm.opMu.Unlock()

	ch := cm.getOrCreateChannel(peerID, isHost, remotePub)
	err := ch.OnConnect(cm.cfg.ChainHash, cm.refundScript())
	cm.persist(ch)

	cm.mu.Lock()
	if e, ok := cm.channels[peerID]; ok {
		e.lastSeen = cm.clock.Now()
	}
	cm.mu.Unlock()

	return err
}

// LastSeen returns the clock time of peerID's most recent Connect call, and
// false if no channel has ever been registered for it.
func (cm *ChannelMaster) LastSeen(peerID [33]byte) (time.Time, bool) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	e, ok := cm.channels[peerID]
	if !ok {
		return time.Time{}, false
	}
	return e.lastSeen, true
}

// Disconnect moves peerID's channel back to Offline.
func (cm *ChannelMaster) Disconnect(peerID [33]byte) {
	cm.opMu.Lock()
	defer cm.opMu.Unlock()

	if ch, ok := cm.lookup(peerID); ok {
		ch.OnDisconnect()
	}
}

func (cm *ChannelMaster) refundScript() []byte {
	if cm.cfg.RefundScript == nil {
		return nil
	}
	return cm.cfg.RefundScript()
}

// restoreChannels rehydrates every persisted channel into the registry,
// starting each Offline, or Suspended if its persisted error lists are
// non-empty.
func (cm *ChannelMaster) restoreChannels() error {
	all, err := cm.db.FetchAllChannels()
	if err != nil {
		return err
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()

	for peerID, data := range all {
		if data.LCSS == nil {
			continue
		}

		remotePub, err := btcec.ParsePubKey(peerID[:])
		if err != nil {
			return err
		}

		localErrs := convertStoredErrors(data.LocalErrors)
		remoteErrs := convertStoredErrors(data.RemoteErrors)

		ch := channel.Restore(peerID, data.LCSS.IsHost, data.LCSS, localErrs,
			remoteErrs, cm.signer(), remotePub, cm, cm.cfg.Channel)

		e := &entry{ch: ch}
		cm.channels[peerID] = e
		cm.scidIndex[ch.ShortChannelID()] = peerID
	}

	return nil
}

func convertStoredErrors(in []channeldb.StoredError) []channel.StoredError {
	out := make([]channel.StoredError, len(in))
	for i, e := range in {
		out[i] = channel.StoredError{ChanID: e.ChanID, Data: e.Data, TlvStream: e.TlvStream}
	}
	return out
}

func (cm *ChannelMaster) signer() lnwallet.Signer {
	return lnwallet.NewKeySigner(cm.node.PrivateKey())
}

// getOrCreateChannel returns the registered channel for peerID, creating a
// fresh Offline one (a record is born on a peer's first invoke) if none
// exists yet. Caller must hold opMu.
func (cm *ChannelMaster) getOrCreateChannel(peerID [33]byte, isHost bool, remotePub *btcec.PublicKey) *channel.Channel {
	cm.mu.Lock()
	e, ok := cm.channels[peerID]
	cm.mu.Unlock()
	if ok {
		return e.ch
	}

	ch := channel.New(peerID, isHost, cm.signer(), remotePub, cm, cm.cfg.Channel)

	cm.mu.Lock()
	cm.channels[peerID] = &entry{ch: ch}
	cm.mu.Unlock()

	return ch
}

func (cm *ChannelMaster) lookup(peerID [33]byte) (*channel.Channel, bool) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	e, ok := cm.channels[peerID]
	if !ok {
		return nil, false
	}
	return e.ch, true
}

// persist writes ch's current snapshot to disk and refreshes its
// short-channel-id index entry. Caller must hold opMu.
func (cm *ChannelMaster) persist(ch *channel.Channel) {
	snap := ch.Snapshot()
	_ = cm.db.UpdateChannel(ch.PeerID, func(_ *channeldb.ChannelData) (*channeldb.ChannelData, error) {
		return &channeldb.ChannelData{
			LCSS:          snap.LCSS,
			LocalErrors:   toDBErrors(snap.LocalErrors),
			RemoteErrors:  toDBErrors(snap.RemoteErrors),
			PendingResize: snap.PendingResize,
		}, nil
	})

	if snap.LCSS != nil {
		cm.mu.Lock()
		cm.scidIndex[ch.ShortChannelID()] = ch.PeerID
		cm.mu.Unlock()
	}
}

func toDBErrors(in []channel.StoredError) []channeldb.StoredError {
	out := make([]channeldb.StoredError, len(in))
	for i, e := range in {
		out[i] = channeldb.StoredError{ChanID: e.ChanID, Data: e.Data, TlvStream: e.TlvStream}
	}
	return out
}

// CurrentBlockDay implements channel.Master: height / 144.
func (cm *ChannelMaster) CurrentBlockDay() uint32 {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.currentBlock / 144
}

// SendMessage implements channel.Master by encoding msg's body and handing
// it to the node's fire-and-forget custom message send.
func (cm *ChannelMaster) SendMessage(peerID [33]byte, msg lnwire.Message) error {
	payload, err := lnwire.EncodePayload(msg)
	if err != nil {
		return err
	}
	return cm.node.SendCustomMessage(peerID, msg.MsgType(), payload)
}

// RecordForward implements channel.Master: persist the forward ahead of
// the outgoing commit, so a crash between the two never loses the
// linkage.
func (cm *ChannelMaster) RecordForward(incoming, outgoing channel.HtlcIdentifier) error {
	return cm.db.PutForward(incoming, outgoing)
}

// StorePreimage implements channel.Master.
func (cm *ChannelMaster) StorePreimage(paymentHash, preimage [32]byte) error {
	return cm.db.PutPreimage(paymentHash, preimage)
}

// PersistChannelData implements channel.Master. data is always a
// channel.Snapshot; the interface{} signature exists so package channel
// doesn't need to import channeldb.
func (cm *ChannelMaster) PersistChannelData(peerID [33]byte, data interface{}) error {
	snap, ok := data.(channel.Snapshot)
	if !ok {
		return errors.New("channelmaster: unexpected snapshot type")
	}
	return cm.db.UpdateChannel(peerID, func(_ *channeldb.ChannelData) (*channeldb.ChannelData, error) {
		return &channeldb.ChannelData{
			LCSS:          snap.LCSS,
			LocalErrors:   toDBErrors(snap.LocalErrors),
			RemoteErrors:  toDBErrors(snap.RemoteErrors),
			PendingResize: snap.PendingResize,
		}, nil
	})
}

// GotPaymentResult implements channel.Master: it delivers an outgoing
// leg's resolution to the channel holding the matching incoming HTLC.
// Caller must hold opMu.
func (cm *ChannelMaster) GotPaymentResult(incoming channel.HtlcIdentifier, result channel.ResolutionResult) {
	cm.mu.Lock()
	peerID, ok := cm.scidIndex[incoming.ShortChannelID]
	cm.mu.Unlock()
	if !ok {
		return
	}

	ch, ok := cm.lookup(peerID)
	if !ok {
		return
	}

	var err error
	if result.Fulfilled {
		err = ch.SettleHtlc(incoming.HtlcID, result.Preimage)
	} else {
		err = ch.FailHtlc(incoming.HtlcID, result.FailData)
	}
	if err != nil {
		return
	}

	_ = ch.CommitPending()
	cm.persist(ch)

	_ = cm.db.DeleteForward(incoming)
}

// failForwardsFor fails upstream every forward whose outgoing leg lives on
// peerID's channel, used when that channel drops out from under an
// in-flight forward (cltv expiry suspension, override, close).
// Caller must hold opMu.
func (cm *ChannelMaster) failForwardsFor(peerID [33]byte, reason string) {
	cm.mu.Lock()
	e, ok := cm.channels[peerID]
	cm.mu.Unlock()
	if !ok {
		return
	}

	outScid := e.ch.ShortChannelID()

	all, err := cm.db.AllForwards()
	if err != nil {
		return
	}
	for incoming, outgoing := range all {
		if outgoing.ShortChannelID != outScid {
			continue
		}
		cm.GotPaymentResult(incoming, channel.ResolutionResult{
			Fulfilled: false,
			FailData:  []byte(reason),
		})
	}
}
