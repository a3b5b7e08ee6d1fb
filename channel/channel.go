package channel

import (
	"bytes"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/go-errors/errors"
	"github.com/lightningnetwork/lnd/tlv"

	"github.com/lightninglabs/hosted-channels/lnwallet"
	"github.com/lightninglabs/hosted-channels/lnwire"
)

// Status is the in-memory runtime state of a hosted channel, distinct from
// anything persisted: a freshly restarted process starts every channel in
// Offline and relies on the peer reconnecting to move it forward, except a
// channel whose persisted error lists are non-empty, which starts
// Suspended.
type Status int

const (
	// StatusOffline means the peer is not connected; no exchange happens.
	StatusOffline Status = iota

	// StatusOpening means an InvokeHostedChannel/InitHostedChannel
	// handshake is in progress.
	StatusOpening

	// StatusSyncingData means a peer with a previously established LCSS
	// reconnected and both sides are exchanging LastCrossSignedState to
	// detect whether either missed the other's last commit.
	StatusSyncingData

	// StatusActive means the LCSS is established and the channel accepts
	// new updates.
	StatusActive

	// StatusSuspended means an error was recorded; all updates are
	// refused until an override or reconnect resync succeeds.
	StatusSuspended

	// StatusOverriding means the host has proposed a forced state via
	// StateOverride and is awaiting the client's countersignature.
	StatusOverriding
)

func (s Status) String() string {
	switch s {
	case StatusOffline:
		return "Offline"
	case StatusOpening:
		return "Opening"
	case StatusSyncingData:
		return "SyncingData"
	case StatusActive:
		return "Active"
	case StatusSuspended:
		return "Suspended"
	case StatusOverriding:
		return "Overriding"
	default:
		return "Unknown"
	}
}

// StoredError is a protocol error recorded against a channel, either one it
// sent or one it received, kept as a (channelId, bytes, tlvStream)
// triple.
type StoredError struct {
	ChanID lnwire.ChannelID
	Data   []byte

	// TlvStream is an encoded tlv.Stream carrying fields beyond the two
	// the protocol fixes, the same forward-compatible extension point
	// lnwire messages use for their ExtraData. Currently holds only the
	// block day the error was recorded at.
	TlvStream []byte
}

// errorBlockDayType is the tlv type for the block day an error was recorded
// at, the sole record currently carried in StoredError.TlvStream.
const errorBlockDayType tlv.Type = 0

// encodeErrorTlvStream builds the tlv.Stream recorded alongside a freshly
// created StoredError.
func encodeErrorTlvStream(blockDay uint32) []byte {
	day := uint64(blockDay)
	record := tlv.MakePrimitiveRecord(errorBlockDayType, &day)
	stream, err := tlv.NewStream(record)
	if err != nil {
		return nil
	}

	var buf bytes.Buffer
	if err := stream.Encode(&buf); err != nil {
		return nil
	}
	return buf.Bytes()
}

// decodeErrorBlockDay extracts the block day recorded in a StoredError's
// TlvStream, returning false if it carries no such record.
func decodeErrorBlockDay(tlvStream []byte) (uint32, bool) {
	var day uint64
	record := tlv.MakePrimitiveRecord(errorBlockDayType, &day)
	stream, err := tlv.NewStream(record)
	if err != nil {
		return 0, false
	}
	if err := stream.Decode(bytes.NewReader(tlvStream)); err != nil {
		return 0, false
	}
	return uint32(day), true
}

// Master is the narrow callback surface a Channel uses to reach the rest
// of the system: ChannelMaster owns every Channel, and a Channel never
// holds a direct reference back to it, only this interface.
type Master interface {
	// SendMessage best-effort sends msg to the peer identified by
	// peerID.
	SendMessage(peerID [33]byte, msg lnwire.Message) error

	// RecordForward persists the incoming->outgoing HtlcIdentifier
	// mapping before the outgoing UpdateAddHtlc is committed, so a crash
	// between the two never loses the linkage.
	RecordForward(incoming, outgoing HtlcIdentifier) error

	// GotPaymentResult notifies the channel owning the incoming leg of a
	// forward that its outgoing leg resolved.
	GotPaymentResult(incoming HtlcIdentifier, result ResolutionResult)

	// OnIncomingCommitted notifies that add was cross-signed into this
	// channel's incoming set, giving the forwarding fabric its chance to
	// route a non-final-hop payment onward.
	OnIncomingCommitted(peerID [33]byte, add lnwire.UpdateAddHtlc)

	// StorePreimage persists a payment preimage ahead of committing the
	// fulfill that revealed it.
	StorePreimage(paymentHash, preimage [32]byte) error

	// PersistChannelData commits the channel's latest ChannelData.
	PersistChannelData(peerID [33]byte, data interface{}) error

	// CurrentBlockDay returns the node's current block height / 144.
	CurrentBlockDay() uint32
}

// HtlcIdentifier uniquely identifies an HTLC within the whole node: the
// channel it lives on plus its per-channel monotonic id.
type HtlcIdentifier struct {
	ShortChannelID lnwire.ShortChannelID
	HtlcID         uint64
}

// ResolutionResult is delivered to a pending HTLC resolution future once
// the channel has committed a fulfill or fail for it.
type ResolutionResult struct {
	Fulfilled bool
	Preimage  [32]byte
	FailData  []byte
}

// Channel is the per-peer hosted-channel state machine.
type Channel struct {
	PeerID [33]byte
	IsHost bool

	RemotePubKey *btcec.PublicKey

	status Status

	lcss *lnwire.LastCrossSignedState

	// pendingCandidate is the last candidate LCSS this side proposed via
	// CommitPending, kept only for observability; OnStateUpdate always
	// rebuilds its own candidate rather than reusing it, since the set of
	// uncommitted updates may have grown since it was sent.
	pendingCandidate *lnwire.LastCrossSignedState

	uncommitted []pendingUpdate

	localErrors  []StoredError
	remoteErrors []StoredError

	pendingResize *lnwire.ResizeChannel

	// pendingOverride and pendingOverrideLocalBalance track an
	// in-progress StateOverride: on the client side, the host's
	// proposal awaiting AcceptOverride; on the host side, the local
	// balance it proposed, needed again once the client countersigns.
	pendingOverride             *lnwire.StateOverride
	pendingOverrideLocalBalance lnwire.MilliSatoshi

	nextHtlcID uint64

	resolutions map[uint64]*ResolutionFuture

	signer lnwallet.Signer
	master Master

	retryCount int

	cfg Config
}

// Config holds the channel-level tunables.
type Config struct {
	// MaxReconcileRetries bounds the counter-mismatch retry loop; 3 is
	// a small, conservative default.
	MaxReconcileRetries int

	// CltvSafetyDelta is the number of blocks of margin required before
	// an outgoing HTLC's cltvExpiry.
	CltvSafetyDelta uint32
}

// DefaultConfig returns the suggested defaults.
func DefaultConfig() Config {
	return Config{
		MaxReconcileRetries: 3,
		CltvSafetyDelta:     72,
	}
}

// New constructs a fresh, Offline Channel for peerID. signer is this node's
// own identity signer; remotePub is the counterparty's identity key, used
// to verify their half of every cross-signature.
func New(peerID [33]byte, isHost bool, signer lnwallet.Signer, remotePub *btcec.PublicKey, master Master, cfg Config) *Channel {
	return &Channel{
		PeerID:       peerID,
		IsHost:       isHost,
		RemotePubKey: remotePub,
		status:       StatusOffline,
		resolutions:  make(map[uint64]*ResolutionFuture),
		signer:       signer,
		master:       master,
		cfg:          cfg,
	}
}

// Restore rehydrates a Channel from a previously persisted LCSS, used on
// ChannelMaster startup. A channel with no restored errors begins Offline
// and the peer reconnecting drives it back to Active; one whose restored
// error lists are non-empty begins Suspended, which OnConnect leaves as is.
func Restore(peerID [33]byte, isHost bool, lcss *lnwire.LastCrossSignedState, localErrors, remoteErrors []StoredError, signer lnwallet.Signer, remotePub *btcec.PublicKey, master Master, cfg Config) *Channel {
	c := New(peerID, isHost, signer, remotePub, master, cfg)
	c.lcss = lcss
	c.localErrors = localErrors
	c.remoteErrors = remoteErrors
	if len(localErrors)+len(remoteErrors) > 0 {
		c.status = StatusSuspended
	} else if lcss != nil {
		c.status = StatusOffline
	}
	return c
}

// Status returns the channel's current runtime status.
func (c *Channel) Status() Status {
	return c.status
}

// LCSS returns the channel's last committed state, or nil if the channel
// has never completed its opening handshake.
func (c *Channel) LCSS() *lnwire.LastCrossSignedState {
	return c.lcss
}

// OnConnect transitions an Offline channel forward on reconnect. A channel
// that has never completed its opening handshake goes to Opening and, for
// a client, sends the initial InvokeHostedChannel. A channel
// that already holds an established LCSS instead goes to SyncingData and
// exchanges LastCrossSignedState with the peer, since blindly re-running
// the opening handshake would stomp the existing state back to genesis.
func (c *Channel) OnConnect(chainHash [32]byte, refundScriptPubKey []byte) error {
	if c.status != StatusOffline {
		return nil
	}

	if c.lcss != nil {
		c.status = StatusSyncingData
		if err := c.master.SendMessage(c.PeerID, c.lcss); err != nil {
			return err
		}

		// A fulfill may have been lost while this side was offline; ask
		// the peer for any preimages it holds on our in-flight HTLCs.
		if hashes := c.outgoingHashes(); len(hashes) > 0 {
			return c.master.SendMessage(c.PeerID, &lnwire.QueryPreimages{
				Hashes: hashes,
			})
		}
		return nil
	}

	c.status = StatusOpening

	if !c.IsHost {
		return c.master.SendMessage(c.PeerID, &lnwire.InvokeHostedChannel{
			ChainHash:          chainHash,
			RefundScriptPubKey: refundScriptPubKey,
		})
	}

	return nil
}

// OnDisconnect moves the channel back to Offline and cancels any in-flight
// reconciliation bookkeeping; a reconnect re-enters through OnConnect.
func (c *Channel) OnDisconnect() {
	c.status = StatusOffline
	c.retryCount = 0
}

// suspend records a local protocol violation, sends an Error to the peer,
// and moves the channel to Suspended, cancelling every pending resolution
// future.
func (c *Channel) suspend(reason string) error {
	c.status = StatusSuspended

	errMsg := &lnwire.Error{Data: []byte(reason)}
	if c.lcss != nil {
		errMsg.ChanID = channelID(c)
	}

	c.localErrors = append(c.localErrors, StoredError{
		ChanID:    errMsg.ChanID,
		Data:      errMsg.Data,
		TlvStream: encodeErrorTlvStream(c.master.CurrentBlockDay()),
	})

	c.cancelAllResolutions(reason)

	return c.master.SendMessage(c.PeerID, errMsg)
}

// OnError handles a peer-sent Error: from any state, the channel records
// it and suspends.
func (c *Channel) OnError(msg *lnwire.Error) {
	c.status = StatusSuspended
	c.remoteErrors = append(c.remoteErrors, StoredError{
		ChanID:    msg.ChanID,
		Data:      msg.Data,
		TlvStream: encodeErrorTlvStream(c.master.CurrentBlockDay()),
	})
	c.cancelAllResolutions(string(msg.Data))
}

// LastErrorBlockDay returns the latest block day recorded across both error
// lists' TlvStreams, and false if neither list carries one.
func (c *Channel) LastErrorBlockDay() (uint32, bool) {
	var best uint32
	var found bool

	for _, list := range [][]StoredError{c.localErrors, c.remoteErrors} {
		if len(list) == 0 {
			continue
		}
		day, ok := decodeErrorBlockDay(list[len(list)-1].TlvStream)
		if !ok {
			continue
		}
		if !found || day > best {
			best = day
			found = true
		}
	}

	return best, found
}

func (c *Channel) cancelAllResolutions(reason string) {
	for id, fut := range c.resolutions {
		fut.complete(ResolutionResult{
			Fulfilled: false,
			FailData:  []byte(reason),
		})
		delete(c.resolutions, id)
	}
}

// channelID derives the channel's deterministic ChannelID from the local
// and remote identity keys, ordered by host/client role.
func channelID(c *Channel) lnwire.ChannelID {
	var localKey, remoteKey [33]byte
	copy(localKey[:], c.signer.PubKey().SerializeCompressed())
	copy(remoteKey[:], c.RemotePubKey.SerializeCompressed())

	var hostKey, clientKey [33]byte
	if c.IsHost {
		hostKey, clientKey = localKey, remoteKey
	} else {
		hostKey, clientKey = remoteKey, localKey
	}

	return lnwire.ChannelID(lnwallet.DeriveChannelID(hostKey, clientKey))
}

var errNotActive = errors.New("channel is not active")
