package channel

import (
	"github.com/go-errors/errors"

	"github.com/lightninglabs/hosted-channels/lnwire"
)

// ResolutionFuture is the awaitable handle returned by AddHtlc, completed
// once the channel commits the HTLC's fulfill or fail.
type ResolutionFuture struct {
	done   chan struct{}
	result ResolutionResult
}

func newResolutionFuture() *ResolutionFuture {
	return &ResolutionFuture{done: make(chan struct{})}
}

func (f *ResolutionFuture) complete(result ResolutionResult) {
	select {
	case <-f.done:
		// Already completed; a channel only resolves an HTLC once.
	default:
		f.result = result
		close(f.done)
	}
}

// Done returns a channel closed once the resolution is available.
func (f *ResolutionFuture) Done() <-chan struct{} {
	return f.done
}

// Result returns the resolution. Only valid after Done() is closed.
func (f *ResolutionFuture) Result() ResolutionResult {
	return f.result
}

var (
	errChannelNotActive = errors.New("channel not active, cannot add htlc")
	errCapacityExceeded = errors.New("htlc would exceed maxHtlcValueInFlightMsat")
	errTooManyInFlight  = errors.New("htlc would exceed maxAcceptedHtlcs")
	errAmountBelowFloor = errors.New("htlc amount below htlcMinimumMsat")
)

// AddHtlc proposes a new outgoing HTLC: it validates against the channel's
// current limits, allocates the next monotonic id, records the forward
// mapping (if this HTLC continues an incoming one), queues the update, and
// sends it to the peer. It returns a future resolved once the HTLC's
// fulfill or fail commits.
func (c *Channel) AddHtlc(incoming *HtlcIdentifier, amount lnwire.MilliSatoshi, paymentHash [32]byte, cltvExpiry uint32, onionBlob [lnwire.OnionPacketSize]byte) (*ResolutionFuture, error) {
	if c.status != StatusActive {
		return nil, errChannelNotActive
	}

	params := c.lcss.InitHostedChannel
	if amount < params.HtlcMinimum {
		return nil, errAmountBelowFloor
	}

	inFlightCount, inFlightValue := c.inFlightTotals()
	if inFlightCount+1 > int(params.MaxAcceptedHtlcs) {
		return nil, errTooManyInFlight
	}
	if inFlightValue+amount > params.MaxHtlcValueInFlight {
		return nil, errCapacityExceeded
	}

	id := c.nextHtlcID
	c.nextHtlcID++

	add := &lnwire.UpdateAddHtlc{
		ChanID:      channelID(c),
		ID:          id,
		Amount:      amount,
		PaymentHash: paymentHash,
		CltvExpiry:  cltvExpiry,
		OnionBlob:   onionBlob,
	}

	if incoming != nil {
		outgoing := HtlcIdentifier{ShortChannelID: c.shortChannelID(), HtlcID: id}
		if err := c.master.RecordForward(*incoming, outgoing); err != nil {
			return nil, err
		}
	}

	c.uncommitted = append(c.uncommitted, pendingUpdate{Origin: OriginLocal, Add: add})

	fut := newResolutionFuture()
	c.resolutions[id] = fut

	if err := c.master.SendMessage(c.PeerID, add); err != nil {
		return nil, err
	}

	return fut, nil
}

// ReceiveAddHtlc records a peer-originated UpdateAddHtlc as a pending
// remote update, to be included in the next candidate this side proposes
// or accepts.
func (c *Channel) ReceiveAddHtlc(msg *lnwire.UpdateAddHtlc) error {
	if c.status != StatusActive {
		return c.suspend("add htlc received while not active")
	}

	c.uncommitted = append(c.uncommitted, pendingUpdate{Origin: OriginRemote, Add: msg})
	return nil
}

// SettleHtlc queues a local fulfill for an HTLC the peer added to us (one
// of our IncomingHtlcs), storing the preimage ahead of commit so a crash
// in between cannot lose it.
func (c *Channel) SettleHtlc(htlcID uint64, preimage [32]byte) error {
	if c.status != StatusActive {
		return errChannelNotActive
	}

	htlc := c.findIncoming(htlcID)
	if htlc == nil {
		return errors.Errorf("no incoming htlc with id %d", htlcID)
	}

	if err := c.master.StorePreimage(htlc.PaymentHash, preimage); err != nil {
		return err
	}

	msg := &lnwire.UpdateFulfillHtlc{
		ChanID:          channelID(c),
		ID:              htlcID,
		PaymentPreimage: preimage,
	}
	c.uncommitted = append(c.uncommitted, pendingUpdate{Origin: OriginLocal, Fulfill: msg})

	return c.master.SendMessage(c.PeerID, msg)
}

// FailHtlc queues a local fail for an HTLC the peer added to us.
func (c *Channel) FailHtlc(htlcID uint64, reason []byte) error {
	if c.status != StatusActive {
		return errChannelNotActive
	}

	msg := &lnwire.UpdateFailHtlc{
		ChanID: channelID(c),
		ID:     htlcID,
		Reason: reason,
	}
	c.uncommitted = append(c.uncommitted, pendingUpdate{Origin: OriginLocal, Fail: msg})

	return c.master.SendMessage(c.PeerID, msg)
}

// ReceiveFulfill records a peer-sent UpdateFulfillHtlc resolving one of our
// OutgoingHtlcs, storing the revealed preimage ahead of commit.
func (c *Channel) ReceiveFulfill(msg *lnwire.UpdateFulfillHtlc) error {
	if c.status != StatusActive {
		return c.suspend("fulfill received while not active")
	}

	htlc := c.findOutgoing(msg.ID)
	if htlc == nil {
		return c.suspend("fulfill for unknown outgoing htlc")
	}

	if err := c.master.StorePreimage(htlc.PaymentHash, msg.PaymentPreimage); err != nil {
		return err
	}

	c.uncommitted = append(c.uncommitted, pendingUpdate{Origin: OriginRemote, Fulfill: msg})
	return nil
}

// InjectFulfill records a fulfill recovered from on-chain witness data
// rather than from the peer. The revealed preimage is proof of payment, so
// the HTLC's resolution future completes immediately regardless of peer
// responsiveness; the fulfill itself still rides the normal reconciliation
// queue so balances settle whenever the peer next countersigns.
func (c *Channel) InjectFulfill(msg *lnwire.UpdateFulfillHtlc) error {
	if err := c.ReceiveFulfill(msg); err != nil {
		return err
	}

	c.deliverCompletion(completion{
		htlcID: msg.ID,
		result: ResolutionResult{
			Fulfilled: true,
			Preimage:  msg.PaymentPreimage,
		},
	})

	return nil
}

// ReceiveFail records a peer-sent UpdateFailHtlc resolving one of our
// OutgoingHtlcs. UpdateFailMalformedHtlc goes through ReceiveFailMalformed.
func (c *Channel) ReceiveFail(msg *lnwire.UpdateFailHtlc) error {
	if c.status != StatusActive {
		return c.suspend("fail received while not active")
	}
	c.uncommitted = append(c.uncommitted, pendingUpdate{Origin: OriginRemote, Fail: msg})
	return nil
}

func (c *Channel) ReceiveFailMalformed(msg *lnwire.UpdateFailMalformedHtlc) error {
	if c.status != StatusActive {
		return c.suspend("malformed fail received while not active")
	}
	c.uncommitted = append(c.uncommitted, pendingUpdate{Origin: OriginRemote, FailMalformed: msg})
	return nil
}

func (c *Channel) findIncoming(id uint64) *lnwire.UpdateAddHtlc {
	for i := range c.lcss.IncomingHtlcs {
		if c.lcss.IncomingHtlcs[i].ID == id {
			return &c.lcss.IncomingHtlcs[i]
		}
	}
	return nil
}

func (c *Channel) findOutgoing(id uint64) *lnwire.UpdateAddHtlc {
	for i := range c.lcss.OutgoingHtlcs {
		if c.lcss.OutgoingHtlcs[i].ID == id {
			return &c.lcss.OutgoingHtlcs[i]
		}
	}
	return nil
}

// inFlightTotals returns the count and total value of HTLCs that would be
// in flight including whatever uncommitted adds are already queued, so a
// new AddHtlc call is validated against the true pending picture rather
// than just the last committed LCSS.
func (c *Channel) inFlightTotals() (int, lnwire.MilliSatoshi) {
	count := len(c.lcss.IncomingHtlcs) + len(c.lcss.OutgoingHtlcs)
	var value lnwire.MilliSatoshi
	for _, h := range c.lcss.IncomingHtlcs {
		value += h.Amount
	}
	for _, h := range c.lcss.OutgoingHtlcs {
		value += h.Amount
	}
	for _, u := range c.uncommitted {
		if u.Add != nil {
			count++
			value += u.Add.Amount
		}
	}
	return count, value
}

// shortChannelID returns this channel's deterministic short channel id.
func (c *Channel) shortChannelID() lnwire.ShortChannelID {
	id := channelID(c)
	return lnwire.NewShortChanIDFromUint64(uint64(id[0])<<56 |
		uint64(id[1])<<48 | uint64(id[2])<<40 | uint64(id[3])<<32 |
		uint64(id[4])<<24 | uint64(id[5])<<16 | uint64(id[6])<<8 | uint64(id[7]))
}

// ShortChannelID exposes this channel's deterministic short channel id, so
// ChannelMaster can index channels by it for cross-channel forwarding.
func (c *Channel) ShortChannelID() lnwire.ShortChannelID {
	return c.shortChannelID()
}

// ChannelID exposes this channel's deterministic ChannelID.
func (c *Channel) ChannelID() lnwire.ChannelID {
	return channelID(c)
}

// FindIncomingHtlc exposes findIncoming, so ChannelMaster can recover the
// original payment hash/amount/cltv of a still-pending incoming HTLC when
// replaying a forward on startup.
func (c *Channel) FindIncomingHtlc(id uint64) *lnwire.UpdateAddHtlc {
	return c.findIncoming(id)
}

// HasOutgoing reports whether an outgoing HTLC with id is already
// in-flight, so startup replay doesn't re-propose a forward that already
// made it onto the outgoing channel before a crash.
func (c *Channel) HasOutgoing(id uint64) bool {
	return c.findOutgoing(id) != nil
}

// FindOutgoingByHash returns the in-flight outgoing HTLC whose payment
// hash is hash, if any.
func (c *Channel) FindOutgoingByHash(hash [32]byte) *lnwire.UpdateAddHtlc {
	if c.lcss == nil {
		return nil
	}
	for i := range c.lcss.OutgoingHtlcs {
		if c.lcss.OutgoingHtlcs[i].PaymentHash == hash {
			return &c.lcss.OutgoingHtlcs[i]
		}
	}
	return nil
}

// outgoingHashes collects the payment hashes of every in-flight outgoing
// HTLC, queried from the peer on reconnect in case a fulfill was lost
// while this side was offline.
func (c *Channel) outgoingHashes() [][32]byte {
	if c.lcss == nil || len(c.lcss.OutgoingHtlcs) == 0 {
		return nil
	}
	hashes := make([][32]byte, 0, len(c.lcss.OutgoingHtlcs))
	for i := range c.lcss.OutgoingHtlcs {
		hashes = append(hashes, c.lcss.OutgoingHtlcs[i].PaymentHash)
	}
	return hashes
}

// HasUncommittedResolution reports whether a remote-origin fulfill or fail
// for the outgoing HTLC id is already queued awaiting commit, so a repeat
// sighting of the same on-chain preimage doesn't queue a duplicate.
func (c *Channel) HasUncommittedResolution(id uint64) bool {
	for _, u := range c.uncommitted {
		if u.Origin != OriginRemote {
			continue
		}
		switch {
		case u.Fulfill != nil && u.Fulfill.ID == id:
			return true
		case u.Fail != nil && u.Fail.ID == id:
			return true
		case u.FailMalformed != nil && u.FailMalformed.ID == id:
			return true
		}
	}
	return false
}
