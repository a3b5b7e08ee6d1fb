package channel

import (
	"github.com/go-errors/errors"

	"github.com/lightninglabs/hosted-channels/lnwire"
)

// UpdateOrigin records which side proposed a pending update, so
// buildCandidate can apply local-origin updates before remote-origin ones,
// the deterministic order both sides share.
type UpdateOrigin int

const (
	OriginLocal UpdateOrigin = iota
	OriginRemote
)

// pendingUpdate is one entry of the uncommittedUpdates queue: exactly one
// of the payload fields is set.
type pendingUpdate struct {
	Origin UpdateOrigin

	Add           *lnwire.UpdateAddHtlc
	Fulfill       *lnwire.UpdateFulfillHtlc
	Fail          *lnwire.UpdateFailHtlc
	FailMalformed *lnwire.UpdateFailMalformedHtlc
}

// completion is a resolution fired as a side effect of committing a
// candidate LCSS; it is only actually delivered once the commit succeeds.
type completion struct {
	htlcID uint64
	result ResolutionResult
}

var errBlockDayStale = errors.New("blockday too stale")
var errCounterMismatch = errors.New("update counter mismatch after retries")

// buildCandidate applies every uncommitted update to a copy of the current
// LCSS, in a deterministic order: all local-origin updates in
// local-proposal order, then all remote-origin updates in remote-proposal
// order. It returns the candidate state, the resolutions that would fire
// if the candidate commits, and the remote-originated adds the commit
// would newly accept.
func (c *Channel) buildCandidate() (*lnwire.LastCrossSignedState, []completion, []lnwire.UpdateAddHtlc, error) {
	candidate := *c.lcss
	candidate.IncomingHtlcs = append([]lnwire.UpdateAddHtlc(nil), c.lcss.IncomingHtlcs...)
	candidate.OutgoingHtlcs = append([]lnwire.UpdateAddHtlc(nil), c.lcss.OutgoingHtlcs...)

	var completions []completion
	var newIncoming []lnwire.UpdateAddHtlc
	var localCount, remoteCount uint32

	apply := func(u pendingUpdate) error {
		comp, err := applyUpdate(&candidate, u)
		if err != nil {
			return err
		}
		if comp != nil {
			completions = append(completions, *comp)
		}
		if u.Origin == OriginLocal {
			localCount++
		} else {
			remoteCount++
			if u.Add != nil {
				newIncoming = append(newIncoming, *u.Add)
			}
		}
		return nil
	}

	for _, u := range c.uncommitted {
		if u.Origin != OriginLocal {
			continue
		}
		if err := apply(u); err != nil {
			return nil, nil, nil, err
		}
	}
	for _, u := range c.uncommitted {
		if u.Origin != OriginRemote {
			continue
		}
		if err := apply(u); err != nil {
			return nil, nil, nil, err
		}
	}

	candidate.LocalUpdates = c.lcss.LocalUpdates + localCount
	candidate.RemoteUpdates = c.lcss.RemoteUpdates + remoteCount

	c.applyPendingResize(&candidate)

	return &candidate, completions, newIncoming, nil
}

// applyUpdate mutates candidate in place for a single pending update and
// returns the resolution it produces, if any. Adding an HTLC never changes
// a balance (it is escrowed); fulfilling moves
// the escrowed amount from the side that added the HTLC to the other side;
// failing simply drops the entry.
func applyUpdate(candidate *lnwire.LastCrossSignedState, u pendingUpdate) (*completion, error) {
	switch {
	case u.Add != nil:
		if u.Origin == OriginLocal {
			candidate.OutgoingHtlcs = append(candidate.OutgoingHtlcs, *u.Add)
		} else {
			candidate.IncomingHtlcs = append(candidate.IncomingHtlcs, *u.Add)
		}
		return nil, nil

	case u.Fulfill != nil:
		return settleHtlc(candidate, u.Origin, u.Fulfill.ID, u.Fulfill.PaymentPreimage, true, nil)

	case u.Fail != nil:
		return settleHtlc(candidate, u.Origin, u.Fail.ID, [32]byte{}, false, u.Fail.Reason)

	case u.FailMalformed != nil:
		return settleHtlc(candidate, u.Origin, u.FailMalformed.ID, [32]byte{}, false, nil)

	default:
		return nil, errors.New("empty pending update")
	}
}

// settleHtlc removes the htlc identified by htlcID from the appropriate
// list and, on fulfill, moves its amount between balances. origin is the
// origin of the *resolving* update (a Fulfill/Fail), which references the
// HTLC from the resolver's own local/remote perspective: a remote-origin
// fulfill resolves one of our OutgoingHtlcs (the peer is settling an HTLC
// we added), a local-origin fulfill resolves one of our IncomingHtlcs (we
// are settling an HTLC the peer added).
func settleHtlc(candidate *lnwire.LastCrossSignedState, origin UpdateOrigin, htlcID uint64, preimage [32]byte, fulfilled bool, failData []byte) (*completion, error) {
	var list *[]lnwire.UpdateAddHtlc
	var removingOutgoing bool

	if origin == OriginRemote {
		list = &candidate.OutgoingHtlcs
		removingOutgoing = true
	} else {
		list = &candidate.IncomingHtlcs
		removingOutgoing = false
	}

	idx := -1
	for i, h := range *list {
		if h.ID == htlcID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, errors.Errorf("no in-flight htlc with id %d to resolve", htlcID)
	}

	htlc := (*list)[idx]
	*list = append((*list)[:idx], (*list)[idx+1:]...)

	if fulfilled {
		if removingOutgoing {
			candidate.LocalBalance -= htlc.Amount
			candidate.RemoteBalance += htlc.Amount
		} else {
			candidate.LocalBalance += htlc.Amount
			candidate.RemoteBalance -= htlc.Amount
		}
	}

	return &completion{
		htlcID: htlcID,
		result: ResolutionResult{
			Fulfilled: fulfilled,
			Preimage:  preimage,
			FailData:  failData,
		},
	}, nil
}

// CommitPending runs the Active-state reconciliation protocol's proposing
// half: it builds a candidate LCSS from
// uncommittedUpdates, signs it, and sends a StateUpdate. It is a no-op if
// there is nothing uncommitted.
func (c *Channel) CommitPending() error {
	if c.status != StatusActive {
		return errNotActive
	}
	if len(c.uncommitted) == 0 && c.pendingResize == nil {
		return nil
	}

	candidate, _, _, err := c.buildCandidate()
	if err != nil {
		return c.suspend(err.Error())
	}

	candidate.BlockDay = c.master.CurrentBlockDay()

	if err := SignLCSS(candidate, c.signer); err != nil {
		return err
	}

	c.pendingCandidate = candidate

	return c.master.SendMessage(c.PeerID, &lnwire.StateUpdate{
		ChanID:               channelID(c),
		BlockDay:             candidate.BlockDay,
		LocalUpdates:         candidate.LocalUpdates,
		RemoteUpdates:        candidate.RemoteUpdates,
		LocalSigOfRemoteLCSS: candidate.LocalSigOfRemote,
	})
}

// OnStateUpdate handles a StateUpdate received while Active: accept and
// commit the peer's countersignature, or retry on a counter mismatch.
//
// A StateUpdate doubles as both a proposal and an acknowledgment, and this
// side only owes the peer a reply when it is accepting someone else's
// proposal for the first time: if we already had our own pendingCandidate
// outstanding, this message is the peer's countersignature completing our
// own proposal, and replying again would just restart the exchange
// forever.
func (c *Channel) OnStateUpdate(msg *lnwire.StateUpdate) error {
	if c.status != StatusActive {
		return errNotActive
	}

	acknowledgingOwnProposal := c.pendingCandidate != nil

	currentBlockDay := c.master.CurrentBlockDay()
	if absDiffU32(msg.BlockDay, currentBlockDay) > 1 {
		return c.suspend(errBlockDayStale.Error())
	}

	candidate, completions, newIncoming, err := c.buildCandidate()
	if err != nil {
		return c.suspend(err.Error())
	}
	candidate.BlockDay = currentBlockDay

	// Our local/remote update counts from the candidate must match the
	// peer's remote/local counts respectively, since the two are the
	// same set of updates viewed from opposite sides.
	if candidate.LocalUpdates != msg.RemoteUpdates || candidate.RemoteUpdates != msg.LocalUpdates {
		return c.onCounterMismatch()
	}

	candidate.RemoteSigOfLocal = msg.LocalSigOfRemoteLCSS

	if err := SignLCSS(candidate, c.signer); err != nil {
		return err
	}

	if err := ValidateLCSS(candidate, c.signer.PubKey(), c.RemotePubKey); err != nil {
		return c.suspend(err.Error())
	}

	c.lcss = candidate
	c.uncommitted = nil
	c.pendingCandidate = nil
	c.pendingResize = nil
	c.retryCount = 0

	for _, comp := range completions {
		c.deliverCompletion(comp)
	}
	for i := range newIncoming {
		c.master.OnIncomingCommitted(c.PeerID, newIncoming[i])
	}

	if acknowledgingOwnProposal {
		return nil
	}

	return c.master.SendMessage(c.PeerID, &lnwire.StateUpdate{
		ChanID:               channelID(c),
		BlockDay:             candidate.BlockDay,
		LocalUpdates:         candidate.LocalUpdates,
		RemoteUpdates:        candidate.RemoteUpdates,
		LocalSigOfRemoteLCSS: candidate.LocalSigOfRemote,
	})
}

// onCounterMismatch re-sends outstanding updates and a new StateUpdate,
// bounded by cfg.MaxReconcileRetries before giving up and suspending.
func (c *Channel) onCounterMismatch() error {
	c.retryCount++
	if c.retryCount > c.cfg.MaxReconcileRetries {
		return c.suspend(errCounterMismatch.Error())
	}

	for _, u := range c.uncommitted {
		if u.Origin != OriginLocal {
			continue
		}
		if err := c.resendUpdate(u); err != nil {
			return err
		}
	}

	return c.CommitPending()
}

func (c *Channel) resendUpdate(u pendingUpdate) error {
	switch {
	case u.Add != nil:
		return c.master.SendMessage(c.PeerID, u.Add)
	case u.Fulfill != nil:
		return c.master.SendMessage(c.PeerID, u.Fulfill)
	case u.Fail != nil:
		return c.master.SendMessage(c.PeerID, u.Fail)
	case u.FailMalformed != nil:
		return c.master.SendMessage(c.PeerID, u.FailMalformed)
	}
	return nil
}

func (c *Channel) deliverCompletion(comp completion) {
	fut, ok := c.resolutions[comp.htlcID]
	if !ok {
		return
	}
	fut.complete(comp.result)
	delete(c.resolutions, comp.htlcID)
}

func absDiffU32(a, b uint32) uint32 {
	if a > b {
		return a - b
	}
	return b - a
}
