package channelmaster

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/davecgh/go-spew/spew"

	"github.com/lightninglabs/hosted-channels/channel"
	"github.com/lightninglabs/hosted-channels/lnwire"
	"github.com/lightninglabs/hosted-channels/node"
)

// handlePeerMessage is the single dispatch point for every hosted-channel
// message received from any peer, registered with the node via
// OnPeerMessage. It decodes the payload by its tag and routes it to the
// owning Channel's matching handler, serialized against every other
// channel-mutating call through opMu.
func (cm *ChannelMaster) handlePeerMessage(peerID [33]byte, tag lnwire.MessageType, payload []byte) {
	msg, err := lnwire.DecodePayload(tag, payload)
	if err != nil {
		return
	}

	mstrLog.Debugf("Received %T from %x: %v", msg, peerID, spew.Sdump(msg))

	cm.opMu.Lock()
	defer cm.opMu.Unlock()

	switch m := msg.(type) {
	case *lnwire.InvokeHostedChannel:
		cm.onInvoke(peerID, m)
	case *lnwire.InitHostedChannel:
		cm.onInit(peerID, m)
	case *lnwire.LastCrossSignedState:
		cm.withChannel(peerID, func(ch *channel.Channel) error {
			return ch.OnSyncState(m)
		})
	case *lnwire.StateUpdate:
		cm.onStateUpdate(peerID, m)
	case *lnwire.StateOverride:
		cm.withChannel(peerID, func(ch *channel.Channel) error {
			return ch.OnStateOverride(m)
		})
	case *lnwire.ResizeChannel:
		cm.withChannel(peerID, func(ch *channel.Channel) error {
			return ch.OnResizeChannel(m)
		})
	case *lnwire.Error:
		cm.withChannel(peerID, func(ch *channel.Channel) error {
			ch.OnError(m)
			return nil
		})
	case *lnwire.UpdateAddHtlc:
		cm.withChannel(peerID, func(ch *channel.Channel) error {
			if err := ch.ReceiveAddHtlc(m); err != nil {
				return err
			}
			return ch.CommitPending()
		})
	case *lnwire.UpdateFulfillHtlc:
		cm.withChannel(peerID, func(ch *channel.Channel) error {
			if err := ch.ReceiveFulfill(m); err != nil {
				return err
			}
			return ch.CommitPending()
		})
	case *lnwire.UpdateFailHtlc:
		cm.withChannel(peerID, func(ch *channel.Channel) error {
			if err := ch.ReceiveFail(m); err != nil {
				return err
			}
			return ch.CommitPending()
		})
	case *lnwire.UpdateFailMalformedHtlc:
		cm.withChannel(peerID, func(ch *channel.Channel) error {
			if err := ch.ReceiveFailMalformed(m); err != nil {
				return err
			}
			return ch.CommitPending()
		})
	case *lnwire.AskBrandingInfo:
		cm.onAskBrandingInfo(peerID, m)
	case *lnwire.QueryPreimages:
		cm.onQueryPreimages(peerID, m)
	case *lnwire.ReplyPreimages:
		cm.onReplyPreimages(peerID, m)
	case *lnwire.HostedChannelBranding,
		*lnwire.AnnouncementSignature,
		*lnwire.ChannelAnnouncement,
		*lnwire.ChannelUpdate,
		*lnwire.QueryPublicHostedChannels,
		*lnwire.ReplyPublicHostedChannels:
		// Display metadata and gossip carry no channel-state
		// transitions; they are logged above and otherwise left to the
		// host node's own gossip layer.
	}
}

// withChannel looks up peerID's channel and, if found, runs fn against it
// and persists the result. Messages for a peer with no registered channel
// are dropped, the same as an unsolicited message on a link the switch
// doesn't recognize. Caller must hold opMu.
func (cm *ChannelMaster) withChannel(peerID [33]byte, fn func(*channel.Channel) error) {
	ch, ok := cm.lookup(peerID)
	if !ok {
		return
	}
	_ = fn(ch)
	cm.persist(ch)
}

// onInvoke handles a client's InvokeHostedChannel on the host side,
// creating the channel record on first contact.
func (cm *ChannelMaster) onInvoke(peerID [33]byte, msg *lnwire.InvokeHostedChannel) {
	remotePub, err := btcec.ParsePubKey(peerID[:])
	if err != nil {
		return
	}

	ch := cm.getOrCreateChannel(peerID, true, remotePub)
	_ = ch.OnInvoke(msg, cm.cfg.ChainHash, cm.cfg.HostParams)
	cm.persist(ch)
}

// onInit handles a host's InitHostedChannel on the client side, dropping
// it when the sender isn't on the configured host allowlist.
func (cm *ChannelMaster) onInit(peerID [33]byte, msg *lnwire.InitHostedChannel) {
	if !cm.hostAllowed(peerID) {
		mstrLog.Warnf("Ignoring InitHostedChannel from %x: not an allowed host", peerID)
		return
	}

	cm.withChannel(peerID, func(ch *channel.Channel) error {
		return ch.OnInit(msg, cm.refundScript())
	})
}

// hostAllowed reports whether peerID may act as a host toward this node.
// An empty allowlist allows anyone.
func (cm *ChannelMaster) hostAllowed(peerID [33]byte) bool {
	if len(cm.cfg.AllowedHosts) == 0 {
		return true
	}
	for _, allowed := range cm.cfg.AllowedHosts {
		if allowed == peerID {
			return true
		}
	}
	return false
}

// onStateUpdate routes a StateUpdate to whichever of the three handlers
// applies to the channel's current status: opening handshake completion,
// steady-state reconciliation, or override ratification.
func (cm *ChannelMaster) onStateUpdate(peerID [33]byte, msg *lnwire.StateUpdate) {
	cm.withChannel(peerID, func(ch *channel.Channel) error {
		switch ch.Status() {
		case channel.StatusOpening:
			return ch.OnOpeningStateUpdate(msg, cm.refundScript(), cm.cfg.HostParams)
		case channel.StatusOverriding:
			return ch.OnOverrideStateUpdate(msg)
		default:
			return ch.OnStateUpdate(msg)
		}
	})
}

// onAskBrandingInfo answers a client's branding request with the display
// metadata this host was configured with, if any.
func (cm *ChannelMaster) onAskBrandingInfo(peerID [33]byte, msg *lnwire.AskBrandingInfo) {
	if cm.cfg.Branding == nil {
		return
	}

	branding := *cm.cfg.Branding
	branding.ChanID = msg.ChanID
	_ = cm.SendMessage(peerID, &branding)
}

// onQueryPreimages answers with whatever preimages this node's cache holds
// for the queried hashes; hashes it cannot answer are simply omitted.
func (cm *ChannelMaster) onQueryPreimages(peerID [33]byte, msg *lnwire.QueryPreimages) {
	reply := &lnwire.ReplyPreimages{}
	for _, hash := range msg.Hashes {
		preimage, ok, err := cm.db.FetchPreimage(hash)
		if err != nil || !ok {
			continue
		}
		reply.Preimages = append(reply.Preimages, preimage)
	}

	_ = cm.SendMessage(peerID, reply)
}

// onReplyPreimages settles any in-flight outgoing HTLC whose preimage the
// peer just revealed, the same injection path chain-scanned preimages take.
func (cm *ChannelMaster) onReplyPreimages(peerID [33]byte, msg *lnwire.ReplyPreimages) {
	cm.withChannel(peerID, func(ch *channel.Channel) error {
		if ch.Status() != channel.StatusActive {
			return nil
		}

		for _, preimage := range msg.Preimages {
			hash := [32]byte(chainhash.HashH(preimage[:]))
			htlc := ch.FindOutgoingByHash(hash)
			if htlc == nil || ch.HasUncommittedResolution(htlc.ID) {
				continue
			}

			err := ch.InjectFulfill(&lnwire.UpdateFulfillHtlc{
				ChanID:          ch.ChannelID(),
				ID:              htlc.ID,
				PaymentPreimage: preimage,
			})
			if err != nil {
				return err
			}
		}

		return ch.CommitPending()
	})
}

// OnIncomingCommitted implements channel.Master: once an incoming HTLC is
// cross-signed into peerID's channel, route it onward if its onion names a
// further hop. Caller must hold opMu.
func (cm *ChannelMaster) OnIncomingCommitted(peerID [33]byte, add lnwire.UpdateAddHtlc) {
	ch, ok := cm.lookup(peerID)
	if !ok {
		return
	}
	cm.forwardIncoming(ch, add)
}

// forwardIncoming decides the fate of a freshly committed incoming HTLC,
// the hosted-channel counterpart of handleHtlcIntercept: final hops wait
// for local settlement, hosted next hops get the HTLC re-proposed onto
// the owning channel, and anything else is handed to the node's own
// switch. Caller must hold opMu.
func (cm *ChannelMaster) forwardIncoming(inCh *channel.Channel, add lnwire.UpdateAddHtlc) {
	incoming := channel.HtlcIdentifier{
		ShortChannelID: inCh.ShortChannelID(),
		HtlcID:         add.ID,
	}

	// An existing forward record means a prior run already routed this
	// HTLC; startup replay owns re-proposing those.
	if _, exists, err := cm.db.FetchForward(incoming); err != nil || exists {
		return
	}

	onion, err := cm.node.DecryptOnion(add.OnionBlob, add.PaymentHash)
	if err != nil {
		cm.failIncoming(inCh, add.ID, "unable to decrypt onion")
		return
	}

	if onion.FinalHop {
		// This node is the destination; settlement arrives through
		// SettleIncoming once the preimage holder reveals it.
		return
	}

	cm.mu.Lock()
	outPeerID, isHosted := cm.scidIndex[onion.NextShortChanID]
	cm.mu.Unlock()

	if isHosted {
		outCh, ok := cm.lookup(outPeerID)
		if !ok || outCh.Status() != channel.StatusActive {
			cm.failIncoming(inCh, add.ID, "hosted channel unavailable")
			return
		}

		fut, err := outCh.AddHtlc(&incoming, onion.AmountToForward,
			add.PaymentHash, onion.OutgoingCltv, onion.NextOnionBlob)
		if err != nil {
			cm.failIncoming(inCh, add.ID, err.Error())
			return
		}
		_ = outCh.CommitPending()
		cm.persist(outCh)

		go cm.awaitHostedForward(incoming, fut)
		return
	}

	// The forward record is persisted ahead of handing the leg to the
	// node, so a crash in between still ties the settlement back to the
	// incoming channel.
	outgoing := channel.HtlcIdentifier{ShortChannelID: onion.NextShortChanID}
	if err := cm.db.PutForward(incoming, outgoing); err != nil {
		cm.failIncoming(inCh, add.ID, "unable to record forward")
		return
	}

	results, err := cm.node.ForwardHTLC(onion.NextShortChanID,
		onion.AmountToForward, onion.OutgoingCltv, add.PaymentHash,
		onion.NextOnionBlob)
	if err != nil {
		_ = cm.db.DeleteForward(incoming)
		cm.failIncoming(inCh, add.ID, "unable to forward to node")
		return
	}

	go cm.awaitNodeForward(incoming, results)
}

// failIncoming fails an already committed incoming HTLC back to its
// sender. Caller must hold opMu.
func (cm *ChannelMaster) failIncoming(ch *channel.Channel, htlcID uint64, reason string) {
	if err := ch.FailHtlc(htlcID, []byte(reason)); err != nil {
		return
	}
	_ = ch.CommitPending()
	cm.persist(ch)
}

// awaitHostedForward waits for a hosted outgoing leg to resolve and
// settles the incoming leg accordingly.
func (cm *ChannelMaster) awaitHostedForward(incoming channel.HtlcIdentifier, fut *channel.ResolutionFuture) {
	<-fut.Done()

	cm.opMu.Lock()
	cm.GotPaymentResult(incoming, fut.Result())
	cm.opMu.Unlock()
}

// awaitNodeForward waits for a node-routed outgoing leg to resolve and
// settles the incoming leg accordingly.
func (cm *ChannelMaster) awaitNodeForward(incoming channel.HtlcIdentifier, results <-chan node.ForwardResult) {
	result := <-results

	cm.opMu.Lock()
	cm.GotPaymentResult(incoming, channel.ResolutionResult{
		Fulfilled: result.Fulfilled,
		Preimage:  result.Preimage,
		FailData:  result.FailData,
	})
	cm.opMu.Unlock()
}

// handleHtlcIntercept decides the fate of an HTLC the node's switch is
// about to route across a hosted channel link. A next hop that is itself a
// hosted channel this master owns is
// forwarded onto it directly, resolved asynchronously once that channel's
// own sign-exchange completes; any other next hop is handed back to the
// node's regular routing.
func (cm *ChannelMaster) handleHtlcIntercept(req *node.HtlcAcceptRequest) node.InterceptAction {
	onion, err := cm.node.DecryptOnion(req.OnionBlob, req.PaymentHash)
	if err != nil {
		return node.InterceptAction{Reject: []byte("unable to decrypt onion")}
	}

	if onion.FinalHop {
		return node.InterceptAction{Continue: true}
	}

	cm.mu.Lock()
	outPeerID, isHosted := cm.scidIndex[onion.NextShortChanID]
	cm.mu.Unlock()

	if !isHosted {
		return node.InterceptAction{
			Continue:        true,
			NextShortChanID: onion.NextShortChanID,
			NextAmount:      onion.AmountToForward,
			NextCltvExpiry:  onion.OutgoingCltv,
			NextOnion:       onion.NextOnionBlob,
		}
	}

	incoming := channel.HtlcIdentifier{
		ShortChannelID: req.Incoming,
		HtlcID:         req.IncomingHtlcID,
	}

	cm.opMu.Lock()
	outCh, ok := cm.lookup(outPeerID)
	if !ok || outCh.Status() != channel.StatusActive {
		cm.opMu.Unlock()
		return node.InterceptAction{Reject: []byte("hosted channel unavailable")}
	}

	fut, err := outCh.AddHtlc(&incoming, onion.AmountToForward, req.PaymentHash,
		onion.OutgoingCltv, onion.NextOnionBlob)
	if err != nil {
		cm.opMu.Unlock()
		return node.InterceptAction{Reject: []byte(err.Error())}
	}
	cm.persist(outCh)
	cm.opMu.Unlock()

	go cm.awaitForward(req, fut)

	return node.InterceptAction{Pending: true}
}

// awaitForward waits for the outgoing leg of a forward to resolve and
// delivers the verdict back to the node for the held incoming HTLC.
func (cm *ChannelMaster) awaitForward(req *node.HtlcAcceptRequest, fut *channel.ResolutionFuture) {
	<-fut.Done()
	result := fut.Result()

	_ = cm.db.DeleteForward(channel.HtlcIdentifier{
		ShortChannelID: req.Incoming,
		HtlcID:         req.IncomingHtlcID,
	})

	if result.Fulfilled {
		cm.node.ResolveHeldHTLC(req.Incoming, req.IncomingHtlcID, node.InterceptAction{
			Resolve:  true,
			Preimage: result.Preimage,
		})
		return
	}

	cm.node.ResolveHeldHTLC(req.Incoming, req.IncomingHtlcID, node.InterceptAction{
		Reject: result.FailData,
	})
}

// replayForwards re-proposes the outgoing leg of any forward persisted
// before a crash interrupted it: for every recorded forward whose
// outgoing channel is Active and doesn't yet
// carry the HTLC, it queues the add again exactly as handleHtlcIntercept
// would have.
func (cm *ChannelMaster) replayForwards() error {
	all, err := cm.db.AllForwards()
	if err != nil {
		return err
	}

	cm.opMu.Lock()
	defer cm.opMu.Unlock()

	for incoming, outgoing := range all {
		peerID, found := cm.scidToPeer(outgoing.ShortChannelID)
		if !found {
			// A node-routed leg: re-hand it to the node's switch.
			cm.replayNodeForward(incoming)
			continue
		}
		outCh, ok := cm.lookup(peerID)
		if !ok || outCh.Status() != channel.StatusActive {
			continue
		}
		if outCh.HasOutgoing(outgoing.HtlcID) {
			continue
		}

		var paymentHash [32]byte
		var amount lnwire.MilliSatoshi
		var cltvExpiry uint32
		if inPeerID, found := cm.scidToPeer(incoming.ShortChannelID); found {
			if inCh, ok := cm.lookup(inPeerID); ok {
				if htlc := inCh.FindIncomingHtlc(incoming.HtlcID); htlc != nil {
					paymentHash = htlc.PaymentHash
					amount = htlc.Amount
					cltvExpiry = htlc.CltvExpiry
				}
			}
		}

		fut, err := outCh.AddHtlc(&incoming, amount, paymentHash, cltvExpiry, [lnwire.OnionPacketSize]byte{})
		if err != nil {
			continue
		}
		cm.persist(outCh)
		go cm.awaitForward(&node.HtlcAcceptRequest{
			Incoming:       incoming.ShortChannelID,
			IncomingHtlcID: incoming.HtlcID,
			PaymentHash:    paymentHash,
		}, fut)
	}

	return nil
}

// replayNodeForward re-hands a node-routed outgoing leg to the node's
// switch after a restart, recovering the routing instructions from the
// incoming HTLC's onion. Caller must hold opMu.
func (cm *ChannelMaster) replayNodeForward(incoming channel.HtlcIdentifier) {
	inPeerID, found := cm.scidToPeer(incoming.ShortChannelID)
	if !found {
		return
	}
	inCh, ok := cm.lookup(inPeerID)
	if !ok {
		return
	}

	htlc := inCh.FindIncomingHtlc(incoming.HtlcID)
	if htlc == nil {
		// The incoming leg already resolved; the record is stale.
		_ = cm.db.DeleteForward(incoming)
		return
	}

	onion, err := cm.node.DecryptOnion(htlc.OnionBlob, htlc.PaymentHash)
	if err != nil || onion.FinalHop {
		return
	}

	results, err := cm.node.ForwardHTLC(onion.NextShortChanID,
		onion.AmountToForward, onion.OutgoingCltv, htlc.PaymentHash,
		onion.NextOnionBlob)
	if err != nil {
		return
	}

	go cm.awaitNodeForward(incoming, results)
}

func (cm *ChannelMaster) scidToPeer(scid lnwire.ShortChannelID) ([33]byte, bool) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	peerID, ok := cm.scidIndex[scid]
	return peerID, ok
}
