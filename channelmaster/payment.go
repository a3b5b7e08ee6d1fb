package channelmaster

import (
	"github.com/lightninglabs/hosted-channels/channel"
	"github.com/lightninglabs/hosted-channels/lnwire"
)

// SendPayment originates an HTLC on peerID's channel directly, the
// zero-incoming-leg case of AddHtlc: this node is the payment's source
// rather than a forwarding hop. The returned future resolves once the
// peer's fulfill or fail commits.
func (cm *ChannelMaster) SendPayment(peerID [33]byte, amount lnwire.MilliSatoshi, paymentHash [32]byte, cltvExpiry uint32, onionBlob [lnwire.OnionPacketSize]byte) (*channel.ResolutionFuture, error) {
	cm.opMu.Lock()
	defer cm.opMu.Unlock()

	ch, ok := cm.lookup(peerID)
	if !ok {
		return nil, errUnknownChannel
	}

	fut, err := ch.AddHtlc(nil, amount, paymentHash, cltvExpiry, onionBlob)
	cm.persist(ch)
	return fut, err
}

// SettleIncoming fulfills an HTLC peerID's channel holds on our incoming
// side with a known preimage, the final-hop case of GotPaymentResult: this
// node is itself the payment's destination, so there is no upstream leg to
// notify.
func (cm *ChannelMaster) SettleIncoming(peerID [33]byte, htlcID uint64, preimage [32]byte) error {
	cm.opMu.Lock()
	defer cm.opMu.Unlock()

	ch, ok := cm.lookup(peerID)
	if !ok {
		return errUnknownChannel
	}

	if err := ch.SettleHtlc(htlcID, preimage); err != nil {
		cm.persist(ch)
		return err
	}

	err := ch.CommitPending()
	cm.persist(ch)
	return err
}
