// Package channel implements the per-peer hosted-channel state machine: the
// LastCrossSignedState invariants, the pending-updates reconciliation
// protocol, HTLC add/fulfill/fail handling, resize, and state-override
// recovery.
package channel

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/go-errors/errors"

	"github.com/lightninglabs/hosted-channels/lnwallet"
	"github.com/lightninglabs/hosted-channels/lnwire"
)

// ErrBalanceMismatch is returned when an LCSS's balances don't sum to its
// capacity.
var ErrBalanceMismatch = errors.New("local and remote balances do not sum to channel capacity")

// ErrHtlcBelowMinimum is returned when an in-flight HTLC amount is below
// the channel's configured minimum.
var ErrHtlcBelowMinimum = errors.New("htlc amount below htlcMinimumMsat")

// ErrTooManyHtlcs is returned when the combined in-flight HTLC count
// exceeds maxAcceptedHtlcs.
var ErrTooManyHtlcs = errors.New("in-flight htlc count exceeds maxAcceptedHtlcs")

// ErrHtlcValueTooLarge is returned when the combined in-flight HTLC value
// exceeds maxHtlcValueInFlightMsat.
var ErrHtlcValueTooLarge = errors.New("in-flight htlc value exceeds maxHtlcValueInFlightMsat")

// ErrInvalidRemoteSig is returned when the counterparty's signature over
// our view of the LCSS fails to verify.
var ErrInvalidRemoteSig = errors.New("remote signature does not verify against local lcss view")

// ErrInvalidLocalSig is returned when our own recorded signature over the
// counterparty's view fails to verify - this should never happen for a
// state we produced ourselves, and indicates local corruption.
var ErrInvalidLocalSig = errors.New("local signature does not verify against remote lcss view")

// ValidateLCSS checks the cross-signed state's invariants against lcss,
// verifying signatures under localPub/remotePub. That Reverse() swaps
// roles/balances/updates/htlcs/sigs symmetrically is a structural property
// of lnwire.LastCrossSignedState.Reverse and is exercised by its own tests
// rather than checked at runtime here.
func ValidateLCSS(lcss *lnwire.LastCrossSignedState, localPub, remotePub *btcec.PublicKey) error {
	params := lcss.InitHostedChannel

	// Balances sum to capacity.
	if lcss.LocalBalance+lcss.RemoteBalance != params.ChannelCapacity {
		return ErrBalanceMismatch
	}

	allHtlcs := make([]lnwire.UpdateAddHtlc, 0, len(lcss.IncomingHtlcs)+len(lcss.OutgoingHtlcs))
	allHtlcs = append(allHtlcs, lcss.IncomingHtlcs...)
	allHtlcs = append(allHtlcs, lcss.OutgoingHtlcs...)

	// No HTLC amount below htlcMinimumMsat.
	var totalValue lnwire.MilliSatoshi
	for _, h := range allHtlcs {
		if h.Amount < params.HtlcMinimum {
			return ErrHtlcBelowMinimum
		}
		totalValue += h.Amount
	}

	// Combined htlc count bound.
	if uint16(len(allHtlcs)) > params.MaxAcceptedHtlcs {
		return ErrTooManyHtlcs
	}

	// Combined htlc value bound.
	if totalValue > params.MaxHtlcValueInFlight {
		return ErrHtlcValueTooLarge
	}

	// Both signatures verify.
	return verifySignatures(lcss, localPub, remotePub)
}

// verifySignatures checks RemoteSigOfLocal against our own view (lcss as
// given) under remotePub, and LocalSigOfRemote against the counterparty's
// view (lcss.Reverse()) under localPub. See the RemoteSigOfLocal /
// LocalSigOfRemote doc comments in lnwire for why no extra reversal is
// needed for the former.
func verifySignatures(lcss *lnwire.LastCrossSignedState, localPub, remotePub *btcec.PublicKey) error {
	localDigest, err := lnwallet.HostedSigHash(lcss)
	if err != nil {
		return err
	}

	remoteSig, err := lnwallet.ParseSignature(lcss.RemoteSigOfLocal)
	if err != nil {
		return errors.WrapPrefix(err, "parsing remote signature", 0)
	}
	if !lnwallet.VerifyDigest(remotePub, localDigest, remoteSig) {
		return ErrInvalidRemoteSig
	}

	remoteView := lcss.Reverse()
	remoteDigest, err := lnwallet.HostedSigHash(remoteView)
	if err != nil {
		return err
	}

	localSig, err := lnwallet.ParseSignature(lcss.LocalSigOfRemote)
	if err != nil {
		return errors.WrapPrefix(err, "parsing local signature", 0)
	}
	if !lnwallet.VerifyDigest(localPub, remoteDigest, localSig) {
		return ErrInvalidLocalSig
	}

	return nil
}

// SignLCSS fills in lcss.LocalSigOfRemote by signing the counterparty's
// view (lcss.Reverse()) with signer, the half of the cross-sign each side
// performs on its own candidate before sending a StateUpdate.
func SignLCSS(lcss *lnwire.LastCrossSignedState, signer lnwallet.Signer) error {
	digest, err := lnwallet.HostedSigHash(lcss.Reverse())
	if err != nil {
		return err
	}

	sig, err := signer.Sign(digest)
	if err != nil {
		return err
	}

	lcss.LocalSigOfRemote = lnwallet.SerializeSignature(sig)
	return nil
}

// InitialLCSS builds the channel's genesis state: InitialClientBalance on
// the client side and the rest of the capacity on the host side, zero
// updates, no in-flight HTLCs.
func InitialLCSS(isHost bool, refundScriptPubKey []byte, params lnwire.InitHostedChannelParams, blockDay uint32) *lnwire.LastCrossSignedState {
	lcss := &lnwire.LastCrossSignedState{
		IsHost:             isHost,
		RefundScriptPubKey: refundScriptPubKey,
		InitHostedChannel:  params,
		BlockDay:           blockDay,
		RemoteBalance:      params.ChannelCapacity - params.InitialClientBalance,
		LocalBalance:       params.InitialClientBalance,
	}
	if isHost {
		lcss.LocalBalance, lcss.RemoteBalance = lcss.RemoteBalance, lcss.LocalBalance
	}
	return lcss
}
