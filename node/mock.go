package node

import (
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/lightninglabs/hosted-channels/lnwire"
)

// SentMessage is one recorded call to Mock.SendCustomMessage, kept for test
// assertions.
type SentMessage struct {
	PeerID  [33]byte
	Tag     lnwire.MessageType
	Payload []byte
}

// Mock is an in-memory NodeInterface double: it records every outbound
// send instead of touching a real peer connection, and lets a caller drive
// inbound events by calling Deliver and Intercept directly.
type Mock struct {
	mu sync.Mutex

	priv *btcec.PrivateKey

	chainHash chainhash.Hash
	block     uint32

	sent []SentMessage

	peerHandler PeerMessageHandler
	htlcHandler HtlcInterceptHandler

	onions map[[32]byte]*DecryptedOnion

	blocks map[uint32][]ChainTx

	nodeForwards    []*ForwardedHtlc
	heldResolutions []HeldResolution
}

// ForwardedHtlc is one recorded ForwardHTLC call. A test delivers the
// downstream settlement by sending on Results.
type ForwardedHtlc struct {
	Scid        lnwire.ShortChannelID
	Amount      lnwire.MilliSatoshi
	CltvExpiry  uint32
	PaymentHash [32]byte
	Onion       [lnwire.OnionPacketSize]byte
	Results     chan ForwardResult
}

// NewMock constructs a Mock node identified by priv, starting at block 0.
func NewMock(priv *btcec.PrivateKey) *Mock {
	return &Mock{
		priv:   priv,
		onions: make(map[[32]byte]*DecryptedOnion),
		blocks: make(map[uint32][]ChainTx),
	}
}

func (m *Mock) SendCustomMessage(peerID [33]byte, tag lnwire.MessageType, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, SentMessage{PeerID: peerID, Tag: tag, Payload: payload})
	return nil
}

// Sent returns every message recorded by SendCustomMessage so far.
func (m *Mock) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

func (m *Mock) OnPeerMessage(handler PeerMessageHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.peerHandler = handler
}

// Deliver simulates an inbound message from peerID, invoking whatever
// handler was registered via OnPeerMessage.
func (m *Mock) Deliver(peerID [33]byte, tag lnwire.MessageType, payload []byte) {
	m.mu.Lock()
	handler := m.peerHandler
	m.mu.Unlock()
	if handler != nil {
		handler(peerID, tag, payload)
	}
}

func (m *Mock) InterceptHTLC(handler HtlcInterceptHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.htlcHandler = handler
}

// Intercept drives the registered HtlcInterceptHandler directly, the way
// the node's own switch would when a hosted-channel link receives an HTLC.
func (m *Mock) Intercept(req *HtlcAcceptRequest) InterceptAction {
	m.mu.Lock()
	handler := m.htlcHandler
	m.mu.Unlock()
	if handler == nil {
		return InterceptAction{Reject: []byte("no interceptor registered")}
	}
	return handler(req)
}

func (m *Mock) CurrentBlock() (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.block, nil
}

// SetBlock advances the mock's view of the chain tip, the test hook for
// exercising ChannelMaster's block fan-out.
func (m *Mock) SetBlock(height uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.block = height
}

func (m *Mock) ChainHash() chainhash.Hash {
	return m.chainHash
}

// SetOnion registers the decryption result DecryptOnion should return for
// a given payment hash, since the mock has no real Sphinx implementation
// to peel.
func (m *Mock) SetOnion(paymentHash [32]byte, result *DecryptedOnion) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onions[paymentHash] = result
}

func (m *Mock) DecryptOnion(onion [lnwire.OnionPacketSize]byte, paymentHash [32]byte) (*DecryptedOnion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if result, ok := m.onions[paymentHash]; ok {
		return result, nil
	}
	return &DecryptedOnion{FinalHop: true}, nil
}

// HeldResolution is one recorded ResolveHeldHTLC call.
type HeldResolution struct {
	Incoming lnwire.ShortChannelID
	HtlcID   uint64
	Action   InterceptAction
}

func (m *Mock) ResolveHeldHTLC(incoming lnwire.ShortChannelID, htlcID uint64, action InterceptAction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.heldResolutions = append(m.heldResolutions, HeldResolution{
		Incoming: incoming,
		HtlcID:   htlcID,
		Action:   action,
	})
}

// HeldResolutions returns every ResolveHeldHTLC call recorded so far.
func (m *Mock) HeldResolutions() []HeldResolution {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]HeldResolution, len(m.heldResolutions))
	copy(out, m.heldResolutions)
	return out
}

func (m *Mock) ForwardHTLC(scid lnwire.ShortChannelID, amount lnwire.MilliSatoshi,
	cltvExpiry uint32, paymentHash [32]byte,
	onion [lnwire.OnionPacketSize]byte) (<-chan ForwardResult, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	f := &ForwardedHtlc{
		Scid:        scid,
		Amount:      amount,
		CltvExpiry:  cltvExpiry,
		PaymentHash: paymentHash,
		Onion:       onion,
		Results:     make(chan ForwardResult, 1),
	}
	m.nodeForwards = append(m.nodeForwards, f)
	return f.Results, nil
}

// NodeForwards returns every ForwardHTLC call recorded so far.
func (m *Mock) NodeForwards() []*ForwardedHtlc {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*ForwardedHtlc, len(m.nodeForwards))
	copy(out, m.nodeForwards)
	return out
}

// SetBlockTxs registers the transactions ScanBlock should return for a
// given height.
func (m *Mock) SetBlockTxs(height uint32, txs []ChainTx) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks[height] = txs
}

func (m *Mock) ScanBlock(height uint32) ([]ChainTx, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blocks[height], nil
}

func (m *Mock) PrivateKey() *btcec.PrivateKey {
	return m.priv
}

func (m *Mock) PublicKey() *btcec.PublicKey {
	return m.priv.PubKey()
}

var _ NodeInterface = (*Mock)(nil)
