// Package rpc implements the hosted-channels control surface: hc-list,
// hc-channel, hc-override, hc-accept-override, hc-resize, hc-close. It is
// fronted by
// net/rpc/jsonrpc, with cmd/hcctl as its urfave/cli client - a thin RPC
// surface behind a thin CLI front-end.
package rpc

import (
	"encoding/hex"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/go-errors/errors"

	"github.com/lightninglabs/hosted-channels/channelmaster"
	"github.com/lightninglabs/hosted-channels/lnwire"
)

var (
	errNotFound  = errors.New("rpc: no channel recorded for that peer")
	errBadPeerID = errors.New("rpc: peer id must be a 33-byte hex-encoded compressed pubkey")
)

// Service implements every control method against a single
// ChannelMaster, registered under the RPC name "HostedChannels" so a
// client calls e.g. "HostedChannels.List".
type Service struct {
	master *channelmaster.ChannelMaster
}

// NewService wraps master as a control-surface RPC service.
func NewService(master *channelmaster.ChannelMaster) *Service {
	return &Service{master: master}
}

// ListArgs takes no parameters; it exists so the method fits net/rpc's
// (args, reply) calling convention.
type ListArgs struct{}

// ListReply is hc-list's result: a snapshot of every channel this node
// currently has a record for.
type ListReply struct {
	Channels []channelmaster.ChannelInfo
}

// List implements hc-list.
func (s *Service) List(_ *ListArgs, reply *ListReply) error {
	reply.Channels = s.master.ListChannels()
	return nil
}

// PeerArgs identifies a single channel by its counterparty's hex-encoded
// compressed identity pubkey, the parameter every other control method
// but List takes.
type PeerArgs struct {
	PeerID string
}

// ChannelReply is hc-channel's result.
type ChannelReply struct {
	Channel channelmaster.ChannelInfo
}

// Channel implements hc-channel.
func (s *Service) Channel(args *PeerArgs, reply *ChannelReply) error {
	peerID, err := parsePeerID(args.PeerID)
	if err != nil {
		return err
	}

	info, ok := s.master.GetChannel(peerID)
	if !ok {
		return errNotFound
	}

	reply.Channel = *info
	return nil
}

// OverrideArgs is hc-override's parameters: the channel and the local
// balance the host proposes to force the suspended channel to.
type OverrideArgs struct {
	PeerID              string
	NewLocalBalanceMsat uint64
}

// OverrideReply carries no data; a non-nil RPC error means the override
// was rejected.
type OverrideReply struct{}

// Override implements hc-override.
func (s *Service) Override(args *OverrideArgs, _ *OverrideReply) error {
	peerID, err := parsePeerID(args.PeerID)
	if err != nil {
		return err
	}
	return s.master.Override(peerID, lnwire.MilliSatoshi(args.NewLocalBalanceMsat))
}

// ResizeArgs is hc-resize's parameters: the channel and the new, strictly
// larger capacity, in satoshis, the client proposes.
type ResizeArgs struct {
	PeerID         string
	NewCapacitySat uint64
}

// ResizeReply carries no data.
type ResizeReply struct{}

// Resize implements hc-resize.
func (s *Service) Resize(args *ResizeArgs, _ *ResizeReply) error {
	peerID, err := parsePeerID(args.PeerID)
	if err != nil {
		return err
	}
	return s.master.Resize(peerID, btcutil.Amount(args.NewCapacitySat))
}

// AcceptOverrideArgs is hc-accept-override's parameters.
type AcceptOverrideArgs struct {
	PeerID string
}

// AcceptOverrideReply carries no data.
type AcceptOverrideReply struct{}

// AcceptOverride implements hc-accept-override: the client's out-of-band
// ratification of a pending StateOverride.
func (s *Service) AcceptOverride(args *AcceptOverrideArgs, _ *AcceptOverrideReply) error {
	peerID, err := parsePeerID(args.PeerID)
	if err != nil {
		return err
	}
	return s.master.AcceptOverride(peerID)
}

// CloseArgs is hc-close's parameters.
type CloseArgs struct {
	PeerID string
}

// CloseReply carries no data.
type CloseReply struct{}

// Close implements hc-close, the only way a channel record is ever
// removed.
func (s *Service) Close(args *CloseArgs, _ *CloseReply) error {
	peerID, err := parsePeerID(args.PeerID)
	if err != nil {
		return err
	}
	return s.master.CloseChannel(peerID)
}

func parsePeerID(s string) ([33]byte, error) {
	var out [33]byte
	raw, err := hex.DecodeString(s)
	if err != nil {
		return out, errBadPeerID
	}
	if len(raw) != 33 {
		return out, errBadPeerID
	}
	copy(out[:], raw)
	return out, nil
}

// Server fronts a Service with net/rpc/jsonrpc, one codec per accepted
// connection.
type Server struct {
	rpcSrv *rpc.Server
	ln     net.Listener
}

// NewServer constructs a Server exposing master's control methods.
func NewServer(master *channelmaster.ChannelMaster) (*Server, error) {
	rpcSrv := rpc.NewServer()
	if err := rpcSrv.RegisterName("HostedChannels", NewService(master)); err != nil {
		return nil, err
	}
	return &Server{rpcSrv: rpcSrv}, nil
}

// Serve listens on network/address (e.g. "unix", "/path/to/hc.sock", or
// "tcp", "localhost:8866") and services one JSON-RPC codec per accepted
// connection until the listener closes or Close is called.
func (s *Server) Serve(network, address string) error {
	ln, err := net.Listen(network, address)
	if err != nil {
		return err
	}
	s.ln = ln
	ccLog.Infof("control rpc listening on %s %s", network, address)

	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go s.rpcSrv.ServeCodec(jsonrpc.NewServerCodec(conn))
	}
}

// Close stops accepting new connections. Connections already being served
// run to completion.
func (s *Server) Close() error {
	if s.ln == nil {
		return nil
	}
	return s.ln.Close()
}
