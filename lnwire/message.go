// Package lnwire implements the wire codec for the hosted-channel peer
// protocol: a nonstandard range of BOLT-style messages exchanged between a
// hosted-channel Host and Client over an already-authenticated Lightning
// peer connection.
package lnwire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// MaxMessagePayload is the maximum bytes a message can be regardless of
// other individual limits imposed by messages themselves.
const MaxMessagePayload = 65535

// MessageType is the unique 2-byte big-endian integer that indicates the
// type of message on the wire.
type MessageType uint16

// The tag range used for hosted-channel messages. These intentionally sit
// outside the standard BOLT message range. All but two are odd, so a peer
// unaware of hosted channels can ignore them per the "it's okay to be odd"
// rule; the two reply tags, 65518 and 65516, are even.
const (
	MsgInvokeHostedChannel       MessageType = 65535
	MsgInitHostedChannel         MessageType = 65533
	MsgLastCrossSignedState      MessageType = 65531
	MsgStateUpdate               MessageType = 65529
	MsgStateOverride             MessageType = 65527
	MsgHostedChannelBranding     MessageType = 65525
	MsgAnnouncementSignature     MessageType = 65523
	MsgResizeChannel             MessageType = 65521
	MsgQueryPublicHostedChannels MessageType = 65519
	MsgReplyPublicHostedChannels MessageType = 65518
	MsgQueryPreimages            MessageType = 65517
	MsgReplyPreimages            MessageType = 65516
	MsgAskBrandingInfo           MessageType = 65515
	MsgError                     MessageType = 65513
	MsgUpdateAddHtlc             MessageType = 65511
	MsgUpdateFulfillHtlc         MessageType = 65509
	MsgUpdateFailHtlc            MessageType = 65507
	MsgUpdateFailMalformedHtlc   MessageType = 65505
	MsgChannelUpdate             MessageType = 65503
	MsgChannelAnnouncement       MessageType = 65501
)

// String returns the human readable name of a message type, used in logs.
func (t MessageType) String() string {
	switch t {
	case MsgInvokeHostedChannel:
		return "InvokeHostedChannel"
	case MsgInitHostedChannel:
		return "InitHostedChannel"
	case MsgLastCrossSignedState:
		return "LastCrossSignedState"
	case MsgStateUpdate:
		return "StateUpdate"
	case MsgStateOverride:
		return "StateOverride"
	case MsgHostedChannelBranding:
		return "HostedChannelBranding"
	case MsgAnnouncementSignature:
		return "AnnouncementSignature"
	case MsgResizeChannel:
		return "ResizeChannel"
	case MsgQueryPublicHostedChannels:
		return "QueryPublicHostedChannels"
	case MsgReplyPublicHostedChannels:
		return "ReplyPublicHostedChannels"
	case MsgQueryPreimages:
		return "QueryPreimages"
	case MsgReplyPreimages:
		return "ReplyPreimages"
	case MsgAskBrandingInfo:
		return "AskBrandingInfo"
	case MsgError:
		return "Error"
	case MsgUpdateAddHtlc:
		return "UpdateAddHtlc"
	case MsgUpdateFulfillHtlc:
		return "UpdateFulfillHtlc"
	case MsgUpdateFailHtlc:
		return "UpdateFailHtlc"
	case MsgUpdateFailMalformedHtlc:
		return "UpdateFailMalformedHtlc"
	case MsgChannelUpdate:
		return "ChannelUpdate"
	case MsgChannelAnnouncement:
		return "ChannelAnnouncement"
	default:
		return fmt.Sprintf("<unknown %d>", uint16(t))
	}
}

// UnknownMessage is returned when ReadMessage encounters a message type it
// doesn't recognize.
type UnknownMessage struct {
	Type MessageType
}

func (u *UnknownMessage) Error() string {
	return fmt.Sprintf("unable to parse hosted-channel message of unknown "+
		"type: %v", u.Type)
}

// Message is the interface a hosted-channel wire message must implement.
// Every message owns a single canonical encoding: no two implementations
// may disagree about the bytes that represent a value, since several of
// these payloads are concatenated directly into LCSS signature material.
type Message interface {
	Decode(io.Reader) error
	Encode(w io.Writer) error
	MsgType() MessageType
}

func makeEmptyMessage(msgType MessageType) (Message, error) {
	var msg Message

	switch msgType {
	case MsgInvokeHostedChannel:
		msg = &InvokeHostedChannel{}
	case MsgInitHostedChannel:
		msg = &InitHostedChannel{}
	case MsgLastCrossSignedState:
		msg = &LastCrossSignedState{}
	case MsgStateUpdate:
		msg = &StateUpdate{}
	case MsgStateOverride:
		msg = &StateOverride{}
	case MsgHostedChannelBranding:
		msg = &HostedChannelBranding{}
	case MsgAnnouncementSignature:
		msg = &AnnouncementSignature{}
	case MsgResizeChannel:
		msg = &ResizeChannel{}
	case MsgQueryPublicHostedChannels:
		msg = &QueryPublicHostedChannels{}
	case MsgReplyPublicHostedChannels:
		msg = &ReplyPublicHostedChannels{}
	case MsgQueryPreimages:
		msg = &QueryPreimages{}
	case MsgReplyPreimages:
		msg = &ReplyPreimages{}
	case MsgAskBrandingInfo:
		msg = &AskBrandingInfo{}
	case MsgError:
		msg = &Error{}
	case MsgUpdateAddHtlc:
		msg = &UpdateAddHtlc{}
	case MsgUpdateFulfillHtlc:
		msg = &UpdateFulfillHtlc{}
	case MsgUpdateFailHtlc:
		msg = &UpdateFailHtlc{}
	case MsgUpdateFailMalformedHtlc:
		msg = &UpdateFailMalformedHtlc{}
	case MsgChannelUpdate:
		msg = &ChannelUpdate{}
	case MsgChannelAnnouncement:
		msg = &ChannelAnnouncement{}
	default:
		return nil, &UnknownMessage{Type: msgType}
	}

	return msg, nil
}

// WriteMessage serializes a hosted-channel message, prefixed with its type
// tag, to w. It returns the total number of bytes written.
func WriteMessage(w io.Writer, msg Message) (int, error) {
	var payload bytes.Buffer
	if err := msg.Encode(&payload); err != nil {
		return 0, err
	}

	if payload.Len() > MaxMessagePayload {
		return 0, fmt.Errorf("message payload is too large - encoded "+
			"%d bytes, but maximum message payload is %d bytes",
			payload.Len(), MaxMessagePayload)
	}

	var typeBuf [2]byte
	binary.BigEndian.PutUint16(typeBuf[:], uint16(msg.MsgType()))

	n, err := w.Write(typeBuf[:])
	if err != nil {
		return n, err
	}

	m, err := w.Write(payload.Bytes())
	return n + m, err
}

// ReadMessage reads, classifies, and decodes the next hosted-channel message
// from r.
func ReadMessage(r io.Reader) (Message, error) {
	var typeBuf [2]byte
	if _, err := io.ReadFull(r, typeBuf[:]); err != nil {
		return nil, err
	}
	msgType := MessageType(binary.BigEndian.Uint16(typeBuf[:]))

	msg, err := makeEmptyMessage(msgType)
	if err != nil {
		return nil, err
	}
	if err := msg.Decode(r); err != nil {
		return nil, err
	}

	return msg, nil
}

// DecodePayload classifies and decodes a message body that was already
// split from its type tag by the transport (the node's custom-message API
// delivers (tag, payload) pairs rather than a single framed stream), the
// other half of WriteMessage's split for callers on that boundary.
func DecodePayload(msgType MessageType, payload []byte) (Message, error) {
	msg, err := makeEmptyMessage(msgType)
	if err != nil {
		return nil, err
	}
	if err := msg.Decode(bytes.NewReader(payload)); err != nil {
		return nil, err
	}
	return msg, nil
}

// EncodePayload encodes msg's body alone, without the type-tag prefix
// WriteMessage adds, for sending over a transport that frames the tag
// itself (SendCustomMessage's separate tag argument).
func EncodePayload(msg Message) ([]byte, error) {
	var buf bytes.Buffer
	if err := msg.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
