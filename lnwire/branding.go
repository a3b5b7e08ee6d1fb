package lnwire

import "io"

// AskBrandingInfo requests the host's display branding for a hosted
// channel, sent by clients that want to show a friendly name/color/contact
// for the host they're connected to.
type AskBrandingInfo struct {
	ChanID ChannelID
}

var _ Message = (*AskBrandingInfo)(nil)

func (a *AskBrandingInfo) Encode(w io.Writer) error {
	return writeFixed(w, a.ChanID[:])
}

func (a *AskBrandingInfo) Decode(r io.Reader) error {
	return readFixed(r, a.ChanID[:])
}

func (a *AskBrandingInfo) MsgType() MessageType {
	return MsgAskBrandingInfo
}

// HostedChannelBranding carries optional display metadata a host may offer
// about itself: a contact URL/email, a label, and an RGB color tuple, none
// of which affect channel state or balances.
type HostedChannelBranding struct {
	ChanID ChannelID

	RGBColor [3]byte

	ContactInfo []byte

	Label []byte
}

var _ Message = (*HostedChannelBranding)(nil)

func (h *HostedChannelBranding) Encode(w io.Writer) error {
	if err := writeFixed(w, h.ChanID[:]); err != nil {
		return err
	}
	if err := writeFixed(w, h.RGBColor[:]); err != nil {
		return err
	}
	if err := writeVarBytes(w, h.ContactInfo); err != nil {
		return err
	}
	return writeVarBytes(w, h.Label)
}

func (h *HostedChannelBranding) Decode(r io.Reader) error {
	if err := readFixed(r, h.ChanID[:]); err != nil {
		return err
	}
	if err := readFixed(r, h.RGBColor[:]); err != nil {
		return err
	}

	contact, err := readVarBytes(r)
	if err != nil {
		return err
	}
	h.ContactInfo = contact

	label, err := readVarBytes(r)
	if err != nil {
		return err
	}
	h.Label = label

	return nil
}

func (h *HostedChannelBranding) MsgType() MessageType {
	return MsgHostedChannelBranding
}
