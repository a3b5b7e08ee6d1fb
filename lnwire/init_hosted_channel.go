package lnwire

import "io"

// InitHostedChannelParams carries the Host's proposed channel parameters.
// It is embedded both in the InitHostedChannel wire message and inside the
// LCSS itself, since the LCSS must remember the terms it was opened under.
type InitHostedChannelParams struct {
	MaxHtlcValueInFlight MilliSatoshi

	HtlcMinimum MilliSatoshi

	MaxAcceptedHtlcs uint16

	ChannelCapacity MilliSatoshi

	InitialClientBalance MilliSatoshi

	Features []byte
}

func (p *InitHostedChannelParams) encode(w io.Writer) error {
	if err := writeMilliSatoshi(w, p.MaxHtlcValueInFlight); err != nil {
		return err
	}
	if err := writeMilliSatoshi(w, p.HtlcMinimum); err != nil {
		return err
	}
	if err := writeUint16(w, p.MaxAcceptedHtlcs); err != nil {
		return err
	}
	if err := writeMilliSatoshi(w, p.ChannelCapacity); err != nil {
		return err
	}
	if err := writeMilliSatoshi(w, p.InitialClientBalance); err != nil {
		return err
	}
	return writeVarBytes(w, p.Features)
}

func (p *InitHostedChannelParams) decode(r io.Reader) error {
	v, err := readMilliSatoshi(r)
	if err != nil {
		return err
	}
	p.MaxHtlcValueInFlight = v

	v, err = readMilliSatoshi(r)
	if err != nil {
		return err
	}
	p.HtlcMinimum = v

	n, err := readUint16(r)
	if err != nil {
		return err
	}
	p.MaxAcceptedHtlcs = n

	v, err = readMilliSatoshi(r)
	if err != nil {
		return err
	}
	p.ChannelCapacity = v

	v, err = readMilliSatoshi(r)
	if err != nil {
		return err
	}
	p.InitialClientBalance = v

	feat, err := readVarBytes(r)
	if err != nil {
		return err
	}
	p.Features = feat

	return nil
}

// InitHostedChannel is sent by the Host in reply to InvokeHostedChannel,
// proposing the terms of the channel.
type InitHostedChannel struct {
	Params InitHostedChannelParams
}

var _ Message = (*InitHostedChannel)(nil)

func (i *InitHostedChannel) Encode(w io.Writer) error {
	return i.Params.encode(w)
}

func (i *InitHostedChannel) Decode(r io.Reader) error {
	return i.Params.decode(r)
}

func (i *InitHostedChannel) MsgType() MessageType {
	return MsgInitHostedChannel
}
