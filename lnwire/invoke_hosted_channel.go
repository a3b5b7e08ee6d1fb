package lnwire

import "io"

// InvokeHostedChannel is the first message a Client sends to a Host to
// request (or resume) a hosted channel.
type InvokeHostedChannel struct {
	ChainHash [32]byte

	// RefundScriptPubKey is the client's on-chain refund destination. It
	// is immutable for the lifetime of the channel once set.
	RefundScriptPubKey []byte

	// SecretBytes allows a client to authenticate a resumed invocation
	// against the host's own opaque per-client secret, so a restart
	// can't be used to squat on someone else's channel.
	SecretBytes []byte
}

var _ Message = (*InvokeHostedChannel)(nil)

func (i *InvokeHostedChannel) Encode(w io.Writer) error {
	if err := writeFixed(w, i.ChainHash[:]); err != nil {
		return err
	}
	if err := writeVarBytes(w, i.RefundScriptPubKey); err != nil {
		return err
	}
	return writeVarBytes(w, i.SecretBytes)
}

func (i *InvokeHostedChannel) Decode(r io.Reader) error {
	if err := readFixed(r, i.ChainHash[:]); err != nil {
		return err
	}

	refund, err := readVarBytes(r)
	if err != nil {
		return err
	}
	i.RefundScriptPubKey = refund

	secret, err := readVarBytes(r)
	if err != nil {
		return err
	}
	i.SecretBytes = secret

	return nil
}

func (i *InvokeHostedChannel) MsgType() MessageType {
	return MsgInvokeHostedChannel
}
