package channel

// OnBlockUpdated is called by ChannelMaster on every new block tip. It
// scans outgoing HTLCs for ones whose cltvExpiry has come
// within cfg.CltvSafetyDelta of the current height; finding any suspends
// the channel and fails them upstream, since a hosted channel has no
// on-chain leg to unilaterally claim an expiring HTLC with.
func (c *Channel) OnBlockUpdated(currentHeight uint32) error {
	if c.status != StatusActive || c.lcss == nil {
		return nil
	}

	for _, htlc := range c.lcss.OutgoingHtlcs {
		if htlc.CltvExpiry <= currentHeight+c.cfg.CltvSafetyDelta {
			return c.suspend("outgoing htlc approaching cltv expiry")
		}
	}

	return nil
}
