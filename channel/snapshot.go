package channel

import "github.com/lightninglabs/hosted-channels/lnwire"

// Snapshot is the subset of a Channel's state that ChannelMaster persists
// after every call that might have mutated it: the latest LCSS plus its
// local/remote error history and any resize awaiting the next commit.
type Snapshot struct {
	LCSS          *lnwire.LastCrossSignedState
	LocalErrors   []StoredError
	RemoteErrors  []StoredError
	PendingResize *lnwire.ResizeChannel
}

// Snapshot returns the data ChannelMaster should persist for this channel
// right now.
func (c *Channel) Snapshot() Snapshot {
	return Snapshot{
		LCSS:          c.lcss,
		LocalErrors:   append([]StoredError(nil), c.localErrors...),
		RemoteErrors:  append([]StoredError(nil), c.remoteErrors...),
		PendingResize: c.pendingResize,
	}
}
