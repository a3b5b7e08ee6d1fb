package main

import (
	"fmt"
	"net/rpc"
	"strconv"

	"github.com/urfave/cli"

	hcrpc "github.com/lightninglabs/hosted-channels/rpc"
)

// jsonrpcClient is the thin wrapper every hcctl subcommand dials and
// calls into.
type jsonrpcClient struct {
	*rpc.Client
}

func parseUint(s string) uint64 {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		fatal(fmt.Errorf("expected an integer amount, got %q: %w", s, err))
	}
	return n
}

var listCommand = cli.Command{
	Name:  "hc-list",
	Usage: "list every hosted channel this node has a record for",
	Action: func(ctx *cli.Context) error {
		client := dial(ctx)
		defer client.Close()

		var reply hcrpc.ListReply
		if err := client.Call("HostedChannels.List", &hcrpc.ListArgs{}, &reply); err != nil {
			return err
		}
		printJSON(reply.Channels)
		return nil
	},
}

var channelCommand = cli.Command{
	Name:      "hc-channel",
	Usage:     "show one hosted channel's current state",
	ArgsUsage: "peer_id",
	Action: func(ctx *cli.Context) error {
		client := dial(ctx)
		defer client.Close()

		var reply hcrpc.ChannelReply
		args := &hcrpc.PeerArgs{PeerID: ctx.Args().First()}
		if err := client.Call("HostedChannels.Channel", args, &reply); err != nil {
			return err
		}
		printJSON(reply.Channel)
		return nil
	},
}

var overrideCommand = cli.Command{
	Name:      "hc-override",
	Usage:     "force a suspended channel to a new state as host",
	ArgsUsage: "peer_id new_local_balance_msat",
	Action: func(ctx *cli.Context) error {
		client := dial(ctx)
		defer client.Close()

		args := &hcrpc.OverrideArgs{
			PeerID:              ctx.Args().Get(0),
			NewLocalBalanceMsat: parseUint(ctx.Args().Get(1)),
		}
		var reply hcrpc.OverrideReply
		if err := client.Call("HostedChannels.Override", args, &reply); err != nil {
			return err
		}
		fmt.Println("override accepted")
		return nil
	},
}

var resizeCommand = cli.Command{
	Name:      "hc-resize",
	Usage:     "propose growing a channel's capacity as client",
	ArgsUsage: "peer_id new_capacity_sat",
	Action: func(ctx *cli.Context) error {
		client := dial(ctx)
		defer client.Close()

		args := &hcrpc.ResizeArgs{
			PeerID:         ctx.Args().Get(0),
			NewCapacitySat: parseUint(ctx.Args().Get(1)),
		}
		var reply hcrpc.ResizeReply
		if err := client.Call("HostedChannels.Resize", args, &reply); err != nil {
			return err
		}
		fmt.Println("resize proposed")
		return nil
	},
}

var acceptOverrideCommand = cli.Command{
	Name:      "hc-accept-override",
	Usage:     "ratify a pending host-issued state override as client",
	ArgsUsage: "peer_id",
	Action: func(ctx *cli.Context) error {
		client := dial(ctx)
		defer client.Close()

		args := &hcrpc.AcceptOverrideArgs{PeerID: ctx.Args().First()}
		var reply hcrpc.AcceptOverrideReply
		if err := client.Call("HostedChannels.AcceptOverride", args, &reply); err != nil {
			return err
		}
		fmt.Println("override ratified")
		return nil
	},
}

var closeCommand = cli.Command{
	Name:      "hc-close",
	Usage:     "remove a hosted channel's record",
	ArgsUsage: "peer_id",
	Action: func(ctx *cli.Context) error {
		client := dial(ctx)
		defer client.Close()

		args := &hcrpc.CloseArgs{PeerID: ctx.Args().First()}
		var reply hcrpc.CloseReply
		if err := client.Call("HostedChannels.Close", args, &reply); err != nil {
			return err
		}
		fmt.Println("channel closed")
		return nil
	},
}
