// hcctl is the urfave/cli control client for the hosted-channels plugin's
// JSON-RPC surface: a thin binary whose only job is marshaling flags into
// an RPC call and printing the reply as JSON.
package main

import (
	"encoding/json"
	"fmt"
	"net/rpc/jsonrpc"
	"os"

	"github.com/urfave/cli"
)

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[hcctl] %v\n", err)
	os.Exit(1)
}

func dial(ctx *cli.Context) *jsonrpcClient {
	network := ctx.GlobalString("rpcnetwork")
	address := ctx.GlobalString("rpcserver")

	client, err := jsonrpc.Dial(network, address)
	if err != nil {
		fatal(fmt.Errorf("dial %s %s: %w", network, address, err))
	}

	return &jsonrpcClient{client}
}

func printJSON(v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fatal(err)
	}
	fmt.Println(string(b))
}

func main() {
	app := cli.NewApp()
	app.Name = "hcctl"
	app.Usage = "control plane for the hosted-channels plugin"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "rpcnetwork",
			Value: "unix",
			Usage: "network hcctl dials the control socket on (unix or tcp)",
		},
		cli.StringFlag{
			Name:  "rpcserver",
			Value: "/hc.sock",
			Usage: "address hcctl dials: a unix socket path, or host:port for tcp",
		},
	}
	app.Commands = []cli.Command{
		listCommand,
		channelCommand,
		overrideCommand,
		acceptOverrideCommand,
		resizeCommand,
		closeCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}
