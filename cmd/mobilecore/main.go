package main

import (
	"log/slog"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/mobilecore/cmd/mobilecore/commands"
	"git.home.luguber.info/inful/mobilecore/internal/foundation/errors"
	"git.home.luguber.info/inful/mobilecore/internal/version"
)

func main() {
	cli := &commands.CLI{}
	global := &commands.Global{Logger: slog.Default()}
	parser := kong.Parse(cli,
		kong.Bind(global),
		kong.Name("mobilecore"),
		kong.Description("Event hub, rules engine and durable hit queues for analytics modules"),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	err := parser.Run(cli)
	errors.NewCLIErrorAdapter(cli.Verbose, global.Logger).HandleError(err)
}
