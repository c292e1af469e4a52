package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/mobilecore/internal/config"
	"git.home.luguber.info/inful/mobilecore/internal/daemon"
	"git.home.luguber.info/inful/mobilecore/internal/logfields"
)

// RunCmd implements the 'run' command.
type RunCmd struct {
	NoWatch bool `help:"Do not reload the sdk section when the configuration file changes"`
}

func (r *RunCmd) Run(g *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	g.Logger = NewLogger(os.Stderr, cfg.Log, root.Verbose)
	slog.SetDefault(g.Logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	path := root.Config
	if r.NoWatch {
		path = ""
	}
	d, err := daemon.New(cfg, path, daemon.WithLogger(g.Logger))
	if err != nil {
		return err
	}
	g.Logger.Info("Daemon ready", logfields.Hub(cfg.Hub.Name), slog.String("admin", cfg.Admin.Listen))
	return d.Run(ctx)
}
