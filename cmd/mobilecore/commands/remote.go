package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/mobilecore/internal/api"
	"git.home.luguber.info/inful/mobilecore/internal/config"
	"git.home.luguber.info/inful/mobilecore/internal/network"
)

const remoteTimeout = 10 * time.Second

// Remote holds the flags shared by commands talking to a running daemon.
type Remote struct {
	Admin string `help:"Admin API address (defaults to admin.listen from the configuration)"`
	Token string `help:"Bearer token for mutating endpoints" env:"MOBILECORE_ADMIN_TOKEN"`
}

func (r Remote) client(root *CLI) (*api.Client, error) {
	addr, token := r.Admin, r.Token
	if addr == "" || token == "" {
		cfg, err := config.Load(root.Config)
		if err != nil && addr == "" {
			return nil, err
		}
		if cfg != nil {
			if addr == "" {
				addr = cfg.Admin.Listen
			}
			if token == "" && len(cfg.Admin.Tokens) > 0 {
				token = cfg.Admin.Tokens[0]
			}
		}
	}
	net := network.NewHTTPService("admin-client", network.WithTimeouts(remoteTimeout/2, remoteTimeout/2))
	return api.NewClient(addr, token, net), nil
}

// DispatchCmd implements the 'dispatch' command.
type DispatchCmd struct {
	Remote
	Name   string   `help:"Event name" default:"CLI Event"`
	Type   string   `required:"" help:"Event type"`
	Source string   `required:"" help:"Event source"`
	PairID string   `name:"pair-id" help:"Pair id of the request this event answers"`
	Data   []string `short:"d" help:"Event data as key=value, repeatable"`
}

func (d *DispatchCmd) Run(_ *Global, root *CLI) error {
	data, err := parseData(d.Data)
	if err != nil {
		return err
	}
	c, err := d.client(root)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), remoteTimeout)
	defer cancel()
	out, err := c.Dispatch(ctx, api.DispatchRequest{
		Name:   d.Name,
		Type:   d.Type,
		Source: d.Source,
		PairID: d.PairID,
		Data:   data,
	})
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// QueueCmd groups the queue subcommands.
type QueueCmd struct {
	Status QueueStatusCmd `cmd:"" help:"List hit queues and their sizes"`
	Purge  QueuePurgeCmd  `cmd:"" help:"Delete every hit in a queue"`
}

type QueueStatusCmd struct {
	Remote
}

func (q *QueueStatusCmd) Run(_ *Global, root *CLI) error {
	c, err := q.client(root)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), remoteTimeout)
	defer cancel()
	queues, err := c.Queues(ctx)
	if err != nil {
		return err
	}
	printQueues(os.Stdout, queues)
	return nil
}

func printQueues(w io.Writer, queues []api.QueueDTO) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TABLE\tSIZE\tSTATE")
	for _, q := range queues {
		state := "online"
		if q.Suspended {
			state = "suspended"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\n", q.Table, q.Size, state)
	}
	_ = tw.Flush()
}

type QueuePurgeCmd struct {
	Remote
	Table string `required:"" help:"Queue table to purge"`
}

func (q *QueuePurgeCmd) Run(_ *Global, root *CLI) error {
	c, err := q.client(root)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), remoteTimeout)
	defer cancel()
	res, err := c.Purge(ctx, q.Table)
	if err != nil {
		return err
	}
	fmt.Printf("purged %d hits from %s\n", res.Deleted, res.Table)
	return nil
}
