package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/kilnlm/kiln/internal/runlog"
)

func runsCmd() *cli.Command {
	var limit int64

	return &cli.Command{
		Name:  "runs",
		Usage: "List recent training runs from the runlog database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "runlog",
				Usage:       "path to the SQLite metrics database",
				Destination: &runlogPath,
			},
			&cli.Int64Flag{
				Name:        "limit",
				Usage:       "maximum runs to list",
				Value:       20,
				Destination: &limit,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := LoadConfig()
			if err != nil {
				return cli.Exit(fmt.Sprintf("config: %v", err), 1)
			}
			if cfg.Runlog != "" && !c.IsSet("runlog") {
				runlogPath = cfg.Runlog
			}
			if runlogPath == "" {
				return cli.Exit("no runlog database given; pass --runlog", 1)
			}

			store, err := runlog.Open(runlogPath)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			defer func() { _ = store.Close() }()

			runs, err := store.Runs(int(limit))
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			if len(runs) == 0 {
				fmt.Println("no runs recorded")
				return nil
			}

			fmt.Printf("%-36s  %-20s  %-10s  %s\n", "ID", "STARTED", "LOSS", "STEPS")
			for _, r := range runs {
				loss := "-"
				if r.FinalLoss.Valid {
					loss = fmt.Sprintf("%.4f", r.FinalLoss.Float64)
				}
				steps := "-"
				if r.Steps.Valid {
					steps = fmt.Sprintf("%d", r.Steps.Int64)
				}
				fmt.Printf("%-36s  %-20s  %-10s  %s\n",
					r.ID, r.StartedAt.Format(time.DateTime), loss, steps)
			}
			return nil
		},
	}
}
