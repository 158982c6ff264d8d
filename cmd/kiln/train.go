package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/kilnlm/kiln/internal/logger"
)

func trainCmd() *cli.Command {
	flags := corpusFlags()
	flags = append(flags, modelFlags()...)
	flags = append(flags, trainFlags()...)
	flags = append(flags, samplingFlags()...)

	return &cli.Command{
		Name:  "train",
		Usage: "Train a character-level model on a text corpus",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := LoadConfig()
			if err != nil {
				return cli.Exit(fmt.Sprintf("config: %v", err), 1)
			}
			applyConfig(c, cfg)

			log := logger.FromContext(ctx)
			if _, err := trainPipeline(ctx, log); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			return nil
		},
	}
}
