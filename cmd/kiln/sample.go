package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/kilnlm/kiln/internal/inference"
	"github.com/kilnlm/kiln/internal/logger"
	"github.com/kilnlm/kiln/internal/logits"
)

func sampleCmd() *cli.Command {
	var prompt string

	flags := corpusFlags()
	flags = append(flags, modelFlags()...)
	flags = append(flags, trainFlags()...)
	flags = append(flags, samplingFlags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:        "prompt",
			Aliases:     []string{"p"},
			Usage:       "conditioning text (default: first corpus character)",
			Destination: &prompt,
		},
	)

	return &cli.Command{
		Name:  "sample",
		Usage: "Train in-process, then generate text from a prompt",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := LoadConfig()
			if err != nil {
				return cli.Exit(fmt.Sprintf("config: %v", err), 1)
			}
			applyConfig(c, cfg)

			log := logger.FromContext(ctx)
			res, err := trainPipeline(ctx, log)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}

			if prompt == "" {
				prompt = "\n"
				if _, err := res.Vocab.Encode(prompt); err != nil {
					return cli.Exit("newline not in vocabulary; pass --prompt", 1)
				}
			}
			ids, err := res.Vocab.Encode(prompt)
			if err != nil {
				return cli.Exit(fmt.Sprintf("prompt: %v", err), 1)
			}

			sampler, err := logits.NewSampler(logits.Config{
				Temperature: temperature,
				TopK:        int(topK),
				Sample:      doSample,
				Seed:        resolveSeed(),
			})
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}

			gen := &inference.Generator{Model: res.Model, Sampler: sampler}
			out, err := gen.GenerateResult(ctx, ids, int(steps))
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}

			// Generated text goes to stdout; diagnostics stay on stderr.
			fmt.Println(res.Vocab.Decode(out.Tokens))
			log.Info("generation finished",
				"tokens", out.Stats.TokensGenerated,
				"duration", out.Stats.Duration.Round(time.Millisecond),
				"tokens_per_sec", fmt.Sprintf("%.1f", out.Stats.TokensPerSecond),
			)
			return nil
		},
	}
}
