package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/kilnlm/kiln/internal/api"
	"github.com/kilnlm/kiln/internal/logger"
	"github.com/kilnlm/kiln/internal/toy"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		useToy      bool
		readTimeout time.Duration
	)

	flags := corpusFlags()
	flags = append(flags, modelFlags()...)
	flags = append(flags, trainFlags()...)
	flags = append(flags, samplingFlags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "listen address",
			Value:       "127.0.0.1:8080",
			Destination: &addr,
		},
		&cli.BoolFlag{
			Name:        "toy",
			Usage:       "serve a deterministic toy model instead of training",
			Destination: &useToy,
		},
		&cli.DurationFlag{
			Name:        "read-timeout",
			Usage:       "HTTP read header timeout",
			Value:       30 * time.Second,
			Destination: &readTimeout,
		},
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Train (or build a toy model), then serve the generation API",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := LoadConfig()
			if err != nil {
				return cli.Exit(fmt.Sprintf("config: %v", err), 1)
			}
			applyConfig(c, cfg)
			if cfg.ServerAddress != "" && !c.IsSet("addr") {
				addr = cfg.ServerAddress
			}

			log := logger.FromContext(ctx)
			defaults := api.Defaults{
				Steps:       int(steps),
				Temperature: temperature,
				TopK:        int(topK),
				Sample:      doSample,
			}
			if seed != -1 {
				defaults.Seed = seed
			}

			var engine *api.Engine
			if useToy {
				m, err := toy.NewEcho(256, int(blockSize), 1)
				if err != nil {
					return cli.Exit(err.Error(), 1)
				}
				engine = api.NewEngine(m, byteCodec{}, api.ModelInfo{
					VocabSize: m.VocabSize(),
					BlockSize: m.BlockSize(),
				}, defaults)
				log.Info("serving toy model", "vocab", m.VocabSize(), "block", m.BlockSize())
			} else {
				res, err := trainPipeline(ctx, log)
				if err != nil {
					return cli.Exit(err.Error(), 1)
				}
				mcfg := res.Model.Config()
				engine = api.NewEngine(res.Model, res.Vocab, api.ModelInfo{
					VocabSize: mcfg.VocabSize,
					BlockSize: mcfg.BlockSize,
					Layers:    mcfg.Layers,
					Params:    res.Model.NumParams(),
				}, defaults)
			}

			server := api.NewServer(engine, log)
			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)

			log.Info("starting server", "address", addr)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}

// byteCodec maps bytes straight to token ids for the toy model.
type byteCodec struct{}

func (byteCodec) Encode(s string) ([]int, error) {
	ids := make([]int, len(s))
	for i := 0; i < len(s); i++ {
		ids[i] = int(s[i])
	}
	return ids, nil
}

func (byteCodec) Decode(ids []int) string {
	out := make([]byte, len(ids))
	for i, id := range ids {
		out[i] = byte(id)
	}
	return string(out)
}
