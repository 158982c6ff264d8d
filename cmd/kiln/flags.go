package main

import "github.com/urfave/cli/v3"

var (
	logLevel   string
	logFormat  string
	configFile string

	corpusPath string

	blockSize int64
	layers    int64
	heads     int64
	embedDim  int64
	dropout   float64

	iters        int64
	batchSize    int64
	learningRate float64
	minLR        float64
	warmupIters  int64
	clipNorm     float64
	weightDecay  float64
	logEvery     int64
	runlogPath   string
	previewEvery int64

	temperature float64
	topK        int64
	doSample    bool
	steps       int64
	seed        int64
)

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (console, text, json)",
			Value:       "console",
			Destination: &logFormat,
		},
		&cli.StringFlag{
			Name:        "config",
			Usage:       "path to config.yaml (default: user config dir)",
			Destination: &configFile,
		},
	}
}

func corpusFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "corpus",
			Aliases:     []string{"i"},
			Usage:       "path to the training text",
			Destination: &corpusPath,
		},
	}
}

func modelFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Int64Flag{
			Name:        "block-size",
			Aliases:     []string{"ctx"},
			Usage:       "context window in tokens",
			Value:       128,
			Destination: &blockSize,
		},
		&cli.Int64Flag{
			Name:        "layers",
			Usage:       "number of transformer blocks",
			Value:       4,
			Destination: &layers,
		},
		&cli.Int64Flag{
			Name:        "heads",
			Usage:       "attention heads per block",
			Value:       4,
			Destination: &heads,
		},
		&cli.Int64Flag{
			Name:        "embed-dim",
			Aliases:     []string{"dim"},
			Usage:       "embedding width (must divide by heads)",
			Value:       128,
			Destination: &embedDim,
		},
		&cli.Float64Flag{
			Name:        "dropout",
			Usage:       "dropout rate for embeddings, attention and residuals",
			Value:       0.1,
			Destination: &dropout,
		},
	}
}

func trainFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Int64Flag{
			Name:        "iters",
			Usage:       "number of optimization steps",
			Value:       2000,
			Destination: &iters,
		},
		&cli.Int64Flag{
			Name:        "batch-size",
			Aliases:     []string{"b"},
			Usage:       "sequences per step",
			Value:       16,
			Destination: &batchSize,
		},
		&cli.Float64Flag{
			Name:        "lr",
			Usage:       "peak learning rate",
			Value:       3e-4,
			Destination: &learningRate,
		},
		&cli.Float64Flag{
			Name:        "min-lr",
			Usage:       "floor learning rate for warmup and decay",
			Value:       3e-5,
			Destination: &minLR,
		},
		&cli.Int64Flag{
			Name:        "warmup",
			Usage:       "linear warmup steps",
			Value:       100,
			Destination: &warmupIters,
		},
		&cli.Float64Flag{
			Name:        "clip",
			Usage:       "gradient clipping norm (0 = disabled)",
			Value:       1.0,
			Destination: &clipNorm,
		},
		&cli.Float64Flag{
			Name:        "weight-decay",
			Usage:       "decoupled weight decay",
			Value:       0.01,
			Destination: &weightDecay,
		},
		&cli.Int64Flag{
			Name:        "log-every",
			Usage:       "steps between progress lines",
			Value:       50,
			Destination: &logEvery,
		},
		&cli.StringFlag{
			Name:        "runlog",
			Usage:       "path to a SQLite metrics database (empty = disabled)",
			Destination: &runlogPath,
		},
		&cli.Int64Flag{
			Name:        "preview-every",
			Usage:       "steps between sample previews (0 = disabled)",
			Destination: &previewEvery,
		},
	}
}

func samplingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Float64Flag{
			Name:        "temp",
			Aliases:     []string{"temperature", "t"},
			Usage:       "sampling temperature",
			Value:       1.0,
			Destination: &temperature,
		},
		&cli.Int64Flag{
			Name:        "top-k",
			Aliases:     []string{"top_k", "topk"},
			Usage:       "top-k truncation (0 = disabled)",
			Destination: &topK,
		},
		&cli.BoolFlag{
			Name:        "sample",
			Usage:       "draw stochastically instead of greedy argmax",
			Value:       true,
			Destination: &doSample,
		},
		&cli.Int64Flag{
			Name:        "steps",
			Aliases:     []string{"n"},
			Usage:       "number of tokens to generate",
			Value:       500,
			Destination: &steps,
		},
		&cli.Int64Flag{
			Name:        "seed",
			Usage:       "RNG seed (-1 = derive from time)",
			Value:       -1,
			Destination: &seed,
		},
	}
}
