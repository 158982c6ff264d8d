package main

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config mirrors the optional config file (~/.config/kiln/config.yaml).
// Numeric fields are pointers so "not set" is distinguishable from an
// explicit zero; explicit CLI flags always win over file values.
type Config struct {
	Corpus    string `yaml:"corpus"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Model
	BlockSize *int64   `yaml:"block_size"`
	Layers    *int64   `yaml:"layers"`
	Heads     *int64   `yaml:"heads"`
	EmbedDim  *int64   `yaml:"embed_dim"`
	Dropout   *float64 `yaml:"dropout"`

	// Training
	Iters       *int64   `yaml:"iters"`
	BatchSize   *int64   `yaml:"batch_size"`
	LR          *float64 `yaml:"lr"`
	MinLR       *float64 `yaml:"min_lr"`
	Warmup      *int64   `yaml:"warmup"`
	Clip        *float64 `yaml:"clip"`
	WeightDecay *float64 `yaml:"weight_decay"`
	Runlog      string   `yaml:"runlog"`

	// Sampling defaults
	Temperature *float64 `yaml:"temperature"`
	TopK        *int64   `yaml:"top_k"`
	Sample      *bool    `yaml:"sample"`
	Steps       *int64   `yaml:"steps"`
	Seed        *int64   `yaml:"seed"`

	// Server
	ServerAddress string `yaml:"server_address"`
}

func configPath() string {
	if configFile != "" {
		return configFile
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "kiln", "config.yaml")
}

// LoadConfig reads the config file. A missing or unreadable file yields a
// zero Config; a present but invalid file is reported.
func LoadConfig() (Config, error) {
	path := configPath()
	if path == "" {
		return Config{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, nil
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyConfig merges file values beneath flags the user did not set.
func applyConfig(c *cli.Command, cfg Config) {
	if cfg.Corpus != "" && !c.IsSet("corpus") {
		corpusPath = cfg.Corpus
	}

	if cfg.BlockSize != nil && !c.IsSet("block-size") {
		blockSize = *cfg.BlockSize
	}
	if cfg.Layers != nil && !c.IsSet("layers") {
		layers = *cfg.Layers
	}
	if cfg.Heads != nil && !c.IsSet("heads") {
		heads = *cfg.Heads
	}
	if cfg.EmbedDim != nil && !c.IsSet("embed-dim") {
		embedDim = *cfg.EmbedDim
	}
	if cfg.Dropout != nil && !c.IsSet("dropout") {
		dropout = *cfg.Dropout
	}

	if cfg.Iters != nil && !c.IsSet("iters") {
		iters = *cfg.Iters
	}
	if cfg.BatchSize != nil && !c.IsSet("batch-size") {
		batchSize = *cfg.BatchSize
	}
	if cfg.LR != nil && !c.IsSet("lr") {
		learningRate = *cfg.LR
	}
	if cfg.MinLR != nil && !c.IsSet("min-lr") {
		minLR = *cfg.MinLR
	}
	if cfg.Warmup != nil && !c.IsSet("warmup") {
		warmupIters = *cfg.Warmup
	}
	if cfg.Clip != nil && !c.IsSet("clip") {
		clipNorm = *cfg.Clip
	}
	if cfg.WeightDecay != nil && !c.IsSet("weight-decay") {
		weightDecay = *cfg.WeightDecay
	}
	if cfg.Runlog != "" && !c.IsSet("runlog") {
		runlogPath = cfg.Runlog
	}

	if cfg.Temperature != nil && !c.IsSet("temp") && !c.IsSet("temperature") && !c.IsSet("t") {
		temperature = *cfg.Temperature
	}
	if cfg.TopK != nil && !c.IsSet("top-k") && !c.IsSet("top_k") && !c.IsSet("topk") {
		topK = *cfg.TopK
	}
	if cfg.Sample != nil && !c.IsSet("sample") {
		doSample = *cfg.Sample
	}
	if cfg.Steps != nil && !c.IsSet("steps") {
		steps = *cfg.Steps
	}
	if cfg.Seed != nil && !c.IsSet("seed") {
		seed = *cfg.Seed
	}
}
