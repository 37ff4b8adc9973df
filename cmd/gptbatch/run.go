package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vbauerster/mpb/v8"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tbiehn/gptbatch"
)

const (
	formatText = "text"
	formatJSON = "json"
)

type runConfig struct {
	MaxConnections  int
	APIKey          string
	BaseURL         string
	Model           string
	Instruction     string
	InstructionFile string
	Input           string
	Format          string
	Progress        bool
	CountTokens     bool
	RequestTimeout  time.Duration
	LogLevel        string
}

func defaultRunConfig() runConfig {
	return runConfig{
		MaxConnections: gptbatch.DefaultMaxConnections,
		Model:          gptbatch.DefaultModel,
		Format:         formatText,
		Progress:       true,
		LogLevel:       "warn",
	}
}

func readRunConfig(v *viper.Viper) runConfig {
	return runConfig{
		MaxConnections:  v.GetInt("maxConnections"),
		APIKey:          v.GetString("apiKey"),
		BaseURL:         v.GetString("baseURL"),
		Model:           v.GetString("model"),
		Instruction:     v.GetString("instruction"),
		InstructionFile: v.GetString("instructionFile"),
		Input:           v.GetString("input"),
		Format:          v.GetString("format"),
		Progress:        v.GetBool("progress"),
		CountTokens:     v.GetBool("countTokens"),
		RequestTimeout:  v.GetDuration("requestTimeout"),
		LogLevel:        v.GetString("logLevel"),
	}
}

func (c runConfig) verify() error {
	if c.Format != formatText && c.Format != formatJSON {
		return fmt.Errorf("unsupported format %q", c.Format)
	}
	if c.Instruction != "" && c.InstructionFile != "" {
		return fmt.Errorf("'instruction' and 'instruction-file' are mutually exclusive")
	}
	return nil
}

// NewRunCommand builds the 'run' subcommand.
func NewRunCommand() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Send one request per input line and print the answers in order",
		Long:  "Send one chat completion request per input line, at most max-connections at a time, and print the answers in input order. Failed requests print as 'request failed: <details>'.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, readRunConfig(v))
		},
	}
	bindRunFlags(v, cmd.Flags())

	return cmd
}

func run(cmd *cobra.Command, cfg runConfig) error {
	if err := cfg.verify(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	instruction, err := loadInstruction(cfg)
	if err != nil {
		return err
	}

	in := cmd.InOrStdin()
	if cfg.Input != "" {
		f, err := os.Open(cfg.Input)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		in = f
	}
	inputs, err := readInputs(in)
	if err != nil {
		return err
	}

	client, err := gptbatch.NewClient(gptbatch.Config{
		MaxConnections: cfg.MaxConnections,
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		Model:          cfg.Model,
		RequestTimeout: cfg.RequestTimeout,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	var progress *mpb.Progress
	var observer gptbatch.ProgressObserver
	if cfg.Progress {
		progress = mpb.New(mpb.WithOutput(cmd.ErrOrStderr()))
		observer = gptbatch.NewBarObserver(progress)
	}

	g := gptbatch.NewGPTBatch(cmd.Context(), client, observer, logger.Sugar())
	if cfg.CountTokens {
		counter, err := gptbatch.NewTokenCounter(client.Model)
		if err != nil {
			logger.Warn("token counting disabled", zap.Error(err))
		} else {
			g.Tokens = counter
		}
	}

	logger.Info("starting batch",
		zap.Int("inputs", len(inputs)),
		zap.Int("max_connections", client.MaxConnections),
		zap.String("model", client.Model))

	results := g.RunBatch(instruction, inputs)
	if progress != nil {
		progress.Wait()
	}

	return writeResults(cmd.OutOrStdout(), cfg.Format, results)
}

func loadInstruction(cfg runConfig) (string, error) {
	if cfg.InstructionFile == "" {
		return cfg.Instruction, nil
	}
	b, err := os.ReadFile(cfg.InstructionFile)
	if err != nil {
		return "", fmt.Errorf("read instruction file: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "none" {
		return zap.NewNop(), nil
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("unknown log level %q", level)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "console"
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.CallerKey = ""
	return cfg.Build()
}
