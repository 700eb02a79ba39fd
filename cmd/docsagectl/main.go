// Command docsagectl runs DocSage pipeline operations without the API server.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kailas-cloud/docsage/internal/app"
	"github.com/kailas-cloud/docsage/internal/config"
	logpkg "github.com/kailas-cloud/docsage/internal/logger"
	"github.com/kailas-cloud/docsage/internal/version"
)

func main() {
	_ = godotenv.Load()
	root := newRootCmd()
	root.SetOut(os.Stdout)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// globalOpts are the persistent flags shared by every subcommand.
type globalOpts struct {
	configPath string
	env        string
}

func newRootCmd() *cobra.Command {
	opts := &globalOpts{}
	root := &cobra.Command{
		Use:   "docsagectl",
		Short: "Operate the DocSage retrieval pipeline from the command line",
		Long: `docsagectl provisions the vector index, ingests documents and asks
questions against them using the same configuration as the API server.`,
		Version:      version.String(),
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default: config/<env>.yaml)")
	root.PersistentFlags().StringVar(&opts.env, "env", config.GetEnv(), "environment: local, dev, docker, offline, prod")

	root.AddCommand(
		newInitIndexCmd(opts),
		newIngestCmd(opts),
		newAskCmd(opts),
		newHistoryCmd(opts),
	)
	return root
}

// open loads configuration and assembles the pipeline. The caller closes the App.
func (o *globalOpts) open(ctx context.Context) (*app.App, error) {
	var (
		cfg config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFile(o.configPath)
	} else {
		cfg, err = config.Load(o.env)
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level := cfg.Logging.Level
	if level == "" {
		level = "warn"
	}
	logger, err := logpkg.NewLogger(o.env, level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("assemble pipeline: %w", err)
	}
	return a, nil
}
