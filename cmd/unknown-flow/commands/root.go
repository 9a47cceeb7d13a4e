// Package commands implements the unknown-flow CLI.
package commands

import (
	"context"
	"io"

	"github.com/fsandov/ingestion-sdk/pkg/config"
	"github.com/spf13/cobra"
)

type CLI struct {
	rootCmd   *cobra.Command
	ingestion config.IngestionConfig
}

func New() *CLI {
	rootCmd := &cobra.Command{
		Use:           "unknown-flow",
		Short:         "Report packages missing from the dependency graph to the ingestion service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	c := &CLI{
		rootCmd:   rootCmd,
		ingestion: config.IngestionFromEnv(),
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&c.ingestion.Host, "host", c.ingestion.Host, "ingestion service host ("+config.EnvIngestionHost+")")
	pf.StringVar(&c.ingestion.Port, "port", c.ingestion.Port, "ingestion service port ("+config.EnvIngestionPort+")")
	pf.DurationVar(&c.ingestion.Timeout, "timeout", c.ingestion.Timeout, "per-request timeout ("+config.EnvIngestionTimeout+")")

	rootCmd.AddCommand(c.newNotifyCmd())
	rootCmd.AddCommand(c.newServeCmd())

	return c
}

func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}
