package commands

import (
	"context"
	"fmt"

	"github.com/fsandov/ingestion-sdk/pkg/ingestion"
	"github.com/spf13/cobra"
)

func (c *CLI) newNotifyCmd() *cobra.Command {
	var (
		ecosystem string
		wait      bool
	)

	cmd := &cobra.Command{
		Use:   "notify name@version...",
		Short: "Send unknown packages to the ingestion service",
		Long: `Send one batch of unknown packages to the ingestion service.

With --wait (the default) the command waits for the service to answer and
fails if it cannot be reached. With --wait=false the request runs in the
background and only its outcome is printed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pkgs := ingestion.NewPackageSet()
			for _, arg := range args {
				p, err := ingestion.ParsePackage(arg)
				if err != nil {
					return err
				}
				pkgs.Add(p)
			}

			n := ingestion.NewNotifier(c.ingestion)
			defer n.Close(context.WithoutCancel(cmd.Context()))

			out := cmd.OutOrStdout()
			if wait {
				if err := n.Submit(cmd.Context(), ecosystem, pkgs); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(out, "submitted %d %s package(s) to %s\n", pkgs.Len(), ecosystem, n.URL())
				return nil
			}

			task, err := n.UnknownPackageFlow(cmd.Context(), ecosystem, pkgs)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "dispatched %d %s package(s), request %s\n", pkgs.Len(), ecosystem, task.ID())

			o, err := task.Wait(cmd.Context())
			if err != nil {
				return err
			}
			if o.Delivered {
				_, _ = fmt.Fprintf(out, "request %s answered with status %d\n", o.RequestID, o.StatusCode)
			} else {
				_, _ = fmt.Fprintf(out, "request %s did not reach the service: %s\n", o.RequestID, o.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&ecosystem, "ecosystem", "e", "", "package ecosystem, e.g. npm, pypi, maven")
	cmd.Flags().BoolVar(&wait, "wait", true, "wait for the ingestion service to answer")
	_ = cmd.MarkFlagRequired("ecosystem")

	return cmd
}
