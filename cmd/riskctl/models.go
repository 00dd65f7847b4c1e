package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/clinical-risk-scorer/internal/app"
)

func newModelsCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Inspect classifier artifacts",
	}

	var dir string
	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Load and validate every configured artifact",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, logger, err := o.load(cmd)
			if err != nil {
				return err
			}
			if dir != "" {
				mgr.GetModelsConfig().Dir = dir
			}

			registry, err := app.LoadRegistry(mgr, logger)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DOMAIN\tMODEL\tVERSION\tBACKEND\tFEATURES\tCLASSES")
			for _, h := range registry.Handles() {
				classes := h.Classes()
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d,%d\n",
					h.Domain(), h.Name(), h.Version(), h.Kind(), len(h.Features()), classes[0], classes[1])
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d models OK\n", registry.Len())
			return nil
		},
	}
	verifyCmd.Flags().StringVar(&dir, "dir", "", "Artifact directory (overrides models.dir)")
	cmd.AddCommand(verifyCmd)

	return cmd
}
