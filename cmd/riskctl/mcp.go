package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clinical-risk-scorer/internal/setup"
)

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Register the MCP server with a desktop client",
	}

	var clientConfig string
	cmd.PersistentFlags().StringVar(&clientConfig, "client-config", "", "Client configuration file (default: the platform location)")

	opts := setup.InstallOptions{}
	installCmd := &cobra.Command{
		Use:   "install",
		Short: "Add or update the server entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ConfigPath = clientConfig
			entry, err := setup.Install(opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s -> %s\n", setup.ServerName, entry.Command)
			fmt.Fprintln(cmd.OutOrStdout(), "Restart the client to load the server.")
			return nil
		},
	}
	installCmd.Flags().StringVar(&opts.BinaryPath, "binary", "", "Path to the mcp-server binary (default: search PATH)")
	installCmd.Flags().StringVar(&opts.DataDir, "data-dir", "", "Data directory passed to the server")
	installCmd.Flags().StringVar(&opts.ModelsDir, "models-dir", "", "Model artifact directory passed to the server")
	cmd.AddCommand(installCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "uninstall",
		Short: "Remove the server entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := setup.Uninstall(clientConfig)
			if err != nil {
				return err
			}
			if !removed {
				fmt.Fprintf(cmd.OutOrStdout(), "%s was not registered\n", setup.ServerName)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", setup.ServerName)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Check the server registration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := setup.GetStatus(clientConfig)
			if err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), status); err != nil {
				return err
			}
			if !status.OK() {
				return fmt.Errorf("%d issue(s) found", len(status.Issues))
			}
			return nil
		},
	})

	return cmd
}
