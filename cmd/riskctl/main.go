// Command riskctl evaluates forms, inspects schemas and models, and manages
// the audit trail and MCP client registration from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/clinical-risk-scorer/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// rootOptions are the flags shared by every command.
type rootOptions struct {
	configFile string
	envFile    string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	o := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "riskctl",
		Short:         "Clinical risk scorer command line",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&o.configFile, "config", "", "Path to a config file (default: search for config.yaml)")
	flags.StringVar(&o.envFile, "env-file", "", "Path to a .env file (default: .env)")
	flags.StringVar(&o.logLevel, "log-level", "warn", "Log level for diagnostics written to stderr")

	cmd.AddCommand(newEvaluateCmd(o))
	cmd.AddCommand(newReportCmd(o))
	cmd.AddCommand(newSchemaCmd())
	cmd.AddCommand(newModelsCmd(o))
	cmd.AddCommand(newMigrateCmd(o))
	cmd.AddCommand(newAuditCmd(o))
	cmd.AddCommand(newMCPCmd())
	return cmd
}

// load reads and validates the configuration and builds a logger that
// writes to stderr so command output stays machine readable.
func (o *rootOptions) load(cmd *cobra.Command) (*config.Manager, *logrus.Logger, error) {
	mgr, err := config.NewManagerWithOptions(config.Options{
		ConfigFile: o.configFile,
		EnvFile:    o.envFile,
	})
	if err != nil {
		return nil, nil, err
	}
	if err := mgr.Validate(); err != nil {
		return nil, nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	logCfg := mgr.GetConfig().Logging
	logCfg.Output = "stderr"
	logCfg.Format = "text"
	if o.logLevel != "" {
		logCfg.Level = o.logLevel
	}
	logger, err := config.NewLogger(logCfg)
	if err != nil {
		return nil, nil, err
	}
	logger.SetOutput(cmd.ErrOrStderr())
	return mgr, logger, nil
}
