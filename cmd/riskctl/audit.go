package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/clinical-risk-scorer/internal/app"
	"github.com/clinical-risk-scorer/internal/audit"
)

var errAuditDisabled = errors.New("audit trail is disabled (audit.backend: none)")

// withAudit opens the configured store for the duration of fn.
func withAudit(o *rootOptions, cmd *cobra.Command, fn func(audit.Store, string) error) error {
	mgr, logger, err := o.load(cmd)
	if err != nil {
		return err
	}
	store, closeStore, err := app.OpenAudit(cmd.Context(), mgr, logger)
	if err != nil {
		return err
	}
	defer closeStore()
	if store == nil {
		return errAuditDisabled
	}
	return fn(store, mgr.ExportDir())
}

// parseAge accepts Go durations plus a "d" suffix for days.
func parseAge(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid day count %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

func newAuditCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect and maintain the anonymized audit trail",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Summarize the audit trail",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAudit(o, cmd, func(store audit.Store, _ string) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), stats)
			})
		},
	})

	var out string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export every audit record as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAudit(o, cmd, func(store audit.Store, exportDir string) error {
				if out == "-" {
					return store.ExportJSON(cmd.Context(), cmd.OutOrStdout())
				}
				path := out
				if path == "" {
					path = filepath.Join(exportDir, fmt.Sprintf("audit-%s.json", time.Now().UTC().Format("20060102T150405Z")))
				}
				if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
					return fmt.Errorf("failed to create export directory: %w", err)
				}
				file, err := os.Create(path)
				if err != nil {
					return fmt.Errorf("failed to create export file: %w", err)
				}
				if err := store.ExportJSON(cmd.Context(), file); err != nil {
					file.Close()
					return err
				}
				if err := file.Close(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported audit trail to %s\n", path)
				return nil
			})
		},
	}
	exportCmd.Flags().StringVar(&out, "out", "", "Output file; - writes to stdout (default: data_dir/exports)")
	cmd.AddCommand(exportCmd)

	var olderThan string
	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete audit records older than the retention period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, _, err := o.load(cmd)
			if err != nil {
				return err
			}
			age := time.Duration(mgr.GetConfig().Audit.RetentionDays) * 24 * time.Hour
			if olderThan != "" {
				if age, err = parseAge(olderThan); err != nil {
					return fmt.Errorf("invalid --older-than: %w", err)
				}
			}
			if age <= 0 {
				return errors.New("retention is not set; pass --older-than")
			}

			return withAudit(o, cmd, func(store audit.Store, _ string) error {
				cutoff := time.Now().UTC().Add(-age)
				n, err := store.Purge(cmd.Context(), cutoff)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Purged %d records created before %s\n", n, cutoff.Format(time.RFC3339))
				return nil
			})
		},
	}
	purgeCmd.Flags().StringVar(&olderThan, "older-than", "", "Age threshold, e.g. 90d or 720h (default: audit.retention_days)")
	cmd.AddCommand(purgeCmd)

	return cmd
}
