package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/permafrost-io/groupctl/internal/archive"
	"github.com/permafrost-io/groupctl/internal/capability"
	"github.com/permafrost-io/groupctl/internal/cdf"
)

func backupCmd() *cobra.Command {
	var (
		customers  []string
		archiveDir string
	)

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Snapshot group capabilities to the archive (json record + xlsx export)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			selected, err := selectCustomers(cfg, customers)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			groupsByCustomer := fetchGroups(ctx, cfg, selected, false)

			xlsxPath, jsonPath, err := archive.Snapshot(archiveDir, selected, groupsByCustomer, time.Now())
			if err != nil {
				return err
			}
			fmt.Printf("Backup saved: %s and %s\n", jsonPath, xlsxPath)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&customers, "customer", "c", nil, "customer to back up (repeatable; default: all configured)")
	cmd.Flags().StringVar(&archiveDir, "archive-dir", archive.DefaultDir, "archive directory")

	return cmd
}

func backupsCmd() *cobra.Command {
	var archiveDir string

	cmd := &cobra.Command{
		Use:   "backups",
		Short: "List archived snapshots, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := archive.List(archiveDir)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No backups found")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIMESTAMP\tRECORD\tEXPORT")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\n", e.Timestamp, e.JSONPath, e.XLSXPath)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&archiveDir, "archive-dir", archive.DefaultDir, "archive directory")

	return cmd
}

func restoreCmd() *cobra.Command {
	var (
		customers []string
		apply     bool
	)

	cmd := &cobra.Command{
		Use:   "restore <backup.json>",
		Short: "Restore group capabilities from a backup record",
		Long:  "Reconstructs each recorded group's capability set and pushes it back to CDF. Dry run by default; pass --apply to mutate. Failures for single groups are logged and skipped.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := archive.Load(args[0])
			if err != nil {
				return err
			}
			if len(customers) > 0 {
				record = filterRecord(record, customers)
			}
			if len(record) == 0 {
				return fmt.Errorf("backup record has no entries for the requested customers")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			clients := make(map[string]*cdf.Client)
			applyFn := func(ctx context.Context, customer string, groupID int64, grants []capability.Grant) error {
				client, ok := clients[customer]
				if !ok {
					var err error
					client, err = newClient(ctx, cfg, customer)
					if err != nil {
						return err
					}
					clients[customer] = client
				}
				return client.UpdateGroupCapabilities(ctx, groupID, grants)
			}

			outcomes := archive.Restore(ctx, record, applyFn, !apply)
			for _, o := range outcomes {
				switch o.Status {
				case archive.StatusPlanned:
					fmt.Printf("[dry run] would restore %d capabilities to group %q (id=%d) for %s\n",
						o.Capabilities, o.GroupName, o.GroupID, o.Customer)
				case archive.StatusRestored:
					fmt.Printf("restored %d capabilities to group %q (id=%d) for %s\n",
						o.Capabilities, o.GroupName, o.GroupID, o.Customer)
				case archive.StatusSkipped:
					fmt.Printf("skipped group %q (id=%d) for %s: %v\n", o.GroupName, o.GroupID, o.Customer, o.Err)
				case archive.StatusFailed:
					fmt.Printf("failed to restore group %q (id=%d) for %s: %v\n", o.GroupName, o.GroupID, o.Customer, o.Err)
				}
			}
			if !apply {
				fmt.Println("\nDry run only. Re-run with --apply to restore.")
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&customers, "customer", "c", nil, "restrict restore to these customers (repeatable)")
	cmd.Flags().BoolVar(&apply, "apply", false, "actually push capability sets (default is dry run)")

	return cmd
}

func filterRecord(record archive.Record, customers []string) archive.Record {
	keep := make(archive.Record, len(customers))
	for _, c := range customers {
		if groups, ok := record[c]; ok {
			keep[c] = groups
		}
	}
	return keep
}
