package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/permafrost-io/groupctl/internal/export"
	"github.com/permafrost-io/groupctl/internal/iam"
)

func exportCmd() *cobra.Command {
	var (
		customers  []string
		output     string
		noProfile  bool
		showRaw    bool
		maxPreview int
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export group capabilities to an xlsx workbook, one sheet per customer",
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
			groupsByCustomer := fetchGroups(ctx, cfg, selected, !noProfile)

			if showRaw {
				printRawCapabilities(groupsByCustomer, selected, maxPreview)
			}

			universe := iam.BuildUniverse(groupsByCustomer)
			tables := make(map[string]*iam.Table, len(selected))
			for _, customer := range selected {
				if groups := groupsByCustomer[customer]; groups != nil {
					tables[customer] = iam.BuildMatrix(groups, universe)
				}
			}

			if err := export.WriteWorkbook(output, selected, tables); err != nil {
				return err
			}
			fmt.Printf("Workbook saved: %s (%d capability columns)\n", output, len(universe))
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&customers, "customer", "c", nil, "customer to export (repeatable; default: all configured)")
	cmd.Flags().StringVarP(&output, "output", "o", "groups_by_customer.xlsx", "output workbook path")
	cmd.Flags().BoolVar(&noProfile, "no-profile", false, "do not print the signed-in user profile per customer")
	cmd.Flags().BoolVar(&showRaw, "show-raw", false, "print raw capability JSON for a preview of groups")
	cmd.Flags().IntVar(&maxPreview, "max-preview", 3, "groups per customer shown by --show-raw")

	return cmd
}

// printRawCapabilities dumps the first few groups' grants per customer,
// useful when a new acl or scope variant shows up.
func printRawCapabilities(groupsByCustomer map[string][]iam.Group, customers []string, maxPreview int) {
	for _, customer := range customers {
		groups := groupsByCustomer[customer]
		if groups == nil {
			fmt.Printf("\n%s: no groups (fetch failed)\n", customer)
			continue
		}
		fmt.Printf("\nCustomer: %s (%d groups)\n", customer, len(groups))

		preview := groups
		if len(preview) > maxPreview {
			preview = preview[:maxPreview]
		}
		for _, g := range preview {
			fmt.Printf("--- %s (id=%d, source=%s), %d capabilities\n", g.Name, g.ID, g.SourceID, len(g.Capabilities))
			for _, grant := range g.Capabilities {
				raw, err := json.Marshal(grant)
				if err != nil {
					fmt.Printf("    <unrenderable grant: %v>\n", err)
					continue
				}
				fmt.Printf("    %s -> %s\n", raw, grant.Keys())
			}
		}
		if len(groups) > maxPreview {
			fmt.Printf("... and %d more groups\n", len(groups)-maxPreview)
		}
	}
}
