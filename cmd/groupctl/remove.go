package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/permafrost-io/groupctl/internal/logging"
	"github.com/permafrost-io/groupctl/internal/removal"
)

func removeCmd() *cobra.Command {
	var (
		customers       []string
		keys            []string
		legacy          bool
		legacyResources []string
		apply           bool
	)

	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove capability grants from groups by key or legacy resource",
		Long:  "Removes grants whose canonical keys match the given keys exactly, or whose resource is in the legacy catalog when --legacy is set. A grant is removed whole when any of its action keys matches. Dry run by default; pass --apply to mutate.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var legacyList []string
			if len(legacyResources) > 0 {
				legacyList = legacyResources
			} else if legacy {
				legacyList = removal.LegacyResources
			}
			spec := removal.NewSpec(keys, legacyList)
			if spec.Empty() {
				return fmt.Errorf("nothing to remove: give --key and/or --legacy/--legacy-resource")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			selected, err := selectCustomers(cfg, customers)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			for _, customer := range selected {
				fmt.Printf("Customer: %s\n", customer)
				client, err := newClient(ctx, cfg, customer)
				if err != nil {
					fmt.Printf("  error connecting for %s: %v\n", customer, err)
					continue
				}
				groups, err := client.ListGroups(ctx)
				if err != nil {
					fmt.Printf("  error fetching groups for %s: %v\n", customer, err)
					continue
				}

				for _, g := range groups {
					kept := removal.FilterGrants(g, spec)
					removed := len(g.Capabilities) - len(kept)
					if removed == 0 {
						continue
					}
					if !apply {
						fmt.Printf("  [dry run] group %q (id=%d): would remove %d of %d grants\n",
							g.Name, g.ID, removed, len(g.Capabilities))
						continue
					}
					if err := client.UpdateGroupCapabilities(ctx, g.ID, kept); err != nil {
						logging.Op().Error("capability removal failed for group",
							"customer", customer, "group", g.Name, "id", g.ID, "err", err)
						continue
					}
					fmt.Printf("  group %q (id=%d): removed %d of %d grants\n",
						g.Name, g.ID, removed, len(g.Capabilities))
				}
			}
			if !apply {
				fmt.Println("\nDry run only. Re-run with --apply to remove.")
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&customers, "customer", "c", nil, "customer to process (repeatable; default: all configured)")
	cmd.Flags().StringArrayVar(&keys, "key", nil, "exact canonical key to remove, e.g. assets:write (repeatable)")
	cmd.Flags().BoolVar(&legacy, "legacy", false, "remove all grants for the default legacy resource catalog")
	cmd.Flags().StringArrayVar(&legacyResources, "legacy-resource", nil, "legacy resource name to remove in bulk (repeatable; overrides the default catalog)")
	cmd.Flags().BoolVar(&apply, "apply", false, "actually push capability sets (default is dry run)")

	return cmd
}
