package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func whoamiCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whoami <customer>",
		Short: "Print the authenticated user profile for a customer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			client, err := newClient(ctx, cfg, args[0])
			if err != nil {
				return err
			}
			profile, err := client.Me(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("User Identifier: %s\n", profile.UserIdentifier)
			fmt.Printf("Name:            %s %s\n", profile.GivenName, profile.Surname)
			fmt.Printf("Email:           %s\n", profile.Email)
			return nil
		},
	}
	return cmd
}
