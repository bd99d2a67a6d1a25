package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/permafrost-io/groupctl/internal/cdf"
	"github.com/permafrost-io/groupctl/internal/config"
	"github.com/permafrost-io/groupctl/internal/iam"
	"github.com/permafrost-io/groupctl/internal/logging"
)

var (
	configPath    string
	tokenCacheDir string
	logLevel      string
	quiet         bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "groupctl",
		Short: "Manage CDF IAM groups: export, archive and bulk-edit capabilities",
		Long:  "groupctl fetches each customer's IAM groups, exports their capabilities to a workbook, snapshots them for disaster recovery, and removes or restores capability grants in bulk.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := logLevel
			if quiet {
				level = "warn"
			}
			logging.Init("text", level)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "customer config file (default customers.yaml, or $GROUPCTL_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&tokenCacheDir, "token-cache-dir", cdf.DefaultTokenCacheDir(), "directory for per-customer token cache files")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "less output")

	rootCmd.AddCommand(
		exportCmd(),
		backupCmd(),
		backupsCmd(),
		restoreCmd(),
		removeCmd(),
		whoamiCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	return config.Load(config.ResolvePath(configPath))
}

// selectCustomers validates the requested names against the config, or
// returns every configured customer when none were requested.
func selectCustomers(cfg *config.Config, requested []string) ([]string, error) {
	if len(requested) == 0 {
		return cfg.Names(), nil
	}
	for _, name := range requested {
		if _, err := cfg.Customer(name); err != nil {
			return nil, err
		}
	}
	return requested, nil
}

func newClient(ctx context.Context, cfg *config.Config, customer string) (*cdf.Client, error) {
	cust, err := cfg.Customer(customer)
	if err != nil {
		return nil, err
	}
	cachePath := filepath.Join(tokenCacheDir, customer+".json")
	return cdf.NewClientWithFallback(ctx, cust, cachePath)
}

// fetchGroups pulls each customer's groups. A fetch failure is non-fatal:
// the customer keeps a nil entry, which downstream renders as an error
// sheet and excludes from the universe.
func fetchGroups(ctx context.Context, cfg *config.Config, customers []string, showProfile bool) map[string][]iam.Group {
	out := make(map[string][]iam.Group, len(customers))
	for _, customer := range customers {
		fmt.Printf("Fetching groups for customer: %s\n", customer)
		client, err := newClient(ctx, cfg, customer)
		if err != nil {
			fmt.Printf("  error fetching groups for %s: %v\n", customer, err)
			out[customer] = nil
			continue
		}
		if showProfile {
			printProfile(ctx, client)
		}
		groups, err := client.ListGroups(ctx)
		if err != nil {
			fmt.Printf("  error fetching groups for %s: %v\n", customer, err)
			out[customer] = nil
			continue
		}
		if groups == nil {
			groups = []iam.Group{}
		}
		fmt.Printf("  found %d groups for %s\n", len(groups), customer)
		out[customer] = groups
	}
	return out
}

func printProfile(ctx context.Context, client *cdf.Client) {
	profile, err := client.Me(ctx)
	if err != nil {
		logging.Op().Warn("could not fetch user profile", "err", err)
		return
	}
	fmt.Printf("  signed in as %s %s <%s> (%s)\n",
		profile.GivenName, profile.Surname, profile.Email, profile.UserIdentifier)
}
