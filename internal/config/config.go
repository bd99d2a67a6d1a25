// Package config loads the customer configuration file: one entry per
// customer with the CDF project, cluster and Azure AD application details
// needed to authenticate. The loaded Config is passed explicitly to
// whatever needs it; there is no package-level state.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvVar overrides the config file path when set.
const EnvVar = "GROUPCTL_CONFIG"

// DefaultPath is used when neither the flag nor the environment names a file.
const DefaultPath = "customers.yaml"

// ErrUnknownCustomer is returned when a requested customer has no entry.
var ErrUnknownCustomer = errors.New("unknown customer")

// Customer holds one customer's connection settings.
type Customer struct {
	Project  string `yaml:"cognite_project"`
	Cluster  string `yaml:"cdf_cluster"`
	TenantID string `yaml:"tenant_id"`
	ClientID string `yaml:"client_id"`
}

// BaseURL is the customer's CDF API base URL.
func (c Customer) BaseURL() string {
	return fmt.Sprintf("https://%s.cognitedata.com", c.Cluster)
}

// Config is the full customer configuration.
type Config struct {
	Customers map[string]Customer `yaml:"customers"`
}

// ResolvePath picks the config file path: explicit flag value, then the
// environment variable, then the default.
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv(EnvVar); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads and validates the customer configuration. A missing file is a
// hard error; there is nothing useful to do without customer entries.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file %s not found; create it or set %s", path, EnvVar)
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if len(cfg.Customers) == 0 {
		return nil, fmt.Errorf("config: %s defines no customers", path)
	}
	for name, c := range cfg.Customers {
		if c.Project == "" || c.Cluster == "" || c.TenantID == "" || c.ClientID == "" {
			return nil, fmt.Errorf("config: customer %q is missing one of cognite_project, cdf_cluster, tenant_id, client_id", name)
		}
	}
	return &cfg, nil
}

// Customer returns the named customer's settings. Unknown names fail
// immediately with the available names in the message.
func (c *Config) Customer(name string) (Customer, error) {
	cust, ok := c.Customers[name]
	if !ok {
		return Customer{}, fmt.Errorf("%w %q (available: %s)", ErrUnknownCustomer, name, strings.Join(c.Names(), ", "))
	}
	return cust, nil
}

// Names returns all configured customer names, sorted.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Customers))
	for name := range c.Customers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
