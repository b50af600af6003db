package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// DefaultClientConfigFile is the name of the client config file
const DefaultClientConfigFile = "client.yaml"

// ClientConfig holds the connection details used by --remote commands.
type ClientConfig struct {
	// Version of the configuration file format
	Version string `yaml:"version"`
	// ServerURL is the URL and port of the catalog server
	ServerURL string `yaml:"server_url"`
	// APIKey is sent as a bearer token
	APIKey string `yaml:"api_key,omitempty"`
	// Tenant is sent as X-Tenant-ID unless --tenant overrides it
	Tenant string `yaml:"tenant,omitempty"`
}

// GetDefaultClientConfigPath returns the default path for the client config
// file, e.g. ~/.config/catalogsrv/client.yaml on Linux.
func GetDefaultClientConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "catalogsrv", DefaultClientConfigFile), nil
}

func clientConfigPath() (string, error) {
	if clientConfigFile != "" {
		return clientConfigFile, nil
	}
	return GetDefaultClientConfigPath()
}

// LoadClientConfig reads the client configuration from file.
func LoadClientConfig(file string) (*ClientConfig, error) {
	yamlStr, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("unable to read client config file: %w", err)
	}

	var c ClientConfig
	if err = yaml.Unmarshal(yamlStr, &c); err != nil {
		return nil, fmt.Errorf("unable to parse client config file: %w", err)
	}
	if c.ServerURL == "" {
		return nil, errors.New("server_url is required")
	}
	c.ServerURL = MorphServer(c.ServerURL)
	return &c, nil
}

// WriteConfig writes the configuration to file with owner-only permissions.
func (cfg *ClientConfig) WriteConfig(file string) error {
	if file == "" {
		return errors.New("file path cannot be empty")
	}

	err := os.MkdirAll(filepath.Dir(file), 0o700)
	if err != nil {
		return fmt.Errorf("unable to create config directory: %w", err)
	}

	yamlStr, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("unable to generate configuration: %w", err)
	}

	err = os.WriteFile(file, yamlStr, os.FileMode(0600))
	if err != nil {
		return fmt.Errorf("unable to write config file: %w", err)
	}

	return nil
}

// ValidateConfig checks the fields a remote command needs.
func (cfg *ClientConfig) ValidateConfig() error {
	if cfg.ServerURL == "" {
		return errors.New("server:port is required")
	}
	if !strings.HasPrefix(cfg.ServerURL, "http://") && !strings.HasPrefix(cfg.ServerURL, "https://") {
		return errors.New("server:port must start with http:// or https://")
	}
	return nil
}

func (cfg *ClientConfig) GetServerURL() string {
	return MorphServer(cfg.ServerURL)
}

func (cfg *ClientConfig) GetAPIKey() string {
	return cfg.APIKey
}

// MorphServer ensures the server URL is properly formatted
// Adds https:// prefix if missing and removes trailing slashes
func MorphServer(server string) string {
	if server == "" {
		return server
	}

	// Remove any trailing slashes
	server = strings.TrimRight(server, "/")

	if !strings.HasPrefix(server, "http://") && !strings.HasPrefix(server, "https://") {
		server = "https://" + server
	}

	return server
}

func newConfigCmd() *cobra.Command {
	var server, apiKey, tenant string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the client configuration used by --remote",
		Long: `Set the catalog server, API key and tenant used by commands run with --remote.
Flags that are not given keep their saved value.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("server") && !cmd.Flags().Changed("api-key") && !cmd.Flags().Changed("tenant") {
				return cmd.Help()
			}
			path, err := clientConfigPath()
			if err != nil {
				return err
			}
			cfg, err := LoadClientConfig(path)
			if err != nil {
				if !errors.Is(err, os.ErrNotExist) {
					return err
				}
				cfg = &ClientConfig{}
			}
			if err := applyClientSettings(cfg, cmd, server, apiKey, tenant); err != nil {
				return err
			}
			if err := cfg.WriteConfig(path); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}

			if jsonOutput {
				printJSON(map[string]string{
					"server":      cfg.ServerURL,
					"tenant":      cfg.Tenant,
					"config_file": path,
				})
			} else {
				okLabel.Printf("Server configured: %s\n", cfg.ServerURL)
				fmt.Printf("Config file: %s\n", path)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&server, "server", "", "Server URL and port (e.g., catalog.example.com:8678)")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key sent as a bearer token")
	cmd.Flags().StringVar(&tenant, "tenant", "", "Default tenant for remote commands")
	cmd.AddCommand(newConfigShowCmd())
	return cmd
}

func applyClientSettings(cfg *ClientConfig, cmd *cobra.Command, server, apiKey, tenant string) error {
	cfg.Version = "0.1.0"
	if cmd.Flags().Changed("server") {
		if !strings.Contains(strings.TrimPrefix(strings.TrimPrefix(server, "https://"), "http://"), ":") {
			return errors.New("server must include port number (e.g., catalog.example.com:8678)")
		}
		cfg.ServerURL = MorphServer(server)
	}
	if cmd.Flags().Changed("api-key") {
		cfg.APIKey = apiKey
	}
	if cmd.Flags().Changed("tenant") {
		cfg.Tenant = tenant
	}
	return cfg.ValidateConfig()
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the client configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := clientConfigPath()
			if err != nil {
				return err
			}
			cfg, err := LoadClientConfig(path)
			if err != nil {
				return err
			}
			keySet := "no"
			if cfg.APIKey != "" {
				keySet = "yes"
			}
			if jsonOutput {
				printJSON(map[string]string{
					"server":      cfg.ServerURL,
					"tenant":      cfg.Tenant,
					"api_key_set": keySet,
					"config_file": path,
				})
				return nil
			}
			fmt.Printf("Server: %s\n", cfg.ServerURL)
			fmt.Printf("Tenant: %s\n", cfg.Tenant)
			fmt.Printf("API key set: %s\n", keySet)
			fmt.Printf("Config file: %s\n", path)
			return nil
		},
	}
}

func init() {
	rootCmd.AddCommand(newConfigCmd())
}
