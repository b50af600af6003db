package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/practiceops/servicecatalog/internal/catalogsrv/catcommon"
)

// EnvConfigFile names the server config file when --config is not given.
const EnvConfigFile = "CATALOGSRV_CONFIG"

// DefaultServerConfigFile is used when neither --config nor
// CATALOGSRV_CONFIG is set.
const DefaultServerConfigFile = "catalogsrv.conf"

var (
	// Global flags
	jsonOutput       bool
	configFile       string
	clientConfigFile string
	envFile          string
)

var ErrAlreadyHandled = errors.New("already handled")

var okLabel = color.New(color.FgGreen)
var errorLabel = color.New(color.FgRed)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "catalogsrv [command] [flags]",
	Short: "Service catalog server and administration tool",
	Long: `catalogsrv runs the service catalog API and administers its data.

Examples:
  # Run the API server
  catalogsrv serve --config catalogsrv.conf

  # Create or upgrade the database schema
  catalogsrv migrate

  # Export a tenant's catalog from the database
  catalogsrv export --tenant clinic-1 --format json -o services.json

  # Fetch stats from a running server
  catalogsrv config --server catalog.example.com:8678 --api-key <key> --tenant clinic-1
  catalogsrv stats --remote`,
	PersistentPreRunE: preRunHandlePersistents,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	// Set up persistent flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "", "", "Path to the server configuration file")
	rootCmd.PersistentFlags().StringVarP(&clientConfigFile, "client-config", "", "", "Path to the client configuration file used with --remote")
	rootCmd.PersistentFlags().StringVarP(&envFile, "env-file", "", ".env", "Environment file loaded before the configuration")
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output in JSON format")

	// Add commands
	rootCmd.AddCommand(newVersionCmd())
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SilenceErrors = true // Prevent Cobra from printing the error
	rootCmd.SilenceUsage = true  // Prevent Cobra from printing usage on error

	err := rootCmd.Execute()
	if err != nil {
		if errors.Is(err, ErrAlreadyHandled) {
			os.Exit(1)
		}
		if jsonOutput {
			kv := map[string]string{
				"error": err.Error(),
			}
			printJSON(kv)
		} else {
			errorLabel.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// preRunHandlePersistents loads the environment file and resolves the
// server config path. Values already present in the environment win over
// the file.
func preRunHandlePersistents(cmd *cobra.Command, args []string) error {
	if err := loadEnvFile(envFile, cmd.Flags().Changed("env-file")); err != nil {
		return err
	}
	configFile = resolveServerConfigPath(configFile)
	return nil
}

func loadEnvFile(path string, required bool) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if !required && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("unable to load environment file %s: %w", path, err)
	}
	return nil
}

func resolveServerConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv(EnvConfigFile); v != "" {
		return v
	}
	return DefaultServerConfigFile
}

// newVersionCmd creates and returns a new version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the server and API versions",
		Run: func(cmd *cobra.Command, args []string) {
			if jsonOutput {
				kv := map[string]string{
					"serverVersion": catcommon.ServerVersion,
					"apiVersion":    catcommon.ApiVersion,
				}
				printJSON(kv)
			} else {
				cmd.Printf("catalogsrv %s\n", catcommon.ServerVersion)
				cmd.Printf("API version: %s\n", catcommon.ApiVersion)
			}
		},
	}
}

// printJSON prints the given value as JSON to stdout
func printJSON(data interface{}) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(jsonData))
}
