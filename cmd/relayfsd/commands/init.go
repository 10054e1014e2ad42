package commands

import (
	"fmt"

	"github.com/marmos91/relayfs/pkg/config"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample relayfsd configuration file.

By default, the configuration file is created at
$XDG_CONFIG_HOME/relayfs/config.yaml. Use --config to specify a custom
path.

Examples:
  # Initialize with default location
  relayfsd init

  # Initialize with custom path
  relayfsd init --config /etc/relayfs/config.yaml

  # Force overwrite existing config
  relayfsd init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	var configPath string
	var err error

	if configFile != "" {
		err = config.InitConfigToPath(configFile, initForce)
		configPath = configFile
	} else {
		configPath, err = config.InitConfig(initForce)
	}

	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to customize your setup")
	fmt.Println("  2. Start the server with: relayfsd start")
	fmt.Printf("  3. Or specify custom config: relayfsd start --config %s\n", configPath)
	fmt.Println("\nSecurity note:")
	fmt.Println("  A random JWT signing secret has been generated for development use.")
	fmt.Println("  For production, generate a secure secret and set it via environment variable:")
	fmt.Println("    # Generates a 64-character hex string (32 bytes of entropy)")
	fmt.Println("    export RELAYFS_WS_JWT_SECRET=$(openssl rand -hex 32)")

	return nil
}
