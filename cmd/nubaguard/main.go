// Command nubaguard is the main entry point for the NubaGuard infant monitor.
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	configPath string
	envFile    string
)

// rootCmd is the top-level command.
var rootCmd = &cobra.Command{
	Use:     "nubaguard",
	Short:   "Camera and microphone companion that watches over a sleeping child",
	Version: version,
	// A missing .env file is not an error; an unreadable named one is.
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Flags().Changed("env-file") {
			return godotenv.Load(envFile)
		}
		_ = godotenv.Load(envFile)
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with provider credentials")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
