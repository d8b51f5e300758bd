package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/contrimap/contrimap/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long:  `Writes a .contrimap.yml with default settings to the current directory as a starting point.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(cfgFile); err == nil {
			return fmt.Errorf("%s already exists", cfgFile)
		}
		if err := config.DefaultConfig().Save(cfgFile); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", cfgFile)
		fmt.Printf("Set %s before starting the server.\n", config.APIKeyEnvVar(config.ProviderGroq))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
