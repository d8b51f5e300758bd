package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "contrimap",
	Short: "Contribution starter kits for any GitHub repository",
	Long: `Contrimap analyzes public GitHub repositories and generates a
contribution starter kit: structural breakdown, AI-written architecture
explanation, a mind-map diagram, beginner-issue discovery, per-issue
roadmaps, a contribution guide, and a pre-PR checklist.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".contrimap.yml", "config file path")
}
