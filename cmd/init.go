package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rumor-ml/deckhand/internal/config"
)

var initProjectID string

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a deckhand config file in the current directory",
	Long:  `Creates a .deckhand/config.yaml file in the current directory with default settings.`,
	RunE:  runInit,
}

func init() {
	initCmd.Flags().StringVar(&initProjectID, "project", "", "project ID to write into the new config")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := ".deckhand/config.yaml"

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s", configPath)
	}

	if err := config.WriteDefaultConfig(configPath); err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}

	if initProjectID != "" {
		if err := config.Set(configPath, "project.id", initProjectID); err != nil {
			return fmt.Errorf("setting project ID: %w", err)
		}
	}

	fmt.Printf("Created %s\n", configPath)
	return nil
}
