// Package cmd wires the deckhand CLI.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "deckhand",
	Short: "Edit cards in a shared deck",
	Long: `Deckhand is a terminal client for a collaborative card deck.
It creates and edits cards against the shared store, with comboboxes
that offer existing type and subtype values or accept new ones.

Run 'deckhand edit' to create a card, or 'deckhand edit <id>' to edit
an existing one.`,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
