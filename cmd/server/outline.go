package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agenthands/inkwell/internal/core/outline"
)

var outlineCmd = &cobra.Command{
	Use:   "outline <file>",
	Short: "Parse an outline file and print its chapters as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runOutline,
}

func runOutline(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read outline: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(outline.Parse(string(data)))
}
