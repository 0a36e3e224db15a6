package main

import (
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cobra"

	"github.com/ideaspaper/sheets-reader-mcp/internal/tools"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Print the tool catalog as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := toolCatalog()
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"tools": catalog})
	},
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}

// toolCatalog lists the tool definitions. No client is attached, so no
// credentials are needed.
func toolCatalog() ([]mcp.Tool, error) {
	registry := tools.NewRegistry()
	if err := tools.RegisterSheetTools(registry, nil); err != nil {
		return nil, err
	}
	defs := registry.List()
	out := make([]mcp.Tool, 0, len(defs))
	for _, def := range defs {
		out = append(out, def.Tool)
	}
	return out, nil
}
