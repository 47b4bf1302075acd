package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"specter/cmd/specter/ui"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List registered security tools and their availability",
	Long: `Tools probes every entry in the tool registry and reports which ones are
usable on this machine. Binary tools are looked up on PATH; MCP servers
count as available when configured; manual steps always are.`,
	RunE: listTools,
}

func listTools(cmd *cobra.Command, _ []string) error {
	st := ui.DefaultStyles()

	registry, err := buildRegistry(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	table := ui.NewTable("Registered tools", "NAME", "KIND", "STATUS", "DESCRIPTION")
	for _, tool := range registry.All() {
		status := st.Muted.Render("unavailable")
		if registry.IsAvailable(tool.Name) {
			status = st.Success.Render("available")
		}
		table.AddRow(tool.Name, string(tool.Kind), status, tool.Description)
	}
	fmt.Println(table.Render(st))
	fmt.Println(st.Muted.Render(fmt.Sprintf("%d of %d available, registry %s",
		len(registry.Available()), registry.Count(), cfg.Tools.RegistryPath)))
	return nil
}
