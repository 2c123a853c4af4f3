package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// settingsCommand creates the settings command.
func (c *CLI) settingsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect the plugin settings file",
	}

	cmd.AddCommand(c.settingsPathCommand())
	cmd.AddCommand(c.settingsShowCommand())

	return cmd
}

func (c *CLI) settingsPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the settings file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := c.openSettings()
			if err != nil {
				return err
			}
			fmt.Println(st.Path())
			return nil
		},
	}
}

func (c *CLI) settingsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the settings as the plugin reads them",
		Long: `Print the effective settings. Unknown sources are dropped and search
directories that do not exist are left out, exactly as the plugin does.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := c.openSettings()
			if err != nil {
				return err
			}
			lib, inst := st.Library(), st.Installed()

			fmt.Println(StyleTitle.Render("Settings") + " " + StyleLink.Render(st.Path()))
			printNewline()

			sources := make([]string, len(lib.Sources))
			for i, s := range lib.Sources {
				sources[i] = string(s)
			}
			printKeyValue("sources", strings.Join(sources, ", "))
			printKeyValue("show_revealed_keys", fmt.Sprint(lib.ShowRevealedKeys))

			if len(inst.SearchDirs) == 0 {
				printKeyValue("search_dirs", StyleDim.Render("none"))
				return nil
			}
			for i, dir := range inst.SearchDirs {
				key := ""
				if i == 0 {
					key = "search_dirs"
				}
				printKeyValue(key, dir)
			}
			return nil
		},
	}
}
