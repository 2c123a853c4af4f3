package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/humbleplugin/pkg/buildinfo"
)

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Humble Bundle integration for desktop game launchers",
		Long: `humbleplugin makes a Humble Bundle library available to a desktop game launcher.

The launcher runs 'humbleplugin serve'. The remaining commands run the same
library, subscription and install detection code from a terminal.`,
		Version:      buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	flags := root.PersistentFlags()
	flags.StringVar(&c.settingsPath, "config", "", "settings file (default: user config dir)")
	flags.BoolVar(&c.noCache, "no-cache", false, "disable the page and library caches")

	root.AddCommand(c.serveCommand())
	root.AddCommand(c.loginCommand())
	root.AddCommand(c.logoutCommand())
	root.AddCommand(c.libraryCommand())
	root.AddCommand(c.subscriptionsCommand())
	root.AddCommand(c.localCommand())
	root.AddCommand(c.settingsCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// addCookieFlag registers --cookie on commands that talk to Humble.
func (c *CLI) addCookieFlag(cmd *cobra.Command) {
	cmd.Flags().StringVar(&c.cookie, "cookie", "", "session cookie value (default: $"+sessionEnv+" or the stored login)")
}
