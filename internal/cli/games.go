package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/matzehuels/humbleplugin/pkg/model"
	"github.com/matzehuels/humbleplugin/pkg/plugin"
)

// libraryCommand creates the library command.
func (c *CLI) libraryCommand() *cobra.Command {
	var interactive bool

	cmd := &cobra.Command{
		Use:   "library",
		Short: "List the games the launcher would import",
		Long: `Resolve the owned games with the current [library] settings.

With --interactive the games are shown in a browser; pressing enter opens
what installing the game in the launcher would open.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			p, err := c.loginPlugin(ctx)
			if err != nil {
				return err
			}
			defer p.Shutdown()

			prog := newProgress(c.Logger)
			spinner := newSpinnerWithContext(ctx, "Resolving library...")
			spinner.Start()
			games, err := p.ImportOwnedGames(ctx)
			if err != nil {
				spinner.StopWithError("Library import failed")
				return err
			}
			spinner.Stop()
			prog.done(fmt.Sprintf("Imported %d games", len(games)))

			rows := make([]gameRow, 0, len(games))
			for _, g := range games {
				row := gameRow{ID: g.GameID, Title: g.GameTitle, License: string(g.LicenseInfo.LicenseType)}
				if tags, err := p.GetGameLibrarySettings(g.GameID); err == nil {
					row.Tags = strings.Join(tags.Tags, ", ")
				}
				if compat, err := p.GetOSCompatibility(g.GameID); err == nil && compat != nil {
					row.OS = osLabel(model.OSCompatibility(*compat))
				}
				rows = append(rows, row)
			}

			if interactive {
				return c.browse(ctx, p, rows)
			}
			printGames(rows)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "browse the library and open installs")
	c.addCookieFlag(cmd)
	return cmd
}

// subscriptionsCommand creates the subscriptions command.
func (c *CLI) subscriptionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subscriptions [name]",
		Short: "List subscriptions, or the games of one subscription",
		Example: `  humbleplugin subscriptions
  humbleplugin subscriptions "Humble Choice 2024-03"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			p, err := c.loginPlugin(ctx)
			if err != nil {
				return err
			}
			defer p.Shutdown()

			if len(args) == 1 {
				games, err := p.GetSubscriptionGames(ctx, args[0])
				if err != nil {
					return err
				}
				printSuccess("%s: %d games", args[0], len(games))
				for _, g := range games {
					printKeyValue(g.GameID, g.GameTitle)
				}
				return nil
			}

			subs, err := p.ImportSubscriptions(ctx)
			if err != nil {
				return err
			}
			if len(subs) == 0 {
				printInfo("No subscriptions")
				return nil
			}
			for _, s := range subs {
				status := StyleDim.Render("not owned")
				if s.Owned {
					status = StyleSuccess.Render("owned")
				}
				printKeyValue(s.SubscriptionName, status)
			}
			return nil
		},
	}
	c.addCookieFlag(cmd)
	return cmd
}

// localCommand creates the local command.
func (c *CLI) localCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "local",
		Short: "List owned games installed on this machine",
		Long: `Match installed programs and the [installed] search directories
against the owned games. On Windows the uninstall registry is read as well.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			p, err := c.loginPlugin(ctx)
			if err != nil {
				return err
			}
			defer p.Shutdown()

			owned, err := p.ImportOwnedGames(ctx)
			if err != nil {
				return err
			}
			titles := make(map[string]string, len(owned))
			for _, g := range owned {
				titles[g.GameID] = g.GameTitle
			}

			spinner := newSpinnerWithContext(ctx, "Scanning installed games...")
			spinner.Start()
			local, err := p.ImportLocalGames(ctx)
			if err != nil {
				spinner.StopWithError("Scan failed")
				return err
			}
			spinner.Stop()

			if len(local) == 0 {
				printInfo("No installed games found")
				return nil
			}
			printSuccess("%d installed games", len(local))
			for _, lg := range local {
				printKeyValue(lg.GameID, titles[lg.GameID])
			}
			return nil
		},
	}
	c.addCookieFlag(cmd)
	return cmd
}

// =============================================================================
// Output
// =============================================================================

type gameRow struct {
	ID      string
	Title   string
	License string
	Tags    string
	OS      string
}

func osLabel(c model.OSCompatibility) string {
	var parts []string
	if c&model.OSWindows != 0 {
		parts = append(parts, "win")
	}
	if c&model.OSMac != 0 {
		parts = append(parts, "mac")
	}
	if c&model.OSLinux != 0 {
		parts = append(parts, "linux")
	}
	return strings.Join(parts, " ")
}

func printGames(rows []gameRow) {
	if len(rows) == 0 {
		printInfo("No games")
		return
	}
	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		data = append(data, []string{r.Title, r.ID, r.OS, r.Tags})
	}
	t := newTable([]string{"Title", "ID", "OS", "Tags"}, data, func(_, col int) lipgloss.Style {
		if col == 0 {
			return lipgloss.NewStyle().Foreground(colorWhite)
		}
		return lipgloss.NewStyle().Foreground(colorGray)
	})
	fmt.Println(t.Render())
}

// browse runs the interactive library browser and opens the install
// target of the chosen game.
func (c *CLI) browse(ctx context.Context, p *plugin.Plugin, rows []gameRow) error {
	final, err := tea.NewProgram(newGameListModel(rows), tea.WithContext(ctx), tea.WithOutput(os.Stderr)).Run()
	if err != nil {
		return err
	}
	m, ok := final.(gameListModel)
	if !ok || m.Selected == nil {
		return nil
	}
	target, err := p.InstallURL(ctx, m.Selected.ID)
	if err != nil {
		return err
	}
	printInfo("Opening %s", StyleLink.Render(target))
	return browser.OpenURL(target)
}
