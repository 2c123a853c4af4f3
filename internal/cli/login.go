package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/matzehuels/humbleplugin/pkg/errors"
	"github.com/matzehuels/humbleplugin/pkg/humble"
	"github.com/matzehuels/humbleplugin/pkg/session"
)

const loginURL = "https://www.humblebundle.com/login?goto=/home/library"

// loginCommand creates the login command.
func (c *CLI) loginCommand() *cobra.Command {
	var noBrowser bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store a Humble session for the diagnostic commands",
		Long: `Log in on the Humble Bundle website, then paste the value of the
` + humble.SessionCookie + ` cookie. The session is verified and stored in the user
config dir; the launcher keeps its own copy.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			value := c.cookie
			if value == "" {
				if !noBrowser {
					if err := browser.OpenURL(loginURL); err != nil {
						printWarning("Could not open a browser")
						printDetail("Open %s and log in", loginURL)
					}
				}
				printInfo("Paste the %s cookie value:", humble.SessionCookie)
				var err error
				if value, err = readLine(cmd.InOrStdin()); err != nil {
					return err
				}
			}
			return c.runLogin(ctx, value)
		},
	}

	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "do not open the login page")
	c.addCookieFlag(cmd)
	return cmd
}

// logoutCommand creates the logout command.
func (c *CLI) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored Humble session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.sessionStore()
			if err != nil {
				return err
			}
			if err := store.Delete(); err != nil {
				return fmt.Errorf("delete session: %w", err)
			}
			printSuccess("Logged out")
			return nil
		},
	}
}

func (c *CLI) runLogin(ctx context.Context, value string) error {
	value = strings.Trim(strings.TrimSpace(value), `"`)
	if value == "" {
		return errors.New(errors.ErrCodeInvalidInput, "empty session cookie")
	}

	spinner := newSpinnerWithContext(ctx, "Verifying session...")
	spinner.Start()
	api := c.newAPI()
	defer api.Close()
	userID, err := api.Authenticate(ctx, value)
	if err != nil {
		spinner.StopWithError("Session invalid")
		return err
	}
	spinner.Stop()

	store, err := c.sessionStore()
	if err != nil {
		return err
	}
	if err := store.Save(session.New(api.Cookies())); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	printSuccess("Logged in as %s", StyleHighlight.Render(userID))
	printDetail("Session: %s", store.Path())
	return nil
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("read cookie: %w", err)
	}
	return strings.TrimSpace(line), nil
}
