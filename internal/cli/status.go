package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/evcraddock/propdesk/internal/apiclient"
	"github.com/evcraddock/propdesk/internal/auth"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check connection and auth status",
		Long:  "Tests the connection to the server and checks whether the stored session is still valid.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd)
		},
	}
}

func runStatus(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	serverURL := getServerURL()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Server:  %s\n", serverURL)

	if !cfg.LoggedIn() {
		fmt.Fprintln(out, "Session: not logged in")
		fmt.Fprintln(out, "\nRun 'pd login' to authenticate.")
		return nil
	}
	if cfg.Email != "" {
		fmt.Fprintf(out, "User:    %s (%s)\n", cfg.Email, cfg.Role)
	}

	// No notifier: the outcome is reported on the Status line.
	c := apiclient.New(serverURL, storedSession(cfg, cmd.ErrOrStderr()), apiclient.WithTimeout(5*time.Second))
	me, err := c.Me(cmd.Context())

	switch {
	case err == nil:
		fmt.Fprintf(out, "Status:  ✓ connected and authenticated as %s\n", me.Email)
		if me.Role != cfg.Role || me.Email != cfg.Email {
			return rememberIdentity(me)
		}
	case apiclient.KindOf(err) == apiclient.KindNetwork:
		fmt.Fprintf(out, "Status:  ✗ cannot reach server (%v)\n", err)
	case apiclient.KindOf(err) == apiclient.KindUnauthorized:
		fmt.Fprintln(out, "Status:  ✗ session expired")
		fmt.Fprintln(out, "\nRun 'pd login' to re-authenticate.")
	default:
		fmt.Fprintf(out, "Status:  ✗ unexpected response (%v)\n", err)
	}

	return nil
}

func rememberIdentity(u *auth.User) error {
	return updateConfig(func(c *CLIConfig) {
		c.Email, c.Role = u.Email, u.Role
	})
}
