package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke and remove the stored session",
		Long:  "Revokes the refresh token on the server and removes the stored tokens from the config file.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout(cmd)
		},
	}
}

func runLogout(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if !cfg.LoggedIn() {
		fmt.Fprintln(out, "Not logged in.")
		return nil
	}

	c, err := newAPIClient(cmd)
	if err != nil {
		return err
	}
	// The server may be gone; the local session is dropped either way.
	if err := c.Logout(cmd.Context()); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: server did not confirm logout")
	}

	if err := updateConfig((*CLIConfig).clearSession); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Fprintln(out, "✓ Logged out.")
	return nil
}
