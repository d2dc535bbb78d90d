// Package cli defines the cobra command tree for pd.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/evcraddock/propdesk/internal/apiclient"
	"github.com/evcraddock/propdesk/internal/dispatch"
	"github.com/evcraddock/propdesk/internal/workflow"
)

var (
	flagFormat string
	flagYes    bool
)

// NewRootCmd creates the root cobra command with global flags.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pd",
		Short: "Manage unit handovers, snagging reports and owner requests",
		Long: `pd talks to a propdesk server. Admins hand units over to owners, raise
snagging reports and decide on owner requests; owners accept handovers,
sign off snagging reports and submit requests. 'pd serve' runs the server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format (text|json)")
	root.PersistentFlags().BoolVarP(&flagYes, "yes", "y", false, "skip confirmation of destructive actions")

	root.AddCommand(
		newLoginCmd(),
		newLogoutCmd(),
		newStatusCmd(),
		newServeCmd(),
		newVersionCmd(),
		newProjectCmd(),
		newUnitCmd(),
		newUserCmd(),
		newDocumentCmd(),
		newHandoverCmd(),
		newSnaggingCmd(),
		newRequestCmd(),
	)

	return root
}

// Reported reports whether err came from the API client, which has already
// printed it.
func Reported(err error) bool {
	var apiErr *apiclient.Error
	return errors.As(err, &apiErr)
}

// isJSON returns true if the --format flag is set to json.
func isJSON() bool {
	return flagFormat == "json"
}

// newAPIClient creates a client for the configured server. API failures are
// printed to stderr.
func newAPIClient(cmd *cobra.Command) (*apiclient.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	stderr := cmd.ErrOrStderr()
	notifier := apiclient.NotifierFunc(func(msg string) {
		fmt.Fprintf(stderr, "Error: %s\n", msg)
	})
	return apiclient.New(getServerURL(), storedSession(cfg, stderr), apiclient.WithNotifier(notifier)), nil
}

// storedSession restores the session from cfg. Rotated tokens are written
// back to the config file; an expired session is removed from it.
func storedSession(cfg CLIConfig, stderr io.Writer) *apiclient.Session {
	sess := apiclient.NewSession(cfg.AccessToken, cfg.RefreshToken)
	sess.OnChange(func(access, refresh string) {
		err := updateConfig(func(c *CLIConfig) {
			c.AccessToken, c.RefreshToken = access, refresh
		})
		if err != nil {
			fmt.Fprintf(stderr, "warning: saving session: %v\n", err)
		}
	})
	sess.OnExpire(func() {
		if err := updateConfig((*CLIConfig).clearSession); err != nil {
			fmt.Fprintf(stderr, "warning: clearing session: %v\n", err)
		}
		fmt.Fprintln(stderr, "Run 'pd login' to log in again.")
	})
	return sess
}

// currentRole returns the stored role, asking the server when the config
// predates it.
func currentRole(ctx context.Context, c *apiclient.Client) (workflow.Role, error) {
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	if !cfg.LoggedIn() {
		return "", errors.New("not logged in, run 'pd login' first")
	}
	if cfg.Role != "" {
		return cfg.Role, nil
	}
	me, err := c.Me(ctx)
	if err != nil {
		return "", err
	}
	if err := rememberIdentity(me); err != nil {
		return "", err
	}
	return me.Role, nil
}

// clientAndRole is the common preamble of commands that dispatch actions.
func clientAndRole(cmd *cobra.Command) (*apiclient.Client, workflow.Role, error) {
	c, err := newAPIClient(cmd)
	if err != nil {
		return nil, "", err
	}
	role, err := currentRole(cmd.Context(), c)
	if err != nil {
		return nil, "", err
	}
	return c, role, nil
}

// newConfirmer asks on stdin unless --yes was given.
func newConfirmer(cmd *cobra.Command) dispatch.Confirmer {
	if flagYes {
		return dispatch.AlwaysConfirm
	}
	return promptConfirmer(cmd.InOrStdin(), cmd.ErrOrStderr())
}

func promptConfirmer(in io.Reader, out io.Writer) dispatch.Confirmer {
	reader := bufio.NewReader(in)
	return dispatch.ConfirmFunc(func(ctx context.Context, prompt string) (bool, error) {
		fmt.Fprintf(out, "%s [y/N] ", capitalize(prompt))
		answer, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return false, fmt.Errorf("reading input: %w", err)
		}
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
			return true, nil
		}
		return false, nil
	})
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
