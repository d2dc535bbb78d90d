package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/evcraddock/propdesk/internal/apiclient"
)

func newLoginCmd() *cobra.Command {
	var server, email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store a session",
		Long: `Logs in with email and password and stores the access and refresh tokens
in ~/.config/pd/config.yaml. Missing values are read from stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, server, email, password)
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "server URL (default: from config or http://localhost:8080)")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")

	return cmd
}

func runLogin(cmd *cobra.Command, serverFlag, email, password string) error {
	out := cmd.OutOrStdout()
	serverURL := serverFlag
	if serverURL == "" {
		serverURL = getServerURL()
	}

	reader := bufio.NewReader(cmd.InOrStdin())
	var err error
	if email == "" {
		if email, err = prompt(reader, out, "Email: "); err != nil {
			return err
		}
	}
	if password == "" {
		if password, err = prompt(reader, out, "Password: "); err != nil {
			return err
		}
	}
	if err := validateCredentials(email, password); err != nil {
		return err
	}

	notifier := apiclient.NotifierFunc(func(msg string) {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", msg)
	})
	c := apiclient.New(serverURL, nil, apiclient.WithNotifier(notifier))
	pair, err := c.Login(cmd.Context(), email, password)
	if err != nil {
		return err
	}

	// Load existing config to preserve other fields
	cfg, err := loadConfig()
	if err != nil {
		cfg = CLIConfig{}
	}
	cfg.AccessToken = pair.AccessToken
	cfg.RefreshToken = pair.RefreshToken
	cfg.Email = email
	if pair.User != nil {
		cfg.Email = pair.User.Email
		cfg.Role = pair.User.Role
	}
	if serverFlag != "" {
		cfg.ServerURL = serverFlag
	}

	if err := saveConfig(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Fprintf(out, "✓ Logged in as %s (%s).\n", cfg.Email, cfg.Role)
	return nil
}

// validateCredentials checks that both values were given.
func validateCredentials(email, password string) error {
	if strings.TrimSpace(email) == "" {
		return fmt.Errorf("no email provided")
	}
	if !strings.Contains(email, "@") {
		return fmt.Errorf("invalid email %q", email)
	}
	if password == "" {
		return fmt.Errorf("no password provided")
	}
	return nil
}

func prompt(r *bufio.Reader, w io.Writer, label string) (string, error) {
	fmt.Fprint(w, label)
	line, err := r.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
