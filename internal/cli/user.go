package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/evcraddock/propdesk/internal/auth"
	"github.com/evcraddock/propdesk/internal/validate"
	"github.com/evcraddock/propdesk/internal/workflow"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "user",
		Aliases: []string{"users"},
		Short:   "Manage admin and owner accounts (admin only)",
	}

	var role string
	list := &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newAPIClient(cmd)
			if err != nil {
				return err
			}
			users, err := c.ListUsers(cmd.Context(), workflow.Role(role))
			if err != nil {
				return err
			}
			return emit(cmd, users, func(w io.Writer) error { return printUserTable(w, users) })
		},
	}
	list.Flags().StringVar(&role, "role", "", "only users with this role (ADMIN|OWNER)")

	cmd.AddCommand(
		list,
		&cobra.Command{
			Use:   "show <id>",
			Short: "Show a user",
			Args:  cobra.ExactArgs(1),
			RunE:  runUserShow,
		},
		newUserCreateCmd(),
		newUserUpdateCmd(),
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete a user",
			Args:  cobra.ExactArgs(1),
			RunE:  runUserDelete,
		},
	)
	return cmd
}

func runUserShow(cmd *cobra.Command, args []string) error {
	c, err := newAPIClient(cmd)
	if err != nil {
		return err
	}
	u, err := c.GetUser(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return emit(cmd, u, func(w io.Writer) error {
		fmt.Fprintf(w, "User %s\n", u.ID)
		fmt.Fprintf(w, "  Email:   %s\n", u.Email)
		fmt.Fprintf(w, "  Name:    %s\n", dash(u.Name))
		fmt.Fprintf(w, "  Role:    %s\n", u.Role)
		fmt.Fprintf(w, "  Created: %s\n", formatTime(&u.CreatedAt))
		return nil
	})
}

func newUserCreateCmd() *cobra.Command {
	var (
		in   auth.UserInput
		role string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Role = workflow.Role(role)
			if err := validate.Struct(in); err != nil {
				return err
			}
			c, err := newAPIClient(cmd)
			if err != nil {
				return err
			}
			u, err := c.CreateUser(cmd.Context(), in)
			if err != nil {
				return err
			}
			return done(cmd, u, "User %s (%s) created.", u.Email, u.ID)
		},
	}
	cmd.Flags().StringVar(&in.Email, "email", "", "email address")
	cmd.Flags().StringVar(&in.Name, "name", "", "display name")
	cmd.Flags().StringVar(&role, "role", string(workflow.RoleOwner), "ADMIN or OWNER")
	cmd.Flags().StringVar(&in.Password, "password", "", "initial password (owners without one log in with a passkey)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newUserUpdateCmd() *cobra.Command {
	var name, role, password string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a user's name, role or password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in auth.UserUpdate
			flags := cmd.Flags()
			if flags.Changed("name") {
				in.Name = &name
			}
			if flags.Changed("role") {
				r := workflow.Role(role)
				in.Role = &r
			}
			if flags.Changed("password") {
				in.Password = &password
			}
			if err := validate.Struct(in); err != nil {
				return err
			}
			c, err := newAPIClient(cmd)
			if err != nil {
				return err
			}
			u, err := c.UpdateUser(cmd.Context(), args[0], in)
			if err != nil {
				return err
			}
			return done(cmd, u, "User %s updated.", u.Email)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&role, "role", "", "ADMIN or OWNER")
	cmd.Flags().StringVar(&password, "password", "", "new password")
	return cmd
}

func runUserDelete(cmd *cobra.Command, args []string) error {
	c, err := newAPIClient(cmd)
	if err != nil {
		return err
	}
	if err := confirmDelete(cmd, "user "+args[0]); err != nil {
		return err
	}
	if err := c.DeleteUser(cmd.Context(), args[0]); err != nil {
		return err
	}
	return done(cmd, map[string]string{"deleted": args[0]}, "User %s deleted.", args[0])
}
