package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/evcraddock/propdesk/internal/unit"
	"github.com/evcraddock/propdesk/internal/validate"
)

func newUnitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "unit",
		Aliases: []string{"units"},
		Short:   "Manage units and their owners",
	}
	cmd.AddCommand(
		newUnitListCmd(),
		&cobra.Command{
			Use:   "show <id>",
			Short: "Show a unit",
			Args:  cobra.ExactArgs(1),
			RunE:  runUnitShow,
		},
		newUnitCreateCmd(),
		newUnitUpdateCmd(),
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete a unit",
			Args:  cobra.ExactArgs(1),
			RunE:  runUnitDelete,
		},
	)
	return cmd
}

func newUnitListCmd() *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List units",
		Long:  "List units. Owners only see their own units.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newAPIClient(cmd)
			if err != nil {
				return err
			}
			units, err := c.ListUnits(cmd.Context(), projectID)
			if err != nil {
				return err
			}
			return emit(cmd, units, func(w io.Writer) error { return printUnitTable(w, units) })
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "only units of this project")
	return cmd
}

func runUnitShow(cmd *cobra.Command, args []string) error {
	c, err := newAPIClient(cmd)
	if err != nil {
		return err
	}
	u, err := c.GetUnit(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return emit(cmd, u, func(w io.Writer) error {
		fmt.Fprintf(w, "Unit %s\n", u.ID)
		fmt.Fprintf(w, "  Name:    %s\n", u.Name)
		fmt.Fprintf(w, "  Project: %s\n", u.ProjectID)
		if u.Floor != nil {
			fmt.Fprintf(w, "  Floor:   %d\n", *u.Floor)
		}
		if u.AreaSqm != nil {
			fmt.Fprintf(w, "  Area:    %g m²\n", *u.AreaSqm)
		}
		fmt.Fprintf(w, "  Owner:   %s\n", dash(u.Owner()))
		return nil
	})
}

func newUnitCreateCmd() *cobra.Command {
	var (
		in    unit.CreateInput
		floor int64
		area  float64
		owner string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a unit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("floor") {
				in.Floor = &floor
			}
			if cmd.Flags().Changed("area") {
				in.AreaSqm = &area
			}
			if owner != "" {
				in.OwnerID = &owner
			}
			if err := validate.Struct(in); err != nil {
				return err
			}
			c, err := newAPIClient(cmd)
			if err != nil {
				return err
			}
			u, err := c.CreateUnit(cmd.Context(), in)
			if err != nil {
				return err
			}
			return done(cmd, u, "Unit %s created.", u.ID)
		},
	}
	cmd.Flags().StringVar(&in.ProjectID, "project", "", "project ID")
	cmd.Flags().StringVar(&in.Name, "name", "", "unit name, e.g. A-101")
	cmd.Flags().Int64Var(&floor, "floor", 0, "floor number")
	cmd.Flags().Float64Var(&area, "area", 0, "area in square metres")
	cmd.Flags().StringVar(&owner, "owner", "", "owner user ID")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newUnitUpdateCmd() *cobra.Command {
	var (
		name       string
		floor      int64
		area       float64
		owner      string
		clearOwner bool
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a unit or reassign its owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in unit.UpdateInput
			flags := cmd.Flags()
			if flags.Changed("name") {
				in.Name = &name
			}
			if flags.Changed("floor") {
				in.Floor = &floor
			}
			if flags.Changed("area") {
				in.AreaSqm = &area
			}
			switch {
			case clearOwner:
				empty := ""
				in.OwnerID = &empty
			case flags.Changed("owner"):
				in.OwnerID = &owner
			}
			if err := validate.Struct(in); err != nil {
				return err
			}
			c, err := newAPIClient(cmd)
			if err != nil {
				return err
			}
			u, err := c.UpdateUnit(cmd.Context(), args[0], in)
			if err != nil {
				return err
			}
			return done(cmd, u, "Unit %s updated.", u.ID)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "unit name")
	cmd.Flags().Int64Var(&floor, "floor", 0, "floor number")
	cmd.Flags().Float64Var(&area, "area", 0, "area in square metres")
	cmd.Flags().StringVar(&owner, "owner", "", "owner user ID")
	cmd.Flags().BoolVar(&clearOwner, "clear-owner", false, "remove the assigned owner")
	cmd.MarkFlagsMutuallyExclusive("owner", "clear-owner")
	return cmd
}

func runUnitDelete(cmd *cobra.Command, args []string) error {
	c, err := newAPIClient(cmd)
	if err != nil {
		return err
	}
	if err := confirmDelete(cmd, "unit "+args[0]); err != nil {
		return err
	}
	if err := c.DeleteUnit(cmd.Context(), args[0]); err != nil {
		return err
	}
	return done(cmd, map[string]string{"deleted": args[0]}, "Unit %s deleted.", args[0])
}
