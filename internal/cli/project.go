package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/evcraddock/propdesk/internal/unit"
	"github.com/evcraddock/propdesk/internal/validate"
)

func newProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "project",
		Aliases: []string{"projects"},
		Short:   "Manage development projects",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List projects",
			Args:  cobra.NoArgs,
			RunE:  runProjectList,
		},
		&cobra.Command{
			Use:   "show <id>",
			Short: "Show a project and its units",
			Args:  cobra.ExactArgs(1),
			RunE:  runProjectShow,
		},
		newProjectSaveCmd(false),
		newProjectSaveCmd(true),
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete a project",
			Args:  cobra.ExactArgs(1),
			RunE:  runProjectDelete,
		},
	)
	return cmd
}

func runProjectList(cmd *cobra.Command, args []string) error {
	c, err := newAPIClient(cmd)
	if err != nil {
		return err
	}
	projects, err := c.ListProjects(cmd.Context())
	if err != nil {
		return err
	}
	return emit(cmd, projects, func(w io.Writer) error { return printProjectTable(w, projects) })
}

func runProjectShow(cmd *cobra.Command, args []string) error {
	c, err := newAPIClient(cmd)
	if err != nil {
		return err
	}
	p, err := c.GetProject(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	units, err := c.ListUnits(cmd.Context(), p.ID)
	if err != nil {
		return err
	}

	out := struct {
		*unit.Project
		Units []unit.Unit `json:"units"`
	}{p, units}
	return emit(cmd, out, func(w io.Writer) error {
		fmt.Fprintf(w, "Project %s\n", p.ID)
		fmt.Fprintf(w, "  Name:     %s\n", p.Name)
		fmt.Fprintf(w, "  Location: %s\n\n", dash(p.Location))
		return printUnitTable(w, units)
	})
}

// newProjectSaveCmd builds "create" or "update <id>".
func newProjectSaveCmd(update bool) *cobra.Command {
	var in unit.ProjectInput

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validate.Struct(in); err != nil {
				return err
			}
			c, err := newAPIClient(cmd)
			if err != nil {
				return err
			}
			var p *unit.Project
			if update {
				p, err = c.UpdateProject(cmd.Context(), args[0], in)
			} else {
				p, err = c.CreateProject(cmd.Context(), in)
			}
			if err != nil {
				return err
			}
			return done(cmd, p, "Project %s saved.", p.ID)
		},
	}
	if update {
		cmd.Use = "update <id>"
		cmd.Short = "Rename or relocate a project"
		cmd.Args = cobra.ExactArgs(1)
	}

	cmd.Flags().StringVar(&in.Name, "name", "", "project name")
	cmd.Flags().StringVar(&in.Location, "location", "", "project location")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func runProjectDelete(cmd *cobra.Command, args []string) error {
	c, err := newAPIClient(cmd)
	if err != nil {
		return err
	}
	if err := confirmDelete(cmd, "project "+args[0]); err != nil {
		return err
	}
	if err := c.DeleteProject(cmd.Context(), args[0]); err != nil {
		return err
	}
	return done(cmd, map[string]string{"deleted": args[0]}, "Project %s deleted.", args[0])
}
