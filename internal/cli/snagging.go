package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/evcraddock/propdesk/internal/apiclient"
	"github.com/evcraddock/propdesk/internal/dispatch"
	"github.com/evcraddock/propdesk/internal/snagging"
	"github.com/evcraddock/propdesk/internal/store"
	"github.com/evcraddock/propdesk/internal/validate"
	"github.com/evcraddock/propdesk/internal/workflow"
)

func newSnaggingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "snagging",
		Aliases: []string{"snaggings", "snag"},
		Short:   "Raise and resolve snagging reports",
		Long: `A snagging report lists defects found in a unit. Admins schedule the
inspection and send the report to the owner, who signs and accepts it.`,
	}

	messages := &cobra.Command{
		Use:   "message",
		Short: "Post, edit or delete messages on a report",
	}
	messages.AddCommand(
		&cobra.Command{
			Use:   "add <id> <text>",
			Short: "Post a message",
			Args:  cobra.MinimumNArgs(2),
			RunE:  runSnaggingMessageAdd,
		},
		&cobra.Command{
			Use:   "edit <id> <message-id> <text>",
			Short: "Edit one of your messages",
			Args:  cobra.MinimumNArgs(3),
			RunE:  runSnaggingMessageEdit,
		},
		&cobra.Command{
			Use:   "delete <id> <message-id>",
			Short: "Delete one of your messages",
			Args:  cobra.ExactArgs(2),
			RunE:  runSnaggingMessageDelete,
		},
	)

	cmd.AddCommand(
		newSnaggingListCmd(),
		&cobra.Command{
			Use:   "show <id>",
			Short: "Show a report and what you can do with it",
			Args:  cobra.ExactArgs(1),
			RunE:  runSnaggingShow,
		},
		newSnaggingCreateCmd(),
		newSnaggingEditCmd(),
		newSnaggingActionCmd(workflow.ActionSend, "Send a report to the owner"),
		newSnaggingActionCmd(workflow.ActionAccept, "Accept a report as the owner"),
		newSnaggingActionCmd(workflow.ActionCancel, "Cancel a report"),
		newSnaggingActionCmd(workflow.ActionRegeneratePDF, "Regenerate the PDF of an accepted report"),
		newSnaggingScheduleCmd(),
		newSnaggingSignCmd(),
		&cobra.Command{
			Use:   "messages <id>",
			Short: "Show the report's message thread",
			Args:  cobra.ExactArgs(1),
			RunE:  runSnaggingMessages,
		},
		messages,
		newDownloadCmd("download <id>", "Download the report PDF", locateSnaggingPDF),
		newSnaggingWatchCmd(),
	)
	return cmd
}

func newSnaggingListCmd() *cobra.Command {
	var (
		unitID, status string
		mine           bool
		paging         pageFlags
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List snagging reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newAPIClient(cmd)
			if err != nil {
				return err
			}
			opts := paging.options(map[string]string{"status": strings.ToUpper(status)})
			var page *apiclient.Page[snagging.Snagging]
			switch {
			case mine:
				page, err = c.MySnaggings(cmd.Context(), opts)
			case unitID != "":
				page, err = c.UnitSnaggings(cmd.Context(), unitID, opts)
			default:
				page, err = c.ListSnaggings(cmd.Context(), opts)
			}
			if err != nil {
				return err
			}
			return emit(cmd, page, func(w io.Writer) error { return printSnaggingTable(w, page) })
		},
	}
	cmd.Flags().StringVar(&unitID, "unit", "", "only reports of this unit")
	cmd.Flags().StringVar(&status, "status", "", "only reports in this status")
	cmd.Flags().BoolVar(&mine, "mine", false, "only reports on your units (owners) or raised by you (admins)")
	cmd.MarkFlagsMutuallyExclusive("mine", "unit")
	paging.register(cmd)
	return cmd
}

func runSnaggingShow(cmd *cobra.Command, args []string) error {
	c, role, err := clientAndRole(cmd)
	if err != nil {
		return err
	}
	s, err := c.GetSnagging(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return emit(cmd, s, func(w io.Writer) error {
		printSnagging(w, s, role)
		return nil
	})
}

// snaggingItems collects defects from --item and --items.
func snaggingItems(flags []string, file string) ([]snagging.ItemInput, error) {
	var items []snagging.ItemInput
	if file != "" {
		if err := readItems(file, &items); err != nil {
			return nil, err
		}
	}
	for _, f := range flags {
		category, label, location, err := splitItem(f)
		if err != nil {
			return nil, err
		}
		items = append(items, snagging.ItemInput{Category: category, Label: label, Location: location})
	}
	return items, nil
}

func newSnaggingCreateCmd() *cobra.Command {
	var (
		in                  snagging.CreateInput
		priority, itemsFile string
		itemFlags           []string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Raise a snagging report",
		Long: `Raise a snagging report for a unit. Defects are given as
--item Category:Label[:Location] or read from a YAML/JSON list with --items,
which may also carry up to five image URLs per defect. Reports raised by
owners are always MEDIUM priority.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if in.Priority, err = parsePriority(priority); err != nil {
				return err
			}
			if in.Items, err = snaggingItems(itemFlags, itemsFile); err != nil {
				return err
			}
			c, role, err := clientAndRole(cmd)
			if err != nil {
				return err
			}
			d := dispatch.NewSnaggingDispatcher(c, role, newConfirmer(cmd))
			s, err := d.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			return done(cmd, s, "Snagging report %s raised (%s, %d items).", s.ID, s.Priority, len(s.Items))
		},
	}
	cmd.Flags().StringVar(&in.UnitID, "unit", "", "unit ID")
	cmd.Flags().StringVar(&in.Title, "title", "", "report title")
	cmd.Flags().StringVar(&in.Description, "description", "", "details")
	cmd.Flags().StringVar(&priority, "priority", "", "LOW, MEDIUM, HIGH or URGENT (admins only)")
	cmd.Flags().StringArrayVar(&itemFlags, "item", nil, "defect Category:Label[:Location] (repeatable)")
	cmd.Flags().StringVar(&itemsFile, "items", "", "YAML or JSON file with defects")
	_ = cmd.MarkFlagRequired("unit")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newSnaggingEditCmd() *cobra.Command {
	var (
		title, description, itemsFile string
		itemFlags                     []string
	)
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a draft report",
		Long: `Edit a DRAFT report. Giving --item or --items replaces the whole defect list.
The priority set when the report was raised cannot be changed.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, role, err := clientAndRole(cmd)
			if err != nil {
				return err
			}
			s, err := c.GetSnagging(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !s.Actions(role).Has(workflow.ActionEdit) {
				return fmt.Errorf("edit on %s: %w", s.Status, workflow.ErrTransitionNotAllowed)
			}

			var in snagging.UpdateInput
			flags := cmd.Flags()
			if flags.Changed("title") {
				in.Title = &title
			}
			if flags.Changed("description") {
				in.Description = &description
			}
			if flags.Changed("item") || flags.Changed("items") {
				items, err := snaggingItems(itemFlags, itemsFile)
				if err != nil {
					return err
				}
				in.Items = &items
			}
			if err := validate.Struct(in); err != nil {
				return err
			}

			s, err = c.UpdateSnagging(cmd.Context(), s.ID, in)
			if err != nil {
				return err
			}
			return done(cmd, s, "Snagging report %s updated.", s.ID)
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "report title")
	cmd.Flags().StringVar(&description, "description", "", "details")
	cmd.Flags().StringArrayVar(&itemFlags, "item", nil, "defect Category:Label[:Location] (repeatable)")
	cmd.Flags().StringVar(&itemsFile, "items", "", "YAML or JSON file with defects")
	return cmd
}

// loadSnagging fetches the report and a dispatcher acting for the caller.
func loadSnagging(cmd *cobra.Command, id string) (*snagging.Snagging, *dispatch.SnaggingDispatcher, error) {
	c, role, err := clientAndRole(cmd)
	if err != nil {
		return nil, nil, err
	}
	s, err := c.GetSnagging(cmd.Context(), id)
	if err != nil {
		return nil, nil, err
	}
	return s, dispatch.NewSnaggingDispatcher(c, role, newConfirmer(cmd)), nil
}

func newSnaggingActionCmd(action workflow.Action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   string(action) + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, d, err := loadSnagging(cmd, args[0])
			if err != nil {
				return err
			}
			s, err = d.Perform(cmd.Context(), s, action)
			if err != nil {
				return err
			}
			if s.PDFURL != nil && (action == workflow.ActionAccept || action == workflow.ActionRegeneratePDF) {
				return done(cmd, s, "Snagging report %s is %s. PDF: %s", s.ID, s.Status, *s.PDFURL)
			}
			return done(cmd, s, "Snagging report %s is now %s.", s.ID, s.Status)
		},
	}
}

func newSnaggingScheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule <id> <when>",
		Short: "Set the inspection or repair visit time",
		Long:  "Set the visit time of a DRAFT or SENT report. <when> is YYYY-MM-DD [HH:MM] or RFC 3339.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			at, err := parseTime(args[1])
			if err != nil {
				return err
			}
			s, d, err := loadSnagging(cmd, args[0])
			if err != nil {
				return err
			}
			s, err = d.Schedule(cmd.Context(), s, at)
			if err != nil {
				return err
			}
			return done(cmd, s, "Snagging report %s scheduled for %s.", s.ID, formatTime(s.ScheduledAt))
		},
	}
}

func newSnaggingSignCmd() *cobra.Command {
	var signature, file string
	cmd := &cobra.Command{
		Use:   "sign <id>",
		Short: "Sign a report as the owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("reading signature: %w", err)
				}
				signature = strings.TrimSpace(string(data))
			}
			s, d, err := loadSnagging(cmd, args[0])
			if err != nil {
				return err
			}
			s, err = d.Sign(cmd.Context(), s, signature)
			if err != nil {
				return err
			}
			return done(cmd, s, "Snagging report %s signed.", s.ID)
		},
	}
	cmd.Flags().StringVar(&signature, "signature", "", "signature as a data URL")
	cmd.Flags().StringVar(&file, "signature-file", "", "file holding the signature data URL")
	cmd.MarkFlagsMutuallyExclusive("signature", "signature-file")
	return cmd
}

func runSnaggingMessages(cmd *cobra.Command, args []string) error {
	c, err := newAPIClient(cmd)
	if err != nil {
		return err
	}
	msgs, err := c.SnaggingMessages(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return emit(cmd, msgs, func(w io.Writer) error {
		printMessages(w, msgs)
		return nil
	})
}

func runSnaggingMessageAdd(cmd *cobra.Command, args []string) error {
	s, d, err := loadSnagging(cmd, args[0])
	if err != nil {
		return err
	}
	m, err := d.PostMessage(cmd.Context(), s, strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	return done(cmd, m, "Message %s posted.", m.ID)
}

func runSnaggingMessageEdit(cmd *cobra.Command, args []string) error {
	s, d, err := loadSnagging(cmd, args[0])
	if err != nil {
		return err
	}
	m, err := d.EditMessage(cmd.Context(), s, args[1], strings.Join(args[2:], " "))
	if err != nil {
		return err
	}
	return done(cmd, m, "Message %s updated.", m.ID)
}

func runSnaggingMessageDelete(cmd *cobra.Command, args []string) error {
	s, d, err := loadSnagging(cmd, args[0])
	if err != nil {
		return err
	}
	if err := d.DeleteMessage(cmd.Context(), s, args[1]); err != nil {
		return err
	}
	return done(cmd, map[string]string{"deleted": args[1]}, "Message %s deleted.", args[1])
}

func locateSnaggingPDF(cmd *cobra.Command, c *apiclient.Client, id string) (string, string, error) {
	role, err := currentRole(cmd.Context(), c)
	if err != nil {
		return "", "", err
	}
	s, err := c.GetSnagging(cmd.Context(), id)
	if err != nil {
		return "", "", err
	}
	if !s.Actions(role).Has(workflow.ActionDownloadPDF) || s.PDFURL == nil {
		return "", "", fmt.Errorf("snagging report %s has no PDF yet (status %s)", s.ID, s.Status)
	}
	return *s.PDFURL, "snagging-" + s.ID + ".pdf", nil
}

func newSnaggingWatchCmd() *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch <id>",
		Short: "Follow a snagging report until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, role, err := clientAndRole(cmd)
			if err != nil {
				return err
			}
			id := args[0]
			key := store.NewKey("/snaggings/"+id, nil)
			fetch := func(ctx context.Context) (*snagging.Snagging, error) {
				return c.GetSnagging(ctx, id)
			}
			return watch[*snagging.Snagging](cmd, key, fetch, interval, func(w io.Writer, s *snagging.Snagging) {
				printSnagging(w, s, role)
			})
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", store.DefaultPollInterval, "poll interval")
	return cmd
}
