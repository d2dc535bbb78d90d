package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/evcraddock/propdesk/internal/apiclient"
	"github.com/evcraddock/propdesk/internal/dispatch"
	"github.com/evcraddock/propdesk/internal/handover"
	"github.com/evcraddock/propdesk/internal/message"
	"github.com/evcraddock/propdesk/internal/store"
	"github.com/evcraddock/propdesk/internal/validate"
	"github.com/evcraddock/propdesk/internal/workflow"
)

func newHandoverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "handover",
		Aliases: []string{"handovers", "ho"},
		Short:   "Hand units over to their owners",
		Long: `A handover starts as a DRAFT checklist prepared by an admin, is sent to the
unit owner, and is either accepted (a PDF is generated) or sent back with
requested changes.`,
	}
	cmd.AddCommand(
		newHandoverListCmd(),
		&cobra.Command{
			Use:   "show <id>",
			Short: "Show a handover and what you can do with it",
			Args:  cobra.ExactArgs(1),
			RunE:  runHandoverShow,
		},
		newHandoverCreateCmd(),
		newHandoverEditCmd(),
		newHandoverActionCmd(workflow.ActionSend, "Send a draft handover to the owner"),
		newHandoverActionCmd(workflow.ActionAccept, "Accept a handover as the owner"),
		newHandoverActionCmd(workflow.ActionRequestChanges, "Send a handover back with requested changes"),
		newHandoverActionCmd(workflow.ActionCancel, "Cancel a handover"),
		&cobra.Command{
			Use:   "messages <id>",
			Short: "Show the handover's message thread",
			Args:  cobra.ExactArgs(1),
			RunE:  runHandoverMessages,
		},
		&cobra.Command{
			Use:   "message <id> <text>",
			Short: "Post to the handover's message thread",
			Args:  cobra.MinimumNArgs(2),
			RunE:  runHandoverMessage,
		},
		newDownloadCmd("download <id>", "Download the signed handover PDF", locateHandoverPDF),
		newHandoverWatchCmd(),
	)
	return cmd
}

func newHandoverListCmd() *cobra.Command {
	var (
		unitID, status string
		active         bool
		paging         pageFlags
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List handovers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newAPIClient(cmd)
			if err != nil {
				return err
			}
			filter := map[string]string{"unitId": unitID, "status": strings.ToUpper(status)}
			if active {
				filter["active"] = "true"
			}
			page, err := c.ListHandovers(cmd.Context(), paging.options(filter))
			if err != nil {
				return err
			}
			return emit(cmd, page, func(w io.Writer) error { return printHandoverTable(w, page) })
		},
	}
	cmd.Flags().StringVar(&unitID, "unit", "", "only handovers of this unit")
	cmd.Flags().StringVar(&status, "status", "", "only handovers in this status")
	cmd.Flags().BoolVar(&active, "active", false, "only handovers that are not yet accepted or cancelled")
	paging.register(cmd)
	return cmd
}

func runHandoverShow(cmd *cobra.Command, args []string) error {
	c, role, err := clientAndRole(cmd)
	if err != nil {
		return err
	}
	h, err := c.GetHandover(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return emit(cmd, h, func(w io.Writer) error {
		printHandover(w, h, role)
		return nil
	})
}

// handoverItems collects checklist items from --item and --items.
func handoverItems(flags []string, file string) ([]handover.ItemInput, error) {
	var items []handover.ItemInput
	if file != "" {
		if err := readItems(file, &items); err != nil {
			return nil, err
		}
	}
	for _, f := range flags {
		category, label, expected, err := splitItem(f)
		if err != nil {
			return nil, err
		}
		items = append(items, handover.ItemInput{Category: category, Label: label, ExpectedValue: expected})
	}
	return items, nil
}

func newHandoverCreateCmd() *cobra.Command {
	var (
		unitID, ownerID, scheduled, notes, itemsFile string
		itemFlags                                    []string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Start a draft handover for a unit",
		Long: `Start a DRAFT handover for a unit. The unit must have an owner and no other
active handover. Items are given as --item Category:Label[:Expected] or read
from a YAML/JSON list with --items.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := handover.CreateInput{OwnerID: ownerID}
			var err error
			if in.ScheduledAt, err = optionalTime(scheduled); err != nil {
				return err
			}
			if notes != "" {
				in.Notes = &notes
			}
			if in.Items, err = handoverItems(itemFlags, itemsFile); err != nil {
				return err
			}

			c, role, err := clientAndRole(cmd)
			if err != nil {
				return err
			}
			u, err := c.GetUnit(cmd.Context(), unitID)
			if err != nil {
				return err
			}
			d := dispatch.NewHandoverDispatcher(c, role, newConfirmer(cmd))
			h, err := d.Create(cmd.Context(), u, in)
			if err != nil {
				return err
			}
			return done(cmd, h, "Handover %s created for unit %s (%d items).", h.ID, u.Name, len(h.Items))
		},
	}
	cmd.Flags().StringVar(&unitID, "unit", "", "unit ID")
	cmd.Flags().StringVar(&ownerID, "owner", "", "owner user ID (default: the unit's owner)")
	cmd.Flags().StringVar(&scheduled, "scheduled", "", "handover date, YYYY-MM-DD [HH:MM]")
	cmd.Flags().StringVar(&notes, "notes", "", "notes for the owner")
	cmd.Flags().StringArrayVar(&itemFlags, "item", nil, "checklist item Category:Label[:Expected] (repeatable)")
	cmd.Flags().StringVar(&itemsFile, "items", "", "YAML or JSON file with checklist items")
	_ = cmd.MarkFlagRequired("unit")
	return cmd
}

func newHandoverEditCmd() *cobra.Command {
	var (
		scheduled, notes, signature, itemsFile string
		itemFlags                              []string
	)
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a draft handover",
		Long:  "Edit a DRAFT handover. Giving --item or --items replaces the whole checklist.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, role, err := clientAndRole(cmd)
			if err != nil {
				return err
			}
			h, err := c.GetHandover(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !h.Actions(role).Has(workflow.ActionEdit) {
				return fmt.Errorf("edit on %s: %w", h.Status, workflow.ErrTransitionNotAllowed)
			}

			var in handover.UpdateInput
			flags := cmd.Flags()
			if flags.Changed("scheduled") {
				if in.ScheduledAt, err = optionalTime(scheduled); err != nil {
					return err
				}
			}
			if flags.Changed("notes") {
				in.Notes = &notes
			}
			if flags.Changed("signature") {
				in.AdminSignature = &signature
			}
			if flags.Changed("item") || flags.Changed("items") {
				items, err := handoverItems(itemFlags, itemsFile)
				if err != nil {
					return err
				}
				in.Items = &items
			}
			if err := validate.Struct(in); err != nil {
				return err
			}

			h, err = c.UpdateHandover(cmd.Context(), h.ID, in)
			if err != nil {
				return err
			}
			return done(cmd, h, "Handover %s updated.", h.ID)
		},
	}
	cmd.Flags().StringVar(&scheduled, "scheduled", "", "handover date, YYYY-MM-DD [HH:MM]")
	cmd.Flags().StringVar(&notes, "notes", "", "notes for the owner")
	cmd.Flags().StringVar(&signature, "signature", "", "admin signature (data URL)")
	cmd.Flags().StringArrayVar(&itemFlags, "item", nil, "checklist item Category:Label[:Expected] (repeatable)")
	cmd.Flags().StringVar(&itemsFile, "items", "", "YAML or JSON file with checklist items")
	return cmd
}

// newHandoverActionCmd builds the command for one lifecycle action. The
// deprecated owner-confirm name is accepted as an alias of accept.
func newHandoverActionCmd(action workflow.Action, short string) *cobra.Command {
	var reason, signature string

	cmd := &cobra.Command{
		Use:   string(action) + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := handover.ActionInput{Reason: reason}
			if signature != "" {
				in.Signature = &signature
			}

			c, role, err := clientAndRole(cmd)
			if err != nil {
				return err
			}
			h, err := c.GetHandover(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			d := dispatch.NewHandoverDispatcher(c, role, newConfirmer(cmd))
			h, err = d.Perform(cmd.Context(), h, action, in)
			if err != nil {
				return err
			}
			if action == workflow.ActionAccept && h.PDFURL != nil {
				return done(cmd, h, "Handover %s accepted. PDF: %s", h.ID, *h.PDFURL)
			}
			return done(cmd, h, "Handover %s is now %s.", h.ID, h.Status)
		},
	}

	switch action {
	case workflow.ActionAccept:
		cmd.Aliases = []string{string(workflow.ActionOwnerConfirm)}
		cmd.Flags().StringVar(&signature, "signature", "", "owner signature (data URL)")
	case workflow.ActionRequestChanges:
		cmd.Flags().StringVar(&reason, "reason", "", "what needs to change")
		_ = cmd.MarkFlagRequired("reason")
	case workflow.ActionCancel:
		cmd.Flags().StringVar(&reason, "reason", "", "reason posted to the thread")
	}
	return cmd
}

func runHandoverMessages(cmd *cobra.Command, args []string) error {
	c, err := newAPIClient(cmd)
	if err != nil {
		return err
	}
	msgs, err := c.HandoverMessages(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return emit(cmd, msgs, func(w io.Writer) error {
		printMessages(w, msgs)
		return nil
	})
}

func runHandoverMessage(cmd *cobra.Command, args []string) error {
	in := message.Input{Body: strings.Join(args[1:], " ")}
	if err := validate.Struct(in); err != nil {
		return err
	}
	c, err := newAPIClient(cmd)
	if err != nil {
		return err
	}
	m, err := c.PostHandoverMessage(cmd.Context(), args[0], in.Body)
	if err != nil {
		return err
	}
	return done(cmd, m, "Message %s posted.", m.ID)
}

func locateHandoverPDF(cmd *cobra.Command, c *apiclient.Client, id string) (string, string, error) {
	role, err := currentRole(cmd.Context(), c)
	if err != nil {
		return "", "", err
	}
	h, err := c.GetHandover(cmd.Context(), id)
	if err != nil {
		return "", "", err
	}
	if !h.Actions(role).Has(workflow.ActionDownloadPDF) || h.PDFURL == nil {
		return "", "", fmt.Errorf("handover %s has no PDF yet (status %s)", h.ID, h.Status)
	}
	return *h.PDFURL, "handover-" + h.ID + ".pdf", nil
}

func newHandoverWatchCmd() *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch <id>",
		Short: "Follow a handover until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, role, err := clientAndRole(cmd)
			if err != nil {
				return err
			}
			id := args[0]
			key := store.NewKey("/handovers/"+id, nil)
			fetch := func(ctx context.Context) (*handover.Handover, error) {
				return c.GetHandover(ctx, id)
			}
			return watch[*handover.Handover](cmd, key, fetch, interval, func(w io.Writer, h *handover.Handover) {
				printHandover(w, h, role)
			})
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", store.DefaultPollInterval, "poll interval")
	return cmd
}
