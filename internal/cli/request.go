package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/evcraddock/propdesk/internal/apiclient"
	"github.com/evcraddock/propdesk/internal/dispatch"
	"github.com/evcraddock/propdesk/internal/request"
	"github.com/evcraddock/propdesk/internal/store"
	"github.com/evcraddock/propdesk/internal/workflow"
)

func newRequestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "request",
		Aliases: []string{"requests", "req"},
		Short:   "Submit and adjudicate owner requests",
		Long: `Owners request guest visits, work permits, ownership transfers, tenant
registrations and unit modifications. Admins approve or reject them.`,
	}
	cmd.AddCommand(
		newRequestListCmd(),
		&cobra.Command{
			Use:   "show <id>",
			Short: "Show a request and what you can do with it",
			Args:  cobra.ExactArgs(1),
			RunE:  runRequestShow,
		},
		newRequestCreateCmd(),
		newRequestActionCmd(workflow.ActionApprove, "Approve a submitted request"),
		newRequestRejectCmd(),
		newRequestActionCmd(workflow.ActionCancel, "Withdraw a submitted request"),
		newRequestActionCmd(workflow.ActionRevoke, "Revoke an approved request"),
		&cobra.Command{
			Use:   "use <id>",
			Short: "Record one use of an approved request",
			Args:  cobra.ExactArgs(1),
			RunE:  runRequestUse,
		},
		newDownloadCmd("download <id>", "Download the permit PDF", locateRequestPDF),
		newRequestWatchCmd(),
	)
	return cmd
}

func newRequestListCmd() *cobra.Command {
	var (
		unitID, typ, status string
		paging              pageFlags
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newAPIClient(cmd)
			if err != nil {
				return err
			}
			page, err := c.ListRequests(cmd.Context(), paging.options(map[string]string{
				"unitId": unitID,
				"type":   strings.ToUpper(typ),
				"status": strings.ToUpper(status),
			}))
			if err != nil {
				return err
			}
			return emit(cmd, page, func(w io.Writer) error { return printRequestTable(w, page) })
		},
	}
	cmd.Flags().StringVar(&unitID, "unit", "", "only requests for this unit")
	cmd.Flags().StringVar(&typ, "type", "", "only requests of this type")
	cmd.Flags().StringVar(&status, "status", "", "only requests in this status")
	paging.register(cmd)
	return cmd
}

func runRequestShow(cmd *cobra.Command, args []string) error {
	c, role, err := clientAndRole(cmd)
	if err != nil {
		return err
	}
	r, err := c.GetRequest(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return emit(cmd, r, func(w io.Writer) error {
		printRequest(w, r, role)
		return nil
	})
}

// parseFields turns key=value flags into a request payload. Integers and
// booleans keep their type; values like "007" stay strings.
func parseFields(fields []string) (map[string]interface{}, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	payload := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		key, value, ok := strings.Cut(f, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid field %q (use key=value)", f)
		}
		if n, err := strconv.ParseInt(value, 10, 64); err == nil && strconv.FormatInt(n, 10) == value {
			payload[key] = n
		} else if b, err := strconv.ParseBool(value); err == nil {
			payload[key] = b
		} else {
			payload[key] = value
		}
	}
	return payload, nil
}

// requestInput assembles a create payload from the command line.
func requestInput(typ, unitID string, transfer, fields []string, expiresAt string, maxUses int64) (request.CreateInput, error) {
	in := request.CreateInput{
		Type:            workflow.RequestType(strings.ToUpper(typ)),
		UnitID:          unitID,
		TransferUnitIDs: transfer,
		ExpiresMode:     workflow.ExpiresNever,
	}
	if !in.Type.IsValid() {
		return in, fmt.Errorf("unknown request type %q", typ)
	}
	payload, err := parseFields(fields)
	if err != nil {
		return in, err
	}
	in.Payload = payload

	switch {
	case expiresAt != "" && maxUses > 0:
		return in, fmt.Errorf("--expires-at and --max-uses cannot be combined")
	case expiresAt != "":
		at, err := parseTime(expiresAt)
		if err != nil {
			return in, err
		}
		in.ExpiresMode = workflow.ExpiresByDate
		in.ExpiresAt = &at
	case maxUses > 0:
		in.ExpiresMode = workflow.ExpiresByUses
		in.MaxUses = &maxUses
	}
	return in, nil
}

func newRequestCreateCmd() *cobra.Command {
	var (
		unitID, expiresAt string
		transfer, fields  []string
		maxUses           int64
	)
	cmd := &cobra.Command{
		Use:   "create <type>",
		Short: "Submit a request",
		Long: `Submit a request as the owner. <type> is one of GUEST_VISIT,
WORK_PERMISSION, OWNERSHIP_TRANSFER, TENANT_REGISTRATION or UNIT_MODIFICATION.
Details go in --field key=value, for example:

  pd request create guest_visit --unit u1 --field guestName="Ana" --field visitDate=2026-11-02
  pd request create ownership_transfer --transfer-unit u1 --transfer-unit u2 --field newOwnerEmail=b@example.com`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := requestInput(args[0], unitID, transfer, fields, expiresAt, maxUses)
			if err != nil {
				return err
			}
			c, role, err := clientAndRole(cmd)
			if err != nil {
				return err
			}
			r, err := dispatch.NewRequestDispatcher(c, role, newConfirmer(cmd)).Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			return done(cmd, r, "Request %s submitted (%s).", r.ID, r.Type.Label())
		},
	}
	cmd.Flags().StringVar(&unitID, "unit", "", "unit ID")
	cmd.Flags().StringArrayVar(&transfer, "transfer-unit", nil, "unit to transfer (repeatable)")
	cmd.Flags().StringArrayVar(&fields, "field", nil, "payload field key=value (repeatable)")
	cmd.Flags().StringVar(&expiresAt, "expires-at", "", "stop being valid at this time")
	cmd.Flags().Int64Var(&maxUses, "max-uses", 0, "stop being valid after this many uses")
	return cmd
}

// loadRequest fetches the request and a dispatcher acting for the caller.
func loadRequest(cmd *cobra.Command, id string) (*request.Request, *dispatch.RequestDispatcher, error) {
	c, role, err := clientAndRole(cmd)
	if err != nil {
		return nil, nil, err
	}
	r, err := c.GetRequest(cmd.Context(), id)
	if err != nil {
		return nil, nil, err
	}
	return r, dispatch.NewRequestDispatcher(c, role, newConfirmer(cmd)), nil
}

func newRequestActionCmd(action workflow.Action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   string(action) + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, d, err := loadRequest(cmd, args[0])
			if err != nil {
				return err
			}
			switch action {
			case workflow.ActionApprove:
				r, err = d.Approve(cmd.Context(), r)
			case workflow.ActionCancel:
				r, err = d.Cancel(cmd.Context(), r)
			case workflow.ActionRevoke:
				r, err = d.Revoke(cmd.Context(), r)
			default:
				err = fmt.Errorf("%s: %w", action, dispatch.ErrUnsupportedAction)
			}
			if err != nil {
				return err
			}
			return done(cmd, r, "Request %s is now %s.", r.ID, r.Status)
		},
	}
}

func newRequestRejectCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject a submitted request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, d, err := loadRequest(cmd, args[0])
			if err != nil {
				return err
			}
			r, err = d.Reject(cmd.Context(), r, reason)
			if err != nil {
				return err
			}
			return done(cmd, r, "Request %s rejected.", r.ID)
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "why the request is refused")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func runRequestUse(cmd *cobra.Command, args []string) error {
	c, err := newAPIClient(cmd)
	if err != nil {
		return err
	}
	r, err := c.RecordRequestUse(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if r.MaxUses != nil {
		return done(cmd, r, "Request %s used %d of %d times.", r.ID, r.UsesCount, *r.MaxUses)
	}
	return done(cmd, r, "Request %s used %d times.", r.ID, r.UsesCount)
}

func locateRequestPDF(cmd *cobra.Command, c *apiclient.Client, id string) (string, string, error) {
	r, err := c.GetRequest(cmd.Context(), id)
	if err != nil {
		return "", "", err
	}
	if r.PDFURL == nil {
		return "", "", fmt.Errorf("request %s has no permit PDF (status %s)", r.ID, r.Status)
	}
	return *r.PDFURL, "request-" + r.ID + ".pdf", nil
}

func newRequestWatchCmd() *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch <id>",
		Short: "Follow a request until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, role, err := clientAndRole(cmd)
			if err != nil {
				return err
			}
			id := args[0]
			fetch := func(ctx context.Context) (*request.Request, error) {
				return c.GetRequest(ctx, id)
			}
			return watch[*request.Request](cmd, store.NewKey("/requests/"+id, nil), fetch, interval, func(w io.Writer, r *request.Request) {
				printRequest(w, r, role)
			})
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", store.DefaultPollInterval, "poll interval")
	return cmd
}
