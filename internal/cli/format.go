package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/evcraddock/propdesk/internal/apiclient"
	"github.com/evcraddock/propdesk/internal/auth"
	"github.com/evcraddock/propdesk/internal/document"
	"github.com/evcraddock/propdesk/internal/handover"
	"github.com/evcraddock/propdesk/internal/message"
	"github.com/evcraddock/propdesk/internal/request"
	"github.com/evcraddock/propdesk/internal/snagging"
	"github.com/evcraddock/propdesk/internal/unit"
	"github.com/evcraddock/propdesk/internal/workflow"
)

// printJSON marshals v as indented JSON and writes it to w.
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// table writes a header, a dashed separator and rows through a tabwriter.
func table(w io.Writer, header []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	dashes := make([]string, len(header))
	for i, h := range header {
		dashes[i] = strings.Repeat("-", len(h))
	}
	lines := append([][]string{header, dashes}, rows...)
	for _, cols := range lines {
		if _, err := fmt.Fprintln(tw, strings.Join(cols, "\t")); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flushing table: %w", err)
	}
	return nil
}

// printFooter prints the totals line under a list.
func printFooter(w io.Writer, noun string, p apiclient.Pagination) {
	if p.TotalPages > 1 {
		fmt.Fprintf(w, "\nTotal: %d %s (page %d of %d)\n", p.Total, noun, p.Page, p.TotalPages)
		return
	}
	fmt.Fprintf(w, "\nTotal: %d %s\n", p.Total, noun)
}

func printHandoverTable(w io.Writer, page *apiclient.Page[handover.Handover]) error {
	if len(page.Items) == 0 {
		fmt.Fprintln(w, "No handovers found.")
		return nil
	}
	rows := make([][]string, 0, len(page.Items))
	for _, h := range page.Items {
		rows = append(rows, []string{h.ID, h.UnitID, string(h.Status), formatTime(h.ScheduledAt), fmt.Sprint(len(h.Items))})
	}
	if err := table(w, []string{"ID", "UNIT", "STATUS", "SCHEDULED", "ITEMS"}, rows); err != nil {
		return err
	}
	printFooter(w, "handovers", page.Pagination)
	return nil
}

func printHandover(w io.Writer, h *handover.Handover, role workflow.Role) {
	fmt.Fprintf(w, "Handover %s\n", h.ID)
	fmt.Fprintf(w, "  Unit:      %s\n", h.UnitID)
	fmt.Fprintf(w, "  Owner:     %s\n", h.OwnerID)
	fmt.Fprintf(w, "  Status:    %s\n", h.Status)
	fmt.Fprintf(w, "  Scheduled: %s\n", formatTime(h.ScheduledAt))
	if h.OwnerAcceptedAt != nil {
		fmt.Fprintf(w, "  Accepted:  %s\n", formatTime(h.OwnerAcceptedAt))
	}
	if h.Notes != nil && *h.Notes != "" {
		fmt.Fprintf(w, "  Notes:     %s\n", *h.Notes)
	}
	if h.PDFURL != nil {
		fmt.Fprintf(w, "  PDF:       %s\n", *h.PDFURL)
	}
	printActions(w, h.Actions(role))
	for i, item := range h.Items {
		fmt.Fprintf(w, "  %2d. [%s] %s", i+1, item.Category, item.Label)
		if item.Status != "" {
			fmt.Fprintf(w, " (%s)", item.Status)
		}
		fmt.Fprintln(w)
	}
}

func printSnaggingTable(w io.Writer, page *apiclient.Page[snagging.Snagging]) error {
	if len(page.Items) == 0 {
		fmt.Fprintln(w, "No snagging reports found.")
		return nil
	}
	rows := make([][]string, 0, len(page.Items))
	for _, s := range page.Items {
		rows = append(rows, []string{s.ID, s.UnitID, truncate(s.Title, 40), string(s.Status), string(s.Priority), fmt.Sprint(len(s.Items))})
	}
	if err := table(w, []string{"ID", "UNIT", "TITLE", "STATUS", "PRIORITY", "ITEMS"}, rows); err != nil {
		return err
	}
	printFooter(w, "snagging reports", page.Pagination)
	return nil
}

func printSnagging(w io.Writer, s *snagging.Snagging, role workflow.Role) {
	fmt.Fprintf(w, "Snagging report %s\n", s.ID)
	fmt.Fprintf(w, "  Title:     %s\n", s.Title)
	fmt.Fprintf(w, "  Unit:      %s\n", s.UnitID)
	fmt.Fprintf(w, "  Status:    %s\n", s.Status)
	fmt.Fprintf(w, "  Priority:  %s\n", s.Priority)
	fmt.Fprintf(w, "  Scheduled: %s\n", formatTime(s.ScheduledAt))
	if s.CreatedBy.Name != "" {
		fmt.Fprintf(w, "  Raised by: %s (%s)\n", s.CreatedBy.Name, s.CreatedBy.Role)
	}
	if s.Description != "" {
		fmt.Fprintf(w, "  Details:   %s\n", s.Description)
	}
	if s.OwnerSignature != nil {
		fmt.Fprintln(w, "  Signed:    yes")
	}
	if s.PDFURL != nil {
		fmt.Fprintf(w, "  PDF:       %s\n", *s.PDFURL)
	}
	printActions(w, s.Actions(role))
	for i, item := range s.Items {
		fmt.Fprintf(w, "  %2d. [%s] %s", i+1, item.Category, item.Label)
		if item.Location != "" {
			fmt.Fprintf(w, " @ %s", item.Location)
		}
		if len(item.Images) > 0 {
			fmt.Fprintf(w, " (%d images)", len(item.Images))
		}
		fmt.Fprintln(w)
	}
}

func printRequestTable(w io.Writer, page *apiclient.Page[request.Request]) error {
	if len(page.Items) == 0 {
		fmt.Fprintln(w, "No requests found.")
		return nil
	}
	rows := make([][]string, 0, len(page.Items))
	for _, r := range page.Items {
		rows = append(rows, []string{r.ID, string(r.Type), string(r.Status), dash(r.UnitID), r.CreatedAt.Format("2006-01-02")})
	}
	if err := table(w, []string{"ID", "TYPE", "STATUS", "UNIT", "CREATED"}, rows); err != nil {
		return err
	}
	printFooter(w, "requests", page.Pagination)
	return nil
}

func printRequest(w io.Writer, r *request.Request, role workflow.Role) {
	fmt.Fprintf(w, "Request %s\n", r.ID)
	fmt.Fprintf(w, "  Type:     %s\n", r.Type)
	fmt.Fprintf(w, "  Status:   %s\n", r.Status)
	fmt.Fprintf(w, "  Unit:     %s\n", dash(r.UnitID))
	if len(r.TransferUnitIDs) > 0 {
		fmt.Fprintf(w, "  Units:    %s\n", strings.Join(r.TransferUnitIDs, ", "))
	}
	switch r.ExpiresMode {
	case workflow.ExpiresByDate:
		fmt.Fprintf(w, "  Expires:  %s\n", formatTime(r.ExpiresAt))
	case workflow.ExpiresByUses:
		if r.MaxUses != nil {
			fmt.Fprintf(w, "  Uses:     %d of %d\n", r.UsesCount, *r.MaxUses)
		}
	}
	if r.RejectionReason != nil {
		fmt.Fprintf(w, "  Reason:   %s\n", *r.RejectionReason)
	}
	if r.PDFURL != nil {
		fmt.Fprintf(w, "  PDF:      %s\n", *r.PDFURL)
	}
	keys := make([]string, 0, len(r.Payload))
	for k := range r.Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s: %v\n", k, r.Payload[k])
	}
	printActions(w, r.Actions(role))
}

func printUnitTable(w io.Writer, units []unit.Unit) error {
	if len(units) == 0 {
		fmt.Fprintln(w, "No units found.")
		return nil
	}
	rows := make([][]string, 0, len(units))
	for _, u := range units {
		floor := "-"
		if u.Floor != nil {
			floor = fmt.Sprint(*u.Floor)
		}
		area := "-"
		if u.AreaSqm != nil {
			area = fmt.Sprintf("%g", *u.AreaSqm)
		}
		rows = append(rows, []string{u.ID, truncate(u.Name, 30), u.ProjectID, floor, area, dash(u.Owner())})
	}
	if err := table(w, []string{"ID", "NAME", "PROJECT", "FLOOR", "SQM", "OWNER"}, rows); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nTotal: %d units\n", len(units))
	return nil
}

func printProjectTable(w io.Writer, projects []unit.Project) error {
	if len(projects) == 0 {
		fmt.Fprintln(w, "No projects found.")
		return nil
	}
	rows := make([][]string, 0, len(projects))
	for _, p := range projects {
		rows = append(rows, []string{p.ID, truncate(p.Name, 40), dash(p.Location)})
	}
	if err := table(w, []string{"ID", "NAME", "LOCATION"}, rows); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nTotal: %d projects\n", len(projects))
	return nil
}

func printUserTable(w io.Writer, users []auth.User) error {
	if len(users) == 0 {
		fmt.Fprintln(w, "No users found.")
		return nil
	}
	rows := make([][]string, 0, len(users))
	for _, u := range users {
		rows = append(rows, []string{u.ID, u.Email, dash(u.Name), string(u.Role)})
	}
	if err := table(w, []string{"ID", "EMAIL", "NAME", "ROLE"}, rows); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nTotal: %d users\n", len(users))
	return nil
}

func printDocumentTable(w io.Writer, page *apiclient.Page[document.Document]) error {
	if len(page.Items) == 0 {
		fmt.Fprintln(w, "No documents found.")
		return nil
	}
	rows := make([][]string, 0, len(page.Items))
	for _, d := range page.Items {
		rows = append(rows, []string{d.ID, d.UnitID, d.Category.Label(), truncate(d.Title, 40), formatSize(d.SizeBytes)})
	}
	if err := table(w, []string{"ID", "UNIT", "CATEGORY", "TITLE", "SIZE"}, rows); err != nil {
		return err
	}
	printFooter(w, "documents", page.Pagination)
	return nil
}

// printMessages prints a thread oldest first.
func printMessages(w io.Writer, msgs []message.Message) {
	if len(msgs) == 0 {
		fmt.Fprintln(w, "No messages.")
		return
	}
	for _, m := range msgs {
		fmt.Fprintf(w, "[%s] %s (%s)\n  %s\n\n", m.CreatedAt.Format("2006-01-02 15:04"), m.ID, m.AuthorID, m.Body)
	}
}

func printActions(w io.Writer, actions workflow.ActionSet) {
	if actions.Len() == 0 {
		return
	}
	fmt.Fprintf(w, "  Actions:   %s\n", actions)
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

// formatSize renders a byte count with a binary unit.
func formatSize(n int64) string {
	const base = 1024
	if n < base {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(base), 0
	for m := n / base; m >= base; m /= base {
		div *= base
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
