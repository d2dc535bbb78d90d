package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/evcraddock/propdesk/internal/apiclient"
	"github.com/evcraddock/propdesk/internal/request"
	"github.com/evcraddock/propdesk/internal/snagging"
	"github.com/evcraddock/propdesk/internal/workflow"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		max      int
		expected string
	}{
		{"short", "hello", 10, "hello"},
		{"exact", "hello", 5, "hello"},
		{"long", "hello world!", 8, "hello..."},
		{"empty", "", 5, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := truncate(tt.input, tt.max)
			if result != tt.expected {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.max, result, tt.expected)
			}
		})
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		n        int64
		expected string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1536, "1.5 KiB"},
		{1 << 20, "1.0 MiB"},
		{20 << 20, "20.0 MiB"},
		{3 << 30, "3.0 GiB"},
	}

	for _, tt := range tests {
		if got := formatSize(tt.n); got != tt.expected {
			t.Errorf("formatSize(%d) = %q, want %q", tt.n, got, tt.expected)
		}
	}
}

func TestFormatTime(t *testing.T) {
	if got := formatTime(nil); got != "-" {
		t.Errorf("formatTime(nil) = %q, want -", got)
	}
	if got := formatTime(&time.Time{}); got != "-" {
		t.Errorf("formatTime(zero) = %q, want -", got)
	}
	at := time.Date(2026, 3, 14, 9, 30, 0, 0, time.Local)
	if got := formatTime(&at); got != "2026-03-14 09:30" {
		t.Errorf("formatTime = %q", got)
	}
}

func TestTableAlignsColumns(t *testing.T) {
	var buf bytes.Buffer
	err := table(&buf, []string{"ID", "STATUS"}, [][]string{{"h1", "DRAFT"}, {"h22", "SENT"}})
	if err != nil {
		t.Fatalf("table: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d: %q", len(lines), buf.String())
	}
	if lines[1] != "--   ------" {
		t.Errorf("separator = %q", lines[1])
	}
	if lines[3] != "h22  SENT" {
		t.Errorf("row = %q", lines[3])
	}
}

func TestPrintSnaggingTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	page := &apiclient.Page[snagging.Snagging]{Items: []snagging.Snagging{}}
	if err := printSnaggingTable(&buf, page); err != nil {
		t.Fatalf("print: %v", err)
	}
	if buf.String() != "No snagging reports found.\n" {
		t.Errorf("output = %q", buf.String())
	}
}

func TestPrintFooterPages(t *testing.T) {
	var buf bytes.Buffer
	printFooter(&buf, "requests", apiclient.Pagination{Total: 45, Page: 2, TotalPages: 3})
	if !strings.Contains(buf.String(), "Total: 45 requests (page 2 of 3)") {
		t.Errorf("output = %q", buf.String())
	}

	buf.Reset()
	printFooter(&buf, "requests", apiclient.Pagination{Total: 3, Page: 1, TotalPages: 1})
	if strings.Contains(buf.String(), "page") {
		t.Errorf("single page should not show page numbers: %q", buf.String())
	}
}

func TestPrintRequestShowsActionsForRole(t *testing.T) {
	maxUses := int64(5)
	r := &request.Request{
		ID:          "r1",
		Type:        workflow.RequestGuestVisit,
		Status:      workflow.RequestSubmitted,
		UnitID:      "u1",
		ExpiresMode: workflow.ExpiresByUses,
		MaxUses:     &maxUses,
		UsesCount:   2,
		Payload:     map[string]interface{}{"visitDate": "2026-11-02", "guestName": "Ana"},
	}

	var admin bytes.Buffer
	printRequest(&admin, r, workflow.RoleAdmin)
	out := admin.String()
	if !strings.Contains(out, "Uses:     2 of 5") {
		t.Errorf("missing uses line: %q", out)
	}
	if strings.Index(out, "guestName") > strings.Index(out, "visitDate") {
		t.Errorf("payload keys not sorted: %q", out)
	}
	if !strings.Contains(out, "approve") || !strings.Contains(out, "reject") {
		t.Errorf("admin should see approve and reject: %q", out)
	}

	var owner bytes.Buffer
	printRequest(&owner, r, workflow.RoleOwner)
	if strings.Contains(owner.String(), "approve") {
		t.Errorf("owner must not see approve: %q", owner.String())
	}
}
