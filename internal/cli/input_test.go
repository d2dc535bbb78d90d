package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/evcraddock/propdesk/internal/snagging"
	"github.com/evcraddock/propdesk/internal/workflow"
)

func TestParseTime(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{"2026-05-01", time.Date(2026, 5, 1, 0, 0, 0, 0, time.Local)},
		{"2026-05-01 14:30", time.Date(2026, 5, 1, 14, 30, 0, 0, time.Local)},
		{"2026-05-01T14:30", time.Date(2026, 5, 1, 14, 30, 0, 0, time.Local)},
		{"2026-05-01T14:30:00Z", time.Date(2026, 5, 1, 14, 30, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := parseTime(tt.input)
		if err != nil {
			t.Errorf("parseTime(%q): %v", tt.input, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("parseTime(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}

	if _, err := parseTime("next tuesday"); err == nil {
		t.Error("expected error for unparseable time")
	}
}

func TestOptionalTime(t *testing.T) {
	got, err := optionalTime("")
	if err != nil || got != nil {
		t.Errorf("optionalTime(\"\") = %v, %v", got, err)
	}
	got, err = optionalTime("2026-05-01")
	if err != nil || got == nil {
		t.Fatalf("optionalTime: %v, %v", got, err)
	}
}

func TestSplitItem(t *testing.T) {
	tests := []struct {
		input                  string
		category, label, extra string
		wantErr                bool
	}{
		{"Kitchen:Oven", "Kitchen", "Oven", "", false},
		{" Bath : Tiles : Wall near shower ", "Bath", "Tiles", "Wall near shower", false},
		{"Keys:Front door:2:spare", "Keys", "Front door", "2:spare", false},
		{"Kitchen", "", "", "", true},
		{":Oven", "", "", "", true},
		{"Kitchen:", "", "", "", true},
	}
	for _, tt := range tests {
		category, label, extra, err := splitItem(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("splitItem(%q) err = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if category != tt.category || label != tt.label || extra != tt.extra {
			t.Errorf("splitItem(%q) = %q, %q, %q", tt.input, category, label, extra)
		}
	}
}

func TestReadItemsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.yaml")
	content := `
- category: Kitchen
  label: Cracked tile
  location: Under the sink
  images:
    - https://files.example.com/a.jpg
- category: Bath
  label: Loose tap
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	var items []snagging.ItemInput
	if err := readItems(path, &items); err != nil {
		t.Fatalf("readItems: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Location != "Under the sink" || len(items[0].Images) != 1 {
		t.Errorf("first item = %+v", items[0])
	}
}

func TestReadItemsMissingFile(t *testing.T) {
	var items []snagging.ItemInput
	if err := readItems(filepath.Join(t.TempDir(), "nope.yaml"), &items); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParsePriority(t *testing.T) {
	p, err := parsePriority("urgent")
	if err != nil || p != workflow.PriorityUrgent {
		t.Errorf("parsePriority(urgent) = %q, %v", p, err)
	}
	if p, err := parsePriority(""); err != nil || p != "" {
		t.Errorf("parsePriority(\"\") = %q, %v", p, err)
	}
	if _, err := parsePriority("critical"); err == nil {
		t.Error("expected error for unknown priority")
	}
}

func TestSnaggingItemsMergesFileAndFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.json")
	if err := os.WriteFile(path, []byte(`[{"category":"Kitchen","label":"Oven"}]`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	items, err := snaggingItems([]string{"Bath:Tap:Upstairs"}, path)
	if err != nil {
		t.Fatalf("snaggingItems: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[1].Location != "Upstairs" {
		t.Errorf("location = %q", items[1].Location)
	}
}
